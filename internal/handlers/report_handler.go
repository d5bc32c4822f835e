package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "tally/internal/errors"
	"tally/internal/services"
)

// ReportHandler handles reporting and export requests.
type ReportHandler struct {
	reportService services.ReportServicer
}

// NewReportHandler creates a new ReportHandler.
func NewReportHandler(reportService services.ReportServicer) *ReportHandler {
	return &ReportHandler{reportService: reportService}
}

// MonthlySummaryQuery holds query parameters for the monthly summary report.
type MonthlySummaryQuery struct {
	Year  int `form:"year" binding:"required,min=1970,max=2200"`
	Month int `form:"month" binding:"required,min=1,max=12"`
}

// StatementQuery holds query parameters for the account statement export.
type StatementQuery struct {
	From string `form:"from"`
	To   string `form:"to"`
}

// GetMonthlySummary returns income and spending totals for one month
// @Summary     Monthly summary
// @Description Get income, expenses, and per-category totals for a calendar month
// @Tags        reports
// @Produce     json
// @Security    BearerAuth
// @Param       year query int true "Year"
// @Param       month query int true "Month (1-12)"
// @Success     200 {object} services.MonthlySummary "Monthly summary"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Router      /reports/monthly [get]
func (h *ReportHandler) GetMonthlySummary(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var query MonthlySummaryQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	summary, err := h.reportService.GetMonthlySummary(userID, query.Year, time.Month(query.Month))
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, summary)
}

// ExportStatement streams a CSV statement for one account
// @Summary     Export account statement
// @Description Download a CSV statement with a running balance for one account
// @Tags        reports
// @Produce     text/csv
// @Security    BearerAuth
// @Param       id path string true "Account ID"
// @Param       from query string false "Start date (YYYY-MM-DD or RFC 3339)"
// @Param       to query string false "End date (YYYY-MM-DD or RFC 3339)"
// @Success     200 {string} string "CSV statement"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     403 {object} ErrorResponse "Account belongs to another user"
// @Failure     404 {object} ErrorResponse "Account not found"
// @Router      /accounts/{id}/statement [get]
func (h *ReportHandler) ExportStatement(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	accountID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var query StatementQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	var from, to time.Time
	if query.From != "" {
		from, err = parseFlexibleTime(query.From)
		if err != nil {
			respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "Invalid from"))
			return
		}
	}
	if query.To != "" {
		to, err = parseFlexibleTime(query.To)
		if err != nil {
			respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "Invalid to"))
			return
		}
	}

	statement, err := h.reportService.ExportAccountStatement(userID, accountID, from, to)
	if err != nil {
		respondWithError(c, err)
		return
	}

	filename := fmt.Sprintf("statement-%s.csv", accountID)
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, "text/csv", statement)
}
