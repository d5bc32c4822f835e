package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "tally/internal/errors"
	"tally/internal/pagination"
	"tally/internal/services"
)

// SnapshotHandler handles net worth snapshot requests.
type SnapshotHandler struct {
	snapshotService services.SnapshotServicer
}

// NewSnapshotHandler creates a new SnapshotHandler.
func NewSnapshotHandler(snapshotService services.SnapshotServicer) *SnapshotHandler {
	return &SnapshotHandler{snapshotService: snapshotService}
}

// ListSnapshotsQuery holds query parameters for listing snapshots.
type ListSnapshotsQuery struct {
	pagination.PageRequest
	From string `form:"from"`
	To   string `form:"to"`
}

// RecordSnapshots captures a net worth snapshot for every user
// @Summary     Record net worth snapshots
// @Description Capture a point-in-time net worth snapshot for every user with active accounts
// @Tags        snapshots
// @Produce     json
// @Security    BearerAuth
// @Success     200 {object} map[string]int "Number of snapshots recorded"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /snapshots/record [post]
func (h *SnapshotHandler) RecordSnapshots(c *gin.Context) {
	if _, err := getUserID(c); err != nil {
		respondWithError(c, err)
		return
	}

	count, err := h.snapshotService.RecordSnapshots(time.Now().Truncate(time.Second))
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"recorded": count})
}

// ListSnapshots returns the user's net worth history
// @Summary     List net worth snapshots
// @Description Get the user's net worth snapshots within a time range, oldest first
// @Tags        snapshots
// @Produce     json
// @Security    BearerAuth
// @Param       page query int false "Page number"
// @Param       page_size query int false "Page size"
// @Param       from query string false "Start date (YYYY-MM-DD or RFC 3339)"
// @Param       to query string false "End date (YYYY-MM-DD or RFC 3339)"
// @Success     200 {object} pagination.PageResponse[models.NetWorthSnapshot] "Snapshots"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Router      /snapshots [get]
func (h *SnapshotHandler) ListSnapshots(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var query ListSnapshotsQuery
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

	snapshots, err := h.snapshotService.GetSnapshots(userID, from, to, query.PageRequest)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, snapshots)
}
