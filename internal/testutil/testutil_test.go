package testutil_test

import (
	"testing"

	"tally/internal/errors"
	"tally/internal/models"
	"tally/internal/testutil"
)

func TestSetupTestDB(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)

	// Verify all tables exist by doing a simple count query on each model.
	var count int64
	for _, table := range []string{"users", "accounts", "categories", "transactions", "budgets", "net_worth_snapshots", "audit_logs"} {
		if err := db.Table(table).Count(&count).Error; err != nil {
			t.Errorf("table %q should exist after migration: %v", table, err)
		}
	}
}

func TestFixtures(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)

	user := testutil.CreateTestUser(t, db)
	if user.ID == "" {
		t.Fatal("user should have a non-empty ID")
	}

	account := testutil.CreateTestAccountWithBalance(t, db, user.ID, 5000)
	if account.Balance != 5000 {
		t.Errorf("expected balance 5000, got %d", account.Balance)
	}
	if account.OpeningBalance != 5000 {
		t.Errorf("expected opening balance 5000, got %d", account.OpeningBalance)
	}

	creditCard := testutil.CreateTestCreditCardAccount(t, db, user.ID)
	if creditCard.Type != models.AccountTypeCreditCard {
		t.Errorf("expected credit card account type, got %s", creditCard.Type)
	}
	if !creditCard.Type.IsDebt() {
		t.Error("credit card account should be a debt account")
	}

	category := testutil.CreateTestCategory(t, db)
	if category.Type != models.CategoryTypeExpense {
		t.Errorf("expected expense category, got %s", category.Type)
	}

	income := testutil.CreateTestIncomeCategory(t, db)
	if income.Type != models.CategoryTypeIncome {
		t.Errorf("expected income category, got %s", income.Type)
	}

	tx := testutil.CreateTestTransaction(t, db, user.ID, account.ID, &category.ID, 1000)
	if tx.Amount != 1000 {
		t.Errorf("expected amount 1000, got %d", tx.Amount)
	}

	budget := testutil.CreateTestBudget(t, db, user.ID, category.ID, 10000)
	if budget.Amount != 10000 {
		t.Errorf("expected budget amount 10000, got %d", budget.Amount)
	}
}

func TestAssertAppError(t *testing.T) {
	err := errors.WithMessage(errors.ErrAccountNotFound, "custom message")
	testutil.AssertAppError(t, err, "ACCOUNT_NOT_FOUND")
}

func TestAssertNoError(t *testing.T) {
	testutil.AssertNoError(t, nil)
}
