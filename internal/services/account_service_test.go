package services

import (
	"testing"

	"tally/internal/models"
	"tally/internal/pagination"
	"tally/internal/testutil"
)

func TestCreateAccount(t *testing.T) {
	t.Run("valid_checking", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewAccountService(db)
		user := testutil.CreateTestUser(t, db)

		account, err := svc.CreateAccount(user.ID, "Everyday", models.AccountTypeChecking, "", "USD", 5000, 0, 0)
		testutil.AssertNoError(t, err)

		if account.ID == "" {
			t.Fatal("expected non-empty account ID")
		}
		if account.OpeningBalance != 5000 {
			t.Errorf("expected opening balance 5000, got %d", account.OpeningBalance)
		}
		testutil.AssertBalance(t, account.Balance, 5000)
	})

	t.Run("empty_name", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewAccountService(db)
		user := testutil.CreateTestUser(t, db)

		_, err := svc.CreateAccount(user.ID, "", models.AccountTypeChecking, "", "USD", 0, 0, 0)
		testutil.AssertAppError(t, err, "INVALID_INPUT")
	})

	t.Run("credit_fields_dropped_for_non_credit_accounts", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewAccountService(db)
		user := testutil.CreateTestUser(t, db)

		account, err := svc.CreateAccount(user.ID, "Savings", models.AccountTypeSavings, "", "USD", 0, 100000, 19.99)
		testutil.AssertNoError(t, err)

		if account.CreditLimit != 0 || account.InterestRate != 0 {
			t.Errorf("expected credit fields to be zeroed, got limit=%d rate=%f", account.CreditLimit, account.InterestRate)
		}
	})

	t.Run("credit_card_keeps_credit_fields", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewAccountService(db)
		user := testutil.CreateTestUser(t, db)

		account, err := svc.CreateAccount(user.ID, "Visa", models.AccountTypeCreditCard, "", "USD", 0, 100000, 19.99)
		testutil.AssertNoError(t, err)

		if account.CreditLimit != 100000 {
			t.Errorf("expected credit limit 100000, got %d", account.CreditLimit)
		}
	})
}

func TestGetAccountByID(t *testing.T) {
	t.Run("not_found", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewAccountService(db)
		user := testutil.CreateTestUser(t, db)

		_, err := svc.GetAccountByID(user.ID, "0199a3e6-0000-7000-8000-000000000010")
		testutil.AssertAppError(t, err, "ACCOUNT_NOT_FOUND")
	})

	t.Run("foreign_account_is_forbidden", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewAccountService(db)
		owner := testutil.CreateTestUser(t, db)
		intruder := testutil.CreateTestUser(t, db)
		account := testutil.CreateTestAccount(t, db, owner.ID)

		_, err := svc.GetAccountByID(intruder.ID, account.ID)
		testutil.AssertAppError(t, err, "FORBIDDEN")
	})
}

func TestUpdateAccount(t *testing.T) {
	t.Run("balance_reset_shifts_opening_balance", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		acctSvc := NewAccountService(db)
		txSvc := NewTransactionService(db, acctSvc)
		user := testutil.CreateTestUser(t, db)
		account := testutil.CreateTestAccountWithBalance(t, db, user.ID, 10000)
		expense := testutil.CreateTestCategory(t, db)

		_, err := txSvc.CreateTransaction(user.ID, TransactionCreateInput{
			AccountID:  account.ID,
			CategoryID: &expense.ID,
			Merchant:   "Cafe",
			Amount:     3000,
		})
		testutil.AssertNoError(t, err)

		// Stored balance is 7000; user asserts the true balance is 7500
		target := int64(7500)
		updated, err := acctSvc.UpdateAccount(user.ID, account.ID, AccountUpdateFields{Balance: &target})
		testutil.AssertNoError(t, err)

		testutil.AssertBalance(t, updated.Balance, 7500)
		if updated.OpeningBalance != 10500 {
			t.Errorf("expected opening balance shifted to 10500, got %d", updated.OpeningBalance)
		}

		// Reset must keep the ledger equation intact
		check, err := acctSvc.CheckBalance(user.ID, account.ID)
		testutil.AssertNoError(t, err)
		if !check.Consistent {
			t.Errorf("expected consistent balance after reset, stored %d computed %d", check.Stored, check.Computed)
		}
	})

	t.Run("rename", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewAccountService(db)
		user := testutil.CreateTestUser(t, db)
		account := testutil.CreateTestAccount(t, db, user.ID)

		name := "Renamed"
		updated, err := svc.UpdateAccount(user.ID, account.ID, AccountUpdateFields{Name: &name})
		testutil.AssertNoError(t, err)
		if updated.Name != "Renamed" {
			t.Errorf("expected name Renamed, got %s", updated.Name)
		}
	})
}

func TestDeleteAccount(t *testing.T) {
	t.Run("cascade_deletes_transactions", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		acctSvc := NewAccountService(db)
		txSvc := NewTransactionService(db, acctSvc)
		user := testutil.CreateTestUser(t, db)
		account := testutil.CreateTestAccountWithBalance(t, db, user.ID, 100000)

		for i := 0; i < 5; i++ {
			_, err := txSvc.CreateTransaction(user.ID, TransactionCreateInput{
				AccountID: account.ID,
				Merchant:  "Shop",
				Amount:    100,
			})
			testutil.AssertNoError(t, err)
		}

		err := acctSvc.DeleteAccount(user.ID, account.ID)
		testutil.AssertNoError(t, err)

		_, err = acctSvc.GetAccountByID(user.ID, account.ID)
		testutil.AssertAppError(t, err, "ACCOUNT_NOT_FOUND")

		// No live transaction may still reference the deleted account
		var orphans int64
		if err := db.Model(&models.Transaction{}).Where("account_id = ?", account.ID).Count(&orphans).Error; err != nil {
			t.Fatalf("failed to count orphans: %v", err)
		}
		if orphans != 0 {
			t.Errorf("expected 0 orphaned transactions, got %d", orphans)
		}
	})

	t.Run("foreign_account_is_forbidden", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewAccountService(db)
		owner := testutil.CreateTestUser(t, db)
		intruder := testutil.CreateTestUser(t, db)
		account := testutil.CreateTestAccount(t, db, owner.ID)

		err := svc.DeleteAccount(intruder.ID, account.ID)
		testutil.AssertAppError(t, err, "FORBIDDEN")
	})
}

func TestCheckBalance(t *testing.T) {
	t.Run("detects_drift", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewAccountService(db)
		user := testutil.CreateTestUser(t, db)
		account := testutil.CreateTestAccountWithBalance(t, db, user.ID, 10000)
		expense := testutil.CreateTestCategory(t, db)

		// Raw insert bypasses reconciliation, manufacturing drift
		testutil.CreateTestTransaction(t, db, user.ID, account.ID, &expense.ID, 2500)

		check, err := svc.CheckBalance(user.ID, account.ID)
		testutil.AssertNoError(t, err)

		if check.Consistent {
			t.Fatal("expected inconsistency after raw ledger insert")
		}
		if check.Stored != 10000 {
			t.Errorf("expected stored 10000, got %d", check.Stored)
		}
		if check.Computed != 7500 {
			t.Errorf("expected computed 7500, got %d", check.Computed)
		}
	})

	t.Run("missing_category_counts_as_expense", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewAccountService(db)
		user := testutil.CreateTestUser(t, db)
		account := testutil.CreateTestAccountWithBalance(t, db, user.ID, 10000)

		testutil.CreateTestTransaction(t, db, user.ID, account.ID, nil, 1000)

		check, err := svc.CheckBalance(user.ID, account.ID)
		testutil.AssertNoError(t, err)
		if check.Computed != 9000 {
			t.Errorf("expected computed 9000, got %d", check.Computed)
		}
	})

	t.Run("deleted_category_falls_back_to_expense", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewAccountService(db)
		user := testutil.CreateTestUser(t, db)
		account := testutil.CreateTestAccountWithBalance(t, db, user.ID, 10000)
		income := testutil.CreateTestIncomeCategory(t, db)

		testutil.CreateTestTransaction(t, db, user.ID, account.ID, &income.ID, 1000)
		if err := db.Delete(income).Error; err != nil {
			t.Fatalf("failed to soft-delete category: %v", err)
		}

		check, err := svc.CheckBalance(user.ID, account.ID)
		testutil.AssertNoError(t, err)
		if check.Computed != 9000 {
			t.Errorf("expected computed 9000 with expense fallback, got %d", check.Computed)
		}
	})
}

func TestRecalculateBalance(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	svc := NewAccountService(db)
	user := testutil.CreateTestUser(t, db)
	account := testutil.CreateTestAccountWithBalance(t, db, user.ID, 10000)
	expense := testutil.CreateTestCategory(t, db)

	testutil.CreateTestTransaction(t, db, user.ID, account.ID, &expense.ID, 2500)

	repaired, err := svc.RecalculateBalance(user.ID, account.ID)
	testutil.AssertNoError(t, err)
	testutil.AssertBalance(t, repaired.Balance, 7500)

	check, err := svc.CheckBalance(user.ID, account.ID)
	testutil.AssertNoError(t, err)
	if !check.Consistent {
		t.Errorf("expected consistency after repair, stored %d computed %d", check.Stored, check.Computed)
	}
}

func TestGetUserAccounts(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	svc := NewAccountService(db)
	user := testutil.CreateTestUser(t, db)
	other := testutil.CreateTestUser(t, db)

	testutil.CreateTestAccount(t, db, user.ID)
	testutil.CreateTestAccount(t, db, user.ID)
	testutil.CreateTestAccount(t, db, other.ID)

	result, err := svc.GetUserAccounts(user.ID, pagination.PageRequest{})
	testutil.AssertNoError(t, err)

	if result.TotalItems != 2 {
		t.Errorf("expected 2 accounts, got %d", result.TotalItems)
	}
}
