package services

import (
	"sync"
	"testing"
	"time"

	"gorm.io/gorm"

	"tally/internal/models"
	"tally/internal/pagination"
	"tally/internal/testutil"
)

func TestCreateTransaction(t *testing.T) {
	t.Run("income_increases_balance", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		acctSvc := NewAccountService(db)
		txSvc := NewTransactionService(db, acctSvc)
		user := testutil.CreateTestUser(t, db)
		account := testutil.CreateTestAccount(t, db, user.ID)
		income := testutil.CreateTestIncomeCategory(t, db)

		tx, err := txSvc.CreateTransaction(user.ID, TransactionCreateInput{
			AccountID:  account.ID,
			CategoryID: &income.ID,
			Merchant:   "Employer",
			Amount:     5000,
		})
		testutil.AssertNoError(t, err)

		if tx.ID == "" {
			t.Fatal("expected non-empty transaction ID")
		}
		if tx.Amount != 5000 {
			t.Errorf("expected amount 5000, got %d", tx.Amount)
		}

		updated, err := acctSvc.GetAccountByID(user.ID, account.ID)
		testutil.AssertNoError(t, err)
		testutil.AssertBalance(t, updated.Balance, 5000)
	})

	t.Run("expense_decreases_balance", func(t *testing.T) {
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

		updated, err := acctSvc.GetAccountByID(user.ID, account.ID)
		testutil.AssertNoError(t, err)
		testutil.AssertBalance(t, updated.Balance, 7000)
	})

	t.Run("nil_category_defaults_to_expense", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		acctSvc := NewAccountService(db)
		txSvc := NewTransactionService(db, acctSvc)
		user := testutil.CreateTestUser(t, db)
		account := testutil.CreateTestAccountWithBalance(t, db, user.ID, 10000)

		_, err := txSvc.CreateTransaction(user.ID, TransactionCreateInput{
			AccountID: account.ID,
			Merchant:  "Unknown",
			Amount:    2500,
		})
		testutil.AssertNoError(t, err)

		updated, err := acctSvc.GetAccountByID(user.ID, account.ID)
		testutil.AssertNoError(t, err)
		testutil.AssertBalance(t, updated.Balance, 7500)
	})

	t.Run("zero_amount", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		acctSvc := NewAccountService(db)
		txSvc := NewTransactionService(db, acctSvc)
		user := testutil.CreateTestUser(t, db)
		account := testutil.CreateTestAccount(t, db, user.ID)

		_, err := txSvc.CreateTransaction(user.ID, TransactionCreateInput{
			AccountID: account.ID,
			Merchant:  "Nobody",
			Amount:    0,
		})
		testutil.AssertAppError(t, err, "INVALID_INPUT")
	})

	t.Run("negative_amount", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		acctSvc := NewAccountService(db)
		txSvc := NewTransactionService(db, acctSvc)
		user := testutil.CreateTestUser(t, db)
		account := testutil.CreateTestAccount(t, db, user.ID)

		_, err := txSvc.CreateTransaction(user.ID, TransactionCreateInput{
			AccountID: account.ID,
			Merchant:  "Nobody",
			Amount:    -100,
		})
		testutil.AssertAppError(t, err, "INVALID_INPUT")
	})

	t.Run("missing_merchant", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		acctSvc := NewAccountService(db)
		txSvc := NewTransactionService(db, acctSvc)
		user := testutil.CreateTestUser(t, db)
		account := testutil.CreateTestAccount(t, db, user.ID)

		_, err := txSvc.CreateTransaction(user.ID, TransactionCreateInput{
			AccountID: account.ID,
			Amount:    100,
		})
		testutil.AssertAppError(t, err, "INVALID_INPUT")
	})

	t.Run("invalid_account", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		acctSvc := NewAccountService(db)
		txSvc := NewTransactionService(db, acctSvc)
		user := testutil.CreateTestUser(t, db)

		_, err := txSvc.CreateTransaction(user.ID, TransactionCreateInput{
			AccountID: "0199a3e6-0000-7000-8000-000000000000",
			Merchant:  "Nobody",
			Amount:    1000,
		})
		testutil.AssertAppError(t, err, "ACCOUNT_NOT_FOUND")
	})

	t.Run("unknown_category_rejected_on_create", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		acctSvc := NewAccountService(db)
		txSvc := NewTransactionService(db, acctSvc)
		user := testutil.CreateTestUser(t, db)
		account := testutil.CreateTestAccountWithBalance(t, db, user.ID, 10000)

		missing := "0199a3e6-0000-7000-8000-000000000001"
		_, err := txSvc.CreateTransaction(user.ID, TransactionCreateInput{
			AccountID:  account.ID,
			CategoryID: &missing,
			Merchant:   "Cafe",
			Amount:     1000,
		})
		testutil.AssertAppError(t, err, "CATEGORY_NOT_FOUND")

		// Balance untouched on rejection
		updated, err := acctSvc.GetAccountByID(user.ID, account.ID)
		testutil.AssertNoError(t, err)
		testutil.AssertBalance(t, updated.Balance, 10000)
	})

	t.Run("cross_user_account_forbidden", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		acctSvc := NewAccountService(db)
		txSvc := NewTransactionService(db, acctSvc)
		owner := testutil.CreateTestUser(t, db)
		intruder := testutil.CreateTestUser(t, db)
		account := testutil.CreateTestAccountWithBalance(t, db, owner.ID, 10000)

		_, err := txSvc.CreateTransaction(intruder.ID, TransactionCreateInput{
			AccountID: account.ID,
			Merchant:  "Sneaky",
			Amount:    1000,
		})
		testutil.AssertAppError(t, err, "FORBIDDEN")

		updated, err := acctSvc.GetAccountByID(owner.ID, account.ID)
		testutil.AssertNoError(t, err)
		testutil.AssertBalance(t, updated.Balance, 10000)
	})

	t.Run("default_date_when_zero", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		acctSvc := NewAccountService(db)
		txSvc := NewTransactionService(db, acctSvc)
		user := testutil.CreateTestUser(t, db)
		account := testutil.CreateTestAccount(t, db, user.ID)

		tx, err := txSvc.CreateTransaction(user.ID, TransactionCreateInput{
			AccountID: account.ID,
			Merchant:  "Shop",
			Amount:    1000,
		})
		testutil.AssertNoError(t, err)

		if tx.Date.IsZero() {
			t.Error("expected date to be defaulted to now, got zero")
		}
	})

	t.Run("concurrent_creates_no_lost_update", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		acctSvc := NewAccountService(db)
		txSvc := NewTransactionService(db, acctSvc)
		user := testutil.CreateTestUser(t, db)
		account := testutil.CreateTestAccountWithBalance(t, db, user.ID, 10000)
		expense := testutil.CreateTestCategory(t, db)

		var wg sync.WaitGroup
		errs := make(chan error, 2)
		for i := 0; i < 2; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := txSvc.CreateTransaction(user.ID, TransactionCreateInput{
					AccountID:  account.ID,
					CategoryID: &expense.ID,
					Merchant:   "Cafe",
					Amount:     1000,
				})
				errs <- err
			}()
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			testutil.AssertNoError(t, err)
		}

		updated, err := acctSvc.GetAccountByID(user.ID, account.ID)
		testutil.AssertNoError(t, err)
		testutil.AssertBalance(t, updated.Balance, 8000)
	})

	t.Run("category_deleted_mid_create_signs_as_expense", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		acctSvc := NewAccountService(db)
		txSvc := NewTransactionService(db, acctSvc)
		user := testutil.CreateTestUser(t, db)
		account := testutil.CreateTestAccountWithBalance(t, db, user.ID, 10000)
		income := testutil.CreateTestIncomeCategory(t, db)

		// Soft-delete the category after the upfront existence check but
		// before the ledger insert, as a competing category delete would.
		fired := false
		err := db.Callback().Create().Before("gorm:create").Register("test:competing_category_delete", func(d *gorm.DB) {
			if _, ok := d.Statement.Dest.(*models.Transaction); !ok || fired {
				return
			}
			fired = true
			d.Session(&gorm.Session{NewDB: true}).
				Exec("UPDATE categories SET deleted_at = ? WHERE id = ?", time.Now(), income.ID)
		})
		testutil.AssertNoError(t, err)
		defer db.Callback().Create().Remove("test:competing_category_delete")

		_, err = txSvc.CreateTransaction(user.ID, TransactionCreateInput{
			AccountID:  account.ID,
			CategoryID: &income.ID,
			Merchant:   "Employer",
			Amount:     500,
		})
		testutil.AssertNoError(t, err)

		// With the category gone the amount folds as an expense; the stored
		// delta must agree with that, not with the pre-insert lookup.
		updated, err := acctSvc.GetAccountByID(user.ID, account.ID)
		testutil.AssertNoError(t, err)
		testutil.AssertBalance(t, updated.Balance, 9500)

		check, err := acctSvc.CheckBalance(user.ID, account.ID)
		testutil.AssertNoError(t, err)
		if !check.Consistent {
			t.Errorf("stored balance %d diverged from computed %d", check.Stored, check.Computed)
		}
	})
}

func TestUpdateTransaction(t *testing.T) {
	t.Run("amount_change_adjusts_balance_by_difference", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		acctSvc := NewAccountService(db)
		txSvc := NewTransactionService(db, acctSvc)
		user := testutil.CreateTestUser(t, db)
		account := testutil.CreateTestAccountWithBalance(t, db, user.ID, 10000)
		expense := testutil.CreateTestCategory(t, db)

		tx, err := txSvc.CreateTransaction(user.ID, TransactionCreateInput{
			AccountID:  account.ID,
			CategoryID: &expense.ID,
			Merchant:   "Cafe",
			Amount:     2000,
		})
		testutil.AssertNoError(t, err)

		newAmount := int64(3000)
		_, err = txSvc.UpdateTransaction(user.ID, tx.ID, TransactionUpdateFields{Amount: &newAmount})
		testutil.AssertNoError(t, err)

		updated, err := acctSvc.GetAccountByID(user.ID, account.ID)
		testutil.AssertNoError(t, err)
		testutil.AssertBalance(t, updated.Balance, 7000)
	})

	t.Run("category_flip_changes_balance_by_twice_the_amount", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		acctSvc := NewAccountService(db)
		txSvc := NewTransactionService(db, acctSvc)
		user := testutil.CreateTestUser(t, db)
		account := testutil.CreateTestAccountWithBalance(t, db, user.ID, 10000)
		expense := testutil.CreateTestCategory(t, db)
		income := testutil.CreateTestIncomeCategory(t, db)

		tx, err := txSvc.CreateTransaction(user.ID, TransactionCreateInput{
			AccountID:  account.ID,
			CategoryID: &expense.ID,
			Merchant:   "Cafe",
			Amount:     5000,
		})
		testutil.AssertNoError(t, err)

		// 10000 - 5000 = 5000 before the flip
		mid, err := acctSvc.GetAccountByID(user.ID, account.ID)
		testutil.AssertNoError(t, err)
		testutil.AssertBalance(t, mid.Balance, 5000)

		incomeID := &income.ID
		_, err = txSvc.UpdateTransaction(user.ID, tx.ID, TransactionUpdateFields{CategoryID: &incomeID})
		testutil.AssertNoError(t, err)

		// Flip removes -5000 and adds +5000: a net change of +10000
		updated, err := acctSvc.GetAccountByID(user.ID, account.ID)
		testutil.AssertNoError(t, err)
		testutil.AssertBalance(t, updated.Balance, 15000)
	})

	t.Run("noop_patch_leaves_balance_unchanged", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		acctSvc := NewAccountService(db)
		txSvc := NewTransactionService(db, acctSvc)
		user := testutil.CreateTestUser(t, db)
		account := testutil.CreateTestAccountWithBalance(t, db, user.ID, 10000)
		expense := testutil.CreateTestCategory(t, db)

		tx, err := txSvc.CreateTransaction(user.ID, TransactionCreateInput{
			AccountID:  account.ID,
			CategoryID: &expense.ID,
			Merchant:   "Cafe",
			Amount:     2000,
		})
		testutil.AssertNoError(t, err)

		sameAmount := tx.Amount
		sameMerchant := tx.Merchant
		categoryID := &expense.ID
		_, err = txSvc.UpdateTransaction(user.ID, tx.ID, TransactionUpdateFields{
			Amount:     &sameAmount,
			Merchant:   &sameMerchant,
			CategoryID: &categoryID,
		})
		testutil.AssertNoError(t, err)

		updated, err := acctSvc.GetAccountByID(user.ID, account.ID)
		testutil.AssertNoError(t, err)
		testutil.AssertBalance(t, updated.Balance, 8000)
	})

	t.Run("clearing_category_falls_back_to_expense", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		acctSvc := NewAccountService(db)
		txSvc := NewTransactionService(db, acctSvc)
		user := testutil.CreateTestUser(t, db)
		account := testutil.CreateTestAccountWithBalance(t, db, user.ID, 10000)
		income := testutil.CreateTestIncomeCategory(t, db)

		tx, err := txSvc.CreateTransaction(user.ID, TransactionCreateInput{
			AccountID:  account.ID,
			CategoryID: &income.ID,
			Merchant:   "Employer",
			Amount:     4000,
		})
		testutil.AssertNoError(t, err)

		// 10000 + 4000; clearing the category reclassifies to expense:
		// -4000 -4000 relative to the income state
		var cleared *string
		updatedTx, err := txSvc.UpdateTransaction(user.ID, tx.ID, TransactionUpdateFields{CategoryID: &cleared})
		testutil.AssertNoError(t, err)
		if updatedTx.CategoryID != nil {
			t.Error("expected category to be cleared")
		}

		updated, err := acctSvc.GetAccountByID(user.ID, account.ID)
		testutil.AssertNoError(t, err)
		testutil.AssertBalance(t, updated.Balance, 6000)
	})

	t.Run("account_reassignment_rejected", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		acctSvc := NewAccountService(db)
		txSvc := NewTransactionService(db, acctSvc)
		user := testutil.CreateTestUser(t, db)
		account := testutil.CreateTestAccountWithBalance(t, db, user.ID, 10000)
		other := testutil.CreateTestAccountWithBalance(t, db, user.ID, 10000)
		expense := testutil.CreateTestCategory(t, db)

		tx, err := txSvc.CreateTransaction(user.ID, TransactionCreateInput{
			AccountID:  account.ID,
			CategoryID: &expense.ID,
			Merchant:   "Cafe",
			Amount:     2000,
		})
		testutil.AssertNoError(t, err)

		_, err = txSvc.UpdateTransaction(user.ID, tx.ID, TransactionUpdateFields{AccountID: &other.ID})
		testutil.AssertAppError(t, err, "ACCOUNT_CHANGE_DENIED")

		// Neither account moved
		a, err := acctSvc.GetAccountByID(user.ID, account.ID)
		testutil.AssertNoError(t, err)
		testutil.AssertBalance(t, a.Balance, 8000)
		b, err := acctSvc.GetAccountByID(user.ID, other.ID)
		testutil.AssertNoError(t, err)
		testutil.AssertBalance(t, b.Balance, 10000)
	})

	t.Run("same_account_id_in_patch_allowed", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		acctSvc := NewAccountService(db)
		txSvc := NewTransactionService(db, acctSvc)
		user := testutil.CreateTestUser(t, db)
		account := testutil.CreateTestAccountWithBalance(t, db, user.ID, 10000)

		tx, err := txSvc.CreateTransaction(user.ID, TransactionCreateInput{
			AccountID: account.ID,
			Merchant:  "Cafe",
			Amount:    2000,
		})
		testutil.AssertNoError(t, err)

		_, err = txSvc.UpdateTransaction(user.ID, tx.ID, TransactionUpdateFields{AccountID: &account.ID})
		testutil.AssertNoError(t, err)
	})

	t.Run("not_found", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		acctSvc := NewAccountService(db)
		txSvc := NewTransactionService(db, acctSvc)
		user := testutil.CreateTestUser(t, db)

		amount := int64(100)
		_, err := txSvc.UpdateTransaction(user.ID, "0199a3e6-0000-7000-8000-000000000002", TransactionUpdateFields{Amount: &amount})
		testutil.AssertAppError(t, err, "TRANSACTION_NOT_FOUND")
	})

	t.Run("other_users_transaction_not_found", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		acctSvc := NewAccountService(db)
		txSvc := NewTransactionService(db, acctSvc)
		owner := testutil.CreateTestUser(t, db)
		intruder := testutil.CreateTestUser(t, db)
		account := testutil.CreateTestAccountWithBalance(t, db, owner.ID, 10000)

		tx, err := txSvc.CreateTransaction(owner.ID, TransactionCreateInput{
			AccountID: account.ID,
			Merchant:  "Cafe",
			Amount:    2000,
		})
		testutil.AssertNoError(t, err)

		amount := int64(9999)
		_, err = txSvc.UpdateTransaction(intruder.ID, tx.ID, TransactionUpdateFields{Amount: &amount})
		testutil.AssertAppError(t, err, "TRANSACTION_NOT_FOUND")

		updated, err := acctSvc.GetAccountByID(owner.ID, account.ID)
		testutil.AssertNoError(t, err)
		testutil.AssertBalance(t, updated.Balance, 8000)
	})

	t.Run("concurrent_updates_keep_ledger_consistent", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		acctSvc := NewAccountService(db)
		txSvc := NewTransactionService(db, acctSvc)
		user := testutil.CreateTestUser(t, db)
		account := testutil.CreateTestAccountWithBalance(t, db, user.ID, 100000)
		expense := testutil.CreateTestCategory(t, db)

		tx, err := txSvc.CreateTransaction(user.ID, TransactionCreateInput{
			AccountID:  account.ID,
			CategoryID: &expense.ID,
			Merchant:   "Cafe",
			Amount:     10000,
		})
		testutil.AssertNoError(t, err)

		var wg sync.WaitGroup
		errs := make(chan error, 2)
		for _, amount := range []int64{20000, 30000} {
			wg.Add(1)
			go func(amount int64) {
				defer wg.Done()
				_, err := txSvc.UpdateTransaction(user.ID, tx.ID, TransactionUpdateFields{Amount: &amount})
				errs <- err
			}(amount)
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			testutil.AssertNoError(t, err)
		}

		// Whichever writer lands last, the balance must reflect exactly the
		// surviving amount and match a recomputation from the ledger.
		final, err := txSvc.GetTransactionByID(user.ID, tx.ID)
		testutil.AssertNoError(t, err)
		updated, err := acctSvc.GetAccountByID(user.ID, account.ID)
		testutil.AssertNoError(t, err)
		testutil.AssertBalance(t, updated.Balance, 100000-final.Amount)

		check, err := acctSvc.CheckBalance(user.ID, account.ID)
		testutil.AssertNoError(t, err)
		if !check.Consistent {
			t.Errorf("stored balance %d diverged from computed %d", check.Stored, check.Computed)
		}
	})
}

func TestDeleteTransaction(t *testing.T) {
	t.Run("create_then_delete_restores_balance", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		acctSvc := NewAccountService(db)
		txSvc := NewTransactionService(db, acctSvc)
		user := testutil.CreateTestUser(t, db)
		account := testutil.CreateTestAccountWithBalance(t, db, user.ID, 12345)
		income := testutil.CreateTestIncomeCategory(t, db)

		tx, err := txSvc.CreateTransaction(user.ID, TransactionCreateInput{
			AccountID:  account.ID,
			CategoryID: &income.ID,
			Merchant:   "Employer",
			Amount:     6789,
		})
		testutil.AssertNoError(t, err)

		err = txSvc.DeleteTransaction(user.ID, tx.ID)
		testutil.AssertNoError(t, err)

		updated, err := acctSvc.GetAccountByID(user.ID, account.ID)
		testutil.AssertNoError(t, err)
		testutil.AssertBalance(t, updated.Balance, 12345)
	})

	t.Run("delete_expense_restores_amount", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		acctSvc := NewAccountService(db)
		txSvc := NewTransactionService(db, acctSvc)
		user := testutil.CreateTestUser(t, db)
		account := testutil.CreateTestAccountWithBalance(t, db, user.ID, 10000)
		expense := testutil.CreateTestCategory(t, db)

		tx, err := txSvc.CreateTransaction(user.ID, TransactionCreateInput{
			AccountID:  account.ID,
			CategoryID: &expense.ID,
			Merchant:   "Cafe",
			Amount:     2000,
		})
		testutil.AssertNoError(t, err)

		err = txSvc.DeleteTransaction(user.ID, tx.ID)
		testutil.AssertNoError(t, err)

		updated, err := acctSvc.GetAccountByID(user.ID, account.ID)
		testutil.AssertNoError(t, err)
		testutil.AssertBalance(t, updated.Balance, 10000)
	})

	t.Run("not_found", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		acctSvc := NewAccountService(db)
		txSvc := NewTransactionService(db, acctSvc)
		user := testutil.CreateTestUser(t, db)

		err := txSvc.DeleteTransaction(user.ID, "0199a3e6-0000-7000-8000-000000000003")
		testutil.AssertAppError(t, err, "TRANSACTION_NOT_FOUND")
	})

	t.Run("delete_matching_no_row_applies_no_reversal", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		acctSvc := NewAccountService(db)
		txSvc := NewTransactionService(db, acctSvc)
		user := testutil.CreateTestUser(t, db)
		account := testutil.CreateTestAccountWithBalance(t, db, user.ID, 10000)
		expense := testutil.CreateTestCategory(t, db)

		tx, err := txSvc.CreateTransaction(user.ID, TransactionCreateInput{
			AccountID:  account.ID,
			CategoryID: &expense.ID,
			Merchant:   "Cafe",
			Amount:     2000,
		})
		testutil.AssertNoError(t, err)

		// Soft-delete the row between the pre-image load and the delete
		// statement, as a competing delete would. The delete then matches
		// nothing and the whole unit must fail without touching the balance.
		fired := false
		err = db.Callback().Delete().Before("gorm:delete").Register("test:competing_delete", func(d *gorm.DB) {
			if _, ok := d.Statement.Dest.(*models.Transaction); !ok || fired {
				return
			}
			fired = true
			d.Session(&gorm.Session{NewDB: true}).
				Exec("UPDATE transactions SET deleted_at = ? WHERE id = ?", time.Now(), tx.ID)
		})
		testutil.AssertNoError(t, err)
		defer db.Callback().Delete().Remove("test:competing_delete")

		err = txSvc.DeleteTransaction(user.ID, tx.ID)
		testutil.AssertAppError(t, err, "TRANSACTION_NOT_FOUND")

		updated, err := acctSvc.GetAccountByID(user.ID, account.ID)
		testutil.AssertNoError(t, err)
		testutil.AssertBalance(t, updated.Balance, 8000)

		check, err := acctSvc.CheckBalance(user.ID, account.ID)
		testutil.AssertNoError(t, err)
		if !check.Consistent {
			t.Errorf("stored balance %d diverged from computed %d", check.Stored, check.Computed)
		}
	})

	t.Run("concurrent_deletes_reverse_once", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		acctSvc := NewAccountService(db)
		txSvc := NewTransactionService(db, acctSvc)
		user := testutil.CreateTestUser(t, db)
		account := testutil.CreateTestAccountWithBalance(t, db, user.ID, 10000)
		expense := testutil.CreateTestCategory(t, db)

		tx, err := txSvc.CreateTransaction(user.ID, TransactionCreateInput{
			AccountID:  account.ID,
			CategoryID: &expense.ID,
			Merchant:   "Cafe",
			Amount:     2000,
		})
		testutil.AssertNoError(t, err)

		var wg sync.WaitGroup
		errs := make(chan error, 2)
		for i := 0; i < 2; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				errs <- txSvc.DeleteTransaction(user.ID, tx.ID)
			}()
		}
		wg.Wait()
		close(errs)

		var succeeded, notFound int
		for err := range errs {
			if err == nil {
				succeeded++
				continue
			}
			testutil.AssertAppError(t, err, "TRANSACTION_NOT_FOUND")
			notFound++
		}
		if succeeded != 1 || notFound != 1 {
			t.Fatalf("expected exactly one delete to win, got %d successes and %d not-found", succeeded, notFound)
		}

		updated, err := acctSvc.GetAccountByID(user.ID, account.ID)
		testutil.AssertNoError(t, err)
		testutil.AssertBalance(t, updated.Balance, 10000)

		check, err := acctSvc.CheckBalance(user.ID, account.ID)
		testutil.AssertNoError(t, err)
		if !check.Consistent {
			t.Errorf("stored balance %d diverged from computed %d", check.Stored, check.Computed)
		}
	})
}

func TestReconciliationScenario(t *testing.T) {
	// Account starts at 100000. Expense T1 of 20000 brings it to 80000.
	// Income T2 of 50000 brings it to 130000. Raising T1 to 30000 brings it
	// to 120000. Deleting T2 brings it to 70000.
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	acctSvc := NewAccountService(db)
	txSvc := NewTransactionService(db, acctSvc)
	user := testutil.CreateTestUser(t, db)
	account := testutil.CreateTestAccountWithBalance(t, db, user.ID, 100000)
	expense := testutil.CreateTestCategory(t, db)
	income := testutil.CreateTestIncomeCategory(t, db)

	assertBalance := func(want int64) {
		t.Helper()
		current, err := acctSvc.GetAccountByID(user.ID, account.ID)
		testutil.AssertNoError(t, err)
		testutil.AssertBalance(t, current.Balance, want)

		check, err := acctSvc.CheckBalance(user.ID, account.ID)
		testutil.AssertNoError(t, err)
		if !check.Consistent {
			t.Errorf("stored balance %d diverged from computed %d", check.Stored, check.Computed)
		}
	}

	t1, err := txSvc.CreateTransaction(user.ID, TransactionCreateInput{
		AccountID:  account.ID,
		CategoryID: &expense.ID,
		Merchant:   "Grocery Store",
		Amount:     20000,
	})
	testutil.AssertNoError(t, err)
	assertBalance(80000)

	t2, err := txSvc.CreateTransaction(user.ID, TransactionCreateInput{
		AccountID:  account.ID,
		CategoryID: &income.ID,
		Merchant:   "Employer",
		Amount:     50000,
	})
	testutil.AssertNoError(t, err)
	assertBalance(130000)

	newAmount := int64(30000)
	_, err = txSvc.UpdateTransaction(user.ID, t1.ID, TransactionUpdateFields{Amount: &newAmount})
	testutil.AssertNoError(t, err)
	assertBalance(120000)

	err = txSvc.DeleteTransaction(user.ID, t2.ID)
	testutil.AssertNoError(t, err)
	assertBalance(70000)
}

func TestListTransactions(t *testing.T) {
	t.Run("filters_by_merchant_and_amount", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		acctSvc := NewAccountService(db)
		txSvc := NewTransactionService(db, acctSvc)
		user := testutil.CreateTestUser(t, db)
		account := testutil.CreateTestAccountWithBalance(t, db, user.ID, 100000)

		for _, tc := range []struct {
			merchant string
			amount   int64
		}{
			{"Corner Cafe", 450},
			{"Corner Cafe", 1200},
			{"Hardware Store", 8900},
		} {
			_, err := txSvc.CreateTransaction(user.ID, TransactionCreateInput{
				AccountID: account.ID,
				Merchant:  tc.merchant,
				Amount:    tc.amount,
			})
			testutil.AssertNoError(t, err)
		}

		merchant := "Cafe"
		minAmount := int64(1000)
		page := pagination.PageRequest{}
		result, err := txSvc.GetUserTransactions(user.ID, page, TransactionFilter{
			Merchant:  &merchant,
			MinAmount: &minAmount,
		})
		testutil.AssertNoError(t, err)

		if result.TotalItems != 1 {
			t.Fatalf("expected 1 transaction, got %d", result.TotalItems)
		}
		if result.Data[0].Amount != 1200 {
			t.Errorf("expected amount 1200, got %d", result.Data[0].Amount)
		}
	})

	t.Run("filters_by_date_range", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		acctSvc := NewAccountService(db)
		txSvc := NewTransactionService(db, acctSvc)
		user := testutil.CreateTestUser(t, db)
		account := testutil.CreateTestAccountWithBalance(t, db, user.ID, 100000)

		old := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
		recent := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)
		for _, date := range []time.Time{old, recent} {
			_, err := txSvc.CreateTransaction(user.ID, TransactionCreateInput{
				AccountID: account.ID,
				Merchant:  "Shop",
				Amount:    100,
				Date:      date,
			})
			testutil.AssertNoError(t, err)
		}

		from := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
		result, err := txSvc.GetAccountTransactions(user.ID, account.ID, pagination.PageRequest{}, TransactionFilter{FromDate: &from})
		testutil.AssertNoError(t, err)

		if result.TotalItems != 1 {
			t.Fatalf("expected 1 transaction after %v, got %d", from, result.TotalItems)
		}
	})

	t.Run("account_listing_requires_ownership", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		acctSvc := NewAccountService(db)
		txSvc := NewTransactionService(db, acctSvc)
		owner := testutil.CreateTestUser(t, db)
		intruder := testutil.CreateTestUser(t, db)
		account := testutil.CreateTestAccount(t, db, owner.ID)

		_, err := txSvc.GetAccountTransactions(intruder.ID, account.ID, pagination.PageRequest{}, TransactionFilter{})
		testutil.AssertAppError(t, err, "FORBIDDEN")
	})
}
