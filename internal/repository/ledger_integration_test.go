//go:build integration

package repository

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/tokentill/tokentill/internal/model"
	"github.com/tokentill/tokentill/internal/testutil"
)

// ============================================================================
// Account Repository Integration Tests
// ============================================================================

func TestIntegrationAccountRepository_CreateAccount(t *testing.T) {
	ctx, repo := newLedgerTestEnv(t)

	authority := testutil.UniqueAuthority("create")
	account := testutil.NewTestAccountWithBalance(t, authority, 5000)

	if err := repo.CreateAccount(ctx, account); err != nil {
		t.Fatalf("CreateAccount failed: %v", err)
	}

	retrieved, err := repo.GetAccountByAddress(ctx, account.Address)
	if err != nil {
		t.Fatalf("GetAccountByAddress failed: %v", err)
	}

	if retrieved.Authority != authority {
		t.Errorf("Authority mismatch: got %q, want %q", retrieved.Authority, authority)
	}
	if retrieved.Balance != 5000 {
		t.Errorf("Balance = %d, want 5000", retrieved.Balance)
	}
	if retrieved.Age != account.Age {
		t.Errorf("Age = %d, want %d", retrieved.Age, account.Age)
	}
	if !retrieved.Active {
		t.Error("new account should be active")
	}
	if retrieved.DeactivatedAt != nil {
		t.Error("DeactivatedAt should be nil for an active account")
	}
}

func TestIntegrationAccountRepository_CreateAccount_Duplicate(t *testing.T) {
	ctx, repo := newLedgerTestEnv(t)

	authority := testutil.UniqueAuthority("dup")
	first := testutil.NewTestAccount(t, authority)
	second := testutil.NewTestAccount(t, authority)
	second.ID = testutil.UniqueID("acct") // Different ID, same authority and address

	if err := repo.CreateAccount(ctx, first); err != nil {
		t.Fatalf("CreateAccount (first) failed: %v", err)
	}

	err := repo.CreateAccount(ctx, second)
	if !errors.Is(err, ErrAccountExists) {
		t.Errorf("Expected ErrAccountExists, got: %v", err)
	}
}

func TestIntegrationAccountRepository_GetByAddress_NotFound(t *testing.T) {
	ctx, repo := newLedgerTestEnv(t)

	_, err := repo.GetAccountByAddress(ctx, model.DeriveAddress("nobody"))
	if !errors.Is(err, ErrAccountNotFound) {
		t.Errorf("Expected ErrAccountNotFound, got: %v", err)
	}
}

func TestIntegrationAccountRepository_GetByAuthority(t *testing.T) {
	ctx, repo := newLedgerTestEnv(t)

	authority := testutil.UniqueAuthority("byauth")
	account := testutil.NewTestAccount(t, authority)

	if err := repo.CreateAccount(ctx, account); err != nil {
		t.Fatalf("CreateAccount failed: %v", err)
	}

	retrieved, err := repo.GetAccountByAuthority(ctx, authority)
	if err != nil {
		t.Fatalf("GetAccountByAuthority failed: %v", err)
	}
	if retrieved.Address != account.Address {
		t.Errorf("Address mismatch: got %q, want %q", retrieved.Address, account.Address)
	}

	_, err = repo.GetAccountByAuthority(ctx, testutil.UniqueAuthority("missing"))
	if !errors.Is(err, ErrAccountNotFound) {
		t.Errorf("Expected ErrAccountNotFound, got: %v", err)
	}
}

func TestIntegrationAccountRepository_UpdateProfile(t *testing.T) {
	ctx, repo := newLedgerTestEnv(t)

	account := testutil.NewTestAccount(t, testutil.UniqueAuthority("update"))
	if err := repo.CreateAccount(ctx, account); err != nil {
		t.Fatalf("CreateAccount failed: %v", err)
	}

	account.Name = "Renamed"
	account.Age = 44
	account.UpdatedAt = time.Now().UTC()

	if err := repo.UpdateAccountProfile(ctx, account); err != nil {
		t.Fatalf("UpdateAccountProfile failed: %v", err)
	}

	retrieved, err := repo.GetAccountByAddress(ctx, account.Address)
	if err != nil {
		t.Fatalf("GetAccountByAddress failed: %v", err)
	}
	if retrieved.Name != "Renamed" {
		t.Errorf("Name = %q, want %q", retrieved.Name, "Renamed")
	}
	if retrieved.Age != 44 {
		t.Errorf("Age = %d, want 44", retrieved.Age)
	}
}

func TestIntegrationAccountRepository_UpdateProfile_NotFound(t *testing.T) {
	ctx, repo := newLedgerTestEnv(t)

	ghost := testutil.NewTestAccount(t, testutil.UniqueAuthority("ghost"))
	err := repo.UpdateAccountProfile(ctx, ghost)
	if !errors.Is(err, ErrAccountNotFound) {
		t.Errorf("Expected ErrAccountNotFound, got: %v", err)
	}
}

func TestIntegrationAccountRepository_Deactivate(t *testing.T) {
	ctx, repo := newLedgerTestEnv(t)

	account := testutil.NewTestAccount(t, testutil.UniqueAuthority("deact"))
	if err := repo.CreateAccount(ctx, account); err != nil {
		t.Fatalf("CreateAccount failed: %v", err)
	}

	now := time.Now().UTC()
	if err := repo.DeactivateAccount(ctx, account.Address, now); err != nil {
		t.Fatalf("DeactivateAccount failed: %v", err)
	}

	retrieved, err := repo.GetAccountByAddress(ctx, account.Address)
	if err != nil {
		t.Fatalf("GetAccountByAddress failed: %v", err)
	}
	if retrieved.Active {
		t.Error("account should be inactive")
	}
	if retrieved.DeactivatedAt == nil {
		t.Error("DeactivatedAt should be set")
	}
	if retrieved.Status() != model.AccountStatusInactive {
		t.Errorf("Status = %q, want %q", retrieved.Status(), model.AccountStatusInactive)
	}

	// A second deactivation finds no active row
	err = repo.DeactivateAccount(ctx, account.Address, now)
	if !errors.Is(err, ErrAccountNotFound) {
		t.Errorf("Expected ErrAccountNotFound on repeat deactivation, got: %v", err)
	}
}

func TestIntegrationAccountRepository_AccountExists(t *testing.T) {
	ctx, repo := newLedgerTestEnv(t)

	authority := testutil.UniqueAuthority("exists")

	exists, err := repo.AccountExists(ctx, authority)
	if err != nil {
		t.Fatalf("AccountExists failed: %v", err)
	}
	if exists {
		t.Error("account should not exist yet")
	}

	if err := repo.CreateAccount(ctx, testutil.NewTestAccount(t, authority)); err != nil {
		t.Fatalf("CreateAccount failed: %v", err)
	}

	exists, err = repo.AccountExists(ctx, authority)
	if err != nil {
		t.Fatalf("AccountExists failed: %v", err)
	}
	if !exists {
		t.Error("account should exist after creation")
	}
}

func TestIntegrationAccountRepository_ListAccounts(t *testing.T) {
	ctx, repo := newLedgerTestEnv(t)

	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		account := testutil.NewTestAccount(t, testutil.UniqueAuthority("list"))
		account.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		account.UpdatedAt = account.CreatedAt
		if i == 4 {
			account.Active = false
		}
		if err := repo.CreateAccount(ctx, account); err != nil {
			t.Fatalf("CreateAccount failed: %v", err)
		}
	}

	// First page
	accounts, cursor, err := repo.ListAccounts(ctx, AccountFilter{}, "", 2)
	if err != nil {
		t.Fatalf("ListAccounts failed: %v", err)
	}
	if len(accounts) != 2 {
		t.Fatalf("page size = %d, want 2", len(accounts))
	}
	if cursor == "" {
		t.Fatal("expected a next cursor")
	}

	// Newest first
	if accounts[0].CreatedAt.Before(accounts[1].CreatedAt) {
		t.Error("accounts should be ordered newest first")
	}

	// Second page does not repeat the first
	next, _, err := repo.ListAccounts(ctx, AccountFilter{}, cursor, 2)
	if err != nil {
		t.Fatalf("ListAccounts (page 2) failed: %v", err)
	}
	for _, a := range next {
		for _, b := range accounts {
			if a.ID == b.ID {
				t.Errorf("account %s appeared on two pages", a.ID)
			}
		}
	}

	// Status filter
	inactive, _, err := repo.ListAccounts(ctx, AccountFilter{Status: model.AccountStatusInactive}, "", 10)
	if err != nil {
		t.Fatalf("ListAccounts (inactive) failed: %v", err)
	}
	if len(inactive) != 1 {
		t.Errorf("inactive count = %d, want 1", len(inactive))
	}

	// Invalid cursor
	_, _, err = repo.ListAccounts(ctx, AccountFilter{}, "not-base64!", 2)
	if !errors.Is(err, ErrInvalidCursor) {
		t.Errorf("Expected ErrInvalidCursor, got: %v", err)
	}
}

// ============================================================================
// Transfer Repository Integration Tests
// ============================================================================

func TestIntegrationTransferRepository_ExecuteTransfer(t *testing.T) {
	ctx, repo := newLedgerTestEnv(t)

	sender := testutil.NewTestAccountWithBalance(t, testutil.UniqueAuthority("sender"), 10000)
	receiver := testutil.NewTestAccount(t, testutil.UniqueAuthority("receiver"))
	mustCreateAccounts(ctx, t, repo, sender, receiver)

	transfer := testutil.NewTestTransfer(t, sender.Address, receiver.Address, 1500)
	transfer.Authority = sender.Authority

	if err := repo.ExecuteTransfer(ctx, transfer); err != nil {
		t.Fatalf("ExecuteTransfer failed: %v", err)
	}

	gotSender, err := repo.GetAccountByAddress(ctx, sender.Address)
	if err != nil {
		t.Fatalf("GetAccountByAddress (sender) failed: %v", err)
	}
	if gotSender.Balance != 8500 {
		t.Errorf("sender balance = %d, want 8500", gotSender.Balance)
	}

	gotReceiver, err := repo.GetAccountByAddress(ctx, receiver.Address)
	if err != nil {
		t.Fatalf("GetAccountByAddress (receiver) failed: %v", err)
	}
	if gotReceiver.Balance != 1500 {
		t.Errorf("receiver balance = %d, want 1500", gotReceiver.Balance)
	}

	// Ledger row recorded with the fee
	recorded, err := repo.GetTransferByID(ctx, transfer.ID)
	if err != nil {
		t.Fatalf("GetTransferByID failed: %v", err)
	}
	if recorded.Amount != 1500 {
		t.Errorf("recorded amount = %d, want 1500", recorded.Amount)
	}
	if recorded.Fee != 15 {
		t.Errorf("recorded fee = %d, want 15", recorded.Fee)
	}
	if recorded.IsCredit() {
		t.Error("a transfer between accounts is not a credit")
	}
}

func TestIntegrationTransferRepository_InsufficientFunds(t *testing.T) {
	ctx, repo := newLedgerTestEnv(t)

	sender := testutil.NewTestAccountWithBalance(t, testutil.UniqueAuthority("poor"), 100)
	receiver := testutil.NewTestAccount(t, testutil.UniqueAuthority("rich"))
	mustCreateAccounts(ctx, t, repo, sender, receiver)

	transfer := testutil.NewTestTransfer(t, sender.Address, receiver.Address, 101)
	err := repo.ExecuteTransfer(ctx, transfer)
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Errorf("Expected ErrInsufficientFunds, got: %v", err)
	}

	// Balance untouched on rejection
	got, err := repo.GetAccountByAddress(ctx, sender.Address)
	if err != nil {
		t.Fatalf("GetAccountByAddress failed: %v", err)
	}
	if got.Balance != 100 {
		t.Errorf("sender balance = %d, want 100", got.Balance)
	}
}

func TestIntegrationTransferRepository_InactiveAccounts(t *testing.T) {
	ctx, repo := newLedgerTestEnv(t)

	sender := testutil.NewTestAccountWithBalance(t, testutil.UniqueAuthority("s-inactive"), 1000)
	receiver := testutil.NewTestAccount(t, testutil.UniqueAuthority("r-inactive"))
	mustCreateAccounts(ctx, t, repo, sender, receiver)

	// Inactive receiver blocks the transfer
	if err := repo.DeactivateAccount(ctx, receiver.Address, time.Now().UTC()); err != nil {
		t.Fatalf("DeactivateAccount failed: %v", err)
	}
	err := repo.ExecuteTransfer(ctx, testutil.NewTestTransfer(t, sender.Address, receiver.Address, 10))
	if !errors.Is(err, ErrAccountInactive) {
		t.Errorf("Expected ErrAccountInactive for inactive receiver, got: %v", err)
	}

	// Inactive sender blocks it too
	if err := repo.DeactivateAccount(ctx, sender.Address, time.Now().UTC()); err != nil {
		t.Fatalf("DeactivateAccount failed: %v", err)
	}
	other := testutil.NewTestAccount(t, testutil.UniqueAuthority("r-active"))
	if err := repo.CreateAccount(ctx, other); err != nil {
		t.Fatalf("CreateAccount failed: %v", err)
	}
	err = repo.ExecuteTransfer(ctx, testutil.NewTestTransfer(t, sender.Address, other.Address, 10))
	if !errors.Is(err, ErrAccountInactive) {
		t.Errorf("Expected ErrAccountInactive for inactive sender, got: %v", err)
	}
}

func TestIntegrationTransferRepository_InsufficientFundsBeforeInactive(t *testing.T) {
	ctx, repo := newLedgerTestEnv(t)

	sender := testutil.NewTestAccountWithBalance(t, testutil.UniqueAuthority("broke-inactive"), 50)
	receiver := testutil.NewTestAccount(t, testutil.UniqueAuthority("open"))
	mustCreateAccounts(ctx, t, repo, sender, receiver)

	if err := repo.DeactivateAccount(ctx, sender.Address, time.Now().UTC()); err != nil {
		t.Fatalf("DeactivateAccount failed: %v", err)
	}

	// An underfunded sender reports insufficient funds even when it is
	// also inactive; the balance check comes first
	err := repo.ExecuteTransfer(ctx, testutil.NewTestTransfer(t, sender.Address, receiver.Address, 100))
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Errorf("Expected ErrInsufficientFunds, got: %v", err)
	}
}

func TestIntegrationTransferRepository_BalanceOverflow(t *testing.T) {
	ctx, repo := newLedgerTestEnv(t)

	sender := testutil.NewTestAccountWithBalance(t, testutil.UniqueAuthority("ovf-s"), 1000)
	receiver := testutil.NewTestAccountWithBalance(t, testutil.UniqueAuthority("ovf-r"), math.MaxUint64)
	mustCreateAccounts(ctx, t, repo, sender, receiver)

	err := repo.ExecuteTransfer(ctx, testutil.NewTestTransfer(t, sender.Address, receiver.Address, 1))
	if !errors.Is(err, ErrBalanceOverflow) {
		t.Errorf("Expected ErrBalanceOverflow, got: %v", err)
	}
}

func TestIntegrationTransferRepository_MissingAccount(t *testing.T) {
	ctx, repo := newLedgerTestEnv(t)

	sender := testutil.NewTestAccountWithBalance(t, testutil.UniqueAuthority("alone"), 1000)
	if err := repo.CreateAccount(ctx, sender); err != nil {
		t.Fatalf("CreateAccount failed: %v", err)
	}

	ghost := model.DeriveAddress(testutil.UniqueAuthority("ghost"))
	err := repo.ExecuteTransfer(ctx, testutil.NewTestTransfer(t, sender.Address, ghost, 10))
	if !errors.Is(err, ErrAccountNotFound) {
		t.Errorf("Expected ErrAccountNotFound, got: %v", err)
	}
}

func TestIntegrationTransferRepository_CreditAccount(t *testing.T) {
	ctx, repo := newLedgerTestEnv(t)

	account := testutil.NewTestAccount(t, testutil.UniqueAuthority("credit"))
	if err := repo.CreateAccount(ctx, account); err != nil {
		t.Fatalf("CreateAccount failed: %v", err)
	}

	credit := &model.Transfer{
		ID:        testutil.UniqueID("tr"),
		ToAddress: account.Address,
		Authority: "system",
		Amount:    25000,
		CreatedAt: time.Now().UTC(),
	}
	if err := repo.CreditAccount(ctx, credit); err != nil {
		t.Fatalf("CreditAccount failed: %v", err)
	}

	got, err := repo.GetAccountByAddress(ctx, account.Address)
	if err != nil {
		t.Fatalf("GetAccountByAddress failed: %v", err)
	}
	if got.Balance != 25000 {
		t.Errorf("balance = %d, want 25000", got.Balance)
	}

	recorded, err := repo.GetTransferByID(ctx, credit.ID)
	if err != nil {
		t.Fatalf("GetTransferByID failed: %v", err)
	}
	if !recorded.IsCredit() {
		t.Error("credit entry should have an empty from address")
	}
	if recorded.Fee != 0 {
		t.Errorf("credit fee = %d, want 0", recorded.Fee)
	}
}

func TestIntegrationTransferRepository_CreditInactiveAccount(t *testing.T) {
	ctx, repo := newLedgerTestEnv(t)

	account := testutil.NewTestAccount(t, testutil.UniqueAuthority("credit-inactive"))
	if err := repo.CreateAccount(ctx, account); err != nil {
		t.Fatalf("CreateAccount failed: %v", err)
	}
	if err := repo.DeactivateAccount(ctx, account.Address, time.Now().UTC()); err != nil {
		t.Fatalf("DeactivateAccount failed: %v", err)
	}

	credit := &model.Transfer{
		ID:        testutil.UniqueID("tr"),
		ToAddress: account.Address,
		Authority: "system",
		Amount:    100,
		CreatedAt: time.Now().UTC(),
	}
	err := repo.CreditAccount(ctx, credit)
	if !errors.Is(err, ErrAccountInactive) {
		t.Errorf("Expected ErrAccountInactive, got: %v", err)
	}
}

func TestIntegrationTransferRepository_GetByID_NotFound(t *testing.T) {
	ctx, repo := newLedgerTestEnv(t)

	_, err := repo.GetTransferByID(ctx, testutil.UniqueID("missing"))
	if !errors.Is(err, ErrTransferNotFound) {
		t.Errorf("Expected ErrTransferNotFound, got: %v", err)
	}
}

func TestIntegrationTransferRepository_ListTransfers(t *testing.T) {
	ctx, repo := newLedgerTestEnv(t)

	a := testutil.NewTestAccountWithBalance(t, testutil.UniqueAuthority("hist-a"), 100000)
	b := testutil.NewTestAccountWithBalance(t, testutil.UniqueAuthority("hist-b"), 100000)
	c := testutil.NewTestAccountWithBalance(t, testutil.UniqueAuthority("hist-c"), 100000)
	mustCreateAccounts(ctx, t, repo, a, b, c)

	// a -> b, b -> a, b -> c; a touches two rows, c touches one
	base := time.Now().UTC().Add(-time.Minute)
	pairs := []struct {
		from, to *model.Account
	}{
		{a, b},
		{b, a},
		{b, c},
	}
	for i, p := range pairs {
		tr := testutil.NewTestTransfer(t, p.from.Address, p.to.Address, 100)
		tr.ID = testutil.UniqueID("hist")
		tr.CreatedAt = base.Add(time.Duration(i) * time.Second)
		if err := repo.ExecuteTransfer(ctx, tr); err != nil {
			t.Fatalf("ExecuteTransfer failed: %v", err)
		}
	}

	rows, _, err := repo.ListTransfers(ctx, TransferFilter{Address: a.Address}, "", 10)
	if err != nil {
		t.Fatalf("ListTransfers failed: %v", err)
	}
	if len(rows) != 2 {
		t.Errorf("transfers touching a = %d, want 2", len(rows))
	}

	rows, _, err = repo.ListTransfers(ctx, TransferFilter{Address: c.Address}, "", 10)
	if err != nil {
		t.Fatalf("ListTransfers failed: %v", err)
	}
	if len(rows) != 1 {
		t.Errorf("transfers touching c = %d, want 1", len(rows))
	}

	// Pagination over b's three rows
	first, cursor, err := repo.ListTransfers(ctx, TransferFilter{Address: b.Address}, "", 2)
	if err != nil {
		t.Fatalf("ListTransfers (page 1) failed: %v", err)
	}
	if len(first) != 2 || cursor == "" {
		t.Fatalf("page 1: len=%d cursor=%q, want 2 rows and a cursor", len(first), cursor)
	}
	second, next, err := repo.ListTransfers(ctx, TransferFilter{Address: b.Address}, cursor, 2)
	if err != nil {
		t.Fatalf("ListTransfers (page 2) failed: %v", err)
	}
	if len(second) != 1 {
		t.Errorf("page 2 len = %d, want 1", len(second))
	}
	if next != "" {
		t.Errorf("page 2 cursor = %q, want empty", next)
	}
}

// ============================================================================
// Test Environment Setup
// ============================================================================

func newLedgerTestEnv(t *testing.T) (context.Context, *Repository) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration tests in short mode")
	}

	ctx := context.Background()
	dbURL := testutil.RequireEnv(t, "DATABASE_URL")

	repo, err := New(ctx, dbURL)
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	t.Cleanup(repo.Close)

	unlock, err := testutil.AcquireDBLock(ctx, repo.Pool())
	if err != nil {
		t.Fatalf("acquire db lock: %v", err)
	}
	t.Cleanup(func() {
		_ = unlock()
	})

	if err := testutil.ResetLedgerSchema(ctx, repo.Pool()); err != nil {
		t.Fatalf("reset ledger schema: %v", err)
	}

	return ctx, repo
}

func mustCreateAccounts(ctx context.Context, t *testing.T, repo *Repository, accounts ...*model.Account) {
	t.Helper()
	for _, account := range accounts {
		if err := repo.CreateAccount(ctx, account); err != nil {
			t.Fatalf("CreateAccount(%s) failed: %v", account.Authority, err)
		}
	}
}
