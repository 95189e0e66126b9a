package service

import (
	"context"
	"errors"
	"strings"
	"testing"
)

// The validation tests below exercise the paths that reject input
// before any store access, so the services run with nil dependencies.

func TestCreateAccount_Validation(t *testing.T) {
	svc := NewAccountService(nil, nil, nil, nil)
	ctx := context.Background()

	testCases := []struct {
		name    string
		input   CreateAccountInput
		wantErr error
	}{
		{
			name:    "missing authority",
			input:   CreateAccountInput{Name: "Alice", Age: 30},
			wantErr: ErrAuthorityRequired,
		},
		{
			name:    "name too long",
			input:   CreateAccountInput{Authority: "alice", Name: strings.Repeat("a", 33), Age: 30},
			wantErr: ErrNameTooLong,
		},
		{
			name:    "zero age",
			input:   CreateAccountInput{Authority: "alice", Name: "Alice", Age: 0},
			wantErr: ErrInvalidAge,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.CreateAccount(ctx, tc.input)
			if !errors.Is(err, tc.wantErr) {
				t.Errorf("err = %v, want %v", err, tc.wantErr)
			}
		})
	}
}

func TestValidateProfile_EmptyNameAllowed(t *testing.T) {
	// Length is the only name constraint; an unnamed account is
	// creatable and simply reports invalid until it is named.
	if err := validateProfile("", 30); err != nil {
		t.Errorf("validateProfile with empty name = %v, want nil", err)
	}

	if err := validateProfile(strings.Repeat("a", 32), 30); err != nil {
		t.Errorf("validateProfile at max length = %v, want nil", err)
	}

	if err := validateProfile(strings.Repeat("a", 33), 30); !errors.Is(err, ErrNameTooLong) {
		t.Errorf("validateProfile over max length = %v, want ErrNameTooLong", err)
	}
}

func TestGetAccountByAuthority_RequiresAuthority(t *testing.T) {
	svc := NewAccountService(nil, nil, nil, nil)

	_, err := svc.GetAccountByAuthority(context.Background(), "")
	if !errors.Is(err, ErrAuthorityRequired) {
		t.Errorf("err = %v, want ErrAuthorityRequired", err)
	}
}

func TestListAccounts_InvalidStatus(t *testing.T) {
	svc := NewAccountService(nil, nil, nil, nil)

	_, err := svc.ListAccounts(context.Background(), ListAccountsInput{Status: "suspended"})
	if !errors.Is(err, ErrInvalidStatus) {
		t.Errorf("err = %v, want ErrInvalidStatus", err)
	}
}

func TestTransfer_Validation(t *testing.T) {
	svc := NewTransferService(nil, nil, nil, nil, 100, nil)
	ctx := context.Background()

	addr := strings.Repeat("ab", 32)
	other := strings.Repeat("cd", 32)

	testCases := []struct {
		name    string
		input   TransferInput
		wantErr error
	}{
		{
			name:    "missing from address",
			input:   TransferInput{ToAddress: addr, Authority: "alice", Amount: 100},
			wantErr: ErrAddressRequired,
		},
		{
			name:    "missing to address",
			input:   TransferInput{FromAddress: addr, Authority: "alice", Amount: 100},
			wantErr: ErrAddressRequired,
		},
		{
			name:    "zero amount",
			input:   TransferInput{FromAddress: addr, ToAddress: other, Authority: "alice"},
			wantErr: ErrInvalidAmount,
		},
		{
			name:    "self transfer",
			input:   TransferInput{FromAddress: addr, ToAddress: addr, Authority: "alice", Amount: 100},
			wantErr: ErrSelfTransfer,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Transfer(ctx, tc.input)
			if !errors.Is(err, tc.wantErr) {
				t.Errorf("err = %v, want %v", err, tc.wantErr)
			}
		})
	}
}

func TestCredit_Validation(t *testing.T) {
	svc := NewTransferService(nil, nil, nil, nil, 100, nil)
	ctx := context.Background()

	_, err := svc.Credit(ctx, CreditInput{Amount: 100})
	if !errors.Is(err, ErrAddressRequired) {
		t.Errorf("err = %v, want ErrAddressRequired", err)
	}

	_, err = svc.Credit(ctx, CreditInput{ToAddress: strings.Repeat("ab", 32)})
	if !errors.Is(err, ErrInvalidAmount) {
		t.Errorf("err = %v, want ErrInvalidAmount", err)
	}
}

func TestListTransfers_RequiresAddress(t *testing.T) {
	svc := NewTransferService(nil, nil, nil, nil, 100, nil)

	_, err := svc.ListTransfers(context.Background(), ListTransfersInput{})
	if !errors.Is(err, ErrAddressRequired) {
		t.Errorf("err = %v, want ErrAddressRequired", err)
	}
}

func TestQuoteFee(t *testing.T) {
	svc := NewTransferService(nil, nil, nil, nil, 100, nil)

	fee, err := svc.QuoteFee(1000)
	if err != nil {
		t.Fatalf("QuoteFee failed: %v", err)
	}
	if fee != 10 {
		t.Errorf("fee = %d, want 10", fee)
	}

	if _, err := svc.QuoteFee(0); !errors.Is(err, ErrInvalidAmount) {
		t.Errorf("err = %v, want ErrInvalidAmount", err)
	}

	// Zero rate quotes zero fee
	noFee := NewTransferService(nil, nil, nil, nil, 0, nil)
	fee, err = noFee.QuoteFee(1000)
	if err != nil {
		t.Fatalf("QuoteFee failed: %v", err)
	}
	if fee != 0 {
		t.Errorf("fee = %d, want 0 at zero rate", fee)
	}
}
