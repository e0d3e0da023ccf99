// Package ledger is the only writer of account balances. Balances move
// through a hold protocol: reserve decrements the available balance and
// records a hold, commit settles the hold against the real balance, release
// puts the available balance back. Each operation runs inside the caller's
// database transaction under the account's row lock, so holds against one
// account are never evaluated against a stale snapshot.
package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/banpacifico/core-api/internal/domain"
	"github.com/banpacifico/core-api/internal/repository"
)

type accountRepo interface {
	GetForUpdate(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*domain.Account, error)
	UpdateBalances(ctx context.Context, tx *sql.Tx, id uuid.UUID, balance, available, newVersion int64) error
}

type holdRepo interface {
	Create(ctx context.Context, tx *sql.Tx, h *repository.Hold) error
	GetActiveByTransaction(ctx context.Context, tx *sql.Tx, transactionID uuid.UUID) (*repository.Hold, error)
	LinkTransaction(ctx context.Context, tx *sql.Tx, holdID, transactionID uuid.UUID) error
	Resolve(ctx context.Context, tx *sql.Tx, id uuid.UUID, to repository.HoldStatus) error
}

type Ledger struct {
	accounts accountRepo
	holds    holdRepo
}

func New(accounts accountRepo, holds holdRepo) *Ledger {
	return &Ledger{accounts: accounts, holds: holds}
}

// Reserve places a hold for amount against the account. The amount must be
// denominated in the account's currency; Money arithmetic surfaces a mismatch
// as ErrCurrencyMismatch before any balance moves. Fails with
// ErrAccountNotActive unless the account is Activa, and with
// ErrInsufficientFunds when the available balance cannot cover the amount.
func (l *Ledger) Reserve(ctx context.Context, tx *sql.Tx, accountID uuid.UUID, amount domain.Money) (*repository.Hold, error) {
	if !amount.IsPositive() {
		return nil, fmt.Errorf("Reserve: %w", domain.ErrInvalidAmount)
	}

	acct, err := l.accounts.GetForUpdate(ctx, tx, accountID)
	if err != nil {
		return nil, fmt.Errorf("Reserve: %w", err)
	}

	if acct.Estado != domain.AccountStatusActiva {
		return nil, fmt.Errorf("Reserve: account %s is %s: %w", acct.NumeroCuenta, acct.Estado, domain.ErrAccountNotActive)
	}

	available := domain.NewMoney(acct.AvailableBalance, acct.Moneda)
	remaining, err := available.Sub(amount)
	if err != nil {
		return nil, fmt.Errorf("Reserve: account %s: %w", acct.NumeroCuenta, err)
	}
	if remaining.IsNegative() {
		return nil, fmt.Errorf("Reserve: %w", domain.ErrInsufficientFunds)
	}

	if err := l.accounts.UpdateBalances(ctx, tx, accountID, acct.Balance, remaining.Amount, acct.Version+1); err != nil {
		return nil, fmt.Errorf("Reserve: %w", err)
	}

	hold := &repository.Hold{
		ID:        uuid.New(),
		AccountID: accountID,
		Amount:    amount.Amount,
		Estado:    repository.HoldStatusActiva,
		CreatedAt: time.Now().UTC(),
	}
	if err := l.holds.Create(ctx, tx, hold); err != nil {
		return nil, fmt.Errorf("Reserve: %w", err)
	}
	return hold, nil
}

// Commit settles an active hold: the real balance drops by the held amount
// and the hold is discarded. The available balance was already decremented
// at reserve time.
func (l *Ledger) Commit(ctx context.Context, tx *sql.Tx, hold *repository.Hold) error {
	acct, err := l.accounts.GetForUpdate(ctx, tx, hold.AccountID)
	if err != nil {
		return fmt.Errorf("Commit: %w", err)
	}

	if err := l.holds.Resolve(ctx, tx, hold.ID, repository.HoldStatusConfirmada); err != nil {
		return fmt.Errorf("Commit: %w", err)
	}

	if err := l.accounts.UpdateBalances(ctx, tx, hold.AccountID, acct.Balance-hold.Amount, acct.AvailableBalance, acct.Version+1); err != nil {
		return fmt.Errorf("Commit: %w", err)
	}
	return nil
}

// Release cancels an active hold, restoring the available balance without
// touching the real balance. Used on failure and on rejection.
func (l *Ledger) Release(ctx context.Context, tx *sql.Tx, hold *repository.Hold) error {
	acct, err := l.accounts.GetForUpdate(ctx, tx, hold.AccountID)
	if err != nil {
		return fmt.Errorf("Release: %w", err)
	}

	if err := l.holds.Resolve(ctx, tx, hold.ID, repository.HoldStatusLiberada); err != nil {
		return fmt.Errorf("Release: %w", err)
	}

	if err := l.accounts.UpdateBalances(ctx, tx, hold.AccountID, acct.Balance, acct.AvailableBalance+hold.Amount, acct.Version+1); err != nil {
		return fmt.Errorf("Release: %w", err)
	}
	return nil
}

// ApplyCredit increases both balances, e.g. the destination side of an
// internal transfer. The amount must match the account's currency. Credits
// land even on a blocked account; only Cerrada refuses funds.
func (l *Ledger) ApplyCredit(ctx context.Context, tx *sql.Tx, accountID uuid.UUID, amount domain.Money) error {
	if !amount.IsPositive() {
		return fmt.Errorf("ApplyCredit: %w", domain.ErrInvalidAmount)
	}

	acct, err := l.accounts.GetForUpdate(ctx, tx, accountID)
	if err != nil {
		return fmt.Errorf("ApplyCredit: %w", err)
	}
	if acct.Estado == domain.AccountStatusCerrada {
		return fmt.Errorf("ApplyCredit: account %s: %w", acct.NumeroCuenta, domain.ErrAccountClosed)
	}

	balance, err := domain.NewMoney(acct.Balance, acct.Moneda).Add(amount)
	if err != nil {
		return fmt.Errorf("ApplyCredit: account %s: %w", acct.NumeroCuenta, err)
	}
	available, err := domain.NewMoney(acct.AvailableBalance, acct.Moneda).Add(amount)
	if err != nil {
		return fmt.Errorf("ApplyCredit: account %s: %w", acct.NumeroCuenta, err)
	}

	if err := l.accounts.UpdateBalances(ctx, tx, accountID, balance.Amount, available.Amount, acct.Version+1); err != nil {
		return fmt.Errorf("ApplyCredit: %w", err)
	}
	return nil
}

// ActiveHold resolves the hold backing a pending transaction, locked for the
// remainder of the caller's transaction.
func (l *Ledger) ActiveHold(ctx context.Context, tx *sql.Tx, transactionID uuid.UUID) (*repository.Hold, error) {
	hold, err := l.holds.GetActiveByTransaction(ctx, tx, transactionID)
	if err != nil {
		return nil, fmt.Errorf("ActiveHold: %w", err)
	}
	return hold, nil
}

// LinkHold attaches a freshly reserved hold to the transaction it secures.
func (l *Ledger) LinkHold(ctx context.Context, tx *sql.Tx, holdID, transactionID uuid.UUID) error {
	if err := l.holds.LinkTransaction(ctx, tx, holdID, transactionID); err != nil {
		return fmt.Errorf("LinkHold: %w", err)
	}
	return nil
}
