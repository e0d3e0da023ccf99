package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/banpacifico/core-api/internal/domain"
)

type accountAdminStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Account, error)
	GetByClientID(ctx context.Context, clienteID uuid.UUID) ([]domain.Account, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to domain.AccountStatus) error
}

// AccountService exposes account lookups and the account lifecycle. Balance
// mutations never happen here; those belong to the ledger.
type AccountService struct {
	accounts accountAdminStore
}

func NewAccountService(accounts accountAdminStore) *AccountService {
	return &AccountService{accounts: accounts}
}

func (s *AccountService) List(ctx context.Context, actor domain.Actor) ([]domain.Account, error) {
	accounts, err := s.accounts.GetByClientID(ctx, actor.ID)
	if err != nil {
		return nil, fmt.Errorf("List: %w", err)
	}
	return accounts, nil
}

func (s *AccountService) Get(ctx context.Context, actor domain.Actor, id uuid.UUID) (*domain.Account, error) {
	acct, err := s.accounts.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}
	if actor.Role == domain.RoleCliente && acct.ClienteID != actor.ID {
		return nil, fmt.Errorf("Get: %w", domain.ErrNotFound)
	}
	return acct, nil
}

// UpdateStatus applies the account lifecycle. Closing requires a zero
// balance; blocking and unblocking are reviewer actions.
func (s *AccountService) UpdateStatus(ctx context.Context, actor domain.Actor, id uuid.UUID, to domain.AccountStatus) (*domain.Account, error) {
	if !actor.Role.CanReview() {
		return nil, fmt.Errorf("UpdateStatus: %w", domain.ErrActorNotAllowed)
	}

	acct, err := s.accounts.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("UpdateStatus: %w", err)
	}
	if !acct.CanTransitionTo(to) {
		return nil, fmt.Errorf("UpdateStatus: %s -> %s: %w", acct.Estado, to, domain.ErrInvalidTransition)
	}

	if err := s.accounts.UpdateStatus(ctx, id, acct.Estado, to); err != nil {
		return nil, fmt.Errorf("UpdateStatus: %w", err)
	}
	acct.Estado = to
	return acct, nil
}
