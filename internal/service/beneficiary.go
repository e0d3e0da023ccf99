package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/banpacifico/core-api/internal/domain"
)

type beneficiaryAdminStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Beneficiary, error)
	GetByClientID(ctx context.Context, clienteID uuid.UUID) ([]domain.Beneficiary, error)
	Create(ctx context.Context, b *domain.Beneficiary) error
	UpdateAlias(ctx context.Context, id uuid.UUID, alias string) error
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to domain.BeneficiaryStatus) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// BeneficiaryService manages the client's registered destinations. New
// beneficiaries start Pendiente and only become usable as transfer
// destinations once activated.
type BeneficiaryService struct {
	beneficiaries beneficiaryAdminStore
	now           func() time.Time
}

func NewBeneficiaryService(beneficiaries beneficiaryAdminStore) *BeneficiaryService {
	return &BeneficiaryService{
		beneficiaries: beneficiaries,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

type CreateBeneficiaryInput struct {
	Alias        string
	Banco        string
	NumeroCuenta string
	Moneda       domain.Currency
	Pais         string
}

func (s *BeneficiaryService) List(ctx context.Context, actor domain.Actor) ([]domain.Beneficiary, error) {
	bs, err := s.beneficiaries.GetByClientID(ctx, actor.ID)
	if err != nil {
		return nil, fmt.Errorf("List: %w", err)
	}
	return bs, nil
}

func (s *BeneficiaryService) Get(ctx context.Context, actor domain.Actor, id uuid.UUID) (*domain.Beneficiary, error) {
	b, err := s.owned(ctx, actor, id)
	if err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}
	return b, nil
}

func (s *BeneficiaryService) Create(ctx context.Context, actor domain.Actor, in CreateBeneficiaryInput) (*domain.Beneficiary, error) {
	in.Alias = strings.TrimSpace(in.Alias)
	if in.Alias == "" || in.Banco == "" || in.NumeroCuenta == "" {
		return nil, fmt.Errorf("Create: %w", domain.ErrReasonRequired)
	}
	if !in.Moneda.IsValid() {
		return nil, fmt.Errorf("Create: %w", domain.ErrInvalidCurrency)
	}

	b := &domain.Beneficiary{
		ID:           uuid.New(),
		ClienteID:    actor.ID,
		Alias:        in.Alias,
		Banco:        in.Banco,
		NumeroCuenta: in.NumeroCuenta,
		Moneda:       in.Moneda,
		Pais:         in.Pais,
		Estado:       domain.BeneficiaryStatusPendiente,
		CreatedAt:    s.now(),
	}
	if err := s.beneficiaries.Create(ctx, b); err != nil {
		return nil, fmt.Errorf("Create: %w", err)
	}
	return b, nil
}

// UpdateStatus moves the beneficiary along its lifecycle, e.g. the
// activation that follows the bank's own account validation.
func (s *BeneficiaryService) UpdateStatus(ctx context.Context, actor domain.Actor, id uuid.UUID, to domain.BeneficiaryStatus) (*domain.Beneficiary, error) {
	b, err := s.owned(ctx, actor, id)
	if err != nil {
		return nil, fmt.Errorf("UpdateStatus: %w", err)
	}
	if !b.CanTransitionTo(to) {
		return nil, fmt.Errorf("UpdateStatus: %s -> %s: %w", b.Estado, to, domain.ErrInvalidTransition)
	}
	if err := s.beneficiaries.UpdateStatus(ctx, id, b.Estado, to); err != nil {
		return nil, fmt.Errorf("UpdateStatus: %w", err)
	}
	b.Estado = to
	return b, nil
}

func (s *BeneficiaryService) UpdateAlias(ctx context.Context, actor domain.Actor, id uuid.UUID, alias string) (*domain.Beneficiary, error) {
	alias = strings.TrimSpace(alias)
	if alias == "" {
		return nil, fmt.Errorf("UpdateAlias: %w", domain.ErrReasonRequired)
	}

	b, err := s.owned(ctx, actor, id)
	if err != nil {
		return nil, fmt.Errorf("UpdateAlias: %w", err)
	}
	if err := s.beneficiaries.UpdateAlias(ctx, id, alias); err != nil {
		return nil, fmt.Errorf("UpdateAlias: %w", err)
	}
	b.Alias = alias
	return b, nil
}

// Delete removes the beneficiary unless a pending high-value operation still
// references it, in which case the caller gets ErrBeneficiaryBusy.
func (s *BeneficiaryService) Delete(ctx context.Context, actor domain.Actor, id uuid.UUID) error {
	if _, err := s.owned(ctx, actor, id); err != nil {
		return fmt.Errorf("Delete: %w", err)
	}
	if err := s.beneficiaries.Delete(ctx, id); err != nil {
		return fmt.Errorf("Delete: %w", err)
	}
	return nil
}

func (s *BeneficiaryService) owned(ctx context.Context, actor domain.Actor, id uuid.UUID) (*domain.Beneficiary, error) {
	b, err := s.beneficiaries.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor.Role == domain.RoleCliente && b.ClienteID != actor.ID {
		return nil, domain.ErrNotFound
	}
	return b, nil
}
