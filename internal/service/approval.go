package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/banpacifico/core-api/internal/domain"
	"github.com/banpacifico/core-api/internal/ledger"
	"github.com/banpacifico/core-api/internal/logging"
	"github.com/banpacifico/core-api/internal/repository"
)

type reviewStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.HighValueOperation, error)
	GetForUpdate(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*domain.HighValueOperation, error)
	List(ctx context.Context, filter repository.ListFilter) ([]domain.HighValueOperation, error)
	UpdateStatus(ctx context.Context, tx *sql.Tx, op *domain.HighValueOperation, from domain.OperationStatus) error
	AddNote(ctx context.Context, note *domain.OperationNote) error
	GetNotes(ctx context.Context, operationID uuid.UUID) ([]domain.OperationNote, error)
}

// ApprovalService drives high-value operations through review. The decision
// and the settlement (or release) of the backing hold commit atomically, so
// an approved transfer can never be left half-settled.
type ApprovalService struct {
	db            *sql.DB
	accounts      accountStore
	beneficiaries beneficiaryStore
	transactions  transactionStore
	events        eventStore
	operations    reviewStore
	ledger        *ledger.Ledger
	now           func() time.Time
}

func NewApprovalService(
	db *sql.DB,
	accounts accountStore,
	beneficiaries beneficiaryStore,
	transactions transactionStore,
	events eventStore,
	operations reviewStore,
	ldg *ledger.Ledger,
) *ApprovalService {
	return &ApprovalService{
		db:            db,
		accounts:      accounts,
		beneficiaries: beneficiaries,
		transactions:  transactions,
		events:        events,
		operations:    operations,
		ledger:        ldg,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// List returns operations matching the filter. Clients are always scoped to
// their own operations regardless of the filter they send.
func (s *ApprovalService) List(ctx context.Context, actor domain.Actor, filter repository.ListFilter) ([]domain.HighValueOperation, error) {
	if actor.Role == domain.RoleCliente {
		filter.ClienteID = actor.ID
	}
	ops, err := s.operations.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("List: %w", err)
	}
	return ops, nil
}

// Get returns one operation with its note history.
func (s *ApprovalService) Get(ctx context.Context, actor domain.Actor, id uuid.UUID) (*domain.HighValueOperation, []domain.OperationNote, error) {
	op, err := s.operations.GetByID(ctx, id)
	if err != nil {
		return nil, nil, fmt.Errorf("Get: %w", err)
	}
	if actor.Role == domain.RoleCliente && op.ClienteID != actor.ID {
		return nil, nil, fmt.Errorf("Get: %w", domain.ErrNotFound)
	}

	notes, err := s.operations.GetNotes(ctx, id)
	if err != nil {
		return nil, nil, fmt.Errorf("Get: %w", err)
	}
	return op, notes, nil
}

// CompleteVerification records the outcome of the out-of-band check. A
// successful check moves the operation to Verificada; a failed one leaves it
// Pendiente with the failure on record, so a reviewer can retry or reject.
func (s *ApprovalService) CompleteVerification(ctx context.Context, actor domain.Actor, operationID uuid.UUID, result domain.VerificationStatus) (*domain.HighValueOperation, error) {
	if !actor.Role.CanReview() {
		return nil, fmt.Errorf("CompleteVerification: %w", domain.ErrActorNotAllowed)
	}
	if result != domain.VerificationCompletada && result != domain.VerificationFallida {
		return nil, fmt.Errorf("CompleteVerification: result %q: %w", result, domain.ErrInvalidTransition)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("CompleteVerification: begin tx: %w", err)
	}
	defer tx.Rollback()

	op, err := s.operations.GetForUpdate(ctx, tx, operationID)
	if err != nil {
		return nil, fmt.Errorf("CompleteVerification: %w", err)
	}
	if op.Estado != domain.OperationStatusPendiente {
		return nil, fmt.Errorf("CompleteVerification: operation is %s: %w", op.Estado, domain.ErrInvalidTransition)
	}

	now := s.now()
	if op.Verificacion == nil {
		op.Verificacion = &domain.Verification{Tipo: "Manual"}
	}
	op.Verificacion.Estado = result
	op.Verificacion.Fecha = &now

	from := op.Estado
	if result == domain.VerificationCompletada {
		op.Estado = domain.OperationStatusVerificada
	}
	if err := s.operations.UpdateStatus(ctx, tx, op, from); err != nil {
		return nil, fmt.Errorf("CompleteVerification: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("CompleteVerification: commit: %w", err)
	}
	return op, nil
}

// Approve settles the held transfer: the hold commits against the source,
// an in-bank destination is credited, and the transaction goes Exitosa. A
// Pendiente operation that needs no verification is verified implicitly.
func (s *ApprovalService) Approve(ctx context.Context, actor domain.Actor, operationID uuid.UUID, nota string) (*domain.HighValueOperation, error) {
	if !actor.Role.CanReview() {
		return nil, fmt.Errorf("Approve: %w", domain.ErrActorNotAllowed)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("Approve: begin tx: %w", err)
	}
	defer tx.Rollback()

	op, err := s.operations.GetForUpdate(ctx, tx, operationID)
	if err != nil {
		return nil, fmt.Errorf("Approve: %w", err)
	}

	if op.Estado == domain.OperationStatusPendiente && !op.RequiereVerificacion {
		from := op.Estado
		op.Estado = domain.OperationStatusVerificada
		if err := s.operations.UpdateStatus(ctx, tx, op, from); err != nil {
			return nil, fmt.Errorf("Approve: %w", err)
		}
	}
	if op.Estado != domain.OperationStatusVerificada {
		return nil, fmt.Errorf("Approve: operation is %s: %w", op.Estado, domain.ErrInvalidTransition)
	}

	tn, err := s.transactions.GetForUpdate(ctx, tx, op.TransactionID)
	if err != nil {
		return nil, fmt.Errorf("Approve: %w", err)
	}
	if tn.Estado != domain.TransactionStatusPendienteAprobacion {
		return nil, fmt.Errorf("Approve: transaction is %s: %w", tn.Estado, domain.ErrInvalidTransition)
	}

	ids := []uuid.UUID{tn.CuentaOrigenID}
	if tn.CuentaDestinoID != nil {
		ids = append(ids, *tn.CuentaDestinoID)
	}
	if err := lockInOrder(ctx, tx, s.accounts, ids...); err != nil {
		return nil, fmt.Errorf("Approve: %w", err)
	}

	hold, err := s.ledger.ActiveHold(ctx, tx, tn.ID)
	if err != nil {
		return nil, fmt.Errorf("Approve: %w", err)
	}
	if err := s.ledger.Commit(ctx, tx, hold); err != nil {
		return nil, fmt.Errorf("Approve: %w", err)
	}
	if tn.CuentaDestinoID != nil {
		if err := s.ledger.ApplyCredit(ctx, tx, *tn.CuentaDestinoID, domain.NewMoney(tn.Monto, tn.Moneda)); err != nil {
			return nil, fmt.Errorf("Approve: %w", err)
		}
	}

	now := s.now()
	if err := s.transactions.UpdateStatus(ctx, tx, tn.ID, tn.Estado,
		domain.TransactionStatusExitosa, nil, &now); err != nil {
		return nil, fmt.Errorf("Approve: %w", err)
	}
	if err := s.appendEvent(ctx, tx, tn.ID, domain.TransactionEventSettled, actor.String(), nil); err != nil {
		return nil, fmt.Errorf("Approve: %w", err)
	}

	from := op.Estado
	actorName := actor.String()
	op.Estado = domain.OperationStatusAprobada
	op.AprobadoPor = &actorName
	if err := s.operations.UpdateStatus(ctx, tx, op, from); err != nil {
		return nil, fmt.Errorf("Approve: %w", err)
	}

	if tn.BeneficiarioID != nil {
		if err := s.beneficiaries.SyncPendingOperations(ctx, tx, *tn.BeneficiarioID); err != nil {
			return nil, fmt.Errorf("Approve: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("Approve: commit: %w", err)
	}

	s.note(ctx, op.ID, actor, nota)
	logging.FromContext(ctx).Info("operation approved",
		"operation_id", op.ID, "transaction_id", tn.ID, "aprobado_por", actorName)
	return op, nil
}

// Reject closes the review, releases the hold and marks the transaction
// Rechazada. The reason is mandatory and permanent.
func (s *ApprovalService) Reject(ctx context.Context, actor domain.Actor, operationID uuid.UUID, razon, nota string) (*domain.HighValueOperation, error) {
	if !actor.Role.CanReview() {
		return nil, fmt.Errorf("Reject: %w", domain.ErrActorNotAllowed)
	}
	if razon == "" {
		return nil, fmt.Errorf("Reject: %w", domain.ErrReasonRequired)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("Reject: begin tx: %w", err)
	}
	defer tx.Rollback()

	op, err := s.operations.GetForUpdate(ctx, tx, operationID)
	if err != nil {
		return nil, fmt.Errorf("Reject: %w", err)
	}
	if !op.Estado.CanTransitionTo(domain.OperationStatusRechazada) {
		return nil, fmt.Errorf("Reject: operation is %s: %w", op.Estado, domain.ErrInvalidTransition)
	}

	tn, err := s.transactions.GetForUpdate(ctx, tx, op.TransactionID)
	if err != nil {
		return nil, fmt.Errorf("Reject: %w", err)
	}
	if tn.Estado != domain.TransactionStatusPendienteAprobacion {
		return nil, fmt.Errorf("Reject: transaction is %s: %w", tn.Estado, domain.ErrInvalidTransition)
	}

	if err := lockInOrder(ctx, tx, s.accounts, tn.CuentaOrigenID); err != nil {
		return nil, fmt.Errorf("Reject: %w", err)
	}
	hold, err := s.ledger.ActiveHold(ctx, tx, tn.ID)
	if err != nil {
		return nil, fmt.Errorf("Reject: %w", err)
	}
	if err := s.ledger.Release(ctx, tx, hold); err != nil {
		return nil, fmt.Errorf("Reject: %w", err)
	}

	if err := s.transactions.UpdateStatus(ctx, tx, tn.ID, tn.Estado,
		domain.TransactionStatusRechazada, &razon, nil); err != nil {
		return nil, fmt.Errorf("Reject: %w", err)
	}
	if err := s.appendEvent(ctx, tx, tn.ID, domain.TransactionEventRejected, actor.String(), &razon); err != nil {
		return nil, fmt.Errorf("Reject: %w", err)
	}

	from := op.Estado
	actorName := actor.String()
	op.Estado = domain.OperationStatusRechazada
	op.RazonRechazo = &razon
	op.RechazadoPor = &actorName
	if err := s.operations.UpdateStatus(ctx, tx, op, from); err != nil {
		return nil, fmt.Errorf("Reject: %w", err)
	}

	if tn.BeneficiarioID != nil {
		if err := s.beneficiaries.SyncPendingOperations(ctx, tx, *tn.BeneficiarioID); err != nil {
			return nil, fmt.Errorf("Reject: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("Reject: commit: %w", err)
	}

	s.note(ctx, op.ID, actor, nota)
	return op, nil
}

// Block freezes the review indefinitely without deciding it. The backing
// hold and transaction stay exactly as they are until Unblock.
func (s *ApprovalService) Block(ctx context.Context, actor domain.Actor, operationID uuid.UUID, razon string) (*domain.HighValueOperation, error) {
	if !actor.Role.CanReview() {
		return nil, fmt.Errorf("Block: %w", domain.ErrActorNotAllowed)
	}
	if razon == "" {
		return nil, fmt.Errorf("Block: %w", domain.ErrReasonRequired)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("Block: begin tx: %w", err)
	}
	defer tx.Rollback()

	op, err := s.operations.GetForUpdate(ctx, tx, operationID)
	if err != nil {
		return nil, fmt.Errorf("Block: %w", err)
	}
	if !op.Estado.CanTransitionTo(domain.OperationStatusBloqueada) {
		return nil, fmt.Errorf("Block: operation is %s: %w", op.Estado, domain.ErrInvalidTransition)
	}

	from := op.Estado
	op.Estado = domain.OperationStatusBloqueada
	op.RazonBloqueo = &razon
	if err := s.operations.UpdateStatus(ctx, tx, op, from); err != nil {
		return nil, fmt.Errorf("Block: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("Block: commit: %w", err)
	}

	s.note(ctx, op.ID, actor, razon)
	return op, nil
}

// Unblock returns a blocked operation to Verificada for a fresh decision and
// clears the block reason.
func (s *ApprovalService) Unblock(ctx context.Context, actor domain.Actor, operationID uuid.UUID, nota string) (*domain.HighValueOperation, error) {
	if !actor.Role.CanReview() {
		return nil, fmt.Errorf("Unblock: %w", domain.ErrActorNotAllowed)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("Unblock: begin tx: %w", err)
	}
	defer tx.Rollback()

	op, err := s.operations.GetForUpdate(ctx, tx, operationID)
	if err != nil {
		return nil, fmt.Errorf("Unblock: %w", err)
	}
	if op.Estado != domain.OperationStatusBloqueada {
		return nil, fmt.Errorf("Unblock: operation is %s: %w", op.Estado, domain.ErrInvalidTransition)
	}

	from := op.Estado
	op.Estado = domain.OperationStatusVerificada
	op.RazonBloqueo = nil
	if err := s.operations.UpdateStatus(ctx, tx, op, from); err != nil {
		return nil, fmt.Errorf("Unblock: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("Unblock: commit: %w", err)
	}

	s.note(ctx, op.ID, actor, nota)
	return op, nil
}

// Complete is the bookkeeping close of an approved operation once its
// downstream effects are confirmed.
func (s *ApprovalService) Complete(ctx context.Context, actor domain.Actor, operationID uuid.UUID) (*domain.HighValueOperation, error) {
	if !actor.Role.CanReview() {
		return nil, fmt.Errorf("Complete: %w", domain.ErrActorNotAllowed)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("Complete: begin tx: %w", err)
	}
	defer tx.Rollback()

	op, err := s.operations.GetForUpdate(ctx, tx, operationID)
	if err != nil {
		return nil, fmt.Errorf("Complete: %w", err)
	}
	if !op.Estado.CanTransitionTo(domain.OperationStatusCompletada) {
		return nil, fmt.Errorf("Complete: operation is %s: %w", op.Estado, domain.ErrInvalidTransition)
	}

	from := op.Estado
	op.Estado = domain.OperationStatusCompletada
	if err := s.operations.UpdateStatus(ctx, tx, op, from); err != nil {
		return nil, fmt.Errorf("Complete: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("Complete: commit: %w", err)
	}
	return op, nil
}

// AddNote appends to the operation's note history. Notes are never edited or
// removed.
func (s *ApprovalService) AddNote(ctx context.Context, actor domain.Actor, operationID uuid.UUID, nota string) (*domain.OperationNote, error) {
	if !actor.Role.CanReview() {
		return nil, fmt.Errorf("AddNote: %w", domain.ErrActorNotAllowed)
	}
	if nota == "" {
		return nil, fmt.Errorf("AddNote: %w", domain.ErrReasonRequired)
	}
	if _, err := s.operations.GetByID(ctx, operationID); err != nil {
		return nil, fmt.Errorf("AddNote: %w", err)
	}

	note := &domain.OperationNote{
		ID:          uuid.New(),
		OperationID: operationID,
		Actor:       actor.String(),
		Nota:        nota,
		CreatedAt:   s.now(),
	}
	if err := s.operations.AddNote(ctx, note); err != nil {
		return nil, fmt.Errorf("AddNote: %w", err)
	}
	return note, nil
}

// note best-effort appends a decision note after the decision committed.
func (s *ApprovalService) note(ctx context.Context, operationID uuid.UUID, actor domain.Actor, nota string) {
	if nota == "" {
		return
	}
	err := s.operations.AddNote(ctx, &domain.OperationNote{
		ID:          uuid.New(),
		OperationID: operationID,
		Actor:       actor.String(),
		Nota:        nota,
		CreatedAt:   s.now(),
	})
	if err != nil {
		logging.FromContext(ctx).Error("append operation note",
			"operation_id", operationID, "error", err)
	}
}

func (s *ApprovalService) appendEvent(ctx context.Context, tx *sql.Tx, transactionID uuid.UUID, eventType domain.TransactionEventType, actor string, detail *string) error {
	return s.events.Create(ctx, tx, &domain.TransactionEvent{
		ID:            uuid.New(),
		TransactionID: transactionID,
		EventType:     eventType,
		Actor:         actor,
		Detail:        detail,
		CreatedAt:     s.now(),
	})
}
