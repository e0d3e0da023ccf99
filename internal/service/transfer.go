package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/banpacifico/core-api/internal/config"
	"github.com/banpacifico/core-api/internal/domain"
	"github.com/banpacifico/core-api/internal/idempotency"
	"github.com/banpacifico/core-api/internal/ledger"
	"github.com/banpacifico/core-api/internal/logging"
	"github.com/banpacifico/core-api/internal/repository"
	"github.com/banpacifico/core-api/internal/risk"
)

type accountStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Account, error)
	GetForUpdate(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*domain.Account, error)
}

type beneficiaryStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Beneficiary, error)
	SyncPendingOperations(ctx context.Context, tx *sql.Tx, id uuid.UUID) error
}

type transactionStore interface {
	Create(ctx context.Context, tx *sql.Tx, t *domain.Transaction) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error)
	GetForUpdate(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*domain.Transaction, error)
	UpdateStatus(ctx context.Context, tx *sql.Tx, id uuid.UUID, from, to domain.TransactionStatus, failureReason *string, settledAt *time.Time) error
	SumSettledToday(ctx context.Context, q repository.Querier, accountID uuid.UUID, dayStart time.Time) (int64, error)
	ListDueScheduled(ctx context.Context, tx *sql.Tx, now time.Time, limit int) ([]domain.Transaction, error)
}

type eventStore interface {
	Create(ctx context.Context, tx *sql.Tx, event *domain.TransactionEvent) error
	GetByTransactionID(ctx context.Context, transactionID uuid.UUID) ([]domain.TransactionEvent, error)
}

type operationStore interface {
	Create(ctx context.Context, tx *sql.Tx, op *domain.HighValueOperation) error
	GetByTransactionID(ctx context.Context, transactionID uuid.UUID) (*domain.HighValueOperation, error)
	UpdateStatus(ctx context.Context, tx *sql.Tx, op *domain.HighValueOperation, from domain.OperationStatus) error
}

type classifier interface {
	Classify(ctx context.Context, in risk.Input) (risk.Assessment, error)
}

type executionGuard interface {
	Begin(ctx context.Context, key, requestHash string) (idempotency.Ticket, error)
	Finish(ctx context.Context, key string, transactionID uuid.UUID) error
	Abandon(ctx context.Context, key string) error
}

// TransferService authorizes and settles money movements. Settlement is
// all-or-nothing inside one database transaction; the idempotency guard
// collapses retries of the same key into a single execution.
type TransferService struct {
	db            *sql.DB
	accounts      accountStore
	beneficiaries beneficiaryStore
	transactions  transactionStore
	events        eventStore
	operations    operationStore
	ledger        *ledger.Ledger
	guard         executionGuard
	risk          classifier
	fees          *FeeTable
	config        *config.Config
	now           func() time.Time
}

func NewTransferService(
	db *sql.DB,
	accounts accountStore,
	beneficiaries beneficiaryStore,
	transactions transactionStore,
	events eventStore,
	operations operationStore,
	ldg *ledger.Ledger,
	guard executionGuard,
	risk classifier,
	fees *FeeTable,
	cfg *config.Config,
) *TransferService {
	return &TransferService{
		db:            db,
		accounts:      accounts,
		beneficiaries: beneficiaries,
		transactions:  transactions,
		events:        events,
		operations:    operations,
		ledger:        ldg,
		guard:         guard,
		risk:          risk,
		fees:          fees,
		config:        cfg,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// destination is the resolved target of a transfer: exactly one of account
// (same bank) or beneficiary (registered external destination) is set.
type destination struct {
	account     *domain.Account
	beneficiary *domain.Beneficiary
}

// externalTo reports whether the transfer leaves the client's own accounts,
// which decides the commission rate.
func (d destination) externalTo(source *domain.Account) bool {
	if d.beneficiary != nil {
		return true
	}
	return d.account != nil && d.account.ClienteID != source.ClienteID
}

// Precheck simulates a transfer without touching any state. Business
// rejections come back as data (PuedeEjecutar=false plus a message), so the
// client can show the outcome before the user commits.
func (s *TransferService) Precheck(ctx context.Context, actor domain.Actor, req domain.TransferRequest) (*domain.TransferPrecheck, error) {
	source, err := s.sourceAccount(ctx, actor, req.CuentaOrigenID)
	if err != nil {
		return nil, fmt.Errorf("Precheck: %w", err)
	}

	pc := &domain.TransferPrecheck{
		SaldoAntes: source.AvailableBalance,
		Monto:      req.Monto,
		MontoTotal: req.Monto,
		Moneda:     source.Moneda,
	}
	if req.Monto <= 0 {
		pc.Mensaje = "El monto debe ser mayor a cero"
		return pc, nil
	}

	dest, err := s.resolveDestination(ctx, source, req)
	if err != nil {
		if msg, ok := rejectionMessage(err); ok {
			pc.Mensaje = msg
			return pc, nil
		}
		return nil, fmt.Errorf("Precheck: %w", err)
	}

	now := s.now()
	pc.Comision = s.fees.Fee(domain.TransactionTypeTransferencia, dest.externalTo(source), req.Monto)
	pc.MontoTotal = req.Monto + pc.Comision
	pc.SaldoDespues = source.AvailableBalance - pc.MontoTotal

	settled, err := s.transactions.SumSettledToday(ctx, s.db, source.ID, dayStart(now))
	if err != nil {
		return nil, fmt.Errorf("Precheck: %w", err)
	}
	pc.LimiteDisponible = source.DailyLimit - settled
	if pc.LimiteDisponible < 0 {
		pc.LimiteDisponible = 0
	}

	assessment, err := s.classify(ctx, source, dest, req.Monto, now)
	if err != nil {
		return nil, fmt.Errorf("Precheck: %w", err)
	}
	pc.RequiereAprobacion = assessment.RequiresReview

	switch {
	case source.Estado != domain.AccountStatusActiva:
		pc.Mensaje = "La cuenta de origen no está activa"
	case req.Programada && s.validateSchedule(req.FechaProgramada, now) != nil:
		pc.Mensaje = "La fecha programada debe ser futura y dentro del horizonte permitido"
	case pc.SaldoDespues < 0:
		pc.Mensaje = "Fondos insuficientes"
	case pc.MontoTotal > pc.LimiteDisponible:
		pc.Mensaje = "El monto excede el límite diario disponible"
	default:
		pc.PuedeEjecutar = true
		if pc.RequiereAprobacion {
			pc.Mensaje = "La transferencia requerirá aprobación de un gestor"
		}
	}
	return pc, nil
}

// Execute runs a transfer to completion: settled, scheduled, held for
// approval, or recorded as failed. A replayed idempotency key returns the
// transaction produced by the first execution instead of running again.
// Business failures during settlement come back as a transaction in estado
// Fallida with nil error; only requests that never produced a transaction
// record return an error.
func (s *TransferService) Execute(ctx context.Context, actor domain.Actor, req domain.TransferRequest) (*domain.Transaction, error) {
	if req.IdempotencyKey == "" {
		return nil, fmt.Errorf("Execute: %w", domain.ErrIdempotencyKeyMissing)
	}
	if req.Monto <= 0 {
		return nil, fmt.Errorf("Execute: %w", domain.ErrInvalidAmount)
	}

	hash := requestHash(actor, req)
	ticket, err := s.guard.Begin(ctx, req.IdempotencyKey, hash)
	if errors.Is(err, domain.ErrVersionConflict) {
		// The previous owner abandoned the key between our insert and read.
		ticket, err = s.guard.Begin(ctx, req.IdempotencyKey, hash)
	}
	if err != nil {
		return nil, fmt.Errorf("Execute: %w", err)
	}

	if !ticket.IsNew {
		tn, err := s.transactions.GetByID(ctx, ticket.TransactionID)
		if err != nil {
			return nil, fmt.Errorf("Execute: replay: %w", err)
		}
		return tn, nil
	}

	tn, err := s.executeNew(ctx, actor, req)
	if tn == nil {
		// Nothing was recorded; release the key so a corrected retry can run.
		if abandonErr := s.guard.Abandon(ctx, req.IdempotencyKey); abandonErr != nil {
			logging.FromContext(ctx).Error("abandon idempotency key",
				"key", req.IdempotencyKey, "error", abandonErr)
		}
		return nil, fmt.Errorf("Execute: %w", err)
	}

	if finishErr := s.guard.Finish(ctx, req.IdempotencyKey, tn.ID); finishErr != nil {
		logging.FromContext(ctx).Error("finish idempotency key",
			"key", req.IdempotencyKey, "transaction_id", tn.ID, "error", finishErr)
	}
	return tn, err
}

func (s *TransferService) executeNew(ctx context.Context, actor domain.Actor, req domain.TransferRequest) (*domain.Transaction, error) {
	source, err := s.sourceAccount(ctx, actor, req.CuentaOrigenID)
	if err != nil {
		return nil, err
	}
	dest, err := s.resolveDestination(ctx, source, req)
	if err != nil {
		return nil, err
	}

	now := s.now()
	fee := s.fees.Fee(domain.TransactionTypeTransferencia, dest.externalTo(source), req.Monto)
	tn := s.newTransaction(req, source, fee, now)

	if req.Programada {
		if err := s.validateSchedule(req.FechaProgramada, now); err != nil {
			return nil, err
		}
		return s.createScheduled(ctx, actor, tn)
	}

	assessment, err := s.classify(ctx, source, dest, req.Monto, now)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := s.lockAccounts(ctx, tx, source.ID, dest); err != nil {
		return nil, err
	}

	// Daily limit is re-read under the source row lock and through the open
	// transaction, so concurrent transfers from the same account serialize
	// against it.
	settled, err := s.transactions.SumSettledToday(ctx, tx, source.ID, dayStart(now))
	if err != nil {
		return nil, err
	}
	if tn.MontoTotal > source.DailyLimit-settled {
		return s.recordFailed(ctx, tx, tn, actor, failureReason(domain.ErrLimitExceeded))
	}

	hold, err := s.ledger.Reserve(ctx, tx, source.ID, domain.NewMoney(tn.MontoTotal, tn.Moneda))
	if err != nil {
		if reason, ok := businessFailure(err); ok {
			return s.recordFailed(ctx, tx, tn, actor, reason)
		}
		return nil, err
	}

	if assessment.RequiresReview {
		tn.Estado = domain.TransactionStatusPendienteAprobacion
	} else {
		tn.Estado = domain.TransactionStatusExitosa
		tn.SettledAt = &now
	}

	if err := s.transactions.Create(ctx, tx, tn); err != nil {
		return nil, err
	}
	if err := s.ledger.LinkHold(ctx, tx, hold.ID, tn.ID); err != nil {
		return nil, err
	}
	if err := s.appendEvent(ctx, tx, tn.ID, domain.TransactionEventCreated, actor.String(), nil); err != nil {
		return nil, err
	}

	if assessment.RequiresReview {
		if err := s.openReview(ctx, tx, actor.String(), tn, source, dest, assessment); err != nil {
			return nil, err
		}
	} else {
		if err := s.settle(ctx, tx, actor, tn, hold, dest.account); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	logging.FromContext(ctx).Info("transfer executed",
		"transaction_id", tn.ID, "referencia", tn.NumeroReferencia, "estado", tn.Estado)
	return tn, nil
}

// settle commits the hold against the source and credits an in-bank
// destination. The commission is not credited anywhere; it is bank revenue.
func (s *TransferService) settle(ctx context.Context, tx *sql.Tx, actor domain.Actor, tn *domain.Transaction, hold *repository.Hold, destAccount *domain.Account) error {
	if err := s.ledger.Commit(ctx, tx, hold); err != nil {
		return err
	}
	if destAccount != nil {
		if err := s.ledger.ApplyCredit(ctx, tx, destAccount.ID, domain.NewMoney(tn.Monto, tn.Moneda)); err != nil {
			return err
		}
	}
	return s.appendEvent(ctx, tx, tn.ID, domain.TransactionEventSettled, actor.String(), nil)
}

// openReview parks the transaction behind a high-value operation. The hold
// stays active until a reviewer decides. The actor is whoever initiated the
// execution, a client or the scheduler.
func (s *TransferService) openReview(ctx context.Context, tx *sql.Tx, actor string, tn *domain.Transaction, source *domain.Account, dest destination, assessment risk.Assessment) error {
	op := &domain.HighValueOperation{
		ID:                   uuid.New(),
		ClienteID:            source.ClienteID,
		TransactionID:        tn.ID,
		Tipo:                 assessment.OperationType,
		Monto:                tn.MontoTotal,
		Moneda:               tn.Moneda,
		Estado:               domain.OperationStatusPendiente,
		NivelRiesgo:          assessment.NivelRiesgo,
		FlagsRiesgo:          assessment.Flags,
		Descripcion:          tn.Descripcion,
		RequiereVerificacion: assessment.NivelRiesgo == domain.RiskLevelCritico,
		CreatedAt:            tn.CreatedAt,
		UpdatedAt:            tn.CreatedAt,
	}
	if op.RequiereVerificacion {
		op.Verificacion = &domain.Verification{
			Tipo:   "Llamada telefónica",
			Estado: domain.VerificationPendiente,
		}
	}
	if err := s.operations.Create(ctx, tx, op); err != nil {
		return err
	}

	if dest.beneficiary != nil {
		if err := s.beneficiaries.SyncPendingOperations(ctx, tx, dest.beneficiary.ID); err != nil {
			return err
		}
	}

	detail := fmt.Sprintf("nivel de riesgo %s", assessment.NivelRiesgo)
	return s.appendEvent(ctx, tx, tn.ID, domain.TransactionEventHeld, actor, &detail)
}

// createScheduled records the intent without moving funds; balance checks
// happen when the scheduler picks the transaction up.
func (s *TransferService) createScheduled(ctx context.Context, actor domain.Actor, tn *domain.Transaction) (*domain.Transaction, error) {
	tn.Estado = domain.TransactionStatusProgramada

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := s.transactions.Create(ctx, tx, tn); err != nil {
		return nil, err
	}
	detail := tn.FechaProgramada.Format(time.RFC3339)
	if err := s.appendEvent(ctx, tx, tn.ID, domain.TransactionEventScheduled, actor.String(), &detail); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return tn, nil
}

// recordFailed persists the attempt as Fallida so the failure is auditable
// and the idempotency key replays it instead of re-executing.
func (s *TransferService) recordFailed(ctx context.Context, tx *sql.Tx, tn *domain.Transaction, actor domain.Actor, reason string) (*domain.Transaction, error) {
	tn.Estado = domain.TransactionStatusFallida
	tn.FailureReason = &reason

	if err := s.transactions.Create(ctx, tx, tn); err != nil {
		return nil, err
	}
	if err := s.appendEvent(ctx, tx, tn.ID, domain.TransactionEventFailed, actor.String(), &reason); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return tn, nil
}

// Cancel withdraws a transaction that has not settled. A scheduled transfer
// is simply cancelled; one pending approval also releases its hold and closes
// the review as rejected. Blocked reviews pin the transaction until a
// reviewer unblocks them.
func (s *TransferService) Cancel(ctx context.Context, actor domain.Actor, transactionID uuid.UUID) (*domain.Transaction, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("Cancel: begin tx: %w", err)
	}
	defer tx.Rollback()

	tn, err := s.transactions.GetForUpdate(ctx, tx, transactionID)
	if err != nil {
		return nil, fmt.Errorf("Cancel: %w", err)
	}
	if _, err := s.sourceAccount(ctx, actor, tn.CuentaOrigenID); err != nil {
		return nil, fmt.Errorf("Cancel: %w", err)
	}

	switch tn.Estado {
	case domain.TransactionStatusProgramada:
		if err := s.transactions.UpdateStatus(ctx, tx, tn.ID, tn.Estado, domain.TransactionStatusCancelada, nil, nil); err != nil {
			return nil, fmt.Errorf("Cancel: %w", err)
		}
	case domain.TransactionStatusPendienteAprobacion:
		if err := s.cancelPending(ctx, tx, actor, tn); err != nil {
			return nil, fmt.Errorf("Cancel: %w", err)
		}
	default:
		return nil, fmt.Errorf("Cancel: %s: %w", tn.Estado, domain.ErrInvalidTransition)
	}

	if err := s.appendEvent(ctx, tx, tn.ID, domain.TransactionEventCancelled, actor.String(), nil); err != nil {
		return nil, fmt.Errorf("Cancel: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("Cancel: commit: %w", err)
	}

	tn.Estado = domain.TransactionStatusCancelada
	return tn, nil
}

func (s *TransferService) cancelPending(ctx context.Context, tx *sql.Tx, actor domain.Actor, tn *domain.Transaction) error {
	op, err := s.operations.GetByTransactionID(ctx, tn.ID)
	if err != nil {
		return err
	}
	if op.Estado == domain.OperationStatusBloqueada || op.Estado.IsTerminal() {
		return fmt.Errorf("operation is %s: %w", op.Estado, domain.ErrInvalidTransition)
	}

	hold, err := s.ledger.ActiveHold(ctx, tx, tn.ID)
	if err != nil {
		return err
	}
	if err := s.ledger.Release(ctx, tx, hold); err != nil {
		return err
	}
	if err := s.transactions.UpdateStatus(ctx, tx, tn.ID, tn.Estado, domain.TransactionStatusCancelada, nil, nil); err != nil {
		return err
	}

	from := op.Estado
	razon := "Cancelada por el cliente"
	actorName := actor.String()
	op.Estado = domain.OperationStatusRechazada
	op.RazonRechazo = &razon
	op.RechazadoPor = &actorName
	if err := s.operations.UpdateStatus(ctx, tx, op, from); err != nil {
		return err
	}

	if tn.BeneficiarioID != nil {
		if err := s.beneficiaries.SyncPendingOperations(ctx, tx, *tn.BeneficiarioID); err != nil {
			return err
		}
	}
	return nil
}

// RunDueScheduled executes every scheduled transaction whose date has
// arrived, up to limit. Each transaction settles, fails, or is parked for
// approval on its own merits; the whole batch commits together. Returns how
// many rows were processed.
func (s *TransferService) RunDueScheduled(ctx context.Context, limit int) (int, error) {
	now := s.now()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("RunDueScheduled: begin tx: %w", err)
	}
	defer tx.Rollback()

	due, err := s.transactions.ListDueScheduled(ctx, tx, now, limit)
	if err != nil {
		return 0, fmt.Errorf("RunDueScheduled: %w", err)
	}
	if len(due) == 0 {
		return 0, nil
	}

	for i := range due {
		if err := s.settleScheduled(ctx, tx, &due[i], now); err != nil {
			return 0, fmt.Errorf("RunDueScheduled: %s: %w", due[i].NumeroReferencia, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("RunDueScheduled: commit: %w", err)
	}
	return len(due), nil
}

// settleScheduled runs a due scheduled transaction through the same pipeline
// an immediate execution takes: limit check, reserve, risk classification,
// and then settlement or a parked review. A high-value scheduled transfer
// therefore never reaches Exitosa without a human decision.
func (s *TransferService) settleScheduled(ctx context.Context, tx *sql.Tx, tn *domain.Transaction, now time.Time) error {
	const scheduler = "scheduler"

	fail := func(reason string) error {
		if err := s.transactions.UpdateStatus(ctx, tx, tn.ID, domain.TransactionStatusProgramada,
			domain.TransactionStatusFallida, &reason, nil); err != nil {
			return err
		}
		return s.appendEvent(ctx, tx, tn.ID, domain.TransactionEventFailed, scheduler, &reason)
	}

	var dest destination
	if tn.CuentaDestinoID != nil {
		acct, err := s.accounts.GetByID(ctx, *tn.CuentaDestinoID)
		if err != nil {
			return err
		}
		dest.account = acct
	}
	if tn.BeneficiarioID != nil {
		b, err := s.beneficiaries.GetByID(ctx, *tn.BeneficiarioID)
		if err != nil {
			return err
		}
		dest.beneficiary = b
	}
	if err := s.lockAccounts(ctx, tx, tn.CuentaOrigenID, dest); err != nil {
		return err
	}

	source, err := s.accounts.GetForUpdate(ctx, tx, tn.CuentaOrigenID)
	if err != nil {
		return err
	}
	settled, err := s.transactions.SumSettledToday(ctx, tx, source.ID, dayStart(now))
	if err != nil {
		return err
	}
	if tn.MontoTotal > source.DailyLimit-settled {
		return fail(failureReason(domain.ErrLimitExceeded))
	}

	// Risk is assessed on the due date, not at scheduling time, so the
	// thresholds in force when money actually moves are the ones that apply.
	assessment, err := s.classify(ctx, source, dest, tn.Monto, now)
	if err != nil {
		return err
	}

	hold, err := s.ledger.Reserve(ctx, tx, source.ID, domain.NewMoney(tn.MontoTotal, tn.Moneda))
	if err != nil {
		if reason, ok := businessFailure(err); ok {
			return fail(reason)
		}
		return err
	}
	if err := s.ledger.LinkHold(ctx, tx, hold.ID, tn.ID); err != nil {
		return err
	}

	if assessment.RequiresReview {
		if err := s.transactions.UpdateStatus(ctx, tx, tn.ID, domain.TransactionStatusProgramada,
			domain.TransactionStatusPendienteAprobacion, nil, nil); err != nil {
			return err
		}
		tn.Estado = domain.TransactionStatusPendienteAprobacion
		return s.openReview(ctx, tx, scheduler, tn, source, dest, assessment)
	}

	if err := s.ledger.Commit(ctx, tx, hold); err != nil {
		return err
	}
	if dest.account != nil {
		if err := s.ledger.ApplyCredit(ctx, tx, dest.account.ID, domain.NewMoney(tn.Monto, tn.Moneda)); err != nil {
			return err
		}
	}
	if err := s.transactions.UpdateStatus(ctx, tx, tn.ID, domain.TransactionStatusProgramada,
		domain.TransactionStatusExitosa, nil, &now); err != nil {
		return err
	}
	return s.appendEvent(ctx, tx, tn.ID, domain.TransactionEventSettled, scheduler, nil)
}

// GetTransaction returns a transaction with its audit trail, scoped to the
// owner for clients.
func (s *TransferService) GetTransaction(ctx context.Context, actor domain.Actor, id uuid.UUID) (*domain.Transaction, []domain.TransactionEvent, error) {
	tn, err := s.transactions.GetByID(ctx, id)
	if err != nil {
		return nil, nil, fmt.Errorf("GetTransaction: %w", err)
	}
	if _, err := s.sourceAccount(ctx, actor, tn.CuentaOrigenID); err != nil {
		return nil, nil, fmt.Errorf("GetTransaction: %w", err)
	}

	events, err := s.events.GetByTransactionID(ctx, id)
	if err != nil {
		return nil, nil, fmt.Errorf("GetTransaction: %w", err)
	}
	return tn, events, nil
}

// sourceAccount loads the account and enforces ownership: clients only ever
// see their own accounts, reviewers see everything. A foreign account reads
// as not found rather than forbidden.
func (s *TransferService) sourceAccount(ctx context.Context, actor domain.Actor, accountID uuid.UUID) (*domain.Account, error) {
	acct, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if actor.Role == domain.RoleCliente && acct.ClienteID != actor.ID {
		return nil, domain.ErrNotFound
	}
	return acct, nil
}

func (s *TransferService) resolveDestination(ctx context.Context, source *domain.Account, req domain.TransferRequest) (destination, error) {
	switch {
	case req.CuentaDestinoID != nil && req.BeneficiarioID != nil:
		return destination{}, domain.ErrAmbiguousDestination

	case req.CuentaDestinoID != nil:
		if *req.CuentaDestinoID == source.ID {
			return destination{}, domain.ErrSelfTransfer
		}
		acct, err := s.accounts.GetByID(ctx, *req.CuentaDestinoID)
		if err != nil {
			return destination{}, err
		}
		if acct.Moneda != source.Moneda {
			return destination{}, domain.ErrCurrencyMismatch
		}
		if acct.Estado == domain.AccountStatusCerrada {
			return destination{}, domain.ErrAccountClosed
		}
		return destination{account: acct}, nil

	case req.BeneficiarioID != nil:
		b, err := s.beneficiaries.GetByID(ctx, *req.BeneficiarioID)
		if err != nil {
			return destination{}, err
		}
		if b.ClienteID != source.ClienteID {
			return destination{}, domain.ErrNotFound
		}
		if b.Estado != domain.BeneficiaryStatusActivo {
			return destination{}, domain.ErrBeneficiaryInactive
		}
		if b.Moneda != source.Moneda {
			return destination{}, domain.ErrCurrencyMismatch
		}
		return destination{beneficiary: b}, nil

	default:
		return destination{}, domain.ErrMissingDestination
	}
}

func (s *TransferService) classify(ctx context.Context, source *domain.Account, dest destination, monto int64, now time.Time) (risk.Assessment, error) {
	in := risk.Input{
		ClienteID: source.ClienteID,
		Tipo:      domain.TransactionTypeTransferencia,
		Monto:     monto,
		Moneda:    source.Moneda,
		Now:       now,
	}
	if dest.beneficiary != nil {
		in.CrossBorder = dest.beneficiary.IsCrossBorder()
		in.BeneficiarioID = &dest.beneficiary.ID
	}
	return s.risk.Classify(ctx, in)
}

func (s *TransferService) validateSchedule(fecha *time.Time, now time.Time) error {
	if fecha == nil || !fecha.After(now) {
		return domain.ErrScheduleInPast
	}
	if fecha.After(now.AddDate(0, 0, s.config.ScheduleHorizonDays)) {
		return domain.ErrScheduleTooFar
	}
	return nil
}

func (s *TransferService) lockAccounts(ctx context.Context, tx *sql.Tx, sourceID uuid.UUID, dest destination) error {
	ids := []uuid.UUID{sourceID}
	if dest.account != nil {
		ids = append(ids, dest.account.ID)
	}
	return lockInOrder(ctx, tx, s.accounts, ids...)
}

// lockInOrder takes account row locks in ascending id order, so two opposite
// transfers (or a transfer racing an approval) cannot deadlock.
func lockInOrder(ctx context.Context, tx *sql.Tx, accounts accountStore, ids ...uuid.UUID) error {
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	for _, id := range ids {
		if _, err := accounts.GetForUpdate(ctx, tx, id); err != nil {
			return err
		}
	}
	return nil
}

func (s *TransferService) newTransaction(req domain.TransferRequest, source *domain.Account, fee int64, now time.Time) *domain.Transaction {
	return &domain.Transaction{
		ID:               uuid.New(),
		Tipo:             domain.TransactionTypeTransferencia,
		CuentaOrigenID:   source.ID,
		CuentaDestinoID:  req.CuentaDestinoID,
		BeneficiarioID:   req.BeneficiarioID,
		Monto:            req.Monto,
		Comision:         fee,
		MontoTotal:       req.Monto + fee,
		Moneda:           source.Moneda,
		Descripcion:      req.Descripcion,
		FechaProgramada:  req.FechaProgramada,
		IdempotencyKey:   req.IdempotencyKey,
		NumeroReferencia: domain.NewReferenceNumber(domain.TransactionTypeTransferencia, now),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

func (s *TransferService) appendEvent(ctx context.Context, tx *sql.Tx, transactionID uuid.UUID, eventType domain.TransactionEventType, actor string, detail *string) error {
	return s.events.Create(ctx, tx, &domain.TransactionEvent{
		ID:            uuid.New(),
		TransactionID: transactionID,
		EventType:     eventType,
		Actor:         actor,
		Detail:        detail,
		CreatedAt:     s.now(),
	})
}

func requestHash(actor domain.Actor, req domain.TransferRequest) string {
	parts := []string{
		actor.ID.String(),
		req.CuentaOrigenID.String(),
		uuidOrEmpty(req.CuentaDestinoID),
		uuidOrEmpty(req.BeneficiarioID),
		strconv.FormatInt(req.Monto, 10),
		strconv.FormatBool(req.Programada),
	}
	if req.FechaProgramada != nil {
		parts = append(parts, req.FechaProgramada.UTC().Format(time.RFC3339))
	}
	return idempotency.Hash(parts...)
}

func uuidOrEmpty(id *uuid.UUID) string {
	if id == nil {
		return ""
	}
	return id.String()
}

// failureReason translates a settlement sentinel into the Spanish reason
// recorded on a Fallida transaction.
func failureReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrLimitExceeded):
		return "Límite diario excedido"
	case errors.Is(err, domain.ErrInsufficientFunds):
		return "Fondos insuficientes"
	case errors.Is(err, domain.ErrAccountNotActive):
		return "Cuenta de origen no activa"
	}
	return "Error de procesamiento"
}

// businessFailure reports whether a reserve error is a business outcome to
// record as Fallida rather than an infrastructure error to propagate.
func businessFailure(err error) (string, bool) {
	if errors.Is(err, domain.ErrInsufficientFunds) || errors.Is(err, domain.ErrAccountNotActive) {
		return failureReason(err), true
	}
	return "", false
}

// rejectionMessage translates destination and validation errors into the
// user-facing message the precheck reports instead of failing.
func rejectionMessage(err error) (string, bool) {
	switch {
	case errors.Is(err, domain.ErrMissingDestination), errors.Is(err, domain.ErrAmbiguousDestination):
		return "Debe indicar exactamente un destino", true
	case errors.Is(err, domain.ErrSelfTransfer):
		return "La cuenta destino debe ser distinta a la de origen", true
	case errors.Is(err, domain.ErrCurrencyMismatch):
		return "Las monedas de origen y destino no coinciden", true
	case errors.Is(err, domain.ErrBeneficiaryInactive):
		return "El beneficiario no está activo", true
	case errors.Is(err, domain.ErrAccountClosed):
		return "La cuenta destino está cerrada", true
	}
	return "", false
}

func dayStart(now time.Time) time.Time {
	return now.Truncate(24 * time.Hour)
}
