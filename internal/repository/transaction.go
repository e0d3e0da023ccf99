package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/banpacifico/core-api/internal/domain"
)

const transactionColumns = `id, tipo, cuenta_origen_id, cuenta_destino_id,
	beneficiario_id, monto, comision, monto_total, moneda, estado, descripcion,
	fecha_programada, idempotency_key, numero_referencia, failure_reason,
	created_at, updated_at, settled_at`

type TransactionRepository struct {
	db *sql.DB
}

func NewTransactionRepository(db *sql.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

func (r *TransactionRepository) Create(ctx context.Context, tx *sql.Tx, t *domain.Transaction) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO transactions (
			id, tipo, cuenta_origen_id, cuenta_destino_id, beneficiario_id,
			monto, comision, monto_total, moneda, estado, descripcion,
			fecha_programada, idempotency_key, numero_referencia, failure_reason,
			created_at, updated_at, settled_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
			$11, $12, $13, $14, $15, $16, $17, $18
		)`,
		t.ID, t.Tipo, t.CuentaOrigenID, t.CuentaDestinoID, t.BeneficiarioID,
		t.Monto, t.Comision, t.MontoTotal, t.Moneda, t.Estado, t.Descripcion,
		t.FechaProgramada, t.IdempotencyKey, t.NumeroReferencia, t.FailureReason,
		t.CreatedAt, t.UpdatedAt, t.SettledAt,
	)
	if err != nil {
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

func (r *TransactionRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE id = $1`, id,
	)
	t, err := scanTransaction(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByID: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetByID: %w", err)
	}
	return t, nil
}

// GetForUpdate locks the transaction row so a cancel racing a scheduled
// execution (or an approval) sees one winner.
func (r *TransactionRepository) GetForUpdate(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*domain.Transaction, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE id = $1 FOR UPDATE`, id,
	)
	t, err := scanTransaction(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetForUpdate: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetForUpdate: %w", err)
	}
	return t, nil
}

// UpdateStatus applies a state transition with the previous state as guard,
// so a terminal row can never be resurrected by a racing writer.
func (r *TransactionRepository) UpdateStatus(ctx context.Context, tx *sql.Tx, id uuid.UUID, from, to domain.TransactionStatus, failureReason *string, settledAt *time.Time) error {
	if !from.CanTransitionTo(to) {
		return fmt.Errorf("UpdateStatus: %s -> %s: %w", from, to, domain.ErrInvalidTransition)
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE transactions
		SET estado = $1, failure_reason = $2, settled_at = $3, updated_at = now()
		WHERE id = $4 AND estado = $5`,
		to, failureReason, settledAt, id, from,
	)
	if err != nil {
		return fmt.Errorf("UpdateStatus: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("UpdateStatus: rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("UpdateStatus: %s -> %s: %w", from, to, domain.ErrInvalidTransition)
	}
	return nil
}

// SumSettledToday totals the transfers already settled against the account
// since the start of the day, for the daily-limit computation. It queries
// through q so a caller holding an open transaction (the scheduler settling a
// batch, an execute under the row lock) counts settlements it has made itself
// but not yet committed.
func (r *TransactionRepository) SumSettledToday(ctx context.Context, q Querier, accountID uuid.UUID, dayStart time.Time) (int64, error) {
	var total sql.NullInt64
	err := q.QueryRowContext(ctx,
		`SELECT SUM(monto_total) FROM transactions
		WHERE cuenta_origen_id = $1 AND estado = $2 AND settled_at >= $3`,
		accountID, domain.TransactionStatusExitosa, dayStart,
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("SumSettledToday: %w", err)
	}
	return total.Int64, nil
}

// SameDayVolume is the client's aggregate outgoing volume since dayStart,
// counting settled and still-pending movements.
func (r *TransactionRepository) SameDayVolume(ctx context.Context, clienteID uuid.UUID, dayStart time.Time) (int64, error) {
	var total sql.NullInt64
	err := r.db.QueryRowContext(ctx,
		`SELECT SUM(t.monto_total)
		FROM transactions t
		JOIN accounts a ON a.id = t.cuenta_origen_id
		WHERE a.cliente_id = $1
		  AND t.created_at >= $2
		  AND t.estado IN ($3, $4)`,
		clienteID, dayStart,
		domain.TransactionStatusExitosa, domain.TransactionStatusPendienteAprobacion,
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("SameDayVolume: %w", err)
	}
	return total.Int64, nil
}

// AverageDailyVolume is the client's historical mean daily settled volume
// over the lookback window, used as the baseline for the volume-spike rule.
func (r *TransactionRepository) AverageDailyVolume(ctx context.Context, clienteID uuid.UUID, since time.Time, days int) (int64, error) {
	if days <= 0 {
		return 0, nil
	}
	var total sql.NullInt64
	err := r.db.QueryRowContext(ctx,
		`SELECT SUM(t.monto_total)
		FROM transactions t
		JOIN accounts a ON a.id = t.cuenta_origen_id
		WHERE a.cliente_id = $1
		  AND t.settled_at >= $2
		  AND t.estado = $3`,
		clienteID, since, domain.TransactionStatusExitosa,
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("AverageDailyVolume: %w", err)
	}
	return total.Int64 / int64(days), nil
}

// HasPriorTransfersTo reports whether the client has ever sent money to this
// beneficiary before, for the first-time-destination flag.
func (r *TransactionRepository) HasPriorTransfersTo(ctx context.Context, clienteID, beneficiarioID uuid.UUID) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (
			SELECT 1 FROM transactions t
			JOIN accounts a ON a.id = t.cuenta_origen_id
			WHERE a.cliente_id = $1 AND t.beneficiario_id = $2 AND t.estado = $3
		)`,
		clienteID, beneficiarioID, domain.TransactionStatusExitosa,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("HasPriorTransfersTo: %w", err)
	}
	return exists, nil
}

// ListDueScheduled returns scheduled transactions whose date has arrived,
// locking them so concurrent scheduler instances do not double-execute.
func (r *TransactionRepository) ListDueScheduled(ctx context.Context, tx *sql.Tx, now time.Time, limit int) ([]domain.Transaction, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions
		WHERE estado = $1 AND fecha_programada <= $2
		ORDER BY fecha_programada
		LIMIT $3
		FOR UPDATE SKIP LOCKED`,
		domain.TransactionStatusProgramada, now, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("ListDueScheduled: %w", err)
	}
	defer rows.Close()

	var due []domain.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("ListDueScheduled: scan: %w", err)
		}
		due = append(due, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListDueScheduled: rows: %w", err)
	}
	return due, nil
}

func scanTransaction(s scanner) (*domain.Transaction, error) {
	var t domain.Transaction
	var destino, beneficiario uuid.NullUUID

	err := s.Scan(
		&t.ID, &t.Tipo, &t.CuentaOrigenID, &destino, &beneficiario,
		&t.Monto, &t.Comision, &t.MontoTotal, &t.Moneda, &t.Estado, &t.Descripcion,
		&t.FechaProgramada, &t.IdempotencyKey, &t.NumeroReferencia, &t.FailureReason,
		&t.CreatedAt, &t.UpdatedAt, &t.SettledAt,
	)
	if err != nil {
		return nil, err
	}

	if destino.Valid {
		t.CuentaDestinoID = &destino.UUID
	}
	if beneficiario.Valid {
		t.BeneficiarioID = &beneficiario.UUID
	}
	return &t, nil
}
