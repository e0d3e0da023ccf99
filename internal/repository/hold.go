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

type HoldStatus string

const (
	HoldStatusActiva     HoldStatus = "activa"
	HoldStatusConfirmada HoldStatus = "confirmada"
	HoldStatusLiberada   HoldStatus = "liberada"
)

// Hold is a persisted reservation against an account's available balance.
// Persisting it lets the approval workflow commit or release a hold created
// by an earlier execute call, possibly in another process.
type Hold struct {
	ID            uuid.UUID
	AccountID     uuid.UUID
	TransactionID uuid.NullUUID
	Amount        int64
	Estado        HoldStatus
	CreatedAt     time.Time
	ResolvedAt    *time.Time
}

type HoldRepository struct {
	db *sql.DB
}

func NewHoldRepository(db *sql.DB) *HoldRepository {
	return &HoldRepository{db: db}
}

func (r *HoldRepository) Create(ctx context.Context, tx *sql.Tx, h *Hold) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO holds (id, account_id, transaction_id, amount, estado, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		h.ID, h.AccountID, h.TransactionID, h.Amount, h.Estado, h.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

// LinkTransaction attaches the hold to the transaction it secures; holds are
// created before the transaction row exists.
func (r *HoldRepository) LinkTransaction(ctx context.Context, tx *sql.Tx, holdID, transactionID uuid.UUID) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE holds SET transaction_id = $1 WHERE id = $2`,
		transactionID, holdID,
	)
	if err != nil {
		return fmt.Errorf("LinkTransaction: %w", err)
	}
	return nil
}

// GetActiveByTransaction finds the live reservation backing a pending
// transaction, locked for resolution.
func (r *HoldRepository) GetActiveByTransaction(ctx context.Context, tx *sql.Tx, transactionID uuid.UUID) (*Hold, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT id, account_id, transaction_id, amount, estado, created_at, resolved_at
		FROM holds
		WHERE transaction_id = $1 AND estado = $2
		FOR UPDATE`,
		transactionID, HoldStatusActiva,
	)

	var h Hold
	err := row.Scan(&h.ID, &h.AccountID, &h.TransactionID, &h.Amount, &h.Estado, &h.CreatedAt, &h.ResolvedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetActiveByTransaction: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetActiveByTransaction: %w", err)
	}
	return &h, nil
}

// Resolve moves an active hold to confirmada or liberada. The estado guard
// makes resolving the same hold twice fail instead of double-settling.
func (r *HoldRepository) Resolve(ctx context.Context, tx *sql.Tx, id uuid.UUID, to HoldStatus) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE holds SET estado = $1, resolved_at = now()
		WHERE id = $2 AND estado = $3`,
		to, id, HoldStatusActiva,
	)
	if err != nil {
		return fmt.Errorf("Resolve: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("Resolve: rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("Resolve: hold %s: %w", id, domain.ErrInvalidTransition)
	}
	return nil
}
