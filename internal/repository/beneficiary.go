package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/banpacifico/core-api/internal/domain"
)

const beneficiaryColumns = `id, cliente_id, alias, banco, numero_cuenta, moneda,
	pais, estado, tiene_operaciones_pendientes, created_at`

type BeneficiaryRepository struct {
	db *sql.DB
}

func NewBeneficiaryRepository(db *sql.DB) *BeneficiaryRepository {
	return &BeneficiaryRepository{db: db}
}

func (r *BeneficiaryRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Beneficiary, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+beneficiaryColumns+` FROM beneficiaries WHERE id = $1`, id,
	)
	b, err := scanBeneficiary(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByID: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetByID: %w", err)
	}
	return b, nil
}

func (r *BeneficiaryRepository) GetByClientID(ctx context.Context, clienteID uuid.UUID) ([]domain.Beneficiary, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+beneficiaryColumns+` FROM beneficiaries
		WHERE cliente_id = $1 ORDER BY created_at`, clienteID,
	)
	if err != nil {
		return nil, fmt.Errorf("GetByClientID: %w", err)
	}
	defer rows.Close()

	var beneficiaries []domain.Beneficiary
	for rows.Next() {
		b, err := scanBeneficiary(rows)
		if err != nil {
			return nil, fmt.Errorf("GetByClientID: scan: %w", err)
		}
		beneficiaries = append(beneficiaries, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("GetByClientID: rows: %w", err)
	}
	return beneficiaries, nil
}

// Create relies on the per-client case-insensitive unique index on alias and
// translates the violation into ErrAliasTaken.
func (r *BeneficiaryRepository) Create(ctx context.Context, b *domain.Beneficiary) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO beneficiaries (
			id, cliente_id, alias, banco, numero_cuenta, moneda,
			pais, estado, tiene_operaciones_pendientes, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		b.ID, b.ClienteID, b.Alias, b.Banco, b.NumeroCuenta, b.Moneda,
		b.Pais, b.Estado, b.TienePendientes, b.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("Create: %w", domain.ErrAliasTaken)
		}
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

func (r *BeneficiaryRepository) UpdateAlias(ctx context.Context, id uuid.UUID, alias string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE beneficiaries SET alias = $1 WHERE id = $2`, alias, id,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("UpdateAlias: %w", domain.ErrAliasTaken)
		}
		return fmt.Errorf("UpdateAlias: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("UpdateAlias: rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("UpdateAlias: %w", domain.ErrNotFound)
	}
	return nil
}

func (r *BeneficiaryRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to domain.BeneficiaryStatus) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE beneficiaries SET estado = $1 WHERE id = $2 AND estado = $3`,
		to, id, from,
	)
	if err != nil {
		return fmt.Errorf("UpdateStatus: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("UpdateStatus: rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("UpdateStatus: %w", domain.ErrInvalidTransition)
	}
	return nil
}

// SyncPendingOperations recomputes the deletion-guard flag from the open
// high-value operations that still reference the beneficiary, so resolving
// one review cannot clear the flag while another is undecided. Executed
// inside the transfer/approval transaction so the flag can never lag the
// operation.
func (r *BeneficiaryRepository) SyncPendingOperations(ctx context.Context, tx *sql.Tx, id uuid.UUID) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE beneficiaries b SET tiene_operaciones_pendientes = EXISTS (
			SELECT 1 FROM high_value_operations o
			JOIN transactions t ON t.id = o.transaction_id
			WHERE t.beneficiario_id = b.id AND o.estado IN ($2, $3, $4)
		) WHERE b.id = $1`,
		id, domain.OperationStatusPendiente, domain.OperationStatusVerificada,
		domain.OperationStatusBloqueada,
	)
	if err != nil {
		return fmt.Errorf("SyncPendingOperations: %w", err)
	}
	return nil
}

func (r *BeneficiaryRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM beneficiaries WHERE id = $1 AND NOT tiene_operaciones_pendientes`, id,
	)
	if err != nil {
		return fmt.Errorf("Delete: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("Delete: rows affected: %w", err)
	}
	if rows == 0 {
		// Distinguish a missing row from one protected by pending operations.
		var pending bool
		err := r.db.QueryRowContext(ctx,
			`SELECT tiene_operaciones_pendientes FROM beneficiaries WHERE id = $1`, id,
		).Scan(&pending)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("Delete: %w", domain.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("Delete: %w", err)
		}
		return fmt.Errorf("Delete: %w", domain.ErrBeneficiaryBusy)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

func scanBeneficiary(s scanner) (*domain.Beneficiary, error) {
	var b domain.Beneficiary
	err := s.Scan(
		&b.ID, &b.ClienteID, &b.Alias, &b.Banco, &b.NumeroCuenta, &b.Moneda,
		&b.Pais, &b.Estado, &b.TienePendientes, &b.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &b, nil
}
