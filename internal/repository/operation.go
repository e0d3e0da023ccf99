package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/banpacifico/core-api/internal/domain"
)

const operationColumns = `id, cliente_id, transaction_id, tipo, monto, moneda,
	estado, nivel_riesgo, flags_riesgo, descripcion, razon_bloqueo, razon_rechazo,
	aprobado_por, rechazado_por, requiere_verificacion,
	verificacion_tipo, verificacion_estado, verificacion_fecha,
	created_at, updated_at`

type OperationRepository struct {
	db *sql.DB
}

func NewOperationRepository(db *sql.DB) *OperationRepository {
	return &OperationRepository{db: db}
}

func (r *OperationRepository) Create(ctx context.Context, tx *sql.Tx, op *domain.HighValueOperation) error {
	var vTipo, vEstado *string
	var vFecha *time.Time
	if op.Verificacion != nil {
		vTipo = &op.Verificacion.Tipo
		estado := string(op.Verificacion.Estado)
		vEstado = &estado
		vFecha = op.Verificacion.Fecha
	}

	_, err := tx.ExecContext(ctx,
		`INSERT INTO high_value_operations (
			id, cliente_id, transaction_id, tipo, monto, moneda,
			estado, nivel_riesgo, flags_riesgo, descripcion, razon_bloqueo, razon_rechazo,
			aprobado_por, rechazado_por, requiere_verificacion,
			verificacion_tipo, verificacion_estado, verificacion_fecha,
			created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
			$11, $12, $13, $14, $15, $16, $17, $18, $19, $20
		)`,
		op.ID, op.ClienteID, op.TransactionID, op.Tipo, op.Monto, op.Moneda,
		op.Estado, op.NivelRiesgo, pq.Array(op.FlagsRiesgo), op.Descripcion,
		op.RazonBloqueo, op.RazonRechazo, op.AprobadoPor, op.RechazadoPor,
		op.RequiereVerificacion, vTipo, vEstado, vFecha,
		op.CreatedAt, op.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

func (r *OperationRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.HighValueOperation, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+operationColumns+` FROM high_value_operations WHERE id = $1`, id,
	)
	op, err := scanOperation(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByID: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetByID: %w", err)
	}
	return op, nil
}

func (r *OperationRepository) GetForUpdate(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*domain.HighValueOperation, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT `+operationColumns+` FROM high_value_operations WHERE id = $1 FOR UPDATE`, id,
	)
	op, err := scanOperation(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetForUpdate: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetForUpdate: %w", err)
	}
	return op, nil
}

func (r *OperationRepository) GetByTransactionID(ctx context.Context, transactionID uuid.UUID) (*domain.HighValueOperation, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+operationColumns+` FROM high_value_operations WHERE transaction_id = $1`, transactionID,
	)
	op, err := scanOperation(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByTransactionID: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetByTransactionID: %w", err)
	}
	return op, nil
}

// ListFilter narrows List; zero values mean "any".
type ListFilter struct {
	Estado      domain.OperationStatus
	NivelRiesgo domain.RiskLevel
	ClienteID   uuid.UUID
}

func (r *OperationRepository) List(ctx context.Context, filter ListFilter) ([]domain.HighValueOperation, error) {
	query := `SELECT ` + operationColumns + ` FROM high_value_operations WHERE 1=1`
	var args []any

	if filter.Estado != "" {
		args = append(args, filter.Estado)
		query += fmt.Sprintf(" AND estado = $%d", len(args))
	}
	if filter.NivelRiesgo != "" {
		args = append(args, filter.NivelRiesgo)
		query += fmt.Sprintf(" AND nivel_riesgo = $%d", len(args))
	}
	if filter.ClienteID != uuid.Nil {
		args = append(args, filter.ClienteID)
		query += fmt.Sprintf(" AND cliente_id = $%d", len(args))
	}
	query += " ORDER BY created_at DESC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("List: %w", err)
	}
	defer rows.Close()

	var ops []domain.HighValueOperation
	for rows.Next() {
		op, err := scanOperation(rows)
		if err != nil {
			return nil, fmt.Errorf("List: scan: %w", err)
		}
		ops = append(ops, *op)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("List: rows: %w", err)
	}
	return ops, nil
}

// UpdateStatus transitions the operation under the previous-state guard and
// records the decision fields relevant to the new state.
func (r *OperationRepository) UpdateStatus(ctx context.Context, tx *sql.Tx, op *domain.HighValueOperation, from domain.OperationStatus) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE high_value_operations
		SET estado = $1, razon_bloqueo = $2, razon_rechazo = $3,
			aprobado_por = $4, rechazado_por = $5,
			verificacion_estado = $6, verificacion_fecha = $7,
			updated_at = now()
		WHERE id = $8 AND estado = $9`,
		op.Estado, op.RazonBloqueo, op.RazonRechazo,
		op.AprobadoPor, op.RechazadoPor,
		verificationEstado(op.Verificacion), verificationFecha(op.Verificacion),
		op.ID, from,
	)
	if err != nil {
		return fmt.Errorf("UpdateStatus: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("UpdateStatus: rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("UpdateStatus: %s -> %s: %w", from, op.Estado, domain.ErrInvalidTransition)
	}
	return nil
}

func (r *OperationRepository) AddNote(ctx context.Context, note *domain.OperationNote) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO operation_notes (id, operation_id, actor, nota, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		note.ID, note.OperationID, note.Actor, note.Nota, note.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("AddNote: %w", err)
	}
	return nil
}

func (r *OperationRepository) GetNotes(ctx context.Context, operationID uuid.UUID) ([]domain.OperationNote, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, operation_id, actor, nota, created_at
		FROM operation_notes
		WHERE operation_id = $1 ORDER BY created_at`, operationID,
	)
	if err != nil {
		return nil, fmt.Errorf("GetNotes: %w", err)
	}
	defer rows.Close()

	var notes []domain.OperationNote
	for rows.Next() {
		var n domain.OperationNote
		if err := rows.Scan(&n.ID, &n.OperationID, &n.Actor, &n.Nota, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("GetNotes: scan: %w", err)
		}
		notes = append(notes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("GetNotes: rows: %w", err)
	}
	return notes, nil
}

func verificationEstado(v *domain.Verification) *string {
	if v == nil {
		return nil
	}
	estado := string(v.Estado)
	return &estado
}

func verificationFecha(v *domain.Verification) *time.Time {
	if v == nil {
		return nil
	}
	return v.Fecha
}

func scanOperation(s scanner) (*domain.HighValueOperation, error) {
	var op domain.HighValueOperation
	var flags pq.StringArray
	var vTipo, vEstado *string
	var vFecha *time.Time

	err := s.Scan(
		&op.ID, &op.ClienteID, &op.TransactionID, &op.Tipo, &op.Monto, &op.Moneda,
		&op.Estado, &op.NivelRiesgo, &flags, &op.Descripcion,
		&op.RazonBloqueo, &op.RazonRechazo, &op.AprobadoPor, &op.RechazadoPor,
		&op.RequiereVerificacion, &vTipo, &vEstado, &vFecha,
		&op.CreatedAt, &op.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	op.FlagsRiesgo = flags
	if vTipo != nil {
		op.Verificacion = &domain.Verification{Tipo: *vTipo, Fecha: vFecha}
		if vEstado != nil {
			op.Verificacion.Estado = domain.VerificationStatus(*vEstado)
		}
	}
	return &op, nil
}
