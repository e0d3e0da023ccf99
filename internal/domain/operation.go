package domain

import (
	"time"

	"github.com/google/uuid"
)

type RiskLevel string

const (
	RiskLevelBajo    RiskLevel = "Bajo"
	RiskLevelMedio   RiskLevel = "Medio"
	RiskLevelAlto    RiskLevel = "Alto"
	RiskLevelCritico RiskLevel = "Crítico"
)

var riskSeverity = map[RiskLevel]int{
	RiskLevelBajo:    0,
	RiskLevelMedio:   1,
	RiskLevelAlto:    2,
	RiskLevelCritico: 3,
}

// Max returns the more severe of two risk levels.
func (r RiskLevel) Max(other RiskLevel) RiskLevel {
	if riskSeverity[other] > riskSeverity[r] {
		return other
	}
	return r
}

type OperationType string

const (
	OperationTypeTransferenciaMasiva        OperationType = "Transferencia Masiva"
	OperationTypeTransferenciaInternacional OperationType = "Transferencia Internacional"
	OperationTypeRetiroEfectivoGrande       OperationType = "Retiro de Efectivo Grande"
	OperationTypeDepositoMasivo             OperationType = "Depósito Masivo"
	OperationTypeOperacionSospechosa        OperationType = "Operación Sospechosa"
)

type OperationStatus string

const (
	OperationStatusPendiente  OperationStatus = "Pendiente"
	OperationStatusVerificada OperationStatus = "Verificada"
	OperationStatusAprobada   OperationStatus = "Aprobada"
	OperationStatusRechazada  OperationStatus = "Rechazada"
	OperationStatusBloqueada  OperationStatus = "Bloqueada"
	OperationStatusCompletada OperationStatus = "Completada"
)

// operationTransitions mirrors the review lifecycle. Bloqueada is reachable
// from any non-terminal state (handled in CanTransitionTo, not the table) and
// unblocking returns the operation to Verificada for a fresh decision.
var operationTransitions = map[OperationStatus][]OperationStatus{
	OperationStatusPendiente: {
		OperationStatusVerificada,
		OperationStatusRechazada,
	},
	OperationStatusVerificada: {
		OperationStatusAprobada,
		OperationStatusRechazada,
	},
	OperationStatusAprobada: {
		OperationStatusCompletada,
	},
	OperationStatusBloqueada: {
		OperationStatusVerificada,
	},
}

func (s OperationStatus) IsTerminal() bool {
	switch s {
	case OperationStatusAprobada, OperationStatusRechazada, OperationStatusCompletada:
		return true
	}
	return false
}

func (s OperationStatus) CanTransitionTo(next OperationStatus) bool {
	if next == OperationStatusBloqueada {
		return !s.IsTerminal() && s != OperationStatusBloqueada
	}
	for _, allowed := range operationTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

type VerificationStatus string

const (
	VerificationPendiente  VerificationStatus = "Pendiente"
	VerificationCompletada VerificationStatus = "Completada"
	VerificationFallida    VerificationStatus = "Fallida"
)

// Verification is the optional out-of-band confirmation sub-record, e.g. a
// phone call to the client before a large international transfer.
type Verification struct {
	Tipo   string
	Estado VerificationStatus
	Fecha  *time.Time
}

// HighValueOperation is the review record spawned when a transaction crosses
// a risk threshold. It is an audit record: never deleted, notes append-only.
type HighValueOperation struct {
	ID                   uuid.UUID
	ClienteID            uuid.UUID
	TransactionID        uuid.UUID
	Tipo                 OperationType
	Monto                int64
	Moneda               Currency
	Estado               OperationStatus
	NivelRiesgo          RiskLevel
	FlagsRiesgo          []string
	Descripcion          *string
	RazonBloqueo         *string
	RazonRechazo         *string
	AprobadoPor          *string
	RechazadoPor         *string
	RequiereVerificacion bool
	Verificacion         *Verification
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// OperationNote is one timestamped, attributed entry of the operation's
// append-only note history.
type OperationNote struct {
	ID          uuid.UUID
	OperationID uuid.UUID
	Actor       string
	Nota        string
	CreatedAt   time.Time
}
