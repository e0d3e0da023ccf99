package domain

import (
	"time"

	"github.com/google/uuid"
)

type TransactionType string

const (
	TransactionTypeTransferencia TransactionType = "Transferencia"
	TransactionTypePagoServicio  TransactionType = "Pago de Servicio"
	TransactionTypeDeposito      TransactionType = "Depósito"
	TransactionTypeRetiro        TransactionType = "Retiro"
)

type TransactionStatus string

const (
	TransactionStatusPendienteAprobacion TransactionStatus = "PendienteAprobacion"
	TransactionStatusProgramada          TransactionStatus = "Programada"
	TransactionStatusExitosa             TransactionStatus = "Exitosa"
	TransactionStatusFallida             TransactionStatus = "Fallida"
	TransactionStatusCancelada           TransactionStatus = "Cancelada"
	TransactionStatusRechazada           TransactionStatus = "Rechazada"
)

// transactionTransitions is the closed transition table. Anything not listed
// here, including every move out of a terminal state, is ErrInvalidTransition.
var transactionTransitions = map[TransactionStatus][]TransactionStatus{
	TransactionStatusProgramada: {
		TransactionStatusPendienteAprobacion,
		TransactionStatusExitosa,
		TransactionStatusFallida,
		TransactionStatusCancelada,
	},
	TransactionStatusPendienteAprobacion: {
		TransactionStatusExitosa,
		TransactionStatusRechazada,
		TransactionStatusCancelada,
	},
}

func (s TransactionStatus) IsTerminal() bool {
	switch s {
	case TransactionStatusExitosa, TransactionStatusFallida,
		TransactionStatusCancelada, TransactionStatusRechazada:
		return true
	}
	return false
}

func (s TransactionStatus) CanTransitionTo(next TransactionStatus) bool {
	for _, allowed := range transactionTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Transaction is a money-movement record. It is created once and then only
// transitioned; it is never deleted. Total is always Monto + Comision.
type Transaction struct {
	ID               uuid.UUID
	Tipo             TransactionType
	CuentaOrigenID   uuid.UUID
	CuentaDestinoID  *uuid.UUID
	BeneficiarioID   *uuid.UUID
	Monto            int64
	Comision         int64
	MontoTotal       int64
	Moneda           Currency
	Estado           TransactionStatus
	Descripcion      *string
	FechaProgramada  *time.Time
	IdempotencyKey   string
	NumeroReferencia string
	FailureReason    *string
	CreatedAt        time.Time
	UpdatedAt        time.Time
	SettledAt        *time.Time
}

type TransactionEventType string

const (
	TransactionEventCreated   TransactionEventType = "creada"
	TransactionEventHeld      TransactionEventType = "retenida"
	TransactionEventSettled   TransactionEventType = "liquidada"
	TransactionEventFailed    TransactionEventType = "fallida"
	TransactionEventCancelled TransactionEventType = "cancelada"
	TransactionEventRejected  TransactionEventType = "rechazada"
	TransactionEventScheduled TransactionEventType = "programada"
)

// TransactionEvent is one entry of the append-only audit trail.
type TransactionEvent struct {
	ID            uuid.UUID
	TransactionID uuid.UUID
	EventType     TransactionEventType
	Actor         string
	Detail        *string
	CreatedAt     time.Time
}
