package domain

import (
	"time"

	"github.com/google/uuid"
)

// TransferRequest is the client intent for a money movement. The idempotency
// key is supplied by the caller and collapses retries into one execution.
type TransferRequest struct {
	CuentaOrigenID  uuid.UUID
	CuentaDestinoID *uuid.UUID
	BeneficiarioID  *uuid.UUID
	Monto           int64
	Descripcion     *string
	Programada      bool
	FechaProgramada *time.Time
	IdempotencyKey  string
}

// TransferPrecheck is the read-only simulation of a transfer. Rejections are
// expressed as data (PuedeEjecutar=false plus Mensaje), never as errors, so
// callers can render guidance without special-casing.
type TransferPrecheck struct {
	SaldoAntes         int64    `json:"saldoAntes"`
	Monto              int64    `json:"monto"`
	Comision           int64    `json:"comision"`
	MontoTotal         int64    `json:"montoTotal"`
	SaldoDespues       int64    `json:"saldoDespues"`
	LimiteDisponible   int64    `json:"limiteDisponible"`
	Moneda             Currency `json:"moneda"`
	PuedeEjecutar      bool     `json:"puedeEjecutar"`
	RequiereAprobacion bool     `json:"requiereAprobacion"`
	Mensaje            string   `json:"mensaje,omitempty"`
}
