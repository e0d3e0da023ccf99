package domain

import (
	"time"

	"github.com/google/uuid"
)

type BeneficiaryStatus string

const (
	BeneficiaryStatusPendiente BeneficiaryStatus = "Pendiente"
	BeneficiaryStatusActivo    BeneficiaryStatus = "Activo"
	BeneficiaryStatusInactivo  BeneficiaryStatus = "Inactivo"
)

const domesticCountry = "Costa Rica"

type Beneficiary struct {
	ID           uuid.UUID
	ClienteID    uuid.UUID
	Alias        string
	Banco        string
	NumeroCuenta string
	Moneda       Currency
	Pais         string
	Estado       BeneficiaryStatus

	// TienePendientes blocks deletion while a risk-gated operation against
	// this destination is still unresolved.
	TienePendientes bool
	CreatedAt       time.Time
}

// IsCrossBorder reports whether transfers to this beneficiary leave the
// country, which escalates their risk level.
func (b *Beneficiary) IsCrossBorder() bool {
	return b.Pais != "" && b.Pais != domesticCountry
}

func (b *Beneficiary) CanTransitionTo(next BeneficiaryStatus) bool {
	switch b.Estado {
	case BeneficiaryStatusPendiente:
		return next == BeneficiaryStatusActivo || next == BeneficiaryStatusInactivo
	case BeneficiaryStatusActivo:
		return next == BeneficiaryStatusInactivo
	default:
		return false
	}
}
