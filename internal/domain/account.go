package domain

import (
	"time"

	"github.com/google/uuid"
)

type AccountType string

const (
	AccountTypeAhorros   AccountType = "Ahorros"
	AccountTypeCorriente AccountType = "Corriente"
	AccountTypeInversion AccountType = "Inversión"
	AccountTypePlazoFijo AccountType = "Plazo fijo"
)

type AccountStatus string

const (
	AccountStatusActiva    AccountStatus = "Activa"
	AccountStatusBloqueada AccountStatus = "Bloqueada"
	AccountStatusCerrada   AccountStatus = "Cerrada"
)

// Account balances are mutated only by the ledger under a per-account row
// lock. AvailableBalance is Balance minus active holds and never exceeds it.
type Account struct {
	ID               uuid.UUID
	ClienteID        uuid.UUID
	NumeroCuenta     string
	Tipo             AccountType
	Moneda           Currency
	Balance          int64
	AvailableBalance int64
	DailyLimit       int64
	Version          int64
	Estado           AccountStatus
	CreatedAt        time.Time
}

// CanTransitionTo enforces the account lifecycle: Activa and Bloqueada swap
// freely, Cerrada is terminal and only reachable from Activa with a zero
// balance.
func (a *Account) CanTransitionTo(next AccountStatus) bool {
	switch a.Estado {
	case AccountStatusActiva:
		if next == AccountStatusBloqueada {
			return true
		}
		return next == AccountStatusCerrada && a.Balance == 0
	case AccountStatusBloqueada:
		return next == AccountStatusActiva
	default:
		return false
	}
}
