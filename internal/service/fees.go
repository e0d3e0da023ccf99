package service

import (
	"github.com/shopspring/decimal"

	"github.com/banpacifico/core-api/internal/config"
	"github.com/banpacifico/core-api/internal/domain"
)

// FeeTable computes commissions deterministically from the transaction type
// and destination. Fees are always expressed in the source account's
// currency; percentages are applied with exact decimal arithmetic and
// rounded to the nearest minor unit.
type FeeTable struct {
	ownPct             decimal.Decimal
	externalPct        decimal.Decimal
	servicePaymentFlat int64
}

func NewFeeTable(cfg *config.Config) *FeeTable {
	return &FeeTable{
		ownPct:             decimal.NewFromFloat(cfg.FeeTransferOwnPct),
		externalPct:        decimal.NewFromFloat(cfg.FeeTransferExternalPct),
		servicePaymentFlat: cfg.FeeServicePaymentFlat,
	}
}

// Fee returns the commission in minor units. external marks a transfer whose
// destination is a registered beneficiary rather than one of the client's
// own accounts.
func (f *FeeTable) Fee(tipo domain.TransactionType, external bool, amount int64) int64 {
	switch tipo {
	case domain.TransactionTypeTransferencia:
		rate := f.ownPct
		if external {
			rate = f.externalPct
		}
		return rate.Mul(decimal.NewFromInt(amount)).Round(0).IntPart()
	case domain.TransactionTypePagoServicio:
		return f.servicePaymentFlat
	default:
		return 0
	}
}
