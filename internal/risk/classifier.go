// Package risk scores an intended operation before it settles. Rules are
// deterministic; history lookups are injected so classification itself stays
// side-effect free.
package risk

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/banpacifico/core-api/internal/config"
	"github.com/banpacifico/core-api/internal/domain"
)

// Flag strings as rendered on the review screens.
const (
	FlagMontoInusual       = "Monto inusual"
	FlagInternacional      = "Transferencia internacional"
	FlagRetiroEfectivo     = "Retiro en efectivo"
	FlagPrimerDestino      = "Primer destino"
	FlagVolumenExcepcional = "Volumen excepcional"
)

// Input describes the operation to score.
type Input struct {
	ClienteID      uuid.UUID
	Tipo           domain.TransactionType
	Monto          int64
	Moneda         domain.Currency
	CrossBorder    bool
	BeneficiarioID *uuid.UUID
	Now            time.Time
}

// Assessment is the classification outcome. RequiresReview mandates a
// HighValueOperation and human approval before settlement.
type Assessment struct {
	NivelRiesgo    domain.RiskLevel
	Flags          []string
	RequiresReview bool
	OperationType  domain.OperationType
}

type historyStore interface {
	HasPriorTransfersTo(ctx context.Context, clienteID, beneficiarioID uuid.UUID) (bool, error)
	SameDayVolume(ctx context.Context, clienteID uuid.UUID, dayStart time.Time) (int64, error)
	AverageDailyVolume(ctx context.Context, clienteID uuid.UUID, since time.Time, days int) (int64, error)
}

type Classifier struct {
	history historyStore
	config  *config.Config
}

func NewClassifier(history historyStore, cfg *config.Config) *Classifier {
	return &Classifier{history: history, config: cfg}
}

// Classify evaluates the rules in fixed order; the highest-severity rule that
// matches decides the level, and flags accumulate across all matches.
func (c *Classifier) Classify(ctx context.Context, in Input) (Assessment, error) {
	level := domain.RiskLevelBajo
	var flags []string
	opType := domain.OperationTypeTransferenciaMasiva

	currency := string(in.Moneda)
	highValue := c.config.HighValueThreshold(currency)
	critical := c.config.CriticalThreshold(currency)

	if critical > 0 && in.Monto >= critical {
		level = level.Max(domain.RiskLevelCritico)
		flags = append(flags, FlagMontoInusual)
	}

	if in.CrossBorder {
		level = level.Max(domain.RiskLevelAlto)
		flags = append(flags, FlagInternacional)
		opType = domain.OperationTypeTransferenciaInternacional
	}

	if in.Tipo == domain.TransactionTypeRetiro {
		if cash := c.config.CashThreshold(currency); cash > 0 && in.Monto >= cash {
			level = level.Max(domain.RiskLevelAlto)
			flags = append(flags, FlagRetiroEfectivo)
			opType = domain.OperationTypeRetiroEfectivoGrande
		}
	}

	if in.BeneficiarioID != nil {
		seen, err := c.history.HasPriorTransfersTo(ctx, in.ClienteID, *in.BeneficiarioID)
		if err != nil {
			return Assessment{}, fmt.Errorf("Classify: %w", err)
		}
		// First-time destinations flag the operation without escalating it.
		if !seen {
			flags = append(flags, FlagPrimerDestino)
		}
	}

	spike, err := c.volumeSpike(ctx, in)
	if err != nil {
		return Assessment{}, fmt.Errorf("Classify: %w", err)
	}
	if spike {
		if highValue > 0 && in.Monto >= highValue {
			level = level.Max(domain.RiskLevelCritico)
		} else {
			level = level.Max(domain.RiskLevelAlto)
		}
		flags = append(flags, FlagVolumenExcepcional)
		opType = domain.OperationTypeOperacionSospechosa
	}

	requiresReview := level == domain.RiskLevelAlto || level == domain.RiskLevelCritico ||
		(highValue > 0 && in.Monto >= highValue)

	return Assessment{
		NivelRiesgo:    level,
		Flags:          flags,
		RequiresReview: requiresReview,
		OperationType:  opType,
	}, nil
}

// volumeSpike reports whether today's aggregate volume, including this
// operation, exceeds the configured multiple of the client's historical
// daily average. Clients with no history cannot spike.
func (c *Classifier) volumeSpike(ctx context.Context, in Input) (bool, error) {
	dayStart := in.Now.Truncate(24 * time.Hour)

	avg, err := c.history.AverageDailyVolume(ctx, in.ClienteID,
		in.Now.AddDate(0, 0, -c.config.VolumeLookbackDays), c.config.VolumeLookbackDays)
	if err != nil {
		return false, err
	}
	if avg <= 0 {
		return false, nil
	}

	today, err := c.history.SameDayVolume(ctx, in.ClienteID, dayStart)
	if err != nil {
		return false, err
	}

	threshold := decimal.NewFromInt(avg).Mul(decimal.NewFromFloat(c.config.DailyVolumeMultiple))
	return decimal.NewFromInt(today + in.Monto).GreaterThan(threshold), nil
}
