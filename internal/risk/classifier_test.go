package risk

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banpacifico/core-api/internal/config"
	"github.com/banpacifico/core-api/internal/domain"
)

type stubHistory struct {
	seenBefore bool
	today      int64
	dailyAvg   int64
}

func (s *stubHistory) HasPriorTransfersTo(ctx context.Context, clienteID, beneficiarioID uuid.UUID) (bool, error) {
	return s.seenBefore, nil
}

func (s *stubHistory) SameDayVolume(ctx context.Context, clienteID uuid.UUID, dayStart time.Time) (int64, error) {
	return s.today, nil
}

func (s *stubHistory) AverageDailyVolume(ctx context.Context, clienteID uuid.UUID, since time.Time, days int) (int64, error) {
	return s.dailyAvg, nil
}

func testConfig() *config.Config {
	return &config.Config{
		HighValueThresholdCRC: 1_000_000,
		HighValueThresholdUSD: 2_000,
		CriticalThresholdCRC:  5_000_000,
		CriticalThresholdUSD:  10_000,
		CashThresholdCRC:      500_000,
		CashThresholdUSD:      1_000,
		DailyVolumeMultiple:   3,
		VolumeLookbackDays:    90,
	}
}

func classify(t *testing.T, history *stubHistory, in Input) Assessment {
	t.Helper()
	in.Now = time.Now().UTC()
	a, err := NewClassifier(history, testConfig()).Classify(context.Background(), in)
	require.NoError(t, err)
	return a
}

func TestClassify_SmallDomesticTransferIsLowRisk(t *testing.T) {
	a := classify(t, &stubHistory{seenBefore: true}, Input{
		ClienteID: uuid.New(),
		Tipo:      domain.TransactionTypeTransferencia,
		Monto:     50_000,
		Moneda:    domain.CurrencyCRC,
	})

	assert.Equal(t, domain.RiskLevelBajo, a.NivelRiesgo)
	assert.False(t, a.RequiresReview)
	assert.Empty(t, a.Flags)
}

func TestClassify_HighValueRequiresReviewWithoutEscalating(t *testing.T) {
	a := classify(t, &stubHistory{seenBefore: true}, Input{
		ClienteID: uuid.New(),
		Tipo:      domain.TransactionTypeTransferencia,
		Monto:     1_500_000,
		Moneda:    domain.CurrencyCRC,
	})

	assert.Equal(t, domain.RiskLevelBajo, a.NivelRiesgo)
	assert.True(t, a.RequiresReview)
}

func TestClassify_CriticalAmount(t *testing.T) {
	a := classify(t, &stubHistory{seenBefore: true}, Input{
		ClienteID: uuid.New(),
		Tipo:      domain.TransactionTypeTransferencia,
		Monto:     5_000_000,
		Moneda:    domain.CurrencyCRC,
	})

	assert.Equal(t, domain.RiskLevelCritico, a.NivelRiesgo)
	assert.True(t, a.RequiresReview)
	assert.Contains(t, a.Flags, FlagMontoInusual)
}

func TestClassify_CrossBorderIsAtLeastAlto(t *testing.T) {
	beneficiario := uuid.New()
	a := classify(t, &stubHistory{seenBefore: true}, Input{
		ClienteID:      uuid.New(),
		Tipo:           domain.TransactionTypeTransferencia,
		Monto:          10_000,
		Moneda:         domain.CurrencyUSD,
		CrossBorder:    true,
		BeneficiarioID: &beneficiario,
	})

	assert.Equal(t, domain.RiskLevelCritico, a.NivelRiesgo) // 10,000 USD is also critical
	assert.Contains(t, a.Flags, FlagInternacional)
	assert.True(t, a.RequiresReview)

	small := classify(t, &stubHistory{seenBefore: true}, Input{
		ClienteID:      uuid.New(),
		Tipo:           domain.TransactionTypeTransferencia,
		Monto:          100,
		Moneda:         domain.CurrencyUSD,
		CrossBorder:    true,
		BeneficiarioID: &beneficiario,
	})
	assert.Equal(t, domain.RiskLevelAlto, small.NivelRiesgo)
	assert.Equal(t, domain.OperationTypeTransferenciaInternacional, small.OperationType)
}

func TestClassify_LargeCashWithdrawal(t *testing.T) {
	a := classify(t, &stubHistory{}, Input{
		ClienteID: uuid.New(),
		Tipo:      domain.TransactionTypeRetiro,
		Monto:     600_000,
		Moneda:    domain.CurrencyCRC,
	})

	assert.Equal(t, domain.RiskLevelAlto, a.NivelRiesgo)
	assert.Contains(t, a.Flags, FlagRetiroEfectivo)
	assert.Equal(t, domain.OperationTypeRetiroEfectivoGrande, a.OperationType)
}

func TestClassify_FirstTimeDestinationFlagsWithoutEscalating(t *testing.T) {
	beneficiario := uuid.New()
	a := classify(t, &stubHistory{seenBefore: false}, Input{
		ClienteID:      uuid.New(),
		Tipo:           domain.TransactionTypeTransferencia,
		Monto:          10_000,
		Moneda:         domain.CurrencyCRC,
		BeneficiarioID: &beneficiario,
	})

	assert.Equal(t, domain.RiskLevelBajo, a.NivelRiesgo)
	assert.Contains(t, a.Flags, FlagPrimerDestino)
	assert.False(t, a.RequiresReview)
}

func TestClassify_VolumeSpike(t *testing.T) {
	// Average daily volume 100k, today already 250k: another 60k crosses the
	// 3x multiple.
	a := classify(t, &stubHistory{seenBefore: true, today: 250_000, dailyAvg: 100_000}, Input{
		ClienteID: uuid.New(),
		Tipo:      domain.TransactionTypeTransferencia,
		Monto:     60_000,
		Moneda:    domain.CurrencyCRC,
	})

	assert.Equal(t, domain.RiskLevelAlto, a.NivelRiesgo)
	assert.Contains(t, a.Flags, FlagVolumenExcepcional)
	assert.Equal(t, domain.OperationTypeOperacionSospechosa, a.OperationType)
	assert.True(t, a.RequiresReview)
}

func TestClassify_NoHistoryCannotSpike(t *testing.T) {
	a := classify(t, &stubHistory{seenBefore: true, today: 900_000, dailyAvg: 0}, Input{
		ClienteID: uuid.New(),
		Tipo:      domain.TransactionTypeTransferencia,
		Monto:     90_000,
		Moneda:    domain.CurrencyCRC,
	})

	assert.Equal(t, domain.RiskLevelBajo, a.NivelRiesgo)
	assert.NotContains(t, a.Flags, FlagVolumenExcepcional)
}
