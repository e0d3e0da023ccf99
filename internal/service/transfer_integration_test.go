package service_test

import (
	"context"
	"database/sql"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banpacifico/core-api/internal/config"
	"github.com/banpacifico/core-api/internal/domain"
	"github.com/banpacifico/core-api/internal/idempotency"
	"github.com/banpacifico/core-api/internal/ledger"
	"github.com/banpacifico/core-api/internal/repository"
	"github.com/banpacifico/core-api/internal/risk"
	"github.com/banpacifico/core-api/internal/service"
	"github.com/banpacifico/core-api/internal/testutil"
)

func testConfig() *config.Config {
	return &config.Config{
		FeeTransferOwnPct:      0,
		FeeTransferExternalPct: 0.01,
		FeeServicePaymentFlat:  300,
		HighValueThresholdCRC:  1_000_000,
		HighValueThresholdUSD:  2_000,
		CriticalThresholdCRC:   5_000_000,
		CriticalThresholdUSD:   10_000,
		CashThresholdCRC:       500_000,
		CashThresholdUSD:       1_000,
		DailyVolumeMultiple:    3,
		VolumeLookbackDays:     90,
		ScheduleHorizonDays:    90,
	}
}

func setupServices(t *testing.T, db *sql.DB) (*service.TransferService, *service.ApprovalService) {
	t.Helper()
	cfg := testConfig()

	accounts := repository.NewAccountRepository(db)
	beneficiaries := repository.NewBeneficiaryRepository(db)
	transactions := repository.NewTransactionRepository(db)
	events := repository.NewTransactionEventRepository(db)
	operations := repository.NewOperationRepository(db)
	holds := repository.NewHoldRepository(db)

	ldg := ledger.New(accounts, holds)
	guard := idempotency.NewGuard(db)
	classifier := risk.NewClassifier(transactions, cfg)
	fees := service.NewFeeTable(cfg)

	transfers := service.NewTransferService(db, accounts, beneficiaries, transactions,
		events, operations, ldg, guard, classifier, fees, cfg)
	approvals := service.NewApprovalService(db, accounts, beneficiaries, transactions,
		events, operations, ldg)
	return transfers, approvals
}

func TestTransfer_ExternalBeneficiary_HappyPath(t *testing.T) {
	db := testutil.SetupTestDB(t)
	transfers, _ := setupServices(t, db)
	ctx := context.Background()

	cliente := testutil.Cliente(t)
	acct := testutil.SeedAccount(t, db, cliente.ID, "CRC", 150_000)
	beneficiario := testutil.SeedBeneficiary(t, db, cliente.ID, "mi socio", "Costa Rica", "CRC")

	tn, err := transfers.Execute(ctx, cliente, domain.TransferRequest{
		CuentaOrigenID: acct.ID,
		BeneficiarioID: &beneficiario.ID,
		Monto:          50_000,
		IdempotencyKey: uuid.NewString(),
	})

	require.NoError(t, err)
	assert.Equal(t, domain.TransactionStatusExitosa, tn.Estado)
	assert.Equal(t, int64(50_000), tn.Monto)
	assert.Equal(t, int64(500), tn.Comision)
	assert.Equal(t, int64(50_500), tn.MontoTotal)
	assert.NotNil(t, tn.SettledAt)
	assert.True(t, strings.HasPrefix(tn.NumeroReferencia, "TRF-"))

	balance, available := testutil.GetBalances(t, db, acct.ID)
	assert.Equal(t, int64(99_500), balance)
	assert.Equal(t, int64(99_500), available)
	assert.Equal(t, 0, testutil.CountActiveHolds(t, db, acct.ID))
}

func TestTransfer_OwnAccounts_NoFeeAndDestinationCredited(t *testing.T) {
	db := testutil.SetupTestDB(t)
	transfers, _ := setupServices(t, db)
	ctx := context.Background()

	cliente := testutil.Cliente(t)
	origen := testutil.SeedAccount(t, db, cliente.ID, "CRC", 150_000)
	destino := testutil.SeedAccount(t, db, cliente.ID, "CRC", 20_000)

	tn, err := transfers.Execute(ctx, cliente, domain.TransferRequest{
		CuentaOrigenID:  origen.ID,
		CuentaDestinoID: &destino.ID,
		Monto:           50_000,
		IdempotencyKey:  uuid.NewString(),
	})

	require.NoError(t, err)
	assert.Equal(t, domain.TransactionStatusExitosa, tn.Estado)
	assert.Equal(t, int64(0), tn.Comision)

	srcBalance, srcAvailable := testutil.GetBalances(t, db, origen.ID)
	assert.Equal(t, int64(100_000), srcBalance)
	assert.Equal(t, int64(100_000), srcAvailable)

	dstBalance, dstAvailable := testutil.GetBalances(t, db, destino.ID)
	assert.Equal(t, int64(70_000), dstBalance)
	assert.Equal(t, int64(70_000), dstAvailable)
}

func TestTransfer_InsufficientFunds_RecordsFallida(t *testing.T) {
	db := testutil.SetupTestDB(t)
	transfers, _ := setupServices(t, db)
	ctx := context.Background()

	cliente := testutil.Cliente(t)
	acct := testutil.SeedAccount(t, db, cliente.ID, "CRC", 10_000)
	beneficiario := testutil.SeedBeneficiary(t, db, cliente.ID, "socio", "Costa Rica", "CRC")

	tn, err := transfers.Execute(ctx, cliente, domain.TransferRequest{
		CuentaOrigenID: acct.ID,
		BeneficiarioID: &beneficiario.ID,
		Monto:          50_000,
		IdempotencyKey: uuid.NewString(),
	})

	require.NoError(t, err)
	assert.Equal(t, domain.TransactionStatusFallida, tn.Estado)
	require.NotNil(t, tn.FailureReason)
	assert.Equal(t, "Fondos insuficientes", *tn.FailureReason)

	balance, available := testutil.GetBalances(t, db, acct.ID)
	assert.Equal(t, int64(10_000), balance)
	assert.Equal(t, int64(10_000), available)
	assert.Equal(t, 0, testutil.CountActiveHolds(t, db, acct.ID))
}

func TestTransfer_IdempotentReplay(t *testing.T) {
	db := testutil.SetupTestDB(t)
	transfers, _ := setupServices(t, db)
	ctx := context.Background()

	cliente := testutil.Cliente(t)
	acct := testutil.SeedAccount(t, db, cliente.ID, "CRC", 150_000)
	beneficiario := testutil.SeedBeneficiary(t, db, cliente.ID, "socio", "Costa Rica", "CRC")

	req := domain.TransferRequest{
		CuentaOrigenID: acct.ID,
		BeneficiarioID: &beneficiario.ID,
		Monto:          50_000,
		IdempotencyKey: uuid.NewString(),
	}

	first, err := transfers.Execute(ctx, cliente, req)
	require.NoError(t, err)

	second, err := transfers.Execute(ctx, cliente, req)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.NumeroReferencia, second.NumeroReferencia)

	// Debited exactly once.
	balance, _ := testutil.GetBalances(t, db, acct.ID)
	assert.Equal(t, int64(99_500), balance)
}

func TestTransfer_ReplayWithDifferentBodyConflicts(t *testing.T) {
	db := testutil.SetupTestDB(t)
	transfers, _ := setupServices(t, db)
	ctx := context.Background()

	cliente := testutil.Cliente(t)
	acct := testutil.SeedAccount(t, db, cliente.ID, "CRC", 150_000)
	beneficiario := testutil.SeedBeneficiary(t, db, cliente.ID, "socio", "Costa Rica", "CRC")

	key := uuid.NewString()
	_, err := transfers.Execute(ctx, cliente, domain.TransferRequest{
		CuentaOrigenID: acct.ID,
		BeneficiarioID: &beneficiario.ID,
		Monto:          50_000,
		IdempotencyKey: key,
	})
	require.NoError(t, err)

	_, err = transfers.Execute(ctx, cliente, domain.TransferRequest{
		CuentaOrigenID: acct.ID,
		BeneficiarioID: &beneficiario.ID,
		Monto:          60_000,
		IdempotencyKey: key,
	})
	require.ErrorIs(t, err, domain.ErrIdempotencyConflict)
}

func TestTransfer_ConcurrentDoubleSpend(t *testing.T) {
	db := testutil.SetupTestDB(t)
	transfers, _ := setupServices(t, db)
	ctx := context.Background()

	cliente := testutil.Cliente(t)
	acct := testutil.SeedAccount(t, db, cliente.ID, "CRC", 150_000)
	beneficiario := testutil.SeedBeneficiary(t, db, cliente.ID, "socio", "Costa Rica", "CRC")

	var wg sync.WaitGroup
	results := make(chan *domain.Transaction, 2)

	for range 2 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tn, err := transfers.Execute(ctx, cliente, domain.TransferRequest{
				CuentaOrigenID: acct.ID,
				BeneficiarioID: &beneficiario.ID,
				Monto:          100_000,
				IdempotencyKey: uuid.NewString(),
			})
			require.NoError(t, err)
			results <- tn
		}()
	}

	wg.Wait()
	close(results)

	var settled, failed int
	for tn := range results {
		switch tn.Estado {
		case domain.TransactionStatusExitosa:
			settled++
		case domain.TransactionStatusFallida:
			failed++
		}
	}
	assert.Equal(t, 1, settled)
	assert.Equal(t, 1, failed)

	// 100,000 plus the 1% commission left exactly once.
	balance, available := testutil.GetBalances(t, db, acct.ID)
	assert.Equal(t, int64(49_000), balance)
	assert.Equal(t, int64(49_000), available)
}

func TestTransfer_DailyLimitExceeded(t *testing.T) {
	db := testutil.SetupTestDB(t)
	transfers, _ := setupServices(t, db)
	ctx := context.Background()

	cliente := testutil.Cliente(t)
	acct := testutil.SeedAccount(t, db, cliente.ID, "CRC", 500_000)
	beneficiario := testutil.SeedBeneficiary(t, db, cliente.ID, "socio", "Costa Rica", "CRC")

	_, err := db.Exec(`UPDATE accounts SET daily_limit = 60000 WHERE id = $1`, acct.ID)
	require.NoError(t, err)

	tn, err := transfers.Execute(ctx, cliente, domain.TransferRequest{
		CuentaOrigenID: acct.ID,
		BeneficiarioID: &beneficiario.ID,
		Monto:          70_000,
		IdempotencyKey: uuid.NewString(),
	})

	require.NoError(t, err)
	assert.Equal(t, domain.TransactionStatusFallida, tn.Estado)
	require.NotNil(t, tn.FailureReason)
	assert.Equal(t, "Límite diario excedido", *tn.FailureReason)

	balance, _ := testutil.GetBalances(t, db, acct.ID)
	assert.Equal(t, int64(500_000), balance)
}

func TestTransfer_HighValueGoesToReview(t *testing.T) {
	db := testutil.SetupTestDB(t)
	transfers, _ := setupServices(t, db)
	ctx := context.Background()

	cliente := testutil.Cliente(t)
	acct := testutil.SeedAccount(t, db, cliente.ID, "CRC", 2_000_000)
	beneficiario := testutil.SeedBeneficiary(t, db, cliente.ID, "socio", "Costa Rica", "CRC")

	tn, err := transfers.Execute(ctx, cliente, domain.TransferRequest{
		CuentaOrigenID: acct.ID,
		BeneficiarioID: &beneficiario.ID,
		Monto:          1_200_000,
		IdempotencyKey: uuid.NewString(),
	})

	require.NoError(t, err)
	assert.Equal(t, domain.TransactionStatusPendienteAprobacion, tn.Estado)
	assert.Nil(t, tn.SettledAt)

	// The full amount is held but not yet settled.
	balance, available := testutil.GetBalances(t, db, acct.ID)
	assert.Equal(t, int64(2_000_000), balance)
	assert.Equal(t, int64(788_000), available)
	assert.Equal(t, 1, testutil.CountActiveHolds(t, db, acct.ID))

	op, err := repository.NewOperationRepository(db).GetByTransactionID(ctx, tn.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OperationStatusPendiente, op.Estado)
	assert.Equal(t, int64(1_212_000), op.Monto)
	assert.False(t, op.RequiereVerificacion)

	var pendientes bool
	require.NoError(t, db.QueryRow(
		`SELECT tiene_operaciones_pendientes FROM beneficiaries WHERE id = $1`, beneficiario.ID,
	).Scan(&pendientes))
	assert.True(t, pendientes)
}

func TestTransfer_Precheck(t *testing.T) {
	db := testutil.SetupTestDB(t)
	transfers, _ := setupServices(t, db)
	ctx := context.Background()

	cliente := testutil.Cliente(t)
	acct := testutil.SeedAccount(t, db, cliente.ID, "CRC", 150_000)
	beneficiario := testutil.SeedBeneficiary(t, db, cliente.ID, "socio", "Costa Rica", "CRC")

	pc, err := transfers.Precheck(ctx, cliente, domain.TransferRequest{
		CuentaOrigenID: acct.ID,
		BeneficiarioID: &beneficiario.ID,
		Monto:          50_000,
	})

	require.NoError(t, err)
	assert.True(t, pc.PuedeEjecutar)
	assert.False(t, pc.RequiereAprobacion)
	assert.Equal(t, int64(150_000), pc.SaldoAntes)
	assert.Equal(t, int64(500), pc.Comision)
	assert.Equal(t, int64(50_500), pc.MontoTotal)
	assert.Equal(t, int64(99_500), pc.SaldoDespues)

	// Nothing was touched or recorded.
	balance, available := testutil.GetBalances(t, db, acct.ID)
	assert.Equal(t, int64(150_000), balance)
	assert.Equal(t, int64(150_000), available)

	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM transactions`).Scan(&count))
	assert.Equal(t, 0, count)

	over, err := transfers.Precheck(ctx, cliente, domain.TransferRequest{
		CuentaOrigenID: acct.ID,
		BeneficiarioID: &beneficiario.ID,
		Monto:          200_000,
	})
	require.NoError(t, err)
	assert.False(t, over.PuedeEjecutar)
	assert.Equal(t, "Fondos insuficientes", over.Mensaje)
}

func TestTransfer_CancelPendingReleasesHold(t *testing.T) {
	db := testutil.SetupTestDB(t)
	transfers, _ := setupServices(t, db)
	ctx := context.Background()

	cliente := testutil.Cliente(t)
	acct := testutil.SeedAccount(t, db, cliente.ID, "CRC", 2_000_000)
	beneficiario := testutil.SeedBeneficiary(t, db, cliente.ID, "socio", "Costa Rica", "CRC")

	tn, err := transfers.Execute(ctx, cliente, domain.TransferRequest{
		CuentaOrigenID: acct.ID,
		BeneficiarioID: &beneficiario.ID,
		Monto:          1_200_000,
		IdempotencyKey: uuid.NewString(),
	})
	require.NoError(t, err)
	require.Equal(t, domain.TransactionStatusPendienteAprobacion, tn.Estado)

	cancelled, err := transfers.Cancel(ctx, cliente, tn.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionStatusCancelada, cancelled.Estado)

	balance, available := testutil.GetBalances(t, db, acct.ID)
	assert.Equal(t, int64(2_000_000), balance)
	assert.Equal(t, int64(2_000_000), available)
	assert.Equal(t, 0, testutil.CountActiveHolds(t, db, acct.ID))

	op, err := repository.NewOperationRepository(db).GetByTransactionID(ctx, tn.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OperationStatusRechazada, op.Estado)

	var pendientes bool
	require.NoError(t, db.QueryRow(
		`SELECT tiene_operaciones_pendientes FROM beneficiaries WHERE id = $1`, beneficiario.ID,
	).Scan(&pendientes))
	assert.False(t, pendientes)
}

func TestTransfer_CancelSettledFails(t *testing.T) {
	db := testutil.SetupTestDB(t)
	transfers, _ := setupServices(t, db)
	ctx := context.Background()

	cliente := testutil.Cliente(t)
	acct := testutil.SeedAccount(t, db, cliente.ID, "CRC", 150_000)
	beneficiario := testutil.SeedBeneficiary(t, db, cliente.ID, "socio", "Costa Rica", "CRC")

	tn, err := transfers.Execute(ctx, cliente, domain.TransferRequest{
		CuentaOrigenID: acct.ID,
		BeneficiarioID: &beneficiario.ID,
		Monto:          50_000,
		IdempotencyKey: uuid.NewString(),
	})
	require.NoError(t, err)
	require.Equal(t, domain.TransactionStatusExitosa, tn.Estado)

	_, err = transfers.Cancel(ctx, cliente, tn.ID)
	require.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestTransfer_ScheduledSettlesWhenDue(t *testing.T) {
	db := testutil.SetupTestDB(t)
	transfers, _ := setupServices(t, db)
	ctx := context.Background()

	cliente := testutil.Cliente(t)
	acct := testutil.SeedAccount(t, db, cliente.ID, "CRC", 150_000)
	beneficiario := testutil.SeedBeneficiary(t, db, cliente.ID, "socio", "Costa Rica", "CRC")

	fecha := time.Now().UTC().Add(24 * time.Hour)
	tn, err := transfers.Execute(ctx, cliente, domain.TransferRequest{
		CuentaOrigenID:  acct.ID,
		BeneficiarioID:  &beneficiario.ID,
		Monto:           50_000,
		Programada:      true,
		FechaProgramada: &fecha,
		IdempotencyKey:  uuid.NewString(),
	})
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionStatusProgramada, tn.Estado)

	// No funds move until the date arrives.
	balance, available := testutil.GetBalances(t, db, acct.ID)
	assert.Equal(t, int64(150_000), balance)
	assert.Equal(t, int64(150_000), available)

	n, err := transfers.RunDueScheduled(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	// Bring the date forward and let the scheduler pick it up.
	_, err = db.Exec(`UPDATE transactions SET fecha_programada = now() - interval '1 minute' WHERE id = $1`, tn.ID)
	require.NoError(t, err)

	n, err = transfers.RunDueScheduled(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	assert.Equal(t, domain.TransactionStatusExitosa, testutil.GetTransactionStatus(t, db, tn.ID))
	balance, available = testutil.GetBalances(t, db, acct.ID)
	assert.Equal(t, int64(99_500), balance)
	assert.Equal(t, int64(99_500), available)
}

func TestTransfer_ScheduledHighValueParksForApproval(t *testing.T) {
	db := testutil.SetupTestDB(t)
	transfers, _ := setupServices(t, db)
	ctx := context.Background()

	cliente := testutil.Cliente(t)
	acct := testutil.SeedAccount(t, db, cliente.ID, "CRC", 2_000_000)
	beneficiario := testutil.SeedBeneficiary(t, db, cliente.ID, "socio", "Costa Rica", "CRC")

	fecha := time.Now().UTC().Add(24 * time.Hour)
	tn, err := transfers.Execute(ctx, cliente, domain.TransferRequest{
		CuentaOrigenID:  acct.ID,
		BeneficiarioID:  &beneficiario.ID,
		Monto:           1_200_000,
		Programada:      true,
		FechaProgramada: &fecha,
		IdempotencyKey:  uuid.NewString(),
	})
	require.NoError(t, err)
	require.Equal(t, domain.TransactionStatusProgramada, tn.Estado)

	_, err = db.Exec(`UPDATE transactions SET fecha_programada = now() - interval '1 minute' WHERE id = $1`, tn.ID)
	require.NoError(t, err)

	n, err := transfers.RunDueScheduled(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// The due amount lands in review instead of settling on its own.
	assert.Equal(t, domain.TransactionStatusPendienteAprobacion, testutil.GetTransactionStatus(t, db, tn.ID))

	balance, available := testutil.GetBalances(t, db, acct.ID)
	assert.Equal(t, int64(2_000_000), balance)
	assert.Equal(t, int64(788_000), available)
	assert.Equal(t, 1, testutil.CountActiveHolds(t, db, acct.ID))

	op, err := repository.NewOperationRepository(db).GetByTransactionID(ctx, tn.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OperationStatusPendiente, op.Estado)
	assert.Equal(t, int64(1_212_000), op.Monto)

	var pendientes bool
	require.NoError(t, db.QueryRow(
		`SELECT tiene_operaciones_pendientes FROM beneficiaries WHERE id = $1`, beneficiario.ID,
	).Scan(&pendientes))
	assert.True(t, pendientes)
}

func TestTransfer_ScheduledBatchHonorsDailyLimit(t *testing.T) {
	db := testutil.SetupTestDB(t)
	transfers, _ := setupServices(t, db)
	ctx := context.Background()

	cliente := testutil.Cliente(t)
	acct := testutil.SeedAccount(t, db, cliente.ID, "CRC", 500_000)
	beneficiario := testutil.SeedBeneficiary(t, db, cliente.ID, "socio", "Costa Rica", "CRC")

	_, err := db.Exec(`UPDATE accounts SET daily_limit = 60000 WHERE id = $1`, acct.ID)
	require.NoError(t, err)

	// Two transfers that fit the limit individually but not together.
	var ids [2]uuid.UUID
	for i := range ids {
		fecha := time.Now().UTC().Add(24 * time.Hour)
		tn, err := transfers.Execute(ctx, cliente, domain.TransferRequest{
			CuentaOrigenID:  acct.ID,
			BeneficiarioID:  &beneficiario.ID,
			Monto:           40_000,
			Programada:      true,
			FechaProgramada: &fecha,
			IdempotencyKey:  uuid.NewString(),
		})
		require.NoError(t, err)
		ids[i] = tn.ID
	}

	// The scheduler takes due transactions oldest first.
	_, err = db.Exec(`UPDATE transactions SET fecha_programada = now() - interval '2 minutes' WHERE id = $1`, ids[0])
	require.NoError(t, err)
	_, err = db.Exec(`UPDATE transactions SET fecha_programada = now() - interval '1 minute' WHERE id = $1`, ids[1])
	require.NoError(t, err)

	n, err := transfers.RunDueScheduled(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	assert.Equal(t, domain.TransactionStatusExitosa, testutil.GetTransactionStatus(t, db, ids[0]))
	assert.Equal(t, domain.TransactionStatusFallida, testutil.GetTransactionStatus(t, db, ids[1]))

	var reason string
	require.NoError(t, db.QueryRow(
		`SELECT failure_reason FROM transactions WHERE id = $1`, ids[1],
	).Scan(&reason))
	assert.Equal(t, "Límite diario excedido", reason)

	// Only the first debit happened.
	balance, available := testutil.GetBalances(t, db, acct.ID)
	assert.Equal(t, int64(459_600), balance)
	assert.Equal(t, int64(459_600), available)
	assert.Equal(t, 0, testutil.CountActiveHolds(t, db, acct.ID))
}

func TestTransfer_ScheduleValidation(t *testing.T) {
	db := testutil.SetupTestDB(t)
	transfers, _ := setupServices(t, db)
	ctx := context.Background()

	cliente := testutil.Cliente(t)
	acct := testutil.SeedAccount(t, db, cliente.ID, "CRC", 150_000)
	beneficiario := testutil.SeedBeneficiary(t, db, cliente.ID, "socio", "Costa Rica", "CRC")

	past := time.Now().UTC().Add(-time.Hour)
	_, err := transfers.Execute(ctx, cliente, domain.TransferRequest{
		CuentaOrigenID:  acct.ID,
		BeneficiarioID:  &beneficiario.ID,
		Monto:           50_000,
		Programada:      true,
		FechaProgramada: &past,
		IdempotencyKey:  uuid.NewString(),
	})
	require.ErrorIs(t, err, domain.ErrScheduleInPast)

	tooFar := time.Now().UTC().AddDate(0, 0, 120)
	_, err = transfers.Execute(ctx, cliente, domain.TransferRequest{
		CuentaOrigenID:  acct.ID,
		BeneficiarioID:  &beneficiario.ID,
		Monto:           50_000,
		Programada:      true,
		FechaProgramada: &tooFar,
		IdempotencyKey:  uuid.NewString(),
	})
	require.ErrorIs(t, err, domain.ErrScheduleTooFar)
}

func TestTransfer_DestinationValidation(t *testing.T) {
	db := testutil.SetupTestDB(t)
	transfers, _ := setupServices(t, db)
	ctx := context.Background()

	cliente := testutil.Cliente(t)
	acct := testutil.SeedAccount(t, db, cliente.ID, "CRC", 150_000)
	usdAcct := testutil.SeedAccount(t, db, cliente.ID, "USD", 1_000)

	_, err := transfers.Execute(ctx, cliente, domain.TransferRequest{
		CuentaOrigenID:  acct.ID,
		CuentaDestinoID: &acct.ID,
		Monto:           1_000,
		IdempotencyKey:  uuid.NewString(),
	})
	require.ErrorIs(t, err, domain.ErrSelfTransfer)

	_, err = transfers.Execute(ctx, cliente, domain.TransferRequest{
		CuentaOrigenID:  acct.ID,
		CuentaDestinoID: &usdAcct.ID,
		Monto:           1_000,
		IdempotencyKey:  uuid.NewString(),
	})
	require.ErrorIs(t, err, domain.ErrCurrencyMismatch)

	_, err = transfers.Execute(ctx, cliente, domain.TransferRequest{
		CuentaOrigenID: acct.ID,
		Monto:          1_000,
		IdempotencyKey: uuid.NewString(),
	})
	require.ErrorIs(t, err, domain.ErrMissingDestination)

	// A source account the actor does not own reads as not found.
	otro := testutil.Cliente(t)
	otherAcct := testutil.SeedAccount(t, db, otro.ID, "CRC", 1_000)
	_, err = transfers.Execute(ctx, otro, domain.TransferRequest{
		CuentaOrigenID:  acct.ID,
		CuentaDestinoID: &otherAcct.ID,
		Monto:           1_000,
		IdempotencyKey:  uuid.NewString(),
	})
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestTransfer_OtherClientAccountChargesExternalFee(t *testing.T) {
	db := testutil.SetupTestDB(t)
	transfers, _ := setupServices(t, db)
	ctx := context.Background()

	cliente := testutil.Cliente(t)
	otro := testutil.Cliente(t)
	origen := testutil.SeedAccount(t, db, cliente.ID, "CRC", 150_000)
	destino := testutil.SeedAccount(t, db, otro.ID, "CRC", 0)

	tn, err := transfers.Execute(ctx, cliente, domain.TransferRequest{
		CuentaOrigenID:  origen.ID,
		CuentaDestinoID: &destino.ID,
		Monto:           50_000,
		IdempotencyKey:  uuid.NewString(),
	})

	require.NoError(t, err)
	assert.Equal(t, domain.TransactionStatusExitosa, tn.Estado)
	assert.Equal(t, int64(500), tn.Comision)

	srcBalance, _ := testutil.GetBalances(t, db, origen.ID)
	assert.Equal(t, int64(99_500), srcBalance)

	// The commission stays with the bank; the recipient gets the amount.
	dstBalance, _ := testutil.GetBalances(t, db, destino.ID)
	assert.Equal(t, int64(50_000), dstBalance)
}
