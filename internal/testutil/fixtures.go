package testutil

import (
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/banpacifico/core-api/internal/domain"
)

const DefaultDailyLimit int64 = 10_000_000

func SeedAccount(t *testing.T, db *sql.DB, clienteID uuid.UUID, currency string, balance int64) *domain.Account {
	t.Helper()

	a := &domain.Account{
		ID:               uuid.New(),
		ClienteID:        clienteID,
		NumeroCuenta:     "CR21-" + uuid.NewString()[:8],
		Tipo:             domain.AccountTypeAhorros,
		Moneda:           domain.Currency(currency),
		Balance:          balance,
		AvailableBalance: balance,
		DailyLimit:       DefaultDailyLimit,
		Version:          0,
		Estado:           domain.AccountStatusActiva,
		CreatedAt:        time.Now().UTC(),
	}

	_, err := db.Exec(
		`INSERT INTO accounts (id, cliente_id, numero_cuenta, tipo, moneda, balance,
			available_balance, daily_limit, version, estado, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		a.ID, a.ClienteID, a.NumeroCuenta, a.Tipo, a.Moneda, a.Balance,
		a.AvailableBalance, a.DailyLimit, a.Version, a.Estado, a.CreatedAt,
	)
	if err != nil {
		t.Fatalf("seed account %s/%s: %v", clienteID, currency, err)
	}
	return a
}

func SeedBeneficiary(t *testing.T, db *sql.DB, clienteID uuid.UUID, alias, pais, currency string) *domain.Beneficiary {
	t.Helper()

	b := &domain.Beneficiary{
		ID:           uuid.New(),
		ClienteID:    clienteID,
		Alias:        alias,
		Banco:        "Banco Nacional",
		NumeroCuenta: "CR05-" + uuid.NewString()[:8],
		Moneda:       domain.Currency(currency),
		Pais:         pais,
		Estado:       domain.BeneficiaryStatusActivo,
		CreatedAt:    time.Now().UTC(),
	}

	_, err := db.Exec(
		`INSERT INTO beneficiaries (id, cliente_id, alias, banco, numero_cuenta, moneda,
			pais, estado, tiene_operaciones_pendientes, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		b.ID, b.ClienteID, b.Alias, b.Banco, b.NumeroCuenta, b.Moneda,
		b.Pais, b.Estado, b.TienePendientes, b.CreatedAt,
	)
	if err != nil {
		t.Fatalf("seed beneficiary %s: %v", alias, err)
	}
	return b
}

// GetBalances reads both balance columns for invariant checks.
func GetBalances(t *testing.T, db *sql.DB, accountID uuid.UUID) (balance, available int64) {
	t.Helper()

	err := db.QueryRow(
		`SELECT balance, available_balance FROM accounts WHERE id = $1`, accountID,
	).Scan(&balance, &available)
	if err != nil {
		t.Fatalf("get balances %s: %v", accountID, err)
	}
	return balance, available
}

func GetTransactionStatus(t *testing.T, db *sql.DB, transactionID uuid.UUID) domain.TransactionStatus {
	t.Helper()

	var estado domain.TransactionStatus
	err := db.QueryRow(
		`SELECT estado FROM transactions WHERE id = $1`, transactionID,
	).Scan(&estado)
	if err != nil {
		t.Fatalf("get transaction status %s: %v", transactionID, err)
	}
	return estado
}

func CountActiveHolds(t *testing.T, db *sql.DB, accountID uuid.UUID) int {
	t.Helper()

	var count int
	err := db.QueryRow(
		`SELECT COUNT(*) FROM holds WHERE account_id = $1 AND estado = 'activa'`, accountID,
	).Scan(&count)
	if err != nil {
		t.Fatalf("count active holds %s: %v", accountID, err)
	}
	return count
}

func Cliente(t *testing.T) domain.Actor {
	t.Helper()
	return domain.Actor{ID: uuid.New(), Email: "cliente@test.cr", Role: domain.RoleCliente}
}

func Gestor(t *testing.T) domain.Actor {
	t.Helper()
	return domain.Actor{ID: uuid.New(), Email: "gestor@test.cr", Role: domain.RoleGestor}
}
