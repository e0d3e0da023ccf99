package domain

import "fmt"

type Currency string

const (
	CurrencyCRC Currency = "CRC"
	CurrencyUSD Currency = "USD"
)

func (c Currency) IsValid() bool {
	return c == CurrencyCRC || c == CurrencyUSD
}

// Money is an exact amount in minor units of a single currency. It is never
// backed by floating point; all arithmetic is integer arithmetic, and
// operations across different currencies fail with ErrCurrencyMismatch.
type Money struct {
	Amount   int64
	Currency Currency
}

func NewMoney(amount int64, currency Currency) Money {
	return Money{Amount: amount, Currency: currency}
}

func (m Money) Add(other Money) (Money, error) {
	if m.Currency != other.Currency {
		return Money{}, fmt.Errorf("Add: %s + %s: %w", m.Currency, other.Currency, ErrCurrencyMismatch)
	}
	return Money{Amount: m.Amount + other.Amount, Currency: m.Currency}, nil
}

func (m Money) Sub(other Money) (Money, error) {
	if m.Currency != other.Currency {
		return Money{}, fmt.Errorf("Sub: %s - %s: %w", m.Currency, other.Currency, ErrCurrencyMismatch)
	}
	return Money{Amount: m.Amount - other.Amount, Currency: m.Currency}, nil
}

// Cmp returns -1, 0 or 1. Comparing across currencies is a programming error
// and is reported as ErrCurrencyMismatch rather than silently ordered.
func (m Money) Cmp(other Money) (int, error) {
	if m.Currency != other.Currency {
		return 0, fmt.Errorf("Cmp: %s vs %s: %w", m.Currency, other.Currency, ErrCurrencyMismatch)
	}
	switch {
	case m.Amount < other.Amount:
		return -1, nil
	case m.Amount > other.Amount:
		return 1, nil
	default:
		return 0, nil
	}
}

func (m Money) IsPositive() bool { return m.Amount > 0 }

func (m Money) IsNegative() bool { return m.Amount < 0 }

func (m Money) String() string {
	return fmt.Sprintf("%d %s", m.Amount, m.Currency)
}
