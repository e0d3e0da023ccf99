package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMoney_Add(t *testing.T) {
	a := NewMoney(150_000, CurrencyCRC)
	b := NewMoney(50_000, CurrencyCRC)

	sum, err := a.Add(b)
	require.NoError(t, err)
	assert.Equal(t, NewMoney(200_000, CurrencyCRC), sum)
}

func TestMoney_Sub(t *testing.T) {
	a := NewMoney(150_000, CurrencyCRC)
	b := NewMoney(50_500, CurrencyCRC)

	diff, err := a.Sub(b)
	require.NoError(t, err)
	assert.Equal(t, int64(99_500), diff.Amount)

	neg, err := b.Sub(a)
	require.NoError(t, err)
	assert.True(t, neg.IsNegative())
}

func TestMoney_CurrencyMismatch(t *testing.T) {
	crc := NewMoney(1000, CurrencyCRC)
	usd := NewMoney(1000, CurrencyUSD)

	_, err := crc.Add(usd)
	assert.ErrorIs(t, err, ErrCurrencyMismatch)

	_, err = crc.Sub(usd)
	assert.ErrorIs(t, err, ErrCurrencyMismatch)

	_, err = crc.Cmp(usd)
	assert.ErrorIs(t, err, ErrCurrencyMismatch)
}

func TestMoney_Cmp(t *testing.T) {
	small := NewMoney(100, CurrencyUSD)
	big := NewMoney(200, CurrencyUSD)

	got, err := small.Cmp(big)
	require.NoError(t, err)
	assert.Equal(t, -1, got)

	got, err = big.Cmp(small)
	require.NoError(t, err)
	assert.Equal(t, 1, got)

	got, err = big.Cmp(big)
	require.NoError(t, err)
	assert.Equal(t, 0, got)
}
