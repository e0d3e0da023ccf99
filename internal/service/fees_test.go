package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/banpacifico/core-api/internal/config"
	"github.com/banpacifico/core-api/internal/domain"
)

func testFeeTable() *FeeTable {
	return NewFeeTable(&config.Config{
		FeeTransferOwnPct:      0,
		FeeTransferExternalPct: 0.01,
		FeeServicePaymentFlat:  300,
	})
}

func TestFeeTable_ExternalTransfer(t *testing.T) {
	fees := testFeeTable()

	assert.Equal(t, int64(500), fees.Fee(domain.TransactionTypeTransferencia, true, 50_000))
	assert.Equal(t, int64(10_000), fees.Fee(domain.TransactionTypeTransferencia, true, 1_000_000))
	assert.Equal(t, int64(0), fees.Fee(domain.TransactionTypeTransferencia, true, 0))
}

func TestFeeTable_OwnTransferIsFree(t *testing.T) {
	fees := testFeeTable()

	assert.Equal(t, int64(0), fees.Fee(domain.TransactionTypeTransferencia, false, 50_000))
}

func TestFeeTable_ServicePaymentFlatFee(t *testing.T) {
	fees := testFeeTable()

	assert.Equal(t, int64(300), fees.Fee(domain.TransactionTypePagoServicio, true, 25_000))
	assert.Equal(t, int64(300), fees.Fee(domain.TransactionTypePagoServicio, false, 1_000))
}

func TestFeeTable_RoundsToNearestMinorUnit(t *testing.T) {
	fees := NewFeeTable(&config.Config{FeeTransferExternalPct: 0.01})

	// 1% of 151 is 1.51, which rounds to 2.
	assert.Equal(t, int64(2), fees.Fee(domain.TransactionTypeTransferencia, true, 151))
	// 1% of 149 is 1.49, which rounds to 1.
	assert.Equal(t, int64(1), fees.Fee(domain.TransactionTypeTransferencia, true, 149))
}
