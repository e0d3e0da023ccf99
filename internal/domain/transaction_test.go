package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTransactionStatus_CanTransitionTo(t *testing.T) {
	tests := []struct {
		from    TransactionStatus
		to      TransactionStatus
		allowed bool
	}{
		{TransactionStatusProgramada, TransactionStatusPendienteAprobacion, true},
		{TransactionStatusProgramada, TransactionStatusExitosa, true},
		{TransactionStatusProgramada, TransactionStatusFallida, true},
		{TransactionStatusProgramada, TransactionStatusCancelada, true},
		{TransactionStatusProgramada, TransactionStatusRechazada, false},
		{TransactionStatusPendienteAprobacion, TransactionStatusExitosa, true},
		{TransactionStatusPendienteAprobacion, TransactionStatusRechazada, true},
		{TransactionStatusPendienteAprobacion, TransactionStatusCancelada, true},
		{TransactionStatusPendienteAprobacion, TransactionStatusFallida, false},
		{TransactionStatusPendienteAprobacion, TransactionStatusProgramada, false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.allowed, tt.from.CanTransitionTo(tt.to),
			"%s -> %s", tt.from, tt.to)
	}
}

func TestTransactionStatus_TerminalStatesAreFinal(t *testing.T) {
	terminals := []TransactionStatus{
		TransactionStatusExitosa,
		TransactionStatusFallida,
		TransactionStatusCancelada,
		TransactionStatusRechazada,
	}
	all := append([]TransactionStatus{
		TransactionStatusPendienteAprobacion,
		TransactionStatusProgramada,
	}, terminals...)

	for _, from := range terminals {
		assert.True(t, from.IsTerminal(), "%s should be terminal", from)
		for _, to := range all {
			assert.False(t, from.CanTransitionTo(to), "%s -> %s must be forbidden", from, to)
		}
	}
}
