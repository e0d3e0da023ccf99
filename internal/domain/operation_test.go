package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOperationStatus_CanTransitionTo(t *testing.T) {
	tests := []struct {
		from    OperationStatus
		to      OperationStatus
		allowed bool
	}{
		{OperationStatusPendiente, OperationStatusVerificada, true},
		{OperationStatusPendiente, OperationStatusRechazada, true},
		{OperationStatusPendiente, OperationStatusAprobada, false},
		{OperationStatusVerificada, OperationStatusAprobada, true},
		{OperationStatusVerificada, OperationStatusRechazada, true},
		{OperationStatusAprobada, OperationStatusCompletada, true},
		{OperationStatusAprobada, OperationStatusRechazada, false},
		{OperationStatusBloqueada, OperationStatusVerificada, true},
		{OperationStatusBloqueada, OperationStatusAprobada, false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.allowed, tt.from.CanTransitionTo(tt.to),
			"%s -> %s", tt.from, tt.to)
	}
}

func TestOperationStatus_BlockableFromAnyNonTerminal(t *testing.T) {
	assert.True(t, OperationStatusPendiente.CanTransitionTo(OperationStatusBloqueada))
	assert.True(t, OperationStatusVerificada.CanTransitionTo(OperationStatusBloqueada))

	assert.False(t, OperationStatusBloqueada.CanTransitionTo(OperationStatusBloqueada))
	assert.False(t, OperationStatusAprobada.CanTransitionTo(OperationStatusBloqueada))
	assert.False(t, OperationStatusRechazada.CanTransitionTo(OperationStatusBloqueada))
	assert.False(t, OperationStatusCompletada.CanTransitionTo(OperationStatusBloqueada))
}

func TestRiskLevel_Max(t *testing.T) {
	assert.Equal(t, RiskLevelAlto, RiskLevelBajo.Max(RiskLevelAlto))
	assert.Equal(t, RiskLevelAlto, RiskLevelAlto.Max(RiskLevelMedio))
	assert.Equal(t, RiskLevelCritico, RiskLevelAlto.Max(RiskLevelCritico))
	assert.Equal(t, RiskLevelBajo, RiskLevelBajo.Max(RiskLevelBajo))
}
