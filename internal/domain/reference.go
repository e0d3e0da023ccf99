package domain

import (
	"crypto/rand"
	"fmt"
	"time"
)

var referencePrefixes = map[TransactionType]string{
	TransactionTypeTransferencia: "TRF",
	TransactionTypePagoServicio:  "PAG",
	TransactionTypeDeposito:      "DEP",
	TransactionTypeRetiro:        "RET",
}

// NewReferenceNumber builds the human-readable reference printed on receipts,
// e.g. TRF-20260828-4F9A21C3. Uniqueness is ultimately enforced by the
// database index; the random suffix just makes collisions improbable.
func NewReferenceNumber(tipo TransactionType, now time.Time) string {
	prefix, ok := referencePrefixes[tipo]
	if !ok {
		prefix = "TRX"
	}

	var b [4]byte
	rand.Read(b[:])
	return fmt.Sprintf("%s-%s-%X", prefix, now.Format("20060102"), b)
}
