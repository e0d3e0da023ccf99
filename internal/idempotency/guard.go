// Package idempotency guarantees at-most-once execution of the
// balance-mutating path per client-supplied key. Begin marks a key in-flight
// with a unique insert; a second caller on the same key waits for the first
// to finish and then receives the recorded result instead of re-executing.
package idempotency

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/banpacifico/core-api/internal/domain"
)

const (
	statusInFlight = "in_flight"
	statusFinished = "finished"

	pollInterval = 100 * time.Millisecond
	maxWait      = 30 * time.Second
)

// Ticket is the outcome of Begin. IsNew means the caller owns execution and
// must call Finish (or Abandon on a crash-free failure path) exactly once.
// Otherwise TransactionID points at the result recorded by the owner.
type Ticket struct {
	IsNew         bool
	TransactionID uuid.UUID
}

type Guard struct {
	db *sql.DB
}

func NewGuard(db *sql.DB) *Guard {
	return &Guard{db: db}
}

// Hash fingerprints a request body so a key replayed with different contents
// is rejected rather than silently answered with the old result.
func Hash(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	return fmt.Sprintf("%x", h.Sum(nil))
}

func (g *Guard) Begin(ctx context.Context, key, requestHash string) (Ticket, error) {
	res, err := g.db.ExecContext(ctx,
		`INSERT INTO idempotency_keys (key, request_hash, estado, created_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (key) DO NOTHING`,
		key, requestHash, statusInFlight,
	)
	if err != nil {
		return Ticket{}, fmt.Errorf("Begin: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return Ticket{}, fmt.Errorf("Begin: rows affected: %w", err)
	}
	if rows == 1 {
		return Ticket{IsNew: true}, nil
	}

	// The key exists: either a finished result to replay or a concurrent
	// execution to wait out.
	return g.await(ctx, key, requestHash)
}

func (g *Guard) await(ctx context.Context, key, requestHash string) (Ticket, error) {
	deadline := time.Now().Add(maxWait)

	for {
		var estado, storedHash string
		var transactionID uuid.NullUUID
		err := g.db.QueryRowContext(ctx,
			`SELECT estado, request_hash, transaction_id FROM idempotency_keys WHERE key = $1`,
			key,
		).Scan(&estado, &storedHash, &transactionID)
		if errors.Is(err, sql.ErrNoRows) {
			// Owner abandoned the key between our insert attempt and this
			// read; take ownership on the next Begin.
			return Ticket{}, fmt.Errorf("await: key released: %w", domain.ErrVersionConflict)
		}
		if err != nil {
			return Ticket{}, fmt.Errorf("await: %w", err)
		}

		if storedHash != requestHash {
			return Ticket{}, fmt.Errorf("await: %w", domain.ErrIdempotencyConflict)
		}

		if estado == statusFinished && transactionID.Valid {
			return Ticket{IsNew: false, TransactionID: transactionID.UUID}, nil
		}

		if time.Now().After(deadline) {
			return Ticket{}, fmt.Errorf("await: key %s still in flight after %s", key, maxWait)
		}

		select {
		case <-ctx.Done():
			return Ticket{}, fmt.Errorf("await: %w", ctx.Err())
		case <-time.After(pollInterval):
		}
	}
}

// Finish records the terminal result against the key permanently. Retention
// is a deployment decision; nothing here evicts finished keys.
func (g *Guard) Finish(ctx context.Context, key string, transactionID uuid.UUID) error {
	res, err := g.db.ExecContext(ctx,
		`UPDATE idempotency_keys
		SET estado = $1, transaction_id = $2, finished_at = now()
		WHERE key = $3 AND estado = $4`,
		statusFinished, transactionID, key, statusInFlight,
	)
	if err != nil {
		return fmt.Errorf("Finish: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("Finish: rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("Finish: key %s not in flight: %w", key, domain.ErrInvalidTransition)
	}
	return nil
}

// Abandon releases an in-flight key whose execution failed before any
// transaction record was created, so a retry can run fresh.
func (g *Guard) Abandon(ctx context.Context, key string) error {
	_, err := g.db.ExecContext(ctx,
		`DELETE FROM idempotency_keys WHERE key = $1 AND estado = $2`,
		key, statusInFlight,
	)
	if err != nil {
		return fmt.Errorf("Abandon: %w", err)
	}
	return nil
}
