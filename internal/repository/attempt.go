package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hntran/storefront/internal/domain/order"
	"github.com/hntran/storefront/internal/domain/payment"
)

const (
	saveAttemptSQL = `INSERT INTO checkout_attempts (txn_ref, gateway, request, total)
		VALUES ($1, $2, $3, $4)`

	getAttemptSQL = `SELECT txn_ref, gateway, request, total, created_at
		FROM checkout_attempts WHERE txn_ref = $1`

	deleteAttemptSQL = `DELETE FROM checkout_attempts WHERE txn_ref = $1`
)

var _ payment.AttemptRepository = (*AttemptRepository)(nil)

// AttemptRepository implements payment.AttemptRepository backed by
// PostgreSQL. The checkout request is stored as JSONB so a successful
// callback can replay it through the order service.
type AttemptRepository struct {
	pool *pgxpool.Pool
}

// NewAttemptRepository returns an AttemptRepository that uses the given pool.
func NewAttemptRepository(pool *pgxpool.Pool) *AttemptRepository {
	return &AttemptRepository{pool: pool}
}

// Save persists a pending checkout attempt keyed by transaction reference.
func (r *AttemptRepository) Save(ctx context.Context, a *payment.CheckoutAttempt) error {
	reqJSON, err := json.Marshal(a.Request)
	if err != nil {
		return fmt.Errorf("marshaling checkout request: %w", err)
	}

	_, err = r.pool.Exec(ctx, saveAttemptSQL, a.TxnRef, a.Gateway, reqJSON, a.Total)
	if err != nil {
		return fmt.Errorf("saving checkout attempt %q: %w", a.TxnRef, err)
	}
	return nil
}

// FindByTxnRef returns the pending attempt for a transaction reference.
func (r *AttemptRepository) FindByTxnRef(ctx context.Context, txnRef string) (*payment.CheckoutAttempt, error) {
	var (
		a       payment.CheckoutAttempt
		reqJSON []byte
	)
	err := r.pool.QueryRow(ctx, getAttemptSQL, txnRef).Scan(
		&a.TxnRef, &a.Gateway, &reqJSON, &a.Total, &a.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, payment.ErrAttemptNotFound
		}
		return nil, fmt.Errorf("finding checkout attempt %q: %w", txnRef, err)
	}

	var req order.CheckoutRequest
	if err := json.Unmarshal(reqJSON, &req); err != nil {
		return nil, fmt.Errorf("unmarshaling checkout request %q: %w", txnRef, err)
	}
	a.Request = req
	return &a, nil
}

// Delete removes a settled attempt.
func (r *AttemptRepository) Delete(ctx context.Context, txnRef string) error {
	_, err := r.pool.Exec(ctx, deleteAttemptSQL, txnRef)
	if err != nil {
		return fmt.Errorf("deleting checkout attempt %q: %w", txnRef, err)
	}
	return nil
}
