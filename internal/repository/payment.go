package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hntran/storefront/internal/domain/payment"
)

const (
	insertPaymentSQL = `INSERT INTO payments (gateway, txn_ref, transaction_id, amount, response_code, success, order_code)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at`

	setPaymentOrderCodeSQL = `UPDATE payments SET order_code = $2 WHERE txn_ref = $1`

	getPaymentByTxnRefSQL = `SELECT id, gateway, txn_ref, transaction_id, amount, response_code, success, order_code, created_at
		FROM payments WHERE txn_ref = $1`
)

// uniqueViolation is the PostgreSQL error code for unique constraint breaks.
const uniqueViolation = "23505"

var _ payment.Repository = (*PaymentRepository)(nil)

// PaymentRepository implements payment.Repository backed by PostgreSQL.
type PaymentRepository struct {
	pool *pgxpool.Pool
}

// NewPaymentRepository returns a PaymentRepository that uses the given pool.
func NewPaymentRepository(pool *pgxpool.Pool) *PaymentRepository {
	return &PaymentRepository{pool: pool}
}

// Record inserts a payment row. The unique index on txn_ref turns callback
// replays into payment.ErrDuplicateTxnRef.
func (r *PaymentRepository) Record(ctx context.Context, p *payment.Payment) error {
	err := r.pool.QueryRow(ctx, insertPaymentSQL,
		p.Gateway, p.TxnRef, p.TransactionID, p.Amount,
		p.ResponseCode, p.Success, p.OrderCode,
	).Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return payment.ErrDuplicateTxnRef
		}
		return fmt.Errorf("recording payment %q: %w", p.TxnRef, err)
	}
	return nil
}

// SetOrderCode attaches the placed order's code to an existing payment row.
func (r *PaymentRepository) SetOrderCode(ctx context.Context, txnRef, orderCode string) error {
	_, err := r.pool.Exec(ctx, setPaymentOrderCodeSQL, txnRef, orderCode)
	if err != nil {
		return fmt.Errorf("setting order code for payment %q: %w", txnRef, err)
	}
	return nil
}

// FindByTxnRef returns the payment recorded for a transaction reference.
func (r *PaymentRepository) FindByTxnRef(ctx context.Context, txnRef string) (*payment.Payment, error) {
	var p payment.Payment
	err := r.pool.QueryRow(ctx, getPaymentByTxnRefSQL, txnRef).Scan(
		&p.ID, &p.Gateway, &p.TxnRef, &p.TransactionID, &p.Amount,
		&p.ResponseCode, &p.Success, &p.OrderCode, &p.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("payment %q not found: %w", txnRef, err)
		}
		return nil, fmt.Errorf("finding payment %q: %w", txnRef, err)
	}
	return &p, nil
}
