// Package payment records gateway payment outcomes and settles pending
// checkouts once a gateway confirms payment.
package payment

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/hntran/storefront/internal/domain/order"
)

var (
	// ErrDuplicateTxnRef is returned when a payment with the same
	// transaction reference was already recorded.
	ErrDuplicateTxnRef = errors.New("payment already recorded for transaction reference")
	// ErrAttemptNotFound is returned when no pending checkout matches a
	// callback's transaction reference.
	ErrAttemptNotFound = errors.New("checkout attempt not found")
)

// Payment is the recorded outcome of one gateway transaction.
type Payment struct {
	ID            int64
	Gateway       string
	TxnRef        string
	TransactionID int64
	Amount        decimal.Decimal
	ResponseCode  string
	Success       bool
	OrderCode     string
	CreatedAt     time.Time
}

// Repository persists payment records. Record must enforce transaction
// reference uniqueness and return ErrDuplicateTxnRef on replay; it is the
// idempotency gate for the whole settlement.
type Repository interface {
	Record(ctx context.Context, p *Payment) error
	SetOrderCode(ctx context.Context, txnRef, orderCode string) error
	FindByTxnRef(ctx context.Context, txnRef string) (*Payment, error)
}

// CheckoutAttempt is a priced checkout waiting on a gateway redirect.
// The original request is kept so the order can be placed, with fresh
// stock and coupon checks, only after the gateway confirms payment.
type CheckoutAttempt struct {
	TxnRef    string
	Gateway   string
	Request   order.CheckoutRequest
	Total     decimal.Decimal
	CreatedAt time.Time
}

// AttemptRepository persists pending checkout attempts keyed by the
// gateway transaction reference.
type AttemptRepository interface {
	Save(ctx context.Context, a *CheckoutAttempt) error
	FindByTxnRef(ctx context.Context, txnRef string) (*CheckoutAttempt, error)
	Delete(ctx context.Context, txnRef string) error
}
