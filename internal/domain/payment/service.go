package payment

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/hntran/storefront/internal/domain/order"
)

// Mailer sends the post-payment order confirmation. Send failures must
// not fail the settlement.
type Mailer interface {
	SendOrderConfirmation(ctx context.Context, o *order.Order) error
}

// OrderPlacer places a priced checkout as a finalized order.
type OrderPlacer interface {
	PlaceOrder(ctx context.Context, req order.CheckoutRequest) (*order.Order, error)
}

// Outcome is one verified gateway callback, already signature-checked by
// the gateway package.
type Outcome struct {
	Gateway       string
	TxnRef        string
	TransactionID int64
	Amount        decimal.Decimal
	ResponseCode  string
	Success       bool
}

// Result reports what a settlement did.
type Result struct {
	Payment *Payment
	Order   *order.Order
	// Replay is set when the transaction reference was already settled;
	// Payment then holds the original record and Order is nil.
	Replay bool
}

// Service settles verified gateway callbacks against pending checkout
// attempts.
type Service struct {
	payments Repository
	attempts AttemptRepository
	orders   OrderPlacer
	mailer   Mailer
}

// NewService creates a settlement Service.
func NewService(
	payments Repository,
	attempts AttemptRepository,
	orders OrderPlacer,
	mailer Mailer,
) *Service {
	return &Service{
		payments: payments,
		attempts: attempts,
		orders:   orders,
		mailer:   mailer,
	}
}

// Settle records the payment outcome and, when the gateway reports
// success, places the pending order. Settlement is idempotent on the
// transaction reference: a replayed callback returns the original record
// without touching stock or coupons again.
func (s *Service) Settle(ctx context.Context, out Outcome) (*Result, error) {
	attempt, err := s.attempts.FindByTxnRef(ctx, out.TxnRef)
	if err != nil {
		if errors.Is(err, ErrAttemptNotFound) {
			return nil, ErrAttemptNotFound
		}
		return nil, errors.Wrap(err, "find checkout attempt")
	}

	// Record before placing the order: the unique transaction reference
	// is the idempotency gate, so a replayed callback must bounce off it
	// before it can touch stock or coupons.
	p := &Payment{
		Gateway:       out.Gateway,
		TxnRef:        out.TxnRef,
		TransactionID: out.TransactionID,
		Amount:        out.Amount,
		ResponseCode:  out.ResponseCode,
		Success:       out.Success,
	}
	if err := s.payments.Record(ctx, p); err != nil {
		if errors.Is(err, ErrDuplicateTxnRef) {
			prev, findErr := s.payments.FindByTxnRef(ctx, out.TxnRef)
			if findErr != nil {
				return nil, errors.Wrap(findErr, "find recorded payment")
			}
			return &Result{Payment: prev, Replay: true}, nil
		}
		return nil, errors.Wrap(err, "record payment")
	}

	var placed *order.Order
	if out.Success {
		placed, err = s.orders.PlaceOrder(ctx, attempt.Request)
		if err != nil {
			return nil, errors.Wrap(err, "place order")
		}
		p.OrderCode = placed.Code
		if err := s.payments.SetOrderCode(ctx, out.TxnRef, placed.Code); err != nil {
			return nil, errors.Wrap(err, "set payment order code")
		}
	}

	if err := s.attempts.Delete(ctx, out.TxnRef); err != nil {
		zctx.From(ctx).Warn("Delete checkout attempt",
			zap.String("txn_ref", out.TxnRef),
			zap.Error(err),
		)
	}

	if placed != nil && s.mailer != nil && placed.Email != "" {
		if err := s.mailer.SendOrderConfirmation(ctx, placed); err != nil {
			zctx.From(ctx).Warn("Send order confirmation",
				zap.String("order_code", placed.Code),
				zap.Error(err),
			)
		}
	}

	return &Result{Payment: p, Order: placed}, nil
}
