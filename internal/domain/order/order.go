package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// PaymentMethod identifies how an order is paid.
type PaymentMethod string

const (
	// PaymentCOD is cash on delivery; the order is finalized immediately.
	PaymentCOD PaymentMethod = "cod"
	// PaymentVNPay finalizes after a successful VNPay redirect callback.
	PaymentVNPay PaymentMethod = "vnpay"
	// PaymentMoMo finalizes after a successful MoMo redirect callback.
	PaymentMoMo PaymentMethod = "momo"
)

// Status tracks an order through its lifecycle.
type Status string

const (
	StatusPending   Status = "pending"
	StatusPaid      Status = "paid"
	StatusCompleted Status = "completed"
)

// ErrNotFound is returned when no order exists for a code.
var ErrNotFound = errors.New("order not found")

// Order represents a finalized customer order. Line prices and costs are
// captured at checkout time so later catalog edits do not rewrite history.
type Order struct {
	ID            int64
	Code          string
	CustomerName  string
	Email         string
	Phone         string
	Address       string
	Lines         []Line
	Subtotal      decimal.Decimal
	Discount      decimal.Decimal
	Total         decimal.Decimal
	CouponID      int64
	CouponCode    string
	PaymentMethod PaymentMethod
	Status        Status
	CreatedAt     time.Time
}

// Line is a single product position in an order.
type Line struct {
	ProductID int64
	Quantity  int
	UnitPrice decimal.Decimal
	UnitCost  decimal.Decimal
}

// Repository defines persistence operations for orders. Create runs the
// whole finalization transactionally: insert order and lines, decrement
// stock, increment sold counts, and consume one coupon redemption when
// the order carries a coupon.
type Repository interface {
	Create(ctx context.Context, order *Order) error
	GetByCode(ctx context.Context, code string) (*Order, error)
}
