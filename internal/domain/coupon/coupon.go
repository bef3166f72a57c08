// Package coupon holds the coupon domain model and redemption rules.
package coupon

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// DiscountType enumerates the supported coupon discount strategies.
type DiscountType string

const (
	// DiscountPercent applies a percentage of the order total.
	DiscountPercent DiscountType = "percent"
	// DiscountFixed subtracts a flat amount from the order total.
	DiscountFixed DiscountType = "fixed"
)

var (
	// ErrNotFound is returned when no coupon exists for a code.
	ErrNotFound = errors.New("coupon not found")
	// ErrInactive is returned when the coupon has been switched off.
	ErrInactive = errors.New("coupon inactive")
	// ErrNotStarted is returned before the coupon's validity window opens.
	ErrNotStarted = errors.New("coupon not yet valid")
	// ErrExpired is returned after the coupon's validity window closes.
	ErrExpired = errors.New("coupon expired")
	// ErrExhausted is returned when the coupon has no redemptions left.
	ErrExhausted = errors.New("coupon exhausted")
)

var hundred = decimal.NewFromInt(100)

// Coupon is a redeemable discount code. Quantity counts remaining
// redemptions; each finalized order consumes one.
type Coupon struct {
	ID           int64
	Code         string
	DiscountType DiscountType
	Value        decimal.Decimal
	Quantity     int
	StartDate    time.Time
	EndDate      time.Time
	Active       bool
}

// DiscountFor computes the order-level discount for the given order total.
// The result is capped at the total so an order never goes negative.
func (c Coupon) DiscountFor(total decimal.Decimal) decimal.Decimal {
	var d decimal.Decimal
	switch c.DiscountType {
	case DiscountPercent:
		d = total.Mul(c.Value).Div(hundred)
	case DiscountFixed:
		d = c.Value
	default:
		return decimal.Zero
	}
	return decimal.Min(d, total)
}

// Repository provides lookup and redemption of coupons.
type Repository interface {
	FindByCode(ctx context.Context, code string) (*Coupon, error)
}
