package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hntran/storefront/internal/domain/coupon"
	"github.com/hntran/storefront/internal/domain/order"
)

const (
	insertOrderSQL = `INSERT INTO orders (code, customer_name, email, phone, address,
			subtotal, discount, total, coupon_id, coupon_code, payment_method, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id, created_at`

	insertOrderLineSQL = `INSERT INTO order_lines (order_id, product_id, quantity, unit_price, unit_cost)
		VALUES ($1, $2, $3, $4, $5)`

	decrementStockSQL = `UPDATE products SET quantity = quantity - $2, sold = sold + $2
		WHERE id = $1 AND quantity >= $2`

	consumeCouponSQL = `UPDATE coupons SET quantity = quantity - 1
		WHERE id = $1 AND quantity > 0`

	getOrderByCodeSQL = `SELECT id, code, customer_name, email, phone, address,
			subtotal, discount, total, COALESCE(coupon_id, 0), coupon_code, payment_method, status, created_at
		FROM orders WHERE code = $1`

	getOrderLinesSQL = `SELECT product_id, quantity, unit_price, unit_cost
		FROM order_lines WHERE order_id = $1 ORDER BY id`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create finalizes the order in one transaction: order and line inserts,
// conditional stock decrements, and coupon consumption. Stock rows guard
// against oversell with a quantity check in the UPDATE itself, so two
// concurrent checkouts cannot both take the last unit.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	var couponID *int64
	if o.CouponID != 0 {
		couponID = &o.CouponID
	}

	err = tx.QueryRow(ctx, insertOrderSQL,
		o.Code, o.CustomerName, o.Email, o.Phone, o.Address,
		o.Subtotal, o.Discount, o.Total, couponID, o.CouponCode,
		string(o.PaymentMethod), string(o.Status),
	).Scan(&o.ID, &o.CreatedAt)
	if err != nil {
		return fmt.Errorf("creating order %q: %w", o.Code, err)
	}

	for _, l := range o.Lines {
		if _, err := tx.Exec(ctx, insertOrderLineSQL,
			o.ID, l.ProductID, l.Quantity, l.UnitPrice, l.UnitCost,
		); err != nil {
			return fmt.Errorf("creating order line for product %d: %w", l.ProductID, err)
		}

		tag, err := tx.Exec(ctx, decrementStockSQL, l.ProductID, l.Quantity)
		if err != nil {
			return fmt.Errorf("decrementing stock for product %d: %w", l.ProductID, err)
		}
		if tag.RowsAffected() == 0 {
			return &order.InsufficientStockError{ProductID: l.ProductID}
		}
	}

	if couponID != nil {
		tag, err := tx.Exec(ctx, consumeCouponSQL, *couponID)
		if err != nil {
			return fmt.Errorf("consuming coupon %d: %w", *couponID, err)
		}
		if tag.RowsAffected() == 0 {
			return coupon.ErrExhausted
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing order %q: %w", o.Code, err)
	}
	return nil
}

// GetByCode returns an order and its lines by the public order code.
func (r *OrderRepository) GetByCode(ctx context.Context, code string) (*order.Order, error) {
	var (
		o             order.Order
		paymentMethod string
		status        string
	)
	err := r.pool.QueryRow(ctx, getOrderByCodeSQL, code).Scan(
		&o.ID, &o.Code, &o.CustomerName, &o.Email, &o.Phone, &o.Address,
		&o.Subtotal, &o.Discount, &o.Total, &o.CouponID, &o.CouponCode,
		&paymentMethod, &status, &o.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("getting order %q: %w", code, err)
	}
	o.PaymentMethod = order.PaymentMethod(paymentMethod)
	o.Status = order.Status(status)

	rows, err := r.pool.Query(ctx, getOrderLinesSQL, o.ID)
	if err != nil {
		return nil, fmt.Errorf("getting lines for order %q: %w", code, err)
	}
	o.Lines, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (order.Line, error) {
		var l order.Line
		err := row.Scan(&l.ProductID, &l.Quantity, &l.UnitPrice, &l.UnitCost)
		return l, err
	})
	if err != nil {
		return nil, fmt.Errorf("getting lines for order %q: %w", code, err)
	}

	return &o, nil
}
