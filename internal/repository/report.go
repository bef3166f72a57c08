package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/hntran/storefront/internal/domain/coupon"
	"github.com/hntran/storefront/internal/report"
)

// The date range restricts orders, not lines, so every qualifying order
// contributes all of its lines and discount allocation keeps the full
// order total as its base.
const getLineSnapshotsSQL = `SELECT ol.product_id, p.name, p.image, p.category_id, p.brand_id,
		ol.unit_cost, ol.unit_price, ol.quantity,
		o.id, o.created_at,
		c.discount_type, c.value
	FROM order_lines ol
	JOIN orders o ON o.id = ol.order_id
	JOIN products p ON p.id = ol.product_id
	LEFT JOIN coupons c ON c.id = o.coupon_id
	WHERE o.created_at >= $1 AND o.created_at < $2
	ORDER BY o.id, ol.id`

// ReportRepository loads order-line snapshots for sales reporting.
type ReportRepository struct {
	pool *pgxpool.Pool
}

// NewReportRepository returns a ReportRepository that uses the given pool.
func NewReportRepository(pool *pgxpool.Pool) *ReportRepository {
	return &ReportRepository{pool: pool}
}

// LineSnapshots returns all order lines for orders created in [from, to).
func (r *ReportRepository) LineSnapshots(ctx context.Context, from, to time.Time) ([]report.LineSnapshot, error) {
	rows, err := r.pool.Query(ctx, getLineSnapshotsSQL, from, to)
	if err != nil {
		return nil, fmt.Errorf("loading report snapshots: %w", err)
	}
	return pgx.CollectRows(rows, scanLineSnapshot)
}

func scanLineSnapshot(row pgx.CollectableRow) (report.LineSnapshot, error) {
	var (
		l            report.LineSnapshot
		discountType *string
		value        *decimal.Decimal
	)
	err := row.Scan(
		&l.ProductID, &l.ProductName, &l.ProductImage, &l.CategoryID, &l.BrandID,
		&l.UnitCost, &l.UnitPrice, &l.Quantity,
		&l.OrderID, &l.OrderedAt,
		&discountType, &value,
	)
	if discountType != nil && value != nil {
		l.Coupon = &report.CouponRef{
			DiscountType: coupon.DiscountType(*discountType),
			Value:        *value,
		}
	}
	return l, err
}
