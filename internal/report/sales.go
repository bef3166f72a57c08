// Package report computes per-product sales aggregates with coupon-aware
// revenue splitting. The engine is a pure function over already-fetched
// order-line snapshots; filtering by date, category, or brand happens
// upstream in the repository query.
package report

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/hntran/storefront/internal/domain/coupon"
)

var hundred = decimal.NewFromInt(100)

// CouponRef is the discount rule attached to a snapshot line's owning
// order. A nil CouponRef means the order had no coupon (including coupons
// since deleted).
type CouponRef struct {
	DiscountType coupon.DiscountType
	Value        decimal.Decimal
}

// LineSnapshot is one (order, product) row feeding the engine.
type LineSnapshot struct {
	ProductID    int64
	ProductName  string
	ProductImage string
	CategoryID   int64
	BrandID      int64
	UnitCost     decimal.Decimal
	UnitPrice    decimal.Decimal
	Quantity     int
	OrderID      int64
	OrderedAt    time.Time
	Coupon       *CouponRef
}

// Filter restricts which product groups appear in the output. Zero values
// match everything. The filter deliberately applies after order totals are
// computed: a coupon discounts the whole order, so excluding a category
// from the report must not shrink the allocation base.
type Filter struct {
	CategoryID int64
	BrandID    int64
}

func (f Filter) matches(l LineSnapshot) bool {
	if f.CategoryID != 0 && l.CategoryID != f.CategoryID {
		return false
	}
	if f.BrandID != 0 && l.BrandID != f.BrandID {
		return false
	}
	return true
}

func (l LineSnapshot) lineTotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

func (l LineSnapshot) lineCost() decimal.Decimal {
	return l.UnitCost.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// ProductSales is the aggregate row for one product across the snapshot
// range.
type ProductSales struct {
	ProductID   int64
	ProductName string
	Image       string

	TotalQuantity int
	TotalRevenue  decimal.Decimal
	TotalCost     decimal.Decimal

	QuantityWithCoupon    int
	QuantityWithoutCoupon int
	RevenueWithCoupon     decimal.Decimal
	RevenueWithoutCoupon  decimal.Decimal
	CostWithCoupon        decimal.Decimal
	CostWithoutCoupon     decimal.Decimal

	// CouponDiscount is the portion of order-level coupon discounts
	// attributed to this product by proportional allocation.
	CouponDiscount decimal.Decimal

	FirstSoldAt time.Time
	LastSoldAt  time.Time
}

// Profit returns total revenue minus total cost.
func (p ProductSales) Profit() decimal.Decimal {
	return p.TotalRevenue.Sub(p.TotalCost)
}

// RevenueAfterDiscount returns total revenue net of the attributed coupon
// discount.
func (p ProductSales) RevenueAfterDiscount() decimal.Decimal {
	return p.TotalRevenue.Sub(p.CouponDiscount)
}

// ProfitAfterDiscount returns net revenue minus total cost.
func (p ProductSales) ProfitAfterDiscount() decimal.Decimal {
	return p.RevenueAfterDiscount().Sub(p.TotalCost)
}

// ProfitWithCoupon returns the coupon bucket's revenue minus its cost.
func (p ProductSales) ProfitWithCoupon() decimal.Decimal {
	return p.RevenueWithCoupon.Sub(p.CostWithCoupon)
}

// ProfitWithoutCoupon returns the no-coupon bucket's revenue minus its cost.
func (p ProductSales) ProfitWithoutCoupon() decimal.Decimal {
	return p.RevenueWithoutCoupon.Sub(p.CostWithoutCoupon)
}

// Aggregate groups the snapshot lines by product and computes the sales
// figures. Coupon discounts are order-scoped: each line's share is its
// fraction of the owning order's grand total, recomputed over the full
// snapshot set, and clamped so a line is never discounted past its own
// total. Output is ordered by total revenue descending, ties broken by
// product id ascending; products with no qualifying lines simply do not
// appear.
func Aggregate(lines []LineSnapshot, f Filter) []ProductSales {
	// Order grand totals across ALL lines, not per product group. The
	// coupon applies to the whole order, so the allocation base must too.
	orderTotals := make(map[int64]decimal.Decimal)
	for _, l := range lines {
		orderTotals[l.OrderID] = orderTotals[l.OrderID].Add(l.lineTotal())
	}

	byProduct := make(map[int64]*ProductSales)
	var order []int64
	for _, l := range lines {
		if !f.matches(l) {
			continue
		}
		agg, ok := byProduct[l.ProductID]
		if !ok {
			agg = &ProductSales{
				ProductID:   l.ProductID,
				ProductName: l.ProductName,
				Image:       l.ProductImage,
				FirstSoldAt: l.OrderedAt,
				LastSoldAt:  l.OrderedAt,
			}
			byProduct[l.ProductID] = agg
			order = append(order, l.ProductID)
		}

		agg.TotalQuantity += l.Quantity
		agg.TotalRevenue = agg.TotalRevenue.Add(l.lineTotal())
		agg.TotalCost = agg.TotalCost.Add(l.lineCost())

		if l.Coupon != nil {
			agg.QuantityWithCoupon += l.Quantity
			agg.RevenueWithCoupon = agg.RevenueWithCoupon.Add(l.lineTotal())
			agg.CostWithCoupon = agg.CostWithCoupon.Add(l.lineCost())
			agg.CouponDiscount = agg.CouponDiscount.Add(
				allocateDiscount(l, orderTotals[l.OrderID]),
			)
		} else {
			agg.QuantityWithoutCoupon += l.Quantity
			agg.RevenueWithoutCoupon = agg.RevenueWithoutCoupon.Add(l.lineTotal())
			agg.CostWithoutCoupon = agg.CostWithoutCoupon.Add(l.lineCost())
		}

		if l.OrderedAt.Before(agg.FirstSoldAt) {
			agg.FirstSoldAt = l.OrderedAt
		}
		if l.OrderedAt.After(agg.LastSoldAt) {
			agg.LastSoldAt = l.OrderedAt
		}
	}

	out := make([]ProductSales, 0, len(order))
	for _, id := range order {
		out = append(out, *byProduct[id])
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].TotalRevenue.Equal(out[j].TotalRevenue) {
			return out[i].TotalRevenue.GreaterThan(out[j].TotalRevenue)
		}
		return out[i].ProductID < out[j].ProductID
	})
	return out
}

// allocateDiscount returns the portion of the order's coupon discount
// attributed to one line: (lineTotal / orderTotal) x orderDiscount, clamped
// to the line's own total. A zero order total allocates nothing.
func allocateDiscount(l LineSnapshot, orderTotal decimal.Decimal) decimal.Decimal {
	if l.Coupon == nil || orderTotal.IsZero() {
		return decimal.Zero
	}

	var orderDiscount decimal.Decimal
	switch l.Coupon.DiscountType {
	case coupon.DiscountPercent:
		orderDiscount = orderTotal.Mul(l.Coupon.Value).Div(hundred)
	case coupon.DiscountFixed:
		// Flat per order, not per line or per unit.
		orderDiscount = l.Coupon.Value
	default:
		return decimal.Zero
	}

	lineTotal := l.lineTotal()
	allocated := lineTotal.Mul(orderDiscount).Div(orderTotal)
	return decimal.Min(allocated, lineTotal)
}
