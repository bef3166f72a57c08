package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/hntran/storefront/internal/report"
)

const reportDateLayout = "2006-01-02"

// SalesReport returns per-product sales aggregates for orders created in
// [from, to). Defaults to the trailing 30 days.
func (h *Handler) SalesReport(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	to := time.Now().UTC()
	if v := q.Get("to"); v != "" {
		t, err := time.Parse(reportDateLayout, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid to date, want YYYY-MM-DD")
			return
		}
		// The upper bound is exclusive, so a report "to" a day includes it.
		to = t.AddDate(0, 0, 1)
	}

	from := to.AddDate(0, 0, -30)
	if v := q.Get("from"); v != "" {
		t, err := time.Parse(reportDateLayout, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid from date, want YYYY-MM-DD")
			return
		}
		from = t
	}
	if !from.Before(to) {
		writeError(w, http.StatusBadRequest, "from must be before to")
		return
	}

	var f report.Filter
	if v := q.Get("categoryId"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid categoryId")
			return
		}
		f.CategoryID = id
	}
	if v := q.Get("brandId"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid brandId")
			return
		}
		f.BrandID = id
	}

	lines, err := h.reports.LineSnapshots(r.Context(), from, to)
	if err != nil {
		internalError(w, r, errors.Wrap(err, "load report snapshots"))
		return
	}

	rows := report.Aggregate(lines, f)

	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("from", func(e *jx.Encoder) { e.Str(from.Format(reportDateLayout)) })
		e.Field("to", func(e *jx.Encoder) { e.Str(to.Format(reportDateLayout)) })
		e.Field("products", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, p := range rows {
					encodeProductSales(e, p)
				}
			})
		})
	})
	writeJSON(w, http.StatusOK, &e)
}

func encodeProductSales(e *jx.Encoder, p report.ProductSales) {
	num := func(v interface{ InexactFloat64() float64 }) func(e *jx.Encoder) {
		return func(e *jx.Encoder) { e.Float64(v.InexactFloat64()) }
	}
	e.Obj(func(e *jx.Encoder) {
		e.Field("productId", func(e *jx.Encoder) { e.Int64(p.ProductID) })
		e.Field("productName", func(e *jx.Encoder) { e.Str(p.ProductName) })
		e.Field("image", func(e *jx.Encoder) { e.Str(p.Image) })
		e.Field("totalQuantity", func(e *jx.Encoder) { e.Int(p.TotalQuantity) })
		e.Field("totalRevenue", num(p.TotalRevenue))
		e.Field("totalCost", num(p.TotalCost))
		e.Field("profit", num(p.Profit()))
		e.Field("withCoupon", func(e *jx.Encoder) {
			e.Obj(func(e *jx.Encoder) {
				e.Field("quantity", func(e *jx.Encoder) { e.Int(p.QuantityWithCoupon) })
				e.Field("revenue", num(p.RevenueWithCoupon))
				e.Field("cost", num(p.CostWithCoupon))
				e.Field("profit", num(p.ProfitWithCoupon()))
			})
		})
		e.Field("withoutCoupon", func(e *jx.Encoder) {
			e.Obj(func(e *jx.Encoder) {
				e.Field("quantity", func(e *jx.Encoder) { e.Int(p.QuantityWithoutCoupon) })
				e.Field("revenue", num(p.RevenueWithoutCoupon))
				e.Field("cost", num(p.CostWithoutCoupon))
				e.Field("profit", num(p.ProfitWithoutCoupon()))
			})
		})
		e.Field("couponDiscount", num(p.CouponDiscount))
		e.Field("revenueAfterDiscount", num(p.RevenueAfterDiscount()))
		e.Field("profitAfterDiscount", num(p.ProfitAfterDiscount()))
		e.Field("firstSoldAt", func(e *jx.Encoder) { e.Str(p.FirstSoldAt.Format(time.RFC3339)) })
		e.Field("lastSoldAt", func(e *jx.Encoder) { e.Str(p.LastSoldAt.Format(time.RFC3339)) })
	})
}
