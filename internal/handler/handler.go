// Package handler exposes the storefront HTTP API.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/hntran/storefront/internal/domain/order"
	"github.com/hntran/storefront/internal/domain/payment"
	"github.com/hntran/storefront/internal/domain/product"
	"github.com/hntran/storefront/internal/gateway/momo"
	"github.com/hntran/storefront/internal/gateway/vnpay"
	"github.com/hntran/storefront/internal/report"
)

// Config holds non-dependency configuration for the Handler.
type Config struct {
	// ImageBaseURL is prepended to relative image paths in product
	// responses. When empty, image paths are returned as stored.
	ImageBaseURL string
}

// Handler serves the storefront API, delegating business logic to the
// injected services and repositories.
type Handler struct {
	products     product.Repository
	orderService *order.Service
	settlements  *payment.Service
	attempts     payment.AttemptRepository
	vnpay        *vnpay.Gateway
	momo         *momo.Gateway
	reports      ReportSource
	imageBaseURL string
}

// ReportSource loads the order-line snapshots behind the sales report.
type ReportSource interface {
	LineSnapshots(ctx context.Context, from, to time.Time) ([]report.LineSnapshot, error)
}

// New constructs a Handler with the required dependencies.
func New(
	cfg Config,
	products product.Repository,
	orderService *order.Service,
	settlements *payment.Service,
	attempts payment.AttemptRepository,
	vnpayGW *vnpay.Gateway,
	momoGW *momo.Gateway,
	reports ReportSource,
) *Handler {
	return &Handler{
		products:     products,
		orderService: orderService,
		settlements:  settlements,
		attempts:     attempts,
		vnpay:        vnpayGW,
		momo:         momoGW,
		reports:      reports,
		imageBaseURL: cfg.ImageBaseURL,
	}
}

// Register mounts all API routes on the mux. Reporting routes go through
// the provided auth middleware.
func (h *Handler) Register(mux *http.ServeMux, reportAuth func(http.Handler) http.Handler) {
	mux.HandleFunc("GET /api/products", h.ListProducts)
	mux.HandleFunc("GET /api/products/{id}", h.GetProduct)
	mux.HandleFunc("POST /api/checkout", h.Checkout)
	mux.HandleFunc("GET /api/orders/{code}", h.GetOrder)
	mux.HandleFunc("POST /api/payments/vnpay", h.CreateVNPayPayment)
	mux.HandleFunc("GET /api/payments/vnpay/callback", h.VNPayCallback)
	mux.HandleFunc("POST /api/payments/momo", h.CreateMoMoPayment)
	mux.HandleFunc("GET /api/payments/momo/callback", h.MoMoCallback)
	mux.Handle("GET /api/reports/sales", reportAuth(http.HandlerFunc(h.SalesReport)))
}

// writeJSON writes an encoded jx document with the given status.
func writeJSON(w http.ResponseWriter, status int, e *jx.Encoder) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

// writeError writes the standard error envelope.
func writeError(w http.ResponseWriter, status int, message string) {
	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("code", func(e *jx.Encoder) { e.Int(status) })
		e.Field("message", func(e *jx.Encoder) { e.Str(message) })
	})
	writeJSON(w, status, &e)
}

// internalError logs the error and writes a generic 500 so internals do
// not leak to clients.
func internalError(w http.ResponseWriter, r *http.Request, err error) {
	zctx.From(r.Context()).Error("Request failed",
		zap.String("path", r.URL.Path),
		zap.Error(err),
	)
	writeError(w, http.StatusInternalServerError, "internal error")
}
