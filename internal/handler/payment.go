package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/hntran/storefront/internal/domain/order"
	"github.com/hntran/storefront/internal/domain/payment"
	"github.com/hntran/storefront/internal/gateway/momo"
	"github.com/hntran/storefront/internal/gateway/vnpay"
)

// CreateVNPayPayment prices the checkout, stores it as a pending attempt,
// and returns the signed VNPay redirect URL.
func (h *Handler) CreateVNPayPayment(w http.ResponseWriter, r *http.Request) {
	var req order.CheckoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.PaymentMethod = order.PaymentVNPay

	o, err := h.orderService.Quote(r.Context(), req)
	if err != nil {
		h.orderError(w, r, err)
		return
	}

	paymentURL, txnRef := h.vnpay.BuildPaymentURL(vnpay.PaymentRequest{
		Amount:    o.Total,
		OrderInfo: "Thanh toan don hang " + o.Code,
		OrderType: "other",
		ClientIP:  clientIP(r),
	})

	attempt := &payment.CheckoutAttempt{
		TxnRef:  txnRef,
		Gateway: string(order.PaymentVNPay),
		Request: req,
		Total:   o.Total,
	}
	if err := h.attempts.Save(r.Context(), attempt); err != nil {
		internalError(w, r, errors.Wrap(err, "save checkout attempt"))
		return
	}

	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("paymentUrl", func(e *jx.Encoder) { e.Str(paymentURL) })
		e.Field("txnRef", func(e *jx.Encoder) { e.Str(txnRef) })
		e.Field("total", func(e *jx.Encoder) { e.Float64(o.Total.InexactFloat64()) })
	})
	writeJSON(w, http.StatusCreated, &e)
}

// VNPayCallback verifies the return redirect and settles the pending
// checkout. Signature failures are rejected before anything is recorded.
func (h *Handler) VNPayCallback(w http.ResponseWriter, r *http.Request) {
	res := h.vnpay.VerifyCallback(r.URL.Query())
	if !res.SignatureOK {
		writeError(w, http.StatusBadRequest, "invalid signature")
		return
	}

	h.settle(w, r, payment.Outcome{
		Gateway:       string(order.PaymentVNPay),
		TxnRef:        res.TxnRef,
		TransactionID: res.TransactionID,
		Amount:        res.Amount,
		ResponseCode:  res.ResponseCode,
		Success:       res.Success,
	})
}

// CreateMoMoPayment prices the checkout, requests a MoMo pay URL, and
// stores the pending attempt keyed by the MoMo order ID.
func (h *Handler) CreateMoMoPayment(w http.ResponseWriter, r *http.Request) {
	var req order.CheckoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.PaymentMethod = order.PaymentMoMo

	o, err := h.orderService.Quote(r.Context(), req)
	if err != nil {
		h.orderError(w, r, err)
		return
	}

	resp, err := h.momo.CreatePayment(r.Context(), momo.PaymentRequest{
		Amount:    o.Total,
		OrderInfo: "Thanh toan don hang " + o.Code,
	})
	if err != nil {
		internalError(w, r, errors.Wrap(err, "create momo payment"))
		return
	}
	if resp.ErrorCode != 0 {
		writeError(w, http.StatusBadGateway, resp.Message)
		return
	}

	attempt := &payment.CheckoutAttempt{
		TxnRef:  resp.OrderID,
		Gateway: string(order.PaymentMoMo),
		Request: req,
		Total:   o.Total,
	}
	if err := h.attempts.Save(r.Context(), attempt); err != nil {
		internalError(w, r, errors.Wrap(err, "save checkout attempt"))
		return
	}

	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("paymentUrl", func(e *jx.Encoder) { e.Str(resp.PayURL) })
		e.Field("txnRef", func(e *jx.Encoder) { e.Str(resp.OrderID) })
		e.Field("total", func(e *jx.Encoder) { e.Float64(o.Total.InexactFloat64()) })
	})
	writeJSON(w, http.StatusCreated, &e)
}

// MoMoCallback verifies the return redirect and settles the pending
// checkout.
func (h *Handler) MoMoCallback(w http.ResponseWriter, r *http.Request) {
	res := h.momo.VerifyCallback(r.URL.Query())
	if !res.SignatureOK {
		writeError(w, http.StatusBadRequest, "invalid signature")
		return
	}

	h.settle(w, r, payment.Outcome{
		Gateway:       string(order.PaymentMoMo),
		TxnRef:        res.OrderID,
		TransactionID: res.TransactionID,
		Amount:        res.Amount,
		ResponseCode:  res.ResultCode,
		Success:       res.Success,
	})
}

func (h *Handler) settle(w http.ResponseWriter, r *http.Request, out payment.Outcome) {
	result, err := h.settlements.Settle(r.Context(), out)
	if err != nil {
		if errors.Is(err, payment.ErrAttemptNotFound) {
			writeError(w, http.StatusNotFound, "unknown transaction reference")
			return
		}
		internalError(w, r, errors.Wrap(err, "settle payment"))
		return
	}

	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("txnRef", func(e *jx.Encoder) { e.Str(result.Payment.TxnRef) })
		e.Field("success", func(e *jx.Encoder) { e.Bool(result.Payment.Success) })
		e.Field("responseCode", func(e *jx.Encoder) { e.Str(result.Payment.ResponseCode) })
		if result.Payment.OrderCode != "" {
			e.Field("orderCode", func(e *jx.Encoder) { e.Str(result.Payment.OrderCode) })
		}
	})
	writeJSON(w, http.StatusOK, &e)
}

// clientIP extracts the requester's IP, preferring the standard proxy
// header set by the edge.
func clientIP(r *http.Request) string {
	if ip := r.Header.Get("X-Forwarded-For"); ip != "" {
		return ip
	}
	return r.RemoteAddr
}
