package momo

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hntran/storefront/internal/gateway/sign"
)

const testSecretKey = "momo-secret-key"

func testConfig(endpoint string) Config {
	return Config{
		Endpoint:    endpoint,
		PartnerCode: "MOMO0001",
		AccessKey:   "access-key",
		SecretKey:   testSecretKey,
		ReturnURL:   "https://shop.example.com/api/payments/momo/callback",
		NotifyURL:   "https://shop.example.com/api/payments/momo/notify",
	}
}

// signedCallback builds a callback query signed in MoMo's fixed field
// order, with the given overrides applied before signing.
func signedCallback(overrides map[string]string) url.Values {
	fields := map[string]string{
		"partnerCode":  "MOMO0001",
		"accessKey":    "access-key",
		"requestId":    "req-1",
		"amount":       "199000",
		"orderId":      "order-42",
		"orderInfo":    "don hang 42",
		"orderType":    "momo_wallet",
		"transId":      "2147580210",
		"message":      "Success",
		"localMessage": "Thanh cong",
		"responseTime": "2025-03-14 15:09:26",
		"errorCode":    "0",
		"payType":      "web",
		"extraData":    "",
	}
	for k, v := range overrides {
		fields[k] = v
	}

	order := []string{
		"partnerCode", "accessKey", "requestId", "amount", "orderId",
		"orderInfo", "orderType", "transId", "message", "localMessage",
		"responseTime", "errorCode", "payType", "extraData",
	}
	var b strings.Builder
	for i, k := range order {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(fields[k])
	}

	q := url.Values{}
	for k, v := range fields {
		q.Set(k, v)
	}
	q.Set("signature", sign.HMACSHA256(testSecretKey, b.String()))
	return q
}

func TestNew_MissingConfig(t *testing.T) {
	cfg := testConfig("https://test-payment.momo.vn/gw_payment/transactionProcessor")
	cfg.SecretKey = ""
	_, err := New(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "secret key")
}

func TestCreatePayment(t *testing.T) {
	var got createRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(createResponse{
			RequestID: got.RequestID,
			OrderID:   got.OrderID,
			PayURL:    "https://test-payment.momo.vn/pay/" + got.OrderID,
		})
	}))
	defer srv.Close()

	g, err := New(testConfig(srv.URL), WithOrderID(func() string { return "order-42" }))
	require.NoError(t, err)

	resp, err := g.CreatePayment(context.Background(), PaymentRequest{
		Amount:    decimal.RequireFromString("199000"),
		OrderInfo: "don hang 42",
	})
	require.NoError(t, err)

	assert.Equal(t, "order-42", resp.OrderID)
	assert.Equal(t, "https://test-payment.momo.vn/pay/order-42", resp.PayURL)
	assert.Zero(t, resp.ErrorCode)

	// Request is signed over the documented field order with raw values.
	raw := "partnerCode=MOMO0001&accessKey=access-key&requestId=" + got.RequestID +
		"&amount=199000&orderId=order-42&orderInfo=don hang 42" +
		"&returnUrl=" + g.cfg.ReturnURL + "&notifyUrl=" + g.cfg.NotifyURL + "&extraData="
	assert.Equal(t, sign.HMACSHA256(testSecretKey, raw), got.Signature)
	assert.Equal(t, "captureMoMoWallet", got.RequestType)
}

func TestCreatePayment_GatewayError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(createResponse{
			ErrorCode:    11,
			Message:      "Access denied",
			LocalMessage: "Truy cap bi tu choi",
		})
	}))
	defer srv.Close()

	g, err := New(testConfig(srv.URL))
	require.NoError(t, err)

	resp, err := g.CreatePayment(context.Background(), PaymentRequest{
		Amount: decimal.NewFromInt(1000), OrderInfo: "x",
	})
	require.NoError(t, err)

	// A gateway-side refusal is data, not a transport error.
	assert.Equal(t, 11, resp.ErrorCode)
	assert.Empty(t, resp.PayURL)
}

func TestCreatePayment_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_ = json.NewEncoder(w).Encode(createResponse{PayURL: "https://pay"})
	}))
	defer srv.Close()

	g, err := New(testConfig(srv.URL))
	require.NoError(t, err)

	resp, err := g.CreatePayment(context.Background(), PaymentRequest{
		Amount: decimal.NewFromInt(1000), OrderInfo: "x",
	})
	require.NoError(t, err)
	assert.Equal(t, "https://pay", resp.PayURL)
	assert.Equal(t, int32(2), calls.Load())
}

func TestVerifyCallback_Success(t *testing.T) {
	g, err := New(testConfig("https://unused"))
	require.NoError(t, err)

	res := g.VerifyCallback(signedCallback(nil))

	require.True(t, res.SignatureOK)
	require.True(t, res.Success)
	assert.Equal(t, "0", res.ResultCode)
	assert.Equal(t, "order-42", res.OrderID)
	assert.Equal(t, int64(2147580210), res.TransactionID)
	assert.True(t, res.Amount.Equal(decimal.RequireFromString("199000")))
}

func TestVerifyCallback_Decline(t *testing.T) {
	g, err := New(testConfig("https://unused"))
	require.NoError(t, err)

	res := g.VerifyCallback(signedCallback(map[string]string{
		"errorCode": "49",
		"message":   "Transaction cancelled by user",
	}))

	assert.True(t, res.SignatureOK)
	assert.False(t, res.Success)
	assert.Equal(t, "49", res.ResultCode)
	assert.Equal(t, "order-42", res.OrderID)
}

func TestVerifyCallback_Tampered(t *testing.T) {
	g, err := New(testConfig("https://unused"))
	require.NoError(t, err)

	q := signedCallback(nil)
	q.Set("amount", "1")

	res := g.VerifyCallback(q)
	assert.False(t, res.SignatureOK)
	assert.False(t, res.Success)
	assert.Empty(t, res.OrderID)
}

func TestVerifyCallback_MissingSignature(t *testing.T) {
	g, err := New(testConfig("https://unused"))
	require.NoError(t, err)

	q := signedCallback(nil)
	q.Del("signature")

	assert.False(t, g.VerifyCallback(q).Success)
}

func TestVerifyCallback_BadTransID(t *testing.T) {
	g, err := New(testConfig("https://unused"))
	require.NoError(t, err)

	res := g.VerifyCallback(signedCallback(map[string]string{"transId": "abc"}))
	assert.False(t, res.Success)
	assert.Empty(t, res.OrderID)
}
