package vnpay

import (
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hntran/storefront/internal/gateway/sign"
)

const testSecret = "test-hash-secret"

func testConfig() Config {
	return Config{
		BaseURL:    "https://sandbox.vnpayment.vn/paymentv2/vpcpay.html",
		TmnCode:    "DEMOV210",
		HashSecret: testSecret,
		ReturnURL:  "https://shop.example.com/api/payments/vnpay/callback",
		Version:    "2.1.0",
		Command:    "pay",
		CurrCode:   "VND",
		Locale:     "vn",
	}
}

func newTestGateway(t *testing.T) *Gateway {
	t.Helper()
	g, err := New(testConfig(),
		WithNow(func() time.Time {
			return time.Date(2025, 3, 14, 15, 9, 26, 0, time.UTC)
		}),
		WithTxnRef(func() string {
			return "a0eebc999c0b4ef8bb6d6bb9bd380a11"
		}),
	)
	require.NoError(t, err)
	return g
}

// signedCallback builds a callback query signed with secret.
func signedCallback(secret string, fields map[string]string) url.Values {
	p := sign.NewParams()
	for k, v := range fields {
		p.Set(k, v)
	}
	digest := sign.HMACSHA512(secret, p.Canonical())

	q := url.Values{}
	for k, v := range fields {
		q.Set(k, v)
	}
	q.Set("vnp_SecureHash", digest)
	return q
}

func successFields() map[string]string {
	return map[string]string{
		"vnp_Amount":        "19900000",
		"vnp_OrderInfo":     "thanh toan don hang 42",
		"vnp_ResponseCode":  "00",
		"vnp_TransactionNo": "14422574",
		"vnp_TxnRef":        "a0eebc999c0b4ef8bb6d6bb9bd380a11",
		"vnp_TmnCode":       "DEMOV210",
		"vnp_BankCode":      "NCB",
	}
}

func TestNew_MissingConfig(t *testing.T) {
	cfg := testConfig()
	cfg.HashSecret = ""
	_, err := New(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "hash secret")
}

func TestBuildPaymentURL(t *testing.T) {
	g := newTestGateway(t)

	paymentURL, txnRef := g.BuildPaymentURL(PaymentRequest{
		Amount:    decimal.RequireFromString("199000"),
		OrderInfo: "thanh toan don hang 42",
		OrderType: "other",
		ClientIP:  "203.0.113.7",
	})

	assert.Equal(t, "a0eebc999c0b4ef8bb6d6bb9bd380a11", txnRef)
	require.True(t, strings.HasPrefix(paymentURL, testConfig().BaseURL+"?"))

	parsed, err := url.Parse(paymentURL)
	require.NoError(t, err)
	q := parsed.Query()

	// Amount is transmitted in minor units.
	assert.Equal(t, "19900000", q.Get("vnp_Amount"))
	assert.Equal(t, "20250314150926", q.Get("vnp_CreateDate"))
	assert.Equal(t, "DEMOV210", q.Get("vnp_TmnCode"))
	assert.Equal(t, txnRef, q.Get("vnp_TxnRef"))
	assert.NotEmpty(t, q.Get("vnp_SecureHash"))

	// The signature covers everything except the hash itself.
	p := sign.NewParams()
	for key := range q {
		if key != "vnp_SecureHash" {
			p.Set(key, q.Get(key))
		}
	}
	want := sign.HMACSHA512(testSecret, p.Canonical())
	assert.True(t, sign.DigestsEqual(want, q.Get("vnp_SecureHash")))
}

func TestBuildPaymentURL_TruncatesMinorUnits(t *testing.T) {
	g := newTestGateway(t)

	paymentURL, _ := g.BuildPaymentURL(PaymentRequest{
		Amount:    decimal.RequireFromString("199000.509"),
		OrderInfo: "x",
		OrderType: "other",
		ClientIP:  "203.0.113.7",
	})

	parsed, err := url.Parse(paymentURL)
	require.NoError(t, err)
	assert.Equal(t, "19900050", parsed.Query().Get("vnp_Amount"))
}

func TestVerifyCallback_Success(t *testing.T) {
	g := newTestGateway(t)

	res := g.VerifyCallback(signedCallback(testSecret, successFields()))

	require.True(t, res.SignatureOK)
	require.True(t, res.Success)
	assert.Equal(t, "00", res.ResponseCode)
	assert.Equal(t, "a0eebc999c0b4ef8bb6d6bb9bd380a11", res.TxnRef)
	assert.Equal(t, "thanh toan don hang 42", res.OrderInfo)
	assert.Equal(t, int64(14422574), res.TransactionID)
	// Minor units recovered to the base-unit amount.
	assert.True(t, res.Amount.Equal(decimal.RequireFromString("199000")),
		"got %s", res.Amount)
	assert.NotEmpty(t, res.SecureHash)
}

func TestVerifyCallback_TamperedParameter(t *testing.T) {
	g := newTestGateway(t)

	q := signedCallback(testSecret, successFields())
	q.Set("vnp_Amount", "1")

	res := g.VerifyCallback(q)
	assert.False(t, res.SignatureOK)
	assert.False(t, res.Success)
	assert.Empty(t, res.ResponseCode)
}

func TestVerifyCallback_TamperedSignature(t *testing.T) {
	g := newTestGateway(t)

	q := signedCallback(testSecret, successFields())
	h := q.Get("vnp_SecureHash")
	flipped := "0"
	if h[0] == '0' {
		flipped = "1"
	}
	q.Set("vnp_SecureHash", flipped+h[1:])

	res := g.VerifyCallback(q)
	assert.False(t, res.Success)
}

func TestVerifyCallback_UppercaseSignatureAccepted(t *testing.T) {
	g := newTestGateway(t)

	q := signedCallback(testSecret, successFields())
	q.Set("vnp_SecureHash", strings.ToUpper(q.Get("vnp_SecureHash")))

	res := g.VerifyCallback(q)
	assert.True(t, res.Success)
}

func TestVerifyCallback_MissingSignature(t *testing.T) {
	g := newTestGateway(t)

	q := signedCallback(testSecret, successFields())
	q.Del("vnp_SecureHash")

	assert.False(t, g.VerifyCallback(q).Success)
}

func TestVerifyCallback_Decline(t *testing.T) {
	g := newTestGateway(t)

	fields := successFields()
	fields["vnp_ResponseCode"] = "24" // customer cancelled
	res := g.VerifyCallback(signedCallback(testSecret, fields))

	// Well-formed decline: not a forgery, code preserved for the caller.
	assert.True(t, res.SignatureOK)
	assert.False(t, res.Success)
	assert.Equal(t, "24", res.ResponseCode)
	assert.Equal(t, int64(14422574), res.TransactionID)
}

func TestVerifyCallback_BadTransactionNo(t *testing.T) {
	g := newTestGateway(t)

	fields := successFields()
	fields["vnp_TransactionNo"] = "not-a-number"
	res := g.VerifyCallback(signedCallback(testSecret, fields))

	// Same outcome as a signature mismatch, never a panic.
	assert.False(t, res.Success)
	assert.Empty(t, res.ResponseCode)
}

func TestVerifyCallback_IgnoresUnprefixedParams(t *testing.T) {
	g := newTestGateway(t)

	q := signedCallback(testSecret, successFields())
	// Extra non-gateway parameters must not break verification.
	q.Set("utm_source", "email")
	q.Set("session", "abc")

	assert.True(t, g.VerifyCallback(q).Success)
}

func TestAmountScalingRoundTrip(t *testing.T) {
	g := newTestGateway(t)

	for _, s := range []string{"199000.00", "0.01", "123456.78", "1"} {
		amount := decimal.RequireFromString(s)
		paymentURL, _ := g.BuildPaymentURL(PaymentRequest{
			Amount: amount, OrderInfo: "x", OrderType: "other", ClientIP: "127.0.0.1",
		})
		parsed, err := url.Parse(paymentURL)
		require.NoError(t, err)

		minor := decimal.RequireFromString(parsed.Query().Get("vnp_Amount"))
		recovered := minor.Div(decimal.NewFromInt(100))
		assert.True(t, recovered.Equal(amount), "%s -> %s -> %s", amount, minor, recovered)
	}
}

func TestRandomTxnRef_FreshPerRequest(t *testing.T) {
	g, err := New(testConfig())
	require.NoError(t, err)

	_, ref1 := g.BuildPaymentURL(PaymentRequest{Amount: decimal.NewFromInt(1), OrderInfo: "x", OrderType: "o", ClientIP: "127.0.0.1"})
	_, ref2 := g.BuildPaymentURL(PaymentRequest{Amount: decimal.NewFromInt(1), OrderInfo: "x", OrderType: "o", ClientIP: "127.0.0.1"})

	assert.Len(t, ref1, 32)
	assert.Len(t, ref2, 32)
	assert.NotEqual(t, ref1, ref2)
}
