// Package momo integrates the MoMo wallet gateway. Unlike the VNPay
// redirect flow, payment creation is an outbound signed JSON call; only the
// shopper's return trip comes back as a signed query string.
//
// MoMo signs raw parameter values joined in a gateway-fixed field order, not
// an ordinal-sorted URL-encoded string, so the shared canonicalization from
// the sign package applies only to the HMAC and digest-comparison
// primitives here.
package momo

import (
	"net/url"
	"strings"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/hntran/storefront/internal/gateway/sign"
)

// ResultCodeSuccess is the only resultCode value meaning a completed
// payment.
const ResultCodeSuccess = "0"

// Config holds the merchant-side MoMo settings.
type Config struct {
	Endpoint    string
	PartnerCode string
	AccessKey   string
	SecretKey   string
	ReturnURL   string
	NotifyURL   string
	RequestType string
}

func (c Config) validate() error {
	switch {
	case c.Endpoint == "":
		return errors.New("momo: endpoint is required")
	case c.PartnerCode == "":
		return errors.New("momo: partner code is required")
	case c.AccessKey == "":
		return errors.New("momo: access key is required")
	case c.SecretKey == "":
		return errors.New("momo: secret key is required")
	case c.ReturnURL == "":
		return errors.New("momo: return URL is required")
	case c.NotifyURL == "":
		return errors.New("momo: notify URL is required")
	}
	return nil
}

// PaymentRequest carries the per-attempt inputs for creating a payment.
type PaymentRequest struct {
	Amount    decimal.Decimal
	OrderInfo string
	ExtraData string
}

// PaymentResponse is the useful subset of MoMo's create-payment reply.
type PaymentResponse struct {
	PayURL       string
	OrderID      string
	RequestID    string
	ErrorCode    int
	Message      string
	LocalMessage string
}

// CallbackResult is the verified outcome of a MoMo return trip.
type CallbackResult struct {
	// SignatureOK reports that the callback authenticated and parsed;
	// forged or mangled callbacks leave it false.
	SignatureOK   bool
	Success       bool
	ResultCode    string
	OrderID       string
	OrderInfo     string
	TransactionID int64
	Amount        decimal.Decimal
	Signature     string
}

// callbackSignedFields is the exact field order MoMo signs on the return
// redirect. Gateway convention, do not sort.
var callbackSignedFields = []string{
	"partnerCode", "accessKey", "requestId", "amount", "orderId",
	"orderInfo", "orderType", "transId", "message", "localMessage",
	"responseTime", "errorCode", "payType", "extraData",
}

// Gateway creates signed payment requests and verifies inbound callbacks.
type Gateway struct {
	cfg        Config
	client     httpDoer
	newOrderID func() string
}

// New validates cfg and returns a Gateway using the given HTTP client
// configuration.
func New(cfg Config, opts ...Option) (*Gateway, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.RequestType == "" {
		cfg.RequestType = "captureMoMoWallet"
	}

	g := &Gateway{
		cfg:        cfg,
		client:     newRetryClient(clientDefaults()),
		newOrderID: func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Option overrides a Gateway dependency.
type Option func(*Gateway)

// WithClient replaces the HTTP client, used by tests.
func WithClient(c httpDoer) Option {
	return func(g *Gateway) { g.client = c }
}

// WithOrderID fixes the order id source.
func WithOrderID(fn func() string) Option {
	return func(g *Gateway) { g.newOrderID = fn }
}

// signRaw joins the given key/value pairs as key=value&... over raw
// (unencoded) values and returns the HMAC-SHA256 hex digest.
func (g *Gateway) signRaw(pairs [][2]string) string {
	var b strings.Builder
	for i, kv := range pairs {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(kv[0])
		b.WriteByte('=')
		b.WriteString(kv[1])
	}
	return sign.HMACSHA256(g.cfg.SecretKey, b.String())
}

// VerifyCallback authenticates the query parameters of an inbound MoMo
// redirect and extracts the payment result. Fails closed on a missing or
// mismatched signature or an unparseable numeric field.
func (g *Gateway) VerifyCallback(query url.Values) CallbackResult {
	received := query.Get("signature")
	if received == "" {
		return CallbackResult{}
	}

	pairs := make([][2]string, len(callbackSignedFields))
	for i, key := range callbackSignedFields {
		pairs[i] = [2]string{key, query.Get(key)}
	}
	expected := g.signRaw(pairs)
	if !sign.DigestsEqual(expected, received) {
		return CallbackResult{}
	}

	transactionID, err := parseTransID(query.Get("transId"))
	if err != nil {
		return CallbackResult{}
	}

	amount, err := decimal.NewFromString(query.Get("amount"))
	if err != nil {
		return CallbackResult{}
	}

	result := CallbackResult{
		SignatureOK:   true,
		ResultCode:    query.Get("errorCode"),
		OrderID:       query.Get("orderId"),
		OrderInfo:     query.Get("orderInfo"),
		TransactionID: transactionID,
		Amount:        amount,
		Signature:     received,
	}
	result.Success = result.ResultCode == ResultCodeSuccess
	return result
}
