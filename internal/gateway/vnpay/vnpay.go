// Package vnpay integrates the VNPay redirect gateway: building signed
// payment URLs and authenticating the query-string callback VNPay sends the
// shopper back with.
package vnpay

import (
	"encoding/hex"
	"net/url"
	"strconv"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/hntran/storefront/internal/gateway/sign"
)

const (
	// ParamPrefix marks every VNPay parameter on the wire.
	ParamPrefix = "vnp_"

	paramSecureHash     = "vnp_SecureHash"
	paramSecureHashType = "vnp_SecureHashType"

	// ResponseCodeSuccess is the only vnp_ResponseCode value that means a
	// completed payment. Everything else is a decline.
	ResponseCodeSuccess = "00"

	createDateLayout = "20060102150405"
)

var hundred = decimal.NewFromInt(100)

// Config holds the merchant-side VNPay settings. All fields except Locale
// are required; missing values are a deployment error surfaced at
// construction, not per request.
type Config struct {
	BaseURL    string
	TmnCode    string
	HashSecret string
	ReturnURL  string
	Version    string
	Command    string
	CurrCode   string
	Locale     string
	TimeZone   string
}

func (c Config) validate() error {
	switch {
	case c.BaseURL == "":
		return errors.New("vnpay: base URL is required")
	case c.TmnCode == "":
		return errors.New("vnpay: merchant code is required")
	case c.HashSecret == "":
		return errors.New("vnpay: hash secret is required")
	case c.ReturnURL == "":
		return errors.New("vnpay: return URL is required")
	case c.Version == "":
		return errors.New("vnpay: version is required")
	case c.Command == "":
		return errors.New("vnpay: command is required")
	case c.CurrCode == "":
		return errors.New("vnpay: currency code is required")
	}
	return nil
}

// PaymentRequest carries the per-attempt inputs for building a payment URL.
type PaymentRequest struct {
	Amount    decimal.Decimal
	OrderInfo string
	OrderType string
	ClientIP  string
}

// CallbackResult is the verified outcome of a VNPay round-trip. Success is
// true only when the signature validates AND the gateway reports
// ResponseCodeSuccess; a valid-but-declined callback keeps ResponseCode set
// so callers can tell a decline from a forgery.
type CallbackResult struct {
	// SignatureOK reports that the callback authenticated and parsed;
	// forged or mangled callbacks leave it false.
	SignatureOK   bool
	Success       bool
	ResponseCode  string
	TxnRef        string
	OrderInfo     string
	TransactionID int64
	Amount        decimal.Decimal
	SecureHash    string
}

// Gateway signs outbound payment requests and verifies inbound callbacks.
type Gateway struct {
	cfg       Config
	loc       *time.Location
	now       func() time.Time
	newTxnRef func() string
}

// New validates cfg and returns a Gateway. The clock and transaction
// reference source are fixed here; tests override them via the WithNow and
// WithTxnRef options.
func New(cfg Config, opts ...Option) (*Gateway, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	loc := time.UTC
	if cfg.TimeZone != "" {
		l, err := time.LoadLocation(cfg.TimeZone)
		if err != nil {
			return nil, errors.Wrapf(err, "vnpay: load time zone %q", cfg.TimeZone)
		}
		loc = l
	}

	g := &Gateway{
		cfg:       cfg,
		loc:       loc,
		now:       time.Now,
		newTxnRef: randomTxnRef,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Option overrides a Gateway dependency, used by tests.
type Option func(*Gateway)

// WithNow fixes the clock used for vnp_CreateDate.
func WithNow(now func() time.Time) Option {
	return func(g *Gateway) { g.now = now }
}

// WithTxnRef fixes the transaction reference source.
func WithTxnRef(fn func() string) Option {
	return func(g *Gateway) { g.newTxnRef = fn }
}

// randomTxnRef returns a fresh 128-bit reference rendered as 32 hex chars.
// A random reference, not a timestamp: timestamps collide under concurrent
// checkouts.
func randomTxnRef() string {
	u := uuid.New()
	return hex.EncodeToString(u[:])
}

// BuildPaymentURL constructs the signed redirect URL for req and returns it
// together with the per-attempt transaction reference embedded in it.
func (g *Gateway) BuildPaymentURL(req PaymentRequest) (paymentURL, txnRef string) {
	txnRef = g.newTxnRef()

	p := sign.NewParams()
	p.Set("vnp_Version", g.cfg.Version)
	p.Set("vnp_Command", g.cfg.Command)
	p.Set("vnp_TmnCode", g.cfg.TmnCode)
	// VNPay transmits amounts in minor units: x100, truncated.
	p.Set("vnp_Amount", req.Amount.Mul(hundred).Truncate(0).String())
	p.Set("vnp_CreateDate", g.now().In(g.loc).Format(createDateLayout))
	p.Set("vnp_CurrCode", g.cfg.CurrCode)
	p.Set("vnp_IpAddr", req.ClientIP)
	p.Set("vnp_Locale", g.cfg.Locale)
	p.Set("vnp_OrderInfo", req.OrderInfo)
	p.Set("vnp_OrderType", req.OrderType)
	p.Set("vnp_ReturnUrl", g.cfg.ReturnURL)
	p.Set("vnp_TxnRef", txnRef)

	query := p.Canonical()
	digest := sign.HMACSHA512(g.cfg.HashSecret, query)

	// The hash itself stays outside the signed payload.
	return g.cfg.BaseURL + "?" + query + "&" + paramSecureHash + "=" + digest, txnRef
}

// VerifyCallback authenticates the query parameters of an inbound VNPay
// callback and extracts the payment result. It never fails open: a bad
// signature, a missing hash, or an unparseable numeric field all yield a
// zero-valued result with Success false.
func (g *Gateway) VerifyCallback(query url.Values) CallbackResult {
	received := query.Get(paramSecureHash)
	if received == "" {
		return CallbackResult{}
	}

	p := sign.NewParams()
	for key := range query {
		if len(key) >= len(ParamPrefix) && key[:len(ParamPrefix)] == ParamPrefix {
			p.Set(key, query.Get(key))
		}
	}

	payload := p.Canonical(paramSecureHash, paramSecureHashType)
	expected := sign.HMACSHA512(g.cfg.HashSecret, payload)
	if !sign.DigestsEqual(expected, received) {
		return CallbackResult{}
	}

	transactionID, err := strconv.ParseInt(p.Get("vnp_TransactionNo"), 10, 64)
	if err != nil {
		return CallbackResult{}
	}

	amountRaw, err := decimal.NewFromString(p.Get("vnp_Amount"))
	if err != nil {
		return CallbackResult{}
	}

	result := CallbackResult{
		SignatureOK:   true,
		ResponseCode:  p.Get("vnp_ResponseCode"),
		TxnRef:        p.Get("vnp_TxnRef"),
		OrderInfo:     p.Get("vnp_OrderInfo"),
		TransactionID: transactionID,
		Amount:        amountRaw.Div(hundred),
		SecureHash:    received,
	}

	// A valid signature with a non-success code is a decline, not a forgery.
	result.Success = result.ResponseCode == ResponseCodeSuccess
	return result
}
