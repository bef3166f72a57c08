package momo

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"math/rand"
	"net/http"
	"strconv"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
)

// httpDoer is the minimal HTTP client surface the gateway needs.
type httpDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ClientConfig controls the create-payment HTTP call.
type ClientConfig struct {
	Timeout    time.Duration
	MaxRetries int
	BaseDelay  time.Duration
}

func clientDefaults() ClientConfig {
	return ClientConfig{
		Timeout:    10 * time.Second,
		MaxRetries: 2,
		BaseDelay:  300 * time.Millisecond,
	}
}

// retryClient retries transient failures (network errors, 5xx) with
// jittered exponential backoff. Payment creation is idempotent on the MoMo
// side per (partnerCode, requestId), so a retry cannot double-charge.
type retryClient struct {
	inner      *http.Client
	maxRetries int
	baseDelay  time.Duration
}

func newRetryClient(cfg ClientConfig) *retryClient {
	return &retryClient{
		inner:      &http.Client{Timeout: cfg.Timeout},
		maxRetries: cfg.MaxRetries,
		baseDelay:  cfg.BaseDelay,
	}
}

func (c *retryClient) Do(req *http.Request) (*http.Response, error) {
	var body []byte
	if req.Body != nil {
		b, err := io.ReadAll(req.Body)
		if err != nil {
			return nil, errors.Wrap(err, "read request body")
		}
		body = b
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			delay := c.baseDelay << (attempt - 1)
			delay += time.Duration(rand.Int63n(int64(delay)))
			select {
			case <-req.Context().Done():
				return nil, req.Context().Err()
			case <-time.After(delay):
			}
		}

		attemptReq := req.Clone(req.Context())
		if body != nil {
			attemptReq.Body = io.NopCloser(bytes.NewReader(body))
		}

		resp, err := c.inner.Do(attemptReq)
		if err != nil {
			lastErr = err
			continue
		}
		if resp.StatusCode >= 500 {
			_ = resp.Body.Close()
			lastErr = errors.Errorf("gateway returned status %d", resp.StatusCode)
			continue
		}
		return resp, nil
	}
	return nil, errors.Wrapf(lastErr, "after %d attempts", c.maxRetries+1)
}

// createRequest is the create-payment wire payload.
type createRequest struct {
	PartnerCode string `json:"partnerCode"`
	AccessKey   string `json:"accessKey"`
	RequestID   string `json:"requestId"`
	Amount      string `json:"amount"`
	OrderID     string `json:"orderId"`
	OrderInfo   string `json:"orderInfo"`
	ReturnURL   string `json:"returnUrl"`
	NotifyURL   string `json:"notifyUrl"`
	ExtraData   string `json:"extraData"`
	RequestType string `json:"requestType"`
	Signature   string `json:"signature"`
}

// createResponse is the create-payment wire reply.
type createResponse struct {
	RequestID    string `json:"requestId"`
	OrderID      string `json:"orderId"`
	PayURL       string `json:"payUrl"`
	ErrorCode    int    `json:"errorCode"`
	Message      string `json:"message"`
	LocalMessage string `json:"localMessage"`
}

// CreatePayment sends a signed create-payment request and returns the URL
// to redirect the shopper to. A non-zero ErrorCode in the reply is returned
// to the caller inside the response, not as an error: it is a gateway
// decision, not a transport failure.
func (g *Gateway) CreatePayment(ctx context.Context, req PaymentRequest) (*PaymentResponse, error) {
	orderID := g.newOrderID()
	requestID := uuid.New().String()
	// VND has no minor unit; MoMo takes whole base units.
	amount := req.Amount.Truncate(0).String()

	// Create-request signature: fixed field order, raw values.
	signature := g.signRaw([][2]string{
		{"partnerCode", g.cfg.PartnerCode},
		{"accessKey", g.cfg.AccessKey},
		{"requestId", requestID},
		{"amount", amount},
		{"orderId", orderID},
		{"orderInfo", req.OrderInfo},
		{"returnUrl", g.cfg.ReturnURL},
		{"notifyUrl", g.cfg.NotifyURL},
		{"extraData", req.ExtraData},
	})

	payload, err := json.Marshal(createRequest{
		PartnerCode: g.cfg.PartnerCode,
		AccessKey:   g.cfg.AccessKey,
		RequestID:   requestID,
		Amount:      amount,
		OrderID:     orderID,
		OrderInfo:   req.OrderInfo,
		ReturnURL:   g.cfg.ReturnURL,
		NotifyURL:   g.cfg.NotifyURL,
		ExtraData:   req.ExtraData,
		RequestType: g.cfg.RequestType,
		Signature:   signature,
	})
	if err != nil {
		return nil, errors.Wrap(err, "marshal create request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, errors.Wrap(err, "build create request")
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return nil, errors.Wrap(err, "call gateway")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, errors.Errorf("gateway returned status %d: %s", resp.StatusCode, b)
	}

	var reply createResponse
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		return nil, errors.Wrap(err, "decode create response")
	}

	return &PaymentResponse{
		PayURL:       reply.PayURL,
		OrderID:      orderID,
		RequestID:    requestID,
		ErrorCode:    reply.ErrorCode,
		Message:      reply.Message,
		LocalMessage: reply.LocalMessage,
	}, nil
}

func parseTransID(s string) (int64, error) {
	return strconv.ParseInt(s, 10, 64)
}
