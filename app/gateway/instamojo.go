package gateway

import (
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"
)

const maxErrorBody = 512

type InstamojoConfig struct {
	APIKey      string
	AuthToken   string
	Endpoint    string
	RedirectURL string
	WebhookURL  string
	PrivateSalt string
	HTTPTimeout time.Duration
}

type InstamojoGateway struct {
	cfg    InstamojoConfig
	client *http.Client
}

func NewInstamojoGateway(cfg InstamojoConfig) *InstamojoGateway {
	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &InstamojoGateway{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
	}
}

func (g *InstamojoGateway) CreatePaymentRequest(ctx context.Context, input *CreateInput) (*CreateOutput, error) {
	const op = "create payment request"

	values := url.Values{}
	values.Set("purpose", input.Purpose)
	values.Set("amount", input.Amount)
	values.Set("buyer_name", input.BuyerName)
	values.Set("email", input.BuyerEmail)
	values.Set("send_email", "true")
	values.Set("allow_repeated_payments", "false")
	if redirectURL := strings.TrimSpace(g.cfg.RedirectURL); redirectURL != "" {
		values.Set("redirect_url", redirectURL)
	}
	if webhookURL := strings.TrimSpace(g.cfg.WebhookURL); webhookURL != "" && g.cfg.PrivateSalt != "" {
		values.Set("webhook", webhookURL)
	}

	body, err := g.do(ctx, op, http.MethodPost, "payment-requests/", values)
	if err != nil {
		return nil, err
	}

	var payload struct {
		PaymentRequest *struct {
			ID      string `json:"id"`
			LongURL string `json:"longurl"`
		} `json:"payment_request"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, &Error{Kind: KindSchema, Op: op, Err: err}
	}
	if payload.PaymentRequest == nil || strings.TrimSpace(payload.PaymentRequest.LongURL) == "" {
		return nil, &Error{Kind: KindSchema, Op: op, Err: errors.New("payment_request.longurl missing")}
	}

	return &CreateOutput{
		PaymentRequestID: strings.TrimSpace(payload.PaymentRequest.ID),
		LongURL:          strings.TrimSpace(payload.PaymentRequest.LongURL),
	}, nil
}

func (g *InstamojoGateway) GetPayment(ctx context.Context, paymentID string) (*PaymentDetails, error) {
	const op = "get payment"

	paymentID = strings.TrimSpace(paymentID)
	if paymentID == "" {
		return nil, &Error{Kind: KindConfig, Op: op, Err: errors.New("payment id is empty")}
	}

	body, err := g.do(ctx, op, http.MethodGet, "payments/"+url.PathEscape(paymentID)+"/", nil)
	if err != nil {
		return nil, err
	}

	var payload struct {
		Payment *struct {
			PaymentID      string          `json:"payment_id"`
			Status         string          `json:"status"`
			PaymentRequest json.RawMessage `json:"payment_request"`
		} `json:"payment"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, &Error{Kind: KindSchema, Op: op, Err: err}
	}
	if payload.Payment == nil || strings.TrimSpace(payload.Payment.Status) == "" {
		return nil, &Error{Kind: KindSchema, Op: op, Err: errors.New("payment.status missing")}
	}

	details := &PaymentDetails{
		PaymentID:        strings.TrimSpace(payload.Payment.PaymentID),
		PaymentRequestID: parseRequestRef(payload.Payment.PaymentRequest),
		Status:           strings.TrimSpace(payload.Payment.Status),
	}
	if details.PaymentID == "" {
		details.PaymentID = paymentID
	}

	return details, nil
}

// GetPaymentRequest reports the latest payment made against a payment request. A
// request nobody has paid yet comes back with an empty Status.
func (g *InstamojoGateway) GetPaymentRequest(ctx context.Context, paymentRequestID string) (*PaymentDetails, error) {
	const op = "get payment request"

	paymentRequestID = strings.TrimSpace(paymentRequestID)
	if paymentRequestID == "" {
		return nil, &Error{Kind: KindConfig, Op: op, Err: errors.New("payment request id is empty")}
	}

	body, err := g.do(ctx, op, http.MethodGet, "payment-requests/"+url.PathEscape(paymentRequestID)+"/", nil)
	if err != nil {
		return nil, err
	}

	var payload struct {
		PaymentRequest *struct {
			ID       string            `json:"id"`
			Payments []json.RawMessage `json:"payments"`
		} `json:"payment_request"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, &Error{Kind: KindSchema, Op: op, Err: err}
	}
	if payload.PaymentRequest == nil {
		return nil, &Error{Kind: KindSchema, Op: op, Err: errors.New("payment_request missing")}
	}

	details := &PaymentDetails{PaymentRequestID: paymentRequestID}
	for _, raw := range payload.PaymentRequest.Payments {
		var item struct {
			PaymentID string `json:"payment_id"`
			Status    string `json:"status"`
		}
		if json.Unmarshal(raw, &item) != nil || strings.TrimSpace(item.Status) == "" {
			continue
		}
		details.PaymentID = strings.TrimSpace(item.PaymentID)
		details.Status = strings.TrimSpace(item.Status)
		if strings.EqualFold(details.Status, "Credit") {
			break
		}
	}

	return details, nil
}

func (g *InstamojoGateway) VerifyAndParseWebhook(fields url.Values) (*WebhookEvent, error) {
	if strings.TrimSpace(g.cfg.PrivateSalt) == "" {
		return nil, &Error{Kind: KindConfig, Op: "verify webhook", Err: errors.New("private salt is not configured")}
	}
	if !verifyMAC(fields, g.cfg.PrivateSalt) {
		return nil, ErrInvalidSignature
	}

	return &WebhookEvent{
		PaymentID:        strings.TrimSpace(fields.Get("payment_id")),
		PaymentRequestID: strings.TrimSpace(fields.Get("payment_request_id")),
		Status:           strings.TrimSpace(fields.Get("status")),
	}, nil
}

func (g *InstamojoGateway) do(ctx context.Context, op, method, path string, values url.Values) ([]byte, error) {
	if strings.TrimSpace(g.cfg.APIKey) == "" || strings.TrimSpace(g.cfg.AuthToken) == "" {
		return nil, &Error{Kind: KindConfig, Op: op, Err: errors.New("api credentials are not configured")}
	}

	var reqBody io.Reader
	if values != nil {
		reqBody = strings.NewReader(values.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, joinEndpoint(g.cfg.Endpoint, path), reqBody)
	if err != nil {
		return nil, &Error{Kind: KindConfig, Op: op, Err: err}
	}
	req.Header.Set("X-Api-Key", g.cfg.APIKey)
	req.Header.Set("X-Auth-Token", g.cfg.AuthToken)
	if values != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, &Error{Kind: KindTransport, Op: op, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{Kind: KindTransport, Op: op, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &Error{
			Kind:       KindStatus,
			Op:         op,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("body=%s", truncate(string(body), maxErrorBody)),
		}
	}

	return body, nil
}

func joinEndpoint(endpoint, path string) string {
	return strings.TrimRight(strings.TrimSpace(endpoint), "/") + "/" + strings.TrimLeft(path, "/")
}

// verifyMAC checks Instamojo's webhook MAC: HMAC-SHA1 over all other field values
// ordered by lower-cased key and joined with "|".
func verifyMAC(fields url.Values, salt string) bool {
	received := strings.TrimSpace(fields.Get("mac"))
	if received == "" {
		return false
	}
	candidate, err := hex.DecodeString(received)
	if err != nil {
		return false
	}
	return hmac.Equal(candidate, computeMAC(fields, salt))
}

func computeMAC(fields url.Values, salt string) []byte {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		if k == "mac" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		return strings.ToLower(keys[i]) < strings.ToLower(keys[j])
	})

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fields.Get(k))
	}

	mac := hmac.New(sha1.New, []byte(salt))
	_, _ = mac.Write([]byte(strings.Join(parts, "|")))
	return mac.Sum(nil)
}

// parseRequestRef accepts either a bare id or a resource URL and returns the id.
func parseRequestRef(raw json.RawMessage) string {
	if len(raw) == 0 || raw[0] != '"' {
		return ""
	}
	var s string
	if json.Unmarshal(raw, &s) != nil {
		return ""
	}
	s = strings.TrimRight(strings.TrimSpace(s), "/")
	if idx := strings.LastIndex(s, "/"); idx >= 0 {
		s = s[idx+1:]
	}
	return s
}

func truncate(value string, max int) string {
	if len(value) <= max {
		return value
	}
	return value[:max]
}
