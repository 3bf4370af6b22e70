package paypal

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"gmart-backend/internal/domain"
)

const (
	SandboxBaseURL = "https://api-m.sandbox.paypal.com"
	LiveBaseURL    = "https://api-m.paypal.com"

	StatusCompleted = "COMPLETED"

	defaultTimeout = 15 * time.Second
)

var tracer = otel.Tracer("gmart-backend/paypal")

type Config struct {
	ClientID string
	Secret   string
	Env      string
	BaseURL  string
	Timeout  time.Duration
	HTTP     *http.Client
	// Observe receives the wall time of every provider round trip.
	Observe func(op string, d time.Duration)
}

type Client struct {
	clientID string
	secret   string
	baseURL  string
	timeout  time.Duration
	http     *http.Client
	observe  func(op string, d time.Duration)
}

func NewClient(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.ClientID) == "" || strings.TrimSpace(cfg.Secret) == "" {
		return nil, fmt.Errorf("paypal client id and secret required")
	}
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = SandboxBaseURL
		if cfg.Env == "live" {
			base = LiveBaseURL
		}
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	hc := cfg.HTTP
	if hc == nil {
		hc = &http.Client{Timeout: timeout}
	}
	return &Client{
		clientID: cfg.ClientID,
		secret:   cfg.Secret,
		baseURL:  base,
		timeout:  timeout,
		http:     hc,
		observe:  cfg.Observe,
	}, nil
}

// LineItem is one cart line as sent to the provider. UnitPrice is in minor units.
type LineItem struct {
	Name      string
	UnitPrice int64
	Qty       int
}

// GatewayError is a non-success or unreadable provider response.
type GatewayError struct {
	Op         string
	StatusCode int
	Body       []byte
}

func (e *GatewayError) Error() string {
	body := strings.TrimSpace(string(e.Body))
	if body == "" {
		return fmt.Sprintf("paypal %s: status %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("paypal %s: status %d: %s", e.Op, e.StatusCode, body)
}

// TimeoutError means the provider did not answer within the configured timeout.
// The remote side may still have applied the call.
type TimeoutError struct {
	Op  string
	Err error
}

func (e *TimeoutError) Error() string { return "paypal " + e.Op + ": timed out" }

func (e *TimeoutError) Unwrap() error { return e.Err }

// CaptureResult is the provider's capture answer, passed through untouched.
type CaptureResult struct {
	StatusCode int
	Status     string
	Body       json.RawMessage
}

func (r CaptureResult) Completed() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300 && r.Status == StatusCompleted
}

type tokenResp struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

type money struct {
	CurrencyCode string `json:"currency_code"`
	Value        string `json:"value"`
}

type breakdown struct {
	ItemTotal money `json:"item_total"`
}

type amount struct {
	CurrencyCode string    `json:"currency_code"`
	Value        string    `json:"value"`
	Breakdown    breakdown `json:"breakdown"`
}

type item struct {
	Name       string `json:"name"`
	UnitAmount money  `json:"unit_amount"`
	Quantity   string `json:"quantity"`
}

type purchaseUnit struct {
	Amount amount `json:"amount"`
	Items  []item `json:"items"`
}

type createOrderReq struct {
	Intent        string         `json:"intent"`
	PurchaseUnits []purchaseUnit `json:"purchase_units"`
}

type orderResp struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// Authenticate exchanges the client credentials for an access token. Tokens are
// not cached; every operation calls this first.
func (c *Client) Authenticate(ctx context.Context) (string, error) {
	const op = "authenticate"
	form := url.Values{"grant_type": {"client_credentials"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(c.clientID, c.secret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	status, body, err := c.do(op, req)
	if err != nil {
		return "", err
	}
	var out tokenResp
	if err := json.Unmarshal(body, &out); err != nil || strings.TrimSpace(out.AccessToken) == "" {
		return "", &GatewayError{Op: op, StatusCode: status, Body: body}
	}
	return out.AccessToken, nil
}

// CreateRemoteOrder registers a CAPTURE-intent order for the given lines and
// returns the provider order id. total must equal the sum of the lines.
func (c *Client) CreateRemoteOrder(ctx context.Context, lines []LineItem, total int64, currency string) (id string, err error) {
	const op = "create_order"
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	ctx, span := tracer.Start(ctx, "paypal.CreateRemoteOrder")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()
	span.SetAttributes(attribute.Int64("order.total", total), attribute.Int("order.lines", len(lines)))

	raw, err := json.Marshal(buildCreateOrder(lines, total, currency))
	if err != nil {
		return "", err
	}
	token, err := c.Authenticate(ctx)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v2/checkout/orders", bytes.NewReader(raw))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	status, body, err := c.do(op, req)
	if err != nil {
		return "", err
	}
	var out orderResp
	if err := json.Unmarshal(body, &out); err != nil || strings.TrimSpace(out.ID) == "" {
		return "", &GatewayError{Op: op, StatusCode: status, Body: body}
	}
	span.SetAttributes(attribute.String("paypal.order_id", out.ID))
	return out.ID, nil
}

// CaptureRemoteOrder finalizes a previously created order. The provider body is
// returned even when err is a *GatewayError.
func (c *Client) CaptureRemoteOrder(ctx context.Context, externalOrderID string) (res CaptureResult, err error) {
	const op = "capture_order"
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	ctx, span := tracer.Start(ctx, "paypal.CaptureRemoteOrder")
	defer func() {
		span.SetAttributes(attribute.Int("http.status_code", res.StatusCode))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()
	span.SetAttributes(attribute.String("paypal.order_id", externalOrderID))

	if strings.TrimSpace(externalOrderID) == "" {
		return CaptureResult{}, fmt.Errorf("paypal %s: order id required", op)
	}
	token, err := c.Authenticate(ctx)
	if err != nil {
		// A rejected token request is still a provider answer.
		var ge *GatewayError
		if errors.As(err, &ge) && ge.StatusCode != 0 {
			res = CaptureResult{StatusCode: ge.StatusCode}
			if json.Valid(ge.Body) {
				res.Body = json.RawMessage(ge.Body)
			}
			return res, err
		}
		return CaptureResult{}, err
	}
	u := c.baseURL + "/v2/checkout/orders/" + url.PathEscape(externalOrderID) + "/capture"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, nil)
	if err != nil {
		return CaptureResult{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	status, body, err := c.do(op, req)
	if err != nil && status == 0 {
		return CaptureResult{}, err
	}
	res = CaptureResult{StatusCode: status, Body: json.RawMessage(body)}
	var out orderResp
	if jerr := json.Unmarshal(body, &out); jerr != nil {
		if err == nil {
			err = &GatewayError{Op: op, StatusCode: status, Body: body}
		}
		if !json.Valid(body) {
			res.Body = nil
		}
		return res, err
	}
	res.Status = out.Status
	return res, err
}

func (c *Client) do(op string, req *http.Request) (int, []byte, error) {
	start := time.Now()
	resp, err := c.http.Do(req)
	if c.observe != nil {
		defer func() { c.observe(op, time.Since(start)) }()
	}
	if err != nil {
		if isTimeout(err) {
			return 0, nil, &TimeoutError{Op: op, Err: err}
		}
		return 0, nil, fmt.Errorf("paypal %s: %w", op, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		if isTimeout(err) {
			return 0, nil, &TimeoutError{Op: op, Err: err}
		}
		return 0, nil, fmt.Errorf("paypal %s: read body: %w", op, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.StatusCode, body, &GatewayError{Op: op, StatusCode: resp.StatusCode, Body: body}
	}
	return resp.StatusCode, body, nil
}

func buildCreateOrder(lines []LineItem, total int64, currency string) createOrderReq {
	cur := strings.ToUpper(currency)
	items := make([]item, 0, len(lines))
	for _, l := range lines {
		items = append(items, item{
			Name:       l.Name,
			UnitAmount: money{CurrencyCode: cur, Value: domain.FormatMinor(l.UnitPrice)},
			Quantity:   strconv.Itoa(l.Qty),
		})
	}
	value := domain.FormatMinor(total)
	return createOrderReq{
		Intent: "CAPTURE",
		PurchaseUnits: []purchaseUnit{{
			Amount: amount{
				CurrencyCode: cur,
				Value:        value,
				Breakdown:    breakdown{ItemTotal: money{CurrencyCode: cur, Value: value}},
			},
			Items: items,
		}},
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
