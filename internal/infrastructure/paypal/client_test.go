package paypal

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	tokenCalls   atomic.Int32
	lastCreate   createOrderReq
	createStatus int
	createBody   string
	captureCode  int
	captureBody  string
	delay        time.Duration
}

func (p *fakeProvider) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "client" || pass != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = io.WriteString(w, `{"error":"invalid_client"}`)
			return
		}
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "client_credentials", r.PostForm.Get("grant_type"))
		p.tokenCalls.Add(1)
		_, _ = io.WriteString(w, `{"access_token":"A21","token_type":"Bearer","expires_in":32400}`)
	})
	mux.HandleFunc("/v2/checkout/orders", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer A21", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&p.lastCreate))
		if p.createStatus != 0 {
			w.WriteHeader(p.createStatus)
		}
		body := p.createBody
		if body == "" {
			body = `{"id":"5O190127TN364715T","status":"CREATED"}`
		}
		_, _ = io.WriteString(w, body)
	})
	mux.HandleFunc("/v2/checkout/orders/5O190127TN364715T/capture", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		if p.delay > 0 {
			select {
			case <-time.After(p.delay):
			case <-r.Context().Done():
				return
			}
		}
		if p.captureCode != 0 {
			w.WriteHeader(p.captureCode)
		}
		_, _ = io.WriteString(w, p.captureBody)
	})
	return mux
}

func newTestClient(t *testing.T, p *fakeProvider, timeout time.Duration) *Client {
	t.Helper()
	srv := httptest.NewServer(p.handler(t))
	t.Cleanup(srv.Close)
	c, err := NewClient(Config{ClientID: "client", Secret: "secret", BaseURL: srv.URL, Timeout: timeout})
	require.NoError(t, err)
	return c
}

func TestNewClient(t *testing.T) {
	_, err := NewClient(Config{ClientID: "x"})
	assert.Error(t, err)

	c, err := NewClient(Config{ClientID: "x", Secret: "y", Env: "live"})
	require.NoError(t, err)
	assert.Equal(t, LiveBaseURL, c.baseURL)

	c, err = NewClient(Config{ClientID: "x", Secret: "y"})
	require.NoError(t, err)
	assert.Equal(t, SandboxBaseURL, c.baseURL)
	assert.Equal(t, defaultTimeout, c.timeout)
}

func TestAuthenticate(t *testing.T) {
	p := &fakeProvider{}
	c := newTestClient(t, p, time.Second)

	tok, err := c.Authenticate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "A21", tok)

	c.secret = "wrong"
	_, err = c.Authenticate(context.Background())
	var ge *GatewayError
	require.ErrorAs(t, err, &ge)
	assert.Equal(t, http.StatusUnauthorized, ge.StatusCode)
	assert.Contains(t, ge.Error(), "invalid_client")
}

func TestCreateRemoteOrder_Payload(t *testing.T) {
	p := &fakeProvider{}
	c := newTestClient(t, p, time.Second)

	lines := []LineItem{
		{Name: "Tea", UnitPrice: 500, Qty: 2},
		{Name: "Mug", UnitPrice: 1999, Qty: 1},
	}
	id, err := c.CreateRemoteOrder(context.Background(), lines, 2999, "usd")
	require.NoError(t, err)
	assert.Equal(t, "5O190127TN364715T", id)

	got := p.lastCreate
	assert.Equal(t, "CAPTURE", got.Intent)
	require.Len(t, got.PurchaseUnits, 1)
	pu := got.PurchaseUnits[0]
	assert.Equal(t, "USD", pu.Amount.CurrencyCode)
	assert.Equal(t, "29.99", pu.Amount.Value)
	assert.Equal(t, "29.99", pu.Amount.Breakdown.ItemTotal.Value)
	require.Len(t, pu.Items, 2)
	assert.Equal(t, item{Name: "Tea", UnitAmount: money{CurrencyCode: "USD", Value: "5.00"}, Quantity: "2"}, pu.Items[0])
	assert.Equal(t, "19.99", pu.Items[1].UnitAmount.Value)
}

func TestCreateRemoteOrder_ReauthenticatesEveryCall(t *testing.T) {
	p := &fakeProvider{}
	c := newTestClient(t, p, time.Second)
	for i := 0; i < 3; i++ {
		_, err := c.CreateRemoteOrder(context.Background(), []LineItem{{Name: "Tea", UnitPrice: 1, Qty: 1}}, 1, "USD")
		require.NoError(t, err)
	}
	assert.Equal(t, int32(3), p.tokenCalls.Load())
}

func TestCreateRemoteOrder_ProviderErrors(t *testing.T) {
	p := &fakeProvider{createStatus: http.StatusUnprocessableEntity, createBody: `{"name":"UNPROCESSABLE_ENTITY"}`}
	c := newTestClient(t, p, time.Second)
	_, err := c.CreateRemoteOrder(context.Background(), nil, 0, "USD")
	var ge *GatewayError
	require.ErrorAs(t, err, &ge)
	assert.Equal(t, http.StatusUnprocessableEntity, ge.StatusCode)
	assert.Equal(t, "create_order", ge.Op)

	p.createStatus = 0
	p.createBody = `{"status":"CREATED"}`
	_, err = c.CreateRemoteOrder(context.Background(), nil, 0, "USD")
	require.ErrorAs(t, err, &ge, "missing id is malformed")
}

func TestCaptureRemoteOrder_Completed(t *testing.T) {
	p := &fakeProvider{captureCode: http.StatusCreated, captureBody: `{"id":"5O190127TN364715T","status":"COMPLETED"}`}
	c := newTestClient(t, p, time.Second)

	res, err := c.CaptureRemoteOrder(context.Background(), "5O190127TN364715T")
	require.NoError(t, err)
	assert.True(t, res.Completed())
	assert.JSONEq(t, p.captureBody, string(res.Body))
}

func TestCaptureRemoteOrder_DeclinePassesBodyThrough(t *testing.T) {
	body := `{"name":"UNPROCESSABLE_ENTITY","details":[{"issue":"ORDER_ALREADY_CAPTURED"}]}`
	p := &fakeProvider{captureCode: http.StatusUnprocessableEntity, captureBody: body}
	c := newTestClient(t, p, time.Second)

	res, err := c.CaptureRemoteOrder(context.Background(), "5O190127TN364715T")
	var ge *GatewayError
	require.ErrorAs(t, err, &ge)
	assert.False(t, res.Completed())
	assert.Equal(t, http.StatusUnprocessableEntity, res.StatusCode)
	assert.JSONEq(t, body, string(res.Body))
}

func TestCaptureRemoteOrder_RejectedCredentialsCarryProviderAnswer(t *testing.T) {
	p := &fakeProvider{captureBody: `{"status":"COMPLETED"}`}
	c := newTestClient(t, p, time.Second)
	c.secret = "wrong"

	res, err := c.CaptureRemoteOrder(context.Background(), "5O190127TN364715T")
	var ge *GatewayError
	require.ErrorAs(t, err, &ge)
	assert.Equal(t, "authenticate", ge.Op)
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
	assert.JSONEq(t, `{"error":"invalid_client"}`, string(res.Body))
	assert.False(t, res.Completed())
}

func TestCaptureRemoteOrder_MalformedBody(t *testing.T) {
	p := &fakeProvider{captureBody: `<html>oops</html>`}
	c := newTestClient(t, p, time.Second)

	res, err := c.CaptureRemoteOrder(context.Background(), "5O190127TN364715T")
	var ge *GatewayError
	require.ErrorAs(t, err, &ge)
	assert.Nil(t, res.Body)
	assert.Equal(t, http.StatusOK, res.StatusCode)
}

func TestCaptureRemoteOrder_Timeout(t *testing.T) {
	p := &fakeProvider{delay: 2 * time.Second, captureBody: `{"status":"COMPLETED"}`}
	c := newTestClient(t, p, 100*time.Millisecond)

	_, err := c.CaptureRemoteOrder(context.Background(), "5O190127TN364715T")
	var te *TimeoutError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "capture_order", te.Op)
	var ge *GatewayError
	assert.False(t, errors.As(err, &ge))
}

func TestCaptureRemoteOrder_Unreachable(t *testing.T) {
	c, err := NewClient(Config{ClientID: "client", Secret: "secret", BaseURL: "http://127.0.0.1:1", Timeout: time.Second})
	require.NoError(t, err)
	_, err = c.CaptureRemoteOrder(context.Background(), "X")
	require.Error(t, err)
	var ge *GatewayError
	assert.False(t, errors.As(err, &ge))
}
