// Package terminal is the point-of-sale side of the playground: a typed
// client for the gateway API and the session state a terminal UI renders.
package terminal

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/alovak/terminal-playground/gateway/models"
	"github.com/alovak/terminal-playground/internal/protocol"
)

var (
	ErrNetwork      = errors.New("network error")
	ErrNotFound     = errors.New("not found")
	ErrInvalidState = errors.New("invalid state")
	ErrMalformed    = errors.New("malformed request")
)

// APIError is a non-2xx response from the gateway.
type APIError struct {
	StatusCode int
	Message    string

	kind error
}

func (e *APIError) Error() string {
	return fmt.Sprintf("gateway responded %d: %s", e.StatusCode, e.Message)
}

func (e *APIError) Is(target error) bool {
	return e.kind != nil && target == e.kind
}

type Client struct {
	Base string
	HTTP *http.Client
}

func NewClient(base string, hc *http.Client) *Client {
	if hc == nil {
		hc = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{Base: strings.TrimRight(base, "/"), HTTP: hc}
}

func (c *Client) CreatePayment(ctx context.Context, req models.PaymentRequest) (*models.Transaction, error) {
	transaction := &models.Transaction{}
	if err := c.do(ctx, http.MethodPost, "/api/payment", req, transaction, ErrMalformed); err != nil {
		return nil, err
	}
	return transaction, nil
}

func (c *Client) ListTransactions(ctx context.Context) ([]models.Transaction, error) {
	list := models.TransactionList{}
	if err := c.do(ctx, http.MethodGet, "/api/transactions", nil, &list, ErrMalformed); err != nil {
		return nil, err
	}
	return list.Transactions, nil
}

func (c *Client) GetTransaction(ctx context.Context, id string) (*models.Transaction, error) {
	transaction := &models.Transaction{}
	if err := c.do(ctx, http.MethodGet, "/api/transaction/"+url.PathEscape(id), nil, transaction, ErrMalformed); err != nil {
		return nil, err
	}
	return transaction, nil
}

// VoidTransaction reports a transaction that cannot be voided as
// ErrInvalidState.
func (c *Client) VoidTransaction(ctx context.Context, id string) (*models.Transaction, error) {
	transaction := &models.Transaction{}
	if err := c.do(ctx, http.MethodPost, "/api/transaction/"+url.PathEscape(id)+"/void", nil, transaction, ErrInvalidState); err != nil {
		return nil, err
	}
	return transaction, nil
}

func (c *Client) TerminalInfo(ctx context.Context) (*models.TerminalInfo, error) {
	info := &models.TerminalInfo{}
	if err := c.do(ctx, http.MethodGet, "/api/terminal/info", nil, info, ErrMalformed); err != nil {
		return nil, err
	}
	return info, nil
}

func (c *Client) Protocols(ctx context.Context) ([]protocol.Descriptor, error) {
	list := models.ProtocolList{}
	if err := c.do(ctx, http.MethodGet, "/api/protocols", nil, &list, ErrMalformed); err != nil {
		return nil, err
	}
	return list.Protocols, nil
}

func (c *Client) SavePayoutSettings(ctx context.Context, settings map[string]any) (string, error) {
	msg := models.Message{}
	if err := c.do(ctx, http.MethodPost, "/api/payout/settings", settings, &msg, ErrMalformed); err != nil {
		return "", err
	}
	return msg.Message, nil
}

func (c *Client) PayoutSettings(ctx context.Context) (*models.PayoutSettings, error) {
	settings := &models.PayoutSettings{}
	if err := c.do(ctx, http.MethodGet, "/api/payout/settings", nil, settings, ErrMalformed); err != nil {
		return nil, err
	}
	return settings, nil
}

// Status probes the gateway. Any error means the terminal is offline.
func (c *Client) Status(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/api/status", nil, nil, ErrMalformed)
}

func (c *Client) Ack(ctx context.Context, notificationID string) error {
	return c.do(ctx, http.MethodPost, "/api/events/"+url.PathEscape(notificationID)+"/ack", nil, nil, ErrMalformed)
}

// openEvents starts the event stream. The caller closes the body.
func (c *Client) openEvents(ctx context.Context) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.Base+"/api/events", nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")

	// the stream outlives any client timeout
	hc := *c.HTTP
	hc.Timeout = 0

	resp, err := hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: events: %w", ErrNetwork, err)
	}
	if resp.StatusCode/100 != 2 {
		defer resp.Body.Close()
		return nil, decodeAPIError(resp, ErrMalformed)
	}
	return resp.Body, nil
}

// do sends in as JSON and decodes a 2xx body into out. badRequest is the
// sentinel a 400 response matches.
func (c *Client) do(ctx context.Context, method, path string, in, out any, badRequest error) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.Base+path, body)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %w", ErrNetwork, method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return decodeAPIError(resp, badRequest)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s response: %w", path, err)
	}
	return nil
}

func decodeAPIError(resp *http.Response, badRequest error) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}

	b, _ := io.ReadAll(resp.Body)
	payload := models.ErrorResponse{}
	if err := json.Unmarshal(b, &payload); err == nil && payload.Error != "" {
		apiErr.Message = payload.Error
	} else {
		apiErr.Message = strings.TrimSpace(string(b))
	}

	switch resp.StatusCode {
	case http.StatusNotFound:
		apiErr.kind = ErrNotFound
	case http.StatusBadRequest:
		apiErr.kind = badRequest
	}
	return apiErr
}
