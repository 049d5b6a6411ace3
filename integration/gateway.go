package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrGatewayUnavailable wraps every failure to create a remote order.
var ErrGatewayUnavailable = errors.New("payment gateway unavailable")

// RemoteOrderRequest carries an amount already in the gateway's minor unit.
type RemoteOrderRequest struct {
	Amount   int64
	Currency string
	Receipt  string
	Notes    map[string]string
}

// RemoteOrder is the gateway's view of a created order.
type RemoteOrder struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Status   string `json:"status"`
}

// PaymentGateway creates remote orders that the client-side checkout pays.
type PaymentGateway interface {
	CreateRemoteOrder(ctx context.Context, req RemoteOrderRequest) (*RemoteOrder, error)
}

// HTTPGateway implements PaymentGateway against the gateway's REST API.
type HTTPGateway struct {
	baseURL    string
	keyID      string
	keySecret  string
	httpClient *http.Client
}

// NewHTTPGateway creates a new HTTPGateway.
func NewHTTPGateway(baseURL, keyID, keySecret string, timeout time.Duration) *HTTPGateway {
	return &HTTPGateway{
		baseURL:   strings.TrimRight(baseURL, "/"),
		keyID:     keyID,
		keySecret: keySecret,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type createOrderRequest struct {
	Amount   int64             `json:"amount"`
	Currency string            `json:"currency"`
	Receipt  string            `json:"receipt"`
	Notes    map[string]string `json:"notes,omitempty"`
}

func (g *HTTPGateway) CreateRemoteOrder(ctx context.Context, req RemoteOrderRequest) (*RemoteOrder, error) {
	body := createOrderRequest{
		Amount:   req.Amount,
		Currency: req.Currency,
		Receipt:  req.Receipt,
		Notes:    req.Notes,
	}

	var out RemoteOrder
	if err := g.doRequest(ctx, http.MethodPost, "/v1/orders", body, &out); err != nil {
		return nil, fmt.Errorf("%w: create order: %v", ErrGatewayUnavailable, err)
	}
	if out.ID == "" {
		return nil, fmt.Errorf("%w: create order: empty order id", ErrGatewayUnavailable)
	}
	return &out, nil
}

func (g *HTTPGateway) doRequest(ctx context.Context, method, path string, body interface{}, out interface{}) error {
	var reqBody io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reqBody = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.SetBasicAuth(g.keyID, g.keySecret)
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http do: %w", err)
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("gateway API error (status %d): %s", resp.StatusCode, string(respBytes))
	}

	if out != nil {
		if err := json.Unmarshal(respBytes, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

// SandboxGateway creates remote orders locally. Used in development and tests.
type SandboxGateway struct{}

func NewSandboxGateway() *SandboxGateway {
	return &SandboxGateway{}
}

func (SandboxGateway) CreateRemoteOrder(ctx context.Context, req RemoteOrderRequest) (*RemoteOrder, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	return &RemoteOrder{
		ID:       "order_" + strings.ReplaceAll(uuid.NewString(), "-", ""),
		Amount:   req.Amount,
		Currency: req.Currency,
		Status:   "created",
	}, nil
}
