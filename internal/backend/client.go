package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"storefront-service/internal/errs"
	"storefront-service/internal/models"
	"storefront-service/internal/util"

	"go.uber.org/zap"
)

// Endpoint actions
const (
	ActionGetProducts = "getProducts"
	ActionGetServices = "getServices"
	ActionCreateOrder = "createOrder"
	ActionTest        = "test"
)

// DefaultTimeout bounds every remote call
const DefaultTimeout = 10 * time.Second

const maxResponseBytes = 4 << 20

// Client talks to the spreadsheet-backed catalog/order endpoint
type Client struct {
	baseURL    string
	timeout    time.Duration
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a new endpoint client
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL:    baseURL,
		timeout:    timeout,
		httpClient: &http.Client{Timeout: timeout},
		logger:     util.GetLogger(),
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

type createOrderResponse struct {
	Success bool      `json:"success"`
	OrderID models.ID `json:"orderId"`
	Error   string    `json:"error"`
}

// GetProducts fetches the product list
func (c *Client) GetProducts(ctx context.Context) ([]models.Product, error) {
	ctx, span := util.StartSpan(ctx, "BackendClient.GetProducts")
	defer span.End()

	products, err := getList[models.Product](ctx, c, ActionGetProducts)
	util.RecordError(span, err)
	return products, err
}

// GetServices fetches the add-on service list
func (c *Client) GetServices(ctx context.Context) ([]models.Service, error) {
	ctx, span := util.StartSpan(ctx, "BackendClient.GetServices")
	defer span.End()

	services, err := getList[models.Service](ctx, c, ActionGetServices)
	util.RecordError(span, err)
	return services, err
}

// CreateOrder posts the draft and returns the server-issued order id
func (c *Client) CreateOrder(ctx context.Context, draft *models.OrderDraft) (string, error) {
	ctx, span := util.StartSpan(ctx, "BackendClient.CreateOrder")
	defer span.End()

	orderID, err := c.createOrder(ctx, draft)
	util.RecordError(span, err)
	return orderID, err
}

func (c *Client) createOrder(ctx context.Context, draft *models.OrderDraft) (string, error) {
	body, err := json.Marshal(draft)
	if err != nil {
		return "", fmt.Errorf("failed to marshal order: %w", err)
	}

	start := time.Now()
	defer func() {
		util.OrderSubmitLatency.Observe(time.Since(start).Seconds())
	}()

	data, err := c.do(ctx, http.MethodPost, ActionCreateOrder, body)
	if err != nil {
		return "", err
	}

	var resp createOrderResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return "", errs.Wrap(errs.CodeDataFormat, err, "malformed createOrder response")
	}
	if !resp.Success {
		msg := resp.Error
		if msg == "" {
			msg = "order rejected"
		}
		return "", errs.New(errs.CodeNetwork, msg)
	}
	if resp.OrderID == "" {
		return "", errs.New(errs.CodeDataFormat, "createOrder response missing orderId")
	}

	c.logger.Info("Order created remotely", zap.String("remote_order_id", resp.OrderID.String()))
	return resp.OrderID.String(), nil
}

// Ping issues the test action; any 2xx counts as reachable
func (c *Client) Ping(ctx context.Context) error {
	ctx, span := util.StartSpan(ctx, "BackendClient.Ping")
	defer span.End()

	_, err := c.do(ctx, http.MethodGet, ActionTest, nil)
	util.RecordError(span, err)
	return err
}

func getList[T any](ctx context.Context, c *Client, action string) ([]T, error) {
	data, err := c.do(ctx, http.MethodGet, action, nil)
	if err != nil {
		return nil, err
	}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var remote errorResponse
		if err := json.Unmarshal(trimmed, &remote); err == nil && remote.Error != "" {
			return nil, errs.New(errs.CodeDataFormat, fmt.Sprintf("%s returned error: %s", action, remote.Error))
		}
		return nil, errs.New(errs.CodeDataFormat, fmt.Sprintf("%s returned an object, expected an array", action))
	}

	var items []T
	if err := json.Unmarshal(trimmed, &items); err != nil {
		return nil, errs.Wrap(errs.CodeDataFormat, err, fmt.Sprintf("malformed %s response", action))
	}
	if items == nil {
		return nil, errs.New(errs.CodeDataFormat, fmt.Sprintf("%s returned null", action))
	}
	return items, nil
}

func (c *Client) do(ctx context.Context, method, action string, body []byte) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	endpoint, err := c.actionURL(action)
	if err != nil {
		return nil, err
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to build %s request: %w", action, err)
	}
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Pragma", "no-cache")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, errs.Wrap(errs.CodeNetwork, err, fmt.Sprintf("%s timed out", action))
		}
		return nil, errs.Wrap(errs.CodeNetwork, err, fmt.Sprintf("%s request failed", action))
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, errs.Wrap(errs.CodeNetwork, err, fmt.Sprintf("failed to read %s response", action))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, errs.New(errs.CodeNetwork, fmt.Sprintf("%s: HTTP %d", action, resp.StatusCode))
	}

	return data, nil
}

func (c *Client) actionURL(action string) (string, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid backend url: %w", err)
	}
	q := u.Query()
	q.Set("action", action)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
