// Package backlab provides a Go SDK for the backlab-server HTTP API.
package backlab

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"backlab/internal/backtest"
	"backlab/internal/httpapi"
	"backlab/internal/store"
)

// Client talks to a running backlab-server instance.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client for the API at baseURL, for example
// "http://localhost:8080".
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 5 * time.Minute},
	}
}

// APIError is a non-2xx response from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Message)
}

// ListStrategies returns the names of the strategies the server can run.
func (c *Client) ListStrategies(ctx context.Context) ([]string, error) {
	var resp httpapi.StrategiesResponse
	if err := c.get(ctx, "/api/v1/strategies", &resp); err != nil {
		return nil, err
	}
	return resp.Strategies, nil
}

// RunBacktest executes a backtest on the server and returns the full result.
func (c *Client) RunBacktest(ctx context.Context, req httpapi.BacktestRequest) (*backtest.Result, error) {
	var res backtest.Result
	if err := c.post(ctx, "/api/v1/backtests", req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// ListBacktests returns stored run summaries, newest first. limit 0 means no
// limit.
func (c *Client) ListBacktests(ctx context.Context, limit int) ([]store.RunSummary, error) {
	path := "/api/v1/backtests"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var summaries []store.RunSummary
	if err := c.get(ctx, path, &summaries); err != nil {
		return nil, err
	}
	return summaries, nil
}

// GetBacktest retrieves a stored run by ID.
func (c *Client) GetBacktest(ctx context.Context, id string) (*backtest.Result, error) {
	var res backtest.Result
	if err := c.get(ctx, "/api/v1/backtests/"+url.PathEscape(id), &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Optimize runs a grid search on the server.
func (c *Client) Optimize(ctx context.Context, req httpapi.OptimizeRequest) (*httpapi.OptimizeResponse, error) {
	var resp httpapi.OptimizeResponse
	if err := c.post(ctx, "/api/v1/optimize", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr struct {
			Error string `json:"error"`
		}
		body, _ := io.ReadAll(resp.Body)
		msg := string(body)
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != "" {
			msg = apiErr.Error
		}
		return &APIError{StatusCode: resp.StatusCode, Message: msg}
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
