// Package client provides a Go client for the risk matrix HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

// APIError is returned when the server answers with a non-2xx status. Message
// carries the server's error detail when one was provided.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned %d", e.Status)
	}
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
}

// LevelsResult holds the current probability and severity level maps.
type LevelsResult struct {
	Probability map[string]int `json:"probability"`
	Severity    map[string]int `json:"severity"`
}

// AssessResult holds the outcome of a single assessment.
type AssessResult struct {
	RiskValue int    `json:"risk_value"`
	RiskLevel string `json:"risk_level"`
}

// MatrixCell is one cell of the visualization matrix.
type MatrixCell struct {
	Probability string `json:"probability"`
	Severity    string `json:"severity"`
	RiskValue   int    `json:"risk_value"`
	RiskLevel   string `json:"risk_level"`
}

// MatrixResult holds the full visualization matrix.
type MatrixResult struct {
	ProbabilityAxis []string       `json:"probability_axis"`
	SeverityAxis    []string       `json:"severity_axis"`
	MatrixData      [][]MatrixCell `json:"matrix_data"`
}

// ConfigureResult holds the confirmation returned by a successful configure.
type ConfigureResult struct {
	Message  string `json:"message"`
	Revision string `json:"revision"`
}

// Client talks to a risk matrix server.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout sets the request timeout on the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// New creates a Client for the server at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Levels fetches the current level definitions.
func (c *Client) Levels(ctx context.Context) (*LevelsResult, error) {
	var out LevelsResult
	if err := c.doJSON(ctx, http.MethodGet, "/risk-matrix/levels", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Assess scores one (probability, severity) pair on the server's active model.
func (c *Client) Assess(ctx context.Context, probability, severity string) (*AssessResult, error) {
	payload := map[string]string{"probability": probability, "severity": severity}
	var out AssessResult
	if err := c.doJSON(ctx, http.MethodPost, "/risk-matrix/assess", payload, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Visualize fetches the full matrix for the server's active model.
func (c *Client) Visualize(ctx context.Context) (*MatrixResult, error) {
	var out MatrixResult
	if err := c.doJSON(ctx, http.MethodGet, "/risk-matrix/visualize", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Configure uploads a workbook to replace the server's active model. filename
// must carry a supported spreadsheet extension.
func (c *Client) Configure(ctx context.Context, filename string, content io.Reader) (*ConfigureResult, error) {
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("create multipart file: %w", err)
	}
	if _, err := io.Copy(fw, content); err != nil {
		return nil, fmt.Errorf("copy workbook: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/risk-matrix/configure", body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var out ConfigureResult
	if err := c.send(req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// doJSON issues a JSON request and decodes a JSON response into out.
func (c *Client) doJSON(ctx context.Context, method, path string, payload, out interface{}) error {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.send(req, out)
}

func (c *Client) send(req *http.Request, out interface{}) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode}
		var detail struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(raw, &detail) == nil {
			apiErr.Message = detail.Error
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
