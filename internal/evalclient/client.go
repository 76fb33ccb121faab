package evalclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrMalformedSession is returned when the session service answers without a
// usable numeric id.
var ErrMalformedSession = errors.New("malformed session response")

// StatusError reports a non-2xx answer from the evaluator service.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("status %d: %s", e.Code, e.Body)
}

// Client talks to the session and evaluation endpoints.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout sets the per-request timeout. Zero disables it.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// NewClient returns a client for the service rooted at baseURL.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type evalRequest struct {
	Text string `json:"text"`
}

type evalResponse struct {
	Result *string `json:"result"`
}

// Eval submits text to the evaluator for the given session and returns the
// result text. A missing result is reported as "".
func (c *Client) Eval(ctx context.Context, sessionID int64, text string) (string, error) {
	data, err := json.Marshal(evalRequest{Text: text})
	if err != nil {
		return "", fmt.Errorf("marshal eval request: %w", err)
	}

	url := c.baseURL + "/eval/" + strconv.FormatInt(sessionID, 10)
	body, err := c.post(ctx, url, data)
	if err != nil {
		return "", err
	}

	var result evalResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("decode eval response: %w", err)
	}
	if result.Result == nil {
		return "", nil
	}
	return *result.Result, nil
}

// CreateSession asks the service for a new repl and returns its id.
func (c *Client) CreateSession(ctx context.Context) (int64, error) {
	body, err := c.post(ctx, c.baseURL+"/repl", nil)
	if err != nil {
		return 0, err
	}
	return parseSessionID(body)
}

// parseSessionID accepts only {"id": <integer>}. Anything else, including a
// string id or a fractional number, is malformed.
func parseSessionID(body []byte) (int64, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var payload map[string]any
	if err := dec.Decode(&payload); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrMalformedSession, err)
	}

	num, ok := payload["id"].(json.Number)
	if !ok {
		return 0, fmt.Errorf("%w: id missing or not a number", ErrMalformedSession)
	}
	id, err := num.Int64()
	if err != nil {
		return 0, fmt.Errorf("%w: id %s is not an integer", ErrMalformedSession, num)
	}
	return id, nil
}

// post sends a JSON POST and returns the body of a 2xx answer. Non-2xx
// answers come back as *StatusError carrying the raw body.
func (c *Client) post(ctx context.Context, url string, payload []byte) ([]byte, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-Request-ID", uuid.New().String()[:8])

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Code: resp.StatusCode, Body: string(body)}
	}
	return body, nil
}
