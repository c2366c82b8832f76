package scorer

import (
	"context"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// maxResponseBytes bounds how much of a response body is read
const maxResponseBytes = 1 << 20

// HTTPClient scores lines by POSTing them to a fixed URL
type HTTPClient struct {
	URL      string        // Endpoint URL
	Timeout  time.Duration // Per-request timeout (0 = none)
	MaxConns int           // Idle connections kept per host
	metrics  *MetricsRecorder
}

// NewHTTPClient creates a client for the endpoint at url
func NewHTTPClient(url string, timeout time.Duration, maxConns int) *HTTPClient {
	return &HTTPClient{
		URL:      url,
		Timeout:  timeout,
		MaxConns: maxConns,
		metrics:  NewMetricsRecorder(false),
	}
}

// NewSession opens a session with its own connection pool
func (c *HTTPClient) NewSession() Session {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if c.MaxConns > 0 {
		transport.MaxIdleConnsPerHost = c.MaxConns
		transport.MaxIdleConns = c.MaxConns
	}
	return &httpSession{
		url: c.URL,
		client: &http.Client{
			Transport: transport,
			Timeout:   c.Timeout,
		},
		transport: transport,
		metrics:   c.metrics,
	}
}

type httpSession struct {
	url       string
	client    *http.Client
	transport *http.Transport
	metrics   *MetricsRecorder
}

// Score performs a single POST of line and extracts the score field
func (s *httpSession) Score(ctx context.Context, line string) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, strings.NewReader(line))
	if err != nil {
		return 0, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")

	start := time.Now()
	resp, err := s.client.Do(req)
	if err != nil {
		s.metrics.RecordAPICall("error", time.Since(start).Seconds())
		return 0, fmt.Errorf("POST %s: %w", s.url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	s.metrics.RecordAPICall(statusClass(resp.StatusCode), time.Since(start).Seconds())
	if err != nil {
		return 0, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, &StatusError{StatusCode: resp.StatusCode, Status: resp.Status}
	}

	return parseScore(body)
}

// Close drops the session's idle connections
func (s *httpSession) Close() {
	s.transport.CloseIdleConnections()
}

// parseScore extracts the optional integer "score" field of a JSON object.
// A missing field scores 0; a fractional number is malformed.
func parseScore(body []byte) (int64, error) {
	if !gjson.ValidBytes(body) {
		return 0, fmt.Errorf("%w: invalid JSON", ErrMalformedResponse)
	}
	doc := gjson.ParseBytes(body)
	if !doc.IsObject() {
		return 0, fmt.Errorf("%w: expected a JSON object, got %s", ErrMalformedResponse, doc.Type)
	}
	score := doc.Get("score")
	switch score.Type {
	case gjson.Null:
		return 0, nil
	case gjson.Number:
		if score.Num != math.Trunc(score.Num) {
			return 0, fmt.Errorf("%w: score %s is not an integer", ErrMalformedResponse, score.Raw)
		}
		return score.Int(), nil
	default:
		return 0, fmt.Errorf("%w: score is %s, not a number", ErrMalformedResponse, score.Type)
	}
}

func statusClass(code int) string {
	return fmt.Sprintf("%dxx", code/100)
}
