package submit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/joescharf/techscore/internal/score"
)

// DefaultTimeout bounds a single submission, including reading the response.
const DefaultTimeout = 30 * time.Second

// Error classes returned by Submit. Callers match them with errors.Is.
var (
	ErrConnection      = errors.New("cannot connect to server")
	ErrTimeout         = errors.New("request timed out")
	ErrRequest         = errors.New("request failed")
	ErrInvalidResponse = errors.New("response is not valid JSON")
)

// ResponseFormatError carries the raw body of a response that was not JSON.
type ResponseFormatError struct {
	StatusCode int
	Raw        string
}

func (e *ResponseFormatError) Error() string {
	return fmt.Sprintf("%v (status %d)", ErrInvalidResponse, e.StatusCode)
}

func (e *ResponseFormatError) Unwrap() error { return ErrInvalidResponse }

// Result is a delivered request. A non-200 status is a rejection, not an error.
type Result struct {
	StatusCode int
	Body       json.RawMessage
	RequestID  string
	Elapsed    time.Duration
}

// OK reports whether the server accepted the submission.
func (r *Result) OK() bool {
	return r.StatusCode == http.StatusOK
}

// Client posts submissions to the score API.
type Client struct {
	hc        *http.Client
	requestID func() string
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets the overall request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.hc.Timeout = d
		}
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.hc = hc
		}
	}
}

// WithRequestID overrides request id generation.
func WithRequestID(fn func() string) Option {
	return func(c *Client) {
		if fn != nil {
			c.requestID = fn
		}
	}
}

// New returns a Client with a 30 second timeout and ULID request ids.
func New(opts ...Option) *Client {
	c := &Client{
		hc:        &http.Client{Timeout: DefaultTimeout},
		requestID: func() string { return ulid.Make().String() },
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Timeout returns the effective request timeout.
func (c *Client) Timeout() time.Duration {
	return c.hc.Timeout
}

// Submit performs one POST of data to endpoint. There are no retries.
func (c *Client) Submit(ctx context.Context, endpoint string, data score.Data) (*Result, error) {
	body, err := EncodeBody(data)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRequest, err)
	}
	id := c.requestID()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", id)

	start := time.Now()
	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, classify(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, classify(err)
	}

	if !json.Valid(raw) {
		return nil, &ResponseFormatError{StatusCode: resp.StatusCode, Raw: string(raw)}
	}

	return &Result{
		StatusCode: resp.StatusCode,
		Body:       json.RawMessage(raw),
		RequestID:  id,
		Elapsed:    time.Since(start),
	}, nil
}

// EncodeBody serializes data as compact JSON without HTML escaping, so
// strings such as URLs reach the server as written.
func EncodeBody(data score.Data) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(data); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// classify maps a transport error onto one of the package error classes.
func classify(err error) error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return fmt.Errorf("%w: %v", ErrConnection, err)
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return fmt.Errorf("%w: %v", ErrConnection, err)
	}

	return fmt.Errorf("%w: %v", ErrRequest, err)
}
