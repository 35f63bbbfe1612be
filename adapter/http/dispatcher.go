package httpadapter

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/arloliu/meridian/types"
)

// DefaultMaxBodySize caps the response body read by the dispatcher.
const DefaultMaxBodySize = 10 << 20

// ErrBodyTooLarge reports a successful response whose body exceeds the
// configured maximum size. It is non-retryable.
var ErrBodyTooLarge = errors.New("meridian/http: response body too large")

// Request is one HTTP request routed through meridian.
//
// Path is resolved against the address of the node chosen for each attempt.
type Request struct {
	Method string
	Path   string
	Header http.Header
	Body   []byte
}

// Response is the response of the node that served the request.
type Response struct {
	// Node is the address of the node that answered.
	Node string

	StatusCode int
	Header     http.Header
	Body       []byte
}

// StatusError is returned for responses with an error status code.
type StatusError struct {
	Node       string
	StatusCode int
	Body       []byte
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	return fmt.Sprintf("meridian/http: node %s returned %d %s", e.Node, e.StatusCode, http.StatusText(e.StatusCode))
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithAttemptTimeout bounds each attempt. Zero means no per-attempt timeout.
//
// An attempt that times out is retryable; the overall request is still
// bounded by the caller's context.
func WithAttemptTimeout(d time.Duration) Option {
	return func(disp *Dispatcher) {
		disp.timeout = d
	}
}

// WithHeader adds a header to every request.
func WithHeader(key, value string) Option {
	return func(disp *Dispatcher) {
		disp.header.Add(key, value)
	}
}

// WithMaxBodySize caps the number of response body bytes read.
//
// A successful response with a larger body fails with ErrBodyTooLarge. The
// body of an error status is truncated to n bytes in its StatusError.
// Non-positive values are ignored.
func WithMaxBodySize(n int64) Option {
	return func(disp *Dispatcher) {
		if n > 0 {
			disp.maxBody = n
		}
	}
}

// Dispatcher sends Requests to the node chosen by the router.
//
// It implements meridian.Dispatcher[*Request, *Response]. Transport errors,
// attempt timeouts, 5xx, 408 and 429 responses are retryable. Other 4xx
// responses are non-retryable.
type Dispatcher struct {
	client  *http.Client
	timeout time.Duration
	header  http.Header
	maxBody int64
}

// New creates a new HTTP dispatcher.
//
// Parameters:
//   - client: The HTTP client (nil uses http.DefaultClient)
//   - opts: Optional configuration options
//
// Returns:
//   - *Dispatcher: A new dispatcher
func New(client *http.Client, opts ...Option) *Dispatcher {
	if client == nil {
		client = http.DefaultClient
	}

	d := &Dispatcher{
		client:  client,
		header:  make(http.Header),
		maxBody: DefaultMaxBodySize,
	}
	for _, opt := range opts {
		opt(d)
	}

	return d
}

// Send performs req against node.
//
// Parameters:
//   - ctx: Context for the attempt
//   - node: The node chosen by the router
//   - req: The request
//
// Returns:
//   - *Response: The response for 1xx-3xx status codes
//   - error: A classified error, or the context error if ctx ended
func (d *Dispatcher) Send(ctx context.Context, node types.Node, req *Request) (*Response, error) {
	attemptCtx := ctx
	if d.timeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(attemptCtx, method, URL(node.Address, req.Path), body)
	if err != nil {
		return nil, types.NonRetryable(err)
	}
	for k, vs := range d.header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	for k, vs := range req.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}

	resp, err := d.client.Do(httpReq)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}

		return nil, types.Retryable(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, d.maxBody+1))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}

		return nil, types.Retryable(err)
	}

	oversized := int64(len(data)) > d.maxBody
	if oversized {
		data = data[:d.maxBody]
	}

	if resp.StatusCode >= http.StatusBadRequest {
		statusErr := &StatusError{Node: node.Address, StatusCode: resp.StatusCode, Body: data}
		if RetryableStatus(resp.StatusCode) {
			return nil, types.Retryable(statusErr)
		}

		return nil, types.NonRetryable(statusErr)
	}

	if oversized {
		return nil, types.NonRetryable(fmt.Errorf("%w: %s sent more than %d bytes", ErrBodyTooLarge, node.Address, d.maxBody))
	}

	return &Response{
		Node:       node.Address,
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       data,
	}, nil
}

// RetryableStatus reports whether a status code indicates a node-level
// failure worth retrying on another node.
func RetryableStatus(code int) bool {
	switch {
	case code >= http.StatusInternalServerError:
		return true
	case code == http.StatusRequestTimeout, code == http.StatusTooManyRequests:
		return true
	}

	return false
}

// URL joins a node address and a request path. Addresses without a scheme
// are treated as http.
func URL(address, path string) string {
	if !strings.Contains(address, "://") {
		address = "http://" + address
	}
	address = strings.TrimRight(address, "/")

	if path == "" {
		return address
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	return address + path
}
