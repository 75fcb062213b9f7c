// Package runtimeapi implements the client side of the Lambda runtime HTTP
// API: the long-poll for the next invocation and the response, error, init
// and restore report operations against a local control endpoint.
//
// API definition: https://docs.aws.amazon.com/lambda/latest/dg/runtimes-api.html
package runtimeapi

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"runtime"
	"strconv"
	"time"
)

// Version is stamped into the User-Agent of every request.
var Version = "1.0.0"

const (
	nextInvocationPath = "/2018-06-01/runtime/invocation/next"
	initErrorPath      = "/2018-06-01/runtime/init/error"
	restoreNextPath    = "/2018-06-01/runtime/restore/next"
	restoreErrorPath   = "/2018-06-01/runtime/restore/error"

	contentTypeJSON = "application/json"
)

func invocationResponsePath(requestID string) string {
	return "/2018-06-01/runtime/invocation/" + requestID + "/response"
}

func invocationErrorPath(requestID string) string {
	return "/2018-06-01/runtime/invocation/" + requestID + "/error"
}

// Client talks to one control endpoint. It performs no internal concurrency
// and no retries: exactly one invocation is in flight at a time, and every
// failure propagates to the caller, who owns retry policy.
type Client struct {
	transport     Transport
	userAgent     string
	nextTimeout   time.Duration
	reportTimeout time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithTransport replaces the production HTTP transport, mainly for tests.
func WithTransport(t Transport) Option {
	return func(c *Client) { c.transport = t }
}

// WithVsock routes the control connection over AF_VSOCK instead of TCP, for
// sandboxes where the endpoint is exposed on a vsock CID/port.
func WithVsock(cid, port uint32) Option {
	return func(c *Client) {
		if ht, ok := c.transport.(*httpTransport); ok {
			ht.client.Transport.(*http.Transport).DialContext = vsockDialer(cid, port)
		}
	}
}

// WithNextTimeout bounds the next-invocation long-poll. It must stay long
// enough that an idle function does not see spurious poll timeouts.
func WithNextTimeout(d time.Duration) Option {
	return func(c *Client) { c.nextTimeout = d }
}

// WithReportTimeout bounds every report operation.
func WithReportTimeout(d time.Duration) Option {
	return func(c *Client) { c.reportTimeout = d }
}

// New creates a client for the control endpoint at hostport. It fails with
// ErrInvalidEndpoint when hostport does not split into a non-empty host and
// a numeric port.
func New(hostport string, opts ...Option) (*Client, error) {
	host, port, err := net.SplitHostPort(hostport)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidEndpoint, hostport)
	}
	if host == "" {
		return nil, fmt.Errorf("%w: %q: empty host", ErrInvalidEndpoint, hostport)
	}
	if _, err := strconv.Atoi(port); err != nil {
		return nil, fmt.Errorf("%w: %q: non-numeric port", ErrInvalidEndpoint, hostport)
	}

	c := &Client{
		transport:     newHTTPTransport(hostport, nil),
		userAgent:     fmt.Sprintf("photon/%s (%s)", Version, runtime.Version()),
		nextTimeout:   defaultNextTimeout,
		reportTimeout: defaultReportTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Next blocks until the control endpoint hands out the next invocation.
// Transport failures, timeouts, and unexpected status codes are wrapped with
// ErrNextInvocation; a response missing required metadata headers yields a
// MissingMetadataError.
func (c *Client) Next(ctx context.Context) (*InvocationRequest, error) {
	ctx, cancel := context.WithTimeout(ctx, c.nextTimeout)
	defer cancel()

	resp, err := c.transport.Do(ctx, http.MethodGet, nextInvocationPath, c.baseHeader(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNextInvocation, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: unexpected status %d", ErrNextInvocation, resp.StatusCode)
	}
	return extractInvocation(resp.Header, resp.Body)
}

// ReportSuccess posts the handler's response payload for one invocation.
func (c *Client) ReportSuccess(ctx context.Context, requestID string, payload []byte) error {
	path := invocationResponsePath(requestID)
	return c.report(ctx, path, c.baseHeader(), payload, http.StatusOK)
}

// ReportError posts a structured invocation failure. The error type travels
// as a header when set; the X-Ray cause travels as a header only when it is
// smaller than 1 MiB and is dropped otherwise, never truncated.
func (c *Client) ReportError(ctx context.Context, invErr InvocationError) error {
	path := invocationErrorPath(invErr.RequestID)
	header := c.errorHeader(invErr.ErrorType)
	if cause := invErr.ErrorCause; cause != "" && len(cause) < maxErrorCauseBytes {
		header.Set(headerErrorCause, cause)
	}
	return c.report(ctx, path, header, invErr.Payload, http.StatusAccepted)
}

// ReportInitError reports a process-scoped initialization failure. It is
// only valid before the first Next call.
func (c *Client) ReportInitError(ctx context.Context, payload []byte, errorType string) error {
	return c.report(ctx, initErrorPath, c.errorHeader(errorType), payload, http.StatusAccepted)
}

// RestoreNext signals readiness to proceed past a restore checkpoint and
// blocks until the endpoint releases the process.
func (c *Client) RestoreNext(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.nextTimeout)
	defer cancel()

	resp, err := c.transport.Do(ctx, http.MethodGet, restoreNextPath, c.baseHeader(), nil)
	if err != nil {
		return fmt.Errorf("restore next: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return &ReportFailedError{Endpoint: restoreNextPath, StatusCode: resp.StatusCode}
	}
	return nil
}

// ReportRestoreError reports a failure of the restore path and returns the
// endpoint's status code as data. A non-2xx status is not an error here: a
// failed restore-error report must not itself crash the restore path, so the
// caller inspects the code instead.
func (c *Client) ReportRestoreError(ctx context.Context, payload []byte, errorType string) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, c.reportTimeout)
	defer cancel()

	resp, err := c.transport.Do(ctx, http.MethodPost, restoreErrorPath, c.errorHeader(errorType), payload)
	if err != nil {
		return 0, fmt.Errorf("report restore error: %w", err)
	}
	return resp.StatusCode, nil
}

func (c *Client) report(ctx context.Context, path string, header http.Header, payload []byte, wantStatus int) error {
	ctx, cancel := context.WithTimeout(ctx, c.reportTimeout)
	defer cancel()

	resp, err := c.transport.Do(ctx, http.MethodPost, path, header, payload)
	if err != nil {
		return fmt.Errorf("report to %s: %w", path, err)
	}
	if resp.StatusCode != wantStatus {
		return &ReportFailedError{Endpoint: path, StatusCode: resp.StatusCode}
	}
	return nil
}

func (c *Client) baseHeader() http.Header {
	h := make(http.Header, 2)
	h.Set("User-Agent", c.userAgent)
	return h
}

func (c *Client) errorHeader(errorType string) http.Header {
	h := c.baseHeader()
	h.Set("Content-Type", contentTypeJSON)
	if errorType != "" {
		h.Set(headerErrorType, errorType)
	}
	return h
}
