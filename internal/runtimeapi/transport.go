package runtimeapi

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/mdlayher/vsock"
)

// Response is the transport-level view of one HTTP exchange: status code,
// response headers, and the fully read body.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Transport issues a single HTTP exchange against the control endpoint.
// Implementations must present a blocking call-and-return interface; any
// connection reuse or event-loop mechanics stay behind Do.
type Transport interface {
	Do(ctx context.Context, method, path string, header http.Header, body []byte) (*Response, error)
}

const (
	// defaultNextTimeout bounds the long-poll for the next invocation. The
	// control endpoint legitimately holds the request open while no work is
	// available, so this must be generous.
	defaultNextTimeout = 15 * time.Minute

	// defaultReportTimeout bounds every report operation. Reports answer
	// immediately; anything slower is a stuck endpoint.
	defaultReportTimeout = 15 * time.Second
)

// httpTransport is the production Transport: a net/http client with a
// connection pool of one reused connection to the local control endpoint.
type httpTransport struct {
	baseURL string
	client  *http.Client
}

func newHTTPTransport(hostport string, dial func(ctx context.Context, network, addr string) (net.Conn, error)) *httpTransport {
	inner := &http.Transport{
		MaxIdleConns:        1,
		MaxIdleConnsPerHost: 1,
		IdleConnTimeout:     0, // keep the control connection open
	}
	if dial != nil {
		inner.DialContext = dial
	}
	return &httpTransport{
		baseURL: "http://" + hostport,
		client:  &http.Client{Transport: inner},
	}
}

// vsockDialer returns a DialContext that ignores the TCP address and opens
// an AF_VSOCK connection instead, for microVM guests whose control endpoint
// lives on a vsock CID/port rather than the loopback interface.
func vsockDialer(cid, port uint32) func(ctx context.Context, network, addr string) (net.Conn, error) {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		conn, err := vsock.Dial(cid, port, nil)
		if err != nil {
			return nil, fmt.Errorf("vsock dial cid=%d port=%d: %w", cid, port, err)
		}
		return conn, nil
	}
}

func (t *httpTransport) Do(ctx context.Context, method, path string, header http.Header, body []byte) (*Response, error) {
	var reader io.Reader
	if len(body) > 0 {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, t.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("build request %s %s: %w", method, path, err)
	}
	for name, values := range header {
		for _, v := range values {
			req.Header.Add(name, v)
		}
	}
	if reader != nil {
		req.ContentLength = int64(len(body))
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	// The body is always drained so the connection goes back to the pool.
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response of %s %s: %w", method, path, err)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       respBody,
	}, nil
}
