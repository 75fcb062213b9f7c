package runtimeapi

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := New(strings.TrimPrefix(srv.URL, "http://"))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return c, srv
}

func TestNewInvalidEndpoint(t *testing.T) {
	for _, hostport := range []string{"", "localhost", ":9001", "localhost:", "localhost:abc"} {
		_, err := New(hostport)
		if !errors.Is(err, ErrInvalidEndpoint) {
			t.Fatalf("New(%q): expected ErrInvalidEndpoint, got %v", hostport, err)
		}
	}
}

func TestNext(t *testing.T) {
	var gotUserAgent string
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/2018-06-01/runtime/invocation/next" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		gotUserAgent = r.Header.Get("User-Agent")
		w.Header().Set(headerRequestID, "abc-123")
		w.Header().Set(headerFunctionARN, "arn:aws:lambda:us-east-1:123456789012:function:fn")
		w.Header().Set(headerDeadlineMS, "1700000000000")
		_, _ = w.Write([]byte(`{"k":"v"}`))
	}))

	req, err := c.Next(context.Background())
	if err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	if req.ID != "abc-123" || req.InvokedFunctionARN != "arn:aws:lambda:us-east-1:123456789012:function:fn" {
		t.Fatalf("unexpected invocation: %+v", req)
	}
	if req.DeadlineMS != 1700000000000 {
		t.Fatalf("unexpected deadline: %d", req.DeadlineMS)
	}
	if string(req.Content) != `{"k":"v"}` {
		t.Fatalf("unexpected content: %q", req.Content)
	}
	if !strings.HasPrefix(gotUserAgent, "photon/") {
		t.Fatalf("unexpected user agent: %q", gotUserAgent)
	}
}

func TestNextUnexpectedStatus(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))

	_, err := c.Next(context.Background())
	if !errors.Is(err, ErrNextInvocation) {
		t.Fatalf("expected ErrNextInvocation, got %v", err)
	}
}

func TestNextTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := strings.TrimPrefix(srv.URL, "http://")
	srv.Close()

	c, err := New(addr)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if _, err := c.Next(context.Background()); !errors.Is(err, ErrNextInvocation) {
		t.Fatalf("expected ErrNextInvocation, got %v", err)
	}
}

func TestNextMissingMetadata(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(headerFunctionARN, "arn:fn")
		_, _ = w.Write([]byte("{}"))
	}))

	_, err := c.Next(context.Background())
	var missing *MissingMetadataError
	if !errors.As(err, &missing) {
		t.Fatalf("expected MissingMetadataError, got %v", err)
	}
}

func TestReportSuccess(t *testing.T) {
	var gotPath string
	var gotBody []byte
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotBody, _ = io.ReadAll(r.Body)
	}))

	err := c.ReportSuccess(context.Background(), "abc-123", []byte(`{"ok":true}`))
	if err != nil {
		t.Fatalf("ReportSuccess failed: %v", err)
	}
	if gotPath != "/2018-06-01/runtime/invocation/abc-123/response" {
		t.Fatalf("unexpected path: %s", gotPath)
	}
	if string(gotBody) != `{"ok":true}` {
		t.Fatalf("unexpected body: %q", gotBody)
	}
}

func TestReportSuccessUnexpectedStatus(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))

	err := c.ReportSuccess(context.Background(), "abc-123", nil)
	var failed *ReportFailedError
	if !errors.As(err, &failed) {
		t.Fatalf("expected ReportFailedError, got %v", err)
	}
	if failed.StatusCode != http.StatusInternalServerError {
		t.Fatalf("unexpected status in error: %d", failed.StatusCode)
	}
}

func TestReportError(t *testing.T) {
	var gotHeader http.Header
	var gotPath string
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotHeader = r.Header.Clone()
		w.WriteHeader(http.StatusAccepted)
	}))

	err := c.ReportError(context.Background(), InvocationError{
		RequestID:  "abc-123",
		Payload:    []byte(`{"errorMessage":"boom","errorType":"Runtime.HandlerError"}`),
		ErrorType:  "Runtime.HandlerError",
		ErrorCause: `{"exceptions":[]}`,
	})
	if err != nil {
		t.Fatalf("ReportError failed: %v", err)
	}
	if gotPath != "/2018-06-01/runtime/invocation/abc-123/error" {
		t.Fatalf("unexpected path: %s", gotPath)
	}
	if ct := gotHeader.Get("Content-Type"); ct != contentTypeJSON {
		t.Fatalf("unexpected content type: %q", ct)
	}
	if et := gotHeader.Get(headerErrorType); et != "Runtime.HandlerError" {
		t.Fatalf("unexpected error type header: %q", et)
	}
	if cause := gotHeader.Get(headerErrorCause); cause != `{"exceptions":[]}` {
		t.Fatalf("unexpected error cause header: %q", cause)
	}
}

func TestReportErrorWrongSuccessStatus(t *testing.T) {
	// 200 is a failure here: the error endpoint answers 202 on success.
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	err := c.ReportError(context.Background(), InvocationError{RequestID: "abc-123"})
	var failed *ReportFailedError
	if !errors.As(err, &failed) {
		t.Fatalf("expected ReportFailedError, got %v", err)
	}
	if failed.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status in error: %d", failed.StatusCode)
	}
}

func TestReportErrorCauseSizeBoundary(t *testing.T) {
	tests := []struct {
		name       string
		causeBytes int
		wantHeader bool
	}{
		{"one byte under the limit", maxErrorCauseBytes - 1, true},
		{"exactly at the limit", maxErrorCauseBytes, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotCause string
			var hadCause bool
			srv := httptest.NewUnstartedServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotCause = r.Header.Get(headerErrorCause)
				_, hadCause = r.Header[headerErrorCause]
				w.WriteHeader(http.StatusAccepted)
			}))
			// The cause header alone may be just under 1 MiB; lift the
			// server's header cap so the boundary case reaches the handler.
			srv.Config.MaxHeaderBytes = 4 * maxErrorCauseBytes
			srv.Start()
			t.Cleanup(srv.Close)

			c, err := New(strings.TrimPrefix(srv.URL, "http://"))
			if err != nil {
				t.Fatalf("New failed: %v", err)
			}

			cause := strings.Repeat("x", tt.causeBytes)
			if err := c.ReportError(context.Background(), InvocationError{
				RequestID:  "abc-123",
				ErrorCause: cause,
			}); err != nil {
				t.Fatalf("ReportError failed: %v", err)
			}
			if tt.wantHeader && gotCause != cause {
				t.Fatal("expected cause header to be sent verbatim")
			}
			if !tt.wantHeader && hadCause {
				t.Fatal("expected oversized cause header to be omitted")
			}
		})
	}
}

func TestReportInitError(t *testing.T) {
	var gotPath string
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusAccepted)
	}))

	if err := c.ReportInitError(context.Background(), []byte(`{"errorMessage":"init"}`), "Runtime.InitError"); err != nil {
		t.Fatalf("ReportInitError failed: %v", err)
	}
	if gotPath != "/2018-06-01/runtime/init/error" {
		t.Fatalf("unexpected path: %s", gotPath)
	}
}

func TestRestoreNext(t *testing.T) {
	var gotPath string
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
	}))

	if err := c.RestoreNext(context.Background()); err != nil {
		t.Fatalf("RestoreNext failed: %v", err)
	}
	if gotPath != "/2018-06-01/runtime/restore/next" {
		t.Fatalf("unexpected path: %s", gotPath)
	}
}

func TestRestoreNextUnexpectedStatus(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
	}))

	err := c.RestoreNext(context.Background())
	var failed *ReportFailedError
	if !errors.As(err, &failed) {
		t.Fatalf("expected ReportFailedError, got %v", err)
	}
}

func TestReportRestoreErrorReturnsStatus(t *testing.T) {
	// The restore-error report never raises on status: the caller inspects
	// the code so a failed report cannot crash the restore path.
	for _, status := range []int{http.StatusAccepted, http.StatusInternalServerError} {
		c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		}))

		got, err := c.ReportRestoreError(context.Background(), []byte(`{}`), "Runtime.RestoreError")
		if err != nil {
			t.Fatalf("ReportRestoreError failed: %v", err)
		}
		if got != status {
			t.Fatalf("expected status %d, got %d", status, got)
		}
	}
}

func TestPollThenReportSuccess(t *testing.T) {
	// End-to-end steady-state exchange against one mock endpoint.
	var reported []byte
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/2018-06-01/runtime/invocation/next":
			w.Header().Set(headerRequestID, "abc-123")
			w.Header().Set(headerFunctionARN, "arn:aws:lambda:us-east-1:123456789012:function:fn")
			w.Header().Set(headerDeadlineMS, "1700000000000")
			_, _ = w.Write([]byte(`{"k":"v"}`))
		case "/2018-06-01/runtime/invocation/abc-123/response":
			reported, _ = io.ReadAll(r.Body)
		default:
			t.Errorf("unexpected path: %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))

	req, err := c.Next(context.Background())
	if err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	if err := c.ReportSuccess(context.Background(), req.ID, []byte(`"done"`)); err != nil {
		t.Fatalf("ReportSuccess failed: %v", err)
	}
	if string(reported) != `"done"` {
		t.Fatalf("unexpected reported payload: %q", reported)
	}
}
