// Package runtimetest provides an in-process control endpoint for tests: it
// hands out queued invocations over the runtime API and records everything
// the client reports back.
package runtimetest

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Invocation is one unit of work the server will hand out.
type Invocation struct {
	RequestID     string // generated when empty
	FunctionARN   string
	DeadlineMS    int64
	TraceID       string
	ClientContext string
	Payload       []byte
}

// Report is one response or error the client posted back.
type Report struct {
	RequestID  string
	Kind       string // "response", "error", "init-error", "restore-error"
	Body       []byte
	ErrorType  string
	ErrorCause string
}

// Server is a scripted control endpoint.
type Server struct {
	srv *httptest.Server

	mu      sync.Mutex
	queue   []Invocation
	reports []Report

	// ResponseStatus overrides the status code for report operations when
	// non-zero, to script endpoint misbehavior.
	ResponseStatus int
}

// NewServer starts a control endpoint with the given invocations queued.
// When the queue drains, next-invocation polls answer 500 so test loops
// terminate instead of hanging.
func NewServer(invocations ...Invocation) *Server {
	s := &Server{queue: invocations}
	s.srv = httptest.NewServer(http.HandlerFunc(s.handle))
	return s
}

// Addr returns the host:port the server listens on.
func (s *Server) Addr() string {
	return strings.TrimPrefix(s.srv.URL, "http://")
}

// Close shuts the server down.
func (s *Server) Close() {
	s.srv.Close()
}

// Enqueue adds an invocation to the queue.
func (s *Server) Enqueue(inv Invocation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue = append(s.queue, inv)
}

// Reports returns a copy of everything reported so far.
func (s *Server) Reports() []Report {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Report(nil), s.reports...)
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/2018-06-01/runtime/")
	switch {
	case r.Method == http.MethodGet && path == "invocation/next":
		s.handleNext(w)
	case r.Method == http.MethodGet && path == "restore/next":
		w.WriteHeader(http.StatusOK)
	case r.Method == http.MethodPost && path == "init/error":
		s.recordReport(w, r, "", "init-error", http.StatusAccepted)
	case r.Method == http.MethodPost && path == "restore/error":
		s.recordReport(w, r, "", "restore-error", http.StatusAccepted)
	case r.Method == http.MethodPost && strings.HasSuffix(path, "/response"):
		id := strings.TrimSuffix(strings.TrimPrefix(path, "invocation/"), "/response")
		s.recordReport(w, r, id, "response", http.StatusOK)
	case r.Method == http.MethodPost && strings.HasSuffix(path, "/error"):
		id := strings.TrimSuffix(strings.TrimPrefix(path, "invocation/"), "/error")
		s.recordReport(w, r, id, "error", http.StatusAccepted)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (s *Server) handleNext(w http.ResponseWriter) {
	s.mu.Lock()
	if len(s.queue) == 0 {
		s.mu.Unlock()
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	inv := s.queue[0]
	s.queue = s.queue[1:]
	s.mu.Unlock()

	if inv.RequestID == "" {
		inv.RequestID = uuid.NewString()
	}
	if inv.FunctionARN == "" {
		inv.FunctionARN = "arn:aws:lambda:us-east-1:123456789012:function:test"
	}

	h := w.Header()
	h.Set("Lambda-Runtime-Aws-Request-Id", inv.RequestID)
	h.Set("Lambda-Runtime-Invoked-Function-Arn", inv.FunctionARN)
	if inv.DeadlineMS != 0 {
		h.Set("Lambda-Runtime-Deadline-Ms", strconv.FormatInt(inv.DeadlineMS, 10))
	}
	if inv.TraceID != "" {
		h.Set("Lambda-Runtime-Trace-Id", inv.TraceID)
	}
	if inv.ClientContext != "" {
		h.Set("Lambda-Runtime-Client-Context", inv.ClientContext)
	}
	_, _ = w.Write(inv.Payload)
}

func (s *Server) recordReport(w http.ResponseWriter, r *http.Request, requestID, kind string, okStatus int) {
	body, _ := io.ReadAll(r.Body)

	s.mu.Lock()
	s.reports = append(s.reports, Report{
		RequestID:  requestID,
		Kind:       kind,
		Body:       body,
		ErrorType:  r.Header.Get("Lambda-Runtime-Function-Error-Type"),
		ErrorCause: r.Header.Get("Lambda-Runtime-Function-XRay-Error-Cause"),
	})
	status := s.ResponseStatus
	s.mu.Unlock()

	if status == 0 {
		status = okStatus
	}
	w.WriteHeader(status)
}
