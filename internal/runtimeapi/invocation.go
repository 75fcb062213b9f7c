package runtimeapi

import (
	"net/http"
	"strconv"
)

// Response headers set by the control endpoint on a next-invocation reply.
const (
	headerRequestID       = "Lambda-Runtime-Aws-Request-Id"
	headerFunctionARN     = "Lambda-Runtime-Invoked-Function-Arn"
	headerDeadlineMS      = "Lambda-Runtime-Deadline-Ms"
	headerTraceID         = "Lambda-Runtime-Trace-Id"
	headerClientContext   = "Lambda-Runtime-Client-Context"
	headerCognitoIdentity = "Lambda-Runtime-Cognito-Identity"
)

// Request headers set by the client on error reports.
const (
	headerErrorType  = "Lambda-Runtime-Function-Error-Type"
	headerErrorCause = "Lambda-Runtime-Function-XRay-Error-Cause"
)

// maxErrorCauseBytes is the largest error cause the control endpoint accepts
// as a header (1 MiB). Larger causes are dropped, never truncated.
const maxErrorCauseBytes = 1024 * 1024

// InvocationRequest is one unit of work handed out by the control endpoint.
// ID and InvokedFunctionARN are always non-empty; the remaining metadata
// fields are optional and zero-valued when the endpoint omitted them.
type InvocationRequest struct {
	ID                 string
	InvokedFunctionARN string
	DeadlineMS         int64
	TraceID            string
	ClientContext      string
	CognitoIdentity    string
	Content            []byte
}

// InvocationError is a structured failure report for one invocation.
// ErrorCause carries an X-Ray cause document; it is only transmitted when it
// fits in a header (see maxErrorCauseBytes).
type InvocationError struct {
	RequestID  string
	Payload    []byte
	ErrorType  string
	ErrorCause string
}

// extractInvocation maps a next-invocation response onto an
// InvocationRequest. All headers are scanned before the required-field check
// so a later occurrence of a required header still satisfies the contract;
// within http.Header value lists the last value wins, matching the
// scan-in-order semantics of the wire protocol.
func extractInvocation(header http.Header, body []byte) (*InvocationRequest, error) {
	req := &InvocationRequest{Content: body}

	for name, values := range header {
		if len(values) == 0 {
			continue
		}
		v := values[len(values)-1]
		switch http.CanonicalHeaderKey(name) {
		case headerRequestID:
			req.ID = v
		case headerFunctionARN:
			req.InvokedFunctionARN = v
		case headerDeadlineMS:
			// Degrades to 0 on parse failure; the deadline is advisory.
			if ms, err := strconv.ParseInt(v, 10, 64); err == nil {
				req.DeadlineMS = ms
			}
		case headerTraceID:
			req.TraceID = v
		case headerClientContext:
			req.ClientContext = v
		case headerCognitoIdentity:
			req.CognitoIdentity = v
		}
	}

	if req.ID == "" {
		return nil, &MissingMetadataError{Field: headerRequestID}
	}
	if req.InvokedFunctionARN == "" {
		return nil, &MissingMetadataError{Field: headerFunctionARN}
	}
	return req, nil
}
