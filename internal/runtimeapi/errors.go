package runtimeapi

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidEndpoint indicates the control endpoint address handed to
	// New could not be split into a non-empty host and a numeric port.
	ErrInvalidEndpoint = errors.New("invalid runtime API endpoint")

	// ErrNextInvocation wraps any failure of the next-invocation poll:
	// transport errors, timeouts, and unexpected status codes. The client
	// never retries; the polling loop owns retry policy.
	ErrNextInvocation = errors.New("next invocation failed")
)

// MissingMetadataError is returned when a next-invocation response lacks a
// required metadata header. It is raised only after all response headers
// have been scanned, so header ordering never matters.
type MissingMetadataError struct {
	Field string
}

func (e *MissingMetadataError) Error() string {
	return fmt.Sprintf("invocation metadata missing required field %s", e.Field)
}

// ReportFailedError is returned when the control endpoint answers a report
// operation with a status code other than the operation's success status.
type ReportFailedError struct {
	Endpoint   string
	StatusCode int
}

func (e *ReportFailedError) Error() string {
	return fmt.Sprintf("report to %s failed with status %d", e.Endpoint, e.StatusCode)
}
