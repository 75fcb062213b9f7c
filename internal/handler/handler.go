// Package handler runs the user function as a child process and exchanges
// invocation payloads with it. Two modes exist: a process per invocation
// (oneshot) and a long-lived process speaking length-prefixed frames over
// its stdin/stdout (persistent).
package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/oriys/photon/internal/runtimeapi"
	"github.com/oriys/photon/internal/spec"
)

// Handler executes one invocation payload and returns the response payload.
type Handler interface {
	Invoke(ctx context.Context, inv *runtimeapi.InvocationRequest) ([]byte, error)
	Close() error
}

// InvokeError is a handler failure with a runtime API error type attached.
type InvokeError struct {
	Type    string
	Message string
}

func (e *InvokeError) Error() string {
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Error types reported to the control endpoint.
const (
	ErrTypeHandler = "Runtime.HandlerError"
	ErrTypeExit    = "Runtime.ExitError"
	ErrTypeTimeout = "Runtime.TimeoutError"
	ErrTypeInit    = "Runtime.InitError"
)

// ErrorBody serializes err into the runtime API error body contract.
func ErrorBody(errType, message string) []byte {
	body, err := json.Marshal(struct {
		ErrorMessage string `json:"errorMessage"`
		ErrorType    string `json:"errorType"`
	}{
		ErrorMessage: message,
		ErrorType:    errType,
	})
	if err != nil {
		// Both fields are plain strings; Marshal cannot fail here.
		return []byte(`{"errorMessage":"unknown error"}`)
	}
	return body
}

// New constructs the handler described by the manifest.
func New(m *spec.Manifest) (Handler, error) {
	switch m.Mode {
	case spec.ModePersistent:
		return newPersistent(m)
	case spec.ModeOneshot, "":
		return &oneshot{manifest: m}, nil
	default:
		return nil, fmt.Errorf("unknown handler mode %q", m.Mode)
	}
}

// buildEnv merges the manifest environment over the inherited one and adds
// the per-invocation metadata the handler contract exposes.
func buildEnv(m *spec.Manifest, inv *runtimeapi.InvocationRequest) []string {
	env := os.Environ()
	for k, v := range m.Env {
		env = append(env, k+"="+v)
	}
	if inv == nil {
		return env
	}
	env = append(env,
		"PHOTON_REQUEST_ID="+inv.ID,
		"PHOTON_FUNCTION_ARN="+inv.InvokedFunctionARN,
		"PHOTON_DEADLINE_MS="+strconv.FormatInt(inv.DeadlineMS, 10),
	)
	if inv.TraceID != "" {
		env = append(env, "_X_AMZN_TRACE_ID="+inv.TraceID)
	}
	if inv.ClientContext != "" {
		env = append(env, "PHOTON_CLIENT_CONTEXT="+inv.ClientContext)
	}
	if inv.CognitoIdentity != "" {
		env = append(env, "PHOTON_COGNITO_IDENTITY="+inv.CognitoIdentity)
	}
	return env
}
