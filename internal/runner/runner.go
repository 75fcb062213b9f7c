// Package runner owns the steady-state invocation loop: poll the control
// endpoint for the next invocation, hand the payload to the handler, and
// report the result or a structured error back. Exactly one invocation is
// in flight at a time; retry policy for a failed poll lives here, never in
// the protocol client.
package runner

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/oriys/photon/internal/handler"
	"github.com/oriys/photon/internal/logging"
	"github.com/oriys/photon/internal/metrics"
	"github.com/oriys/photon/internal/observability"
	"github.com/oriys/photon/internal/runtimeapi"
)

const defaultPollBackoff = 100 * time.Millisecond

// Runner drives the invocation loop.
type Runner struct {
	client  *runtimeapi.Client
	handler handler.Handler
	logger  *slog.Logger

	// fallbackTimeout bounds an invocation when the control endpoint sends
	// no deadline. 0 means unbounded.
	fallbackTimeout time.Duration

	// pollBackoff is the pause after a failed poll before re-polling.
	pollBackoff time.Duration
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) { r.logger = logger }
}

// WithFallbackTimeout bounds invocations that carry no deadline.
func WithFallbackTimeout(d time.Duration) Option {
	return func(r *Runner) { r.fallbackTimeout = d }
}

// WithPollBackoff sets the pause after a failed poll.
func WithPollBackoff(d time.Duration) Option {
	return func(r *Runner) { r.pollBackoff = d }
}

// New creates a Runner.
func New(client *runtimeapi.Client, h handler.Handler, opts ...Option) *Runner {
	r := &Runner{
		client:      client,
		handler:     h,
		logger:      logging.Op(),
		pollBackoff: defaultPollBackoff,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run polls and processes invocations until ctx is canceled. A failed poll
// is logged and retried after a short backoff; everything else about an
// invocation is reported to the control endpoint, never swallowed locally.
func (r *Runner) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}

		pollStart := time.Now()
		inv, err := r.client.Next(ctx)
		metrics.RecordPoll(time.Since(pollStart))
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			r.logger.Error("next invocation poll failed", "err", err)
			metrics.RecordProtocolError("next")
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(r.pollBackoff):
			}
			continue
		}

		r.process(ctx, inv)
	}
}

// RunOnce polls for and processes exactly one invocation, mainly for tests
// and drain scenarios.
func (r *Runner) RunOnce(ctx context.Context) error {
	inv, err := r.client.Next(ctx)
	if err != nil {
		return err
	}
	r.process(ctx, inv)
	return nil
}

func (r *Runner) process(ctx context.Context, inv *runtimeapi.InvocationRequest) {
	metrics.SetProcessing(true)
	defer metrics.SetProcessing(false)

	logger := logging.WithInvocation(inv.ID)

	invCtx, cancel := r.invocationContext(ctx, inv)
	defer cancel()

	invCtx = observability.ContextWithTraceHeader(invCtx, inv.TraceID)
	invCtx, span := observability.StartInvocationSpan(invCtx, "invocation",
		observability.AttrRequestID.String(inv.ID),
		observability.AttrFunctionARN.String(inv.InvokedFunctionARN),
		observability.AttrDeadlineMS.Int64(inv.DeadlineMS),
	)
	defer span.End()

	handlerStart := time.Now()
	output, err := r.handler.Invoke(invCtx, inv)
	handlerMs := time.Since(handlerStart).Milliseconds()

	if err != nil {
		metrics.RecordInvocation(false, handlerMs)
		observability.SetSpanError(span, err)
		r.reportError(ctx, inv, err, logger)
		return
	}

	metrics.RecordInvocation(true, handlerMs)
	observability.SetSpanOK(span)

	reportStart := time.Now()
	if err := r.client.ReportSuccess(ctx, inv.ID, output); err != nil {
		logger.Error("report invocation response failed", "err", err)
		metrics.RecordProtocolError("response")
		return
	}
	metrics.RecordReport("response", time.Since(reportStart))
	logger.Debug("invocation completed", "handler_ms", handlerMs)
}

func (r *Runner) reportError(ctx context.Context, inv *runtimeapi.InvocationRequest, invokeErr error, logger *slog.Logger) {
	errType := handler.ErrTypeHandler
	var herr *handler.InvokeError
	if errors.As(invokeErr, &herr) {
		errType = herr.Type
	}
	logger.Warn("invocation failed", "error_type", errType, "err", invokeErr)

	reportStart := time.Now()
	err := r.client.ReportError(ctx, runtimeapi.InvocationError{
		RequestID: inv.ID,
		Payload:   handler.ErrorBody(errType, invokeErr.Error()),
		ErrorType: errType,
	})
	if err != nil {
		logger.Error("report invocation error failed", "err", err)
		metrics.RecordProtocolError("error")
		return
	}
	metrics.RecordReport("error", time.Since(reportStart))
}

// invocationContext derives the per-invocation context: the control
// endpoint's deadline when present, the fallback timeout otherwise.
func (r *Runner) invocationContext(ctx context.Context, inv *runtimeapi.InvocationRequest) (context.Context, context.CancelFunc) {
	if inv.DeadlineMS > 0 {
		return context.WithDeadline(ctx, time.UnixMilli(inv.DeadlineMS))
	}
	if r.fallbackTimeout > 0 {
		return context.WithTimeout(ctx, r.fallbackTimeout)
	}
	return context.WithCancel(ctx)
}
