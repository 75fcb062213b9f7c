package observability

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel/trace"
)

// ContextWithTraceHeader parses an X-Ray style trace header
// ("Root=1-5759e988-bd862e3fe1be46a994272793;Parent=53995c3f42cd8ad8;Sampled=1")
// and attaches the result as a remote span context, so invocation spans join
// the propagated trace. A missing or malformed header leaves ctx unchanged.
func ContextWithTraceHeader(ctx context.Context, header string) context.Context {
	sc, ok := parseTraceHeader(header)
	if !ok {
		return ctx
	}
	return trace.ContextWithRemoteSpanContext(ctx, sc)
}

func parseTraceHeader(header string) (trace.SpanContext, bool) {
	var root, parent string
	sampled := false

	for _, part := range strings.Split(header, ";") {
		key, value, found := strings.Cut(strings.TrimSpace(part), "=")
		if !found {
			continue
		}
		switch key {
		case "Root":
			root = value
		case "Parent":
			parent = value
		case "Sampled":
			sampled = value == "1"
		}
	}

	// Root format: version-epochhex-24hexdigits. Trace id is the epoch and
	// random parts concatenated (32 hex digits).
	segments := strings.Split(root, "-")
	if len(segments) != 3 || segments[0] != "1" {
		return trace.SpanContext{}, false
	}
	traceID, err := trace.TraceIDFromHex(segments[1] + segments[2])
	if err != nil {
		return trace.SpanContext{}, false
	}

	cfg := trace.SpanContextConfig{
		TraceID: traceID,
		Remote:  true,
	}
	if sampled {
		cfg.TraceFlags = trace.FlagsSampled
	}
	if parent != "" {
		spanID, err := trace.SpanIDFromHex(parent)
		if err != nil {
			return trace.SpanContext{}, false
		}
		cfg.SpanID = spanID
	}

	sc := trace.NewSpanContext(cfg)
	if !sc.TraceID().IsValid() {
		return trace.SpanContext{}, false
	}
	return sc, true
}
