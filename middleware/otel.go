package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/mcpforge/mcp-server/auth"
	"github.com/mcpforge/mcp-server/protocol"
)

const instrumentationName = "github.com/mcpforge/mcp-server/middleware"

// OTelOption configures OTel.
type OTelOption func(*otelConfig)

type otelConfig struct {
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
	serviceName    string
	skipMethods    map[string]bool
}

// WithTracerProvider overrides the global tracer provider.
func WithTracerProvider(tp trace.TracerProvider) OTelOption {
	return func(c *otelConfig) { c.tracerProvider = tp }
}

// WithMeterProvider overrides the global meter provider.
func WithMeterProvider(mp metric.MeterProvider) OTelOption {
	return func(c *otelConfig) { c.meterProvider = mp }
}

// WithOTelServiceName sets the service.name attribute. Defaults to "mcp-server".
func WithOTelServiceName(name string) OTelOption {
	return func(c *otelConfig) { c.serviceName = name }
}

// WithOTelSkipMethods leaves methods untraced, typically ping.
func WithOTelSkipMethods(methods ...string) OTelOption {
	return func(c *otelConfig) {
		for _, m := range methods {
			c.skipMethods[m] = true
		}
	}
}

// OTel starts a server span per request and records request count,
// latency and error count. tools/call, prompts/get and resources/read spans
// carry the target name.
func OTel(opts ...OTelOption) Middleware {
	cfg := &otelConfig{
		tracerProvider: otel.GetTracerProvider(),
		meterProvider:  otel.GetMeterProvider(),
		serviceName:    "mcp-server",
		skipMethods:    make(map[string]bool),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	tracer := cfg.tracerProvider.Tracer(instrumentationName)
	meter := cfg.meterProvider.Meter(instrumentationName)

	requests, _ := meter.Int64Counter("mcp.server.requests",
		metric.WithDescription("MCP requests handled"),
		metric.WithUnit("{request}"))
	latency, _ := meter.Float64Histogram("mcp.server.request.duration",
		metric.WithDescription("MCP request latency"),
		metric.WithUnit("ms"))
	failures, _ := meter.Int64Counter("mcp.server.errors",
		metric.WithDescription("MCP requests that failed"),
		metric.WithUnit("{error}"))

	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
			if cfg.skipMethods[req.Method] {
				return next(ctx, req)
			}

			base := []attribute.KeyValue{
				attribute.String("mcp.method", req.Method),
				attribute.String("service.name", cfg.serviceName),
			}
			spanAttrs := append([]attribute.KeyValue(nil), base...)
			if target := targetName(req); target != "" {
				spanAttrs = append(spanAttrs, attribute.String("mcp.target", target))
			}
			if tr := protocol.GetRequestMeta(ctx, protocol.MetaTransport); tr != "" {
				spanAttrs = append(spanAttrs, attribute.String("mcp.transport", tr))
			}
			if id := RequestIDFromContext(ctx); id != "" {
				spanAttrs = append(spanAttrs, attribute.String("mcp.request_id", id))
			}
			if u := auth.UserFromContext(ctx); u != nil {
				spanAttrs = append(spanAttrs, attribute.String("enduser.id", u.ID))
			}

			ctx, span := tracer.Start(ctx, "mcp."+req.Method,
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(spanAttrs...))
			defer span.End()

			start := time.Now()
			requests.Add(ctx, 1, metric.WithAttributes(base...))
			resp, err := next(ctx, req)
			latency.Record(ctx, float64(time.Since(start).Milliseconds()), metric.WithAttributes(base...))

			var perr *protocol.Error
			switch {
			case err != nil:
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
				errAttrs := base
				if errors.As(err, &perr) {
					span.SetAttributes(attribute.Int("mcp.error_code", perr.Code))
					errAttrs = append(errAttrs, attribute.Int("mcp.error_code", perr.Code))
				}
				failures.Add(ctx, 1, metric.WithAttributes(errAttrs...))
			case resp != nil && resp.Error != nil:
				span.SetStatus(codes.Error, resp.Error.Message)
				span.SetAttributes(attribute.Int("mcp.error_code", resp.Error.Code))
				failures.Add(ctx, 1, metric.WithAttributes(
					append(base, attribute.Int("mcp.error_code", resp.Error.Code))...))
			default:
				span.SetStatus(codes.Ok, "")
			}
			return resp, err
		}
	}
}

// targetName extracts the tool, prompt or resource a request addresses.
func targetName(req *protocol.Request) string {
	var p struct {
		Name string `json:"name"`
		URI  string `json:"uri"`
	}
	switch req.Method {
	case protocol.MethodToolsCall, protocol.MethodPromptsGet, protocol.MethodResourcesRead:
		if json.Unmarshal(req.Params, &p) != nil {
			return ""
		}
	}
	if p.Name != "" {
		return p.Name
	}
	return p.URI
}

// AddSpanEvent records an event on the request span, if any.
func AddSpanEvent(ctx context.Context, name string, attrs ...attribute.KeyValue) {
	trace.SpanFromContext(ctx).AddEvent(name, trace.WithAttributes(attrs...))
}
