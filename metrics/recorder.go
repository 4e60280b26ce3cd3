// Package metrics exports server activity as Prometheus metrics.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mcpforge/mcp-server/middleware"
	"github.com/mcpforge/mcp-server/protocol"
)

// Config configures a Recorder.
type Config struct {
	// Namespace prefixes every metric name. Defaults to "mcp".
	Namespace string
	// Registry receives the collectors. Defaults to a fresh registry that
	// also carries the Go runtime and process collectors.
	Registry *prometheus.Registry
	// Buckets are the latency histogram buckets in seconds.
	Buckets     []float64
	ConstLabels prometheus.Labels
}

// Recorder implements server.Metrics and provides request middleware.
type Recorder struct {
	registry *prometheus.Registry

	registrySize  *prometheus.GaugeVec
	notifications *prometheus.CounterVec
	completions   *prometheus.CounterVec
	toolCalls     *prometheus.CounterVec
	toolDuration  *prometheus.HistogramVec
	requests      *prometheus.CounterVec
	reqDuration   *prometheus.HistogramVec
}

// New creates a Recorder and registers its collectors.
func New(cfg Config) (*Recorder, error) {
	if cfg.Namespace == "" {
		cfg.Namespace = "mcp"
	}
	if cfg.Buckets == nil {
		cfg.Buckets = prometheus.DefBuckets
	}
	if cfg.Registry == nil {
		cfg.Registry = prometheus.NewRegistry()
		cfg.Registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	r := &Recorder{
		registry: cfg.Registry,
		registrySize: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace:   cfg.Namespace,
			Name:        "registry_entries",
			Help:        "Registered capabilities by kind.",
			ConstLabels: cfg.ConstLabels,
		}, []string{"kind"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Name:        "notifications_total",
			Help:        "Notifications delivered to transports, by method and status.",
			ConstLabels: cfg.ConstLabels,
		}, []string{"method", "status"}),
		completions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Name:        "completions_total",
			Help:        "Completion lookups by outcome.",
			ConstLabels: cfg.ConstLabels,
		}, []string{"outcome"}),
		toolCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Name:        "tool_calls_total",
			Help:        "Tool invocations by tool and status.",
			ConstLabels: cfg.ConstLabels,
		}, []string{"tool", "status"}),
		toolDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   cfg.Namespace,
			Name:        "tool_call_duration_seconds",
			Help:        "Tool invocation latency.",
			Buckets:     cfg.Buckets,
			ConstLabels: cfg.ConstLabels,
		}, []string{"tool"}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Name:        "requests_total",
			Help:        "JSON-RPC requests by method and result code.",
			ConstLabels: cfg.ConstLabels,
		}, []string{"method", "code"}),
		reqDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   cfg.Namespace,
			Name:        "request_duration_seconds",
			Help:        "JSON-RPC request latency.",
			Buckets:     cfg.Buckets,
			ConstLabels: cfg.ConstLabels,
		}, []string{"method"}),
	}

	for _, c := range []prometheus.Collector{
		r.registrySize, r.notifications, r.completions,
		r.toolCalls, r.toolDuration, r.requests, r.reqDuration,
	} {
		if err := r.registry.Register(c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Registry returns the registry the recorder writes to.
func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

func (r *Recorder) RegistrySize(kind string, size int) {
	r.registrySize.WithLabelValues(kind).Set(float64(size))
}

func (r *Recorder) NotificationSent(method string, err error) {
	r.notifications.WithLabelValues(method, status(err)).Inc()
}

func (r *Recorder) CompletionServed(outcome string) {
	r.completions.WithLabelValues(outcome).Inc()
}

func (r *Recorder) ToolCalled(name string, err error, d time.Duration) {
	r.toolCalls.WithLabelValues(name, status(err)).Inc()
	r.toolDuration.WithLabelValues(name).Observe(d.Seconds())
}

// Middleware counts every request by method and JSON-RPC result code
// ("0" on success).
func (r *Recorder) Middleware() middleware.Middleware {
	return func(next middleware.HandlerFunc) middleware.HandlerFunc {
		return func(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
			start := time.Now()
			resp, err := next(ctx, req)
			r.reqDuration.WithLabelValues(req.Method).Observe(time.Since(start).Seconds())
			r.requests.WithLabelValues(req.Method, resultCode(resp, err)).Inc()
			return resp, err
		}
	}
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func resultCode(resp *protocol.Response, err error) string {
	var perr *protocol.Error
	switch {
	case errors.As(err, &perr):
		return strconv.Itoa(perr.Code)
	case err != nil:
		return strconv.Itoa(protocol.CodeInternalError)
	case resp != nil && resp.Error != nil:
		return strconv.Itoa(resp.Error.Code)
	}
	return "0"
}
