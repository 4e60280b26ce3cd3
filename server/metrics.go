package server

import "time"

// Registry kinds reported to Metrics.
const (
	KindTool             = "tool"
	KindResource         = "resource"
	KindResourceTemplate = "resource_template"
	KindPrompt           = "prompt"
	KindCompletion       = "completion"
)

// Completion outcomes reported to Metrics.
const (
	CompletionAnswered = "answered"
	CompletionSkipped  = "handler_error"
	CompletionEmpty    = "empty"
	CompletionNotFound = "not_found"
)

// Metrics receives registry and dispatch events. The metrics package
// provides a Prometheus implementation.
type Metrics interface {
	RegistrySize(kind string, size int)
	NotificationSent(method string, err error)
	CompletionServed(outcome string)
	ToolCalled(name string, err error, d time.Duration)
}

type nopMetrics struct{}

func (nopMetrics) RegistrySize(string, int)                {}
func (nopMetrics) NotificationSent(string, error)          {}
func (nopMetrics) CompletionServed(string)                 {}
func (nopMetrics) ToolCalled(string, error, time.Duration) {}
