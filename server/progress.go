package server

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/mcpforge/mcp-server/protocol"
	"github.com/mcpforge/mcp-server/transport"
)

// ProgressToken identifies the request a progress update belongs to.
type ProgressToken string

// ProgressReporter lets tool handlers report progress on long operations.
type ProgressReporter interface {
	// Report sends a progress update. Values must increase between calls;
	// a non-increasing value is bumped just past the previous one.
	Report(progress float64, total *float64) error
	ReportWithMessage(progress float64, total *float64, message string) error
	Token() ProgressToken
}

type progressReporter struct {
	token  ProgressToken
	sender transport.NotificationSender

	mu   sync.Mutex
	last float64
}

// NewProgressReporter returns a reporter that sends notifications/progress
// through sender. With an empty token it reports nothing.
func NewProgressReporter(token ProgressToken, sender transport.NotificationSender) ProgressReporter {
	return &progressReporter{token: token, sender: sender}
}

func (p *progressReporter) Token() ProgressToken { return p.token }

func (p *progressReporter) Report(progress float64, total *float64) error {
	return p.ReportWithMessage(progress, total, "")
}

func (p *progressReporter) ReportWithMessage(progress float64, total *float64, message string) error {
	if p.token == "" || p.sender == nil {
		return nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if progress <= p.last {
		progress = p.last + 0.1
	}
	p.last = progress

	return p.sender.SendNotification(protocol.MethodProgress, progressParams(p.token, progress, total, message))
}

func progressParams(token ProgressToken, progress float64, total *float64, message string) map[string]any {
	params := map[string]any{
		"progressToken": string(token),
		"progress":      progress,
	}
	if total != nil {
		params["total"] = *total
	}
	if message != "" {
		params["message"] = message
	}
	return params
}

type progressContextKey struct{}

// ContextWithProgress attaches a progress reporter to ctx.
func ContextWithProgress(ctx context.Context, reporter ProgressReporter) context.Context {
	return context.WithValue(ctx, progressContextKey{}, reporter)
}

// ProgressFromContext returns the reporter for the current tool call. It
// never returns nil; without a progress token the reporter is a no-op.
func ProgressFromContext(ctx context.Context) ProgressReporter {
	if reporter, ok := ctx.Value(progressContextKey{}).(ProgressReporter); ok {
		return reporter
	}
	return noopProgress{}
}

type noopProgress struct{}

func (noopProgress) Report(float64, *float64) error                    { return nil }
func (noopProgress) ReportWithMessage(float64, *float64, string) error { return nil }
func (noopProgress) Token() ProgressToken                              { return "" }

// ExtractProgressToken reads params._meta.progressToken. Numeric tokens are
// returned in their JSON text form.
func ExtractProgressToken(params json.RawMessage) ProgressToken {
	if len(params) == 0 {
		return ""
	}
	var meta struct {
		Meta struct {
			ProgressToken json.RawMessage `json:"progressToken"`
		} `json:"_meta"`
	}
	if err := json.Unmarshal(params, &meta); err != nil || len(meta.Meta.ProgressToken) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(meta.Meta.ProgressToken, &s); err == nil {
		return ProgressToken(s)
	}
	return ProgressToken(meta.Meta.ProgressToken)
}
