package transport

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/mcpforge/mcp-server/protocol"
)

// maxLineSize bounds a single newline-delimited message.
const maxLineSize = 4 << 20

// Stdio implements MCP transport over newline-delimited JSON on stdin/stdout.
type Stdio struct {
	in     io.Reader
	out    io.Writer
	logger *slog.Logger

	mu  sync.Mutex
	run runner
}

// StdioOption configures a Stdio transport.
type StdioOption func(*Stdio)

// WithStdin sets a custom stdin reader.
func WithStdin(r io.Reader) StdioOption {
	return func(s *Stdio) { s.in = r }
}

// WithStdout sets a custom stdout writer.
func WithStdout(w io.Writer) StdioOption {
	return func(s *Stdio) { s.out = w }
}

// WithStdioLogger sets the logger used for write failures.
func WithStdioLogger(l *slog.Logger) StdioOption {
	return func(s *Stdio) { s.logger = l }
}

// NewStdio creates a new stdio transport.
func NewStdio(opts ...StdioOption) *Stdio {
	s := &Stdio{
		in:     os.Stdin,
		out:    os.Stdout,
		logger: discardLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Addr returns the transport address.
func (s *Stdio) Addr() string {
	return "stdio"
}

// Start serves stdin in the background until Stop is called or stdin closes.
func (s *Stdio) Start(ctx context.Context, handler Handler) error {
	return s.run.start(ctx, func(ctx context.Context) error {
		return s.Serve(ctx, handler)
	})
}

// Stop stops reading stdin.
func (s *Stdio) Stop(ctx context.Context) error {
	return s.run.stop(ctx)
}

// Done is closed when a started transport stops serving, for example on EOF.
func (s *Stdio) Done() <-chan struct{} {
	return s.run.wait()
}

// Serve processes requests from stdin, blocking until ctx is canceled or
// stdin reaches EOF.
func (s *Stdio) Serve(ctx context.Context, handler Handler) error {
	scanner := bufio.NewScanner(s.in)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	lines := make(chan []byte)
	scanErr := make(chan error, 1)

	go func() {
		defer close(lines)
		for scanner.Scan() {
			line := append([]byte(nil), scanner.Bytes()...)
			select {
			case lines <- line:
			case <-ctx.Done():
				return
			}
		}
		if err := scanner.Err(); err != nil {
			scanErr <- err
		}
	}()

	ctx = ContextWithNotificationSender(ctx, s)
	ctx = protocol.SetRequestMeta(ctx, protocol.MetaTransport, "stdio")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-scanErr:
			return err
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-scanErr:
					return err
				default:
					return nil
				}
			}
			if len(line) == 0 {
				continue
			}
			if resp := dispatchRaw(ctx, handler, line); resp != nil {
				s.write(resp)
			}
		}
	}
}

// SendNotification writes a JSON-RPC notification to stdout.
func (s *Stdio) SendNotification(method string, params any) error {
	data, err := marshalNotification(method, params)
	if err != nil {
		return err
	}
	return s.writeLine(data)
}

func (s *Stdio) write(resp *protocol.Response) {
	data, err := json.Marshal(resp)
	if err != nil {
		s.logger.Warn("stdio: encode response", slog.Any("error", err))
		return
	}
	if err := s.writeLine(data); err != nil {
		s.logger.Warn("stdio: write response", slog.Any("error", err))
	}
}

func (s *Stdio) writeLine(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.out.Write(append(data, '\n')); err != nil {
		return err
	}
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
