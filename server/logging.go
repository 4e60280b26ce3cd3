package server

import (
	"fmt"
	"log/slog"
	"strings"
)

// LogLevel is an MCP logging level. Levels follow syslog severities.
type LogLevel string

const (
	LogLevelDebug     LogLevel = "debug"
	LogLevelInfo      LogLevel = "info"
	LogLevelNotice    LogLevel = "notice"
	LogLevelWarning   LogLevel = "warning"
	LogLevelError     LogLevel = "error"
	LogLevelCritical  LogLevel = "critical"
	LogLevelAlert     LogLevel = "alert"
	LogLevelEmergency LogLevel = "emergency"
)

var logLevelOrder = []LogLevel{
	LogLevelDebug,
	LogLevelInfo,
	LogLevelNotice,
	LogLevelWarning,
	LogLevelError,
	LogLevelCritical,
	LogLevelAlert,
	LogLevelEmergency,
}

// LoggingMessage is the payload of notifications/message.
type LoggingMessage struct {
	Level  LogLevel `json:"level"`
	Logger string   `json:"logger,omitempty"`
	Data   any      `json:"data"`
}

// SetLevelRequest is the payload of logging/setLevel.
type SetLevelRequest struct {
	Level LogLevel `json:"level"`
}

func (l LogLevel) priority() int {
	for i, level := range logLevelOrder {
		if level == l {
			return i
		}
	}
	return 0
}

// ParseLogLevel parses a level name, case-insensitively.
func ParseLogLevel(s string) (LogLevel, error) {
	l := LogLevel(strings.ToLower(strings.TrimSpace(s)))
	for _, level := range logLevelOrder {
		if level == l {
			return l, nil
		}
	}
	return "", fmt.Errorf("unknown log level %q", s)
}

// SlogLevel maps the level onto the closest slog level.
func (l LogLevel) SlogLevel() slog.Level {
	switch {
	case l.priority() >= LogLevelError.priority():
		return slog.LevelError
	case l.priority() >= LogLevelWarning.priority():
		return slog.LevelWarn
	case l == LogLevelDebug:
		return slog.LevelDebug
	default:
		return slog.LevelInfo
	}
}

// ShouldLog reports whether a message at messageLevel passes minLevel.
func ShouldLog(messageLevel, minLevel LogLevel) bool {
	return messageLevel.priority() >= minLevel.priority()
}

// LogLevel returns the minimum level of log notifications sent to clients.
func (s *Server) LogLevel() LogLevel {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.logLevel
}

// SetLogLevel sets the minimum level of log notifications sent to clients.
func (s *Server) SetLogLevel(level LogLevel) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logLevel = level
}
