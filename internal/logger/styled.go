// internal/logger/styled.go
package logger

import (
	"fmt"
	"log/slog"

	"github.com/pterm/pterm"

	"github.com/thushan/forwardproxy/theme"
)

// StyledLogger wraps slog.Logger with theme-aware formatting methods for
// the handful of recurring log shapes a forward proxy produces: messages
// tied to a connection, messages tied to an origin host, and cache
// hit/miss/eviction counters.
type StyledLogger struct {
	logger *slog.Logger
	theme  *theme.Theme
}

// NewStyledLogger creates a new styled logger with the given theme
func NewStyledLogger(logger *slog.Logger, theme *theme.Theme) *StyledLogger {
	return &StyledLogger{
		logger: logger,
		theme:  theme,
	}
}

func (sl *StyledLogger) Debug(msg string, args ...any) {
	sl.logger.Debug(msg, args...)
}

func (sl *StyledLogger) Info(msg string, args ...any) {
	sl.logger.Info(msg, args...)
}

func (sl *StyledLogger) Warn(msg string, args ...any) {
	sl.logger.Warn(msg, args...)
}

func (sl *StyledLogger) Error(msg string, args ...any) {
	sl.logger.Error(msg, args...)
}

// InfoWithConn logs an info message tagged with the short connection ID.
func (sl *StyledLogger) InfoWithConn(msg string, connID string, args ...any) {
	styledMsg := fmt.Sprintf("%s %s", msg, pterm.Style{sl.theme.Conn}.Sprint("["+connID+"]"))
	sl.logger.Info(styledMsg, args...)
}

func (sl *StyledLogger) WarnWithConn(msg string, connID string, args ...any) {
	styledMsg := fmt.Sprintf("%s %s", msg, pterm.Style{sl.theme.Conn}.Sprint("["+connID+"]"))
	sl.logger.Warn(styledMsg, args...)
}

func (sl *StyledLogger) ErrorWithConn(msg string, connID string, args ...any) {
	styledMsg := fmt.Sprintf("%s %s", msg, pterm.Style{sl.theme.Conn}.Sprint("["+connID+"]"))
	sl.logger.Error(styledMsg, args...)
}

func (sl *StyledLogger) InfoWithHost(msg string, host string, args ...any) {
	styledMsg := fmt.Sprintf("%s %s", msg, pterm.Style{sl.theme.Host}.Sprint(host))
	sl.logger.Info(styledMsg, args...)
}

func (sl *StyledLogger) WarnWithHost(msg string, host string, args ...any) {
	styledMsg := fmt.Sprintf("%s %s", msg, pterm.Style{sl.theme.Host}.Sprint(host))
	sl.logger.Warn(styledMsg, args...)
}

// InfoCacheHit logs a cache hit served without contacting the origin.
func (sl *StyledLogger) InfoCacheHit(host string, path string, bytes int) {
	styledMsg := fmt.Sprintf("cache hit %s", pterm.Style{sl.theme.CacheHit}.Sprint(host+path))
	sl.logger.Info(styledMsg, "bytes", bytes)
}

// InfoCacheEvict logs an LRU eviction.
func (sl *StyledLogger) InfoCacheEvict(fingerprint string, bytes int) {
	styledMsg := fmt.Sprintf("cache evict %s", pterm.Style{sl.theme.CacheEvict}.Sprint(fingerprint))
	sl.logger.Info(styledMsg, "bytes", bytes)
}

// GetUnderlying returns the underlying slog.Logger for cases where direct access is needed
func (sl *StyledLogger) GetUnderlying() *slog.Logger {
	return sl.logger
}

// WithAttrs creates a new StyledLogger with additional structured attributes
func (sl *StyledLogger) WithAttrs(attrs ...slog.Attr) *StyledLogger {
	args := make([]any, 0, len(attrs)*2)
	for _, attr := range attrs {
		args = append(args, attr.Key, attr.Value)
	}

	return &StyledLogger{
		logger: sl.logger.With(args...),
		theme:  sl.theme,
	}
}

// With creates a new StyledLogger with additional key-value pairs
func (sl *StyledLogger) With(args ...any) *StyledLogger {
	return &StyledLogger{
		logger: sl.logger.With(args...),
		theme:  sl.theme,
	}
}

// NewWithTheme creates both a regular logger and a styled logger
func NewWithTheme(cfg *Config) (*slog.Logger, *StyledLogger, func(), error) {
	logger, cleanup, err := New(cfg)
	if err != nil {
		return nil, nil, nil, err
	}

	appTheme := theme.GetTheme(cfg.Theme)
	styledLogger := NewStyledLogger(logger, appTheme)

	return logger, styledLogger, cleanup, nil
}
