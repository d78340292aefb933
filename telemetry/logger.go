package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/cascadehq/cascaderouter/core"
)

// Logger is a structured logger: JSON in production-like environments,
// human-readable text for local development, rate-limited error logging so
// a failure storm doesn't flood stdout.
type Logger struct {
	level        string
	serviceName  string
	format       string
	output       io.Writer
	mu           sync.RWMutex
	errorLimiter *RateLimiter
}

// NewLogger creates a logger for serviceName. Format auto-detects: JSON
// when KUBERNETES_SERVICE_HOST is set (or CASCADE_LOG_FORMAT=json is
// explicit), text otherwise. Level defaults to INFO; CASCADE_LOG_LEVEL and
// CASCADE_DEBUG override it.
func NewLogger(serviceName string) *Logger {
	level := strings.ToUpper(os.Getenv("CASCADE_LOG_LEVEL"))
	if level == "" {
		level = "INFO"
	}
	if os.Getenv("CASCADE_DEBUG") == "true" {
		level = "DEBUG"
	}

	format := "text"
	if os.Getenv("KUBERNETES_SERVICE_HOST") != "" {
		format = "json"
	}
	if f := os.Getenv("CASCADE_LOG_FORMAT"); f != "" {
		format = f
	}

	return &Logger{
		level:        level,
		serviceName:  serviceName,
		format:       format,
		output:       os.Stdout,
		errorLimiter: NewRateLimiter(time.Second),
	}
}

// WithComponent returns a logger tagged with component (e.g. "cascade",
// "budget", "classify") without touching the parent's configuration.
func (l *Logger) WithComponent(component string) core.Logger {
	return &componentLogger{parent: l, component: component}
}

func (l *Logger) Info(msg string, fields map[string]interface{})  { l.log("INFO", "", msg, fields) }
func (l *Logger) Warn(msg string, fields map[string]interface{})  { l.log("WARN", "", msg, fields) }
func (l *Logger) Debug(msg string, fields map[string]interface{}) { l.log("DEBUG", "", msg, fields) }

func (l *Logger) Error(msg string, fields map[string]interface{}) {
	if l.errorLimiter != nil && !l.errorLimiter.Allow() {
		return
	}
	l.log("ERROR", "", msg, fields)
}

func (l *Logger) InfoWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
	l.log("INFO", traceIDFrom(ctx), msg, fields)
}
func (l *Logger) WarnWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
	l.log("WARN", traceIDFrom(ctx), msg, fields)
}
func (l *Logger) DebugWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
	l.log("DEBUG", traceIDFrom(ctx), msg, fields)
}
func (l *Logger) ErrorWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
	if l.errorLimiter != nil && !l.errorLimiter.Allow() {
		return
	}
	l.log("ERROR", traceIDFrom(ctx), msg, fields)
}

func (l *Logger) log(level, traceID, msg string, fields map[string]interface{}) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if !l.shouldLog(level) {
		return
	}
	ts := time.Now().Format(time.RFC3339)
	if l.format == "json" {
		l.logJSON(ts, level, "", traceID, msg, fields)
	} else {
		l.logText(ts, level, "", traceID, msg, fields)
	}
}

func (l *Logger) logJSON(ts, level, component, traceID, msg string, fields map[string]interface{}) {
	entry := map[string]interface{}{
		"timestamp": ts,
		"level":     level,
		"service":   l.serviceName,
		"message":   msg,
	}
	if component != "" {
		entry["component"] = component
	}
	if traceID != "" {
		entry["trace_id"] = traceID
	}
	for k, v := range fields {
		if _, reserved := entry[k]; !reserved {
			entry[k] = v
		}
	}
	if data, err := json.Marshal(entry); err == nil {
		fmt.Fprintln(l.output, string(data))
	}
}

func (l *Logger) logText(ts, level, component, traceID, msg string, fields map[string]interface{}) {
	var b strings.Builder
	if component != "" {
		fmt.Fprintf(&b, "[%s]", component)
	}
	if traceID != "" {
		fmt.Fprintf(&b, " trace=%s", traceID)
	}
	for k, v := range fields {
		fmt.Fprintf(&b, " %s=%v", k, v)
	}
	fmt.Fprintf(l.output, "%s [%s] %s%s %s\n", ts, level, l.serviceName, b.String(), msg)
}

func (l *Logger) shouldLog(level string) bool {
	order := map[string]int{"DEBUG": 0, "INFO": 1, "WARN": 2, "ERROR": 3}
	cur, ok1 := order[l.level]
	msg, ok2 := order[level]
	if !ok1 || !ok2 {
		return true
	}
	return msg >= cur
}

// SetOutput redirects log output; used by tests.
func (l *Logger) SetOutput(w io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.output = w
}

// componentLogger decorates Logger with a fixed component tag, implementing
// core.Logger itself so it can be nested (WithComponent of WithComponent).
type componentLogger struct {
	parent    *Logger
	component string
}

func (c *componentLogger) Info(msg string, fields map[string]interface{}) {
	c.parent.logTagged("INFO", c.component, "", msg, fields)
}
func (c *componentLogger) Warn(msg string, fields map[string]interface{}) {
	c.parent.logTagged("WARN", c.component, "", msg, fields)
}
func (c *componentLogger) Debug(msg string, fields map[string]interface{}) {
	c.parent.logTagged("DEBUG", c.component, "", msg, fields)
}
func (c *componentLogger) Error(msg string, fields map[string]interface{}) {
	if c.parent.errorLimiter != nil && !c.parent.errorLimiter.Allow() {
		return
	}
	c.parent.logTagged("ERROR", c.component, "", msg, fields)
}
func (c *componentLogger) InfoWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
	c.parent.logTagged("INFO", c.component, traceIDFrom(ctx), msg, fields)
}
func (c *componentLogger) WarnWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
	c.parent.logTagged("WARN", c.component, traceIDFrom(ctx), msg, fields)
}
func (c *componentLogger) DebugWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
	c.parent.logTagged("DEBUG", c.component, traceIDFrom(ctx), msg, fields)
}
func (c *componentLogger) ErrorWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
	if c.parent.errorLimiter != nil && !c.parent.errorLimiter.Allow() {
		return
	}
	c.parent.logTagged("ERROR", c.component, traceIDFrom(ctx), msg, fields)
}
func (c *componentLogger) WithComponent(component string) core.Logger {
	return &componentLogger{parent: c.parent, component: c.component + "/" + component}
}

func (l *Logger) logTagged(level, component, traceID, msg string, fields map[string]interface{}) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if !l.shouldLog(level) {
		return
	}
	ts := time.Now().Format(time.RFC3339)
	if l.format == "json" {
		l.logJSON(ts, level, component, traceID, msg, fields)
	} else {
		l.logText(ts, level, component, traceID, msg, fields)
	}
}
