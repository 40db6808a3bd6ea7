package sprest

import (
	"sort"

	"github.com/hashicorp/go-hclog"
)

// Logger interface for logging.
type Logger interface {
	Debug(msg string, fields map[string]interface{})
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
}

// Diagnostics receives non-fatal warnings, such as dropped query keys.
// Every Logger satisfies it.
type Diagnostics interface {
	Warn(msg string, fields map[string]interface{})
}

// NopLogger discards everything.
type NopLogger struct{}

func (NopLogger) Debug(string, map[string]interface{}) {}
func (NopLogger) Info(string, map[string]interface{})  {}
func (NopLogger) Warn(string, map[string]interface{})  {}
func (NopLogger) Error(string, map[string]interface{}) {}

// HCLogger adapts an hclog.Logger to Logger. Fields are emitted in key order.
type HCLogger struct {
	logger hclog.Logger
}

// NewHCLogger wraps logger. A nil logger falls back to hclog.Default().
func NewHCLogger(logger hclog.Logger) *HCLogger {
	if logger == nil {
		logger = hclog.Default()
	}

	return &HCLogger{logger: logger}
}

func (l *HCLogger) Debug(msg string, fields map[string]interface{}) {
	l.logger.Debug(msg, flattenFields(fields)...)
}

func (l *HCLogger) Info(msg string, fields map[string]interface{}) {
	l.logger.Info(msg, flattenFields(fields)...)
}

func (l *HCLogger) Warn(msg string, fields map[string]interface{}) {
	l.logger.Warn(msg, flattenFields(fields)...)
}

func (l *HCLogger) Error(msg string, fields map[string]interface{}) {
	l.logger.Error(msg, flattenFields(fields)...)
}

func flattenFields(fields map[string]interface{}) []interface{} {
	if len(fields) == 0 {
		return nil
	}

	keys := make([]string, 0, len(fields))
	for key := range fields {
		keys = append(keys, key)
	}

	sort.Strings(keys)

	args := make([]interface{}, 0, len(keys)*2)
	for _, key := range keys {
		args = append(args, key, fields[key])
	}

	return args
}

func loggerOrNop(logger Logger) Logger {
	if logger == nil {
		return NopLogger{}
	}

	return logger
}
