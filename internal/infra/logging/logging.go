// Package logging provides a small leveled key/value logger with a
// per-component prefix on every line.
package logging

import (
	"fmt"
	"log"
	"strings"
	"sync/atomic"
)

const (
	levelDebug int32 = iota
	levelInfo
	levelWarn
	levelError
)

var minLevel atomic.Int32

func init() {
	minLevel.Store(levelInfo)
}

// SetLevel sets the minimum emitted level: debug, info, warn or error.
// Unknown values fall back to info.
func SetLevel(level string) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		minLevel.Store(levelDebug)
	case "warn", "warning":
		minLevel.Store(levelWarn)
	case "error":
		minLevel.Store(levelError)
	default:
		minLevel.Store(levelInfo)
	}
}

// Debug logs a debug message with key/value fields.
func Debug(component, msg string, kv ...any) {
	emit(levelDebug, "DEBUG ", component, msg, kv...)
}

// Info logs a message with key/value fields using a consistent prefix.
func Info(component, msg string, kv ...any) {
	emit(levelInfo, "", component, msg, kv...)
}

// Warn logs a warning with key/value fields.
func Warn(component, msg string, kv ...any) {
	emit(levelWarn, "WARN ", component, msg, kv...)
}

// Error logs an error message with key/value fields.
func Error(component, msg string, kv ...any) {
	emit(levelError, "ERROR ", component, msg, kv...)
}

func emit(level int32, tag, component, msg string, kv ...any) {
	if level < minLevel.Load() {
		return
	}
	log.Printf("[%s] %s%s%s", strings.ToUpper(component), tag, msg, formatFields(kv...))
}

func formatFields(kv ...any) string {
	if len(kv) == 0 {
		return ""
	}
	if len(kv)%2 != 0 {
		kv = append(kv, "(missing)")
	}
	var b strings.Builder
	for i := 0; i < len(kv); i += 2 {
		b.WriteString(" ")
		b.WriteString(strings.TrimSpace(toString(kv[i])))
		b.WriteString("=")
		b.WriteString(toString(kv[i+1]))
	}
	return b.String()
}

func toString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case error:
		return strings.ReplaceAll(t.Error(), "\n", " ")
	default:
		return strings.TrimSpace(strings.ReplaceAll(fmt.Sprintf("%v", t), "\n", " "))
	}
}
