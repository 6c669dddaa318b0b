// Package slogx provides small helpers for structured logging attributes.
package slogx

import (
	"fmt"
	"log/slog"
)

// Error returns an "error" attribute carrying the error's message.
func Error(err error) slog.Attr {
	return slog.String("error", err.Error())
}

// ByteString returns an attribute with the byte slice rendered as a string.
func ByteString(key string, value []byte) slog.Attr {
	return slog.String(key, string(value))
}

// Stringer returns an attribute with the value's String() rendering.
func Stringer(key string, value fmt.Stringer) slog.Attr {
	return slog.String(key, value.String())
}

// KeyLoggerName is the attribute key used to tag a named logger.
const KeyLoggerName = "logger"

// LoggerName returns the named-logger attribute.
func LoggerName(name string) slog.Attr {
	return slog.String(KeyLoggerName, name)
}
