package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

var defaultLogger *slog.Logger

const redacted = "[REDACTED]"

// sensitiveKeys never reach the log sink with their real value.
var sensitiveKeys = map[string]struct{}{
	"password":      {},
	"password_hash": {},
	"old_password":  {},
	"new_password":  {},
	"token":         {},
	"session_token": {},
	"access_token":  {},
	"secret":        {},
	"authorization": {},
	"cookie":        {},
}

func Init(env string) {
	defaultLogger = New(os.Stdout, env)
	slog.SetDefault(defaultLogger)
}

// New builds a logger writing to w. Production gets JSON at info level,
// everything else gets text at debug level.
func New(w io.Writer, env string) *slog.Logger {
	var handler slog.Handler

	if env == "production" {
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slog.LevelInfo, ReplaceAttr: redact})
	} else {
		handler = slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug, ReplaceAttr: redact})
	}

	return slog.New(handler)
}

func LoggerWrapper() *slog.Logger {
	if defaultLogger == nil {
		// lazy initialize a development logger to avoid nil pointer panics
		Init("development")
	}
	return defaultLogger
}

func IsSensitiveKey(key string) bool {
	_, ok := sensitiveKeys[strings.ToLower(key)]
	return ok
}

func redact(_ []string, a slog.Attr) slog.Attr {
	if IsSensitiveKey(a.Key) {
		return slog.String(a.Key, redacted)
	}
	return a
}
