package resilience

import (
	"context"
	"errors"
	"strings"

	"github.com/sells-group/cyberrisk/internal/model"
)

// busyPatterns are driver messages for lock contention and dropped
// connections that clear up on their own.
var busyPatterns = []string{
	"database is locked",
	"sqlite_busy",
	"connection reset by peer",
	"connection refused",
	"broken pipe",
	"i/o timeout",
	"conn closed",
}

// IsTransient reports whether a failed store operation is worth retrying.
// Every StorageError is retryable unless its cause is a cancelled or expired
// context; other errors qualify only when they look like lock contention or
// a dropped connection.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if model.IsStorage(err) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, p := range busyPatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}
