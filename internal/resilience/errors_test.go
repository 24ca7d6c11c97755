package resilience

import (
	"context"
	"errors"
	"testing"

	"github.com/rotisserie/eris"

	"github.com/sells-group/cyberrisk/internal/model"
)

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"storage", model.NewStorageError("save", errors.New("disk full")), true},
		{"wrapped storage", eris.Wrap(model.NewStorageError("save", errors.New("x")), "batch: persist"), true},
		{"storage cancelled", model.NewStorageError("save", context.Canceled), false},
		{"deadline", eris.Wrap(context.DeadlineExceeded, "persist"), false},
		{"sqlite busy", errors.New("SQLITE_BUSY: database is locked"), true},
		{"conn reset", errors.New("read tcp: connection reset by peer"), true},
		{"validation", model.NewValidationError("industry", "unknown"), false},
		{"plain", errors.New("invalid input"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTransient(tt.err); got != tt.want {
				t.Errorf("IsTransient(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
