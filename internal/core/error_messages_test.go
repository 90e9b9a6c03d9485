package core

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/JonMunkholm/csvclean/internal/dataset"
	"github.com/JonMunkholm/csvclean/internal/quota"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode string
	}{
		{"nil error returns empty", nil, ""},
		{"quota exceeded", &quota.QuotaExceededError{Tier: quota.TierAnonymous, Limit: 3}, "QUOTA001"},
		{"file too large", fmt.Errorf("admit: %w", &quota.FileTooLargeError{Size: 20, Limit: 10}), "FILE001"},
		{"malformed csv", fmt.Errorf("%w: csv must have a header", dataset.ErrMalformedInput), "FILE002"},
		{"empty file before malformed", fmt.Errorf("%w: %w", ErrEmptyFile, dataset.ErrMalformedInput), "FILE005"},
		{"no file", ErrNoFile, "FILE004"},
		{"busy", ErrTooManyCleanings, "UPL002"},
		{"cancelled", fmt.Errorf("cleaning abandoned: %w", context.Canceled), "UPL004"},
		{"timeout", fmt.Errorf("cleaning abandoned: %w", context.DeadlineExceeded), "UPL005"},
		{"rate limited", ErrRateLimited, "RATE001"},
		{"unknown tier", fmt.Errorf("%w: %q", quota.ErrUnknownTier, "gold"), "AUTH001"},
		{"encoding pattern", errors.New("unsupported ENCODING in upload"), "FILE003"},
		{"store unreachable", errors.New("increment usage: dial tcp: connection refused"), "DB004"},
		{"sqlite busy", errors.New("database is locked (5) (SQLITE_BUSY)"), "DB004"},
		{"unknown error returns default", errors.New("some random internal error"), "ERR000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MapError(tt.err)
			if got.Code != tt.wantCode {
				t.Errorf("MapError() code = %q, want %q", got.Code, tt.wantCode)
			}
			if tt.err != nil && got.Message == "" {
				t.Error("MapError() message is empty")
			}
		})
	}
}

func TestFormatUserError(t *testing.T) {
	result := FormatUserError(ErrTooManyCleanings)

	expected := "The system is busy with other cleanings (Code: UPL002). Please wait a moment and try again"
	if result != expected {
		t.Errorf("FormatUserError() = %q, want %q", result, expected)
	}
	if FormatUserError(nil) != "" {
		t.Error("FormatUserError(nil) should be empty")
	}
}

func TestIsUserFacing(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil error is not user facing", nil, false},
		{"quota error is user facing", quota.ErrQuotaExceeded, true},
		{"unknown error is not user facing", errors.New("random internal error xyz"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsUserFacing(tt.err); got != tt.want {
				t.Errorf("IsUserFacing() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNewUserError(t *testing.T) {
	t.Run("nil error returns nil", func(t *testing.T) {
		if got := NewUserError(nil); got != nil {
			t.Errorf("NewUserError(nil) = %v, want nil", got)
		}
	})

	t.Run("wraps technical error with user message", func(t *testing.T) {
		techErr := fmt.Errorf("read body: %w", ErrNoFile)
		userErr := NewUserError(techErr)

		if userErr.Error() != "No file was provided" {
			t.Errorf("Error() = %q, want user message", userErr.Error())
		}
		if !errors.Is(userErr, ErrNoFile) {
			t.Error("Unwrap() should expose the original error")
		}
	})
}
