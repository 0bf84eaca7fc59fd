package apperr_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/dalemusser/campushub/internal/app/system/apperr"
)

func TestIs_MatchesByKind(t *testing.T) {
	if !errors.Is(apperr.ErrForumNotFound, apperr.ErrNotFound) {
		t.Error("forum not found should match ErrNotFound")
	}
	if errors.Is(apperr.ErrForumNotFound, apperr.ErrForbidden) {
		t.Error("forum not found should not match ErrForbidden")
	}
	wrapped := fmt.Errorf("join: %w", apperr.ErrAuthorCannotLeave)
	if !errors.Is(wrapped, apperr.ErrConflict) {
		t.Error("wrapped conflict should match ErrConflict")
	}
}

func TestKindOfAndMessageOf(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantKind apperr.Kind
		wantMsg  string
	}{
		{"typed", apperr.ErrNotMember, apperr.NotFound, apperr.ErrNotMember.Message},
		{"wrapped", fmt.Errorf("x: %w", apperr.ErrUnauthenticated), apperr.Unauthenticated, apperr.ErrUnauthenticated.Message},
		{"untyped", errors.New("connection refused"), apperr.Internal, apperr.ErrInternal.Message},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := apperr.KindOf(tt.err); got != tt.wantKind {
				t.Errorf("KindOf: got %q, want %q", got, tt.wantKind)
			}
			if got := apperr.MessageOf(tt.err); got != tt.wantMsg {
				t.Errorf("MessageOf: got %q, want %q", got, tt.wantMsg)
			}
		})
	}
}

func TestWrap_KeepsCause(t *testing.T) {
	cause := errors.New("boom")
	err := apperr.Wrap(apperr.Internal, "échec", cause)
	if !errors.Is(err, cause) {
		t.Error("expected cause to be reachable through Unwrap")
	}
}
