package service

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorIsMatchesCode(t *testing.T) {
	wrapped := fmt.Errorf("claim item: %w", ErrAlreadyClaimed)
	if !errors.Is(wrapped, ErrAlreadyClaimed) {
		t.Error("wrapped sentinel should match")
	}
	if errors.Is(wrapped, ErrSelfClaim) {
		t.Error("different codes should not match")
	}
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		err  error
		want Kind
	}{
		{ErrNotAMember, KindValidation},
		{ErrInvalidCredentials, KindUnauthenticated},
		{ErrForbidden, KindForbidden},
		{ErrInvalidInviteCode, KindNotFound},
		{ErrInsufficientMembers, KindConflict},
		{fmt.Errorf("wrap: %w", ErrGroupNotFound), KindNotFound},
		{ValidationError(map[string]string{"title": "required"}), KindValidation},
		{errors.New("disk on fire"), KindInternal},
	}
	for _, tt := range tests {
		if got := KindOf(tt.err); got != tt.want {
			t.Errorf("KindOf(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}
