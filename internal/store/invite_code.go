package store

import (
	"encoding/base32"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

const inviteCodeLength = 10

// Crockford's alphabet: no I, L, O or U, so codes survive being read aloud.
var inviteEncoding = base32.NewEncoding("0123456789ABCDEFGHJKMNPQRSTVWXYZ").WithPadding(base32.NoPadding)

// CodeFunc produces a candidate invite code.
type CodeFunc func() (string, error)

// NewInviteCode derives a short invite code from a random (v4) UUID.
func NewInviteCode() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("generate invite code: %w", err)
	}
	return inviteEncoding.EncodeToString(id[:])[:inviteCodeLength], nil
}

// NormalizeInviteCode upper-cases and trims a user-supplied code.
func NormalizeInviteCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
