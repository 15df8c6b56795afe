package token

import (
	"errors"
	"time"
)

// TTL is how long a delivered link stays redeemable.
const TTL = 15 * time.Minute

// tokenBytes of entropy per token value (32 bytes = 256 bits, encoded
// URL-safe base64).
const tokenBytes = 32

// The four failure modes below must collapse to one generic message at the
// API surface; they are distinguished internally for logging and tests only.
var (
	ErrTokenNotFound = errors.New("token not found")
	ErrTokenExpired  = errors.New("token expired")
	ErrTokenUsed     = errors.New("token already used")
	ErrTokenRevoked  = errors.New("token superseded")
	ErrTokenPurpose  = errors.New("token purpose mismatch")
)
