package identity

import (
	"errors"
	"regexp"
)

var (
	// ErrInvalidInput is returned when neither contact key is usable.
	ErrInvalidInput = errors.New("provide email or phone")
	// ErrConflict is returned when a concurrent resolve races past the
	// one internal retry.
	ErrConflict = errors.New("identity resolution conflict")
)

// phoneRe accepts E.164 numbers only ("+" then up to 15 digits).
var phoneRe = regexp.MustCompile(`^\+[1-9][0-9]{1,14}$`)
