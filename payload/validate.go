// Package payload builds and validates request bodies for the REST API.
//
// Builders validate at assignment: every setter that can reject its input
// returns a *ValidationError immediately, so an invalid value never reaches
// the network.
package payload

import (
	"errors"
	"fmt"
	"unicode/utf8"
)

// ErrValidation is matched by every *ValidationError.
var ErrValidation = errors.New("payload validation failed")

// ValidationError names the rejected field and why.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// checkLen bounds the rune length of s to [min, max].
func checkLen(field, s string, min, max int) error {
	n := utf8.RuneCountInString(s)
	if n < min || n > max {
		if min == 0 {
			return invalid(field, "length %d exceeds %d", n, max)
		}
		return invalid(field, "length %d outside %d-%d", n, min, max)
	}
	return nil
}

func checkRange(field string, v, min, max int) error {
	if v < min || v > max {
		return invalid(field, "%d outside %d-%d", v, min, max)
	}
	return nil
}

func checkCount(field string, n, max int) error {
	if n > max {
		return invalid(field, "%d entries exceeds %d", n, max)
	}
	return nil
}

// checkPermissions accepts a decimal permission bitset string.
func checkPermissions(field, s string) error {
	if s == "" {
		return invalid(field, "empty permission set")
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return invalid(field, "%q is not a decimal bitset", s)
		}
	}
	return nil
}

const maxColor = 0xFFFFFF
