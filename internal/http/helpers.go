package http

import (
	"errors"
	"strings"

	"cashbook/internal/store"
)

// sanitizeInput removes control characters except tab and newlines and
// trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

// publicMessage returns the part of err that is safe to show to a client.
func publicMessage(err error) string {
	if err == nil {
		return ""
	}
	var f *store.Failure
	if errors.As(err, &f) {
		return f.Message
	}
	return err.Error()
}

// isMutation reports whether method changes server state.
func isMutation(method string) bool {
	switch method {
	case "POST", "PUT", "PATCH", "DELETE":
		return true
	}
	return false
}
