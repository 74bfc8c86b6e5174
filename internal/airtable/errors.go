package airtable

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// RequestError classifies Airtable call failures as transient or permanent.
type RequestError struct {
	StatusCode int
	Type       string
	Message    string
	Transient  bool
	Cause      error
}

func (e *RequestError) Error() string {
	if e == nil {
		return "<nil>"
	}

	parts := make([]string, 0, 4)
	parts = append(parts, "airtable error")

	if e.StatusCode > 0 {
		parts = append(parts, fmt.Sprintf("status=%d", e.StatusCode))
	}
	if typ := strings.TrimSpace(e.Type); typ != "" {
		parts = append(parts, typ)
	}
	if msg := strings.TrimSpace(e.Message); msg != "" {
		parts = append(parts, msg)
	}
	if e.Cause != nil {
		parts = append(parts, e.Cause.Error())
	}

	return strings.Join(parts, ": ")
}

func (e *RequestError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// IsTransient reports whether a failed call may succeed on a later attempt.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, context.Canceled) {
		return false
	}

	var requestErr *RequestError
	if errors.As(err, &requestErr) {
		return requestErr.Transient
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}

	return false
}
