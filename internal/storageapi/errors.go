// SPDX-License-Identifier: MIT

package storageapi

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

var (
	// Sentinel errors for errors.Is checks at the boundary.
	ErrNotFound    = errors.New("appliance: resource not found")
	ErrUnreachable = errors.New("appliance: host unreachable or transport failure")
	ErrUpstream    = errors.New("appliance: server error")
	ErrBadResponse = errors.New("appliance: invalid response format or malformed data")
	ErrTimeout     = errors.New("appliance: request timed out")
	ErrInvalidURL  = errors.New("appliance: invalid url")
)

// APIError wraps a sentinel with the operation and HTTP details.
type APIError struct {
	Sentinel  error
	Operation string
	URL       string
	Status    int
	Err       error
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("%s: %v", e.Operation, e.Sentinel)
	if e.URL != "" {
		msg = fmt.Sprintf("%s [%s]", msg, e.URL)
	}
	if e.Status > 0 {
		msg = fmt.Sprintf("%s (HTTP %d)", msg, e.Status)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *APIError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Sentinel}
	}
	return []error{e.Sentinel, e.Err}
}

func classifyTransport(op, url string, err error) error {
	sentinel := ErrUnreachable
	var ne net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout()) {
		sentinel = ErrTimeout
	}
	return &APIError{Sentinel: sentinel, Operation: op, URL: url, Err: err}
}

func classifyStatus(op, url string, status int) error {
	switch {
	case status == http.StatusNotFound:
		return &APIError{Sentinel: ErrNotFound, Operation: op, URL: url, Status: status}
	case status >= 500:
		return &APIError{Sentinel: ErrUpstream, Operation: op, URL: url, Status: status}
	default:
		return &APIError{Sentinel: ErrBadResponse, Operation: op, URL: url, Status: status}
	}
}

// retryable reports whether err is worth another attempt.
func retryable(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	return errors.Is(err, ErrUnreachable) || errors.Is(err, ErrTimeout) || errors.Is(err, ErrUpstream)
}
