package provider

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrRateLimited means the provider asked us to slow down (HTTP 429).
	ErrRateLimited = errors.New("provider rate limit exceeded")

	// ErrQuotaExceeded means the account behind the API key is out of
	// credit (HTTP 402, or a 429 carrying insufficient_quota).
	ErrQuotaExceeded = errors.New("provider quota exceeded")
)

// Error is a failed provider call. Err holds ErrRateLimited or
// ErrQuotaExceeded when the failure is one of those.
type Error struct {
	StatusCode int
	Code       string
	Message    string
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("provider error (status %d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("provider error: %s", e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// classify turns a non-2xx response into an *Error.
func classify(status int, body []byte) *Error {
	var envelope errorEnvelope
	_ = json.Unmarshal(body, &envelope)

	e := &Error{
		StatusCode: status,
		Code:       envelope.Error.Code,
		Message:    envelope.Error.Message,
	}
	if e.Message == "" {
		e.Message = truncate(string(body), 200)
	}

	switch {
	case status == 402, status == 429 && e.Code == "insufficient_quota":
		e.Err = ErrQuotaExceeded
	case status == 429:
		e.Err = ErrRateLimited
	}
	return e
}

type errorEnvelope struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
