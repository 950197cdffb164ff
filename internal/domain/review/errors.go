package review

import (
	"errors"
	"fmt"
)

var (
	ErrProtocol         = errors.New("review api protocol error")
	ErrDecode           = errors.New("review api decode error")
	ErrMalformedAttempt = errors.New("malformed review attempt")
)

// ProtocolError is returned for a non-2xx response or an unknown review status.
type ProtocolError struct {
	StatusCode int    // 0 when the HTTP exchange itself was fine
	Status     Status // set for an unknown review status
	Body       string
}

func (e *ProtocolError) Error() string {
	if e.StatusCode != 0 {
		if e.Body != "" {
			return fmt.Sprintf("review api returned HTTP %d: %s", e.StatusCode, e.Body)
		}
		return fmt.Sprintf("review api returned HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("review api returned unknown status %q", string(e.Status))
}

func (e *ProtocolError) Is(target error) bool { return target == ErrProtocol }

// UnknownStatusError builds the ProtocolError for a status outside found/timeout.
func UnknownStatusError(s Status) *ProtocolError {
	return &ProtocolError{Status: s}
}

// DecodeError wraps a failure to decode a successful response body.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string { return "failed to decode review payload: " + e.Err.Error() }

func (e *DecodeError) Unwrap() error { return e.Err }

func (e *DecodeError) Is(target error) bool { return target == ErrDecode }

// MalformedAttemptError names the required attempt field that is missing.
type MalformedAttemptError struct {
	Field string
}

func (e *MalformedAttemptError) Error() string {
	return fmt.Sprintf("malformed review attempt: missing field %q", e.Field)
}

func (e *MalformedAttemptError) Is(target error) bool { return target == ErrMalformedAttempt }
