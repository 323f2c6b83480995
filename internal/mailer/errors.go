package mailer

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// ErrorKind classifies a send failure for the reconciler.
type ErrorKind string

const (
	// KindTransient is retry-eligible: the lead stays new for the next run.
	KindTransient ErrorKind = "transient"
	// KindPermanent removes the lead from first-touch eligibility.
	KindPermanent ErrorKind = "permanent"
	// KindQuotaExhausted stops the current batch run early.
	KindQuotaExhausted ErrorKind = "quota_exhausted"
)

// SendError is the classified form of a transport failure, produced at the
// adapter boundary.
type SendError struct {
	Kind       ErrorKind
	StatusCode int
	Message    string
	Cause      error
}

func (e *SendError) Error() string {
	if e == nil {
		return "<nil>"
	}

	parts := make([]string, 0, 4)
	parts = append(parts, fmt.Sprintf("send error (%s)", e.Kind))

	if e.StatusCode > 0 {
		parts = append(parts, fmt.Sprintf("status=%d", e.StatusCode))
	}
	if msg := strings.TrimSpace(e.Message); msg != "" {
		parts = append(parts, msg)
	}
	if e.Cause != nil {
		parts = append(parts, e.Cause.Error())
	}

	return strings.Join(parts, ": ")
}

func (e *SendError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// IsTransient reports whether the failure is retry-eligible on the next run.
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

	var sendErr *SendError
	if errors.As(err, &sendErr) {
		return sendErr.Kind == KindTransient
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}

	return false
}

// IsPermanent reports a hard failure: invalid address or rejected payload.
func IsPermanent(err error) bool {
	var sendErr *SendError
	return errors.As(err, &sendErr) && sendErr.Kind == KindPermanent
}

// IsQuotaExhausted reports the provider signalling an exhausted send quota,
// distinct from a single-message failure.
func IsQuotaExhausted(err error) bool {
	var sendErr *SendError
	return errors.As(err, &sendErr) && sendErr.Kind == KindQuotaExhausted
}
