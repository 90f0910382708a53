package provider

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
)

// Sender abstracts the email provider. Implementations classify their
// failures: a *Error with Permanent set means the message will never go
// through (bad address, rejected content) and must not be retried;
// anything else is treated as retryable.
type Sender interface {
	Send(ctx context.Context, to, subject, html string) error
}

// Error is a classified provider failure.
type Error struct {
	StatusCode int
	Message    string
	Permanent  bool
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("provider: %s (status %d)", e.Message, e.StatusCode)
	}
	return "provider: " + e.Message
}

// IsPermanent reports whether err is a permanent provider failure.
// Timeouts and transport errors are retryable by definition.
func IsPermanent(err error) bool {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Permanent
	}
	return false
}

// MockSender simulates sending with a configurable failure rate. Useful
// for local runs without provider credentials.
type MockSender struct {
	FailureRate float64
}

func (m *MockSender) Send(_ context.Context, to, _, _ string) error {
	if rand.Float64() < m.FailureRate {
		return &Error{Message: "mock sending failed for " + to}
	}
	return nil
}
