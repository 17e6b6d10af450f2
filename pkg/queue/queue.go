package queue

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// QueueConfig contains the configuration for the queue
type QueueConfig struct {
	Workers    int           // number of workers
	RetryLimit int           // number of maximum retries
	RetryDelay time.Duration // time delay between retries
	Poll       time.Duration // blocking pop timeout
}

// Message represents a message in the queue. Payload is kept as raw JSON so
// handlers decode it into their own request type.
type Message struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Attempts  int             `json:"attempts"`
	Timestamp time.Time       `json:"timestamp"`
	LastError string          `json:"last_error,omitempty"`
}

// PermanentError marks a failure that retrying cannot fix.
type PermanentError struct{ Err error }

func (e *PermanentError) Error() string { return "permanent: " + e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

// Permanent wraps err so the queue moves the message straight to the dead letter list.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// IsPermanent reports whether err was wrapped with Permanent.
func IsPermanent(err error) bool {
	var pe *PermanentError
	return errors.As(err, &pe)
}

type ctxKey struct{}

// WithMessageID stores the id of the message being handled.
func WithMessageID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// MessageID returns the id of the message being handled, or "".
func MessageID(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}
