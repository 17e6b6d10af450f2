package interpreter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"

	xhttp "RiskLens/pkg/http"
)

// httpBase posts JSON to a base URL with bearer auth, bounded retries and a
// circuit breaker shared by every call.
type httpBase struct {
	baseURL string
	apiKey  string
	client  *xhttp.Client
	breaker *gobreaker.CircuitBreaker
	backoff time.Duration
}

func newHTTPBase(baseURL, apiKey string, client *xhttp.Client, failures uint32, openFor time.Duration) *httpBase {
	st := gobreaker.Settings{Name: "interpreter"}
	st.ReadyToTrip = func(counts gobreaker.Counts) bool { return counts.ConsecutiveFailures >= failures }
	st.Timeout = openFor
	// a cancelled caller says nothing about the upstream's health
	st.IsSuccessful = func(err error) bool {
		return err == nil || errors.Is(err, context.Canceled)
	}
	return &httpBase{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  client,
		breaker: gobreaker.NewCircuitBreaker(st),
		backoff: 200 * time.Millisecond,
	}
}

// PostJSON posts the payload to path under baseURL and decodes JSON into dest.
func (b *httpBase) PostJSON(ctx context.Context, path string, payload interface{}, dest interface{}) error {
	if b.client == nil || b.baseURL == "" {
		return fmt.Errorf("interpreter http client not initialized")
	}
	_, err := b.breaker.Execute(func() (interface{}, error) {
		return nil, b.client.SendAndParse(ctx, &xhttp.RequestOptions{
			Method: xhttp.MethodPost,
			URL:    b.baseURL + path,
			Headers: map[string]string{
				"Content-Type":  "application/json",
				"Authorization": "Bearer " + b.apiKey,
			},
			Body: payload,
		}, dest)
	})
	if err != nil {
		return fmt.Errorf("post %s: %w", path, err)
	}
	return nil
}

// PostJSONWithRetry retries transient failures up to attempts times in total.
// Client errors and an open breaker fail immediately.
func (b *httpBase) PostJSONWithRetry(ctx context.Context, path string, payload interface{}, dest interface{}, attempts int) error {
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for i := 1; i <= attempts; i++ {
		err = b.PostJSON(ctx, path, payload, dest)
		if err == nil || !retryable(err) || i == attempts {
			return err
		}
		select {
		case <-time.After(time.Duration(i) * b.backoff):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

func retryable(err error) bool {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	var se *xhttp.StatusError
	if errors.As(err, &se) {
		return se.Retryable()
	}
	return true
}
