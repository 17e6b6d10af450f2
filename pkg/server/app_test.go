package server

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"RiskLens/internal/service/ratelimit"
)

type closeFunc func() error

func (f closeFunc) Close() error { return f() }

func TestServeClosesInReverseOrder(t *testing.T) {
	var order []string
	a := New(nil, nil, nil, nil, nil, ratelimit.New(1, 1))
	a.AddCloser("first", closeFunc(func() error { order = append(order, "first"); return nil }))
	a.AddCloser("second", closeFunc(func() error { order = append(order, "second"); return nil }))
	a.AddCloser("nil", nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Serve(ctx) }()
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not return")
	}
	assert.Equal(t, []string{"second", "first"}, order)
}

func TestShutdownJoinsCloseErrors(t *testing.T) {
	boom := errors.New("boom")
	a := New(nil, nil, nil, nil, nil, nil)
	a.AddCloser("cache", closeFunc(func() error { return boom }))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := a.Serve(ctx)
	assert.ErrorIs(t, err, boom)
}

type fakeWorker struct {
	events   *[]string
	startErr error
}

func (w fakeWorker) Start() error {
	*w.events = append(*w.events, "start")
	return w.startErr
}

func (w fakeWorker) Stop(context.Context) error {
	*w.events = append(*w.events, "stop")
	return nil
}

func TestWorkersStopBeforeClosers(t *testing.T) {
	var events []string
	a := New(nil, nil, nil, nil, nil, nil)
	a.AddWorker("queue", fakeWorker{events: &events})
	a.AddCloser("redis", closeFunc(func() error { events = append(events, "close"); return nil }))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, a.Serve(ctx))
	assert.Equal(t, []string{"start", "stop", "close"}, events)
}

func TestWorkerStartFailureAborts(t *testing.T) {
	var events []string
	a := New(nil, nil, nil, nil, nil, nil)
	a.AddWorker("queue", fakeWorker{events: &events, startErr: errors.New("redis ping")})

	err := a.Serve(context.Background())
	assert.EqualError(t, err, "redis ping")
}
