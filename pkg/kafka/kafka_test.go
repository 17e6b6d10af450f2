package kafka

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	mu   sync.Mutex
	msgs []kafka.Message
	err  error
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

type countingHandler struct {
	calls int
	err   error
}

func (h *countingHandler) Topic() string { return "risklens.requests" }

func (h *countingHandler) Handle(context.Context, []byte) error {
	h.calls++
	return h.err
}

func TestProducerEncodesPayloads(t *testing.T) {
	w := &fakeWriter{}
	p := newProducer(w, "snappy")

	require.NoError(t, p.Publish(context.Background(), "reports", []byte("SPY"), map[string]float64{"risk": 0.4}))
	require.NoError(t, p.PublishMessage(context.Background(), "logs", "raw"))
	require.NoError(t, p.PublishBatch(context.Background(), "reports", []Message{
		{Key: []byte("BTC-USD"), Value: []byte(`{}`), Headers: map[string]string{"mode": "analyze"}},
	}))
	require.NoError(t, p.PublishBatch(context.Background(), "reports", nil))

	require.Len(t, w.msgs, 3)
	assert.Equal(t, "reports", w.msgs[0].Topic)
	assert.Equal(t, "SPY", string(w.msgs[0].Key))
	assert.JSONEq(t, `{"risk":0.4}`, string(w.msgs[0].Value))
	assert.Nil(t, w.msgs[1].Key)
	assert.Equal(t, "raw", string(w.msgs[1].Value))
	require.Len(t, w.msgs[2].Headers, 1)
	assert.Equal(t, "mode", w.msgs[2].Headers[0].Key)
}

func TestProducerWrapsWriteErrors(t *testing.T) {
	p := newProducer(&fakeWriter{err: errors.New("broker down")}, "gzip")
	err := p.Publish(context.Background(), "reports", nil, "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reports")

	err = p.Publish(context.Background(), "reports", nil, func() {})
	assert.ErrorContains(t, err, "marshal value")
}

func TestConsumerProcessRetriesThenDeadLetters(t *testing.T) {
	dlq := &fakeWriter{}
	c := newConsumer(&ConsumerConfig{
		RetryMax:   2,
		BackoffMin: time.Millisecond,
		BackoffMax: 2 * time.Millisecond,
		DLQTopic:   "risklens.requests.dlq",
		BufferSize: 1,
	}, dlq)

	h := &countingHandler{err: errors.New("boom")}
	msg := &message{topic: h.Topic(), data: []byte(`{"symbol":"SPY"}`), km: kafka.Message{Key: []byte("SPY")}}

	assert.True(t, c.process(h, msg))
	assert.Equal(t, 3, h.calls)
	require.Len(t, dlq.msgs, 1)
	assert.Equal(t, "risklens.requests.dlq", dlq.msgs[0].Topic)
	assert.Equal(t, "source_topic", dlq.msgs[0].Headers[0].Key)
	assert.Equal(t, "boom", string(dlq.msgs[0].Headers[1].Value))
}

func TestConsumerProcessSuccessAndNoDLQ(t *testing.T) {
	c := newConsumer(&ConsumerConfig{RetryMax: 0, BufferSize: 1}, nil)
	ok := &countingHandler{}
	assert.True(t, c.process(ok, &message{topic: ok.Topic()}))
	assert.Equal(t, 1, ok.calls)

	bad := &countingHandler{err: errors.New("boom")}
	assert.False(t, c.process(bad, &message{topic: bad.Topic()}))
}

func TestConsumerDoesNotRetryHandlerHookErrors(t *testing.T) {
	dlq := &fakeWriter{}
	c := newConsumer(&ConsumerConfig{RetryMax: 5, BackoffMin: time.Millisecond, BackoffMax: time.Millisecond, DLQTopic: "dlq", BufferSize: 1}, dlq)
	h := &countingHandler{err: &HookError{Code: "ERR_VALIDATION", Err: errors.New("symbol required")}}
	assert.True(t, c.process(h, &message{topic: h.Topic()}))
	assert.Equal(t, 1, h.calls)
	require.Len(t, dlq.msgs, 1)
	assert.Contains(t, string(dlq.msgs[0].Headers[1].Value), "symbol required")
}

func TestConsumerHookRejectsMessage(t *testing.T) {
	dlq := &fakeWriter{}
	c := newConsumer(&ConsumerConfig{DLQTopic: "dlq", BufferSize: 1}, dlq)
	c.WithConsumerHook(HookFuncs{
		Before: func(ctx context.Context, _ string, km kafka.Message, data []byte) (context.Context, kafka.Message, []byte, error) {
			return ctx, km, data, &HookError{Code: "ERR_VALIDATION"}
		},
	})
	h := &countingHandler{}
	assert.True(t, c.process(h, &message{topic: h.Topic()}))
	assert.Zero(t, h.calls)
	assert.Len(t, dlq.msgs, 1)
}

func TestHookChainIsPanicSafe(t *testing.T) {
	var order []string
	var errs int
	first := HookFuncs{
		Before: func(ctx context.Context, _ string, km kafka.Message, data []byte) (context.Context, kafka.Message, []byte, error) {
			order = append(order, "before-1")
			return WithTraceID(ctx, "abc"), km, data, nil
		},
		After: func(context.Context, string, kafka.Message, []byte, error) { order = append(order, "after-1") },
		Err:   func(context.Context, string, kafka.Message, []byte, error) { errs++ },
	}
	second := HookFuncs{
		After: func(ctx context.Context, _ string, _ kafka.Message, _ []byte, _ error) {
			order = append(order, "after-2:"+TraceID(ctx))
		},
	}
	chain := NewHookChain(first, nil, second)

	ctx, _, _, err := chain.BeforeHandle(context.Background(), "t", kafka.Message{}, nil)
	require.NoError(t, err)
	chain.AfterHandle(ctx, "t", kafka.Message{}, nil, nil)
	assert.Equal(t, []string{"before-1", "after-2:abc", "after-1"}, order)

	panicky := HookFuncs{
		Before: func(context.Context, string, kafka.Message, []byte) (context.Context, kafka.Message, []byte, error) {
			panic("bad hook")
		},
	}
	_, _, _, err = NewHookChain(first, panicky).BeforeHandle(context.Background(), "t", kafka.Message{}, nil)
	var he *HookError
	require.ErrorAs(t, err, &he)
	assert.Equal(t, "ERR_PANIC", he.Code)
	assert.Equal(t, 1, errs)
}

func TestBackoffWithJitterBounds(t *testing.T) {
	for attempt := 1; attempt < 70; attempt++ {
		d := backoffWithJitter(10*time.Millisecond, time.Second, attempt)
		assert.Greater(t, d, time.Duration(0))
		assert.LessOrEqual(t, d, time.Second)
	}
}
