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

type fakeReader struct {
	mu        sync.Mutex
	pending   []kafka.Message
	committed []int64
	closed    bool
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if len(r.pending) > 0 {
		m := r.pending[0]
		r.pending = r.pending[1:]
		r.mu.Unlock()
		return m, nil
	}
	r.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *fakeReader) Close() error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	return nil
}

func (r *fakeReader) commits() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int64(nil), r.committed...)
}

type flakyHandler struct {
	mu       sync.Mutex
	failures map[string]int
	calls    map[string]int
}

func (h *flakyHandler) Topic() string { return "btcpulse.series" }

func (h *flakyHandler) Handle(_ context.Context, data []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	key := string(data)
	h.calls[key]++
	if h.calls[key] <= h.failures[key] {
		return errors.New("transient")
	}
	return nil
}

func TestConsumerRetriesAndCommits(t *testing.T) {
	reader := &fakeReader{pending: []kafka.Message{
		{Topic: "btcpulse.series", Offset: 1, Value: []byte("ok")},
		{Topic: "btcpulse.series", Offset: 2, Value: []byte("flaky")},
		{Topic: "btcpulse.series", Offset: 3, Value: []byte("poison")},
	}}
	h := &flakyHandler{
		failures: map[string]int{"flaky": 1, "poison": 100},
		calls:    map[string]int{},
	}

	c, err := NewConsumer(nil,
		WithConsumerBrokers([]string{"localhost:9092"}),
		WithConsumerRetry(2, time.Millisecond, 2*time.Millisecond),
	)
	require.NoError(t, err)
	c.newReader = func(string) Reader { return reader }
	c.RegisterHandler(h)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	require.Eventually(t, func() bool { return len(reader.commits()) == 3 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	assert.Equal(t, []int64{1, 2, 3}, reader.commits())
	h.mu.Lock()
	defer h.mu.Unlock()
	assert.Equal(t, 1, h.calls["ok"])
	assert.Equal(t, 2, h.calls["flaky"])
	assert.Equal(t, 3, h.calls["poison"])
	assert.True(t, reader.closed)
}

func TestConsumerRequiresBrokersAndHandlers(t *testing.T) {
	_, err := NewConsumer(nil)
	assert.Error(t, err)

	c, err := NewConsumer(nil, WithConsumerBrokers([]string{"localhost:9092"}))
	require.NoError(t, err)
	assert.Error(t, c.Run(context.Background()))
}

func TestEncode(t *testing.T) {
	b, err := encode(map[string]int{"days": 3})
	require.NoError(t, err)
	assert.JSONEq(t, `{"days":3}`, string(b))

	b, _ = encode("raw")
	assert.Equal(t, "raw", string(b))
}
