package kafka

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

func TestProducer_Publish(t *testing.T) {
	w := &fakeWriter{}
	p := newProducer(w, "analytics-events")
	ctx := context.Background()

	require.NoError(t, p.Publish(ctx, Event{Key: "analytics", Value: map[string]int{"hits": 3}}))
	require.NoError(t, p.PublishBatch(ctx, nil))
	require.Len(t, w.msgs, 1)
	assert.Equal(t, "analytics", string(w.msgs[0].Key))
	assert.JSONEq(t, `{"hits":3}`, string(w.msgs[0].Value))
	assert.Equal(t, "analytics-events", p.Topic())

	err := p.PublishBatch(ctx, []Event{{Value: 1}, {Key: "bad", Value: make(chan int)}})
	assert.ErrorContains(t, err, `event 1 (key "bad")`)
	assert.Len(t, w.msgs, 1, "nothing written when any value fails to encode")

	w.err = errors.New("broker down")
	assert.ErrorContains(t, p.Publish(ctx, Event{Value: 2}), "broker down")

	published, failed := p.Stats()
	assert.Equal(t, int64(1), published)
	assert.Equal(t, int64(1), failed)
}

type fakeReader struct {
	mu        sync.Mutex
	queue     []kafka.Message
	fetchErrs []error
	committed []int64
	closed    int
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if len(r.fetchErrs) > 0 {
		err := r.fetchErrs[0]
		r.fetchErrs = r.fetchErrs[1:]
		r.mu.Unlock()
		return kafka.Message{}, err
	}
	if len(r.queue) > 0 {
		m := r.queue[0]
		r.queue = r.queue[1:]
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
	defer r.mu.Unlock()
	r.closed++
	return nil
}

func (r *fakeReader) commits() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int64(nil), r.committed...)
}

func TestConsumer_HandlesAndCommits(t *testing.T) {
	r := &fakeReader{
		fetchErrs: []error{errors.New("leader not available")},
		queue: []kafka.Message{
			{Offset: 1, Value: []byte(`{"n":1}`)},
			{Offset: 2, Value: []byte(`bad`)},
			{Offset: 3, Value: []byte(`{"n":3}`)},
		},
	}
	var seen []int
	c := newConsumer(r, "t", func(_ context.Context, _, value []byte) error {
		v, err := DecodeJSON[struct{ N int }](value)
		if err != nil {
			return err
		}
		seen = append(seen, v.N)
		return nil
	})
	c.backoff = time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Start(ctx) }()

	assert.Eventually(t, func() bool { return len(r.commits()) == 3 }, time.Second, time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	assert.Equal(t, []int{1, 3}, seen)
	assert.Equal(t, []int64{1, 2, 3}, r.commits())
	handled, rejected := c.Stats()
	assert.Equal(t, int64(2), handled)
	assert.Equal(t, int64(1), rejected)

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
	assert.Equal(t, 1, r.closed)
}

func TestConsumer_StopsWhenReaderClosed(t *testing.T) {
	r := &fakeReader{fetchErrs: []error{io.EOF}}
	c := newConsumer(r, "t", func(context.Context, []byte, []byte) error { return nil })
	assert.NoError(t, c.Start(context.Background()))
}
