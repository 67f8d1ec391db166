package kafkawrapper

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	kafka "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeReader struct {
	mu        sync.Mutex
	pending   []kafka.Message
	committed []kafka.Message
}

func (f *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	f.mu.Lock()
	if len(f.pending) > 0 {
		m := f.pending[0]
		f.pending = f.pending[1:]
		f.mu.Unlock()
		return m, nil
	}
	f.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (f *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.committed = append(f.committed, msgs...)
	return nil
}

func (f *fakeReader) Close() error { return nil }

type fakeWriter struct {
	mu      sync.Mutex
	written []kafka.Message
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.written = append(f.written, msgs...)
	return nil
}

func (f *fakeWriter) Close() error { return nil }

func messages(values ...string) []kafka.Message {
	out := make([]kafka.Message, len(values))
	for i, v := range values {
		out[i] = kafka.Message{
			Topic:   "makerbot.actions",
			Offset:  int64(i),
			Key:     []byte("ETH_USDC"),
			Value:   []byte(v),
			Headers: []kafka.Header{{Key: "market", Value: []byte("ETH_USDC")}},
		}
	}
	return out
}

func TestReadBatchesFlushesPartialBatch(t *testing.T) {
	r := &fakeReader{pending: messages("a", "b", "c")}
	cg := &ConsumerGroup{r: r, cfg: ConsumerConfig{BatchSize: 10, BatchTimeout: 20 * time.Millisecond}}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	batches := make(chan []kafka.Message, 1)
	go cg.readBatches(ctx, batches)

	select {
	case b := <-batches:
		require.Len(t, b, 3)
		assert.Equal(t, "a", string(b[0].Value))
		assert.Equal(t, "c", string(b[2].Value))
	case <-time.After(time.Second):
		t.Fatal("partial batch was not handed over")
	}

	cancel()
	for range batches {
	}
}

func TestReadBatchesSplitsAtBatchSize(t *testing.T) {
	r := &fakeReader{pending: messages("a", "b", "c")}
	cg := &ConsumerGroup{r: r, cfg: ConsumerConfig{BatchSize: 2, BatchTimeout: 20 * time.Millisecond}}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	batches := make(chan []kafka.Message, 2)
	go cg.readBatches(ctx, batches)

	var sizes []int
	for len(sizes) < 2 {
		select {
		case b := <-batches:
			sizes = append(sizes, len(b))
		case <-time.After(time.Second):
			t.Fatal("batch was not handed over")
		}
	}
	assert.Equal(t, []int{2, 1}, sizes)
}

func TestHandleBatchSendsFailuresToDLQ(t *testing.T) {
	r := &fakeReader{}
	w := &fakeWriter{}
	cg := &ConsumerGroup{
		r:          r,
		cfg:        ConsumerConfig{DLQTopic: "makerbot.actions.dlq"},
		prodForDLQ: &Producer{w: w},
	}
	ms := messages("a", "b")

	calls := 0
	cg.handleBatch(context.Background(), ms, func(_ context.Context, batch []Message) error {
		calls++
		assert.Len(t, batch, 2)
		return errors.New("journal unavailable")
	})

	assert.Equal(t, 1, calls)
	require.Len(t, w.written, 2)
	for i, m := range w.written {
		assert.Equal(t, "makerbot.actions.dlq", m.Topic)
		assert.Equal(t, ms[i].Value, m.Value)
		assert.Equal(t, ms[i].Key, m.Key)
		require.Len(t, m.Headers, 1)
		assert.Equal(t, "market", m.Headers[0].Key)
	}
	assert.Len(t, r.committed, 2)
}

func TestHandleBatchRetriesThenCommits(t *testing.T) {
	r := &fakeReader{}
	w := &fakeWriter{}
	cg := &ConsumerGroup{
		r:          r,
		cfg:        ConsumerConfig{DLQTopic: "makerbot.actions.dlq", MaxRetries: 2, BackoffMin: time.Millisecond, BackoffMax: time.Millisecond},
		prodForDLQ: &Producer{w: w},
	}

	calls := 0
	cg.handleBatch(context.Background(), messages("a"), func(_ context.Context, batch []Message) error {
		calls++
		if calls == 1 {
			return errors.New("journal unavailable")
		}
		assert.Equal(t, "ETH_USDC", batch[0].Headers["market"])
		return nil
	})

	assert.Equal(t, 2, calls)
	assert.Empty(t, w.written)
	assert.Len(t, r.committed, 1)
}

func TestPublishNeedsWriter(t *testing.T) {
	var p *Producer
	assert.Error(t, p.Publish(context.Background(), "t", nil, nil, nil))
	assert.NoError(t, p.Close(context.Background()))

	w := &fakeWriter{}
	p = &Producer{w: w}
	require.NoError(t, p.PublishJSON(context.Background(), "makerbot.actions", "ETH_USDC", map[string]string{"kind": "place"}, nil))
	require.Len(t, w.written, 1)
	assert.JSONEq(t, `{"kind":"place"}`, string(w.written[0].Value))
}
