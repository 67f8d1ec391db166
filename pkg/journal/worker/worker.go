package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/joripage/makerbot/pkg/journal/model"
	"github.com/joripage/makerbot/pkg/journal/repo"
	kafkawrapper "github.com/joripage/makerbot/pkg/kafka_wrapper"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

const fetchBatch = 10

type Worker struct {
	actionEvent repo.IActionEvent
}

func NewWorker(repo repo.IRepo) *Worker {
	return &Worker{
		actionEvent: repo.ActionEvent(),
	}
}

// StartConsumer pulls journal events from a durable JetStream consumer until
// ctx is done. Malformed events are acked and dropped; events that fail to
// store are left for redelivery.
func (w *Worker) StartConsumer(ctx context.Context, js nats.JetStreamContext, subject, durable string) error {
	cons, err := js.PullSubscribe(subject, durable)
	if err != nil {
		return err
	}
	defer cons.Unsubscribe() // nolint

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		fetchCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		msgs, err := cons.Fetch(fetchBatch, nats.Context(fetchCtx))
		cancel()
		if err != nil {
			if !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, nats.ErrTimeout) {
				zap.S().Warnf("fetch error: %v", err)
			}
			continue
		}

		for _, msg := range msgs {
			ev, err := decode(msg.Data)
			if err != nil {
				zap.S().Warnf("drop malformed event: %v", err)
				_ = msg.Ack()
				continue
			}
			if _, err := w.actionEvent.Create(ctx, ev); err != nil {
				zap.S().Errorf("store event %s: %v", ev.EventID, err)
				continue
			}
			_ = msg.Ack()
		}
	}
}

// HandleKafkaBatch stores one batch from the kafka consumer group. Malformed
// messages are skipped; a store failure fails the whole batch so it is retried.
func (w *Worker) HandleKafkaBatch(ctx context.Context, msgs []kafkawrapper.Message) error {
	events := make([]*model.ActionEvent, 0, len(msgs))
	for _, m := range msgs {
		ev, err := decode(m.Value)
		if err != nil {
			zap.S().Warnf("drop malformed event at %s/%d/%d: %v", m.Topic, m.Partition, m.Offset, err)
			continue
		}
		events = append(events, ev)
	}
	_, err := w.actionEvent.BulkCreate(ctx, events)
	return err
}

func decode(data []byte) (*model.ActionEvent, error) {
	var ev model.ActionEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, err
	}
	if ev.EventID == "" {
		return nil, errors.New("event without id")
	}
	return &ev, nil
}
