package journal

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/joripage/makerbot/pkg/journal/model"
	"github.com/joripage/makerbot/pkg/journal/repo"
	kafkawrapper "github.com/joripage/makerbot/pkg/kafka_wrapper"
	"github.com/nats-io/nats.go"
)

// RepoSink writes events straight to the journal database.
type RepoSink struct {
	repo repo.IActionEvent
}

func NewRepoSink(r repo.IActionEvent) *RepoSink {
	return &RepoSink{repo: r}
}

func (s *RepoSink) Name() string { return "postgres" }

func (s *RepoSink) Record(ctx context.Context, ev *model.ActionEvent) error {
	_, err := s.repo.Create(ctx, ev)
	return err
}

// KafkaSink publishes events as JSON keyed by market.
type KafkaSink struct {
	producer *kafkawrapper.Producer
	topic    string
}

func NewKafkaSink(producer *kafkawrapper.Producer, topic string) *KafkaSink {
	return &KafkaSink{producer: producer, topic: topic}
}

func (s *KafkaSink) Name() string { return "kafka" }

func (s *KafkaSink) Record(ctx context.Context, ev *model.ActionEvent) error {
	return s.producer.PublishJSON(ctx, s.topic, ev.Market, ev, map[string]string{"kind": string(ev.Kind)})
}

func (s *KafkaSink) Close() error {
	return s.producer.Close(context.Background())
}

// NATSSink publishes events to a JetStream subject, deduplicated by event id.
type NATSSink struct {
	js      nats.JetStreamContext
	subject string
}

func NewNATSSink(js nats.JetStreamContext, subject string) *NATSSink {
	return &NATSSink{js: js, subject: subject}
}

func (s *NATSSink) Name() string { return "nats" }

func (s *NATSSink) Record(ctx context.Context, ev *model.ActionEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	_, err = s.js.Publish(s.subject, data, nats.MsgId(ev.EventID), nats.Context(ctx))
	return err
}

// EnsureStream creates stream with subjects unless it exists.
func EnsureStream(js nats.JetStreamContext, stream string, subjects ...string) error {
	_, err := js.StreamInfo(stream)
	if err == nil {
		return nil
	}
	if !errors.Is(err, nats.ErrStreamNotFound) {
		return err
	}
	_, err = js.AddStream(&nats.StreamConfig{
		Name:     stream,
		Subjects: subjects,
	})
	return err
}
