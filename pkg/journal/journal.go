// Package journal records every order action the bot executes and forwards
// it to the configured sinks.
package journal

import (
	"context"
	"errors"
	"io"

	eventstore "github.com/joripage/makerbot/pkg/journal/event_store"
	"github.com/joripage/makerbot/pkg/journal/model"
	"github.com/joripage/makerbot/pkg/logging"
	"go.uber.org/zap"
)

type Sink interface {
	Name() string
	Record(ctx context.Context, ev *model.ActionEvent) error
}

type Journal struct {
	store eventstore.EventStore
	sinks []Sink
}

func New(store eventstore.EventStore, sinks ...Sink) *Journal {
	return &Journal{store: store, sinks: sinks}
}

// Record stores ev and forwards it to every sink. Sink failures are logged
// and never stop the bot.
func (j *Journal) Record(ctx context.Context, ev *model.ActionEvent) {
	j.store.AddEvent(ev)

	for _, s := range j.sinks {
		if err := s.Record(ctx, ev); err != nil {
			logging.GetLogger(ctx).Error(ctx, "journal sink failed",
				zap.String("sink", s.Name()),
				zap.String("event_id", ev.EventID),
				zap.Error(err))
		}
	}
}

func (j *Journal) Store() eventstore.EventStore {
	return j.store
}

// Close closes the sinks that hold connections.
func (j *Journal) Close() error {
	var errs []error
	for _, s := range j.sinks {
		if c, ok := s.(io.Closer); ok {
			errs = append(errs, c.Close())
		}
	}
	return errors.Join(errs...)
}
