package worker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/joripage/makerbot/pkg/journal/model"
	"github.com/joripage/makerbot/pkg/journal/repo"
	kafkawrapper "github.com/joripage/makerbot/pkg/kafka_wrapper"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRepo struct {
	err     error
	created []*model.ActionEvent
}

func (r *fakeRepo) ActionEvent() repo.IActionEvent { return r }

func (r *fakeRepo) Create(_ context.Context, record *model.ActionEvent) (*model.ActionEvent, error) {
	r.created = append(r.created, record)
	return record, r.err
}

func (r *fakeRepo) BulkCreate(_ context.Context, records []*model.ActionEvent) ([]*model.ActionEvent, error) {
	if r.err != nil {
		return nil, r.err
	}
	r.created = append(r.created, records...)
	return records, nil
}

func (r *fakeRepo) ListByMarket(context.Context, string, int) ([]*model.ActionEvent, error) {
	return r.created, nil
}

func encode(t *testing.T, ev *model.ActionEvent) []byte {
	t.Helper()
	b, err := json.Marshal(ev)
	require.NoError(t, err)
	return b
}

func TestHandleKafkaBatch(t *testing.T) {
	r := &fakeRepo{}
	w := NewWorker(r)

	ev := model.NewActionEvent("tick", "ETH_USDC", model.KindPlace, "3", time.Unix(10, 0).UTC())
	ev.Side = "BUY"
	ev.Price = decimal.RequireFromString("99.5")
	ev.Amount = decimal.RequireFromString("1.25")

	err := w.HandleKafkaBatch(context.Background(), []kafkawrapper.Message{
		{Value: encode(t, ev)},
		{Value: []byte("{broken")},
		{Value: []byte(`{"order_id":"4"}`)},
	})
	require.NoError(t, err)
	require.Len(t, r.created, 1)
	got := r.created[0]
	assert.Equal(t, ev.EventID, got.EventID)
	assert.True(t, ev.Price.Equal(got.Price))
	assert.True(t, ev.Amount.Equal(got.Amount))
	assert.True(t, ev.Timestamp.Equal(got.Timestamp))
}

func TestHandleKafkaBatchFailsOnStoreError(t *testing.T) {
	r := &fakeRepo{err: errors.New("db down")}
	w := NewWorker(r)

	ev := model.NewActionEvent("tick", "ETH_USDC", model.KindCancel, "3", time.Unix(10, 0))
	err := w.HandleKafkaBatch(context.Background(), []kafkawrapper.Message{{Value: encode(t, ev)}})
	assert.Error(t, err)
}
