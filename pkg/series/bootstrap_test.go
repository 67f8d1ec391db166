package series

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/joripage/makerbot/pkg/clock"
	"github.com/joripage/makerbot/pkg/venue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// bookStub serves GetOrderBook from fn; other venue calls are not used.
type bookStub struct {
	venue.Client
	calls int
	fn    func(call int) (*venue.Snapshot, error)
}

func (b *bookStub) GetOrderBook(ctx context.Context, symbol string) (*venue.Snapshot, error) {
	b.calls++
	return b.fn(b.calls)
}

func TestBootstrapCollectsMinHistory(t *testing.T) {
	stub := &bookStub{fn: func(call int) (*venue.Snapshot, error) {
		snap := book("100", "1", "99", "1")
		snap.UpdateID = int64(call)
		return snap, nil
	}}
	clk := clock.NewFake(t0)

	s, err := Bootstrap(context.Background(), stub, clk, BootstrapConfig{
		Market:           "eth_usdc",
		MinHistoryPoints: 5,
		MaxLoadingTime:   time.Minute,
		MaxObsSize:       100,
	})
	require.NoError(t, err)
	assert.Equal(t, 5, s.Len())
	assert.Equal(t, 5, stub.calls)
}

func TestBootstrapSkipsUnchangedBooksAndSwallowsErrors(t *testing.T) {
	stub := &bookStub{fn: func(call int) (*venue.Snapshot, error) {
		if call%2 == 0 {
			return nil, errors.New("timeout")
		}
		snap := book("100", "1", "99", "1")
		snap.UpdateID = int64(call / 4)
		return snap, nil
	}}
	clk := clock.NewFake(t0)

	s, err := Bootstrap(context.Background(), stub, clk, BootstrapConfig{
		MinHistoryPoints: 3,
		MaxLoadingTime:   time.Minute,
		MaxObsSize:       100,
	})
	require.NoError(t, err)
	assert.Equal(t, 3, s.Len())
	// calls 1 and 3 share update id 0, so a fourth odd call is needed
	assert.Equal(t, 9, stub.calls)
}

func TestBootstrapStopsAtMaxLoadingTime(t *testing.T) {
	stub := &bookStub{fn: func(int) (*venue.Snapshot, error) {
		return nil, errors.New("book unavailable")
	}}
	clk := clock.NewFake(t0)

	s, err := Bootstrap(context.Background(), stub, clk, BootstrapConfig{
		MinHistoryPoints: 1000,
		MaxLoadingTime:   2 * time.Second,
		MaxObsSize:       100,
	})
	require.NoError(t, err)
	assert.Equal(t, 0, s.Len())
	assert.Equal(t, 20, stub.calls)
	assert.Equal(t, t0.Add(2*time.Second), clk.Now())
}

func TestBootstrapHonoursContext(t *testing.T) {
	stub := &bookStub{fn: func(int) (*venue.Snapshot, error) {
		return nil, errors.New("down")
	}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Bootstrap(ctx, stub, clock.Real{}, BootstrapConfig{MinHistoryPoints: 1, MaxLoadingTime: time.Hour, MaxObsSize: 1})
	require.ErrorIs(t, err, context.Canceled)
}
