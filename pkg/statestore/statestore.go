// Package statestore publishes the bot's latest status to redis so other
// processes can watch a running market maker.
package statestore

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/joripage/makerbot/pkg/series"
)

const DefaultPrefix = "makerbot"

// Status is the snapshot written after every evaluated tick.
type Status struct {
	Market      string
	Mid         decimal.NullDecimal
	Micro       decimal.NullDecimal
	Imbalance   decimal.NullDecimal
	Buying      bool
	Band        series.Band
	BuyOrderID  string
	ActiveSells int
	Reason      string
	UpdatedAt   time.Time
}

type Store interface {
	Publish(ctx context.Context, st Status) error
	Load(ctx context.Context, market string) (map[string]string, error)
}

type RedisStore struct {
	client redis.Cmdable
	prefix string
	ttl    time.Duration
}

func NewRedisStore(client redis.Cmdable, prefix string, ttl time.Duration) *RedisStore {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &RedisStore{client: client, prefix: prefix, ttl: ttl}
}

func (s *RedisStore) Key(market string) string {
	return s.prefix + ":" + market
}

func (s *RedisStore) Publish(ctx context.Context, st Status) error {
	key := s.Key(st.Market)
	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, key, fields(st))
	if s.ttl > 0 {
		pipe.Expire(ctx, key, s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("publish status %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) Load(ctx context.Context, market string) (map[string]string, error) {
	return s.client.HGetAll(ctx, s.Key(market)).Result()
}

func nullString(d decimal.NullDecimal) string {
	if !d.Valid {
		return ""
	}
	return d.Decimal.String()
}

func bandValue(b series.Band, v float64) string {
	if !b.Valid {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func fields(st Status) map[string]any {
	return map[string]any{
		"mid":          nullString(st.Mid),
		"micro":        nullString(st.Micro),
		"imbalance":    nullString(st.Imbalance),
		"buying":       strconv.FormatBool(st.Buying),
		"bb_sma":       bandValue(st.Band, st.Band.SMA),
		"bb_upper":     bandValue(st.Band, st.Band.Upper),
		"bb_lower":     bandValue(st.Band, st.Band.Lower),
		"buy_order_id": st.BuyOrderID,
		"active_sells": strconv.Itoa(st.ActiveSells),
		"reason":       st.Reason,
		"updated_at":   st.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
}
