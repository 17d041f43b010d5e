package cache

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache guarda snapshots de rodada no Redis para aliviar leituras repetidas.
// O TTL é curto de propósito: o estado da rodada muda a cada aposta.
type Cache struct{ R *redis.Client }

func New(r *redis.Client) *Cache { return &Cache{R: r} }

func keyRound(roundID uint64) string { return "round:" + strconv.FormatUint(roundID, 10) }

func (c *Cache) GetRound(ctx context.Context, roundID uint64, dst any) (bool, error) {
	b, err := c.R.Get(ctx, keyRound(roundID)).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, json.Unmarshal(b, dst)
}

func (c *Cache) SetRound(ctx context.Context, roundID uint64, v any, ttl time.Duration) error {
	b, _ := json.Marshal(v)
	return c.R.Set(ctx, keyRound(roundID), b, ttl).Err()
}

// InvalidateRound remove o snapshot após uma mutação, pra leitura seguinte
// já refletir o novo estado.
func (c *Cache) InvalidateRound(ctx context.Context, roundID uint64) {
	_ = c.R.Del(ctx, keyRound(roundID)).Err()
}
