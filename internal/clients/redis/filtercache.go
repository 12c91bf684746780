package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/velora-hq/threadboard-backend/internal/logger"
	"github.com/velora-hq/threadboard-backend/internal/types"
	"github.com/velora-hq/threadboard-backend/internal/utils"
)

const filterValuesKey = "threadboard:filter_values"

// FilterCache caches the distinct operator/model values behind GET /filters.
// It is optional infrastructure: the service runs without it when REDIS_ADDR
// is unset, and every cache error degrades to a database read.
type FilterCache struct {
	log *logger.Logger
	rdb *goredis.Client
	ttl time.Duration
}

func NewFilterCache(log *logger.Logger) (*FilterCache, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}

	addr := strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	if addr == "" {
		return nil, fmt.Errorf("missing REDIS_ADDR")
	}
	ttlSec := utils.GetEnvAsInt("FILTER_CACHE_TTL_SECONDS", 60, log)

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &FilterCache{
		log: log.With("client", "FilterCache"),
		rdb: rdb,
		ttl: time.Duration(ttlSec) * time.Second,
	}, nil
}

func (fc *FilterCache) Get(ctx context.Context) (*types.FilterValues, bool) {
	raw, err := fc.rdb.Get(ctx, filterValuesKey).Bytes()
	if err != nil {
		if err != goredis.Nil {
			fc.log.Warn("Filter cache read failed", "error", err)
		}
		return nil, false
	}
	var values types.FilterValues
	if err := json.Unmarshal(raw, &values); err != nil {
		fc.log.Warn("Filter cache payload corrupt, ignoring", "error", err)
		return nil, false
	}
	return &values, true
}

func (fc *FilterCache) Set(ctx context.Context, values *types.FilterValues) {
	raw, err := json.Marshal(values)
	if err != nil {
		return
	}
	if err := fc.rdb.Set(ctx, filterValuesKey, raw, fc.ttl).Err(); err != nil {
		fc.log.Warn("Filter cache write failed", "error", err)
	}
}

func (fc *FilterCache) Close() error {
	return fc.rdb.Close()
}
