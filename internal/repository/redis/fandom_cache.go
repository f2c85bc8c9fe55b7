package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"fanradar/internal/model"
)

const FandomKeyPrefix = "fanradar:fandom"

// FandomCache fandom 详情的读缓存，写路径提交后失效
type FandomCache struct {
	Client *redis.Client
	TTL    time.Duration
}

func fandomKey(id uint64) string {
	return fmt.Sprintf("%s:%d", FandomKeyPrefix, id)
}

// Get 未命中时返回 (nil, nil)
func (c *FandomCache) Get(ctx context.Context, id uint64) (*model.Fandom, error) {
	raw, err := c.Client.Get(ctx, fandomKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var f model.Fandom
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, err
	}
	return &f, nil
}

func (c *FandomCache) Set(ctx context.Context, f *model.Fandom) error {
	raw, err := json.Marshal(f)
	if err != nil {
		return err
	}
	return c.Client.Set(ctx, fandomKey(f.ID), raw, c.TTL).Err()
}

func (c *FandomCache) Invalidate(ctx context.Context, id uint64) error {
	return c.Client.Del(ctx, fandomKey(id)).Err()
}
