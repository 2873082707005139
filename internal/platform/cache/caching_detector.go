// Package cache provides caching decorators for the detection pipeline.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/Kyalo-Caleb/teabot/internal/feature/diagnosis/domain/entity"
	"github.com/Kyalo-Caleb/teabot/internal/feature/diagnosis/usecase"
	"github.com/Kyalo-Caleb/teabot/internal/shared/imagedigest"
)

// CachingDetector decorates a Detector with a Redis cache keyed by image content.
// Identical images within the TTL skip preprocessing and inference. Concurrent
// misses for the same image share one inference call. The shared call runs on
// a context detached from any single caller, so one caller leaving does not
// fail the others.
type CachingDetector struct {
	inner         usecase.Detector
	rdb           *redis.Client
	ttl           time.Duration
	namespace     string
	flightTimeout time.Duration
	group         singleflight.Group
}

// DefaultFlightTimeout bounds a shared inference call.
const DefaultFlightTimeout = 30 * time.Second

var _ usecase.Detector = (*CachingDetector)(nil)

// NewCachingDetector decorates a Detector with Redis caching.
// If ttl is 0, it defaults to 10 minutes. If namespace is empty, it uses "detections".
func NewCachingDetector(rdb *redis.Client, ttl time.Duration, inner usecase.Detector, namespace string) *CachingDetector {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	if namespace == "" {
		namespace = "detections"
	}
	return &CachingDetector{
		inner:         inner,
		rdb:           rdb,
		ttl:           ttl,
		namespace:     namespace,
		flightTimeout: DefaultFlightTimeout,
	}
}

// Detect returns a cached detection for imageData when present, otherwise
// runs the inner detector and stores the result. Errors are never cached.
func (c *CachingDetector) Detect(ctx context.Context, imageData []byte) (*entity.Detection, error) {
	if c.rdb == nil {
		return c.inner.Detect(ctx, imageData)
	}

	key := c.cacheKey(imagedigest.Sum(imageData))

	if b, err := c.rdb.Get(ctx, key).Bytes(); err == nil && len(b) > 0 {
		var det entity.Detection
		if err := json.Unmarshal(b, &det); err == nil {
			return &det, nil
		}
		// Delete corrupted cache entry
		_ = c.rdb.Del(ctx, key).Err()
	}

	ch := c.group.DoChan(key, func() (any, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.flightTimeout)
		defer cancel()

		det, err := c.inner.Detect(fctx, imageData)
		if err != nil {
			return nil, err
		}
		b, err := json.Marshal(det)
		if err != nil {
			slog.Warn("detection not cached", "key", key, "error", err)
			return det, nil
		}
		_ = c.rdb.Set(fctx, key, b, c.ttl).Err()
		return det, nil
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res = <-ch:
	}
	if res.Err != nil {
		return nil, res.Err
	}
	v := res.Val

	// copy so callers sharing a flight cannot mutate each other's result
	det := *v.(*entity.Detection)
	return &det, nil
}

// cacheKey generates a cache key for an image digest.
func (c *CachingDetector) cacheKey(digest string) string {
	return fmt.Sprintf("%s:%s", c.namespace, safe(digest))
}

// safe escapes characters that are problematic for Redis keys.
func safe(s string) string {
	s = strings.ReplaceAll(s, " ", "_")
	s = strings.ReplaceAll(s, ":", "_")
	return s
}
