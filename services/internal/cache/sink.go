package cache

import (
	"context"

	"github.com/02loveslollipop/smart-sensor-dashboard/services/internal/etl"
)

// InvalidationSink retires cached API responses after each load.
type InvalidationSink struct {
	Cache *Cache
}

func (s InvalidationSink) Name() string { return "cache" }

func (s InvalidationSink) Publish(ctx context.Context, _ etl.Result) error {
	_, err := s.Cache.Invalidate(ctx)
	return err
}
