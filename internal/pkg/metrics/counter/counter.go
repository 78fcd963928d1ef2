// Package counter accumulates dispatch outcome counters in Redis, one hash
// per calendar day, for cheap operational visibility into the reminder
// pipeline.
package counter

import (
	"context"
	"strconv"
	"time"

	"github.com/yuu19/SubTrack/internal/pkg/cache"
)

const dispatchKeyPrefix = "notify:counters:dispatch:"

func dispatchKey(day time.Time) string {
	return dispatchKeyPrefix + day.UTC().Format("2006-01-02")
}

// AddDispatch folds one dispatch run's counters into today's hash. The hash
// expires after a month; these are working numbers, not an archive.
func AddDispatch(day time.Time, sent, failed, removed int) error {
	ctx := context.Background()
	rdb := cache.GetClient()
	key := dispatchKey(day)

	pipe := rdb.Pipeline()
	pipe.HIncrBy(ctx, key, "sent", int64(sent))
	pipe.HIncrBy(ctx, key, "failed", int64(failed))
	pipe.HIncrBy(ctx, key, "removed", int64(removed))
	pipe.Expire(ctx, key, 31*24*time.Hour)
	_, err := pipe.Exec(ctx)
	return err
}

// ReadDispatch returns the accumulated counters for a day. Missing fields
// read as zero.
func ReadDispatch(day time.Time) (sent, failed, removed int64, err error) {
	ctx := context.Background()
	raw, err := cache.GetClient().HGetAll(ctx, dispatchKey(day)).Result()
	if err != nil {
		return 0, 0, 0, err
	}
	parse := func(field string) int64 {
		n, _ := strconv.ParseInt(raw[field], 10, 64)
		return n
	}
	return parse("sent"), parse("failed"), parse("removed"), nil
}
