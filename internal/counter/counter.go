// Package counter provides the keyed activity counters the scheduler reads:
// total page views, views since the last synthetic activity, and human posts
// since the last synthetic activity.
package counter

import "context"

// Store is the counter backend. The SQL store satisfies it directly; Redis
// is selected in main when REDIS_URL is configured.
type Store interface {
	IncrementCounter(ctx context.Context, name string, delta int64) (int64, error)
	GetCounter(ctx context.Context, name string) (int64, error)
	ResetCounters(ctx context.Context, names ...string) error
}
