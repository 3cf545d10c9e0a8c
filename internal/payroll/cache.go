package payroll

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const cacheVersionKey = "payroll:reports:version"

// ReportCache stores rendered daily reports in Redis. Keys embed a global
// version; Bump after any write makes every cached report unreachable.
type ReportCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewReportCache instantiates the cache helper. A nil client disables caching.
func NewReportCache(client *redis.Client, ttl time.Duration) *ReportCache {
	return &ReportCache{client: client, ttl: ttl}
}

// Version returns the current cache version, initialising when missing.
func (c *ReportCache) Version(ctx context.Context) (int64, error) {
	if c == nil || c.client == nil {
		return 0, nil
	}
	ver, err := c.client.Get(ctx, cacheVersionKey).Int64()
	if errors.Is(err, redis.Nil) {
		if err := c.client.SetNX(ctx, cacheVersionKey, 1, 0).Err(); err != nil {
			return 0, err
		}
		return 1, nil
	}
	if err != nil {
		return 0, err
	}
	return ver, nil
}

// BuildKey composes a versioned key from parts.
func (c *ReportCache) BuildKey(ctx context.Context, parts ...string) (string, error) {
	joined := strings.Join(parts, ":")
	if c == nil || c.client == nil {
		return joined, nil
	}
	ver, err := c.Version(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s:v%d", joined, ver), nil
}

// FetchReport returns the cached report for key or builds and stores it.
func (c *ReportCache) FetchReport(ctx context.Context, key string, build func(context.Context) (DailyReport, error)) (DailyReport, error) {
	if build == nil {
		return DailyReport{}, errors.New("payroll: cache loader required")
	}
	if c == nil || c.client == nil {
		return build(ctx)
	}
	payload, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		var report DailyReport
		if err := json.Unmarshal(payload, &report); err == nil {
			return report, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		return DailyReport{}, err
	}
	report, err := build(ctx)
	if err != nil {
		return DailyReport{}, err
	}
	raw, err := json.Marshal(report)
	if err != nil {
		return DailyReport{}, err
	}
	if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		return DailyReport{}, err
	}
	return report, nil
}

// Bump invalidates all cached reports.
func (c *ReportCache) Bump(ctx context.Context) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Incr(ctx, cacheVersionKey).Err()
}

func reportCacheKey(date time.Time, projectID string) []string {
	project := projectID
	if project == "" {
		project = "-"
	}
	return []string{"payroll", "report", ReportKey(date), project}
}
