package analytics

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ReportCache keeps rendered reports in Redis for a short TTL so bursts of
// dashboard refreshes do not re-run the aggregation. A nil client or
// non-positive TTL disables it.
type ReportCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

func NewReportCache(client *redis.Client, ttl time.Duration, logger *zap.Logger) *ReportCache {
	return &ReportCache{client: client, ttl: ttl, logger: logger}
}

func (c *ReportCache) Enabled() bool {
	return c != nil && c.client != nil && c.ttl > 0
}

func cacheKey(shopDomain, startDate, endDate string) string {
	return "report:" + shopDomain + ":" + startDate + ":" + endDate
}

// Get returns the cached reports, or nil on miss. Cache errors are logged
// and treated as misses.
func (c *ReportCache) Get(ctx context.Context, shopDomain, startDate, endDate string) []*PageReport {
	if !c.Enabled() {
		return nil
	}

	raw, err := c.client.Get(ctx, cacheKey(shopDomain, startDate, endDate)).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("report cache get failed", zap.Error(err))
		}
		return nil
	}

	var reports []*PageReport
	if err := json.Unmarshal(raw, &reports); err != nil {
		c.logger.Warn("report cache entry corrupt", zap.Error(err))
		return nil
	}
	return reports
}

// Set stores the reports best effort.
func (c *ReportCache) Set(ctx context.Context, shopDomain, startDate, endDate string, reports []*PageReport) {
	if !c.Enabled() {
		return
	}

	raw, err := json.Marshal(reports)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, cacheKey(shopDomain, startDate, endDate), raw, c.ttl).Err(); err != nil {
		c.logger.Warn("report cache set failed", zap.Error(err))
	}
}
