package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/coldsend/outreach-engine/internal/domain"
	goredis "github.com/redis/go-redis/v9"
)

const quotaKeyTTLSeconds = 48 * 60 * 60

// reserveScript increments the day counter only while it is below the cap,
// so replicas sharing one provider account cannot overshoot together.
var reserveScript = goredis.NewScript(`
local current = tonumber(redis.call("GET", KEYS[1]) or "0")
if current >= tonumber(ARGV[1]) then
  return 0
end
redis.call("INCR", KEYS[1])
if current == 0 then
  redis.call("EXPIRE", KEYS[1], ARGV[2])
end
return 1
`)

// DailyQuota is a distributed daily send cap backed by Redis, keyed by
// campaign and UTC calendar day.
type DailyQuota struct {
	client     *goredis.Client
	campaignID string
	cap        int64
	now        func() time.Time
	script     *goredis.Script
}

func NewDailyQuota(client *goredis.Client, campaignID string, capPerDay int) (*DailyQuota, error) {
	return newDailyQuota(client, campaignID, int64(capPerDay), time.Now)
}

func newDailyQuota(client *goredis.Client, campaignID string, capPerDay int64, nowFn func() time.Time) (*DailyQuota, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if strings.TrimSpace(campaignID) == "" {
		return nil, fmt.Errorf("campaign id is required")
	}
	if capPerDay <= 0 {
		return nil, fmt.Errorf("daily cap must be positive, got %d", capPerDay)
	}
	if nowFn == nil {
		nowFn = time.Now
	}

	return &DailyQuota{
		client:     client,
		campaignID: campaignID,
		cap:        capPerDay,
		now:        nowFn,
		script:     reserveScript,
	}, nil
}

// Reserve consumes one send from today's budget or fails with
// domain.ErrQuotaExhausted.
func (q *DailyQuota) Reserve(ctx context.Context) error {
	if q == nil || q.client == nil {
		return fmt.Errorf("daily quota is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	key := fmt.Sprintf("quota:%s:%s", q.campaignID, q.now().UTC().Format("2006-01-02"))
	result, err := q.script.Run(ctx, q.client, []string{key}, q.cap, quotaKeyTTLSeconds).Int()
	if err != nil {
		return fmt.Errorf("failed to evaluate daily quota: %w", err)
	}
	if result == 0 {
		return fmt.Errorf("%w: daily cap %d reached for campaign %s", domain.ErrQuotaExhausted, q.cap, q.campaignID)
	}

	return nil
}
