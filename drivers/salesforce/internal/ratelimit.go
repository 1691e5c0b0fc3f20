package driver

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/datazip-inc/olake-salesforce/constants"
	"github.com/datazip-inc/olake-salesforce/telemetry"
	"github.com/datazip-inc/olake-salesforce/utils/logger"
)

const (
	defaultQuotaPause   = 30 * time.Second
	defaultQuotaMaxWait = 10 * time.Minute
)

// Governor is the single process-wide gate in front of every Salesforce
// call. It throttles proactively with a token bucket and reactively from
// the org's reported daily usage.
type Governor struct {
	mu sync.Mutex

	limiter      *rate.Limiter
	quotaPercent float64
	used         int64
	limit        int64
	calls        int64
	waited       time.Duration

	pause   time.Duration
	maxWait time.Duration
	sleep   func(ctx context.Context, d time.Duration) error
}

func NewGovernor(requestsPerSecond, quotaPercent float64) *Governor {
	burst := max(1, int(requestsPerSecond))
	return &Governor{
		limiter:      rate.NewLimiter(rate.Limit(requestsPerSecond), burst),
		quotaPercent: quotaPercent,
		pause:        defaultQuotaPause,
		maxWait:      defaultQuotaMaxWait,
		sleep:        sleepContext,
	}
}

// Wait blocks the caller until a request may be sent. Once the run's share
// of the daily budget is spent, no request is admitted until the observed
// usage drops back under it; the accumulated pause is bounded by maxWait.
func (g *Governor) Wait(ctx context.Context) error {
	if err := g.limiter.Wait(ctx); err != nil {
		return err
	}

	for {
		g.mu.Lock()
		if !g.overBudget() {
			g.calls++
			g.mu.Unlock()
			return nil
		}
		g.mu.Unlock()

		if err := g.hold(ctx, g.pause); err != nil {
			return err
		}
	}
}

// Observe records the usage Salesforce reports on every response
func (g *Governor) Observe(header http.Header) {
	used, limit, ok := parseLimitInfo(header.Get(constants.LimitInfoHeader))
	if !ok {
		return
	}

	g.mu.Lock()
	g.used, g.limit = used, limit
	g.mu.Unlock()

	telemetry.QuotaUsed.Set(float64(used) / float64(limit))
}

// Throttle honours a Retry-After from a rate limited response
func (g *Governor) Throttle(ctx context.Context, retryAfter string) error {
	delay := g.pause
	if seconds, err := strconv.Atoi(strings.TrimSpace(retryAfter)); err == nil && seconds >= 0 {
		delay = time.Duration(seconds) * time.Second
	}

	return g.hold(ctx, delay)
}

// Calls counts requests admitted by Wait
func (g *Governor) Calls() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.calls
}

func (g *Governor) Usage() (used, limit int64) {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.used, g.limit
}

func (g *Governor) hold(ctx context.Context, delay time.Duration) error {
	g.mu.Lock()
	if g.waited+delay > g.maxWait {
		err := &RateLimitExceeded{Used: g.used, Limit: g.limit, Waited: g.waited}
		g.mu.Unlock()
		return err
	}
	g.waited += delay
	g.mu.Unlock()

	logger.Warnf("salesforce api budget exhausted, pausing for %s", delay)
	return g.sleep(ctx, delay)
}

func (g *Governor) overBudget() bool {
	if g.limit <= 0 {
		return false
	}

	return float64(g.used)/float64(g.limit)*100 >= g.quotaPercent
}

// parseLimitInfo reads `api-usage=25/15000`
func parseLimitInfo(value string) (int64, int64, bool) {
	for _, part := range strings.Split(value, ",") {
		key, usage, found := strings.Cut(strings.TrimSpace(part), "=")
		if !found || key != "api-usage" {
			continue
		}

		usedText, limitText, found := strings.Cut(usage, "/")
		if !found {
			return 0, 0, false
		}
		used, err := strconv.ParseInt(usedText, 10, 64)
		if err != nil {
			return 0, 0, false
		}
		limit, err := strconv.ParseInt(limitText, 10, 64)
		if err != nil || limit <= 0 {
			return 0, 0, false
		}
		return used, limit, true
	}

	return 0, 0, false
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
