// Package jobs holds the background jobs run by the API server.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/cras-gestao/gestao-suas/internal/metrics"
	"github.com/cras-gestao/gestao-suas/pkg/domain"
)

const sweepTimeout = time.Minute

// ExpiringTenantLister lists tenants whose expiration falls before t.
type ExpiringTenantLister interface {
	ListExpiringBefore(ctx context.Context, t time.Time) ([]*domain.Tenant, error)
}

// SweepResult counts the tenants found by one sweep.
type SweepResult struct {
	NearExpiry int
	Expired    int
}

// ExpirySweeper reports tenants past or near their expiration. It never
// changes tenant state; requests to expired tenants are rejected at resolution.
type ExpirySweeper struct {
	tenants ExpiringTenantLister
	metrics *metrics.Metrics
	logger  *slog.Logger
	now     func() time.Time
}

// NewExpirySweeper creates a sweeper. m may be nil.
func NewExpirySweeper(tenants ExpiringTenantLister, m *metrics.Metrics, logger *slog.Logger) *ExpirySweeper {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExpirySweeper{tenants: tenants, metrics: m, logger: logger, now: time.Now}
}

// Sweep runs one pass.
func (s *ExpirySweeper) Sweep(ctx context.Context) (SweepResult, error) {
	now := s.now()
	list, err := s.tenants.ListExpiringBefore(ctx, now.Add(domain.NearExpiryWindow))
	if err != nil {
		return SweepResult{}, fmt.Errorf("list expiring tenants: %w", err)
	}

	var res SweepResult
	for _, t := range list {
		days, err := t.CheckLifecycle(now)
		if err != nil {
			res.Expired++
			s.logger.Warn("tenant expired",
				"tenant_id", t.ID,
				"subdomain", t.Subdomain,
				"expires_at", t.ExpiresAt,
			)
			continue
		}
		if days >= 0 {
			res.NearExpiry++
			s.logger.Info("tenant near expiry",
				"tenant_id", t.ID,
				"subdomain", t.Subdomain,
				"days_remaining", days,
			)
		}
	}

	if s.metrics != nil {
		s.metrics.TenantsNearExpiry.Set(float64(res.NearExpiry))
		s.metrics.TenantsExpired.Set(float64(res.Expired))
	}
	return res, nil
}

// Schedule registers the sweeper on c under the given cron spec.
func (s *ExpirySweeper) Schedule(c *cron.Cron, spec string) (cron.EntryID, error) {
	id, err := c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
		defer cancel()

		res, err := s.Sweep(ctx)
		if err != nil {
			s.logger.Error("tenant expiry sweep failed", "error", err)
			return
		}
		s.logger.Info("tenant expiry sweep completed",
			"near_expiry", res.NearExpiry,
			"expired", res.Expired,
		)
	})
	if err != nil {
		return 0, fmt.Errorf("schedule expiry sweep %q: %w", spec, err)
	}
	return id, nil
}
