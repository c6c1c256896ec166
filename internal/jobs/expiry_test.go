package jobs

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cras-gestao/gestao-suas/internal/metrics"
	"github.com/cras-gestao/gestao-suas/pkg/domain"
)

var sweepNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

type fakeLister struct {
	tenants []*domain.Tenant
	err     error
	before  time.Time
}

func (f *fakeLister) ListExpiringBefore(_ context.Context, t time.Time) ([]*domain.Tenant, error) {
	f.before = t
	return f.tenants, f.err
}

func expiring(id int64, sub string, at time.Time) *domain.Tenant {
	return &domain.Tenant{ID: id, Subdomain: sub, Status: domain.TenantStatusActive, ExpiresAt: &at}
}

func newSweeper(lister ExpiringTenantLister, m *metrics.Metrics) *ExpirySweeper {
	s := NewExpirySweeper(lister, m, slog.New(slog.NewTextHandler(io.Discard, nil)))
	s.now = func() time.Time { return sweepNow }
	return s
}

func TestSweep(t *testing.T) {
	lister := &fakeLister{tenants: []*domain.Tenant{
		expiring(5, "recife", sweepNow.Add(-48*time.Hour)),
		expiring(7, "paulista", sweepNow.Add(72*time.Hour)),
		expiring(8, "olinda", sweepNow.Add(6*24*time.Hour)),
	}}
	m := metrics.New()

	res, err := newSweeper(lister, m).Sweep(context.Background())
	require.NoError(t, err)

	assert.Equal(t, SweepResult{NearExpiry: 2, Expired: 1}, res)
	assert.Equal(t, sweepNow.Add(domain.NearExpiryWindow), lister.before)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.TenantsNearExpiry))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TenantsExpired))
}

func TestSweep_GaugesResetWhenNothingExpires(t *testing.T) {
	m := metrics.New()
	m.TenantsNearExpiry.Set(4)
	m.TenantsExpired.Set(2)

	res, err := newSweeper(&fakeLister{}, m).Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SweepResult{}, res)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.TenantsNearExpiry))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.TenantsExpired))
}

func TestSweep_ListErrorLeavesGauges(t *testing.T) {
	m := metrics.New()
	m.TenantsExpired.Set(3)

	_, err := newSweeper(&fakeLister{err: errors.New("connection refused")}, m).Sweep(context.Background())
	assert.Error(t, err)
	assert.Equal(t, 3.0, testutil.ToFloat64(m.TenantsExpired))
}

func TestSweep_NilMetrics(t *testing.T) {
	lister := &fakeLister{tenants: []*domain.Tenant{expiring(5, "recife", sweepNow.Add(-time.Hour))}}

	res, err := newSweeper(lister, nil).Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Expired)
}

func TestSchedule(t *testing.T) {
	c := cron.New()
	s := newSweeper(&fakeLister{}, nil)

	_, err := s.Schedule(c, "@hourly")
	require.NoError(t, err)
	assert.Len(t, c.Entries(), 1)

	_, err = s.Schedule(c, "every now and then")
	assert.Error(t, err)
}
