package auth

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"

	"github.com/cras-gestao/gestao-suas/pkg/domain"
)

// TenantStore looks tenants up by subdomain.
type TenantStore interface {
	GetBySubdomain(ctx context.Context, subdomain string) (*domain.Tenant, error)
}

// TenantResolverConfig holds tenant resolution settings.
type TenantResolverConfig struct {
	BaseDomain   string
	DevSubdomain string
	Production   bool
	CacheTTL     time.Duration
	CacheSize    int
	Now          func() time.Time
}

// Resolution is a successfully resolved tenant.
type Resolution struct {
	Tenant        *domain.Tenant
	NearExpiry    bool
	DaysRemaining int
}

// TenantResolver maps a request host to an active tenant.
type TenantResolver struct {
	store     TenantStore
	config    TenantResolverConfig
	base      string
	marketing string
	cache     *expirable.LRU[string, *domain.Tenant]
	group     singleflight.Group
}

// NewTenantResolver creates a resolver. Lookups are cached for CacheTTL; the
// lifecycle checks always run against the current clock.
func NewTenantResolver(store TenantStore, config TenantResolverConfig) *TenantResolver {
	if config.DevSubdomain == "" {
		config.DevSubdomain = "demo"
	}
	if config.CacheSize <= 0 {
		config.CacheSize = 1024
	}
	if config.CacheTTL <= 0 {
		config.CacheTTL = time.Minute
	}
	if config.Now == nil {
		config.Now = time.Now
	}

	base := strings.ToLower(strings.TrimSpace(config.BaseDomain))
	marketing, _, _ := strings.Cut(base, ".")

	return &TenantResolver{
		store:     store,
		config:    config,
		base:      base,
		marketing: marketing,
		cache:     expirable.NewLRU[string, *domain.Tenant](config.CacheSize, nil, config.CacheTTL),
	}
}

// Resolve resolves the tenant addressed by host.
func (r *TenantResolver) Resolve(ctx context.Context, host string) (*Resolution, error) {
	subdomain, err := r.Subdomain(host)
	if err != nil {
		return nil, err
	}

	tenant, err := r.lookup(ctx, subdomain)
	if err != nil {
		return nil, err
	}
	// The platform tenant is only reachable through the /v1/system routes.
	if tenant.ID == domain.SystemTenantID {
		return nil, domain.ErrTenantNotFound
	}

	days, err := tenant.CheckLifecycle(r.config.Now())
	if err != nil {
		return nil, err
	}

	res := &Resolution{Tenant: tenant, DaysRemaining: -1}
	if days >= 0 {
		res.NearExpiry = true
		res.DaysRemaining = days
	}
	return res, nil
}

// Subdomain extracts the tenant subdomain from host without touching storage.
func (r *TenantResolver) Subdomain(host string) (string, error) {
	host = normalizeHost(host)
	if host == "" {
		return "", domain.ErrInvalidHost
	}

	if host == "localhost" || net.ParseIP(host) != nil {
		if r.config.Production {
			return "", domain.ErrInvalidHost
		}
		return r.config.DevSubdomain, nil
	}

	candidate, ok := r.firstLabel(host)
	if !ok {
		return "", domain.ErrInvalidHost
	}
	if candidate == "" || candidate == "www" || candidate == r.marketing {
		return "", domain.ErrSignupRedirect
	}
	return candidate, nil
}

// firstLabel returns the label in front of the base domain, or "" for the
// base domain itself. Hosts outside the base domain, or with more than one
// label in front of it, are rejected. Without a base domain any host of three
// or more labels is accepted.
func (r *TenantResolver) firstLabel(host string) (string, bool) {
	if r.base == "" {
		labels := strings.Split(host, ".")
		if len(labels) < 3 || labels[0] == "" {
			return "", false
		}
		return labels[0], true
	}

	if host == r.base {
		return "", true
	}
	label, ok := strings.CutSuffix(host, "."+r.base)
	if !ok || label == "" || strings.Contains(label, ".") {
		return "", false
	}
	return label, true
}

// IsMarketingHost reports whether host is the public signup site.
func (r *TenantResolver) IsMarketingHost(host string) bool {
	_, err := r.Subdomain(host)
	return errors.Is(err, domain.ErrSignupRedirect)
}

// Invalidate drops a cached tenant after it was modified. Only this process's
// cache is cleared; other replicas keep serving their copy for up to CacheTTL.
func (r *TenantResolver) Invalidate(subdomain string) {
	r.cache.Remove(strings.ToLower(subdomain))
}

func (r *TenantResolver) lookup(ctx context.Context, subdomain string) (*domain.Tenant, error) {
	if cached, ok := r.cache.Get(subdomain); ok {
		t := *cached
		return &t, nil
	}

	// The shared lookup must not fail for every waiter because the caller
	// that started it went away.
	shared := context.WithoutCancel(ctx)
	v, err, _ := r.group.Do(subdomain, func() (any, error) {
		tenant, err := r.store.GetBySubdomain(shared, subdomain)
		if err != nil {
			return nil, err
		}
		r.cache.Add(subdomain, tenant)
		return tenant, nil
	})
	if err != nil {
		return nil, err
	}

	t := *v.(*domain.Tenant)
	return &t, nil
}

func normalizeHost(host string) string {
	host = strings.TrimSpace(host)
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	host = strings.TrimSuffix(host, ".")
	return strings.ToLower(host)
}

// MarketingLabel returns the first label of the base domain, which no tenant may claim.
func (r *TenantResolver) MarketingLabel() string {
	return r.marketing
}
