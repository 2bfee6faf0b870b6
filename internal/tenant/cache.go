package tenant

import (
	"time"

	"github.com/dgraph-io/ristretto/v2"

	"github.com/tgmkubi/restaurant-sst-api/internal/model"
)

// cache keeps recently resolved active companies for a short time. Only hits
// are cached so a newly created company is visible at once; deactivation is
// visible after Invalidate or, in other processes, once the TTL expires. The
// TTL bounds how long a deactivated company can still be served.
type cache struct {
	c   *ristretto.Cache[string, model.Company]
	ttl time.Duration
}

// newCache returns nil when ttl is not positive, which disables caching.
func newCache(ttl time.Duration, maxEntries int64) (*cache, error) {
	if ttl <= 0 {
		return nil, nil
	}
	if maxEntries <= 0 {
		maxEntries = 10000
	}
	c, err := ristretto.NewCache(&ristretto.Config[string, model.Company]{
		NumCounters: maxEntries * 10,
		MaxCost:     maxEntries,
		BufferItems: 64,
		// Every entry costs 1, so MaxCost is an entry count.
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, err
	}
	return &cache{c: c, ttl: ttl}, nil
}

func idKey(id ID) string { return "id:" + string(id) }
func subdomainKey(sub string) string { return "sub:" + sub }

func (c *cache) get(key string) (*model.Company, bool) {
	if c == nil {
		return nil, false
	}
	company, ok := c.c.Get(key)
	if !ok {
		return nil, false
	}
	return &company, true
}

func (c *cache) set(company *model.Company) {
	if c == nil {
		return
	}
	c.c.SetWithTTL(idKey(IDFromObjectID(company.ID)), *company, 1, c.ttl)
	if company.Subdomain != "" {
		c.c.SetWithTTL(subdomainKey(company.Subdomain), *company, 1, c.ttl)
	}
}

func (c *cache) invalidate(id ID, subdomain string) {
	if c == nil {
		return
	}
	c.c.Del(idKey(id))
	if subdomain != "" {
		c.c.Del(subdomainKey(subdomain))
	}
}

// wait blocks until buffered writes are applied.
func (c *cache) wait() {
	if c != nil {
		c.c.Wait()
	}
}

func (c *cache) close() {
	if c != nil {
		c.c.Close()
	}
}
