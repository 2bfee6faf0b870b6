package tenant

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"go.uber.org/zap"

	"github.com/tgmkubi/restaurant-sst-api/internal/database"
	"github.com/tgmkubi/restaurant-sst-api/internal/metrics"
	"github.com/tgmkubi/restaurant-sst-api/internal/model"
	"github.com/tgmkubi/restaurant-sst-api/pkg/config"
)

var (
	// ErrTenantNotFound means no active company matched.
	ErrTenantNotFound = errors.New("tenant not found")
	// ErrHostMissing means the request named no company and had no Host header.
	ErrHostMissing = fmt.Errorf("%w: no company id and no host", ErrTenantNotFound)
)

// ModelSource hands out tenant models for a database.
type ModelSource interface {
	TenantModels(ctx context.Context, name database.Name) (*database.Models, error)
}

// Context is the tenant a request was resolved to.
type Context struct {
	CompanyID    ID
	DatabaseName database.Name
	Subdomain    string
	Company      *model.Company
	Models       *database.Models
}

// Request carries the request parts resolution looks at.
type Request struct {
	CompanyID string
	Host      string
}

// Resolver turns requests into tenant contexts.
type Resolver struct {
	directory Directory
	models    ModelSource
	cache     *cache
	log       *zap.Logger
}

// NewResolver creates a resolver. A zero cache TTL disables caching.
func NewResolver(directory Directory, models ModelSource, cfg config.TenantConfig, log *zap.Logger) (*Resolver, error) {
	c, err := newCache(cfg.CacheTTL, cfg.CacheMaxEntries)
	if err != nil {
		return nil, fmt.Errorf("create tenant cache: %w", err)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Resolver{directory: directory, models: models, cache: c, log: log.Named("tenant")}, nil
}

// Resolve finds the tenant of a request. An explicit company id wins over the
// subdomain of the Host header.
func (r *Resolver) Resolve(ctx context.Context, req Request) (*Context, error) {
	if req.CompanyID != "" {
		return r.resolveByID(ctx, req.CompanyID, "id")
	}

	sub := SubdomainFromHost(req.Host)
	if sub == "" {
		metrics.RecordResolution("none", "not_found")
		return nil, ErrHostMissing
	}

	company, err := r.lookupSubdomain(ctx, sub)
	if err != nil {
		r.record("subdomain", err)
		return nil, err
	}
	tc, err := r.bind(ctx, IDFromObjectID(company.ID), company)
	r.record("subdomain", err)
	return tc, err
}

// ResolveByID resolves a company id taken from a token claim.
func (r *Resolver) ResolveByID(ctx context.Context, rawID string) (*Context, error) {
	return r.resolveByID(ctx, rawID, "claim")
}

// Invalidate drops a company from the cache. Call after deactivating or
// changing the subdomain of a company.
func (r *Resolver) Invalidate(company *model.Company) {
	r.cache.invalidate(IDFromObjectID(company.ID), company.Subdomain)
}

// Close releases the cache.
func (r *Resolver) Close() { r.cache.close() }

func (r *Resolver) resolveByID(ctx context.Context, rawID, method string) (*Context, error) {
	id, err := ParseID(rawID)
	if err != nil {
		metrics.RecordResolution(method, "not_found")
		return nil, fmt.Errorf("%w: %w", ErrTenantNotFound, err)
	}

	company, err := r.lookupID(ctx, id)
	if err != nil {
		r.record(method, err)
		return nil, err
	}
	// the stored id is canonical; the raw id may differ in case
	tc, err := r.bind(ctx, IDFromObjectID(company.ID), company)
	r.record(method, err)
	return tc, err
}

func (r *Resolver) lookupID(ctx context.Context, id ID) (*model.Company, error) {
	if company, ok := r.cache.get(idKey(id)); ok {
		return company, nil
	}
	company, err := r.directory.FindActiveByID(ctx, id)
	if err != nil {
		return nil, err
	}
	r.cache.set(company)
	return company, nil
}

func (r *Resolver) lookupSubdomain(ctx context.Context, sub string) (*model.Company, error) {
	if company, ok := r.cache.get(subdomainKey(sub)); ok {
		return company, nil
	}
	company, err := r.directory.FindActiveBySubdomain(ctx, sub)
	if err != nil {
		return nil, err
	}
	r.cache.set(company)
	return company, nil
}

func (r *Resolver) bind(ctx context.Context, id ID, company *model.Company) (*Context, error) {
	name := id.DatabaseName()
	models, err := r.models.TenantModels(ctx, name)
	if err != nil {
		r.log.Error("Failed to acquire tenant database",
			zap.String("company_id", id.String()),
			zap.String("database", string(name)),
			zap.Error(err))
		return nil, err
	}
	return &Context{
		CompanyID:    id,
		DatabaseName: name,
		Subdomain:    company.Subdomain,
		Company:      company,
		Models:       models,
	}, nil
}

func (r *Resolver) record(method string, err error) {
	switch {
	case err == nil:
		metrics.RecordResolution(method, "found")
	case errors.Is(err, ErrTenantNotFound):
		metrics.RecordResolution(method, "not_found")
	default:
		metrics.RecordResolution(method, "error")
	}
}

// SubdomainFromHost returns the first label of a Host header value, lower
// cased and without port. pizza.example.com:443 gives pizza.
func SubdomainFromHost(host string) string {
	host = strings.TrimSpace(host)
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	label, _, _ := strings.Cut(host, ".")
	return strings.ToLower(label)
}
