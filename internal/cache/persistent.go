package cache

import (
	"context"
	"errors"
	"time"

	"github.com/streamgate/streamgate/internal/database"
)

// PersistentResolver layers database-backed overflow storage under a
// URLCache, so a resolved NZB-open survives process restarts: the in-memory
// tier answers warm lookups and coalesces concurrent resolves, the
// database tier answers cold lookups after a restart and is refreshed on
// every resolve.
type PersistentResolver struct {
	mem  *URLCache
	repo *database.Repository
}

// NewPersistentResolver wraps mem with repo-backed overflow. repo may be nil,
// in which case lookups fall through to mem alone (equivalent to an
// in-memory-only cache, matching the persist_to_db=false path).
func NewPersistentResolver(mem *URLCache, repo *database.Repository) *PersistentResolver {
	return &PersistentResolver{mem: mem, repo: repo}
}

// ResolveOnce resolves key (typically an NZB cache key; see pkg/nzbutil.CacheKey)
// to a value, consulting the in-memory tier first, then the database tier,
// then running fetch with single-flight coalescing. title is persisted
// alongside the resolved value for diagnostic listing; it may be empty.
func (p *PersistentResolver) ResolveOnce(ctx context.Context, key, title string, ttl time.Duration, fetch Fetch) (string, error) {
	if v, ok := p.mem.Get(key); ok {
		return v, nil
	}

	if p.repo != nil {
		if rec, err := p.repo.GetCacheRecord(ctx, key); err == nil {
			p.mem.Put(key, rec.ResolvedURL, time.Until(rec.ExpiresAt))
			return rec.ResolvedURL, nil
		} else if !errors.Is(err, database.ErrNotFound) {
			return "", err
		}
	}

	wrapped := func(ctx context.Context) (string, error) {
		value, err := fetch(ctx)
		if err != nil {
			return "", err
		}
		if p.repo != nil {
			if err := p.repo.UpsertCacheRecord(ctx, &database.CacheRecord{
				CacheKey:    key,
				ResolvedURL: value,
				StreamTitle: title,
				ExpiresAt:   time.Now().Add(ttl),
			}); err != nil {
				return value, nil
			}
		}
		return value, nil
	}

	return p.mem.ResolveOnce(ctx, key, ttl, wrapped)
}
