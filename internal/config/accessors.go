package config

import "time"

// Accessor methods provide safe access to configuration values with the
// sensible defaults the teacher's health/import accessors followed.

// GetCacheTTL returns the URLCache entry lifetime.
func (c *Config) GetCacheTTL() time.Duration {
	if c.Cache.TTLMs <= 0 {
		return 30 * time.Minute
	}
	return time.Duration(c.Cache.TTLMs) * time.Millisecond
}

// GetValidationTimeout returns the per-candidate range validation timeout.
func (c *Config) GetValidationTimeout() time.Duration {
	if c.Validation.TimeoutMs <= 0 {
		return 8 * time.Second
	}
	return time.Duration(c.Validation.TimeoutMs) * time.Millisecond
}

// GetValidationBatchSize returns the concurrency of a validation batch.
func (c *Config) GetValidationBatchSize() int {
	if c.Validation.BatchSize <= 0 {
		return 5
	}
	return c.Validation.BatchSize
}

// GetCatalogTimeout returns the metadata catalog lookup timeout.
func (c *Config) GetCatalogTimeout() time.Duration {
	if c.Catalog.TimeoutMs <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.Catalog.TimeoutMs) * time.Millisecond
}

// GetRequestTimeout returns the provider HTTP request timeout.
func (c *Config) GetRequestTimeout() time.Duration {
	if c.Search.RequestTimeoutMs <= 0 {
		return 15 * time.Second
	}
	return time.Duration(c.Search.RequestTimeoutMs) * time.Millisecond
}

// GetRequestRetryDelay returns the delay between provider request retries.
func (c *Config) GetRequestRetryDelay() time.Duration {
	if c.Search.RequestRetryDelayMs <= 0 {
		return 500 * time.Millisecond
	}
	return time.Duration(c.Search.RequestRetryDelayMs) * time.Millisecond
}

// GetScraperTimeout returns the hdhub scraper HTTP timeout.
func (c *Config) GetScraperTimeout() time.Duration {
	if c.Search.ScraperTimeoutMs <= 0 {
		return 15 * time.Second
	}
	return time.Duration(c.Search.ScraperTimeoutMs) * time.Millisecond
}

// GetDomainCacheTTL returns the per-host extractor memoization TTL.
func (c *Config) GetDomainCacheTTL() time.Duration {
	if c.Search.DomainCacheTTLMs <= 0 {
		return 10 * time.Minute
	}
	return time.Duration(c.Search.DomainCacheTTLMs) * time.Millisecond
}

// GetMax4KHDHubLinks returns the maximum number of resolved links kept per title.
func (c *Config) GetMax4KHDHubLinks() int {
	if c.Search.Max4KHDHubLinks <= 0 {
		return 5
	}
	return c.Search.Max4KHDHubLinks
}

// GetSeekAheadTimeout returns the RangeStreamer seek-ahead wait budget.
func (c *Config) GetSeekAheadTimeout() time.Duration {
	if c.Streaming.SeekAheadTimeoutMs <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(c.Streaming.SeekAheadTimeoutMs) * time.Millisecond
}

// GetPollInterval returns the RangeStreamer catch-up poll interval.
func (c *Config) GetPollInterval() time.Duration {
	if c.Streaming.PollIntervalMs <= 0 {
		return 2 * time.Second
	}
	return time.Duration(c.Streaming.PollIntervalMs) * time.Millisecond
}

// GetCleanupYield returns the pause between StorageManager deletes.
func (c *Config) GetCleanupYield() time.Duration {
	if c.Storage.CleanupYieldMs <= 0 {
		return 100 * time.Millisecond
	}
	return time.Duration(c.Storage.CleanupYieldMs) * time.Millisecond
}

// IsProviderEnabled reports whether a provider config is enabled (default true).
func (p ProviderConfig) IsProviderEnabled() bool {
	return p.Enabled == nil || *p.Enabled
}
