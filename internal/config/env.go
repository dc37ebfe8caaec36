package config

import (
	"os"
	"strconv"
)

// applyEnvOverrides layers the environment variables named in the gateway's
// external interface on top of whatever YAML/defaults are already in cfg.
// Recognized variables: DISABLE_CACHE, REQUEST_TIMEOUT, REQUEST_MAX_RETRIES,
// REQUEST_RETRY_DELAY, SCRAPER_TIMEOUT, VALIDATION_TIMEOUT,
// DISABLE_URL_VALIDATION, DISABLE_SEEK_VALIDATION, DOMAIN_CACHE_TTL_MS,
// MAX_4KHDHUB_LINKS, BATCH_SIZE, USENET_FILE_SERVER_API_KEY,
// USENET_FILE_SERVER_URL, ADMIN_PASSWORD.
func applyEnvOverrides(cfg *Config) {
	if b, ok := envBool("DISABLE_CACHE"); ok {
		cfg.Cache.Disabled = b
	}
	if ms, ok := envMillis("REQUEST_TIMEOUT"); ok {
		cfg.Search.RequestTimeoutMs = ms
	}
	if n, ok := envInt("REQUEST_MAX_RETRIES"); ok {
		cfg.Search.RequestMaxRetries = n
	}
	if ms, ok := envMillis("REQUEST_RETRY_DELAY"); ok {
		cfg.Search.RequestRetryDelayMs = ms
	}
	if ms, ok := envMillis("SCRAPER_TIMEOUT"); ok {
		cfg.Search.ScraperTimeoutMs = ms
	}
	if ms, ok := envMillis("VALIDATION_TIMEOUT"); ok {
		cfg.Validation.TimeoutMs = ms
	}
	if b, ok := envBool("DISABLE_URL_VALIDATION"); ok {
		cfg.Validation.DisableURLValidation = b
	}
	if b, ok := envBool("DISABLE_SEEK_VALIDATION"); ok {
		cfg.Validation.DisableSeekValidation = b
	}
	if n, ok := envInt("DOMAIN_CACHE_TTL_MS"); ok {
		cfg.Search.DomainCacheTTLMs = n
	}
	if n, ok := envInt("MAX_4KHDHUB_LINKS"); ok {
		cfg.Search.Max4KHDHubLinks = n
	}
	if n, ok := envInt("BATCH_SIZE"); ok {
		cfg.Validation.BatchSize = n
	}
	if v := os.Getenv("USENET_FILE_SERVER_API_KEY"); v != "" {
		cfg.Streaming.FileServerAPIKey = v
		cfg.FileServer.APIKey = v
	}
	if v := os.Getenv("USENET_FILE_SERVER_URL"); v != "" {
		cfg.FileServer.UpstreamURL = v
	}
	if v := os.Getenv("ADMIN_PASSWORD"); v != "" {
		cfg.Admin.Password = v
	}
}

func envBool(name string) (bool, bool) {
	v := os.Getenv(name)
	if v == "" {
		return false, false
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, false
	}
	return b, true
}

func envInt(name string) (int, bool) {
	v := os.Getenv(name)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

// envMillis reads a millisecond value from an env var expressed in
// milliseconds already (matching the *_TIMEOUT / *_DELAY variable names).
func envMillis(name string) (int, bool) {
	return envInt(name)
}
