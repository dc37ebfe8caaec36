package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfig_Validate(t *testing.T) {
	validConfig := func() *Config {
		return &Config{
			FileServer: FileServerConfig{Port: 8080},
			Cache:      CacheConfig{MaxResolved: 500, MaxPending: 100},
			SABnzbd:    SABnzbdConfig{BaseURL: "http://sabnzbd.local:8080"},
			Streaming:  StreamingConfig{MKVExtractionGate: 0.8},
			Providers:  []ProviderConfig{{Name: "4khdhub", Kind: "hdhub", BaseURL: "https://4khdhub.example"}},
		}
	}

	portOutOfRange := validConfig()
	portOutOfRange.FileServer.Port = 70000

	noSABnzbd := validConfig()
	noSABnzbd.SABnzbd.BaseURL = ""

	gateAtOne := validConfig()
	gateAtOne.Streaming.MKVExtractionGate = 1

	noProviders := validConfig()
	noProviders.Providers = nil

	tests := []struct {
		name        string
		config      *Config
		wantErr     bool
		errContains string
	}{
		{
			name:        "port out of range - error",
			config:      portOutOfRange,
			wantErr:     true,
			errContains: "file_server port must be between 1 and 65535",
		},
		{
			name:        "missing sabnzbd base url - error",
			config:      noSABnzbd,
			wantErr:     true,
			errContains: "sabnzbd base_url must be configured",
		},
		{
			name:    "complete config - ok",
			config:  validConfig(),
			wantErr: false,
		},
		{
			name:    "mkv extraction gate of exactly 1 - ok",
			config:  gateAtOne,
			wantErr: false,
		},
		{
			name:        "no providers - error",
			config:      noProviders,
			wantErr:     true,
			errContains: "at least one provider must be configured",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr {
				assert.Error(t, err)
				if tt.errContains != "" {
					assert.Contains(t, err.Error(), tt.errContains)
				}
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
