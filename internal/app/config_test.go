package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-console/internal/rbac"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("API_BASE_URL", "https://erp.example.com/api")
	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:8090", cfg.ConsoleAddr)
	assert.Equal(t, TokenStoreFile, cfg.TokenStore)
	assert.Equal(t, 60*time.Second, cfg.CacheKeepUnused)
	policy, err := cfg.UnwiredPolicy()
	require.NoError(t, err)
	assert.Equal(t, rbac.FailOpen, policy)
}

func TestLoadConfigRejectsBadValues(t *testing.T) {
	cases := map[string]map[string]string{
		"base url":      {"API_BASE_URL": "erp.example.com"},
		"token store":   {"TOKEN_STORE": "cookie"},
		"unwired":       {"PERMISSIONS_UNWIRED": "maybe"},
		"log format":    {"LOG_FORMAT": "xml"},
		"rate limit":    {"LOGIN_RATE_LIMIT": "0"},
		"duration type": {"API_TIMEOUT": "soon"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := LoadConfig()
			assert.Error(t, err)
		})
	}
}

func TestLoadConfigFailClosed(t *testing.T) {
	t.Setenv("PERMISSIONS_UNWIRED", "closed")
	t.Setenv("TOKEN_STORE", "Memory")
	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, TokenStoreMemory, cfg.TokenStore)
	policy, err := cfg.UnwiredPolicy()
	require.NoError(t, err)
	assert.Equal(t, rbac.FailClosed, policy)
}
