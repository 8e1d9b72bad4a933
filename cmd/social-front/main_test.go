package main

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/postboard/social-front/internal/config"
)

func TestGeneratedConfigLoads(t *testing.T) {
	// The generated config references secrets through $env
	t.Setenv("SOCIAL_FRONT_JWT_SECRET", "test-jwt-secret-test-jwt-secret!")
	t.Setenv("SOCIAL_FRONT_ENCRYPTION_KEY", "0123456789abcdef0123456789abcdef")
	t.Setenv("LINKEDIN_CLIENT_ID", "li-id")
	t.Setenv("LINKEDIN_CLIENT_SECRET", "li-secret")
	t.Setenv("FACEBOOK_CLIENT_ID", "fb-id")
	t.Setenv("FACEBOOK_CLIENT_SECRET", "fb-secret")
	t.Setenv("TWITTER_CLIENT_ID", "tw-id")
	t.Setenv("TWITTER_CLIENT_SECRET", "tw-secret")
	t.Setenv("OPENAI_API_KEY", "sk-test")

	configPath := filepath.Join(t.TempDir(), "test-config.json")
	require.NoError(t, generateDefaultConfig(configPath), "Failed to generate default config")

	cfg, err := config.Load(configPath)
	require.NoError(t, err, "Generated config should load and validate")

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Len(t, cfg.Platforms, 3)
	assert.Equal(t, "gpt-4o-mini", cfg.Refine.Model)
}
