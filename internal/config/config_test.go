package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

const validConfig = `{
  "server": {
    "baseUrl": "https://social.example.com",
    "addr": ":8080"
  },
  "auth": {
    "jwtSecret": "0123456789abcdef0123456789abcdef",
    "encryptionKey": "01234567890123456789012345678901"
  },
  "storage": {
    "type": "memory"
  },
  "platforms": {
    "linkedin": {
      "clientId": "li-client",
      "clientSecret": "li-secret"
    },
    "twitter": {
      "clientId": "tw-client",
      "clientSecret": "tw-secret"
    }
  }
}`

func TestLoadValidConfig(t *testing.T) {
	cfg, err := Load(writeConfig(t, validConfig))
	require.NoError(t, err)

	assert.Equal(t, "https://social.example.com", cfg.Server.BaseURL)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "li-client", cfg.Platforms["linkedin"].ClientID.String())
	assert.Equal(t, "tw-secret", cfg.Platforms["twitter"].ClientSecret.String())
	assert.Nil(t, cfg.Refine)
}

func TestLoadResolvesEnvReferences(t *testing.T) {
	t.Setenv("TEST_LINKEDIN_SECRET", "secret-from-env")

	cfg, err := Load(writeConfig(t, `{
      "server": {"baseUrl": "http://localhost:8080", "addr": ":8080"},
      "auth": {
        "jwtSecret": "0123456789abcdef0123456789abcdef",
        "encryptionKey": "01234567890123456789012345678901"
      },
      "storage": {"type": "memory"},
      "platforms": {
        "linkedin": {
          "clientId": "li-client",
          "clientSecret": {"$env": "TEST_LINKEDIN_SECRET"}
        }
      }
    }`))
	require.NoError(t, err)
	assert.Equal(t, "secret-from-env", cfg.Platforms["linkedin"].ClientSecret.String())
}

func TestLoadMissingEnvReference(t *testing.T) {
	_, err := Load(writeConfig(t, `{
      "server": {"baseUrl": "http://localhost:8080", "addr": ":8080"},
      "auth": {
        "jwtSecret": "0123456789abcdef0123456789abcdef",
        "encryptionKey": "01234567890123456789012345678901"
      },
      "storage": {"type": "memory"},
      "platforms": {
        "linkedin": {
          "clientId": "li-client",
          "clientSecret": {"$env": "DEFINITELY_NOT_SET_ANYWHERE_12345"}
        }
      }
    }`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DEFINITELY_NOT_SET_ANYWHERE_12345")
}

func TestValidateErrors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "missing base URL",
			mutate:  func(c *Config) { c.Server.BaseURL = "" },
			wantErr: "server.baseUrl is required",
		},
		{
			name:    "non-http base URL",
			mutate:  func(c *Config) { c.Server.BaseURL = "ftp://example.com" },
			wantErr: "must be an http(s) URL",
		},
		{
			name:    "short jwt secret",
			mutate:  func(c *Config) { c.Auth.JWTSecret = NewConfigValue("short") },
			wantErr: "jwtSecret must be at least 32 bytes",
		},
		{
			name:    "wrong encryption key length",
			mutate:  func(c *Config) { c.Auth.EncryptionKey = NewConfigValue("only-31-bytes-0123456789012345") },
			wantErr: "encryptionKey must be exactly 32 bytes",
		},
		{
			name:    "firestore without project",
			mutate:  func(c *Config) { c.Storage = StorageConfig{Type: "firestore"} },
			wantErr: "storage.gcpProject is required",
		},
		{
			name:    "redis without addr",
			mutate:  func(c *Config) { c.Storage = StorageConfig{Type: "redis"} },
			wantErr: "storage.redisAddr is required",
		},
		{
			name:    "unknown storage type",
			mutate:  func(c *Config) { c.Storage = StorageConfig{Type: "dynamo"} },
			wantErr: "not one of memory, firestore, redis",
		},
		{
			name:    "no platforms",
			mutate:  func(c *Config) { c.Platforms = nil },
			wantErr: "at least one platform",
		},
		{
			name: "unknown platform",
			mutate: func(c *Config) {
				c.Platforms["myspace"] = PlatformConfig{
					ClientID:     NewConfigValue("id"),
					ClientSecret: NewConfigValue("secret"),
				}
			},
			wantErr: `unknown platform "myspace"`,
		},
		{
			name: "platform missing secret",
			mutate: func(c *Config) {
				c.Platforms["facebook"] = PlatformConfig{ClientID: NewConfigValue("id")}
			},
			wantErr: "platforms.facebook.clientSecret is required",
		},
		{
			name:    "refine without model",
			mutate:  func(c *Config) { c.Refine = &RefineConfig{APIURL: "http://localhost:11434/v1"} },
			wantErr: "refine.model is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(writeConfig(t, validConfig))
			require.NoError(t, err)

			tt.mutate(cfg)
			err = cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConfigValueMarshalRoundTrip(t *testing.T) {
	cv := NewConfigValue("literal")
	data, err := cv.MarshalJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `"literal"`, string(data))

	var ref ConfigValue
	require.NoError(t, ref.UnmarshalJSON([]byte(`{"$env": "SOME_VAR"}`)))
	data, err = ref.MarshalJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `{"$env": "SOME_VAR"}`, string(data))
}

func TestConfigValueStringPanicsWhenUnresolved(t *testing.T) {
	var ref ConfigValue
	require.NoError(t, ref.UnmarshalJSON([]byte(`{"$env": "SOME_VAR"}`)))
	assert.Panics(t, func() { _ = ref.String() })
}
