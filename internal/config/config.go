package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/postboard/social-front/internal"
)

// KnownPlatforms is the fixed set of platforms this service can front.
// Status aggregation and routing are defined over exactly this set.
var KnownPlatforms = []string{"linkedin", "facebook", "twitter"}

// Load reads, parses, resolves and validates a config file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := cfg.resolveEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) resolveEnv() error {
	values := map[string]*ConfigValue{
		"auth.jwtSecret":        c.Auth.JWTSecret,
		"auth.encryptionKey":    c.Auth.EncryptionKey,
		"storage.redisPassword": c.Storage.RedisPassword,
	}
	for name, platform := range c.Platforms {
		values["platforms."+name+".clientId"] = platform.ClientID
		values["platforms."+name+".clientSecret"] = platform.ClientSecret
	}
	if c.Refine != nil {
		values["refine.apiKey"] = c.Refine.APIKey
	}

	for path, cv := range values {
		if cv == nil {
			continue
		}
		if err := cv.ResolveEnv(); err != nil {
			return fmt.Errorf("resolving %s: %w", path, err)
		}
	}
	return nil
}

// Validate checks the configuration for structural problems that would only
// surface later as confusing runtime failures
func (c *Config) Validate() error {
	var errs []string

	if c.Server.BaseURL == "" {
		errs = append(errs, "server.baseUrl is required")
	} else if !strings.HasPrefix(c.Server.BaseURL, "http://") && !strings.HasPrefix(c.Server.BaseURL, "https://") {
		errs = append(errs, "server.baseUrl must be an http(s) URL")
	}
	if c.Server.Addr == "" {
		errs = append(errs, "server.addr is required")
	}

	if !c.Auth.JWTSecret.IsSet() {
		errs = append(errs, "auth.jwtSecret is required")
	} else if len(c.Auth.JWTSecret.String()) < 32 && !internal.IsDevelopmentMode() {
		// Weak secrets are tolerated under SOCIAL_FRONT_ENV=development
		errs = append(errs, "auth.jwtSecret must be at least 32 bytes")
	}
	if !c.Auth.EncryptionKey.IsSet() {
		errs = append(errs, "auth.encryptionKey is required")
	} else if len(c.Auth.EncryptionKey.String()) != 32 {
		errs = append(errs, "auth.encryptionKey must be exactly 32 bytes for AES-256")
	}

	switch c.Storage.Type {
	case "", "memory":
	case "firestore":
		if c.Storage.GCPProject == "" {
			errs = append(errs, "storage.gcpProject is required for firestore storage")
		}
	case "redis":
		if c.Storage.RedisAddr == "" {
			errs = append(errs, "storage.redisAddr is required for redis storage")
		}
	default:
		errs = append(errs, fmt.Sprintf("storage.type %q is not one of memory, firestore, redis", c.Storage.Type))
	}

	if len(c.Platforms) == 0 {
		errs = append(errs, "at least one platform must be configured")
	}
	for name, platform := range c.Platforms {
		if !isKnownPlatform(name) {
			errs = append(errs, fmt.Sprintf("unknown platform %q (known: %s)", name, strings.Join(KnownPlatforms, ", ")))
			continue
		}
		if !platform.ClientID.IsSet() {
			errs = append(errs, fmt.Sprintf("platforms.%s.clientId is required", name))
		}
		if !platform.ClientSecret.IsSet() {
			errs = append(errs, fmt.Sprintf("platforms.%s.clientSecret is required", name))
		}
	}

	if c.Refine != nil && c.Refine.Model == "" {
		errs = append(errs, "refine.model is required when refine is configured")
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

func isKnownPlatform(name string) bool {
	for _, p := range KnownPlatforms {
		if p == name {
			return true
		}
	}
	return false
}
