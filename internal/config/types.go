package config

// Config is the top-level configuration for social-front
type Config struct {
	Server    ServerConfig              `json:"server"`
	Auth      AuthConfig                `json:"auth"`
	Storage   StorageConfig             `json:"storage"`
	Platforms map[string]PlatformConfig `json:"platforms"`
	Refine    *RefineConfig             `json:"refine,omitempty"`
}

// ServerConfig holds the HTTP server settings
type ServerConfig struct {
	// BaseURL is the externally reachable URL of this service. Provider
	// redirect URIs are derived from it.
	BaseURL string `json:"baseUrl"`
	Addr    string `json:"addr"`
	// AllowedOrigins restricts CORS; empty means same-origin only is assumed
	// and a wildcard is used (development).
	AllowedOrigins []string `json:"allowedOrigins,omitempty"`
}

// AuthConfig holds inbound authentication and at-rest encryption settings
type AuthConfig struct {
	// JWTSecret verifies bearer tokens minted by the identity tier (HS256)
	JWTSecret *ConfigValue `json:"jwtSecret"`
	// EncryptionKey is the 32-byte AES-256 key for tokens at rest and for
	// signing OAuth state parameters
	EncryptionKey *ConfigValue `json:"encryptionKey"`
}

// StorageConfig selects and configures the storage backend
type StorageConfig struct {
	// Type is one of "memory", "firestore", "redis"
	Type string `json:"type"`

	// Firestore
	GCPProject          string `json:"gcpProject,omitempty"`
	FirestoreDatabase   string `json:"firestoreDatabase,omitempty"`
	FirestoreCollection string `json:"firestoreCollection,omitempty"`

	// Redis
	RedisAddr     string       `json:"redisAddr,omitempty"`
	RedisPassword *ConfigValue `json:"redisPassword,omitempty"`
	RedisDB       int          `json:"redisDb,omitempty"`
}

// PlatformConfig holds OAuth app credentials for one social platform
type PlatformConfig struct {
	ClientID     *ConfigValue `json:"clientId"`
	ClientSecret *ConfigValue `json:"clientSecret"`

	// Optional endpoint overrides for integration tests
	AuthURL  string `json:"authUrl,omitempty"`
	TokenURL string `json:"tokenUrl,omitempty"`
	APIURL   string `json:"apiUrl,omitempty"`
}

// RefineConfig points at an OpenAI-compatible chat completions API used by
// the content refine endpoint. Refine is disabled when this section is absent.
type RefineConfig struct {
	APIURL string       `json:"apiUrl,omitempty"`
	APIKey *ConfigValue `json:"apiKey,omitempty"`
	Model  string       `json:"model"`
}
