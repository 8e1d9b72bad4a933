package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// ConfigValue represents a configuration value that can be either a literal
// string or a {"$env": "NAME"} reference resolved at load time. Secrets
// (client secrets, signing keys) should always use the reference form so the
// config file can be committed without them.
type ConfigValue struct {
	resolved bool
	value    string
	envName  string
}

// String returns the resolved value or panics if the value was never resolved
func (cv *ConfigValue) String() string {
	if !cv.resolved {
		panic(fmt.Sprintf("attempted to use unresolved $env reference %q", cv.envName))
	}
	return cv.value
}

// IsSet reports whether the value is present (resolved and non-empty)
func (cv *ConfigValue) IsSet() bool {
	return cv != nil && cv.resolved && cv.value != ""
}

// ResolveEnv resolves the environment variable reference, if any
func (cv *ConfigValue) ResolveEnv() error {
	if cv.resolved || cv.envName == "" {
		return nil
	}

	value := os.Getenv(cv.envName)
	if value == "" {
		return fmt.Errorf("required environment variable %s not set", cv.envName)
	}

	cv.value = value
	cv.resolved = true
	return nil
}

// UnmarshalJSON implements custom JSON unmarshaling
func (cv *ConfigValue) UnmarshalJSON(data []byte) error {
	// Try to unmarshal as string first
	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		cv.resolved = true
		cv.value = str
		return nil
	}

	// Try to unmarshal as reference object
	var obj map[string]interface{}
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("ConfigValue must be string or reference object")
	}

	if envName, ok := obj["$env"].(string); ok {
		cv.envName = envName
		return nil
	}

	return fmt.Errorf("unknown reference type in ConfigValue")
}

// MarshalJSON implements custom JSON marshaling
func (cv ConfigValue) MarshalJSON() ([]byte, error) {
	if cv.resolved {
		return json.Marshal(cv.value)
	}
	if cv.envName != "" {
		return json.Marshal(map[string]interface{}{"$env": cv.envName})
	}
	return nil, fmt.Errorf("invalid ConfigValue state")
}

// NewConfigValue creates a ConfigValue from a plain string
func NewConfigValue(value string) *ConfigValue {
	return &ConfigValue{
		resolved: true,
		value:    value,
	}
}
