package profile

import "fmt"

// ConfigError reports a missing, malformed or inconsistent metadata
// attribute. It is returned only from profile construction.
type ConfigError struct {
	Key    string
	Reason string
}

func (e *ConfigError) Error() string {
	if e.Key == "" {
		return "invalid sensor profile: " + e.Reason
	}
	return fmt.Sprintf("invalid sensor profile: %s: %s", e.Key, e.Reason)
}

func configErrorf(key, format string, args ...interface{}) *ConfigError {
	return &ConfigError{Key: key, Reason: fmt.Sprintf(format, args...)}
}
