package config

import (
	"fmt"
)

// KeyInfo describes a config key for display purposes.
type KeyInfo struct {
	Key    string
	EnvVar string
	Value  string
}

// ShowAll returns all config key/value pairs from the current config.
func ShowAll(cfg Config) []KeyInfo {
	result := make([]KeyInfo, 0, len(specs))
	for _, s := range specs {
		result = append(result, KeyInfo{
			Key:    s.key,
			EnvVar: s.env,
			Value:  fmt.Sprintf("%v", s.extract(cfg)),
		})
	}
	return result
}

// SetKey validates value and writes it to the config file.
func SetKey(key, value string) error {
	return setKeyIn(newFileBackend(configFilePath()), key, value)
}

func setKeyIn(b ConfigBackend, key, value string) error {
	s, ok := lookupSpec(key)
	if !ok {
		return fmt.Errorf("unknown config key: %q", key)
	}
	v, err := parse(s.typ, value)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	return b.Set(key, v)
}

// UnsetKey removes a key from the config file so its default applies again.
func UnsetKey(key string) error {
	if _, ok := lookupSpec(key); !ok {
		return fmt.Errorf("unknown config key: %q", key)
	}
	return newFileBackend(configFilePath()).Delete(key)
}

// ValidKeys returns the list of valid config key names.
func ValidKeys() []string {
	keys := make([]string, 0, len(specs))
	for _, s := range specs {
		keys = append(keys, s.key)
	}
	return keys
}
