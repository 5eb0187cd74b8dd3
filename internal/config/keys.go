package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
)

type keyType int

const (
	kString keyType = iota
	kInt
	kBool
	kFloat
	kStrings
)

type keySpec struct {
	key     string
	typ     keyType
	env     string
	apply   func(cfg *Config, v any)
	extract func(cfg Config) any
}

var specs = []keySpec{
	{
		key: "server.host", typ: kString, env: "INTELAPI_SERVER_HOST",
		apply:   func(cfg *Config, v any) { cfg.Server.Host = v.(string) },
		extract: func(cfg Config) any { return cfg.Server.Host },
	},
	{
		key: "server.port", typ: kInt, env: "INTELAPI_SERVER_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "ollama.base_url", typ: kString, env: "INTELAPI_OLLAMA_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.Ollama.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Ollama.BaseURL },
	},
	{
		key: "ollama.model", typ: kString, env: "INTELAPI_OLLAMA_MODEL",
		apply:   func(cfg *Config, v any) { cfg.Ollama.Model = v.(string) },
		extract: func(cfg Config) any { return cfg.Ollama.Model },
	},
	{
		key: "ollama.permissive_model", typ: kString, env: "INTELAPI_OLLAMA_PERMISSIVE_MODEL",
		apply:   func(cfg *Config, v any) { cfg.Ollama.PermissiveModel = v.(string) },
		extract: func(cfg Config) any { return cfg.Ollama.PermissiveModel },
	},
	{
		key: "storage.data_dir", typ: kString, env: "INTELAPI_STORAGE_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "log.level", typ: kString, env: "INTELAPI_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
	{
		key: "guardrails.phrases", typ: kStrings, env: "INTELAPI_GUARDRAILS_PHRASES",
		apply:   func(cfg *Config, v any) { cfg.Guardrails.Phrases = v.([]string) },
		extract: func(cfg Config) any { return strings.Join(cfg.Guardrails.Phrases, ",") },
	},
	{
		key: "guardrails.threshold", typ: kFloat, env: "INTELAPI_GUARDRAILS_THRESHOLD",
		apply:   func(cfg *Config, v any) { cfg.Guardrails.Threshold = v.(float64) },
		extract: func(cfg Config) any { return cfg.Guardrails.Threshold },
	},
	{
		key: "metrics.enabled", typ: kBool, env: "INTELAPI_METRICS_ENABLED",
		apply:   func(cfg *Config, v any) { cfg.Metrics.Enabled = v.(bool) },
		extract: func(cfg Config) any { return cfg.Metrics.Enabled },
	},
}

func lookupSpec(key string) (keySpec, bool) {
	for _, s := range specs {
		if s.key == key {
			return s, true
		}
	}
	return keySpec{}, false
}

func applyBackend(cfg *Config, b ConfigBackend) error {
	for _, s := range specs {
		raw, ok := b.Get(s.key)
		if !ok {
			continue
		}
		v, err := coerce(s.typ, raw)
		if err != nil {
			return fmt.Errorf("reading %s: %w", s.key, err)
		}
		s.apply(cfg, v)
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		raw := os.Getenv(s.env)
		if raw == "" {
			continue
		}
		v, err := parse(s.typ, raw)
		if err != nil {
			slog.Warn("could not parse env var, using configured value", "var", s.env, "value", raw, "error", err)
			continue
		}
		s.apply(cfg, v)
	}
}

// coerce converts a value decoded from the TOML file into the key's Go type.
// Strings are parsed so hand-edited files may quote any value.
func coerce(typ keyType, raw any) (any, error) {
	if s, ok := raw.(string); ok {
		return parse(typ, s)
	}
	switch typ {
	case kInt:
		if i, ok := raw.(int64); ok {
			return int(i), nil
		}
	case kFloat:
		switch n := raw.(type) {
		case float64:
			return n, nil
		case int64:
			return float64(n), nil
		}
	case kBool:
		if b, ok := raw.(bool); ok {
			return b, nil
		}
	case kStrings:
		if arr, ok := raw.([]any); ok {
			out := make([]string, 0, len(arr))
			for _, e := range arr {
				s, ok := e.(string)
				if !ok {
					return nil, fmt.Errorf("array element %v is not a string", e)
				}
				out = append(out, s)
			}
			return out, nil
		}
	}
	return nil, fmt.Errorf("unexpected value %v (%T)", raw, raw)
}

// parse converts a string from the environment or the command line.
// String lists are comma separated.
func parse(typ keyType, raw string) (any, error) {
	switch typ {
	case kInt:
		return strconv.Atoi(raw)
	case kFloat:
		return strconv.ParseFloat(raw, 64)
	case kBool:
		return strconv.ParseBool(raw)
	case kStrings:
		var out []string
		for _, p := range strings.Split(raw, ",") {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return out, nil
	default:
		return raw, nil
	}
}
