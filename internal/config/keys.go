package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type keyType int

const (
	kString keyType = iota
	kInt
	kBool
	kDuration
)

type keySpec struct {
	key string
	typ keyType
	env string
	// alias is an unprefixed variable honored when env is unset.
	alias   string
	secret  bool
	apply   func(cfg *Config, v any)
	extract func(cfg Config) any
}

var specs = []keySpec{
	{
		key: "server.host", typ: kString, env: "LSNM_SERVER_HOST",
		apply:   func(cfg *Config, v any) { cfg.Server.Host = v.(string) },
		extract: func(cfg Config) any { return cfg.Server.Host },
	},
	{
		key: "server.port", typ: kInt, env: "LSNM_SERVER_PORT", alias: "PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "storage.data_dir", typ: kString, env: "LSNM_STORAGE_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "storage.seed_demo", typ: kBool, env: "LSNM_STORAGE_SEED_DEMO",
		apply:   func(cfg *Config, v any) { cfg.Storage.SeedDemo = v.(bool) },
		extract: func(cfg Config) any { return cfg.Storage.SeedDemo },
	},
	{
		key: "proxy.openrouter_api_key", typ: kString, env: "LSNM_OPENROUTER_API_KEY", alias: "OPENROUTER_API_KEY",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Proxy.OpenRouterAPIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.Proxy.OpenRouterAPIKey },
	},
	{
		key: "proxy.default_model", typ: kString, env: "LSNM_PROXY_DEFAULT_MODEL", alias: "MODEL",
		apply:   func(cfg *Config, v any) { cfg.Proxy.DefaultModel = v.(string) },
		extract: func(cfg Config) any { return cfg.Proxy.DefaultModel },
	},
	{
		key: "proxy.app_url", typ: kString, env: "LSNM_PROXY_APP_URL", alias: "APP_URL",
		apply:   func(cfg *Config, v any) { cfg.Proxy.AppURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Proxy.AppURL },
	},
	{
		key: "proxy.app_title", typ: kString, env: "LSNM_PROXY_APP_TITLE",
		apply:   func(cfg *Config, v any) { cfg.Proxy.AppTitle = v.(string) },
		extract: func(cfg Config) any { return cfg.Proxy.AppTitle },
	},
	{
		key: "auth.jwt_secret", typ: kString, env: "LSNM_JWT_SECRET", alias: "JWT_SECRET",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Auth.JWTSecret = v.(string) },
		extract: func(cfg Config) any { return cfg.Auth.JWTSecret },
	},
	{
		key: "prompt.base_dir", typ: kString, env: "LSNM_PROMPT_BASE_DIR",
		apply:   func(cfg *Config, v any) { cfg.Prompt.BaseDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Prompt.BaseDir },
	},
	{
		key: "prompt.file_timeout", typ: kDuration, env: "LSNM_PROMPT_FILE_TIMEOUT",
		apply:   func(cfg *Config, v any) { cfg.Prompt.FileTimeout = v.(time.Duration) },
		extract: func(cfg Config) any { return cfg.Prompt.FileTimeout },
	},
	{
		key: "chat.default_loved_one_id", typ: kString, env: "LSNM_CHAT_DEFAULT_LOVED_ONE_ID",
		apply:   func(cfg *Config, v any) { cfg.Chat.DefaultLovedOneID = v.(string) },
		extract: func(cfg Config) any { return cfg.Chat.DefaultLovedOneID },
	},
	{
		key: "chat.system_prompt", typ: kString, env: "LSNM_SYSTEM_PROMPT", alias: "SYSTEM_PROMPT",
		apply:   func(cfg *Config, v any) { cfg.Chat.SystemPrompt = v.(string) },
		extract: func(cfg Config) any { return cfg.Chat.SystemPrompt },
	},
	{
		key: "chat.system_prompt_file", typ: kString, env: "LSNM_SYSTEM_PROMPT_FILE", alias: "SYSTEM_PROMPT_FILE",
		apply:   func(cfg *Config, v any) { cfg.Chat.SystemPromptFile = v.(string) },
		extract: func(cfg Config) any { return cfg.Chat.SystemPromptFile },
	},
	{
		key: "dashboard.timezone", typ: kString, env: "LSNM_DASHBOARD_TIMEZONE",
		apply:   func(cfg *Config, v any) { cfg.Dashboard.Timezone = v.(string) },
		extract: func(cfg Config) any { return cfg.Dashboard.Timezone },
	},
	{
		key: "log.level", typ: kString, env: "LSNM_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
	{
		key: "log.format", typ: kString, env: "LSNM_LOG_FORMAT",
		apply:   func(cfg *Config, v any) { cfg.Log.Format = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Format },
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
		if s.secret {
			continue
		}
		switch s.typ {
		case kString:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kInt:
			v, ok, err := b.GetInt(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kBool, kDuration:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if !ok || v == "" {
				continue
			}
			parsed, err := parseValue(s.typ, v)
			if err != nil {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse config key %s=%q: %v. Using default value.\n", s.key, v, err)
				continue
			}
			s.apply(cfg, parsed)
		}
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		if s.env == "" {
			continue
		}
		name := s.env
		raw := os.Getenv(name)
		if raw == "" && s.alias != "" {
			name = s.alias
			raw = os.Getenv(name)
		}
		if raw == "" {
			continue
		}
		v, err := parseValue(s.typ, raw)
		if err != nil {
			fmt.Fprintf(os.Stderr, "[WARN] could not parse env var %s=%q: %v. Using default value.\n", name, raw, err)
			continue
		}
		s.apply(cfg, v)
	}
}

func parseValue(typ keyType, raw string) (any, error) {
	switch typ {
	case kInt:
		return strconv.Atoi(raw)
	case kBool:
		return strconv.ParseBool(raw)
	case kDuration:
		d, err := time.ParseDuration(raw)
		if err != nil {
			return nil, err
		}
		if d <= 0 {
			return nil, fmt.Errorf("duration must be positive")
		}
		return d, nil
	default:
		return raw, nil
	}
}
