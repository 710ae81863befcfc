package config

import (
	"errors"
	"net"
	"strconv"
	"time"
)

type Config struct {
	Server    ServerConfig
	Storage   StorageConfig
	Proxy     ProxyConfig
	Auth      AuthConfig
	Prompt    PromptConfig
	Chat      ChatConfig
	Dashboard DashboardConfig
	Log       LogConfig
}

type ServerConfig struct {
	Host string
	Port int
}

// Addr is the host:port the HTTP server listens on.
func (s ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

type StorageConfig struct {
	DataDir  string
	SeedDemo bool
}

type ProxyConfig struct {
	OpenRouterAPIKey string
	DefaultModel     string
	AppURL           string
	AppTitle         string
}

type AuthConfig struct {
	JWTSecret string
}

type PromptConfig struct {
	// BaseDir anchors relative system prompt file paths; empty means the
	// working directory.
	BaseDir     string
	FileTimeout time.Duration
}

type ChatConfig struct {
	DefaultLovedOneID string
	SystemPrompt      string
	SystemPromptFile  string
}

type DashboardConfig struct {
	Timezone string
}

type LogConfig struct {
	Level  string
	Format string
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: 3001,
		},
		Storage: StorageConfig{
			DataDir:  defaultDataDir(),
			SeedDemo: true,
		},
		Proxy: ProxyConfig{
			DefaultModel: "anthropic/claude-3.5-sonnet",
			AppURL:       "http://localhost:3001",
			AppTitle:     "LoneSomeNoMore API",
		},
		Auth: AuthConfig{
			JWTSecret: "dev-secret-key",
		},
		Prompt: PromptConfig{
			FileTimeout: 2 * time.Second,
		},
		Chat: ChatConfig{
			DefaultLovedOneID: "loved_789xyz",
		},
		Dashboard: DashboardConfig{
			Timezone: "MST",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads configuration from the JSON file at
// $XDG_CONFIG_HOME/lsnm/config.json, then applies environment overrides.
//
// LSNM_* variables override file values. Secrets (the OpenRouter key and
// the JWT secret) are only read from the environment.
func Load() (Config, error) {
	return loadWith(newPlatformBackend())
}

func loadWith(b ConfigBackend) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)

	return cfg, nil
}

// RequireAPIKey reports a descriptive error when no OpenRouter key is set.
// Only commands that talk to OpenRouter call it.
func (c Config) RequireAPIKey() error {
	if c.Proxy.OpenRouterAPIKey == "" {
		return errors.New("missing required config: OpenRouter API key. " +
			"Set it via environment variable LSNM_OPENROUTER_API_KEY (or OPENROUTER_API_KEY)")
	}
	return nil
}
