package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// mapBackend is an in-memory ConfigBackend.
type mapBackend map[string]any

func (m mapBackend) GetString(key string) (string, bool, error) {
	v, ok := m[key]
	if !ok {
		return "", false, nil
	}
	s, _ := v.(string)
	return s, true, nil
}

func (m mapBackend) GetInt(key string) (int, bool, error) {
	v, ok := m[key]
	if !ok {
		return 0, false, nil
	}
	i, _ := v.(int)
	return i, true, nil
}

func (m mapBackend) SetString(key, val string) error { m[key] = val; return nil }
func (m mapBackend) SetInt(key string, val int) error { m[key] = val; return nil }
func (m mapBackend) Delete(key string) error          { delete(m, key); return nil }

// clearEnv blanks every variable the loader reads so the host environment
// cannot leak into a test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, s := range specs {
		t.Setenv(s.env, "")
		if s.alias != "" {
			t.Setenv(s.alias, "")
		}
	}
}

func TestDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := loadWith(mapBackend{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 3001 {
		t.Errorf("Server.Port = %d, want 3001", cfg.Server.Port)
	}
	if cfg.Server.Addr() != "127.0.0.1:3001" {
		t.Errorf("Server.Addr() = %q", cfg.Server.Addr())
	}
	if cfg.Proxy.DefaultModel != "anthropic/claude-3.5-sonnet" {
		t.Errorf("Proxy.DefaultModel = %q", cfg.Proxy.DefaultModel)
	}
	if cfg.Prompt.FileTimeout != 2*time.Second {
		t.Errorf("Prompt.FileTimeout = %v, want 2s", cfg.Prompt.FileTimeout)
	}
	if !cfg.Storage.SeedDemo {
		t.Error("Storage.SeedDemo = false, want true")
	}
	if cfg.Chat.DefaultLovedOneID != "loved_789xyz" {
		t.Errorf("Chat.DefaultLovedOneID = %q", cfg.Chat.DefaultLovedOneID)
	}
	if cfg.Auth.JWTSecret != "dev-secret-key" {
		t.Errorf("Auth.JWTSecret = %q", cfg.Auth.JWTSecret)
	}
	if cfg.Dashboard.Timezone != "MST" {
		t.Errorf("Dashboard.Timezone = %q", cfg.Dashboard.Timezone)
	}
}

func TestBackendValues(t *testing.T) {
	clearEnv(t)

	cfg, err := loadWith(mapBackend{
		"server.port":         4100,
		"storage.data_dir":    "/tmp/lsnm-test",
		"storage.seed_demo":   "false",
		"prompt.file_timeout": "500ms",
		"log.level":           "debug",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 4100 {
		t.Errorf("Server.Port = %d, want 4100", cfg.Server.Port)
	}
	if cfg.Storage.DataDir != "/tmp/lsnm-test" {
		t.Errorf("Storage.DataDir = %q", cfg.Storage.DataDir)
	}
	if cfg.Storage.SeedDemo {
		t.Error("Storage.SeedDemo = true, want false")
	}
	if cfg.Prompt.FileTimeout != 500*time.Millisecond {
		t.Errorf("Prompt.FileTimeout = %v", cfg.Prompt.FileTimeout)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q", cfg.Log.Level)
	}
}

func TestEnvOverridesBackend(t *testing.T) {
	clearEnv(t)
	t.Setenv("LSNM_SERVER_PORT", "5000")
	t.Setenv("LSNM_SYSTEM_PROMPT", "Be brief.")
	t.Setenv("LSNM_PROMPT_FILE_TIMEOUT", "3s")

	cfg, err := loadWith(mapBackend{"server.port": 4100, "chat.system_prompt": "file prompt"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 5000 {
		t.Errorf("Server.Port = %d, want 5000", cfg.Server.Port)
	}
	if cfg.Chat.SystemPrompt != "Be brief." {
		t.Errorf("Chat.SystemPrompt = %q", cfg.Chat.SystemPrompt)
	}
	if cfg.Prompt.FileTimeout != 3*time.Second {
		t.Errorf("Prompt.FileTimeout = %v", cfg.Prompt.FileTimeout)
	}
}

func TestSecretsOnlyFromEnv(t *testing.T) {
	clearEnv(t)

	cfg, err := loadWith(mapBackend{"proxy.openrouter_api_key": "file-key"})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Proxy.OpenRouterAPIKey != "" {
		t.Errorf("OpenRouterAPIKey = %q, secrets must not load from file", cfg.Proxy.OpenRouterAPIKey)
	}
	if err := cfg.RequireAPIKey(); err == nil {
		t.Error("RequireAPIKey() = nil, want error")
	}

	t.Setenv("LSNM_OPENROUTER_API_KEY", "env-key")
	cfg, err = loadWith(mapBackend{})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Proxy.OpenRouterAPIKey != "env-key" {
		t.Errorf("OpenRouterAPIKey = %q, want env-key", cfg.Proxy.OpenRouterAPIKey)
	}
	if err := cfg.RequireAPIKey(); err != nil {
		t.Errorf("RequireAPIKey() = %v", err)
	}
}

func TestAliasEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("OPENROUTER_API_KEY", "alias-key")
	t.Setenv("PORT", "8080")

	cfg, err := loadWith(mapBackend{})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Proxy.OpenRouterAPIKey != "alias-key" {
		t.Errorf("OpenRouterAPIKey = %q", cfg.Proxy.OpenRouterAPIKey)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d", cfg.Server.Port)
	}

	t.Setenv("LSNM_SERVER_PORT", "9090")
	cfg, _ = loadWith(mapBackend{})
	if cfg.Server.Port != 9090 {
		t.Errorf("prefixed var should win over alias, got %d", cfg.Server.Port)
	}
}

func TestInvalidEnvKeepsDefault(t *testing.T) {
	clearEnv(t)
	t.Setenv("LSNM_SERVER_PORT", "not-a-number")
	t.Setenv("LSNM_STORAGE_SEED_DEMO", "maybe")
	t.Setenv("LSNM_PROMPT_FILE_TIMEOUT", "-1s")

	cfg, err := loadWith(mapBackend{})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Port != 3001 {
		t.Errorf("Server.Port = %d, want default", cfg.Server.Port)
	}
	if !cfg.Storage.SeedDemo {
		t.Error("Storage.SeedDemo changed on invalid input")
	}
	if cfg.Prompt.FileTimeout != 2*time.Second {
		t.Errorf("Prompt.FileTimeout = %v, want default", cfg.Prompt.FileTimeout)
	}
}

func TestSetKey(t *testing.T) {
	b := mapBackend{}

	if err := setKeyWith(b, "server.port", "4200"); err != nil {
		t.Fatalf("set port: %v", err)
	}
	if b["server.port"] != 4200 {
		t.Errorf("stored port = %v", b["server.port"])
	}
	if err := setKeyWith(b, "prompt.file_timeout", "750ms"); err != nil {
		t.Fatalf("set timeout: %v", err)
	}

	for _, tc := range []struct{ key, value string }{
		{"server.port", "abc"},
		{"storage.seed_demo", "perhaps"},
		{"prompt.file_timeout", "soon"},
		{"proxy.openrouter_api_key", "sk-123"},
		{"no.such_key", "x"},
	} {
		if err := setKeyWith(b, tc.key, tc.value); err == nil {
			t.Errorf("setKeyWith(%q, %q) = nil, want error", tc.key, tc.value)
		}
	}
}

func TestShowAllHidesSecrets(t *testing.T) {
	cfg := defaults()
	cfg.Proxy.OpenRouterAPIKey = "sk-secret"

	for _, info := range ShowAll(cfg) {
		if strings.Contains(info.Key, "api_key") || strings.Contains(info.Key, "jwt_secret") {
			t.Errorf("ShowAll exposed secret key %s", info.Key)
		}
		if info.Value == "sk-secret" {
			t.Errorf("ShowAll exposed secret value under %s", info.Key)
		}
	}
	if len(ShowAll(cfg)) != len(ValidKeys()) {
		t.Error("ShowAll and ValidKeys disagree")
	}
}

func TestFileBackendRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lsnm", "config.json")

	b := newFileBackend(path)
	if err := b.SetInt("server.port", 4300); err != nil {
		t.Fatal(err)
	}
	if err := b.SetString("log.level", "warn"); err != nil {
		t.Fatal(err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var onDisk map[string]any
	if err := json.Unmarshal(raw, &onDisk); err != nil {
		t.Fatalf("config file is not JSON: %v", err)
	}

	reloaded := newFileBackend(path)
	port, ok, err := reloaded.GetInt("server.port")
	if err != nil || !ok || port != 4300 {
		t.Errorf("GetInt = %d, %v, %v", port, ok, err)
	}
	level, ok, _ := reloaded.GetString("log.level")
	if !ok || level != "warn" {
		t.Errorf("GetString = %q, %v", level, ok)
	}
	if err := reloaded.Delete("log.level"); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := newFileBackend(path).GetString("log.level"); ok {
		t.Error("deleted key still present")
	}
}

func TestFileBackendRejectsFractionalInt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{"server.port": 30.5}`), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := loadWith(newFileBackend(path)); err == nil {
		t.Error("expected error for fractional port")
	}
}

func TestFileBackendHandEditedValues(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.json")
	doc := `{"storage.seed_demo": false, "server.port": "4400", "log.level": "debug"}`
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatal(err)
	}

	b := newFileBackend(path)
	if v, ok, err := b.GetString("storage.seed_demo"); err != nil || !ok || v != "false" {
		t.Errorf("GetString(bare bool) = %q, %v, %v", v, ok, err)
	}
	if v, ok, err := b.GetInt("server.port"); err != nil || !ok || v != 4400 {
		t.Errorf("GetInt(quoted) = %d, %v, %v", v, ok, err)
	}

	cfg, err := loadWith(b)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Storage.SeedDemo || cfg.Server.Port != 4400 || cfg.Log.Level != "debug" {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestFileBackendMalformedFileIgnored(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{not json`), 0o600); err != nil {
		t.Fatal(err)
	}
	b := newFileBackend(path)
	if _, ok, _ := b.GetString("log.level"); ok {
		t.Error("malformed file should contribute no keys")
	}
	if err := b.SetString("log.level", "warn"); err != nil {
		t.Fatalf("SetString: %v", err)
	}
	if v, _, _ := newFileBackend(path).GetString("log.level"); v != "warn" {
		t.Errorf("after rewrite log.level = %q", v)
	}
}

func TestPathsFollowXDG(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/tmp/cfg")
	t.Setenv("XDG_DATA_HOME", "/tmp/data")
	if got := FilePath(); got != filepath.Join("/tmp/cfg", "lsnm", "config.json") {
		t.Errorf("FilePath = %q", got)
	}
	if got := defaultDataDir(); got != filepath.Join("/tmp/data", "lsnm") {
		t.Errorf("defaultDataDir = %q", got)
	}
}
