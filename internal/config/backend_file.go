package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

const appDir = "lsnm"

// xdgPath resolves elem under the directory named by env, falling back to
// home/homeRel. When no home directory exists the path is relative.
func xdgPath(env, homeRel string, elem ...string) string {
	base := os.Getenv(env)
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			home = "."
		}
		base = filepath.Join(home, homeRel)
	}
	return filepath.Join(append([]string{base, appDir}, elem...)...)
}

func defaultDataDir() string {
	return xdgPath("XDG_DATA_HOME", filepath.Join(".local", "share"))
}

// FilePath returns the location of the persisted config file.
func FilePath() string {
	return xdgPath("XDG_CONFIG_HOME", ".config", "config.json")
}

func newPlatformBackend() ConfigBackend {
	return newFileBackend(FilePath())
}

// fileBackend keeps dotted keys in one JSON object, e.g. {"server.port": 3001}.
// Values stay as raw JSON until a getter asks for a type.
type fileBackend struct {
	path   string
	values map[string]json.RawMessage
}

// newFileBackend reads path. A missing file is an empty config; an unreadable
// or malformed one is reported and ignored.
func newFileBackend(path string) *fileBackend {
	b := &fileBackend{path: path, values: map[string]json.RawMessage{}}

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
	case err != nil:
		fmt.Fprintf(os.Stderr, "[WARN] ignoring config file %s: %v\n", path, err)
	default:
		if err := json.Unmarshal(data, &b.values); err != nil {
			fmt.Fprintf(os.Stderr, "[WARN] ignoring malformed config file %s: %v\n", path, err)
			b.values = map[string]json.RawMessage{}
		}
	}
	return b
}

func (b *fileBackend) GetString(key string) (string, bool, error) {
	raw, ok := b.values[key]
	if !ok {
		return "", false, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, true, nil
	}
	// Hand-edited files may hold bare booleans or numbers.
	return strings.TrimSpace(string(raw)), true, nil
}

func (b *fileBackend) GetInt(key string) (int, bool, error) {
	raw, ok := b.values[key]
	if !ok {
		return 0, false, nil
	}
	var n int
	if err := json.Unmarshal(raw, &n); err == nil {
		return n, true, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if n, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return n, true, nil
		}
	}
	return 0, true, fmt.Errorf("%s: %s is not a whole number", key, raw)
}

func (b *fileBackend) SetString(key, val string) error {
	return b.set(key, val)
}

func (b *fileBackend) SetInt(key string, val int) error {
	return b.set(key, val)
}

func (b *fileBackend) Delete(key string) error {
	delete(b.values, key)
	return b.save()
}

func (b *fileBackend) set(key string, val any) error {
	raw, err := json.Marshal(val)
	if err != nil {
		return err
	}
	b.values[key] = raw
	return b.save()
}

// save replaces the file through a rename so readers never see a partial write.
func (b *fileBackend) save() error {
	if err := os.MkdirAll(filepath.Dir(b.path), 0o700); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}
	data, err := json.MarshalIndent(b.values, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(b.path), ".config-*.json")
	if err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		return fmt.Errorf("writing config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	if err := os.Rename(tmp.Name(), b.path); err != nil {
		return fmt.Errorf("replacing config: %w", err)
	}
	return nil
}
