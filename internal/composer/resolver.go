package composer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/lonesomenomore/lsnm/internal/profile"
)

const defaultFileTimeout = 2 * time.Second

// Source is the set of candidate system-prompt origins for one request.
type Source struct {
	Inline    string
	File      string
	ProfileID string
}

// ConfigurationError reports an explicit prompt file that could not be read.
type ConfigurationError struct {
	Path string
	Err  error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("reading system prompt file %s: %v", e.Path, e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// ProfileGetter loads a profile by id. Implemented by profile.Manager.
type ProfileGetter interface {
	Get(id string) (profile.Profile, error)
}

// Resolver picks the effective system prompt from a Source. Priority is
// inline text, then the prompt file, then the synthesized profile prompt.
type Resolver struct {
	Profiles ProfileGetter

	// BaseDir anchors relative prompt file paths; empty means the working directory.
	BaseDir string

	// FileTimeout bounds the prompt file read; zero means 2s.
	FileTimeout time.Duration
}

// Resolve returns the system prompt for src, or "" when no source applies.
// A file read failure is returned as *ConfigurationError and never falls
// through to the profile.
func (r *Resolver) Resolve(ctx context.Context, src Source) (string, error) {
	if strings.TrimSpace(src.Inline) != "" {
		return src.Inline, nil
	}

	if src.File != "" {
		path := r.path(src.File)
		content, err := r.readFile(ctx, path)
		if err != nil {
			return "", &ConfigurationError{Path: src.File, Err: err}
		}
		return strings.TrimSpace(content), nil
	}

	if src.ProfileID != "" && r.Profiles != nil {
		p, err := r.Profiles.Get(src.ProfileID)
		if errors.Is(err, profile.ErrNotFound) {
			return "", nil
		}
		if err != nil {
			return "", fmt.Errorf("loading profile %s: %w", src.ProfileID, err)
		}
		return Synthesize(p), nil
	}

	return "", nil
}

// Describe names the source Resolve would use: "inline", the file path,
// "profile:<id>" or "none".
func (r *Resolver) Describe(src Source) string {
	switch {
	case strings.TrimSpace(src.Inline) != "":
		return "inline"
	case src.File != "":
		return src.File
	case src.ProfileID != "":
		return "profile:" + src.ProfileID
	}
	return "none"
}

func (r *Resolver) path(file string) string {
	if filepath.IsAbs(file) || r.BaseDir == "" {
		return file
	}
	return filepath.Join(r.BaseDir, file)
}

// readFile reads path, giving up when ctx is done or the timeout passes.
// A read that outlives the deadline finishes in the background and its
// result is dropped.
func (r *Resolver) readFile(ctx context.Context, path string) (string, error) {
	timeout := r.FileTimeout
	if timeout <= 0 {
		timeout = defaultFileTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := ctx.Err(); err != nil {
		return "", err
	}

	type result struct {
		data []byte
		err  error
	}
	done := make(chan result, 1)
	go func() {
		data, err := os.ReadFile(path)
		done <- result{data, err}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			return "", res.err
		}
		return string(res.data), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}
