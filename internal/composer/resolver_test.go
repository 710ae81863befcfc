package composer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/lonesomenomore/lsnm/internal/profile"
)

// mockProfiles implements ProfileGetter.
type mockProfiles struct {
	mu       sync.Mutex
	profiles map[string]profile.Profile
	err      error
	calls    int
}

func (m *mockProfiles) Get(id string) (profile.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return profile.Profile{}, m.err
	}
	p, ok := m.profiles[id]
	if !ok {
		return profile.Profile{}, profile.ErrNotFound
	}
	return p, nil
}

func newMockProfiles() *mockProfiles {
	return &mockProfiles{profiles: map[string]profile.Profile{
		"loved_789xyz": {ID: "loved_789xyz", FirstName: "Mary", Nickname: "Mom"},
	}}
}

func writePromptFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing %s: %v", path, err)
	}
	return path
}

func TestResolve_InlineWins(t *testing.T) {
	dir := t.TempDir()
	file := writePromptFile(t, dir, "prompt.txt", "from file")
	profiles := newMockProfiles()
	r := &Resolver{Profiles: profiles}

	inline := "  You are Mary's companion.  "
	got, err := r.Resolve(context.Background(), Source{Inline: inline, File: file, ProfileID: "loved_789xyz"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got != inline {
		t.Errorf("Resolve = %q, want inline prompt verbatim", got)
	}
	if profiles.calls != 0 {
		t.Errorf("profile store consulted %d times, want 0", profiles.calls)
	}
}

func TestResolve_BlankInlineIgnored(t *testing.T) {
	r := &Resolver{Profiles: newMockProfiles()}
	got, err := r.Resolve(context.Background(), Source{Inline: "   ", ProfileID: "loved_789xyz"})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(got, "# AI Companion for Mary (Mom)") {
		t.Errorf("expected synthesized prompt, got %q", got)
	}
}

func TestResolve_FileTrimmed(t *testing.T) {
	dir := t.TempDir()
	writePromptFile(t, dir, "prompt.txt", "\n  Be kind to Harold.\n\n")
	r := &Resolver{Profiles: newMockProfiles(), BaseDir: dir}

	got, err := r.Resolve(context.Background(), Source{File: "prompt.txt", ProfileID: "loved_789xyz"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got != "Be kind to Harold." {
		t.Errorf("Resolve = %q", got)
	}
}

func TestResolve_EmptyFileGivesEmptyPrompt(t *testing.T) {
	dir := t.TempDir()
	path := writePromptFile(t, dir, "empty.txt", "  \n")
	r := &Resolver{Profiles: newMockProfiles()}

	got, err := r.Resolve(context.Background(), Source{File: path, ProfileID: "loved_789xyz"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got != "" {
		t.Errorf("Resolve = %q, want empty", got)
	}
}

func TestResolve_MissingFileIsConfigurationError(t *testing.T) {
	profiles := newMockProfiles()
	r := &Resolver{Profiles: profiles}

	_, err := r.Resolve(context.Background(), Source{File: "/nonexistent/path.txt", ProfileID: "loved_789xyz"})
	var cfgErr *ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("error = %v, want *ConfigurationError", err)
	}
	if cfgErr.Path != "/nonexistent/path.txt" {
		t.Errorf("Path = %q", cfgErr.Path)
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("error should wrap os.ErrNotExist: %v", err)
	}
	if !strings.Contains(err.Error(), "/nonexistent/path.txt") {
		t.Errorf("message should name the path: %v", err)
	}
	if profiles.calls != 0 {
		t.Error("resolver fell through to the profile after a file error")
	}
}

func TestResolve_DirectoryIsConfigurationError(t *testing.T) {
	r := &Resolver{}
	_, err := r.Resolve(context.Background(), Source{File: t.TempDir()})
	var cfgErr *ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("error = %v, want *ConfigurationError", err)
	}
}

func TestResolve_CancelledContext(t *testing.T) {
	dir := t.TempDir()
	path := writePromptFile(t, dir, "prompt.txt", "hello")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := &Resolver{}
	_, err := r.Resolve(ctx, Source{File: path})
	var cfgErr *ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("error = %v, want *ConfigurationError", err)
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error should wrap context.Canceled: %v", err)
	}
}

func TestResolve_Profile(t *testing.T) {
	r := &Resolver{Profiles: newMockProfiles()}
	got, err := r.Resolve(context.Background(), Source{ProfileID: "loved_789xyz"})
	if err != nil {
		t.Fatal(err)
	}
	want := Synthesize(profile.Profile{ID: "loved_789xyz", FirstName: "Mary", Nickname: "Mom"})
	if got != want {
		t.Errorf("Resolve did not return the synthesized prompt")
	}
}

func TestResolve_UnknownProfileIsEmpty(t *testing.T) {
	r := &Resolver{Profiles: newMockProfiles()}
	got, err := r.Resolve(context.Background(), Source{ProfileID: "loved_unknown"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got != "" {
		t.Errorf("Resolve = %q, want empty", got)
	}
}

func TestResolve_StoreErrorReturned(t *testing.T) {
	profiles := newMockProfiles()
	profiles.err = fmt.Errorf("disk I/O error")
	r := &Resolver{Profiles: profiles}

	if _, err := r.Resolve(context.Background(), Source{ProfileID: "loved_789xyz"}); err == nil {
		t.Error("expected store error to be returned")
	}
}

func TestResolve_NoSource(t *testing.T) {
	r := &Resolver{Profiles: newMockProfiles()}
	got, err := r.Resolve(context.Background(), Source{})
	if err != nil || got != "" {
		t.Errorf("Resolve = %q, %v; want empty, nil", got, err)
	}
}

func TestResolve_ConcurrentUse(t *testing.T) {
	r := &Resolver{Profiles: newMockProfiles()}
	want := Synthesize(profile.Profile{ID: "loved_789xyz", FirstName: "Mary", Nickname: "Mom"})

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := r.Resolve(context.Background(), Source{ProfileID: "loved_789xyz"})
			if err != nil {
				errs <- err
				return
			}
			if got != want {
				errs <- fmt.Errorf("unexpected prompt")
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}

func TestDescribe(t *testing.T) {
	r := &Resolver{}
	tests := []struct {
		src  Source
		want string
	}{
		{Source{Inline: "hi", File: "a.txt", ProfileID: "p"}, "inline"},
		{Source{File: "prompts/mary.txt", ProfileID: "p"}, "prompts/mary.txt"},
		{Source{ProfileID: "loved_789xyz"}, "profile:loved_789xyz"},
		{Source{Inline: "  "}, "none"},
	}
	for _, tt := range tests {
		if got := r.Describe(tt.src); got != tt.want {
			t.Errorf("Describe(%+v) = %q, want %q", tt.src, got, tt.want)
		}
	}
}
