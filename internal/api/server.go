// Package api serves the companion HTTP API and the MCP tool surface.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/lonesomenomore/lsnm/internal/composer"
	"github.com/lonesomenomore/lsnm/internal/conversation"
	"github.com/lonesomenomore/lsnm/internal/profile"
	"github.com/lonesomenomore/lsnm/internal/proxy"
	"github.com/lonesomenomore/lsnm/internal/storage"
)

// Deps holds everything the HTTP handlers need.
type Deps struct {
	Store    *storage.Store
	Profiles *profile.Manager
	Resolver *composer.Resolver
	Recorder *conversation.Recorder
	Proxy    *proxy.Client
	Logger   *slog.Logger

	Version           string
	DefaultModel      string
	DefaultLovedOneID string
	JWTSecret         string
	Timezone          string

	// Now defaults to time.Now.
	Now func() time.Time
}

func (d *Deps) setDefaults() {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Version == "" {
		d.Version = "dev"
	}
	if d.DefaultModel == "" {
		d.DefaultModel = "anthropic/claude-3.5-sonnet"
	}
	if d.DefaultLovedOneID == "" {
		d.DefaultLovedOneID = "loved_789xyz"
	}
	if d.Timezone == "" {
		d.Timezone = "MST"
	}
}

// NewRouter returns the full HTTP API. Everything except / and /health runs
// behind MockAuth.
func NewRouter(deps Deps) http.Handler {
	deps.setDefaults()

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(deps.Logger))
	r.Use(middleware.Recoverer)
	r.Use(CORS)

	r.Get("/", handleRoot(deps))
	r.Get("/health", handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(MockAuth)

		r.Post("/auth/login", handleLogin(deps))
		r.Get("/auth/me", handleMe(deps))
		r.Post("/auth/logout", handleLogout)

		r.Get("/loved-ones", handleListLovedOnes(deps))
		r.Post("/api/chat", handleChat(deps))
		r.Get("/models", handleModels(deps))

		r.Get("/dashboard/summary", handleDashboard(deps))

		r.Get("/conversations", handleListConversations(deps))
		r.Get("/conversations/{id}", handleGetConversation(deps))

		r.Post("/intake/submit", handleIntake(deps))
		r.Get("/profile/{lovedOneId}", handleGetProfile(deps))
		r.Patch("/profile/{lovedOneId}/enrich", handleEnrichProfile(deps))
		r.Get("/profile/{lovedOneId}/system-prompt", handleSystemPrompt(deps))
	})

	return r
}

func handleRoot(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"status":  "ok",
			"message": "LoneSomeNoMore API",
			"version": deps.Version,
		})
	}
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}
