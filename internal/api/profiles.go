package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/lonesomenomore/lsnm/internal/composer"
	"github.com/lonesomenomore/lsnm/internal/profile"
)

func handleListLovedOnes(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		profiles, err := deps.Profiles.List(currentUser(r).ID)
		if err != nil {
			httpError(w, http.StatusInternalServerError, codeInternal, "%v", err)
			return
		}
		out := make([]lovedOneSummary, 0, len(profiles))
		for _, p := range profiles {
			out = append(out, toLovedOneSummary(p))
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "lovedOnes": out})
	}
}

func handleIntake(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var form profile.IntakeForm
		if err := decodeBody(w, r, &form); err != nil {
			httpError(w, http.StatusBadRequest, codeInvalidRequest, "invalid request body: %v", err)
			return
		}

		p, err := form.Profile(currentUser(r).ID)
		if err != nil {
			profileError(w, err)
			return
		}
		id, err := deps.Profiles.Create(p)
		if err != nil {
			profileError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, map[string]any{
			"success":             true,
			"intakeId":            "intake_" + id,
			"lovedOneId":          id,
			"status":              "approved",
			"message":             "Application submitted successfully",
			"estimatedReviewTime": "Approved for prototype",
		})
	}
}

func handleGetProfile(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := deps.Profiles.Get(chi.URLParam(r, "lovedOneId"))
		if err != nil {
			profileError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "profile": toProfileView(p)})
	}
}

func handleEnrichProfile(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var e profile.Enrichment
		if err := decodeBody(w, r, &e); err != nil {
			httpError(w, http.StatusBadRequest, codeInvalidRequest, "invalid request body: %v", err)
			return
		}

		p, err := deps.Profiles.Enrich(chi.URLParam(r, "lovedOneId"), e)
		if err != nil {
			profileError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"message": "Profile enriched successfully",
			"profile": toProfileView(p),
		})
	}
}

func handleSystemPrompt(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := deps.Profiles.Get(chi.URLParam(r, "lovedOneId"))
		if err != nil {
			profileError(w, err)
			return
		}
		sections := composer.Sections(p)
		titles := make([]string, 0, len(sections))
		for _, s := range sections {
			titles = append(titles, s.Title)
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"success":      true,
			"lovedOneId":   p.ID,
			"systemPrompt": composer.Synthesize(p),
			"sections":     titles,
		})
	}
}

func profileError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, profile.ErrNotFound):
		httpError(w, http.StatusNotFound, codeNotFound, "Profile not found")
	case errors.Is(err, profile.ErrInvalid):
		httpError(w, http.StatusBadRequest, codeValidation, "%v", err)
	default:
		httpError(w, http.StatusInternalServerError, codeInternal, "%v", err)
	}
}
