package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/lonesomenomore/lsnm/internal/storage"
)

const tokenTTL = 24 * time.Hour

type userView struct {
	ID        string         `json:"id"`
	Email     string         `json:"email"`
	FirstName string         `json:"firstName"`
	LastName  string         `json:"lastName"`
	LovedOnes []lovedOneLink `json:"lovedOnes,omitempty"`
}

type lovedOneLink struct {
	ID           string `json:"id"`
	FirstName    string `json:"firstName"`
	LastName     string `json:"lastName"`
	Relationship string `json:"relationship"`
}

// issueToken signs an HS256 token for u that expires after 24h.
func issueToken(secret string, u storage.User, now time.Time) (string, error) {
	claims := jwt.MapClaims{
		"sub":   u.ID,
		"email": u.Email,
		"iat":   now.Unix(),
		"exp":   now.Add(tokenTTL).Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}

func handleLogin(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// The body is accepted but ignored; every login resolves to the mock user.
		u := currentUser(r)
		token, err := issueToken(deps.JWTSecret, u, deps.Now())
		if err != nil {
			httpError(w, http.StatusInternalServerError, codeInternal, "%v", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"success":      true,
			"token":        token,
			"refreshToken": "mock_refresh_token",
			"user":         toUserView(u),
		})
	}
}

func handleMe(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u := currentUser(r)
		if stored, err := deps.Store.GetUser(u.ID); err == nil {
			u = stored
		}

		profiles, err := deps.Profiles.List(u.ID)
		if err != nil {
			httpError(w, http.StatusInternalServerError, codeInternal, "%v", err)
			return
		}

		view := toUserView(u)
		view.LovedOnes = make([]lovedOneLink, 0, len(profiles))
		for _, p := range profiles {
			view.LovedOnes = append(view.LovedOnes, lovedOneLink{
				ID:           p.ID,
				FirstName:    p.FirstName,
				LastName:     p.LastName,
				Relationship: "Family",
			})
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "user": view})
	}
}

func handleLogout(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Logged out successfully",
	})
}

func toUserView(u storage.User) userView {
	return userView{ID: u.ID, Email: u.Email, FirstName: u.FirstName, LastName: u.LastName}
}
