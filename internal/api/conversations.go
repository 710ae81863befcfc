package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"github.com/lonesomenomore/lsnm/internal/storage"
)

// maxPage bounds the page parameter so (page-1)*limit cannot overflow.
const maxPage = 1_000_000

func handleListConversations(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.URL.Query().Get("lovedOneId")
		if id == "" {
			id = deps.DefaultLovedOneID
		}
		page := parseIntParam(r, "page", 1, maxPage)
		limit := parseIntParam(r, "limit", 20, 100)

		var (
			total int
			rows  []storage.Conversation
		)
		var g errgroup.Group
		g.Go(func() (err error) {
			total, err = deps.Store.CountConversations(id)
			return err
		})
		g.Go(func() (err error) {
			rows, err = deps.Store.ListConversations(id, limit, (page-1)*limit)
			return err
		})
		if err := g.Wait(); err != nil {
			httpError(w, http.StatusInternalServerError, codeInternal, "listing conversations: %v", err)
			return
		}

		out := make([]conversationSummary, 0, len(rows))
		for _, c := range rows {
			out = append(out, toConversationSummary(c))
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"success":       true,
			"conversations": out,
			"pagination": map[string]int{
				"currentPage":  page,
				"totalPages":   (total + limit - 1) / limit,
				"totalItems":   total,
				"itemsPerPage": limit,
			},
		})
	}
}

func handleGetConversation(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := deps.Store.GetConversation(chi.URLParam(r, "id"))
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, codeNotFound, "Conversation not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, codeInternal, "%v", err)
			return
		}

		transcript := make([]transcriptLine, 0, len(c.Messages))
		for _, m := range c.Messages {
			transcript = append(transcript, transcriptLine{
				Timestamp: m.Timestamp,
				Speaker:   speaker(m.Role),
				Text:      m.Content,
			})
		}

		summary := c.Summary
		if summary == "" {
			summary = noSummary
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"conversation": map[string]any{
				"id":             c.ID,
				"lovedOneId":     c.LovedOneID,
				"date":           c.Date,
				"duration":       c.Duration,
				"summary":        summary,
				"fullTranscript": transcript,
				"topics":         parseTopics(c.Topics),
				"sentiment": map[string]any{
					"overall":          c.Sentiment,
					"score":            0.8,
					"emotionalMarkers": []string{"engaged", "positive"},
				},
				"healthMentions": []string{},
				"flags":          []string{},
				"insights": map[string]string{
					"engagementLevel":  "high",
					"memoryRecall":     "good",
					"conversationFlow": "natural",
					"concernLevel":     "none",
				},
			},
		})
	}
}
