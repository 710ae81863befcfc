package api

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/lonesomenomore/lsnm/internal/profile"
	"github.com/lonesomenomore/lsnm/internal/storage"
)

const recentConversations = 5

type dashboardStats struct {
	LastCallDate  time.Time `json:"lastCallDate"`
	TotalCalls    int       `json:"totalCalls"`
	AverageMood   string    `json:"averageMood"`
	CurrentStreak int       `json:"currentStreak"`
	UpcomingCall  struct {
		ScheduledAt time.Time `json:"scheduledAt"`
		Timezone    string    `json:"timezone"`
	} `json:"upcomingCall"`
}

// averageMood is positive when more than half of the recent conversations are.
func averageMood(recent []storage.Conversation) string {
	positive := 0
	for _, c := range recent {
		if c.Sentiment == "positive" {
			positive++
		}
	}
	if positive*2 > len(recent) {
		return "positive"
	}
	return "neutral"
}

func handleDashboard(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.URL.Query().Get("lovedOneId")
		if id == "" {
			id = deps.DefaultLovedOneID
		}

		p, err := deps.Profiles.Get(id)
		if errors.Is(err, profile.ErrNotFound) {
			httpError(w, http.StatusNotFound, codeNotFound, "Loved one not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, codeInternal, "%v", err)
			return
		}

		var (
			total  int
			recent []storage.Conversation
		)
		g, ctx := errgroup.WithContext(r.Context())
		g.Go(func() error {
			n, err := deps.Store.CountConversations(id)
			if err != nil {
				return fmt.Errorf("counting conversations: %w", err)
			}
			total = n
			return nil
		})
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			rows, err := deps.Store.ListConversations(id, recentConversations, 0)
			if err != nil {
				return fmt.Errorf("listing recent conversations: %w", err)
			}
			recent = rows
			return nil
		})
		if err := g.Wait(); err != nil {
			httpError(w, http.StatusInternalServerError, codeInternal, "%v", err)
			return
		}

		now := deps.Now().UTC()
		var stats dashboardStats
		stats.TotalCalls = total
		stats.AverageMood = averageMood(recent)
		stats.CurrentStreak = total
		stats.LastCallDate = now
		if len(recent) > 0 {
			stats.LastCallDate = recent[0].Date
		}
		stats.UpcomingCall.ScheduledAt = now.Add(24 * time.Hour)
		stats.UpcomingCall.Timezone = deps.Timezone

		convs := make([]dashboardConversation, 0, len(recent))
		for _, c := range recent {
			convs = append(convs, dashboardConversation{
				conversationSummary: toConversationSummary(c),
				Topics:              parseTopics(c.Topics),
				Flags:               []string{},
				TranscriptAvailable: true,
			})
		}

		weekAgo := now.AddDate(0, 0, -7)
		writeJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"lovedOne": map[string]any{
				"id":          p.ID,
				"firstName":   p.FirstName,
				"lastName":    p.LastName,
				"nickname":    p.Nickname,
				"phoneNumber": p.PhoneNumber,
			},
			"stats":               stats,
			"recentConversations": convs,
			"weeklyInsight": map[string]any{
				"period":         weekAgo.Format(time.DateOnly) + " to " + now.Format(time.DateOnly),
				"summary":        fmt.Sprintf("%s has been consistently engaged and positive this week.", p.FirstName),
				"moodTrend":      "stable",
				"healthMentions": []string{},
				"notableTopics":  []string{"General conversation", "Family", "Interests"},
			},
			"alerts": []string{},
		})
	}
}
