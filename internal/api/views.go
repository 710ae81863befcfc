package api

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/lonesomenomore/lsnm/internal/conversation"
	"github.com/lonesomenomore/lsnm/internal/profile"
	"github.com/lonesomenomore/lsnm/internal/storage"
)

const noSummary = "No summary available"

// valueJSON renders a list-shaped profile field: lists as arrays, degraded
// text as a string, absent as null.
func valueJSON(v profile.Value) any {
	switch v := v.(type) {
	case profile.StringList:
		return []string(v)
	case profile.PersonList:
		return []profile.Person(v)
	case profile.Text:
		return string(v)
	case profile.Unparsed:
		return string(v)
	}
	return nil
}

func optional(s string) *string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return &s
}

type lovedOneSummary struct {
	ID          string  `json:"id"`
	FirstName   string  `json:"firstName"`
	LastName    string  `json:"lastName"`
	Nickname    string  `json:"nickname"`
	Age         *int    `json:"age"`
	Location    string  `json:"location"`
	Personality *string `json:"personality"`
}

func toLovedOneSummary(p profile.Profile) lovedOneSummary {
	s := lovedOneSummary{
		ID:        p.ID,
		FirstName: p.FirstName,
		LastName:  p.LastName,
		Nickname:  p.Nickname,
		Age:       p.Age,
		Location:  p.Location,
	}
	if strings.TrimSpace(p.Personality) != "" {
		preview := conversation.Summarize(p.Personality)
		s.Personality = &preview
	}
	return s
}

type profileView struct {
	ID           string `json:"id"`
	PersonalInfo struct {
		FirstName   string `json:"firstName"`
		LastName    string `json:"lastName"`
		Nickname    string `json:"nickname"`
		Age         *int   `json:"age"`
		Gender      string `json:"gender"`
		PhoneNumber string `json:"phoneNumber"`
		Location    string `json:"location"`
	} `json:"personalInfo"`
	Personality struct {
		Personality        *string `json:"personality"`
		CommunicationStyle *string `json:"communicationStyle"`
	} `json:"personality"`
	LifeStory struct {
		Backstory        *string `json:"backstory"`
		CoreValues       *string `json:"coreValues"`
		CurrentSituation *string `json:"currentSituation"`
		PeopleWhoMatter  any     `json:"peopleWhoMatter"`
	} `json:"lifeStory"`
	Interests struct {
		Interests         any `json:"interests"`
		ConversationHooks any `json:"conversationHooks"`
	} `json:"interests"`
	Health struct {
		HealthInfo    *string `json:"healthInfo"`
		SafetyContact *struct {
			Name         string `json:"name"`
			Phone        string `json:"phone,omitempty"`
			Relationship string `json:"relationship,omitempty"`
		} `json:"safetyContact"`
	} `json:"health"`
	CommunicationPreferences json.RawMessage `json:"communicationPreferences"`
	CreatedAt                time.Time       `json:"createdAt"`
}

func toProfileView(p profile.Profile) profileView {
	var v profileView
	v.ID = p.ID
	v.PersonalInfo.FirstName = p.FirstName
	v.PersonalInfo.LastName = p.LastName
	v.PersonalInfo.Nickname = p.Nickname
	v.PersonalInfo.Age = p.Age
	v.PersonalInfo.Gender = p.Gender
	v.PersonalInfo.PhoneNumber = p.PhoneNumber
	v.PersonalInfo.Location = p.Location

	v.Personality.Personality = optional(p.Personality)
	v.Personality.CommunicationStyle = optional(p.CommunicationStyle)

	v.LifeStory.Backstory = optional(p.Backstory)
	v.LifeStory.CoreValues = optional(p.CoreValues)
	v.LifeStory.CurrentSituation = optional(p.CurrentSituation)
	v.LifeStory.PeopleWhoMatter = valueJSON(p.PeopleWhoMatter)

	v.Interests.Interests = valueJSON(p.Interests)
	v.Interests.ConversationHooks = valueJSON(p.ConversationHooks)

	v.Health.HealthInfo = optional(p.HealthInfo)
	if strings.TrimSpace(p.SafetyContactName) != "" {
		v.Health.SafetyContact = &struct {
			Name         string `json:"name"`
			Phone        string `json:"phone,omitempty"`
			Relationship string `json:"relationship,omitempty"`
		}{p.SafetyContactName, p.SafetyContactPhone, p.SafetyContactRelationship}
	}

	v.CommunicationPreferences = json.RawMessage(`{}`)
	if raw := strings.TrimSpace(p.CommunicationPreferences); raw != "" && json.Valid([]byte(raw)) {
		v.CommunicationPreferences = json.RawMessage(raw)
	}
	v.CreatedAt = p.CreatedAt
	return v
}

type conversationSummary struct {
	ID        string    `json:"id"`
	Date      time.Time `json:"date"`
	Duration  int       `json:"duration"`
	Summary   string    `json:"summary"`
	Sentiment string    `json:"sentiment"`
}

// dashboardConversation adds the fields the dashboard cards show.
type dashboardConversation struct {
	conversationSummary
	Topics              []string `json:"topics"`
	Flags               []string `json:"flags"`
	TranscriptAvailable bool     `json:"transcriptAvailable"`
}

func toConversationSummary(c storage.Conversation) conversationSummary {
	s := conversationSummary{
		ID:        c.ID,
		Date:      c.Date,
		Duration:  c.Duration,
		Summary:   c.Summary,
		Sentiment: c.Sentiment,
	}
	if s.Summary == "" {
		s.Summary = noSummary
	}
	return s
}

// parseTopics decodes the stored topics column, treating anything malformed
// as no topics.
func parseTopics(raw string) []string {
	var topics []string
	if err := json.Unmarshal([]byte(raw), &topics); err != nil || topics == nil {
		return []string{}
	}
	return topics
}

type transcriptLine struct {
	Timestamp time.Time `json:"timestamp"`
	Speaker   string    `json:"speaker"`
	Text      string    `json:"text"`
}

func speaker(role string) string {
	if role == conversation.RoleUser {
		return "User"
	}
	return "AI"
}
