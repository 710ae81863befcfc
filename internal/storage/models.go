package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

type User struct {
	ID        string
	Email     string
	FirstName string
	LastName  string
	CreatedAt time.Time
}

// LovedOne is the persisted profile row. List-shaped fields (Interests,
// PeopleWhoMatter, ConversationHooks) hold serialized JSON text exactly as
// stored; parsing is the profile package's job.
type LovedOne struct {
	ID        string
	UserID    string
	FirstName string
	LastName  string
	Nickname  string
	Age       *int

	Gender      string
	PhoneNumber string
	Location    string

	Personality        string
	CommunicationStyle string
	Backstory          string
	Interests          string // JSON array stored as text
	CoreValues         string
	CurrentSituation   string
	PeopleWhoMatter    string // JSON array of {name, relation, note}
	ConversationHooks  string // JSON array stored as text
	HealthInfo         string

	SafetyContactName         string
	SafetyContactPhone        string
	SafetyContactRelationship string

	CommunicationPreferences string // raw JSON object from intake
	CreatedAt                time.Time
}

type Conversation struct {
	ID         string
	LovedOneID string
	Date       time.Time
	Duration   int
	Summary    string
	Sentiment  string
	Topics     string // JSON array stored as text
	CreatedAt  time.Time

	// Messages is populated by GetConversation only.
	Messages []Message
}

// ConversationUpdate carries the fields to change; zero values are left untouched.
type ConversationUpdate struct {
	Summary   string
	Sentiment string
	Duration  int
}

type Message struct {
	ID             string
	ConversationID string
	Role           string
	Content        string
	Timestamp      time.Time
}
