package profile

import (
	"errors"
	"fmt"
	"strings"

	"github.com/lonesomenomore/lsnm/internal/storage"
)

// ErrNotFound is returned when no loved one has the requested id.
var ErrNotFound = fmt.Errorf("loved one %w", storage.ErrNotFound)

// ErrInvalid is wrapped by validation and enrichment errors caused by bad input.
var ErrInvalid = errors.New("invalid profile")

// FromRecord builds a Profile from a stored row, parsing the list fields.
func FromRecord(l storage.LovedOne) Profile {
	p := Profile{
		ID:        l.ID,
		UserID:    l.UserID,
		FirstName: l.FirstName,
		LastName:  l.LastName,
		Nickname:  l.Nickname,

		Gender:      l.Gender,
		PhoneNumber: l.PhoneNumber,
		Location:    l.Location,

		Personality:        l.Personality,
		CommunicationStyle: l.CommunicationStyle,
		Backstory:          l.Backstory,
		CoreValues:         l.CoreValues,
		CurrentSituation:   l.CurrentSituation,
		HealthInfo:         l.HealthInfo,

		Interests:         ParseStringList("interests", l.Interests),
		PeopleWhoMatter:   ParsePersonList("peopleWhoMatter", l.PeopleWhoMatter),
		ConversationHooks: ParseStringList("conversationHooks", l.ConversationHooks),

		SafetyContactName:         l.SafetyContactName,
		SafetyContactPhone:        l.SafetyContactPhone,
		SafetyContactRelationship: l.SafetyContactRelationship,

		CommunicationPreferences: l.CommunicationPreferences,
		CreatedAt:                l.CreatedAt,
	}
	if l.Age != nil {
		age := *l.Age
		p.Age = &age
	}
	return p
}

// Record converts the profile back into its stored row.
func (p Profile) Record() storage.LovedOne {
	l := storage.LovedOne{
		ID:        p.ID,
		UserID:    p.UserID,
		FirstName: strings.TrimSpace(p.FirstName),
		LastName:  p.LastName,
		Nickname:  p.Nickname,

		Gender:      p.Gender,
		PhoneNumber: p.PhoneNumber,
		Location:    p.Location,

		Personality:        p.Personality,
		CommunicationStyle: p.CommunicationStyle,
		Backstory:          p.Backstory,
		Interests:          encodeValue(p.Interests),
		CoreValues:         p.CoreValues,
		CurrentSituation:   p.CurrentSituation,
		PeopleWhoMatter:    encodeValue(p.PeopleWhoMatter),
		ConversationHooks:  encodeValue(p.ConversationHooks),
		HealthInfo:         p.HealthInfo,

		SafetyContactName:         p.SafetyContactName,
		SafetyContactPhone:        p.SafetyContactPhone,
		SafetyContactRelationship: p.SafetyContactRelationship,

		CommunicationPreferences: p.CommunicationPreferences,
		CreatedAt:                p.CreatedAt,
	}
	if p.Age != nil {
		age := *p.Age
		l.Age = &age
	}
	return l
}

// Validate checks the fields intake and enrichment must not break.
func (p Profile) Validate() error {
	if strings.TrimSpace(p.FirstName) == "" {
		return fmt.Errorf("%w: firstName is required", ErrInvalid)
	}
	if p.Age != nil && *p.Age < 0 {
		return fmt.Errorf("%w: age must not be negative, got %d", ErrInvalid, *p.Age)
	}
	return nil
}

// DisplayName is "First Last", or just the first name.
func (p Profile) DisplayName() string {
	first := strings.TrimSpace(p.FirstName)
	if last := strings.TrimSpace(p.LastName); last != "" {
		return first + " " + last
	}
	return first
}

// DistinctNickname returns the trimmed nickname when it differs from the
// first name (case-insensitively), otherwise "".
func (p Profile) DistinctNickname() string {
	nick := strings.TrimSpace(p.Nickname)
	if nick == "" || strings.EqualFold(nick, strings.TrimSpace(p.FirstName)) {
		return ""
	}
	return nick
}
