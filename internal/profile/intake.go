package profile

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// IntakeForm is the beta intake submission. Each section is keyed by the
// form step name; unknown keys are ignored.
type IntakeForm struct {
	LovedOne struct {
		FirstName   string  `json:"lovedOneFirstName"`
		LastName    string  `json:"lovedOneLastName"`
		Nickname    string  `json:"nickname"`
		Age         flexInt `json:"age"`
		Gender      string  `json:"gender"`
		PhoneNumber string  `json:"phoneNumber"`
		Location    string  `json:"location"`
	} `json:"loved-one"`

	LifeStory struct {
		Backstory        string   `json:"backstory"`
		CoreValues       string   `json:"coreValues"`
		CurrentSituation string   `json:"currentSituation"`
		PeopleWhoMatter  []Person `json:"peopleWhoMatter"`
	} `json:"life-story"`

	Interests struct {
		Interests         []string `json:"interests"`
		ConversationHooks []string `json:"conversationHooks"`
	} `json:"interests"`

	Health struct {
		HealthInfo                string `json:"healthInfo"`
		SafetyContactName         string `json:"safetyContactName"`
		SafetyContactPhone        string `json:"safetyContactPhone"`
		SafetyContactRelationship string `json:"safetyContactRelationship"`
	} `json:"health"`

	// Communication is kept verbatim as the communication preferences; the
	// personality and style keys are also lifted into the profile.
	Communication json.RawMessage `json:"communication"`
}

// Profile maps the form into the unified profile schema for userID.
func (f IntakeForm) Profile(userID string) (Profile, error) {
	p := Profile{
		UserID:      userID,
		FirstName:   strings.TrimSpace(f.LovedOne.FirstName),
		LastName:    strings.TrimSpace(f.LovedOne.LastName),
		Nickname:    strings.TrimSpace(f.LovedOne.Nickname),
		Age:         f.LovedOne.Age.ptr(),
		Gender:      f.LovedOne.Gender,
		PhoneNumber: f.LovedOne.PhoneNumber,
		Location:    f.LovedOne.Location,

		Backstory:        f.LifeStory.Backstory,
		CoreValues:       f.LifeStory.CoreValues,
		CurrentSituation: f.LifeStory.CurrentSituation,
		PeopleWhoMatter:  cleanPeople(f.LifeStory.PeopleWhoMatter),

		Interests:         cleanStrings(f.Interests.Interests),
		ConversationHooks: cleanStrings(f.Interests.ConversationHooks),

		HealthInfo:                f.Health.HealthInfo,
		SafetyContactName:         f.Health.SafetyContactName,
		SafetyContactPhone:        f.Health.SafetyContactPhone,
		SafetyContactRelationship: f.Health.SafetyContactRelationship,
	}

	comm := bytes.TrimSpace(f.Communication)
	if len(comm) > 0 && !bytes.Equal(comm, []byte("null")) {
		var style struct {
			Personality        string `json:"personality"`
			CommunicationStyle string `json:"communicationStyle"`
		}
		if err := json.Unmarshal(comm, &style); err != nil {
			return Profile{}, fmt.Errorf("%w: communication must be an object", ErrInvalid)
		}
		p.Personality = style.Personality
		p.CommunicationStyle = style.CommunicationStyle
		p.CommunicationPreferences = string(comm)
	}

	if err := p.Validate(); err != nil {
		return Profile{}, err
	}
	return p, nil
}

// flexInt accepts a JSON number, a numeric string, an empty string or null,
// since form fields often arrive as strings.
type flexInt struct {
	set   bool
	value int
}

func (n *flexInt) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			return nil
		}
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("%w: age %q is not a whole number", ErrInvalid, s)
	}
	n.set, n.value = true, v
	return nil
}

func (n flexInt) ptr() *int {
	if !n.set {
		return nil
	}
	v := n.value
	return &v
}
