package profile

import "time"

// Profile is the unified loved-one profile. Only FirstName is required;
// every other field is independently optional and a zero value means the
// field is absent.
type Profile struct {
	ID        string
	UserID    string
	FirstName string
	LastName  string
	Nickname  string

	Age         *int
	Gender      string
	PhoneNumber string
	Location    string

	Personality        string
	CommunicationStyle string
	Backstory          string
	CoreValues         string
	CurrentSituation   string
	HealthInfo         string

	// List-shaped fields, parsed once when the record is loaded.
	Interests         Value
	PeopleWhoMatter   Value
	ConversationHooks Value

	SafetyContactName         string
	SafetyContactPhone        string
	SafetyContactRelationship string

	// CommunicationPreferences is the raw JSON object captured at intake.
	CommunicationPreferences string
	CreatedAt                time.Time
}

// Person is one entry of PeopleWhoMatter.
type Person struct {
	Name     string `json:"name" yaml:"name"`
	Relation string `json:"relation,omitempty" yaml:"relation,omitempty"`
	Note     string `json:"note,omitempty" yaml:"note,omitempty"`
}

// Value is the parsed form of a list-shaped field. The concrete type is one
// of Text, StringList, PersonList or Unparsed; a nil Value means absent.
type Value interface {
	isValue()
}

// Text is a stored JSON string literal where a list was expected.
type Text string

// StringList is a well-formed list of non-blank strings.
type StringList []string

// PersonList is a well-formed list of people, each with a non-blank name.
type PersonList []Person

// Unparsed holds stored text that was not valid JSON of the expected shape.
type Unparsed string

func (Text) isValue()       {}
func (StringList) isValue() {}
func (PersonList) isValue() {}
func (Unparsed) isValue()   {}
