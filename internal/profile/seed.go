package profile

import (
	_ "embed"
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/lonesomenomore/lsnm/internal/storage"
)

//go:embed seed.yaml
var demoSeed []byte

// SeedFile is the YAML document accepted by Seed: an owner account and its
// loved ones.
type SeedFile struct {
	User struct {
		ID        string `yaml:"id"`
		Email     string `yaml:"email"`
		FirstName string `yaml:"firstName"`
		LastName  string `yaml:"lastName"`
	} `yaml:"user"`
	LovedOnes []ProfileDoc `yaml:"lovedOnes"`
}

// ProfileDoc is the YAML form of a profile. List fields are native YAML lists.
type ProfileDoc struct {
	ID        string `yaml:"id"`
	FirstName string `yaml:"firstName"`
	LastName  string `yaml:"lastName"`
	Nickname  string `yaml:"nickname"`
	Age       *int   `yaml:"age"`

	Gender      string `yaml:"gender"`
	PhoneNumber string `yaml:"phoneNumber"`
	Location    string `yaml:"location"`

	Personality        string `yaml:"personality"`
	CommunicationStyle string `yaml:"communicationStyle"`
	Backstory          string `yaml:"backstory"`
	CoreValues         string `yaml:"coreValues"`
	CurrentSituation   string `yaml:"currentSituation"`
	HealthInfo         string `yaml:"healthInfo"`

	Interests         []string `yaml:"interests"`
	PeopleWhoMatter   []Person `yaml:"peopleWhoMatter"`
	ConversationHooks []string `yaml:"conversationHooks"`

	SafetyContact struct {
		Name         string `yaml:"name"`
		Phone        string `yaml:"phone"`
		Relationship string `yaml:"relationship"`
	} `yaml:"safetyContact"`
}

// Profile converts the document into a Profile owned by userID.
func (d ProfileDoc) Profile(userID string) Profile {
	p := Profile{
		ID:                        d.ID,
		UserID:                    userID,
		FirstName:                 d.FirstName,
		LastName:                  d.LastName,
		Nickname:                  d.Nickname,
		Gender:                    d.Gender,
		PhoneNumber:               d.PhoneNumber,
		Location:                  d.Location,
		Personality:               d.Personality,
		CommunicationStyle:        d.CommunicationStyle,
		Backstory:                 d.Backstory,
		CoreValues:                d.CoreValues,
		CurrentSituation:          d.CurrentSituation,
		HealthInfo:                d.HealthInfo,
		Interests:                 cleanStrings(d.Interests),
		PeopleWhoMatter:           cleanPeople(d.PeopleWhoMatter),
		ConversationHooks:         cleanStrings(d.ConversationHooks),
		SafetyContactName:         d.SafetyContact.Name,
		SafetyContactPhone:        d.SafetyContact.Phone,
		SafetyContactRelationship: d.SafetyContact.Relationship,
	}
	if d.Age != nil {
		age := *d.Age
		p.Age = &age
	}
	return p
}

// DecodeSeed reads a seed document.
func DecodeSeed(r io.Reader) (SeedFile, error) {
	var f SeedFile
	if err := yaml.NewDecoder(r).Decode(&f); err != nil {
		return SeedFile{}, fmt.Errorf("decoding seed file: %w", err)
	}
	if f.User.ID == "" {
		return SeedFile{}, fmt.Errorf("seed file: user.id is required")
	}
	return f, nil
}

// DecodeProfile reads a single profile document, as used by `lsnm prompt --file`.
func DecodeProfile(data []byte) (Profile, error) {
	var d ProfileDoc
	if err := yaml.Unmarshal(data, &d); err != nil {
		return Profile{}, fmt.Errorf("decoding profile: %w", err)
	}
	p := d.Profile("")
	if err := p.Validate(); err != nil {
		return Profile{}, err
	}
	return p, nil
}

// DemoSeed returns the built-in demo account and profiles.
func DemoSeed() (SeedFile, error) {
	var f SeedFile
	if err := yaml.Unmarshal(demoSeed, &f); err != nil {
		return SeedFile{}, fmt.Errorf("decoding demo seed: %w", err)
	}
	return f, nil
}

// Seed stores the seed user and any loved ones whose id is not present yet.
// It returns the number of profiles inserted.
func (m *Manager) Seed(f SeedFile) (int, error) {
	if err := m.store.EnsureUser(storage.User{
		ID:        f.User.ID,
		Email:     f.User.Email,
		FirstName: f.User.FirstName,
		LastName:  f.User.LastName,
	}); err != nil {
		return 0, fmt.Errorf("seeding user %s: %w", f.User.ID, err)
	}

	inserted := 0
	for _, doc := range f.LovedOnes {
		p := doc.Profile(f.User.ID)
		if p.ID != "" {
			if _, err := m.Get(p.ID); err == nil {
				m.logger.Debug("seed profile exists, skipping", "id", p.ID)
				continue
			} else if !errors.Is(err, ErrNotFound) {
				return inserted, err
			}
		}
		if _, err := m.Create(p); err != nil {
			return inserted, fmt.Errorf("seeding %s: %w", p.DisplayName(), err)
		}
		inserted++
	}
	return inserted, nil
}

// SeedDemoIfEmpty loads the demo profiles into an empty store.
func (m *Manager) SeedDemoIfEmpty() (int, error) {
	n, err := m.store.CountLovedOnes()
	if err != nil {
		return 0, fmt.Errorf("counting loved ones: %w", err)
	}
	if n > 0 {
		return 0, nil
	}
	f, err := DemoSeed()
	if err != nil {
		return 0, err
	}
	return m.Seed(f)
}
