package profile

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lonesomenomore/lsnm/internal/storage"
)

// Store defines the storage operations the Manager needs.
// Implemented by storage.Store.
type Store interface {
	EnsureUser(u storage.User) error
	CreateLovedOne(l storage.LovedOne) (string, error)
	GetLovedOne(id string) (storage.LovedOne, error)
	ListLovedOnesByUser(userID string) ([]storage.LovedOne, error)
	CountLovedOnes() (int, error)
	UpdateLovedOneField(id, column string, fn func(storage.LovedOne) (any, error)) error
}

// Manager provides structured access to loved-one profiles. Nothing is
// cached: every read goes to the store so edits are visible immediately.
type Manager struct {
	store  Store
	logger *slog.Logger
}

func NewManager(store Store) *Manager {
	return &Manager{store: store, logger: slog.Default()}
}

// Get loads and parses one profile. Unknown ids return ErrNotFound.
func (m *Manager) Get(id string) (Profile, error) {
	l, err := m.store.GetLovedOne(id)
	if errors.Is(err, storage.ErrNotFound) {
		return Profile{}, ErrNotFound
	}
	if err != nil {
		return Profile{}, fmt.Errorf("loading loved one %s: %w", id, err)
	}
	return FromRecord(l), nil
}

// List returns every profile owned by the user, oldest first.
func (m *Manager) List(userID string) ([]Profile, error) {
	rows, err := m.store.ListLovedOnesByUser(userID)
	if err != nil {
		return nil, fmt.Errorf("listing loved ones: %w", err)
	}
	out := make([]Profile, 0, len(rows))
	for _, l := range rows {
		out = append(out, FromRecord(l))
	}
	return out, nil
}

// Create validates and stores a new profile, returning its id.
func (m *Manager) Create(p Profile) (string, error) {
	if err := p.Validate(); err != nil {
		return "", err
	}
	id, err := m.store.CreateLovedOne(p.Record())
	if err != nil {
		return "", fmt.Errorf("creating loved one: %w", err)
	}
	m.logger.Info("loved one created", "id", id, "user", p.UserID)
	return id, nil
}

// Enrichment is a single-field profile update.
type Enrichment struct {
	Section string          `json:"section,omitempty"`
	Field   string          `json:"field"`
	Value   json.RawMessage `json:"value"`
	Append  bool            `json:"append,omitempty"`
}

// Enrich applies one field update and returns the updated profile. Text
// fields take a JSON string; list fields take an array (or a single
// element), which append concatenates onto the existing list. The update
// runs as one store transaction, so concurrent appends are all kept.
func (m *Manager) Enrich(id string, e Enrichment) (Profile, error) {
	spec, ok := lookupField(e.Field)
	if !ok {
		return Profile{}, fmt.Errorf("%w: unknown field %q", ErrInvalid, e.Field)
	}
	if len(e.Value) == 0 {
		return Profile{}, fmt.Errorf("%w: value is required", ErrInvalid)
	}

	var p Profile
	err := m.store.UpdateLovedOneField(id, spec.column, func(l storage.LovedOne) (any, error) {
		p = FromRecord(l)
		stored, err := spec.apply(&p, e.Value, e.Append)
		if err != nil {
			return nil, err
		}
		if err := p.Validate(); err != nil {
			return nil, err
		}
		return stored, nil
	})
	if errors.Is(err, storage.ErrNotFound) {
		return Profile{}, ErrNotFound
	}
	if errors.Is(err, ErrInvalid) {
		return Profile{}, err
	}
	if err != nil {
		return Profile{}, fmt.Errorf("updating %s: %w", spec.name, err)
	}

	m.logger.Info("profile enriched", "id", id, "section", e.Section, "field", spec.name, "append", e.Append)
	return p, nil
}
