package storage

import (
	"database/sql"
	"fmt"
	"strings"
)

// lovedOneColumns lists the loved_ones columns in scan order.
var lovedOneColumns = []string{
	"id", "user_id", "first_name", "last_name", "nickname", "age", "gender", "phone_number", "location",
	"personality", "communication_style", "backstory", "interests", "core_values", "current_situation",
	"people_who_matter", "conversation_hooks", "health_info",
	"safety_contact_name", "safety_contact_phone", "safety_contact_relationship",
	"communication_preferences", "created_at",
}

// mutableColumns are the columns SetLovedOneField and UpdateLovedOneField accept.
var mutableColumns = map[string]bool{
	"first_name": true, "last_name": true, "nickname": true, "age": true, "gender": true,
	"phone_number": true, "location": true,
	"personality": true, "communication_style": true, "backstory": true, "interests": true,
	"core_values": true, "current_situation": true, "people_who_matter": true,
	"conversation_hooks": true, "health_info": true,
	"safety_contact_name": true, "safety_contact_phone": true, "safety_contact_relationship": true,
	"communication_preferences": true,
}

var selectLovedOne = "SELECT " + strings.Join(lovedOneColumns, ", ") + " FROM loved_ones"

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLovedOne(row rowScanner) (LovedOne, error) {
	var l LovedOne
	var age sql.NullInt64
	var createdAt string
	err := row.Scan(
		&l.ID, &l.UserID, &l.FirstName, &l.LastName, &l.Nickname, &age, &l.Gender, &l.PhoneNumber, &l.Location,
		&l.Personality, &l.CommunicationStyle, &l.Backstory, &l.Interests, &l.CoreValues, &l.CurrentSituation,
		&l.PeopleWhoMatter, &l.ConversationHooks, &l.HealthInfo,
		&l.SafetyContactName, &l.SafetyContactPhone, &l.SafetyContactRelationship,
		&l.CommunicationPreferences, &createdAt,
	)
	if err != nil {
		return LovedOne{}, err
	}
	if age.Valid {
		v := int(age.Int64)
		l.Age = &v
	}
	if l.CreatedAt, err = parseTime("created_at", createdAt); err != nil {
		return LovedOne{}, err
	}
	return l, nil
}

// CreateLovedOne inserts a new loved one. An empty ID is replaced with a
// generated "loved_" id; the stored id is returned.
func (s *Store) CreateLovedOne(l LovedOne) (string, error) {
	if l.ID == "" {
		l.ID = NewID("loved")
	}
	if l.CreatedAt.IsZero() {
		l.CreatedAt = s.now()
	}
	var age any
	if l.Age != nil {
		age = *l.Age
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(lovedOneColumns)), ", ")
	_, err := s.db.Exec(
		"INSERT INTO loved_ones ("+strings.Join(lovedOneColumns, ", ")+") VALUES ("+placeholders+")",
		l.ID, l.UserID, l.FirstName, l.LastName, l.Nickname, age, l.Gender, l.PhoneNumber, l.Location,
		l.Personality, l.CommunicationStyle, l.Backstory, l.Interests, l.CoreValues, l.CurrentSituation,
		l.PeopleWhoMatter, l.ConversationHooks, l.HealthInfo,
		l.SafetyContactName, l.SafetyContactPhone, l.SafetyContactRelationship,
		l.CommunicationPreferences, formatTime(l.CreatedAt),
	)
	if err != nil {
		return "", fmt.Errorf("inserting loved one %s: %w", l.ID, err)
	}
	return l.ID, nil
}

func (s *Store) GetLovedOne(id string) (LovedOne, error) {
	l, err := scanLovedOne(s.db.QueryRow(selectLovedOne+" WHERE id = ?", id))
	if err == sql.ErrNoRows {
		return LovedOne{}, ErrNotFound
	}
	if err != nil {
		return LovedOne{}, err
	}
	return l, nil
}

// ListLovedOnesByUser returns the user's loved ones, oldest first.
func (s *Store) ListLovedOnesByUser(userID string) ([]LovedOne, error) {
	rows, err := s.db.Query(selectLovedOne+" WHERE user_id = ? ORDER BY created_at ASC, rowid ASC", userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []LovedOne
	for rows.Next() {
		l, err := scanLovedOne(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, l)
	}
	return results, rows.Err()
}

func (s *Store) CountLovedOnes() (int, error) {
	var n int
	err := s.db.QueryRow("SELECT COUNT(*) FROM loved_ones").Scan(&n)
	return n, err
}

// SetLovedOneField updates a single column. value must be a string, or an
// int / nil for the age column.
func (s *Store) SetLovedOneField(id, column string, value any) error {
	if !mutableColumns[column] {
		return fmt.Errorf("column %q is not updatable", column)
	}
	res, err := s.db.Exec("UPDATE loved_ones SET "+column+" = ? WHERE id = ?", value, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateLovedOneField recomputes one column from the current row. The read
// and the write share a transaction, so concurrent updates of the same loved
// one apply one after another instead of overwriting each other.
func (s *Store) UpdateLovedOneField(id, column string, fn func(LovedOne) (any, error)) error {
	if !mutableColumns[column] {
		return fmt.Errorf("column %q is not updatable", column)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning update transaction: %w", err)
	}
	defer tx.Rollback()

	l, err := scanLovedOne(tx.QueryRow(selectLovedOne+" WHERE id = ?", id))
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return err
	}

	value, err := fn(l)
	if err != nil {
		return err
	}
	if _, err := tx.Exec("UPDATE loved_ones SET "+column+" = ? WHERE id = ?", value, id); err != nil {
		return fmt.Errorf("updating %s: %w", column, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing update: %w", err)
	}
	return nil
}
