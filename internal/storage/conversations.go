package storage

import (
	"database/sql"
	"fmt"
)

const conversationColumns = "id, loved_one_id, date, duration, summary, sentiment, topics, created_at"

func scanConversation(row rowScanner) (Conversation, error) {
	var c Conversation
	var date, createdAt string
	if err := row.Scan(&c.ID, &c.LovedOneID, &date, &c.Duration, &c.Summary, &c.Sentiment, &c.Topics, &createdAt); err != nil {
		return Conversation{}, err
	}
	var err error
	if c.Date, err = parseTime("date", date); err != nil {
		return Conversation{}, err
	}
	if c.CreatedAt, err = parseTime("created_at", createdAt); err != nil {
		return Conversation{}, err
	}
	return c, nil
}

// CreateConversation inserts a conversation and returns its id. Empty ID,
// Sentiment, Topics and zero Date get defaults.
func (s *Store) CreateConversation(c Conversation) (string, error) {
	if c.ID == "" {
		c.ID = NewID("conv")
	}
	now := s.now()
	if c.Date.IsZero() {
		c.Date = now
	}
	if c.Sentiment == "" {
		c.Sentiment = "neutral"
	}
	if c.Topics == "" {
		c.Topics = "[]"
	}
	_, err := s.db.Exec(`
		INSERT INTO conversations (`+conversationColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.LovedOneID, formatTime(c.Date), c.Duration, c.Summary, c.Sentiment, c.Topics, formatTime(now),
	)
	if err != nil {
		return "", fmt.Errorf("inserting conversation: %w", err)
	}
	return c.ID, nil
}

// GetConversation returns the conversation with its messages, oldest first.
func (s *Store) GetConversation(id string) (Conversation, error) {
	c, err := scanConversation(s.db.QueryRow("SELECT "+conversationColumns+" FROM conversations WHERE id = ?", id))
	if err == sql.ErrNoRows {
		return Conversation{}, ErrNotFound
	}
	if err != nil {
		return Conversation{}, err
	}
	c.Messages, err = s.ListMessages(id)
	if err != nil {
		return Conversation{}, fmt.Errorf("loading messages: %w", err)
	}
	return c, nil
}

// ListConversations returns a page of conversations for a loved one, newest first.
func (s *Store) ListConversations(lovedOneID string, limit, offset int) ([]Conversation, error) {
	rows, err := s.db.Query(`
		SELECT `+conversationColumns+` FROM conversations
		WHERE loved_one_id = ? ORDER BY date DESC, rowid DESC LIMIT ? OFFSET ?`,
		lovedOneID, limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Conversation
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, c)
	}
	return results, rows.Err()
}

func (s *Store) CountConversations(lovedOneID string) (int, error) {
	var n int
	err := s.db.QueryRow("SELECT COUNT(*) FROM conversations WHERE loved_one_id = ?", lovedOneID).Scan(&n)
	return n, err
}

func (s *Store) UpdateConversation(id string, u ConversationUpdate) error {
	res, err := s.db.Exec(`
		UPDATE conversations SET
			summary = CASE WHEN ? != '' THEN ? ELSE summary END,
			sentiment = CASE WHEN ? != '' THEN ? ELSE sentiment END,
			duration = CASE WHEN ? != 0 THEN ? ELSE duration END
		WHERE id = ?`,
		u.Summary, u.Summary, u.Sentiment, u.Sentiment, u.Duration, u.Duration, id,
	)
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

// --- Messages ---

// AddMessage appends a message to a conversation. The stored timestamp is
// never earlier than the conversation's latest message, so ListMessages
// order is non-decreasing in time. The stored message is returned.
func (s *Store) AddMessage(m Message) (Message, error) {
	if m.ID == "" {
		m.ID = NewID("msg")
	}
	if m.Timestamp.IsZero() {
		m.Timestamp = s.now()
	}

	tx, err := s.db.Begin()
	if err != nil {
		return Message{}, fmt.Errorf("beginning message transaction: %w", err)
	}
	defer tx.Rollback()

	var exists int
	if err := tx.QueryRow("SELECT COUNT(*) FROM conversations WHERE id = ?", m.ConversationID).Scan(&exists); err != nil {
		return Message{}, err
	}
	if exists == 0 {
		return Message{}, ErrNotFound
	}

	var latest sql.NullString
	if err := tx.QueryRow("SELECT MAX(timestamp) FROM messages WHERE conversation_id = ?", m.ConversationID).Scan(&latest); err != nil {
		return Message{}, err
	}
	ts := formatTime(m.Timestamp)
	if latest.Valid && latest.String > ts {
		ts = latest.String
	}
	if m.Timestamp, err = parseTime("timestamp", ts); err != nil {
		return Message{}, err
	}

	if _, err := tx.Exec(`
		INSERT INTO messages (id, conversation_id, role, content, timestamp)
		VALUES (?, ?, ?, ?, ?)`,
		m.ID, m.ConversationID, m.Role, m.Content, ts,
	); err != nil {
		return Message{}, fmt.Errorf("inserting message: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return Message{}, fmt.Errorf("committing message: %w", err)
	}
	return m, nil
}

// ListMessages returns a conversation's messages ordered oldest first; ties
// on timestamp keep insertion order.
func (s *Store) ListMessages(conversationID string) ([]Message, error) {
	rows, err := s.db.Query(`
		SELECT id, conversation_id, role, content, timestamp FROM messages
		WHERE conversation_id = ? ORDER BY timestamp ASC, rowid ASC`, conversationID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Message
	for rows.Next() {
		var m Message
		var ts string
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Role, &m.Content, &ts); err != nil {
			return nil, err
		}
		if m.Timestamp, err = parseTime("timestamp", ts); err != nil {
			return nil, err
		}
		results = append(results, m)
	}
	return results, rows.Err()
}
