// Package conversation records chat exchanges against the store.
package conversation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/lonesomenomore/lsnm/internal/storage"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"

	summaryRunes = 100
)

// Store is the subset of storage.Store the recorder writes to.
type Store interface {
	CreateConversation(c storage.Conversation) (string, error)
	AddMessage(m storage.Message) (storage.Message, error)
	UpdateConversation(id string, u storage.ConversationUpdate) error
}

// Recorder appends chat turns to conversations. Messages of a conversation
// read back oldest first in non-decreasing timestamp order.
type Recorder struct {
	store  Store
	logger *slog.Logger
}

func NewRecorder(store Store) *Recorder {
	return &Recorder{store: store, logger: slog.Default()}
}

// Start opens a new conversation for a loved one and returns its id.
func (r *Recorder) Start(ctx context.Context, lovedOneID string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	id, err := r.store.CreateConversation(storage.Conversation{LovedOneID: lovedOneID})
	if err != nil {
		return "", fmt.Errorf("starting conversation: %w", err)
	}
	r.logger.Debug("conversation started", "conversation", id, "loved_one", lovedOneID)
	return id, nil
}

// Record appends one message to a conversation.
func (r *Recorder) Record(ctx context.Context, conversationID, role, content string) (storage.Message, error) {
	if err := ctx.Err(); err != nil {
		return storage.Message{}, err
	}
	if role != RoleUser && role != RoleAssistant {
		return storage.Message{}, fmt.Errorf("recording message: unsupported role %q", role)
	}
	m, err := r.store.AddMessage(storage.Message{ConversationID: conversationID, Role: role, Content: content})
	if err != nil {
		return storage.Message{}, fmt.Errorf("recording %s message: %w", role, err)
	}
	return m, nil
}

// Finish stores the conversation summary and sentiment.
func (r *Recorder) Finish(ctx context.Context, conversationID, firstUserText, sentiment string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := r.store.UpdateConversation(conversationID, storage.ConversationUpdate{
		Summary:   Summarize(firstUserText),
		Sentiment: sentiment,
	})
	if err != nil {
		return fmt.Errorf("updating conversation summary: %w", err)
	}
	return nil
}

// RecordExchange stores a complete user/assistant exchange as a new
// conversation and returns its id.
func (r *Recorder) RecordExchange(ctx context.Context, lovedOneID, userText, assistantText string) (string, error) {
	id, err := r.Start(ctx, lovedOneID)
	if err != nil {
		return "", err
	}
	if _, err := r.Record(ctx, id, RoleUser, userText); err != nil {
		return id, err
	}
	if _, err := r.Record(ctx, id, RoleAssistant, assistantText); err != nil {
		return id, err
	}
	if err := r.Finish(ctx, id, userText, "positive"); err != nil {
		return id, err
	}
	return id, nil
}

// Summarize truncates text to its first 100 runes followed by "...".
func Summarize(text string) string {
	text = strings.TrimSpace(text)
	if utf8.RuneCountInString(text) <= summaryRunes {
		return text + "..."
	}
	return string([]rune(text)[:summaryRunes]) + "..."
}
