package composer

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Compose inserts prompt as a new leading system message ahead of the
// client's message history. The existing messages are copied through
// unchanged, including any system turns they already contain. An empty
// prompt returns messages as-is.
func Compose(messages json.RawMessage, prompt string) (json.RawMessage, error) {
	msgs, err := parseMessages(messages)
	if err != nil {
		return nil, fmt.Errorf("parsing messages: %w", err)
	}
	if prompt == "" {
		return messages, nil
	}

	sys, err := json.Marshal(map[string]string{"role": "system", "content": prompt})
	if err != nil {
		return nil, fmt.Errorf("marshalling system message: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteByte('[')
	buf.Write(sys)
	for _, m := range msgs {
		buf.WriteByte(',')
		buf.Write(m)
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

// LastMessageContent returns the string content of the final message, or
// false when the history is empty, malformed, or ends in a non-text turn.
func LastMessageContent(messages json.RawMessage) (string, bool) {
	msgs, err := parseMessages(messages)
	if err != nil || len(msgs) == 0 {
		return "", false
	}
	var last struct {
		Content *string `json:"content"`
	}
	if err := json.Unmarshal(msgs[len(msgs)-1], &last); err != nil || last.Content == nil {
		return "", false
	}
	return *last.Content, true
}

func parseMessages(data json.RawMessage) ([]json.RawMessage, error) {
	var msgs []json.RawMessage
	if err := json.Unmarshal(data, &msgs); err != nil {
		return nil, err
	}
	for i, m := range msgs {
		if t := bytes.TrimSpace(m); len(t) == 0 || t[0] != '{' {
			return nil, fmt.Errorf("message %d is not an object", i)
		}
	}
	return msgs, nil
}
