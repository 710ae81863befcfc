package composer

import (
	"encoding/json"
	"testing"
)

func TestCompose_PrependsSystemMessage(t *testing.T) {
	in := json.RawMessage(`[{"role":"user","content":"hello","name":"mary"}]`)

	out, err := Compose(in, "Be gentle.")
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}

	var msgs []map[string]string
	if err := json.Unmarshal(out, &msgs); err != nil {
		t.Fatalf("decoding output: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want 2", len(msgs))
	}
	if msgs[0]["role"] != "system" || msgs[0]["content"] != "Be gentle." {
		t.Errorf("first message = %v", msgs[0])
	}
	if msgs[1]["name"] != "mary" || msgs[1]["content"] != "hello" {
		t.Errorf("user message fields not preserved: %v", msgs[1])
	}
}

func TestCompose_PreservesMessageBytes(t *testing.T) {
	in := json.RawMessage(`[{"content": "hi",  "role": "user", "extra": {"a": [1, 2]}}]`)
	out, err := Compose(in, "x")
	if err != nil {
		t.Fatal(err)
	}

	var msgs []json.RawMessage
	if err := json.Unmarshal(out, &msgs); err != nil {
		t.Fatal(err)
	}
	if string(msgs[1]) != `{"content": "hi",  "role": "user", "extra": {"a": [1, 2]}}` {
		t.Errorf("message bytes changed: %s", msgs[1])
	}
}

func TestCompose_DoesNotMergeExistingSystem(t *testing.T) {
	in := json.RawMessage(`[{"role":"system","content":"client rules"},{"role":"user","content":"hi"}]`)
	out, err := Compose(in, "profile prompt")
	if err != nil {
		t.Fatal(err)
	}

	var msgs []map[string]string
	if err := json.Unmarshal(out, &msgs); err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 3 {
		t.Fatalf("got %d messages, want 3", len(msgs))
	}
	if msgs[0]["content"] != "profile prompt" || msgs[1]["content"] != "client rules" {
		t.Errorf("messages = %v", msgs)
	}
}

func TestCompose_EmptyPromptUnchanged(t *testing.T) {
	in := json.RawMessage(`[{"role":"user","content":"hello"}]`)
	out, err := Compose(in, "")
	if err != nil {
		t.Fatal(err)
	}
	if string(out) != string(in) {
		t.Errorf("Compose changed messages: %s", out)
	}
}

func TestCompose_InvalidMessages(t *testing.T) {
	for _, in := range []string{`{"role":"user"}`, `["hello"]`, `not json`} {
		if _, err := Compose(json.RawMessage(in), "x"); err == nil {
			t.Errorf("Compose(%s) expected error", in)
		}
	}
}

func TestLastMessageContent(t *testing.T) {
	tests := []struct {
		in     string
		want   string
		wantOK bool
	}{
		{`[{"role":"user","content":"first"},{"role":"user","content":"last"}]`, "last", true},
		{`[]`, "", false},
		{`[{"role":"user"}]`, "", false},
		{`[{"role":"user","content":[{"type":"text","text":"hi"}]}]`, "", false},
		{`nope`, "", false},
	}
	for _, tt := range tests {
		got, ok := LastMessageContent(json.RawMessage(tt.in))
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("LastMessageContent(%s) = %q, %v; want %q, %v", tt.in, got, ok, tt.want, tt.wantOK)
		}
	}
}
