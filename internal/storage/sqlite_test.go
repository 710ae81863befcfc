package storage

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// fixedClock makes the store stamp rows with a controllable time.
func fixedClock(s *Store, t time.Time) {
	s.now = func() time.Time { return t }
}

func seedLovedOne(t *testing.T, s *Store, id string) {
	t.Helper()
	if err := s.EnsureUser(User{ID: "user_1", Email: "test@lonesomenomore.com", FirstName: "Test", LastName: "User"}); err != nil {
		t.Fatalf("EnsureUser: %v", err)
	}
	if _, err := s.CreateLovedOne(LovedOne{ID: id, UserID: "user_1", FirstName: "Mary"}); err != nil {
		t.Fatalf("CreateLovedOne: %v", err)
	}
}

// TestMigrationsIdempotent runs Open twice on the same database and verifies
// the migration is not re-applied.
func TestMigrationsIdempotent(t *testing.T) {
	dir := t.TempDir()

	s1, err := Open(dir)
	if err != nil {
		t.Fatalf("first Open failed: %v", err)
	}
	v1, err := s1.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}
	s1.Close()

	s2, err := Open(dir)
	if err != nil {
		t.Fatalf("second Open failed: %v", err)
	}
	defer s2.Close()

	v2, err := s2.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}
	if len(v1) != len(v2) {
		t.Errorf("migration count changed: %d -> %d", len(v1), len(v2))
	}
}

func TestIndexesExist(t *testing.T) {
	s := openTestStore(t)

	for _, idx := range []string{"idx_loved_ones_user", "idx_conversations_loved_one_date", "idx_messages_conversation_ts"} {
		var count int
		err := s.db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='index' AND name=?", idx).Scan(&count)
		if err != nil {
			t.Fatalf("querying index %s: %v", idx, err)
		}
		if count != 1 {
			t.Errorf("index %s not found", idx)
		}
	}
}

func TestEnsureUserKeepsFirstInsert(t *testing.T) {
	s := openTestStore(t)

	if err := s.EnsureUser(User{ID: "user_1", Email: "a@example.com"}); err != nil {
		t.Fatalf("EnsureUser: %v", err)
	}
	if err := s.EnsureUser(User{ID: "user_1", Email: "b@example.com"}); err != nil {
		t.Fatalf("EnsureUser second call: %v", err)
	}

	u, err := s.GetUser("user_1")
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if u.Email != "a@example.com" {
		t.Errorf("Email = %q, want a@example.com", u.Email)
	}

	if _, err := s.GetUser("nobody"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetUser(nobody) error = %v, want ErrNotFound", err)
	}
}

func TestLovedOneRoundTrip(t *testing.T) {
	s := openTestStore(t)
	if err := s.EnsureUser(User{ID: "user_1", Email: "one@example.com"}); err != nil {
		t.Fatal(err)
	}

	age := 78
	id, err := s.CreateLovedOne(LovedOne{
		UserID:            "user_1",
		FirstName:         "Harold",
		LastName:          "Whitaker",
		Age:               &age,
		Interests:         `["baseball","woodworking"]`,
		SafetyContactName: "Jason Whitaker",
	})
	if err != nil {
		t.Fatalf("CreateLovedOne: %v", err)
	}
	if len(id) != len("loved_")+8 {
		t.Errorf("generated id = %q, want loved_ plus 8 chars", id)
	}

	got, err := s.GetLovedOne(id)
	if err != nil {
		t.Fatalf("GetLovedOne: %v", err)
	}
	if got.FirstName != "Harold" || got.LastName != "Whitaker" {
		t.Errorf("name = %q %q", got.FirstName, got.LastName)
	}
	if got.Age == nil || *got.Age != 78 {
		t.Errorf("Age = %v, want 78", got.Age)
	}
	if got.Interests != `["baseball","woodworking"]` {
		t.Errorf("Interests = %q", got.Interests)
	}
	if got.Nickname != "" || got.HealthInfo != "" {
		t.Errorf("unset fields should be empty, got nickname=%q health=%q", got.Nickname, got.HealthInfo)
	}
}

func TestLovedOneNilAge(t *testing.T) {
	s := openTestStore(t)
	seedLovedOne(t, s, "loved_1")

	got, err := s.GetLovedOne("loved_1")
	if err != nil {
		t.Fatalf("GetLovedOne: %v", err)
	}
	if got.Age != nil {
		t.Errorf("Age = %d, want nil", *got.Age)
	}
}

func TestGetLovedOneNotFound(t *testing.T) {
	s := openTestStore(t)
	if _, err := s.GetLovedOne("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestListLovedOnesByUser(t *testing.T) {
	s := openTestStore(t)
	if err := s.EnsureUser(User{ID: "user_1", Email: "one@example.com"}); err != nil {
		t.Fatal(err)
	}
	if err := s.EnsureUser(User{ID: "user_2", Email: "two@example.com"}); err != nil {
		t.Fatal(err)
	}

	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, name := range []string{"Harold", "Mary"} {
		if _, err := s.CreateLovedOne(LovedOne{UserID: "user_1", FirstName: name, CreatedAt: base.Add(time.Duration(i) * time.Hour)}); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := s.CreateLovedOne(LovedOne{UserID: "user_2", FirstName: "Other"}); err != nil {
		t.Fatal(err)
	}

	list, err := s.ListLovedOnesByUser("user_1")
	if err != nil {
		t.Fatalf("ListLovedOnesByUser: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("got %d loved ones, want 2", len(list))
	}
	if list[0].FirstName != "Harold" || list[1].FirstName != "Mary" {
		t.Errorf("order = %s, %s", list[0].FirstName, list[1].FirstName)
	}

	n, err := s.CountLovedOnes()
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Errorf("CountLovedOnes = %d, want 3", n)
	}
}

func TestSetLovedOneField(t *testing.T) {
	s := openTestStore(t)
	seedLovedOne(t, s, "loved_1")

	if err := s.SetLovedOneField("loved_1", "backstory", "Grew up in Buffalo."); err != nil {
		t.Fatalf("SetLovedOneField: %v", err)
	}
	if err := s.SetLovedOneField("loved_1", "age", 81); err != nil {
		t.Fatalf("SetLovedOneField(age): %v", err)
	}

	got, err := s.GetLovedOne("loved_1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Backstory != "Grew up in Buffalo." {
		t.Errorf("Backstory = %q", got.Backstory)
	}
	if got.Age == nil || *got.Age != 81 {
		t.Errorf("Age = %v, want 81", got.Age)
	}

	if err := s.SetLovedOneField("loved_1", "id", "x"); err == nil {
		t.Error("expected error for non-updatable column")
	}
	if err := s.SetLovedOneField("missing", "backstory", "x"); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing row error = %v, want ErrNotFound", err)
	}
}

func TestUpdateLovedOneFieldSerializesConcurrentWriters(t *testing.T) {
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	seedLovedOne(t, s, "loved_1")

	const writers = 100
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- s.UpdateLovedOneField("loved_1", "age", func(l LovedOne) (any, error) {
				if l.Age == nil {
					return 1, nil
				}
				return *l.Age + 1, nil
			})
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("UpdateLovedOneField: %v", err)
		}
	}

	got, err := s.GetLovedOne("loved_1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Age == nil || *got.Age != writers {
		t.Errorf("Age = %v, want %d: concurrent updates were lost", got.Age, writers)
	}
}

func TestUpdateLovedOneFieldErrors(t *testing.T) {
	s := openTestStore(t)
	seedLovedOne(t, s, "loved_1")

	keep := func(LovedOne) (any, error) { return "x", nil }
	if err := s.UpdateLovedOneField("loved_1", "id", keep); err == nil {
		t.Error("expected error for non-updatable column")
	}
	if err := s.UpdateLovedOneField("missing", "backstory", keep); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing row error = %v, want ErrNotFound", err)
	}

	boom := errors.New("boom")
	err := s.UpdateLovedOneField("loved_1", "backstory", func(LovedOne) (any, error) { return nil, boom })
	if !errors.Is(err, boom) {
		t.Errorf("error = %v, want callback error", err)
	}
	got, err := s.GetLovedOne("loved_1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Backstory != "" {
		t.Errorf("Backstory = %q, want unchanged after failed update", got.Backstory)
	}
}

func TestConversationDefaults(t *testing.T) {
	s := openTestStore(t)
	seedLovedOne(t, s, "loved_1")

	id, err := s.CreateConversation(Conversation{LovedOneID: "loved_1"})
	if err != nil {
		t.Fatalf("CreateConversation: %v", err)
	}
	c, err := s.GetConversation(id)
	if err != nil {
		t.Fatalf("GetConversation: %v", err)
	}
	if c.Sentiment != "neutral" {
		t.Errorf("Sentiment = %q, want neutral", c.Sentiment)
	}
	if c.Topics != "[]" {
		t.Errorf("Topics = %q, want []", c.Topics)
	}
	if len(c.Messages) != 0 {
		t.Errorf("Messages = %d, want 0", len(c.Messages))
	}

	if _, err := s.GetConversation("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing conversation error = %v, want ErrNotFound", err)
	}
}

func TestListConversationsNewestFirst(t *testing.T) {
	s := openTestStore(t)
	seedLovedOne(t, s, "loved_1")

	base := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		_, err := s.CreateConversation(Conversation{
			ID:         fmt.Sprintf("conv_%d", i),
			LovedOneID: "loved_1",
			Date:       base.Add(time.Duration(i) * 24 * time.Hour),
		})
		if err != nil {
			t.Fatal(err)
		}
	}

	page, err := s.ListConversations("loved_1", 2, 1)
	if err != nil {
		t.Fatalf("ListConversations: %v", err)
	}
	if len(page) != 2 {
		t.Fatalf("got %d, want 2", len(page))
	}
	if page[0].ID != "conv_3" || page[1].ID != "conv_2" {
		t.Errorf("page = %s, %s; want conv_3, conv_2", page[0].ID, page[1].ID)
	}

	n, err := s.CountConversations("loved_1")
	if err != nil {
		t.Fatal(err)
	}
	if n != 5 {
		t.Errorf("CountConversations = %d, want 5", n)
	}
}

func TestUpdateConversationPartial(t *testing.T) {
	s := openTestStore(t)
	seedLovedOne(t, s, "loved_1")

	id, err := s.CreateConversation(Conversation{LovedOneID: "loved_1", Summary: "first"})
	if err != nil {
		t.Fatal(err)
	}
	if err := s.UpdateConversation(id, ConversationUpdate{Sentiment: "positive"}); err != nil {
		t.Fatalf("UpdateConversation: %v", err)
	}

	c, err := s.GetConversation(id)
	if err != nil {
		t.Fatal(err)
	}
	if c.Summary != "first" {
		t.Errorf("Summary = %q, want unchanged", c.Summary)
	}
	if c.Sentiment != "positive" {
		t.Errorf("Sentiment = %q, want positive", c.Sentiment)
	}

	if err := s.UpdateConversation("missing", ConversationUpdate{Summary: "x"}); !errors.Is(err, ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestAddMessageOrdering(t *testing.T) {
	s := openTestStore(t)
	seedLovedOne(t, s, "loved_1")

	id, err := s.CreateConversation(Conversation{LovedOneID: "loved_1"})
	if err != nil {
		t.Fatal(err)
	}

	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	fixedClock(s, now)

	// Same timestamp for both: insertion order must hold.
	if _, err := s.AddMessage(Message{ConversationID: id, Role: "user", Content: "hello"}); err != nil {
		t.Fatalf("AddMessage: %v", err)
	}
	if _, err := s.AddMessage(Message{ConversationID: id, Role: "assistant", Content: "hi there"}); err != nil {
		t.Fatalf("AddMessage: %v", err)
	}

	// A clock that went backwards is clamped to the latest stored timestamp.
	stored, err := s.AddMessage(Message{ConversationID: id, Role: "user", Content: "again", Timestamp: now.Add(-time.Hour)})
	if err != nil {
		t.Fatalf("AddMessage: %v", err)
	}
	if !stored.Timestamp.Equal(now) {
		t.Errorf("clamped timestamp = %v, want %v", stored.Timestamp, now)
	}

	msgs, err := s.ListMessages(id)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"hello", "hi there", "again"}
	if len(msgs) != len(want) {
		t.Fatalf("got %d messages, want %d", len(msgs), len(want))
	}
	for i, m := range msgs {
		if m.Content != want[i] {
			t.Errorf("msgs[%d] = %q, want %q", i, m.Content, want[i])
		}
		if i > 0 && m.Timestamp.Before(msgs[i-1].Timestamp) {
			t.Errorf("msgs[%d] timestamp decreased", i)
		}
	}
}

func TestAddMessageUnknownConversation(t *testing.T) {
	s := openTestStore(t)
	if _, err := s.AddMessage(Message{ConversationID: "missing", Role: "user", Content: "x"}); !errors.Is(err, ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestNewIDPrefix(t *testing.T) {
	a, b := NewID("conv"), NewID("conv")
	if a == b {
		t.Errorf("NewID returned duplicate %q", a)
	}
	if a[:5] != "conv_" {
		t.Errorf("NewID = %q, want conv_ prefix", a)
	}
}
