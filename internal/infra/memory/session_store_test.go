package memory

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"certquiz-service/internal/app"
	"certquiz-service/internal/domain"
)

func TestSessionStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	store := NewSessionStore(time.Hour)

	session := app.NewSession("s1", domain.Identity{UserID: "u1"}, sampleQuiz(), time.Now())
	if err := store.Save(ctx, session); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, ok, err := store.Get(ctx, "s1")
	if err != nil || !ok {
		t.Fatalf("expected session present, ok=%v err=%v", ok, err)
	}

	// Mutating a loaded copy must not leak into the store until saved.
	loaded.SelectAnswer(0, 1)
	again, _, _ := store.Get(ctx, "s1")
	if again.Answer(0) != domain.Unanswered {
		t.Fatalf("expected stored session untouched, got answer %d", again.Answer(0))
	}

	if err := store.Save(ctx, loaded); err != nil {
		t.Fatalf("save: %v", err)
	}
	again, _, _ = store.Get(ctx, "s1")
	if again.Answer(0) != 1 {
		t.Fatalf("expected saved answer 1, got %d", again.Answer(0))
	}

	claimed, ok, err := store.Claim(ctx, "s1")
	if err != nil || !ok {
		t.Fatalf("claim: ok=%v err=%v", ok, err)
	}
	if claimed.Answer(0) != 1 {
		t.Fatalf("expected claimed session to carry answer 1, got %d", claimed.Answer(0))
	}
	if _, ok, _ := store.Get(ctx, "s1"); ok {
		t.Fatalf("expected session removed")
	}
	if _, ok, _ := store.Claim(ctx, "s1"); ok {
		t.Fatalf("expected second claim to find nothing")
	}
	if ok, _ := store.Replace(ctx, loaded); ok {
		t.Fatalf("expected replace of a claimed session to be refused")
	}
	if _, ok, _ := store.Get(ctx, "s1"); ok {
		t.Fatalf("replace must not recreate a claimed session")
	}
}

func TestSessionStoreClaimIsExclusive(t *testing.T) {
	ctx := context.Background()
	store := NewSessionStore(time.Hour)
	if err := store.Save(ctx, app.NewSession("s1", domain.Identity{UserID: "u1"}, sampleQuiz(), time.Now())); err != nil {
		t.Fatalf("save: %v", err)
	}

	var wins int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok, _ := store.Claim(ctx, "s1"); ok {
				atomic.AddInt32(&wins, 1)
			}
		}()
	}
	wg.Wait()
	if wins != 1 {
		t.Fatalf("expected exactly one claim to win, got %d", wins)
	}
}

func TestSessionStoreExpiresSessions(t *testing.T) {
	ctx := context.Background()
	store := NewSessionStore(time.Hour)
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	for _, id := range []string{"idle", "active"} {
		if err := store.Save(ctx, app.NewSession(id, domain.Identity{UserID: "u1"}, sampleQuiz(), now)); err != nil {
			t.Fatalf("save %s: %v", id, err)
		}
	}

	// Writes slide the expiry forward.
	now = now.Add(40 * time.Minute)
	active, _, _ := store.Get(ctx, "active")
	active.SelectAnswer(0, 1)
	if ok, err := store.Replace(ctx, active); err != nil || !ok {
		t.Fatalf("replace: ok=%v err=%v", ok, err)
	}

	now = now.Add(30 * time.Minute)
	if _, ok, _ := store.Get(ctx, "idle"); ok {
		t.Fatalf("expected idle session to expire after the ttl")
	}
	if _, ok, _ := store.Get(ctx, "active"); !ok {
		t.Fatalf("expected recently written session to survive")
	}
	if store.Len() != 1 {
		t.Fatalf("expected expired session evicted on read, %d held", store.Len())
	}

	now = now.Add(time.Hour)
	if ok, _ := store.Replace(ctx, active); ok {
		t.Fatalf("expected replace of an expired session to be refused")
	}
	if _, ok, _ := store.Claim(ctx, "active"); ok {
		t.Fatalf("expected claim of an expired session to find nothing")
	}
}

func TestSessionStoreSweep(t *testing.T) {
	ctx := context.Background()
	store := NewSessionStore(time.Minute)
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	for _, id := range []string{"a", "b", "c"} {
		_ = store.Save(ctx, app.NewSession(id, domain.Identity{UserID: "u1"}, sampleQuiz(), now))
	}
	now = now.Add(2 * time.Minute)
	_ = store.Save(ctx, app.NewSession("d", domain.Identity{UserID: "u1"}, sampleQuiz(), now))

	store.sweep()
	if store.Len() != 1 {
		t.Fatalf("expected only the fresh session to remain, %d held", store.Len())
	}
}

func TestSessionStoreWithoutTTLKeepsSessions(t *testing.T) {
	ctx := context.Background()
	store := NewSessionStore(0)
	now := time.Now()
	store.now = func() time.Time { return now }
	_ = store.Save(ctx, app.NewSession("s1", domain.Identity{UserID: "u1"}, sampleQuiz(), now))

	now = now.Add(24 * 365 * time.Hour)
	store.sweep()
	if _, ok, _ := store.Get(ctx, "s1"); !ok {
		t.Fatalf("expected session kept without a ttl")
	}
}

func sampleQuiz() domain.Quiz {
	return domain.Quiz{
		ID:        "quiz-1",
		SourceURL: "https://www.youtube.com/watch?v=dQw4w9WgXcQ",
		Topic:     "Arithmetic",
		Questions: []domain.Question{
			{Text: "What is 2 + 2?", Options: []string{"3", "4", "5", "22"}, CorrectAnswerIndex: 1},
			{Text: "What is 3 * 3?", Options: []string{"6", "9", "33", "12"}, CorrectAnswerIndex: 1},
		},
	}
}
