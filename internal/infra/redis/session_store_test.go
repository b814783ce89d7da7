package redis

import (
	"context"
	"testing"
	"time"

	"certquiz-service/internal/app"
	"certquiz-service/internal/domain"
	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestSessionStoreSetsReplacesAndClaimsKeys(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	ctx := context.Background()
	store := NewSessionStore(newClient(mr), time.Minute)

	session := app.NewSession("s1", domain.Identity{UserID: "u1", UserName: "Alice"}, sampleQuiz(), time.Now())
	session.SelectAnswer(0, 1)
	session.Advance()
	if err := store.Save(ctx, session); err != nil {
		t.Fatalf("save: %v", err)
	}
	if !mr.Exists("quiz:session:s1") {
		t.Fatalf("expected redis key to be set")
	}
	if ttl := mr.TTL("quiz:session:s1"); ttl != time.Minute {
		t.Fatalf("expected ttl of one minute, got %v", ttl)
	}

	loaded, ok, err := store.Get(ctx, "s1")
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if loaded.Answer(0) != 1 || loaded.CurrentIndex() != 1 || loaded.Owner().UserName != "Alice" {
		t.Fatalf("unexpected restored state %+v", loaded.State())
	}

	loaded.SelectAnswer(1, 0)
	mr.FastForward(30 * time.Second)
	if ok, err := store.Replace(ctx, loaded); err != nil || !ok {
		t.Fatalf("replace: ok=%v err=%v", ok, err)
	}
	if ttl := mr.TTL("quiz:session:s1"); ttl != time.Minute {
		t.Fatalf("expected replace to refresh the ttl, got %v", ttl)
	}

	claimed, ok, err := store.Claim(ctx, "s1")
	if err != nil || !ok {
		t.Fatalf("claim: ok=%v err=%v", ok, err)
	}
	if claimed.Answer(1) != 0 {
		t.Fatalf("expected claimed session to carry the replaced answer, got %d", claimed.Answer(1))
	}
	if mr.Exists("quiz:session:s1") {
		t.Fatalf("expected redis key to be removed")
	}
	if _, ok, err := store.Claim(ctx, "s1"); ok || err != nil {
		t.Fatalf("expected second claim to miss, ok=%v err=%v", ok, err)
	}
	if ok, err := store.Replace(ctx, claimed); ok || err != nil {
		t.Fatalf("expected replace after claim to be refused, ok=%v err=%v", ok, err)
	}
	if _, ok, err := store.Get(ctx, "s1"); ok || err != nil {
		t.Fatalf("expected missing session, ok=%v err=%v", ok, err)
	}
}

func TestSessionStoreReplaceAfterExpiry(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	ctx := context.Background()
	store := NewSessionStore(newClient(mr), time.Minute)
	session := app.NewSession("s1", domain.Identity{UserID: "u1"}, sampleQuiz(), time.Now())
	if err := store.Save(ctx, session); err != nil {
		t.Fatalf("save: %v", err)
	}

	mr.FastForward(2 * time.Minute)
	session.SelectAnswer(0, 1)
	if ok, err := store.Replace(ctx, session); ok || err != nil {
		t.Fatalf("expected expired session not to be rewritten, ok=%v err=%v", ok, err)
	}
	if mr.Exists("quiz:session:s1") {
		t.Fatalf("expected no key after refused replace")
	}
}

func TestSessionStoreRejectsCorruptState(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	if err := mr.Set("quiz:session:bad", `{"id":"bad","quiz":{"questions":[]},"answers":[]}`); err != nil {
		t.Fatalf("seed: %v", err)
	}
	store := NewSessionStore(newClient(mr), time.Minute)
	if _, _, err := store.Get(context.Background(), "bad"); err == nil {
		t.Fatalf("expected corrupt session to be rejected")
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

func newClient(mr *miniredis.Miniredis) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
}
