package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"certquiz-service/internal/app"
	"certquiz-service/internal/auth"
	"certquiz-service/internal/domain"
	"certquiz-service/internal/infra/memory"
	"github.com/rs/zerolog"
)

const testVideo = "https://youtu.be/dQw4w9WgXcQ"

type stubGenerator struct {
	err error
}

func (g stubGenerator) Generate(ctx context.Context, req domain.GenerationRequest) (domain.GeneratedQuiz, error) {
	if g.err != nil {
		return domain.GeneratedQuiz{}, g.err
	}
	questions := make([]domain.Question, 5)
	for i := range questions {
		questions[i] = domain.Question{
			Text:               fmt.Sprintf("Question %d", i+1),
			Options:            []string{"a", "b", "c", "d"},
			CorrectAnswerIndex: i % 4,
		}
	}
	return domain.GeneratedQuiz{Topic: "Music history", ChannelName: "Rick Astley", Questions: questions}, nil
}

type testEnv struct {
	server *httptest.Server
	tokens *auth.TokenService
	certs  *memory.CertificateStore
}

func newTestEnv(t *testing.T, gen app.QuizGenerator, limiter *RateLimiter) *testEnv {
	t.Helper()
	certs := memory.NewCertificateStore()
	tokens := auth.NewTokenService("test-secret", "", time.Hour)
	router := NewRouter(RouterConfig{
		Quizzes:      app.NewQuizService(gen, memory.NewSessionStore(time.Hour), certs),
		Certificates: app.NewCertificateService(certs),
		Auth:         tokens,
		Limiter:      limiter,
		Logger:       zerolog.Nop(),
	})
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return &testEnv{server: server, tokens: tokens, certs: certs}
}

func (e *testEnv) token(t *testing.T, userID string) string {
	t.Helper()
	token, err := e.tokens.Issue(domain.Identity{UserID: userID, UserName: userID + "-name"})
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return token
}

type envelope struct {
	Data     json.RawMessage `json:"data"`
	Error    *ErrorBody      `json:"error"`
	Metadata Metadata        `json:"metadata"`
}

func (e *testEnv) do(t *testing.T, method, path, token string, body interface{}, into interface{}) (int, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, e.server.URL+path, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		t.Fatalf("decode %s %s: %v", method, path, err)
	}
	if into != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, into); err != nil {
			t.Fatalf("decode data: %v", err)
		}
	}
	return resp.StatusCode, env
}

func TestQuizFlowOverHTTP(t *testing.T) {
	env := newTestEnv(t, stubGenerator{}, nil)
	token := env.token(t, "user-1")

	var view app.SessionView
	status, body := env.do(t, http.MethodPost, "/api/quizzes", token, map[string]string{"videoUrl": testVideo}, &view)
	if status != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d (%+v)", status, body.Error)
	}
	if body.Metadata.RequestID == "" {
		t.Fatalf("expected request id in metadata")
	}
	if view.Topic != "Music history" || len(view.Questions) != 5 {
		t.Fatalf("unexpected session view: %+v", view)
	}
	if bytes.Contains(body.Data, []byte("correctAnswerIndex")) {
		t.Fatalf("session view leaks answers: %s", body.Data)
	}

	base := "/api/sessions/" + view.ID
	for i := 0; i < 5; i++ {
		status, body = env.do(t, http.MethodPost, base+"/answers", token, map[string]int{"position": i, "option": i % 4}, &view)
		if status != http.StatusOK {
			t.Fatalf("answer %d: expected 200, got %d (%+v)", i, status, body.Error)
		}
		env.do(t, http.MethodPost, base+"/advance", token, nil, &view)
	}
	if !view.Complete || view.Current != 4 {
		t.Fatalf("expected complete session on last question, got %+v", view)
	}

	var result app.Result
	status, body = env.do(t, http.MethodPost, base+"/finish", token, nil, &result)
	if status != http.StatusOK {
		t.Fatalf("finish: expected 200, got %d (%+v)", status, body.Error)
	}
	if !result.Passed || result.Score.Percentage != 100 || result.Certificate == nil {
		t.Fatalf("unexpected result: %+v", result)
	}

	var verified verifyResponse
	status, _ = env.do(t, http.MethodGet, "/api/verify/"+result.Certificate.ID, "", nil, &verified)
	if status != http.StatusOK || !verified.Found || verified.Certificate.UserName != "user-1-name" {
		t.Fatalf("verify: status %d, body %+v", status, verified)
	}
	if len(verified.Certificate.Questions) != 0 {
		t.Fatalf("public verification must not expose the question snapshot")
	}

	var certs []domain.Certificate
	env.do(t, http.MethodGet, "/api/certificates", token, nil, &certs)
	if len(certs) != 1 || certs[0].ID != result.Certificate.ID {
		t.Fatalf("unexpected certificates: %+v", certs)
	}

	var keys []app.AnswerKey
	env.do(t, http.MethodGet, "/api/answer-keys", token, nil, &keys)
	if len(keys) != 1 || len(keys[0].Items) != 5 {
		t.Fatalf("unexpected answer keys: %+v", keys)
	}

	status, _ = env.do(t, http.MethodGet, base, token, nil, nil)
	if status != http.StatusNotFound {
		t.Fatalf("finished session should be gone, got %d", status)
	}
}

func TestFailedFinishHidesAnswerKey(t *testing.T) {
	env := newTestEnv(t, stubGenerator{}, nil)
	token := env.token(t, "user-1")

	var view app.SessionView
	env.do(t, http.MethodPost, "/api/quizzes", token, map[string]string{"videoUrl": testVideo}, &view)
	base := "/api/sessions/" + view.ID
	for i := 0; i < 5; i++ {
		env.do(t, http.MethodPost, base+"/answers", token, map[string]int{"position": i, "option": (i + 1) % 4}, nil)
	}

	var result app.Result
	status, body := env.do(t, http.MethodPost, base+"/finish", token, nil, &result)
	if status != http.StatusOK {
		t.Fatalf("finish: expected 200, got %d (%+v)", status, body.Error)
	}
	if result.Passed || result.Score.Percentage != 0 || result.Certificate != nil {
		t.Fatalf("unexpected result: %+v", result)
	}
	if bytes.Contains(body.Data, []byte("correctAnswerIndex")) || bytes.Contains(body.Data, []byte("review")) {
		t.Fatalf("failed attempt leaks the answer key: %s", body.Data)
	}
}

func TestVerifyUnknownCertificate(t *testing.T) {
	env := newTestEnv(t, stubGenerator{}, nil)

	var verified verifyResponse
	status, body := env.do(t, http.MethodGet, "/api/verify/unknown-id-123", "", nil, &verified)
	if status != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", status)
	}
	if verified.Found || body.Error == nil || body.Error.Code != ErrNotFound {
		t.Fatalf("unexpected body: %+v %+v", verified, body.Error)
	}
}

func TestRequestErrors(t *testing.T) {
	env := newTestEnv(t, stubGenerator{}, nil)
	token := env.token(t, "user-1")

	tests := []struct {
		name   string
		token  string
		body   interface{}
		status int
		code   ErrCode
	}{
		{"no token", "", map[string]string{"videoUrl": testVideo}, http.StatusUnauthorized, ErrTokenRequired},
		{"bad token", "nope", map[string]string{"videoUrl": testVideo}, http.StatusUnauthorized, ErrTokenInvalid},
		{"missing url", token, map[string]string{"topic": "x"}, http.StatusBadRequest, ErrValidation},
		{"not youtube", token, map[string]string{"videoUrl": "https://example.com/video"}, http.StatusBadRequest, ErrInvalidSource},
		{"shorts", token, map[string]string{"videoUrl": "https://www.youtube.com/shorts/dQw4w9WgXcQ"}, http.StatusBadRequest, ErrUnsupportedSource},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := env.do(t, http.MethodPost, "/api/quizzes", tt.token, tt.body, nil)
			if status != tt.status || body.Error == nil || body.Error.Code != tt.code {
				t.Fatalf("expected %d %s, got %d %+v", tt.status, tt.code, status, body.Error)
			}
		})
	}

	status, body := env.do(t, http.MethodPost, "/api/quizzes", token, map[string]string{}, nil)
	if status != http.StatusBadRequest || body.Error.Fields["videoUrl"] == "" {
		t.Fatalf("expected field error for videoUrl, got %d %+v", status, body.Error)
	}
}

func TestSessionErrors(t *testing.T) {
	env := newTestEnv(t, stubGenerator{}, nil)
	owner := env.token(t, "user-1")
	stranger := env.token(t, "user-2")

	var view app.SessionView
	env.do(t, http.MethodPost, "/api/quizzes", owner, map[string]string{"videoUrl": testVideo}, &view)
	base := "/api/sessions/" + view.ID

	status, body := env.do(t, http.MethodPost, base+"/finish", owner, nil, nil)
	if status != http.StatusConflict || body.Error.Code != ErrSessionIncomplete {
		t.Fatalf("expected 409 incomplete, got %d %+v", status, body.Error)
	}

	status, body = env.do(t, http.MethodPost, base+"/answers", owner, map[string]int{"position": 7, "option": 0}, nil)
	if status != http.StatusBadRequest || body.Error.Code != ErrOutOfRange {
		t.Fatalf("expected 400 out of range, got %d %+v", status, body.Error)
	}

	status, body = env.do(t, http.MethodGet, base, stranger, nil, nil)
	if status != http.StatusNotFound || body.Error.Code != ErrNotFound {
		t.Fatalf("expected 404 for foreign session, got %d %+v", status, body.Error)
	}
}

func TestGenerationFailure(t *testing.T) {
	gen := stubGenerator{err: &domain.GenerationError{Message: "The quiz generator returned malformed data.", Err: errors.New("bad json")}}
	env := newTestEnv(t, gen, nil)

	status, body := env.do(t, http.MethodPost, "/api/quizzes", env.token(t, "user-1"), map[string]string{"videoUrl": testVideo}, nil)
	if status != http.StatusBadGateway || body.Error.Code != ErrGenerationFailed {
		t.Fatalf("expected 502, got %d %+v", status, body.Error)
	}
	if body.Error.Message != "The quiz generator returned malformed data." {
		t.Fatalf("unexpected message %q", body.Error.Message)
	}
}

func TestGenerateIsRateLimited(t *testing.T) {
	env := newTestEnv(t, stubGenerator{}, NewRateLimiter(1, time.Hour))
	token := env.token(t, "user-1")

	status, _ := env.do(t, http.MethodPost, "/api/quizzes", token, map[string]string{"videoUrl": testVideo}, nil)
	if status != http.StatusCreated {
		t.Fatalf("expected first request to pass, got %d", status)
	}
	status, body := env.do(t, http.MethodPost, "/api/quizzes", token, map[string]string{"videoUrl": testVideo}, nil)
	if status != http.StatusTooManyRequests || body.Error.Code != ErrRateLimitExceeded {
		t.Fatalf("expected 429, got %d %+v", status, body.Error)
	}

	// Other users have their own bucket.
	status, _ = env.do(t, http.MethodPost, "/api/quizzes", env.token(t, "user-2"), map[string]string{"videoUrl": testVideo}, nil)
	if status != http.StatusCreated {
		t.Fatalf("expected other user to pass, got %d", status)
	}
}

func TestRateLimiterRefill(t *testing.T) {
	rl := NewRateLimiter(2, time.Minute)
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	if !rl.Allow("a") || !rl.Allow("a") {
		t.Fatalf("expected two requests to pass")
	}
	if rl.Allow("a") {
		t.Fatalf("expected bucket to be empty")
	}
	now = now.Add(time.Minute)
	if !rl.Allow("a") {
		t.Fatalf("expected refill after one interval")
	}

	now = now.Add(10 * time.Minute)
	rl.cleanup()
	if len(rl.visitors) != 0 {
		t.Fatalf("expected idle visitor to be evicted")
	}
}
