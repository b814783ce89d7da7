package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"certquiz-service/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// SessionRepository abstracts how quiz sessions are stored (in-memory, Redis, etc).
// Implementations hand out independent copies; callers Save after mutating.
type SessionRepository interface {
	Get(ctx context.Context, sessionID string) (*Session, bool, error)
	// Save creates or overwrites a session.
	Save(ctx context.Context, session *Session) error
	// Replace overwrites a session only while it still exists and reports
	// false when it has expired or been claimed.
	Replace(ctx context.Context, session *Session) (bool, error)
	// Claim removes a session and returns it. Of several concurrent callers
	// exactly one gets found=true.
	Claim(ctx context.Context, sessionID string) (*Session, bool, error)
}

// QuizGenerator produces questions for a video through an external model.
type QuizGenerator interface {
	Generate(ctx context.Context, req domain.GenerationRequest) (domain.GeneratedQuiz, error)
}

// CertificateStore persists certificates. GetByID reports unknown IDs with
// found=false and a nil error.
type CertificateStore interface {
	Issue(ctx context.Context, draft domain.CertificateDraft) (domain.Certificate, error)
	GetByID(ctx context.Context, id string) (domain.Certificate, bool, error)
	ListByUser(ctx context.Context, userID string) ([]domain.Certificate, error)
}

// QuizService contains the quiz and certification use cases.
type QuizService struct {
	generator    QuizGenerator
	sessions     SessionRepository
	certificates CertificateStore
	log          zerolog.Logger
	now          func() time.Time
	newID        func() string
	locks        *sessionLocks
}

// Option customizes a QuizService.
type Option func(*QuizService)

// WithClock is used by tests for deterministic timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *QuizService) { s.now = now }
}

// WithIDs replaces the UUID generator for quiz and session IDs.
func WithIDs(newID func() string) Option {
	return func(s *QuizService) { s.newID = newID }
}

// WithLogger attaches a logger.
func WithLogger(log zerolog.Logger) Option {
	return func(s *QuizService) { s.log = log }
}

func NewQuizService(generator QuizGenerator, sessions SessionRepository, certificates CertificateStore, opts ...Option) *QuizService {
	s := &QuizService{
		generator:    generator,
		sessions:     sessions,
		certificates: certificates,
		log:          zerolog.Nop(),
		now:          time.Now,
		newID:        uuid.NewString,
		locks:        newSessionLocks(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateQuiz generates a quiz for videoURL and starts a session for who.
func (s *QuizService) CreateQuiz(ctx context.Context, who domain.Identity, videoURL, topic string) (SessionView, error) {
	if who.UserID == "" {
		return SessionView{}, domain.ErrUnauthenticated
	}
	source, err := domain.NormalizeVideoURL(videoURL)
	if err != nil {
		return SessionView{}, err
	}
	topic = strings.TrimSpace(topic)

	generated, err := s.generator.Generate(ctx, domain.GenerationRequest{UserID: who.UserID, Topic: topic, VideoURL: source})
	if err != nil {
		s.log.Warn().Err(err).Str("video", source).Msg("quiz generation failed")
		if errors.Is(err, domain.ErrGenerationFailed) {
			return SessionView{}, err
		}
		return SessionView{}, &domain.GenerationError{Message: "Failed to generate quiz. Please try again.", Err: err}
	}
	if len(generated.Questions) == 0 {
		return SessionView{}, &domain.GenerationError{Message: "The quiz generator returned no questions."}
	}
	requested := topic
	if topic == "" {
		topic = generated.Topic
	}

	now := s.now()
	quiz := domain.Quiz{
		ID:             s.newID(),
		SourceURL:      source,
		Topic:          topic,
		ChannelName:    generated.ChannelName,
		Questions:      generated.Questions,
		CreatedAt:      now,
		RequestedTopic: requested,
	}
	session := NewSession(s.newID(), who, quiz, now)
	if err := s.sessions.Save(ctx, session); err != nil {
		return SessionView{}, fmt.Errorf("save session: %w", err)
	}
	s.log.Info().Str("session", session.ID()).Str("quiz", quiz.ID).Str("user", who.UserID).Msg("quiz session started")
	return newSessionView(session), nil
}

// Session returns the caller's view of one of their sessions.
func (s *QuizService) Session(ctx context.Context, who domain.Identity, sessionID string) (SessionView, error) {
	session, err := s.load(ctx, who, sessionID)
	if err != nil {
		return SessionView{}, err
	}
	return newSessionView(session), nil
}

// SelectAnswer records a choice without moving the pointer.
func (s *QuizService) SelectAnswer(ctx context.Context, who domain.Identity, sessionID string, position, option int) (SessionView, error) {
	return s.mutate(ctx, who, sessionID, func(session *Session) error {
		if position < 0 || position >= session.Len() {
			return domain.ErrPositionOutOfRange
		}
		if option < 0 || option >= len(session.Quiz().Questions[position].Options) {
			return domain.ErrOptionOutOfRange
		}
		session.SelectAnswer(position, option)
		return nil
	})
}

// Advance moves to the next question when the current one is answered.
func (s *QuizService) Advance(ctx context.Context, who domain.Identity, sessionID string) (SessionView, error) {
	return s.mutate(ctx, who, sessionID, func(session *Session) error {
		session.Advance()
		return nil
	})
}

// Retreat moves to the previous question.
func (s *QuizService) Retreat(ctx context.Context, who domain.Identity, sessionID string) (SessionView, error) {
	return s.mutate(ctx, who, sessionID, func(session *Session) error {
		session.Retreat()
		return nil
	})
}

// Finish scores a complete session and issues a certificate when it passes.
// The session is claimed before scoring so a concurrent Finish sees it as
// gone. If issuance fails the session is put back and the error returned.
// The answer key is only part of a passing result.
func (s *QuizService) Finish(ctx context.Context, who domain.Identity, sessionID string) (Result, error) {
	unlock := s.locks.lock(sessionID)
	defer unlock()

	session, err := s.load(ctx, who, sessionID)
	if err != nil {
		return Result{}, err
	}
	if !session.IsComplete() {
		return Result{}, domain.ErrSessionIncomplete
	}

	claimed, ok, err := s.sessions.Claim(ctx, sessionID)
	if err != nil {
		return Result{}, fmt.Errorf("claim session: %w", err)
	}
	if !ok {
		return Result{}, domain.ErrSessionNotFound
	}
	session = claimed
	if session.Owner().UserID != who.UserID || !session.IsComplete() {
		// Changed by another instance between load and claim.
		s.restore(ctx, session)
		return Result{}, domain.ErrSessionNotFound
	}

	score := session.Score()
	decision := domain.Decide(score.Percentage)
	quiz := session.Quiz()
	result := Result{
		SessionID: session.ID(),
		Score:     score,
		Decision:  decision,
		Passed:    decision.Passed(),
	}

	if decision.Passed() {
		cert, err := s.certificates.Issue(ctx, domain.CertificateDraft{
			UserID:      who.UserID,
			UserName:    who.UserName,
			Topic:       quiz.Topic,
			ChannelName: quiz.ChannelName,
			VideoURL:    quiz.SourceURL,
			Score:       score.Percentage,
			Questions:   domain.CloneQuestions(quiz.Questions),
			UserAnswers: session.Answers(),
		})
		if err != nil {
			s.log.Error().Err(err).Str("session", session.ID()).Str("user", who.UserID).Msg("certificate issuance failed")
			s.restore(ctx, session)
			return Result{}, fmt.Errorf("issue certificate: %w", err)
		}
		result.Certificate = &cert
		result.Review = buildAnswerKey(quiz.Questions, session.Answers())
		s.log.Info().Str("certificate", cert.ID).Str("user", who.UserID).Int("score", score.Percentage).Msg("certificate issued")
	}

	s.forgetGeneration(ctx, who, quiz)
	return result, nil
}

// restore puts a claimed session back after a failed finish.
func (s *QuizService) restore(ctx context.Context, session *Session) {
	if err := s.sessions.Save(ctx, session); err != nil {
		s.log.Error().Err(err).Str("session", session.ID()).Msg("restore claimed session")
	}
}

// forgetGeneration drops the cached quiz behind a finished attempt so a retake
// is generated anew.
func (s *QuizService) forgetGeneration(ctx context.Context, who domain.Identity, quiz domain.Quiz) {
	forgetter, ok := s.generator.(GenerationForgetter)
	if !ok {
		return
	}
	req := domain.GenerationRequest{UserID: who.UserID, Topic: quiz.RequestedTopic, VideoURL: quiz.SourceURL}
	if err := forgetter.Forget(ctx, req); err != nil {
		s.log.Warn().Err(err).Str("video", quiz.SourceURL).Str("user", who.UserID).Msg("forget generated quiz")
	}
}

func (s *QuizService) mutate(ctx context.Context, who domain.Identity, sessionID string, fn func(*Session) error) (SessionView, error) {
	unlock := s.locks.lock(sessionID)
	defer unlock()

	session, err := s.load(ctx, who, sessionID)
	if err != nil {
		return SessionView{}, err
	}
	if err := fn(session); err != nil {
		return SessionView{}, err
	}
	ok, err := s.sessions.Replace(ctx, session)
	if err != nil {
		return SessionView{}, fmt.Errorf("save session: %w", err)
	}
	if !ok {
		return SessionView{}, domain.ErrSessionNotFound
	}
	return newSessionView(session), nil
}

func (s *QuizService) load(ctx context.Context, who domain.Identity, sessionID string) (*Session, error) {
	if who.UserID == "" {
		return nil, domain.ErrUnauthenticated
	}
	session, ok, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	// Foreign sessions look the same as missing ones.
	if !ok || session.Owner().UserID != who.UserID {
		return nil, domain.ErrSessionNotFound
	}
	return session, nil
}
