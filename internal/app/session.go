package app

import (
	"fmt"
	"time"

	"certquiz-service/internal/domain"
)

// Session tracks one user's progress through a quiz. It is driven by a single
// user, so it carries no locking; repositories hand out independent copies.
type Session struct {
	id        string
	owner     domain.Identity
	quiz      domain.Quiz
	answers   []int
	current   int
	startedAt time.Time
}

// SessionState is the serializable form of a Session, used by session repositories.
type SessionState struct {
	ID        string          `json:"id"`
	Owner     domain.Identity `json:"owner"`
	Quiz      domain.Quiz     `json:"quiz"`
	Answers   []int           `json:"answers"`
	Current   int             `json:"current"`
	StartedAt time.Time       `json:"startedAt"`
}

// NewSession starts a session over a copy of quiz. The quiz must have at least
// one question.
func NewSession(id string, owner domain.Identity, quiz domain.Quiz, startedAt time.Time) *Session {
	if len(quiz.Questions) == 0 {
		panic("app: session requires a quiz with questions")
	}
	quiz.Questions = domain.CloneQuestions(quiz.Questions)
	answers := make([]int, len(quiz.Questions))
	for i := range answers {
		answers[i] = domain.Unanswered
	}
	return &Session{
		id:        id,
		owner:     owner,
		quiz:      quiz,
		answers:   answers,
		startedAt: startedAt,
	}
}

// RestoreSession rebuilds a session from stored state, rejecting corrupt state.
func RestoreSession(state SessionState) (*Session, error) {
	n := len(state.Quiz.Questions)
	if n == 0 {
		return nil, fmt.Errorf("restore session %s: quiz has no questions", state.ID)
	}
	if len(state.Answers) != n {
		return nil, fmt.Errorf("restore session %s: %d answers for %d questions", state.ID, len(state.Answers), n)
	}
	if state.Current < 0 || state.Current >= n {
		return nil, fmt.Errorf("restore session %s: current index %d out of range", state.ID, state.Current)
	}
	for i, a := range state.Answers {
		if a != domain.Unanswered && (a < 0 || a >= len(state.Quiz.Questions[i].Options)) {
			return nil, fmt.Errorf("restore session %s: answer %d out of range at position %d", state.ID, a, i)
		}
	}
	quiz := state.Quiz
	quiz.Questions = domain.CloneQuestions(quiz.Questions)
	return &Session{
		id:        state.ID,
		owner:     state.Owner,
		quiz:      quiz,
		answers:   append([]int(nil), state.Answers...),
		current:   state.Current,
		startedAt: state.StartedAt,
	}, nil
}

// State returns a copy of the session's state.
func (s *Session) State() SessionState {
	quiz := s.quiz
	quiz.Questions = domain.CloneQuestions(quiz.Questions)
	return SessionState{
		ID:        s.id,
		Owner:     s.owner,
		Quiz:      quiz,
		Answers:   append([]int(nil), s.answers...),
		Current:   s.current,
		StartedAt: s.startedAt,
	}
}

// ID is the session identifier handed to the client.
func (s *Session) ID() string { return s.id }

// Owner is the identity that started the session.
func (s *Session) Owner() domain.Identity { return s.owner }

// Quiz returns the quiz being taken. Its Questions slice is shared; do not mutate it.
func (s *Session) Quiz() domain.Quiz { return s.quiz }

// CurrentIndex is the zero-based position of the question on screen.
func (s *Session) CurrentIndex() int { return s.current }

// StartedAt is when the session was created.
func (s *Session) StartedAt() time.Time { return s.startedAt }

// Len is the number of questions in the quiz.
func (s *Session) Len() int { return len(s.quiz.Questions) }

// Answer returns the option chosen at position, or domain.Unanswered.
// It panics when position is out of range.
func (s *Session) Answer(position int) int { return s.answers[s.checkPosition(position)] }

// Answers returns a copy of the recorded selections.
func (s *Session) Answers() []int {
	return append([]int(nil), s.answers...)
}

// SelectAnswer records optionIndex for the question at position, replacing any
// earlier choice. Out-of-range arguments are programmer errors and panic.
func (s *Session) SelectAnswer(position, optionIndex int) {
	s.checkPosition(position)
	if n := len(s.quiz.Questions[position].Options); optionIndex < 0 || optionIndex >= n {
		panic(fmt.Sprintf("app: option %d out of range [0,%d) at position %d", optionIndex, n, position))
	}
	s.answers[position] = optionIndex
}

// Advance moves to the next question. It does nothing on the last question or
// while the current question is unanswered, and reports whether it moved.
func (s *Session) Advance() bool {
	if s.current >= len(s.quiz.Questions)-1 || s.answers[s.current] == domain.Unanswered {
		return false
	}
	s.current++
	return true
}

// Retreat moves to the previous question, doing nothing at the first one.
func (s *Session) Retreat() bool {
	if s.current == 0 {
		return false
	}
	s.current--
	return true
}

// IsComplete reports whether every question has an answer.
func (s *Session) IsComplete() bool {
	for _, a := range s.answers {
		if a == domain.Unanswered {
			return false
		}
	}
	return true
}

// Score counts correct answers and rounds the percentage half up.
func (s *Session) Score() domain.Score {
	correct := 0
	for i, q := range s.quiz.Questions {
		if s.answers[i] == q.CorrectAnswerIndex {
			correct++
		}
	}
	return ComputeScore(correct, len(s.quiz.Questions))
}

// ComputeScore builds a Score with percentage = round-half-up(100*correct/total).
func ComputeScore(correct, total int) domain.Score {
	if total <= 0 {
		panic("app: score requires at least one question")
	}
	return domain.Score{
		Correct:    correct,
		Total:      total,
		Percentage: (200*correct + total) / (2 * total),
	}
}

func (s *Session) checkPosition(position int) int {
	if position < 0 || position >= len(s.quiz.Questions) {
		panic(fmt.Sprintf("app: position %d out of range [0,%d)", position, len(s.quiz.Questions)))
	}
	return position
}
