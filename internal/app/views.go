package app

import (
	"time"

	"certquiz-service/internal/domain"
)

// QuestionView is a question as shown while the quiz is running: no answer.
type QuestionView struct {
	Text    string   `json:"question"`
	Options []string `json:"options"`
}

// SessionView is the client-facing state of a running session.
type SessionView struct {
	ID          string         `json:"id"`
	QuizID      string         `json:"quizId"`
	Topic       string         `json:"topic"`
	ChannelName string         `json:"channelName,omitempty"`
	SourceURL   string         `json:"sourceUrl"`
	Questions   []QuestionView `json:"questions"`
	Answers     []int          `json:"answers"`
	Current     int            `json:"current"`
	Complete    bool           `json:"complete"`
	StartedAt   time.Time      `json:"startedAt"`
}

func newSessionView(s *Session) SessionView {
	quiz := s.Quiz()
	questions := make([]QuestionView, len(quiz.Questions))
	for i, q := range quiz.Questions {
		questions[i] = QuestionView{Text: q.Text, Options: append([]string(nil), q.Options...)}
	}
	return SessionView{
		ID:          s.ID(),
		QuizID:      quiz.ID,
		Topic:       quiz.Topic,
		ChannelName: quiz.ChannelName,
		SourceURL:   quiz.SourceURL,
		Questions:   questions,
		Answers:     s.Answers(),
		Current:     s.CurrentIndex(),
		Complete:    s.IsComplete(),
		StartedAt:   s.StartedAt(),
	}
}

// Result is the outcome of finishing a session. Certificate and Review are
// empty unless the session passed and the store confirmed issuance.
type Result struct {
	SessionID   string              `json:"sessionId"`
	Score       domain.Score        `json:"score"`
	Decision    domain.Decision     `json:"decision"`
	Passed      bool                `json:"passed"`
	Certificate *domain.Certificate `json:"certificate,omitempty"`
	Review      []AnswerKeyItem     `json:"review,omitempty"`
}

// AnswerKeyItem pairs one question with the user's answer.
type AnswerKeyItem struct {
	Question           string   `json:"question"`
	Options            []string `json:"options"`
	CorrectAnswerIndex int      `json:"correctAnswerIndex"`
	UserAnswer         int      `json:"userAnswer"`
	Correct            bool     `json:"correct"`
}

// AnswerKey is the review of a certificate's quiz.
type AnswerKey struct {
	CertificateID string          `json:"certificateId"`
	Topic         string          `json:"topic"`
	Score         int             `json:"score"`
	IssuedAt      time.Time       `json:"issuedAt"`
	Items         []AnswerKeyItem `json:"items"`
}

func buildAnswerKey(questions []domain.Question, answers []int) []AnswerKeyItem {
	items := make([]AnswerKeyItem, len(questions))
	for i, q := range questions {
		answer := domain.Unanswered
		if i < len(answers) {
			answer = answers[i]
		}
		items[i] = AnswerKeyItem{
			Question:           q.Text,
			Options:            append([]string(nil), q.Options...),
			CorrectAnswerIndex: q.CorrectAnswerIndex,
			UserAnswer:         answer,
			Correct:            answer == q.CorrectAnswerIndex,
		}
	}
	return items
}
