package domain

import "time"

// Identity is the authenticated caller as reported by the identity provider.
type Identity struct {
	UserID   string `json:"userId"`
	UserName string `json:"userName"`
	Email    string `json:"email,omitempty"`
}

// Question models an MCQ question with exactly one correct option.
type Question struct {
	Text               string   `json:"question"`
	Options            []string `json:"options"`
	CorrectAnswerIndex int      `json:"correctAnswerIndex"`
}

// Quiz is a generated assessment tied to a source video. Questions are fixed at
// creation and never mutated afterwards.
type Quiz struct {
	ID          string     `json:"id"`
	SourceURL   string     `json:"sourceUrl"`
	Topic       string     `json:"topic"`
	ChannelName string     `json:"channelName,omitempty"`
	Questions   []Question `json:"questions"`
	CreatedAt   time.Time  `json:"createdAt"`

	// RequestedTopic is the topic the user typed, empty when the model
	// picked one. Together with SourceURL it rebuilds the generation request.
	RequestedTopic string `json:"requestedTopic,omitempty"`
}

// GenerationRequest is the input handed to a quiz generator. UserID scopes
// cached quizzes to the requester; generators themselves ignore it.
type GenerationRequest struct {
	UserID   string
	Topic    string
	VideoURL string
}

// CacheKey identifies the request in generation caches.
func (r GenerationRequest) CacheKey() string {
	return r.UserID + "\x00" + r.VideoURL + "\x00" + r.Topic
}

// GeneratedQuiz is what a generator returns: questions plus the topic and
// channel it detected (or echoed back).
type GeneratedQuiz struct {
	Topic       string     `json:"topic"`
	ChannelName string     `json:"channelName,omitempty"`
	Questions   []Question `json:"questions"`
}

// Score summarizes a finished or in-progress session.
type Score struct {
	Correct    int `json:"correct"`
	Total      int `json:"total"`
	Percentage int `json:"percentage"`
}

// CertificateDraft is a certificate before the store assigns its ID and
// issue time.
type CertificateDraft struct {
	UserID      string
	UserName    string
	Topic       string
	ChannelName string
	VideoURL    string
	Score       int
	Questions   []Question
	UserAnswers []int
}

// Certificate is the durable proof of a passed quiz. Questions and UserAnswers
// are absent on certificates issued before answer keys existed.
type Certificate struct {
	ID          string     `json:"id"`
	UserID      string     `json:"userId"`
	UserName    string     `json:"userName"`
	Topic       string     `json:"topic"`
	ChannelName string     `json:"channelName,omitempty"`
	VideoURL    string     `json:"videoUrl"`
	Score       int        `json:"score"`
	Questions   []Question `json:"questions,omitempty"`
	UserAnswers []int      `json:"userAnswers,omitempty"`
	IssuedAt    time.Time  `json:"issuedAt"`
}

// HasAnswerKey reports whether the certificate carries a question snapshot.
func (c Certificate) HasAnswerKey() bool {
	return len(c.Questions) > 0
}

// UserAnswer returns the recorded answer for position i, or Unanswered when the
// snapshot does not have it.
func (c Certificate) UserAnswer(i int) int {
	if i < 0 || i >= len(c.UserAnswers) {
		return Unanswered
	}
	return c.UserAnswers[i]
}

// Unanswered marks a position without a selected option.
const Unanswered = -1

// CloneQuestions returns a deep copy so snapshots never share backing arrays.
func CloneQuestions(qs []Question) []Question {
	if qs == nil {
		return nil
	}
	out := make([]Question, len(qs))
	for i, q := range qs {
		out[i] = Question{
			Text:               q.Text,
			Options:            append([]string(nil), q.Options...),
			CorrectAnswerIndex: q.CorrectAnswerIndex,
		}
	}
	return out
}

// CloneCertificate returns a copy that shares no slices with c.
func CloneCertificate(c Certificate) Certificate {
	c.Questions = CloneQuestions(c.Questions)
	if c.UserAnswers != nil {
		c.UserAnswers = append([]int(nil), c.UserAnswers...)
	}
	return c
}
