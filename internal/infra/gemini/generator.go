package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"certquiz-service/internal/domain"
	"github.com/rs/zerolog"
)

const (
	// QuestionCount is how many questions every generated quiz has.
	QuestionCount = 5
	// OptionCount is how many options every generated question has.
	OptionCount = 4
)

// Generator implements app.QuizGenerator on top of a Completer.
type Generator struct {
	completer Completer
	timeout   time.Duration
	log       zerolog.Logger
}

func NewGenerator(completer Completer, timeout time.Duration, log zerolog.Logger) *Generator {
	return &Generator{completer: completer, timeout: timeout, log: log}
}

func (g *Generator) Generate(ctx context.Context, req domain.GenerationRequest) (domain.GeneratedQuiz, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	started := time.Now()
	text, err := g.completer.Complete(ctx, buildPrompt(req))
	if err != nil {
		g.log.Error().Err(err).Str("video", req.VideoURL).Msg("gemini request failed")
		return domain.GeneratedQuiz{}, &domain.GenerationError{Message: "Failed to generate quiz. Please try again.", Err: err}
	}

	quiz, err := ParseQuiz(text)
	if err != nil {
		g.log.Error().Err(err).Str("video", req.VideoURL).Msg("unusable gemini response")
		return domain.GeneratedQuiz{}, err
	}
	if req.Topic != "" {
		quiz.Topic = req.Topic
	}
	g.log.Debug().Str("video", req.VideoURL).Dur("took", time.Since(started)).Msg("quiz generated")
	return quiz, nil
}

func buildPrompt(req domain.GenerationRequest) string {
	var b strings.Builder
	b.WriteString("You write assessments for educational videos.\n")
	fmt.Fprintf(&b, "Video URL: %q\n", req.VideoURL)
	if req.Topic != "" {
		fmt.Fprintf(&b, "Topic or description supplied by the learner: %q\n", req.Topic)
	} else {
		b.WriteString("Work out the video's subject and set \"topic\" to a short title for it.\n")
	}
	b.WriteString("Set \"channelName\" to the publishing channel when you know it, otherwise leave it empty.\n")
	fmt.Fprintf(&b, "Write exactly %d multiple-choice questions of moderate difficulty that check understanding of the subject.\n", QuestionCount)
	fmt.Fprintf(&b, "Each question has exactly %d options and \"correctAnswerIndex\" is the 0-based index of the single correct option.\n", OptionCount)
	return b.String()
}

type rawQuiz struct {
	Topic       string        `json:"topic"`
	ChannelName string        `json:"channelName"`
	Questions   []rawQuestion `json:"questions"`
}

type rawQuestion struct {
	Question           string   `json:"question"`
	Options            []string `json:"options"`
	CorrectAnswerIndex *int     `json:"correctAnswerIndex"`
}

// ParseQuiz decodes and validates a model response. Any deviation from the
// expected shape is a GenerationError; partial quizzes are never returned.
func ParseQuiz(text string) (domain.GeneratedQuiz, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)
	if text == "" {
		return domain.GeneratedQuiz{}, &domain.GenerationError{Message: "The quiz generator returned no data."}
	}

	var raw rawQuiz
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return domain.GeneratedQuiz{}, &domain.GenerationError{Message: "The quiz generator returned malformed data.", Err: err}
	}
	if len(raw.Questions) != QuestionCount {
		return domain.GeneratedQuiz{}, malformed("expected %d questions, got %d", QuestionCount, len(raw.Questions))
	}

	questions := make([]domain.Question, len(raw.Questions))
	for i, q := range raw.Questions {
		if strings.TrimSpace(q.Question) == "" {
			return domain.GeneratedQuiz{}, malformed("question %d has no text", i+1)
		}
		if len(q.Options) != OptionCount {
			return domain.GeneratedQuiz{}, malformed("question %d has %d options", i+1, len(q.Options))
		}
		for j, opt := range q.Options {
			if strings.TrimSpace(opt) == "" {
				return domain.GeneratedQuiz{}, malformed("question %d option %d is empty", i+1, j+1)
			}
		}
		if q.CorrectAnswerIndex == nil || *q.CorrectAnswerIndex < 0 || *q.CorrectAnswerIndex >= len(q.Options) {
			return domain.GeneratedQuiz{}, malformed("question %d has no valid correct answer", i+1)
		}
		questions[i] = domain.Question{
			Text:               strings.TrimSpace(q.Question),
			Options:            append([]string(nil), q.Options...),
			CorrectAnswerIndex: *q.CorrectAnswerIndex,
		}
	}

	topic := strings.TrimSpace(raw.Topic)
	if topic == "" {
		topic = "Video quiz"
	}
	return domain.GeneratedQuiz{
		Topic:       topic,
		ChannelName: strings.TrimSpace(raw.ChannelName),
		Questions:   questions,
	}, nil
}

func malformed(format string, args ...interface{}) error {
	return &domain.GenerationError{
		Message: "The quiz generator returned an unusable quiz.",
		Err:     fmt.Errorf(format, args...),
	}
}
