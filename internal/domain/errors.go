package domain

import "errors"

var (
	// ErrGenerationFailed is matched by every GenerationError.
	ErrGenerationFailed = errors.New("quiz generation failed")
	// ErrStoreUnavailable is returned when the certificate backend cannot be reached.
	ErrStoreUnavailable = errors.New("certificate store unavailable")
	// ErrSessionNotFound is returned for unknown sessions and sessions owned by someone else.
	ErrSessionNotFound = errors.New("quiz session not found")
	// ErrSessionIncomplete is returned when finishing a session with unanswered questions.
	ErrSessionIncomplete = errors.New("quiz session has unanswered questions")
	// ErrPositionOutOfRange indicates a question position outside the quiz.
	ErrPositionOutOfRange = errors.New("question position out of range")
	// ErrOptionOutOfRange indicates an option index outside the question.
	ErrOptionOutOfRange = errors.New("option index out of range")
	// ErrInvalidSource indicates the source URL is not a YouTube video.
	ErrInvalidSource = errors.New("not a valid YouTube video URL")
	// ErrUnsupportedSource indicates a YouTube URL that cannot be used (Shorts).
	ErrUnsupportedSource = errors.New("YouTube Shorts are not supported, use a full-length video")
	// ErrUnauthenticated is returned when no valid identity accompanies a request.
	ErrUnauthenticated = errors.New("authentication required")
)

// GenerationError carries a user-facing message for a failed quiz generation.
type GenerationError struct {
	Message string
	Err     error
}

func (e *GenerationError) Error() string {
	if e.Message == "" {
		return ErrGenerationFailed.Error()
	}
	return e.Message
}

func (e *GenerationError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrGenerationFailed) hold for any GenerationError.
func (e *GenerationError) Is(target error) bool {
	return target == ErrGenerationFailed
}
