package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"certquiz-service/internal/domain"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/hlog"
)

// ErrCode identifies an API error independently of its message.
type ErrCode string

const (
	ErrTokenRequired     ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid      ErrCode = "TOKEN_INVALID"
	ErrValidation        ErrCode = "VALIDATION_ERROR"
	ErrInvalidPayload    ErrCode = "INVALID_PAYLOAD"
	ErrInvalidSource     ErrCode = "INVALID_VIDEO_URL"
	ErrUnsupportedSource ErrCode = "UNSUPPORTED_VIDEO"
	ErrNotFound          ErrCode = "NOT_FOUND"
	ErrSessionIncomplete ErrCode = "SESSION_INCOMPLETE"
	ErrOutOfRange        ErrCode = "OUT_OF_RANGE"
	ErrGenerationFailed  ErrCode = "GENERATION_FAILED"
	ErrStoreUnavailable  ErrCode = "STORE_UNAVAILABLE"
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"
	ErrInternal          ErrCode = "INTERNAL_ERROR"
)

// Message returns the default human-readable text for a code.
func (c ErrCode) Message() string {
	switch c {
	case ErrTokenRequired:
		return "Authentication token is required."
	case ErrTokenInvalid:
		return "Authentication token is invalid or expired."
	case ErrValidation:
		return "Validation failed. Please check your input."
	case ErrInvalidPayload:
		return "Request payload is invalid."
	case ErrInvalidSource:
		return "Please enter a valid YouTube video URL."
	case ErrUnsupportedSource:
		return "YouTube Shorts are not supported. Please use a regular video."
	case ErrNotFound:
		return "Resource not found."
	case ErrSessionIncomplete:
		return "Answer every question before finishing the quiz."
	case ErrOutOfRange:
		return "Question or option does not exist."
	case ErrGenerationFailed:
		return "Failed to generate quiz. Please try again."
	case ErrStoreUnavailable:
		return "Certificate storage is unavailable. Please try again."
	case ErrRateLimitExceeded:
		return "Too many requests. Please try again later."
	default:
		return "An internal server error occurred."
	}
}

// Response is the API response envelope.
type Response struct {
	Data     interface{} `json:"data"`
	Error    *ErrorBody  `json:"error,omitempty"`
	Metadata Metadata    `json:"metadata"`
}

type ErrorBody struct {
	Code    ErrCode           `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

type Metadata struct {
	RequestID string `json:"requestId"`
	Timestamp string `json:"timestamp"`
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, body Response) {
	body.Metadata = Metadata{
		RequestID: middleware.GetReqID(r.Context()),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		hlog.FromRequest(r).Warn().Err(err).Msg("write response")
	}
}

func success(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	writeJSON(w, r, status, Response{Data: data})
}

func fail(w http.ResponseWriter, r *http.Request, status int, code ErrCode) {
	failWithMessage(w, r, status, code, code.Message())
}

func failWithMessage(w http.ResponseWriter, r *http.Request, status int, code ErrCode, message string) {
	writeJSON(w, r, status, Response{Error: &ErrorBody{Code: code, Message: message}})
}

func failWithFields(w http.ResponseWriter, r *http.Request, status int, code ErrCode, fields map[string]string) {
	writeJSON(w, r, status, Response{Error: &ErrorBody{Code: code, Message: code.Message(), Fields: fields}})
}

// classify maps a use-case error to its HTTP status and code.
func classify(err error) (int, ErrCode) {
	switch {
	case errors.Is(err, domain.ErrUnauthenticated):
		return http.StatusUnauthorized, ErrTokenInvalid
	case errors.Is(err, domain.ErrInvalidSource):
		return http.StatusBadRequest, ErrInvalidSource
	case errors.Is(err, domain.ErrUnsupportedSource):
		return http.StatusBadRequest, ErrUnsupportedSource
	case errors.Is(err, domain.ErrPositionOutOfRange), errors.Is(err, domain.ErrOptionOutOfRange):
		return http.StatusBadRequest, ErrOutOfRange
	case errors.Is(err, domain.ErrSessionNotFound):
		return http.StatusNotFound, ErrNotFound
	case errors.Is(err, domain.ErrSessionIncomplete):
		return http.StatusConflict, ErrSessionIncomplete
	case errors.Is(err, domain.ErrGenerationFailed):
		return http.StatusBadGateway, ErrGenerationFailed
	case errors.Is(err, domain.ErrStoreUnavailable):
		return http.StatusServiceUnavailable, ErrStoreUnavailable
	default:
		return http.StatusInternalServerError, ErrInternal
	}
}

// failWithError writes err using its classified status. Generation errors keep
// their own user-facing message.
func failWithError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := classify(err)
	message := code.Message()
	var genErr *domain.GenerationError
	if errors.As(err, &genErr) && genErr.Message != "" {
		message = genErr.Message
	}
	if status >= http.StatusInternalServerError {
		hlog.FromRequest(r).Error().Err(err).Str("code", string(code)).Msg("request failed")
	}
	failWithMessage(w, r, status, code, message)
}
