package http

import (
	"net/http"

	"certquiz-service/internal/app"
	"certquiz-service/internal/domain"
	"github.com/go-chi/chi/v5"
)

type createQuizRequest struct {
	VideoURL string `json:"videoUrl" validate:"required,max=2048"`
	Topic    string `json:"topic" validate:"max=200"`
}

type selectAnswerRequest struct {
	Position *int `json:"position" validate:"required,min=0"`
	Option   *int `json:"option" validate:"required,min=0"`
}

type verifyResponse struct {
	Found       bool                `json:"found"`
	Certificate *domain.Certificate `json:"certificate,omitempty"`
}

// Handler serves the REST API.
type Handler struct {
	quizzes      *app.QuizService
	certificates *app.CertificateService
	validator    *Validator
}

func NewHandler(quizzes *app.QuizService, certificates *app.CertificateService) *Handler {
	return &Handler{quizzes: quizzes, certificates: certificates, validator: NewValidator()}
}

func (h *Handler) CreateQuiz(w http.ResponseWriter, r *http.Request) {
	var req createQuizRequest
	if fields := h.validator.Bind(r, &req); fields != nil {
		failWithFields(w, r, http.StatusBadRequest, ErrValidation, fields)
		return
	}
	view, err := h.quizzes.CreateQuiz(r.Context(), identity(r), req.VideoURL, req.Topic)
	if err != nil {
		failWithError(w, r, err)
		return
	}
	success(w, r, http.StatusCreated, view)
}

func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	view, err := h.quizzes.Session(r.Context(), identity(r), chi.URLParam(r, "id"))
	h.respondView(w, r, view, err)
}

func (h *Handler) SelectAnswer(w http.ResponseWriter, r *http.Request) {
	var req selectAnswerRequest
	if fields := h.validator.Bind(r, &req); fields != nil {
		failWithFields(w, r, http.StatusBadRequest, ErrValidation, fields)
		return
	}
	view, err := h.quizzes.SelectAnswer(r.Context(), identity(r), chi.URLParam(r, "id"), *req.Position, *req.Option)
	h.respondView(w, r, view, err)
}

func (h *Handler) Advance(w http.ResponseWriter, r *http.Request) {
	view, err := h.quizzes.Advance(r.Context(), identity(r), chi.URLParam(r, "id"))
	h.respondView(w, r, view, err)
}

func (h *Handler) Retreat(w http.ResponseWriter, r *http.Request) {
	view, err := h.quizzes.Retreat(r.Context(), identity(r), chi.URLParam(r, "id"))
	h.respondView(w, r, view, err)
}

func (h *Handler) Finish(w http.ResponseWriter, r *http.Request) {
	result, err := h.quizzes.Finish(r.Context(), identity(r), chi.URLParam(r, "id"))
	if err != nil {
		failWithError(w, r, err)
		return
	}
	success(w, r, http.StatusOK, result)
}

func (h *Handler) ListCertificates(w http.ResponseWriter, r *http.Request) {
	certs, err := h.certificates.ListForUser(r.Context(), identity(r))
	if err != nil {
		failWithError(w, r, err)
		return
	}
	success(w, r, http.StatusOK, certs)
}

func (h *Handler) ListAnswerKeys(w http.ResponseWriter, r *http.Request) {
	keys, err := h.certificates.AnswerKeys(r.Context(), identity(r))
	if err != nil {
		failWithError(w, r, err)
		return
	}
	success(w, r, http.StatusOK, keys)
}

// Verify is public. The question snapshot stays private to the owner.
func (h *Handler) Verify(w http.ResponseWriter, r *http.Request) {
	cert, found, err := h.certificates.Verify(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		failWithError(w, r, err)
		return
	}
	if !found {
		writeJSON(w, r, http.StatusNotFound, Response{
			Data:  verifyResponse{Found: false},
			Error: &ErrorBody{Code: ErrNotFound, Message: "Certificate not found."},
		})
		return
	}
	cert.Questions = nil
	cert.UserAnswers = nil
	success(w, r, http.StatusOK, verifyResponse{Found: true, Certificate: &cert})
}

func (h *Handler) respondView(w http.ResponseWriter, r *http.Request, view app.SessionView, err error) {
	if err != nil {
		failWithError(w, r, err)
		return
	}
	success(w, r, http.StatusOK, view)
}

func identity(r *http.Request) domain.Identity {
	who, _ := IdentityFrom(r.Context())
	return who
}
