package http

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"certquiz-service/internal/app"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// WSHandler drives one quiz session over a websocket. Every inbound command is
// answered with the new session state, the final result or an error.
type WSHandler struct {
	service  *app.QuizService
	upgrader websocket.Upgrader
	log      zerolog.Logger
}

func NewWSHandler(service *app.QuizService, allowedOrigins []string, log zerolog.Logger) *WSHandler {
	return &WSHandler{
		service: service,
		log:     log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type selectPayload struct {
	Position int `json:"position"`
	Option   int `json:"option"`
}

type outboundMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

type errorPayload struct {
	Code    ErrCode `json:"code"`
	Message string  `json:"message"`
}

// ServeWS upgrades an authenticated request for /ws/sessions/{id}.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	who := identity(r)
	sessionID := chi.URLParam(r, "id")
	log := h.log.With().Str("session", sessionID).Str("user", who.UserID).Logger()

	// Fail before upgrading so the client gets a proper status code.
	initial, err := h.service.Session(r.Context(), who, sessionID)
	if err != nil {
		failWithError(w, r, err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("ws upgrade failed")
		return
	}
	defer conn.Close()

	send := make(chan outboundMessage, 16)
	writerDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Debug().Err(err).Msg("ws write error")
				return
			}
		}
	}()

	send <- outboundMessage{Type: "state", Payload: initial}

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		msg, done := h.dispatch(r, sessionID, inbound)
		send <- msg
		if done {
			break
		}
	}

	close(send)
	<-writerDone
	if err := conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")); err != nil {
		log.Debug().Err(err).Msg("ws close")
	}
}

// dispatch runs one command and reports whether the session is over.
func (h *WSHandler) dispatch(r *http.Request, sessionID string, inbound inboundMessage) (outboundMessage, bool) {
	ctx, who := r.Context(), identity(r)

	var (
		view app.SessionView
		err  error
	)
	switch inbound.Type {
	case "select":
		var payload selectPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			return errorMessage(ErrInvalidPayload, "invalid select payload"), false
		}
		view, err = h.service.SelectAnswer(ctx, who, sessionID, payload.Position, payload.Option)
	case "advance":
		view, err = h.service.Advance(ctx, who, sessionID)
	case "retreat":
		view, err = h.service.Retreat(ctx, who, sessionID)
	case "finish":
		result, err := h.service.Finish(ctx, who, sessionID)
		if err != nil {
			return wsError(err), false
		}
		return outboundMessage{Type: "result", Payload: result}, true
	default:
		return errorMessage(ErrInvalidPayload, "unsupported message type"), false
	}
	if err != nil {
		return wsError(err), false
	}
	return outboundMessage{Type: "state", Payload: view}, false
}

func wsError(err error) outboundMessage {
	_, code := classify(err)
	return errorMessage(code, code.Message())
}

func errorMessage(code ErrCode, message string) outboundMessage {
	return outboundMessage{Type: "error", Payload: errorPayload{Code: code, Message: message}}
}

// originChecker allows every origin when none are configured, otherwise only
// the listed ones. Requests without an Origin header are not from browsers.
func originChecker(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 {
		return func(r *http.Request) bool { return true }
	}
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		set[strings.TrimRight(o, "/")] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		_, ok := set[u.Scheme+"://"+u.Host]
		return ok
	}
}
