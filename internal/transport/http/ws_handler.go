package http

import (
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"jcert-quiz-service/internal/app"
	"jcert-quiz-service/internal/domain"
)

// FeedHandler streams committed results over a websocket.
// Admins receive every result; learners only their own.
type FeedHandler struct {
	service  *app.QuizService
	auth     *Authenticator
	upgrader websocket.Upgrader
}

func NewFeedHandler(service *app.QuizService, auth *Authenticator, origins []string) *FeedHandler {
	return &FeedHandler{
		service: service,
		auth:    auth,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(origins),
		},
	}
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type subscribedPayload struct {
	UserID int64 `json:"user_id"`
	All    bool  `json:"all"`
}

// ServeWS authenticates before upgrading; browsers cannot set headers on
// websocket requests, so the token may also arrive as ?token=.
func (h *FeedHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token == "" {
		token = r.URL.Query().Get("token")
	}
	if token == "" {
		writeError(w, r, domain.ErrUnauthenticated)
		return
	}
	id, err := h.auth.Parse(token)
	if err != nil {
		writeError(w, r, err)
		return
	}

	updates, cancel, err := h.service.Subscribe(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer cancel()

	log := zerolog.Ctx(r.Context())
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("ws upgrade failed")
		return
	}
	defer conn.Close()

	admin := h.auth.IsAdmin(id)
	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	// single writer: gorilla connections do not allow concurrent writes
	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Debug().Err(err).Msg("ws write failed")
				return
			}
		}
	}()

	go func() {
		defer close(updatesDone)
		for {
			select {
			case event, ok := <-updates:
				if !ok {
					return
				}
				if !admin && event.UserID != id.UserID {
					continue
				}
				select {
				case send <- outboundMessage[any]{Type: "result", Payload: event}:
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	send <- outboundMessage[any]{Type: "subscribed", Payload: subscribedPayload{UserID: id.UserID, All: admin}}

	// the feed is one-way; reading only detects the client going away
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
}

func originChecker(origins []string) func(r *http.Request) bool {
	if len(origins) == 0 {
		return func(r *http.Request) bool { return true }
	}
	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		allowed[o] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		if _, ok := allowed["*"]; ok {
			return true
		}
		_, ok := allowed[origin]
		return ok
	}
}
