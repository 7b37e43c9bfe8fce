package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"vocab-quiz-service/internal/app"
	"vocab-quiz-service/internal/domain"
	"vocab-quiz-service/internal/messages"
)

type WSHandler struct {
	engine       *app.QuizEngine
	catalog      *messages.Catalog
	logger       *slog.Logger
	defaultCount int
	upgrader     websocket.Upgrader
}

func NewWSHandler(engine *app.QuizEngine, catalog *messages.Catalog, logger *slog.Logger) *WSHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &WSHandler{
		engine:       engine,
		catalog:      catalog,
		logger:       logger,
		defaultCount: app.DefaultQuestionCount,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// WithDefaultCount sets the question count used when a start message has none.
func (h *WSHandler) WithDefaultCount(n int) *WSHandler {
	if n > 0 {
		h.defaultCount = n
	}
	return h
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type startPayload struct {
	Count *int   `json:"count"`
	Mode  string `json:"mode"`
}

type answerPayload struct {
	OptionIDs []int `json:"optionIds"`
}

type pollPayload struct {
	Number          int      `json:"number"`
	Total           int      `json:"total"`
	Question        string   `json:"question"`
	Options         []string `json:"options"`
	CorrectOptionID int      `json:"correctOptionId"`
}

type textPayload struct {
	Text string `json:"text"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// ServeWS upgrades HTTP requests to websockets and wires them into the quiz engine.
// Closing the connection ends the quiz it started.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		http.Error(w, "missing userId", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("ws upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	// the quiz this connection started; another connection of the same user
	// may have replaced it since
	var owned string
	defer func() {
		if owned != "" {
			h.engine.StopSession(userID, owned)
		}
	}()

	send := make(chan outboundMessage[any], 16)
	writerDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				h.logger.Warn("ws write error", "user_id", userID, "error", err)
				// keep draining so the reader never blocks on a dead socket
				for range send {
				}
				return
			}
		}
	}()

	send <- h.text(h.catalog.Help())

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		switch inbound.Type {
		case "start":
			var payload startPayload
			if len(inbound.Payload) > 0 {
				if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
					send <- h.errorMsg("invalid start payload")
					continue
				}
			}
			count := h.defaultCount
			if payload.Count != nil {
				count = *payload.Count
			}
			mode := domain.ModeRandom
			if payload.Mode != "" {
				m, ok := domain.ParseMode(payload.Mode)
				if !ok {
					send <- h.errorMsg("unsupported mode")
					continue
				}
				mode = m
			}
			intents, err := h.engine.OnStart(r.Context(), userID, count, mode)
			for _, in := range intents {
				if poll, ok := in.(domain.PollIntent); ok {
					owned = poll.SessionID
				}
			}
			h.deliver(send, userID, intents, err)
		case "answer":
			var payload answerPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				send <- h.errorMsg("invalid answer payload")
				continue
			}
			intents, err := h.engine.OnAnswer(userID, payload.OptionIDs)
			h.deliver(send, userID, intents, err)
		case "help":
			send <- h.text(h.catalog.Help())
		default:
			send <- h.errorMsg("unsupported message type")
		}
	}

	close(send)
	<-writerDone
}

func (h *WSHandler) deliver(send chan<- outboundMessage[any], userID string, intents []domain.Intent, err error) {
	if err != nil {
		h.logger.Info("quiz request failed", "user_id", userID, "error", err)
		send <- h.errorMsg(h.catalog.Error(err))
		return
	}
	for _, in := range intents {
		switch v := in.(type) {
		case domain.PollIntent:
			send <- outboundMessage[any]{Type: "poll", Payload: pollPayload{
				Number:          v.Number,
				Total:           v.Total,
				Question:        h.catalog.Question(v),
				Options:         v.Question.Options,
				CorrectOptionID: v.Question.CorrectIndex,
			}}
		default:
			if text, ok := h.catalog.Text(in); ok {
				send <- h.text(text)
			}
		}
	}
}

func (h *WSHandler) text(s string) outboundMessage[any] {
	return outboundMessage[any]{Type: "message", Payload: textPayload{Text: s}}
}

func (h *WSHandler) errorMsg(s string) outboundMessage[any] {
	return outboundMessage[any]{Type: "error", Payload: errorPayload{Message: s}}
}
