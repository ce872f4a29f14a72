// Package httpapi exposes the conversation core to the console's UI layer.
// It owns request decoding, validation, the dispatcher ownership check,
// and the translation of domain errors to HTTP statuses.
package httpapi

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"dispatch-chat/auth"
	"dispatch-chat/errors"
	"dispatch-chat/observability"
	"dispatch-chat/services"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"
)

type API struct {
	log           *slog.Logger
	chats         services.IChatService
	conversations services.IConversationService
	monitor       *observability.Monitor
	tokens        auth.TokenManager
	validate      *validator.Validate
	upgrader      websocket.Upgrader
}

func NewAPI(log *slog.Logger, chats services.IChatService,
	conversations services.IConversationService, monitor *observability.Monitor,
	tokens auth.TokenManager) *API {
	return &API{
		log:           log,
		chats:         chats,
		conversations: conversations,
		monitor:       monitor,
		tokens:        tokens,
		validate:      validator.New(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The console is served from another origin than the API.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

func (a *API) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
	}))

	r.Get("/debug/stats", a.monitor.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(auth.Middleware(a.tokens))
		r.Get("/conversations", a.listConversations)
		r.Post("/conversations", a.startConversation)
		r.Put("/rooms/{roomID}", a.ensureRoom)
		r.Get("/rooms/{roomID}/messages", a.listMessages)
		r.Post("/rooms/{roomID}/messages", a.sendMessage)
		r.Post("/rooms/{roomID}/seen", a.markSeen)
		r.Get("/rooms/{roomID}/ws", a.subscribeRoom)
	})
	return r
}

func (a *API) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		a.log.Error("Failed to encode response", "error", err)
	}
}

// errForbidden covers path room keys owned by another dispatcher.
var errForbidden = fmt.Errorf("room does not belong to caller")

func (a *API) writeError(w http.ResponseWriter, err error) {
	if errors.Is(err, errForbidden) {
		a.writeJSON(w, http.StatusForbidden, map[string]string{"error": err.Error()})
		return
	}
	status := errors.MapToHTTPStatus(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		a.log.Error("Internal error", "error", err)
		message = "internal error"
	}
	a.writeJSON(w, status, map[string]string{"error": message})
}
