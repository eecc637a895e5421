package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"pairchat/auth"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

type contextKey string

const requestIDKey contextKey = "request_id"

// NewRouter wires the external HTTP contract. Everything under /chats
// requires a valid bearer token; /auth is public.
func NewRouter(log *slog.Logger, tokens *auth.TokenManager,
	authHandler *AuthHandler, chatHandler *ChatHandler) *mux.Router {

	r := mux.NewRouter()
	r.Use(requestLogger(log))

	r.HandleFunc("/auth/register", authHandler.Register).Methods(http.MethodPost)
	r.HandleFunc("/auth/login", authHandler.Login).Methods(http.MethodPost)

	chats := r.PathPrefix("/chats").Subrouter()
	chats.Use(auth.Middleware(tokens))
	chats.HandleFunc("", chatHandler.CreateChat).Methods(http.MethodPost)
	chats.HandleFunc("", chatHandler.ListChats).Methods(http.MethodGet)
	chats.HandleFunc("/{id:[0-9]+}", chatHandler.DeleteChat).Methods(http.MethodDelete)
	chats.HandleFunc("/{id:[0-9]+}/connect", chatHandler.Connect).Methods(http.MethodPatch)
	chats.HandleFunc("/{id:[0-9]+}/disconnect", chatHandler.Disconnect).Methods(http.MethodPatch)
	chats.HandleFunc("/{id:[0-9]+}/messages", chatHandler.PostMessage).Methods(http.MethodPost)
	chats.HandleFunc("/{id:[0-9]+}/messages", chatHandler.GetMessages).Methods(http.MethodGet)
	chats.HandleFunc("/{id:[0-9]+}/keys", chatHandler.PublishKey).Methods(http.MethodPost)
	chats.HandleFunc("/{id:[0-9]+}/keys/partner", chatHandler.GetPartnerKey).Methods(http.MethodGet)

	return r
}

// requestLogger tags each request with a correlation id and logs its timing.
func requestLogger(log *slog.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := uuid.NewString()
			ctx := context.WithValue(r.Context(), requestIDKey, requestID)
			start := time.Now()
			next.ServeHTTP(w, r.WithContext(ctx))
			log.Debug("Request handled",
				"request_id", requestID,
				"method", r.Method,
				"path", r.URL.Path,
				"duration", time.Since(start))
		})
	}
}

func requestIDFrom(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}
