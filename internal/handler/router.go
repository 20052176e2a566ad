package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/iamvkosarev/ira-companion/internal/usecase"
	"github.com/iamvkosarev/ira-companion/pkg/log"
)

// NewRouter wires HTTP routes to the orchestrator.
func NewRouter(chat *usecase.ChatUsecase) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)

	views := NewViewHandler(chat)
	api := NewAPIHandler(chat)

	r.Get("/", views.handleIndex)
	r.Get("/chat/{chatID}", views.handleChat)
	r.Get("/health", api.handleHealth)

	r.Route("/api", func(rt chi.Router) {
		rt.Post("/new_chat", api.handleNewChat)
		rt.Get("/chats", api.handleChats)
		rt.Post("/send", api.handleSend)
	})

	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			log.FromCtx(r.Context()).Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Dur("took", time.Since(start)).
				Msg("request")
		},
	)
}
