package handler

import (
	"embed"
	"html/template"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/iamvkosarev/ira-companion/internal/model"
	"github.com/iamvkosarev/ira-companion/internal/usecase"
	"github.com/iamvkosarev/ira-companion/pkg/log"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

// ViewHandler renders the minimal server-side pages; all conversation
// interactivity goes through the JSON/SSE API.
type ViewHandler struct {
	chat *usecase.ChatUsecase
}

func NewViewHandler(chat *usecase.ChatUsecase) *ViewHandler {
	return &ViewHandler{
		chat: chat,
	}
}

type indexViewData struct {
	UID   string
	Chats []model.ChatSummary
}

type chatViewData struct {
	UID     string
	ChatID  string
	Chats   []model.ChatSummary
	History []model.Message
}

func (h *ViewHandler) handleIndex(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("uid")
	if userID == "" {
		userID = defaultUserID
	}

	chats, err := h.chat.ListChats(r.Context(), userID)
	if err != nil {
		log.FromCtx(r.Context()).Error().Err(err).Msg("failed to list chats")
		http.Error(w, "failed to list chats", statusForError(err))
		return
	}
	// First visit gets a chat to start in, as the original app did.
	if len(chats) == 0 {
		if _, err = h.chat.NewChat(r.Context(), userID, ""); err != nil {
			log.FromCtx(r.Context()).Error().Err(err).Msg("failed to create first chat")
			http.Error(w, "failed to create chat", statusForError(err))
			return
		}
		if chats, err = h.chat.ListChats(r.Context(), userID); err != nil {
			http.Error(w, "failed to list chats", statusForError(err))
			return
		}
	}

	h.render(w, r, "index.html", indexViewData{UID: userID, Chats: chats})
}

func (h *ViewHandler) handleChat(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("uid")
	if userID == "" {
		userID = defaultUserID
	}
	chatID := chi.URLParam(r, "chatID")

	history, err := h.chat.History(r.Context(), userID, chatID)
	if err != nil {
		log.FromCtx(r.Context()).Warn().Err(err).Str("chat_id", chatID).Msg("failed to load chat")
		http.Error(w, "chat not found", statusForError(err))
		return
	}
	chats, err := h.chat.ListChats(r.Context(), userID)
	if err != nil {
		http.Error(w, "failed to list chats", statusForError(err))
		return
	}

	h.render(
		w, r, "chat.html", chatViewData{
			UID:     userID,
			ChatID:  chatID,
			Chats:   chats,
			History: history,
		},
	)
}

func (h *ViewHandler) render(w http.ResponseWriter, r *http.Request, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := templates.ExecuteTemplate(w, name, data); err != nil {
		log.FromCtx(r.Context()).Error().Err(err).Str("template", name).Msg("failed to render")
	}
}
