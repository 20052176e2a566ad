package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/iamvkosarev/ira-companion/internal/model"
	key_value "github.com/iamvkosarev/ira-companion/internal/storage/key-value"
	"github.com/iamvkosarev/ira-companion/internal/usecase"
	"github.com/iamvkosarev/ira-companion/pkg/log"
)

// defaultUserID mirrors the original single-tenant deployment: requests
// without an explicit uid share one demo identity.
const defaultUserID = "demo_user"

type APIHandler struct {
	chat *usecase.ChatUsecase
}

func NewAPIHandler(chat *usecase.ChatUsecase) *APIHandler {
	return &APIHandler{
		chat: chat,
	}
}

type chatSummaryResponse struct {
	ChatID  string    `json:"chat_id"`
	Title   string    `json:"title"`
	Preview string    `json:"preview,omitempty"`
	Created time.Time `json:"created"`
}

func (h *APIHandler) handleNewChat(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		UID   string `json:"uid"`
		Title string `json:"title"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if payload.UID == "" {
		payload.UID = defaultUserID
	}

	chat, err := h.chat.NewChat(r.Context(), payload.UID, payload.Title)
	if err != nil {
		log.FromCtx(r.Context()).Error().Err(err).Msg("failed to create chat")
		respondError(w, statusForError(err), "failed to create chat")
		return
	}
	respondJSON(w, http.StatusCreated, map[string]string{"chat_id": chat.ChatID})
}

func (h *APIHandler) handleChats(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("uid")
	if userID == "" {
		userID = defaultUserID
	}

	chats, err := h.chat.ListChats(r.Context(), userID)
	if err != nil {
		log.FromCtx(r.Context()).Error().Err(err).Msg("failed to list chats")
		respondError(w, statusForError(err), "failed to list chats")
		return
	}

	out := make([]chatSummaryResponse, 0, len(chats))
	for _, chat := range chats {
		out = append(
			out, chatSummaryResponse{
				ChatID:  chat.ChatID,
				Title:   chat.Title,
				Preview: chat.Preview,
				Created: chat.Created,
			},
		)
	}
	respondJSON(w, http.StatusOK, out)
}

func (h *APIHandler) handleSend(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		UID     string `json:"uid"`
		ChatID  string `json:"chat_id"`
		Message string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if payload.UID == "" {
		payload.UID = defaultUserID
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	sink := newSSEDelivery(w, flusher, h.chat.Language(r.Context(), payload.UID, payload.Message))
	err := h.chat.Send(
		r.Context(), usecase.SendRequest{
			UserID:  payload.UID,
			ChatID:  payload.ChatID,
			Message: payload.Message,
		}, sink,
	)
	if err == nil {
		return
	}

	log.FromCtx(r.Context()).Warn().Err(err).Str("uid", payload.UID).Msg("send failed")
	if !sink.started() {
		// Nothing streamed yet: answer with a plain status the client can
		// handle uniformly.
		respondError(w, statusForError(err), publicErrorMessage(err))
	}
}

func (h *APIHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := h.chat.Health(r.Context()); err != nil {
		log.FromCtx(r.Context()).Error().Err(err).Msg("health check failed")
		respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, model.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, key_value.ErrChatDoesNotExist):
		return http.StatusNotFound
	case errors.Is(err, model.ErrChatBusy):
		return http.StatusConflict
	case errors.Is(err, model.ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, model.ErrUpstreamTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, model.ErrUpstreamUnavailable), errors.Is(err, model.ErrUpstreamInterrupted):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func publicErrorMessage(err error) string {
	switch {
	case errors.Is(err, model.ErrValidation):
		return err.Error()
	case errors.Is(err, key_value.ErrChatDoesNotExist):
		return "chat not found"
	case errors.Is(err, model.ErrChatBusy):
		return "a reply for this chat is already being generated"
	default:
		return "internal error"
	}
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
