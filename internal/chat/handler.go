package chat

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/chaintalk-ai/chaintalk/internal/api"
	"github.com/chaintalk-ai/chaintalk/internal/auth"
	"github.com/chaintalk-ai/chaintalk/internal/store"
)

// Handler exposes the chat pipeline over HTTP.
type Handler struct {
	svc      *Service
	validate *validator.Validate
}

func NewHandler(svc *Service) *Handler {
	return &Handler{
		svc:      svc,
		validate: validator.New(),
	}
}

type ChatRequest struct {
	Message        string `json:"message" validate:"required,max=8000"`
	ConversationID string `json:"conversation_id"`
}

func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserClaims(r.Context())
	if claims == nil {
		api.HandleError(w, api.ErrUnauthorized)
		return
	}

	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.HandleError(w, api.ErrBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		api.HandleError(w, api.NewValidationError(err.Error()))
		return
	}

	result, err := h.svc.HandleChat(r.Context(), claims.UserID, req.ConversationID, req.Message)
	if err != nil {
		h.handleChatError(w, err)
		return
	}
	api.JSON(w, http.StatusOK, result)
}

// ChatStream delivers the reply as Server-Sent Events: "delta" events with
// the text pieces, then one "done" event carrying the conversation id.
func (h *Handler) ChatStream(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserClaims(r.Context())
	if claims == nil {
		api.HandleError(w, api.ErrUnauthorized)
		return
	}

	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.HandleError(w, api.ErrBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		api.HandleError(w, api.NewValidationError(err.Error()))
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		api.HandleError(w, api.ErrInternalServer)
		return
	}

	conversationID, events, err := h.svc.StreamChat(r.Context(), claims.UserID, req.ConversationID, req.Message)
	if err != nil {
		h.handleChatError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	for event := range events {
		switch {
		case event.Err != nil:
			slog.Warn("chat: stream failed", "conversation_id", conversationID, "error", event.Err)
			fmt.Fprintf(w, "event: error\ndata: %s\n\n", sseJSON(map[string]string{"error": "generation failed"}))
			flusher.Flush()
			return
		case event.Done:
			fmt.Fprintf(w, "event: done\ndata: %s\n\n", sseJSON(map[string]string{"conversation_id": conversationID}))
			flusher.Flush()
		default:
			fmt.Fprintf(w, "event: delta\ndata: %s\n\n", sseJSON(map[string]string{"content": event.Delta}))
			flusher.Flush()
		}
	}
}

func sseJSON(v any) string {
	data, _ := json.Marshal(v)
	return string(data)
}

func (h *Handler) ListConversations(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserClaims(r.Context())
	status := r.URL.Query().Get("status")
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	convs, err := h.svc.Conversations(r.Context(), claims.UserID, status, limit)
	if err != nil {
		slog.Error("listing conversations", "error", err)
		api.HandleError(w, api.ErrUpstream)
		return
	}
	api.JSON(w, http.StatusOK, convs)
}

type RenameRequest struct {
	Title string `json:"title" validate:"required,max=200"`
}

func (h *Handler) RenameConversation(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserClaims(r.Context())
	id := chi.URLParam(r, "conversationID")

	var req RenameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.HandleError(w, api.ErrBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		api.HandleError(w, api.NewValidationError(err.Error()))
		return
	}

	if err := h.svc.Rename(r.Context(), claims.UserID, id, req.Title); err != nil {
		h.handleChatError(w, err)
		return
	}
	api.JSONMessage(w, http.StatusOK, "conversation renamed")
}

func (h *Handler) ArchiveConversation(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserClaims(r.Context())
	id := chi.URLParam(r, "conversationID")

	if err := h.svc.Archive(r.Context(), claims.UserID, id); err != nil {
		h.handleChatError(w, err)
		return
	}
	api.JSONMessage(w, http.StatusOK, "conversation archived")
}

func (h *Handler) DeleteConversation(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserClaims(r.Context())
	id := chi.URLParam(r, "conversationID")

	if err := h.svc.Delete(r.Context(), claims.UserID, id); err != nil {
		h.handleChatError(w, err)
		return
	}
	api.JSONMessage(w, http.StatusOK, "conversation deleted")
}

func (h *Handler) ExportConversation(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserClaims(r.Context())
	id := chi.URLParam(r, "conversationID")

	export, err := h.svc.Export(r.Context(), claims.UserID, id)
	if err != nil {
		h.handleChatError(w, err)
		return
	}
	api.JSON(w, http.StatusOK, export)
}

func (h *Handler) ContextSummary(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserClaims(r.Context())
	id := chi.URLParam(r, "conversationID")
	query := r.URL.Query().Get("q")

	summary, err := h.svc.ContextSummary(r.Context(), claims.UserID, id, query)
	if err != nil {
		h.handleChatError(w, err)
		return
	}
	api.JSON(w, http.StatusOK, summary)
}

func (h *Handler) SearchHistory(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserClaims(r.Context())
	query := r.URL.Query().Get("q")
	if query == "" {
		api.HandleError(w, api.NewBadRequestError("missing query parameter q"))
		return
	}
	conversationID := r.URL.Query().Get("conversation_id")
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	msgs, err := h.svc.SearchHistory(r.Context(), claims.UserID, conversationID, query, limit)
	if err != nil {
		slog.Error("searching history", "error", err)
		api.HandleError(w, api.ErrUpstream)
		return
	}
	api.JSON(w, http.StatusOK, msgs)
}

func (h *Handler) UserStats(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserClaims(r.Context())

	stats, err := h.svc.Stats(r.Context(), claims.UserID)
	if err != nil {
		slog.Error("aggregating stats", "error", err)
		api.HandleError(w, api.ErrUpstream)
		return
	}
	api.JSON(w, http.StatusOK, stats)
}

func (h *Handler) handleChatError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotOwner):
		api.HandleError(w, api.ErrOwnershipViolation)
	case errors.Is(err, store.ErrNotFound):
		api.HandleError(w, api.ErrNotFound)
	default:
		slog.Error("chat request failed", "error", err)
		api.HandleError(w, api.ErrUpstream)
	}
}
