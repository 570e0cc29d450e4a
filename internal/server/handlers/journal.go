package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/iudanet/dreamjournal/internal/models"
	"github.com/iudanet/dreamjournal/internal/server/metrics"
	"github.com/iudanet/dreamjournal/internal/server/storage"
	"github.com/iudanet/dreamjournal/internal/validation"
	"github.com/iudanet/dreamjournal/pkg/api"
)

// JournalHandler serves the Dreams collection and its nested Comments.
type JournalHandler struct {
	logger  *slog.Logger
	store   storage.JournalStorage
	metrics *metrics.Metrics
}

// NewJournalHandler creates a new journal handler
func NewJournalHandler(logger *slog.Logger, store storage.JournalStorage, m *metrics.Metrics) *JournalHandler {
	return &JournalHandler{
		logger:  logger,
		store:   store,
		metrics: m,
	}
}

// List обрабатывает GET /api/v1/dreams
func (h *JournalHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	entries, err := h.store.ListEntries(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to list entries", slog.Any("error", err))
		sendError(h.logger, w, "internal server error", http.StatusInternalServerError)
		return
	}

	resp := api.ListEntriesResponse{Entries: make([]api.Entry, 0, len(entries))}
	for i := range entries {
		resp.Entries = append(resp.Entries, toAPIEntry(&entries[i]))
	}

	sendJSON(h.logger, w, resp, http.StatusOK)
}

// Get обрабатывает GET /api/v1/dreams/{id}
func (h *JournalHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")

	entry, err := h.store.GetEntry(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrEntryNotFound) {
			sendError(h.logger, w, "entry not found", http.StatusNotFound)
			return
		}
		h.logger.ErrorContext(ctx, "failed to get entry", slog.String("entry_id", id), slog.Any("error", err))
		sendError(h.logger, w, "internal server error", http.StatusInternalServerError)
		return
	}

	sendJSON(h.logger, w, toAPIEntry(entry), http.StatusOK)
}

// CreateEntry обрабатывает POST /api/v1/dreams
func (h *JournalHandler) CreateEntry(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req api.CreateEntryRequest
	if err := decodeJSON(r, &req); err != nil {
		h.logger.WarnContext(ctx, "bad create entry request", slog.Any("error", err))
		sendError(h.logger, w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := validation.ValidateNewEntry(req.Title, req.Description); err != nil {
		sendError(h.logger, w, err.Error(), http.StatusBadRequest)
		return
	}

	entry := &models.Entry{
		ID:          uuid.New().String(),
		OwnerID:     ownerID(r),
		Title:       req.Title,
		Description: req.Description,
		Nickname:    req.Nickname,
		CreatedAt:   time.Now().UTC(),
		Comments:    []models.Comment{},
	}

	if err := h.store.CreateEntry(ctx, entry); err != nil {
		h.logger.ErrorContext(ctx, "failed to create entry", slog.Any("error", err))
		sendError(h.logger, w, "internal server error", http.StatusInternalServerError)
		return
	}

	h.metrics.JournalOp(metrics.OpEntryCreate)
	h.logger.InfoContext(ctx, "entry created",
		slog.String("entry_id", entry.ID),
		slog.String("owner_id", entry.OwnerID))

	sendJSON(h.logger, w, toAPIEntry(entry), http.StatusCreated)
}

// DeleteEntry обрабатывает DELETE /api/v1/dreams/{id}.
// Удаление идемпотентно: несуществующий id тоже дает 204.
func (h *JournalHandler) DeleteEntry(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")

	if err := h.store.DeleteEntry(ctx, id); err != nil {
		h.logger.ErrorContext(ctx, "failed to delete entry", slog.String("entry_id", id), slog.Any("error", err))
		sendError(h.logger, w, "internal server error", http.StatusInternalServerError)
		return
	}

	h.metrics.JournalOp(metrics.OpEntryDelete)
	h.logger.InfoContext(ctx, "entry deleted", slog.String("entry_id", id))

	w.WriteHeader(http.StatusNoContent)
}

// CreateComment обрабатывает POST /api/v1/dreams/{id}/comments
func (h *JournalHandler) CreateComment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	entryID := r.PathValue("id")

	var req api.CreateCommentRequest
	if err := decodeJSON(r, &req); err != nil {
		h.logger.WarnContext(ctx, "bad create comment request", slog.Any("error", err))
		sendError(h.logger, w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := validation.ValidateNewComment(req.Text); err != nil {
		sendError(h.logger, w, err.Error(), http.StatusBadRequest)
		return
	}

	comment := &models.Comment{
		ID:        uuid.New().String(),
		EntryID:   entryID,
		OwnerID:   ownerID(r),
		Text:      req.Text,
		Nickname:  req.Nickname,
		CreatedAt: time.Now().UTC(),
	}

	if err := h.store.CreateComment(ctx, comment); err != nil {
		if errors.Is(err, storage.ErrEntryNotFound) {
			h.logger.WarnContext(ctx, "comment on missing entry", slog.String("entry_id", entryID))
			sendError(h.logger, w, "entry not found", http.StatusNotFound)
			return
		}
		h.logger.ErrorContext(ctx, "failed to create comment", slog.Any("error", err))
		sendError(h.logger, w, "internal server error", http.StatusInternalServerError)
		return
	}

	h.metrics.JournalOp(metrics.OpCommentCreate)
	h.logger.InfoContext(ctx, "comment created",
		slog.String("entry_id", entryID),
		slog.String("comment_id", comment.ID))

	sendJSON(h.logger, w, toAPIComment(comment), http.StatusCreated)
}

// DeleteComment обрабатывает DELETE /api/v1/dreams/{id}/comments/{commentID}
func (h *JournalHandler) DeleteComment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	entryID := r.PathValue("id")
	commentID := r.PathValue("commentID")

	if err := h.store.DeleteComment(ctx, entryID, commentID); err != nil {
		h.logger.ErrorContext(ctx, "failed to delete comment",
			slog.String("entry_id", entryID),
			slog.String("comment_id", commentID),
			slog.Any("error", err))
		sendError(h.logger, w, "internal server error", http.StatusInternalServerError)
		return
	}

	h.metrics.JournalOp(metrics.OpCommentDelete)
	w.WriteHeader(http.StatusNoContent)
}

// ownerID возвращает id пользователя или пустую строку для анонимной записи
func ownerID(r *http.Request) string {
	if id, ok := GetIdentity(r.Context()); ok {
		return id.UserID
	}
	return ""
}

func toAPIEntry(e *models.Entry) api.Entry {
	out := api.Entry{
		ID:          e.ID,
		OwnerID:     e.OwnerID,
		Title:       e.Title,
		Description: e.Description,
		Nickname:    e.Nickname,
		Timestamp:   e.CreatedAt,
		Comments:    make([]api.Comment, 0, len(e.Comments)),
	}
	for i := range e.Comments {
		out.Comments = append(out.Comments, toAPIComment(&e.Comments[i]))
	}
	return out
}

func toAPIComment(c *models.Comment) api.Comment {
	return api.Comment{
		ID:        c.ID,
		EntryID:   c.EntryID,
		OwnerID:   c.OwnerID,
		Text:      c.Text,
		Nickname:  c.Nickname,
		Timestamp: c.CreatedAt,
	}
}
