package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/iudanet/offsync/pkg/api"
)

// contextKey тип для ключей контекста
type contextKey string

// UserIDKey ключ для хранения user_id в контексте
const UserIDKey contextKey = "user_id"

// GetUserID извлекает user_id из контекста запроса
func GetUserID(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(UserIDKey).(string)
	return userID, ok
}

// WithUserID кладёт user_id в контекст запроса (используется
// middleware аутентификации)
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, UserIDKey, userID)
}

// DataStorage определяет интерфейс для работы с данными
type DataStorage interface {
	ApplyChange(ctx context.Context, table, userID string, change api.Change, serverTime int64) (*api.Row, error)
	GetRowsSince(ctx context.Context, table, userID string, since int64) ([]*api.Row, error)
}

// SyncHandler handles push and pull requests
type SyncHandler struct {
	logger  *slog.Logger
	storage DataStorage
	nowFunc func() time.Time
}

// NewSyncHandler creates a new sync handler
func NewSyncHandler(logger *slog.Logger, storage DataStorage) *SyncHandler {
	return &SyncHandler{
		logger:  logger,
		storage: storage,
		nowFunc: time.Now,
	}
}

// HandlePull обрабатывает GET /api/v1/sync/{table}?since=cursor
// Возвращает строки таблицы, изменённые после курсора
func (h *SyncHandler) HandlePull(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, ok := GetUserID(ctx)
	if !ok {
		h.logger.Error("User ID not found in context")
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing identity")
		return
	}

	table := r.PathValue("table")
	if table == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "missing table")
		return
	}

	var since int64
	if sinceStr := r.URL.Query().Get("since"); sinceStr != "" {
		var err error
		since, err = strconv.ParseInt(sinceStr, 10, 64)
		if err != nil {
			h.logger.Warn("Invalid since parameter", "since", sinceStr, "error", err)
			writeError(w, http.StatusBadRequest, "bad_request", "invalid since parameter")
			return
		}
	}

	rows, err := h.storage.GetRowsSince(ctx, table, userID, since)
	if err != nil {
		h.logger.Error("Failed to get rows", "error", err, "table", table, "user_id", userID)
		writeError(w, http.StatusInternalServerError, "internal", "internal server error")
		return
	}

	resp := api.PullResponse{
		Rows:       make([]api.Row, 0, len(rows)),
		ServerTime: h.nowFunc().UnixMilli(),
	}
	for _, row := range rows {
		resp.Rows = append(resp.Rows, *row)
	}

	writeJSON(w, h.logger, http.StatusOK, resp)

	h.logger.Info("Pull completed",
		"table", table,
		"user_id", userID,
		"since", since,
		"rows", len(resp.Rows))
}

// HandlePush обрабатывает POST /api/v1/sync/{table}
// Принимает коалесцированные изменения и возвращает итоговые строки
func (h *SyncHandler) HandlePush(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, ok := GetUserID(ctx)
	if !ok {
		h.logger.Error("User ID not found in context")
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing identity")
		return
	}

	table := r.PathValue("table")
	if table == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "missing table")
		return
	}

	var req api.PushRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("Failed to decode push request", "error", err)
		writeError(w, http.StatusBadRequest, "bad_request", "invalid request body")
		return
	}

	serverTime := h.nowFunc().UnixMilli()
	resp := api.PushResponse{
		Rows:       make([]api.Row, 0, len(req.Changes)),
		ServerTime: serverTime,
	}

	for _, change := range req.Changes {
		if change.EntityID == "" {
			writeError(w, http.StatusBadRequest, "bad_request", "change without entity_id")
			return
		}

		row, err := h.storage.ApplyChange(ctx, table, userID, change, serverTime)
		if err != nil {
			h.logger.Error("Failed to apply change",
				"error", err,
				"table", table,
				"entity_id", change.EntityID)
			writeError(w, http.StatusInternalServerError, "internal", "internal server error")
			return
		}

		resp.Rows = append(resp.Rows, *row)
	}

	writeJSON(w, h.logger, http.StatusOK, resp)

	h.logger.Info("Push completed",
		"table", table,
		"user_id", userID,
		"changes", len(req.Changes))
}

// writeJSON пишет JSON-ответ с указанным статусом
func writeJSON(w http.ResponseWriter, logger *slog.Logger, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Error("Failed to encode response", "error", err)
	}
}

// writeError пишет стандартное тело ошибки
func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(api.ErrorResponse{Error: code, Message: message})
}
