package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/localgov/internal/dashboard"
	"github.com/hitoshi/localgov/internal/middleware"
	"github.com/hitoshi/localgov/internal/model"
)

// LibraryServiceInterface は履歴・ブックマークAPIが必要とするサービスインターフェース。
// history.Serviceが実装する。
type LibraryServiceInterface interface {
	ListHistory(ctx context.Context, userID string) ([]*model.SearchHistoryRecord, error)
	DeleteHistory(ctx context.Context, userID, id string) error
	SaveBookmark(ctx context.Context, userID, query, location, content string) (*model.Bookmark, error)
	ListBookmarks(ctx context.Context, userID string) ([]*model.Bookmark, error)
	DeleteBookmark(ctx context.Context, userID, id string) error
}

// LibraryHandler は履歴・ブックマークのHTTPハンドラー。
type LibraryHandler struct {
	service LibraryServiceInterface
}

// NewLibraryHandler はLibraryHandlerを生成する。
func NewLibraryHandler(service LibraryServiceInterface) *LibraryHandler {
	return &LibraryHandler{service: service}
}

// historyResponse は履歴1件のAPIレスポンス。
type historyResponse struct {
	ID        string    `json:"id"`
	Query     string    `json:"query"`
	Location  string    `json:"location"`
	CreatedAt time.Time `json:"created_at"`
}

// bookmarkResponse はブックマーク1件のAPIレスポンス。
type bookmarkResponse struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Query     string    `json:"query"`
	Location  string    `json:"location"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// saveBookmarkRequest はブックマーク保存リクエストのボディ。
type saveBookmarkRequest struct {
	Query    string `json:"query"`
	Location string `json:"location"`
	Content  string `json:"content"`
}

// ListHistory は最近の質問履歴を返す。
// GET /api/history
func (h *LibraryHandler) ListHistory(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	records, err := h.service.ListHistory(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := make([]historyResponse, 0, len(records))
	for _, rec := range records {
		resp = append(resp, toHistoryResponse(rec))
	}
	writeJSON(w, http.StatusOK, map[string]any{"history": resp})
}

// DeleteHistory は履歴を1件削除する。
// DELETE /api/history/{id}
func (h *LibraryHandler) DeleteHistory(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	if err := h.service.DeleteHistory(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListBookmarks はブックマーク一覧を返す。
// GET /api/bookmarks
func (h *LibraryHandler) ListBookmarks(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	bookmarks, err := h.service.ListBookmarks(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := make([]bookmarkResponse, 0, len(bookmarks))
	for _, b := range bookmarks {
		resp = append(resp, toBookmarkResponse(b))
	}
	writeJSON(w, http.StatusOK, map[string]any{"bookmarks": resp})
}

// SaveBookmark は回答をブックマークとして保存する。
// POST /api/bookmarks
func (h *LibraryHandler) SaveBookmark(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req saveBookmarkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, newInvalidRequestError())
		return
	}

	b, err := h.service.SaveBookmark(r.Context(), userID, req.Query, req.Location, req.Content)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toBookmarkResponse(b))
}

// DeleteBookmark はブックマークを1件削除する。
// DELETE /api/bookmarks/{id}
func (h *LibraryHandler) DeleteBookmark(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	if err := h.service.DeleteBookmark(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Places は地域名の入力補完候補を返す。
// GET /api/places?q=
func (h *LibraryHandler) Places(w http.ResponseWriter, r *http.Request) {
	places := dashboard.Suggest(r.URL.Query().Get("q"))
	if places == nil {
		places = []string{}
	}
	writeJSON(w, http.StatusOK, map[string][]string{"places": places})
}

// requireUserID はコンテキストからユーザーIDを取得する。
// 取得できない場合は401を書き込みfalseを返す。
func requireUserID(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return "", false
	}
	return userID, true
}

func toHistoryResponse(rec *model.SearchHistoryRecord) historyResponse {
	return historyResponse{
		ID:        rec.ID,
		Query:     rec.Query,
		Location:  rec.Location,
		CreatedAt: rec.CreatedAt,
	}
}

func toBookmarkResponse(b *model.Bookmark) bookmarkResponse {
	return bookmarkResponse{
		ID:        b.ID,
		Title:     b.Title,
		Query:     b.Query,
		Location:  b.Location,
		Content:   b.Content,
		CreatedAt: b.CreatedAt,
	}
}
