package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/localgov/internal/dashboard"
	"github.com/hitoshi/localgov/internal/middleware"
	"github.com/hitoshi/localgov/internal/query"
	"github.com/hitoshi/localgov/internal/session"
	"github.com/hitoshi/localgov/internal/web"
)

// DashboardHandler はダッシュボードページのHTTPハンドラー。
// リクエストごとにdashboard.ViewModelを生成し、操作結果を描画する。
type DashboardHandler struct {
	answerer     query.Answerer
	store        dashboard.LibraryStore
	historyLimit int
	renderer     PageRenderer
}

// NewDashboardHandler はDashboardHandlerを生成する。
func NewDashboardHandler(answerer query.Answerer, store dashboard.LibraryStore, historyLimit int, renderer PageRenderer) *DashboardHandler {
	return &DashboardHandler{
		answerer:     answerer,
		store:        store,
		historyLimit: historyLimit,
		renderer:     renderer,
	}
}

// Show はダッシュボードを表示する。
// GET /dashboard
func (h *DashboardHandler) Show(w http.ResponseWriter, r *http.Request) {
	vm := h.load(r)
	vm.Location = r.URL.Query().Get("location")
	h.render(w, r, vm)
}

// Search は質問を送信し、回答と更新後の履歴を表示する。
// POST /dashboard/search
func (h *DashboardHandler) Search(w http.ResponseWriter, r *http.Request) {
	vm := h.load(r)
	location := r.PostFormValue("location")
	question := r.PostFormValue("query")

	vm.SubmitQuery(r.Context(), location, question)
	if vm.Question == "" {
		// 空入力の場合は入力値を保持して再表示する
		vm.Location = location
		vm.Question = question
	}
	h.render(w, r, vm)
}

// SaveBookmark はフォームで持ち回った回答をブックマークに保存する。
// POST /dashboard/bookmark
func (h *DashboardHandler) SaveBookmark(w http.ResponseWriter, r *http.Request) {
	vm := h.load(r)
	vm.Location = r.PostFormValue("location")
	vm.Question = r.PostFormValue("query")
	vm.Answer = r.PostFormValue("answer")

	vm.SaveBookmark(r.Context())
	h.render(w, r, vm)
}

// DeleteHistory は履歴を1件削除する。
// POST /dashboard/history/{id}/delete
func (h *DashboardHandler) DeleteHistory(w http.ResponseWriter, r *http.Request) {
	vm := h.load(r)
	vm.RemoveHistoryItem(r.Context(), chi.URLParam(r, "id"))
	h.redirectOrRender(w, r, vm)
}

// DeleteBookmark はブックマークを1件削除する。
// POST /dashboard/bookmarks/{id}/delete
func (h *DashboardHandler) DeleteBookmark(w http.ResponseWriter, r *http.Request) {
	vm := h.load(r)
	vm.RemoveBookmark(r.Context(), chi.URLParam(r, "id"))
	h.redirectOrRender(w, r, vm)
}

func (h *DashboardHandler) load(r *http.Request) *dashboard.ViewModel {
	userID, _ := middleware.UserIDFromContext(r.Context())
	vm := dashboard.NewViewModel(userID, h.answerer, h.store, h.historyLimit)
	vm.Load(r.Context())
	return vm
}

// redirectOrRender は成功時はダッシュボードへリダイレクトし、失敗時はメッセージ付きで再表示する。
func (h *DashboardHandler) redirectOrRender(w http.ResponseWriter, r *http.Request, vm *dashboard.ViewModel) {
	if vm.Message != "" {
		h.render(w, r, vm)
		return
	}
	http.Redirect(w, r, session.DashboardPath, http.StatusSeeOther)
}

func (h *DashboardHandler) render(w http.ResponseWriter, r *http.Request, vm *dashboard.ViewModel) {
	data := &web.DashboardData{
		Location:    vm.Location,
		Question:    vm.Question,
		Answer:      vm.Answer,
		Suggestions: dashboard.Suggest(vm.Location),
		History:     vm.History,
		Bookmarks:   vm.Bookmarks,
	}

	page := newPage(r, "Dashboard", data)
	page.WatchSession = true
	if vm.Message == dashboard.BookmarkSavedMessage {
		page.Flash = vm.Message
	} else {
		page.Error = vm.Message
	}
	w.Header().Set("Cache-Control", "no-store")
	h.renderer.Render(w, http.StatusOK, web.PageDashboard, page)
}
