package handler

import (
	"net/http"

	"github.com/hitoshi/localgov/internal/middleware"
	"github.com/hitoshi/localgov/internal/web"
)

// PageRenderer はサーバー描画ページを出力するインターフェース。
// web.Rendererが実装する。
type PageRenderer interface {
	Render(w http.ResponseWriter, status int, name string, page web.Page)
}

// PageHandler は紹介・規約ページのHTTPハンドラー。
type PageHandler struct {
	renderer PageRenderer
}

// NewPageHandler はPageHandlerを生成する。
func NewPageHandler(renderer PageRenderer) *PageHandler {
	return &PageHandler{renderer: renderer}
}

// Home はトップページを表示する。
// GET /
func (h *PageHandler) Home(w http.ResponseWriter, r *http.Request) {
	h.renderer.Render(w, http.StatusOK, web.PageHome, newPage(r, "", nil))
}

// About はサービス紹介ページを表示する。
// GET /about
func (h *PageHandler) About(w http.ResponseWriter, r *http.Request) {
	h.renderer.Render(w, http.StatusOK, web.PageAbout, newPage(r, "About", nil))
}

// Privacy はプライバシーポリシーを表示する。
// GET /privacy
func (h *PageHandler) Privacy(w http.ResponseWriter, r *http.Request) {
	h.renderer.Render(w, http.StatusOK, web.PagePrivacy, newPage(r, "Privacy Policy", nil))
}

// Terms は利用規約を表示する。
// GET /terms
func (h *PageHandler) Terms(w http.ResponseWriter, r *http.Request) {
	h.renderer.Render(w, http.StatusOK, web.PageTerms, newPage(r, "Terms of Service", nil))
}

// NotFound は存在しないページへのアクセスに404ページを表示する。
// APIパスにはJSONで応答する。
func (h *PageHandler) NotFound(w http.ResponseWriter, r *http.Request) {
	if isAPIRequest(r) {
		writeAPIErrorResponse(w, http.StatusNotFound, newNotFoundError())
		return
	}
	h.renderer.Render(w, http.StatusNotFound, web.PageError, newPage(r, "Page not found", nil))
}

// InternalError は予期しないエラーの発生時にエラーページを表示する。
func (h *PageHandler) InternalError(w http.ResponseWriter, r *http.Request) {
	h.renderer.Render(w, http.StatusInternalServerError, web.PageError, newPage(r, "Something went wrong", nil))
}

// newPage はリクエストコンテキストのユーザーとCSRFトークンを載せたPageを生成する。
func newPage(r *http.Request, title string, data any) web.Page {
	p, _ := middleware.PrincipalFromContext(r.Context())
	return web.Page{
		Title:     title,
		Principal: p,
		CSRFToken: middleware.CSRFTokenFromContext(r.Context()),
		Data:      data,
	}
}
