package handler

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/hitoshi/localgov/internal/middleware"
	"github.com/hitoshi/localgov/internal/model"
	"github.com/hitoshi/localgov/internal/session"
	"github.com/hitoshi/localgov/internal/web"
)

// SettingsHandler はアカウント設定ページのHTTPハンドラー。
type SettingsHandler struct {
	service  AccountServiceInterface
	renderer PageRenderer
	cookie   session.CookieConfig
}

// NewSettingsHandler はSettingsHandlerを生成する。
func NewSettingsHandler(service AccountServiceInterface, renderer PageRenderer, cookie session.CookieConfig) *SettingsHandler {
	return &SettingsHandler{
		service:  service,
		renderer: renderer,
		cookie:   cookie,
	}
}

// Show はアカウント設定ページを表示する。
// GET /settings
func (h *SettingsHandler) Show(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, h.profileData(r), "", "")
}

// UpdateProfile は表示名を更新する。
// POST /settings/profile
func (h *SettingsHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		http.Redirect(w, r, session.SignInPath, http.StatusSeeOther)
		return
	}

	u, err := h.service.UpdateProfile(r.Context(), p.AccessToken, p.UserID, r.PostFormValue("name"))
	if err != nil {
		data := h.profileData(r)
		data.Name = r.PostFormValue("name")
		h.render(w, r, statusForError(err), data, "", userMessage(err))
		return
	}

	h.render(w, r, http.StatusOK, &web.SettingsData{Email: u.Email, Name: u.Name}, "Profile updated.", "")
}

// ChangePassword はパスワードを変更する。
// POST /settings/password
func (h *SettingsHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		http.Redirect(w, r, session.SignInPath, http.StatusSeeOther)
		return
	}

	err := h.service.ChangePassword(r.Context(), p.AccessToken, p.UserID,
		r.PostFormValue("password"), r.PostFormValue("confirm_password"))
	if err != nil {
		h.render(w, r, statusForError(err), h.profileData(r), "", userMessage(err))
		return
	}

	h.render(w, r, http.StatusOK, h.profileData(r), "Password updated.", "")
}

// DeleteAccount は確認チェックを受けて退会処理を行う。
// POST /settings/delete
func (h *SettingsHandler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		http.Redirect(w, r, session.SignInPath, http.StatusSeeOther)
		return
	}

	if r.PostFormValue("confirm") != "yes" {
		h.render(w, r, http.StatusBadRequest, h.profileData(r), "",
			"Please confirm that you want to delete your account.")
		return
	}

	userID, err := verifiedUserID(r.Context(), h.service, p.AccessToken)
	if err == nil {
		err = h.service.DeleteAccount(r.Context(), userID)
	}
	if err != nil {
		h.render(w, r, statusForError(err), h.profileData(r), "", userMessage(err))
		return
	}

	session.ClearCookies(w, h.cookie)
	w.Header().Set("Cache-Control", "no-store")
	http.Redirect(w, r,
		session.SignInPath+"?message="+url.QueryEscape("Your account has been deleted."),
		http.StatusSeeOther)
}

// profileData はIdPから最新のプロフィールを取得する。
// 取得に失敗した場合はセッションの内容で代替する。
func (h *SettingsHandler) profileData(r *http.Request) *web.SettingsData {
	p, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		return &web.SettingsData{}
	}

	data := &web.SettingsData{Email: p.Email, Name: p.Name}
	if u, err := h.service.Profile(r.Context(), p.AccessToken); err == nil {
		data.Email = u.Email
		data.Name = u.Name
	}
	return data
}

func (h *SettingsHandler) render(w http.ResponseWriter, r *http.Request, status int, data *web.SettingsData, flash, errMsg string) {
	page := newPage(r, "Settings", data)
	page.WatchSession = true
	page.Flash = flash
	page.Error = errMsg
	w.Header().Set("Cache-Control", "no-store")
	h.renderer.Render(w, status, web.PageSettings, page)
}

// statusForError はフォーム再表示時のHTTPステータスを決める。
func statusForError(err error) int {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		return mapAPIErrorToHTTPStatus(apiErr)
	}
	return http.StatusInternalServerError
}
