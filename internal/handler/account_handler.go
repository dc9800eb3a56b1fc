package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/hitoshi/localgov/internal/middleware"
	"github.com/hitoshi/localgov/internal/model"
	"github.com/hitoshi/localgov/internal/session"
)

// AccountServiceInterface はアカウントAPIが必要とするサービスインターフェース。
// user.Serviceが実装する。
type AccountServiceInterface interface {
	Profile(ctx context.Context, accessToken string) (*model.User, error)
	DeleteAccount(ctx context.Context, userID string) error
	UpdateProfile(ctx context.Context, accessToken, userID, name string) (*model.User, error)
	ChangePassword(ctx context.Context, accessToken, userID, password, confirm string) error
}

// AccountHandler はプロフィールと退会のHTTPハンドラー。
type AccountHandler struct {
	service AccountServiceInterface
	cookie  session.CookieConfig
}

// NewAccountHandler はAccountHandlerを生成する。
func NewAccountHandler(service AccountServiceInterface, cookie session.CookieConfig) *AccountHandler {
	return &AccountHandler{
		service: service,
		cookie:  cookie,
	}
}

// userResponse はユーザー情報のAPIレスポンス。
type userResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// updateProfileRequest はプロフィール更新リクエストのボディ。
type updateProfileRequest struct {
	Name string `json:"name"`
}

// Me は現在のログインユーザー情報を返す。
// GET /api/me
func (h *AccountHandler) Me(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	user, err := h.service.Profile(r.Context(), p.AccessToken)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(user))
}

// UpdateProfile は表示名を更新する。
// PUT /api/profile
func (h *AccountHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	var req updateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, newInvalidRequestError())
		return
	}

	user, err := h.service.UpdateProfile(r.Context(), p.AccessToken, p.UserID, req.Name)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(user))
}

// DeleteAccount はユーザーの退会処理を行う。
// トークンをIdPで確認したうえで、履歴・ブックマークとIdPのアカウントを削除し、
// セッションCookieをクリアする。
// DELETE /api/delete-account
func (h *AccountHandler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	userID, err := verifiedUserID(r.Context(), h.service, p.AccessToken)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	if err := h.service.DeleteAccount(r.Context(), userID); err != nil {
		handleServiceError(w, err)
		return
	}

	session.ClearCookies(w, h.cookie)
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// verifiedUserID はアクセストークンをIdPに問い合わせ、現在有効なユーザーのIDを返す。
// ローカル検証を通ったトークンでもサインアウト済みであれば拒否される。
func verifiedUserID(ctx context.Context, service AccountServiceInterface, accessToken string) (string, error) {
	if accessToken == "" {
		return "", model.NewUnauthorizedError()
	}
	user, err := service.Profile(ctx, accessToken)
	if err != nil {
		return "", err
	}
	return user.ID, nil
}

func toUserResponse(u *model.User) userResponse {
	return userResponse{
		ID:    u.ID,
		Email: u.Email,
		Name:  u.Name,
	}
}
