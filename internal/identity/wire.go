package identity

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/hitoshi/localgov/internal/model"
)

// sessionResponse はトークン発行系エンドポイントのレスポンス。
type sessionResponse struct {
	AccessToken  string       `json:"access_token"`
	TokenType    string       `json:"token_type"`
	ExpiresIn    int64        `json:"expires_in"`
	ExpiresAt    int64        `json:"expires_at"`
	RefreshToken string       `json:"refresh_token"`
	User         userResponse `json:"user"`
}

// userResponse はIdPのユーザーオブジェクト。必要な項目のみ受け取る。
type userResponse struct {
	ID           string         `json:"id"`
	Email        string         `json:"email"`
	CreatedAt    time.Time      `json:"created_at"`
	UserMetadata map[string]any `json:"user_metadata"`
}

// errorResponse はIdPのエラーレスポンス。
// エンドポイントやバージョンによってフィールド名が異なるため全て受け取る。
type errorResponse struct {
	ErrorCode        string `json:"error_code"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	Msg              string `json:"msg"`
	Message          string `json:"message"`
}

func (r *sessionResponse) toSession(now time.Time) *model.Session {
	s := &model.Session{
		AccessToken:  r.AccessToken,
		RefreshToken: r.RefreshToken,
		User:         r.User.toUser(),
	}
	switch {
	case r.ExpiresAt > 0:
		s.ExpiresAt = time.Unix(r.ExpiresAt, 0)
	case r.ExpiresIn > 0:
		s.ExpiresAt = now.Add(time.Duration(r.ExpiresIn) * time.Second)
	}
	return s
}

func (r *userResponse) toUser() model.User {
	u := model.User{
		ID:        r.ID,
		Email:     r.Email,
		CreatedAt: r.CreatedAt,
	}
	if name, ok := r.UserMetadata["name"].(string); ok {
		u.Name = name
	}
	return u
}

func parseProviderError(status int, body []byte) *ProviderError {
	perr := &ProviderError{StatusCode: status, Message: http.StatusText(status)}

	var r errorResponse
	if err := json.Unmarshal(body, &r); err != nil {
		return perr
	}

	perr.Code = r.ErrorCode
	if perr.Code == "" {
		perr.Code = r.Error
	}
	for _, m := range []string{r.Msg, r.ErrorDescription, r.Message, r.Error} {
		if m != "" {
			perr.Message = m
			break
		}
	}
	return perr
}
