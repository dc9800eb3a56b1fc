package user

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/hitoshi/localgov/internal/identity"
	"github.com/hitoshi/localgov/internal/model"
	"github.com/hitoshi/localgov/internal/session"
)

// --- モック ---

type mockProvider struct {
	getUserFn         func(ctx context.Context, accessToken string) (*model.User, error)
	updateUserFn      func(ctx context.Context, accessToken string, update identity.UserUpdate) (*model.User, error)
	adminDeleteUserFn func(ctx context.Context, userID string) error
}

func (m *mockProvider) GetUser(ctx context.Context, accessToken string) (*model.User, error) {
	return m.getUserFn(ctx, accessToken)
}

func (m *mockProvider) UpdateUser(ctx context.Context, accessToken string, update identity.UserUpdate) (*model.User, error) {
	return m.updateUserFn(ctx, accessToken, update)
}

func (m *mockProvider) AdminDeleteUser(ctx context.Context, userID string) error {
	return m.adminDeleteUserFn(ctx, userID)
}

type mockDeleter struct {
	deleteByUserIDFn func(ctx context.Context, userID string) (int64, error)
}

func (m *mockDeleter) DeleteByUserID(ctx context.Context, userID string) (int64, error) {
	return m.deleteByUserIDFn(ctx, userID)
}

type mockPublisher struct {
	events []session.Event
	users  []string
}

func (m *mockPublisher) Publish(userID string, event session.Event) {
	m.users = append(m.users, userID)
	m.events = append(m.events, event)
}

// --- テスト ---

func TestDeleteAccount(t *testing.T) {
	t.Run("履歴とブックマークを削除してからIdPのアカウントを削除する", func(t *testing.T) {
		var order []string
		historyDeleter := &mockDeleter{
			deleteByUserIDFn: func(ctx context.Context, userID string) (int64, error) {
				order = append(order, "history")
				return 3, nil
			},
		}
		bookmarkDeleter := &mockDeleter{
			deleteByUserIDFn: func(ctx context.Context, userID string) (int64, error) {
				order = append(order, "bookmarks")
				return 1, nil
			},
		}
		provider := &mockProvider{
			adminDeleteUserFn: func(ctx context.Context, userID string) error {
				if userID != "user-1" {
					t.Errorf("userID = %q, want %q", userID, "user-1")
				}
				order = append(order, "provider")
				return nil
			},
		}
		pub := &mockPublisher{}
		svc := NewService(provider, historyDeleter, bookmarkDeleter, pub)

		if err := svc.DeleteAccount(context.Background(), "user-1"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		want := "history,bookmarks,provider"
		if got := strings.Join(order, ","); got != want {
			t.Errorf("order = %q, want %q", got, want)
		}
		if len(pub.events) != 1 || pub.events[0] != session.EventUserDeleted || pub.users[0] != "user-1" {
			t.Errorf("expected one USER_DELETED event for user-1, got %v %v", pub.users, pub.events)
		}
	})

	t.Run("ユーザーIDが空の場合は未認証エラー", func(t *testing.T) {
		svc := NewService(&mockProvider{}, nil, nil, nil)

		err := svc.DeleteAccount(context.Background(), "")

		var apiErr *model.APIError
		if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeUnauthorized {
			t.Errorf("expected UNAUTHORIZED, got %v", err)
		}
	})

	t.Run("履歴の削除に失敗した場合はIdPを呼ばない", func(t *testing.T) {
		historyDeleter := &mockDeleter{
			deleteByUserIDFn: func(ctx context.Context, userID string) (int64, error) {
				return 0, errors.New("db error")
			},
		}
		provider := &mockProvider{
			adminDeleteUserFn: func(ctx context.Context, userID string) error {
				t.Error("AdminDeleteUser should not be called")
				return nil
			},
		}
		pub := &mockPublisher{}
		svc := NewService(provider, historyDeleter, nil, pub)

		if err := svc.DeleteAccount(context.Background(), "user-1"); err == nil {
			t.Fatal("expected error")
		}
		if len(pub.events) != 0 {
			t.Errorf("no event should be published on failure, got %v", pub.events)
		}
	})

	t.Run("IdPの削除失敗はエラーを返しイベントを発行しない", func(t *testing.T) {
		provider := &mockProvider{
			adminDeleteUserFn: func(ctx context.Context, userID string) error {
				return &identity.ProviderError{StatusCode: 500, Message: "boom"}
			},
		}
		pub := &mockPublisher{}
		svc := NewService(provider, nil, nil, pub)

		err := svc.DeleteAccount(context.Background(), "user-1")

		var perr *identity.ProviderError
		if !errors.As(err, &perr) {
			t.Errorf("expected wrapped ProviderError, got %v", err)
		}
		if len(pub.events) != 0 {
			t.Errorf("no event should be published on failure, got %v", pub.events)
		}
	})

	t.Run("IdPにユーザーが存在しない場合はUSER_NOT_FOUND", func(t *testing.T) {
		provider := &mockProvider{
			adminDeleteUserFn: func(ctx context.Context, userID string) error {
				return &identity.ProviderError{StatusCode: 404, Message: "User not found"}
			},
		}
		svc := NewService(provider, nil, nil, nil)

		err := svc.DeleteAccount(context.Background(), "user-1")

		var apiErr *model.APIError
		if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeUserNotFound {
			t.Errorf("expected USER_NOT_FOUND, got %v", err)
		}
	})
}

func TestProfile(t *testing.T) {
	t.Run("IdPのユーザー情報を返す", func(t *testing.T) {
		provider := &mockProvider{
			getUserFn: func(ctx context.Context, accessToken string) (*model.User, error) {
				return &model.User{ID: "user-1", Email: "a@example.com", Name: "Asha"}, nil
			},
		}
		svc := NewService(provider, nil, nil, nil)

		user, err := svc.Profile(context.Background(), "token")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if user.Name != "Asha" {
			t.Errorf("Name = %q, want %q", user.Name, "Asha")
		}
	})

	t.Run("トークンが拒否された場合は未認証エラー", func(t *testing.T) {
		provider := &mockProvider{
			getUserFn: func(ctx context.Context, accessToken string) (*model.User, error) {
				return nil, identity.ErrUnauthorized
			},
		}
		svc := NewService(provider, nil, nil, nil)

		_, err := svc.Profile(context.Background(), "token")

		var apiErr *model.APIError
		if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeUnauthorized {
			t.Errorf("expected UNAUTHORIZED, got %v", err)
		}
	})
}

func TestUpdateProfile(t *testing.T) {
	t.Run("前後の空白を除いた名前で更新しUSER_UPDATEDを発行する", func(t *testing.T) {
		var gotName string
		provider := &mockProvider{
			updateUserFn: func(ctx context.Context, accessToken string, update identity.UserUpdate) (*model.User, error) {
				if update.Name == nil {
					t.Fatal("Name should be set")
				}
				if update.Password != nil {
					t.Error("Password should not be set")
				}
				gotName = *update.Name
				return &model.User{ID: "user-1", Name: gotName}, nil
			},
		}
		pub := &mockPublisher{}
		svc := NewService(provider, nil, nil, pub)

		user, err := svc.UpdateProfile(context.Background(), "token", "user-1", "  Asha Rao  ")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if gotName != "Asha Rao" || user.Name != "Asha Rao" {
			t.Errorf("name = %q, want %q", gotName, "Asha Rao")
		}
		if len(pub.events) != 1 || pub.events[0] != session.EventUserUpdated {
			t.Errorf("expected USER_UPDATED, got %v", pub.events)
		}
	})

	t.Run("長すぎる名前はIdPを呼ばずにエラー", func(t *testing.T) {
		provider := &mockProvider{
			updateUserFn: func(ctx context.Context, accessToken string, update identity.UserUpdate) (*model.User, error) {
				t.Error("UpdateUser should not be called")
				return nil, nil
			},
		}
		svc := NewService(provider, nil, nil, nil)

		_, err := svc.UpdateProfile(context.Background(), "token", "user-1", strings.Repeat("あ", NameMaxLength+1))

		var apiErr *model.APIError
		if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeInvalidName {
			t.Errorf("expected INVALID_NAME, got %v", err)
		}
	})
}

func TestChangePassword(t *testing.T) {
	t.Run("一致する6文字以上のパスワードで更新する", func(t *testing.T) {
		var gotPassword string
		provider := &mockProvider{
			updateUserFn: func(ctx context.Context, accessToken string, update identity.UserUpdate) (*model.User, error) {
				gotPassword = *update.Password
				return &model.User{ID: "user-1"}, nil
			},
		}
		svc := NewService(provider, nil, nil, nil)

		if err := svc.ChangePassword(context.Background(), "token", "user-1", "secret1", "secret1"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if gotPassword != "secret1" {
			t.Errorf("password = %q, want %q", gotPassword, "secret1")
		}
	})

	t.Run("IdPが弱いパスワードを拒否した場合はINVALID_PASSWORD", func(t *testing.T) {
		provider := &mockProvider{
			updateUserFn: func(ctx context.Context, accessToken string, update identity.UserUpdate) (*model.User, error) {
				return nil, &identity.ProviderError{StatusCode: 422, Message: "Password is too weak"}
			},
		}
		svc := NewService(provider, nil, nil, nil)

		err := svc.ChangePassword(context.Background(), "token", "user-1", "secret1", "secret1")

		var apiErr *model.APIError
		if !errors.As(err, &apiErr) || apiErr.Message != "Password is too weak" {
			t.Errorf("expected provider message, got %v", err)
		}
	})
}

func TestValidatePassword(t *testing.T) {
	tests := []struct {
		name     string
		password string
		confirm  string
		wantErr  string
	}{
		{"有効", "secret", "secret", ""},
		{"不一致", "secret1", "secret2", "Passwords do not match"},
		{"短すぎる", "abc", "abc", "Password must be at least 6 characters long"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePassword(tt.password, tt.confirm)
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			var apiErr *model.APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("expected APIError, got %v", err)
			}
			if apiErr.Message != tt.wantErr {
				t.Errorf("Message = %q, want %q", apiErr.Message, tt.wantErr)
			}
		})
	}
}
