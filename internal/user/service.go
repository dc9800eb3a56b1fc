// Package user はアカウント管理のドメインロジックを提供する。
package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/hitoshi/localgov/internal/identity"
	"github.com/hitoshi/localgov/internal/model"
	"github.com/hitoshi/localgov/internal/session"
)

// MinPasswordLength はパスワードの最小文字数。
const MinPasswordLength = 6

// NameMaxLength は表示名の最大文字数。
const NameMaxLength = 100

// AccountProvider はIdP側のアカウント操作インターフェース。
// identity.Clientが実装する。
type AccountProvider interface {
	GetUser(ctx context.Context, accessToken string) (*model.User, error)
	UpdateUser(ctx context.Context, accessToken string, update identity.UserUpdate) (*model.User, error)
	AdminDeleteUser(ctx context.Context, userID string) error
}

// HistoryDeleter は検索履歴の一括削除インターフェース。
type HistoryDeleter interface {
	DeleteByUserID(ctx context.Context, userID string) (int64, error)
}

// BookmarkDeleter はブックマークの一括削除インターフェース。
type BookmarkDeleter interface {
	DeleteByUserID(ctx context.Context, userID string) (int64, error)
}

// Service はアカウント管理のサービス層。
// 退会処理とプロフィール・パスワード更新のビジネスロジックを提供する。
type Service struct {
	provider        AccountProvider
	historyDeleter  HistoryDeleter
	bookmarkDeleter BookmarkDeleter
	publisher       session.Publisher
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	provider AccountProvider,
	historyDeleter HistoryDeleter,
	bookmarkDeleter BookmarkDeleter,
	publisher session.Publisher,
) *Service {
	return &Service{
		provider:        provider,
		historyDeleter:  historyDeleter,
		bookmarkDeleter: bookmarkDeleter,
		publisher:       publisher,
	}
}

// Profile はアクセストークンに対応するユーザー情報をIdPから取得する。
func (s *Service) Profile(ctx context.Context, accessToken string) (*model.User, error) {
	user, err := s.provider.GetUser(ctx, accessToken)
	if err != nil {
		if errors.Is(err, identity.ErrUnauthorized) {
			return nil, model.NewUnauthorizedError()
		}
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	return user, nil
}

// DeleteAccount はユーザーの退会処理を実行する。
// 削除順序: search_history → bookmarks → IdPのアカウント
// アプリ側のデータを先に消すことで、IdP側の削除に失敗しても
// 再実行で完了できる。
func (s *Service) DeleteAccount(ctx context.Context, userID string) error {
	if userID == "" {
		return model.NewUnauthorizedError()
	}

	slog.Info("退会処理を開始します",
		slog.String("user_id", userID),
	)

	// 1. 検索履歴を削除
	if s.historyDeleter != nil {
		n, err := s.historyDeleter.DeleteByUserID(ctx, userID)
		if err != nil {
			return fmt.Errorf("検索履歴の削除に失敗しました: %w", err)
		}
		slog.Info("検索履歴を削除しました",
			slog.String("user_id", userID),
			slog.Int64("count", n),
		)
	}

	// 2. ブックマークを削除
	if s.bookmarkDeleter != nil {
		n, err := s.bookmarkDeleter.DeleteByUserID(ctx, userID)
		if err != nil {
			return fmt.Errorf("ブックマークの削除に失敗しました: %w", err)
		}
		slog.Info("ブックマークを削除しました",
			slog.String("user_id", userID),
			slog.Int64("count", n),
		)
	}

	// 3. IdPのアカウントを削除
	if err := s.provider.AdminDeleteUser(ctx, userID); err != nil {
		var perr *identity.ProviderError
		if errors.As(err, &perr) && perr.StatusCode == 404 {
			return model.NewUserNotFoundError()
		}
		return fmt.Errorf("アカウントの削除に失敗しました: %w", err)
	}

	if s.publisher != nil {
		s.publisher.Publish(userID, session.EventUserDeleted)
	}

	slog.Info("退会処理が完了しました",
		slog.String("user_id", userID),
	)

	return nil
}

// UpdateProfile は表示名を更新する。
// 前後の空白は取り除き、空文字列は名前の削除として扱う。
func (s *Service) UpdateProfile(ctx context.Context, accessToken, userID, name string) (*model.User, error) {
	name = strings.TrimSpace(name)
	if utf8.RuneCountInString(name) > NameMaxLength {
		return nil, model.NewInvalidNameError(NameMaxLength)
	}

	user, err := s.provider.UpdateUser(ctx, accessToken, identity.UserUpdate{Name: &name})
	if err != nil {
		if errors.Is(err, identity.ErrUnauthorized) {
			return nil, model.NewUnauthorizedError()
		}
		return nil, fmt.Errorf("プロフィールの更新に失敗しました: %w", err)
	}

	if s.publisher != nil {
		s.publisher.Publish(userID, session.EventUserUpdated)
	}
	return user, nil
}

// ChangePassword はパスワードを更新する。
// 確認用の入力と一致し、最小文字数を満たす必要がある。
func (s *Service) ChangePassword(ctx context.Context, accessToken, userID, password, confirm string) error {
	if err := ValidatePassword(password, confirm); err != nil {
		return err
	}

	if _, err := s.provider.UpdateUser(ctx, accessToken, identity.UserUpdate{Password: &password}); err != nil {
		if errors.Is(err, identity.ErrUnauthorized) {
			return model.NewUnauthorizedError()
		}
		var perr *identity.ProviderError
		if errors.As(err, &perr) && perr.StatusCode == 422 {
			return model.NewInvalidPasswordError(perr.Message)
		}
		return fmt.Errorf("パスワードの更新に失敗しました: %w", err)
	}

	if s.publisher != nil {
		s.publisher.Publish(userID, session.EventUserUpdated)
	}
	return nil
}

// ValidatePassword はパスワードの一致と最小文字数を検証する。
func ValidatePassword(password, confirm string) error {
	if password != confirm {
		return model.NewInvalidPasswordError("Passwords do not match")
	}
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return model.NewInvalidPasswordError(
			fmt.Sprintf("Password must be at least %d characters long", MinPasswordLength),
		)
	}
	return nil
}
