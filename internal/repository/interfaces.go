// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"errors"

	"github.com/hitoshi/localgov/internal/model"
)

// ErrNotFound は所有者スコープ内に対象行が存在しないことを示す。
var ErrNotFound = errors.New("record not found")

// SearchHistoryRepository は質問履歴の永続化インターフェース。
// 行は追加と削除のみで、更新は行わない。全操作はuser_idでスコープされる。
type SearchHistoryRepository interface {
	// Create は履歴を1件追加する。IDとCreatedAtは呼び出し側で設定する。
	Create(ctx context.Context, record *model.SearchHistoryRecord) error

	// ListRecentByUserID はユーザーの履歴をcreated_at降順で最大limit件返す。
	ListRecentByUserID(ctx context.Context, userID string, limit int) ([]*model.SearchHistoryRecord, error)

	// DeleteByIDAndUserID は所有者の履歴を1件削除する。
	// 該当行がない場合はErrNotFoundを返す。
	DeleteByIDAndUserID(ctx context.Context, id, userID string) error

	// DeleteByUserID はユーザーの全履歴を削除し、削除件数を返す。
	DeleteByUserID(ctx context.Context, userID string) (int64, error)
}

// BookmarkRepository はブックマークの永続化インターフェース。
type BookmarkRepository interface {
	// Create はブックマークを1件追加する。
	Create(ctx context.Context, bookmark *model.Bookmark) error

	// ListByUserID はユーザーのブックマークをcreated_at降順で最大limit件返す。
	ListByUserID(ctx context.Context, userID string, limit int) ([]*model.Bookmark, error)

	// DeleteByIDAndUserID は所有者のブックマークを1件削除する。
	// 該当行がない場合はErrNotFoundを返す。
	DeleteByIDAndUserID(ctx context.Context, id, userID string) error

	// DeleteByUserID はユーザーの全ブックマークを削除し、削除件数を返す。
	DeleteByUserID(ctx context.Context, userID string) (int64, error)
}
