// Package history は質問履歴とブックマークのドメインロジックを提供する。
package history

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/hitoshi/localgov/internal/model"
	"github.com/hitoshi/localgov/internal/repository"
	"github.com/hitoshi/localgov/internal/security"
)

// TitleMaxLength はブックマークタイトルの最大文字数（省略記号を除く）。
const TitleMaxLength = 60

// Config は一覧の表示件数と保存内容の上限。
type Config struct {
	HistoryLimit     int
	BookmarkLimit    int
	ContentMaxLength int
}

// Service は履歴・ブックマークのサービス層。
// 全操作は呼び出し元ユーザーのIDでスコープされる。
type Service struct {
	historyRepo  repository.SearchHistoryRepository
	bookmarkRepo repository.BookmarkRepository
	sanitizer    security.TextSanitizerService
	cfg          Config
	now          func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	historyRepo repository.SearchHistoryRepository,
	bookmarkRepo repository.BookmarkRepository,
	sanitizer security.TextSanitizerService,
	cfg Config,
) *Service {
	return &Service{
		historyRepo:  historyRepo,
		bookmarkRepo: bookmarkRepo,
		sanitizer:    sanitizer,
		cfg:          cfg,
		now:          time.Now,
	}
}

// HistoryLimit は履歴の表示件数を返す。
func (s *Service) HistoryLimit() int {
	return s.cfg.HistoryLimit
}

// RecordSearch は質問の送信を履歴に1件追加し、追加した行を返す。
func (s *Service) RecordSearch(ctx context.Context, userID, query, location string) (*model.SearchHistoryRecord, error) {
	rec := &model.SearchHistoryRecord{
		ID:        uuid.New().String(),
		UserID:    userID,
		Query:     query,
		Location:  location,
		CreatedAt: s.now().UTC(),
	}
	if err := s.historyRepo.Create(ctx, rec); err != nil {
		return nil, fmt.Errorf("履歴の保存に失敗しました: %w", err)
	}
	return rec, nil
}

// ListHistory はユーザーの直近の履歴を新しい順に返す。
func (s *Service) ListHistory(ctx context.Context, userID string) ([]*model.SearchHistoryRecord, error) {
	records, err := s.historyRepo.ListRecentByUserID(ctx, userID, s.cfg.HistoryLimit)
	if err != nil {
		return nil, fmt.Errorf("履歴の取得に失敗しました: %w", err)
	}
	return records, nil
}

// DeleteHistory は所有者の履歴を1件削除する。
// 存在しない、または他ユーザーの行の場合はHISTORY_NOT_FOUNDを返す。
// UUIDとして解釈できないIDも同様に扱う。
func (s *Service) DeleteHistory(ctx context.Context, userID, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return model.NewHistoryNotFoundError(id)
	}
	if err := s.historyRepo.DeleteByIDAndUserID(ctx, id, userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.NewHistoryNotFoundError(id)
		}
		return fmt.Errorf("履歴の削除に失敗しました: %w", err)
	}
	return nil
}

// SaveBookmark は回答をブックマークとして保存し、保存した行を返す。
// 回答が空の場合はNO_ANSWERを返し、何も保存しない。
// 回答はプレーンテキスト化した上で上限文字数に切り詰める。
func (s *Service) SaveBookmark(ctx context.Context, userID, query, location, content string) (*model.Bookmark, error) {
	if strings.TrimSpace(content) == "" {
		return nil, model.NewNoAnswerError()
	}

	b := &model.Bookmark{
		ID:        uuid.New().String(),
		UserID:    userID,
		Title:     BookmarkTitle(query),
		Query:     query,
		Location:  location,
		Content:   TruncateRunes(s.sanitizer.Sanitize(content), s.cfg.ContentMaxLength),
		CreatedAt: s.now().UTC(),
	}
	if err := s.bookmarkRepo.Create(ctx, b); err != nil {
		return nil, fmt.Errorf("ブックマークの保存に失敗しました: %w", err)
	}

	slog.Info("ブックマークを保存しました",
		slog.String("user_id", userID),
		slog.String("bookmark_id", b.ID),
		slog.Int("content_length", utf8.RuneCountInString(b.Content)),
	)
	return b, nil
}

// ListBookmarks はユーザーのブックマークを新しい順に返す。
func (s *Service) ListBookmarks(ctx context.Context, userID string) ([]*model.Bookmark, error) {
	bookmarks, err := s.bookmarkRepo.ListByUserID(ctx, userID, s.cfg.BookmarkLimit)
	if err != nil {
		return nil, fmt.Errorf("ブックマークの取得に失敗しました: %w", err)
	}
	return bookmarks, nil
}

// DeleteBookmark は所有者のブックマークを1件削除する。
func (s *Service) DeleteBookmark(ctx context.Context, userID, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return model.NewBookmarkNotFoundError(id)
	}
	if err := s.bookmarkRepo.DeleteByIDAndUserID(ctx, id, userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.NewBookmarkNotFoundError(id)
		}
		return fmt.Errorf("ブックマークの削除に失敗しました: %w", err)
	}
	return nil
}

// BookmarkTitle は質問文からタイトルを導出する。
// 60文字を超える場合は切り詰めて末尾に省略記号を付ける。
func BookmarkTitle(query string) string {
	query = strings.Join(strings.Fields(query), " ")
	if utf8.RuneCountInString(query) <= TitleMaxLength {
		return query
	}
	return TruncateRunes(query, TitleMaxLength) + "..."
}

// TruncateRunes は文字列を先頭からmax文字（rune単位）に切り詰める。
// maxが0以下の場合は切り詰めない。
func TruncateRunes(s string, max int) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max])
}
