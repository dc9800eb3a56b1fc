// Package dashboard はダッシュボード画面の状態管理を提供する。
// 入力中の地域と質問、直近の回答、履歴・ブックマークのローカル一覧を保持し、
// 変更のたびにストアへ反映する。
package dashboard

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/hitoshi/localgov/internal/model"
	"github.com/hitoshi/localgov/internal/query"
)

// genericErrorMessage はAPIError以外の失敗時に表示する文言。
const genericErrorMessage = "An error occurred while processing your request"

// BookmarkSavedMessage はブックマーク保存に成功したときに表示する文言。
const BookmarkSavedMessage = "Answer saved to your bookmarks."

// LibraryStore は履歴・ブックマークの永続化操作。
// history.Serviceが実装する。
type LibraryStore interface {
	RecordSearch(ctx context.Context, userID, query, location string) (*model.SearchHistoryRecord, error)
	ListHistory(ctx context.Context, userID string) ([]*model.SearchHistoryRecord, error)
	DeleteHistory(ctx context.Context, userID, id string) error
	SaveBookmark(ctx context.Context, userID, query, location, content string) (*model.Bookmark, error)
	ListBookmarks(ctx context.Context, userID string) ([]*model.Bookmark, error)
	DeleteBookmark(ctx context.Context, userID, id string) error
}

// ViewModel はダッシュボード1画面分の状態。
// 1リクエストの中でのみ使用し、goroutine間で共有しない。
type ViewModel struct {
	UserID    string
	Location  string
	Question  string
	Answer    string
	Searching bool
	Message   string
	History   []*model.SearchHistoryRecord
	Bookmarks []*model.Bookmark

	answerer     query.Answerer
	store        LibraryStore
	historyLimit int
}

// NewViewModel はViewModelを生成する。userIDが空の場合は未ログイン扱いとなり、
// 送信・保存操作は何もしない。
func NewViewModel(userID string, answerer query.Answerer, store LibraryStore, historyLimit int) *ViewModel {
	return &ViewModel{
		UserID:       userID,
		answerer:     answerer,
		store:        store,
		historyLimit: historyLimit,
	}
}

// Load はストアから履歴とブックマークを読み込む。
// 失敗した場合はMessageに表示し、読み込めた一覧はそのまま保持する。
func (vm *ViewModel) Load(ctx context.Context) {
	if vm.UserID == "" {
		return
	}

	history, err := vm.store.ListHistory(ctx, vm.UserID)
	if err != nil {
		vm.fail("履歴の読み込みに失敗しました", err)
	} else {
		vm.History = history
	}

	bookmarks, err := vm.store.ListBookmarks(ctx, vm.UserID)
	if err != nil {
		vm.fail("ブックマークの読み込みに失敗しました", err)
	} else {
		vm.Bookmarks = bookmarks
	}
}

// SubmitQuery は質問を送信して回答を受け取り、履歴に1件追加する。
// 地域・質問のどちらかが空、または未ログインの場合は何もしない。
// 回答生成に失敗した場合はMessageにエラー文言を設定し、履歴は記録する。
// 履歴の保存に失敗してもローカルの一覧は巻き戻さない。
func (vm *ViewModel) SubmitQuery(ctx context.Context, location, question string) {
	location = strings.TrimSpace(location)
	question = strings.TrimSpace(question)
	if location == "" || question == "" || vm.UserID == "" {
		return
	}

	vm.Location = location
	vm.Question = question
	vm.Answer = ""
	vm.Message = ""

	vm.Searching = true
	answer, err := vm.answerer.Answer(ctx, question, location)
	vm.Searching = false

	if err != nil {
		vm.fail("回答の取得に失敗しました", err)
	} else {
		vm.Answer = answer
	}

	rec, err := vm.store.RecordSearch(ctx, vm.UserID, question, location)
	if err != nil {
		// ストアに保存できなくても画面上は送信済みとして表示する
		rec = &model.SearchHistoryRecord{UserID: vm.UserID, Query: question, Location: location}
		vm.fail("履歴の保存に失敗しました", err)
	}
	vm.History = prependCapped(vm.History, rec, vm.historyLimit)
}

// SaveBookmark は現在の回答をブックマークとして保存する。
// 回答がない場合は何もしない。
func (vm *ViewModel) SaveBookmark(ctx context.Context) {
	if vm.UserID == "" || strings.TrimSpace(vm.Answer) == "" {
		return
	}

	b, err := vm.store.SaveBookmark(ctx, vm.UserID, vm.Question, vm.Location, vm.Answer)
	if err != nil {
		vm.fail("ブックマークの保存に失敗しました", err)
		return
	}
	vm.Bookmarks = append([]*model.Bookmark{b}, vm.Bookmarks...)
	vm.Message = BookmarkSavedMessage
}

// RemoveHistoryItem は履歴を1件削除し、ローカル一覧からも取り除く。
func (vm *ViewModel) RemoveHistoryItem(ctx context.Context, id string) {
	if vm.UserID == "" || id == "" {
		return
	}
	if err := vm.store.DeleteHistory(ctx, vm.UserID, id); err != nil {
		vm.fail("履歴の削除に失敗しました", err)
		return
	}
	vm.History = removeByID(vm.History, id, func(r *model.SearchHistoryRecord) string { return r.ID })
}

// RemoveBookmark はブックマークを1件削除し、ローカル一覧からも取り除く。
func (vm *ViewModel) RemoveBookmark(ctx context.Context, id string) {
	if vm.UserID == "" || id == "" {
		return
	}
	if err := vm.store.DeleteBookmark(ctx, vm.UserID, id); err != nil {
		vm.fail("ブックマークの削除に失敗しました", err)
		return
	}
	vm.Bookmarks = removeByID(vm.Bookmarks, id, func(b *model.Bookmark) string { return b.ID })
}

// CanBookmark は現在の回答を保存できるかを返す。
func (vm *ViewModel) CanBookmark() bool {
	return vm.UserID != "" && strings.TrimSpace(vm.Answer) != ""
}

// fail はエラーをログに記録し、ユーザー向け文言をMessageに設定する。
func (vm *ViewModel) fail(logMsg string, err error) {
	slog.Error(logMsg,
		slog.String("user_id", vm.UserID),
		slog.String("error", err.Error()),
	)

	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		vm.Message = apiErr.Message
		return
	}
	vm.Message = genericErrorMessage
}

func prependCapped[T any](list []T, item T, limit int) []T {
	out := append([]T{item}, list...)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func removeByID[T any](list []T, id string, idOf func(T) string) []T {
	out := list[:0:0]
	for _, v := range list {
		if idOf(v) != id {
			out = append(out, v)
		}
	}
	return out
}
