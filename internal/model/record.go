// Package model はドメインモデルを定義する。
package model

import "time"

// SearchHistoryRecord は質問の送信履歴1件を表す。
// 作成後に更新されることはなく、所有者による個別削除のみ行われる。
type SearchHistoryRecord struct {
	ID        string
	UserID    string
	Query     string
	Location  string
	CreatedAt time.Time
}

// Bookmark はユーザーが明示的に保存した回答を表す。
// Titleは質問文から導出され、Contentは保存時点の回答テキスト。
type Bookmark struct {
	ID        string
	UserID    string
	Title     string
	Query     string
	Location  string
	Content   string
	CreatedAt time.Time
}
