package web

import "github.com/hitoshi/localgov/internal/model"

// SignInData はサインイン・サインアップページのデータ。
// Modeが"signup"の場合は登録フォームを表示する。
type SignInData struct {
	Mode  string
	Email string
	Name  string
}

// ForgotPasswordData はパスワード再設定メール送信ページのデータ。
type ForgotPasswordData struct {
	Email string
	Sent  bool
}

// DashboardData はダッシュボードページのデータ。
type DashboardData struct {
	Location    string
	Question    string
	Answer      string
	Suggestions []string
	History     []*model.SearchHistoryRecord
	Bookmarks   []*model.Bookmark
}

// SettingsData はアカウント設定ページのデータ。
type SettingsData struct {
	Email string
	Name  string
}
