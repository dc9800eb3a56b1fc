// Package model はドメインモデルを定義する。
package model

import "time"

// User はIdPが管理するユーザーの射影を表す。
// 表示名はIdPのuser_metadata.nameに保持される。
type User struct {
	ID        string
	Email     string
	Name      string
	CreatedAt time.Time
}

// Session はIdPが発行したログインセッションを表す。
// アプリケーション側では永続化せず、HTTP Only Cookieで持ち回る。
type Session struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	User         User
}

// Expired は指定時刻の時点でアクセストークンが期限切れかを返す。
// ExpiresAtがゼロ値の場合は期限なしとして扱う。
func (s *Session) Expired(now time.Time) bool {
	if s.ExpiresAt.IsZero() {
		return false
	}
	return !now.Before(s.ExpiresAt)
}
