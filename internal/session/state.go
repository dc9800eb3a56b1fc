// Package session はログインセッションの解決と、ページ単位のアクセス制御を提供する。
package session

// State はゲートから見たセッションの状態。
type State int

const (
	// StateUnknown はまだ確認していない状態。
	StateUnknown State = iota
	// StateChecking は確認中の状態。
	StateChecking
	// StateAuthenticated は有効なセッションがある状態。
	StateAuthenticated
	// StateUnauthenticated はセッションがない、または無効な状態。
	StateUnauthenticated
)

// String はログ出力用の名前を返す。
func (s State) String() string {
	switch s {
	case StateChecking:
		return "checking"
	case StateAuthenticated:
		return "authenticated"
	case StateUnauthenticated:
		return "unauthenticated"
	default:
		return "unknown"
	}
}

// PageKind はページのアクセス区分。
type PageKind int

const (
	// PagePublic は誰でも閲覧できるページ。
	PagePublic PageKind = iota
	// PageProtected はログインが必要なページ。
	PageProtected
	// PageAuthOnly はログイン前のユーザー向けページ（サインイン等）。
	PageAuthOnly
)

// リダイレクト先
const (
	SignInPath    = "/auth/signin"
	DashboardPath = "/dashboard"
)

// RedirectFor は状態とページ区分からリダイレクト先を決定する。
// リダイレクト不要の場合は空文字列を返す。確認が済んでいない状態では
// リダイレクトしない。
func RedirectFor(state State, kind PageKind) string {
	switch {
	case state == StateUnauthenticated && kind == PageProtected:
		return SignInPath
	case state == StateAuthenticated && kind == PageAuthOnly:
		return DashboardPath
	default:
		return ""
	}
}
