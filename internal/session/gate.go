package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// LookupFunc は現在のセッションを問い合わせる関数。
// セッションがない場合はErrNoSessionを返す。
type LookupFunc func(ctx context.Context) (*Principal, error)

// Gate はページ単位のアクセス制御を行う。
// セッションの確認は1つのゲートにつき最大1回で、以降はNotifierからの
// イベントで状態を更新する。
type Gate struct {
	kind     PageKind
	lookup   LookupFunc
	notifier *Notifier

	mu          sync.Mutex
	state       State
	principal   *Principal
	checked     bool
	unsubscribe func()
}

// NewGate はGateを生成する。notifierがnilの場合、Mountは何もしない。
func NewGate(kind PageKind, lookup LookupFunc, notifier *Notifier) *Gate {
	return &Gate{
		kind:     kind,
		lookup:   lookup,
		notifier: notifier,
		state:    StateUnknown,
	}
}

// Check はセッションを確認して状態を確定し、確定後の状態を返す。
// 2回目以降の呼び出しは問い合わせを行わず、現在の状態を返す。
// 問い合わせ自体が失敗した場合も未認証として扱う。
func (g *Gate) Check(ctx context.Context) State {
	g.mu.Lock()
	if g.checked {
		state := g.state
		g.mu.Unlock()
		return state
	}
	g.checked = true
	g.state = StateChecking
	g.mu.Unlock()

	p, err := g.lookup(ctx)

	g.mu.Lock()
	defer g.mu.Unlock()
	// 確認中に購読イベントで状態が確定した場合はそちらを優先する
	if g.state != StateChecking {
		return g.state
	}
	if err != nil {
		if !errors.Is(err, ErrNoSession) {
			slog.Warn("session lookup failed",
				slog.String("error", err.Error()),
			)
		}
		g.state = StateUnauthenticated
		return g.state
	}
	g.principal = p
	g.state = StateAuthenticated
	return g.state
}

// State は現在の状態を返す。
func (g *Gate) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Principal は認証済みの場合にユーザーを返す。未認証の場合はnil。
func (g *Gate) Principal() *Principal {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state != StateAuthenticated {
		return nil
	}
	return g.principal
}

// Redirect は現在の状態でのリダイレクト先を返す。不要な場合は空文字列。
func (g *Gate) Redirect() string {
	return RedirectFor(g.State(), g.kind)
}

// Mount は認証済みユーザーのセッションイベントを購読し、
// イベントごとに状態を更新してonChangeを呼び出す。
// 未認証の場合や既に購読中の場合は何もしない。
func (g *Gate) Mount(onChange func(State)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.notifier == nil || g.unsubscribe != nil || g.principal == nil {
		return
	}

	g.unsubscribe = g.notifier.Subscribe(g.principal.UserID, func(ev Event) {
		g.mu.Lock()
		if ev.Authenticated() {
			g.state = StateAuthenticated
		} else {
			g.state = StateUnauthenticated
		}
		state := g.state
		g.mu.Unlock()

		if onChange != nil {
			onChange(state)
		}
	})
}

// Unmount は購読を解除する。複数回呼び出しても安全。
func (g *Gate) Unmount() {
	g.mu.Lock()
	unsubscribe := g.unsubscribe
	g.unsubscribe = nil
	g.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
}
