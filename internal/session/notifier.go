package session

import "sync"

// Event はセッションの変化を表すイベント。
type Event string

const (
	EventSignedIn       Event = "SIGNED_IN"
	EventSignedOut      Event = "SIGNED_OUT"
	EventTokenRefreshed Event = "TOKEN_REFRESHED"
	EventUserUpdated    Event = "USER_UPDATED"
	EventUserDeleted    Event = "USER_DELETED"
)

// Authenticated はイベント発生後にセッションが有効であるかを返す。
func (e Event) Authenticated() bool {
	switch e {
	case EventSignedOut, EventUserDeleted:
		return false
	default:
		return true
	}
}

// Listener はイベント受信時に呼び出される関数。
type Listener func(Event)

// Publisher はセッションイベントの発行に必要なインターフェース。
type Publisher interface {
	Publish(userID string, event Event)
}

// Notifier はユーザー単位でセッションイベントを配信する。
// 同一ユーザーの複数タブ（SSE接続）に対してサインアウトや退会を伝える。
type Notifier struct {
	mu     sync.Mutex
	nextID uint64
	subs   map[string]map[uint64]Listener

	done      chan struct{}
	closeOnce sync.Once
}

// NewNotifier はNotifierを生成する。
func NewNotifier() *Notifier {
	return &Notifier{
		subs: make(map[string]map[uint64]Listener),
		done: make(chan struct{}),
	}
}

// Close はサーバー停止を購読者に伝える。複数回呼び出しても安全。
// http.Server.RegisterOnShutdownに登録して使う。
func (n *Notifier) Close() {
	n.closeOnce.Do(func() { close(n.done) })
}

// Done はClose後に閉じられるチャネルを返す。
// nilのNotifierではnilを返すため、selectでは常に待機側になる。
func (n *Notifier) Done() <-chan struct{} {
	if n == nil {
		return nil
	}
	return n.done
}

// Subscribe はユーザーのイベント購読を登録し、解除関数を返す。
// 解除関数は複数回呼び出しても安全。
func (n *Notifier) Subscribe(userID string, fn Listener) func() {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.nextID++
	id := n.nextID
	if n.subs[userID] == nil {
		n.subs[userID] = make(map[uint64]Listener)
	}
	n.subs[userID][id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			n.mu.Lock()
			defer n.mu.Unlock()
			delete(n.subs[userID], id)
			if len(n.subs[userID]) == 0 {
				delete(n.subs, userID)
			}
		})
	}
}

// Publish はユーザーの全購読者にイベントを通知する。
// リスナーはロック外で呼び出すため、リスナー内で購読解除してよい。
func (n *Notifier) Publish(userID string, event Event) {
	n.mu.Lock()
	listeners := make([]Listener, 0, len(n.subs[userID]))
	for _, fn := range n.subs[userID] {
		listeners = append(listeners, fn)
	}
	n.mu.Unlock()

	for _, fn := range listeners {
		fn(event)
	}
}

// SubscriberCount はユーザーの購読数を返す。
func (n *Notifier) SubscriberCount(userID string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.subs[userID])
}
