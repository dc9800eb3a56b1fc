package handler

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hitoshi/localgov/internal/middleware"
	"github.com/hitoshi/localgov/internal/session"
)

// defaultKeepAliveInterval はSSE接続のキープアライブ送信間隔。
const defaultKeepAliveInterval = 25 * time.Second

// SessionEventsHandler はセッション状態の変化をServer-Sent Eventsで配信するハンドラー。
// 保護ページのゲートを接続中だけマウントし、未認証になった時点で
// redirectイベントを送って接続を終了する。
// サーバー停止時はNotifierのDoneで接続を閉じる。
type SessionEventsHandler struct {
	notifier  *session.Notifier
	keepAlive time.Duration
}

// NewSessionEventsHandler はSessionEventsHandlerを生成する。
func NewSessionEventsHandler(notifier *session.Notifier) *SessionEventsHandler {
	return &SessionEventsHandler{
		notifier:  notifier,
		keepAlive: defaultKeepAliveInterval,
	}
}

// Stream はセッションイベントのストリームを返す。
// GET /api/session/events
func (h *SessionEventsHandler) Stream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		middleware.WriteInternalServerError(w)
		return
	}

	// 長時間接続のためサーバーの書き込みタイムアウトを解除する
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	gate := session.NewGate(session.PageProtected, func(ctx context.Context) (*session.Principal, error) {
		if p, ok := middleware.PrincipalFromContext(ctx); ok {
			return p, nil
		}
		return nil, session.ErrNoSession
	}, h.notifier)

	gate.Check(r.Context())
	if target := gate.Redirect(); target != "" {
		writeEvent(w, "redirect", target)
		flusher.Flush()
		return
	}

	changes := make(chan struct{}, 1)
	gate.Mount(func(session.State) {
		select {
		case changes <- struct{}{}:
		default:
		}
	})
	defer gate.Unmount()

	writeEvent(w, "ready", gate.State().String())
	flusher.Flush()

	ticker := time.NewTicker(h.keepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-h.notifier.Done():
			return
		case <-ticker.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case <-changes:
			if target := gate.Redirect(); target != "" {
				writeEvent(w, "redirect", target)
				flusher.Flush()
				return
			}
		}
	}
}

func writeEvent(w io.Writer, event, data string) {
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
}
