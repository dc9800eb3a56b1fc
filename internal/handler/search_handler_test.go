package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hitoshi/localgov/internal/completion"
	"github.com/hitoshi/localgov/internal/model"
	"github.com/hitoshi/localgov/internal/query"
)

// mockCompleter はcompletion.Completerのモック実装。
type mockCompleter struct {
	completeFn func(ctx context.Context, req completion.Request) (string, error)
	calls      int
}

func (m *mockCompleter) Complete(ctx context.Context, req completion.Request) (string, error) {
	m.calls++
	if m.completeFn != nil {
		return m.completeFn(ctx, req)
	}
	return "", nil
}

func newQueryService(c completion.Completer) *query.Service {
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	return query.NewService(c, nil, logger, query.ServiceConfig{MaxTokens: 1000, Temperature: 0.7})
}

func TestSearchHandler_Search(t *testing.T) {
	t.Run("回答を200で返す", func(t *testing.T) {
		completer := &mockCompleter{
			completeFn: func(ctx context.Context, req completion.Request) (string, error) {
				if !strings.Contains(req.Messages[1].Content, "Los Angeles, California") {
					t.Errorf("user prompt = %q, want resolved location", req.Messages[1].Content)
				}
				return "You need a permit.", nil
			},
		}
		h := NewSearchHandler(newQueryService(completer))

		req := httptest.NewRequest(http.MethodPost, "/api/search",
			strings.NewReader(`{"query":"Do I need a permit for a fence?","location":"los-angeles-ca"}`))
		w := httptest.NewRecorder()
		h.Search(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
		}
		var body searchResponse
		if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
			t.Fatalf("failed to decode body: %v", err)
		}
		if body.Result != "You need a permit." {
			t.Errorf("result = %q, want %q", body.Result, "You need a permit.")
		}
	})

	t.Run("地域が空の場合は補完APIを呼ばずに400", func(t *testing.T) {
		completer := &mockCompleter{}
		h := NewSearchHandler(newQueryService(completer))

		req := httptest.NewRequest(http.MethodPost, "/api/search",
			strings.NewReader(`{"query":"Trash pickup day?"}`))
		w := httptest.NewRecorder()
		h.Search(w, req)

		if w.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want %d", w.Code, http.StatusBadRequest)
		}
		if completer.calls != 0 {
			t.Errorf("completer called %d times, want 0", completer.calls)
		}
		body := decodeErrorBody(t, w)
		if body.Error != "Query and location are required" {
			t.Errorf("error = %q, want %q", body.Error, "Query and location are required")
		}
	})

	t.Run("補完APIの失敗は汎用メッセージの500", func(t *testing.T) {
		completer := &mockCompleter{
			completeFn: func(ctx context.Context, req completion.Request) (string, error) {
				return "", errors.New("upstream exploded: secret detail")
			},
		}
		h := NewSearchHandler(newQueryService(completer))

		req := httptest.NewRequest(http.MethodPost, "/api/search",
			strings.NewReader(`{"query":"Trash pickup day?","location":"Austin"}`))
		w := httptest.NewRecorder()
		h.Search(w, req)

		if w.Code != http.StatusInternalServerError {
			t.Fatalf("status = %d, want %d", w.Code, http.StatusInternalServerError)
		}
		body := decodeErrorBody(t, w)
		if body.Error == "" {
			t.Error("error should not be empty")
		}
		if strings.Contains(body.Error, "secret detail") {
			t.Errorf("error leaks upstream detail: %q", body.Error)
		}
	})

	t.Run("不正なJSONは400", func(t *testing.T) {
		answerer := &mockAnswerer{}
		h := NewSearchHandler(answerer)

		req := httptest.NewRequest(http.MethodPost, "/api/search", strings.NewReader(`{`))
		w := httptest.NewRecorder()
		h.Search(w, req)

		if w.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
		}
		if answerer.calls != 0 {
			t.Errorf("answerer called %d times, want 0", answerer.calls)
		}
	})
}

func TestMapAPIErrorToHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  *model.APIError
		want int
	}{
		{"必須項目なし", model.NewMissingFieldsError(), http.StatusBadRequest},
		{"回答なし", model.NewNoAnswerError(), http.StatusBadRequest},
		{"不正なパスワード", model.NewInvalidPasswordError("x"), http.StatusBadRequest},
		{"不正な名前", model.NewInvalidNameError(100), http.StatusBadRequest},
		{"未認証", model.NewUnauthorizedError(), http.StatusUnauthorized},
		{"認証情報の誤り", model.NewInvalidCredentialsError(), http.StatusUnauthorized},
		{"メール未確認", model.NewEmailNotConfirmedError(), http.StatusForbidden},
		{"アクセス禁止", model.NewForbiddenError(), http.StatusForbidden},
		{"履歴なし", model.NewHistoryNotFoundError("h1"), http.StatusNotFound},
		{"ブックマークなし", model.NewBookmarkNotFoundError("b1"), http.StatusNotFound},
		{"ユーザーなし", model.NewUserNotFoundError(), http.StatusNotFound},
		{"レート制限", model.NewRateLimitedError(), http.StatusTooManyRequests},
		{"回答生成失敗", model.NewCompletionFailedError(), http.StatusInternalServerError},
		{"IdP失敗", model.NewIdentityFailedError(""), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := mapAPIErrorToHTTPStatus(tt.err); got != tt.want {
				t.Errorf("mapAPIErrorToHTTPStatus(%s) = %d, want %d", tt.err.Code, got, tt.want)
			}
		})
	}
}

func TestHandleServiceError_UnknownError_Returns500WithoutDetail(t *testing.T) {
	w := httptest.NewRecorder()
	handleServiceError(w, errors.New("pq: connection refused"))

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusInternalServerError)
	}
	body := decodeErrorBody(t, w)
	if strings.Contains(body.Message, "pq") {
		t.Errorf("message leaks internal detail: %q", body.Message)
	}
}
