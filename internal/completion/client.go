// Package completion はOpenAI互換のチャット補完APIクライアントを提供する。
// 1回の質問に対して1回だけ呼び出し、再試行やストリーミングは行わない。
package completion

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
)

// ErrNotConfigured はAPIキー未設定のまま呼び出されたことを示す。
var ErrNotConfigured = errors.New("completion provider is not configured")

// maxErrorBodySize はエラーレスポンスをログに残す際の最大バイト数。
const maxErrorBodySize = 4 << 10

// メッセージのロール
const (
	RoleSystem = "system"
	RoleUser   = "user"
)

// Message はチャットメッセージ1件を表す。
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request は補完リクエスト。
type Request struct {
	Messages    []Message
	MaxTokens   int
	Temperature float64
}

// Completer は補完呼び出しのインターフェース。
// 空の回答は空文字列・nilエラーで返す。
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// StatusError はプロバイダが非2xxを返したことを表す。
type StatusError struct {
	StatusCode int
	Body       string
}

// Error はerrorインターフェースを実装する。
func (e *StatusError) Error() string {
	return fmt.Sprintf("completion provider returned status %d", e.StatusCode)
}

// Config はクライアント設定。
type Config struct {
	BaseURL string // 例: https://api.openai.com/v1
	APIKey  string
	Model   string
}

// Client はOpenAI互換の/chat/completionsを呼び出すクライアント。
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	cfg        Config
}

// NewClient はClientの新しいインスタンスを生成する。
// APIキーが空でも生成でき、初回呼び出し時にErrNotConfiguredを返す。
func NewClient(httpClient *http.Client, logger *slog.Logger, cfg Config) *Client {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Client{
		httpClient: httpClient,
		logger:     logger,
		cfg:        cfg,
	}
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Temperature float64   `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
}

// Complete はチャット補完を1回呼び出し、先頭の選択肢の本文を返す。
// 選択肢がない場合は空文字列を返す。
func (c *Client) Complete(ctx context.Context, req Request) (string, error) {
	if c.cfg.APIKey == "" || c.cfg.BaseURL == "" {
		return "", ErrNotConfigured
	}

	body, err := json.Marshal(chatRequest{
		Model:       c.cfg.Model,
		Messages:    req.Messages,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("completion request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
		c.logger.Error("補完APIがエラーステータスを返しました",
			slog.Int("http_status", resp.StatusCode),
			slog.String("model", c.cfg.Model),
			slog.String("body", string(respBody)),
		)
		return "", &StatusError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("failed to decode completion response: %w", err)
	}

	if len(parsed.Choices) == 0 {
		return "", nil
	}
	return parsed.Choices[0].Message.Content, nil
}

var _ Completer = (*Client)(nil)
