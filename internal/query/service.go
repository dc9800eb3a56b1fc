package query

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/hitoshi/localgov/internal/completion"
	"github.com/hitoshi/localgov/internal/metrics"
	"github.com/hitoshi/localgov/internal/model"
)

// FallbackAnswer は補完APIが空の回答を返した場合の固定文言。
const FallbackAnswer = "I apologize, but I couldn't generate a response at this time. Please try again later."

// Answerer は質問への回答を生成するインターフェース。
// ダッシュボードと/api/searchの両方から利用される。
type Answerer interface {
	Answer(ctx context.Context, question, location string) (string, error)
}

// ServiceConfig は回答生成のパラメータ。
type ServiceConfig struct {
	MaxTokens   int
	Temperature float64
}

// Service は質問を補完APIへ中継するサービス。
// 1回の質問につき補完APIを1回だけ呼び出し、再試行は行わない。
type Service struct {
	completer completion.Completer
	metrics   metrics.MetricsCollector
	logger    *slog.Logger
	cfg       ServiceConfig
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(completer completion.Completer, mc metrics.MetricsCollector, logger *slog.Logger, cfg ServiceConfig) *Service {
	if mc == nil {
		mc = metrics.NopCollector{}
	}
	return &Service{
		completer: completer,
		metrics:   mc,
		logger:    logger,
		cfg:       cfg,
	}
}

// Answer は質問と地域から回答テキストを生成する。
// 質問または地域が空の場合は補完APIを呼ばずにMISSING_FIELDSを返す。
// 補完APIの失敗は詳細をログに記録し、呼び出し側には汎用のCOMPLETION_FAILEDを返す。
func (s *Service) Answer(ctx context.Context, question, location string) (string, error) {
	question = strings.TrimSpace(question)
	location = strings.TrimSpace(location)
	if question == "" || location == "" {
		return "", model.NewMissingFieldsError()
	}

	resolved := ResolveLocation(location)
	prompt := BuildPrompt(question, resolved)

	start := time.Now()
	text, err := s.completer.Complete(ctx, completion.Request{
		Messages: []completion.Message{
			{Role: completion.RoleSystem, Content: prompt.System},
			{Role: completion.RoleUser, Content: prompt.User},
		},
		MaxTokens:   s.cfg.MaxTokens,
		Temperature: s.cfg.Temperature,
	})
	s.metrics.RecordCompletionLatency(time.Since(start))

	if err != nil {
		s.metrics.RecordCompletion(metrics.OutcomeFailure)
		s.logger.Error("回答の生成に失敗しました",
			slog.String("location", resolved),
			slog.String("error", err.Error()),
		)
		return "", model.NewCompletionFailedError()
	}

	if strings.TrimSpace(text) == "" {
		s.metrics.RecordCompletion(metrics.OutcomeEmpty)
		s.logger.Warn("補完APIが空の回答を返しました",
			slog.String("location", resolved),
		)
		return FallbackAnswer, nil
	}

	s.metrics.RecordCompletion(metrics.OutcomeSuccess)
	s.logger.Info("回答を生成しました",
		slog.String("location", resolved),
		slog.Int("answer_length", len(text)),
		slog.Duration("duration", time.Since(start)),
	)
	return text, nil
}

var _ Answerer = (*Service)(nil)
