package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/jinford/repo-insight/internal/core/snapshot"
)

// Service は分析種別ごとのレポート生成を提供する
type Service struct {
	clients map[Type]LLMClient
	schemas map[Type]*gojsonschema.Schema
	logger  *slog.Logger
}

type serviceOptions struct {
	logger *slog.Logger
}

// ServiceOption は Service のオプション設定
type ServiceOption func(*serviceOptions)

// WithAnalysisLogger は Service にロガーを設定する
func WithAnalysisLogger(logger *slog.Logger) ServiceOption {
	return func(o *serviceOptions) {
		o.logger = logger
	}
}

// NewService は新しいServiceを作成する。
// clients は分析種別ごとのLLMクライアント。未設定の種別があってもよく、
// その種別の分析は ErrClientNotConfigured で失敗する。
func NewService(clients map[Type]LLMClient, opts ...ServiceOption) (*Service, error) {
	options := serviceOptions{
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(&options)
	}
	if options.logger == nil {
		options.logger = slog.Default()
	}

	schemas, err := compileReportSchemas()
	if err != nil {
		return nil, err
	}

	if clients == nil {
		clients = map[Type]LLMClient{}
	}

	return &Service{
		clients: clients,
		schemas: schemas,
		logger:  options.logger,
	}, nil
}

// Analyze は指定種別の分析を1回実行し、検証済みのレポートJSONを返す。
// リトライは行わず、呼び出し側がエラー分類（IsPermanent）に応じて制御する。
func (s *Service) Analyze(ctx context.Context, t Type, snap *snapshot.Snapshot) (json.RawMessage, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("%w: unknown analysis type %s", ErrPermanentFailure, t)
	}

	client, ok := s.clients[t]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrClientNotConfigured, t)
	}

	prompt := BuildPrompt(t, snap)

	s.logger.Debug("分析リクエストを送信",
		"type", t,
		"model", client.ModelName(),
		"promptChars", len(prompt),
	)

	raw, err := client.Generate(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("failed to generate %s report: %w", t, err)
	}

	report, err := extractJSONObject(raw)
	if err != nil {
		return nil, err
	}

	if err := validateReport(s.schemas[t], report); err != nil {
		return nil, err
	}

	return json.RawMessage(report), nil
}

// ConfiguredTypes はクライアントが設定されている分析種別を定義順に返す
func (s *Service) ConfiguredTypes() []Type {
	types := make([]Type, 0, len(s.clients))
	for _, t := range All() {
		if _, ok := s.clients[t]; ok {
			types = append(types, t)
		}
	}
	return types
}

// Configured は指定種別のクライアントが設定されているかを返す
func (s *Service) Configured(t Type) bool {
	_, ok := s.clients[t]
	return ok
}

// ModelFor は指定種別に使うモデル名を返す。未設定なら空文字列を返す
func (s *Service) ModelFor(t Type) string {
	client, ok := s.clients[t]
	if !ok {
		return ""
	}
	return client.ModelName()
}

// extractJSONObject はレスポンステキストからJSONオブジェクト部分を取り出す。
// コードブロックや前置きが混ざるケースに備え、最初の「{」から最後の「}」までを採用する。
func extractJSONObject(raw string) (string, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end < start {
		return "", fmt.Errorf("%w: no JSON object found", ErrInvalidResponse)
	}
	return raw[start : end+1], nil
}
