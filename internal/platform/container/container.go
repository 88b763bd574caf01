package container

import (
	"fmt"
	"log/slog"

	"github.com/pkoukk/tiktoken-go"

	"github.com/jinford/repo-insight/internal/core/analysis"
	"github.com/jinford/repo-insight/internal/core/job"
	"github.com/jinford/repo-insight/internal/core/snapshot"
	"github.com/jinford/repo-insight/internal/infra/git"
	"github.com/jinford/repo-insight/internal/infra/openai"
	"github.com/jinford/repo-insight/internal/platform/config"
)

// ServiceContainer はアプリケーションの依存関係を保持する。
type ServiceContainer struct {
	JobService      *job.Service
	JobQuery        *job.Query
	AnalysisService *analysis.Service
	Store           *job.Store

	llmKeys map[analysis.Type]string
	logger  *slog.Logger
}

type containerOptions struct {
	logger       *slog.Logger
	preparer     job.Preparer
	tokenCounter snapshot.TokenCounter
	clients      map[analysis.Type]analysis.LLMClient
}

// ContainerOption は ServiceContainer 構築時のオプション
type ContainerOption func(*containerOptions)

// WithContainerLogger はロガーを差し替える
func WithContainerLogger(logger *slog.Logger) ContainerOption {
	return func(opts *containerOptions) {
		opts.logger = logger
	}
}

// WithContainerPreparer は Preparer を差し替える
func WithContainerPreparer(preparer job.Preparer) ContainerOption {
	return func(opts *containerOptions) {
		opts.preparer = preparer
	}
}

// WithContainerTokenCounter は TokenCounter を差し替える
func WithContainerTokenCounter(counter snapshot.TokenCounter) ContainerOption {
	return func(opts *containerOptions) {
		opts.tokenCounter = counter
	}
}

// WithContainerLLMClients は分析種別ごとの LLM クライアントを差し替える
func WithContainerLLMClients(clients map[analysis.Type]analysis.LLMClient) ContainerOption {
	return func(opts *containerOptions) {
		opts.clients = clients
	}
}

// NewContainer は設定からコンテナを生成する。
func NewContainer(cfg *config.Config, opts ...ContainerOption) (*ServiceContainer, error) {
	options := containerOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(&options)
	}
	if options.logger == nil {
		options.logger = slog.Default()
	}

	// TokenCounter (tiktoken)
	tokenCounter := options.tokenCounter
	if tokenCounter == nil {
		var err error
		tokenCounter, err = newTokenCounter()
		if err != nil {
			return nil, fmt.Errorf("TokenCounter 初期化に失敗しました: %w", err)
		}
	}

	// Snapshot Builder
	builder := snapshot.NewBuilder(tokenCounter, &snapshot.Config{
		MaxFileChars:     cfg.Snapshot.MaxFileChars,
		MaxReadmeChars:   cfg.Snapshot.MaxReadmeChars,
		MaxExcerpts:      cfg.Snapshot.MaxExcerpts,
		MaxContextTokens: cfg.Snapshot.MaxContextTokens,
	})

	// Preparer (Git)
	preparer := options.preparer
	if preparer == nil {
		gitClient := git.NewClient(cfg.Git.SSHKeyPath, cfg.Git.SSHPassword)
		preparer = git.NewPreparer(gitClient, builder, cfg.Git.CloneDir, cfg.Git.DefaultBranch,
			git.WithPreparerLogger(options.logger),
		)
	}

	// 分析種別ごとの LLM クライアント (OpenAI)
	llmKeys := make(map[analysis.Type]string)
	clients := options.clients
	if clients == nil {
		clients = make(map[analysis.Type]analysis.LLMClient)
		for _, t := range analysis.All() {
			key := cfg.LLM.KeyFor(string(t))
			if key == "" {
				options.logger.Warn("APIキー未設定のため分析種別を無効化", "type", t)
				continue
			}

			client, err := openai.NewClient(key,
				openai.WithModel(cfg.LLM.Model),
				openai.WithBaseURL(cfg.LLM.BaseURL),
			)
			if err != nil {
				return nil, fmt.Errorf("LLMクライアント初期化に失敗しました: %w", err)
			}

			clients[t] = client
			llmKeys[t] = key
		}
	}

	// AnalysisService
	analysisService, err := analysis.NewService(clients, analysis.WithAnalysisLogger(options.logger))
	if err != nil {
		return nil, fmt.Errorf("分析サービス初期化に失敗しました: %w", err)
	}

	// JobStore / JobService / JobQuery
	store := job.NewStore(job.WithSingleFlight(cfg.Analysis.SingleFlight))
	jobService := job.NewService(store, preparer, analysisService,
		job.WithJobLogger(options.logger),
		job.WithRetryPolicy(job.RetryPolicy{
			MaxAttempts: cfg.Analysis.MaxAttempts,
			BaseBackoff: cfg.Analysis.BaseBackoff,
			MaxBackoff:  cfg.Analysis.MaxBackoff,
		}),
	)
	jobQuery := job.NewQuery(store)

	return &ServiceContainer{
		JobService:      jobService,
		JobQuery:        jobQuery,
		AnalysisService: analysisService,
		Store:           store,
		llmKeys:         llmKeys,
		logger:          options.logger,
	}, nil
}

// Logger はロガーを返す。
func (c *ServiceContainer) Logger() *slog.Logger {
	if c == nil || c.logger == nil {
		return slog.Default()
	}
	return c.logger
}

// LLMKeys は分析種別ごとの実効APIキーを返す。バックエンド設定状況の表示に使用する。
func (c *ServiceContainer) LLMKeys() map[analysis.Type]string {
	if c == nil {
		return nil
	}
	return c.llmKeys
}

// tokenCounter は tiktoken を利用した TokenCounter 実装。
type tokenCounter struct {
	encoding *tiktoken.Tiktoken
}

func newTokenCounter() (*tokenCounter, error) {
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return nil, fmt.Errorf("failed to load tiktoken encoding: %w", err)
	}
	return &tokenCounter{encoding: enc}, nil
}

func (t *tokenCounter) CountTokens(text string) int {
	if t.encoding == nil {
		return 0
	}
	return len(t.encoding.Encode(text, nil, nil))
}

func (t *tokenCounter) TrimToTokenLimit(text string, maxTokens int) string {
	if t.encoding == nil {
		return text
	}
	tokens := t.encoding.Encode(text, nil, nil)
	if len(tokens) <= maxTokens {
		return text
	}
	return t.encoding.Decode(tokens[:maxTokens])
}
