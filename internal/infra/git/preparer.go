package git

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"path/filepath"
	"strings"

	giturls "github.com/whilp/git-urls"

	"github.com/jinford/repo-insight/internal/core/job"
	"github.com/jinford/repo-insight/internal/core/snapshot"
)

// maxSourceFileSize はスナップショットに読み込むファイルサイズの上限
const maxSourceFileSize = 1 * 1024 * 1024

// Preparer は Git リポジトリを取得して分析用スナップショットを構築する
type Preparer struct {
	client        *Client
	builder       *snapshot.Builder
	cloneDir      string
	defaultBranch string
	logger        *slog.Logger
}

type preparerOptions struct {
	logger *slog.Logger
}

// PreparerOption は Preparer のオプション設定
type PreparerOption func(*preparerOptions)

// WithPreparerLogger はロガーを設定する
func WithPreparerLogger(logger *slog.Logger) PreparerOption {
	return func(o *preparerOptions) {
		o.logger = logger
	}
}

// NewPreparer は新しい Preparer を作成する
func NewPreparer(client *Client, builder *snapshot.Builder, cloneDir, defaultBranch string, opts ...PreparerOption) *Preparer {
	options := &preparerOptions{
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(options)
	}
	if options.logger == nil {
		options.logger = slog.Default()
	}

	if defaultBranch == "" {
		defaultBranch = "main"
	}

	return &Preparer{
		client:        client,
		builder:       builder,
		cloneDir:      cloneDir,
		defaultBranch: defaultBranch,
		logger:        options.logger,
	}
}

// ValidateLocator はリポジトリロケータとして解釈できるか検証する
func (p *Preparer) ValidateLocator(locator string) error {
	trimmed := strings.TrimSpace(locator)
	if trimmed == "" {
		return fmt.Errorf("repository locator is empty")
	}

	u, err := giturls.Parse(trimmed)
	if err != nil {
		return fmt.Errorf("failed to parse git URL: %w", err)
	}

	// ローカルパスはサポートしない。リモートURLのみ受け付ける。
	if u.Hostname() == "" {
		return fmt.Errorf("unsupported repository URL: %s", trimmed)
	}

	return nil
}

// Prepare はリポジトリを取得してスナップショットを構築する
func (p *Preparer) Prepare(ctx context.Context, locator string) (*snapshot.Snapshot, error) {
	dirName, err := p.client.URLToDirectoryName(locator)
	if err != nil {
		return nil, err
	}
	repoPath := filepath.Join(p.cloneDir, dirName)

	if err := p.client.CloneOrPull(ctx, locator, repoPath, p.defaultBranch); err != nil {
		return nil, fmt.Errorf("failed to prepare repository: %w", err)
	}

	// デフォルトブランチが存在しないリポジトリは HEAD にフォールバックする
	ref := p.defaultBranch
	commitInfo, err := p.client.GetCommitInfo(ctx, repoPath, ref)
	if err != nil {
		ref = "HEAD"
		commitInfo, err = p.client.GetCommitInfo(ctx, repoPath, ref)
		if err != nil {
			return nil, err
		}
	}

	fileInfos, err := p.client.ListFiles(ctx, repoPath, ref)
	if err != nil {
		return nil, err
	}

	files := make([]snapshot.SourceFile, 0, len(fileInfos))
	for _, info := range fileInfos {
		if !p.builder.ShouldInclude(info.Path) {
			continue
		}
		if info.Size > maxSourceFileSize {
			p.logger.Debug("サイズ上限を超えたファイルをスキップ", "path", info.Path, "size", info.Size)
			continue
		}

		content, err := p.client.ReadFile(ctx, repoPath, ref, info.Path)
		if err != nil {
			p.logger.Warn("ファイルの読み込みに失敗", "path", info.Path, "error", err)
			continue
		}

		files = append(files, snapshot.SourceFile{Path: info.Path, Content: content})
	}

	snap := p.builder.Build(locator, repoName(locator), ref, commitInfo.Hash, files)

	p.logger.Info("スナップショットを構築",
		"repository", snap.Name,
		"commit", snap.CommitHash,
		"files", snap.TotalFiles,
		"excerpts", len(snap.Excerpts),
		"contextTokens", snap.ContextTokens,
	)

	return snap, nil
}

// repoName はロケータからリポジトリ名を取り出す
func repoName(locator string) string {
	u, err := giturls.Parse(locator)
	if err != nil {
		return locator
	}

	base := path.Base(strings.TrimSuffix(u.Path, "/"))
	return strings.TrimSuffix(base, ".git")
}

// インターフェース実装の確認
var _ job.Preparer = (*Preparer)(nil)
