package job

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jinford/repo-insight/internal/core/analysis"
	"github.com/jinford/repo-insight/internal/core/snapshot"
)

// Preparer はリポジトリからスナップショットを用意するポート
type Preparer interface {
	// ValidateLocator はロケータの形式を検証する
	ValidateLocator(locator string) error

	// Prepare はリポジトリを取得し、分析用スナップショットを構築する
	Prepare(ctx context.Context, locator string) (*snapshot.Snapshot, error)
}

// Analyzer は1種別の分析を実行するポート
type Analyzer interface {
	Analyze(ctx context.Context, t analysis.Type, snap *snapshot.Snapshot) (json.RawMessage, error)
}

// RetryPolicy はタスクのリトライ方針
type RetryPolicy struct {
	MaxAttempts int           // 1タスクあたりの最大試行回数
	BaseBackoff time.Duration // Exponential Backoff の基底時間
	MaxBackoff  time.Duration // Exponential Backoff の最大待機時間
}

// DefaultRetryPolicy はデフォルトのリトライ方針を返す
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseBackoff: 2 * time.Second,
		MaxBackoff:  32 * time.Second,
	}
}

// Service はジョブのオーケストレーションを提供する。
// 受理したジョブごとにリポジトリ取得と5種別の分析タスクを実行し、
// 進行状態を Store に記録する。
type Service struct {
	store    *Store
	preparer Preparer
	analyzer Analyzer
	retry    RetryPolicy
	logger   *slog.Logger
}

type jobServiceOptions struct {
	retry  RetryPolicy
	logger *slog.Logger
}

// ServiceOption は Service のオプション設定
type ServiceOption func(*jobServiceOptions)

// WithJobLogger は Service にロガーを設定する
func WithJobLogger(logger *slog.Logger) ServiceOption {
	return func(o *jobServiceOptions) {
		o.logger = logger
	}
}

// WithRetryPolicy はリトライ方針を上書きする
func WithRetryPolicy(policy RetryPolicy) ServiceOption {
	return func(o *jobServiceOptions) {
		o.retry = policy
	}
}

// NewService は新しいServiceを作成する
func NewService(store *Store, preparer Preparer, analyzer Analyzer, opts ...ServiceOption) *Service {
	options := jobServiceOptions{
		retry:  DefaultRetryPolicy(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(&options)
	}
	if options.logger == nil {
		options.logger = slog.Default()
	}
	if options.retry.MaxAttempts < 1 {
		options.retry.MaxAttempts = 1
	}

	return &Service{
		store:    store,
		preparer: preparer,
		analyzer: analyzer,
		retry:    options.retry,
		logger:   options.logger,
	}
}

// Submit はジョブを受理し、バックグラウンドで分析パイプラインを開始する。
// 失敗するのはロケータの形式不正と、単一実行ポリシー有効時の重複のみ。
func (s *Service) Submit(ctx context.Context, locator string) (Job, error) {
	job, err := s.accept(locator)
	if err != nil {
		return Job{}, err
	}

	// 呼び出し元のキャンセルに巻き込まれないよう切り離して実行する
	go s.runJob(context.WithoutCancel(ctx), job.ID, job.Locator)

	return job, nil
}

// RunSync は呼び出し元のゴルーチン上でジョブを最後まで実行し、
// 終端状態のジョブを返す。CLIの一括実行用。
func (s *Service) RunSync(ctx context.Context, locator string) (Job, error) {
	job, err := s.accept(locator)
	if err != nil {
		return Job{}, err
	}

	s.runJob(ctx, job.ID, job.Locator)

	finalOpt := s.store.Get(job.ID)
	if finalOpt.IsAbsent() {
		return Job{}, ErrJobNotFound
	}
	return finalOpt.MustGet(), nil
}

// accept はロケータを検証してジョブを登録する
func (s *Service) accept(locator string) (Job, error) {
	if err := s.preparer.ValidateLocator(locator); err != nil {
		return Job{}, fmt.Errorf("%w: %v", ErrInvalidLocator, err)
	}

	job, err := s.store.Create(locator)
	if err != nil {
		return Job{}, err
	}

	s.logger.Info("分析ジョブを受理",
		"jobID", job.ID,
		"locator", job.Locator,
	)
	return job, nil
}

// runJob は1ジョブ分のパイプラインを実行する
func (s *Service) runJob(ctx context.Context, id uuid.UUID, locator string) {
	startTime := time.Now()

	if err := s.store.Transition(id, StatusCloning); err != nil {
		s.logger.Error("状態遷移に失敗", "jobID", id, "error", err)
		return
	}

	snap, err := s.preparer.Prepare(ctx, locator)
	if err != nil {
		s.logger.Warn("リポジトリの取得に失敗",
			"jobID", id,
			"locator", locator,
			"error", err,
		)
		if markErr := s.store.MarkFailed(id, err.Error()); markErr != nil {
			s.logger.Error("状態遷移に失敗", "jobID", id, "error", markErr)
		}
		return
	}

	if err := s.store.Transition(id, StatusAnalyzing); err != nil {
		s.logger.Error("状態遷移に失敗", "jobID", id, "error", err)
		return
	}

	s.logger.Info("分析を開始",
		"jobID", id,
		"repository", snap.Name,
		"commit", snap.CommitHash,
		"files", snap.TotalFiles,
	)

	// 5種別を並行実行。各タスクは独立に終端まで到達する
	var wg sync.WaitGroup
	wg.Add(len(analysis.All()))
	for _, t := range analysis.All() {
		go func(t analysis.Type) {
			defer wg.Done()
			s.runTask(ctx, id, t, snap)
		}(t)
	}
	wg.Wait()

	s.logger.Info("分析ジョブが完了",
		"jobID", id,
		"duration", time.Since(startTime),
	)
}

// runTask は1タスク分のリトライループを実行する。
// 一時的なエラーは Exponential Backoff 付きでリトライし、恒久的なエラーは
// 即座に打ち切る。最終的に失敗した場合は代替ペイロードを記録する。
func (s *Service) runTask(ctx context.Context, id uuid.UUID, t analysis.Type, snap *snapshot.Snapshot) {
	var lastErr error
	attempts := 0

	for attempt := 1; attempt <= s.retry.MaxAttempts; attempt++ {
		if attempt > 1 {
			backoff := s.backoffDuration(attempt - 1)
			s.logger.Warn("分析タスクをリトライ",
				"jobID", id,
				"type", t,
				"attempt", attempt,
				"backoff", backoff,
				"error", lastErr,
			)
			select {
			case <-ctx.Done():
				lastErr = ctx.Err()
				s.failTask(id, t, attempts, lastErr)
				return
			case <-time.After(backoff):
			}
		}

		attempts = attempt
		if err := s.store.UpdateTask(id, t, TaskResult{State: TaskRunning, AttemptCount: attempt}); err != nil {
			s.logger.Error("タスク状態の更新に失敗", "jobID", id, "type", t, "error", err)
			return
		}

		payload, err := s.analyzer.Analyze(ctx, t, snap)
		if err == nil {
			if updateErr := s.store.UpdateTask(id, t, TaskResult{State: TaskSucceeded, AttemptCount: attempt, Payload: payload}); updateErr != nil {
				s.logger.Error("タスク状態の更新に失敗", "jobID", id, "type", t, "error", updateErr)
				return
			}
			s.logger.Info("分析タスクが成功", "jobID", id, "type", t, "attempt", attempt)
			return
		}

		lastErr = err

		if analysis.IsPermanent(err) {
			s.logger.Warn("恒久的なエラーのためリトライを中止", "jobID", id, "type", t, "error", err)
			break
		}
	}

	s.failTask(id, t, attempts, lastErr)
}

// failTask はタスクを最終失敗として記録する
func (s *Service) failTask(id uuid.UUID, t analysis.Type, attempts int, cause error) {
	detail := "analysis failed"
	if cause != nil {
		detail = cause.Error()
	}

	result := TaskResult{
		State:        TaskFailed,
		AttemptCount: attempts,
		Payload:      analysis.FallbackPayload(t, detail),
		ErrorDetail:  detail,
	}
	if err := s.store.UpdateTask(id, t, result); err != nil {
		s.logger.Error("タスク状態の更新に失敗", "jobID", id, "type", t, "error", err)
		return
	}

	s.logger.Warn("分析タスクが失敗",
		"jobID", id,
		"type", t,
		"attempts", attempts,
		"error", detail,
	)
}

// backoffDuration は attempt 回目の失敗後の待機時間を返す
func (s *Service) backoffDuration(attempt int) time.Duration {
	backoff := time.Duration(math.Pow(2, float64(attempt-1))) * s.retry.BaseBackoff
	if backoff > s.retry.MaxBackoff {
		backoff = s.retry.MaxBackoff
	}
	return backoff
}
