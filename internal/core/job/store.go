package job

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/mo"

	"github.com/jinford/repo-insight/internal/core/analysis"
)

// jobEntry は1ジョブ分の状態とそれを保護するロックを持つ
type jobEntry struct {
	mu  sync.Mutex
	job *Job
}

// Store はジョブ状態のインメモリレジストリ。
// レジストリ全体を RWMutex で、各ジョブを個別の Mutex で保護する。
// 取り出しは常にコピーを返し、内部の Job を外部に渡さない。
type Store struct {
	mu           sync.RWMutex
	entries      map[uuid.UUID]*jobEntry
	active       map[string]uuid.UUID // 単一実行ポリシー用: ロケータ → 実行中ジョブID
	singleFlight bool
}

type storeOptions struct {
	singleFlight bool
}

// StoreOption は Store のオプション設定
type StoreOption func(*storeOptions)

// WithSingleFlight は同一ロケータの分析を同時に1件へ制限する
func WithSingleFlight(enabled bool) StoreOption {
	return func(o *storeOptions) {
		o.singleFlight = enabled
	}
}

// NewStore は新しいStoreを作成する
func NewStore(opts ...StoreOption) *Store {
	options := storeOptions{}
	for _, opt := range opts {
		opt(&options)
	}
	return &Store{
		entries:      make(map[uuid.UUID]*jobEntry),
		active:       make(map[string]uuid.UUID),
		singleFlight: options.singleFlight,
	}
}

// Create は pending 状態の新しいジョブを登録し、そのコピーを返す。
// 単一実行ポリシーが有効で同一ロケータのジョブが実行中の場合は
// ErrDuplicateSubmission を返す。
func (s *Store) Create(locator string) (Job, error) {
	locator = strings.TrimSpace(locator)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.singleFlight {
		if activeID, ok := s.active[locator]; ok {
			if entry, found := s.entries[activeID]; found && !entryTerminal(entry) {
				return Job{}, fmt.Errorf("%w: %s", ErrDuplicateSubmission, locator)
			}
		}
	}

	job := &Job{
		ID:        uuid.New(),
		Locator:   locator,
		Status:    StatusPending,
		Tasks:     make(map[analysis.Type]TaskResult),
		CreatedAt: time.Now(),
	}
	s.entries[job.ID] = &jobEntry{job: job}
	if s.singleFlight {
		s.active[locator] = job.ID
	}

	return cloneJob(job), nil
}

// Get はジョブのその時点のコピーを返す
func (s *Store) Get(id uuid.UUID) mo.Option[Job] {
	entry, ok := s.entry(id)
	if !ok {
		return mo.None[Job]()
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	return mo.Some(cloneJob(entry.job))
}

// Transition はジョブの状態を遷移させる。許可される遷移は
// pending→cloning, cloning→analyzing, cloning→failed, analyzing→completed
// のみ。analyzing への遷移で5タスク分のスロットを not_started で初期化する。
func (s *Store) Transition(id uuid.UUID, to Status) error {
	entry, ok := s.entry(id)
	if !ok {
		return ErrJobNotFound
	}

	entry.mu.Lock()
	from := entry.job.Status
	if !canTransition(from, to) {
		entry.mu.Unlock()
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}

	entry.job.Status = to
	if to == StatusAnalyzing {
		for _, t := range analysis.All() {
			entry.job.Tasks[t] = TaskResult{Type: t, State: TaskNotStarted}
		}
	}
	if to.Terminal() {
		now := time.Now()
		entry.job.CompletedAt = &now
	}
	locator := entry.job.Locator
	entry.mu.Unlock()

	if to.Terminal() {
		s.releaseActive(locator, id)
	}
	return nil
}

// MarkFailed は cloning 中のジョブを取得失敗として終端させる
func (s *Store) MarkFailed(id uuid.UUID, cause string) error {
	entry, ok := s.entry(id)
	if !ok {
		return ErrJobNotFound
	}

	entry.mu.Lock()
	if entry.job.Status != StatusCloning {
		from := entry.job.Status
		entry.mu.Unlock()
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, StatusFailed)
	}
	entry.job.Status = StatusFailed
	entry.job.Error = cause
	now := time.Now()
	entry.job.CompletedAt = &now
	locator := entry.job.Locator
	entry.mu.Unlock()

	s.releaseActive(locator, id)
	return nil
}

// UpdateTask はタスクスロットを書き換える。analyzing 中のジョブに対してのみ
// 許可され、終端状態のタスクは上書きできない。5つ目のタスクが終端に達した
// 時点でジョブを completed にする。
func (s *Store) UpdateTask(id uuid.UUID, t analysis.Type, result TaskResult) error {
	entry, ok := s.entry(id)
	if !ok {
		return ErrJobNotFound
	}

	entry.mu.Lock()
	if entry.job.Status != StatusAnalyzing {
		status := entry.job.Status
		entry.mu.Unlock()
		return fmt.Errorf("%w: task update while %s", ErrInvalidTransition, status)
	}
	current, exists := entry.job.Tasks[t]
	if !exists {
		entry.mu.Unlock()
		return fmt.Errorf("%w: unknown task %s", ErrInvalidTransition, t)
	}
	if current.State.Terminal() {
		entry.mu.Unlock()
		return fmt.Errorf("%w: task %s already %s", ErrInvalidTransition, t, current.State)
	}

	result.Type = t
	entry.job.Tasks[t] = result

	completed := false
	if entry.job.TerminalTaskCount() == len(analysis.All()) {
		entry.job.Status = StatusCompleted
		now := time.Now()
		entry.job.CompletedAt = &now
		completed = true
	}
	locator := entry.job.Locator
	entry.mu.Unlock()

	if completed {
		s.releaseActive(locator, id)
	}
	return nil
}

// entry はレジストリからエントリを引く
func (s *Store) entry(id uuid.UUID) (*jobEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.entries[id]
	return entry, ok
}

// entryTerminal は呼び出し側が s.mu を保持している前提で終端判定を行う
func entryTerminal(entry *jobEntry) bool {
	entry.mu.Lock()
	defer entry.mu.Unlock()
	return entry.job.Status.Terminal()
}

// releaseActive は単一実行ポリシーの占有を解放する
func (s *Store) releaseActive(locator string, id uuid.UUID) {
	if !s.singleFlight {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active[locator] == id {
		delete(s.active, locator)
	}
}

// canTransition は許可された状態遷移かどうかを判定する
func canTransition(from, to Status) bool {
	switch from {
	case StatusPending:
		return to == StatusCloning
	case StatusCloning:
		return to == StatusAnalyzing || to == StatusFailed
	case StatusAnalyzing:
		return to == StatusCompleted
	}
	return false
}

// cloneJob はジョブのディープコピーを作る
func cloneJob(job *Job) Job {
	clone := *job
	if job.CompletedAt != nil {
		completedAt := *job.CompletedAt
		clone.CompletedAt = &completedAt
	}
	clone.Tasks = make(map[analysis.Type]TaskResult, len(job.Tasks))
	for t, task := range job.Tasks {
		task.Payload = append(json.RawMessage(nil), task.Payload...)
		clone.Tasks[t] = task
	}
	return clone
}
