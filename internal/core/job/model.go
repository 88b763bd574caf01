package job

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/jinford/repo-insight/internal/core/analysis"
)

// Status はジョブの状態を表す
type Status string

const (
	// StatusPending は受理直後、リポジトリ取得開始前の状態
	StatusPending Status = "pending"
	// StatusCloning はリポジトリ取得とスナップショット構築中の状態
	StatusCloning Status = "cloning"
	// StatusAnalyzing は5種別の分析タスクを実行中の状態
	StatusAnalyzing Status = "analyzing"
	// StatusCompleted は全タスクが終端に達した状態
	StatusCompleted Status = "completed"
	// StatusFailed はリポジトリ取得に失敗した状態
	StatusFailed Status = "failed"
)

// Terminal は終端状態かどうかを返す
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// TaskState は分析タスクの状態を表す
type TaskState string

const (
	TaskNotStarted TaskState = "not_started"
	TaskRunning    TaskState = "running"
	TaskSucceeded  TaskState = "succeeded"
	TaskFailed     TaskState = "failed"
)

// Terminal は終端状態かどうかを返す
func (s TaskState) Terminal() bool {
	return s == TaskSucceeded || s == TaskFailed
}

// TaskResult は1つの分析タスクの状態と結果を表す
type TaskResult struct {
	Type         analysis.Type   // 分析種別
	State        TaskState       // タスク状態
	AttemptCount int             // 実際に実行した試行回数
	Payload      json.RawMessage // 成功時のレポート。最終失敗時は代替ペイロード
	ErrorDetail  string          // 最終失敗時のエラー詳細
}

// Job は1回のリポジトリ分析ジョブを表す
type Job struct {
	ID          uuid.UUID
	Locator     string
	Status      Status
	Error       string // リポジトリ取得失敗の理由（failed のときのみ）
	Tasks       map[analysis.Type]TaskResult
	CreatedAt   time.Time
	CompletedAt *time.Time
}

// TerminalTaskCount は終端状態に達したタスク数を返す
func (j *Job) TerminalTaskCount() int {
	count := 0
	for _, task := range j.Tasks {
		if task.State.Terminal() {
			count++
		}
	}
	return count
}
