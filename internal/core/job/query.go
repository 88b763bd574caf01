package job

import (
	"encoding/json"

	"github.com/google/uuid"

	"github.com/jinford/repo-insight/internal/core/analysis"
)

// TaskStatusView は状態照会用のタスク概況
type TaskStatusView struct {
	State        TaskState `json:"state"`
	AttemptCount int       `json:"attempt_count"`
}

// StatusView はジョブ状態の照会結果
type StatusView struct {
	JobID    uuid.UUID                        `json:"job_id"`
	Status   Status                           `json:"status"`
	Progress float64                          `json:"progress"`
	Error    string                           `json:"error,omitempty"`
	Tasks    map[analysis.Type]TaskStatusView `json:"tasks,omitempty"`
}

// TaskReportView は結果照会用のタスク別レポート
type TaskReportView struct {
	Type         analysis.Type   `json:"type"`
	State        TaskState       `json:"state"`
	AttemptCount int             `json:"attempt_count"`
	Payload      json.RawMessage `json:"payload,omitempty"`
	ErrorDetail  string          `json:"error_detail,omitempty"`
}

// ResultView はジョブ結果の照会結果
type ResultView struct {
	JobID   uuid.UUID        `json:"job_id"`
	Status  Status           `json:"status"`
	Error   string           `json:"error,omitempty"`
	Reports []TaskReportView `json:"reports"`
}

// Query はジョブ状態の参照系を提供する。読み取りは副作用を持たない
type Query struct {
	store *Store
}

// NewQuery は新しいQueryを作成する
func NewQuery(store *Store) *Query {
	return &Query{store: store}
}

// Status はジョブの進行状況を返す
func (q *Query) Status(id uuid.UUID) (*StatusView, error) {
	jobOpt := q.store.Get(id)
	if jobOpt.IsAbsent() {
		return nil, ErrJobNotFound
	}
	job := jobOpt.MustGet()

	view := &StatusView{
		JobID:    job.ID,
		Status:   job.Status,
		Progress: progress(&job),
		Error:    job.Error,
	}
	if len(job.Tasks) > 0 {
		view.Tasks = make(map[analysis.Type]TaskStatusView, len(job.Tasks))
		for t, task := range job.Tasks {
			view.Tasks[t] = TaskStatusView{
				State:        task.State,
				AttemptCount: task.AttemptCount,
			}
		}
	}
	return view, nil
}

// Result はジョブの分析結果を返す。types を指定すると該当種別のみに絞る。
// どの状態でも呼び出せるが、結果が揃うのは completed 以降となる。
func (q *Query) Result(id uuid.UUID, types ...analysis.Type) (*ResultView, error) {
	jobOpt := q.store.Get(id)
	if jobOpt.IsAbsent() {
		return nil, ErrJobNotFound
	}
	job := jobOpt.MustGet()

	include := func(t analysis.Type) bool {
		if len(types) == 0 {
			return true
		}
		for _, want := range types {
			if want == t {
				return true
			}
		}
		return false
	}

	view := &ResultView{
		JobID:   job.ID,
		Status:  job.Status,
		Error:   job.Error,
		Reports: make([]TaskReportView, 0, len(job.Tasks)),
	}
	// レポートは種別の定義順で返す
	for _, t := range analysis.All() {
		task, ok := job.Tasks[t]
		if !ok || !include(t) {
			continue
		}
		view.Reports = append(view.Reports, TaskReportView{
			Type:         t,
			State:        task.State,
			AttemptCount: task.AttemptCount,
			Payload:      task.Payload,
			ErrorDetail:  task.ErrorDetail,
		})
	}
	return view, nil
}

// progress はジョブの進捗率を返す。
// pending/cloning は 0、analyzing は終端タスク数/全タスク数、終端状態は 1
func progress(job *Job) float64 {
	switch {
	case job.Status == StatusAnalyzing:
		return float64(job.TerminalTaskCount()) / float64(len(analysis.All()))
	case job.Status.Terminal():
		return 1
	}
	return 0
}
