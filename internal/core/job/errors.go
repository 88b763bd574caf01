package job

import "errors"

var (
	// ErrJobNotFound は未知のジョブIDを表す
	ErrJobNotFound = errors.New("job not found")

	// ErrInvalidTransition は許可されていない状態遷移を表す
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrDuplicateSubmission は同一リポジトリの分析が既に実行中であることを表す。
	// 単一実行ポリシーが有効な場合のみ返る。
	ErrDuplicateSubmission = errors.New("analysis already running for repository")

	// ErrInvalidLocator はリポジトリロケータの形式が不正であることを表す
	ErrInvalidLocator = errors.New("invalid repository locator")
)
