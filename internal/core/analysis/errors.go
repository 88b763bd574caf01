package analysis

import "errors"

var (
	// ErrPermanentFailure はリトライしても回復しないバックエンド失敗を表す
	ErrPermanentFailure = errors.New("permanent backend failure")

	// ErrInvalidResponse はバックエンドのレスポンスが期待する形式でないことを表す。
	// 一時的な失敗として扱い、リトライ対象となる。
	ErrInvalidResponse = errors.New("invalid response format")

	// ErrClientNotConfigured は分析種別に対応するAPIキーが未設定であることを表す
	ErrClientNotConfigured = errors.New("analysis client not configured")
)

// IsPermanent は err がリトライ不要（恒久的）な失敗かどうかを判定する
func IsPermanent(err error) bool {
	return errors.Is(err, ErrPermanentFailure) || errors.Is(err, ErrClientNotConfigured)
}
