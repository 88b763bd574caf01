package analysis

import "context"

// LLMClient は分析バックエンドのテキスト生成を抽象化するポート。
// Generate は1回分の生成のみを行い、リトライは呼び出し側の責務とする。
type LLMClient interface {
	Generate(ctx context.Context, prompt string) (string, error)
	ModelName() string
}
