package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jinford/repo-insight/internal/core/snapshot"
)

type stubLLMClient struct {
	response   string
	err        error
	calls      int
	lastPrompt string
}

func (c *stubLLMClient) Generate(ctx context.Context, prompt string) (string, error) {
	c.calls++
	c.lastPrompt = prompt
	if c.err != nil {
		return "", c.err
	}
	return c.response, nil
}

func (c *stubLLMClient) ModelName() string { return "stub-model" }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{AddSource: false}))
}

func testSnapshot() *snapshot.Snapshot {
	return &snapshot.Snapshot{
		Locator:    "https://github.com/example/repo.git",
		Name:       "repo",
		CommitHash: "abcdef0123456789",
		TotalFiles: 2,
		Languages:  map[string]int{"Go": 2},
		TreeText:   "cmd/\n  main.go\ninternal/\n  server.go",
		Excerpts: []snapshot.FileExcerpt{
			{Path: "cmd/main.go", Language: "Go", Content: "package main\n"},
		},
		Readme: "# repo\n\nサンプルリポジトリ",
	}
}

func TestService_Analyze(t *testing.T) {
	validReport := `{"architecture_summary": "レイヤードアーキテクチャ", "execution_flow": [], "main_components": []}`

	t.Run("正常系: 有効なレポートJSON", func(t *testing.T) {
		client := &stubLLMClient{response: validReport}
		svc, err := NewService(map[Type]LLMClient{TypeArchitectureFlow: client}, WithAnalysisLogger(testLogger()))
		require.NoError(t, err)

		payload, err := svc.Analyze(context.Background(), TypeArchitectureFlow, testSnapshot())
		require.NoError(t, err)
		assert.Equal(t, 1, client.calls)

		var report map[string]any
		require.NoError(t, json.Unmarshal(payload, &report))
		assert.Equal(t, "レイヤードアーキテクチャ", report["architecture_summary"])
	})

	t.Run("正常系: コードブロックで包まれたレスポンス", func(t *testing.T) {
		client := &stubLLMClient{response: "```json\n" + validReport + "\n```"}
		svc, err := NewService(map[Type]LLMClient{TypeArchitectureFlow: client}, WithAnalysisLogger(testLogger()))
		require.NoError(t, err)

		payload, err := svc.Analyze(context.Background(), TypeArchitectureFlow, testSnapshot())
		require.NoError(t, err)

		var report map[string]any
		require.NoError(t, json.Unmarshal(payload, &report))
		assert.Contains(t, report, "execution_flow")
	})

	t.Run("異常系: クライアント未設定", func(t *testing.T) {
		svc, err := NewService(nil, WithAnalysisLogger(testLogger()))
		require.NoError(t, err)

		_, err = svc.Analyze(context.Background(), TypeSecurity, testSnapshot())
		require.ErrorIs(t, err, ErrClientNotConfigured)
		assert.True(t, IsPermanent(err))
	})

	t.Run("異常系: 必須キーの欠落", func(t *testing.T) {
		client := &stubLLMClient{response: `{"architecture_summary": "要約のみ"}`}
		svc, err := NewService(map[Type]LLMClient{TypeArchitectureFlow: client}, WithAnalysisLogger(testLogger()))
		require.NoError(t, err)

		_, err = svc.Analyze(context.Background(), TypeArchitectureFlow, testSnapshot())
		require.ErrorIs(t, err, ErrInvalidResponse)
		assert.False(t, IsPermanent(err))
	})

	t.Run("異常系: JSONオブジェクトを含まないレスポンス", func(t *testing.T) {
		client := &stubLLMClient{response: "分析できませんでした"}
		svc, err := NewService(map[Type]LLMClient{TypeArchitectureFlow: client}, WithAnalysisLogger(testLogger()))
		require.NoError(t, err)

		_, err = svc.Analyze(context.Background(), TypeArchitectureFlow, testSnapshot())
		require.ErrorIs(t, err, ErrInvalidResponse)
	})

	t.Run("異常系: 未知の分析種別", func(t *testing.T) {
		svc, err := NewService(nil, WithAnalysisLogger(testLogger()))
		require.NoError(t, err)

		_, err = svc.Analyze(context.Background(), Type("unknown"), testSnapshot())
		require.ErrorIs(t, err, ErrPermanentFailure)
	})

	t.Run("異常系: バックエンドエラーは伝播する", func(t *testing.T) {
		backendErr := errors.New("simulated backend error")
		client := &stubLLMClient{err: backendErr}
		svc, err := NewService(map[Type]LLMClient{TypePerformance: client}, WithAnalysisLogger(testLogger()))
		require.NoError(t, err)

		_, err = svc.Analyze(context.Background(), TypePerformance, testSnapshot())
		require.ErrorIs(t, err, backendErr)
		assert.False(t, IsPermanent(err))
	})
}

func TestService_ConfiguredTypes(t *testing.T) {
	svc, err := NewService(map[Type]LLMClient{
		TypeSecurity:         &stubLLMClient{},
		TypeArchitectureFlow: &stubLLMClient{},
	}, WithAnalysisLogger(testLogger()))
	require.NoError(t, err)

	// 定義順で返る
	assert.Equal(t, []Type{TypeArchitectureFlow, TypeSecurity}, svc.ConfiguredTypes())
	assert.True(t, svc.Configured(TypeSecurity))
	assert.False(t, svc.Configured(TypeMindMap))
}

func TestBuildPrompt(t *testing.T) {
	snap := testSnapshot()

	prompt := BuildPrompt(TypeSecurity, snap)

	assert.Contains(t, prompt, "セキュリティ分析")
	assert.Contains(t, prompt, "security_overview")
	assert.Contains(t, prompt, snap.Name)
	assert.Contains(t, prompt, snap.CommitHash)
	assert.Contains(t, prompt, "cmd/main.go")
	assert.Contains(t, prompt, "README")
}

func TestFallbackPayload(t *testing.T) {
	requiredKeys := map[Type]string{
		TypeArchitectureFlow: "architecture_summary",
		TypeMindMap:          "mind_map_overview",
		TypeCodeQuality:      "quality_overview",
		TypeSecurity:         "security_overview",
		TypePerformance:      "performance_overview",
	}

	for _, at := range All() {
		payload := FallbackPayload(at, "APIキーが未設定です")

		var report map[string]any
		require.NoError(t, json.Unmarshal(payload, &report), "type=%s", at)
		summary, ok := report[requiredKeys[at]].(string)
		require.True(t, ok, "type=%s", at)
		assert.Contains(t, summary, "APIキーが未設定です")
	}
}

func TestExtractJSONObject(t *testing.T) {
	t.Run("正常系: 前後にテキストが混ざる場合", func(t *testing.T) {
		got, err := extractJSONObject("結果は以下です。\n{\"key\": \"value\"}\n以上です。")
		require.NoError(t, err)
		assert.Equal(t, `{"key": "value"}`, got)
	})

	t.Run("異常系: 波括弧が存在しない", func(t *testing.T) {
		_, err := extractJSONObject("no json here")
		require.ErrorIs(t, err, ErrInvalidResponse)
	})
}

func TestParseType(t *testing.T) {
	t.Run("正常系: 既知の種別", func(t *testing.T) {
		got, err := ParseType("mind_map")
		require.NoError(t, err)
		assert.Equal(t, TypeMindMap, got)
	})

	t.Run("異常系: 未知の種別", func(t *testing.T) {
		_, err := ParseType("wiki")
		require.Error(t, err)
	})
}
