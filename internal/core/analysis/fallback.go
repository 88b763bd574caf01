package analysis

import (
	"encoding/json"
	"fmt"
)

// fallbackAction は失敗時にクライアントへ提示する定型アクション
const fallbackAction = "APIキーの設定とバックエンドの状態を確認してください"

// FallbackPayload は分析が最終的に失敗した場合の代替ペイロードを構築する。
// 成功時と同じトップレベルキーを持たせ、クライアント側の表示処理を共通化する。
func FallbackPayload(t Type, cause string) json.RawMessage {
	message := fmt.Sprintf("分析を完了できませんでした: %s", cause)

	var payload map[string]any
	switch t {
	case TypeArchitectureFlow:
		payload = map[string]any{
			"architecture_summary": message,
			"execution_flow":       []any{},
			"main_components":      []any{},
			"entry_points":         []any{},
			"data_flow":            "分析できませんでした",
			"key_insights":         []string{fallbackAction},
			"complexity_level":     "UNKNOWN",
		}
	case TypeMindMap:
		payload = map[string]any{
			"mind_map_overview":  message,
			"main_categories":    []any{},
			"core_features":      []any{},
			"file_relationships": []any{},
			"visual_structure":   "分析できませんでした",
			"key_insights":       []string{fallbackAction},
		}
	case TypeCodeQuality:
		payload = map[string]any{
			"quality_overview":       message,
			"quality_score":          0,
			"strengths":              []any{},
			"areas_for_improvement":  []any{},
			"code_organization":      "分析できませんでした",
			"readability":            "分析できませんでした",
			"documentation_status":   "分析できませんでした",
			"testing_coverage":       "分析できませんでした",
			"maintainability":        "分析できませんでした",
			"immediate_improvements": []string{fallbackAction},
		}
	case TypeSecurity:
		payload = map[string]any{
			"security_overview":     message,
			"critical_issues":       []any{},
			"security_strengths":    []any{},
			"authentication_status": "分析できませんでした",
			"data_protection":       "分析できませんでした",
			"immediate_actions":     []string{fallbackAction},
			"overall_risk":          "UNKNOWN",
			"security_score":        0,
		}
	case TypePerformance:
		payload = map[string]any{
			"performance_overview":       message,
			"performance_score":          0,
			"bottlenecks":                []any{},
			"optimization_opportunities": []any{},
			"scalability":                "分析できませんでした",
			"resource_efficiency":        "分析できませんでした",
			"caching_strategies":         "分析できませんでした",
			"database_performance":       "分析できませんでした",
			"monitoring_suggestions":     []any{},
			"quick_wins":                 []string{fallbackAction},
		}
	default:
		payload = map[string]any{
			"summary": message,
			"actions": []string{fallbackAction},
		}
	}

	data, _ := json.Marshal(payload)
	return data
}
