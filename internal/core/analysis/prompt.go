package analysis

import (
	"fmt"
	"strings"

	"github.com/jinford/repo-insight/internal/core/snapshot"
)

// promptConfig は分析種別ごとのプロンプト設定
type promptConfig struct {
	Title       string   // タスク見出し
	Description string   // 分析の目的
	FocusPoints []string // 着眼点
	OutputShape string   // 期待するJSONの構造（キーは英語のまま）
}

// promptConfigFor は分析種別に対応するプロンプト設定を返す
func promptConfigFor(t Type) promptConfig {
	switch t {
	case TypeArchitectureFlow:
		return promptConfig{
			Title:       "アーキテクチャと実行フローの分析",
			Description: "リポジトリ全体の構造、主要コンポーネント、処理の流れを把握する",
			FocusPoints: []string{
				"エントリーポイントとアプリケーションの起動経路",
				"主要コンポーネントの責務と依存関係",
				"リクエストやデータが処理される順序",
				"採用されているアーキテクチャパターン",
			},
			OutputShape: architectureFlowShape,
		}
	case TypeMindMap:
		return promptConfig{
			Title:       "コードベースのマインドマップ生成",
			Description: "リポジトリの構成要素を階層的に整理し、関係性を可視化する",
			FocusPoints: []string{
				"機能やレイヤーごとのカテゴリ分け",
				"カテゴリ配下のファイルのグルーピング",
				"ファイル間の依存・参照関係",
				"コア機能と補助機能の区別",
			},
			OutputShape: mindMapShape,
		}
	case TypeCodeQuality:
		return promptConfig{
			Title:       "コード品質の評価",
			Description: "コードの構成、可読性、保守性を評価し、改善点を提示する",
			FocusPoints: []string{
				"ディレクトリ構成と責務分割の適切さ",
				"命名と可読性",
				"ドキュメントとコメントの充実度",
				"テストの有無と網羅の傾向",
				"保守性を下げている箇所",
			},
			OutputShape: codeQualityShape,
		}
	case TypeSecurity:
		return promptConfig{
			Title:       "セキュリティ分析",
			Description: "潜在的な脆弱性と防御状況を洗い出し、対応アクションを提示する",
			FocusPoints: []string{
				"ハードコードされた認証情報やシークレット",
				"入力検証とインジェクションのリスク",
				"認証・認可の実装状況",
				"機密データの保護と露出",
			},
			OutputShape: securityShape,
		}
	case TypePerformance:
		return promptConfig{
			Title:       "パフォーマンス分析",
			Description: "ボトルネックと最適化の機会を特定する",
			FocusPoints: []string{
				"計算量やループの非効率",
				"I/Oやネットワーク呼び出しのボトルネック",
				"メモリ使用とリソースリーク",
				"キャッシュの活用余地",
				"スケーラビリティ上の懸念",
			},
			OutputShape: performanceShape,
		}
	}
	return promptConfig{}
}

// BuildPrompt は分析種別ごとのプロンプトを構築する
func BuildPrompt(t Type, snap *snapshot.Snapshot) string {
	config := promptConfigFor(t)
	var sb strings.Builder

	// ヘッダー
	sb.WriteString(fmt.Sprintf("# タスク: %s\n\n", config.Title))
	sb.WriteString(fmt.Sprintf("## 目的\n%s\n\n", config.Description))

	// 着眼点
	sb.WriteString("## 着眼点\n\n")
	for _, point := range config.FocusPoints {
		sb.WriteString(fmt.Sprintf("- %s\n", point))
	}
	sb.WriteString("\n")

	// 対象リポジトリ
	sb.WriteString("## 対象リポジトリ\n\n")
	sb.WriteString(fmt.Sprintf("- 名前: %s\n", snap.Name))
	sb.WriteString(fmt.Sprintf("- コミット: %s\n", snap.CommitHash))
	sb.WriteString(fmt.Sprintf("- ファイル数: %d\n", snap.TotalFiles))
	sb.WriteString(fmt.Sprintf("- 言語: %s\n\n", snap.LanguagesText()))

	sb.WriteString("### ファイルツリー\n\n")
	sb.WriteString("```\n")
	sb.WriteString(snap.TreeText)
	sb.WriteString("\n```\n\n")

	if len(snap.Excerpts) > 0 {
		sb.WriteString("### 主要ファイルの抜粋\n\n")
		sb.WriteString(snap.ExcerptsText())
		sb.WriteString("\n\n")
	}

	if snap.Readme != "" {
		sb.WriteString("### README\n\n")
		sb.WriteString("```\n")
		sb.WriteString(snap.Readme)
		sb.WriteString("\n```\n\n")
	}

	// 出力形式
	sb.WriteString("## 出力形式\n\n")
	sb.WriteString("以下の構造のJSONオブジェクトを出力してください：\n\n")
	sb.WriteString("```json\n")
	sb.WriteString(config.OutputShape)
	sb.WriteString("\n```\n\n")

	sb.WriteString("## 注意事項\n\n")
	sb.WriteString("- 出力は有効なJSONオブジェクト1つだけにしてください（前後の説明文は不要）\n")
	sb.WriteString("- JSONのキー名は上記の形式のまま変更しないでください\n")
	sb.WriteString("- 自由記述の値は日本語で記述してください\n")
	sb.WriteString("- 列挙値（SEVERITYやレベル等）は指定された候補から選んでください\n")
	sb.WriteString("- ファイルパスはリポジトリ内に実在するものを挙げてください\n")

	return sb.String()
}

const architectureFlowShape = `{
  "architecture_summary": "アーキテクチャ全体の要約",
  "execution_flow": [
    {"step": 1, "description": "処理の説明", "files_involved": ["path/to/file"], "purpose": "このステップの目的"}
  ],
  "main_components": [
    {"name": "コンポーネント名", "purpose": "責務", "location": "path/to/dir", "dependencies": ["依存先"]}
  ],
  "entry_points": ["path/to/main"],
  "data_flow": "データの流れの説明",
  "key_insights": ["重要な知見"],
  "complexity_level": "SIMPLE / MODERATE / COMPLEX のいずれか"
}`

const mindMapShape = `{
  "mind_map_overview": "マインドマップ全体の説明",
  "main_categories": [
    {
      "category": "カテゴリ名",
      "description": "カテゴリの説明",
      "subcategories": [
        {"name": "サブカテゴリ名", "files": ["path/to/file"], "purpose": "役割"}
      ],
      "importance": "HIGH / MEDIUM / LOW のいずれか"
    }
  ],
  "core_features": ["コア機能"],
  "file_relationships": [
    {"from": "path/a", "to": "path/b", "relationship": "関係の説明"}
  ],
  "visual_structure": "テキストによる階層構造の表現",
  "key_insights": ["重要な知見"]
}`

const codeQualityShape = `{
  "quality_overview": "品質全体の要約",
  "quality_score": 75,
  "strengths": ["良い点"],
  "areas_for_improvement": [
    {"area": "対象領域", "current_state": "現状", "recommendation": "推奨する改善", "priority": "HIGH / MEDIUM / LOW のいずれか"}
  ],
  "code_organization": "コード構成の評価",
  "readability": "可読性の評価",
  "documentation_status": "ドキュメントの状況",
  "testing_coverage": "テストの状況",
  "maintainability": "保守性の評価",
  "immediate_improvements": ["すぐに着手できる改善"]
}`

const securityShape = `{
  "security_overview": "セキュリティ全体の要約",
  "critical_issues": [
    {"issue": "問題の説明", "severity": "LOW / MEDIUM / HIGH / CRITICAL のいずれか", "impact": "影響", "fix": "修正方法"}
  ],
  "security_strengths": ["適切に守れている点"],
  "authentication_status": "認証・認可の状況",
  "data_protection": "データ保護の状況",
  "immediate_actions": ["すぐに実施すべき対応"],
  "overall_risk": "LOW / MEDIUM / HIGH / CRITICAL のいずれか",
  "security_score": 70
}`

const performanceShape = `{
  "performance_overview": "パフォーマンス全体の要約",
  "performance_score": 80,
  "bottlenecks": [
    {"issue": "問題の説明", "impact": "影響", "location": "path/to/file", "solution": "解決策"}
  ],
  "optimization_opportunities": [
    {"area": "対象領域", "potential_gain": "期待できる効果", "effort": "必要な工数感", "recommendation": "推奨する対応"}
  ],
  "scalability": "スケーラビリティの評価",
  "resource_efficiency": "リソース効率の評価",
  "caching_strategies": "キャッシュ戦略の評価",
  "database_performance": "データストア利用の評価",
  "monitoring_suggestions": ["モニタリングの提案"],
  "quick_wins": ["すぐに効果が出る改善"]
}`
