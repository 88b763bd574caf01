package analysis

import (
	"fmt"

	"github.com/xeipuuv/gojsonschema"
)

// reportSchemas は分析種別ごとのレポートJSONスキーマ。
// 必須キーの欠落や型不一致を検出し、そのレスポンスをリトライ対象として扱う。
var reportSchemas = map[Type]string{
	TypeArchitectureFlow: architectureFlowSchema,
	TypeMindMap:          mindMapSchema,
	TypeCodeQuality:      codeQualitySchema,
	TypeSecurity:         securitySchema,
	TypePerformance:      performanceSchema,
}

// compileReportSchemas は全分析種別のスキーマをコンパイルする
func compileReportSchemas() (map[Type]*gojsonschema.Schema, error) {
	schemas := make(map[Type]*gojsonschema.Schema, len(reportSchemas))
	for t, raw := range reportSchemas {
		schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(raw))
		if err != nil {
			return nil, fmt.Errorf("failed to compile schema for %s: %w", t, err)
		}
		schemas[t] = schema
	}
	return schemas, nil
}

// validateReport はレポートJSONをスキーマで検証する。
// JSONとして解析できない場合も形式不正として扱う。
func validateReport(schema *gojsonschema.Schema, reportJSON string) error {
	result, err := schema.Validate(gojsonschema.NewStringLoader(reportJSON))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	if !result.Valid() {
		details := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			details = append(details, desc.String())
		}
		return fmt.Errorf("%w: %v", ErrInvalidResponse, details)
	}
	return nil
}

const architectureFlowSchema = `{
  "type": "object",
  "required": ["architecture_summary", "execution_flow", "main_components"],
  "properties": {
    "architecture_summary": {"type": "string"},
    "execution_flow": {"type": "array"},
    "main_components": {"type": "array"},
    "entry_points": {"type": "array"},
    "data_flow": {"type": "string"},
    "key_insights": {"type": "array"},
    "complexity_level": {"type": "string"}
  }
}`

const mindMapSchema = `{
  "type": "object",
  "required": ["mind_map_overview", "main_categories"],
  "properties": {
    "mind_map_overview": {"type": "string"},
    "main_categories": {"type": "array"},
    "core_features": {"type": "array"},
    "file_relationships": {"type": "array"},
    "visual_structure": {"type": "string"},
    "key_insights": {"type": "array"}
  }
}`

const codeQualitySchema = `{
  "type": "object",
  "required": ["quality_overview", "quality_score"],
  "properties": {
    "quality_overview": {"type": "string"},
    "quality_score": {"type": "number"},
    "strengths": {"type": "array"},
    "areas_for_improvement": {"type": "array"},
    "code_organization": {"type": "string"},
    "readability": {"type": "string"},
    "documentation_status": {"type": "string"},
    "testing_coverage": {"type": "string"},
    "maintainability": {"type": "string"},
    "immediate_improvements": {"type": "array"}
  }
}`

const securitySchema = `{
  "type": "object",
  "required": ["security_overview", "overall_risk"],
  "properties": {
    "security_overview": {"type": "string"},
    "critical_issues": {"type": "array"},
    "security_strengths": {"type": "array"},
    "authentication_status": {"type": "string"},
    "data_protection": {"type": "string"},
    "immediate_actions": {"type": "array"},
    "overall_risk": {"type": "string"},
    "security_score": {"type": "number"}
  }
}`

const performanceSchema = `{
  "type": "object",
  "required": ["performance_overview", "performance_score"],
  "properties": {
    "performance_overview": {"type": "string"},
    "performance_score": {"type": "number"},
    "bottlenecks": {"type": "array"},
    "optimization_opportunities": {"type": "array"},
    "scalability": {"type": "string"},
    "resource_efficiency": {"type": "string"},
    "caching_strategies": {"type": "string"},
    "database_performance": {"type": "string"},
    "monitoring_suggestions": {"type": "array"},
    "quick_wins": {"type": "array"}
  }
}`
