package analysis

import "fmt"

// Type は分析の種別を表す
type Type string

const (
	// TypeArchitectureFlow はアーキテクチャと実行フローの分析
	TypeArchitectureFlow Type = "architecture_flow"
	// TypeMindMap はリポジトリ構造のマインドマップ分析
	TypeMindMap Type = "mind_map"
	// TypeCodeQuality はコード品質の分析
	TypeCodeQuality Type = "code_quality"
	// TypeSecurity はセキュリティの分析
	TypeSecurity Type = "security"
	// TypePerformance はパフォーマンスの分析
	TypePerformance Type = "performance"
)

// All は固定の5種別を定義順に返す
func All() []Type {
	return []Type{
		TypeArchitectureFlow,
		TypeMindMap,
		TypeCodeQuality,
		TypeSecurity,
		TypePerformance,
	}
}

// Valid は既知の分析種別かどうかを返す
func (t Type) Valid() bool {
	switch t {
	case TypeArchitectureFlow, TypeMindMap, TypeCodeQuality, TypeSecurity, TypePerformance:
		return true
	}
	return false
}

// ParseType は文字列を分析種別に変換する
func ParseType(s string) (Type, error) {
	t := Type(s)
	if !t.Valid() {
		return "", fmt.Errorf("unknown analysis type: %s", s)
	}
	return t, nil
}
