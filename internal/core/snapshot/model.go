package snapshot

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// FileExcerpt はスナップショットに含めるファイルの抜粋を表す
type FileExcerpt struct {
	Path     string // リポジトリルートからの相対パス
	Language string // 判定されたプログラミング言語（不明なら空文字列）
	Content  string // 抜粋された内容（先頭から一定文字数まで）
}

// Snapshot は解析対象リポジトリの1時点の要約を表す。
// 分析プロンプトに埋め込める形まで縮約済みで、ジョブ内の全タスクが
// 同一のスナップショットを共有する。
type Snapshot struct {
	Locator     string    // 取得元のリポジトリロケータ
	Name        string    // リポジトリ名
	CommitHash  string    // 解決されたコミットハッシュ
	Ref         string    // 解決に使ったリファレンス（ブランチ・タグ等）
	GeneratedAt time.Time // スナップショット生成日時

	TotalFiles int            // フィルタ後の対象ファイル数
	Languages  map[string]int // 言語ごとのファイル数

	TreeText string        // ファイルツリーのテキスト表現
	Excerpts []FileExcerpt // 主要ファイルの抜粋
	Readme   string        // README の抜粋（存在しない場合は空文字列）

	ContextTokens int // プロンプト向けコンテキストの推定トークン数
}

// ExcerptsText は抜粋一覧をプロンプト埋め込み用のテキストに整形する
func (s *Snapshot) ExcerptsText() string {
	var sb strings.Builder
	for _, e := range s.Excerpts {
		sb.WriteString(fmt.Sprintf("--- %s", e.Path))
		if e.Language != "" {
			sb.WriteString(fmt.Sprintf(" (%s)", e.Language))
		}
		sb.WriteString(" ---\n")
		sb.WriteString(e.Content)
		if !strings.HasSuffix(e.Content, "\n") {
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

// LanguagesText は言語別ファイル数を「Go: 12, Python: 3」形式に整形する
func (s *Snapshot) LanguagesText() string {
	if len(s.Languages) == 0 {
		return "不明"
	}
	type langCount struct {
		name  string
		count int
	}
	counts := make([]langCount, 0, len(s.Languages))
	for name, count := range s.Languages {
		counts = append(counts, langCount{name: name, count: count})
	}
	// 件数の多い順、同数なら名前順で安定させる
	sort.Slice(counts, func(i, j int) bool {
		if counts[i].count != counts[j].count {
			return counts[i].count > counts[j].count
		}
		return counts[i].name < counts[j].name
	})
	parts := make([]string, 0, len(counts))
	for _, c := range counts {
		parts = append(parts, fmt.Sprintf("%s: %d", c.name, c.count))
	}
	return strings.Join(parts, ", ")
}
