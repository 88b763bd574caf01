package snapshot

import (
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/go-enry/go-enry/v2"
	gitignore "github.com/sabhiram/go-gitignore"
)

// TokenCounter はトークン数の計測とトリミングを抽象化する
type TokenCounter interface {
	// CountTokens はテキストのトークン数をカウントする
	CountTokens(text string) int

	// TrimToTokenLimit はテキストを指定されたトークン数に収まるようトリミングする
	TrimToTokenLimit(text string, maxTokens int) string
}

// Config はスナップショット構築の設定
type Config struct {
	MaxFileChars     int // 1ファイルあたりの抜粋文字数上限
	MaxReadmeChars   int // READMEの抜粋文字数上限
	MaxExcerpts      int // 抜粋対象とするファイル数の上限
	MaxContextTokens int // コンテキスト全体のトークン数上限
}

// DefaultConfig はデフォルト設定を返す
func DefaultConfig() *Config {
	return &Config{
		MaxFileChars:     2000,
		MaxReadmeChars:   4000,
		MaxExcerpts:      50,
		MaxContextTokens: 8000,
	}
}

// SourceFile は取得済みのファイル1件を表す
type SourceFile struct {
	Path    string // リポジトリルートからの相対パス
	Content string // ファイル内容
}

// Builder はファイル一覧から分析用スナップショットを構築する
type Builder struct {
	config       *Config
	ignore       *gitignore.GitIgnore
	tokenCounter TokenCounter
}

// NewBuilder は新しいBuilderを作成する。config が nil の場合はデフォルト設定を使う
func NewBuilder(tokenCounter TokenCounter, config *Config) *Builder {
	if config == nil {
		config = DefaultConfig()
	}
	return &Builder{
		config:       config,
		ignore:       gitignore.CompileIgnoreLines(defaultIgnorePatterns()...),
		tokenCounter: tokenCounter,
	}
}

// ShouldInclude はパスをスナップショットに含めるべきかどうかを判定する
func (b *Builder) ShouldInclude(path string) bool {
	return !b.ignore.MatchesPath(path)
}

// Build はフィルタ済みのファイル一覧からスナップショットを構築する。
// 抜粋とREADMEは文字数上限まで切り詰め、全体がトークン上限を超える場合は
// 優先度の低い抜粋から順に落とす。
func (b *Builder) Build(locator, name, ref, commitHash string, files []SourceFile) *Snapshot {
	languages := make(map[string]int)
	paths := make([]string, 0, len(files))
	candidates := make([]SourceFile, 0, len(files))
	readme := ""
	readmePath := ""

	for _, file := range files {
		paths = append(paths, file.Path)

		if language := enry.GetLanguage(filepath.Base(file.Path), []byte(file.Content)); language != "" {
			languages[language]++
		}

		// READMEは抜粋とは別枠で保持する
		if isReadme(file.Path) {
			if readmePath == "" || pathDepth(file.Path) < pathDepth(readmePath) {
				readme = trimChars(file.Content, b.config.MaxReadmeChars)
				readmePath = file.Path
			}
			continue
		}

		candidates = append(candidates, file)
	}

	// エントリーポイントや設定ファイルを優先し、浅い階層から抜粋する
	sort.Slice(candidates, func(i, j int) bool {
		pi, pj := excerptPriority(candidates[i].Path), excerptPriority(candidates[j].Path)
		if pi != pj {
			return pi < pj
		}
		di, dj := pathDepth(candidates[i].Path), pathDepth(candidates[j].Path)
		if di != dj {
			return di < dj
		}
		return candidates[i].Path < candidates[j].Path
	})

	if len(candidates) > b.config.MaxExcerpts {
		candidates = candidates[:b.config.MaxExcerpts]
	}

	excerpts := make([]FileExcerpt, 0, len(candidates))
	for _, file := range candidates {
		excerpts = append(excerpts, FileExcerpt{
			Path:     file.Path,
			Language: enry.GetLanguage(filepath.Base(file.Path), []byte(file.Content)),
			Content:  trimChars(file.Content, b.config.MaxFileChars),
		})
	}

	snap := &Snapshot{
		Locator:     locator,
		Name:        name,
		CommitHash:  commitHash,
		Ref:         ref,
		GeneratedAt: time.Now(),
		TotalFiles:  len(files),
		Languages:   languages,
		TreeText:    buildTreeText(paths),
		Excerpts:    excerpts,
		Readme:      readme,
	}

	b.applyTokenBudget(snap)
	return snap
}

// applyTokenBudget はコンテキスト全体をトークン上限に収める
func (b *Builder) applyTokenBudget(snap *Snapshot) {
	if b.tokenCounter == nil {
		return
	}

	count := func() int {
		return b.tokenCounter.CountTokens(snap.TreeText + "\n" + snap.ExcerptsText() + "\n" + snap.Readme)
	}

	tokens := count()
	if b.config.MaxContextTokens <= 0 {
		snap.ContextTokens = tokens
		return
	}
	for tokens > b.config.MaxContextTokens && len(snap.Excerpts) > 0 {
		snap.Excerpts = snap.Excerpts[:len(snap.Excerpts)-1]
		tokens = count()
	}

	// 抜粋を全て落としても超える場合はツリー自体を切り詰める
	if tokens > b.config.MaxContextTokens {
		snap.TreeText = b.tokenCounter.TrimToTokenLimit(snap.TreeText, b.config.MaxContextTokens)
		tokens = count()
	}

	snap.ContextTokens = tokens
}

// isReadme はREADMEファイルかどうかを判定する
func isReadme(path string) bool {
	return strings.HasPrefix(strings.ToLower(filepath.Base(path)), "readme")
}

// pathDepth はパスの階層の深さを返す
func pathDepth(path string) int {
	return strings.Count(path, "/")
}

// excerptPriority は抜粋の優先度を返す。数値が小さいほど優先される
func excerptPriority(path string) int {
	switch strings.ToLower(filepath.Base(path)) {
	case "main.go", "main.py", "index.js", "index.ts", "app.py", "app.js", "server.go", "server.js", "manage.py":
		return 0
	case "go.mod", "package.json", "pyproject.toml", "requirements.txt", "cargo.toml", "pom.xml", "build.gradle", "gemfile", "composer.json":
		return 1
	case "dockerfile", "docker-compose.yml", "docker-compose.yaml", "makefile":
		return 2
	}
	return 3
}

// trimChars は文字数上限で切り詰める
func trimChars(s string, max int) string {
	if max <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}

// buildTreeText はファイルパス一覧をインデント付きツリー表現に整形する
func buildTreeText(paths []string) string {
	sorted := make([]string, len(paths))
	copy(sorted, paths)
	sort.Strings(sorted)

	var sb strings.Builder
	seen := make(map[string]bool)
	for _, path := range sorted {
		parts := strings.Split(path, "/")
		for i := 0; i < len(parts)-1; i++ {
			dir := strings.Join(parts[:i+1], "/")
			if !seen[dir] {
				seen[dir] = true
				sb.WriteString(strings.Repeat("  ", i))
				sb.WriteString(parts[i])
				sb.WriteString("/\n")
			}
		}
		sb.WriteString(strings.Repeat("  ", len(parts)-1))
		sb.WriteString(parts[len(parts)-1])
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

// defaultIgnorePatterns はスナップショットから除外するパスのパターンを返す
func defaultIgnorePatterns() []string {
	return []string{
		// Git関連
		".git",
		".gitignore",
		".gitattributes",
		".gitmodules",

		// 依存関係・ビルド成果物
		"node_modules",
		"vendor",
		"dist",
		"build",
		"target",
		"out",
		"bin",
		"obj",
		".next",
		".nuxt",

		// IDE/エディタ関連
		".vscode",
		".idea",
		".DS_Store",
		"*.swp",
		"*.swo",
		"*~",

		// ログ・一時ファイル
		"*.log",
		"logs",
		"*.tmp",
		"*.temp",
		"tmp",
		"temp",

		// 環境変数・機密情報
		".env",
		".env.local",
		".env.*.local",
		"*.pem",
		"*.key",
		"*.crt",
		"*.p12",

		// バイナリファイル
		"*.exe",
		"*.dll",
		"*.so",
		"*.dylib",
		"*.a",
		"*.o",
		"*.jar",
		"*.war",
		"*.zip",
		"*.tar",
		"*.gz",
		"*.bz2",
		"*.7z",
		"*.rar",

		// 画像・メディアファイル
		"*.png",
		"*.jpg",
		"*.jpeg",
		"*.gif",
		"*.bmp",
		"*.ico",
		"*.svg",
		"*.webp",
		"*.mp4",
		"*.avi",
		"*.mov",
		"*.mp3",
		"*.wav",

		// フォント
		"*.ttf",
		"*.otf",
		"*.woff",
		"*.woff2",
		"*.eot",

		// データベースファイル
		"*.db",
		"*.sqlite",
		"*.sqlite3",

		// テストカバレッジ
		"coverage",
		".coverage",
		"*.cover",
		"*.lcov",

		// キャッシュ
		".cache",
		"*.cache",
		"__pycache__",
		"*.pyc",
		".pytest_cache",
	}
}
