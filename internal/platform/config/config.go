package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// analysisTypes は分析種別ごとのAPIキー環境変数を引くための種別名一覧
var analysisTypes = []string{
	"architecture_flow",
	"mind_map",
	"code_quality",
	"security",
	"performance",
}

// Config はアプリケーション全体の設定を保持します
type Config struct {
	// HTTPサーバ設定
	Server ServerConfig

	// Git設定
	Git GitConfig

	// LLMバックエンド設定
	LLM LLMConfig

	// 分析ジョブ設定
	Analysis AnalysisConfig

	// スナップショット構築設定
	Snapshot SnapshotConfig

	// ログ設定
	Log LogConfig
}

// ServerConfig はHTTPサーバ設定
type ServerConfig struct {
	Host string
	Port int
}

// Addr はリッスンアドレスを返します
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// GitConfig はGit操作設定
type GitConfig struct {
	CloneDir      string
	SSHKeyPath    string
	SSHPassword   string // SSH秘密鍵のパスワード（パスフレーズ）
	DefaultBranch string // デフォルトブランチ名（例: main, master）
}

// LLMConfig はLLMバックエンド設定
type LLMConfig struct {
	APIKey   string
	BaseURL  string
	Model    string
	TypeKeys map[string]string // 分析種別ごとの個別APIキー（未設定時は APIKey を使用）
}

// KeyFor は分析種別に対する実効APIキーを返します
func (c LLMConfig) KeyFor(analysisType string) string {
	if key, ok := c.TypeKeys[analysisType]; ok && key != "" {
		return key
	}
	return c.APIKey
}

// AnalysisConfig は分析ジョブ設定
type AnalysisConfig struct {
	MaxAttempts  int
	BaseBackoff  time.Duration
	MaxBackoff   time.Duration
	SingleFlight bool // 同一リポジトリの並行分析を拒否するかどうか
}

// SnapshotConfig はスナップショット構築設定
type SnapshotConfig struct {
	MaxFileChars     int
	MaxReadmeChars   int
	MaxExcerpts      int
	MaxContextTokens int
}

// LogConfig はログ設定
type LogConfig struct {
	Level  string // "debug", "info", "warn", "error"
	Format string // "json" or "text"
}

// Load は環境変数または.envファイルから設定を読み込みます
func Load(envFilePath string) (*Config, error) {
	// .envファイルが存在する場合は読み込む
	if envFilePath != "" {
		if err := godotenv.Load(envFilePath); err != nil {
			// ファイルが存在しない場合はエラーとしない（環境変数のみで動作可能）
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to load .env file: %w", err)
			}
		}
	}

	typeKeys := make(map[string]string)
	for _, t := range analysisTypes {
		envName := "LLM_API_KEY_" + strings.ToUpper(t)
		if key := os.Getenv(envName); key != "" {
			typeKeys[t] = key
		}
	}

	cfg := &Config{
		Server: ServerConfig{
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
			Port: getEnvAsInt("SERVER_PORT", 8080),
		},
		Git: GitConfig{
			CloneDir:      getEnv("GIT_CLONE_DIR", "/var/lib/repo-insight/repos"),
			SSHKeyPath:    getEnv("GIT_SSH_KEY_PATH", ""),
			SSHPassword:   getEnv("GIT_SSH_PASSWORD", ""),
			DefaultBranch: getEnv("GIT_DEFAULT_BRANCH", "main"),
		},
		LLM: LLMConfig{
			APIKey:   getEnv("OPENAI_API_KEY", ""),
			BaseURL:  getEnv("LLM_BASE_URL", ""),
			Model:    getEnv("LLM_MODEL", "gpt-4o-mini"),
			TypeKeys: typeKeys,
		},
		Analysis: AnalysisConfig{
			MaxAttempts:  getEnvAsInt("ANALYSIS_MAX_ATTEMPTS", 3),
			BaseBackoff:  getEnvAsDuration("ANALYSIS_BASE_BACKOFF", 2*time.Second),
			MaxBackoff:   getEnvAsDuration("ANALYSIS_MAX_BACKOFF", 32*time.Second),
			SingleFlight: getEnvAsBool("ANALYSIS_SINGLE_FLIGHT", true),
		},
		Snapshot: SnapshotConfig{
			MaxFileChars:     getEnvAsInt("SNAPSHOT_MAX_FILE_CHARS", 2000),
			MaxReadmeChars:   getEnvAsInt("SNAPSHOT_MAX_README_CHARS", 4000),
			MaxExcerpts:      getEnvAsInt("SNAPSHOT_MAX_EXCERPTS", 50),
			MaxContextTokens: getEnvAsInt("SNAPSHOT_MAX_CONTEXT_TOKENS", 8000),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	return cfg, nil
}

// getEnv は環境変数を取得し、存在しない場合はデフォルト値を返します
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt は環境変数を整数として取得します
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsBool は環境変数を真偽値として取得します
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDuration は環境変数を時間として取得します（例: "2s", "500ms"）
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
