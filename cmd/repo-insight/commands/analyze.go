package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/jinford/repo-insight/internal/core/analysis"
	"github.com/jinford/repo-insight/internal/core/job"
)

// AnalyzeRunAction はリポジトリ分析を同期実行するコマンドのアクション
func AnalyzeRunAction(ctx context.Context, cmd *cli.Command) error {
	envFile := cmd.String("env")
	url := cmd.String("url")
	typeStr := cmd.String("type")
	outFile := cmd.String("out")

	// 種別絞り込みの検証は実行前に行う
	var types []analysis.Type
	if typeStr != "" {
		t, err := analysis.ParseType(typeStr)
		if err != nil {
			return fmt.Errorf("分析種別の指定が不正: %w", err)
		}
		types = append(types, t)
	}

	// 共通コンテキストの初期化
	appCtx, err := NewAppContext(envFile)
	if err != nil {
		return err
	}

	slog.Info("リポジトリ分析を開始", "url", url)

	done, err := appCtx.Container.JobService.RunSync(ctx, url)
	if err != nil {
		return fmt.Errorf("分析の実行に失敗: %w", err)
	}

	view, err := appCtx.Container.JobQuery.Result(done.ID, types...)
	if err != nil {
		return fmt.Errorf("結果の取得に失敗: %w", err)
	}

	if view.Status == job.StatusFailed {
		return fmt.Errorf("分析に失敗しました: %s", view.Error)
	}

	data, err := json.MarshalIndent(view, "", "  ")
	if err != nil {
		return fmt.Errorf("結果のエンコードに失敗: %w", err)
	}

	if outFile != "" {
		if err := os.WriteFile(outFile, data, 0644); err != nil {
			return fmt.Errorf("結果の書き込みに失敗: %w", err)
		}
		slog.Info("分析結果を書き出しました", "out", outFile)
		return nil
	}

	fmt.Println(string(data))
	return nil
}
