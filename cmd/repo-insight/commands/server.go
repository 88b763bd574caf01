package commands

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/jinford/repo-insight/internal/interface/httpserver"
)

// ServerStartAction はHTTPサーバを起動するコマンドのアクション
func ServerStartAction(ctx context.Context, cmd *cli.Command) error {
	envFile := cmd.String("env")

	// 共通コンテキストの初期化
	appCtx, err := NewAppContext(envFile)
	if err != nil {
		return err
	}

	// ポートの優先順位: --port > 環境変数 > デフォルト
	cfg := appCtx.Config
	if cmd.IsSet("port") {
		cfg.Server.Port = cmd.Int("port")
	}

	cont := appCtx.Container
	backends := httpserver.NewBackendViews(cont.AnalysisService, cont.LLMKeys())
	handlers := httpserver.NewHandlers(cont.JobService, cont.JobQuery, backends,
		httpserver.WithHandlersLogger(cont.Logger()),
	)
	router := httpserver.NewRouter(handlers)
	server := httpserver.New(cfg.Server.Addr(), router,
		httpserver.WithServerLogger(cont.Logger()),
	)

	if err := server.Run(ctx); err != nil {
		return fmt.Errorf("サーバの起動に失敗: %w", err)
	}

	return nil
}
