// LMS API Gatewayのエントリポイント。
// 全てのクライアントリクエストを受け付け、パスに応じてバックエンドサービスへ転送する。
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"

	"github.com/nao1215/lms-gateway/internal/gateway"
	"github.com/nao1215/lms-gateway/internal/gateway/config"
	"github.com/nao1215/lms-gateway/pkg/log"
)

func main() {
	configPath := flag.String("config", os.Getenv("GATEWAY_CONFIG"), "設定ファイル（YAML）のパス")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("設定の読み込みに失敗")
	}
	if err := log.Setup(cfg.Log.Level, cfg.Log.Format); err != nil {
		log.Fatal().Err(err).Msg("ロガーの初期化に失敗")
	}
	gin.SetMode(gin.ReleaseMode)

	server, err := gateway.NewServer(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Gatewayサーバーの初期化に失敗")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := server.Run(ctx); err != nil {
		log.Error().Err(err).Msg("Gatewayサービスが異常終了しました")
		stop()
		os.Exit(1)
	}
	log.Info().Msg("Gatewayサービスを停止しました")
}
