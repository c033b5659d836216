package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/stsysd/koyomi/api"
	"github.com/stsysd/koyomi/config"
	"github.com/stsysd/koyomi/store"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

// signalContext は割り込みシグナルで終了するコンテキストを返します。
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// 設定の読み込み
			cfg, err := config.NewConfig()
			if err != nil {
				return err
			}
			logger := cfg.NewLogger()
			slog.SetDefault(logger)

			if cfg.APIKey == "" {
				return errors.New("KOYOMI_API_KEY is required")
			}

			// SQLiteストアの初期化（マイグレーション込み）
			sqliteStore, err := store.NewSQLiteStore(cfg.DataDir)
			if err != nil {
				return fmt.Errorf("failed to initialize SQLite store: %w", err)
			}
			defer sqliteStore.Close()

			// サーバーインスタンスの作成
			server := api.NewServer(sqliteStore, cfg, api.WithLogger(logger))
			httpServer := &http.Server{
				Addr:              ":" + cfg.Port,
				Handler:           server,
				ReadHeaderTimeout: 10 * time.Second,
			}

			ctx, stop := signalContext(cmd.Context())
			defer stop()

			g, ctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				logger.Info("Server starting", "addr", httpServer.Addr, "data_dir", cfg.DataDir)
				if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
			g.Go(func() error {
				<-ctx.Done()
				logger.Info("Server shutting down")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()
				return httpServer.Shutdown(shutdownCtx)
			})
			return g.Wait()
		},
	}
}
