package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/stockhunter/internal/api"
	"github.com/wonny/stockhunter/internal/api/handlers"
	"github.com/wonny/stockhunter/internal/market"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "API 서버 시작",
	Long: `REST API 서버를 시작합니다.

Endpoints:
  GET  /health
  POST /api/v1/screen
  POST /api/v1/validate-credentials
  GET  /api/v1/stock-codes
  POST /api/v1/us/screen
  GET  /api/v1/us/symbols
  GET  /api/v1/database/status
  GET  /api/v1/database/stock-master
  GET  /api/v1/database/progress
  POST /api/v1/database/initialize
  POST /api/v1/database/update
  POST /api/v1/database/sync-stock-names
  POST /api/v1/database/upload-stock-master

Example:
  go run ./cmd/stockhunter serve
  go run ./cmd/stockhunter serve --port 8080`,
	RunE: runServe,
}

var servePort string

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&servePort, "port", "", "API 서버 포트 (기본: 설정값)")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if servePort != "" {
		a.cfg.Port = servePort
	}

	screenHandler := handlers.NewScreenHandler(a.engine, a.kr, a.us, a.log)
	databaseHandler := handlers.NewDatabaseHandler(
		a.collector, a.prices, a.masters, a.masterCache,
		func(appKey, appSecret string, isProduction bool) (*market.Provider, error) {
			return a.buildKR(appKey, appSecret, isProduction)
		},
		a.log,
	)
	authHandler := handlers.NewAuthHandler(a.validateCredentials, a.log)

	router := api.NewRouter(screenHandler, databaseHandler, authHandler, a.log)
	server := api.New(a.cfg, a.log, router)

	go func() {
		if err := server.Start(); err != nil {
			a.log.WithError(err).Fatal("Failed to start server")
		}
	}()

	fmt.Printf("✅ Server running on http://localhost:%s\n", a.cfg.Port)
	fmt.Println("Press Ctrl+C to stop")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	return nil
}
