package main

import (
	"context"
	"time"

	"envbadge/logger"
	"envbadge/webapi"

	"github.com/spf13/cobra"
)

const shutdownTimeout = 5 * time.Second

func newServeCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the rule service (HTTP API and scheduled imports)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, opts)
		},
	}
}

func runServe(cmd *cobra.Command, opts *globalOptions) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, mgr, err := opts.openManager()
	if err != nil {
		return err
	}
	logger.Infof("Loaded %d rules, %d blocklist entries", len(mgr.Rules()), len(mgr.Blocklist()))

	// 周期导入随 ctx 结束
	mgr.Start(ctx)

	webServer := webapi.NewServer(cfg, mgr)
	webServerDone := make(chan error, 1)
	go func() {
		webServerDone <- webServer.Start()
	}()

	select {
	case err := <-webServerDone:
		if err != nil {
			return err
		}
		// Web API 未启用时继续运行周期导入
		<-ctx.Done()
	case <-ctx.Done():
	}

	logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := webServer.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("Failed to stop Web API server: %v", err)
	}

	logger.Info("Server gracefully stopped.")
	return nil
}
