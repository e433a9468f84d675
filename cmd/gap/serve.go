package main

import (
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mindthegap/mindthegap/internal/api"
)

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the reconciliation HTTP API",
		Long: `Serve the preview, apply and summaries endpoints. Authentication is
handled by the surrounding deployment; this service trusts the user ID in
the request path.`,
		RunE: runServe,
	}

	cmd.Flags().String("addr", "", "listen address (default from server.addr config)")
	_ = viper.BindPFlag("server.addr", cmd.Flags().Lookup("addr"))

	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	store, err := initStorage(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	maintainer, err := initMaintainer(store)
	if err != nil {
		return err
	}

	server := api.NewServer(store, maintainer)

	addr := viper.GetString("server.addr")
	slog.Info("Starting HTTP server", "addr", addr)

	go func() {
		<-ctx.Done()
		if err := server.Shutdown(); err != nil {
			slog.Error("Server shutdown failed", "error", err)
		}
	}()

	return server.Listen(addr)
}
