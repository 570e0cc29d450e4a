package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/iudanet/dreamjournal/internal/logging"
	"github.com/iudanet/dreamjournal/internal/server"
	"github.com/iudanet/dreamjournal/internal/server/config"
)

var (
	// Version information set via ldflags during build
	Version   = "dev"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		configFile  string
		showVersion bool
	)
	v := viper.New()

	cmd := &cobra.Command{
		Use:           "dreamjournal-server",
		Short:         "Dream journal backend: document store and identity provider",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if showVersion {
				printVersion()
				return nil
			}
			if err := config.BindFlags(v, cmd.Flags()); err != nil {
				return err
			}
			return run(cmd.Context(), v, configFile)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&configFile, "config", "c", "", "Path to config file (yaml/toml/json)")
	flags.BoolVar(&showVersion, "version", false, "Show version information")
	flags.String("addr", ":8080", "HTTP listen address")
	flags.String("db-path", "dreamjournal.db", "Path to SQLite database")
	flags.String("jwt-secret", "", "JWT signing secret (>= 32 bytes)")
	flags.Duration("access-token-ttl", 0, "Access token lifetime")
	flags.Duration("refresh-token-ttl", 0, "Refresh token lifetime")
	flags.Bool("allow-anonymous-writes", false, "Accept journal writes without an identity")
	flags.String("log-level", "info", "Log level: debug, info, warn, error")
	flags.String("log-file", "", "Also write logs to this file (rotated)")
	flags.Duration("shutdown-timeout", 0, "Graceful shutdown timeout")

	return cmd
}

func run(ctx context.Context, v *viper.Viper, configFile string) error {
	cfg, err := config.Load(v, configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}

	logger, closer, err := logging.NewServer(logging.Config{Level: cfg.LogLevel, File: cfg.LogFile}, os.Stdout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	defer func() {
		_ = closer.Close()
	}()
	slog.SetDefault(logger)

	app, err := server.NewApp(ctx, cfg, logger, Version)
	if err != nil {
		logger.Error("failed to initialize server", slog.Any("error", err))
		return err
	}
	defer func() {
		if err := app.Close(); err != nil {
			logger.Error("failed to close database", slog.Any("error", err))
		}
	}()

	if err := app.Run(ctx); err != nil {
		logger.Error("server stopped with error", slog.Any("error", err))
		return err
	}

	logger.Info("server stopped")
	return nil
}

func printVersion() {
	fmt.Printf("Dream Journal Server\n")
	fmt.Printf("Version:    %s\n", Version)
	fmt.Printf("Build Date: %s\n", BuildDate)
	fmt.Printf("Git Commit: %s\n", GitCommit)
}
