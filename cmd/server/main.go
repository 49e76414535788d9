package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/agriai/agriai-server/internal/app"
	"github.com/agriai/agriai-server/internal/auth"
	"github.com/agriai/agriai-server/internal/config"
	"github.com/agriai/agriai-server/internal/log"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		configPath string
		overrides  config.Config
	)

	serve := func(cmd *cobra.Command, _ []string) error {
		bootLogger := log.New("info")
		cfg, path, err := config.Load(bootLogger, configPath)
		if err != nil {
			return err
		}
		cfg.UpdateFrom(overrides)

		logger := newLogger(cfg)
		logger.Info().Str("config", path).Msg("configuration loaded")

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		application, err := app.New(&cfg, logger)
		if err != nil {
			return fmt.Errorf("init app: %w", err)
		}

		logger.Info().Str("addr", cfg.Addr).Msg("starting agriai realtime server")
		if err := application.Run(ctx); err != nil {
			return fmt.Errorf("server exited: %w", err)
		}
		logger.Info().Msg("server stopped")
		return nil
	}

	root := &cobra.Command{
		Use:           "agriai-server",
		Short:         "Realtime notifications and call signaling for the AgriAI platform",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          serve,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file")

	flags := root.Flags()
	flags.StringVar(&overrides.Addr, "addr", "", "HTTP listen address")
	flags.DurationVar(&overrides.ReadHeaderTimeout, "read-header-timeout", 0, "HTTP read header timeout")
	flags.DurationVar(&overrides.ShutdownTimeout, "shutdown-timeout", 0, "graceful shutdown timeout")
	flags.StringVar(&overrides.LogLevel, "log-level", "", "log level (debug, info, warn, error)")
	flags.StringVar(&overrides.LogFormat, "log-format", "", "log format (console or json)")
	flags.StringVar(&overrides.DatabasePath, "db", "", "SQLite database path")
	flags.BoolVar(&overrides.JWTRequired, "jwt-required", false, "reject websocket commands before an authenticated hello")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and websocket server",
		RunE:  serve,
	}
	serveCmd.Flags().AddFlagSet(flags)

	root.AddCommand(serveCmd, newTokenCmd(&configPath))
	return root
}

// newTokenCmd mints a token with the configured secret, for local testing.
func newTokenCmd(configPath *string) *cobra.Command {
	var (
		role string
		ttl  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token <user-id>",
		Short: "Print a signed access token for a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			nop := zerolog.Nop()
			cfg, _, err := config.Load(&nop, *configPath)
			if err != nil {
				return err
			}
			if ttl > 0 {
				cfg.JWTTTL = ttl
			}
			token, err := auth.GenerateToken(&auth.JWTConfig{
				Secret:   []byte(cfg.JWTSecret),
				Issuer:   cfg.JWTIssuer,
				Audience: cfg.JWTAudience,
				TTL:      cfg.JWTTTL,
			}, args[0], role)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&role, "role", "", "role claim, e.g. admin")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (defaults to jwt_ttl)")
	return cmd
}

func newLogger(cfg config.Config) *zerolog.Logger {
	if cfg.LogFormat == "json" {
		return log.NewJSON(cfg.LogLevel)
	}
	return log.New(cfg.LogLevel)
}
