package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/tendant/simple-sso/pkg/config"
)

func newLogger(cfg config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		AddSource: true, // Enables line number & file path
		Level:     cfg.LogLevel(),
	}
	if cfg.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

func main() {
	var envFile string
	var cfg config.Config

	root := &cobra.Command{
		Use:           "simple-sso",
		Short:         "Single sign-on against an external OAuth2 identity provider",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := config.Load(envFile)
			if err != nil {
				return err
			}
			cfg = loaded
			slog.SetDefault(newLogger(cfg))
			return nil
		},
	}
	root.PersistentFlags().StringVar(&envFile, "env-file", "", "path to a .env file (default: .env next to the binary or in the working directory)")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			return serve(cmd.Context(), cfg)
		},
	}

	policiesCmd := &cobra.Command{
		Use:   "policies",
		Short: "Print the effective realm policies",
		RunE: func(cmd *cobra.Command, args []string) error {
			return printPolicies(cmd.OutOrStdout(), cfg)
		},
	}

	envCmd := &cobra.Command{
		Use:   "env",
		Short: "List the environment variables",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			usage, err := config.Usage()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), usage)
			return nil
		},
	}

	root.AddCommand(serveCmd, policiesCmd, envCmd)

	if err := root.Execute(); err != nil {
		slog.Error("Command failed", "err", err)
		os.Exit(1)
	}
}
