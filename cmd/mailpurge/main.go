package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/daviddao/mailpurge/internal/config"
	"github.com/daviddao/mailpurge/internal/display"
)

// Version is set via ldflags at build time.
var Version = "dev"

// errReported marks failures that were already printed for the user.
var errReported = errors.New("reported")

var rootCmd = &cobra.Command{
	Use:   "mailpurge",
	Short: "mailpurge - delete Gmail messages in bulk by sender",
	Long: `mailpurge asks for a sender, estimates how many messages match, and after
two confirmations deletes them in batches of up to 500.

Press Ctrl-C to stop the current search or deletion; press it again to exit
while waiting for input.`,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runInteractive,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "mailpurge version %s\n", Version)
	},
}

func init() {
	config.RegisterFlags(rootCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadConfig reads .env, resolves flags and builds the logger.
func loadConfig(cmd *cobra.Command) (config.Config, *slog.Logger, error) {
	if err := config.LoadDotEnv(".env"); err != nil {
		return config.Config{}, nil, err
	}
	cfg, err := config.Load(cmd)
	if err != nil {
		return config.Config{}, nil, err
	}
	logger, err := setupLogger(cfg)
	if err != nil {
		return config.Config{}, nil, err
	}
	slog.SetDefault(logger)
	return cfg, logger, nil
}

func setupLogger(cfg config.Config) (*slog.Logger, error) {
	lvl, err := config.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	level := new(slog.LevelVar)
	level.Set(lvl)
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})), nil
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		if !errors.Is(err, errReported) {
			display.ErrorMsg(os.Stderr, "Error: %v", err)
		}
		os.Exit(1)
	}
}
