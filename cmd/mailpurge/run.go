package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/daviddao/mailpurge/internal/auth"
	"github.com/daviddao/mailpurge/internal/db"
	"github.com/daviddao/mailpurge/internal/display"
	"github.com/daviddao/mailpurge/internal/gmail"
	"github.com/daviddao/mailpurge/internal/prompt"
	"github.com/daviddao/mailpurge/internal/purge"
)

func runInteractive(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	display.Banner(out, Version)

	if _, err := os.Stat(cfg.CredentialsPath); err != nil {
		display.ErrorMsg(out, "Error: '%s' file not found.", cfg.CredentialsPath)
		display.Info(out, "Please create Gmail API credentials first.")
		return errReported
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		// After the first signal, restore default handling so a second one
		// exits even while blocked on stdin.
		<-ctx.Done()
		stop()
	}()

	oauthCfg, err := auth.LoadConfig(cfg.CredentialsPath)
	if err != nil {
		return err
	}
	authn := auth.New(oauthCfg, auth.NewFileStore(cfg.TokenPath, oauthCfg), out, logger)
	authn.OpenBrowser = !cfg.NoBrowser

	display.Info(out, "Logging into Gmail...")
	gsvc, err := authn.NewGmailService(ctx)
	if err != nil {
		return fmt.Errorf("log in: %w", err)
	}
	display.SuccessMsg(out, "Successfully logged in!")

	svc := purge.NewService(gmail.NewGoogleClient(gsvc), logger)
	ctrl := prompt.New(svc, cmd.InOrStdin(), out, logger)
	svc.Progress = ctrl.ReportBatch

	if cfg.HistoryEnabled() {
		store, err := db.Open(cfg.DBPath)
		if err != nil {
			logger.WarnContext(ctx, "run history disabled", "path", cfg.DBPath, "error", err)
		} else {
			defer store.Close()
			ctrl.Recorder = store
		}
	}

	if err := ctrl.Run(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			display.Info(out, "")
			display.Note(out, "Exiting.")
			return nil
		}
		return err
	}
	return nil
}
