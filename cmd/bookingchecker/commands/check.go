package commands

import (
	"context"
	"log/slog"
	"os"
	"time"

	"bookingchecker/internal/checker"
	"bookingchecker/internal/components/telemetry"
	"bookingchecker/internal/config"
	"bookingchecker/internal/notify"
	"bookingchecker/lib/serviceutil"

	"github.com/spf13/cobra"
)

var dryRun *bool

func init() {
	dryRun = checkCmd.Flags().Bool("dry-run", false, "Print messages instead of sending them.")
	rootCmd.AddCommand(checkCmd)
}

func shutdown(otlp telemetry.Telemetry) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := otlp.Shutdown(ctx)
	if err != nil {
		slog.Warn("failed to flush traces", "err", err.Error())
	}
}

// validateNotify skips the transport credentials on a dry run.
func validateNotify(cfg config.Config, dryRun bool) error {
	if dryRun {
		return cfg.ValidateAddresses()
	}
	return cfg.ValidateNotify()
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Checks for new available lessons and emails them if they were not notified before.",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()

		cfg, err := config.Load(*configPath)
		if err != nil {
			serviceutil.Fatal("failed to load config", err)
		}
		err = validateNotify(cfg, *dryRun)
		if err != nil {
			serviceutil.Fatal("failed to load config", err)
		}

		otlp, err := telemetry.SetupOtlp(ctx, "bookingchecker", cfg.Otlp)
		if err != nil {
			serviceutil.Fatal("failed to setup telemetry", err)
		}

		tel := telemetry.NewSlogAPI(nil)
		notifier := newNotifier(cfg.Notify, cfg.Elevcentralen.Timeout(), tel)
		if *dryRun {
			notifier = notify.Writer{W: os.Stdout}
		}

		a, err := newApp(ctx, cfg, tel, *dumpHttp)
		if err != nil {
			shutdown(otlp)
			serviceutil.Fatal("failed to initialize", err)
		}
		defer a.close()

		c := checker.NewChecker(checker.Options{
			Username:  cfg.Elevcentralen.Username,
			Password:  cfg.Elevcentralen.Password,
			TeacherId: cfg.Elevcentralen.TeacherId,
			Sender:    cfg.Notify.Sender,
			Receivers: cfg.Notify.Receivers,
		}, a.session, a.cache, notifier, tel)

		decision, err := c.Run(ctx)
		if err != nil {
			sendErr := c.ReportFailure(ctx, err)
			if sendErr != nil {
				slog.Error("failed to email error", "err", sendErr.Error())
			}
			shutdown(otlp)
			a.close()
			serviceutil.Fatal("check failed", err)
		}

		slog.Info(
			"check finished",
			"action", decision.Action.String(),
			"existing_days", len(decision.ExistingDaySlots),
			"new_days", len(decision.NewDaySlots),
		)
		shutdown(otlp)
	},
}
