package commands

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"time"

	"courtwatch/lib/dates"
	"courtwatch/lib/serviceutil"
	"courtwatch/lib/timezone"
	"courtwatch/services/acquisition"
	"courtwatch/services/history"
	historydb "courtwatch/services/history/db"
	"courtwatch/services/notify"

	"github.com/spf13/cobra"
)

var (
	checkVenues []string
	checkDates  []string
	checkDryRun bool
)

func init() {
	checkCmd.Flags().StringArrayVar(&checkVenues, "venue", nil, "Only check this venue (id or name), can be repeated.")
	checkCmd.Flags().StringArrayVar(&checkDates, "date", nil, "Check this date (YYYY-MM-DD) instead of the configured ones, can be repeated.")
	checkCmd.Flags().BoolVar(&checkDryRun, "dry-run", false, "Print the notification instead of sending it and leave history untouched.")
	rootCmd.AddCommand(checkCmd)
}

var errNoReport = errors.New("run produced no report")

var checkCmd = &cobra.Command{
	Use:   "check [--venue <venue>]... [--date <YYYY-MM-DD>]... [--dry-run]",
	Short: "Checks court availability once and notifies about newly available slots.",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := readConfig()
		err := check(cmd.Context(), cfg)
		if errors.Is(err, errNoReport) {
			os.Exit(1)
		}
		if err != nil {
			serviceutil.Fatal("check failed", err)
		}
	},
}

func resolveDates(cfg Config, explicit []string) []string {
	now := timezone.Now()
	if len(explicit) > 0 {
		return dates.Resolve(dates.Rule{Explicit: explicit}, now)
	}
	return dates.Resolve(cfg.Dates, now)
}

func check(ctx context.Context, cfg Config) error {
	venues, err := selectVenues(cfg.Venues, checkVenues)
	if err != nil {
		return err
	}
	days := resolveDates(cfg, checkDates)
	if len(days) == 0 {
		return errors.New("no dates to check")
	}

	notifier := notifierFor(cfg, checkDryRun)
	eng, err := newEngine(cfg, notifier)
	if err != nil {
		return err
	}

	slog.InfoContext(ctx, "checking availability", "venues", len(venues), "dates", days, "notifier", notifier.Name())
	started := time.Now()
	report := eng.orchestrator(venues, days).Run(ctx)
	slog.InfoContext(
		ctx, "run finished",
		"run_id", report.RunID,
		"status", report.Status.String(),
		"succeeded", report.Count(acquisition.Succeeded),
		"failed_recoverable", report.Count(acquisition.FailedRecoverable),
		"failed_fatal", report.Count(acquisition.FailedFatal),
		"seconds", time.Since(started).Seconds(),
	)

	// the notification is still sent after a cancelled run
	sendCtx := context.WithoutCancel(ctx)

	if report.Status == acquisition.StatusNoReport {
		err := notifier.Send(sendCtx, notify.FormatFailure(report))
		if err != nil {
			slog.ErrorContext(ctx, "failed to send error notification", "err", err)
		}
		return errNoReport
	}

	database, err := cfg.History.Database.OpenWithSchema(historydb.Schema)
	if err != nil {
		return err
	}
	defer database.Close()
	store := history.NewStore(database, history.Options{
		Retention: time.Duration(cfg.History.RetentionDays) * 24 * time.Hour,
	})

	if !checkDryRun {
		err = store.RecordReport(sendCtx, report)
		if err != nil {
			return err
		}
		err = store.Prune(sendCtx)
		if err != nil {
			slog.WarnContext(ctx, "failed to prune history", "err", err)
		}
	}

	fresh, err := store.NewlyAvailable(sendCtx, cfg.Preferences.Filter(report.Slots()))
	if err != nil {
		return err
	}
	if len(fresh) == 0 && !checkDryRun {
		slog.InfoContext(ctx, "no newly available slots")
		return nil
	}

	msg := notify.FormatReport(report, fresh, notify.FormatOptions{
		BookingURL: cfg.Site.Origin,
		MaxListed:  cfg.Preferences.MaxPerRun,
	})
	err = notifier.Send(sendCtx, msg)
	if err != nil {
		return err
	}
	if checkDryRun {
		return nil
	}
	return store.MarkNotified(sendCtx, fresh)
}
