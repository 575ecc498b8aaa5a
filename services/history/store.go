// Package history keeps what past runs saw and which available slots
// were already announced.
package history

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"courtwatch/lib/slots"
	"courtwatch/lib/telemetry"
	"courtwatch/lib/timezone"
	"courtwatch/services/acquisition"
	"courtwatch/services/history/db"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = telemetry.Tracer("courtwatch.services.history")

const DefaultRetention = 7 * 24 * time.Hour

type Options struct {
	// Retention is how long runs and notification marks are kept.
	Retention time.Duration
	Now       func() time.Time
}

type Store struct {
	db   *sql.DB
	qry  *db.Queries
	opts Options
}

func NewStore(database *sql.DB, opts Options) Store {
	if opts.Retention <= 0 {
		opts.Retention = DefaultRetention
	}
	if opts.Now == nil {
		opts.Now = timezone.Now
	}
	return Store{
		db:   database,
		qry:  db.New(database),
		opts: opts,
	}
}

// RecordReport stores a run with every target result and classified
// slot. A slot seen booked loses its notification mark so that it is
// announced again once it frees up.
func (s Store) RecordReport(ctx context.Context, report acquisition.Report) error {
	ctx, span := tracer.Start(ctx, "RecordReport")
	defer span.End()
	span.SetAttributes(attribute.String("run_id", report.RunID))

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	defer tx.Rollback()
	txqry := s.qry.WithTx(tx)

	err = txqry.CreateRun(ctx, db.CreateRunParams{
		ID:               report.RunID,
		StartedAt:        report.StartedAt.Unix(),
		FinishedAt:       report.FinishedAt.Unix(),
		Status:           report.Status.String(),
		Succeeded:        int64(report.Count(acquisition.Succeeded)),
		Failed:           int64(len(report.Results) - report.Count(acquisition.Succeeded)),
		DeadlineExceeded: report.DeadlineExceeded,
		LoginFailed:      report.LoginFailed,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to create run row")
		return err
	}

	for _, result := range report.Results {
		err := txqry.CreateResult(ctx, db.CreateResultParams{
			RunID:      report.RunID,
			VenueID:    int64(result.Target.Venue.ID),
			Date:       result.Target.Date,
			Outcome:    result.Outcome.String(),
			Path:       result.Path.String(),
			Diagnostic: result.Diagnostic,
		})
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to create result row")
			return err
		}
	}

	for _, slot := range report.Slots() {
		err := txqry.CreateObservation(ctx, db.CreateObservationParams{
			RunID:     report.RunID,
			VenueID:   int64(slot.Venue.ID),
			VenueName: slot.Venue.Name,
			Date:      slot.Date,
			Court:     slot.Court,
			TimeRange: slot.TimeRange,
			State:     slot.State.String(),
		})
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to create observation row")
			return err
		}
		if slot.State == slots.StateBooked {
			err = txqry.ForgetNotified(ctx, slot.Key())
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, "failed to clear notification mark")
				return err
			}
		}
	}

	err = tx.Commit()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}

// NewlyAvailable filters candidates down to the available slots no
// notification was sent for yet.
func (s Store) NewlyAvailable(ctx context.Context, candidates []slots.Slot) ([]slots.Slot, error) {
	ctx, span := tracer.Start(ctx, "NewlyAvailable")
	defer span.End()

	var out []slots.Slot
	for _, slot := range candidates {
		if slot.State != slots.StateAvailable {
			continue
		}
		count, err := s.qry.IsNotified(ctx, slot.Key())
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to check notification mark")
			return nil, err
		}
		if count == 0 {
			out = append(out, slot)
		}
	}
	span.SetAttributes(attribute.Int("new", len(out)))
	return out, nil
}

func (s Store) MarkNotified(ctx context.Context, notified []slots.Slot) error {
	ctx, span := tracer.Start(ctx, "MarkNotified")
	defer span.End()

	now := s.opts.Now().Unix()
	for _, slot := range notified {
		err := s.qry.MarkNotified(ctx, db.MarkNotifiedParams{
			SlotKey:    slot.Key(),
			NotifiedAt: now,
		})
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to mark slot notified")
			return err
		}
	}
	return nil
}

// Prune drops runs and notification marks older than the retention.
func (s Store) Prune(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "Prune")
	defer span.End()

	cutoff := s.opts.Now().Add(-s.opts.Retention).Unix()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	defer tx.Rollback()
	txqry := s.qry.WithTx(tx)

	// children first, foreign keys are not enforced on every driver
	steps := []func(context.Context, int64) error{
		txqry.DeleteObservationsBefore,
		txqry.DeleteResultsBefore,
		txqry.DeleteRunsBefore,
		txqry.DeleteNotifiedBefore,
	}
	for _, step := range steps {
		err := step(ctx, cutoff)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to prune history")
			return err
		}
	}

	err = tx.Commit()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	slog.DebugContext(ctx, "pruned history", "cutoff", time.Unix(cutoff, 0))
	return nil
}

func (s Store) RecentRuns(ctx context.Context, limit int) ([]db.Run, error) {
	ctx, span := tracer.Start(ctx, "RecentRuns")
	defer span.End()

	runs, err := s.qry.GetRecentRuns(ctx, int64(limit))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return runs, nil
}

func (s Store) RunResults(ctx context.Context, runID string) ([]db.Result, error) {
	return s.qry.GetRunResults(ctx, runID)
}
