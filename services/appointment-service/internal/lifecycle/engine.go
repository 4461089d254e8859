// Package lifecycle advances appointment status as the wall clock passes each appointment's
// start: pending, confirmed, in_progress, completed.
package lifecycle

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/salonbook/salonbook/services/appointment-service/internal/clock"
	"github.com/salonbook/salonbook/services/appointment-service/internal/model"
	"github.com/salonbook/salonbook/services/appointment-service/internal/storage"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

type Store interface {
	FindMany(ctx context.Context, f storage.Filter) ([]model.Appointment, error)
	UpdateStatus(ctx context.Context, id string, from, to model.Status) (bool, error)
}

// Recorder receives sweep outcomes.
type Recorder interface {
	ObserveTransitions(from, to string, n int)
	ObserveSweep(outcome string, took time.Duration)
}

const (
	ConfirmLookahead = 2 * time.Hour
	ArrivalWindow    = 5 * time.Minute
	CompleteAfter    = time.Hour
)

type Config struct {
	// CatchUp advances confirmed appointments whose arrival window already passed, e.g. after
	// downtime, instead of leaving them confirmed forever.
	CatchUp  bool
	Recorder Recorder
}

// transition moves rows in From to To when due reports true for their DateTime at now.
// bounds narrows the bulk read; due is the exact predicate.
type transition struct {
	from, to model.Status
	bounds   func(now time.Time) (time.Time, time.Time)
	due      func(at, now time.Time) bool
}

type Engine struct {
	store       Store
	clock       clock.Clock
	logger      *slog.Logger
	recorder    Recorder
	transitions []transition
}

func NewEngine(store Store, clk clock.Clock, logger *slog.Logger, cfg Config) *Engine {
	return &Engine{
		store:       store,
		clock:       clk,
		logger:      logger,
		recorder:    cfg.Recorder,
		transitions: transitions(cfg.CatchUp),
	}
}

// upTo makes an inclusive upper bound from the half-open filter range.
func upTo(t time.Time) time.Time { return t.Add(model.SlotPrecision) }

func transitions(catchUp bool) []transition {
	started := transition{
		from: model.StatusConfirmed,
		to:   model.StatusInProgress,
		bounds: func(now time.Time) (time.Time, time.Time) {
			return now.Add(-ArrivalWindow), upTo(now)
		},
		due: func(at, now time.Time) bool {
			return !at.Before(now.Add(-ArrivalWindow)) && !at.After(now)
		},
	}
	if catchUp {
		started.bounds = func(now time.Time) (time.Time, time.Time) {
			return time.Time{}, upTo(now)
		}
		started.due = func(at, now time.Time) bool {
			return !at.After(now)
		}
	}

	return []transition{
		{
			from: model.StatusPending,
			to:   model.StatusConfirmed,
			bounds: func(now time.Time) (time.Time, time.Time) {
				return time.Time{}, upTo(now.Add(ConfirmLookahead))
			},
			due: func(at, now time.Time) bool {
				return !at.After(now.Add(ConfirmLookahead))
			},
		},
		started,
		{
			from: model.StatusInProgress,
			to:   model.StatusCompleted,
			bounds: func(now time.Time) (time.Time, time.Time) {
				return time.Time{}, upTo(now.Add(-CompleteAfter))
			},
			due: func(at, now time.Time) bool {
				return !at.After(now.Add(-CompleteAfter))
			},
		},
	}
}

type Result struct {
	At        time.Time
	Confirmed int
	Started   int
	Completed int
	// Skipped counts rows changed by someone else between the read and the write.
	Skipped int
}

func (r Result) Total() int {
	return r.Confirmed + r.Started + r.Completed
}

func (r *Result) add(to model.Status, n int) {
	switch to {
	case model.StatusConfirmed:
		r.Confirmed += n
	case model.StatusInProgress:
		r.Started += n
	case model.StatusCompleted:
		r.Completed += n
	}
}

// Sweep evaluates every transition at the current clock time, in lifecycle order, so a row may
// move more than one step in a single sweep. Writes are conditional on the row still holding the
// source status; a status changed concurrently is never overwritten. The first repository error
// abandons the sweep.
func (e *Engine) Sweep(ctx context.Context) (Result, error) {
	started := time.Now()
	now := e.clock.Now()
	res := Result{At: now}

	ctx, span := otel.Tracer("lifecycle").Start(ctx, "lifecycle.sweep")
	defer span.End()

	for _, tr := range e.transitions {
		n, skipped, err := e.apply(ctx, tr, now)
		res.add(tr.to, n)
		res.Skipped += skipped
		if n > 0 && e.recorder != nil {
			e.recorder.ObserveTransitions(string(tr.from), string(tr.to), n)
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "sweep abandoned")
			e.observe("error", started)
			return res, fmt.Errorf("sweep %s->%s: %w", tr.from, tr.to, err)
		}
	}

	span.SetAttributes(
		attribute.Int("lifecycle.confirmed", res.Confirmed),
		attribute.Int("lifecycle.started", res.Started),
		attribute.Int("lifecycle.completed", res.Completed),
	)
	e.observe("ok", started)
	return res, nil
}

func (e *Engine) apply(ctx context.Context, tr transition, now time.Time) (int, int, error) {
	from, to := tr.bounds(now)
	candidates, err := e.store.FindMany(ctx, storage.Filter{
		Statuses: []model.Status{tr.from},
		From:     from,
		To:       to,
	})
	if err != nil {
		return 0, 0, err
	}

	changed, skipped := 0, 0
	for _, appt := range candidates {
		if !tr.due(appt.DateTime, now) {
			continue
		}
		ok, err := e.store.UpdateStatus(ctx, appt.ID, tr.from, tr.to)
		if err != nil {
			return changed, skipped, err
		}
		if !ok {
			skipped++
			continue
		}
		changed++
		e.logger.Debug("appointment status advanced",
			"appointment_id", appt.ID,
			"from", string(tr.from),
			"to", string(tr.to),
		)
	}
	return changed, skipped, nil
}

func (e *Engine) observe(outcome string, started time.Time) {
	if e.recorder != nil {
		e.recorder.ObserveSweep(outcome, time.Since(started))
	}
}
