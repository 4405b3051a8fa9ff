// Package ingest turns weekly attendance payloads into stored attendance rows.
// The engine knows nothing about the processed-period ledger; callers decide
// whether a period may run.
package ingest

import (
	"context"

	"github.com/patrickmn/go-cache"
	"github.com/tphakala/shiftledger/internal/datastore"
	"github.com/tphakala/shiftledger/internal/errors"
	"github.com/tphakala/shiftledger/internal/input"
	"github.com/tphakala/shiftledger/internal/logger"
	"github.com/tphakala/shiftledger/internal/report"
)

// Store is the persistence the engine needs.
type Store interface {
	EmployeeExists(ctx context.Context, email string) (bool, error)
	UpsertAttendance(ctx context.Context, rec *datastore.WeeklyAttendance) error
}

// Result is the outcome of ingesting one period.
type Result struct {
	PeriodKey       string
	Affected        int
	Rejected        int // malformed entries
	RejectedUnknown int // entries for emails not on the roster
	Rejections      errors.Rejections
	Rows            []report.Row
}

// Engine ingests weekly payloads.
type Engine struct {
	store           Store
	expectedDefault float64
	known           *cache.Cache
	log             logger.Logger
}

// NewEngine creates an engine. expectedDefault applies to payloads without expectedHours.
func NewEngine(store Store, expectedDefault float64, log logger.Logger) *Engine {
	if log == nil {
		log = logger.Global().Module("ingest")
	}
	return &Engine{
		store:           store,
		expectedDefault: expectedDefault,
		// Only positive lookups are cached and employees are never deleted,
		// so entries never go stale and no janitor is needed.
		known: cache.New(cache.NoExpiration, 0),
		log:   log,
	}
}

// Ingest upserts every valid entry of payload under key.
func (e *Engine) Ingest(ctx context.Context, key string, payload *input.WeeklyPayload) (Result, error) {
	res := Result{PeriodKey: key}
	log := e.log.With(logger.String("period", key))

	expected := payload.ExpectedHours.Float(e.expectedDefault)
	if payload.ExpectedHours.Invalid() {
		log.Warn("expectedHours is not a number, using default", logger.Float64("default", e.expectedDefault))
		expected = e.expectedDefault
	}
	weekStart := payload.WeekStart.Optional()
	weekEnd := payload.WeekEnd.Optional()

	for _, entry := range payload.Entries {
		rec, err := entry.Normalize()
		if err != nil {
			res.Rejected++
			res.Rejections.Add(rec.Email, err.Error())
			log.Warn("rejected weekly entry", logger.String("email", rec.Email), logger.String("reason", err.Error()))
			continue
		}

		known, err := e.isKnown(ctx, rec.Email)
		if err != nil {
			return res, err
		}
		if !known {
			res.RejectedUnknown++
			res.Rejections.Add(rec.Email, "employee not found")
			log.Warn("rejected weekly entry", logger.String("email", rec.Email), logger.String("reason", "employee not found"))
			continue
		}

		ratio := rec.OnTimeRatio()
		row := &datastore.WeeklyAttendance{
			WeekKey:       key,
			Email:         rec.Email,
			WeekStart:     weekStart,
			WeekEnd:       weekEnd,
			HoursWorked:   rec.HoursWorked,
			OnTimeRatio:   ratio,
			LateCount:     rec.LateCount,
			MajorIssues:   rec.MajorIssues,
			ExpectedHours: expected,
		}
		if err := e.store.UpsertAttendance(ctx, row); err != nil {
			return res, err
		}

		res.Affected++
		res.Rows = append(res.Rows, report.Row{
			WeekKey:     key,
			Email:       rec.Email,
			HoursWorked: rec.HoursWorked,
			OnTimeRatio: ratio,
			Status:      report.Classify(rec.HoursWorked, expected),
		})
	}

	log.Info("period ingested",
		logger.Int("affected", res.Affected),
		logger.Int("rejected", res.Rejected),
		logger.Int("rejected_unknown", res.RejectedUnknown))
	return res, nil
}

func (e *Engine) isKnown(ctx context.Context, email string) (bool, error) {
	if _, ok := e.known.Get(email); ok {
		return true, nil
	}
	exists, err := e.store.EmployeeExists(ctx, email)
	if err != nil {
		return false, err
	}
	if exists {
		e.known.SetDefault(email, struct{}{})
	}
	return exists, nil
}
