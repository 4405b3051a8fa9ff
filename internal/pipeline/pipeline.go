// Package pipeline runs one end-to-end batch: roster sync, ingestion of every
// pending period, aggregation, promotion, reports and the run record.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"
	"github.com/tphakala/shiftledger/internal/aggregate"
	"github.com/tphakala/shiftledger/internal/conf"
	"github.com/tphakala/shiftledger/internal/datastore"
	"github.com/tphakala/shiftledger/internal/errors"
	"github.com/tphakala/shiftledger/internal/export"
	"github.com/tphakala/shiftledger/internal/ingest"
	"github.com/tphakala/shiftledger/internal/logger"
	"github.com/tphakala/shiftledger/internal/notification"
	"github.com/tphakala/shiftledger/internal/observability"
	"github.com/tphakala/shiftledger/internal/observability/metrics"
	"github.com/tphakala/shiftledger/internal/period"
	"github.com/tphakala/shiftledger/internal/promotion"
	"github.com/tphakala/shiftledger/internal/report"
	"github.com/tphakala/shiftledger/internal/roster"
)

// RunOptions describe one invocation.
type RunOptions struct {
	Trigger   string // datastore.TriggerManual, TriggerSchedule or TriggerCatchup
	PeriodKey string // target period; derived from the clock when empty
}

// Pipeline is the batch orchestrator.
type Pipeline struct {
	settings *conf.Settings
	store    datastore.Interface
	fs       afero.Fs
	loc      *time.Location
	now      func() time.Time
	exporter *export.Exporter
	notifier *notification.Notifier
	metrics  *observability.Metrics
	log      logger.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithFs sets the filesystem for inputs and reports.
func WithFs(fs afero.Fs) Option { return func(p *Pipeline) { p.fs = fs } }

// WithClock sets the time source.
func WithClock(now func() time.Time) Option { return func(p *Pipeline) { p.now = now } }

// WithExporter overrides the exporter built from settings.
func WithExporter(e *export.Exporter) Option { return func(p *Pipeline) { p.exporter = e } }

// WithNotifier overrides the notifier built from settings.
func WithNotifier(n *notification.Notifier) Option { return func(p *Pipeline) { p.notifier = n } }

// WithMetrics overrides the metrics built from settings.
func WithMetrics(m *observability.Metrics) Option { return func(p *Pipeline) { p.metrics = m } }

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option { return func(p *Pipeline) { p.log = l } }

// New creates a pipeline over an open store. Export targets, notifications and
// metrics are built from settings unless supplied as options.
func New(settings *conf.Settings, store datastore.Interface, opts ...Option) (*Pipeline, error) {
	p := &Pipeline{
		settings: settings,
		store:    store,
		fs:       afero.NewOsFs(),
		loc:      settings.Location(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.log == nil {
		p.log = logger.Global().Module("pipeline")
	}

	var err error
	if p.exporter == nil {
		if p.exporter, err = export.New(p.fs, settings.Export.Targets, p.log.Module("export")); err != nil {
			return nil, err
		}
	}
	if p.notifier == nil {
		if p.notifier, err = notification.New(settings.Notification, p.log.Module("notification")); err != nil {
			return nil, err
		}
	}
	if p.metrics == nil && settings.Metrics.Enabled {
		if p.metrics, err = observability.NewMetrics(); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// Location returns the reference timezone.
func (p *Pipeline) Location() *time.Location { return p.loc }

// Run executes a batch. The run record is always finished, as failed when an
// error aborts the batch. The returned summary is non-nil whenever the run
// record could be created.
func (p *Pipeline) Run(ctx context.Context, opts RunOptions) (*Summary, error) {
	started := p.now()
	if opts.Trigger == "" {
		opts.Trigger = datastore.TriggerManual
	}
	if opts.PeriodKey == "" {
		opts.PeriodKey = period.KeyFor(started, p.loc)
	}

	run := &datastore.Run{
		UUID:      uuid.NewString(),
		PeriodKey: opts.PeriodKey,
		Trigger:   opts.Trigger,
	}
	if err := p.store.RecordRunStart(ctx, run); err != nil {
		return nil, err
	}

	ctx = logger.WithRunID(ctx, run.UUID)
	log := p.log.WithContext(ctx)
	log.Info("batch started",
		logger.String("period", opts.PeriodKey),
		logger.String("trigger", opts.Trigger))

	summary := &Summary{
		RunID:         run.ID,
		RunUUID:       run.UUID,
		Trigger:       opts.Trigger,
		CurrentPeriod: opts.PeriodKey,
		StartedAt:     started,
	}

	runErr := p.execute(ctx, run.ID, summary, log)

	summary.FinishedAt = p.now()
	summary.Status = datastore.RunStatusSuccess
	if runErr != nil {
		summary.Status = datastore.RunStatusFailed
		summary.Error = runErr.Error()
	}

	if err := p.finishRun(ctx, run.ID, summary); err != nil {
		log.Error("failed to finish run record", logger.Error(err))
		if runErr == nil {
			runErr = err
		} else {
			runErr = errors.Join(runErr, err)
		}
	}

	p.recordMetrics(summary, log)
	p.notify(ctx, summary, log)

	if runErr != nil {
		log.Error("batch failed", logger.Error(runErr), logger.Duration("duration", summary.FinishedAt.Sub(started)))
		return summary, runErr
	}
	c := summary.Counters()
	log.Info("batch finished",
		logger.Int("periods", len(summary.Periods)),
		logger.Int("affected", c.Affected),
		logger.Int("rejected", c.Rejected),
		logger.Int("promoted", c.Promoted),
		logger.Duration("duration", summary.FinishedAt.Sub(started)))
	return summary, nil
}

func (p *Pipeline) finishRun(ctx context.Context, runID uint, s *Summary) error {
	// The run record is finished even when ctx was cancelled mid-batch.
	ctx = context.WithoutCancel(ctx)
	if err := p.store.RecordRunFinish(ctx, runID, datastore.RunResult{
		Status:      s.Status,
		Info:        s.Info(),
		Error:       s.Error,
		RunCounters: s.Counters(),
	}); err != nil {
		return err
	}
	return nil
}

func (p *Pipeline) execute(ctx context.Context, runID uint, s *Summary, log logger.Logger) error {
	cfg := p.settings

	// Roster first: ingestion rejects emails the roster does not know.
	entries, err := roster.Load(p.fs, cfg.Input.RosterPath)
	if err != nil {
		return err
	}
	if entries == nil {
		log.Warn("roster not found, continuing with stored employees", logger.String("path", cfg.Input.RosterPath))
	}
	s.Roster, err = roster.New(p.store, cfg.Policy.TierMax, log.Module("roster")).Sync(ctx, entries)
	if err != nil {
		return err
	}

	found, err := ingest.Discover(p.fs, cfg.Input.WeeksDir, ingest.DiscoverOptions{
		Location:          p.loc,
		FallbackKey:       s.CurrentPeriod,
		SkipIndeterminate: cfg.Input.Indeterminate == conf.IndeterminateSkip,
	})
	if err != nil {
		return err
	}
	s.Malformed = found.Malformed
	s.Indeterminate = found.Indeterminate
	for _, f := range found.Malformed {
		log.Warn("skipping malformed period file", logger.String("path", f.Path), logger.String("reason", f.Reason))
	}
	for _, f := range found.Indeterminate {
		log.Warn("skipping period file without period markers", logger.String("path", f.Path))
	}

	if err := p.ingestPeriods(ctx, runID, found.Files, s, log); err != nil {
		return err
	}

	// Aggregation needs every ingestion of this batch to be complete.
	if _, err := aggregate.Recompute(ctx, p.store, cfg.Policy.OnTimeThreshold, log.Module("aggregate")); err != nil {
		return err
	}

	evaluator := promotion.NewEvaluator(p.store, promotion.PolicyFrom(&cfg.Policy), p.loc,
		log.Module("promotion"), promotion.WithClock(p.now))
	if s.Promoted, err = evaluator.Evaluate(ctx, runID); err != nil {
		return err
	}

	if s.OvertimeCSV, err = p.writeOvertime(ctx); err != nil {
		return err
	}

	if p.exporter != nil && p.exporter.Len() > 0 {
		s.ExportFailures = p.exporter.Export(ctx, s.CSVFiles())
	}
	return nil
}

// ingestPeriods processes files grouped by period in ascending order. All
// files of a pending period are ingested, later files overriding earlier ones
// row by row, before the period is marked processed.
func (p *Pipeline) ingestPeriods(ctx context.Context, runID uint, files []ingest.PeriodFile, s *Summary, log logger.Logger) error {
	engine := ingest.NewEngine(p.store, p.settings.Policy.ExpectedHours, log.Module("ingest"))
	writer := report.NewWriter(p.fs, p.settings.Output.Dir)

	for start := 0; start < len(files); {
		end := start + 1
		for end < len(files) && files[end].Key == files[start].Key {
			end++
		}
		group := files[start:end]
		start = end
		key := group[0].Key

		done, err := p.store.IsProcessed(ctx, key)
		if err != nil {
			return err
		}
		if done {
			log.Info("period already processed, skipping", logger.String("period", key))
			s.AlreadyProcessed = append(s.AlreadyProcessed, key)
			continue
		}

		result, err := p.ingestGroup(ctx, engine, writer, key, group, log)
		if err != nil {
			return err
		}

		result.Marked, err = p.store.MarkProcessed(ctx, key, runID)
		if err != nil {
			return err
		}
		if !result.Marked {
			log.Warn("period was marked by another writer", logger.String("period", key))
		}
		if key == s.CurrentPeriod {
			s.CurrentCSV = result.CSV
		}
		s.Periods = append(s.Periods, result)
	}
	return nil
}

func (p *Pipeline) ingestGroup(ctx context.Context, engine *ingest.Engine, writer *report.Writer, key string, group []ingest.PeriodFile, log logger.Logger) (PeriodResult, error) {
	result := PeriodResult{Key: key}
	var rows []report.Row
	index := make(map[string]int)

	for i := range group {
		f := &group[i]
		if f.Indeterminate {
			log.Warn("period file has no period markers, filing under fallback period",
				logger.String("path", f.Path), logger.String("period", key))
			result.Indeterminate = true
		}

		res, err := engine.Ingest(ctx, key, f.Payload)
		if err != nil {
			return result, err
		}
		result.Files = append(result.Files, f.Path)
		result.Affected += res.Affected
		result.Rejected += res.Rejected
		result.RejectedUnknown += res.RejectedUnknown
		result.Rejections = append(result.Rejections, res.Rejections...)

		// The report shows the stored value, which is the last one written.
		for _, row := range res.Rows {
			if j, ok := index[row.Email]; ok {
				rows[j] = row
				continue
			}
			index[row.Email] = len(rows)
			rows = append(rows, row)
		}
	}

	path, err := writer.WritePeriod(key, rows)
	if err != nil {
		return result, err
	}
	result.CSV = path
	return result, nil
}

func (p *Pipeline) writeOvertime(ctx context.Context) (string, error) {
	records, err := p.store.ListAttendance(ctx)
	if err != nil {
		return "", err
	}
	rows := make([]report.Row, 0, len(records))
	for i := range records {
		rows = append(rows, report.RowFromAttendance(records[i]))
	}
	return report.NewWriter(p.fs, p.settings.Output.Dir).WriteOvertime(rows)
}

func (p *Pipeline) recordMetrics(s *Summary, log logger.Logger) {
	if p.metrics == nil {
		return
	}
	m := p.metrics.Batch
	m.RecordRoster(s.Roster.Inserted, s.Roster.Updated, s.Roster.Rejected)
	for i := range s.Periods {
		m.RecordPeriod(s.Periods[i].Affected, s.Periods[i].Rejected, s.Periods[i].RejectedUnknown)
	}
	m.RecordSkipped(metrics.SkipAlreadyProcessed, len(s.AlreadyProcessed))
	m.RecordSkipped(metrics.SkipMalformed, len(s.Malformed))
	m.RecordSkipped(metrics.SkipIndeterminate, len(s.Indeterminate))
	m.RecordPromotions(s.Promoted)
	for _, f := range s.ExportFailures {
		m.RecordExportFailure(f.Target)
	}
	m.RecordRun(s.Trigger, s.Status, s.FinishedAt.Sub(s.StartedAt), s.FinishedAt, s.Status == datastore.RunStatusSuccess)

	if p.settings.Metrics.Textfile == "" {
		return
	}
	if err := p.metrics.WriteTextfile(p.settings.Metrics.Textfile); err != nil {
		log.Warn("failed to write metrics textfile", logger.Error(err))
	}
}

func (p *Pipeline) notify(ctx context.Context, s *Summary, log logger.Logger) {
	if !p.notifier.Enabled() {
		return
	}
	msg := notification.Message{
		Title: fmt.Sprintf("%s %s: %s", p.settings.Main.Name, s.CurrentPeriod, s.Status),
		Body:  s.String(),
	}
	if err := p.notifier.Notify(context.WithoutCancel(ctx), msg); err != nil {
		log.Warn("failed to send run notification", logger.Error(err))
	}
}

// RegenerateOvertime rewrites the cumulative overtime report from the store
// without ingesting anything, optionally exporting it.
func (p *Pipeline) RegenerateOvertime(ctx context.Context, exportIt bool) (string, []export.Failure, error) {
	path, err := p.writeOvertime(ctx)
	if err != nil {
		return "", nil, err
	}
	if !exportIt || p.exporter == nil || p.exporter.Len() == 0 {
		return path, nil, nil
	}
	return path, p.exporter.Export(ctx, []string{path}), nil
}
