// Package syncer runs worksheet connectors against fetched workbooks and
// records every run in the sync log.
package syncer

import (
	"context"
	"time"

	"datahub/domain/syncrun"
	"datahub/internal/errors"
	"datahub/internal/worksheet"
	"datahub/ports"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// logWriteTimeout bounds each sync log write. The writes outlive a cancelled
// caller so a run never stays "running".
const logWriteTimeout = 10 * time.Second

// Locators maps each source workbook to the locator its WorkbookSource fetches.
type Locators map[worksheet.File]string

// Configured keeps the jobs whose workbook has a locator, for local runs
// given only some of the workbooks.
func (l Locators) Configured(jobs []worksheet.Job) []worksheet.Job {
	var out []worksheet.Job
	for _, j := range jobs {
		if l[j.Descriptor().File] != "" {
			out = append(out, j)
		}
	}
	return out
}

// Orchestrator drives per-worksheet syncs. It never fails a caller: every
// problem becomes a failed Outcome.
type Orchestrator struct {
	source   ports.WorkbookSource
	store    ports.RecordStore
	logs     ports.SyncLogRepository
	locators Locators
	logger   zerolog.Logger

	newID func() string
	now   func() time.Time
}

// New creates an orchestrator.
func New(source ports.WorkbookSource, store ports.RecordStore, logs ports.SyncLogRepository, locators Locators, logger zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		source:   source,
		store:    store,
		logs:     logs,
		locators: locators,
		logger:   logger.With().Str("component", "syncer").Logger(),
		newID:    uuid.NewString,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// SyncAll syncs jobs one after another, fetching a fresh workbook for each
// so only one parsed workbook is held at a time.
func (o *Orchestrator) SyncAll(ctx context.Context, jobs []worksheet.Job, opts worksheet.Options) *syncrun.Summary {
	summary := syncrun.NewSummary(o.now())
	o.logger.Info().Int("worksheets", len(jobs)).Msg("Starting sync")

	for _, job := range jobs {
		if ctx.Err() != nil {
			desc := job.Descriptor()
			summary.Add(syncrun.Outcome{
				Worksheet: desc.Name,
				Table:     desc.Table,
				Error:     ctx.Err().Error(),
				Code:      errors.CodeSync,
			})
			continue
		}
		summary.Add(o.Sync(ctx, job, opts))
	}

	summary.Finish(o.now())
	event := o.logger.Info()
	if !summary.Success {
		event = o.logger.Warn().Strs("errors", summary.Errors)
	}
	event.Bool("success", summary.Success).
		Int("processed", summary.Totals.Processed).
		Int("inserted", summary.Totals.Inserted).
		Int("updated", summary.Totals.Updated).
		Int("failed", summary.Totals.Failed).
		Int64("duration_ms", summary.DurationMs).
		Msg("Sync finished")
	return summary
}

// Sync fetches the workbook the job reads from and syncs it.
func (o *Orchestrator) Sync(ctx context.Context, job worksheet.Job, opts worksheet.Options) syncrun.Outcome {
	desc := job.Descriptor()
	locator, ok := o.locators[desc.File]
	if !ok || locator == "" {
		err := errors.ConfigInvalid("no workbook configured for " + string(desc.File))
		return o.failBeforeStart(ctx, desc, "", err)
	}

	wb, err := o.source.Fetch(ctx, locator)
	if err != nil {
		return o.failBeforeStart(ctx, desc, locator, err)
	}
	defer func() {
		if cerr := wb.Close(); cerr != nil {
			o.logger.Warn().Err(cerr).Str("worksheet", desc.Name).Msg("Failed to close workbook")
		}
	}()

	return o.SyncWorksheet(ctx, job, wb, opts)
}

// SyncWorksheet runs one connector against an already fetched workbook.
func (o *Orchestrator) SyncWorksheet(ctx context.Context, job worksheet.Job, wb ports.Workbook, opts worksheet.Options) syncrun.Outcome {
	desc := job.Descriptor()
	run := syncrun.Begin(o.newID(), desc.Name, wb.Locator(), o.now())
	if size := wb.Size(); size > 0 {
		run.FileSizeBytes = &size
	}
	logger := o.runLogger(desc, run.ID)
	ctx = logger.WithContext(ctx)

	o.start(ctx, run)
	logger.Info().Msg("Sync started")

	ws, ok := wb.Worksheet(desc.Name)
	if !ok {
		return o.fail(ctx, run, desc, errors.WorksheetNotFound(desc.Name, desc.Table), syncrun.Counts{})
	}

	if opts.SourceFile == "" {
		opts.SourceFile = wb.Locator()
	}
	report, err := job.Run(ctx, ws, o.store, opts)
	if err != nil {
		return o.fail(ctx, run, desc, err, report.Counts())
	}

	counts := report.Counts()
	run.Succeed(counts, o.now())
	o.finish(ctx, run)

	logger.Info().
		Int("processed", counts.Processed).
		Int("inserted", counts.Inserted).
		Int("updated", counts.Updated).
		Int("skipped", counts.Skipped).
		Int("failed", counts.Failed).
		Int64("duration_ms", run.Duration().Milliseconds()).
		Msg("Sync completed")

	return syncrun.Outcome{
		Worksheet:  desc.Name,
		Table:      desc.Table,
		RunID:      run.ID,
		Success:    true,
		Counts:     counts,
		DurationMs: run.Duration().Milliseconds(),
	}
}

// failBeforeStart records a run that never reached its worksheet, such as a
// failed workbook fetch.
func (o *Orchestrator) failBeforeStart(ctx context.Context, desc worksheet.Descriptor, locator string, err error) syncrun.Outcome {
	run := syncrun.Begin(o.newID(), desc.Name, locator, o.now())
	ctx = o.runLogger(desc, run.ID).WithContext(ctx)
	o.start(ctx, run)
	return o.fail(ctx, run, desc, err, syncrun.Counts{})
}

func (o *Orchestrator) fail(ctx context.Context, run *syncrun.Run, desc worksheet.Descriptor, err error, counts syncrun.Counts) syncrun.Outcome {
	code := errors.GetCode(err)
	if !errors.IsAppError(err) {
		err = errors.SyncError("sync of "+desc.Name+" failed", err)
		code = errors.CodeSync
	}

	details := syncrun.Details{"code": code, "table": desc.Table}
	for k, v := range errors.GetDetails(err) {
		details[k] = v
	}
	run.Fail(err, details, counts, o.now())
	o.finish(ctx, run)

	zerolog.Ctx(ctx).Error().Err(err).
		Str("code", code).
		Int64("duration_ms", run.Duration().Milliseconds()).
		Msg("Sync failed")

	return syncrun.Outcome{
		Worksheet:  desc.Name,
		Table:      desc.Table,
		RunID:      run.ID,
		Success:    false,
		Counts:     counts,
		Error:      err.Error(),
		Code:       code,
		DurationMs: run.Duration().Milliseconds(),
	}
}

// start and finish write the sync log. Failures are logged and never change
// the outcome returned to the caller.
func (o *Orchestrator) start(ctx context.Context, run *syncrun.Run) {
	ctx, cancel := logContext(ctx)
	defer cancel()
	if err := o.logs.Start(ctx, run); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("Failed to write sync log start")
	}
}

func (o *Orchestrator) finish(ctx context.Context, run *syncrun.Run) {
	ctx, cancel := logContext(ctx)
	defer cancel()
	if err := o.logs.Finish(ctx, run); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("status", string(run.Status)).Msg("Failed to write sync log status")
	}
}

// logContext keeps the caller's values, including its logger, but not its
// cancellation.
func logContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), logWriteTimeout)
}

func (o *Orchestrator) runLogger(desc worksheet.Descriptor, runID string) *zerolog.Logger {
	l := o.logger.With().
		Str("worksheet", desc.Name).
		Str("table", desc.Table).
		Str("run_id", runID).
		Logger()
	return &l
}
