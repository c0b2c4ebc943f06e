package main

import (
	"context"
	"time"

	"datahub/domain/syncrun"
	"datahub/internal/errors"
	"datahub/internal/worksheet"
)

// unavailableSyncer answers sync requests when no workbook source could be
// configured, so every requested worksheet reports the configuration error.
type unavailableSyncer struct{ err error }

func (u unavailableSyncer) SyncAll(ctx context.Context, jobs []worksheet.Job, opts worksheet.Options) *syncrun.Summary {
	summary := syncrun.NewSummary(time.Now().UTC())
	for _, j := range jobs {
		d := j.Descriptor()
		summary.Add(syncrun.Outcome{
			Worksheet: d.Name,
			Table:     d.Table,
			Error:     u.err.Error(),
			Code:      errors.GetCode(u.err),
		})
	}
	summary.Finish(time.Now().UTC())
	return summary
}
