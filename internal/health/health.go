// Package health checks that every synced worksheet is fresh, complete and
// not slowing down.
package health

import (
	"context"
	"fmt"
	"time"

	"datahub/domain/syncrun"
	"datahub/internal/worksheet"
	"datahub/ports"

	"github.com/montanaflynn/stats"
	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/stat"
)

// Status is the health of one worksheet.
type Status string

const (
	StatusOK          Status = "OK"
	StatusNeverSynced Status = "NEVER_SYNCED"
	StatusStale       Status = "STALE"
	StatusLowCount    Status = "LOW_COUNT"
	StatusFailed      Status = "FAILED"
)

// ExpectedRows is the approximate row count of each table in a complete sync.
var ExpectedRows = map[string]int{
	worksheet.HLDPoleTable:       4000,
	worksheet.HLDHomeTable:       23000,
	worksheet.TrackerPoleTable:   4900,
	worksheet.TrackerHomeTable:   23000,
	worksheet.NokiaExportTable:   1700,
	worksheet.OneMapInstallTable: 21000,
	worksheet.OneMapPoleTable:    5300,
	worksheet.LawleyQATable:      1500,
	worksheet.MohadinQATable:     300,
}

const (
	defaultStaleAfter = 24 * time.Hour
	lowCountRatio     = 0.5
	historySize       = 20
	minSlowSamples    = 5
)

// Durations summarises successful run durations in milliseconds.
type Durations struct {
	Samples int     `json:"samples"`
	Latest  float64 `json:"latest_ms"`
	Median  float64 `json:"median_ms"`
	P95     float64 `json:"p95_ms"`
	Mean    float64 `json:"mean_ms"`
	StdDev  float64 `json:"stddev_ms"`
	// Slow is set when the latest run exceeds the mean of the earlier runs by
	// more than three standard deviations.
	Slow bool `json:"slow"`
}

// Check is the health of one worksheet.
type Check struct {
	Worksheet   string       `json:"worksheet"`
	Table       string       `json:"table"`
	Status      Status       `json:"status"`
	Rows        int          `json:"rows"`
	Expected    int          `json:"expected"`
	LastRun     *syncrun.Run `json:"last_run,omitempty"`
	LastSuccess *time.Time   `json:"last_success,omitempty"`
	Issues      []string     `json:"issues,omitempty"`
	Durations   Durations    `json:"durations"`
}

// Report is the health of every checked worksheet.
type Report struct {
	GeneratedAt time.Time `json:"generated_at"`
	Healthy     bool      `json:"healthy"`
	Checks      []Check   `json:"checks"`
}

// Issues returns the checks that are not OK.
func (r *Report) Issues() []Check {
	var out []Check
	for _, c := range r.Checks {
		if c.Status != StatusOK {
			out = append(out, c)
		}
	}
	return out
}

// Checker builds health reports from the sync log and the destination tables.
type Checker struct {
	store      ports.RecordStore
	logs       ports.SyncLogRepository
	jobs       []worksheet.Job
	staleAfter time.Duration
	now        func() time.Time
}

// NewChecker creates a checker over jobs.
func NewChecker(store ports.RecordStore, logs ports.SyncLogRepository, jobs []worksheet.Job) *Checker {
	return &Checker{
		store:      store,
		logs:       logs,
		jobs:       jobs,
		staleAfter: defaultStaleAfter,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Run checks every worksheet. A store or log failure aborts the report.
func (c *Checker) Run(ctx context.Context) (*Report, error) {
	report := &Report{GeneratedAt: c.now(), Healthy: true}
	for _, job := range c.jobs {
		check, err := c.check(ctx, job.Descriptor())
		if err != nil {
			return nil, err
		}
		if check.Status != StatusOK {
			report.Healthy = false
		}
		report.Checks = append(report.Checks, check)
	}

	zerolog.Ctx(ctx).Debug().
		Bool("healthy", report.Healthy).
		Int("issues", len(report.Issues())).
		Msg("Health check complete")
	return report, nil
}

func (c *Checker) check(ctx context.Context, desc worksheet.Descriptor) (Check, error) {
	check := Check{
		Worksheet: desc.Name,
		Table:     desc.Table,
		Status:    StatusOK,
		Expected:  ExpectedRows[desc.Table],
	}

	rows, err := c.store.Count(ctx, desc.Table)
	if err != nil {
		return check, fmt.Errorf("failed to count %s: %w", desc.Table, err)
	}
	check.Rows = rows

	runs, err := c.logs.Recent(ctx, desc.Name, historySize)
	if err != nil {
		return check, fmt.Errorf("failed to read sync log for %s: %w", desc.Name, err)
	}
	if len(runs) == 0 {
		check.Status = StatusNeverSynced
		check.Issues = append(check.Issues, "no sync recorded")
		return check, nil
	}
	check.LastRun = runs[0]

	var durations []float64
	for _, run := range runs {
		if run.Status != syncrun.StatusSuccess {
			continue
		}
		if check.LastSuccess == nil && run.CompletedAt != nil {
			check.LastSuccess = run.CompletedAt
		}
		durations = append(durations, float64(run.Duration().Milliseconds()))
	}
	check.Durations = summarise(durations)

	// The first matching condition sets the status; every one is listed.
	if check.LastRun.Status == syncrun.StatusFailed {
		check.mark(StatusFailed, "latest sync failed: %s", errorMessage(check.LastRun))
	}
	switch {
	case check.LastSuccess == nil:
		check.mark(StatusNeverSynced, "no successful sync recorded")
	case c.now().Sub(*check.LastSuccess) > c.staleAfter:
		check.mark(StatusStale, "last success %s ago", c.now().Sub(*check.LastSuccess).Round(time.Minute))
	}
	if check.Expected > 0 && float64(rows) < float64(check.Expected)*lowCountRatio {
		check.mark(StatusLowCount, "%d rows, expected about %d", rows, check.Expected)
	}
	if check.Durations.Slow {
		check.Issues = append(check.Issues, fmt.Sprintf("latest sync took %.0fms, mean %.0fms", check.Durations.Latest, check.Durations.Mean))
	}
	return check, nil
}

func (c *Check) mark(s Status, format string, args ...any) {
	if c.Status == StatusOK {
		c.Status = s
	}
	c.Issues = append(c.Issues, fmt.Sprintf(format, args...))
}

// summarise takes durations newest first.
func summarise(durations []float64) Durations {
	d := Durations{Samples: len(durations)}
	if len(durations) == 0 {
		return d
	}
	d.Latest = durations[0]

	data := stats.Float64Data(durations)
	d.Median, _ = data.Median()
	d.P95, _ = data.Percentile(95)
	d.Mean = stat.Mean(durations, nil)
	if len(durations) > 1 {
		d.StdDev = stat.StdDev(durations, nil)
	}

	baseline := durations[1:]
	if len(baseline) >= minSlowSamples {
		mean, std := stat.MeanStdDev(baseline, nil)
		d.Slow = d.Latest > mean+3*std
	}
	return d
}

func errorMessage(run *syncrun.Run) string {
	if run.ErrorMessage == nil {
		return "unknown error"
	}
	return *run.ErrorMessage
}
