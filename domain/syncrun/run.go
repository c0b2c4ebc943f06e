package syncrun

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Status is the lifecycle state of a sync run.
type Status string

const (
	StatusRunning Status = "running"
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// Run is one persisted sync attempt for a single worksheet.
type Run struct {
	ID            string     `db:"id" json:"id"`
	Worksheet     string     `db:"worksheet_name" json:"worksheet_name"`
	StartedAt     time.Time  `db:"sync_started_at" json:"sync_started_at"`
	CompletedAt   *time.Time `db:"sync_completed_at" json:"sync_completed_at"`
	Status        Status     `db:"status" json:"status"`
	Processed     int        `db:"records_processed" json:"records_processed"`
	Inserted      int        `db:"records_inserted" json:"records_inserted"`
	Updated       int        `db:"records_updated" json:"records_updated"`
	Failed        int        `db:"records_failed" json:"records_failed"`
	ErrorMessage  *string    `db:"error_message" json:"error_message"`
	ErrorDetails  Details    `db:"error_details" json:"error_details,omitempty"`
	DurationMs    *int64     `db:"duration_ms" json:"duration_ms"`
	FileURL       *string    `db:"file_url" json:"file_url"`
	FileSizeBytes *int64     `db:"file_size_bytes" json:"file_size_bytes"`
}

// Begin creates a run in the running state.
func Begin(id, worksheet, fileURL string, now time.Time) *Run {
	r := &Run{
		ID:        id,
		Worksheet: worksheet,
		StartedAt: now,
		Status:    StatusRunning,
	}
	if fileURL != "" {
		r.FileURL = &fileURL
	}
	return r
}

// Succeed marks the run successful with its final counts.
func (r *Run) Succeed(c Counts, now time.Time) {
	r.Status = StatusSuccess
	r.apply(c)
	r.complete(now)
}

// Fail marks the run failed with the error message and any counts gathered so far.
func (r *Run) Fail(err error, details Details, c Counts, now time.Time) {
	r.Status = StatusFailed
	r.apply(c)
	if err != nil {
		msg := err.Error()
		r.ErrorMessage = &msg
	}
	r.ErrorDetails = details
	r.complete(now)
}

// Duration returns the recorded duration, or 0 while running.
func (r *Run) Duration() time.Duration {
	if r.DurationMs == nil {
		return 0
	}
	return time.Duration(*r.DurationMs) * time.Millisecond
}

func (r *Run) apply(c Counts) {
	r.Processed = c.Processed
	r.Inserted = c.Inserted
	r.Updated = c.Updated
	r.Failed = c.Failed
}

func (r *Run) complete(now time.Time) {
	r.CompletedAt = &now
	ms := now.Sub(r.StartedAt).Milliseconds()
	r.DurationMs = &ms
}

// Details is free-form error context stored as JSON.
type Details map[string]any

// Value implements driver.Valuer.
func (d Details) Value() (driver.Value, error) {
	if len(d) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal error details: %w", err)
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (d *Details) Scan(src any) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		*d = nil
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into Details", src)
	}
	out := Details{}
	if err := json.Unmarshal(data, &out); err != nil {
		return fmt.Errorf("failed to unmarshal error details: %w", err)
	}
	*d = out
	return nil
}
