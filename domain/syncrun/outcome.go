package syncrun

import (
	"fmt"
	"time"
)

// Counts tallies records through one sync.
type Counts struct {
	Processed int `json:"processed"`
	Inserted  int `json:"inserted"`
	Updated   int `json:"updated"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
}

// Add accumulates other into c.
func (c *Counts) Add(other Counts) {
	c.Processed += other.Processed
	c.Inserted += other.Inserted
	c.Updated += other.Updated
	c.Skipped += other.Skipped
	c.Failed += other.Failed
}

// Outcome is the result of syncing one worksheet. It is returned to callers
// whether or not the sync succeeded.
type Outcome struct {
	Worksheet  string `json:"worksheet"`
	Table      string `json:"table"`
	RunID      string `json:"run_id,omitempty"`
	Success    bool   `json:"success"`
	Counts     `json:"counts"`
	Error      string `json:"error,omitempty"`
	Code       string `json:"code,omitempty"`
	DurationMs int64  `json:"duration_ms"`
}

// Summary aggregates outcomes of a multi-worksheet sync.
type Summary struct {
	Success    bool      `json:"success"`
	Results    []Outcome `json:"results"`
	Totals     Counts    `json:"totals"`
	Errors     []string  `json:"errors"`
	StartedAt  time.Time `json:"started_at"`
	DurationMs int64     `json:"duration_ms"`
}

// NewSummary starts an empty, successful summary.
func NewSummary(now time.Time) *Summary {
	return &Summary{Success: true, Results: []Outcome{}, Errors: []string{}, StartedAt: now}
}

// Add records an outcome. Any failed outcome makes the summary unsuccessful.
func (s *Summary) Add(o Outcome) {
	s.Results = append(s.Results, o)
	s.Totals.Add(o.Counts)
	if !o.Success {
		s.Success = false
		s.Errors = append(s.Errors, fmt.Sprintf("%s: %s", o.Worksheet, o.Error))
	}
}

// Finish stamps the total duration.
func (s *Summary) Finish(now time.Time) {
	s.DurationMs = now.Sub(s.StartedAt).Milliseconds()
}

// Failed returns the outcomes that did not succeed.
func (s *Summary) Failed() []Outcome {
	var out []Outcome
	for _, o := range s.Results {
		if !o.Success {
			out = append(out, o)
		}
	}
	return out
}
