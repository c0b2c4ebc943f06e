// Package reconcile writes a batch of keyed records into a destination table,
// inserting unseen keys and updating (or, for append-only tables, skipping)
// keys that already exist.
package reconcile

import (
	"context"
	"fmt"
	"sync"
	"time"

	"datahub/ports"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"
)

// Policy decides what happens to records whose key already exists.
type Policy int

const (
	// Mutable updates existing rows in place.
	Mutable Policy = iota
	// AppendOnly never touches an existing row; only new keys are inserted.
	AppendOnly
)

func (p Policy) String() string {
	if p == AppendOnly {
		return "append-only"
	}
	return "mutable"
}

// Op names the write attempted for a record.
type Op string

const (
	OpInsert Op = "insert"
	OpUpdate Op = "update"
)

const (
	defaultChunk         = 100
	defaultProgressEvery = 500
)

// Plan configures one table's reconciliation.
type Plan[T any] struct {
	Table     string
	KeyColumn string
	Key       func(T) string
	Project   func(T) ports.Row
	Policy    Policy

	InsertChunk int
	UpdateChunk int
	// Parallelism bounds concurrent writes inside a chunk; 0 means the chunk size.
	Parallelism int
	// UpdateColumns restricts which typed columns an update rewrites; empty means all.
	UpdateColumns []string
	ProgressEvery int
}

// Settled is the outcome of one record's write.
type Settled struct {
	Key string
	Op  Op
	Err error
}

// Result tallies a reconciliation. Failures lists every record whose write failed.
type Result struct {
	Inserted int
	Updated  int
	Skipped  int
	Failed   int
	Failures []Settled
}

// Upsert reconciles records against the store. Per-record write failures are
// collected in the result and never abort the batch; an error is returned only
// when the existence query fails or ctx is cancelled.
func Upsert[T any](ctx context.Context, store ports.RecordStore, plan Plan[T], records []T) (Result, error) {
	logger := zerolog.Ctx(ctx).With().Str("table", plan.Table).Str("policy", plan.Policy.String()).Logger()
	var result Result

	keys := make([]string, 0, len(records))
	seen := make(map[string]struct{}, len(records))
	for _, rec := range records {
		k := plan.Key(rec)
		if k == "" {
			continue
		}
		if _, dup := seen[k]; !dup {
			seen[k] = struct{}{}
			keys = append(keys, k)
		}
	}

	existing := map[string]struct{}{}
	if len(keys) > 0 {
		var err error
		existing, err = store.ExistingKeys(ctx, plan.Table, plan.KeyColumn, keys)
		if err != nil {
			return result, fmt.Errorf("failed to check existing keys in %s: %w", plan.Table, err)
		}
	}

	inserts, updates, skipped := partition(plan, records, existing)
	result.Skipped = skipped

	logger.Info().
		Int("records", len(records)).
		Int("new", len(inserts)).
		Int("existing", len(existing)).
		Int("to_update", len(updates)).
		Int("skipped", skipped).
		Msg("Reconciling batch")

	r := &runner[T]{plan: plan, store: store, logger: logger, total: len(inserts) + len(updates)}

	ins, err := r.run(ctx, OpInsert, inserts, chunkSize(plan.InsertChunk))
	result.merge(ins)
	if err != nil {
		return result, err
	}

	upd, err := r.run(ctx, OpUpdate, updates, chunkSize(plan.UpdateChunk))
	result.merge(upd)
	if err != nil {
		return result, err
	}

	logger.Info().
		Int("inserted", result.Inserted).
		Int("updated", result.Updated).
		Int("skipped", result.Skipped).
		Int("failed", result.Failed).
		Msg("Reconciliation complete")

	return result, nil
}

// partition splits records into inserts and updates. A key repeated inside
// the batch is inserted once; later copies follow the existing-key policy.
func partition[T any](plan Plan[T], records []T, existing map[string]struct{}) (inserts, updates []T, skipped int) {
	inserted := make(map[string]struct{})
	for _, rec := range records {
		k := plan.Key(rec)
		if k == "" {
			skipped++
			continue
		}
		_, exists := existing[k]
		_, queued := inserted[k]
		if !exists && !queued {
			inserted[k] = struct{}{}
			inserts = append(inserts, rec)
			continue
		}
		if plan.Policy == AppendOnly {
			skipped++
			continue
		}
		updates = append(updates, rec)
	}
	return inserts, updates, skipped
}

type runner[T any] struct {
	plan   Plan[T]
	store  ports.RecordStore
	logger zerolog.Logger
	total  int
	done   int
}

// run processes items chunk by chunk. Chunks run sequentially; writes inside a
// chunk run concurrently and are all awaited before the next chunk starts.
func (r *runner[T]) run(ctx context.Context, op Op, items []T, size int) (Result, error) {
	var res Result
	every := r.plan.ProgressEvery
	if every <= 0 {
		every = defaultProgressEvery
	}

	for start := 0; start < len(items); start += size {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		end := min(start+size, len(items))
		settled := r.fanOut(ctx, op, items[start:end])

		for _, s := range settled {
			if s.Err != nil {
				res.Failed++
				res.Failures = append(res.Failures, s)
				r.logger.Error().Err(s.Err).Str("key", s.Key).Str("op", string(s.Op)).Msg("Record write failed")
				continue
			}
			if op == OpInsert {
				res.Inserted++
			} else {
				res.Updated++
			}
		}

		before := r.done
		r.done += len(settled)
		if r.done/every > before/every || end == len(items) {
			r.logger.Info().
				Str("op", string(op)).
				Int("done", r.done).
				Int("total", r.total).
				Msg("Progress")
		}
	}
	return res, nil
}

func (r *runner[T]) fanOut(ctx context.Context, op Op, chunk []T) []Settled {
	settled := make([]Settled, len(chunk))
	limit := r.plan.Parallelism
	if limit <= 0 || limit > len(chunk) {
		limit = len(chunk)
	}
	sem := semaphore.NewWeighted(int64(limit))
	var wg sync.WaitGroup

	for i, item := range chunk {
		key := r.plan.Key(item)
		settled[i] = Settled{Key: key, Op: op}
		if err := sem.Acquire(ctx, 1); err != nil {
			settled[i].Err = err
			continue
		}
		wg.Add(1)
		go func(i int, item T) {
			defer wg.Done()
			defer sem.Release(1)
			settled[i].Err = r.write(ctx, op, item)
		}(i, item)
	}
	wg.Wait()
	return settled
}

func (r *runner[T]) write(ctx context.Context, op Op, item T) error {
	row := r.plan.Project(item)
	if row.SyncedAt.IsZero() {
		row.SyncedAt = time.Now().UTC()
	}
	if op == OpInsert {
		return r.store.Insert(ctx, r.plan.Table, row)
	}
	return r.store.Update(ctx, r.plan.Table, r.plan.KeyColumn, row, r.plan.UpdateColumns)
}

func (res *Result) merge(other Result) {
	res.Inserted += other.Inserted
	res.Updated += other.Updated
	res.Skipped += other.Skipped
	res.Failed += other.Failed
	res.Failures = append(res.Failures, other.Failures...)
}

func chunkSize(n int) int {
	if n <= 0 {
		return defaultChunk
	}
	return n
}
