package ports

import (
	"context"

	"datahub/domain/syncrun"
)

// SyncLogRepository records the lifecycle of sync runs.
type SyncLogRepository interface {
	Start(ctx context.Context, run *syncrun.Run) error
	Finish(ctx context.Context, run *syncrun.Run) error
	// Recent returns the latest runs, newest first. An empty worksheet means all.
	Recent(ctx context.Context, worksheet string, limit int) ([]*syncrun.Run, error)
	// Latest returns the newest run per worksheet.
	Latest(ctx context.Context) (map[string]*syncrun.Run, error)
}
