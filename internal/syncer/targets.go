package syncer

import (
	"strings"

	"datahub/internal/errors"
	"datahub/internal/worksheet"
)

// Targets resolves worksheet names to connectors. No names means the default
// full sync; all means every connector, historical sheets included.
func Targets(catalog *worksheet.Catalog, names []string, all bool) ([]worksheet.Job, error) {
	if all {
		return catalog.All(), nil
	}
	if len(names) == 0 {
		return catalog.DefaultSync(), nil
	}

	jobs := make([]worksheet.Job, 0, len(names))
	var unknown []string
	seen := map[string]bool{}
	for _, name := range names {
		job, ok := catalog.Lookup(name)
		if !ok {
			unknown = append(unknown, name)
			continue
		}
		if seen[job.Descriptor().Name] {
			continue
		}
		seen[job.Descriptor().Name] = true
		jobs = append(jobs, job)
	}
	if len(unknown) > 0 {
		return nil, errors.InvalidInput("unknown worksheet: " + strings.Join(unknown, ", ")).
			WithDetail("worksheets", unknown)
	}
	return jobs, nil
}
