package excel

import (
	"context"
	"fmt"
	"os"

	"datahub/internal/errors"
	"datahub/ports"

	"github.com/rs/zerolog"
)

// FileSource reads workbooks from the local filesystem. The locator is a path.
type FileSource struct{}

var _ ports.WorkbookSource = FileSource{}

func (FileSource) Fetch(ctx context.Context, locator string) (ports.Workbook, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(locator)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NotFound(fmt.Sprintf("workbook %s", locator))
		}
		return nil, errors.ConnectionError("failed to read workbook file", err)
	}
	zerolog.Ctx(ctx).Debug().Str("path", locator).Int("bytes", len(data)).Msg("workbook loaded from disk")
	wb, err := OpenBytes(data, locator)
	if err != nil {
		return nil, err
	}
	return wb, nil
}
