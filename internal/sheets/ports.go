package sheets

import (
	"context"

	"housesplit/internal/core"
)

// Ports for outbound adapters.
type (
	// SummaryExporter publishes a computed month summary to an external
	// spreadsheet. The returned ref identifies where it was written.
	SummaryExporter interface {
		ExportMonth(ctx context.Context, summary core.MonthSummary) (ref string, err error)
	}
)
