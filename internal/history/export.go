package history

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rpattn/catalogaudit/internal/domain"

	"github.com/xuri/excelize/v2"
)

const (
	exportSheet    = "History"
	exportPageSize = 500
	// exportRowLimit keeps one workbook within what spreadsheet tools open comfortably.
	exportRowLimit = 100000
)

var exportHeaders = []any{
	"Created At", "Action", "Entity Type", "Entity ID", "Entity Name",
	"Affected Entities", "Changed Fields", "Comment", "Created By", "New Data",
}

// ExportXLSX writes every record matching filter, newest first, as a workbook.
// Nothing reaches w until the workbook is complete. It returns the number of
// data rows written.
func (l *Ledger) ExportXLSX(ctx context.Context, filter domain.HistoryFilter, w io.Writer) (int, error) {
	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			l.logger.Warn("failed to close workbook", "error", err)
		}
	}()
	if err := f.SetSheetName("Sheet1", exportSheet); err != nil {
		return 0, fmt.Errorf("failed to name sheet: %w", err)
	}

	sw, err := f.NewStreamWriter(exportSheet)
	if err != nil {
		return 0, fmt.Errorf("failed to create stream writer: %w", err)
	}
	if err := sw.SetRow("A1", exportHeaders); err != nil {
		return 0, fmt.Errorf("failed to write header: %w", err)
	}

	rowsWritten := 0
	skip := 0
	for rowsWritten < exportRowLimit {
		if ctx.Err() != nil {
			return rowsWritten, ctx.Err()
		}
		page, err := l.repo.List(ctx, filter, domain.Pagination{Limit: exportPageSize, Skip: skip})
		if err != nil {
			return rowsWritten, fmt.Errorf("failed to list history for export: %w", err)
		}
		// Pin the upper bound to the newest row so inserts made during the
		// export cannot shift later pages.
		if skip == 0 && len(page.Records) > 0 {
			newest := page.Records[0].CreatedAt
			if filter.EndDate == nil || newest.Before(*filter.EndDate) {
				filter.EndDate = &newest
			}
		}
		for _, record := range page.Records {
			cell, err := excelize.CoordinatesToCellName(1, rowsWritten+2)
			if err != nil {
				return rowsWritten, err
			}
			if err := sw.SetRow(cell, exportRow(record)); err != nil {
				return rowsWritten, fmt.Errorf("failed to write row %d: %w", rowsWritten+2, err)
			}
			rowsWritten++
			if rowsWritten >= exportRowLimit {
				break
			}
		}
		skip += len(page.Records)
		if len(page.Records) < exportPageSize || skip >= page.Total {
			break
		}
	}

	if err := sw.Flush(); err != nil {
		return rowsWritten, fmt.Errorf("failed to flush workbook: %w", err)
	}
	if _, err := f.WriteTo(w); err != nil {
		return rowsWritten, fmt.Errorf("failed to write workbook: %w", err)
	}
	return rowsWritten, nil
}

func exportRow(record domain.HistoryRecord) []any {
	primaryName := ""
	if primary, ok := record.Primary(); ok {
		primaryName = primary.EntityName
	}
	affected := make([]string, 0, len(record.AffectedEntities))
	for _, entity := range record.AffectedEntities {
		affected = append(affected, fmt.Sprintf("%s (%s, %s)", entity.EntityName, entity.EntityType, entity.Role))
	}
	comment := ""
	if record.Comment != nil {
		comment = *record.Comment
	}
	return []any{
		record.CreatedAt.UTC().Format(time.RFC3339),
		string(record.Action),
		string(record.EntityType),
		record.EntityID.String(),
		primaryName,
		strings.Join(affected, "; "),
		strings.Join(changedFields(record), ", "),
		comment,
		record.CreatedBy.String(),
		formatValue(record.NewData),
	}
}

// changedFields lists dotted leaf paths for updates, top-level keys otherwise.
func changedFields(record domain.HistoryRecord) []string {
	if record.Action == domain.ActionUpdate && len(record.PreviousData) > 0 {
		if paths, err := domain.ChangedPaths(record.PreviousData, record.NewData); err == nil {
			return paths
		}
	}
	return record.Changes.Keys()
}

// formatValue renders a snapshot value for a spreadsheet cell.
func formatValue(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case json.Number:
		return v.String()
	case map[string]any, []any, domain.Snapshot:
		encoded, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(encoded)
	default:
		return fmt.Sprintf("%v", v)
	}
}
