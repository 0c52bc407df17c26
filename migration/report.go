package migration

import (
	"fmt"
	"time"

	"bitbucket.org/mmdatafocus/boekhouden_backend/eboekhouden"
	"bitbucket.org/mmdatafocus/boekhouden_backend/models"
	"github.com/xuri/excelize/v2"
)

// BuildRunReport renders one migration run as an .xlsx workbook: a summary
// sheet with the run stats and an errors sheet listing every recorded failure.
func BuildRunReport(run *models.MigrationRun, errs []*models.MigrationError) (*excelize.File, error) {
	f := excelize.NewFile()

	summary := "Summary"
	if err := f.SetSheetName("Sheet1", summary); err != nil {
		return nil, err
	}

	stats := run.Stats()
	rows := [][]interface{}{
		{"Run ID", run.ID.String()},
		{"Status", run.Status},
		{"Triggered by", run.TriggeredBy},
		{"Started at", timeCell(run.StartedAt)},
		{"Finished at", timeCell(run.FinishedAt)},
		{"Mutations processed", stats.Total},
		{"Documents created", stats.Created},
		{"Skipped", stats.Skipped},
		{"Failed", stats.Failed},
	}
	for i, row := range rows {
		f.SetCellValue(summary, "A"+fmt.Sprint(i+1), row[0])
		f.SetCellValue(summary, "B"+fmt.Sprint(i+1), row[1])
	}

	errorSheet := "Errors"
	if _, err := f.NewSheet(errorSheet); err != nil {
		return nil, err
	}
	f.SetCellValue(errorSheet, "A1", "Mutation ID")
	f.SetCellValue(errorSheet, "B1", "Mutation Type")
	f.SetCellValue(errorSheet, "C1", "Error Code")
	f.SetCellValue(errorSheet, "D1", "Message")
	f.SetCellValue(errorSheet, "E1", "Retryable")

	for i, errItem := range errs {
		rowNo := fmt.Sprint(i + 2)
		f.SetCellValue(errorSheet, "A"+rowNo, errItem.MutationId)
		f.SetCellValue(errorSheet, "B"+rowNo, mutationTypeCell(errItem.MutationType))
		f.SetCellValue(errorSheet, "C"+rowNo, errItem.ErrorCode)
		f.SetCellValue(errorSheet, "D"+rowNo, errItem.Message)
		f.SetCellValue(errorSheet, "E"+rowNo, errItem.Retryable)
	}

	return f, nil
}

func timeCell(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func mutationTypeCell(mutationType *int) string {
	if mutationType == nil {
		return ""
	}
	return eboekhouden.MutationType(*mutationType).String()
}
