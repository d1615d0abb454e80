package export

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fmuoria/recruit-crm/internal/models"
	"github.com/xuri/excelize/v2"
)

const (
	// SheetName is the only sheet of a candidate export
	SheetName = "Candidates"
	// EmptyMessage fills the sheet when no candidate matched the filters
	EmptyMessage = "No candidates found for the selected filters"
)

// Filename is the download name for a requirement's export
func Filename(requirementID int64, at time.Time) string {
	return fmt.Sprintf("candidates_req_%d_%s.xlsx", requirementID, at.Format("20060102_1504"))
}

// WriteCandidates renders the table as a workbook and writes it to w
func WriteCandidates(table *models.CandidateTable, w io.Writer) error {
	f, err := buildWorkbook(table)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write Excel workbook: %w", err)
	}
	return nil
}

// SaveCandidates writes the workbook to outputPath, adding .xlsx when missing.
// It returns the path actually written.
func SaveCandidates(table *models.CandidateTable, outputPath string) (string, error) {
	f, err := buildWorkbook(table)
	if err != nil {
		return "", err
	}
	defer f.Close()

	if !strings.HasSuffix(strings.ToLower(outputPath), ".xlsx") {
		outputPath = outputPath + ".xlsx"
	}
	outputPath = filepath.Clean(outputPath)

	if err := f.SaveAs(outputPath); err != nil {
		// If direct save fails, try buffer write fallback
		var buf bytes.Buffer
		if writeErr := f.Write(&buf); writeErr != nil {
			return "", fmt.Errorf("failed to save Excel file: direct save failed (%v), buffer write also failed: %w", err, writeErr)
		}
		if fileErr := os.WriteFile(outputPath, buf.Bytes(), 0644); fileErr != nil {
			return "", fmt.Errorf("failed to save Excel file: direct save failed (%v), file write failed: %w", err, fileErr)
		}
	}
	return outputPath, nil
}

func buildWorkbook(table *models.CandidateTable) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		f.Close()
		return nil, err
	}

	if table == nil || len(table.Rows) == 0 {
		f.SetCellValue(SheetName, "A1", EmptyMessage)
		f.SetColWidth(SheetName, "A", "A", 50)
		return f, nil
	}

	if err := writeCandidatesSheet(f, table); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create candidates sheet: %w", err)
	}
	return f, nil
}

func writeCandidatesSheet(f *excelize.File, table *models.CandidateTable) error {
	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center", WrapText: true},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
		},
	})
	if err != nil {
		return err
	}

	for i, col := range table.Columns {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		f.SetCellValue(SheetName, cell, col)
		f.SetCellStyle(SheetName, cell, cell, headerStyle)

		name, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		f.SetColWidth(SheetName, name, name, columnWidth(col))
	}

	for r, row := range table.Rows {
		for c, val := range row {
			cell, err := excelize.CoordinatesToCellName(c+1, r+2)
			if err != nil {
				return err
			}
			f.SetCellValue(SheetName, cell, val)
		}
	}

	// Freeze the header row
	return f.SetPanes(SheetName, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
}

func columnWidth(col string) float64 {
	switch col {
	case "comments", "key_skills", "notice_period_details":
		return 40
	case "candidate_name", "emails", "current_company", "job_title":
		return 25
	}
	return 16
}
