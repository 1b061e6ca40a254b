package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/stemsi/exstem-proctor/internal/model"
)

// SheetName is the single worksheet in an XLSX report.
const SheetName = "Report"

// Row where the per-question table header sits. Rows above it hold the summary.
const xlsxTableRow = 8

var xlsxColumns = []struct {
	title string
	width float64
}{
	{"#", 6},
	{"Question", 60},
	{"Your Answer", 28},
	{"Correct Answer", 28},
	{"Result", 12},
}

// XLSX renders r as a one-sheet workbook.
func XLSX(w io.Writer, r model.Result, at time.Time) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := buildSheet(f, &r, at); err != nil {
		return fmt.Errorf("%w: %v", ErrRenderFailed, err)
	}
	if err := f.Write(w); err != nil {
		return fmt.Errorf("%w: write xlsx: %v", ErrRenderFailed, err)
	}
	return nil
}

func buildSheet(f *excelize.File, r *model.Result, at time.Time) error {
	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return err
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	title, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true, Size: 16}})
	if err != nil {
		return err
	}
	band, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true, Color: strings.TrimPrefix(r.BandColor, "#")}})
	if err != nil {
		return err
	}
	header, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"34495E"}},
	})
	if err != nil {
		return err
	}

	summary := [][2]any{
		{"Generated", at.Format(timestampLayout)},
		{"Score", scoreLine(r)},
		{"Proficiency", r.Band.Label()},
		{"Finished by", string(r.Reason)},
		{"Violations", r.Violations},
		{"Time left (s)", r.RemainingSeconds},
	}

	if err := f.SetCellValue(SheetName, "A1", r.ExamTitle); err != nil {
		return err
	}
	if err := f.SetCellStyle(SheetName, "A1", "A1", title); err != nil {
		return err
	}
	for i, kv := range summary {
		row := i + 2
		if err := setRow(f, row, kv[0], kv[1]); err != nil {
			return err
		}
		if err := f.SetCellStyle(SheetName, cell(1, row), cell(1, row), bold); err != nil {
			return err
		}
	}
	if err := f.SetCellStyle(SheetName, "B4", "B4", band); err != nil {
		return err
	}

	for i, col := range xlsxColumns {
		name := cell(i+1, xlsxTableRow)
		if err := f.SetCellValue(SheetName, name, col.title); err != nil {
			return err
		}
		letter := strings.TrimRight(name, "0123456789")
		if err := f.SetColWidth(SheetName, letter, letter, col.width); err != nil {
			return err
		}
	}
	if err := f.SetCellStyle(SheetName, cell(1, xlsxTableRow), cell(len(xlsxColumns), xlsxTableRow), header); err != nil {
		return err
	}

	for i := range r.PerQuestion {
		q := &r.PerQuestion[i]
		if err := setRow(f, xlsxTableRow+1+i, q.Index+1, q.Question, choice(q), q.CorrectChoice, verdict(q)); err != nil {
			return err
		}
	}
	return nil
}

func setRow(f *excelize.File, row int, values ...any) error {
	for i, v := range values {
		if err := f.SetCellValue(SheetName, cell(i+1, row), v); err != nil {
			return err
		}
	}
	return nil
}

// cell never fails for the small positive coordinates used here.
func cell(col, row int) string {
	name, _ := excelize.CoordinatesToCellName(col, row)
	return name
}
