// Package report exports a finalized Result as a human-readable document.
//
// Renderers only read the Result they are given. A failed export can be
// retried with the same value.
package report

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/stemsi/exstem-proctor/internal/model"
)

// ErrRenderFailed wraps every renderer error.
var ErrRenderFailed = errors.New("report: render failed")

// ErrUnknownFormat is returned for unsupported export formats.
var ErrUnknownFormat = errors.New("report: unknown format")

// Format is an export format.
type Format string

const (
	FormatPDF  Format = "pdf"
	FormatXLSX Format = "xlsx"
)

// ParseFormat accepts "pdf" or "xlsx" (case-insensitive). Empty means PDF.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case "", FormatPDF:
		return FormatPDF, nil
	case FormatXLSX:
		return FormatXLSX, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
	}
}

// ContentType is the MIME type for f.
func (f Format) ContentType() string {
	if f == FormatXLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "application/pdf"
}

// Filename derives the download name from the exam title: runs of whitespace
// become underscores and the fixed suffix "_Exam_Report" is appended.
func Filename(title string, f Format) string {
	base := strings.Join(strings.Fields(title), "_")
	base = strings.NewReplacer("/", "_", `\`, "_", `"`, "").Replace(base)
	if base == "" {
		return "Exam_Report." + string(f)
	}
	return base + "_Exam_Report." + string(f)
}

// Render writes r in format f. at is the timestamp printed on the document.
func Render(w io.Writer, f Format, r model.Result, at time.Time) error {
	switch f {
	case FormatPDF:
		return PDF(w, r, at)
	case FormatXLSX:
		return XLSX(w, r, at)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, f)
	}
}

const timestampLayout = "2006-01-02 15:04:05 MST"

func scoreLine(r *model.Result) string {
	return fmt.Sprintf("%d / %d (%d%%)", r.Score, r.Total, r.Percentage)
}

func choice(q *model.QuestionResult) string {
	if !q.Answered() {
		return "Not answered"
	}
	return q.UserChoice
}

func verdict(q *model.QuestionResult) string {
	if q.IsCorrect {
		return "Correct"
	}
	return "Incorrect"
}

// rgb parses "#RRGGBB". Anything else renders black.
func rgb(hex string) (uint8, uint8, uint8) {
	hex = strings.TrimPrefix(hex, "#")
	if len(hex) != 6 {
		return 0, 0, 0
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return 0, 0, 0
	}
	return uint8(v >> 16), uint8(v >> 8), uint8(v)
}
