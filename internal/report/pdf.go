package report

import (
	"fmt"
	"io"
	"time"

	"github.com/signintech/gopdf"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"

	"github.com/stemsi/exstem-proctor/internal/model"
)

const (
	pdfMargin     = 40.0
	pdfLineHeight = 16.0
	pdfBottom     = 800.0

	fontRegular = "go"
	fontBold    = "go-bold"
)

type pdfWriter struct {
	pdf   *gopdf.GoPdf
	width float64
}

// PDF renders r as an A4 document.
func PDF(w io.Writer, r model.Result, at time.Time) error {
	doc, err := newPDFWriter(r.ExamTitle)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRenderFailed, err)
	}
	if err := doc.render(&r, at); err != nil {
		return fmt.Errorf("%w: %v", ErrRenderFailed, err)
	}
	// gopdf ignores errors from the writer it compiles into, so compile into
	// memory and write the bytes ourselves.
	raw, err := doc.pdf.GetBytesPdfReturnErr()
	if err != nil {
		return fmt.Errorf("%w: compile pdf: %v", ErrRenderFailed, err)
	}
	if _, err := w.Write(raw); err != nil {
		return fmt.Errorf("%w: write pdf: %v", ErrRenderFailed, err)
	}
	return nil
}

func newPDFWriter(title string) (*pdfWriter, error) {
	pdf := &gopdf.GoPdf{}
	pdf.Start(gopdf.Config{PageSize: *gopdf.PageSizeA4})
	pdf.SetInfo(gopdf.PdfInfo{Title: title + " Exam Report", Creator: "exstem-proctor"})

	if err := pdf.AddTTFFontData(fontRegular, goregular.TTF); err != nil {
		return nil, fmt.Errorf("load regular font: %w", err)
	}
	if err := pdf.AddTTFFontData(fontBold, gobold.TTF); err != nil {
		return nil, fmt.Errorf("load bold font: %w", err)
	}

	pdf.AddPage()
	pdf.SetXY(pdfMargin, pdfMargin)
	return &pdfWriter{pdf: pdf, width: gopdf.PageSizeA4.W - 2*pdfMargin}, nil
}

func (d *pdfWriter) render(r *model.Result, at time.Time) error {
	if err := d.text(fontBold, 18, r.ExamTitle); err != nil {
		return err
	}
	if err := d.text(fontRegular, 10, "Generated "+at.Format(timestampLayout)); err != nil {
		return err
	}
	d.gap()

	if err := d.text(fontBold, 14, "Score: "+scoreLine(r)); err != nil {
		return err
	}
	d.pdf.SetTextColor(rgb(r.BandColor))
	if err := d.text(fontBold, 12, "Proficiency: "+r.Band.Label()); err != nil {
		return err
	}
	d.pdf.SetTextColor(0, 0, 0)
	summary := fmt.Sprintf("Finished by: %s    Violations: %d    Time left: %ds", r.Reason, r.Violations, r.RemainingSeconds)
	if err := d.text(fontRegular, 10, summary); err != nil {
		return err
	}
	d.rule()

	for i := range r.PerQuestion {
		if err := d.question(&r.PerQuestion[i]); err != nil {
			return err
		}
	}
	return nil
}

func (d *pdfWriter) question(q *model.QuestionResult) error {
	if err := d.text(fontBold, 11, fmt.Sprintf("%d. %s", q.Index+1, q.Question)); err != nil {
		return err
	}
	if err := d.text(fontRegular, 10, "Your answer: "+choice(q)); err != nil {
		return err
	}
	if err := d.text(fontRegular, 10, "Correct answer: "+q.CorrectChoice); err != nil {
		return err
	}

	if q.IsCorrect {
		d.pdf.SetTextColor(rgb(model.BandExpert.Color()))
	} else {
		d.pdf.SetTextColor(rgb(model.BandBeginner.Color()))
	}
	err := d.text(fontBold, 10, verdict(q))
	d.pdf.SetTextColor(0, 0, 0)
	d.gap()
	return err
}

// text writes s wrapped to the content width, breaking pages as needed.
func (d *pdfWriter) text(family string, size float64, s string) error {
	if err := d.pdf.SetFont(family, "", size); err != nil {
		return err
	}
	if s == "" {
		s = " "
	}
	lines, err := d.pdf.SplitText(s, d.width)
	if err != nil {
		return err
	}
	for _, line := range lines {
		if d.pdf.GetY()+pdfLineHeight > pdfBottom {
			d.pdf.AddPage()
			d.pdf.SetY(pdfMargin)
		}
		d.pdf.SetX(pdfMargin)
		if err := d.pdf.Cell(nil, line); err != nil {
			return err
		}
		d.pdf.Br(pdfLineHeight)
	}
	return nil
}

func (d *pdfWriter) gap() {
	d.pdf.Br(pdfLineHeight / 2)
}

func (d *pdfWriter) rule() {
	y := d.pdf.GetY() + 4
	d.pdf.SetStrokeColor(180, 180, 180)
	d.pdf.Line(pdfMargin, y, pdfMargin+d.width, y)
	d.pdf.SetY(y + 10)
}
