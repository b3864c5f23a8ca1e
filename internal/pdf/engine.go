// Package pdf renders document.Document trees to PDF with gofpdf.
package pdf

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/fdg312/sugarcheck/internal/document"
	"github.com/jung-kurt/gofpdf"
)

// ErrClosed is returned when an engine is used after Close.
var ErrClosed = errors.New("pdf: engine closed")

const (
	fontFamily = "Helvetica"
	pageWidth  = 210.0
	margin     = 15.0
	lineHeight = 5.5
)

// Engine renders a single document. It is not safe for concurrent use and
// must not be reused across requests.
type Engine struct {
	pdf    *gofpdf.Fpdf
	tr     func(string) string
	closed bool
}

func New() *Engine {
	return &Engine{}
}

// RenderDocumentToBytes lays out doc on A4 pages and returns the PDF bytes.
func (e *Engine) RenderDocumentToBytes(ctx context.Context, doc document.Document) ([]byte, error) {
	if e.closed {
		return nil, ErrClosed
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	e.pdf = pdf
	e.tr = pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetTitle(doc.Title, true)
	pdf.SetCreator("sugarcheck", true)
	pdf.SetMargins(margin, margin, margin)
	pdf.SetAutoPageBreak(true, margin)
	pdf.AliasNbPages("")
	pdf.SetFooterFunc(func() {
		pdf.SetY(-12)
		pdf.SetFont(fontFamily, "I", 8)
		pdf.SetTextColor(128, 128, 128)
		pdf.CellFormat(0, 8, fmt.Sprintf("Page %d/{nb}", pdf.PageNo()), "", 0, "C", false, 0, "")
	})
	pdf.AddPage()

	e.header(doc)
	for _, s := range doc.Sections {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		e.section(s)
	}

	if err := pdf.Error(); err != nil {
		return nil, fmt.Errorf("failed to lay out PDF: %w", err)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to generate PDF: %w", err)
	}
	return buf.Bytes(), nil
}

// Close releases the layout state. Calling Close twice is a no-op.
func (e *Engine) Close() error {
	if e.closed {
		return nil
	}
	e.closed = true
	e.pdf = nil
	e.tr = nil
	return nil
}

func (e *Engine) header(doc document.Document) {
	pdf := e.pdf
	pdf.SetFillColor(32, 96, 160)
	pdf.SetTextColor(255, 255, 255)
	pdf.SetFont(fontFamily, "B", 20)
	pdf.CellFormat(0, 14, e.tr(doc.Title), "", 1, "C", true, 0, "")
	if doc.Subtitle != "" {
		pdf.SetFont(fontFamily, "", 10)
		pdf.CellFormat(0, 7, e.tr(doc.Subtitle), "", 1, "C", true, 0, "")
	}
	pdf.SetTextColor(0, 0, 0)
	pdf.Ln(6)
}

func (e *Engine) section(s document.Section) {
	pdf := e.pdf
	pdf.SetFont(fontFamily, "B", 14)
	pdf.SetTextColor(32, 96, 160)
	pdf.CellFormat(0, 8, e.tr(s.Heading), "B", 1, "L", false, 0, "")
	pdf.SetTextColor(0, 0, 0)
	pdf.Ln(2)

	for _, b := range s.Blocks {
		switch b.Kind {
		case document.KindParagraph:
			pdf.SetFont(fontFamily, "", 10)
			pdf.MultiCell(0, lineHeight, e.tr(b.Text), "", "L", false)
		case document.KindNote:
			pdf.SetFont(fontFamily, "I", 9)
			pdf.SetTextColor(90, 90, 90)
			pdf.MultiCell(0, lineHeight, e.tr(b.Text), "", "L", false)
			pdf.SetTextColor(0, 0, 0)
		case document.KindFields:
			e.fields(b.Fields)
		case document.KindBullets:
			e.bullets(b.Items)
		case document.KindTable:
			e.table(b.Table)
		}
		pdf.Ln(2)
	}
	pdf.Ln(4)
}

func (e *Engine) fields(fields []document.Field) {
	pdf := e.pdf
	for _, f := range fields {
		pdf.SetFont(fontFamily, "B", 10)
		pdf.CellFormat(45, lineHeight+1, e.tr(f.Label+":"), "", 0, "L", false, 0, "")
		pdf.SetFont(fontFamily, "", 10)
		pdf.CellFormat(0, lineHeight+1, e.tr(f.Value), "", 1, "L", false, 0, "")
	}
}

func (e *Engine) bullets(items []string) {
	pdf := e.pdf
	pdf.SetFont(fontFamily, "", 10)
	for _, item := range items {
		pdf.SetX(margin + 4)
		pdf.CellFormat(5, lineHeight, e.tr("•"), "", 0, "L", false, 0, "")
		pdf.MultiCell(0, lineHeight, e.tr(item), "", "L", false)
	}
}

func (e *Engine) table(t *document.Table) {
	pdf := e.pdf
	width := (pageWidth - 2*margin) / float64(len(t.Columns))

	pdf.SetFont(fontFamily, "B", 10)
	pdf.SetFillColor(230, 236, 245)
	for _, c := range t.Columns {
		pdf.CellFormat(width, 7, e.tr(c), "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont(fontFamily, "", 10)
	if len(t.Rows) == 0 {
		empty := t.Empty
		if empty == "" {
			empty = "No data"
		}
		pdf.CellFormat(width*float64(len(t.Columns)), 7, e.tr(empty), "1", 1, "C", false, 0, "")
		return
	}
	for i, row := range t.Rows {
		fill := i%2 == 1
		pdf.SetFillColor(247, 249, 252)
		for _, cell := range row {
			pdf.CellFormat(width, 6.5, e.tr(cell), "1", 0, "C", fill, 0, "")
		}
		pdf.Ln(-1)
	}
}
