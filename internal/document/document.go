// Package document is a presentation-neutral model of a rendered report.
// Render backends walk the tree; builders never emit markup.
package document

import (
	"errors"
	"fmt"
	"strings"
)

type BlockKind string

const (
	KindParagraph BlockKind = "paragraph"
	KindFields    BlockKind = "fields"
	KindTable     BlockKind = "table"
	KindBullets   BlockKind = "bullets"
	KindNote      BlockKind = "note"
)

var ErrInvalidDocument = errors.New("invalid document")

// Field is a label/value pair.
type Field struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// Table is a header row plus data rows of equal width.
type Table struct {
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
	// Empty is shown instead of the rows when there are none.
	Empty string `json:"empty,omitempty"`
}

type Block struct {
	Kind   BlockKind `json:"kind"`
	Text   string    `json:"text,omitempty"`
	Fields []Field   `json:"fields,omitempty"`
	Table  *Table    `json:"table,omitempty"`
	Items  []string  `json:"items,omitempty"`
}

type Section struct {
	Heading string  `json:"heading"`
	Blocks  []Block `json:"blocks"`
}

type Document struct {
	Title    string    `json:"title"`
	Subtitle string    `json:"subtitle,omitempty"`
	Sections []Section `json:"sections"`
}

func Paragraph(text string) Block { return Block{Kind: KindParagraph, Text: text} }

func Note(text string) Block { return Block{Kind: KindNote, Text: text} }

func Fields(fields ...Field) Block { return Block{Kind: KindFields, Fields: fields} }

func Bullets(items ...string) Block { return Block{Kind: KindBullets, Items: items} }

func TableBlock(t Table) Block { return Block{Kind: KindTable, Table: &t} }

// NewSection returns a section with the given heading and blocks.
func NewSection(heading string, blocks ...Block) Section {
	return Section{Heading: heading, Blocks: blocks}
}

// Validate checks the structural rules render backends rely on.
func (d Document) Validate() error {
	if strings.TrimSpace(d.Title) == "" {
		return fmt.Errorf("%w: missing title", ErrInvalidDocument)
	}
	if len(d.Sections) == 0 {
		return fmt.Errorf("%w: no sections", ErrInvalidDocument)
	}
	for i, s := range d.Sections {
		if strings.TrimSpace(s.Heading) == "" {
			return fmt.Errorf("%w: section %d has no heading", ErrInvalidDocument, i)
		}
		for j, b := range s.Blocks {
			if err := b.validate(); err != nil {
				return fmt.Errorf("%w: section %q block %d: %v", ErrInvalidDocument, s.Heading, j, err)
			}
		}
	}
	return nil
}

func (b Block) validate() error {
	switch b.Kind {
	case KindParagraph, KindNote:
		if b.Text == "" {
			return errors.New("empty text")
		}
	case KindFields:
		if len(b.Fields) == 0 {
			return errors.New("no fields")
		}
	case KindBullets:
		if len(b.Items) == 0 {
			return errors.New("no items")
		}
	case KindTable:
		if b.Table == nil || len(b.Table.Columns) == 0 {
			return errors.New("table without columns")
		}
		for r, row := range b.Table.Rows {
			if len(row) != len(b.Table.Columns) {
				return fmt.Errorf("row %d has %d cells, want %d", r, len(row), len(b.Table.Columns))
			}
		}
	default:
		return fmt.Errorf("unknown block kind %q", b.Kind)
	}
	return nil
}

// Section returns the first section with heading h.
func (d Document) Section(h string) (Section, bool) {
	for _, s := range d.Sections {
		if s.Heading == h {
			return s, true
		}
	}
	return Section{}, false
}
