package report

import (
	"bytes"
	"fmt"

	"github.com/go-pdf/fpdf"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	extast "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"
)

// PDF renders the markdown form of report into an A4 document
func PDF(report Report) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(10, 10, 10)
	pdf.SetAutoPageBreak(true, 10)
	pdf.SetTitle("Seller report", true)
	pdf.AddPage()
	pdf.SetFont("Arial", "", 9)

	md := goldmark.New(goldmark.WithExtensions(extension.Table))
	source := []byte(Markdown(report))
	doc := md.Parser().Parse(text.NewReader(source))

	r := &pdfRenderer{
		pdf:       pdf,
		source:    source,
		translate: pdf.UnicodeTranslatorFromDescriptor(""),
	}
	if err := ast.Walk(doc, r.walk); err != nil {
		return nil, fmt.Errorf("failed to generate PDF: %w", err)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to generate PDF output: %w", err)
	}
	return buf.Bytes(), nil
}

type pdfRenderer struct {
	pdf       *fpdf.Fpdf
	source    []byte
	translate func(string) string
}

func (r *pdfRenderer) walk(n ast.Node, entering bool) (ast.WalkStatus, error) {
	switch n.Kind() {
	case ast.KindHeading:
		if entering {
			size := 10.0
			if n.(*ast.Heading).Level == 1 {
				size = 14
			} else if n.(*ast.Heading).Level == 2 {
				size = 12
			}
			r.pdf.Ln(4)
			r.pdf.SetFont("Arial", "B", size)
		} else {
			r.pdf.Ln(7)
			r.pdf.SetFont("Arial", "", 9)
		}
	case ast.KindParagraph:
		if !entering {
			r.pdf.Ln(6)
		}
	case ast.KindListItem:
		if entering {
			r.pdf.SetX(15)
			r.pdf.Write(5, "- ")
		} else {
			r.pdf.Ln(5)
		}
	case ast.KindText:
		if entering {
			r.pdf.Write(5, r.translate(string(n.(*ast.Text).Segment.Value(r.source))))
		}
	case extast.KindTable:
		if entering {
			r.renderTable(r.tableRows(n))
			return ast.WalkSkipChildren, nil
		}
	}
	return ast.WalkContinue, nil
}

func (r *pdfRenderer) tableRows(table ast.Node) [][]string {
	var rows [][]string
	var collect func(node ast.Node)
	collect = func(node ast.Node) {
		for child := node.FirstChild(); child != nil; child = child.NextSibling() {
			switch child.(type) {
			case *extast.TableHeader, *extast.TableRow:
				var row []string
				for cell := child.FirstChild(); cell != nil; cell = cell.NextSibling() {
					row = append(row, r.cellText(cell))
				}
				rows = append(rows, row)
			}
		}
	}
	collect(table)
	return rows
}

func (r *pdfRenderer) cellText(cell ast.Node) string {
	var buf bytes.Buffer
	_ = ast.Walk(cell, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if t, ok := n.(*ast.Text); ok && entering {
			buf.Write(t.Segment.Value(r.source))
		}
		return ast.WalkContinue, nil
	})
	return buf.String()
}

// Column widths for ASIN, state, seller, country, rating and flag, in mm
var tableWidths = []float64{28, 22, 62, 18, 32, 28}

func (r *pdfRenderer) renderTable(rows [][]string) {
	r.pdf.Ln(2)
	for i, row := range rows {
		if i == 0 {
			r.pdf.SetFont("Arial", "B", 8)
			r.pdf.SetFillColor(230, 230, 230)
		} else {
			r.pdf.SetFont("Arial", "", 8)
			r.pdf.SetFillColor(255, 255, 255)
		}
		for j, cell := range row {
			if j >= len(tableWidths) {
				break
			}
			r.pdf.CellFormat(tableWidths[j], 6, r.fit(cell, tableWidths[j]-2), "1", 0, "L", i == 0, 0, "")
		}
		r.pdf.Ln(-1)
	}
	r.pdf.Ln(3)
	r.pdf.SetFont("Arial", "", 9)
}

// fit truncates s so it renders within width
func (r *pdfRenderer) fit(s string, width float64) string {
	s = r.translate(s)
	if r.pdf.GetStringWidth(s) <= width {
		return s
	}
	runes := []rune(s)
	for len(runes) > 0 && r.pdf.GetStringWidth(string(runes)+"...") > width {
		runes = runes[:len(runes)-1]
	}
	return string(runes) + "..."
}
