package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
	"gopkg.in/yaml.v3"

	"github.com/ternarybob/soldby/internal/models"
)

// Supported report formats
const (
	FormatText     = "text"
	FormatJSON     = "json"
	FormatYAML     = "yaml"
	FormatMarkdown = "markdown"
	FormatHTML     = "html"
	FormatPDF      = "pdf"
)

// Write renders report to w in the given format
func Write(w io.Writer, format string, report Report) error {
	switch format {
	case FormatText, "":
		return writeText(w, report)
	case FormatJSON:
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(report); err != nil {
			return fmt.Errorf("failed to encode json report: %w", err)
		}
		return nil
	case FormatYAML:
		encoder := yaml.NewEncoder(w)
		encoder.SetIndent(2)
		if err := encoder.Encode(report); err != nil {
			return fmt.Errorf("failed to encode yaml report: %w", err)
		}
		return encoder.Close()
	case FormatMarkdown:
		_, err := io.WriteString(w, Markdown(report))
		return err
	case FormatHTML:
		return writeHTML(w, report)
	case FormatPDF:
		data, err := PDF(report)
		if err != nil {
			return err
		}
		_, err = w.Write(data)
		return err
	default:
		return fmt.Errorf("unsupported report format: %s", format)
	}
}

func writeText(w io.Writer, report Report) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ASIN\tSTATE\tSELLER\tCOUNTRY\tRATING\tFLAG")
	for _, p := range report.Products {
		flag := ""
		if p.Highlight {
			flag = "*"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			p.Identifier, p.State, p.Seller.DisplayName(), country(p), rating(p), flag)
	}
	if err := tw.Flush(); err != nil {
		return fmt.Errorf("failed to write text report: %w", err)
	}

	s := report.Summary
	_, err := fmt.Fprintf(w, "\n%d products: %d resolved, %d unresolved, %d blocked, %d highlighted\n",
		s.Total, s.Resolved, s.Unresolved, s.Blocked, s.Highlighted)
	return err
}

// Markdown renders the report as a GitHub flavoured markdown document
func Markdown(report Report) string {
	var b strings.Builder

	b.WriteString("# Seller report\n\n")
	if report.Source != "" {
		fmt.Fprintf(&b, "Source: %s\n\n", report.Source)
	}
	fmt.Fprintf(&b, "Generated: %s\n\n", report.GeneratedAt.Format("2006-01-02 15:04:05 MST"))

	s := report.Summary
	b.WriteString("## Summary\n\n")
	fmt.Fprintf(&b, "- Products: %d\n", s.Total)
	fmt.Fprintf(&b, "- Resolved: %d\n", s.Resolved)
	fmt.Fprintf(&b, "- Unresolved: %d\n", s.Unresolved)
	fmt.Fprintf(&b, "- Blocked: %d\n", s.Blocked)
	fmt.Fprintf(&b, "- Sold by Amazon: %d\n", s.FirstParty)
	fmt.Fprintf(&b, "- Third-party sellers: %d\n", s.ThirdParty)
	fmt.Fprintf(&b, "- Non-domestic sellers: %d\n\n", s.Highlighted)

	if len(report.Products) == 0 {
		return b.String()
	}

	b.WriteString("## Products\n\n")
	b.WriteString("| ASIN | State | Seller | Country | Rating | Non-domestic |\n")
	b.WriteString("|---|---|---|---|---|---|\n")
	for _, p := range report.Products {
		seller := escapeCell(p.Seller.DisplayName())
		if p.SellerURL != "" {
			seller = fmt.Sprintf("[%s](%s)", seller, p.SellerURL)
		}
		flag := ""
		if p.Highlight {
			flag = "yes"
		}
		fmt.Fprintf(&b, "| %s | %s | %s | %s | %s | %s |\n",
			escapeCell(p.Identifier), p.State, seller, escapeCell(country(p)), escapeCell(rating(p)), flag)
	}

	var blocked []string
	for _, p := range report.Products {
		if p.State == models.StateBlocked && p.Message != "" {
			blocked = append(blocked, p.Message)
		}
	}
	if len(blocked) > 0 {
		fmt.Fprintf(&b, "\n> %s\n", blocked[0])
	}

	return b.String()
}

func writeHTML(w io.Writer, report Report) error {
	md := goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithRendererOptions(html.WithXHTML()),
	)

	var body bytes.Buffer
	if err := md.Convert([]byte(Markdown(report)), &body); err != nil {
		return fmt.Errorf("failed to render html report: %w", err)
	}

	_, err := fmt.Fprintf(w, "<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n<title>Seller report</title>\n</head>\n<body>\n%s</body>\n</html>\n", body.String())
	return err
}

func country(p models.Product) string {
	if p.Profile == nil {
		return ""
	}
	return p.Profile.Country
}

func rating(p models.Product) string {
	if p.Profile == nil {
		return ""
	}
	r := p.Profile.Rating
	if r.Hidden {
		return "hidden"
	}
	if r.Score == "" && r.Count == "" {
		return ""
	}
	return fmt.Sprintf("%s (%s)", r.Score, r.Count)
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", "\\|")
}
