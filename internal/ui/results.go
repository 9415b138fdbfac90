package ui

import (
	"encoding/json"
	"fmt"
	"html"
	"io"
	"sort"
	"strings"
	"time"

	edmerrors "github.com/Aman-CERP/edm/internal/errors"
	"github.com/Aman-CERP/edm/internal/search"
	"github.com/Aman-CERP/edm/internal/store"
)

const (
	markOpen  = "<mark>"
	markClose = "</mark>"
)

// Printer writes query results as text or JSON.
type Printer struct {
	out     io.Writer
	styles  Styles
	noColor bool
	json    bool
}

// NewPrinter creates a printer. asJSON switches every method to indented
// JSON of the raw value.
func NewPrinter(out io.Writer, noColor, asJSON bool) *Printer {
	noColor = noColor || DetectNoColor() || !IsTTY(out)
	return &Printer{out: out, styles: GetStyles(noColor), noColor: noColor, json: asJSON}
}

// Highlight renders the <mark> spans of a search fragment. Without color
// the match is wrapped in brackets.
func (p *Printer) Highlight(fragment string) string {
	var sb strings.Builder
	rest := fragment
	for {
		start := strings.Index(rest, markOpen)
		if start < 0 {
			break
		}
		end := strings.Index(rest[start:], markClose)
		if end < 0 {
			break
		}
		end += start

		sb.WriteString(html.UnescapeString(rest[:start]))
		match := html.UnescapeString(rest[start+len(markOpen) : end])
		if p.noColor {
			sb.WriteString("[" + match + "]")
		} else {
			sb.WriteString(p.styles.Mark.Render(match))
		}
		rest = rest[end+len(markClose):]
	}
	sb.WriteString(html.UnescapeString(rest))
	return sb.String()
}

// PrintResults lists search hits with their highlighted fragments.
func (p *Printer) PrintResults(res *search.Results) error {
	if p.json {
		return p.encode(res)
	}

	_, _ = fmt.Fprintf(p.out, "%s\n\n", p.styles.Header.Render(
		fmt.Sprintf("%d matches for %q (%s)", res.Total, res.Pattern, res.Took.Round(time.Millisecond))))

	for i, hit := range res.Hits {
		doc := hit.Document
		_, _ = fmt.Fprintf(p.out, "%2d. %s %s\n", i+1,
			p.styles.Path.Render(doc.NodePath),
			p.styles.Dim.Render(fmt.Sprintf("[%s %s %.2f]", doc.FileExtension, doc.FileDate.Format(time.DateOnly), hit.Score)))

		fields := make([]string, 0, len(hit.Highlights))
		for f := range hit.Highlights {
			fields = append(fields, f)
		}
		sort.Strings(fields)
		for _, f := range fields {
			for _, frag := range hit.Highlights[f] {
				_, _ = fmt.Fprintf(p.out, "    %s %s\n", p.styles.Label.Render(f+":"), p.Highlight(oneLine(frag)))
			}
		}
	}
	if len(res.Hits) == 0 {
		_, _ = fmt.Fprintln(p.out, p.styles.Dim.Render("no documents match"))
		if _, err := search.ParsePattern(res.Pattern); err != nil {
			msg := err.Error()
			if e, ok := edmerrors.As(err); ok {
				msg = e.Message
			}
			_, _ = fmt.Fprintln(p.out, p.styles.Dim.Render("hint: "+msg))
		}
	}
	return nil
}

// PrintSuggestions lists suggested documents, one per line.
func (p *Printer) PrintSuggestions(docs []store.Document) error {
	if p.json {
		return p.encode(docs)
	}
	for _, d := range docs {
		_, _ = fmt.Fprintf(p.out, "%s  %s\n", d.Name, p.styles.Dim.Render(d.NodePath))
	}
	return nil
}

// PrintFacets prints the extension, date and category facets in that order.
func (p *Printer) PrintFacets(facets map[string][]store.Bucket) error {
	if p.json {
		return p.encode(facets)
	}
	for i, name := range []string{search.FacetFileExtension, search.FacetFileDate, search.FacetFileCategory} {
		if i > 0 {
			_, _ = fmt.Fprintln(p.out)
		}
		_, _ = fmt.Fprintln(p.out, p.styles.Header.Render(name))
		p.printBuckets(facets[name])
	}
	return nil
}

// PrintTerms prints top path terms.
func (p *Printer) PrintTerms(terms []store.Bucket) error {
	if p.json {
		return p.encode(terms)
	}
	p.printBuckets(terms)
	return nil
}

func (p *Printer) printBuckets(buckets []store.Bucket) {
	if len(buckets) == 0 {
		_, _ = fmt.Fprintln(p.out, p.styles.Dim.Render("  (none)"))
		return
	}
	width := 0
	for _, b := range buckets {
		width = max(width, len(b.Key))
	}
	for _, b := range buckets {
		_, _ = fmt.Fprintf(p.out, "  %-*s %s\n", width, b.Key, p.styles.Active.Render(fmt.Sprint(b.Count)))
	}
}

// PrintSources lists catalog sources with their latest run and document
// count. counts may miss a source when the index could not be read.
func (p *Printer) PrintSources(sources []store.SourceInfo, counts map[string]uint64) error {
	if p.json {
		type row struct {
			store.SourceInfo
			Documents uint64 `json:"documents"`
		}
		rows := make([]row, 0, len(sources))
		for _, s := range sources {
			rows = append(rows, row{SourceInfo: s, Documents: counts[s.ID]})
		}
		return p.encode(rows)
	}

	if len(sources) == 0 {
		_, _ = fmt.Fprintln(p.out, p.styles.Dim.Render("no sources crawled yet"))
		return nil
	}
	for _, s := range sources {
		_, _ = fmt.Fprintf(p.out, "%s %s\n", p.styles.Header.Render(s.Name), p.styles.Dim.Render("("+s.CategoryName+")"))
		_, _ = fmt.Fprintf(p.out, "  %s %d\n", p.styles.Label.Render("documents:"), counts[s.ID])
		if run := s.LastRun; run != nil {
			_, _ = fmt.Fprintf(p.out, "  %s %s %s, %d indexed, %d skipped, %d failed\n",
				p.styles.Label.Render("last run: "), run.StartedAt.Local().Format(time.DateTime),
				p.runStatus(run.Status), run.Indexed, run.Skipped, run.Failed)
		}
	}
	return nil
}

func (p *Printer) runStatus(status string) string {
	switch status {
	case store.RunCompleted:
		return p.styles.Success.Render(status)
	case store.RunFailed:
		return p.styles.Error.Render(status)
	default:
		return p.styles.Warning.Render(status)
	}
}

func (p *Printer) encode(v any) error {
	enc := json.NewEncoder(p.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
