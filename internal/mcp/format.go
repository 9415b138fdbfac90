package mcp

import (
	"fmt"
	"html"
	"sort"
	"strings"
	"time"

	edmerrors "github.com/Aman-CERP/edm/internal/errors"
	"github.com/Aman-CERP/edm/internal/search"
	"github.com/Aman-CERP/edm/internal/store"
)

// FormatSearchResults renders a page of hits as markdown. Highlighted
// matches become bold.
func FormatSearchResults(res *search.Results, offset int) string {
	if res == nil {
		return "No documents match"
	}
	if len(res.Hits) == 0 {
		if _, err := search.ParsePattern(res.Pattern); err != nil {
			return fmt.Sprintf("No documents match \"%s\" (%s)", res.Pattern, patternProblem(err))
		}
		return fmt.Sprintf("No documents match \"%s\"", res.Pattern)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "## Search Results for \"%s\"\n\n", res.Pattern)
	fmt.Fprintf(&sb, "Showing %d-%d of %d match", offset+1, offset+len(res.Hits), res.Total)
	if res.Total != 1 {
		sb.WriteString("es")
	}
	sb.WriteString("\n\n")

	for i, hit := range res.Hits {
		formatHit(&sb, offset+i+1, hit)
	}
	return sb.String()
}

// patternProblem is the message of a pattern parse error without its code.
func patternProblem(err error) string {
	if e, ok := edmerrors.As(err); ok {
		return e.Message
	}
	return err.Error()
}

func formatHit(sb *strings.Builder, num int, hit store.Hit) {
	doc := hit.Document
	fmt.Fprintf(sb, "### %d. %s (score: %.2f)\n", num, doc.Name, hit.Score)
	fmt.Fprintf(sb, "**Path:** `%s`", doc.NodePath)
	if doc.FileExtension != "" {
		fmt.Fprintf(sb, " | **Type:** %s", doc.FileExtension)
	}
	if !doc.FileDate.IsZero() {
		fmt.Fprintf(sb, " | **Date:** %s", doc.FileDate.Format(time.DateOnly))
	}
	sb.WriteString("\n\n")

	fields := make([]string, 0, len(hit.Highlights))
	for f := range hit.Highlights {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	for _, f := range fields {
		for _, frag := range hit.Highlights[f] {
			fmt.Fprintf(sb, "> *%s:* %s\n", f, markdownFragment(frag))
		}
	}
	if len(fields) > 0 {
		sb.WriteString("\n")
	}
}

// markdownFragment turns <mark> spans into bold text on a single line.
func markdownFragment(frag string) string {
	frag = strings.NewReplacer("<mark>", "**", "</mark>", "**").Replace(frag)
	return strings.Join(strings.Fields(html.UnescapeString(frag)), " ")
}

// FormatSuggestions renders suggested documents as a markdown list.
func FormatSuggestions(prefix string, docs []store.Document) string {
	if len(docs) == 0 {
		return fmt.Sprintf("No suggestions for \"%s\"", prefix)
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "## Suggestions for \"%s\"\n\n", prefix)
	for _, d := range docs {
		fmt.Fprintf(&sb, "- **%s** `%s`\n", d.Name, d.NodePath)
	}
	return sb.String()
}

// FormatFacets renders the extension, date and category facets as tables.
func FormatFacets(pattern string, out FacetsOutput) string {
	var sb strings.Builder
	if strings.TrimSpace(pattern) == "" {
		sb.WriteString("## Facets for all documents\n\n")
	} else {
		fmt.Fprintf(&sb, "## Facets for \"%s\"\n\n", pattern)
	}
	writeBucketTable(&sb, "File extension", out.FileExtension)
	writeBucketTable(&sb, "File date", out.FileDate)
	writeBucketTable(&sb, "Category", out.FileCategory)
	return sb.String()
}

// FormatTerms renders the top path terms as a table.
func FormatTerms(pattern string, terms []BucketOutput) string {
	var sb strings.Builder
	if strings.TrimSpace(pattern) == "" {
		sb.WriteString("## Top terms for all documents\n\n")
	} else {
		fmt.Fprintf(&sb, "## Top terms for \"%s\"\n\n", pattern)
	}
	writeBucketTable(&sb, "Term", terms)
	return sb.String()
}

func writeBucketTable(sb *strings.Builder, title string, buckets []BucketOutput) {
	fmt.Fprintf(sb, "### %s\n\n", title)
	if len(buckets) == 0 {
		sb.WriteString("_none_\n\n")
		return
	}
	sb.WriteString("| Value | Count |\n|---|---|\n")
	for _, b := range buckets {
		label := b.Key
		if b.Category != "" {
			label = b.Category
		}
		fmt.Fprintf(sb, "| %s | %d |\n", label, b.Count)
	}
	sb.WriteString("\n")
}

// clampLimit ensures limit is within bounds.
func clampLimit(limit, defaultVal, min, max int) int {
	if limit <= 0 {
		return defaultVal
	}
	if limit < min {
		return min
	}
	if limit > max {
		return max
	}
	return limit
}

// ToHitOutput converts an index hit to its structured form.
func ToHitOutput(hit store.Hit) HitOutput {
	out := HitOutput{
		ID:         hit.Document.ID,
		Path:       hit.Document.NodePath,
		Name:       hit.Document.Name,
		Extension:  hit.Document.FileExtension,
		Score:      hit.Score,
		Highlights: hit.Highlights,
	}
	if !hit.Document.FileDate.IsZero() {
		out.Date = hit.Document.FileDate.UTC().Format(time.RFC3339)
	}
	return out
}

// ToBucketOutputs converts facet buckets, resolving category names.
func ToBucketOutputs(buckets []store.Bucket) []BucketOutput {
	out := make([]BucketOutput, 0, len(buckets))
	for _, b := range buckets {
		bo := BucketOutput{Key: b.Key, Count: b.Count}
		if b.Category != nil {
			bo.Category = b.Category.Name
		}
		out = append(out, bo)
	}
	return out
}
