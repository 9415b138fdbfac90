//go:build ignore

// Package main generates a synthetic document archive for crawl benchmarks.
// Usage: go run scripts/generate-test-corpus.go -files 1000 -output testdata/bench
//
// The tree mixes plain text, HTML, Markdown and CSV files spread over year
// and department directories, a few dated annual reports, and temporary
// files that the usual exclusion pattern skips.
package main

import (
	"flag"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
)

var (
	numFiles  = flag.Int("files", 1000, "Number of files to generate")
	outputDir = flag.String("output", "testdata/bench", "Output directory")
	seed      = flag.Uint64("seed", 42, "Random seed for reproducibility")
	depth     = flag.Int("depth", 3, "Maximum directory depth below a year")
)

var departments = []string{"finance", "legal", "operations", "sales", "hr", "engineering"}

var words = []string{
	"budget", "forecast", "invoice", "contract", "inventory", "audit",
	"quarterly", "annual", "revenue", "expense", "supplier", "customer",
	"shipment", "payroll", "compliance", "minutes", "board", "policy",
	"warehouse", "ledger", "report", "summary", "review", "proposal",
}

var htmlTemplate = `<!DOCTYPE html>
<html>
<head><title>%s</title></head>
<body>
<h1>%s</h1>
<p>%s</p>
<p>%s</p>
</body>
</html>
`

var markdownTemplate = `# %s

%s

## Details

- %s
- %s
`

type generator struct {
	rng  *rand.Rand
	root string
}

func main() {
	flag.Parse()

	g := &generator{
		rng:  rand.New(rand.NewPCG(*seed, *seed)),
		root: *outputDir,
	}

	if err := os.MkdirAll(g.root, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "failed to create output directory: %v\n", err)
		os.Exit(1)
	}

	counts := map[string]int{}
	for i := 0; i < *numFiles; i++ {
		kind, err := g.generate(i)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to generate file %d: %v\n", i, err)
			os.Exit(1)
		}
		counts[kind]++
	}

	fmt.Printf("Generated %d files in %s\n", *numFiles, g.root)
	for _, kind := range []string{"txt", "html", "md", "csv", "report", "tmp"} {
		fmt.Printf("  %-7s %d\n", kind, counts[kind])
	}
}

// generate writes file i and returns its kind.
func (g *generator) generate(i int) (string, error) {
	dir := g.directory()
	switch n := g.rng.IntN(100); {
	case n < 40:
		return "txt", g.write(dir, fmt.Sprintf("%s-%04d.txt", g.word(), i), g.paragraphs(3))
	case n < 60:
		title := g.title()
		return "html", g.write(dir, fmt.Sprintf("%s-%04d.html", g.word(), i),
			fmt.Sprintf(htmlTemplate, title, title, g.sentence(12), g.sentence(12)))
	case n < 75:
		return "md", g.write(dir, fmt.Sprintf("%s-%04d.md", g.word(), i),
			fmt.Sprintf(markdownTemplate, g.title(), g.paragraphs(2), g.sentence(6), g.sentence(6)))
	case n < 90:
		return "csv", g.write(dir, fmt.Sprintf("%s-%04d.csv", g.word(), i), g.table(10))
	case n < 95:
		year := 2005 + g.rng.IntN(20)
		return "report", g.write(dir, fmt.Sprintf("%d_Annual Report.txt", year), g.paragraphs(5))
	default:
		return "tmp", g.write(dir, fmt.Sprintf("~$%s-%04d.tmp", g.word(), i), g.sentence(5))
	}
}

// directory returns <year>/<department>[/<word>...], created on disk.
func (g *generator) directory() string {
	parts := []string{
		fmt.Sprintf("%d", 2015+g.rng.IntN(10)),
		departments[g.rng.IntN(len(departments))],
	}
	for d := g.rng.IntN(*depth + 1); d > 0; d-- {
		parts = append(parts, g.word())
	}
	return filepath.Join(parts...)
}

func (g *generator) write(dir, name, content string) error {
	full := filepath.Join(g.root, dir)
	if err := os.MkdirAll(full, 0o755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(full, name), []byte(content), 0o644)
}

func (g *generator) word() string {
	return words[g.rng.IntN(len(words))]
}

func (g *generator) title() string {
	w := g.word()
	return strings.ToUpper(w[:1]) + w[1:] + " " + g.word()
}

func (g *generator) sentence(n int) string {
	ws := make([]string, n)
	for i := range ws {
		ws[i] = g.word()
	}
	return strings.Join(ws, " ") + "."
}

func (g *generator) paragraphs(n int) string {
	ps := make([]string, n)
	for i := range ps {
		ps[i] = g.sentence(8 + g.rng.IntN(12))
	}
	return strings.Join(ps, "\n\n") + "\n"
}

func (g *generator) table(rows int) string {
	var b strings.Builder
	b.WriteString("item,quantity,amount\n")
	for i := 0; i < rows; i++ {
		fmt.Fprintf(&b, "%s,%d,%.2f\n", g.word(), 1+g.rng.IntN(500), g.rng.Float64()*10000)
	}
	return b.String()
}
