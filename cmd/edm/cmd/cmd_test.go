package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	edmerrors "github.com/Aman-CERP/edm/internal/errors"
)

// isolate points the data dir and user config at temp directories and
// returns the data dir.
func isolate(t *testing.T) string {
	t.Helper()
	dataDir := t.TempDir()
	t.Setenv("EDM_DATA_DIR", dataDir)
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("CI", "true")
	t.Chdir(t.TempDir())
	return dataDir
}

// run executes the CLI with args and returns stdout and the error.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	out := new(bytes.Buffer)
	cmd.SetOut(out)
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		path := filepath.Join(root, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return root
}

type searchJSON struct {
	Total uint64 `json:"total"`
	Hits  []struct {
		Document struct {
			Name     string `json:"name"`
			NodePath string `json:"nodePath"`
		} `json:"document"`
	} `json:"hits"`
}

func searchTotal(t *testing.T, pattern string) searchJSON {
	t.Helper()
	out, err := run(t, "search", pattern, "--json")
	require.NoError(t, err)
	var res searchJSON
	require.NoError(t, json.Unmarshal([]byte(out), &res), out)
	return res
}

func TestCrawl_SyncRemovesVanishedFiles(t *testing.T) {
	isolate(t)

	// Given: a tree with two files crawled as source "finance"
	root := writeTree(t, map[string]string{
		"budget.txt":         "annual budget forecast",
		"reports/budget.txt": "quarterly budget review",
	})
	out, err := run(t, "crawl", root, "--source", "finance", "--no-tui")
	require.NoError(t, err)
	assert.Contains(t, out, "Complete: finance: 2 indexed")
	assert.Equal(t, uint64(2), searchTotal(t, "budget").Total)

	// When: one file disappears and the source is crawled again
	require.NoError(t, os.Remove(filepath.Join(root, "reports", "budget.txt")))
	out, err = run(t, "crawl", root, "--source", "finance", "--no-tui")
	require.NoError(t, err)

	// Then: its document is swept from the index
	assert.Contains(t, out, "1 deleted")
	res := searchTotal(t, "budget")
	require.Equal(t, uint64(1), res.Total)
	assert.Equal(t, filepath.Join(root, "budget.txt"), res.Hits[0].Document.NodePath)
}

func TestCrawl_NoSyncKeepsVanishedFiles(t *testing.T) {
	isolate(t)

	root := writeTree(t, map[string]string{"a.txt": "alpha", "b.txt": "alpha beta"})
	_, err := run(t, "crawl", root, "--source", "s", "--no-tui")
	require.NoError(t, err)

	require.NoError(t, os.Remove(filepath.Join(root, "b.txt")))
	out, err := run(t, "crawl", root, "--source", "s", "--sync=false", "--no-tui")
	require.NoError(t, err)

	assert.Contains(t, out, "0 deleted")
	assert.Equal(t, uint64(2), searchTotal(t, "alpha").Total)
}

func TestCrawl_Exclude(t *testing.T) {
	isolate(t)

	root := writeTree(t, map[string]string{
		"keep.txt":      "invoice",
		"tmp/skip.txt":  "invoice",
		"other.tmp.txt": "invoice",
	})

	out, err := run(t, "crawl", root, "--source", "s", "--exclude", `(/tmp$|\.tmp\.)`, "--no-tui")
	require.NoError(t, err)

	assert.Contains(t, out, "1 indexed")
	assert.Equal(t, uint64(1), searchTotal(t, "invoice").Total)
}

func TestCrawl_MissingRoot(t *testing.T) {
	isolate(t)

	_, err := run(t, "crawl", filepath.Join(t.TempDir(), "nope"), "--no-tui")

	edmErr, ok := edmerrors.As(err)
	require.True(t, ok, "got %v", err)
	assert.Equal(t, edmerrors.CategoryIO, edmErr.Category)
}

func TestCrawl_DefaultSourceIsRootName(t *testing.T) {
	isolate(t)
	root := writeTree(t, map[string]string{"x.txt": "x"})

	out, err := run(t, "crawl", root, "--no-tui")

	require.NoError(t, err)
	assert.Contains(t, out, "Complete: "+filepath.Base(root)+":")
}

func TestSearch_NoIndex(t *testing.T) {
	isolate(t)

	// When: searching before anything was crawled
	_, err := run(t, "search", "anything")

	// Then: the error explains how to build the index
	edmErr, ok := edmerrors.As(err)
	require.True(t, ok, "got %v", err)
	assert.Contains(t, edmErr.Message, "no index found")
	assert.Contains(t, edmErr.Suggestion, "edm crawl")
}

func TestSearch_UnparseablePattern(t *testing.T) {
	// Given: a crawled archive
	isolate(t)
	root := writeTree(t, map[string]string{"a.txt": "alpha"})
	_, err := run(t, "crawl", root, "--no-tui")
	require.NoError(t, err)

	// When: searching and suggesting with an open quote
	out, err := run(t, "search", `"unbalanced`, "--no-color")
	require.NoError(t, err)
	suggested, suggestErr := run(t, "suggest", `"unbalanced`, "--json")

	// Then: nothing matches and the search output says why
	assert.Contains(t, out, "no documents match")
	assert.Contains(t, out, "hint: invalid search pattern: unbalanced quote")
	require.NoError(t, suggestErr)
	assert.JSONEq(t, "[]", suggested)
}

func TestSearch_NegativeOffset(t *testing.T) {
	isolate(t)

	_, err := run(t, "search", "x", "--offset", "-1")

	require.Error(t, err)
}

func TestSuggestFacetsTerms(t *testing.T) {
	isolate(t)
	t.Setenv("EDM_RELATIVE_PATHS", "true")
	root := writeTree(t, map[string]string{
		"finance/budget-2019.pdf.txt": "numbers",
		"finance/budget-2020.txt":     "numbers",
	})
	_, err := run(t, "crawl", root, "--source", "fin", "--category", "Accounting", "--no-tui")
	require.NoError(t, err)

	t.Run("suggest", func(t *testing.T) {
		out, err := run(t, "suggest", "budg", "--json")
		require.NoError(t, err)
		var docs []map[string]any
		require.NoError(t, json.Unmarshal([]byte(out), &docs))
		assert.Len(t, docs, 2)
	})

	t.Run("facets", func(t *testing.T) {
		out, err := run(t, "facets", "--json")
		require.NoError(t, err)
		var facets map[string][]struct {
			Key      string `json:"key"`
			Count    int64  `json:"count"`
			Category *struct {
				Name string `json:"name"`
			} `json:"category"`
		}
		require.NoError(t, json.Unmarshal([]byte(out), &facets))

		require.Len(t, facets["fileExtension"], 1)
		assert.Equal(t, "txt", facets["fileExtension"][0].Key)
		assert.Equal(t, int64(2), facets["fileExtension"][0].Count)
		assert.Len(t, facets["fileDate"], 5)
		require.Len(t, facets["fileCategory"], 1)
		require.NotNil(t, facets["fileCategory"][0].Category)
		assert.Equal(t, "Accounting", facets["fileCategory"][0].Category.Name)
	})

	t.Run("terms", func(t *testing.T) {
		out, err := run(t, "terms", "--json")
		require.NoError(t, err)
		var terms []struct {
			Key string `json:"key"`
		}
		require.NoError(t, json.Unmarshal([]byte(out), &terms))
		keys := make([]string, 0, len(terms))
		for _, term := range terms {
			keys = append(keys, term.Key)
		}
		assert.Contains(t, keys, "budget")
		assert.NotContains(t, keys, "txt", "extensions are never top terms")
	})
}

func TestSources_ListAndRemove(t *testing.T) {
	isolate(t)
	docs := writeTree(t, map[string]string{"a.txt": "shared", "b.txt": "shared"})
	legal := writeTree(t, map[string]string{"c.txt": "shared"})
	_, err := run(t, "crawl", docs, "--source", "docs", "--no-tui")
	require.NoError(t, err)
	_, err = run(t, "crawl", legal, "--source", "legal", "--category", "Legal", "--no-tui")
	require.NoError(t, err)

	// When: listing sources
	out, err := run(t, "sources", "list", "--json")
	require.NoError(t, err)

	// Then: both are listed by name with their document count
	var rows []struct {
		Name         string `json:"name"`
		CategoryName string `json:"categoryName"`
		Documents    uint64 `json:"documents"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &rows))
	require.Len(t, rows, 2)
	assert.Equal(t, "docs", rows[0].Name)
	assert.Equal(t, uint64(2), rows[0].Documents)
	assert.Equal(t, "Legal", rows[1].CategoryName)

	// When: removing one source
	out, err = run(t, "sources", "rm", "docs")
	require.NoError(t, err)

	// Then: only its documents are gone
	assert.Contains(t, out, `Removed source "docs" (2 documents)`)
	assert.Equal(t, uint64(1), searchTotal(t, "shared").Total)

	out, err = run(t, "sources", "list", "--json")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &rows))
	assert.Len(t, rows, 1)
}

func TestSources_RemoveUnknown(t *testing.T) {
	isolate(t)

	_, err := run(t, "sources", "rm", "ghost")

	edmErr, ok := edmerrors.As(err)
	require.True(t, ok, "got %v", err)
	assert.Equal(t, edmerrors.ErrCodeSourceNotFound, edmErr.Code)
}
