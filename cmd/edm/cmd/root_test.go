package cmd

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/Aman-CERP/edm/internal/config"
	edmerrors "github.com/Aman-CERP/edm/internal/errors"
)

func TestRootCmd_ShowsHelp(t *testing.T) {
	out, err := run(t, "--help")

	require.NoError(t, err)
	for _, sub := range []string{"crawl", "search", "suggest", "facets", "terms", "sources", "serve", "version"} {
		assert.Contains(t, out, sub)
	}
}

func TestVersionCmd(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"default", []string{"version"}, "edm dev"},
		{"short", []string{"version", "--short"}, "dev\n"},
		{"json", []string{"version", "--json"}, `"version": "dev"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := run(t, tt.args...)
			require.NoError(t, err)
			assert.Contains(t, out, tt.want)
		})
	}
}

func TestVersionCmd_IgnoresBrokenConfig(t *testing.T) {
	// Given: an invalid project config
	isolate(t)
	require.NoError(t, os.WriteFile(".edm.yaml", []byte("crawl: [not, a, map"), 0o644))

	// When: printing the version
	_, err := run(t, "version", "--short")

	// Then: the config is never loaded
	require.NoError(t, err)
}

func TestConfigShow(t *testing.T) {
	dataDir := isolate(t)

	t.Run("yaml", func(t *testing.T) {
		out, err := run(t, "config", "show")
		require.NoError(t, err)

		var cfg config.Config
		require.NoError(t, yaml.Unmarshal([]byte(out), &cfg))
		assert.Equal(t, dataDir, cfg.Index.DataDir)
	})

	t.Run("json with --data-dir", func(t *testing.T) {
		other := t.TempDir()
		out, err := run(t, "config", "show", "--json", "--data-dir", other)
		require.NoError(t, err)

		var cfg config.Config
		require.NoError(t, json.Unmarshal([]byte(out), &cfg))
		assert.Equal(t, other, cfg.Index.DataDir)
	})
}

func TestConfigShow_ProjectConfig(t *testing.T) {
	isolate(t)
	require.NoError(t, os.WriteFile(".edm.yaml", []byte("search:\n  suggest_limit: 3\n"), 0o644))

	out, err := run(t, "config", "show", "--json")

	require.NoError(t, err)
	assert.Contains(t, out, `"suggest_limit": 3`)
}

func TestConfigShow_InvalidConfig(t *testing.T) {
	isolate(t)
	t.Setenv("EDM_TOP_TERMS_EXCLUSION", "([unclosed")

	_, err := run(t, "config", "show")

	edmErr, ok := edmerrors.As(err)
	require.True(t, ok, "got %v", err)
	assert.Equal(t, edmerrors.CategoryConfig, edmErr.Category)
}

func TestConfigInitAndPath(t *testing.T) {
	isolate(t)

	// Given: no user config
	pathOut, err := run(t, "config", "path")
	require.NoError(t, err)
	path := filepath.Clean(string(bytes.TrimSpace([]byte(pathOut))))

	// When: initialising twice, the second time with --force
	out, err := run(t, "config", "init")
	require.NoError(t, err)
	assert.Contains(t, out, "Created user config at "+path)
	assert.FileExists(t, path)

	_, err = run(t, "config", "init")
	require.Error(t, err, "existing config is kept without --force")

	out, err = run(t, "config", "init", "--force")

	// Then: the previous file is backed up
	require.NoError(t, err)
	assert.Contains(t, out, "Backed up previous config to")
	backups, err := config.ListUserConfigBackups()
	require.NoError(t, err)
	assert.Len(t, backups, 1)
}

func TestPrintError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		asJSON bool
		want   string
	}{
		{
			name: "edm error with hint",
			err:  edmerrors.IndexError("no index found at /x", nil).WithSuggestion("run 'edm crawl <dir>' first"),
			want: "run 'edm crawl <dir>' first",
		},
		{
			name: "interrupted",
			err:  errInterrupted,
			want: "Interrupted.",
		},
		{
			name: "plain error",
			err:  errors.New("boom"),
			want: "Error: boom",
		},
		{
			name:   "json",
			err:    edmerrors.QueryError("unbalanced quotes", nil),
			asJSON: true,
			want:   `"code":"ERR_403_INVALID_QUERY"`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := new(bytes.Buffer)
			printError(buf, tt.err, tt.asJSON)
			assert.Contains(t, buf.String(), tt.want)
		})
	}
}

func TestJSONRequested(t *testing.T) {
	root := NewRootCmd()
	search, _, err := root.Find([]string{"search"})
	require.NoError(t, err)

	assert.False(t, jsonRequested(nil))
	assert.False(t, jsonRequested(search))
	require.NoError(t, search.Flags().Set("json", "true"))
	assert.True(t, jsonRequested(search))
}

func TestServeCmd_UnknownTransport(t *testing.T) {
	isolate(t)

	_, err := run(t, "serve", "--transport", "carrier-pigeon")

	require.Error(t, err)
}

func TestDoctorCmd(t *testing.T) {
	dataDir := isolate(t)

	// When: checking a fresh installation
	out, err := run(t, "doctor", "--json")

	// Then: index and catalog are reported missing but the run passes
	require.NoError(t, err)
	var report struct {
		Status string `json:"status"`
		Checks []struct {
			Name   string `json:"name"`
			Status string `json:"status"`
		} `json:"checks"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.NotEqual(t, "failed", report.Status)
	statuses := map[string]string{}
	for _, c := range report.Checks {
		statuses[c.Name] = c.Status
	}
	assert.Equal(t, "pass", statuses["data_dir"])
	assert.Equal(t, "warn", statuses["index"])
	assert.FileExists(t, filepath.Join(dataDir, ".preflight-passed"))
}

func TestLogsCmd(t *testing.T) {
	isolate(t)
	root := writeTree(t, map[string]string{"a.txt": "alpha"})
	_, err := run(t, "crawl", root, "--source", "logged", "--no-tui")
	require.NoError(t, err)

	// When: viewing info logs about the crawl
	out, err := run(t, "logs", "--no-color", "--filter", "crawl_complete")

	// Then: the crawl summary is shown
	require.NoError(t, err)
	assert.Contains(t, out, "crawl_complete")
	assert.Contains(t, out, "source=logged")
}

func TestLogsCmd_MissingFile(t *testing.T) {
	isolate(t)

	_, err := run(t, "logs", "--file", filepath.Join(t.TempDir(), "none.log"))

	require.Error(t, err)
}

func TestRootCmd_ProfileFlags(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	heap := filepath.Join(dir, "heap.prof")
	cpu := filepath.Join(dir, "cpu.prof")

	// When: running a command with profiling enabled
	_, err := run(t, "config", "show", "--profile-mem", heap, "--profile-cpu", cpu)

	// Then: both profiles are written when the command ends
	require.NoError(t, err)
	assert.FileExists(t, heap)
	assert.FileExists(t, cpu)
}

func TestConfigInit_Project(t *testing.T) {
	isolate(t)

	out, err := run(t, "config", "init", "--project")

	require.NoError(t, err)
	assert.Contains(t, out, "Created project config at")
	assert.FileExists(t, ".edm.yaml")

	// The template loads cleanly for the next command.
	_, err = run(t, "config", "show")
	require.NoError(t, err)
}
