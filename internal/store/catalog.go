package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	edmerrors "github.com/Aman-CERP/edm/internal/errors"
)

// Catalog stores categories, sources and crawl runs in SQLite.
type Catalog struct {
	mu     sync.Mutex
	db     *sql.DB
	path   string
	closed bool
	now    func() time.Time
}

// validateCatalogIntegrity runs a read-only integrity check on an existing
// database file.
func validateCatalogIntegrity(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	db, err := sql.Open("sqlite", path+"?mode=ro")
	if err != nil {
		return fmt.Errorf("cannot open for validation: %w", err)
	}
	defer db.Close()

	var result string
	if err := db.QueryRow("PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("integrity check failed: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("database corrupted: %s", result)
	}
	return nil
}

// OpenCatalog opens or creates the catalog at path. An empty path gives an
// in-memory catalog. Unlike the document index, a corrupted catalog is not
// cleared: it owns the source ids every indexed document refers to.
func OpenCatalog(path string) (*Catalog, error) {
	var dsn string
	if path == "" {
		dsn = ":memory:"
	} else {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, edmerrors.New(edmerrors.ErrCodeCatalogUnavailable,
				fmt.Sprintf("failed to create directory for %s", path), err)
		}
		if err := validateCatalogIntegrity(path); err != nil {
			return nil, edmerrors.New(edmerrors.ErrCodeCatalogUnavailable,
				fmt.Sprintf("catalog at %s failed its integrity check", path), err).
				WithSuggestion("restore the catalog from a backup or remove it and crawl every source again")
		}
		dsn = path
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, edmerrors.New(edmerrors.ErrCodeCatalogUnavailable, "failed to open catalog", err)
	}

	// Single connection: SQLite has one writer, and :memory: databases are
	// per-connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, edmerrors.New(edmerrors.ErrCodeCatalogUnavailable, "failed to set pragma", err)
		}
	}

	c := &Catalog{db: db, path: path, now: time.Now}
	if err := c.initSchema(); err != nil {
		_ = db.Close()
		return nil, edmerrors.New(edmerrors.ErrCodeCatalogUnavailable, "failed to initialize catalog schema", err)
	}
	return c, nil
}

func (c *Catalog) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY
	);

	CREATE TABLE IF NOT EXISTS categories (
		id         TEXT PRIMARY KEY,
		name       TEXT NOT NULL UNIQUE,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS sources (
		id          TEXT PRIMARY KEY,
		name        TEXT NOT NULL UNIQUE,
		category_id TEXT NOT NULL REFERENCES categories(id),
		created_at  TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS crawl_runs (
		id         TEXT PRIMARY KEY,
		source_id  TEXT NOT NULL REFERENCES sources(id) ON DELETE CASCADE,
		started_at TEXT NOT NULL,
		ended_at   TEXT,
		status     TEXT NOT NULL,
		indexed    INTEGER NOT NULL DEFAULT 0,
		skipped    INTEGER NOT NULL DEFAULT 0,
		failed     INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_crawl_runs_source ON crawl_runs(source_id, started_at);

	INSERT OR IGNORE INTO schema_version (version) VALUES (1);
	`
	_, err := c.db.Exec(schema)
	return err
}

func (c *Catalog) checkOpen() error {
	if c.closed {
		return edmerrors.New(edmerrors.ErrCodeCatalogUnavailable, "catalog is closed", nil)
	}
	return nil
}

// timeLayout is fixed-width so timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func (c *Catalog) timestamp() string {
	return c.now().UTC().Format(timeLayout)
}

// ResolveCategory returns the category called name, creating it if absent.
func (c *Catalog) ResolveCategory(ctx context.Context, name string) (*Category, error) {
	if name == "" {
		return nil, edmerrors.ValidationError("category name must not be empty", nil)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkOpen(); err != nil {
		return nil, err
	}

	_, err := c.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO categories (id, name, created_at) VALUES (?, ?, ?)`,
		uuid.NewString(), name, c.timestamp())
	if err != nil {
		return nil, fmt.Errorf("failed to create category %q: %w", name, err)
	}

	var cat Category
	err = c.db.QueryRowContext(ctx,
		`SELECT id, name FROM categories WHERE name = ?`, name).Scan(&cat.ID, &cat.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to load category %q: %w", name, err)
	}
	return &cat, nil
}

// ResolveSource returns the source called name, creating it under
// categoryID if absent. An existing source keeps its category.
func (c *Catalog) ResolveSource(ctx context.Context, name, categoryID string) (*Source, error) {
	if name == "" {
		return nil, edmerrors.ValidationError("source name must not be empty", nil)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkOpen(); err != nil {
		return nil, err
	}

	_, err := c.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO sources (id, name, category_id, created_at) VALUES (?, ?, ?, ?)`,
		uuid.NewString(), name, categoryID, c.timestamp())
	if err != nil {
		return nil, fmt.Errorf("failed to create source %q: %w", name, err)
	}

	src, err := c.findSource(ctx, name)
	if err != nil {
		return nil, err
	}
	if src.CategoryID != categoryID {
		slog.Debug("source_category_kept",
			slog.String("source", name),
			slog.String("category_id", src.CategoryID),
			slog.String("requested_category_id", categoryID))
	}
	return src, nil
}

// FindSource returns ErrNotFound for unknown names.
func (c *Catalog) FindSource(ctx context.Context, name string) (*Source, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkOpen(); err != nil {
		return nil, err
	}
	return c.findSource(ctx, name)
}

func (c *Catalog) findSource(ctx context.Context, name string) (*Source, error) {
	var src Source
	var created string
	err := c.db.QueryRowContext(ctx,
		`SELECT id, name, category_id, created_at FROM sources WHERE name = ?`, name).
		Scan(&src.ID, &src.Name, &src.CategoryID, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load source %q: %w", name, err)
	}
	src.CreatedAt, _ = time.Parse(timeLayout, created)
	return &src, nil
}

// FindCategory returns ErrNotFound for unknown ids.
func (c *Catalog) FindCategory(ctx context.Context, id string) (*Category, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkOpen(); err != nil {
		return nil, err
	}

	var cat Category
	err := c.db.QueryRowContext(ctx,
		`SELECT id, name FROM categories WHERE id = ?`, id).Scan(&cat.ID, &cat.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load category %s: %w", id, err)
	}
	return &cat, nil
}

// ListSources returns every source with its category and latest run,
// ordered by name.
func (c *Catalog) ListSources(ctx context.Context) ([]SourceInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkOpen(); err != nil {
		return nil, err
	}

	rows, err := c.db.QueryContext(ctx, `
		SELECT s.id, s.name, s.category_id, s.created_at, cat.name,
		       r.id, r.started_at, r.ended_at, r.status, r.indexed, r.skipped, r.failed
		FROM sources s
		JOIN categories cat ON cat.id = s.category_id
		LEFT JOIN crawl_runs r ON r.id = (
			SELECT id FROM crawl_runs WHERE source_id = s.id ORDER BY started_at DESC LIMIT 1
		)
		ORDER BY s.name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list sources: %w", err)
	}
	defer rows.Close()

	var out []SourceInfo
	for rows.Next() {
		var info SourceInfo
		var created string
		var runID, started, ended, status sql.NullString
		var indexed, skipped, failed sql.NullInt64
		if err := rows.Scan(&info.ID, &info.Name, &info.CategoryID, &created, &info.CategoryName,
			&runID, &started, &ended, &status, &indexed, &skipped, &failed); err != nil {
			return nil, fmt.Errorf("failed to scan source: %w", err)
		}
		info.CreatedAt, _ = time.Parse(timeLayout, created)
		if runID.Valid {
			run := &CrawlRun{
				ID:       runID.String,
				SourceID: info.ID,
				Status:   status.String,
				Indexed:  int(indexed.Int64),
				Skipped:  int(skipped.Int64),
				Failed:   int(failed.Int64),
			}
			run.StartedAt, _ = time.Parse(timeLayout, started.String)
			if ended.Valid {
				t, _ := time.Parse(timeLayout, ended.String)
				run.EndedAt = &t
			}
			info.LastRun = run
		}
		out = append(out, info)
	}
	return out, rows.Err()
}

// NotifyCrawlStart opens a crawl run for the named source. Runs left
// open by a crashed process are marked failed first.
func (c *Catalog) NotifyCrawlStart(ctx context.Context, sourceName string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkOpen(); err != nil {
		return err
	}

	src, err := c.findSource(ctx, sourceName)
	if err != nil {
		return err
	}
	now := c.timestamp()

	if _, err := c.db.ExecContext(ctx,
		`UPDATE crawl_runs SET status = ?, ended_at = ? WHERE source_id = ? AND status = ?`,
		RunFailed, now, src.ID, RunRunning); err != nil {
		return fmt.Errorf("failed to close stale crawl runs: %w", err)
	}
	if _, err := c.db.ExecContext(ctx,
		`INSERT INTO crawl_runs (id, source_id, started_at, status) VALUES (?, ?, ?, ?)`,
		uuid.NewString(), src.ID, now, RunRunning); err != nil {
		return fmt.Errorf("failed to record crawl start: %w", err)
	}
	return nil
}

// NotifyCrawlEnd closes the open crawl run of the named source.
func (c *Catalog) NotifyCrawlEnd(ctx context.Context, sourceName string, summary RunSummary) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkOpen(); err != nil {
		return err
	}

	src, err := c.findSource(ctx, sourceName)
	if err != nil {
		return err
	}
	status := summary.Status
	if status == "" {
		status = RunCompleted
	}

	res, err := c.db.ExecContext(ctx, `
		UPDATE crawl_runs SET status = ?, ended_at = ?, indexed = ?, skipped = ?, failed = ?
		WHERE source_id = ? AND status = ?`,
		status, c.timestamp(), summary.Indexed, summary.Skipped, summary.Failed, src.ID, RunRunning)
	if err != nil {
		return fmt.Errorf("failed to record crawl end: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		slog.Warn("crawl_end_without_start", slog.String("source", sourceName))
	}
	return nil
}

// DeleteSource removes a source and its crawl runs. Documents in the index
// must be removed by the caller.
func (c *Catalog) DeleteSource(ctx context.Context, name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkOpen(); err != nil {
		return err
	}

	res, err := c.db.ExecContext(ctx, `DELETE FROM sources WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("failed to delete source %q: %w", name, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (c *Catalog) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	return c.db.Close()
}
