package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"github.com/shimada839/toshinote/internal/common"
	"github.com/shimada839/toshinote/internal/dbx"
	"github.com/shimada839/toshinote/internal/filex"
	"github.com/shimada839/toshinote/internal/logging"
	"github.com/shimada839/toshinote/internal/models"
	"github.com/shimada839/toshinote/internal/storage/migrations"
)

const (
	dateKeyLayout = "2006-01-02"
	timeLayout    = "15:04"

	// snippetWindow is the number of characters kept on each side of a
	// search match.
	snippetWindow = 20
)

// SQLiteStore implements Store on a local SQLite database.
type SQLiteStore struct {
	db  *sql.DB
	log logging.Logger
}

// RunMigrations applies the embedded goose migrations.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	return goose.UpContext(ctx, db, ".")
}

// Open opens (creating if necessary) the notebook database at path and
// applies schema migrations. Failures are wrapped in
// common.ErrStoreUnavailable.
func Open(ctx context.Context, path string, log logging.Logger) (*SQLiteStore, error) {
	if path != ":memory:" && !strings.HasPrefix(path, "file:") {
		if _, err := filex.EnsureParentDir(path); err != nil {
			return nil, fmt.Errorf("%w: %v", common.ErrStoreUnavailable, err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrStoreUnavailable, err)
	}

	// A single connection serializes all writes, which is what the
	// single-writer model of a personal notebook wants anyway.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: %v", common.ErrStoreUnavailable, err)
	}

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%w: %v", common.ErrStoreUnavailable, err)
		}
	}

	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: %v", common.ErrStoreUnavailable, err)
	}

	return &SQLiteStore{db: db, log: log}, nil
}

// DB exposes the underlying handle so sibling components (kv store, data
// import) can share the same database file.
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) GetAllMetadata(ctx context.Context) ([]models.NotebookMetadata, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, created_at, last_modified
		FROM metadata
		ORDER BY last_modified DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to select metadata: %w", err)
	}
	defer rows.Close()

	var result []models.NotebookMetadata
	for rows.Next() {
		var m models.NotebookMetadata
		var createdAt, lastModified string
		if err := rows.Scan(&m.ID, &m.Title, &createdAt, &lastModified); err != nil {
			return nil, fmt.Errorf("failed to scan metadata row: %w", err)
		}
		m.CreatedAt = parseStoredTime(createdAt)
		m.LastModified = parseStoredTime(lastModified)
		result = append(result, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate metadata rows: %w", err)
	}
	return result, nil
}

func (s *SQLiteStore) GetNotebook(ctx context.Context, id string) (*models.Notebook, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, `SELECT data FROM notebooks WHERE id = ?`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("notebook %s: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get notebook %s: %w", id, err)
	}

	var nb models.Notebook
	if err := json.Unmarshal(data, &nb); err != nil {
		return nil, fmt.Errorf("failed to decode notebook %s: %w", id, err)
	}
	return &nb, nil
}

func (s *SQLiteStore) SaveNotebook(ctx context.Context, nb *models.Notebook) error {
	if nb.ID == "" {
		return errors.New("notebook id must not be empty")
	}
	if len(nb.Pages) != models.PageCount {
		return fmt.Errorf("notebook %s has %d pages, want %d", nb.ID, len(nb.Pages), models.PageCount)
	}

	data, err := json.Marshal(nb)
	if err != nil {
		return fmt.Errorf("failed to encode notebook %s: %w", nb.ID, err)
	}
	now := time.Now().UTC()

	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO notebooks (id, data) VALUES (?, ?)
			ON CONFLICT(id) DO UPDATE SET data = excluded.data`,
			nb.ID, data); err != nil {
			return fmt.Errorf("failed to upsert notebook: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO metadata (id, title, created_at, last_modified) VALUES (?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				title = excluded.title,
				last_modified = excluded.last_modified`,
			nb.ID, nb.Title, formatStoredTime(nb.CreatedAt), formatStoredTime(now)); err != nil {
			return fmt.Errorf("failed to upsert metadata: %w", err)
		}

		// Rewrite this notebook's slice of the calendar index from the
		// current pages. Dropping every old row first also prunes entries
		// whose page moved to another date or lost its content.
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM calendar_index WHERE notebook_id = ?`, nb.ID); err != nil {
			return fmt.Errorf("failed to prune calendar index: %w", err)
		}
		for _, p := range nb.Pages {
			if !p.HasContent() || p.LastModified.IsZero() {
				continue
			}
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO calendar_index (date_key, notebook_id, page_number, title, time)
				VALUES (?, ?, ?, ?, ?)
				ON CONFLICT(date_key, notebook_id, page_number) DO UPDATE SET
					title = excluded.title,
					time = excluded.time`,
				p.LastModified.Format(dateKeyLayout), nb.ID, p.PageNumber,
				nb.Title, p.LastModified.Format(timeLayout)); err != nil {
				return fmt.Errorf("failed to index page %d: %w", p.PageNumber, err)
			}
		}
		return nil
	})
}

func (s *SQLiteStore) DeleteNotebook(ctx context.Context, id string) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM notebooks WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("failed to delete notebook: %w", err)
		}
		if ra, err := res.RowsAffected(); err == nil && ra == 0 {
			return fmt.Errorf("notebook %s: %w", id, common.ErrNotFound)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM metadata WHERE id = ?`, id); err != nil {
			return fmt.Errorf("failed to delete metadata: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM calendar_index WHERE notebook_id = ?`, id); err != nil {
			return fmt.Errorf("failed to prune calendar index: %w", err)
		}
		return nil
	})
}

func (s *SQLiteStore) GetCalendarIndex(ctx context.Context, year, month int) ([]Activity, error) {
	// Zero-padded ISO date keys order lexicographically, so a string range
	// covers the month.
	start := fmt.Sprintf("%04d-%02d-01", year, month)
	end := fmt.Sprintf("%04d-%02d-31", year, month)

	rows, err := s.db.QueryContext(ctx, `
		SELECT date_key, notebook_id, title, page_number, time
		FROM calendar_index
		WHERE date_key BETWEEN ? AND ?
		ORDER BY date_key, notebook_id, page_number`,
		start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to scan calendar index: %w", err)
	}
	defer rows.Close()

	var result []Activity
	for rows.Next() {
		var a Activity
		if err := rows.Scan(&a.Date, &a.NotebookID, &a.Title, &a.PageNumber, &a.Time); err != nil {
			return nil, fmt.Errorf("failed to scan calendar row: %w", err)
		}
		result = append(result, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate calendar rows: %w", err)
	}
	return result, nil
}

func (s *SQLiteStore) RebuildCalendarIndex(ctx context.Context) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		notebooks, err := loadAllNotebooks(ctx, tx, s.log)
		if err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM calendar_index`); err != nil {
			return fmt.Errorf("failed to clear calendar index: %w", err)
		}

		for _, nb := range notebooks {
			for _, p := range nb.Pages {
				if !p.HasContent() || p.LastModified.IsZero() {
					continue
				}
				if _, err := tx.ExecContext(ctx, `
					INSERT INTO calendar_index (date_key, notebook_id, page_number, title, time)
					VALUES (?, ?, ?, ?, ?)`,
					p.LastModified.Format(dateKeyLayout), nb.ID, p.PageNumber,
					nb.Title, p.LastModified.Format(timeLayout)); err != nil {
					return fmt.Errorf("failed to index page %d of %s: %w", p.PageNumber, nb.ID, err)
				}
			}
		}
		return nil
	})
}

func (s *SQLiteStore) SearchAllNotebooks(ctx context.Context, query string) ([]SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}

	notebooks, err := loadAllNotebooks(ctx, s.db, s.log)
	if err != nil {
		return nil, err
	}

	var results []SearchResult
	for _, nb := range notebooks {
		for _, p := range nb.Pages {
			if !strings.Contains(p.Content, query) {
				continue
			}
			results = append(results, SearchResult{
				NotebookID: nb.ID,
				Title:      nb.Title,
				PageNumber: p.PageNumber,
				Snippet:    makeSnippet(p.Content, query),
			})
		}
	}
	return results, nil
}

// loadAllNotebooks reads every notebook record. Records that fail to decode
// are logged and skipped rather than failing the whole scan.
func loadAllNotebooks(ctx context.Context, db dbx.DBTX, log logging.Logger) ([]*models.Notebook, error) {
	rows, err := db.QueryContext(ctx, `SELECT id, data FROM notebooks`)
	if err != nil {
		return nil, fmt.Errorf("failed to select notebooks: %w", err)
	}
	defer rows.Close()

	var notebooks []*models.Notebook
	for rows.Next() {
		var id string
		var data []byte
		if err := rows.Scan(&id, &data); err != nil {
			return nil, fmt.Errorf("failed to scan notebook row: %w", err)
		}
		var nb models.Notebook
		if err := json.Unmarshal(data, &nb); err != nil {
			if log != nil {
				log.Warn(ctx, "skipping undecodable notebook record", "id", id, "error", err)
			}
			continue
		}
		notebooks = append(notebooks, &nb)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate notebook rows: %w", err)
	}
	return notebooks, nil
}

// makeSnippet cuts a window of snippetWindow characters on each side of the
// first occurrence of query, adding an ellipsis on each truncated side.
func makeSnippet(content, query string) string {
	idx := strings.Index(content, query)
	if idx < 0 {
		return ""
	}

	runes := []rune(content)
	start := utf8.RuneCountInString(content[:idx])
	qlen := utf8.RuneCountInString(query)

	lo := start - snippetWindow
	if lo < 0 {
		lo = 0
	}
	hi := start + qlen + snippetWindow
	if hi > len(runes) {
		hi = len(runes)
	}

	snippet := string(runes[lo:hi])
	if lo > 0 {
		snippet = "..." + snippet
	}
	if hi < len(runes) {
		snippet += "..."
	}
	return snippet
}

func formatStoredTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// parseStoredTime is forgiving: a malformed stored timestamp becomes the
// zero time instead of failing the listing.
func parseStoredTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
