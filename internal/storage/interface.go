package storage

import (
	"context"

	"github.com/shimada839/toshinote/internal/models"
)

// Activity is one calendar index entry tagged with its source date
// (YYYY-MM-DD).
type Activity struct {
	Date       string `json:"date"`
	NotebookID string `json:"notebookId"`
	Title      string `json:"title"`
	PageNumber int    `json:"pageNumber"`
	Time       string `json:"time"`
}

// SearchResult is one full-text match with a short context window around
// the first occurrence of the query.
type SearchResult struct {
	NotebookID string `json:"notebookId"`
	Title      string `json:"title"`
	PageNumber int    `json:"pageNumber"`
	Snippet    string `json:"snippet"`
}

// Store is the persistent notebook store. Implementations keep three
// logical tables in sync: the full notebook records, the lightweight
// metadata summaries and the derived calendar index.
type Store interface {
	// GetAllMetadata lists every notebook summary, most recently modified
	// first.
	GetAllMetadata(ctx context.Context) ([]models.NotebookMetadata, error)

	// GetNotebook returns the full record for id, or common.ErrNotFound.
	GetNotebook(ctx context.Context, id string) (*models.Notebook, error)

	// SaveNotebook writes the full notebook record, refreshes its metadata
	// summary and updates the calendar index rows for its pages. The three
	// writes happen in one transaction.
	SaveNotebook(ctx context.Context, nb *models.Notebook) error

	// DeleteNotebook removes the notebook record, its metadata summary and
	// its calendar index rows in one transaction.
	DeleteNotebook(ctx context.Context, id string) error

	// GetCalendarIndex range-scans the calendar index for one month.
	GetCalendarIndex(ctx context.Context, year, month int) ([]Activity, error)

	// RebuildCalendarIndex recomputes the whole calendar index from the
	// notebook records and atomically replaces the table contents.
	RebuildCalendarIndex(ctx context.Context) error

	// SearchAllNotebooks scans every page of every notebook for a
	// case-sensitive substring match. A blank query returns no results
	// without touching storage.
	SearchAllNotebooks(ctx context.Context, query string) ([]SearchResult, error)

	// Close releases the underlying database handle.
	Close() error
}
