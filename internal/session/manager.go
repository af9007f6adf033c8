// Package session owns the "current notebook" state on top of the storage
// layer. The presentation layer talks only to a Manager: loading, creating,
// switching and deleting notebooks, page edits, attachments, search and the
// calendar view all go through it.
package session

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/shimada839/toshinote/internal/common"
	"github.com/shimada839/toshinote/internal/geocode"
	"github.com/shimada839/toshinote/internal/kvstore"
	"github.com/shimada839/toshinote/internal/legacy"
	"github.com/shimada839/toshinote/internal/logging"
	"github.com/shimada839/toshinote/internal/models"
	"github.com/shimada839/toshinote/internal/storage"
)

// CalendarIndexBuiltKey marks that the one-time background index rebuild
// has already run on this client. It lives in the kv table, outside the
// notebook tables, so wiping notebooks does not re-trigger the rebuild.
const CalendarIndexBuiltKey = "calendar-index-built"

// Manager orchestrates the current notebook and the metadata list.
//
// Page edits follow an optimistic-update pattern: the in-memory state
// changes synchronously, persistence happens in the background. Saves are
// full snapshots coalesced per notebook id: one flush loop per notebook
// writes the newest pending snapshot, so a burst of edits collapses into
// few writes and a stale snapshot can never overwrite a newer one.
type Manager struct {
	store storage.Store
	kv    kvstore.Repository
	geo   *geocode.Client
	log   logging.Logger

	onSaveError func(error)

	mu        sync.Mutex
	current   *models.Notebook
	notebooks []models.NotebookMetadata

	savesMu sync.Mutex
	saves   map[string]*saveState

	wg sync.WaitGroup
}

// saveState tracks the background persistence of one notebook: the newest
// snapshot not yet written and whether a flush loop is running for it.
type saveState struct {
	mu      sync.Mutex
	pending *models.Notebook
	running bool
}

type Option func(*Manager)

// WithSaveErrorHandler installs a hook invoked when a background persist
// fails, so the UI can tell the user instead of losing the edit silently.
func WithSaveErrorHandler(fn func(error)) Option {
	return func(m *Manager) { m.onSaveError = fn }
}

func NewManager(store storage.Store, kv kvstore.Repository, geo *geocode.Client, log logging.Logger, opts ...Option) *Manager {
	m := &Manager{
		store: store,
		kv:    kv,
		geo:   geo,
		log:   log,
		saves: make(map[string]*saveState),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Init brings the session to the Ready state: imports legacy data, loads
// the most recently modified notebook (creating a fresh one when the store
// is empty or the load fails) and kicks off the one-time calendar index
// rebuild in the background.
func (m *Manager) Init(ctx context.Context) error {
	legacy.NewImporter(m.kv, m.store, m.log).Run(ctx)

	metas, err := m.store.GetAllMetadata(ctx)
	if err != nil {
		return fmt.Errorf("failed to list notebooks: %w", err)
	}

	m.mu.Lock()
	m.notebooks = metas
	m.mu.Unlock()

	if len(metas) > 0 {
		nb, err := m.store.GetNotebook(ctx, metas[0].ID)
		if err != nil {
			// Metadata without a loadable record: degrade to a fresh
			// notebook instead of a broken session.
			m.log.Warn(ctx, "failed to load most recent notebook, creating a new one",
				"id", metas[0].ID, "error", err)
			if _, err := m.CreateNotebook(ctx, ""); err != nil {
				return err
			}
		} else {
			m.mu.Lock()
			m.current = nb
			m.mu.Unlock()
		}
	} else {
		if _, err := m.CreateNotebook(ctx, ""); err != nil {
			return err
		}
	}

	m.rebuildIndexOnce(ctx)
	return nil
}

// rebuildIndexOnce starts the backward-compatible index rebuild in the
// background, at most once per client, without blocking readiness.
func (m *Manager) rebuildIndexOnce(ctx context.Context) {
	built, err := m.kv.Get(ctx, CalendarIndexBuiltKey)
	if err != nil {
		m.log.Warn(ctx, "failed to read calendar index flag", "error", err)
		return
	}
	if built != nil {
		return
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		bg := context.Background()
		if err := m.store.RebuildCalendarIndex(bg); err != nil {
			m.log.Error(bg, "calendar index rebuild failed", "error", err)
			return
		}
		if err := m.kv.Set(bg, CalendarIndexBuiltKey, []byte("1")); err != nil {
			m.log.Warn(bg, "failed to persist calendar index flag", "error", err)
		}
	}()
}

// Current returns a deep copy of the current notebook. Callers mutate the
// copy and hand it back through UpdateNotebook.
func (m *Manager) Current() *models.Notebook {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return nil
	}
	return m.current.Clone()
}

// Notebooks returns the metadata list, most recently modified first.
func (m *Manager) Notebooks() []models.NotebookMetadata {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.NotebookMetadata, len(m.notebooks))
	copy(out, m.notebooks)
	return out
}

// CreateNotebook builds a fresh notebook, persists it and makes it current.
// Persistence failures are returned, never swallowed.
func (m *Manager) CreateNotebook(ctx context.Context, title string) (*models.Notebook, error) {
	nb := models.NewNotebook(title)
	if err := m.store.SaveNotebook(ctx, nb); err != nil {
		return nil, fmt.Errorf("failed to create notebook: %w", err)
	}

	m.mu.Lock()
	m.notebooks = append([]models.NotebookMetadata{nb.Metadata()}, m.notebooks...)
	m.current = nb.Clone()
	m.mu.Unlock()

	m.log.Info(ctx, "created notebook", "id", nb.ID, "title", nb.Title)
	return nb, nil
}

// LoadNotebook makes the notebook with the given id current. When
// targetPage is positive the cursor moves there and the change is
// persisted immediately, so the last viewed page survives switching away.
func (m *Manager) LoadNotebook(ctx context.Context, id string, targetPage int) error {
	nb, err := m.store.GetNotebook(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to load notebook: %w", err)
	}

	if targetPage > 0 {
		if targetPage > models.PageCount {
			return fmt.Errorf("page %d out of range 1..%d", targetPage, models.PageCount)
		}
		if nb.CurrentPage != targetPage {
			nb.CurrentPage = targetPage
			if err := m.store.SaveNotebook(ctx, nb); err != nil {
				return fmt.Errorf("failed to persist page cursor: %w", err)
			}
			m.refreshMetadata(nb)
		}
	}

	m.mu.Lock()
	m.current = nb
	m.mu.Unlock()
	return nil
}

// DeleteNotebook removes a notebook. The last remaining notebook is never
// deleted: the collection must not become empty while the app is running.
// When the current notebook is deleted, the newest remaining one is loaded.
func (m *Manager) DeleteNotebook(ctx context.Context, id string) error {
	m.mu.Lock()
	if len(m.notebooks) <= 1 {
		m.mu.Unlock()
		return common.ErrLastNotebook
	}
	wasCurrent := m.current != nil && m.current.ID == id
	m.mu.Unlock()

	if err := m.store.DeleteNotebook(ctx, id); err != nil {
		return fmt.Errorf("failed to delete notebook: %w", err)
	}

	m.mu.Lock()
	remaining := m.notebooks[:0:0]
	for _, meta := range m.notebooks {
		if meta.ID != id {
			remaining = append(remaining, meta)
		}
	}
	m.notebooks = remaining
	var nextID string
	if wasCurrent && len(remaining) > 0 {
		nextID = remaining[0].ID
	}
	m.mu.Unlock()

	m.log.Info(ctx, "deleted notebook", "id", id)

	if nextID != "" {
		if err := m.LoadNotebook(ctx, nextID, 0); err != nil {
			// The remaining record would not load; degrade to a fresh
			// notebook rather than a session without a current one.
			m.log.Warn(ctx, "failed to load next notebook after delete", "id", nextID, "error", err)
			_, err := m.CreateNotebook(ctx, "")
			return err
		}
	}
	return nil
}

// UpdateNotebook replaces the in-memory current notebook immediately and
// persists the snapshot in the background. Failures reach the save error
// handler; the in-memory state keeps the edit either way.
func (m *Manager) UpdateNotebook(ctx context.Context, nb *models.Notebook) {
	snapshot := nb.Clone()

	m.mu.Lock()
	m.current = snapshot
	now := time.Now().UTC()
	for i := range m.notebooks {
		if m.notebooks[i].ID == snapshot.ID {
			m.notebooks[i].Title = snapshot.Title
			m.notebooks[i].LastModified = now
			break
		}
	}
	m.mu.Unlock()

	m.schedulePersist(snapshot)
}

// schedulePersist hands a snapshot to the notebook's flush loop, starting
// one when none is running. Only the newest pending snapshot is written.
func (m *Manager) schedulePersist(snapshot *models.Notebook) {
	st := m.saveStateFor(snapshot.ID)

	st.mu.Lock()
	st.pending = snapshot
	if st.running {
		st.mu.Unlock()
		return
	}
	st.running = true
	st.mu.Unlock()

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		bg := context.Background()
		for {
			st.mu.Lock()
			nb := st.pending
			st.pending = nil
			if nb == nil {
				st.running = false
				st.mu.Unlock()
				return
			}
			st.mu.Unlock()

			if err := m.store.SaveNotebook(bg, nb); err != nil {
				m.log.Error(bg, "failed to persist notebook", "id", nb.ID, "error", err)
				if m.onSaveError != nil {
					m.onSaveError(err)
				}
			}
		}
	}()
}

// WritePage replaces the content of the current page and stamps it.
func (m *Manager) WritePage(ctx context.Context, content string) error {
	nb := m.Current()
	if nb == nil {
		return common.ErrNotFound
	}
	p := nb.Page(nb.CurrentPage)
	p.Content = content
	p.LastModified = time.Now().UTC()
	m.UpdateNotebook(ctx, nb)
	return nil
}

// TurnPage moves the cursor to the given 1-based page and persists it.
func (m *Manager) TurnPage(ctx context.Context, page int) error {
	if page < 1 || page > models.PageCount {
		return fmt.Errorf("page %d out of range 1..%d", page, models.PageCount)
	}
	nb := m.Current()
	if nb == nil {
		return common.ErrNotFound
	}
	nb.CurrentPage = page
	m.UpdateNotebook(ctx, nb)
	return nil
}

// Rename gives the current notebook a new title.
func (m *Manager) Rename(ctx context.Context, title string) error {
	nb := m.Current()
	if nb == nil {
		return common.ErrNotFound
	}
	nb.Title = title
	m.UpdateNotebook(ctx, nb)
	return nil
}

// AttachLocation stamps the current page with a geolocation attachment.
// The display label is geocoded best-effort; raw coordinates are used when
// the lookup fails, never blocking the attachment.
func (m *Manager) AttachLocation(ctx context.Context, lat, lon, accuracy float64) error {
	nb := m.Current()
	if nb == nil {
		return common.ErrNotFound
	}

	label := geocode.FormatCoordinates(lat, lon)
	if m.geo != nil {
		label = m.geo.DisplayLabel(ctx, lat, lon)
	}

	p := nb.Page(nb.CurrentPage)
	p.Attachments = append(p.Attachments, models.NewLocationAttachment(models.Location{
		Latitude:  lat,
		Longitude: lon,
		Accuracy:  accuracy,
		Address:   label,
	}, label))
	p.LastModified = time.Now().UTC()

	m.UpdateNotebook(ctx, nb)
	return nil
}

// AttachFile reads a file from disk onto the current page as an image or
// file attachment, depending on its extension.
func (m *Manager) AttachFile(ctx context.Context, path string) error {
	nb := m.Current()
	if nb == nil {
		return common.ErrNotFound
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read attachment: %w", err)
	}
	mimeType := mime.TypeByExtension(filepath.Ext(path))
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	p := nb.Page(nb.CurrentPage)
	p.Attachments = append(p.Attachments, models.NewFileAttachment(filepath.Base(path), mimeType, data))
	p.LastModified = time.Now().UTC()

	m.UpdateNotebook(ctx, nb)
	return nil
}

// SearchNotebooks is a pass-through to the store's full-text scan.
func (m *Manager) SearchNotebooks(ctx context.Context, query string) ([]storage.SearchResult, error) {
	return m.store.SearchAllNotebooks(ctx, query)
}

// MonthlyActivity returns the calendar entries for one month. Entries
// referencing a notebook that no longer exists are stale by contract and
// skipped.
func (m *Manager) MonthlyActivity(ctx context.Context, year, month int) ([]storage.Activity, error) {
	entries, err := m.store.GetCalendarIndex(ctx, year, month)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	known := make(map[string]struct{}, len(m.notebooks))
	for _, meta := range m.notebooks {
		known[meta.ID] = struct{}{}
	}
	m.mu.Unlock()

	out := entries[:0:0]
	for _, e := range entries {
		if _, ok := known[e.NotebookID]; ok {
			out = append(out, e)
		}
	}
	return out, nil
}

// Wait blocks until all background persists have finished. Called on
// shutdown so in-flight saves are not cut off.
func (m *Manager) Wait() {
	m.wg.Wait()
}

// refreshMetadata updates the in-memory list entry after a synchronous
// save.
func (m *Manager) refreshMetadata(nb *models.Notebook) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	for i := range m.notebooks {
		if m.notebooks[i].ID == nb.ID {
			m.notebooks[i].Title = nb.Title
			m.notebooks[i].LastModified = now
			return
		}
	}
}

func (m *Manager) saveStateFor(id string) *saveState {
	m.savesMu.Lock()
	defer m.savesMu.Unlock()
	st, ok := m.saves[id]
	if !ok {
		st = &saveState{}
		m.saves[id] = st
	}
	return st
}
