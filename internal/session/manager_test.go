package session

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shimada839/toshinote/internal/common"
	"github.com/shimada839/toshinote/internal/kvstore"
	"github.com/shimada839/toshinote/internal/legacy"
	"github.com/shimada839/toshinote/internal/logging"
	"github.com/shimada839/toshinote/internal/models"
	"github.com/shimada839/toshinote/internal/storage"
)

func newTestManager(t *testing.T, opts ...Option) (*Manager, *storage.SQLiteStore, kvstore.Repository) {
	t.Helper()

	store, err := storage.Open(context.Background(), ":memory:", nil)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	kv := kvstore.NewSQLiteRepository(store.DB())
	return NewManager(store, kv, nil, noopLogger{}, opts...), store, kv
}

type noopLogger struct{}

func (noopLogger) Debug(ctx context.Context, msg string, args ...any) {}
func (noopLogger) Info(ctx context.Context, msg string, args ...any)  {}
func (noopLogger) Warn(ctx context.Context, msg string, args ...any)  {}
func (noopLogger) Error(ctx context.Context, msg string, args ...any) {}
func (noopLogger) With(args ...any) logging.Logger                    { return noopLogger{} }

func TestInit_FreshStoreCreatesNotebook(t *testing.T) {
	ctx := context.Background()
	m, _, kv := newTestManager(t)

	require.NoError(t, m.Init(ctx))

	nb := m.Current()
	require.NotNil(t, nb)
	assert.Equal(t, models.DefaultTitle, nb.Title)
	assert.Equal(t, 1, nb.CurrentPage)
	assert.Len(t, m.Notebooks(), 1)

	m.Wait()
	flag, err := kv.Get(ctx, CalendarIndexBuiltKey)
	require.NoError(t, err)
	assert.NotNil(t, flag)
}

func TestInit_LoadsMostRecentNotebook(t *testing.T) {
	ctx := context.Background()
	m, store, _ := newTestManager(t)

	older := models.NewNotebook("older")
	require.NoError(t, store.SaveNotebook(ctx, older))
	time.Sleep(5 * time.Millisecond)
	newer := models.NewNotebook("newer")
	require.NoError(t, store.SaveNotebook(ctx, newer))

	require.NoError(t, m.Init(ctx))

	require.NotNil(t, m.Current())
	assert.Equal(t, newer.ID, m.Current().ID)
	assert.Len(t, m.Notebooks(), 2)
}

func TestInit_RunsLegacyImport(t *testing.T) {
	ctx := context.Background()
	m, _, kv := newTestManager(t)

	old := models.NewNotebook("carried over")
	blob, err := json.Marshal(old)
	require.NoError(t, err)
	require.NoError(t, kv.Set(ctx, legacy.SingleNotebookKey, blob))

	require.NoError(t, m.Init(ctx))

	require.NotNil(t, m.Current())
	assert.Equal(t, old.ID, m.Current().ID)
	assert.Equal(t, "carried over", m.Current().Title)

	gone, err := kv.Get(ctx, legacy.SingleNotebookKey)
	require.NoError(t, err)
	assert.Nil(t, gone)
}

func TestInit_RebuildRunsOnlyOnce(t *testing.T) {
	ctx := context.Background()
	m, _, kv := newTestManager(t)

	require.NoError(t, kv.Set(ctx, CalendarIndexBuiltKey, []byte("1")))
	require.NoError(t, m.Init(ctx))
	m.Wait()

	// Still set, and Init must not have scheduled another rebuild.
	flag, err := kv.Get(ctx, CalendarIndexBuiltKey)
	require.NoError(t, err)
	assert.Equal(t, []byte("1"), flag)
}

func TestCreateNotebook_BecomesCurrentAndHeadsList(t *testing.T) {
	ctx := context.Background()
	m, _, _ := newTestManager(t)
	require.NoError(t, m.Init(ctx))

	nb, err := m.CreateNotebook(ctx, "travel log")
	require.NoError(t, err)

	assert.Equal(t, nb.ID, m.Current().ID)
	list := m.Notebooks()
	require.Len(t, list, 2)
	assert.Equal(t, nb.ID, list[0].ID)
}

func TestLoadNotebook_PersistsTargetPage(t *testing.T) {
	ctx := context.Background()
	m, store, _ := newTestManager(t)
	require.NoError(t, m.Init(ctx))

	nb, err := m.CreateNotebook(ctx, "second")
	require.NoError(t, err)

	require.NoError(t, m.LoadNotebook(ctx, nb.ID, 42))
	assert.Equal(t, 42, m.Current().CurrentPage)

	// The cursor change is persisted synchronously.
	stored, err := store.GetNotebook(ctx, nb.ID)
	require.NoError(t, err)
	assert.Equal(t, 42, stored.CurrentPage)
}

func TestLoadNotebook_RejectsOutOfRangePage(t *testing.T) {
	ctx := context.Background()
	m, _, _ := newTestManager(t)
	require.NoError(t, m.Init(ctx))

	id := m.Current().ID
	require.Error(t, m.LoadNotebook(ctx, id, models.PageCount+1))
}

func TestDeleteNotebook_RefusesLast(t *testing.T) {
	ctx := context.Background()
	m, _, _ := newTestManager(t)
	require.NoError(t, m.Init(ctx))

	err := m.DeleteNotebook(ctx, m.Current().ID)
	require.ErrorIs(t, err, common.ErrLastNotebook)
	assert.Len(t, m.Notebooks(), 1)
}

func TestDeleteNotebook_SwitchesCurrent(t *testing.T) {
	ctx := context.Background()
	m, store, _ := newTestManager(t)
	require.NoError(t, m.Init(ctx))

	first := m.Current().ID
	second, err := m.CreateNotebook(ctx, "second")
	require.NoError(t, err)

	require.NoError(t, m.DeleteNotebook(ctx, second.ID))

	assert.Equal(t, first, m.Current().ID)
	assert.Len(t, m.Notebooks(), 1)

	_, err = store.GetNotebook(ctx, second.ID)
	require.ErrorIs(t, err, common.ErrNotFound)
}

func TestWritePage_PersistsInBackground(t *testing.T) {
	ctx := context.Background()
	m, store, _ := newTestManager(t)
	require.NoError(t, m.Init(ctx))

	require.NoError(t, m.TurnPage(ctx, 7))
	require.NoError(t, m.WritePage(ctx, "met the neighbour's cat"))
	m.Wait()

	stored, err := store.GetNotebook(ctx, m.Current().ID)
	require.NoError(t, err)
	assert.Equal(t, 7, stored.CurrentPage)
	assert.Equal(t, "met the neighbour's cat", stored.Page(7).Content)
	assert.False(t, stored.Page(7).LastModified.IsZero())
}

func TestTurnPage_RejectsOutOfRange(t *testing.T) {
	ctx := context.Background()
	m, _, _ := newTestManager(t)
	require.NoError(t, m.Init(ctx))

	require.Error(t, m.TurnPage(ctx, 0))
	require.Error(t, m.TurnPage(ctx, models.PageCount+1))
	assert.Equal(t, 1, m.Current().CurrentPage)
}

func TestRename_UpdatesListEntry(t *testing.T) {
	ctx := context.Background()
	m, store, _ := newTestManager(t)
	require.NoError(t, m.Init(ctx))

	require.NoError(t, m.Rename(ctx, "garden diary"))
	m.Wait()

	assert.Equal(t, "garden diary", m.Current().Title)
	assert.Equal(t, "garden diary", m.Notebooks()[0].Title)

	metas, err := store.GetAllMetadata(ctx)
	require.NoError(t, err)
	assert.Equal(t, "garden diary", metas[0].Title)
}

func TestAttachLocation_NoGeocoderFallsBackToCoordinates(t *testing.T) {
	ctx := context.Background()
	m, _, _ := newTestManager(t)
	require.NoError(t, m.Init(ctx))

	require.NoError(t, m.AttachLocation(ctx, 35.68124, 139.76712, 12))
	m.Wait()

	p := m.Current().Page(1)
	require.Len(t, p.Attachments, 1)
	att := p.Attachments[0]
	assert.Equal(t, models.AttachmentLocation, att.Type)
	require.NotNil(t, att.Location)
	assert.Equal(t, "35.68124, 139.76712", att.Location.Address)
	assert.Equal(t, "35.68124, 139.76712", att.Name)
}

func TestUpdateNotebook_SaveErrorReachesHandler(t *testing.T) {
	ctx := context.Background()

	var mu sync.Mutex
	var got error
	m, store, _ := newTestManager(t, WithSaveErrorHandler(func(err error) {
		mu.Lock()
		defer mu.Unlock()
		got = err
	}))
	require.NoError(t, m.Init(ctx))
	m.Wait()

	// A closed store makes every background persist fail.
	require.NoError(t, store.Close())

	require.NoError(t, m.WritePage(ctx, "doomed edit"))
	m.Wait()

	mu.Lock()
	defer mu.Unlock()
	require.Error(t, got)

	// The in-memory state keeps the edit regardless.
	assert.Equal(t, "doomed edit", m.Current().Page(1).Content)
}

func TestMonthlyActivity_SkipsDanglingEntries(t *testing.T) {
	ctx := context.Background()
	m, store, _ := newTestManager(t)
	require.NoError(t, m.Init(ctx))
	m.Wait()

	require.NoError(t, m.TurnPage(ctx, 3))
	require.NoError(t, m.WritePage(ctx, "picnic at the river"))
	m.Wait()

	now := time.Now().UTC()

	// A row pointing at a notebook id the session does not know about.
	_, err := store.DB().ExecContext(ctx,
		`INSERT INTO calendar_index (date_key, notebook_id, page_number, title, time) VALUES (?, ?, ?, ?, ?)`,
		now.Format("2006-01-02"), "ghost-id", 1, "ghost", "09:00")
	require.NoError(t, err)

	entries, err := m.MonthlyActivity(ctx, now.Year(), int(now.Month()))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, m.Current().ID, entries[0].NotebookID)
	assert.Equal(t, 3, entries[0].PageNumber)
}

func TestSearchNotebooks_PassThrough(t *testing.T) {
	ctx := context.Background()
	m, _, _ := newTestManager(t)
	require.NoError(t, m.Init(ctx))

	require.NoError(t, m.WritePage(ctx, "I saw a cat at the park"))
	m.Wait()

	results, err := m.SearchNotebooks(ctx, "cat")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, 1, results[0].PageNumber)
}
