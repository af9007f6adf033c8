package legacy

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shimada839/toshinote/internal/kvstore"
	"github.com/shimada839/toshinote/internal/logging"
	"github.com/shimada839/toshinote/internal/models"
	"github.com/shimada839/toshinote/internal/storage"
)

func setup(t *testing.T) (*Importer, kvstore.Repository, *storage.SQLiteStore) {
	t.Helper()
	s, err := storage.Open(context.Background(), ":memory:", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	kv := kvstore.NewSQLiteRepository(s.DB())
	return NewImporter(kv, s, logging.NewDefault()), kv, s
}

func putJSON(t *testing.T, kv kvstore.Repository, key string, v any) {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	require.NoError(t, kv.Set(context.Background(), key, b))
}

func TestRun_NoLegacyData_IsNoOp(t *testing.T) {
	imp, _, s := setup(t)
	ctx := context.Background()

	require.Zero(t, imp.Run(ctx))

	metas, err := s.GetAllMetadata(ctx)
	require.NoError(t, err)
	assert.Empty(t, metas)
}

func TestRun_MultiNotebookScheme(t *testing.T) {
	imp, kv, s := setup(t)
	ctx := context.Background()

	nb1 := models.NewNotebook("imported one")
	nb1.Page(1).Content = "hello"
	nb2 := models.NewNotebook("imported two")

	putJSON(t, kv, MetadataListKey, []models.NotebookMetadata{
		nb1.Metadata(), nb2.Metadata(),
	})
	putJSON(t, kv, NotebookKeyPrefix+nb1.ID, nb1)
	putJSON(t, kv, NotebookKeyPrefix+nb2.ID, nb2)

	require.Equal(t, 2, imp.Run(ctx))

	metas, err := s.GetAllMetadata(ctx)
	require.NoError(t, err)
	require.Len(t, metas, 2)

	got, err := s.GetNotebook(ctx, nb1.ID)
	require.NoError(t, err)
	assert.Equal(t, "hello", got.Page(1).Content)

	// All legacy keys are gone.
	for _, key := range []string{MetadataListKey, NotebookKeyPrefix + nb1.ID, NotebookKeyPrefix + nb2.ID} {
		v, err := kv.Get(ctx, key)
		require.NoError(t, err)
		assert.Nil(t, v, "key %s should be deleted", key)
	}
}

func TestRun_MultiNotebookScheme_MissingBlobSkipped(t *testing.T) {
	imp, kv, s := setup(t)
	ctx := context.Background()

	nb := models.NewNotebook("present")
	ghost := models.NewNotebook("ghost")

	putJSON(t, kv, MetadataListKey, []models.NotebookMetadata{
		nb.Metadata(), ghost.Metadata(),
	})
	putJSON(t, kv, NotebookKeyPrefix+nb.ID, nb)
	// No blob for ghost.

	require.Equal(t, 1, imp.Run(ctx))

	metas, err := s.GetAllMetadata(ctx)
	require.NoError(t, err)
	require.Len(t, metas, 1)
	assert.Equal(t, nb.ID, metas[0].ID)
}

func TestRun_SingleNotebookScheme_GeneratesMissingID(t *testing.T) {
	imp, kv, s := setup(t)
	ctx := context.Background()

	// Oldest format: bare notebook without an id, short page array.
	bare := map[string]any{
		"title":       "ancient",
		"createdAt":   time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
		"currentPage": 3,
		"pages": []map[string]any{
			{"pageNumber": 1, "content": "old text", "lastModified": time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)},
		},
	}
	putJSON(t, kv, SingleNotebookKey, bare)

	require.Equal(t, 1, imp.Run(ctx))

	metas, err := s.GetAllMetadata(ctx)
	require.NoError(t, err)
	require.Len(t, metas, 1)
	require.NotEmpty(t, metas[0].ID)

	got, err := s.GetNotebook(ctx, metas[0].ID)
	require.NoError(t, err)
	assert.Len(t, got.Pages, models.PageCount)
	assert.Equal(t, "old text", got.Page(1).Content)
	assert.Equal(t, 3, got.CurrentPage)

	v, err := kv.Get(ctx, SingleNotebookKey)
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestRun_Idempotent(t *testing.T) {
	imp, kv, s := setup(t)
	ctx := context.Background()

	nb := models.NewNotebook("once")
	putJSON(t, kv, MetadataListKey, []models.NotebookMetadata{nb.Metadata()})
	putJSON(t, kv, NotebookKeyPrefix+nb.ID, nb)

	require.Equal(t, 1, imp.Run(ctx))
	require.Zero(t, imp.Run(ctx), "second run must import nothing")

	metas, err := s.GetAllMetadata(ctx)
	require.NoError(t, err)
	require.Len(t, metas, 1)
}

func TestRun_CorruptBranchDoesNotAbortOther(t *testing.T) {
	imp, kv, s := setup(t)
	ctx := context.Background()

	require.NoError(t, kv.Set(ctx, MetadataListKey, []byte("{not json")))

	nb := models.NewNotebook("survivor")
	putJSON(t, kv, SingleNotebookKey, nb)

	require.Equal(t, 1, imp.Run(ctx))

	got, err := s.GetNotebook(ctx, nb.ID)
	require.NoError(t, err)
	assert.Equal(t, "survivor", got.Title)
}

func TestRun_CorruptNotebookBlobSkipped(t *testing.T) {
	imp, kv, s := setup(t)
	ctx := context.Background()

	good := models.NewNotebook("good")
	bad := models.NewNotebook("bad")

	putJSON(t, kv, MetadataListKey, []models.NotebookMetadata{
		good.Metadata(), bad.Metadata(),
	})
	putJSON(t, kv, NotebookKeyPrefix+good.ID, good)
	require.NoError(t, kv.Set(ctx, NotebookKeyPrefix+bad.ID, []byte("][")))

	require.Equal(t, 1, imp.Run(ctx))

	metas, err := s.GetAllMetadata(ctx)
	require.NoError(t, err)
	require.Len(t, metas, 1)
	assert.Equal(t, good.ID, metas[0].ID)
}
