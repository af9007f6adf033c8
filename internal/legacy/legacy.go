// Package legacy imports notebook data written by earlier releases.
//
// Two generations of on-disk layout predate the structured store, both kept
// as JSON blobs in the shared key-value table: a multi-notebook scheme (a
// metadata-list key plus one key per notebook) and, before that, a single
// flat key holding one bare notebook. Run detects both, imports whatever it
// finds through the regular save path and deletes the legacy keys, so a
// second run is a no-op. Every branch is fault-isolated: a corrupt payload
// is logged and skipped, never allowed to abort startup or the other
// branch.
package legacy

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/shimada839/toshinote/internal/kvstore"
	"github.com/shimada839/toshinote/internal/logging"
	"github.com/shimada839/toshinote/internal/models"
	"github.com/shimada839/toshinote/internal/storage"
)

// Keys used by earlier releases.
const (
	MetadataListKey   = "notebooks-metadata"
	NotebookKeyPrefix = "notebook-"
	SingleNotebookKey = "notebook"
)

type Importer struct {
	kv    kvstore.Repository
	store storage.Store
	log   logging.Logger
}

func NewImporter(kv kvstore.Repository, store storage.Store, log logging.Logger) *Importer {
	return &Importer{kv: kv, store: store, log: log}
}

// Run executes both migration branches in priority order and returns the
// number of notebooks imported. It never returns an error: legacy data is
// best-effort by contract.
func (i *Importer) Run(ctx context.Context) int {
	imported := i.importMultiNotebookScheme(ctx)
	imported += i.importSingleNotebookScheme(ctx)
	if imported > 0 {
		i.log.Info(ctx, "imported legacy notebooks", "count", imported)
	}
	return imported
}

// importMultiNotebookScheme handles the metadata-list layout: one key with
// the list of summaries, one key per notebook blob.
func (i *Importer) importMultiNotebookScheme(ctx context.Context) int {
	raw, err := i.kv.Get(ctx, MetadataListKey)
	if err != nil {
		i.log.Warn(ctx, "legacy metadata list unreadable", "error", err)
		return 0
	}
	if raw == nil {
		return 0
	}

	var metas []models.NotebookMetadata
	if err := json.Unmarshal(raw, &metas); err != nil {
		i.log.Warn(ctx, "legacy metadata list is malformed, skipping branch", "error", err)
		return 0
	}

	imported := 0
	for _, meta := range metas {
		key := NotebookKeyPrefix + meta.ID
		blob, err := i.kv.Get(ctx, key)
		if err != nil {
			i.log.Warn(ctx, "legacy notebook unreadable", "id", meta.ID, "error", err)
			continue
		}
		if blob == nil {
			// Metadata without a blob: tolerate and move on.
			i.log.Warn(ctx, "legacy notebook blob missing", "id", meta.ID)
			continue
		}

		if i.importNotebook(ctx, blob) {
			imported++
			if err := i.kv.Delete(ctx, key); err != nil {
				i.log.Warn(ctx, "failed to delete legacy notebook key", "key", key, "error", err)
			}
		}
	}

	if err := i.kv.Delete(ctx, MetadataListKey); err != nil {
		i.log.Warn(ctx, "failed to delete legacy metadata list key", "error", err)
	}
	return imported
}

// importSingleNotebookScheme handles the oldest layout: one flat key with a
// bare notebook that may predate ids.
func (i *Importer) importSingleNotebookScheme(ctx context.Context) int {
	raw, err := i.kv.Get(ctx, SingleNotebookKey)
	if err != nil {
		i.log.Warn(ctx, "legacy single notebook unreadable", "error", err)
		return 0
	}
	if raw == nil {
		return 0
	}

	if !i.importNotebook(ctx, raw) {
		return 0
	}
	if err := i.kv.Delete(ctx, SingleNotebookKey); err != nil {
		i.log.Warn(ctx, "failed to delete legacy single notebook key", "error", err)
	}
	return 1
}

// importNotebook decodes, repairs and saves one legacy blob. Returns false
// when the blob could not be imported; the caller keeps going either way.
func (i *Importer) importNotebook(ctx context.Context, blob []byte) bool {
	var nb models.Notebook
	if err := json.Unmarshal(blob, &nb); err != nil {
		i.log.Warn(ctx, "legacy notebook is malformed, skipping", "error", err)
		return false
	}

	if nb.ID == "" {
		nb.ID = uuid.NewString()
	}
	nb.Normalize()

	if err := i.store.SaveNotebook(ctx, &nb); err != nil {
		i.log.Warn(ctx, "failed to import legacy notebook", "id", nb.ID, "error", err)
		return false
	}
	return true
}
