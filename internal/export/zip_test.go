package export

import (
	"archive/zip"
	"bytes"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shimada839/toshinote/internal/common"
	"github.com/shimada839/toshinote/internal/models"
)

func buildNotebook(t *testing.T) *models.Notebook {
	t.Helper()
	nb := models.NewNotebook("Trip")

	p3 := nb.Page(3)
	p3.Content = "day three"
	p3.LastModified = time.Date(2026, 2, 13, 10, 0, 0, 0, time.UTC)

	p7 := nb.Page(7)
	p7.Content = "day seven"
	p7.LastModified = time.Date(2026, 2, 17, 18, 30, 0, 0, time.UTC)
	p7.Attachments = []models.Attachment{
		models.NewFileAttachment("photo.png", "image/png", []byte{0x89, 0x50}),
		models.NewLocationAttachment(models.Location{Latitude: 1, Longitude: 2}, "somewhere"),
	}

	return nb
}

func readArchive(t *testing.T, data []byte) map[string][]byte {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)

	files := make(map[string][]byte)
	for _, f := range zr.File {
		rc, err := f.Open()
		require.NoError(t, err)
		b, err := io.ReadAll(rc)
		require.NoError(t, err)
		require.NoError(t, rc.Close())
		files[f.Name] = b
	}
	return files
}

func TestWrite_PagesAndAttachments(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	require.NoError(t, Write(zw, buildNotebook(t)))
	require.NoError(t, zw.Close())

	files := readArchive(t, buf.Bytes())
	require.Len(t, files, 3)
	assert.Equal(t, []byte("day three"), files["003_20260213.txt"])
	assert.Equal(t, []byte("day seven"), files["007_20260217.txt"])
	assert.Equal(t, []byte{0x89, 0x50}, files["007_photo.png"])
}

func TestWrite_EmptyNotebook(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	err := Write(zw, models.NewNotebook("blank"))
	require.ErrorIs(t, err, common.ErrNothingToExport)
}

func TestWriteFile_RemovesArchiveWhenEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.zip")
	err := WriteFile(path, models.NewNotebook("blank"))
	require.ErrorIs(t, err, common.ErrNothingToExport)
	assert.NoFileExists(t, path)
}

func TestWriteFile_CreatesArchive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.zip")
	require.NoError(t, WriteFile(path, buildNotebook(t)))
	assert.FileExists(t, path)
}

func TestSanitizeFileName(t *testing.T) {
	assert.Equal(t, "a_b_c.png", sanitizeFileName("a/b:c.png"))
	assert.Equal(t, "plain.txt", sanitizeFileName("  plain.txt "))
}
