// Package export writes a notebook out as a ZIP archive: one text file per
// non-empty page and one binary file per image/file attachment.
package export

import (
	"archive/zip"
	"fmt"
	"os"
	"strings"

	"github.com/shimada839/toshinote/internal/common"
	"github.com/shimada839/toshinote/internal/models"
)

// Write streams the notebook archive to w. Page files are named
// NNN_YYYYMMDD.txt after the page number and its last-modified date.
// Returns common.ErrNothingToExport when no page has content.
func Write(w *zip.Writer, nb *models.Notebook) error {
	exported := 0

	for _, p := range nb.Pages {
		if strings.TrimSpace(p.Content) != "" {
			name := fmt.Sprintf("%03d_%s.txt", p.PageNumber, p.LastModified.Format("20060102"))
			f, err := w.Create(name)
			if err != nil {
				return fmt.Errorf("failed to create archive entry %s: %w", name, err)
			}
			if _, err := f.Write([]byte(p.Content)); err != nil {
				return fmt.Errorf("failed to write archive entry %s: %w", name, err)
			}
			exported++
		}

		for _, a := range p.Attachments {
			if a.Type == models.AttachmentLocation || len(a.Data) == 0 {
				continue
			}
			name := attachmentFileName(p.PageNumber, a)
			f, err := w.Create(name)
			if err != nil {
				return fmt.Errorf("failed to create archive entry %s: %w", name, err)
			}
			if _, err := f.Write(a.Data); err != nil {
				return fmt.Errorf("failed to write archive entry %s: %w", name, err)
			}
			exported++
		}
	}

	if exported == 0 {
		return common.ErrNothingToExport
	}
	return nil
}

// WriteFile creates path and writes the notebook archive into it. The file
// is removed again when nothing was exported.
func WriteFile(path string, nb *models.Notebook) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create archive file: %w", err)
	}

	zw := zip.NewWriter(f)
	werr := Write(zw, nb)
	if cerr := zw.Close(); werr == nil {
		werr = cerr
	}
	if cerr := f.Close(); werr == nil {
		werr = cerr
	}

	if werr != nil {
		_ = os.Remove(path)
		return werr
	}
	return nil
}

func attachmentFileName(pageNumber int, a models.Attachment) string {
	name := sanitizeFileName(a.Name)
	if name == "" {
		name = a.ID
	}
	return fmt.Sprintf("%03d_%s", pageNumber, name)
}

// sanitizeFileName strips path separators and other characters that do not
// belong in archive entry names.
func sanitizeFileName(name string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		return r
	}, strings.TrimSpace(name))
}
