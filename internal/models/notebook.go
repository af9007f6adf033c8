// Package models defines the notebook entities persisted by the storage
// layer: Notebook, Page, Attachment and the denormalized NotebookMetadata
// summary.
package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// PageCount is the fixed number of pages in every notebook. It must never
// change for an existing database, since the page array length has to stay
// consistent across imports and saves.
const PageCount = 100

// DefaultTitle is the title given to freshly created notebooks.
const DefaultTitle = "New Notebook"

// Notebook is a fixed-length sequence of pages with a title and a navigation
// cursor. It is always saved as one full record; partial updates do not
// exist at the storage level.
type Notebook struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	CreatedAt     time.Time `json:"createdAt"`
	CurrentPage   int       `json:"currentPage"`
	Pages         []Page    `json:"pages"`
	BackgroundURI string    `json:"backgroundUri,omitempty"`
	ShowLines     bool      `json:"showLines,omitempty"`
}

// Page is one slot in a notebook. PageNumber is 1-based and matches the
// page's position in the array.
type Page struct {
	PageNumber   int          `json:"pageNumber"`
	Content      string       `json:"content"`
	LastModified time.Time    `json:"lastModified"`
	Attachments  []Attachment `json:"attachments,omitempty"`
}

// NotebookMetadata is a lightweight summary kept in sync with each notebook
// so lists can render without loading page payloads.
type NotebookMetadata struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	CreatedAt    time.Time `json:"createdAt"`
	LastModified time.Time `json:"lastModified"`
}

// NewNotebook creates a notebook with PageCount blank pages and the cursor
// on page 1. An empty title falls back to DefaultTitle.
func NewNotebook(title string) *Notebook {
	if strings.TrimSpace(title) == "" {
		title = DefaultTitle
	}
	now := time.Now().UTC()

	pages := make([]Page, PageCount)
	for i := range pages {
		pages[i] = Page{PageNumber: i + 1, Content: "", LastModified: now}
	}

	return &Notebook{
		ID:          uuid.NewString(),
		Title:       title,
		CreatedAt:   now,
		CurrentPage: 1,
		Pages:       pages,
	}
}

// Metadata builds the summary record for the notebook. LastModified is set
// to now; the storage layer refreshes it on every save anyway.
func (n *Notebook) Metadata() NotebookMetadata {
	return NotebookMetadata{
		ID:           n.ID,
		Title:        n.Title,
		CreatedAt:    n.CreatedAt,
		LastModified: time.Now().UTC(),
	}
}

// Clone returns a deep copy of the notebook. Saves are keyed by full
// snapshot, so callers clone before handing a notebook to a background
// persist.
func (n *Notebook) Clone() *Notebook {
	c := *n
	c.Pages = make([]Page, len(n.Pages))
	for i, p := range n.Pages {
		cp := p
		if p.Attachments != nil {
			cp.Attachments = make([]Attachment, len(p.Attachments))
			for j, a := range p.Attachments {
				ca := a
				if a.Data != nil {
					ca.Data = append([]byte(nil), a.Data...)
				}
				if a.Location != nil {
					loc := *a.Location
					ca.Location = &loc
				}
				cp.Attachments[j] = ca
			}
		}
		c.Pages[i] = cp
	}
	return &c
}

// Normalize repairs a notebook loaded from a legacy payload: pads the page
// array to PageCount, renumbers pages by position and clamps the cursor.
func (n *Notebook) Normalize() {
	if len(n.Pages) > PageCount {
		n.Pages = n.Pages[:PageCount]
	}
	for len(n.Pages) < PageCount {
		n.Pages = append(n.Pages, Page{Content: ""})
	}
	for i := range n.Pages {
		n.Pages[i].PageNumber = i + 1
	}
	if n.CurrentPage < 1 {
		n.CurrentPage = 1
	}
	if n.CurrentPage > PageCount {
		n.CurrentPage = PageCount
	}
}

// Page returns the page with the given 1-based number, or nil when the
// number is out of range.
func (n *Notebook) Page(pageNumber int) *Page {
	if pageNumber < 1 || pageNumber > len(n.Pages) {
		return nil
	}
	return &n.Pages[pageNumber-1]
}

// HasContent reports whether the page carries either non-blank text or at
// least one attachment. Only such pages appear in the calendar index.
func (p *Page) HasContent() bool {
	return strings.TrimSpace(p.Content) != "" || len(p.Attachments) > 0
}
