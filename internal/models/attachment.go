package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// AttachmentType classifies an attachment kind.
type AttachmentType string

const (
	AttachmentImage    AttachmentType = "image"
	AttachmentFile     AttachmentType = "file"
	AttachmentLocation AttachmentType = "location"
)

// Location is the structured payload of a location attachment.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Accuracy  float64 `json:"accuracy"`
	Address   string  `json:"address,omitempty"`
}

// Attachment is a non-text artifact linked to a page. Data carries the
// binary payload for images and files; Location carries the structured
// record for geolocation stamps.
type Attachment struct {
	ID        string         `json:"id"`
	Type      AttachmentType `json:"type"`
	Data      []byte         `json:"data,omitempty"`
	Location  *Location      `json:"location,omitempty"`
	Name      string         `json:"name,omitempty"`
	MimeType  string         `json:"mimeType,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
}

// NewFileAttachment wraps a binary payload as an image or file attachment,
// depending on the MIME type.
func NewFileAttachment(name, mimeType string, data []byte) Attachment {
	t := AttachmentFile
	if strings.HasPrefix(mimeType, "image/") {
		t = AttachmentImage
	}
	return Attachment{
		ID:        uuid.NewString(),
		Type:      t,
		Data:      data,
		Name:      name,
		MimeType:  mimeType,
		CreatedAt: time.Now().UTC(),
	}
}

// NewLocationAttachment wraps a geolocation stamp. The name is the display
// label, usually a geocoded address or raw coordinates.
func NewLocationAttachment(loc Location, name string) Attachment {
	return Attachment{
		ID:        uuid.NewString(),
		Type:      AttachmentLocation,
		Location:  &loc,
		Name:      name,
		CreatedAt: time.Now().UTC(),
	}
}
