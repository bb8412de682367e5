package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrAttachmentLocation = errors.New("attachment needs a storage path or a public url")

type Attachment struct {
	ID          uuid.UUID `json:"id"`
	ArticleID   uuid.UUID `json:"articleId"`
	StoragePath string    `json:"storagePath,omitempty"`
	Filename    string    `json:"filename"`
	MIMEType    string    `json:"mimeType"`
	Size        int64     `json:"size"`
	UploaderID  uuid.UUID `json:"uploaderId"`
	PublicURL   string    `json:"publicUrl,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

func (a *Attachment) Validate() error {
	if a.StoragePath == "" && a.PublicURL == "" {
		return ErrAttachmentLocation
	}
	return nil
}
