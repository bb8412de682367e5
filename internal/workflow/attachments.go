package workflow

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"

	"github.com/DjordjeVuckovic/editorial-hub/internal/apperr"
	"github.com/DjordjeVuckovic/editorial-hub/internal/domain"
	"github.com/google/uuid"
)

var ErrNoBlobStore = errors.New("no blob store configured")

// MaxAttachmentSize bounds a single upload.
const MaxAttachmentSize = 50 << 20

type UploadInput struct {
	Filename string
	MIMEType string
	Body     io.Reader
}

type LinkInput struct {
	Filename  string `json:"filename"`
	MIMEType  string `json:"mimeType"`
	PublicURL string `json:"publicUrl"`
}

func AttachmentKey(articleID, attachmentID uuid.UUID, filename string) string {
	return fmt.Sprintf("articles/%s/%s-%s", articleID, attachmentID, safeName(filename))
}

// canAttach mirrors the edit rules: owners while editable, staff while active.
func (e *Engine) canAttach(ctx context.Context, actor domain.Actor, articleID uuid.UUID) (*domain.Article, error) {
	article, err := e.store.GetArticle(ctx, articleID)
	if err != nil {
		return nil, err
	}
	active, err := e.activeAssignments(ctx, articleID)
	if err != nil {
		return nil, err
	}
	g := NewGrants(actor, article, active)
	switch {
	case g.Has(CapOwner) && article.Editable():
		return article, nil
	case article.Status.Active() && (actor.Role.Privileged() || assignedTo(actor.ID, active)):
		return article, nil
	case g.Has(CapOwner):
		return nil, apperr.NewConflict("article %s is %s and no longer accepts attachments from its author", articleID, article.Status)
	default:
		return nil, apperr.NewAuthorization("actor %s may not attach files to article %s", actor.ID, articleID)
	}
}

// UploadAttachment stores the bytes first and records the attachment after.
func (e *Engine) UploadAttachment(ctx context.Context, actor domain.Actor, articleID uuid.UUID, in UploadInput) (*domain.Attachment, error) {
	if e.blobs == nil {
		return nil, ErrNoBlobStore
	}
	if strings.TrimSpace(in.Filename) == "" {
		return nil, apperr.NewValidation("filename is required")
	}
	if _, err := e.canAttach(ctx, actor, articleID); err != nil {
		return nil, err
	}

	att := &domain.Attachment{
		ID:         uuid.New(),
		ArticleID:  articleID,
		Filename:   path.Base(strings.ReplaceAll(in.Filename, `\`, "/")),
		MIMEType:   in.MIMEType,
		UploaderID: actor.ID,
	}
	att.StoragePath = AttachmentKey(articleID, att.ID, att.Filename)

	size, err := e.blobs.Put(ctx, att.StoragePath, io.LimitReader(in.Body, MaxAttachmentSize+1), att.MIMEType)
	if err != nil {
		return nil, fmt.Errorf("failed to store attachment: %w", err)
	}
	if size > MaxAttachmentSize {
		e.dropBlob(ctx, att.StoragePath)
		return nil, apperr.NewValidation(fmt.Sprintf("attachment exceeds %d bytes", MaxAttachmentSize))
	}
	att.Size = size

	if err := e.store.AddAttachment(ctx, att); err != nil {
		e.dropBlob(ctx, att.StoragePath)
		return nil, err
	}
	slog.Info("Attachment uploaded", "article", articleID, "attachment", att.ID, "size", size)
	return att, nil
}

// LinkAttachment records an externally hosted file.
func (e *Engine) LinkAttachment(ctx context.Context, actor domain.Actor, articleID uuid.UUID, in LinkInput) (*domain.Attachment, error) {
	if !strings.HasPrefix(in.PublicURL, "http://") && !strings.HasPrefix(in.PublicURL, "https://") {
		return nil, apperr.NewValidation("publicUrl must be an http(s) url")
	}
	if _, err := e.canAttach(ctx, actor, articleID); err != nil {
		return nil, err
	}
	name := in.Filename
	if name == "" {
		name = path.Base(in.PublicURL)
	}
	att := &domain.Attachment{
		ID:         uuid.New(),
		ArticleID:  articleID,
		Filename:   name,
		MIMEType:   in.MIMEType,
		UploaderID: actor.ID,
		PublicURL:  in.PublicURL,
	}
	if err := e.store.AddAttachment(ctx, att); err != nil {
		return nil, err
	}
	return att, nil
}

func (e *Engine) Attachments(ctx context.Context, actor domain.Actor, articleID uuid.UUID) ([]domain.Attachment, error) {
	if _, err := e.Participant(ctx, actor, articleID); err != nil {
		return nil, err
	}
	return e.store.ListAttachments(ctx, articleID)
}

// Attachment returns one attachment of the article, checking participant access.
func (e *Engine) Attachment(ctx context.Context, actor domain.Actor, articleID, attachmentID uuid.UUID) (*domain.Attachment, error) {
	if _, err := e.Participant(ctx, actor, articleID); err != nil {
		return nil, err
	}
	att, err := e.store.GetAttachment(ctx, attachmentID)
	if err != nil {
		return nil, err
	}
	if att.ArticleID != articleID {
		return nil, apperr.NewNotFound("attachment", attachmentID)
	}
	return att, nil
}

func (e *Engine) RemoveAttachment(ctx context.Context, actor domain.Actor, articleID, attachmentID uuid.UUID) error {
	att, err := e.store.GetAttachment(ctx, attachmentID)
	if err != nil {
		return err
	}
	if att.ArticleID != articleID {
		return apperr.NewNotFound("attachment", attachmentID)
	}
	if actor.Role != domain.RoleAdmin && att.UploaderID != actor.ID {
		if _, err := e.canAttach(ctx, actor, articleID); err != nil {
			return err
		}
	}

	if err := e.store.DeleteAttachment(ctx, attachmentID); err != nil {
		return err
	}
	if att.StoragePath != "" {
		e.dropBlob(ctx, att.StoragePath)
	}
	return nil
}

func (e *Engine) dropBlob(ctx context.Context, key string) {
	if e.blobs == nil {
		return
	}
	if err := e.blobs.Delete(context.WithoutCancel(ctx), key); err != nil {
		slog.Warn("Failed to delete attachment blob", "path", key, "error", err)
	}
}

func safeName(name string) string {
	name = path.Base(strings.ReplaceAll(name, `\`, "/"))
	name = strings.Map(func(r rune) rune {
		switch {
		case r == '/' || r == 0 || r < 0x20:
			return -1
		case r == ' ':
			return '_'
		}
		return r
	}, name)
	if name == "" || name == "." || name == ".." {
		return "file"
	}
	return name
}
