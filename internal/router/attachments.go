package router

import (
	"errors"
	"net/http"
	"strings"

	"github.com/DjordjeVuckovic/editorial-hub/internal/apperr"
	"github.com/DjordjeVuckovic/editorial-hub/internal/domain"
	"github.com/DjordjeVuckovic/editorial-hub/internal/workflow"
	"github.com/labstack/echo/v4"
)

// addAttachment accepts a multipart "file" upload, or a JSON link to an
// externally hosted file.
func (r *Router) addAttachment(c echo.Context) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	actor := actorFrom(c)

	if strings.HasPrefix(c.Request().Header.Get(echo.HeaderContentType), echo.MIMEApplicationJSON) {
		var in workflow.LinkInput
		if err := bind(c, &in); err != nil {
			return err
		}
		att, err := r.engine.LinkAttachment(ctx, actor, id, in)
		if err != nil {
			return err
		}
		return c.JSON(http.StatusCreated, att)
	}

	fh, err := c.FormFile("file")
	if err != nil {
		return apperr.NewValidationWrap("multipart field \"file\" is required", err)
	}
	f, err := fh.Open()
	if err != nil {
		return apperr.NewValidationWrap("unreadable upload", err)
	}
	defer f.Close()

	att, err := r.engine.UploadAttachment(ctx, actor, id, workflow.UploadInput{
		Filename: fh.Filename,
		MIMEType: fh.Header.Get(echo.HeaderContentType),
		Body:     f,
	})
	if errors.Is(err, workflow.ErrNoBlobStore) {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "attachment uploads are not configured")
	}
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, att)
}

func (r *Router) listAttachments(c echo.Context) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	atts, err := r.engine.Attachments(c.Request().Context(), actorFrom(c), id)
	if err != nil {
		return err
	}
	if atts == nil {
		atts = []domain.Attachment{}
	}
	return c.JSON(http.StatusOK, atts)
}

func (r *Router) removeAttachment(c echo.Context) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	attID, err := idParam(c, "attachmentId")
	if err != nil {
		return err
	}
	if err := r.engine.RemoveAttachment(c.Request().Context(), actorFrom(c), id, attID); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
