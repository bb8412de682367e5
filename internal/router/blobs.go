package router

import (
	"mime"
	"net/http"
	"net/url"
	"path"

	"github.com/DjordjeVuckovic/editorial-hub/internal/apperr"
	"github.com/labstack/echo/v4"
)

func (r *Router) signedKey(c echo.Context, method string) (string, error) {
	key, err := url.PathUnescape(c.Param("*"))
	if err != nil {
		return "", apperr.NewValidationWrap("invalid blob key", err)
	}
	q := c.QueryParams()
	if err := r.blobs.Verify(key, method, q.Get("exp"), q.Get("sig")); err != nil {
		return "", apperr.NewAuthorization("blob link rejected: %v", err)
	}
	return key, nil
}

func (r *Router) getBlob(c echo.Context) error {
	key, err := r.signedKey(c, http.MethodGet)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	rc, err := r.blobs.Get(ctx, key)
	if err != nil {
		return err
	}
	defer rc.Close()

	ct, err := r.blobs.ContentType(ctx, key)
	if err != nil {
		return err
	}
	if ct == "" {
		ct = mime.TypeByExtension(path.Ext(key))
	}
	if ct == "" {
		ct = echo.MIMEOctetStream
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="`+path.Base(key)+`"`)
	return c.Stream(http.StatusOK, ct, rc)
}

func (r *Router) putBlob(c echo.Context) error {
	key, err := r.signedKey(c, http.MethodPut)
	if err != nil {
		return err
	}
	n, err := r.blobs.Put(c.Request().Context(), key, c.Request().Body, c.Request().Header.Get(echo.HeaderContentType))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, map[string]any{"key": key, "size": n})
}
