package apperr

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
)

func GlobalErrorHandler() echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status, body := Classify(err)
		if status == http.StatusInternalServerError {
			slog.Error("Unhandled error", "error", err)
		}
		_ = c.JSON(status, body)
	}
}

// Classify maps an error chain to an HTTP status and a response body.
func Classify(err error) (int, map[string]string) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return http.StatusBadRequest, map[string]string{"error": ve.Error(), "title": "validation error"}
	}

	var ue *UnauthenticatedError
	if errors.As(err, &ue) {
		return http.StatusUnauthorized, map[string]string{"error": ue.Message, "title": "unauthenticated"}
	}

	var ae *AuthorizationError
	if errors.As(err, &ae) {
		return http.StatusForbidden, map[string]string{"error": ae.Message, "title": "forbidden"}
	}

	var nf *NotFoundError
	if errors.As(err, &nf) {
		return http.StatusNotFound, map[string]string{"error": nf.Error(), "title": "not found"}
	}

	var ce *ConflictError
	if errors.As(err, &ce) {
		return http.StatusConflict, map[string]string{"error": ce.Message, "title": "conflict"}
	}

	var te *ExternalToolError
	if errors.As(err, &te) {
		body := map[string]string{"error": te.Error(), "title": "external tool error"}
		if te.StderrTail != "" {
			body["stderr"] = te.StderrTail
		}
		return http.StatusBadGateway, body
	}

	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code, map[string]string{"error": fmt.Sprintf("%v", he.Message)}
	}

	return http.StatusInternalServerError, map[string]string{"error": "internal server error"}
}
