package router

import (
	"net/http"

	"github.com/DjordjeVuckovic/editorial-hub/internal/similarity"
	"github.com/labstack/echo/v4"
)

type internalRequest struct {
	Threshold *float64 `json:"threshold"`
	Top       int      `json:"top"`
}

type externalRequest struct {
	Language string `json:"language"`
}

// runInternal godoc
// @Summary Compare an article's attachments with each other
// @Tags similarity
// @Accept json
// @Produce json
// @Param X-Actor-ID header string true "Acting user id"
// @Param id path string true "Article id"
// @Param body body internalRequest false "Threshold and result cap"
// @Success 200 {object} originality.Run
// @Router /articles/{id}/similarity/internal [post]
func (r *Router) runInternal(c echo.Context) error {
	if r.originality == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "similarity checks are not configured")
	}
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	var in internalRequest
	if err := bind(c, &in); err != nil {
		return err
	}
	opts := similarity.DefaultOptions()
	if in.Threshold != nil {
		opts.Threshold = *in.Threshold
	}
	opts.Top = in.Top

	run, err := r.originality.RunInternal(c.Request().Context(), actorFrom(c), id, opts)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, run)
}

// runExternal godoc
// @Summary Run the external similarity tool over an article's attachments
// @Tags similarity
// @Accept json
// @Produce json
// @Param X-Actor-ID header string true "Acting user id"
// @Param id path string true "Article id"
// @Param body body externalRequest false "Language profile"
// @Success 200 {object} analysis.Outcome
// @Failure 409 {object} map[string]string
// @Failure 502 {object} map[string]string
// @Router /articles/{id}/similarity/external [post]
func (r *Router) runExternal(c echo.Context) error {
	if r.analyzer == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "external analysis is not configured")
	}
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	var in externalRequest
	if err := bind(c, &in); err != nil {
		return err
	}
	out, err := r.analyzer.Run(c.Request().Context(), actorFrom(c), id, in.Language)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, out)
}

func (r *Router) latestReport(c echo.Context) error {
	if r.originality == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "similarity checks are not configured")
	}
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	rep, err := r.originality.LatestReport(c.Request().Context(), actorFrom(c), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, rep)
}

func (r *Router) listReports(c echo.Context) error {
	if r.originality == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "similarity checks are not configured")
	}
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	reps, err := r.originality.ListReports(c.Request().Context(), actorFrom(c), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, reps)
}
