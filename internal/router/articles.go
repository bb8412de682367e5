package router

import (
	"net/http"
	"strconv"

	"github.com/DjordjeVuckovic/editorial-hub/internal/apperr"
	"github.com/DjordjeVuckovic/editorial-hub/internal/domain"
	"github.com/DjordjeVuckovic/editorial-hub/internal/workflow"
	"github.com/DjordjeVuckovic/editorial-hub/pkg/pagination"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// createDraft godoc
// @Summary Create a draft article
// @Tags articles
// @Accept json
// @Produce json
// @Param X-Actor-ID header string true "Acting user id"
// @Param body body workflow.DraftInput true "Draft"
// @Success 201 {object} domain.Article
// @Failure 400 {object} map[string]string
// @Router /articles [post]
func (r *Router) createDraft(c echo.Context) error {
	var in workflow.DraftInput
	if err := bind(c, &in); err != nil {
		return err
	}
	a, err := r.engine.CreateDraft(c.Request().Context(), actorFrom(c), in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, a)
}

func (r *Router) saveDraft(c echo.Context) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	var in workflow.DraftInput
	if err := bind(c, &in); err != nil {
		return err
	}
	a, err := r.engine.SaveDraft(c.Request().Context(), actorFrom(c), id, in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, a)
}

func (r *Router) deleteArticle(c echo.Context) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	if err := r.engine.DeleteArticle(c.Request().Context(), actorFrom(c), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// getArticle godoc
// @Summary Get an article
// @Tags articles
// @Produce json
// @Param X-Actor-ID header string true "Acting user id"
// @Param id path string true "Article id"
// @Success 200 {object} domain.Article
// @Failure 403 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /articles/{id} [get]
func (r *Router) getArticle(c echo.Context) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	a, err := r.engine.Readable(c.Request().Context(), actorFrom(c), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, a)
}

// listArticles godoc
// @Summary List articles
// @Tags articles
// @Produce json
// @Param X-Actor-ID header string true "Acting user id"
// @Param status query string false "Workflow status"
// @Param author query string false "Author id"
// @Param page query int false "Page number" default(1)
// @Param size query int false "Page size" default(20)
// @Success 200 {object} pagination.OffsetResult[domain.Article]
// @Router /articles [get]
func (r *Router) listArticles(c echo.Context) error {
	req := pagination.OffsetRequest{}
	if raw := c.QueryParam("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return apperr.NewValidationWrap("invalid page", err)
		}
		req.Page = n
	}
	if raw := c.QueryParam("size"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return apperr.NewValidationWrap("invalid size", err)
		}
		req.Size = n
	}
	_ = req.Validate()

	filter := domain.ArticleFilter{Page: req.Page, Size: req.Size}
	if raw := c.QueryParam("status"); raw != "" {
		s, err := domain.ParseStatus(raw)
		if err != nil {
			return apperr.NewValidationWrap("invalid status", err)
		}
		filter.Status = s
	}
	if raw := c.QueryParam("author"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return apperr.NewValidationWrap("invalid author", err)
		}
		filter.AuthorID = id
	}

	items, total, err := r.engine.ListArticles(c.Request().Context(), actorFrom(c), filter)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewOffsetResult(items, total, req))
}

func (r *Router) history(c echo.Context) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	events, err := r.engine.History(c.Request().Context(), actorFrom(c), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, events)
}

func (r *Router) assignments(c echo.Context) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	list, err := r.engine.Assignments(c.Request().Context(), actorFrom(c), id)
	if err != nil {
		return err
	}
	if list == nil {
		list = []domain.Assignment{}
	}
	return c.JSON(http.StatusOK, list)
}

func (r *Router) listMessages(c echo.Context) error {
	if r.messages == nil {
		return c.JSON(http.StatusOK, []domain.Notification{})
	}
	msgs, err := r.messages.ListMessages(c.Request().Context(), actorFrom(c).ID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, msgs)
}
