package router

import (
	"context"
	"net/http"

	"github.com/DjordjeVuckovic/editorial-hub/internal/apperr"
	"github.com/DjordjeVuckovic/editorial-hub/internal/domain"
	"github.com/DjordjeVuckovic/editorial-hub/internal/workflow"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type noteRequest struct {
	Note string `json:"note"`
}

type pricingRequest struct {
	Price  *int64 `json:"price"`
	IsFree bool   `json:"is_free"`
}

func (p pricingRequest) pricing() *domain.Pricing {
	if p.Price == nil && !p.IsFree {
		return nil
	}
	out := &domain.Pricing{IsFree: p.IsFree}
	if p.Price != nil {
		out.Price = *p.Price
	}
	return out
}

type finalizeRequest struct {
	As string `json:"as"`
	pricingRequest
}

type unassignRequest struct {
	Kind string `json:"kind"`
}

type noteCommand func(ctx context.Context, actor domain.Actor, id uuid.UUID, note string) (*workflow.Result, error)

// withNote adapts an engine command that takes an optional note.
func withNote(cmd noteCommand) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := idParam(c, "id")
		if err != nil {
			return err
		}
		var in noteRequest
		if err := bind(c, &in); err != nil {
			return err
		}
		res, err := cmd(c.Request().Context(), actorFrom(c), id, in.Note)
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, res)
	}
}

// submit godoc
// @Summary Submit a draft for editorial review
// @Tags workflow
// @Produce json
// @Param X-Actor-ID header string true "Acting user id"
// @Param id path string true "Article id"
// @Success 200 {object} workflow.Result
// @Failure 409 {object} map[string]string
// @Router /articles/{id}/submit [post]
func (r *Router) submit(c echo.Context) error {
	return withNote(r.engine.SubmitArticle)(c)
}

func (r *Router) resubmit(c echo.Context) error {
	return withNote(r.engine.Resubmit)(c)
}

func (r *Router) returnToDraft(c echo.Context) error {
	return withNote(r.engine.ReturnToDraft)(c)
}

func (r *Router) requestChanges(c echo.Context) error {
	return withNote(r.engine.RequestAuthorChanges)(c)
}

func (r *Router) approve(c echo.Context) error {
	return withNote(r.engine.ApproveForPublishing)(c)
}

func (r *Router) reject(c echo.Context) error {
	return withNote(r.engine.Reject)(c)
}

func (r *Router) startReview(c echo.Context) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	res, err := r.engine.StartReview(c.Request().Context(), actorFrom(c), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}

func (r *Router) assignEditor(c echo.Context) error {
	return r.assign(c, r.engine.AssignEditor)
}

func (r *Router) assignReviewer(c echo.Context) error {
	return r.assign(c, r.engine.AssignReviewer)
}

func (r *Router) assign(c echo.Context, cmd func(context.Context, domain.Actor, uuid.UUID, workflow.AssignInput) (*workflow.Result, error)) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	var in workflow.AssignInput
	if err := bind(c, &in); err != nil {
		return err
	}
	if in.AssigneeID == uuid.Nil {
		return apperr.NewValidation("assigneeId is required")
	}
	res, err := cmd(c.Request().Context(), actorFrom(c), id, in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}

func (r *Router) unassign(c echo.Context) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	var in unassignRequest
	if err := bind(c, &in); err != nil {
		return err
	}
	kind, err := domain.ParseAssignmentKind(in.Kind)
	if err != nil {
		return apperr.NewValidationWrap("invalid kind", err)
	}
	cancelled, err := r.engine.Unassign(c.Request().Context(), actorFrom(c), id, kind)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, cancelled)
}

func (r *Router) startAssignment(c echo.Context) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	kind, err := domain.ParseAssignmentKind(c.Param("kind"))
	if err != nil {
		return apperr.NewValidationWrap("invalid kind", err)
	}
	a, err := r.engine.StartAssignment(c.Request().Context(), actorFrom(c), id, kind)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, a)
}

func (r *Router) completeReview(c echo.Context) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	var in noteRequest
	if err := bind(c, &in); err != nil {
		return err
	}
	a, err := r.engine.CompleteReview(c.Request().Context(), actorFrom(c), id, in.Note)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, a)
}

func (r *Router) finalize(c echo.Context) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	var in finalizeRequest
	if err := bind(c, &in); err != nil {
		return err
	}
	mode, err := workflow.ParseFinalizeMode(in.As)
	if err != nil {
		return apperr.NewValidationWrap("invalid finalize mode", err)
	}
	res, err := r.engine.FinalizeEditing(c.Request().Context(), actorFrom(c), id, mode, in.pricing())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}

// publish godoc
// @Summary Publish an approved article
// @Tags workflow
// @Accept json
// @Produce json
// @Param X-Actor-ID header string true "Acting user id"
// @Param id path string true "Article id"
// @Param body body pricingRequest true "Pricing"
// @Success 200 {object} workflow.Result
// @Failure 400 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Router /articles/{id}/publish [post]
func (r *Router) publish(c echo.Context) error {
	id, err := idParam(c, "id")
	if err != nil {
		return err
	}
	var in pricingRequest
	if err := bind(c, &in); err != nil {
		return err
	}
	p := in.pricing()
	if p == nil {
		return apperr.NewValidation("price or is_free is required")
	}
	res, err := r.engine.PublishContent(c.Request().Context(), actorFrom(c), id, *p)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}
