package router

import (
	"context"
	"io"

	"github.com/DjordjeVuckovic/editorial-hub/internal/analysis"
	"github.com/DjordjeVuckovic/editorial-hub/internal/apperr"
	"github.com/DjordjeVuckovic/editorial-hub/internal/domain"
	"github.com/DjordjeVuckovic/editorial-hub/internal/originality"
	"github.com/DjordjeVuckovic/editorial-hub/internal/storage"
	"github.com/DjordjeVuckovic/editorial-hub/internal/workflow"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// Analyzer runs the external similarity tool.
type Analyzer interface {
	Run(ctx context.Context, actor domain.Actor, articleID uuid.UUID, language string) (*analysis.Outcome, error)
}

// BlobServer serves signed blob URLs.
type BlobServer interface {
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	ContentType(ctx context.Context, key string) (string, error)
	Put(ctx context.Context, key string, r io.Reader, contentType string) (int64, error)
	Verify(key, method, exp, sig string) error
}

type Router struct {
	e           *echo.Echo
	engine      *workflow.Engine
	users       storage.UserDirectory
	messages    storage.MessageStore
	originality *originality.Service
	analyzer    Analyzer
	blobs       BlobServer
}

type Option func(r *Router)

func WithMessages(m storage.MessageStore) Option {
	return func(r *Router) {
		r.messages = m
	}
}

func WithOriginality(s *originality.Service) Option {
	return func(r *Router) {
		r.originality = s
	}
}

func WithAnalyzer(a Analyzer) Option {
	return func(r *Router) {
		r.analyzer = a
	}
}

func WithBlobs(b BlobServer) Option {
	return func(r *Router) {
		r.blobs = b
	}
}

func New(e *echo.Echo, engine *workflow.Engine, users storage.UserDirectory, opts ...Option) *Router {
	r := &Router{
		e:      e,
		engine: engine,
		users:  users,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Router) Bind() {
	g := r.e.Group("/articles", ActorMiddleware(r.users))

	g.POST("", r.createDraft)
	g.GET("", r.listArticles)
	g.GET("/:id", r.getArticle)
	g.PUT("/:id", r.saveDraft)
	g.DELETE("/:id", r.deleteArticle)
	g.GET("/:id/events", r.history)
	g.GET("/:id/assignments", r.assignments)

	g.POST("/:id/submit", r.submit)
	g.POST("/:id/resubmit", r.resubmit)
	g.POST("/:id/return-to-draft", r.returnToDraft)
	g.POST("/:id/start-review", r.startReview)
	g.POST("/:id/assign-editor", r.assignEditor)
	g.POST("/:id/assign-reviewer", r.assignReviewer)
	g.POST("/:id/unassign", r.unassign)
	g.POST("/:id/assignments/:kind/start", r.startAssignment)
	g.POST("/:id/complete-review", r.completeReview)
	g.POST("/:id/request-changes", r.requestChanges)
	g.POST("/:id/approve", r.approve)
	g.POST("/:id/finalize", r.finalize)
	g.POST("/:id/publish", r.publish)
	g.POST("/:id/reject", r.reject)

	g.POST("/:id/attachments", r.addAttachment)
	g.GET("/:id/attachments", r.listAttachments)
	g.DELETE("/:id/attachments/:attachmentId", r.removeAttachment)

	g.POST("/:id/similarity/internal", r.runInternal)
	g.POST("/:id/similarity/external", r.runExternal)
	g.GET("/:id/similarity/latest", r.latestReport)
	g.GET("/:id/similarity", r.listReports)

	r.e.GET("/me/messages", r.listMessages, ActorMiddleware(r.users))

	if r.blobs != nil {
		r.e.GET("/blobs/*", r.getBlob)
		r.e.PUT("/blobs/*", r.putBlob)
	}
}

func idParam(c echo.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, apperr.NewValidationWrap("invalid "+name, err)
	}
	return id, nil
}

// bind decodes an optional JSON body.
func bind(c echo.Context, dst any) error {
	if err := c.Bind(dst); err != nil {
		return apperr.NewValidationWrap("invalid request body", err)
	}
	return nil
}
