package analysis

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/DjordjeVuckovic/editorial-hub/internal/apperr"
	"github.com/DjordjeVuckovic/editorial-hub/internal/domain"
	"github.com/DjordjeVuckovic/editorial-hub/internal/fetch"
	"github.com/DjordjeVuckovic/editorial-hub/internal/kv"
	"github.com/DjordjeVuckovic/editorial-hub/internal/storage"
	"github.com/google/uuid"
)

const (
	scratchPrefix  = "analysis-"
	submissionsDir = "submissions"
	lockGrace      = time.Minute
)

// Access lists an article's attachments on behalf of an actor.
type Access interface {
	Attachments(ctx context.Context, actor domain.Actor, articleID uuid.UUID) ([]domain.Attachment, error)
}

// Artifacts stores report archives and hands out links to them.
type Artifacts interface {
	Put(ctx context.Context, key string, r io.Reader, contentType string) (int64, error)
	Delete(ctx context.Context, key string) error
	SignedURL(key, method string, ttl time.Duration) (string, error)
}

type Orchestrator struct {
	cfg       ToolConfig
	profiles  Profiles
	access    Access
	reports   storage.ReportStore
	artifacts Artifacts
	fetcher   *fetch.Fetcher
	locks     kv.Store
	now       func() time.Time
}

type Option func(o *Orchestrator)

func WithProfiles(p Profiles) Option {
	return func(o *Orchestrator) {
		o.profiles = p
	}
}

func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		o.now = now
	}
}

func NewOrchestrator(
	cfg ToolConfig,
	access Access,
	reports storage.ReportStore,
	artifacts Artifacts,
	fetcher *fetch.Fetcher,
	locks kv.Store,
	opts ...Option,
) *Orchestrator {
	o := &Orchestrator{
		cfg:       cfg.withDefaults(),
		profiles:  Profiles{},
		access:    access,
		reports:   reports,
		artifacts: artifacts,
		fetcher:   fetcher,
		locks:     locks,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

type Outcome struct {
	ReportID uuid.UUID                `json:"reportId"`
	URL      string                   `json:"url"`
	Summary  domain.SimilaritySummary `json:"summary"`
	Report   *domain.SimilarityReport `json:"-"`
}

func LockKey(articleID uuid.UUID) string {
	return "lock:analysis:" + articleID.String()
}

// Run analyses every attachment of the article with the external tool. Only one
// run per article may be in flight. A report is persisted only once the tool
// succeeded and its archive is stored.
func (o *Orchestrator) Run(ctx context.Context, actor domain.Actor, articleID uuid.UUID, language string) (*Outcome, error) {
	profile, err := o.profiles.Resolve(language, o.cfg.Language)
	if err != nil {
		return nil, err
	}
	atts, err := o.access.Attachments(ctx, actor, articleID)
	if err != nil {
		return nil, err
	}
	if len(atts) == 0 {
		return nil, apperr.NewValidation("article has no attachments to analyse")
	}

	release, err := o.lock(ctx, articleID)
	if err != nil {
		return nil, err
	}
	defer release()

	// The lock outlives this deadline, so no second run starts while this one works.
	ctx, cancel := context.WithTimeout(ctx, o.cfg.Deadline)
	defer cancel()

	outcome, err := o.run(ctx, actor, articleID, profile, atts)
	if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		var toolErr *apperr.ExternalToolError
		if errors.As(err, &toolErr) {
			toolErr.TimedOut = true
		} else {
			err = &apperr.ExternalToolError{ExitCode: -1, TimedOut: true, Err: err}
		}
		slog.Error("External analysis exceeded its deadline", "article", articleID, "deadline", o.cfg.Deadline)
	}
	return outcome, err
}

func (o *Orchestrator) run(ctx context.Context, actor domain.Actor, articleID uuid.UUID, profile Profile, atts []domain.Attachment) (*Outcome, error) {
	if err := os.MkdirAll(o.cfg.ScratchRoot, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create scratch root: %w", err)
	}
	scratch, err := os.MkdirTemp(o.cfg.ScratchRoot, scratchPrefix+articleID.String()+"-")
	if err != nil {
		return nil, fmt.Errorf("failed to create scratch dir: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(scratch); err != nil {
			slog.Error("Failed to remove scratch dir", "dir", scratch, "error", err)
		}
	}()

	if err := o.download(ctx, scratch, atts); err != nil {
		return nil, err
	}

	if err := runTool(ctx, scratch, o.cfg.Binary, o.args(profile), o.cfg.Timeout); err != nil {
		return nil, err
	}

	reportID := uuid.New()
	out := locateOutput(scratch, o.cfg.OutputDirs)
	key, url, err := o.publishArchive(ctx, scratch, out, articleID, reportID)
	if err != nil {
		return nil, err
	}

	// Submissions are author supplied, so a CSV among them is never the summary.
	summary := summarize(findSummary(o.cfg.SummaryFile, out, filepath.Join(scratch, submissionsDir)), o.cfg.MaxRows)
	report := &domain.SimilarityReport{
		ID:           reportID,
		ArticleID:    articleID,
		Method:       domain.MethodExternalTool,
		Summary:      summary,
		ArtifactPath: key,
		ArtifactURL:  url,
		InitiatorID:  actor.ID,
		Status:       domain.ReportCompleted,
		CreatedAt:    o.now().UTC(),
	}
	if err := o.reports.SaveReport(ctx, report); err != nil {
		if derr := o.artifacts.Delete(context.WithoutCancel(ctx), key); derr != nil {
			slog.Warn("Failed to delete orphaned report archive", "key", key, "error", derr)
		}
		return nil, err
	}

	slog.Info("External analysis completed",
		"article", articleID,
		"report", reportID,
		"language", profile.Language,
		"degraded", summary.Degraded(),
	)
	return &Outcome{ReportID: reportID, URL: url, Summary: summary, Report: report}, nil
}

func (o *Orchestrator) lock(ctx context.Context, articleID uuid.UUID) (func(), error) {
	key, token := LockKey(articleID), uuid.NewString()
	ok, err := o.locks.SetNX(ctx, key, token, o.cfg.Deadline+lockGrace)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire analysis lock: %w", err)
	}
	if !ok {
		return nil, apperr.NewConflict("an analysis of article %s is already running", articleID)
	}
	return func() {
		if _, err := o.locks.CompareAndDelete(context.WithoutCancel(ctx), key, token); err != nil {
			slog.Error("Failed to release analysis lock", "key", key, "error", err)
		}
	}, nil
}

func (o *Orchestrator) download(ctx context.Context, scratch string, atts []domain.Attachment) error {
	dir := filepath.Join(scratch, submissionsDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create submissions dir: %w", err)
	}

	var written atomic.Int32
	err := o.fetcher.Each(ctx, atts, func(_ int, att domain.Attachment, data []byte) error {
		name := att.ID.String() + "-" + localName(att.Filename)
		if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
			return err
		}
		written.Add(1)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to download attachments: %w", err)
	}
	if written.Load() == 0 {
		return apperr.NewValidation("none of the article's attachments could be downloaded")
	}
	slog.Info("Submissions prepared", "dir", dir, "count", written.Load(), "attachments", len(atts))
	return nil
}

func (o *Orchestrator) args(p Profile) []string {
	args := append([]string{}, o.cfg.BaseArgs...)
	args = append(args, "--mode", o.cfg.Mode, "--language", p.Language)
	args = append(args, p.Args...)
	return append(args, "--threads", strconv.Itoa(o.cfg.Threads), "--csv-export", submissionsDir)
}

func (o *Orchestrator) publishArchive(ctx context.Context, scratch, out string, articleID, reportID uuid.UUID) (string, string, error) {
	archive := scratch + ".zip"
	defer os.Remove(archive)

	if err := zipDir(out, archive, filepath.Join(scratch, submissionsDir)); err != nil {
		return "", "", err
	}

	f, err := os.Open(archive)
	if err != nil {
		return "", "", fmt.Errorf("failed to open archive: %w", err)
	}
	defer f.Close()

	key := fmt.Sprintf("reports/%s/%s.zip", articleID, reportID)
	if _, err := o.artifacts.Put(ctx, key, f, "application/zip"); err != nil {
		return "", "", fmt.Errorf("failed to upload report archive: %w", err)
	}
	url, err := o.artifacts.SignedURL(key, http.MethodGet, o.cfg.URLTTL)
	if err != nil {
		if derr := o.artifacts.Delete(context.WithoutCancel(ctx), key); derr != nil {
			slog.Warn("Failed to delete report archive", "key", key, "error", derr)
		}
		return "", "", fmt.Errorf("failed to sign report url: %w", err)
	}
	return key, url, nil
}

func localName(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, `\`, "/"))
	if name == "." || name == "/" || name == "" {
		return "submission"
	}
	return name
}
