// Package main Editorial Hub API
// @title Editorial Hub API
// @version 1.0
// @description Editorial workflow for articles: drafting, review assignments, approval, publishing and originality checks
// @termsOfService http://swagger.io/terms/
// @contact.name API Support
// @license.name Apache 2.0
// @license.url https://opensource.org/licenses/Apache-2.0
// @BasePath /
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"

	_ "github.com/DjordjeVuckovic/editorial-hub/docs"
	"github.com/DjordjeVuckovic/editorial-hub/internal/analysis"
	"github.com/DjordjeVuckovic/editorial-hub/internal/blob"
	"github.com/DjordjeVuckovic/editorial-hub/internal/fetch"
	"github.com/DjordjeVuckovic/editorial-hub/internal/kv"
	"github.com/DjordjeVuckovic/editorial-hub/internal/notify"
	"github.com/DjordjeVuckovic/editorial-hub/internal/originality"
	"github.com/DjordjeVuckovic/editorial-hub/internal/router"
	"github.com/DjordjeVuckovic/editorial-hub/internal/search"
	"github.com/DjordjeVuckovic/editorial-hub/internal/server"
	"github.com/DjordjeVuckovic/editorial-hub/internal/storage/factory"
	"github.com/DjordjeVuckovic/editorial-hub/internal/storage/pg"
	"github.com/DjordjeVuckovic/editorial-hub/internal/workflow"
	pkgserver "github.com/DjordjeVuckovic/editorial-hub/pkg/server"
	"github.com/labstack/echo/v4"
)

func main() {
	appSettings := NewAppConfig()
	cfg, err := appSettings.Load()
	if err != nil {
		slog.Error("Failed to load app configuration", "error", err)
		os.Exit(1)
	}
	slog.SetLogLoggerLevel(cfg.LogLevel)

	sCfg, err := server.LoadConfig()
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	checkers := []pkgserver.HealthChecker{pkgserver.NewOkHealthChecker()}

	stores, err := factory.NewStore(ctx, &cfg.StorageConfig)
	if err != nil {
		slog.Error("Failed to create storage", "error", err)
		os.Exit(1)
	}
	defer stores.Store.Close()
	if stores.Pool != nil {
		checkers = append(checkers, pg.NewHealthChecker(stores.Pool))
	}
	store := stores.Store

	blobs, err := blob.NewFSStore(cfg.BlobConfig)
	if err != nil {
		slog.Error("Failed to open blob store", "error", err)
		os.Exit(1)
	}

	sinks := []notify.Sink{notify.NewLogSink(), notify.NewInAppSink(store)}
	if cfg.NotifyConfig.SMTP.Enabled() {
		sinks = append(sinks, notify.NewEmailSink(cfg.NotifyConfig.SMTP, store))
	}
	if cfg.NotifyConfig.WebhookURL != "" {
		sinks = append(sinks, notify.NewWebhookSink(cfg.NotifyConfig.WebhookURL))
	}
	if cfg.SearchConfig.Enabled {
		indexer, err := search.NewIndexer(ctx, cfg.SearchConfig)
		if err != nil {
			slog.Error("Failed to create search indexer", "error", err)
			os.Exit(1)
		}
		sinks = append(sinks, search.NewSink(indexer, store))
		checkers = append(checkers, indexer)
		slog.Info("Search indexing enabled", "index", cfg.SearchConfig.IndexName)
	}
	dispatcher := notify.NewDispatcher(cfg.NotifyConfig, sinks...)

	var locks kv.Store
	janitorOpts := []analysis.JanitorOption{}
	if cfg.RedisConfig != nil {
		redisStore, err := kv.NewRedisStore(ctx, *cfg.RedisConfig)
		if err != nil {
			slog.Error("Failed to connect to redis", "error", err)
			os.Exit(1)
		}
		defer redisStore.Close()
		locks = redisStore
		checkers = append(checkers, redisStore)
	} else {
		mem := kv.NewMemStore()
		locks = mem
		janitorOpts = append(janitorOpts, analysis.WithSweeper(mem.Sweep))
	}

	s := server.New(sCfg, checkers...).
		SetupMiddlewares().
		SetupErrorHandler().
		SetupHealthChecks("/health").
		SetupOpenApi("/swagger/*")

	s.Echo.GET("/", func(c echo.Context) error {
		return c.String(http.StatusOK, "Editorial Hub API is running")
	})

	engine := workflow.NewEngine(store, workflow.WithNotifier(dispatcher), workflow.WithBlobs(blobs))
	var fetchOpts []fetch.Option
	if cfg.FetchPrivateNetworks {
		slog.Warn("Linked attachments may point at private networks")
		fetchOpts = append(fetchOpts, fetch.WithPrivateNetworks())
	}
	fetcher := fetch.New(blobs, fetchOpts...)

	routerOpts := []router.Option{
		router.WithMessages(store),
		router.WithOriginality(originality.NewService(engine, store, fetcher)),
		router.WithBlobs(blobs),
	}

	if cfg.AnalysisEnabled {
		var orchOpts []analysis.Option
		if cfg.AnalysisConfig.ProfilesFile != "" {
			profiles, err := analysis.LoadProfilesFile(cfg.AnalysisConfig.ProfilesFile)
			if err != nil {
				slog.Error("Failed to load analysis profiles", "error", err)
				os.Exit(1)
			}
			orchOpts = append(orchOpts, analysis.WithProfiles(profiles))
		}

		orchestrator := analysis.NewOrchestrator(cfg.AnalysisConfig, engine, store, blobs, fetcher, locks, orchOpts...)
		routerOpts = append(routerOpts, router.WithAnalyzer(orchestrator))

		janitor := analysis.NewJanitor(cfg.AnalysisConfig, janitorOpts...)
		if err := janitor.Start(); err != nil {
			slog.Error("Failed to start scratch janitor", "error", err)
			os.Exit(1)
		}
		defer janitor.Stop()
		slog.Info("External analysis enabled", "binary", cfg.AnalysisConfig.Binary)
	} else {
		slog.Info("External analysis disabled")
	}

	router.New(s.Echo, engine, store, routerOpts...).Bind()

	s.OnShutdown(func(ctx context.Context) {
		if err := dispatcher.Close(ctx); err != nil {
			slog.Warn("Notification queue not drained", "error", err)
		}
	})

	go func() {
		<-s.ShutdownSignal()
		slog.Info("Shutdown started, cleaning up resources...")
	}()

	if err := s.Start(); err != nil {
		slog.Error("Failed to start server", "error", err)
		os.Exit(1)
	}
}
