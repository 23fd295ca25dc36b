package main

import (
	"context"
	"log"
	"time"

	"github.com/savefuksd/forgeci/internal"
	"github.com/savefuksd/forgeci/internal/handler"
	"github.com/savefuksd/forgeci/internal/security"
	"github.com/savefuksd/forgeci/internal/service"
	"github.com/savefuksd/forgeci/internal/settings"
	"github.com/savefuksd/forgeci/internal/store"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	_ "modernc.org/sqlite"
)

func main() {
	settings.ReadDotenv(internal.DotEnvPath)
	settings.Settings = settings.NewSettings()
	internal.InitializeConfiguration()
	aesKey := security.NewKey()

	rdb := store.InitDatabase(true)
	defer rdb.Close()
	rwdb := store.InitDatabase(false)
	defer rwdb.Close()
	store.RunMigrations(rwdb, internal.MigrationsDir)

	cacheScheduler := service.NewScheduler()
	defer cacheScheduler.Shutdown()
	pipelineScheduler := service.NewScheduler()
	defer pipelineScheduler.Shutdown()

	encrypter := security.NewAESEncrypter(aesKey)
	runnerSvc := service.NewRunnerService(store.NewRunnerSQLiteStore(rdb, rwdb), encrypter)
	apiKeySvc := service.NewAPIKeyService(
		store.NewAPIKeySQLiteStore(rdb, rwdb),
		service.NewUUIDGen(),
	)
	cacheSvc := service.NewCacheService(store.NewCacheSQLiteStore(rdb, rwdb))
	pipelineSvc := service.NewPipelineService(
		store.NewPipelineSQLiteStore(rdb, rwdb),
		store.NewRunSQLiteStore(rdb, rwdb),
		cacheSvc,
		pipelineScheduler,
		encrypter,
		internal.Config.ArtifactRoot,
	)

	if err := pipelineSvc.InitializeRunQueues(context.Background()); err != nil {
		log.Fatal(err)
	}
	defer pipelineSvc.ShutdownAll()

	if err := pipelineSvc.InitializeSchedules(context.Background()); err != nil {
		log.Fatal(err)
	}
	pipelineScheduler.Start()

	cacheSvc.ScheduleRetentionSweep(
		cacheScheduler,
		time.Duration(internal.Config.CacheRetentionDays),
	)
	cacheScheduler.Start()

	e := setupEcho()
	api := e.Group("/api")

	handler.SetupPipelineRoutes(api, pipelineSvc, apiKeySvc)
	protected := api.Group("", handler.APIKeyAuth(apiKeySvc))
	handler.SetupRunnerRoutes(protected, runnerSvc)
	handler.SetupAPIKeyRoutes(protected, apiKeySvc)
	handler.SetupCacheRoutes(protected, cacheSvc)

	internal.GracefulShutdown(e, settings.Settings.Port)
}

func setupEcho() *echo.Echo {
	e := echo.New()
	e.HTTPErrorHandler = handler.ErrorHandler
	e.Use(
		middleware.CORSWithConfig(internal.GetCORSConfig()),
		middleware.RateLimiterWithConfig(internal.GetRateLimiterConfig()),
	)
	return e
}
