package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"civilsite-backend-go/internal/cache"
	"civilsite-backend-go/internal/config"
	"civilsite-backend-go/internal/content"
	"civilsite-backend-go/internal/db"
	httpapi "civilsite-backend-go/internal/http"
	"civilsite-backend-go/internal/logging"
	"civilsite-backend-go/internal/media"
	"civilsite-backend-go/internal/migrations"
	"civilsite-backend-go/internal/services"
	"civilsite-backend-go/internal/site"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

const visitDaysKept = 30

func main() {
	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config")
	}

	cleanupLogs, err := logging.Setup(logging.Options{
		Dir:           cfg.LogDir,
		Level:         cfg.LogLevel,
		RetentionDays: cfg.LogRetentionDays,
		Development:   cfg.IsDevelopment(),
	})
	if err != nil {
		log.Error().Err(err).Msg("file logging disabled")
	} else {
		defer cleanupLogs()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	database, err := db.Open(cfg.DBDriver, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.DBDriver).Msg("db")
	}
	defer database.Close()
	if err := migrations.Apply(ctx, database); err != nil {
		log.Fatal().Err(err).Msg("migrations")
	}

	store := content.NewStore(database, cfg.TxTimeout())
	if err := store.Seed(ctx, cfg.SeedFile); err != nil {
		log.Fatal().Err(err).Str("file", cfg.SeedFile).Msg("seed")
	}
	tokens := services.NewTokenService(cfg.JWTSecret, cfg.JWTIssuer, cfg.TokenTTL())
	if err := services.EnsureBootstrapAdmin(ctx, database, tokens, cfg.AdminUsername, cfg.AdminPassword); err != nil {
		log.Fatal().Err(err).Msg("bootstrap admin")
	}

	pages, err := cache.New(cfg.RedisURL, cfg.CachePrefix, cfg.CacheTTL())
	if err != nil {
		log.Warn().Err(err).Msg("redis unavailable, using in-memory page cache")
		pages = cache.NewMemory(cfg.CacheTTL())
	}
	defer pages.Close()

	renderer, err := site.NewRenderer(store, pages, cfg.SiteName)
	if err != nil {
		log.Fatal().Err(err).Msg("templates")
	}

	images, err := newImageUploader(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("image storage")
	}

	visits := services.NewVisitTracker(database, cfg.VisitUniqueMode, cfg.JWTSecret, cfg.TxTimeout())
	pruner, err := services.StartVisitPruner(visits, visitDaysKept)
	if err != nil {
		log.Fatal().Err(err).Msg("visit pruner")
	}
	defer pruner.Stop()

	hub := services.NewDashboardHub()
	go hub.Run(ctx)
	go hub.SampleSystem(ctx, time.Duration(cfg.MetricsSampleSeconds)*time.Second, cfg.MetricsDiskPath)

	server := httpapi.NewServer(database, cfg, httpapi.Deps{
		Store:  store,
		Visits: visits,
		Hub:    hub,
		Site:   renderer,
		Images: images,
	})

	addr := ":" + cfg.Port
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", addr).Str("driver", cfg.DBDriver).Msg("listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGTERM, syscall.SIGINT)
	<-stop
	cancel()
	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	_ = httpServer.Shutdown(ctxShutdown)
	log.Info().Msg("shutdown complete")
}

// newImageUploader stores images in the object store when credentials are
// configured and under MEDIA_DIR otherwise.
func newImageUploader(ctx context.Context, cfg config.Config) (*media.Uploader, error) {
	processor := media.NewProcessor(cfg.ImageMaxBytes, cfg.ImageMaxWidth)
	if !cfg.StorageEnabled() {
		disk, err := media.NewDiskStorage(cfg.MediaDir, "/media")
		if err != nil {
			return nil, err
		}
		log.Info().Str("dir", cfg.MediaDir).Msg("storing images on local disk")
		return media.NewUploader(processor, disk), nil
	}
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	remote, err := media.NewMinioStorage(connectCtx, media.MinioOptions{
		Endpoint:  cfg.StorageEndpoint,
		AccessKey: cfg.StorageAccessKey,
		SecretKey: cfg.StorageSecretKey,
		Bucket:    cfg.StorageBucket,
		UseSSL:    cfg.StorageUseSSL,
		PublicURL: cfg.StoragePublicURL,
	})
	if err != nil {
		return nil, err
	}
	return media.NewUploader(processor, remote), nil
}
