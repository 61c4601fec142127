package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/cors"

	"agora/internal/app"
	"agora/internal/archive"
	"agora/internal/config"
	"agora/internal/counter"
	"agora/internal/email"
	"agora/internal/generate"
	"agora/internal/scheduler"
	"agora/internal/search"
	"agora/internal/store"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	ctx := context.Background()

	st, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}
	defer st.Close()

	if err := st.Migrate(ctx); err != nil {
		log.Fatalf("migrations failed: %v", err)
	}

	// Counters follow forum traffic, so Redis holds them when available
	// and the relational store covers the single-node case.
	var counters counter.Store = st
	if strings.TrimSpace(cfg.RedisURL) != "" {
		redisCounters, err := counter.NewRedisStore(cfg.RedisURL)
		if err != nil {
			log.Fatalf("redis connection failed: %v", err)
		}
		defer redisCounters.Close()
		counters = redisCounters
		log.Printf("using redis for activity counters")
	}

	var meiliClient *search.Meili
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meiliClient = search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey)
		defer meiliClient.Close()
	}
	searchSvc := search.NewService(meiliClient, search.NewStoreFallback(st))
	if meiliClient != nil {
		// Catch the index up with moderation decisions made while it
		// was unreachable.
		if posts, err := st.SearchPosts(ctx, "", 500); err != nil {
			log.Printf("WARNING: reindex scan failed: %v", err)
		} else {
			searchSvc.Reindex(posts)
		}
	}

	var generator *generate.Client
	if strings.TrimSpace(cfg.GenAPIKey) != "" {
		generator = generate.NewClient(cfg.GenProvider, cfg.GenModel, cfg.GenAPIKey, cfg.GenBaseURL)
	}

	var mailSvc *email.Service
	if strings.TrimSpace(cfg.SMTPHost) != "" {
		mailSvc = email.NewService(email.Config{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
			FromName: cfg.SMTPFromName,
		})
	}

	var archiveSvc *archive.Service
	if strings.TrimSpace(cfg.ArchiveDir) != "" {
		archiveSvc, err = buildArchive(ctx, cfg)
		if err != nil {
			log.Fatalf("archive setup failed: %v", err)
		}
	}

	evaluator := scheduler.New(st, counters)
	service := app.New(cfg, st, counters, evaluator, generator, searchSvc, mailSvc, archiveSvc)
	if err := service.Bootstrap(ctx); err != nil {
		log.Printf("WARNING: bootstrap error (will retry on next restart): %v", err)
	}

	corsHandler := cors.New(cors.Options{
		AllowedOrigins: strings.Split(cfg.CORSOrigin, ","),
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID"},
	})

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           corsHandler.Handler(app.NewHTTPServer(service).Handler()),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("Agora API listening on %s", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}

// buildArchive assembles the PDF sink with its optional object-storage
// mirror and git transcript log.
func buildArchive(ctx context.Context, cfg config.Config) (*archive.Service, error) {
	var uploader *archive.Uploader
	if strings.TrimSpace(cfg.S3Endpoint) != "" && strings.TrimSpace(cfg.S3Bucket) != "" {
		up, err := archive.NewUploader(cfg.S3Endpoint, cfg.S3AccessKey, cfg.S3SecretKey, cfg.S3Bucket, cfg.S3UseSSL)
		if err != nil {
			return nil, err
		}
		if err := up.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		uploader = up
	}

	history, err := archive.NewHistory(filepath.Join(cfg.ArchiveDir, "history"))
	if err != nil {
		return nil, err
	}

	return archive.NewService(filepath.Join(cfg.ArchiveDir, "pdf"), uploader, history)
}
