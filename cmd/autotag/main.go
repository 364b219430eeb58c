// Command autotag captions stored images and adds keyword tags.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"photopipe/internal/derivative"
	"photopipe/internal/gallery"
	"photopipe/internal/logger"
	"photopipe/internal/models"
	"photopipe/internal/storage"
	"photopipe/internal/tagging"
)

func main() {
	var (
		cfgPath = flag.String("config", "config.yaml", "path to the service config")
		force   = flag.Bool("force", false, "retag images that already have tags")
		limit   = flag.Int("limit", 0, "maximum number of images to process (0 = all)")
	)
	flag.Parse()

	cfg, err := models.LoadConfig(*cfgPath)
	if err != nil {
		logrus.Fatalf("failed to load config: %v", err)
	}
	log := logger.New(cfg.LogLevel, cfg.LogFormat)
	if cfg.Tagging.Endpoint == "" {
		log.Fatal("tagging.endpoint is not configured")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	db, err := storage.NewStorage(ctx, cfg.DatabaseURL, log)
	if err != nil {
		log.Fatalf("failed to init storage: %v", err)
	}
	defer db.Close()

	tagger := tagging.NewService(tagging.HTTPLoader(cfg.Tagging.Endpoint, cfg.Tagging.Timeout), log)
	if err := tagger.WarmUp(ctx); err != nil {
		log.Fatalf("captioning model unavailable: %v", err)
	}

	cache := derivative.NewCache(cfg.PreviewDir, derivative.NewEngine(), db, log)
	svc := gallery.NewService(cfg, db, cache, log, gallery.WithTagger(tagger))

	n, err := svc.Retag(ctx, *force, *limit)
	if err != nil {
		log.Fatalf("autotag failed: %v", err)
	}
	log.WithFields(logrus.Fields{"processed": n, "force": *force}).Info("autotag finished")
}
