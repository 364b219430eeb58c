package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"photopipe/internal/broker"
	"photopipe/internal/derivative"
	"photopipe/internal/gallery"
	"photopipe/internal/logger"
	"photopipe/internal/models"
	"photopipe/internal/scheduler"
	"photopipe/internal/server"
	"photopipe/internal/storage"
	"photopipe/internal/tagging"
)

func configPath() string {
	if p := os.Getenv("PHOTOPIPE_CONFIG"); p != "" {
		return p
	}
	return "config.yaml"
}

func main() {
	cfg, err := models.LoadConfig(configPath())
	if err != nil {
		logrus.Fatalf("failed to load config: %v", err)
	}
	log := logger.New(cfg.LogLevel, cfg.LogFormat)
	gin.SetMode(gin.ReleaseMode)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := storage.NewStorage(ctx, cfg.DatabaseURL, log)
	if err != nil {
		log.Fatalf("failed to init storage: %v", err)
	}
	defer db.Close()

	cache := derivative.NewCache(cfg.PreviewDir, derivative.NewEngine(), db, log)

	var opts []gallery.Option
	if cfg.Tagging.Enabled {
		tagger := tagging.NewService(tagging.HTTPLoader(cfg.Tagging.Endpoint, cfg.Tagging.Timeout), log)
		go func() {
			if err := tagger.WarmUp(ctx); err != nil {
				log.WithError(err).Warn("captioning model not ready, will retry on first upload")
			}
		}()
		opts = append(opts, gallery.WithTagger(tagger))
	}

	var consumer *broker.Consumer
	if cfg.KafkaBroker != "" && cfg.KafkaTopic != "" {
		producer := broker.NewPublisher(cfg.KafkaBroker, cfg.KafkaTopic)
		defer producer.Close()
		opts = append(opts, gallery.WithPublisher(producer))
		consumer = broker.NewConsumer(cfg.KafkaBroker, cfg.KafkaTopic, cfg.KafkaGroup, log)
	}

	svc := gallery.NewService(cfg, db, cache, log, opts...)

	if consumer != nil {
		go func() {
			defer consumer.Close()
			if err := consumer.Run(ctx, svc.Warm); err != nil {
				log.WithError(err).Error("warm-up consumer stopped")
			}
		}()
	}

	cron := scheduler.New(log)
	if cfg.WarmSchedule != "" {
		if err := cron.Add("warm-all", cfg.WarmSchedule, svc.WarmAll); err != nil {
			log.Fatalf("failed to schedule warm-up: %v", err)
		}
	}
	cron.Start()

	srv := server.NewServer(cfg, svc, log)
	go func() {
		log.WithField("addr", cfg.ServerAddr).Info("http server listening")
		if err := srv.Start(); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	// Graceful shutdown
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info("shutting down")

	shutdownCtx, stop := context.WithTimeout(context.Background(), 15*time.Second)
	defer stop()
	if err := srv.Stop(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		log.WithError(err).Error("http shutdown")
	}
	cancel()
	cron.Stop()
}
