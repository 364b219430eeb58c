// Command regenerate re-renders the derivatives of every stored image.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/sirupsen/logrus"

	"photopipe/internal/derivative"
	"photopipe/internal/logger"
	"photopipe/internal/models"
	"photopipe/internal/storage"
)

func parseWidths(s string) ([]int, error) {
	var widths []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		w, err := strconv.Atoi(part)
		if err != nil || w <= 0 {
			return nil, fmt.Errorf("invalid width %q", part)
		}
		widths = append(widths, w)
	}
	if len(widths) == 0 {
		return nil, fmt.Errorf("no widths given")
	}
	return widths, nil
}

func joinWidths(widths []int) string {
	parts := make([]string, len(widths))
	for i, w := range widths {
		parts[i] = strconv.Itoa(w)
	}
	return strings.Join(parts, ",")
}

func main() {
	var (
		cfgPath = flag.String("config", "config.yaml", "path to the service config")
		widthsF = flag.String("widths", joinWidths(models.DefaultWarmWidths), "comma separated widths to render")
		formatF = flag.String("format", "", "target format (webp, jpeg, png); defaults to default_format")
		clean   = flag.Bool("clean", false, "remove every cached derivative first")
	)
	flag.Parse()

	cfg, err := models.LoadConfig(*cfgPath)
	if err != nil {
		logrus.Fatalf("failed to load config: %v", err)
	}
	log := logger.New(cfg.LogLevel, cfg.LogFormat)

	widths, err := parseWidths(*widthsF)
	if err != nil {
		log.Fatal(err)
	}
	name := cfg.DefaultFormat
	if *formatF != "" {
		name = *formatF
	}
	format, err := derivative.ParseFormat(name)
	if err != nil {
		log.Fatal(err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	db, err := storage.NewStorage(ctx, cfg.DatabaseURL, log)
	if err != nil {
		log.Fatalf("failed to init storage: %v", err)
	}
	defer db.Close()

	cache := derivative.NewCache(cfg.PreviewDir, derivative.NewEngine(), db, log)
	if *clean {
		n, err := cache.Clear()
		if err != nil {
			log.WithError(err).Warn("clean incomplete")
		}
		log.WithField("removed", n).Info("derivative cache cleared")
	}

	images, err := db.ListImages(ctx)
	if err != nil {
		log.Fatalf("failed to list images: %v", err)
	}

	var rendered, failed int
	for _, img := range images {
		for _, w := range widths {
			if ctx.Err() != nil {
				log.Warn("interrupted")
				return
			}
			req := derivative.Request{SubjectID: img.ID.String(), Width: w, Format: format}
			if _, err := cache.Regenerate(ctx, req); err != nil {
				failed++
				log.WithError(err).WithFields(logrus.Fields{"subject_id": req.SubjectID, "width": w}).Warn("skipped")
				continue
			}
			rendered++
		}
	}
	log.WithFields(logrus.Fields{
		"images":   len(images),
		"rendered": rendered,
		"failed":   failed,
	}).Info("regeneration finished")
}
