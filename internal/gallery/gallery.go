// Package gallery ties ingestion, derivative serving and deletion together.
package gallery

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"photopipe/internal/derivative"
	"photopipe/internal/logger"
	"photopipe/internal/metadata"
	"photopipe/internal/models"
	"photopipe/internal/palette"
	"photopipe/internal/storage"
)

var (
	// ErrNotFound is the repository's miss, so errors.Is works across layers.
	ErrNotFound    = storage.ErrNotFound
	ErrUnsupported = errors.New("unsupported image")
	ErrNoTagger    = errors.New("no tagger configured")
)

type Repository interface {
	SaveImage(ctx context.Context, img *models.Image) error
	GetImage(ctx context.Context, id uuid.UUID) (*models.Image, error)
	ListImages(ctx context.Context) ([]models.Image, error)
	ListLocations(ctx context.Context) ([]models.Location, error)
	DeleteImage(ctx context.Context, id uuid.UUID) error
	UpdateTags(ctx context.Context, id uuid.UUID, tags []string) error
}

type Derivatives interface {
	FetchOrCreate(ctx context.Context, req derivative.Request) []byte
	Dir() string
}

type Publisher interface {
	PublishWarm(ctx context.Context, subjectID string) error
}

type Tagger interface {
	Tags(ctx context.Context, image []byte) []string
}

type Service struct {
	cfg       *models.Config
	repo      Repository
	cache     Derivatives
	extractor *metadata.Extractor
	publisher Publisher
	tagger    Tagger
	log       *logrus.Entry
	now       func() time.Time
}

type Option func(*Service)

// WithPublisher queues a warm-up for every ingested image.
func WithPublisher(p Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

// WithTagger attaches keyword tags at ingestion.
func WithTagger(t Tagger) Option {
	return func(s *Service) { s.tagger = t }
}

func NewService(cfg *models.Config, repo Repository, cache Derivatives, log logrus.FieldLogger, opts ...Option) *Service {
	s := &Service{
		cfg:       cfg,
		repo:      repo,
		cache:     cache,
		extractor: metadata.NewExtractor(log),
		log:       logger.Component(log, "gallery"),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ingest stores a new original, reads its metadata once and records it.
func (s *Service) Ingest(ctx context.Context, title, filename string, data []byte) (*models.Image, error) {
	const op = "gallery.Ingest"

	width, height, err := s.extractor.Dimensions(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %v", op, ErrUnsupported, err)
	}

	id := uuid.New()
	path := filepath.Join(s.cfg.StoragePath, "original", id.String()+strings.ToLower(filepath.Ext(filename)))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	img := &models.Image{
		ID:           id,
		Title:        title,
		OriginalPath: path,
		Width:        width,
		Height:       height,
		Tags:         []string{},
		Metadata:     s.extractor.Extract(data),
		CreatedAt:    s.now().UTC(),
	}
	img.Color = s.dominantColor(data)
	if s.tagger != nil {
		if tags := s.tagger.Tags(ctx, data); tags != nil {
			img.Tags = tags
		}
	}

	if err := s.repo.SaveImage(ctx, img); err != nil {
		_ = os.Remove(path)
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	log := s.log.WithField("subject_id", id.String())
	log.WithFields(logrus.Fields{
		"width":     width,
		"height":    height,
		"geotagged": img.Metadata.HasLocation(),
	}).Info("image ingested")
	if s.publisher != nil {
		if err := s.publisher.PublishWarm(ctx, id.String()); err != nil {
			log.WithError(err).Warn("warm-up not queued, previews will render on demand")
		}
	}
	return img, nil
}

func (s *Service) dominantColor(data []byte) string {
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return ""
	}
	c, err := palette.Dominant(img)
	if err != nil {
		s.log.WithError(err).Debug("no dominant colour")
		return ""
	}
	return c
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.Image, error) {
	img, err := s.repo.GetImage(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("gallery.Get: %w", err)
	}
	return img, nil
}

func (s *Service) List(ctx context.Context) ([]models.Image, error) {
	return s.repo.ListImages(ctx)
}

func (s *Service) Locations(ctx context.Context) ([]models.Location, error) {
	return s.repo.ListLocations(ctx)
}

// Derivative returns the bytes of id rendered at width in format. Widths
// above max_width are clamped. A nil result with a nil error means the
// image exists but no derivative could be produced.
func (s *Service) Derivative(ctx context.Context, id uuid.UUID, width int, format derivative.Format) ([]byte, error) {
	const op = "gallery.Derivative"

	if _, err := s.repo.GetImage(ctx, id); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if s.cfg.MaxWidth > 0 && width > s.cfg.MaxWidth {
		width = s.cfg.MaxWidth
	}
	return s.cache.FetchOrCreate(ctx, derivative.Request{SubjectID: id.String(), Width: width, Format: format}), nil
}

// DefaultFormat is the format used when a request does not name one.
func (s *Service) DefaultFormat() derivative.Format {
	f, err := derivative.ParseFormat(s.cfg.DefaultFormat)
	if err != nil {
		return derivative.WEBP
	}
	return f
}

// Warm renders the configured widths of subjectID in the default format.
func (s *Service) Warm(ctx context.Context, subjectID string) error {
	const op = "gallery.Warm"

	id, err := uuid.Parse(subjectID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if _, err := s.repo.GetImage(ctx, id); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	format := s.DefaultFormat()
	var failed int
	for _, w := range s.cfg.WarmWidths {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if s.cache.FetchOrCreate(ctx, derivative.Request{SubjectID: subjectID, Width: w, Format: format}) == nil {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%s: %d of %d widths failed", op, failed, len(s.cfg.WarmWidths))
	}
	return nil
}

// WarmAll warms every stored image. Failures are logged and skipped.
func (s *Service) WarmAll(ctx context.Context) error {
	images, err := s.repo.ListImages(ctx)
	if err != nil {
		return fmt.Errorf("gallery.WarmAll: %w", err)
	}
	for _, img := range images {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := s.Warm(ctx, img.ID.String()); err != nil {
			s.log.WithError(err).WithField("subject_id", img.ID.String()).Warn("warm-up failed")
		}
	}
	return nil
}

// Retag captions stored images and adds the keywords to their tags. Unless
// force is set, images that already have tags are skipped. A limit of zero
// or less processes every image. It returns how many images were tagged.
func (s *Service) Retag(ctx context.Context, force bool, limit int) (int, error) {
	const op = "gallery.Retag"

	if s.tagger == nil {
		return 0, fmt.Errorf("%s: %w", op, ErrNoTagger)
	}
	images, err := s.repo.ListImages(ctx)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	var processed int
	for _, img := range images {
		if limit > 0 && processed >= limit {
			break
		}
		if ctx.Err() != nil {
			return processed, ctx.Err()
		}
		if !force && len(img.Tags) > 0 {
			continue
		}
		log := s.log.WithField("subject_id", img.ID.String())

		data, err := os.ReadFile(img.OriginalPath)
		if err != nil {
			log.WithError(err).Warn("original unreadable, skipped")
			continue
		}
		processed++

		tags := s.tagger.Tags(ctx, data)
		if len(tags) == 0 {
			log.Info("no tags generated")
			continue
		}
		if err := s.repo.UpdateTags(ctx, img.ID, union(img.Tags, tags)); err != nil {
			log.WithError(err).Error("tags not saved")
			continue
		}
		log.WithField("tags", tags).Info("tags added")
	}
	return processed, nil
}

func union(a, b []string) []string {
	out := make([]string, 0, len(a)+len(b))
	seen := make(map[string]struct{}, len(a)+len(b))
	for _, list := range [][]string{a, b} {
		for _, t := range list {
			if _, ok := seen[t]; ok {
				continue
			}
			seen[t] = struct{}{}
			out = append(out, t)
		}
	}
	return out
}

// Delete removes the record, the original and every derivative of id.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	const op = "gallery.Delete"

	img, err := s.repo.GetImage(ctx, id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := s.repo.DeleteImage(ctx, id); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	log := s.log.WithField("subject_id", id.String())
	if err := os.Remove(img.OriginalPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.WithError(err).Warn("original not removed")
	}
	n, err := derivative.Purge(s.cache.Dir(), id.String())
	if err != nil {
		log.WithError(err).Warn("derivatives not fully purged")
	}
	log.WithField("purged", n).Info("image deleted")
	return nil
}
