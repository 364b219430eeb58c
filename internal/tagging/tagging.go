// Package tagging derives keyword tags for a photograph from a caption
// produced by an external image-captioning model.
package tagging

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"photopipe/internal/logger"
)

var ErrDisabled = errors.New("tagging disabled")

// Captioner describes an image in one sentence.
type Captioner interface {
	Caption(ctx context.Context, image []byte) (string, error)
}

// Loader builds a Captioner. It may be slow; Service calls it at most once
// per successful load.
type Loader func(ctx context.Context) (Captioner, error)

// Service owns the captioning model. A failed load is retried on the next
// call, a successful one is kept for the life of the Service.
type Service struct {
	loader Loader
	log    *logrus.Entry

	mu        sync.Mutex
	captioner Captioner
}

// NewService returns a Service backed by loader. A nil loader disables
// tagging.
func NewService(loader Loader, log logrus.FieldLogger) *Service {
	return &Service{loader: loader, log: logger.Component(log, "tagging")}
}

func (s *Service) Enabled() bool { return s != nil && s.loader != nil }

// WarmUp loads the model ahead of the first request.
func (s *Service) WarmUp(ctx context.Context) error {
	_, err := s.Get(ctx)
	return err
}

func (s *Service) Get(ctx context.Context) (Captioner, error) {
	const op = "tagging.Get"

	if !s.Enabled() {
		return nil, ErrDisabled
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.captioner != nil {
		return s.captioner, nil
	}
	s.log.Info("loading captioning model")
	c, err := s.loader(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if c == nil {
		return nil, fmt.Errorf("%s: loader returned no captioner", op)
	}
	s.captioner = c
	s.log.Info("captioning model loaded")
	return c, nil
}

// Tags captions image and reduces the caption to keywords. Failures are
// logged and yield no tags.
func (s *Service) Tags(ctx context.Context, image []byte) []string {
	c, err := s.Get(ctx)
	if err != nil {
		if !errors.Is(err, ErrDisabled) {
			s.log.WithError(err).Error("captioning model unavailable")
		}
		return nil
	}
	caption, err := c.Caption(ctx, image)
	if err != nil {
		s.log.WithError(err).Error("caption failed")
		return nil
	}
	s.log.WithField("caption", caption).Debug("caption generated")
	return Keywords(caption)
}

var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "the": {}, "in": {}, "on": {}, "at": {}, "with": {}, "and": {}, "of": {},
	"is": {}, "are": {}, "sitting": {}, "standing": {}, "looking": {}, "walking": {},
	"flying": {}, "background": {}, "foreground": {}, "photo": {}, "picture": {}, "image": {},
	"view": {}, "large": {}, "small": {}, "close": {}, "up": {}, "close-up": {}, "next": {},
	"to": {}, "by": {}, "near": {}, "front": {}, "shot": {}, "full": {}, "frame": {},
}

// Keywords lower-cases caption, strips periods and commas, and keeps the
// words longer than two letters that are not stopwords, in first-seen order.
func Keywords(caption string) []string {
	caption = strings.NewReplacer(".", "", ",", "").Replace(strings.ToLower(caption))

	seen := make(map[string]struct{})
	tags := []string{}
	for _, w := range strings.Fields(caption) {
		if len(w) <= 2 {
			continue
		}
		if _, stop := stopwords[w]; stop {
			continue
		}
		if _, dup := seen[w]; dup {
			continue
		}
		seen[w] = struct{}{}
		tags = append(tags, w)
	}
	return tags
}
