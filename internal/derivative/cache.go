package derivative

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"photopipe/internal/logger"
)

// SourceStore hands out the original bytes of a subject. Implementations
// must not let the pipeline modify the original.
type SourceStore interface {
	Source(ctx context.Context, subjectID string) ([]byte, error)
}

// Cache maps (subject, width, format) to a file under dir and renders the
// file on first request. Files are never invalidated by the cache itself;
// see Purge.
type Cache struct {
	dir     string
	engine  Generator
	sources SourceStore
	group   singleflight.Group
	log     *logrus.Entry
}

func NewCache(dir string, engine Generator, sources SourceStore, log logrus.FieldLogger) *Cache {
	return &Cache{
		dir:     dir,
		engine:  engine,
		sources: sources,
		log:     logger.Component(log, "derivative-cache"),
	}
}

func (c *Cache) Dir() string { return c.dir }

// Path is {dir}/{subject_id}_{width}.{ext}.
func (c *Cache) Path(req Request) string {
	return filepath.Join(c.dir, req.FileName())
}

// FetchOrCreate returns the derivative bytes for req, rendering and storing
// them on a miss. Any failure is logged and reported as nil; callers treat
// nil as "no image".
func (c *Cache) FetchOrCreate(ctx context.Context, req Request) []byte {
	log := c.log.WithFields(logrus.Fields{
		"subject_id": req.SubjectID,
		"width":      req.Width,
		"format":     req.Format.String(),
	})

	if err := req.Validate(); err != nil {
		log.WithError(err).Warn("rejected derivative request")
		return nil
	}

	path := c.Path(req)
	if data, ok := c.readCached(path, log); ok {
		return data
	}

	// The flight is shared with other callers, so it must outlive the
	// cancellation of whichever request happened to start it.
	v, err, _ := c.group.Do(path, func() (any, error) {
		// A concurrent caller may have finished while we were waiting.
		if data, ok := c.readCached(path, log); ok {
			return data, nil
		}
		return c.build(context.WithoutCancel(ctx), req, path)
	})
	if err != nil {
		log.WithError(err).Error("no derivative available")
		return nil
	}
	return v.([]byte)
}

// Regenerate renders req again and replaces any cached file. It never joins
// a FetchOrCreate flight, which could hand back the stale file.
func (c *Cache) Regenerate(ctx context.Context, req Request) ([]byte, error) {
	const op = "derivative.Regenerate"

	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	path := c.Path(req)
	v, err, _ := c.group.Do("regen:"+path, func() (any, error) {
		return c.build(context.WithoutCancel(ctx), req, path)
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return v.([]byte), nil
}

// Clear removes every cached derivative and returns how many were deleted.
func (c *Cache) Clear() (int, error) {
	return sweep(c.dir, "*")
}

func (c *Cache) readCached(path string, log *logrus.Entry) ([]byte, bool) {
	data, err := os.ReadFile(path)
	switch {
	case err == nil && len(data) > 0:
		return data, true
	case err != nil && !errors.Is(err, fs.ErrNotExist):
		log.WithError(err).WithField("path", path).Warn("cached derivative unreadable, regenerating")
	}
	return nil, false
}

func (c *Cache) build(ctx context.Context, req Request, path string) ([]byte, error) {
	const op = "derivative.build"

	src, err := c.sources.Source(ctx, req.SubjectID)
	if err != nil {
		return nil, fmt.Errorf("%s: load source: %w", op, err)
	}
	out, err := c.engine.Generate(src, req.Width, req.Format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := writeAtomic(path, out); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	c.log.WithFields(logrus.Fields{
		"subject_id": req.SubjectID,
		"width":      req.Width,
		"format":     req.Format.String(),
		"bytes":      len(out),
	}).Info("derivative generated")
	return out, nil
}
