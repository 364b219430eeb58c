// Package storage keeps image records in Postgres and hands out original
// bytes to the derivative cache.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"photopipe/internal/logger"
	"photopipe/internal/models"
)

var ErrNotFound = errors.New("image not found")

type Storage struct {
	pool *pgxpool.Pool
	db   *sql.DB
	log  *logrus.Entry
}

func NewStorage(ctx context.Context, dsn string, log logrus.FieldLogger) (*Storage, error) {
	const op = "storage.NewStorage"

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s := newStorageFromDB(stdlib.OpenDBFromPool(pool), log)
	s.pool = pool
	if err := runMigrations(s.db, s.log); err != nil {
		s.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return s, nil
}

func newStorageFromDB(db *sql.DB, log logrus.FieldLogger) *Storage {
	return &Storage{db: db, log: logger.Component(log, "storage")}
}

func (s *Storage) Close() {
	s.db.Close()
	if s.pool != nil {
		s.pool.Close()
	}
}

const imageColumns = `id, title, original_path, width, height, tags, dominant_color,
	camera_model, lens_model, iso_speed, aperture_f_number, shutter_speed, focal_length,
	artist, copyright, capture_date, latitude, longitude, altitude, created_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanImage(row scanner) (*models.Image, error) {
	var (
		img models.Image
		m   = &img.Metadata
	)
	err := row.Scan(&img.ID, &img.Title, &img.OriginalPath, &img.Width, &img.Height, pq.Array(&img.Tags), &img.Color,
		&m.CameraModel, &m.LensModel, &m.ISOSpeed, &m.Aperture, &m.ShutterSpeed, &m.FocalLength,
		&m.Artist, &m.Copyright, &m.CaptureDate, &m.Latitude, &m.Longitude, &m.Altitude, &img.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &img, nil
}

func (s *Storage) SaveImage(ctx context.Context, img *models.Image) error {
	const op = "storage.SaveImage"

	tags := img.Tags
	if tags == nil {
		tags = []string{}
	}
	m := img.Metadata
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO images (`+imageColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)`,
		img.ID, img.Title, img.OriginalPath, img.Width, img.Height, pq.Array(tags), img.Color,
		m.CameraModel, m.LensModel, m.ISOSpeed, m.Aperture, m.ShutterSpeed, m.FocalLength,
		m.Artist, m.Copyright, m.CaptureDate, m.Latitude, m.Longitude, m.Altitude, img.CreatedAt)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (s *Storage) GetImage(ctx context.Context, id uuid.UUID) (*models.Image, error) {
	const op = "storage.GetImage"

	img, err := scanImage(s.db.QueryRowContext(ctx,
		`SELECT `+imageColumns+` FROM images WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return img, nil
}

// ListImages returns every image, newest first.
func (s *Storage) ListImages(ctx context.Context) ([]models.Image, error) {
	const op = "storage.ListImages"

	rows, err := s.db.QueryContext(ctx, `SELECT `+imageColumns+` FROM images ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	images := []models.Image{}
	for rows.Next() {
		img, err := scanImage(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		images = append(images, *img)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return images, nil
}

// ListLocations returns images that carry a usable GPS fix. The 0,0
// placeholder is excluded.
func (s *Storage) ListLocations(ctx context.Context) ([]models.Location, error) {
	const op = "storage.ListLocations"

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, latitude, longitude FROM images
		 WHERE latitude IS NOT NULL AND longitude IS NOT NULL
		   AND NOT (latitude = 0 AND longitude = 0)
		 ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	locations := []models.Location{}
	for rows.Next() {
		var l models.Location
		if err := rows.Scan(&l.ID, &l.Title, &l.Latitude, &l.Longitude); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		locations = append(locations, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return locations, nil
}

func (s *Storage) UpdateTags(ctx context.Context, id uuid.UUID, tags []string) error {
	const op = "storage.UpdateTags"

	if tags == nil {
		tags = []string{}
	}
	res, err := s.db.ExecContext(ctx, `UPDATE images SET tags = $2 WHERE id = $1`, id, pq.Array(tags))
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return affected(op, res)
}

func (s *Storage) DeleteImage(ctx context.Context, id uuid.UUID) error {
	const op = "storage.DeleteImage"

	res, err := s.db.ExecContext(ctx, `DELETE FROM images WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return affected(op, res)
}

// Source reads the original file of an image. The file is opened read-only.
func (s *Storage) Source(ctx context.Context, subjectID string) ([]byte, error) {
	const op = "storage.Source"

	id, err := uuid.Parse(subjectID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	img, err := s.GetImage(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	data, err := os.ReadFile(img.OriginalPath)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return data, nil
}

func affected(op string, res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return nil
}
