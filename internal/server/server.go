package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"photopipe/internal/derivative"
	"photopipe/internal/gallery"
	"photopipe/internal/logger"
	"photopipe/internal/models"
)

// maxUpload bounds the size of an uploaded original.
const maxUpload = 64 << 20

const immutableCache = "public, max-age=31536000, immutable"

type Gallery interface {
	Ingest(ctx context.Context, title, filename string, data []byte) (*models.Image, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Image, error)
	List(ctx context.Context) ([]models.Image, error)
	Locations(ctx context.Context) ([]models.Location, error)
	Derivative(ctx context.Context, id uuid.UUID, width int, format derivative.Format) ([]byte, error)
	DefaultFormat() derivative.Format
	Delete(ctx context.Context, id uuid.UUID) error
}

type Server struct {
	cfg     *models.Config
	router  *gin.Engine
	http    *http.Server
	gallery Gallery
	log     *logrus.Entry
}

func NewServer(cfg *models.Config, g Gallery, log logrus.FieldLogger) *Server {
	r := gin.New()
	s := &Server{cfg: cfg, router: r, gallery: g, log: logger.Component(log, "http")}
	r.Use(gin.Recovery(), s.requestLogger())

	r.POST("/upload", s.handleUpload)
	r.GET("/images", s.handleListImages)
	r.GET("/images/:id", s.handleGetImage)
	r.GET("/images/:id/width/:width", s.handleDerivative)
	r.DELETE("/images/:id", s.handleDeleteImage)
	r.GET("/locations", s.handleLocations)

	s.http = &http.Server{Addr: cfg.ServerAddr, Handler: r}
	return s
}

func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) Start() error {
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.WithFields(logrus.Fields{
			"method":   c.Request.Method,
			"path":     c.Request.URL.Path,
			"status":   c.Writer.Status(),
			"duration": time.Since(start).String(),
		}).Debug("request")
	}
}

func (s *Server) handleUpload(c *gin.Context) {
	const op = "server.handleUpload"

	file, err := c.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if file.Size > maxUpload {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "image too large"})
		return
	}

	src, err := file.Open()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("%s: %v", op, err)})
		return
	}
	defer src.Close()

	data, err := io.ReadAll(io.LimitReader(src, maxUpload))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("%s: %v", op, err)})
		return
	}

	img, err := s.gallery.Ingest(c.Request.Context(), c.PostForm("title"), file.Filename, data)
	if errors.Is(err, gallery.ErrUnsupported) {
		c.JSON(http.StatusUnsupportedMediaType, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		s.log.WithError(err).Error("upload failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("%s: %v", op, err)})
		return
	}

	c.JSON(http.StatusCreated, img)
}

func (s *Server) handleListImages(c *gin.Context) {
	images, err := s.gallery.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, images)
}

func (s *Server) handleGetImage(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	img, err := s.gallery.Get(c.Request.Context(), id)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, img)
}

func (s *Server) handleDerivative(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	width, err := strconv.Atoi(c.Param("width"))
	if err != nil || width <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "width must be a positive integer"})
		return
	}
	format := s.gallery.DefaultFormat()
	if q := c.Query("format"); q != "" {
		if format, err = derivative.ParseFormat(q); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	data, err := s.gallery.Derivative(c.Request.Context(), id, width, format)
	if err != nil {
		s.fail(c, err)
		return
	}
	if len(data) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "no derivative available"})
		return
	}
	c.Header("Cache-Control", immutableCache)
	c.Data(http.StatusOK, format.ContentType(), data)
}

func (s *Server) handleDeleteImage(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if err := s.gallery.Delete(c.Request.Context(), id); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleLocations(c *gin.Context) {
	locations, err := s.gallery.Locations(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, locations)
}

func parseID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid image id"})
		return uuid.Nil, false
	}
	return id, true
}

func (s *Server) fail(c *gin.Context, err error) {
	if errors.Is(err, gallery.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "image not found"})
		return
	}
	s.log.WithError(err).WithField("path", c.Request.URL.Path).Error("request failed")
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}
