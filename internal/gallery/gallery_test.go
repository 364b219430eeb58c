package gallery

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"photopipe/internal/derivative"
	"photopipe/internal/logger"
	"photopipe/internal/models"
)

// memRepo is an in-memory Repository that also serves originals to the
// derivative cache.
type memRepo struct {
	mu      sync.Mutex
	images  map[uuid.UUID]*models.Image
	saveErr error
}

func newMemRepo() *memRepo { return &memRepo{images: map[uuid.UUID]*models.Image{}} }

func (r *memRepo) SaveImage(_ context.Context, img *models.Image) error {
	if r.saveErr != nil {
		return r.saveErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *img
	r.images[img.ID] = &cp
	return nil
}

func (r *memRepo) GetImage(_ context.Context, id uuid.UUID) (*models.Image, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	img, ok := r.images[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *img
	return &cp, nil
}

func (r *memRepo) ListImages(context.Context) ([]models.Image, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []models.Image{}
	for _, img := range r.images {
		out = append(out, *img)
	}
	return out, nil
}

func (r *memRepo) ListLocations(context.Context) ([]models.Location, error) {
	return []models.Location{}, nil
}

func (r *memRepo) DeleteImage(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.images[id]; !ok {
		return ErrNotFound
	}
	delete(r.images, id)
	return nil
}

func (r *memRepo) UpdateTags(_ context.Context, id uuid.UUID, tags []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	img, ok := r.images[id]
	if !ok {
		return ErrNotFound
	}
	img.Tags = tags
	return nil
}

func (r *memRepo) Source(ctx context.Context, subjectID string) ([]byte, error) {
	id, err := uuid.Parse(subjectID)
	if err != nil {
		return nil, err
	}
	img, err := r.GetImage(ctx, id)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(img.OriginalPath)
}

type recordingPublisher struct {
	ids []string
	err error
}

func (p *recordingPublisher) PublishWarm(_ context.Context, id string) error {
	p.ids = append(p.ids, id)
	return p.err
}

type staticTagger []string

func (t staticTagger) Tags(context.Context, []byte) []string { return t }

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

type fixture struct {
	svc   *Service
	repo  *memRepo
	cache *derivative.Cache
	cfg   *models.Config
}

func newFixture(t *testing.T, opts ...Option) fixture {
	t.Helper()
	root := t.TempDir()
	cfg := &models.Config{
		StoragePath:   root,
		PreviewDir:    filepath.Join(root, "preview"),
		DefaultFormat: "webp",
		WarmWidths:    []int{50, 100},
		MaxWidth:      120,
	}
	repo := newMemRepo()
	cache := derivative.NewCache(cfg.PreviewDir, derivative.NewEngine(), repo, logger.Discard())
	return fixture{
		svc:   NewService(cfg, repo, cache, logger.Discard(), opts...),
		repo:  repo,
		cache: cache,
		cfg:   cfg,
	}
}

func TestIngest(t *testing.T) {
	pub := &recordingPublisher{}
	f := newFixture(t, WithPublisher(pub), WithTagger(staticTagger{"sunset", "beach"}))

	img, err := f.svc.Ingest(context.Background(), "Evening", "IMG_0001.PNG", pngBytes(t, 160, 90))
	require.NoError(t, err)

	assert.Equal(t, "Evening", img.Title)
	assert.Equal(t, 160, img.Width)
	assert.Equal(t, 90, img.Height)
	assert.Equal(t, []string{"sunset", "beach"}, img.Tags)
	assert.Regexp(t, `^#[0-9a-f]{6}$`, img.Color)
	assert.Equal(t, ".png", filepath.Ext(img.OriginalPath))
	assert.Equal(t, filepath.Join(f.cfg.StoragePath, "original"), filepath.Dir(img.OriginalPath))
	assert.FileExists(t, img.OriginalPath)
	assert.Equal(t, []string{img.ID.String()}, pub.ids)

	stored, err := f.repo.GetImage(context.Background(), img.ID)
	require.NoError(t, err)
	assert.Equal(t, img.OriginalPath, stored.OriginalPath)
}

func TestIngestLogsLocationPresence(t *testing.T) {
	log, hook := logtest.NewNullLogger()
	f := newFixture(t)
	svc := NewService(f.cfg, f.repo, f.cache, log)

	_, err := svc.Ingest(context.Background(), "", "plain.png", pngBytes(t, 40, 40))
	require.NoError(t, err)

	var ingested *logrus.Entry
	for _, e := range hook.AllEntries() {
		if e.Message == "image ingested" {
			ingested = e
		}
	}
	require.NotNil(t, ingested)
	assert.Equal(t, false, ingested.Data["geotagged"])
	assert.Equal(t, 40, ingested.Data["width"])
}

func TestIngestRejectsNonImages(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Ingest(context.Background(), "", "notes.txt", []byte("hello"))
	assert.ErrorIs(t, err, ErrUnsupported)

	entries, _ := os.ReadDir(filepath.Join(f.cfg.StoragePath, "original"))
	assert.Empty(t, entries)
}

func TestIngestSurvivesPublishFailureButNotSaveFailure(t *testing.T) {
	f := newFixture(t, WithPublisher(&recordingPublisher{err: errors.New("broker down")}))

	_, err := f.svc.Ingest(context.Background(), "", "a.png", pngBytes(t, 20, 20))
	require.NoError(t, err)

	f.repo.saveErr = errors.New("db down")
	_, err = f.svc.Ingest(context.Background(), "", "b.png", pngBytes(t, 20, 20))
	require.Error(t, err)

	entries, err := os.ReadDir(filepath.Join(f.cfg.StoragePath, "original"))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "original of a failed save must be removed")
}

func TestDerivativeClampsToMaxWidth(t *testing.T) {
	f := newFixture(t)
	img, err := f.svc.Ingest(context.Background(), "", "a.png", pngBytes(t, 200, 100))
	require.NoError(t, err)

	out, err := f.svc.Derivative(context.Background(), img.ID, 5000, derivative.PNG)
	require.NoError(t, err)
	require.NotEmpty(t, out)

	decoded, err := png.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, 120, decoded.Bounds().Dx())
	assert.FileExists(t, f.cache.Path(derivative.Request{SubjectID: img.ID.String(), Width: 120, Format: derivative.PNG}))
}

func TestDerivativeUnknownImage(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Derivative(context.Background(), uuid.New(), 100, derivative.WEBP)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestWarmAndDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	keep, err := f.svc.Ingest(ctx, "", "keep.png", pngBytes(t, 150, 100))
	require.NoError(t, err)
	gone, err := f.svc.Ingest(ctx, "", "gone.png", pngBytes(t, 150, 100))
	require.NoError(t, err)

	require.NoError(t, f.svc.WarmAll(ctx))

	names := func() []string {
		entries, err := os.ReadDir(f.cfg.PreviewDir)
		require.NoError(t, err)
		var out []string
		for _, e := range entries {
			out = append(out, e.Name())
		}
		sort.Strings(out)
		return out
	}
	assert.Len(t, names(), 4)

	require.NoError(t, f.svc.Delete(ctx, gone.ID))
	assert.NoFileExists(t, gone.OriginalPath)
	assert.FileExists(t, keep.OriginalPath)

	want := []string{keep.ID.String() + "_100.webp", keep.ID.String() + "_50.webp"}
	sort.Strings(want)
	assert.Equal(t, want, names())

	assert.ErrorIs(t, f.svc.Delete(ctx, gone.ID), ErrNotFound)
	assert.ErrorIs(t, f.svc.Warm(ctx, gone.ID.String()), ErrNotFound)
}

func TestWarmReportsFailures(t *testing.T) {
	f := newFixture(t)
	id := uuid.New()
	path := filepath.Join(t.TempDir(), "broken.png")
	require.NoError(t, os.WriteFile(path, []byte("\x89PNG\r\n\x1a\nbroken"), 0o644))
	require.NoError(t, f.repo.SaveImage(context.Background(), &models.Image{ID: id, OriginalPath: path}))

	err := f.svc.Warm(context.Background(), id.String())
	assert.ErrorContains(t, err, "2 of 2 widths failed")
}

func TestDefaultFormat(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, derivative.WEBP, f.svc.DefaultFormat())

	f.cfg.DefaultFormat = "jpg"
	assert.Equal(t, derivative.JPEG, f.svc.DefaultFormat())
}

func TestRetag(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tagged, err := f.svc.Ingest(ctx, "", "a.png", pngBytes(t, 30, 30))
	require.NoError(t, err)
	bare, err := f.svc.Ingest(ctx, "", "b.png", pngBytes(t, 30, 30))
	require.NoError(t, err)
	require.NoError(t, f.repo.UpdateTags(ctx, tagged.ID, []string{"harbour"}))

	_, err = f.svc.Retag(ctx, false, 0)
	assert.ErrorIs(t, err, ErrNoTagger)

	f.svc.tagger = staticTagger{"boat", "harbour"}

	n, err := f.svc.Retag(ctx, false, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	got, _ := f.repo.GetImage(ctx, bare.ID)
	assert.Equal(t, []string{"boat", "harbour"}, got.Tags)
	got, _ = f.repo.GetImage(ctx, tagged.ID)
	assert.Equal(t, []string{"harbour"}, got.Tags)

	n, err = f.svc.Retag(ctx, true, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = f.svc.Retag(ctx, true, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	got, _ = f.repo.GetImage(ctx, tagged.ID)
	assert.Equal(t, []string{"harbour", "boat"}, got.Tags)
}
