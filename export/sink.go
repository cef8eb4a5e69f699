package export

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	"github.com/disintegration/imaging"

	"github.com/soocke/scrollshot-go/domain/frame"
	"github.com/soocke/scrollshot-go/domain/workflow"
)

const defaultJPEGQuality = 75

var ErrNilFrame = errors.New("export: nil frame")

// FileSink writes finalized captures to disk. Lossy saves JPEG at the
// configured quality, lossless saves PNG.
type FileSink struct {
	dir     string
	quality int
	logger  *slog.Logger
}

// NewFileSink builds a sink writing into dir. An empty dir falls back to the
// user's pictures directory.
func NewFileSink(dir string, jpegQuality int, logger *slog.Logger) *FileSink {
	if dir == "" {
		dir = defaultDir()
	}
	if jpegQuality <= 0 || jpegQuality > 100 {
		jpegQuality = defaultJPEGQuality
	}
	return &FileSink{dir: dir, quality: jpegQuality, logger: logger}
}

func defaultDir() string {
	if xdg.UserDirs.Pictures != "" {
		return xdg.UserDirs.Pictures
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}

// Save writes f under a timestamped name and returns the file path.
func (s *FileSink) Save(f *frame.Frame, q workflow.Quality) (string, error) {
	if f == nil || f.Img == nil {
		return "", ErrNilFrame
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("export: create output dir: %w", err)
	}
	stamp := time.Now().Format("20060102-150405")
	var path string
	var err error
	switch q {
	case workflow.QualityLossless:
		path = filepath.Join(s.dir, fmt.Sprintf("scrollshot-%s.png", stamp))
		err = imaging.Save(f.Img, path)
	default:
		path = filepath.Join(s.dir, fmt.Sprintf("scrollshot-%s.jpg", stamp))
		err = imaging.Save(f.Img, path, imaging.JPEGQuality(s.quality))
	}
	if err != nil {
		return "", fmt.Errorf("export: save %s: %w", path, err)
	}
	if s.logger != nil {
		s.logger.Info("export.saved", "path", path, "quality", q.String(), "height_pts", f.Height)
	}
	return path, nil
}
