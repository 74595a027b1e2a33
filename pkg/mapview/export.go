package mapview

import (
	"errors"
	"fmt"
	"image/png"
	"os"
	"path/filepath"
	"time"

	"github.com/1F47E/geo-media-map/internal/metrics"
	"github.com/1F47E/geo-media-map/pkg/surface"
)

// ErrExportFailed wraps every snapshot export failure
var ErrExportFailed = errors.New("snapshot export failed")

// SnapshotFilename names an export taken at now, by UTC date
func SnapshotFilename(now time.Time) string {
	return fmt.Sprintf("map-screenshot-%s.png", now.UTC().Format("2006-01-02"))
}

// Export writes the current frame as a PNG into dir and returns its path.
// The view must have been built with WithPreserveDrawingBuffer. Failures are
// logged at debug level; callers may ignore them.
func (v *View) Export(dir string, now time.Time) (string, error) {
	path, err := v.export(dir, now)
	if err != nil {
		metrics.SnapshotTotal.WithLabelValues("error").Inc()
		v.log.Debug("snapshot_failed", "error", err)
		return "", fmt.Errorf("%w: %v", ErrExportFailed, err)
	}
	metrics.SnapshotTotal.WithLabelValues("ok").Inc()
	v.log.Info("snapshot_saved", "path", path)
	return path, nil
}

func (v *View) export(dir string, now time.Time) (string, error) {
	if v.surf == nil {
		return "", surface.ErrRemoved
	}
	img, err := v.surf.Snapshot()
	if err != nil {
		return "", err
	}

	path := filepath.Join(dir, SnapshotFilename(now))
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		os.Remove(path)
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", err
	}
	return path, nil
}
