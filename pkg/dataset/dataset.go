// Package dataset loads the ordered media point snapshot shown on the map.
package dataset

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/1F47E/geo-media-map/pkg/models"
	"gopkg.in/yaml.v3"
)

// ErrInvalidPoint marks a record without a usable id or coordinate
var ErrInvalidPoint = errors.New("invalid media point")

// Provider supplies one dataset snapshot. Implementations may fail or return
// an empty snapshot; both leave the map usable.
type Provider interface {
	Load(ctx context.Context) ([]models.MediaPoint, error)
}

// ProviderFunc adapts a function to Provider
type ProviderFunc func(ctx context.Context) ([]models.MediaPoint, error)

func (f ProviderFunc) Load(ctx context.Context) ([]models.MediaPoint, error) {
	return f(ctx)
}

// Static serves a fixed snapshot
type Static []models.MediaPoint

func (s Static) Load(ctx context.Context) ([]models.MediaPoint, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return append([]models.MediaPoint(nil), s...), nil
}

// CheckPoint returns an ErrInvalidPoint error describing why p is unusable
func CheckPoint(p models.MediaPoint) error {
	if strings.TrimSpace(p.ID) == "" {
		return fmt.Errorf("%w: empty id", ErrInvalidPoint)
	}
	if !p.Location().Valid() {
		return fmt.Errorf("%w: id %s has coordinate (%v, %v)", ErrInvalidPoint, p.ID, p.Longitude, p.Latitude)
	}
	return nil
}

// Validate drops invalid points and later duplicates of an id, keeping the
// order of the rest. It returns the number of dropped records.
func Validate(points []models.MediaPoint, log *slog.Logger) ([]models.MediaPoint, int) {
	if log == nil {
		log = slog.Default()
	}
	out := make([]models.MediaPoint, 0, len(points))
	seen := make(map[string]bool, len(points))
	dropped := 0
	for _, p := range points {
		if err := CheckPoint(p); err != nil {
			log.Debug("dataset_point_dropped", "error", err)
			dropped++
			continue
		}
		if seen[p.ID] {
			log.Debug("dataset_point_dropped", "id", p.ID, "reason", "duplicate")
			dropped++
			continue
		}
		seen[p.ID] = true
		out = append(out, p)
	}
	return out, dropped
}

// FileProvider reads a YAML or JSON file holding a list of media points, or
// a document with a top-level "points" list.
type FileProvider struct {
	Path string
}

type fileDocument struct {
	Points []models.MediaPoint `yaml:"points"`
}

func (f FileProvider) Load(ctx context.Context) ([]models.MediaPoint, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read dataset: %w", err)
	}
	return Decode(data)
}

// Decode parses a dataset document. JSON is accepted as a YAML subset.
func Decode(data []byte) ([]models.MediaPoint, error) {
	var list []models.MediaPoint
	if err := yaml.Unmarshal(data, &list); err == nil {
		return list, nil
	}
	var doc fileDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse dataset: %w", err)
	}
	return doc.Points, nil
}

// Open picks a provider for source: "sample" or a file path
func Open(source string) (Provider, error) {
	switch {
	case source == "" || source == "sample":
		return Sample(), nil
	case isFile(source):
		return FileProvider{Path: source}, nil
	}
	return nil, fmt.Errorf("unknown dataset source %q", source)
}

func isFile(p string) bool {
	switch strings.ToLower(filepath.Ext(p)) {
	case ".yaml", ".yml", ".json":
		return true
	}
	return false
}
