package dataset

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/1F47E/geo-media-map/pkg/models"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ids(points []models.MediaPoint) []string {
	out := make([]string, 0, len(points))
	for _, p := range points {
		out = append(out, p.ID)
	}
	return out
}

func TestSample(t *testing.T) {
	points, err := Sample().Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2", "3"}, ids(points))
	assert.Equal(t, "Door County", points[0].Title())

	valid, dropped := Validate(points, nil)
	assert.Len(t, valid, 3)
	assert.Zero(t, dropped)
}

func TestStaticCopies(t *testing.T) {
	s := Static{{ID: "a"}}
	points, err := s.Load(context.Background())
	require.NoError(t, err)
	points[0].ID = "changed"
	assert.Equal(t, "a", s[0].ID)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = s.Load(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestValidate(t *testing.T) {
	points := []models.MediaPoint{
		{ID: "1", Longitude: 10, Latitude: 10},
		{ID: "", Longitude: 0, Latitude: 0},
		{ID: "2", Longitude: 200, Latitude: 0},
		{ID: "3", Longitude: 0, Latitude: math.NaN()},
		{ID: "1", Longitude: 20, Latitude: 20},
		{ID: "4", Longitude: -180, Latitude: 90},
	}
	valid, dropped := Validate(points, nil)
	assert.Equal(t, []string{"1", "4"}, ids(valid))
	assert.Equal(t, 4, dropped)
	assert.Equal(t, 10.0, valid[0].Longitude)
}

func TestCheckPoint(t *testing.T) {
	assert.NoError(t, CheckPoint(models.MediaPoint{ID: "x"}))
	err := CheckPoint(models.MediaPoint{ID: "x", Latitude: 91})
	assert.True(t, errors.Is(err, ErrInvalidPoint))
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want []string
	}{
		{
			name: "yaml list",
			doc: `
- id: "1"
  longitude: -87.07
  latitude: 45.26
  media:
    name: Door County
    release_year: 1999
    subjects: [coast, peninsula]
- id: "2"
  longitude: -6.85
  latitude: 34.03
`,
			want: []string{"1", "2"},
		},
		{
			name: "yaml document",
			doc: `
points:
  - id: a
    longitude: 1
    latitude: 2
`,
			want: []string{"a"},
		},
		{
			name: "json list",
			doc:  `[{"id":"j","longitude":3,"latitude":4,"natural_feature_name":"Lake","attributes":{"airtable":"rec1"}}]`,
			want: []string{"j"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			points, err := Decode([]byte(tt.doc))
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids(points))
		})
	}

	t.Run("fields", func(t *testing.T) {
		points, err := Decode([]byte(tests[0].doc))
		require.NoError(t, err)
		require.NotNil(t, points[0].Media)
		assert.Equal(t, 1999, points[0].Media.ReleaseYear)
		assert.Equal(t, []string{"coast", "peninsula"}, points[0].Media.Subjects)

		points, err = Decode([]byte(tests[2].doc))
		require.NoError(t, err)
		assert.Equal(t, "Lake", points[0].NaturalFeature)
		assert.Equal(t, "rec1", points[0].Attributes["airtable"])
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := Decode([]byte("points: [unterminated"))
		assert.Error(t, err)
	})
}

func TestFileProvider(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "points.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"id":"1","longitude":1,"latitude":1}]`), 0o644))

	p, err := Open(path)
	require.NoError(t, err)
	points, err := p.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"1"}, ids(points))

	_, err = FileProvider{Path: filepath.Join(dir, "missing.yaml")}.Load(context.Background())
	assert.Error(t, err)

	_, err = Open("postgres://nope")
	assert.Error(t, err)

	p, err = Open("sample")
	require.NoError(t, err)
	assert.IsType(t, Static{}, p)
}

func TestCached(t *testing.T) {
	mr := miniredis.RunT(t)
	rc := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rc.Close()

	var calls atomic.Int32
	source := ProviderFunc(func(ctx context.Context) ([]models.MediaPoint, error) {
		calls.Add(1)
		return Sample().Load(ctx)
	})
	c := &Cached{Source: source, Client: rc, Key: "mediamap:dataset", TTL: time.Minute}
	ctx := context.Background()

	first, err := c.Load(ctx)
	require.NoError(t, err)
	second, err := c.Load(ctx)
	require.NoError(t, err)

	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, ids(first), ids(second))
	assert.Equal(t, "Castine", second[2].Title())
	assert.True(t, mr.Exists("mediamap:dataset"))

	require.NoError(t, c.Invalidate(ctx))
	_, err = c.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestCachedSourceError(t *testing.T) {
	boom := errors.New("boom")
	c := &Cached{Source: ProviderFunc(func(context.Context) ([]models.MediaPoint, error) { return nil, boom })}
	_, err := c.Load(context.Background())
	assert.ErrorIs(t, err, boom)
}
