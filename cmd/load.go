package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"runtime"
	"sync"
	"time"

	"github.com/1F47E/geo-media-map/pkg/dataset"
	"github.com/1F47E/geo-media-map/pkg/models"
	"github.com/1F47E/geo-media-map/pkg/postgis"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/spf13/cobra"
)

var (
	loadFile    string
	loadRandom  int
	loadWorkers int
	loadSeed    int64
)

// loadBounds defaults to roughly the USA
var loadBounds = models.BoundingBox{
	BottomLeft: models.Location{Lat: 25.0, Lon: -125.0},
	TopRight:   models.Location{Lat: 49.0, Lon: -66.0},
}

var loadCmd = &cobra.Command{
	Use:   "load",
	Short: "Import a dataset into PostGIS",
	Long: `Recreates the media_points table and fills it from a dataset file, the
sample dataset, or randomly generated points for load testing.`,
	RunE: runLoad,
}

func init() {
	loadCmd.Flags().StringVarP(&loadFile, "file", "f", "", "Dataset file (.yaml/.json), default the configured source")
	loadCmd.Flags().IntVarP(&loadRandom, "random", "n", 0, "Generate this many random points instead")
	loadCmd.Flags().IntVarP(&loadWorkers, "workers", "w", runtime.NumCPU(), "Number of worker goroutines for --random")
	loadCmd.Flags().Int64Var(&loadSeed, "seed", time.Now().UnixNano(), "Random seed")
	loadCmd.Flags().Float64Var(&loadBounds.BottomLeft.Lat, "min-lat", loadBounds.BottomLeft.Lat, "Minimum latitude")
	loadCmd.Flags().Float64Var(&loadBounds.TopRight.Lat, "max-lat", loadBounds.TopRight.Lat, "Maximum latitude")
	loadCmd.Flags().Float64Var(&loadBounds.BottomLeft.Lon, "min-lon", loadBounds.BottomLeft.Lon, "Minimum longitude")
	loadCmd.Flags().Float64Var(&loadBounds.TopRight.Lon, "max-lon", loadBounds.TopRight.Lon, "Maximum longitude")
}

func runLoad(cmd *cobra.Command, args []string) error {
	a, err := setup(toStderr)
	if err != nil {
		return err
	}
	defer a.close()
	ctx := cmd.Context()

	points, err := loadSource(ctx, a)
	if err != nil {
		return err
	}
	valid, dropped := dataset.Validate(points, a.log)
	if len(valid) == 0 {
		return errors.New("no valid points to load")
	}

	store, err := postgis.Open(ctx, a.cfg.PostGIS, a.log)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.InitSchema(ctx); err != nil {
		return err
	}

	bar := progress.New(progress.WithDefaultGradient(), progress.WithWidth(40))
	store.OnProgress(func(done, total int) {
		fmt.Printf("\r%s %d/%d", bar.ViewAs(float64(done)/float64(total)), done, total)
	})

	start := time.Now()
	if err := store.BulkInsert(ctx, valid); err != nil {
		fmt.Println()
		return err
	}
	elapsed := time.Since(start)
	fmt.Println()
	fmt.Printf("Loaded %d points in %v (%.0f points/sec), skipped %d\n",
		len(valid), elapsed.Round(time.Millisecond), float64(len(valid))/elapsed.Seconds(), dropped)

	if stats, err := store.Stats(ctx); err == nil {
		fmt.Printf("Table size: %v, index size: %v, rows: %v\n", stats["table_size"], stats["index_size"], stats["row_count"])
	}

	// views reading postgis through the cache must see the new rows
	cache := dataset.Cached{Client: a.rc, Key: "mediamap:dataset:postgis", Logger: a.log}
	if err := cache.Invalidate(ctx); err != nil {
		a.log.Warn("dataset_cache_invalidate_failed", "error", err)
	}
	return nil
}

func loadSource(ctx context.Context, a *app) ([]models.MediaPoint, error) {
	switch {
	case loadRandom > 0:
		return generateRandomPoints(loadRandom, loadBounds, loadWorkers, loadSeed), nil
	case loadFile != "":
		return dataset.FileProvider{Path: loadFile}.Load(ctx)
	}
	if a.cfg.Dataset.Source == "postgis" {
		return nil, errors.New("the configured dataset is postgis itself, pass --file or --random")
	}
	p, err := dataset.Open(a.cfg.Dataset.Source)
	if err != nil {
		return nil, err
	}
	return p.Load(ctx)
}

// generateRandomPoints fills n points inside bounds, split across workers
func generateRandomPoints(n int, bounds models.BoundingBox, workers int, seed int64) []models.MediaPoint {
	if workers < 1 {
		workers = 1
	}
	points := make([]models.MediaPoint, n)

	type workRange struct {
		idx, start, end int
	}
	work := make(chan workRange, workers)
	var wg sync.WaitGroup

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for wr := range work {
				// one generator per range keeps the output stable for a seed
				r := rand.New(rand.NewSource(seed + int64(wr.idx)))
				for i := wr.start; i < wr.end; i++ {
					points[i] = models.MediaPoint{
						ID:        fmt.Sprintf("point_%d", i),
						Latitude:  bounds.BottomLeft.Lat + r.Float64()*(bounds.TopRight.Lat-bounds.BottomLeft.Lat),
						Longitude: bounds.BottomLeft.Lon + r.Float64()*(bounds.TopRight.Lon-bounds.BottomLeft.Lon),
						Media:     &models.Media{Name: fmt.Sprintf("Random point %d", i), MediaType: "image"},
					}
				}
			}
		}()
	}

	perWorker, remainder := n/workers, n%workers
	start := 0
	for w := 0; w < workers; w++ {
		size := perWorker
		if w < remainder {
			size++
		}
		work <- workRange{idx: w, start: start, end: start + size}
		start += size
	}
	close(work)
	wg.Wait()

	return points
}
