package main

import (
	"context"
	"fmt"
	"time"

	"github.com/1F47E/geo-media-map/pkg/mapview"
	"github.com/1F47E/geo-media-map/pkg/selection"
	"github.com/1F47E/geo-media-map/pkg/surface"
	"github.com/1F47E/geo-media-map/pkg/surface/raster"
	"github.com/spf13/cobra"
)

var (
	snapSelect string
	snapWidth  int
	snapHeight int
	snapOut    string
	snapText   bool
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Render the map headlessly and save a PNG",
	Long: `Opens a map view without a terminal, waits for it to settle with the
selection applied and writes map-screenshot-<date>.png.`,
	RunE: runSnapshot,
}

func init() {
	snapshotCmd.Flags().StringVarP(&snapSelect, "select", "s", "", "Media point to select before capturing")
	snapshotCmd.Flags().IntVar(&snapWidth, "width", 1024, "Canvas width in pixels")
	snapshotCmd.Flags().IntVar(&snapHeight, "height", 768, "Canvas height in pixels")
	snapshotCmd.Flags().StringVarP(&snapOut, "out", "o", "", "Output directory (default export.dir)")
	snapshotCmd.Flags().BoolVar(&snapText, "text", false, "Also print the frame as text")
}

func runSnapshot(cmd *cobra.Command, args []string) error {
	a, err := setup(toStderr)
	if err != nil {
		return err
	}
	defer a.close()
	ctx := cmd.Context()

	points, err := a.loadPoints(ctx)
	if err != nil {
		return err
	}
	store, err := a.snapshotStore(ctx)
	if err != nil {
		return err
	}

	var engine *raster.Engine
	factory := raster.NewFactory(raster.Config{Scale: a.cfg.Map.Scale, Logger: a.log},
		func(e *raster.Engine) { engine = e })
	view := mapview.New(factory, store,
		mapview.WithLogger(a.log),
		mapview.WithAccessToken(a.cfg.Map.AccessToken),
		mapview.WithStyle(a.cfg.Map.Style),
		mapview.WithPreserveDrawingBuffer(true),
	)
	defer view.Close()

	view.SetDataset(points)
	if err := view.Open(surface.Container{Width: snapWidth, Height: snapHeight}, a.cfg.Map.Viewport); err != nil {
		return err
	}
	// the first settle delivers load, the second lands the fly-to it starts
	engine.Settle()
	engine.Settle()

	if snapSelect != "" {
		if _, ok := view.Selected(); !ok {
			a.log.Warn("snapshot_selection_unresolved", "id", snapSelect)
		}
	}

	dir := snapOut
	if dir == "" {
		dir = a.cfg.Export.Dir
	}
	path, err := view.Export(dir, time.Now())
	if err != nil {
		return err
	}
	if snapText {
		fmt.Println(engine.RenderText(snapWidth/8, snapHeight/16).String())
	}
	fmt.Println(path)
	return nil
}

// snapshotStore picks the selection to capture. --select stays local and
// leaves the shared session alone; otherwise the session is read once, since
// the headless view never hands store notifications to another goroutine.
func (a *app) snapshotStore(ctx context.Context) (selection.Store, error) {
	if snapSelect != "" || a.rc == nil {
		s, err := selection.NewAddressStore(addressFor(snapSelect))
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	rs, err := a.sessionStore(ctx, "/")
	if err != nil {
		return nil, err
	}
	return rs, nil
}
