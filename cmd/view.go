package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/1F47E/geo-media-map/internal/config"
	"github.com/1F47E/geo-media-map/internal/tui"
	"github.com/1F47E/geo-media-map/pkg/surface/raster"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

var (
	viewSelect  string
	viewLogFile string
)

var viewCmd = &cobra.Command{
	Use:   "view",
	Short: "Open the interactive map in the terminal",
	Long: `Draws the dataset on a braille map. Click a point or pick a table row to
select it; the selection follows the shared store when redis is configured.`,
	RunE: runView,
}

func init() {
	viewCmd.Flags().StringVarP(&viewSelect, "select", "s", "", "Start with this media point selected")
	viewCmd.Flags().StringVar(&viewLogFile, "log-file", "", "Log file (default log.file or mediamap.log)")
}

func runView(cmd *cobra.Command, args []string) error {
	if !isatty.IsTerminal(os.Stdout.Fd()) && !isatty.IsCygwinTerminal(os.Stdout.Fd()) {
		return errors.New("view needs a terminal, use snapshot or table instead")
	}

	// records must never land on the canvas
	var logFile *os.File
	a, err := setup(func(cfg *config.Config) (io.Writer, error) {
		path := viewLogFile
		if path == "" {
			path = cfg.Log.File
		}
		if path == "" {
			path = "mediamap.log"
		}
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		logFile = f
		return f, nil
	})
	if logFile != nil {
		defer logFile.Close()
	}
	if err != nil {
		return err
	}
	defer a.close()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	store, err := a.selectionStore(ctx, addressFor(viewSelect))
	if err != nil {
		return err
	}
	provider, err := a.provider(ctx)
	if err != nil {
		return err
	}

	m := tui.New(tui.Options{
		Store:       store,
		Provider:    provider,
		Viewport:    a.cfg.Map.Viewport,
		Engine:      raster.Config{Scale: a.cfg.Map.Scale},
		AccessToken: a.cfg.Map.AccessToken,
		Style:       a.cfg.Map.Style,
		ExportDir:   a.cfg.Export.Dir,
		Logger:      a.log,
	})
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseAllMotion(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("terminal ui: %w", err)
	}
	m.MapView().Close()
	return nil
}
