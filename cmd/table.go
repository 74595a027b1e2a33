package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/1F47E/geo-media-map/pkg/detail"
	"github.com/1F47E/geo-media-map/pkg/models"
	"github.com/spf13/cobra"
)

var (
	tableSort   string
	tableDesc   bool
	tableNear   string
	tableLinks  string
	tableWidth  int
	tableFilter string
	tableCSV    string
)

var tableCmd = &cobra.Command{
	Use:   "table",
	Short: "Print the dataset as a table",
	RunE:  runTable,
}

func init() {
	tableCmd.Flags().StringVar(&tableSort, "sort", "", "Sort by column: title, type, director, year, location, feature, subjects, language")
	tableCmd.Flags().BoolVar(&tableDesc, "desc", false, "Sort descending")
	tableCmd.Flags().StringVar(&tableNear, "near", "", "Sort by distance from lat,lon")
	tableCmd.Flags().StringVar(&tableLinks, "links", "", "Add a Link column relative to this base address")
	tableCmd.Flags().IntVarP(&tableWidth, "width", "w", 0, "Table width")
	tableCmd.Flags().StringVarP(&tableFilter, "filter", "f", "", "Keep rows with a cell containing this text, any case")
	tableCmd.Flags().StringVar(&tableCSV, "csv", "", "Write the rows as CSV to this file instead, - for stdout")
}

func runTable(cmd *cobra.Command, args []string) error {
	a, err := setup(toStderr)
	if err != nil {
		return err
	}
	defer a.close()

	points, err := a.loadPoints(cmd.Context())
	if err != nil {
		return err
	}
	points = detail.Filter(points, tableFilter)

	switch {
	case tableNear != "":
		loc, err := parseLatLon(tableNear)
		if err != nil {
			return err
		}
		points = detail.SortByDistance(points, loc)
	case tableSort != "":
		col, ok := detail.ParseColumn(tableSort)
		if !ok {
			return fmt.Errorf("unknown column %q", tableSort)
		}
		points = detail.SortBy(points, col, tableDesc)
	}

	if tableCSV != "" {
		return writeCSV(cmd, tableCSV, points)
	}
	fmt.Println(detail.Table{Points: points, Base: tableLinks, Width: tableWidth}.Render())
	return nil
}

func writeCSV(cmd *cobra.Command, path string, points []models.MediaPoint) error {
	if path == "-" {
		return detail.WriteCSV(cmd.OutOrStdout(), points)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := detail.WriteCSV(f, points); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "wrote %d rows to %s\n", len(points), path)
	return nil
}

// parseLatLon reads "lat,lon"
func parseLatLon(s string) (models.Location, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return models.Location{}, fmt.Errorf("expected lat,lon, got %q", s)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return models.Location{}, fmt.Errorf("bad latitude: %w", err)
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return models.Location{}, fmt.Errorf("bad longitude: %w", err)
	}
	loc := models.Location{Lat: lat, Lon: lon}
	if !loc.Valid() {
		return models.Location{}, fmt.Errorf("%q is out of range", s)
	}
	return loc, nil
}
