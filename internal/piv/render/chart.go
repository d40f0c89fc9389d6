package render

import (
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/banshee-data/velocity.piv/internal/piv/pipeline"
	"github.com/banshee-data/velocity.piv/internal/piv/tiling"
	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// viridis is the visual-map palette of the magnitude charts.
var viridis = []string{"#440154", "#482777", "#3e4989", "#31688e", "#26828e", "#1f9e89", "#35b779", "#6ece58", "#b5de2b", "#fde725"}

// MagnitudeChart builds a scatter of the displacement magnitude at every tile
// centre of grid. Image rows are flipped so the chart reads like the image.
func MagnitudeChart(grid *tiling.IterationStepTiles, title string) *charts.Scatter {
	data := make([]opts.ScatterData, 0, grid.Len())
	var maxMag float64
	for _, tile := range grid.Tiles() {
		x, y := tile.Center()
		u, v := tile.Displacement()
		mag := math.Hypot(u, v)
		maxMag = math.Max(maxMag, mag)
		data = append(data, opts.ScatterData{
			Value: []interface{}{x, float64(grid.ImageHeight) - y, round3(mag)},
			Name:  fmt.Sprintf("tile (%d,%d) u=%.3f v=%.3f", tile.IndexI, tile.IndexJ, u, v),
		})
	}
	if maxMag == 0 {
		maxMag = 1
	}

	symbol := grid.HorizontalStep / 4
	if symbol < 2 {
		symbol = 2
	}

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: title, Theme: "dark", Width: "900px", Height: "700px"}),
		charts.WithTitleOpts(opts.Title{
			Title: title,
			Subtitle: fmt.Sprintf("level=%d image=%s tiles=%dx%d size=%dx%d",
				grid.Level, grid.Order, grid.NumberOfTilesInJ, grid.NumberOfTilesInI, grid.TileWidth, grid.TileHeight),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Min: 0, Max: grid.ImageWidth, Name: "x (px)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Min: 0, Max: grid.ImageHeight, Name: "y (px)", NameLocation: "middle", NameGap: 35}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Show:       opts.Bool(true),
			Calculable: opts.Bool(true),
			Min:        0,
			Max:        float32(maxMag),
			Dimension:  "2",
			InRange:    &opts.VisualMapInRange{Color: viridis},
		}),
	)
	scatter.AddSeries("|d| (px)", data, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: symbol}))
	return scatter
}

// WriteMagnitudeChart renders MagnitudeChart as a standalone HTML page.
func WriteMagnitudeChart(w io.Writer, grid *tiling.IterationStepTiles, title string) error {
	if grid == nil || grid.Len() == 0 {
		return fmt.Errorf("no tiles to chart")
	}
	if err := MagnitudeChart(grid, title).Render(w); err != nil {
		return fmt.Errorf("failed to render magnitude chart: %w", err)
	}
	return nil
}

// LevelsChart builds a bar chart of tile counts and correlation passes per
// level of a frame.
func LevelsChart(levels []pipeline.LevelSummary, title string) *charts.Bar {
	names := make([]string, 0, len(levels))
	tiles := make([]opts.BarData, 0, len(levels))
	passes := make([]opts.BarData, 0, len(levels))
	for _, s := range levels {
		names = append(names, strconv.Itoa(s.TileWidth)+"x"+strconv.Itoa(s.TileHeight))
		tiles = append(tiles, opts.BarData{Value: s.Tiles})
		passes = append(passes, opts.BarData{Value: s.Passes})
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "900px", Height: "400px"}),
		charts.WithTitleOpts(opts.Title{Title: title}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
	)
	bar.SetXAxis(names).
		AddSeries("tiles", tiles).
		AddSeries("passes", passes,
			charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}))
	return bar
}

// WriteFrameReport renders the magnitude chart of a frame's last level and
// its per-level summary on one HTML page.
func WriteFrameReport(w io.Writer, res *pipeline.Result) error {
	if res == nil || res.First == nil || res.First.Len() == 0 {
		return fmt.Errorf("frame has no finished level")
	}
	page := components.NewPage()
	page.PageTitle = fmt.Sprintf("PIV frame %d", res.Frame.ID)
	page.AddCharts(
		MagnitudeChart(res.First, fmt.Sprintf("Frame %d displacement", res.Frame.ID)),
		LevelsChart(res.Levels, "Levels"),
	)
	if err := page.Render(w); err != nil {
		return fmt.Errorf("failed to render frame report: %w", err)
	}
	return nil
}

func round3(x float64) float64 {
	return math.Round(x*1000) / 1000
}
