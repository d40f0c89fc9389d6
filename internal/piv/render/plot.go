// Package render draws finished refinement levels: PNG vector plots with
// gonum/plot and interactive HTML charts with go-echarts.
package render

import (
	"fmt"
	"image/color"
	"io"
	"math"

	"github.com/banshee-data/velocity.piv/internal/piv/tiling"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

// maxOutlinedTiles is the largest grid whose tile footprints are drawn;
// beyond it the outlines hide the vectors.
const maxOutlinedTiles = 2000

var (
	outlineColor = color.RGBA{R: 180, G: 180, B: 180, A: 255}
	vectorColor  = color.RGBA{R: 31, G: 104, B: 142, A: 255}
	centreColor  = color.RGBA{R: 68, G: 1, B: 84, A: 255}
)

// SaveVectorPlot writes the displacement field of grid to path. The format
// follows the file extension (.png, .svg, .pdf). Vectors are drawn scale
// times their length in pixels; scale <= 0 picks a scale that makes the
// longest vector one tile step long.
func SaveVectorPlot(grid *tiling.IterationStepTiles, path string, scale float64) error {
	p, err := VectorPlot(grid, scale)
	if err != nil {
		return err
	}

	width, height := plotSize(grid)
	if err := p.Save(width, height, path); err != nil {
		return fmt.Errorf("failed to save vector plot %s: %w", path, err)
	}
	return nil
}

// WriteVectorPlot encodes the vector plot of grid to w as PNG.
func WriteVectorPlot(w io.Writer, grid *tiling.IterationStepTiles, scale float64) error {
	p, err := VectorPlot(grid, scale)
	if err != nil {
		return err
	}

	width, height := plotSize(grid)
	wt, err := p.WriterTo(width, height, "png")
	if err != nil {
		return fmt.Errorf("failed to encode vector plot: %w", err)
	}
	if _, err := wt.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write vector plot: %w", err)
	}
	return nil
}

// plotSize keeps the image aspect ratio at a 10 inch width.
func plotSize(grid *tiling.IterationStepTiles) (vg.Length, vg.Length) {
	width := 10 * vg.Inch
	return width, width * vg.Length(grid.ImageHeight) / vg.Length(grid.ImageWidth)
}

// VectorPlot builds the plot SaveVectorPlot writes.
func VectorPlot(grid *tiling.IterationStepTiles, scale float64) (*plot.Plot, error) {
	if grid == nil || grid.Len() == 0 {
		return nil, fmt.Errorf("no tiles to plot")
	}

	centres := make(plotter.XYs, 0, grid.Len())
	vectors := make(plotter.XYs, 0, grid.Len())
	var longest float64
	for _, tile := range grid.Tiles() {
		x, y := tile.Center()
		u, v := tile.Displacement()
		centres = append(centres, plotter.XY{X: x, Y: y})
		vectors = append(vectors, plotter.XY{X: u, Y: v})
		longest = math.Max(longest, math.Hypot(u, v))
	}
	if scale <= 0 {
		scale = 1
		if longest > 0 {
			scale = float64(grid.HorizontalStep) / longest
		}
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Level %d (%s image) - %dx%d tiles of %dx%d px, vectors x%.3g",
		grid.Level, grid.Order, grid.NumberOfTilesInJ, grid.NumberOfTilesInI,
		grid.TileWidth, grid.TileHeight, scale)
	p.X.Label.Text = "x (px)"
	p.Y.Label.Text = "y (px)"
	p.X.Min, p.X.Max = 0, float64(grid.ImageWidth)
	p.Y.Min, p.Y.Max = 0, float64(grid.ImageHeight)
	// Image rows grow downwards.
	p.Y.Scale = plot.InvertedScale{Normalizer: plot.LinearScale{}}
	p.Y.Tick.Marker = plot.DefaultTicks{}

	if grid.Len() <= maxOutlinedTiles {
		p.Add(&footprints{grid: grid, style: draw.LineStyle{Color: outlineColor, Width: vg.Points(0.5)}})
	}

	dots, err := plotter.NewScatter(centres)
	if err != nil {
		return nil, fmt.Errorf("failed to create centre scatter: %w", err)
	}
	dots.GlyphStyle.Color = centreColor
	dots.GlyphStyle.Radius = vg.Points(1)
	p.Add(dots)

	p.Add(&vectorField{
		bases: centres,
		uvs:   vectors,
		scale: scale,
		style: draw.LineStyle{Color: vectorColor, Width: vg.Points(1)},
	})
	return p, nil
}

// vectorField draws one segment per tile from its centre along its
// displacement.
type vectorField struct {
	bases plotter.XYs
	uvs   plotter.XYs
	scale float64
	style draw.LineStyle
}

func (f *vectorField) tip(k int) (float64, float64) {
	return f.bases[k].X + f.scale*f.uvs[k].X, f.bases[k].Y + f.scale*f.uvs[k].Y
}

// Plot implements plot.Plotter.
func (f *vectorField) Plot(c draw.Canvas, p *plot.Plot) {
	trX, trY := p.Transforms(&c)
	for k, b := range f.bases {
		x, y := f.tip(k)
		c.StrokeLine2(f.style, trX(b.X), trY(b.Y), trX(x), trY(y))
	}
}

// DataRange implements plot.DataRanger.
func (f *vectorField) DataRange() (xmin, xmax, ymin, ymax float64) {
	xmin, ymin = math.Inf(1), math.Inf(1)
	xmax, ymax = math.Inf(-1), math.Inf(-1)
	for k, b := range f.bases {
		x, y := f.tip(k)
		xmin, xmax = math.Min(xmin, math.Min(b.X, x)), math.Max(xmax, math.Max(b.X, x))
		ymin, ymax = math.Min(ymin, math.Min(b.Y, y)), math.Max(ymax, math.Max(b.Y, y))
	}
	return xmin, xmax, ymin, ymax
}

// footprints outlines every tile of a grid.
type footprints struct {
	grid  *tiling.IterationStepTiles
	style draw.LineStyle
}

// Plot implements plot.Plotter.
func (f *footprints) Plot(c draw.Canvas, p *plot.Plot) {
	trX, trY := p.Transforms(&c)
	for _, tile := range f.grid.Tiles() {
		r := tile.Footprint()
		x0, x1 := trX(float64(r.Min.X)), trX(float64(r.Max.X))
		y0, y1 := trY(float64(r.Min.Y)), trY(float64(r.Max.Y))
		c.StrokeLines(f.style, []vg.Point{{X: x0, Y: y0}, {X: x1, Y: y0}, {X: x1, Y: y1}, {X: x0, Y: y1}, {X: x0, Y: y0}})
	}
}
