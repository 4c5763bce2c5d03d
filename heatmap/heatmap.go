// heatmap renders a final UtilityTable as an annotated PNG heat map.
package heatmap

import (
	"fmt"
	"image/color"
	"math"
	"strconv"

	"gridvalue/grid_world"
	"gridvalue/utility_table"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// utilityGrid adapts a UtilityTable to plotter.GridXYZ. Plot rows grow
// upward, so plot row r is table row rows-1-r and row 0 stays on top.
type utilityGrid struct {
	table      *utility_table.UtilityTable
	rows, cols int
}

func newUtilityGrid(table *utility_table.UtilityTable) *utilityGrid {
	rows, cols := table.Dims()
	return &utilityGrid{
		table: table,
		rows:  rows,
		cols:  cols,
	}
}

func (g *utilityGrid) Dims() (c, r int) { return g.cols, g.rows }

func (g *utilityGrid) Z(c, r int) float64 {
	return g.table.Get(grid_world.Coord{Row: g.rows - 1 - r, Col: c})
}

func (g *utilityGrid) X(c int) float64 { return float64(c) }

func (g *utilityGrid) Y(r int) float64 { return float64(r) }

// finiteRange returns the min and max over non-NaN cells.
func (g *utilityGrid) finiteRange() (lo, hi float64) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for c := 0; c < g.cols; c++ {
		for r := 0; r < g.rows; r++ {
			if z := g.Z(c, r); !math.IsNaN(z) {
				lo = math.Min(lo, z)
				hi = math.Max(hi, z)
			}
		}
	}
	if hi <= lo {
		hi = lo + 1
	}
	return
}

// rowTicks labels each plot row with its table row, so the axis reads 0 at the top.
func (g *utilityGrid) rowTicks() plot.ConstantTicks {
	ticks := make(plot.ConstantTicks, g.rows)
	for r := range ticks {
		ticks[r] = plot.Tick{
			Value: g.Y(r),
			Label: strconv.Itoa(g.rows - 1 - r),
		}
	}
	return ticks
}

func (g *utilityGrid) labels() plotter.XYLabels {
	labels := plotter.XYLabels{}
	for c := 0; c < g.cols; c++ {
		for r := 0; r < g.rows; r++ {
			text := "----"
			if z := g.Z(c, r); !math.IsNaN(z) {
				text = fmt.Sprintf("%.2f", z)
			}
			labels.XYs = append(labels.XYs, plotter.XY{X: g.X(c), Y: g.Y(r)})
			labels.Labels = append(labels.Labels, text)
		}
	}
	return labels
}

// Save writes a heat map of @table to the PNG (or any format gonum/plot
// infers from the extension) at @path. Blocked cells are drawn dark gray.
func Save(table *utility_table.UtilityTable, title string, path string) error {
	grid := newUtilityGrid(table)

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "col"
	p.Y.Label.Text = "row"
	p.Y.Tick.Marker = grid.rowTicks()

	hm := plotter.NewHeatMap(grid, palette.Heat(16, 1))
	hm.Min, hm.Max = grid.finiteRange()
	hm.NaN = color.Gray{Y: 0x40}
	p.Add(hm)

	labels, err := plotter.NewLabels(grid.labels())
	if err != nil {
		return fmt.Errorf("heatmap labels: %w", err)
	}
	p.Add(labels)

	width := vg.Length(grid.cols) * vg.Inch
	height := vg.Length(grid.rows) * vg.Inch
	if err = p.Save(width+vg.Inch, height+vg.Inch, path); err != nil {
		return fmt.Errorf("save heatmap: %w", err)
	}
	return nil
}
