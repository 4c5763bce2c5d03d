// cell_views contains views derived from the Cell view-model.
package cell_views

import (
	"fmt"
	"math"

	"gridvalue/grid_world"
	"gridvalue/utility_table"
)

// Cell is a view-model of one grid cell. As a rule of thumb, Cell fields
// should be immediately usable as view parameters.
type Cell struct {
	Row, Col int
	Value    float64
	Text     string
	Fill     string
}

// Convert transforms a utility table into Cells for consumption by values-views.
// Open cells are shaded by where their utility lies between the table's
// extremes; blocked and terminal cells have fixed fills.
func Convert(
	world *grid_world.GridWorld,
	table *utility_table.UtilityTable,
) (cells [][]Cell) {
	minVal, maxVal := math.MaxFloat64, -math.MaxFloat64
	world.Visit(func(c grid_world.Coord) {
		if !world.IsBlocked(c) {
			minVal = math.Min(minVal, table.Get(c))
			maxVal = math.Max(maxVal, table.Get(c))
		}
	})

	cells = make([][]Cell, world.Rows())
	for row := range cells {
		cells[row] = make([]Cell, world.Cols())
	}

	world.Visit(func(c grid_world.Coord) {
		cell := Cell{
			Row:   c.Row,
			Col:   c.Col,
			Value: table.Get(c),
		}
		switch {
		case world.IsBlocked(c):
			cell.Text = "----"
			cell.Fill = "dimgray"
		case world.IsTerminal(c):
			cell.Text = fmt.Sprintf("%.2f", cell.Value)
			cell.Fill = getTerminalFill(cell.Value)
		default:
			cell.Text = fmt.Sprintf("%.2f", cell.Value)
			cell.Fill = getRGBFill(cell.Value, minVal, maxVal)
		}
		cells[c.Row][c.Col] = cell
	})
	return
}

func getTerminalFill(reward float64) string {
	if reward >= 0 {
		return "lightgreen"
	}
	return "lightcoral"
}

// Returns an RGB value defined by where val lies along the number line between minVal and maxVal.
// Low values are blue, high values red.
func getRGBFill(val, minVal, maxVal float64) string {
	span := maxVal - minVal
	if span <= 0 {
		return "rgb(50%,0%,50%)"
	}
	redPct := int(100.0 * (val - minVal) / span)
	return fmt.Sprintf("rgb(%d%%,0%%,%d%%)", redPct, 100-redPct)
}
