package utility_table

import (
	"fmt"
	"io"
	"math"

	"gridvalue/grid_world"

	"github.com/logrusorgru/aurora"
)

// Show writes the table in grid orientation, one row per line. Terminal cells
// are colored by the sign of their reward and blocked cells print as dashes.
func (ut *UtilityTable) Show(w io.Writer, world *grid_world.GridWorld, colors bool) {
	au := aurora.NewAurora(colors)
	rows, cols := ut.Dims()
	for row := 0; row < rows; row++ {
		for col := 0; col < cols; col++ {
			c := grid_world.Coord{Row: row, Col: col}
			val := ut.Get(c)
			cell := fmt.Sprintf("%8.2f ", val)
			switch {
			case math.IsNaN(val) || world.IsBlocked(c):
				fmt.Fprint(w, au.White("   ----  "))
			case world.IsTerminal(c) && val >= 0:
				fmt.Fprint(w, au.Green(cell))
			case world.IsTerminal(c):
				fmt.Fprint(w, au.Red(cell))
			default:
				fmt.Fprint(w, cell)
			}
		}
		fmt.Fprintln(w)
	}
}
