// utility_table holds the current utility estimate of every grid cell.
// It is a plain mutable matrix: it knows the grid's shape but none of its
// rules. Which cells are written is decided by the sweep that owns it.
package utility_table

import (
	"encoding/json"
	"fmt"
	"math"

	"gridvalue/grid_world"

	"gonum.org/v1/gonum/mat"
)

// UtilityTable is a rows x cols matrix of utilities. Blocked cells hold NaN,
// which is never a valid utility and must not be consumed as one.
type UtilityTable struct {
	values *mat.Dense
}

// New returns the initial table for @world: terminal cells hold their
// reward, blocked cells hold NaN, and every other cell holds zero.
func New(world *grid_world.GridWorld) *UtilityTable {
	ut := &UtilityTable{
		values: mat.NewDense(world.Rows(), world.Cols(), nil),
	}
	world.Visit(func(c grid_world.Coord) {
		switch {
		case world.IsBlocked(c):
			ut.Set(c, math.NaN())
		case world.IsTerminal(c):
			ut.Set(c, world.RewardAt(c))
		}
	})
	return ut
}

// Dims returns the table's shape.
func (ut *UtilityTable) Dims() (rows, cols int) {
	return ut.values.Dims()
}

func (ut *UtilityTable) Get(c grid_world.Coord) float64 {
	return ut.values.At(c.Row, c.Col)
}

func (ut *UtilityTable) Set(c grid_world.Coord, value float64) {
	ut.values.Set(c.Row, c.Col, value)
}

// Clone returns an independent copy of the table.
func (ut *UtilityTable) Clone() *UtilityTable {
	return &UtilityTable{
		values: mat.DenseCopyOf(ut.values),
	}
}

// CopyFrom overwrites this table with the contents of @src, which must have
// the same shape.
func (ut *UtilityTable) CopyFrom(src *UtilityTable) {
	ut.values.Copy(src.values)
}

// Snapshot returns the utilities as a nested [row][col] slice.
func (ut *UtilityTable) Snapshot() [][]float64 {
	rows, _ := ut.Dims()
	snapshot := make([][]float64, rows)
	for row := range snapshot {
		snapshot[row] = mat.Row(nil, row, ut.values)
	}
	return snapshot
}

// MarshalJSON encodes the table as a nested array, with null for blocked cells.
func (ut *UtilityTable) MarshalJSON() ([]byte, error) {
	snapshot := ut.Snapshot()
	nested := make([][]*float64, len(snapshot))
	for row := range snapshot {
		nested[row] = make([]*float64, len(snapshot[row]))
		for col := range snapshot[row] {
			if val := snapshot[row][col]; !math.IsNaN(val) {
				nested[row][col] = &val
			}
		}
	}
	return json.Marshal(nested)
}

func (ut *UtilityTable) String() string {
	return fmt.Sprintf("%.4v", mat.Formatted(ut.values, mat.Squeeze()))
}
