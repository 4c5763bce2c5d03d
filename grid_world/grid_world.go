package grid_world

import (
	"errors"
	"fmt"
	"math"

	"github.com/logrusorgru/aurora"
)

// Coord is a grid position. Row 0 is the top row when printed, and rows
// and columns are visited in ascending order (row-major) by all sweeps.
type Coord struct {
	Row, Col int
}

func (c Coord) String() string {
	return fmt.Sprintf("(%d,%d)", c.Row, c.Col)
}

// Layout cell types. Any other rune in a layout must name a terminal cell
// whose reward is given separately.
const (
	OPEN    = 'o'
	BLOCKED = 'W'
)

// The reference instance: Sebastian Thrun's 3x4 world with a single blocked
// cell and two absorbing cells.
var (
	ThrunLayout []string = []string{
		"ooo+",
		"oWo-",
		"oooo",
	}

	ThrunRewards map[rune]float64 = map[rune]float64{
		'+': 100,
		'-': -100,
	}
)

const THRUN_LIVING_COST = -3.0

// ErrConfiguration is returned for any malformed grid or transition definition.
var ErrConfiguration error = errors.New("malformed grid configuration")

// GridWorld is the immutable description of a grid: its shape, the blocked
// cells, the terminal cells and their rewards, and the constant living cost
// charged for every non-terminal state.
type GridWorld struct {
	rows, cols int
	cells      [][]rune
	terminals  map[Coord]float64
	livingCost float64
}

// Convert builds a GridWorld from a layout of equal-width rune rows.
// Every rune must be OPEN, BLOCKED, or a key of @terminalRewards.
func Convert(
	layout []string,
	terminalRewards map[rune]float64,
	livingCost float64,
) (*GridWorld, error) {
	if len(layout) == 0 {
		return nil, fmt.Errorf("%w: empty layout", ErrConfiguration)
	}

	width := len([]rune(layout[0]))
	if width == 0 {
		return nil, fmt.Errorf("%w: empty first row", ErrConfiguration)
	}

	world := &GridWorld{
		rows:       len(layout),
		cols:       width,
		cells:      make([][]rune, 0, len(layout)),
		terminals:  map[Coord]float64{},
		livingCost: livingCost,
	}

	for row, line := range layout {
		runes := []rune(line)
		if len(runes) != width {
			return nil, fmt.Errorf("%w: row %d has %d cells, expected %d",
				ErrConfiguration, row, len(runes), width)
		}
		for col, cellType := range runes {
			switch cellType {
			case OPEN, BLOCKED:
			default:
				reward, ok := terminalRewards[cellType]
				if !ok {
					return nil, fmt.Errorf("%w: cell %q at %v has no terminal reward",
						ErrConfiguration, cellType, Coord{row, col})
				}
				world.terminals[Coord{row, col}] = reward
			}
		}
		world.cells = append(world.cells, runes)
	}

	if len(world.terminals) == 0 {
		return nil, fmt.Errorf("%w: no terminal cells", ErrConfiguration)
	}

	return world, nil
}

// NewThrunWorld returns the reference 3x4 instance.
func NewThrunWorld() *GridWorld {
	world, err := Convert(ThrunLayout, ThrunRewards, THRUN_LIVING_COST)
	if err != nil {
		// The reference layout is a constant.
		panic(err)
	}
	return world
}

func (w *GridWorld) Rows() int { return w.rows }

func (w *GridWorld) Cols() int { return w.cols }

func (w *GridWorld) LivingCost() float64 { return w.livingCost }

func (w *GridWorld) InBounds(c Coord) bool {
	return c.Row >= 0 && c.Row < w.rows && c.Col >= 0 && c.Col < w.cols
}

// CellType returns the layout rune at @c, which must be in bounds.
func (w *GridWorld) CellType(c Coord) rune {
	return w.cells[c.Row][c.Col]
}

func (w *GridWorld) IsBlocked(c Coord) bool {
	return w.CellType(c) == BLOCKED
}

func (w *GridWorld) IsTerminal(c Coord) bool {
	_, ok := w.terminals[c]
	return ok
}

// RewardAt returns the terminal reward of a terminal cell, or the living cost
// for any other open cell. Blocked cells have no reward and yield NaN.
func (w *GridWorld) RewardAt(c Coord) float64 {
	if reward, ok := w.terminals[c]; ok {
		return reward
	}
	if w.IsBlocked(c) {
		return math.NaN()
	}
	return w.livingCost
}

// Terminals returns the terminal cells in row-major order.
func (w *GridWorld) Terminals() (terminals []Coord) {
	w.Visit(func(c Coord) {
		if w.IsTerminal(c) {
			terminals = append(terminals, c)
		}
	})
	return
}

// Visit calls @fn on every cell in row-major order: rows ascending, and
// columns ascending within a row. Sweep semantics depend on this order.
func (w *GridWorld) Visit(fn func(c Coord)) {
	for row := 0; row < w.rows; row++ {
		for col := 0; col < w.cols; col++ {
			fn(Coord{row, col})
		}
	}
}

// ShowGrid prints the layout for visual reference.
func (w *GridWorld) ShowGrid() {
	for row := range w.cells {
		for col, cellType := range w.cells[row] {
			c := Coord{row, col}
			switch {
			case w.IsBlocked(c):
				fmt.Print(aurora.White(fmt.Sprintf("%c ", cellType)))
			case w.IsTerminal(c) && w.terminals[c] >= 0:
				fmt.Print(aurora.Green(fmt.Sprintf("%c ", cellType)))
			case w.IsTerminal(c):
				fmt.Print(aurora.Red(fmt.Sprintf("%c ", cellType)))
			default:
				fmt.Print(aurora.Blue(fmt.Sprintf("%c ", cellType)))
			}
		}
		fmt.Println("")
	}
}
