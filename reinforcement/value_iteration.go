package reinforcement

/*
Value iteration over a stochastic grid world. Each sweep visits every cell
row-major and replaces the utility of each non-terminal, non-blocked cell with

	U(s) = livingCost + max_a sum_o P(o|a) * U(move(s, o))

where o ranges over the intended direction and its two perpendicular drifts.
The living cost is a constant added once per state regardless of the action
or destination. This differs from the textbook R(s) formulation, and the
known utilities of Thrun's world are computed with it.

Two disciplines are supported:
  - IN_PLACE (Gauss-Seidel): writes land immediately, so cells later in the
    same sweep read neighbors already advanced by this sweep.
  - DOUBLE_BUFFERED (Jacobi): every cell reads the previous sweep's values,
    which makes the cells of a sweep independent and lets rows be split
    across workers.
Both reach the same fixed point; their intermediate sweeps differ.
There is no early stop: a run is exactly the requested number of sweeps.
*/

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"gridvalue/atomic_float"
	. "gridvalue/grid_world"
	"gridvalue/utility_table"

	"golang.org/x/sync/errgroup"
)

// UpdateRule selects how a sweep reads the values it updates.
type UpdateRule string

const (
	IN_PLACE        UpdateRule = "inPlace"
	DOUBLE_BUFFERED UpdateRule = "doubleBuffered"
)

var (
	// ErrIterations is returned by Run for a non-positive sweep count.
	ErrIterations error = errors.New("iterations must be positive")
	// ErrUpdateRule is returned for an unknown update discipline name.
	ErrUpdateRule error = errors.New("unknown update rule")
)

// ParseUpdateRule maps a config name onto an UpdateRule; empty means IN_PLACE.
func ParseUpdateRule(name string) (UpdateRule, error) {
	switch {
	case name == "" || strings.EqualFold(name, string(IN_PLACE)):
		return IN_PLACE, nil
	case strings.EqualFold(name, string(DOUBLE_BUFFERED)):
		return DOUBLE_BUFFERED, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUpdateRule, name)
}

// ProgressFunc is a callback by which the engine reports each completed sweep
// and its residual, the largest absolute change of any utility in that sweep.
// ProgressFunc is synchronous and should complete quickly.
type ProgressFunc func(ctx context.Context, sweep int, residual float64)

// Engine owns a UtilityTable for the duration of a run and is its only writer.
type Engine struct {
	model      *TransitionModel
	world      *GridWorld
	table      *utility_table.UtilityTable
	rule       UpdateRule
	workers    int
	progressFn ProgressFunc
	// prev is the read buffer for double-buffered sweeps.
	prev *utility_table.UtilityTable
}

// NewEngine returns an engine whose table starts at the world's initial
// utilities. @workers only applies to DOUBLE_BUFFERED and is clamped to [1, rows].
func NewEngine(
	model *TransitionModel,
	rule UpdateRule,
	workers int,
) *Engine {
	world := model.World()
	if workers > world.Rows() {
		workers = world.Rows()
	}
	if workers < 1 {
		workers = 1
	}

	engine := &Engine{
		model:   model,
		world:   world,
		table:   utility_table.New(world),
		rule:    rule,
		workers: workers,
	}
	if rule == DOUBLE_BUFFERED {
		engine.prev = engine.table.Clone()
	}
	return engine
}

// FromConfig builds the model described by @cfg and an engine over it.
func FromConfig(cfg *TrainingConfig) (*Engine, error) {
	rule, err := ParseUpdateRule(cfg.Update)
	if err != nil {
		return nil, err
	}

	model, err := cfg.BuildModel()
	if err != nil {
		return nil, err
	}

	return NewEngine(model, rule, cfg.Workers), nil
}

// WithProgress sets the per-sweep progress hook.
func (e *Engine) WithProgress(progressFn ProgressFunc) *Engine {
	e.progressFn = progressFn
	return e
}

// Table returns the engine's table. It must not be mutated while Run is in progress.
func (e *Engine) Table() *utility_table.UtilityTable { return e.table }

func (e *Engine) World() *GridWorld { return e.world }

func (e *Engine) Rule() UpdateRule { return e.rule }

// Run executes exactly @iterations sweeps and returns the table. Cancellation
// of @ctx is checked between sweeps; a cancelled run returns the table as of
// the last completed sweep together with the wrapped context error.
func (e *Engine) Run(ctx context.Context, iterations int) (*utility_table.UtilityTable, error) {
	if iterations <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrIterations, iterations)
	}

	for sweep := 0; sweep < iterations; sweep++ {
		select {
		case <-ctx.Done():
			return e.table, fmt.Errorf("value iteration stopped after %d sweeps: %w", sweep, ctx.Err())
		default:
		}

		residual, err := e.Sweep()
		if err != nil {
			return e.table, fmt.Errorf("sweep %d: %w", sweep, err)
		}

		if e.progressFn != nil {
			e.progressFn(ctx, sweep+1, residual)
		}
	}

	return e.table, nil
}

// Sweep performs one full pass over the grid and returns its residual.
func (e *Engine) Sweep() (float64, error) {
	if e.rule == DOUBLE_BUFFERED {
		return e.sweepDoubleBuffered()
	}
	return e.sweepInPlace(), nil
}

// Terminal and blocked cells are never written.
func (e *Engine) isUpdatable(s Coord) bool {
	return !e.world.IsBlocked(s) && !e.world.IsTerminal(s)
}

func (e *Engine) sweepInPlace() (residual float64) {
	e.world.Visit(func(s Coord) {
		if !e.isUpdatable(s) {
			return
		}

		utility := e.bellman(s, e.table)
		residual = math.Max(residual, math.Abs(utility-e.table.Get(s)))
		e.table.Set(s, utility)
	})
	return
}

// Rows are striped across workers. Each worker reads only from prev and writes
// only its own rows of table, so no two routines touch the same element.
func (e *Engine) sweepDoubleBuffered() (float64, error) {
	e.prev.CopyFrom(e.table)
	residual := atomic_float.NewAtomicFloat64(0)
	rows, cols := e.world.Rows(), e.world.Cols()

	group := errgroup.Group{}
	for worker := 0; worker < e.workers; worker++ {
		first := worker
		group.Go(func() error {
			for row := first; row < rows; row += e.workers {
				for col := 0; col < cols; col++ {
					s := Coord{Row: row, Col: col}
					if !e.isUpdatable(s) {
						continue
					}

					utility := e.bellman(s, e.prev)
					residual.AtomicMax(math.Abs(utility - e.prev.Get(s)))
					e.table.Set(s, utility)
				}
			}
			return nil
		})
	}

	err := group.Wait()
	return residual.AtomicRead(), err
}

// bellman returns the living cost plus the best expected utility over all
// candidate actions, reading utilities from @source.
func (e *Engine) bellman(s Coord, source *utility_table.UtilityTable) float64 {
	best := math.Inf(-1)
	for _, intended := range Actions {
		val := 0.0
		for _, outcome := range e.model.Outcomes(intended) {
			val += outcome.Prob * source.Get(e.model.Move(s, outcome.Action))
		}
		best = math.Max(best, val)
	}
	return e.world.LivingCost() + best
}
