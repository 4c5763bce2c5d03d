package grid_world

import (
	"fmt"
	"math"
)

// Action is a unit displacement in row or column.
type Action struct {
	DRow, DCol int
}

var (
	UP    = Action{DRow: -1}
	DOWN  = Action{DRow: 1}
	LEFT  = Action{DCol: -1}
	RIGHT = Action{DCol: 1}
)

// Actions lists the candidate actions in the order their values are evaluated.
var Actions = []Action{UP, DOWN, RIGHT, LEFT}

func (a Action) String() string {
	switch a {
	case UP:
		return "up"
	case DOWN:
		return "down"
	case LEFT:
		return "left"
	case RIGHT:
		return "right"
	}
	return fmt.Sprintf("action(%d,%d)", a.DRow, a.DCol)
}

// Perpendicular returns the two drift directions of an intended action:
// left and right for vertical actions, up and down for horizontal ones.
func (a Action) Perpendicular() (Action, Action) {
	if a.DCol == 0 {
		return LEFT, RIGHT
	}
	return UP, DOWN
}

// Outcome is one realized direction of an intended action and its probability.
type Outcome struct {
	Action Action
	Prob   float64
}

// Default stochastic weights: the intended direction is realized with
// INTENDED_PROB and each perpendicular direction with DRIFT_PROB. The reverse
// direction is never realized.
const (
	INTENDED_PROB = 0.8
	DRIFT_PROB    = 0.1

	// Tolerance for the intended+2*drift == 1 check.
	probTolerance = 1e-9
)

// TransitionModel resolves movement on a GridWorld. Move itself is
// deterministic; stochasticity comes from weighting the Outcomes of an
// intended action.
type TransitionModel struct {
	world    *GridWorld
	intended float64
	drift    float64
}

// NewTransitionModel validates that the weights of every intended action sum to 1.
func NewTransitionModel(
	world *GridWorld,
	intended float64,
	drift float64,
) (*TransitionModel, error) {
	if world == nil {
		return nil, fmt.Errorf("%w: nil world", ErrConfiguration)
	}
	if intended < 0 || drift < 0 {
		return nil, fmt.Errorf("%w: negative transition weight (intended=%v, drift=%v)",
			ErrConfiguration, intended, drift)
	}
	if sum := intended + 2*drift; math.Abs(sum-1.0) > probTolerance {
		return nil, fmt.Errorf("%w: transition weights sum to %v, not 1",
			ErrConfiguration, sum)
	}

	return &TransitionModel{
		world:    world,
		intended: intended,
		drift:    drift,
	}, nil
}

func (tm *TransitionModel) World() *GridWorld { return tm.world }

// Move returns the cell reached from @s by displacement @a. Leaving the grid
// or entering a blocked cell leaves the agent where it is, so the result is
// never out of bounds and never blocked.
func (tm *TransitionModel) Move(s Coord, a Action) Coord {
	candidate := Coord{
		Row: s.Row + a.DRow,
		Col: s.Col + a.DCol,
	}
	if !tm.world.InBounds(candidate) || tm.world.IsBlocked(candidate) {
		return s
	}
	return candidate
}

// Outcomes returns the intended direction followed by its two drift directions.
func (tm *TransitionModel) Outcomes(intended Action) [3]Outcome {
	first, second := intended.Perpendicular()
	return [3]Outcome{
		{Action: intended, Prob: tm.intended},
		{Action: first, Prob: tm.drift},
		{Action: second, Prob: tm.drift},
	}
}
