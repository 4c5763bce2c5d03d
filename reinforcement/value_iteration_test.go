package reinforcement

import (
	"context"
	"errors"
	"math"
	"testing"

	. "gridvalue/grid_world"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	. "github.com/smartystreets/goconvey/convey"
)

// Converged utilities of the reference world, row-major, NaN for the blocked cell.
var referenceFixedPoint = [][]float64{
	{85.18193493150689, 89.40068493150687, 93.15068493150686, 100},
	{81.43193493150689, math.NaN(), 68.35616438356166, -100},
	{77.21318493150689, 73.46318493150689, 69.56240487062408, 47.38880432944363},
}

func newReferenceEngine(rule UpdateRule, workers int) *Engine {
	model, err := NewTransitionModel(NewThrunWorld(), INTENDED_PROB, DRIFT_PROB)
	if err != nil {
		panic(err)
	}
	return NewEngine(model, rule, workers)
}

func approxTables() cmp.Option {
	return cmp.Options{
		cmpopts.EquateApprox(0, 1e-6),
		cmpopts.EquateNaNs(),
	}
}

func TestFirstSweep(t *testing.T) {
	Convey("Given the reference world and its initial utilities", t, func() {
		Convey("When one in-place sweep runs", func() {
			engine := newReferenceEngine(IN_PLACE, 1)
			table, err := engine.Run(context.Background(), 1)
			So(err, ShouldBeNil)

			So(table.Get(Coord{Row: 0, Col: 0}), ShouldAlmostEqual, -3.0, 1e-9)
			So(table.Get(Coord{Row: 0, Col: 1}), ShouldAlmostEqual, -3.0, 1e-9)
			So(table.Get(Coord{Row: 0, Col: 2}), ShouldAlmostEqual, 77.0, 1e-9)
			So(table.Get(Coord{Row: 1, Col: 0}), ShouldAlmostEqual, -3.0, 1e-9)

			Convey("Later cells read values already advanced by the same sweep", func() {
				// up from (1,2) reaches (0,2), which this sweep already raised to 77.
				So(table.Get(Coord{Row: 1, Col: 2}), ShouldAlmostEqual, 48.6, 1e-9)
				So(table.Get(Coord{Row: 2, Col: 2}), ShouldAlmostEqual, 35.58, 1e-9)
				So(table.Get(Coord{Row: 2, Col: 3}), ShouldAlmostEqual, 15.464, 1e-9)
			})
		})

		Convey("When one double-buffered sweep runs", func() {
			engine := newReferenceEngine(DOUBLE_BUFFERED, 2)
			table, err := engine.Run(context.Background(), 1)
			So(err, ShouldBeNil)

			So(table.Get(Coord{Row: 0, Col: 2}), ShouldAlmostEqual, 77.0, 1e-9)
			Convey("Every cell reads the previous sweep's values", func() {
				So(table.Get(Coord{Row: 1, Col: 2}), ShouldAlmostEqual, -3.0, 1e-9)
				So(table.Get(Coord{Row: 2, Col: 2}), ShouldAlmostEqual, -3.0, 1e-9)
				So(table.Get(Coord{Row: 2, Col: 3}), ShouldAlmostEqual, -3.0, 1e-9)
			})
		})
	})
}

func TestInvariants(t *testing.T) {
	Convey("Given a reference engine", t, func() {
		for _, rule := range []UpdateRule{IN_PLACE, DOUBLE_BUFFERED} {
			engine := newReferenceEngine(rule, 3)

			Convey("Terminal and blocked cells are never written under "+string(rule), func() {
				for sweep := 0; sweep < 25; sweep++ {
					_, err := engine.Sweep()
					So(err, ShouldBeNil)
					table := engine.Table()
					So(table.Get(Coord{Row: 0, Col: 3}), ShouldEqual, 100.0)
					So(table.Get(Coord{Row: 1, Col: 3}), ShouldEqual, -100.0)
					So(math.IsNaN(table.Get(Coord{Row: 1, Col: 1})), ShouldBeTrue)
				}

				Convey("And no utility ever becomes NaN", func() {
					engine.World().Visit(func(c Coord) {
						if !engine.World().IsBlocked(c) {
							So(math.IsNaN(engine.Table().Get(c)), ShouldBeFalse)
						}
					})
				})
			})
		}
	})
}

func TestConvergence(t *testing.T) {
	Convey("Given the reference world and 100 sweeps", t, func() {
		ctx := context.Background()

		Convey("The in-place run reaches the reference fixed point", func() {
			table, err := newReferenceEngine(IN_PLACE, 1).Run(ctx, 100)
			So(err, ShouldBeNil)
			So(cmp.Diff(referenceFixedPoint, table.Snapshot(), approxTables()), ShouldBeEmpty)

			Convey("States nearer the positive terminal are worth more", func() {
				So(table.Get(Coord{Row: 0, Col: 0}), ShouldBeGreaterThan, table.Get(Coord{Row: 2, Col: 0}))
			})
		})

		Convey("The double-buffered run reaches the same fixed point", func() {
			table, err := newReferenceEngine(DOUBLE_BUFFERED, 4).Run(ctx, 100)
			So(err, ShouldBeNil)
			So(cmp.Diff(referenceFixedPoint, table.Snapshot(), approxTables()), ShouldBeEmpty)
		})

		Convey("One more sweep beyond convergence changes nothing", func() {
			hundred, err := newReferenceEngine(IN_PLACE, 1).Run(ctx, 100)
			So(err, ShouldBeNil)
			hundredOne, err := newReferenceEngine(IN_PLACE, 1).Run(ctx, 101)
			So(err, ShouldBeNil)
			So(cmp.Diff(hundred.Snapshot(), hundredOne.Snapshot(), approxTables()), ShouldBeEmpty)
		})

		Convey("Residuals are reported for every sweep and vanish", func() {
			residuals := []float64{}
			engine := newReferenceEngine(IN_PLACE, 1).WithProgress(
				func(_ context.Context, sweep int, residual float64) {
					residuals = append(residuals, residual)
				})
			_, err := engine.Run(ctx, 100)
			So(err, ShouldBeNil)
			So(len(residuals), ShouldEqual, 100)
			So(residuals[0], ShouldAlmostEqual, 77.0, 1e-9)
			So(residuals[99], ShouldBeLessThan, 1e-6)
		})
	})
}

func TestRunErrors(t *testing.T) {
	Convey("When Run is misused", t, func() {
		engine := newReferenceEngine(IN_PLACE, 1)

		Convey("A non-positive sweep count is rejected", func() {
			_, err := engine.Run(context.Background(), 0)
			So(errors.Is(err, ErrIterations), ShouldBeTrue)
		})

		Convey("A cancelled context stops the run between sweeps", func() {
			ctx, cancel := context.WithCancel(context.Background())
			sweeps := 0
			engine.WithProgress(func(_ context.Context, sweep int, _ float64) {
				sweeps = sweep
				if sweep == 3 {
					cancel()
				}
			})

			table, err := engine.Run(ctx, 100)
			So(errors.Is(err, context.Canceled), ShouldBeTrue)
			So(sweeps, ShouldEqual, 3)
			So(table, ShouldNotBeNil)
		})
	})

	Convey("When an update rule name is parsed", t, func() {
		rule, err := ParseUpdateRule("")
		So(err, ShouldBeNil)
		So(rule, ShouldEqual, IN_PLACE)

		rule, err = ParseUpdateRule("doublebuffered")
		So(err, ShouldBeNil)
		So(rule, ShouldEqual, DOUBLE_BUFFERED)

		_, err = ParseUpdateRule("jacobi-ish")
		So(errors.Is(err, ErrUpdateRule), ShouldBeTrue)
	})
}

func TestWorkerClamp(t *testing.T) {
	Convey("When an engine is built with an out of range worker count", t, func() {
		Convey("More workers than rows are reduced to one per row", func() {
			So(newReferenceEngine(DOUBLE_BUFFERED, 16).workers, ShouldEqual, 3)
		})

		Convey("Non-positive counts fall back to a single worker", func() {
			So(newReferenceEngine(DOUBLE_BUFFERED, 0).workers, ShouldEqual, 1)
			So(newReferenceEngine(DOUBLE_BUFFERED, -2).workers, ShouldEqual, 1)
		})

		Convey("Counts within range are kept", func() {
			So(newReferenceEngine(DOUBLE_BUFFERED, 2).workers, ShouldEqual, 2)
		})
	})
}
