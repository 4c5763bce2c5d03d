package heatmap

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"gridvalue/grid_world"
	"gridvalue/utility_table"

	. "github.com/smartystreets/goconvey/convey"
)

func TestUtilityGrid(t *testing.T) {
	Convey("Given the reference initial table", t, func() {
		table := utility_table.New(grid_world.NewThrunWorld())
		grid := newUtilityGrid(table)

		Convey("Plot rows are flipped so table row 0 is on top", func() {
			c, r := grid.Dims()
			So(c, ShouldEqual, 4)
			So(r, ShouldEqual, 3)
			So(grid.Z(3, 2), ShouldEqual, 100.0)
			So(grid.Z(3, 1), ShouldEqual, -100.0)
			So(math.IsNaN(grid.Z(1, 1)), ShouldBeTrue)
		})

		Convey("Row ticks count down the plot so table row 0 is labelled on top", func() {
			ticks := grid.rowTicks().Ticks(0, 2)
			So(len(ticks), ShouldEqual, 3)
			So(ticks[0].Value, ShouldEqual, 0.0)
			So(ticks[0].Label, ShouldEqual, "2")
			So(ticks[2].Value, ShouldEqual, 2.0)
			So(ticks[2].Label, ShouldEqual, "0")
		})

		Convey("The color range ignores the blocked cell", func() {
			lo, hi := grid.finiteRange()
			So(lo, ShouldEqual, -100.0)
			So(hi, ShouldEqual, 100.0)
		})

		Convey("Every cell is labelled", func() {
			labels := grid.labels()
			So(len(labels.Labels), ShouldEqual, 12)
			So(labels.Labels, ShouldContain, "----")
		})

		Convey("Save writes an image file", func() {
			path := filepath.Join(t.TempDir(), "utilities.png")
			So(Save(table, "initial utilities", path), ShouldBeNil)

			info, err := os.Stat(path)
			So(err, ShouldBeNil)
			So(info.Size(), ShouldBeGreaterThan, 0)
		})
	})
}
