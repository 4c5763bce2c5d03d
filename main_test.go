package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gridvalue/grid_world"
	"gridvalue/reinforcement"
	"gridvalue/server"

	. "github.com/smartystreets/goconvey/convey"
)

func TestParseFlags(t *testing.T) {
	Convey("When flags are parsed", t, func() {
		Convey("Defaults select text output and periodic logging", func() {
			opts, err := parseFlags(nil)
			So(err, ShouldBeNil)
			So(opts.format, ShouldEqual, TEXT_FORMAT)
			So(opts.logEvery, ShouldEqual, 10)
			So(opts.serve, ShouldBeFalse)
		})

		Convey("Overrides are applied to the loaded config", func() {
			opts, err := parseFlags([]string{"-iterations", "7", "-update", "doubleBuffered"})
			So(err, ShouldBeNil)

			cfg, err := loadConfig(opts)
			So(err, ShouldBeNil)
			So(cfg.Iterations, ShouldEqual, 7)
			So(cfg.Update, ShouldEqual, string(reinforcement.DOUBLE_BUFFERED))
		})

		Convey("An unknown format is rejected", func() {
			_, err := parseFlags([]string{"-format", "xml"})
			So(err, ShouldNotBeNil)
		})
	})
}

func TestRunApp(t *testing.T) {
	Convey("When the app runs the reference world", t, func() {
		out := &bytes.Buffer{}

		Convey("JSON output holds the converged utilities", func() {
			err := runApp([]string{"-format", "json", "-logEvery", "0", "-iterations", "100"}, out)
			So(err, ShouldBeNil)

			var utilities [][]*float64
			So(json.Unmarshal(out.Bytes(), &utilities), ShouldBeNil)
			So(len(utilities), ShouldEqual, 3)
			So(utilities[1][1], ShouldBeNil)
			So(*utilities[0][3], ShouldEqual, 100.0)
			So(*utilities[1][3], ShouldEqual, -100.0)
			So(*utilities[0][0], ShouldAlmostEqual, 85.18193493150689, 1e-6)
			So(*utilities[2][3], ShouldAlmostEqual, 47.38880432944363, 1e-6)
		})

		Convey("Text output renders every row", func() {
			err := runApp([]string{"-nocolor", "-logEvery", "0", "-iterations", "5"}, out)
			So(err, ShouldBeNil)
			lines := strings.Split(strings.TrimSpace(out.String()), "\n")
			So(len(lines), ShouldEqual, 3)
			So(lines[0], ShouldContainSubstring, "100.00")
			So(lines[1], ShouldContainSubstring, "----")
		})

		Convey("A heatmap is written when requested", func() {
			path := filepath.Join(t.TempDir(), "utilities.png")
			err := runApp([]string{"-logEvery", "0", "-iterations", "3", "-plot", path}, out)
			So(err, ShouldBeNil)
			info, err := os.Stat(path)
			So(err, ShouldBeNil)
			So(info.Size(), ShouldBeGreaterThan, 0)
		})

		Convey("A bad update rule fails before any sweep", func() {
			err := runApp([]string{"-update", "sideways"}, out)
			So(err, ShouldNotBeNil)
			So(out.Len(), ShouldEqual, 0)
		})

		Convey("A missing config file is reported", func() {
			err := runApp([]string{"-config", filepath.Join(t.TempDir(), "absent.yaml")}, out)
			So(err, ShouldNotBeNil)
		})
	})
}

func TestProgressPublisher(t *testing.T) {
	Convey("Given an engine whose progress is published to a server", t, func() {
		engine, err := reinforcement.FromConfig(reinforcement.DefaultConfig())
		So(err, ShouldBeNil)
		srv := server.NewServer("", engine.World(), engine.Table(), "running")

		served := func() (status string, utilities [][]*float64) {
			rec := httptest.NewRecorder()
			srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/utilities", nil))
			So(rec.Code, ShouldEqual, http.StatusOK)

			resp := struct {
				Status    string       `json:"status"`
				Utilities [][]*float64 `json:"utilities"`
			}{}
			So(json.Unmarshal(rec.Body.Bytes(), &resp), ShouldBeNil)
			return resp.Status, resp.Utilities
		}

		Convey("The initial table is served before any sweep", func() {
			status, utilities := served()
			So(status, ShouldEqual, "running")
			So(*utilities[0][2], ShouldEqual, 0.0)
		})

		Convey("The table of every third sweep is served while the run continues", func() {
			var atThirdSweep float64
			hook := progressPublisher(srv, engine.Table(), 3, 4)
			engine.WithProgress(func(ctx context.Context, sweep int, residual float64) {
				hook(ctx, sweep, residual)
				if sweep == 3 {
					atThirdSweep = engine.Table().Get(grid_world.Coord{Row: 2, Col: 0})
				}
			})

			table, err := engine.Run(context.Background(), 4)
			So(err, ShouldBeNil)

			status, utilities := served()
			So(status, ShouldStartWith, "sweep 3 of 4: residual")
			So(*utilities[2][0], ShouldEqual, atThirdSweep)
			So(*utilities[2][0], ShouldNotEqual, table.Get(grid_world.Coord{Row: 2, Col: 0}))
			So(utilities[1][1], ShouldBeNil)
		})
	})
}
