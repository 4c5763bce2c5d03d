/*
Gridvalue computes state utilities of a small stochastic grid-world MDP by value
iteration. The default instance is Sebastian Thrun's 3x4 world: one blocked cell,
a +100 and a -100 absorbing cell, a constant living cost of -3, and moves that
go the intended way with probability 0.8 and drift to either side with 0.1.
Sweeps are row-major and update in place unless configured as double-buffered.
The final table is printed, and optionally plotted or served over http while
the run progresses.
*/
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"time"

	"gridvalue/heatmap"
	"gridvalue/reinforcement"
	"gridvalue/server"
	"gridvalue/utility_table"
)

// Output formats.
const (
	TEXT_FORMAT = "text"
	JSON_FORMAT = "json"
)

type options struct {
	configPath string
	iterations int
	update     string
	format     string
	plotPath   string
	serve      bool
	host       string
	port       string
	debug      bool
	logEvery   int
	noColor    bool
}

func parseFlags(args []string) (*options, error) {
	opts := &options{}
	fs := flag.NewFlagSet("gridvalue", flag.ContinueOnError)
	fs.StringVar(&opts.configPath, "config", "", "yaml config path; the reference instance is used if empty")
	fs.IntVar(&opts.iterations, "iterations", 0, "number of sweeps, overriding the config when positive")
	fs.StringVar(&opts.update, "update", "", "update rule, inPlace or doubleBuffered, overriding the config")
	fs.StringVar(&opts.format, "format", TEXT_FORMAT, "output format: text or json")
	fs.StringVar(&opts.plotPath, "plot", "", "write a heatmap of the final utilities to this png path")
	fs.BoolVar(&opts.serve, "serve", false, "serve the utilities over http, updated as the run progresses, until interrupted")
	fs.StringVar(&opts.host, "host", "", "The host ip")
	fs.StringVar(&opts.port, "port", "8080", "The host port")
	fs.BoolVar(&opts.debug, "debug", false, "print the grid layout before running")
	fs.IntVar(&opts.logEvery, "logEvery", 10, "log the sweep residual every n sweeps; 0 disables")
	fs.BoolVar(&opts.noColor, "nocolor", false, "disable colored text output")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if opts.format != TEXT_FORMAT && opts.format != JSON_FORMAT {
		return nil, fmt.Errorf("unknown format %q", opts.format)
	}
	return opts, nil
}

func loadConfig(opts *options) (cfg *reinforcement.TrainingConfig, err error) {
	cfg = reinforcement.DefaultConfig()
	if opts.configPath != "" {
		if cfg, err = reinforcement.FromYaml(opts.configPath); err != nil {
			return nil, err
		}
	}

	if opts.iterations > 0 {
		cfg.Iterations = opts.iterations
	}
	if opts.update != "" {
		cfg.Update = opts.update
	}
	return cfg, nil
}

// progressLogger logs the residual of every @every-th sweep.
func progressLogger(every int) reinforcement.ProgressFunc {
	return func(_ context.Context, sweep int, residual float64) {
		if every > 0 && sweep%every == 0 {
			log.Printf("sweep %d: residual %.3g", sweep, residual)
		}
	}
}

// progressPublisher pushes @table to @srv every @every-th sweep so a served
// page follows the run. It is called between sweeps, while @table is not
// being written.
func progressPublisher(
	srv *server.Server,
	table *utility_table.UtilityTable,
	every int,
	iterations int,
) reinforcement.ProgressFunc {
	return func(_ context.Context, sweep int, residual float64) {
		if every > 0 && sweep%every == 0 {
			srv.Publish(table, fmt.Sprintf("sweep %d of %d: residual %.3g", sweep, iterations, residual))
		}
	}
}

func writeTable(
	w io.Writer,
	opts *options,
	engine *reinforcement.Engine,
	table *utility_table.UtilityTable,
) error {
	if opts.format == JSON_FORMAT {
		return json.NewEncoder(w).Encode(table)
	}
	table.Show(w, engine.World(), !opts.noColor)
	return nil
}

func runApp(args []string, stdout io.Writer) (err error) {
	var opts *options
	if opts, err = parseFlags(args); err != nil {
		return
	}

	var cfg *reinforcement.TrainingConfig
	if cfg, err = loadConfig(opts); err != nil {
		return
	}

	var engine *reinforcement.Engine
	if engine, err = reinforcement.FromConfig(cfg); err != nil {
		return
	}
	if opts.debug {
		engine.World().ShowGrid()
	}

	appCtx, appCancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer appCancel()

	trainingCtx, trainingCancel, err := cfg.WithTrainingDeadline(appCtx)
	if err != nil {
		return
	}
	defer trainingCancel()

	var srv *server.Server
	if opts.serve {
		srv = server.NewServer(
			opts.host+":"+opts.port,
			engine.World(),
			engine.Table(),
			"running value iteration")
		go func() {
			if serveErr := srv.Serve(appCtx); serveErr != nil {
				log.Println(serveErr)
				appCancel()
			}
		}()
	}

	var lastResidual float64
	logProgress := progressLogger(opts.logEvery)
	var publishProgress reinforcement.ProgressFunc
	if srv != nil {
		publishProgress = progressPublisher(srv, engine.Table(), opts.logEvery, cfg.Iterations)
	}
	engine.WithProgress(func(ctx context.Context, sweep int, residual float64) {
		lastResidual = residual
		logProgress(ctx, sweep, residual)
		if publishProgress != nil {
			publishProgress(ctx, sweep, residual)
		}
	})

	start := time.Now()
	table, err := engine.Run(trainingCtx, cfg.Iterations)
	if err != nil {
		return
	}
	status := fmt.Sprintf("%d %s sweeps in %v, final residual %.3g",
		cfg.Iterations, engine.Rule(), time.Since(start), lastResidual)
	log.Println(status)

	if err = writeTable(stdout, opts, engine, table); err != nil {
		return
	}

	if opts.plotPath != "" {
		if err = heatmap.Save(table, status, opts.plotPath); err != nil {
			return
		}
		log.Printf("wrote heatmap to %s", opts.plotPath)
	}

	if srv != nil {
		srv.Publish(table, status)
		<-appCtx.Done()
	}
	return
}

func main() {
	if err := runApp(os.Args[1:], os.Stdout); err != nil {
		log.Fatal(err)
	}
}
