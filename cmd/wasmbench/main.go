// wasmbench measures the execution cost of every externally dispatchable
// contracts runtime operation and host function, producing the raw samples a
// weight fit runs over.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"

	"github.com/charmbracelet/log"
	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli/v2"

	"github.com/tos-network/wasmbench/bench"
	"github.com/tos-network/wasmbench/kvdb"
	"github.com/tos-network/wasmbench/kvdb/leveldb"
	"github.com/tos-network/wasmbench/params"
)

var (
	filterFlag = &cli.StringFlag{
		Name:  "filter",
		Usage: "regular expression selecting scenarios by name",
	}
	stepsFlag = &cli.UintFlag{
		Name:  "steps",
		Value: 10,
		Usage: "sample points per varied dimension",
	}
	feeModelFlag = &cli.StringFlag{
		Name:  "feemodel",
		Usage: "TOML file overriding the runtime fee model constants",
	}
	datadirFlag = &cli.StringFlag{
		Name:  "datadir",
		Usage: "measure against on-disk stores created under this directory instead of memory",
	}
)

var commandList = &cli.Command{
	Name:   "list",
	Usage:  "print the scenario catalog",
	Flags:  []cli.Flag{filterFlag},
	Action: list,
}

var commandRun = &cli.Command{
	Name:   "run",
	Usage:  "measure scenarios and print the raw samples",
	Flags:  []cli.Flag{filterFlag, stepsFlag, feeModelFlag, datadirFlag},
	Action: run,
}

var app = &cli.App{
	Name:     "wasmbench",
	Usage:    "calibrate weight parameters for the contracts runtime",
	Commands: []*cli.Command{commandList, commandRun},
}

func main() {
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func list(ctx *cli.Context) error {
	benchmarks, err := selectBenchmarks(params.DefaultConfig(), ctx.String(filterFlag.Name))
	if err != nil {
		return err
	}
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Scenario", "Dimensions"})
	for _, b := range benchmarks {
		dims := ""
		for i, dim := range b.Dims {
			if i > 0 {
				dims += ", "
			}
			dims += fmt.Sprintf("%s in %d..%d", dim.Name, dim.Low, dim.High)
		}
		table.Append([]string{b.Name, dims})
	}
	table.Render()
	return nil
}

func run(ctx *cli.Context) error {
	cfg := params.DefaultConfig()
	if path := ctx.String(feeModelFlag.Name); path != "" {
		model, err := params.LoadFeeModel(path)
		if err != nil {
			return err
		}
		cfg.FeeModel = model
	}
	benchmarks, err := selectBenchmarks(cfg, ctx.String(filterFlag.Name))
	if err != nil {
		return err
	}

	logger := log.NewWithOptions(os.Stderr, log.Options{
		Prefix: "wasmbench",
	})
	runner := bench.NewRunner(cfg, uint32(ctx.Uint(stepsFlag.Name)), logger)
	if datadir := ctx.String(datadirFlag.Name); datadir != "" {
		runner.SetStoreOpener(diskStores(datadir))
	}

	logger.Info("starting measurement", "scenarios", len(benchmarks), "steps", ctx.Uint(stepsFlag.Name))
	results, err := runner.Run(benchmarks)
	if err != nil {
		return err
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Scenario", "Args", "Time"})
	for _, res := range results {
		table.Append([]string{res.Scenario, res.Args.String(), res.Elapsed.String()})
	}
	table.Render()
	return nil
}

func selectBenchmarks(cfg *params.Config, filter string) ([]*bench.Benchmark, error) {
	catalog := bench.Catalog(cfg)
	if filter == "" {
		return catalog, nil
	}
	re, err := regexp.Compile(filter)
	if err != nil {
		return nil, fmt.Errorf("invalid filter: %v", err)
	}
	var selected []*bench.Benchmark
	for _, b := range catalog {
		if re.MatchString(b.Name) {
			selected = append(selected, b)
		}
	}
	if len(selected) == 0 {
		return nil, fmt.Errorf("filter %q matches no scenario", filter)
	}
	return selected, nil
}

// diskStores hands out one fresh on-disk store per sample. Samples must not
// see each other's state, so every store lives in its own subdirectory.
func diskStores(datadir string) bench.StoreOpener {
	sample := 0
	return func() (kvdb.KeyValueStore, error) {
		sample++
		db, err := leveldb.New(filepath.Join(datadir, "sample-"+strconv.Itoa(sample)))
		if err != nil {
			return nil, err
		}
		return db, nil
	}
}
