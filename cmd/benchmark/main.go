package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"runtime/pprof"
	"time"

	"github.com/UnknownPrinciple/dataflow/scope"
	"github.com/jamiealquiza/tachymeter"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/urfave/cli/v3"
)

const (
	widthsKey     = "widths"
	heightsKey    = "heights"
	iterationsKey = "iters"
	cpuProfileKey = "cpuprofile"
)

func main() {
	cmd := &cli.Command{
		Name:  "benchmark",
		Usage: "Measure digest propagation latency over computed grids",
		Flags: []cli.Flag{
			&cli.IntSliceFlag{
				Name:  widthsKey,
				Usage: "Grid widths (parallel chains per source)",
				Value: []int64{1, 10, 100, 1_000},
			},
			&cli.IntSliceFlag{
				Name:  heightsKey,
				Usage: "Grid heights (derivations per chain)",
				Value: []int64{1, 10, 100, 1_000},
			},
			&cli.IntFlag{
				Name:  iterationsKey,
				Usage: "Writes per grid",
				Value: 100,
			},
			&cli.StringFlag{
				Name:  cpuProfileKey,
				Usage: "Write a CPU profile to this path",
			},
		},
		Action: run,
	}
	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}

func run(ctx context.Context, cmd *cli.Command) error {
	if path := cmd.String(cpuProfileKey); path != "" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("can't create profile: %w", err)
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			return fmt.Errorf("can't start profiling: %w", err)
		}
		defer pprof.StopCPUProfile()
	}

	widths := cmd.IntSlice(widthsKey)
	heights := cmd.IntSlice(heightsKey)
	iters := int(cmd.Int(iterationsKey))

	tbl := table.NewWriter()
	tbl.SetTitle("Scope Digest")
	tbl.SetOutputMirror(os.Stdout)
	tbl.AppendHeader(table.Row{"benchmark", "avg", "min", "p75", "p99", "max"})

	for _, w := range widths {
		for _, h := range heights {
			tach := tachymeter.New(&tachymeter.Config{Size: iters})

			sc := scope.NewScope(func(err error) {
				log.Fatalf("watcher error: %v", err)
			})
			src := scope.Signal(sc, 1)
			for i := int64(0); i < w; i++ {
				last := scope.Derive(sc, func(int) int { return src.Value() + 1 })
				for j := int64(1); j < h; j++ {
					prev := last
					last = scope.Derive(sc, func(int) int { return prev.Value() + 1 })
				}
				tail := last
				scope.Watch(sc, func() (scope.CleanupFunc, error) {
					tail.Value()
					return nil, nil
				})
			}

			for i := 0; i < iters; i++ {
				start := time.Now()
				src.Update(func(x int) int { return x + 1 })
				tach.AddTime(time.Since(start))
			}
			sc.Dispose()

			calc := tach.Calc()
			tbl.AppendRows([]table.Row{
				{
					fmt.Sprintf("propagate: %d * %d", w, h),
					calc.Time.Avg,
					calc.Time.Min,
					calc.Time.P75,
					calc.Time.P99,
					calc.Time.Max,
				},
			})
		}
	}

	tbl.Render()
	return nil
}
