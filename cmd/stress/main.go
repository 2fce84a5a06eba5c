package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/UnknownPrinciple/dataflow/scope"
	"github.com/cespare/xxhash/v2"
	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli/v3"
)

const roundsKey = "rounds"

// Each scenario builds a graph, hammers it with writes and logs every
// watcher observation. The xxhash fingerprint of the log makes two runs
// comparable at a glance: same engine semantics, same digest ordering, same
// fingerprint.
type scenario struct {
	name  string
	build func(sc *scope.Scope, rounds int, observe func(string)) func(i int)
}

var scenarios = []scenario{
	{
		name: "diamond fan",
		build: func(sc *scope.Scope, rounds int, observe func(string)) func(i int) {
			src := scope.Signal(sc, 0)
			left := scope.Derive(sc, func(int) int { return src.Value() + 1 })
			right := scope.Derive(sc, func(int) int { return src.Value() * 2 })
			scope.Watch(sc, func() (scope.CleanupFunc, error) {
				observe(fmt.Sprintf("%d|%d", left.Value(), right.Value()))
				return nil, nil
			})
			return func(i int) { src.SetValue(i) }
		},
	},
	{
		name: "re-entrant cascade",
		build: func(sc *scope.Scope, rounds int, observe func(string)) func(i int) {
			src := scope.Signal(sc, 0)
			echo := scope.Signal(sc, 0)
			scope.Watch(sc, func() (scope.CleanupFunc, error) {
				echo.SetValue(src.Value())
				return nil, nil
			})
			scope.Watch(sc, func() (scope.CleanupFunc, error) {
				observe(fmt.Sprintf("%d", echo.Value()))
				return nil, nil
			})
			return func(i int) { src.SetValue(i) }
		},
	},
	{
		name: "equality wall",
		build: func(sc *scope.Scope, rounds int, observe func(string)) func(i int) {
			src := scope.Signal(sc, 1)
			sign := scope.Derive(sc, func(bool) bool { return src.Value() >= 0 })
			scope.Watch(sc, func() (scope.CleanupFunc, error) {
				observe(fmt.Sprintf("%v", sign.Value()))
				return nil, nil
			})
			// only the final write flips the sign, the wall soaks the rest
			return func(i int) {
				if i == rounds-1 {
					src.SetValue(-1)
				} else {
					src.SetValue(i + 1)
				}
			}
		},
	},
}

func main() {
	cmd := &cli.Command{
		Name:  "stress",
		Usage: "Exercise digest semantics under sustained writes",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  roundsKey,
				Usage: "Writes per scenario",
				Value: 10_000,
			},
		},
		Action: run,
	}
	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}

func run(ctx context.Context, cmd *cli.Command) error {
	rounds := int(cmd.Int(roundsKey))

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"scenario", "writes", "observations", "fingerprint"})

	for _, s := range scenarios {
		sc := scope.NewScope(func(err error) {
			log.Fatalf("%s: watcher error: %v", s.name, err)
		})

		hasher := xxhash.New()
		observations := 0
		observe := func(line string) {
			observations++
			hasher.WriteString(line)
			hasher.WriteString("\n")
		}

		write := s.build(sc, rounds, observe)
		for i := 0; i < rounds; i++ {
			write(i)
		}
		sc.Dispose()

		table.Append([]string{
			s.name,
			humanize.Comma(int64(rounds)),
			humanize.Comma(int64(observations)),
			fmt.Sprintf("%016x", hasher.Sum64()),
		})
	}

	table.Render()
	return nil
}
