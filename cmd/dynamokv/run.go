package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"dynamokv/internal/cluster"
	"dynamokv/internal/console"
	"dynamokv/internal/scenario"
)

func runCommand() *cli.Command {
	return &cli.Command{
		Name:      "run",
		Usage:     "run scenario files against a fresh cluster each",
		ArgsUsage: "<scenario.yaml>...",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "logs",
				Usage: "print node log lines and client feedback as they happen",
			},
			&cli.IntFlag{
				Name:  "tail",
				Usage: "print the last `N` node log lines at the end of each scenario",
			},
			&cli.IntSliceFlag{
				Name:  "tail-node",
				Usage: "restrict --tail to the given node ids",
			},
			&cli.BoolFlag{
				Name:  "stores",
				Usage: "print the contents of every store at the end of each scenario",
			},
		},
		Action: cmdRun,
	}
}

func cmdRun(ctx *cli.Context) error {
	if ctx.NArg() == 0 {
		return errors.New("no scenario given")
	}
	logger := loggerFrom(ctx)

	failed := 0
	for _, path := range ctx.Args().Slice() {
		sc, err := scenario.Load(path)
		if err != nil {
			return err
		}

		var con *console.Console
		if ctx.Bool("logs") {
			con = console.New(os.Stdout)
		} else {
			con = console.New(nil)
		}

		report, err := scenario.Run(ctx.Context, sc, scenario.Options{
			Logger:     logger,
			Observer:   con.Observer,
			OnFeedback: con.OnFeedback,
		})
		if report != nil {
			report.Render(os.Stdout)
		}
		if n := ctx.Int("tail"); n > 0 {
			con.RenderLogs(os.Stdout, n, tailNodes(ctx)...)
		}
		if ctx.Bool("stores") {
			con.RenderStores(os.Stdout)
		}
		if err != nil {
			failed++
			logger.Error("scenario failed", zap.String("scenario", sc.Name), zap.Error(err))
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d scenarios failed", failed, ctx.NArg())
	}
	return nil
}

func tailNodes(ctx *cli.Context) []cluster.NodeID {
	ids := make([]cluster.NodeID, 0)
	for _, id := range ctx.IntSlice("tail-node") {
		ids = append(ids, cluster.NodeID(id))
	}
	return ids
}
