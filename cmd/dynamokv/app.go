package main

import (
	"fmt"
	"runtime"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"dynamokv/internal/config"
)

var Build = "head"

var App = cli.App{
	Name:            "dynamokv",
	Usage:           fmt.Sprintf("build for %s on %s", runtime.GOARCH, runtime.GOOS),
	Version:         Build,
	HideHelpCommand: true,
	Description:     "simulation of a Dynamo-style replicated key-value store",
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:  "debug",
			Value: false,
			Usage: "enable development logging",
		},
	},
	Commands: []*cli.Command{
		runCommand(),
		serveCommand(),
		ctlCommand(),
	},
	Before: configLogger,
}

func configLogger(ctx *cli.Context) error {
	var cfg zap.Config
	if ctx.Bool("debug") {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		cfg = zap.NewProductionConfig()
	}
	// Redirect everything to stderr
	cfg.OutputPaths = []string{"stderr"}
	logger, err := cfg.Build()
	if err != nil {
		return err
	}
	ctx.App.Metadata["logger"] = logger
	return nil
}

func loggerFrom(ctx *cli.Context) *zap.Logger {
	if logger, ok := ctx.App.Metadata["logger"].(*zap.Logger); ok {
		return logger
	}
	return zap.NewNop()
}

// clusterFlags are the flags that override the configuration file.
func clusterFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "YAML configuration file",
		},
		&cli.StringFlag{
			Name:  "nodes",
			Usage: `initial nodes, e.g. "10=50ms,20,30" (id=response delay)`,
		},
		&cli.IntFlag{
			Name:  "n",
			Usage: "replication factor",
			Value: config.DefaultN,
		},
		&cli.IntFlag{
			Name:  "r",
			Usage: "read quorum",
			Value: config.DefaultR,
		},
		&cli.IntFlag{
			Name:  "w",
			Usage: "write quorum",
			Value: config.DefaultW,
		},
		&cli.DurationFlag{
			Name:  "timeout",
			Usage: "request timeout",
			Value: config.DefaultTimeout,
		},
	}
}

// loadConfig reads the configuration file, if any, and applies the flags
// that were set explicitly.
func loadConfig(ctx *cli.Context) (config.Config, error) {
	cfg := config.Default()
	if path := ctx.String("config"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return config.Config{}, err
		}
		cfg = loaded
	}

	if ctx.IsSet("nodes") {
		nodes, err := config.ParseNodes(ctx.String("nodes"))
		if err != nil {
			return config.Config{}, err
		}
		cfg.Nodes = nodes
	}
	if ctx.IsSet("n") {
		cfg.N = ctx.Int("n")
	}
	if ctx.IsSet("r") {
		cfg.R = ctx.Int("r")
	}
	if ctx.IsSet("w") {
		cfg.W = ctx.Int("w")
	}
	if ctx.IsSet("timeout") {
		cfg.Timeout = ctx.Duration("timeout")
	}

	return cfg, cfg.Validate()
}
