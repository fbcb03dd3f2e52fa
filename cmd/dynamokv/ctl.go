package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli/v2"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"dynamokv/internal/adminrpc"
	"dynamokv/internal/cluster"
	"dynamokv/internal/console"
	"dynamokv/internal/message"
)

func ctlCommand() *cli.Command {
	nodeFlag := &cli.IntFlag{Name: "node", Usage: "target node id", Required: true}
	peerFlag := &cli.IntFlag{Name: "peer", Usage: "boot or recovery peer, lowest running node if unset", Value: int(adminrpc.NoPeer)}
	keyFlag := &cli.IntFlag{Name: "key", Usage: "key", Required: true}
	clientFlag := &cli.IntFlag{Name: "client", Usage: "client number", Value: 1}

	return &cli.Command{
		Name:  "ctl",
		Usage: "drive a running cluster through its admin service",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "addr",
				Value: "127.0.0.1:7070",
				Usage: "address of the admin gRPC service",
			},
			&cli.DurationFlag{
				Name:  "wait",
				Value: 10 * time.Second,
				Usage: "how long to wait for a command to complete",
			},
		},
		Subcommands: []*cli.Command{
			{
				Name:  "status",
				Usage: "show every node",
				Action: withAdmin(func(ctx *cli.Context, c *adminrpc.Client) error {
					st, err := c.Status(ctx.Context)
					if err != nil {
						return err
					}
					console.RenderStatus(os.Stdout, st)
					return nil
				}),
			},
			{
				Name:  "create",
				Usage: "add a node",
				Flags: []cli.Flag{nodeFlag, peerFlag},
				Action: withAdmin(func(ctx *cli.Context, c *adminrpc.Client) error {
					st, err := c.CreateNode(ctx.Context, cluster.NodeID(ctx.Int("node")), cluster.NodeID(ctx.Int("peer")))
					if err != nil {
						return err
					}
					console.RenderStatus(os.Stdout, st)
					return nil
				}),
			},
			{
				Name:  "leave",
				Usage: "make a node leave",
				Flags: []cli.Flag{nodeFlag},
				Action: withAdmin(func(ctx *cli.Context, c *adminrpc.Client) error {
					st, err := c.NodeLeaves(ctx.Context, cluster.NodeID(ctx.Int("node")))
					if err != nil {
						return err
					}
					console.RenderStatus(os.Stdout, st)
					return nil
				}),
			},
			{
				Name:  "crash",
				Usage: "crash a node",
				Flags: []cli.Flag{nodeFlag},
				Action: withAdmin(func(ctx *cli.Context, c *adminrpc.Client) error {
					st, err := c.CrashNode(ctx.Context, cluster.NodeID(ctx.Int("node")))
					if err != nil {
						return err
					}
					console.RenderStatus(os.Stdout, st)
					return nil
				}),
			},
			{
				Name:  "recover",
				Usage: "recover a crashed node",
				Flags: []cli.Flag{nodeFlag, peerFlag},
				Action: withAdmin(func(ctx *cli.Context, c *adminrpc.Client) error {
					st, err := c.RecoverNode(ctx.Context, cluster.NodeID(ctx.Int("node")), cluster.NodeID(ctx.Int("peer")))
					if err != nil {
						return err
					}
					console.RenderStatus(os.Stdout, st)
					return nil
				}),
			},
			{
				Name:  "delay",
				Usage: "set the response delay of a node",
				Flags: []cli.Flag{nodeFlag, &cli.DurationFlag{Name: "delay", Required: true}},
				Action: withAdmin(func(ctx *cli.Context, c *adminrpc.Client) error {
					st, err := c.SetDelay(ctx.Context, cluster.NodeID(ctx.Int("node")), ctx.Duration("delay"))
					if err != nil {
						return err
					}
					console.RenderStatus(os.Stdout, st)
					return nil
				}),
			},
			{
				Name:  "get",
				Usage: "read a key through a coordinator",
				Flags: []cli.Flag{nodeFlag, keyFlag, clientFlag},
				Action: withAdmin(func(ctx *cli.Context, c *adminrpc.Client) error {
					fb, err := c.Get(ctx.Context, ctx.Int("client"), cluster.NodeID(ctx.Int("node")), cluster.Key(ctx.Int("key")))
					if err != nil {
						return err
					}
					return printFeedback(ctx.Int("client"), fb)
				}),
			},
			{
				Name:  "update",
				Usage: "write a key through a coordinator",
				Flags: []cli.Flag{nodeFlag, keyFlag, clientFlag, &cli.StringFlag{Name: "value", Required: true}},
				Action: withAdmin(func(ctx *cli.Context, c *adminrpc.Client) error {
					fb, err := c.Update(ctx.Context, ctx.Int("client"), cluster.NodeID(ctx.Int("node")), cluster.Key(ctx.Int("key")), ctx.String("value"))
					if err != nil {
						return err
					}
					return printFeedback(ctx.Int("client"), fb)
				}),
			},
			{
				Name:  "store",
				Usage: "show the contents of a node's store",
				Flags: []cli.Flag{nodeFlag},
				Action: withAdmin(func(ctx *cli.Context, c *adminrpc.Client) error {
					snap, err := c.Store(ctx.Context, cluster.NodeID(ctx.Int("node")))
					if err != nil {
						return err
					}
					fmt.Println(snap)
					return nil
				}),
			},
		},
	}
}

func withAdmin(fn func(*cli.Context, *adminrpc.Client) error) cli.ActionFunc {
	return func(ctx *cli.Context) error {
		conn, err := grpc.NewClient(ctx.String("addr"), grpc.WithTransportCredentials(insecure.NewCredentials()))
		if err != nil {
			return fmt.Errorf("connecting to admin service: %w", err)
		}
		defer conn.Close()

		cctx, cancel := contextWithWait(ctx)
		defer cancel()
		ctx.Context = cctx

		return fn(ctx, adminrpc.NewClient(conn))
	}
}

func printFeedback(client int, fb message.Feedback) error {
	fmt.Println(console.FormatFeedback(client, fb))
	if !fb.Succeeded() {
		return cli.Exit("", 2)
	}
	return nil
}

func contextWithWait(ctx *cli.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx.Context, ctx.Duration("wait"))
}
