package main

import (
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"dynamokv/internal/adminrpc"
	"dynamokv/internal/console"
	"dynamokv/internal/sim"
)

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "start a cluster and expose the admin service over gRPC",
		Flags: append(clusterFlags(),
			&cli.StringFlag{
				Name:    "listen-addr",
				Aliases: []string{"listen"},
				Value:   "127.0.0.1:7070",
				Usage:   "address of the admin gRPC service",
			},
			&cli.BoolFlag{
				Name:  "logs",
				Usage: "print node log lines and client feedback as they happen",
			},
		),
		Action: cmdServe,
	}
}

func cmdServe(ctx *cli.Context) error {
	logger := loggerFrom(ctx)

	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}

	con := console.New(nil)
	if ctx.Bool("logs") {
		con = console.New(os.Stdout)
	}

	sys, err := sim.New(sim.Options{
		Config:     cfg,
		Logger:     logger,
		Observer:   con.Observer,
		OnFeedback: con.OnFeedback,
	})
	if err != nil {
		return err
	}
	defer sys.Shutdown()

	if err := sys.Bootstrap(ctx.Context); err != nil {
		return fmt.Errorf("bootstrapping cluster: %w", err)
	}

	lis, err := net.Listen("tcp", ctx.String("listen-addr"))
	if err != nil {
		return fmt.Errorf("listening for admin service: %w", err)
	}

	srv := grpc.NewServer(grpc.UnaryInterceptor(adminrpc.LoggingInterceptor(logger)))
	adminrpc.RegisterAdminServer(srv, adminrpc.NewServer(sys, logger))

	logger.Info("admin service listening",
		zap.String("addr", lis.Addr().String()),
		zap.Any("nodes", sys.Nodes()))

	g, gctx := errgroup.WithContext(ctx.Context)
	g.Go(func() error {
		return srv.Serve(lis)
	})
	g.Go(func() error {
		sigs := make(chan os.Signal, 1)
		signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigs)

		select {
		case sig := <-sigs:
			logger.Info("received signal to stop", zap.String("signal", sig.String()))
		case <-gctx.Done():
			logger.Info("context done", zap.Error(gctx.Err()))
		}
		srv.GracefulStop()
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return err
	}

	con.RenderStores(os.Stdout)
	return nil
}
