package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"tattletale/internal/observerproto"
	"tattletale/internal/sim/kernel"
	"tattletale/internal/sim/world"
	"tattletale/internal/transport/observer"
)

type serveOptions struct {
	settingFlags
	addr        string
	pace        time.Duration
	allowRemote bool
	exit        bool
}

func newServeCmd(a *app) *cobra.Command {
	var opts serveOptions
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Simulate a tale and stream it to websocket observers",
		Long: `Simulate a tale and stream every tick to observers connected to
/observer/ws. GET /observer/bootstrap returns the run header and actor
names. The server keeps running after the last day until interrupted,
unless --exit is set.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.serve(cmd, opts)
		},
	}
	opts.register(cmd)
	cmd.Flags().StringVar(&opts.addr, "addr", "127.0.0.1:8080", "HTTP listen address")
	cmd.Flags().DurationVar(&opts.pace, "pace", 250*time.Millisecond, "Wall time between ticks (0 runs at full speed)")
	cmd.Flags().BoolVar(&opts.allowRemote, "allow-remote", false, "Accept observers from non-loopback addresses")
	cmd.Flags().BoolVar(&opts.exit, "exit", false, "Stop serving once the last day is simulated")
	return cmd
}

func (a *app) serve(cmd *cobra.Command, opts serveOptions) error {
	s, cat, err := a.loadInputs()
	if err != nil {
		return err
	}
	if err := opts.apply(cmd, &s); err != nil {
		return err
	}
	runID := uuid.NewString()
	logger := a.log.With(zap.String("run_id", runID))

	tale, err := world.New(s, cat, logger.Named("tale"))
	if err != nil {
		return err
	}
	chron := tale.Chronicle()
	obs := observer.NewServer(observerproto.BootstrapResponse{
		RunID:         runID,
		Seed:          s.Seed,
		CatalogDigest: cat.Digest,
		Actors:        chron.ActorNames(),
	}, observer.Options{
		Describer: func(r kernel.Record) string {
			return chron.Get(kernel.ID(r.ID)).Description(chron)
		},
		AllowRemote: opts.allowRemote,
		Logger:      logger.Named("observer"),
	})
	tale.AddTickLogger(obs)

	mux := http.NewServeMux()
	obs.Register(mux, "/observer")
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	ln, err := net.Listen("tcp", opts.addr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	logger.Info("serving observers", zap.String("addr", ln.Addr().String()), zap.Duration("pace", opts.pace))

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		err := tale.Run(gctx, opts.pace)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "tale finished: ticks=%d kernels=%d digest=%s\n", tale.Tick(), chron.Len(), tale.Digest())
		if opts.exit {
			cancel()
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		obs.Close()
		sctx, scancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer scancel()
		return srv.Shutdown(sctx)
	})
	return g.Wait()
}
