package cmd

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/example/ec-admin-console/internal/server"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	var addr string
	c := &cobra.Command{
		Use:   "serve",
		Short: "Run the local admin console over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.run(cmd, func(ctx context.Context, a *app) error {
				if addr == "" {
					addr = a.cfg.ConsoleAddr
				}
				a.banner()
				return serve(ctx, a, addr)
			})
		},
	}
	c.Flags().StringVar(&addr, "addr", "", "listen address (default from CONSOLE_ADDR)")
	return c
}

func serve(ctx context.Context, a *app, addr string) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	console := server.New(server.Options{Session: a.session, Deps: a.deps(), Gatherer: a.registry})
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           console.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Println("[Console] ========================================")
		log.Printf("[Console] Listening on %s", addr)
		log.Println("[Console] ========================================")
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return ignoreCanceled(console.Dashboard().Run(ctx))
	})
	if a.bridge != nil {
		g.Go(func() error {
			log.Printf("[Console] Sharing invalidations as %s", a.bridge.Origin())
			return ignoreCanceled(a.bridge.Run(ctx))
		})
	}
	g.Go(func() error {
		<-ctx.Done()
		log.Println("[Console] Shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
