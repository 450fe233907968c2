package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/r3d91ll/innercritic/internal/server"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the local HTTP API",
	Long: `Serves the session and the journal as JSON over HTTP for a local
frontend. Companion replies are relayed as server-sent events. There is no
authentication: bind to a loopback address only.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := setup(ctx, false)
	if err != nil {
		return err
	}
	defer a.Close()

	addr := a.cfg.Server.Addr
	if serveAddr != "" {
		addr = serveAddr
	}
	srv := server.New(addr, a.cfg.Server.AllowedOrigins, server.Deps{
		Session: a.session,
		Journal: a.journal,
		Models:  a.client,
		Logger:  a.logger.Named("http"),
	})

	fmt.Printf(colorGreen+"✓ Listening"+colorReset+" on http://%s\n", srv.Addr())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(srv.Start)
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Stop(shutdownCtx); err != nil {
			a.logger.Warn("unclean shutdown", zap.Error(err))
			return err
		}
		return nil
	})
	return g.Wait()
}
