package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/dxmate/dxmate/internal/log"
	"github.com/dxmate/dxmate/internal/service"
	"github.com/dxmate/dxmate/internal/view"
)

const shutdownTimeout = 5 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "serve the job tree over HTTP and run the scheduled workflows",
	Args:  cobra.NoArgs,
	RunE:  doServe,
}

func init() {
	serveCmd.Flags().String("address", "", "listen address - default from the config")
}

func doServe(cmd *cobra.Command, _ []string) error {
	ctx := log.ContextAttrs(cmd.Context(), slog.String("cmd", "serve"), slog.Int("pid", os.Getpid()))
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	svcCfg, err := service.ParseConfig("serve")
	if err != nil {
		return err
	}

	a := newApp(false)
	defer a.out.Flush()
	supervisor, err := service.NewSupervisor(ctx, a.sched, a.builder, svcCfg.Schedules...)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              svcCfg.Address,
		Handler:           view.Handler(a.sched, supervisor),
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return supervisor.Do(gctx)
	})
	g.Go(func() error {
		slog.InfoContext(gctx, "listening", "address", svcCfg.Address, "schedules", len(svcCfg.Schedules))
		err := srv.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.WithoutCancel(gctx), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(sctx)
	})
	return g.Wait()
}
