package main

import (
	"context"
	"encoding/json"
	"errors"
	"flowclient/internal/apperrors"
	"flowclient/internal/document"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// metricsExporter serves the Prometheus handler for the lifetime of one command.
type metricsExporter struct {
	addr    string
	handler http.Handler
}

func newMetricsExporter(addr string, handler http.Handler) *metricsExporter {
	return &metricsExporter{addr: addr, handler: handler}
}

// serve runs fn while the metrics endpoint is up. The server is shut down
// when fn returns; a server failure cancels fn.
func (e *metricsExporter) serve(ctx context.Context, fn func(context.Context) error) error {
	ln, err := net.Listen("tcp", e.addr)
	if err != nil {
		return apperrors.Internal("metrics.listen", err)
	}

	mux := http.NewServeMux()
	mux.Handle("GET /metrics", e.handler)
	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("Starting metrics server", "addr", ln.Addr().String())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return apperrors.Internal("metrics.serve", err)
		}
		return nil
	})
	g.Go(func() error {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("Metrics server shutdown error", "error", err)
			}
		}()
		return fn(gctx)
	})
	return g.Wait()
}

// action adapts a context-aware command body to cobra, running it beside
// the metrics endpoint when one is configured.
func (a *app) action(fn func(ctx context.Context, cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		if a.exporter == nil {
			return fn(cmd.Context(), cmd, args)
		}
		return a.exporter.serve(cmd.Context(), func(ctx context.Context) error {
			return fn(ctx, cmd, args)
		})
	}
}

// loadDocument reads a YAML or JSON document named by a flag.
func loadDocument(flag, path string) (any, error) {
	doc, err := document.LoadFile(path)
	if err != nil {
		return nil, apperrors.Validation(flag, err.Error())
	}
	return doc, nil
}

func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "    ")
	if err != nil {
		return apperrors.Internal("output.encode", err)
	}
	if _, err := fmt.Fprintln(w, string(data)); err != nil {
		return apperrors.Internal("output.write", err)
	}
	return nil
}
