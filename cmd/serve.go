package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/cyberrisk/internal/aggregate"
	"github.com/sells-group/cyberrisk/internal/api"
	"github.com/sells-group/cyberrisk/internal/metrics"
)

const shutdownTimeout = 10 * time.Second

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve company and segment results over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if servePort != 0 {
			cfg.Server.Port = servePort
		}
		if err := validateModes("store", "serve"); err != nil {
			return err
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		server := api.New(aggregate.NewHolder(nil), aggregate.FromStoreAggregates(st), metrics.New(), cfg.Server)
		if err := server.Reload(ctx); err != nil {
			return err
		}

		if secs := cfg.Server.ReloadIntervalSecs; secs > 0 {
			go refreshIndex(ctx, server, time.Duration(secs)*time.Second)
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
			Handler:           server.Routes(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				zap.L().Warn("server shutdown", zap.Error(err))
			}
		}()

		zap.L().Info("starting server", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

// refreshIndex reloads the index every interval until ctx ends. A failed
// reload keeps the previous index serving.
func refreshIndex(ctx context.Context, server *api.Server, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := server.Reload(ctx); err != nil {
				zap.L().Warn("periodic index reload failed", zap.Error(err))
			}
		}
	}
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
