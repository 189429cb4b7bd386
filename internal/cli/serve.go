package cli

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/licenscan/licenscan/internal/server"
	"github.com/licenscan/licenscan/pkg/store"
)

// serveCommand creates the serve command running the HTTP API.
func (c *CLI) serveCommand() *cobra.Command {
	var (
		addr     string
		mongoURI string
		mongoDB  string
		redisURL string
		noCache  bool
		workers  int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the licenscan HTTP API",
		Long: `Serve exposes scanning over HTTP: POST /v1/scans with a lockfile's
content resolves its licenses, and completed scans can be listed and
fetched from the history store. Without --mongo-uri, history is kept in
memory and lost on restart.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			history, err := c.newHistoryStore(ctx, mongoURI, mongoDB)
			if err != nil {
				return err
			}
			defer history.Close(context.Background())

			cacheStore := c.newCacheStore(ctx, noCache, redisURL)
			defer cacheStore.Close()

			srv := &http.Server{
				Addr: addr,
				Handler: server.New(server.Options{
					Store:   history,
					Cache:   cacheStore,
					Workers: workers,
					Logger:  c.Logger,
				}),
				ReadHeaderTimeout: 10 * time.Second,
			}

			// Shut down cleanly when the context is cancelled (SIGINT).
			go func() {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				srv.Shutdown(shutdownCtx)
			}()

			c.Logger.Info("serving", "addr", addr)
			if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":8080", "listen address")
	cmd.Flags().StringVar(&mongoURI, "mongo-uri", "", "MongoDB URI for scan history (empty keeps history in memory)")
	cmd.Flags().StringVar(&mongoDB, "mongo-db", "", "MongoDB database name")
	cmd.Flags().StringVar(&redisURL, "redis", "", "redis URL for a shared resolution cache")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable the resolution cache")
	cmd.Flags().IntVar(&workers, "workers", 0, "number of concurrent resolution workers per scan")

	return cmd
}

// newHistoryStore connects the scan history backend.
func (c *CLI) newHistoryStore(ctx context.Context, mongoURI, mongoDB string) (store.Store, error) {
	if mongoURI == "" {
		c.Logger.Debug("no mongo URI, keeping scan history in memory")
		return store.NewMemoryStore(), nil
	}
	return store.NewMongoStore(ctx, mongoURI, mongoDB)
}
