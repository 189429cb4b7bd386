// Package cli implements the licenscan command-line interface.
//
// This package provides commands for scanning dependency lockfiles,
// managing the resolution cache, and serving the HTTP API. The CLI is
// built using cobra and supports verbose logging via the
// charmbracelet/log library.
//
// # Commands
//
// The main commands are:
//   - scan: Resolve licenses for every package reachable from a lockfile
//   - cache: Manage the resolution cache
//   - serve: Run the HTTP API
//
// # Logging
//
// All commands support --verbose (-v) for debug-level logging. Loggers are
// passed through context.Context to allow structured progress tracking.
//
// # Example
//
//	import "github.com/licenscan/licenscan/internal/cli"
//
//	func main() {
//	    c := cli.New(os.Stderr, cli.LogInfo)
//	    if err := c.RootCommand().Execute(); err != nil {
//	        os.Exit(1)
//	    }
//	}
package cli

import (
	"context"
	"io"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/licenscan/licenscan/pkg/buildinfo"
	"github.com/licenscan/licenscan/pkg/cache"
)

// appName is the application name used for directories and display.
const appName = "licenscan"

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{
		Logger: log.NewWithOptions(w, log.Options{
			ReportTimestamp: true,
			TimeFormat:      "15:04:05.00",
			Level:           level,
		}),
	}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          appName,
		Short:        "licenscan resolves and checks licenses across dependency graphs",
		Long:         `licenscan scans dependency lockfiles (yarn.lock, package-lock.json, poetry.lock, .csproj), resolves every transitive package against its registry, and reports license compliance against an allow-list.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			cmd.SetContext(withLogger(cmd.Context(), c.Logger))
		},
	}

	root.SetVersionTemplate(buildinfo.Template())

	root.AddCommand(c.scanCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// newCacheStore selects the cache backend from flags: Redis when a URL is
// given, no caching when disabled, the file cache otherwise.
func (c *CLI) newCacheStore(ctx context.Context, noCache bool, redisURL string) cache.Store {
	if noCache {
		return cache.NewNullStore()
	}
	if redisURL != "" {
		store, err := cache.NewRedisStore(ctx, redisURL)
		if err != nil {
			c.Logger.Warn("redis unavailable, continuing without cache", "error", err)
			return cache.NewNullStore()
		}
		return store
	}

	dir, err := cache.DefaultDir()
	if err != nil {
		return cache.NewNullStore()
	}
	store, err := cache.NewFileStore(dir)
	if err != nil {
		c.Logger.Warn("file cache unavailable, continuing without cache", "error", err)
		return cache.NewNullStore()
	}
	return store
}

// ctxKey is the type for context keys used in this package.
type ctxKey int

const loggerKey ctxKey = 0

// withLogger returns a new context with the given logger attached.
func withLogger(ctx context.Context, l *log.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// loggerFromContext retrieves the logger from ctx, falling back to
// log.Default() so commands always have a valid logger.
func loggerFromContext(ctx context.Context) *log.Logger {
	if l, ok := ctx.Value(loggerKey).(*log.Logger); ok {
		return l
	}
	return log.Default()
}
