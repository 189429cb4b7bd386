package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/licenscan/licenscan/pkg/cache"
	"github.com/licenscan/licenscan/pkg/deps"
	"github.com/licenscan/licenscan/pkg/license"
	"github.com/licenscan/licenscan/pkg/lockfile"
	"github.com/licenscan/licenscan/pkg/registry"
	"github.com/licenscan/licenscan/pkg/report"
	"github.com/licenscan/licenscan/pkg/scan"
	"github.com/licenscan/licenscan/pkg/session"
)

// scanOptions collects the scan command's flags.
type scanOptions struct {
	recursive    bool
	allowed      []string
	unknownOnly  bool
	retryUnknown bool
	refresh      bool
	csvOut       bool
	treeOut      bool
	dotOut       bool
	svgOut       bool
	infoOnly     bool
	output       string
	workers      int
	noCache      bool
	redisURL     string
	githubToken  string
}

// scanCommand creates the scan command.
func (c *CLI) scanCommand() *cobra.Command {
	var opts scanOptions

	cmd := &cobra.Command{
		Use:   "scan [paths...]",
		Short: "Resolve licenses for every package reachable from a lockfile",
		Long: `Scan parses one or more lockfiles (yarn.lock, package-lock.json,
poetry.lock, .csproj), resolves every transitive package against its
registry, and reports each package's license.

With --allowed, licenses are checked against the given patterns ("*" is a
wildcard) and the command exits non-zero when violations are found.`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.retryUnknown && !opts.unknownOnly {
				return fmt.Errorf("--retry requires --unknown")
			}
			return c.runScan(cmd.Context(), args, opts)
		},
	}

	cmd.Flags().BoolVarP(&opts.recursive, "recursive", "r", false, "discover lockfiles recursively under the given directories")
	cmd.Flags().StringSliceVarP(&opts.allowed, "allowed", "a", nil, "allowed license patterns (e.g. MIT,Apache-2.0,BSD*)")
	cmd.Flags().BoolVar(&opts.unknownOnly, "unknown", false, "show only packages with unknown licenses, with diagnostics")
	cmd.Flags().BoolVar(&opts.retryUnknown, "retry", false, "re-resolve cached packages whose license is unknown (requires --unknown)")
	cmd.Flags().BoolVar(&opts.refresh, "refresh", false, "ignore cached results and re-resolve every package")
	cmd.Flags().BoolVar(&opts.csvOut, "csv", false, "output deduplicated CSV (name,url,license)")
	cmd.Flags().BoolVar(&opts.treeOut, "tree", false, "output the dependency tree")
	cmd.Flags().BoolVar(&opts.dotOut, "dot", false, "output the dependency graph in Graphviz DOT format")
	cmd.Flags().BoolVar(&opts.svgOut, "svg", false, "render the dependency graph to SVG")
	cmd.Flags().BoolVar(&opts.infoOnly, "info", false, "list parsed packages without resolving, enriched from the cache")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "write csv/dot/svg output to a file instead of stdout")
	cmd.Flags().IntVar(&opts.workers, "workers", 0, "number of concurrent resolution workers")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "disable the resolution cache")
	cmd.Flags().StringVar(&opts.redisURL, "redis", "", "redis URL for a shared resolution cache")
	cmd.Flags().StringVar(&opts.githubToken, "github-token", "", "GitHub API token for repository-addressed packages")

	return cmd
}

func (c *CLI) runScan(ctx context.Context, args []string, opts scanOptions) error {
	logger := loggerFromContext(ctx)

	paths, err := collectLockfiles(args, opts.recursive)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return fmt.Errorf("no lockfiles found")
	}

	var parsed []*deps.Record
	for _, path := range paths {
		records, err := lockfile.ParseFile(path)
		if err != nil {
			return err
		}
		logger.Debug("parsed lockfile", "path", path, "packages", len(records))
		parsed = append(parsed, records...)
	}

	store := c.newCacheStore(ctx, opts.noCache, opts.redisURL)
	defer store.Close()

	if opts.infoOnly {
		return c.printParsed(ctx, parsed, store)
	}

	sess := session.New(paths...)
	logger.Debug("scan starting", "session", sess.ID, "seeds", len(parsed))

	resolver := registry.New(registry.Options{
		GitHubToken: opts.githubToken,
		Preresolved: lockfile.Preresolved(parsed),
		Logger:      logger,
	})

	trackEdges := opts.treeOut || opts.dotOut || opts.svgOut
	engine := scan.New(resolver, store, scan.Options{
		Workers:      opts.workers,
		RetryUnknown: opts.retryUnknown,
		TrackEdges:   trackEdges,
		Refresh:      opts.refresh,
		Logger:       logger,
	})

	spinner := newSpinner(ctx, fmt.Sprintf("Resolving %d packages...", len(parsed)))
	spinner.Start()
	result, err := engine.Run(ctx, lockfile.Identities(parsed))
	if err != nil {
		spinner.StopWithError(fmt.Sprintf("Scan failed: %v", err))
		return err
	}
	sess.Finish()
	spinner.StopWithSuccess(fmt.Sprintf("Resolved %d packages (%s)",
		len(result.Records), sess.Duration().Round(time.Millisecond)))

	switch {
	case opts.csvOut:
		return writeOutput(opts.output, func(w *os.File) error {
			return report.WriteCSV(w, result.Records)
		})
	case opts.treeOut:
		return report.WriteTree(os.Stdout, result.Records, result.Edges)
	case opts.dotOut:
		return writeOutput(opts.output, func(w *os.File) error {
			_, err := w.WriteString(report.ToDOT(result.Records, result.Edges))
			return err
		})
	case opts.svgOut:
		svg, err := report.RenderSVG(ctx, report.ToDOT(result.Records, result.Edges))
		if err != nil {
			return err
		}
		return writeOutput(opts.output, func(w *os.File) error {
			_, err := w.Write(svg)
			return err
		})
	}

	return c.printResults(result.Records, opts)
}

// collectLockfiles turns command arguments into lockfile paths. Without
// --recursive each argument is a lockfile; with it, each argument is a
// directory to search (defaulting to the current one).
func collectLockfiles(args []string, recursive bool) ([]string, error) {
	if !recursive {
		if len(args) == 0 {
			return nil, fmt.Errorf("no lockfile given; pass a path or use --recursive")
		}
		return args, nil
	}

	dirs := args
	if len(dirs) == 0 {
		dirs = []string{"."}
	}
	var paths []string
	for _, dir := range dirs {
		found, err := lockfile.Find(dir)
		if err != nil {
			return nil, fmt.Errorf("search %s: %w", dir, err)
		}
		paths = append(paths, found...)
	}
	return paths, nil
}

// printParsed lists parsed packages without resolving them, showing the
// cached license where one exists.
func (c *CLI) printParsed(ctx context.Context, parsed []*deps.Record, store cache.Store) error {
	printInfo("Parsed %d packages", len(parsed))
	for _, rec := range parsed {
		lic := rec.License
		if lic == "" {
			lic = lookupCachedLicense(ctx, store, rec.Identity)
		}
		line := "  " + StyleValue.Render(rec.Display())
		if lic != "" {
			line += " " + StyleDim.Render("(") + renderLicense(lic, true) + StyleDim.Render(")")
		}
		fmt.Println(line)
	}
	return nil
}

// printResults renders the default package listing, violations and the
// license histogram, and fails when violations exist.
func (c *CLI) printResults(records []*deps.Record, opts scanOptions) error {
	checker := license.NewChecker(opts.allowed)
	summary := report.Summarize(records, checker)

	sorted := append([]*deps.Record(nil), records...)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Display() < sorted[j].Display()
	})

	printNewline()
	for _, rec := range sorted {
		if opts.unknownOnly && rec.License != deps.UnknownLicense {
			continue
		}
		fmt.Println(StyleValue.Render(rec.Display()) + " " + renderLicense(rec.License, checker.Allowed(rec.License)))
		if rec.URL != "" {
			printDetail("%s", rec.URL)
		}
		if rec.License == deps.UnknownLicense && rec.DebugInfo != "" {
			printDetail("%s", rec.DebugInfo)
		}
	}

	printNewline()
	entries := make([]histogramEntry, 0, len(summary.ByLicense))
	for _, b := range summary.ByLicense {
		entries = append(entries, histogramEntry{count: b.Count, label: b.License, url: b.URL})
	}
	printHistogram(entries)

	if summary.Unknown > 0 {
		printWarning("%d packages have unknown licenses", summary.Unknown)
	}

	if len(summary.Violations) > 0 {
		printNewline()
		printError("%d packages violate the allowed licenses (%s)",
			len(summary.Violations), strings.Join(opts.allowed, ", "))
		for _, rec := range summary.Violations {
			printDetail("%s (%s)", rec.Display(), rec.License)
		}
		return fmt.Errorf("license violations found")
	}

	printSuccess("All %d licenses comply", summary.Total-summary.Unknown)
	return nil
}

// lookupCachedLicense reads a record's license from the cache, returning ""
// on any miss or error.
func lookupCachedLicense(ctx context.Context, store cache.Store, id deps.Identity) string {
	data, found, err := store.Get(ctx, deps.Hash(id))
	if err != nil || !found {
		return ""
	}
	var rec deps.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return ""
	}
	return rec.License
}

// writeOutput writes to the given file, or stdout when path is empty.
func writeOutput(path string, fn func(w *os.File) error) error {
	if path == "" {
		return fn(os.Stdout)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := fn(f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	printFile(path)
	return nil
}
