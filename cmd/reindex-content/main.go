// cmd/reindex-content/main.go
// Operator tool: rebuilds the search index from the primary store and
// reconciles like/save counters against the relation tables.
package main

import (
	"context"
	"database/sql"
	"flag"
	"log/slog"
	"os"
	"time"

	_ "github.com/lib/pq"

	"Mosaic/internal/config"
	"Mosaic/internal/core/content"
	postgresRepo "Mosaic/internal/db/postgres"
	"Mosaic/internal/db/sqlite"
	"Mosaic/internal/reindex"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

// run returns the process exit code so deferred closes finish before exit.
func run(args []string) int {
	fs := flag.NewFlagSet("reindex-content", flag.ContinueOnError)
	var (
		skipIndex    = fs.Bool("skip-index", false, "only reconcile counters")
		skipCounters = fs.Bool("skip-counters", false, "only rebuild the search index")
		batchSize    = fs.Int("batch", 500, "rows per primary-store batch")
		kindFlag     = fs.String("kind", "", "limit to one kind (feed|post)")
	)
	if err := fs.Parse(args); err != nil {
		return 2
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg := config.FromEnv()

	kinds := content.Kinds
	if *kindFlag != "" {
		kind, err := content.ParseKind(*kindFlag)
		if err != nil {
			logger.Error("invalid -kind", "error", err)
			return 2
		}
		kinds = []content.Kind{kind}
	}

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		return 1
	}
	defer func() { _ = db.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), time.Hour)
	defer cancel()

	var ix *sqlite.SearchIndex
	if !*skipIndex {
		if cfg.SearchIndexPath == "" {
			logger.Error("SEARCH_INDEX_PATH is empty, nothing to rebuild")
			return 1
		}
		ix, err = sqlite.Open(cfg.SearchIndexPath)
		if err != nil {
			logger.Error("failed to open search index", "error", err)
			return 1
		}
		defer func() { _ = ix.Close() }()
	}

	failed := false
	for _, kind := range kinds {
		if !*skipCounters {
			fixed, err := postgresRepo.NewCounterRepository(db, kind).Reconcile(ctx)
			if err != nil {
				logger.Error("counter reconcile failed", "kind", kind, "error", err)
				failed = true
			} else {
				logger.Info("counters reconciled", "kind", kind, "rows_fixed", fixed)
			}
		}

		if ix != nil {
			stats, err := reindex.Rebuild(ctx, kind, postgresRepo.NewDocumentSource(db, kind), ix, *batchSize)
			if err != nil {
				logger.Error("index rebuild failed", "kind", kind, "error", err)
				failed = true
				continue
			}
			logger.Info("index rebuilt", "kind", kind, "indexed", stats.Indexed, "pruned", stats.Pruned)
		}
	}

	if failed {
		return 1
	}
	return 0
}
