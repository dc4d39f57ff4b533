package main

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"reviews_api/internal/adapters/commonground"
	"reviews_api/internal/adapters/observability"
	"reviews_api/internal/app"
	"reviews_api/internal/shared"
	mysqlrepo "reviews_api/internal/storage/mysql"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	cfg := shared.Load()

	// 1) initialize global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv, cfg.LogLevel)
	observability.Serve()

	log.Info().
		Str("base", cfg.SourceBase).
		Int("workers", cfg.ImportWorkers).
		Msg("importer starting")

	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("sql.Open failed")
	}
	if err := db.Ping(); err != nil {
		log.Fatal().Err(err).Msg("db.Ping failed")
	}
	log.Info().Msg("db ping ok")

	repo := mysqlrepo.New(db)

	if cfg.SourceKey == "" {
		log.Warn().Msg("SOURCE_API_KEY is empty")
	}
	client, err := commonground.New(cfg.SourceBase, cfg.SourceKey, cfg.SourceRPS)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize source client")
	}
	imp := app.NewImportService(client, repo)

	failed := false
	for _, coll := range app.ImportOrder {
		if err := importCollection(ctx, imp, coll, cfg.ImportWorkers); err != nil {
			log.Error().Err(err).Str("collection", coll).Msg("import aborted")
			failed = true
			break
		}
	}
	if failed {
		stop()
		os.Exit(1)
	}
	log.Info().Msg("import completed")
}

// importCollection fetches pages in batches of `workers`. The collection is
// done once any page in a batch comes back empty. Collections run one after
// another so that parents exist before children reference them.
func importCollection(ctx context.Context, imp *app.ImportService, coll string, workers int) error {
	sem := semaphore.NewWeighted(int64(workers))
	var imported, skipped atomic.Int64

	for first := 1; ; first += workers {
		var (
			wg       sync.WaitGroup
			mu       sync.Mutex
			done     bool
			firstErr error
		)
		for page := first; page < first+workers; page++ {
			// acquire before launching the goroutine; release inside it
			if err := sem.Acquire(ctx, 1); err != nil {
				return err
			}
			wg.Add(1)
			go func(page int) {
				defer wg.Done()
				defer sem.Release(1)

				res, err := imp.ImportPage(ctx, coll, page)
				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					if firstErr == nil {
						firstErr = err
					}
					return
				}
				if res.Fetched == 0 {
					done = true
				}
				imported.Add(int64(res.Imported))
				skipped.Add(int64(res.Skipped))
				log.Debug().Str("collection", coll).Int("page", page).
					Int("fetched", res.Fetched).Int("imported", res.Imported).Msg("page imported")
			}(page)
		}
		wg.Wait()
		if firstErr != nil {
			return firstErr
		}
		if done {
			break
		}
	}
	log.Info().Str("collection", coll).
		Int64("imported", imported.Load()).
		Int64("skipped", skipped.Load()).
		Msg("collection imported")
	return nil
}
