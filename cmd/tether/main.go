// cmd/tether is the ingest CLI. It reads raw text items (one per line) from
// stdin or from the files given as arguments, runs each through the
// extract → enrich → resolve → index pipeline, and prints the resolved
// entity identifier for every line to stdout.
//
// ALL logging goes to stderr so that stdout stays a clean, one-ID-per-line
// stream that can be piped into other tools.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/scrypster/tether/internal/config"
	"github.com/scrypster/tether/internal/engine"
	"github.com/scrypster/tether/internal/enrich"
	"github.com/scrypster/tether/internal/extract"
	"github.com/scrypster/tether/internal/pipeline"
	"github.com/scrypster/tether/internal/storage"
	"github.com/scrypster/tether/internal/storage/postgres"
	"github.com/scrypster/tether/internal/storage/sqlite"
	"github.com/scrypster/tether/pkg/types"
)

// cachedStore routes index operations through the LRU decorator while keeping
// the provenance methods on the raw store. Inserts must go through the cache
// so that stale lookup entries are invalidated.
type cachedStore struct {
	*storage.CachedIndex
	storage.ProvenanceStore
}

func main() {
	log.SetOutput(os.Stderr)
	log.SetPrefix("tether: ")
	log.SetFlags(log.LstdFlags)

	// main exits via the return value of run so that run's deferred cleanup
	// (closing the store) is never skipped by os.Exit.
	os.Exit(run(os.Args[1:], os.Stdin))
}

// run executes the CLI with the given arguments and stdin, returning the
// process exit code.
func run(args []string, stdin io.Reader) int {
	flags := flag.NewFlagSet("tether", flag.ContinueOnError)
	workers := flags.Int("workers", 0, "batch worker pool size (default: TETHER_WORKERS)")
	format := flags.String("format", "text", `input format: "text" (pattern extraction) or "fields" (TYPE=value; TYPE=value lines)`)
	if err := flags.Parse(args); err != nil {
		return 2
	}

	var extractor extract.Extractor
	switch *format {
	case "text":
		extractor = extract.NewPatternExtractor()
	case "fields":
		extractor = extract.NewFieldExtractor()
	default:
		log.Printf("unknown input format %q", *format)
		return 2
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Printf("failed to load config: %v", err)
		return 1
	}
	if *workers <= 0 {
		*workers = cfg.Enrichment.Workers
	}

	store, err := openStore(cfg)
	if err != nil {
		log.Printf("failed to open storage: %v", err)
		return 1
	}
	defer store.Close()

	// The resolver and the pipeline must see the same view of the index, so
	// when caching is enabled both are wired through the decorator.
	var index storage.AttributeIndex = store
	if cfg.Storage.LookupCache > 0 {
		cached, err := storage.NewCachedIndex(store, cfg.Storage.LookupCache)
		if err != nil {
			log.Printf("failed to create lookup cache: %v", err)
			return 1
		}
		index = cached
		store = cachedStore{CachedIndex: cached, ProvenanceStore: store}
	}

	weights, err := config.LoadWeights(cfg.Engine.WeightsFile)
	if err != nil {
		log.Printf("failed to load weights: %v", err)
		return 1
	}

	resolver := engine.NewResolver(index, engine.Weights(weights), cfg.Engine.MergeThreshold)

	registry := enrich.NewRegistry()
	places := enrich.NewPlacesEnricher(enrich.PlacesConfig{
		APIKey:            cfg.Enrichment.MapsAPIKey,
		RequestsPerSecond: cfg.Enrichment.RequestsPerSecond,
	})
	registry.Register([]string{types.AttrOrg, types.AttrGPE}, places)
	registry.Register([]string{types.AttrPerson, types.AttrGPE}, places)

	pipe := pipeline.New(extractor, registry, resolver, store)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		<-sigCh
		log.Println("received shutdown signal")
		cancel()
	}()

	inputs := flags.Args()
	if len(inputs) == 0 {
		inputs = []string{"-"}
	}

	exitCode := 0
	for _, path := range inputs {
		if err := ingest(ctx, pipe, store, stdin, path, *workers); err != nil {
			log.Printf("ingest %s: %v", path, err)
			exitCode = 1
		}
	}

	stats, err := pipe.Stats(ctx)
	if err != nil {
		log.Printf("failed to read index stats: %v", err)
	} else {
		log.Printf("index: %d entities, %d entries, %d observations",
			stats.Entities, stats.Entries, stats.Observations)
	}

	return exitCode
}

// openStore opens the backend selected by TETHER_STORAGE_ENGINE.
func openStore(cfg *config.Config) (storage.Store, error) {
	switch cfg.Storage.StorageEngine {
	case "sqlite":
		if err := os.MkdirAll(cfg.Storage.DataPath, 0o700); err != nil {
			return nil, fmt.Errorf("create data directory %q: %w", cfg.Storage.DataPath, err)
		}
		return sqlite.NewStore(filepath.Join(cfg.Storage.DataPath, "tether.db"))
	case "postgres":
		if cfg.Storage.PostgresDSN == "" {
			return nil, fmt.Errorf("TETHER_POSTGRES_DSN is required for the postgres engine")
		}
		return postgres.NewStore(cfg.Storage.PostgresDSN)
	default:
		return nil, fmt.Errorf("unknown storage engine %q", cfg.Storage.StorageEngine)
	}
}

// ingest processes one input (a file path, or "-" for stdin) and writes the
// per-line resolution to stdout.
func ingest(ctx context.Context, pipe *pipeline.Pipeline, store storage.Store, stdin io.Reader, path string, workers int) error {
	var (
		r    io.Reader
		name string
	)
	if path == "-" {
		r = stdin
		name = "stdin"
	} else {
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		r = f
		name = filepath.Base(path)
	}

	src := types.Source{
		ID:         uuid.NewString(),
		Filename:   name,
		ImportedAt: time.Now().UTC(),
	}
	if err := store.RecordSource(ctx, src); err != nil {
		return fmt.Errorf("record source: %w", err)
	}

	items, err := readItems(r)
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}
	if len(items) == 0 {
		log.Printf("%s: no input lines", name)
		return nil
	}

	start := time.Now()
	results := pipe.ProcessBatch(ctx, src.ID, items, workers)

	merged, created, failed := 0, 0, 0
	for _, item := range results {
		if item.Err != nil {
			failed++
			fmt.Println("ERROR")
			continue
		}
		verdict := "new"
		if item.Result.Merged {
			verdict = "merged"
			merged++
		} else {
			created++
		}
		fmt.Printf("%s\t%s\t%.2f\n", item.Result.EntityID, verdict, item.Result.BestScore)
	}

	log.Printf("%s: %d items in %s (%d merged, %d new, %d failed)",
		name, len(items), time.Since(start).Round(time.Millisecond), merged, created, failed)
	if failed > 0 {
		return fmt.Errorf("%d of %d items failed", failed, len(items))
	}
	return nil
}

// readItems collects non-empty lines from r. Blank lines are skipped rather
// than resolved: an empty feature bag would always mint a fresh entity.
func readItems(r io.Reader) ([]string, error) {
	var items []string
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if len(line) == 0 {
			continue
		}
		items = append(items, line)
	}
	return items, scanner.Err()
}
