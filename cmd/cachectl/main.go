package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/joseph-ayodele/retypeset/internal/cache"
	"github.com/joseph-ayodele/retypeset/internal/common"
)

const usage = `Usage: cachectl [flags] <command>

Commands:
  list    print every cached entry (fingerprint, size, created)
  stats   print entry count and total size
  clear   delete every cached entry

Flags are read after the command is stripped; cache location comes from
CACHE_DRIVER / CACHE_PATH / CACHE_DSN or --config.
`

func main() {
	var (
		cfgPath = flag.String("config", "", "optional YAML config file")
		quiet   = flag.Bool("quiet", false, "errors only")
	)
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	command := flag.Arg(0)

	level := slog.LevelInfo
	if *quiet {
		level = slog.LevelError
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	cfg := common.LoadConfig()
	if *cfgPath != "" {
		if err := cfg.MergeFile(*cfgPath); err != nil {
			logger.Error("failed to load config file", "path", *cfgPath, "error", err)
			os.Exit(1)
		}
	}

	ctx := context.Background()
	store, err := cache.OpenStore(ctx, cfg.Cache, logger)
	if err != nil {
		logger.Error("failed to open cache store", "driver", cfg.Cache.Driver, "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Warn("cache store close failed", "error", err)
		}
	}()

	admin, ok := store.(cache.AdminStore)
	if !ok {
		logger.Error("store has no admin surface", "driver", cfg.Cache.Driver)
		os.Exit(1)
	}

	if err := run(ctx, command, admin); err != nil {
		logger.Error("command failed", "command", command, "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, command string, admin cache.AdminStore) error {
	switch command {
	case "list":
		entries, err := admin.List(ctx)
		if err != nil {
			return err
		}
		for _, e := range entries {
			fmt.Printf("%s\t%d\t%s\n", e.Fingerprint.Hex(), e.Size, e.CreatedAt)
		}
		return nil

	case "stats":
		entries, err := admin.List(ctx)
		if err != nil {
			return err
		}
		var total int
		for _, e := range entries {
			total += e.Size
		}
		fmt.Printf("entries: %d\n", len(entries))
		fmt.Printf("bytes:   %d\n", total)
		return nil

	case "clear":
		n, err := admin.DeleteAll(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("deleted %d entries\n", n)
		return nil

	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", command)
	}
}
