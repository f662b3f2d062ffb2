// Command esd-fetch downloads event summary data for a station from the
// public archive into the local event store.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/RaoOfPhysics/sapphire/esd"
	"github.com/RaoOfPhysics/sapphire/internal/config"
	"github.com/RaoOfPhysics/sapphire/internal/logging"
	"github.com/RaoOfPhysics/sapphire/internal/observability"
	"github.com/RaoOfPhysics/sapphire/internal/storage"
)

const dateLayout = "2006-01-02"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "esd-fetch: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	station := flag.Int("station", 0, "station ID (required)")
	startStr := flag.String("start", "", "range start, YYYY-MM-DD (default yesterday)")
	endStr := flag.String("end", "", "range end, YYYY-MM-DD (default start + 1 day)")
	batchSize := flag.Int("batch", 500, "event rows per storage batch")
	flag.Parse()

	if *station <= 0 {
		return errors.New("-station is required")
	}
	start, end, err := parseRange(*startStr, *endStr)
	if err != nil {
		return err
	}

	log := logging.NewFromEnv()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics, err := observability.NewSimCollector(nil)
	if err != nil {
		return fmt.Errorf("init metrics: %w", err)
	}

	store, err := storage.Open(cfg.Storage.Driver, cfg.Storage.DSN())
	if err != nil {
		return err
	}
	defer store.Close()

	writer := storage.NewBatchEventWriter(store, *batchSize, time.Second)

	bar := progressbar.NewOptions(1000,
		progressbar.OptionSetDescription(fmt.Sprintf("station %d", *station)),
		progressbar.OptionSetWriter(os.Stderr),
	)

	client := esd.NewClient(esd.Config{
		BaseURL: cfg.Archive.BaseURL,
		Timeout: cfg.Archive.Timeout,
		Logger:  log,
		Metrics: metrics,
		Progress: func(fraction float64) {
			_ = bar.Set(int(fraction * 1000))
		},
	})

	downloadErr := client.DownloadData(ctx, writer, *station, start, end)
	if err := writer.Stop(); err != nil {
		if downloadErr != nil {
			return fmt.Errorf("%w (and flush failed: %v)", downloadErr, err)
		}
		return err
	}
	if downloadErr != nil {
		return downloadErr
	}

	_ = bar.Finish()
	fmt.Fprintln(os.Stderr)

	n, err := store.CountEvents(*station)
	if err != nil {
		return err
	}
	fmt.Printf("station %d: %d events stored\n", *station, n)
	return nil
}

// parseRange turns the date flags into the client's time range. Empty
// flags stay zero, the client applies its own defaults.
func parseRange(startStr, endStr string) (time.Time, time.Time, error) {
	var start, end time.Time
	var err error
	if startStr != "" {
		if start, err = time.Parse(dateLayout, startStr); err != nil {
			return start, end, fmt.Errorf("parse -start: %w", err)
		}
	}
	if endStr != "" {
		if end, err = time.Parse(dateLayout, endStr); err != nil {
			return start, end, fmt.Errorf("parse -end: %w", err)
		}
	}
	return start, end, nil
}
