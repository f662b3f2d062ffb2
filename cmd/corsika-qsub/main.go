// Command corsika-qsub stages and submits CORSIKA air-shower production
// jobs to the batch cluster.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/RaoOfPhysics/sapphire/corsika/qsub"
	"github.com/RaoOfPhysics/sapphire/internal/logging"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "corsika-qsub: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	energy := flag.Int("energy", 7, "primary energy as log10(E/GeV)")
	particle := flag.String("particle", "proton", "primary particle: gamma, electron, proton, or iron")
	queueName := flag.String("queue", "stbcq", "batch queue to submit to")
	jobs := flag.Int("jobs", 1, "number of jobs to stage and submit")
	dataDir := flag.String("data-dir", "/data/hisparc/corsika/data", "finished run directory")
	tempDir := flag.String("temp-dir", "/data/hisparc/corsika/running", "staging directory")
	corsikaDir := flag.String("corsika-dir", "/data/hisparc/corsika/corsika-74000/run",
		"CORSIKA run directory to symlink into each job")
	flag.Parse()

	log := logging.NewFromEnv()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	for i := 0; i < *jobs; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		batch, err := qsub.NewBatch(qsub.Options{
			Energy:     *energy,
			Particle:   *particle,
			Queue:      *queueName,
			DataDir:    *dataDir,
			TempDir:    *tempDir,
			CorsikaDir: *corsikaDir,
			Logger:     log,
		})
		if err != nil {
			return err
		}
		if err := batch.Run(ctx); err != nil {
			return err
		}

		s1, s2 := batch.Seeds()
		fmt.Printf("submitted job %d/%d: seeds %d_%d\n", i+1, *jobs, s1, s2)
	}
	return nil
}
