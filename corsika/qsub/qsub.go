// Package qsub stages and submits CORSIKA air-shower production jobs to
// a PBS-style batch cluster. Each job gets its own run directory named
// after its seed pair, a steering file, and a submission script; the
// CORSIKA binary itself is external and never run here.
package qsub

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/RaoOfPhysics/sapphire/internal/logging"
)

// Primary particle codes as CORSIKA's PRMPAR wants them.
var particleCodes = map[string]int{
	"gamma":    1,
	"electron": 3,
	"proton":   14,
	"iron":     5626,
}

// ErrUnknownParticle is returned for a primary particle name outside
// the supported table.
var ErrUnknownParticle = errors.New("qsub: unknown primary particle")

// ParticleCode translates a primary particle name to its CORSIKA code.
func ParticleCode(name string) (int, error) {
	code, ok := particleCodes[name]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownParticle, name)
	}
	return code, nil
}

// Runner submits a staged run directory to the batch system. The
// production runner shells out; tests inject a recorder.
type Runner interface {
	Run(ctx context.Context, runDir string) error
}

// ExecRunner submits by executing the staged run.sh in its directory.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, runDir string) error {
	cmd := exec.CommandContext(ctx, "./run.sh")
	cmd.Dir = runDir
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("submit %s: %w: %s", runDir, err, out)
	}
	return nil
}

// Options configures a Batch.
type Options struct {
	// Energy is the primary energy as log10(E/GeV). ERANGE becomes
	// 1.E{Energy} on both ends, a fixed-energy production.
	Energy int
	// Particle is the primary particle name: gamma, electron, proton
	// or iron.
	Particle string
	// Queue is the batch queue to submit to.
	Queue string

	// DataDir holds finished runs, TempDir the running ones. Both are
	// scanned for taken seed pairs.
	DataDir string
	TempDir string
	// CorsikaDir is the CORSIKA run directory whose files get
	// symlinked into the run directory. Empty skips the linking.
	CorsikaDir string

	Runner Runner
	Rand   *rand.Rand
	Logger logging.Logger
}

// Batch stages and submits one CORSIKA production job.
type Batch struct {
	energy     int
	particle   int
	queue      string
	dataDir    string
	tempDir    string
	corsikaDir string

	runner Runner
	rng    *rand.Rand
	log    logging.Logger

	seed1  int
	seed2  int
	runDir string
}

// NewBatch validates the options and builds a batch. A nil Rand falls
// back to a wall-clock source, a nil Runner to the exec runner.
func NewBatch(opts Options) (*Batch, error) {
	code, err := ParticleCode(opts.Particle)
	if err != nil {
		return nil, err
	}
	if opts.Energy <= 0 {
		return nil, fmt.Errorf("qsub: energy exponent must be positive, got %d", opts.Energy)
	}
	if opts.Queue == "" {
		return nil, errors.New("qsub: queue is required")
	}
	if opts.DataDir == "" || opts.TempDir == "" {
		return nil, errors.New("qsub: data and temp directories are required")
	}

	b := &Batch{
		energy:     opts.Energy,
		particle:   code,
		queue:      opts.Queue,
		dataDir:    opts.DataDir,
		tempDir:    opts.TempDir,
		corsikaDir: opts.CorsikaDir,
		runner:     opts.Runner,
		rng:        opts.Rand,
		log:        opts.Logger,
	}
	if b.runner == nil {
		b.runner = ExecRunner{}
	}
	if b.rng == nil {
		b.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if b.log == nil {
		b.log = logging.Noop()
	}
	return b, nil
}

// Seeds returns the seed pair drawn for this batch, zero before Run.
func (b *Batch) Seeds() (int, int) { return b.seed1, b.seed2 }

// RunDir returns the staged run directory, empty before Run.
func (b *Batch) RunDir() string { return b.runDir }

// Run draws an unused seed pair, stages the run directory, and submits
// it through the runner.
func (b *Batch) Run(ctx context.Context) error {
	taken, err := b.takenSeeds()
	if err != nil {
		return err
	}
	b.drawSeeds(taken)

	if err := b.stage(); err != nil {
		return err
	}

	b.log.Info(ctx, "submitting corsika batch job",
		logging.Int("seed1", b.seed1),
		logging.Int("seed2", b.seed2),
		logging.Int("energy_log10_gev", b.energy),
		logging.Int("particle", b.particle),
		logging.String("queue", b.queue))
	if err := b.runner.Run(ctx, b.runDir); err != nil {
		return err
	}
	return nil
}

// takenSeeds lists the seed-pair directory names already present in the
// data and temp directories.
func (b *Batch) takenSeeds() (map[string]bool, error) {
	taken := make(map[string]bool)
	for _, dir := range []string{b.dataDir, b.tempDir} {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return nil, fmt.Errorf("scan seeds in %s: %w", dir, err)
		}
		for _, e := range entries {
			taken[e.Name()] = true
		}
	}
	return taken, nil
}

// drawSeeds picks a seed pair not present in taken.
func (b *Batch) drawSeeds(taken map[string]bool) {
	for {
		s1 := 1 + b.rng.Intn(900_000_000-1)
		s2 := 1 + b.rng.Intn(900_000_000-1)
		name := fmt.Sprintf("%d_%d", s1, s2)
		if taken[name] {
			continue
		}
		b.seed1 = s1
		b.seed2 = s2
		b.runDir = filepath.Join(b.tempDir, name)
		return
	}
}

// stage creates the run directory with the steering file, the
// submission script, and the CORSIKA run-file symlinks.
func (b *Batch) stage() error {
	if err := os.Mkdir(b.runDir, 0o775); err != nil {
		return fmt.Errorf("create run dir: %w", err)
	}
	if err := b.writeSteeringFile(); err != nil {
		return err
	}
	if err := b.writeSubmitScript(); err != nil {
		return err
	}
	if b.corsikaDir != "" {
		if err := b.symlinkCorsika(); err != nil {
			return err
		}
	}
	return nil
}

func (b *Batch) writeSteeringFile() error {
	path := filepath.Join(b.runDir, "input-hisparc")
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create steering file: %w", err)
	}
	defer f.Close()

	err = steeringTemplate.Execute(f, steeringParams{
		Seed1:    b.seed1,
		Seed2:    b.seed2,
		Particle: b.particle,
		Energy:   b.energy,
	})
	if err != nil {
		return fmt.Errorf("render steering file: %w", err)
	}
	return nil
}

func (b *Batch) writeSubmitScript() error {
	path := filepath.Join(b.runDir, "run.sh")
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o774)
	if err != nil {
		return fmt.Errorf("create submit script: %w", err)
	}
	defer f.Close()

	// The create mode is umask-filtered; the script must stay group
	// executable for the batch system.
	if err := f.Chmod(0o774); err != nil {
		return fmt.Errorf("chmod submit script: %w", err)
	}

	err = scriptTemplate.Execute(f, scriptParams{
		Seed1:  b.seed1,
		Seed2:  b.seed2,
		Queue:  b.queue,
		RunDir: b.runDir,
	})
	if err != nil {
		return fmt.Errorf("render submit script: %w", err)
	}
	return nil
}

// symlinkCorsika links every file from the CORSIKA run directory into
// the run directory. CORSIKA wants its tables next to the steering
// file.
func (b *Batch) symlinkCorsika() error {
	entries, err := os.ReadDir(b.corsikaDir)
	if err != nil {
		return fmt.Errorf("read corsika dir: %w", err)
	}
	for _, e := range entries {
		src := filepath.Join(b.corsikaDir, e.Name())
		dst := filepath.Join(b.runDir, e.Name())
		if err := os.Symlink(src, dst); err != nil {
			return fmt.Errorf("link %s: %w", e.Name(), err)
		}
	}
	return nil
}
