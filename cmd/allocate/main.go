// Command allocate runs one allocation over a YAML fixture in memory and
// prints the committed pairings and statistics as YAML.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"gopkg.in/yaml.v3"

	"github.com/okian/allot/internal/adapters/repository"
	app "github.com/okian/allot/internal/app"
	"github.com/okian/allot/internal/domain/allocation"
	"github.com/okian/allot/internal/domain/matching"
	"github.com/okian/allot/internal/domain/model"
	"github.com/okian/allot/internal/fixture"
	"github.com/okian/allot/pkg/logger"
)

type options struct {
	fixture string
	phase   string
	seed    int64
	rule    string
}

// report is the YAML document written on success.
type report struct {
	Phase      string                        `yaml:"phase"`
	Pairings   []allocation.Pairing          `yaml:"pairings"`
	Unassigned []string                      `yaml:"employee_without_project"`
	Empty      []string                      `yaml:"project_without_employee"`
	Stats      *model.PhaseStats             `yaml:"stats"`
	Projects   map[string]model.ProjectStats `yaml:"projects"`
}

func main() {
	var (
		opts    options
		verbose = flag.Bool("verbose", false, "Log every pairing to stderr")
	)
	flag.StringVar(&opts.fixture, "fixture", "", "YAML fixture with employees, projects and phases (required)")
	flag.StringVar(&opts.phase, "phase", "", "Title of the phase to allocate (default: the first phase)")
	flag.Int64Var(&opts.seed, "seed", 0, "Random seed for reproducible runs (0 seeds from the clock)")
	flag.StringVar(&opts.rule, "rule", "all", "Competency rule: all or last")
	flag.Parse()

	level := "warn"
	if *verbose {
		level = "debug"
	}
	if err := logger.Init(logger.WithOutput(os.Stderr), logger.WithLevel(level)); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, opts, os.Stdout); err != nil {
		os.Stderr.WriteString("allocate: " + err.Error() + "\n")
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options, out io.Writer) error {
	if opts.fixture == "" {
		return errors.New("-fixture is required")
	}
	rule, err := matching.ParseRule(opts.rule)
	if err != nil {
		return err
	}
	seed, err := fixture.Load(opts.fixture)
	if err != nil {
		return err
	}
	cs := seed.Changeset()
	if len(cs.Phases) == 0 {
		return errors.New("fixture has no phases")
	}
	phaseID := cs.Phases[0].ID
	if opts.phase != "" {
		id, ok := fixture.PhaseID(cs, opts.phase)
		if !ok {
			return fmt.Errorf("phase %q not in fixture", opts.phase)
		}
		phaseID = id
	}

	store := repository.NewMemStore(ctx)
	defer store.Close()
	svc := app.New(
		app.WithStore(store),
		app.WithCompetencyRule(rule),
		app.WithRandomSeed(opts.seed),
		app.WithLogger(logger.Get().Named("allocate")),
	)
	if err := svc.Start(ctx); err != nil {
		return err
	}
	defer svc.Stop()
	if err := svc.Import(ctx, cs); err != nil {
		return err
	}

	res, err := svc.AllocatePhase(ctx, phaseID)
	if err != nil {
		return err
	}

	rep := report{
		Phase:      res.Phase.Title,
		Pairings:   res.Pairings,
		Unassigned: res.Unassigned,
		Empty:      res.Empty,
		Stats:      res.Phase.Stats,
		Projects:   make(map[string]model.ProjectStats, len(res.Phase.Projects)),
	}
	for _, title := range res.Phase.Projects {
		p, err := svc.GetProject(ctx, title)
		if err != nil {
			return err
		}
		if p.Stats != nil {
			rep.Projects[title] = *p.Stats
		}
	}

	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)
	if err := enc.Encode(rep); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return enc.Close()
}
