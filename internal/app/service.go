// Package service provides the core business service that implements
// the dependencies required by the HTTP API and the offline runner.
//
// Every mutating operation follows the same path: load a snapshot of the
// records it touches, run the domain operation on a ledger, then commit the
// ledger's changeset in one store call. Mutations are serialized.
package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/okian/allot/internal/adapters/repository"
	"github.com/okian/allot/internal/domain/ledger"
	"github.com/okian/allot/internal/domain/matching"
	"github.com/okian/allot/internal/domain/model"
	"github.com/okian/allot/pkg/logger"
)

// Store kinds accepted by WithStoreKind.
const (
	StoreMemory = "memory"
	StoreSQLite = "sqlite"
)

// ErrNotStarted is returned by operations called before Start.
var ErrNotStarted = errors.New("service not started")

// Service implements the API dependencies for the allocation system.
type Service struct {
	mu sync.RWMutex
	// write serializes snapshot-to-commit sequences.
	write sync.Mutex

	store      repository.Store
	ownsStore  bool
	storeKind  string
	sqlitePath string

	rule matching.CompetencyRule
	seed int64
	rng  *rand.Rand
	now  func() time.Time

	started bool
	logger  logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithStore injects a ready store. The service does not close it.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithStoreKind selects the store Start opens: StoreMemory or StoreSQLite.
func WithStoreKind(kind string) Option {
	return func(s *Service) {
		if kind != "" {
			s.storeKind = kind
		}
	}
}

// WithSQLitePath sets the database file for StoreSQLite.
func WithSQLitePath(path string) Option {
	return func(s *Service) {
		if path != "" {
			s.sqlitePath = path
		}
	}
}

// WithCompetencyRule sets how per-skill competency checks are combined.
func WithCompetencyRule(rule matching.CompetencyRule) Option {
	return func(s *Service) {
		s.rule = rule
	}
}

// WithRandomSeed makes allocation runs reproducible. Zero keeps time seeding.
func WithRandomSeed(seed int64) Option {
	return func(s *Service) {
		s.seed = seed
	}
}

// WithClock sets the time source used for phase windows.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(logger logger.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		storeKind:  StoreMemory,
		sqlitePath: "data/allot.db",
		rule:       matching.RuleAll,
		now:        time.Now,
		logger:     nil, // Will be replaced when service starts
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start opens the store unless one was injected.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	if s.logger == nil {
		s.logger = logger.Get()
	}

	s.logger.Info(ctx, "starting allocation service...")

	if s.store == nil {
		switch s.storeKind {
		case StoreMemory:
			s.store = repository.NewMemStore(ctx)
		case StoreSQLite:
			store, err := repository.NewSQLStore(ctx, s.sqlitePath)
			if err != nil {
				return fmt.Errorf("open sqlite store: %w", err)
			}
			s.store = store
		default:
			return fmt.Errorf("unknown store kind %q", s.storeKind)
		}
		s.ownsStore = true
		s.logger.Info(ctx, "store opened", logger.String("kind", s.storeKind))
	}

	seed := s.seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	s.rng = rand.New(rand.NewSource(seed)) //nolint:gosec // fairness shuffling, not security

	s.started = true
	s.logger.Info(ctx, "allocation service started",
		logger.String("store", s.storeKind),
		logger.Int("competencyRule", int(s.rule)),
		logger.Bool("seeded", s.seed != 0),
	)

	return nil
}

// Stop gracefully shuts down the service.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	s.logger.Info(context.Background(), "stopping allocation service...")

	// Wait for an in-flight mutation.
	s.write.Lock()
	defer s.write.Unlock()

	if s.ownsStore && s.store != nil {
		if err := s.store.Close(); err != nil {
			s.logger.Warn(context.Background(), "failed to close store", logger.Error(err))
		}
		s.store = nil
		s.ownsStore = false
	}

	s.started = false
	s.logger.Info(context.Background(), "allocation service stopped")
}

// Healthy reports whether the store answers.
func (s *Service) Healthy(ctx context.Context) error {
	store, err := s.backend()
	if err != nil {
		return err
	}
	_, err = store.Count(ctx)
	return err
}

// Count reports how many records the store holds.
func (s *Service) Count(ctx context.Context) (repository.Counts, error) {
	store, err := s.backend()
	if err != nil {
		return repository.Counts{}, err
	}
	return store.Count(ctx)
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats(ctx context.Context) map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"started":        s.started,
		"store":          s.storeKind,
		"competencyRule": int(s.rule),
	}
	if s.started {
		if c, err := s.store.Count(ctx); err == nil {
			stats["phases"] = c.Phases
			stats["employees"] = c.Employees
			stats["projects"] = c.Projects
		}
	}
	return stats
}

func (s *Service) backend() (repository.Store, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return nil, ErrNotStarted
	}
	return s.store, nil
}

// mutate runs fn with writes serialized and commits the ledger it returns.
func (s *Service) mutate(ctx context.Context, fn func(store repository.Store) (*ledger.Ledger, error)) error {
	store, err := s.backend()
	if err != nil {
		return err
	}
	s.write.Lock()
	defer s.write.Unlock()

	l, err := fn(store)
	if err != nil {
		return err
	}
	if l == nil {
		return nil
	}
	cs := l.Changeset()
	if cs.Empty() {
		return nil
	}
	if err := store.Apply(ctx, cs); err != nil {
		return fmt.Errorf("commit %d records: %w", cs.Size(), err)
	}
	return nil
}

func (s *Service) evaluator() matching.Evaluator {
	return matching.NewEvaluator(s.rule)
}

func invalid(op, msg string, fields ...string) error {
	return &model.ValidationError{Op: op, Message: msg, Fields: fields}
}
