package scheduler

import (
	"context"
	"time"

	"github.com/okian/allot/pkg/logger"
)

// Expirer deactivates phases whose window has ended.
type Expirer interface {
	ExpirePhases(ctx context.Context) (int, error)
}

// PhaseExpiryJob deactivates phases past their end date.
type PhaseExpiryJob struct {
	expirer Expirer
	timeout time.Duration
	log     logger.Logger
}

// NewPhaseExpiryJob creates the job. A zero timeout defaults to one minute.
func NewPhaseExpiryJob(expirer Expirer, timeout time.Duration, log logger.Logger) *PhaseExpiryJob {
	if timeout <= 0 {
		timeout = time.Minute
	}
	if log == nil {
		log = logger.Get()
	}
	return &PhaseExpiryJob{expirer: expirer, timeout: timeout, log: log.Named("phase_expiry")}
}

// Name returns the job name
func (j *PhaseExpiryJob) Name() string {
	return "phase_expiry"
}

// Run deactivates every expired phase.
func (j *PhaseExpiryJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	n, err := j.expirer.ExpirePhases(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		j.log.Info(ctx, "phases expired", logger.Int("count", n))
	}
	return nil
}
