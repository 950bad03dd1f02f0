package repository

import (
	"context"
	"sync"
	"time"

	"github.com/okian/allot/pkg/metrics"
)

// reporter periodically publishes record counts of a store.
type reporter struct {
	wg       sync.WaitGroup
	stopChan chan struct{}
	once     sync.Once
}

// start launches the background updater. count is called on every tick.
func (r *reporter) start(ctx context.Context, interval time.Duration, count func(context.Context) (Counts, error)) {
	r.stopChan = make(chan struct{})
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-r.stopChan:
				return
			case <-ticker.C:
				c, err := count(ctx)
				if err != nil {
					metrics.RecordErrorByComponent("repository", "count")
					continue
				}
				publishCounts(c)
			}
		}
	}()
}

// stop signals the updater and waits for it.
func (r *reporter) stop() {
	r.once.Do(func() {
		if r.stopChan != nil {
			close(r.stopChan)
		}
	})
	r.wg.Wait()
}

func publishCounts(c Counts) {
	metrics.UpdateRecordsTotal("phase", c.Phases)
	metrics.UpdateRecordsTotal("employee", c.Employees)
	metrics.UpdateRecordsTotal("project", c.Projects)
}

func observeApply(start time.Time, err error) {
	metrics.RecordStoreApplyDuration(float64(time.Since(start).Milliseconds()))
	if err != nil {
		metrics.RecordErrorByComponent("repository", "apply")
	}
}
