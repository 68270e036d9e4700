package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// PurgeJobName identifies the analytics retention job in logs.
const PurgeJobName = "analytics-purge"

// Purger deletes analytics rows older than a cutoff.
type Purger interface {
	PurgeAnalytics(ctx context.Context, cutoff time.Time) (int64, error)
}

// AnalyticsPurge removes search logs and skipped-question records past
// their retention period.
type AnalyticsPurge struct {
	store     Purger
	retention time.Duration
	now       func() time.Time
	log       zerolog.Logger
}

func NewAnalyticsPurge(store Purger, retentionDays int, log zerolog.Logger) *AnalyticsPurge {
	return &AnalyticsPurge{
		store:     store,
		retention: time.Duration(retentionDays) * 24 * time.Hour,
		now:       time.Now,
		log:       log,
	}
}

// Run deletes expired rows and returns how many were removed.
func (p *AnalyticsPurge) Run(ctx context.Context) (int64, error) {
	cutoff := p.now().Add(-p.retention)
	n, err := p.store.PurgeAnalytics(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purging analytics before %s: %w", cutoff.Format(time.RFC3339), err)
	}
	p.log.Info().Int64("deleted", n).Time("cutoff", cutoff).Msg("analytics purged")
	return n, nil
}

// Task adapts Run for a Scheduler.
func (p *AnalyticsPurge) Task() Task {
	return func(ctx context.Context) error {
		_, err := p.Run(ctx)
		return err
	}
}
