package jobs

import (
	"context"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"vrpadapter/internal/metrics"
	"vrpadapter/internal/opt"
	"vrpadapter/internal/store"
)

// RetentionJob prunes solve runs older than a fixed age on a cron schedule.
type RetentionJob struct {
	store    store.Store
	maxAge   time.Duration
	schedule string
	cron     *cron.Cron
	now      func() time.Time
}

func NewRetentionJob(s store.Store, maxAge time.Duration, schedule string) *RetentionJob {
	return &RetentionJob{
		store:    s,
		maxAge:   maxAge,
		schedule: schedule,
		cron:     cron.New(),
		now:      time.Now,
	}
}

// Start registers the job and starts the scheduler. A bad schedule is reported here.
func (j *RetentionJob) Start() error {
	_, err := j.cron.AddFunc(j.schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if _, err := j.RunOnce(ctx); err != nil {
			log.Printf("retention: prune failed: %v", err)
		}
	})
	if err != nil {
		return err
	}
	j.cron.Start()
	log.Printf("retention: started schedule=%q maxAge=%v", j.schedule, j.maxAge)
	return nil
}

// Stop waits for a running prune to finish.
func (j *RetentionJob) Stop() {
	<-j.cron.Stop().Done()
}

// RunOnce deletes runs created before now-maxAge and forgets their search metrics.
func (j *RetentionJob) RunOnce(ctx context.Context) (int, error) {
	cutoff := j.now().Add(-j.maxAge)
	ids, err := j.store.DeleteRunsBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	opt.ForgetMetrics(ids...)
	metrics.RunsPruned.Add(float64(len(ids)))
	if len(ids) > 0 {
		log.Printf("retention: pruned=%d cutoff=%s", len(ids), cutoff.UTC().Format(time.RFC3339))
	}
	return len(ids), nil
}
