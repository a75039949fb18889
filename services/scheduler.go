// services/scheduler.go
package services

import (
	"context"
	"time"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"
)

// StartReconcileScheduler runs the reconciler every interval until the
// returned scheduler is shut down. Overlapping runs are skipped.
func StartReconcileScheduler(r *CreditReconciler, interval time.Duration, log *zap.Logger) (gocron.Scheduler, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}

	_, err = sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), interval)
			defer cancel()
			if _, err := r.RunOnce(ctx); err != nil {
				log.Error("[Scheduler] reconcile run failed", zap.Error(err))
			}
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = sched.Shutdown()
		return nil, err
	}

	sched.Start()
	log.Info("[Scheduler] ⏱️ credit reconciler started", zap.Duration("interval", interval))
	return sched, nil
}
