// services/scheduler.go
package services

import (
	"log"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// StartResolveScheduler runs the stalled-match sweep: any match whose
// move timeout elapsed gets force-resolved so escrowed funds never hang
// on an absent opponent or a lost decryption.
func (r *RegistryService) StartResolveScheduler(interval time.Duration) (gocron.Scheduler, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}
	sched.Start()

	_, err = sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			if swept := r.SweepTimeouts(); swept > 0 {
				log.Printf("⏰ [Scheduler] force-resolved %d stalled match(es)", swept)
			}
		}),
	)
	if err != nil {
		return nil, err
	}
	return sched, nil
}
