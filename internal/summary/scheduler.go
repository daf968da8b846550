package summary

import (
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
)

// RegisterSchedule adds the daily summary to scheduler on cronspec.
func RegisterSchedule(scheduler *asynq.Scheduler, cronspec string) (string, error) {
	task, err := NewTask("")
	if err != nil {
		return "", err
	}
	id, err := scheduler.Register(cronspec, task)
	if err != nil {
		return "", fmt.Errorf("register %s on %q: %w", TypeDaily, cronspec, err)
	}
	return id, nil
}

// NewScheduler builds an asynq scheduler evaluating cron specs in loc.
func NewScheduler(conn asynq.RedisConnOpt, loc *time.Location, logger zerolog.Logger) *asynq.Scheduler {
	return asynq.NewScheduler(conn, &asynq.SchedulerOpts{
		Location: loc,
		Logger:   Logger{L: logger},
		PostEnqueueFunc: func(info *asynq.TaskInfo, err error) {
			if err != nil {
				logger.Warn().Err(err).Str("task", TypeDaily).Msg("enqueue scheduled task")
				return
			}
			logger.Info().Str("task_id", info.ID).Str("queue", info.Queue).Msg("scheduled task enqueued")
		},
	})
}
