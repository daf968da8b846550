// Package summary computes and publishes the end-of-day totals as a
// background job.
package summary

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

// TypeDaily is the asynq task type of the daily summary.
const TypeDaily = "summary:daily"

// DayLayout formats Payload.Day.
const DayLayout = "2006-01-02"

// Payload selects the day to summarise. An empty Day means the day before
// the one the task runs on.
type Payload struct {
	Day string `json:"day,omitempty"`
}

// NewTask builds a summary task. The unique window keeps concurrent
// schedulers from enqueuing the same day twice.
func NewTask(day string) (*asynq.Task, error) {
	if day != "" {
		if _, err := time.Parse(DayLayout, day); err != nil {
			return nil, fmt.Errorf("summary: invalid day %q: %w", day, err)
		}
	}
	body, err := json.Marshal(Payload{Day: day})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeDaily, body, asynq.Unique(23*time.Hour), asynq.MaxRetry(3), asynq.Timeout(2*time.Minute)), nil
}
