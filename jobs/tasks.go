package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskAnalyticsCacheWarmup recomputes the standard analytics windows.
	TaskAnalyticsCacheWarmup = "analytics:cache_warmup"
)

// WarmupDebounce collapses bursts of bumps into a single pending warmup.
const WarmupDebounce = 30 * time.Second

// Warmup trigger reasons.
const (
	WarmupReasonBump    = "bump"
	WarmupReasonNightly = "nightly"
	WarmupReasonManual  = "manual"
)

// WarmupPayload describes why a warmup was requested.
type WarmupPayload struct {
	Reason  string `json:"reason"`
	Version string `json:"version,omitempty"`
}

// NewAnalyticsWarmupTask constructs the warmup task.
func NewAnalyticsWarmupTask(payload WarmupPayload) (*asynq.Task, error) {
	if payload.Reason == "" {
		payload.Reason = WarmupReasonManual
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAnalyticsCacheWarmup, data), nil
}
