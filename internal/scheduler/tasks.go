// Package scheduler provides asynq-backed background jobs: the cleanup
// sweep, queued backfill runs and the failed-sync retry pass.
package scheduler

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const TaskCleanupSweep = "sync.cleanup_sweep"

const TaskBackfillCampaign = "sync.backfill_campaign"

const TaskRetryFailed = "sync.retry_failed"

type BackfillCampaignPayload struct {
	CampaignID string `json:"campaignId"`
	BatchSize  int    `json:"batchSize,omitempty"`
	MaxLeads   int    `json:"maxLeads,omitempty"`
	Cursor     string `json:"cursor,omitempty"`
	Force      bool   `json:"force,omitempty"`
}

type RetryFailedPayload struct {
	Limit int `json:"limit,omitempty"`
}

func NewCleanupSweepTask() *asynq.Task {
	return asynq.NewTask(TaskCleanupSweep, nil)
}

func NewBackfillCampaignTask(payload BackfillCampaignPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskBackfillCampaign, data), nil
}

func ParseBackfillCampaignPayload(task *asynq.Task) (BackfillCampaignPayload, error) {
	var payload BackfillCampaignPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return BackfillCampaignPayload{}, err
	}
	return payload, nil
}

func NewRetryFailedTask(payload RetryFailedPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskRetryFailed, data), nil
}

func ParseRetryFailedPayload(task *asynq.Task) (RetryFailedPayload, error) {
	var payload RetryFailedPayload
	if len(task.Payload()) == 0 {
		return payload, nil
	}
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return RetryFailedPayload{}, err
	}
	return payload, nil
}
