package scheduler

import (
	"context"
	"fmt"

	"leadbridge/internal/syncing/service"
	"leadbridge/platform/config"
	"leadbridge/platform/logger"

	"github.com/hibiken/asynq"
)

type Worker struct {
	server    *asynq.Server
	scheduler *asynq.Scheduler
	mux       *asynq.ServeMux
	client    *asynq.Client
	queue     string
	svc       *service.Service
	log       *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, svc *service.Service, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = "default"
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queue: 1,
		},
	})

	periodic := asynq.NewScheduler(opt, nil)

	mux := asynq.NewServeMux()
	w := &Worker{
		server:    server,
		scheduler: periodic,
		mux:       mux,
		client:    asynq.NewClient(opt),
		queue:     queue,
		svc:       svc,
		log:       log,
	}

	mux.HandleFunc(TaskCleanupSweep, w.handleCleanupSweep)
	mux.HandleFunc(TaskBackfillCampaign, w.handleBackfillCampaign)
	mux.HandleFunc(TaskRetryFailed, w.handleRetryFailed)

	if _, err := periodic.Register("@every 1h", NewCleanupSweepTask(), asynq.Queue(queue)); err != nil {
		return nil, fmt.Errorf("register cleanup sweep: %w", err)
	}
	retryTask, err := NewRetryFailedTask(RetryFailedPayload{})
	if err != nil {
		return nil, err
	}
	if _, err := periodic.Register("@every 6h", retryTask, asynq.Queue(queue)); err != nil {
		return nil, fmt.Errorf("register retry pass: %w", err)
	}

	return w, nil
}

func (w *Worker) handleCleanupSweep(ctx context.Context, _ *asynq.Task) error {
	result, err := w.svc.SweepPendingRemovals(ctx)
	if err != nil {
		return err
	}
	w.log.Info("cleanup_sweep_task",
		"examined", result.Examined,
		"removed", result.Removed,
		"cancelled", result.Cancelled,
		"failed", result.Failed,
	)
	return nil
}

func (w *Worker) handleBackfillCampaign(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseBackfillCampaignPayload(task)
	if err != nil {
		return err
	}

	result, err := w.svc.BackfillCampaign(ctx, payload.CampaignID, service.BackfillOptions{
		BatchSize: payload.BatchSize,
		MaxLeads:  payload.MaxLeads,
		Cursor:    payload.Cursor,
		Force:     payload.Force,
	})
	if err != nil {
		return err
	}

	w.log.WithCampaign(payload.CampaignID).Info("backfill_task",
		"processed", result.Processed,
		"synced", result.Synced,
		"skipped", result.Skipped,
		"failed", result.Failed,
		"stopped_early", result.StoppedEarly,
	)

	// A deadline stop re-queues the remainder from the saved cursor so the
	// run resumes instead of starting over.
	if result.StoppedEarly {
		next, err := NewBackfillCampaignTask(BackfillCampaignPayload{
			CampaignID: payload.CampaignID,
			BatchSize:  payload.BatchSize,
			MaxLeads:   payload.MaxLeads,
			Cursor:     result.NextCursor,
			Force:      payload.Force,
		})
		if err != nil {
			return err
		}
		_, err = w.client.EnqueueContext(ctx, next, asynq.Queue(w.queue))
		return err
	}
	return nil
}

func (w *Worker) handleRetryFailed(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseRetryFailedPayload(task)
	if err != nil {
		return err
	}

	result, err := w.svc.RetryFailed(ctx, payload.Limit)
	if err != nil {
		return err
	}
	w.log.Info("retry_failed_task",
		"attempted", result.Attempted,
		"synced", result.Synced,
		"skipped", result.Skipped,
		"failed", result.Failed,
	)
	return nil
}

// Run starts the periodic scheduler and the task server and blocks until
// the context is cancelled.
func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.scheduler.Shutdown()
		w.server.Shutdown()
		_ = w.client.Close()
	}()

	go func() {
		if err := w.scheduler.Run(); err != nil {
			w.log.Error("periodic scheduler stopped", "error", err)
		}
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}
