package queue

import (
	"github.com/hibiken/asynq"
	"github.com/lumeo/edugate/pkg/config"
)

// Queue names. LMS sync work outweighs webhook fan-out and report
// generation when the worker is saturated.
const (
	QueueSync     = "sync"
	QueueWebhooks = "webhooks"
	QueueReports  = "reports"
)

func NewClient(cfg *config.RedisConfig) *asynq.Client {
	return asynq.NewClient(asynq.RedisClientOpt{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
	})
}

func NewServer(cfg *config.RedisConfig, concurrency int) *asynq.Server {
	if concurrency <= 0 {
		concurrency = 10
	}

	return asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     cfg.Addr(),
			Password: cfg.Password,
		},
		asynq.Config{
			Concurrency: concurrency,
			Queues: map[string]int{
				QueueSync:     6,
				QueueWebhooks: 3,
				QueueReports:  1,
			},
		},
	)
}

func NewInspector(cfg *config.RedisConfig) *asynq.Inspector {
	return asynq.NewInspector(asynq.RedisClientOpt{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
	})
}
