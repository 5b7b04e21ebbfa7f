package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/casewire/casefile-processor/internal/pipeline"
	"github.com/casewire/casefile-processor/pkg/logger"
	"github.com/casewire/casefile-processor/pkg/queue"
)

// Processor runs the ingestion pipeline for one file.
type Processor interface {
	Process(ctx context.Context, req pipeline.Request) (*pipeline.Result, error)
}

// IngestWorker consumes file:ingest tasks and drives the pipeline.
type IngestWorker struct {
	BaseWorker
	processor Processor
}

func NewIngestWorker(cfg *Config, processor Processor, log logger.Logger) (*IngestWorker, error) {
	if cfg.Queues == nil {
		cfg.Queues = map[string]int{
			"critical": 6,
			"default":  3,
			"low":      1,
		}
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 5
	}

	server := asynq.NewServer(
		asynq.RedisClientOpt{Addr: cfg.RedisAddr, DB: cfg.RedisDB},
		asynq.Config{
			Concurrency: cfg.Concurrency,
			Queues:      cfg.Queues,
			RetryDelayFunc: func(n int, err error, task *asynq.Task) time.Duration {
				return time.Duration(n) * time.Minute
			},
		},
	)

	w := &IngestWorker{
		BaseWorker: BaseWorker{
			server:   server,
			mux:      asynq.NewServeMux(),
			logger:   log,
			stopChan: make(chan struct{}),
		},
		processor: processor,
	}

	w.registerHandlers()
	return w, nil
}

func (w *IngestWorker) registerHandlers() {
	w.mux.HandleFunc(queue.TaskTypeFileIngest, w.handleFileIngest)
}

func (w *IngestWorker) handleFileIngest(ctx context.Context, t *asynq.Task) error {
	var task queue.Task
	if err := json.Unmarshal(t.Payload(), &task); err != nil {
		w.logger.Error("Failed to unmarshal task",
			logger.Error(err),
			logger.String("payload", string(t.Payload())),
		)
		return fmt.Errorf("failed to unmarshal task: %w", err)
	}

	var req pipeline.Request
	if err := json.Unmarshal(task.Payload, &req); err != nil {
		w.logger.Error("Failed to unmarshal ingest request",
			logger.String("taskId", task.ID),
			logger.Error(err),
		)
		return fmt.Errorf("failed to unmarshal ingest request: %w", err)
	}
	if req.FileID == "" {
		return fmt.Errorf("invalid task data: missing fileId")
	}

	w.logger.Info("Processing ingest task",
		logger.String("taskId", task.ID),
		logger.String("fileId", req.FileID),
	)

	writer := t.ResultWriter()
	if _, err := writer.Write([]byte(`{"status":"running","progress":0}`)); err != nil {
		w.logger.Error("Failed to write task status", logger.Error(err))
	}

	result, err := w.processor.Process(ctx, req)
	if err != nil {
		if _, writeErr := writer.Write([]byte(fmt.Sprintf(`{"status":"failed","error":%q}`, err.Error()))); writeErr != nil {
			w.logger.Error("Failed to write task failure", logger.Error(writeErr))
		}
		// Fatal input errors will not succeed on retry.
		if errors.Is(err, pipeline.ErrFatalInput) {
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		}
		return err
	}

	summary, _ := json.Marshal(result)
	if _, err := writer.Write(summary); err != nil {
		w.logger.Error("Failed to write task completion", logger.Error(err))
	}

	return nil
}

func (w *IngestWorker) Start(ctx context.Context) error {
	go func() {
		if err := w.server.Run(w.mux); err != nil {
			w.logger.Error("Worker server stopped", logger.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		w.Stop()
	}()

	return nil
}
