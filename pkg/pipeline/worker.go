package pipeline

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"heart-audio/pkg/models"
)

type StageFunc func(context.Context, *models.PipelineMessage)

// WorkerPool runs a fixed number of goroutines that apply one stage function
// to queued messages.
type WorkerPool struct {
	name       string
	workers    int
	taskQueue  chan *models.PipelineMessage
	workerFunc StageFunc
	logger     *logrus.Logger
	wg         sync.WaitGroup
	closeOnce  sync.Once
}

func NewWorkerPool(name string, workers int, workerFunc StageFunc, logger *logrus.Logger) *WorkerPool {
	return &WorkerPool{
		name:       name,
		workers:    workers,
		taskQueue:  make(chan *models.PipelineMessage, workers*2),
		workerFunc: workerFunc,
		logger:     logger,
	}
}

func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < wp.workers; i++ {
		wp.wg.Add(1)
		go wp.worker(ctx, i)
	}
}

// Submit blocks until a worker slot frees up or ctx is done.
func (wp *WorkerPool) Submit(ctx context.Context, msg *models.PipelineMessage) bool {
	select {
	case wp.taskQueue <- msg:
		return true
	case <-ctx.Done():
		return false
	}
}

// Stop must only be called once nothing can Submit anymore.
func (wp *WorkerPool) Stop() {
	wp.closeOnce.Do(func() { close(wp.taskQueue) })
	wp.wg.Wait()
}

func (wp *WorkerPool) worker(ctx context.Context, id int) {
	defer wp.wg.Done()

	for {
		select {
		case msg, ok := <-wp.taskQueue:
			if !ok {
				return
			}
			wp.workerFunc(ctx, msg)

		case <-ctx.Done():
			wp.logger.WithFields(logrus.Fields{"pool": wp.name, "worker": id}).Debug("Worker exiting")
			return
		}
	}
}
