package pipeline

import (
	"context"
	"errors"
	"sync"

	"github.com/sirupsen/logrus"

	"heart-audio/pkg/config"
	"heart-audio/pkg/models"
	"heart-audio/pkg/provider"
	"heart-audio/pkg/storage"
	"heart-audio/pkg/telemetry"
)

var (
	ErrQueueFull     = errors.New("pipeline queue is full")
	ErrShuttingDown  = errors.New("pipeline is shutting down")
	ErrNotStarted    = errors.New("pipeline not started")
	ErrEmptyAudio    = errors.New("empty audio data")
	ErrAudioTooLarge = errors.New("audio too large")

	ErrTranscriptionFailed = errors.New("transcription failed")
)

// Deps are the collaborators the stages call into. Summarizer and Metrics may be nil.
type Deps struct {
	Memory      storage.MemoryStore
	Results     storage.ResultStore
	Audio       *storage.AudioStore
	Transcriber provider.Transcriber
	Summarizer  provider.Summarizer
	Logger      *logrus.Logger
	Metrics     *telemetry.Metrics
}

// Manager moves audio submissions through validation, transcription,
// analysis and storage, each stage backed by its own worker pool.
type Manager struct {
	config  config.PipelineConfig
	deps    Deps
	logger  *logrus.Logger
	metrics *telemetry.Metrics

	ingestionCh     chan *models.PipelineMessage
	validationCh    chan *models.PipelineMessage
	transcriptionCh chan *models.PipelineMessage
	analysisCh      chan *models.PipelineMessage
	storageCh       chan *models.PipelineMessage

	validationPool    *WorkerPool
	transcriptionPool *WorkerPool
	analysisPool      *WorkerPool
	storagePool       *WorkerPool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewManager(cfg config.PipelineConfig, deps Deps) *Manager {
	return &Manager{
		config:  cfg,
		deps:    deps,
		logger:  deps.Logger,
		metrics: deps.Metrics,

		ingestionCh:     make(chan *models.PipelineMessage, cfg.QueueSize),
		validationCh:    make(chan *models.PipelineMessage, cfg.QueueSize),
		transcriptionCh: make(chan *models.PipelineMessage, cfg.QueueSize),
		analysisCh:      make(chan *models.PipelineMessage, cfg.QueueSize),
		storageCh:       make(chan *models.PipelineMessage, cfg.QueueSize),
	}
}

func (m *Manager) Start(ctx context.Context) error {
	m.ctx, m.cancel = context.WithCancel(ctx)
	m.logger.Info("Pipeline manager starting")

	m.validationPool = NewWorkerPool("validation", m.config.ValidationWorkers, m.validate, m.logger)
	m.transcriptionPool = NewWorkerPool("transcription", m.config.TranscriptionWorkers, m.transcribe, m.logger)
	m.analysisPool = NewWorkerPool("analysis", m.config.AnalysisWorkers, m.analyze, m.logger)
	m.storagePool = NewWorkerPool("storage", m.config.StorageWorkers, m.store, m.logger)

	for _, p := range m.pools() {
		p.Start(m.ctx)
	}

	m.wg.Add(5)
	go m.runIngestionStage()
	go m.runStage("validation", m.validationCh, m.validationPool)
	go m.runStage("transcription", m.transcriptionCh, m.transcriptionPool)
	go m.runStage("analysis", m.analysisCh, m.analysisPool)
	go m.runStage("storage", m.storageCh, m.storagePool)

	return nil
}

func (m *Manager) pools() []*WorkerPool {
	return []*WorkerPool{m.validationPool, m.transcriptionPool, m.analysisPool, m.storagePool}
}

func (m *Manager) Stop() {
	m.logger.Info("Pipeline manager stopping")
	if m.cancel != nil {
		m.cancel()
	}
	m.wg.Wait()
	for _, p := range m.pools() {
		if p != nil {
			p.Stop()
		}
	}
	m.logger.Info("Pipeline manager stopped")
}

// Submit queues the submission without blocking and returns the message whose
// Done channel closes when processing ends.
func (m *Manager) Submit(sub *models.AudioSubmission) (*models.PipelineMessage, error) {
	if m.ctx == nil {
		return nil, ErrNotStarted
	}

	analysis := models.NewAnalysis(sub)
	msg := models.NewPipelineMessage(sub, analysis)
	log := m.logger.WithFields(logrus.Fields{"analysis_id": sub.ID, "user_id": sub.UserID, "size": sub.Size})

	if err := m.ctx.Err(); err != nil {
		m.metrics.Rejected()
		return nil, ErrShuttingDown
	}

	m.deps.Memory.StoreAnalysis(analysis)

	select {
	case m.ingestionCh <- msg:
		log.Debug("Submission queued")
		return msg, nil
	default:
		m.deps.Memory.Delete(analysis.ID)
		m.metrics.Rejected()
		log.Warn("Submission rejected, pipeline queue is full")
		return nil, ErrQueueFull
	}
}

// SubmitAndWait queues the submission and blocks until it completes, fails,
// ctx is done or the pipeline shuts down.
func (m *Manager) SubmitAndWait(ctx context.Context, sub *models.AudioSubmission) (*models.Analysis, error) {
	msg, err := m.Submit(sub)
	if err != nil {
		return nil, err
	}

	select {
	case <-msg.Done():
		if msg.Error != nil {
			return msg.Analysis.Clone(), msg.Error
		}
		return msg.Analysis.Clone(), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-m.ctx.Done():
		return nil, ErrShuttingDown
	}
}

func (m *Manager) runIngestionStage() {
	defer m.wg.Done()
	m.logger.Debug("Ingestion stage running")

	for {
		select {
		case msg := <-m.ingestionCh:
			msg.Analysis.Status = models.StatusValidating
			m.deps.Memory.UpdateStatus(msg.Analysis.ID, models.StatusValidating)
			if !m.forward(m.validationCh, msg) {
				return
			}

		case <-m.ctx.Done():
			m.logger.Debug("Ingestion stage shutting down")
			return
		}
	}
}

func (m *Manager) runStage(name string, in <-chan *models.PipelineMessage, pool *WorkerPool) {
	defer m.wg.Done()
	m.logger.WithField("stage", name).Debug("Stage running")

	for {
		select {
		case msg := <-in:
			if !pool.Submit(m.ctx, msg) {
				m.fail(msg, name, ErrShuttingDown)
				return
			}

		case <-m.ctx.Done():
			m.logger.WithField("stage", name).Debug("Stage shutting down")
			return
		}
	}
}

// forward hands msg to the next stage, failing it if the pipeline is closing.
func (m *Manager) forward(next chan<- *models.PipelineMessage, msg *models.PipelineMessage) bool {
	select {
	case next <- msg:
		return true
	case <-m.ctx.Done():
		m.fail(msg, msg.Stage, ErrShuttingDown)
		return false
	}
}

// advance records a status change both on the message and in the memory store.
func (m *Manager) advance(msg *models.PipelineMessage, stage string, status models.ProcessingStatus) {
	msg.Stage = stage
	msg.Analysis.Status = status
	m.deps.Memory.UpdateStatus(msg.Analysis.ID, status)
}

func (m *Manager) fail(msg *models.PipelineMessage, stage string, err error) {
	msg.Error = err
	msg.Stage = stage
	msg.Analysis.Status = models.StatusFailed
	msg.Analysis.Error = err.Error()

	m.deps.Memory.StoreAnalysis(msg.Analysis)
	m.metrics.AnalysisFinished(string(models.StatusFailed))
	m.logger.WithFields(logrus.Fields{
		"analysis_id": msg.Analysis.ID,
		"stage":       stage,
		"error":       err,
	}).Error("Analysis failed")

	msg.Finish()
}
