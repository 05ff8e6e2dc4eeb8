package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Cascade/internal/domain"
	"github.com/shaiso/Cascade/internal/mq"
	"github.com/shaiso/Cascade/internal/notify"
	"github.com/shaiso/Cascade/internal/tools"
)

// Default configuration values.
const (
	defaultPollInterval = 10 * time.Second
	defaultBatchSize    = 100
)

// RunStore — операции оркестратора над runs.
// Реализуется *repo.RunRepo; в тестах подставляется fake.
type RunStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Run, error)
	ListQueued(ctx context.Context, limit int) ([]domain.Run, error)
	Claim(ctx context.Context, id uuid.UUID, startedAt time.Time) (bool, error)
	UpdateProgress(ctx context.Context, id uuid.UUID, progress float64) error
	Finish(ctx context.Context, run *domain.Run) (bool, error)
}

// PipelineStore — чтение pipelines.
type PipelineStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Pipeline, error)
}

// ToolStore — чтение tools.
type ToolStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Tool, error)
}

// StepRunStore — запись step runs.
type StepRunStore interface {
	Create(ctx context.Context, sr *domain.StepRun) error
	Update(ctx context.Context, sr *domain.StepRun) error
}

// Orchestrator управляет выполнением runs.
type Orchestrator struct {
	runs      RunStore
	pipelines PipelineStore
	tools     ToolStore
	stepRuns  StepRunStore

	registry *tools.Registry
	notifier notify.Notifier

	conn           *mq.Connection
	runConsumer    *mq.Consumer
	cancelConsumer *mq.Consumer

	// Active runs — runs в процессе выполнения (runID → state)
	activeRuns map[uuid.UUID]*RunState
	mu         sync.RWMutex

	pollInterval time.Duration
	batchSize    int

	logger     *slog.Logger
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
}

// Config — конфигурация Orchestrator.
type Config struct {
	RunStore      RunStore
	PipelineStore PipelineStore
	ToolStore     ToolStore
	StepRunStore  StepRunStore

	// Registry — исполнители tool bases.
	Registry *tools.Registry

	// Notifier — push-уведомления организациям (default: noop).
	Notifier notify.Notifier

	// Conn — соединение с RabbitMQ (nil — работаем только на polling).
	Conn *mq.Connection

	// PollInterval — интервал polling fallback (default: 10s).
	PollInterval time.Duration

	// BatchSize — количество runs за один poll (default: 100).
	BatchSize int

	Logger *slog.Logger
}

// New создаёт новый Orchestrator.
func New(cfg Config) *Orchestrator {
	pollInterval := cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}

	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	notifier := cfg.Notifier
	if notifier == nil {
		notifier = notify.NoopNotifier{}
	}

	return &Orchestrator{
		runs:         cfg.RunStore,
		pipelines:    cfg.PipelineStore,
		tools:        cfg.ToolStore,
		stepRuns:     cfg.StepRunStore,
		registry:     cfg.Registry,
		notifier:     notifier,
		conn:         cfg.Conn,
		activeRuns:   make(map[uuid.UUID]*RunState),
		pollInterval: pollInterval,
		batchSize:    batchSize,
		logger:       logger,
	}
}

// Start запускает Orchestrator.
//
// Запускает:
//   - Consumer для runs.requested (если настроен MQ)
//   - Consumer для runs.canceled (если настроен MQ)
//   - Polling горутину для fallback
func (o *Orchestrator) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	o.cancelFunc = cancel

	o.logger.Info("starting orchestrator",
		"poll_interval", o.pollInterval,
		"batch_size", o.batchSize,
	)

	if o.conn != nil {
		o.runConsumer = mq.NewConsumer(o.conn, o.logger, mq.ConsumerConfig{
			Queue:    string(mq.QueueRunsRequested),
			Handler:  o.handleRunRequested,
			Prefetch: 10,
		})

		o.cancelConsumer = mq.NewConsumer(o.conn, o.logger, mq.ConsumerConfig{
			Queue:    string(mq.QueueRunsCanceled),
			Handler:  o.handleRunCanceled,
			Prefetch: 10,
		})

		o.wg.Add(1)
		go func() {
			defer o.wg.Done()
			if err := o.runConsumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				o.logger.Error("run consumer error", "error", err)
			}
		}()

		o.wg.Add(1)
		go func() {
			defer o.wg.Done()
			if err := o.cancelConsumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				o.logger.Error("cancel consumer error", "error", err)
			}
		}()
	}

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.pollLoop(ctx)
	}()

	o.logger.Info("orchestrator started")
	return nil
}

// Stop останавливает Orchestrator и дожидается активных runs.
func (o *Orchestrator) Stop() {
	o.logger.Info("stopping orchestrator...")

	if o.cancelFunc != nil {
		o.cancelFunc()
	}
	if o.runConsumer != nil {
		o.runConsumer.Stop()
	}
	if o.cancelConsumer != nil {
		o.cancelConsumer.Stop()
	}

	o.wg.Wait()

	o.logger.Info("orchestrator stopped", "active_runs", o.ActiveRunsCount())
}

// pollLoop — цикл polling для fallback.
func (o *Orchestrator) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(o.pollInterval)
	defer ticker.Stop()

	// Первый poll сразу при старте (подхватываем runs, созданные
	// пока оркестратор был выключен)
	o.poll(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			o.poll(ctx)
		}
	}
}

// poll выполняет один цикл polling.
func (o *Orchestrator) poll(ctx context.Context) {
	runs, err := o.runs.ListQueued(ctx, o.batchSize)
	if err != nil {
		o.logger.Error("failed to list queued runs", "error", err)
		return
	}

	if len(runs) == 0 {
		return
	}

	o.logger.Debug("poll found queued runs", "count", len(runs))

	for i := range runs {
		runID := runs[i].ID

		if o.isRunActive(runID) {
			continue
		}

		o.startRun(ctx, runID)
	}
}

// startRun запускает обработку run в отдельной горутине.
func (o *Orchestrator) startRun(ctx context.Context, runID uuid.UUID) {
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()

		if err := o.ProcessRun(ctx, runID); err != nil &&
			!errors.Is(err, ErrRunAlreadyActive) && !errors.Is(err, ErrRunNotClaimed) {
			o.logger.Error("failed to process run",
				"run_id", runID,
				"error", err,
			)
		}
	}()
}

// CancelRun прерывает активный run этого оркестратора.
//
// Возвращает false, если run здесь не выполняется: он мог завершиться,
// ещё не стартовать или принадлежать другому инстансу.
func (o *Orchestrator) CancelRun(runID uuid.UUID) bool {
	o.mu.RLock()
	state, ok := o.activeRuns[runID]
	o.mu.RUnlock()

	if !ok {
		return false
	}
	state.Cancel()
	return true
}

// isRunActive проверяет, находится ли run в обработке.
func (o *Orchestrator) isRunActive(runID uuid.UUID) bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	_, exists := o.activeRuns[runID]
	return exists
}

// addActiveRun добавляет run в активные.
func (o *Orchestrator) addActiveRun(state *RunState) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if _, exists := o.activeRuns[state.RunID()]; exists {
		return ErrRunAlreadyActive
	}

	o.activeRuns[state.RunID()] = state
	return nil
}

// removeActiveRun удаляет run из активных.
func (o *Orchestrator) removeActiveRun(runID uuid.UUID) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.activeRuns, runID)
}

// ActiveRunsCount возвращает количество активных runs.
func (o *Orchestrator) ActiveRunsCount() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return len(o.activeRuns)
}
