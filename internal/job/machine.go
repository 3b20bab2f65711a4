package job

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/webclip-dev/webclip/constants"
	"github.com/webclip-dev/webclip/internal/common"
	"github.com/webclip-dev/webclip/internal/entity"
	"github.com/webclip-dev/webclip/internal/repository"
)

// persistTimeout bounds every checkpoint write. Checkpointing is detached
// from job contexts so a cancelled job still records its final state.
const persistTimeout = 3 * time.Second

// Config tunes the state machine. Zero values take defaults.
type Config struct {
	// HeartbeatInterval is how often a live job re-persists its snapshot.
	HeartbeatInterval time.Duration
	// ResumeThreshold is the maximum snapshot age Resume still picks up.
	ResumeThreshold time.Duration
}

// Manager is the single-job state machine. It owns the one active Job, its
// cancellation context, the heartbeat that keeps the checkpoint fresh, and
// every stage transition. Checkpoint write failures never fail an operation;
// durability is best-effort, correctness of the in-memory state is not.
type Manager struct {
	store repository.CheckpointStore
	log   *slog.Logger
	cfg   Config
	now   func() time.Time

	mu     sync.Mutex
	job    *entity.Job
	cancel context.CancelFunc
	hbStop context.CancelFunc
	hbWG   sync.WaitGroup
}

func NewManager(store repository.CheckpointStore, cfg Config, logger *slog.Logger) *Manager {
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = 10 * time.Second
	}
	if cfg.ResumeThreshold <= 0 {
		cfg.ResumeThreshold = 60 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		store: store,
		log:   logger,
		cfg:   cfg,
		now:   time.Now,
	}
}

// transitions lists the legal forward moves between active stages. Terminal
// moves go through Complete, Fail, and FinalizeCancelled instead.
var transitions = map[constants.JobStage][]constants.JobStage{
	constants.StageAnalyzing:   {constants.StageExtracting},
	constants.StageExtracting:  {constants.StageTranslating, constants.StageGenerating},
	constants.StageTranslating: {constants.StageGenerating},
}

func legalTransition(from, to constants.JobStage) bool {
	for _, t := range transitions[from] {
		if t == to {
			return true
		}
	}
	return false
}

// Begin admits a new job. It fails with ErrAlreadyRunning while a non-terminal
// job exists. The returned context is the job's lifetime: it is cancelled by
// Cancel and by any terminal transition, and it carries the job ID for log
// correlation (common.RequestIDFromContext).
func (m *Manager) Begin(req entity.ClipRequest) (entity.Job, context.Context, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.job != nil && m.job.Stage.Active() {
		return entity.Job{}, nil, common.ErrAlreadyRunning
	}

	now := m.now()
	j := &entity.Job{
		ID:         uuid.New(),
		Request:    req,
		Stage:      constants.StageAnalyzing,
		Status:     "accepted",
		StartedAt:  now,
		LastUpdate: now,
	}
	jobCtx, cancel := context.WithCancel(common.WithRequestID(context.Background(), j.ID.String()))

	m.stopHeartbeatLocked()
	m.job = j
	m.cancel = cancel
	m.persistLocked()
	m.startHeartbeatLocked()

	m.log.Info("job.started",
		"job_id", j.ID,
		"url", req.URL,
		"format", req.Format,
		"mode", req.Mode,
		"language", req.Language,
	)
	return j.Clone(), jobCtx, nil
}

// Resume loads the persisted snapshot and, when it is fresh enough to
// continue, reinstates it as the active job. A stale, terminal, or unreadable
// snapshot is cleared and (nil, nil, nil) is returned: the process starts
// idle. Callers hand the returned job to the pipeline to continue from its
// recorded stage.
func (m *Manager) Resume(ctx context.Context) (*entity.Job, context.Context, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.job != nil && m.job.Stage.Active() {
		return nil, nil, common.ErrAlreadyRunning
	}

	snapshot, err := m.store.Read(ctx)
	if err != nil {
		m.log.Warn("job.resume.unreadable", "error", err)
		m.clearStoreLocked()
		return nil, nil, nil
	}
	if snapshot == nil {
		return nil, nil, nil
	}

	age := repository.Age(snapshot, m.now())
	if snapshot.Stage.Terminal() || age > m.cfg.ResumeThreshold {
		m.log.Info("job.resume.stale",
			"job_id", snapshot.ID,
			"stage", snapshot.Stage,
			"age_ms", age.Milliseconds(),
			"threshold_ms", m.cfg.ResumeThreshold.Milliseconds(),
		)
		m.clearStoreLocked()
		return nil, nil, nil
	}

	jobCtx, cancel := context.WithCancel(common.WithRequestID(context.Background(), snapshot.ID.String()))
	m.job = snapshot
	m.cancel = cancel
	m.job.LastUpdate = m.now()
	m.persistLocked()
	m.startHeartbeatLocked()

	m.log.Info("job.resume.ok",
		"job_id", snapshot.ID,
		"stage", snapshot.Stage,
		"age_ms", age.Milliseconds(),
	)
	cp := snapshot.Clone()
	return &cp, jobCtx, nil
}

// Advance moves the active job to the next stage. Illegal moves are an
// internal error; they indicate a pipeline bug, not bad input.
func (m *Manager) Advance(to constants.JobStage) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.job == nil || m.job.Stage.Terminal() {
		return common.ErrNoActiveJob
	}
	if !legalTransition(m.job.Stage, to) {
		return common.NewAppError(common.CodeInternal,
			fmt.Sprintf("illegal stage transition %s -> %s", m.job.Stage, to), nil)
	}

	m.log.Info("job.stage", "job_id", m.job.ID, "from", m.job.Stage, "to", to)
	m.job.Stage = to
	m.job.LastUpdate = m.now()
	m.persistLocked()
	return nil
}

// Progress records completion percentage and a short status note.
func (m *Manager) Progress(pct int, note string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.job == nil || m.job.Stage.Terminal() {
		return
	}
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	m.job.Progress = pct
	if note != "" {
		m.job.Status = note
	}
	m.job.LastUpdate = m.now()
	m.persistLocked()
}

// StashResult records the work-in-progress result on the active job. From
// here on every checkpoint carries the extracted content, which is what lets
// a resumed process re-enter the translation or generation stage without
// redoing extraction.
func (m *Manager) StashResult(res *entity.ClipResult) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.job == nil || m.job.Stage.Terminal() {
		return
	}
	m.job.Result = res
	m.job.LastUpdate = m.now()
	m.persistLocked()
}

// Cancel flags the active job and cancels its context. The stage is finalized
// to CANCELLED by the pipeline when it observes the flag at the next
// boundary; in-flight calls abort through the context.
func (m *Manager) Cancel() (entity.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.job == nil || m.job.Stage.Terminal() {
		return entity.Job{}, common.ErrNoActiveJob
	}

	m.job.Cancelled = true
	m.job.Status = "cancellation requested"
	m.job.LastUpdate = m.now()
	if m.cancel != nil {
		m.cancel()
	}
	m.persistLocked()

	m.log.Info("job.cancel_requested", "job_id", m.job.ID, "stage", m.job.Stage)
	return m.job.Clone(), nil
}

// CheckCancelled returns ErrCancelled once Cancel has been called. The
// pipeline calls this at every stage boundary.
func (m *Manager) CheckCancelled() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.job != nil && m.job.Cancelled {
		return common.ErrCancelled
	}
	return nil
}

// Complete finalizes the active job as a success.
func (m *Manager) Complete(result *entity.ClipResult) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.job == nil || m.job.Stage.Terminal() {
		return
	}
	m.job.Stage = constants.StageComplete
	m.job.Status = "complete"
	m.job.Progress = 100
	m.job.Result = result
	m.finishLocked()
}

// Fail finalizes the active job as a failure, normalizing err into the
// recorded {code, message} pair.
func (m *Manager) Fail(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.job == nil || m.job.Stage.Terminal() {
		return
	}
	code, msg := common.Normalize(err)
	m.job.Stage = constants.StageError
	m.job.Status = "failed"
	m.job.Error = &entity.JobError{Code: code, Message: msg}
	m.finishLocked()
}

// FinalizeCancelled moves a flagged job to its CANCELLED terminal stage.
func (m *Manager) FinalizeCancelled() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.job == nil || m.job.Stage.Terminal() {
		return
	}
	m.job.Stage = constants.StageCancelled
	m.job.Status = "cancelled"
	m.finishLocked()
}

// Current returns a copy of the latest job, terminal ones included; it is
// replaced only by the next Begin. ok is false before the first job.
func (m *Manager) Current() (entity.Job, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.job == nil {
		return entity.Job{}, false
	}
	return m.job.Clone(), true
}

// Active reports whether a non-terminal job exists.
func (m *Manager) Active() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.job != nil && m.job.Stage.Active()
}

// Close stops the heartbeat and waits for it to exit. The job itself is left
// as-is; its checkpoint allows the next process to resume it.
func (m *Manager) Close() {
	m.mu.Lock()
	m.stopHeartbeatLocked()
	m.mu.Unlock()
	m.hbWG.Wait()
}

// finishLocked runs the shared terminal bookkeeping: timestamp, heartbeat
// stop, checkpoint clear, context cancel.
func (m *Manager) finishLocked() {
	m.job.LastUpdate = m.now()
	m.stopHeartbeatLocked()
	m.clearStoreLocked()
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	m.log.Info("job.finished",
		"job_id", m.job.ID,
		"stage", m.job.Stage,
		"elapsed_ms", m.job.LastUpdate.Sub(m.job.StartedAt).Milliseconds(),
	)
}

func (m *Manager) persistLocked() {
	if m.store == nil || m.job == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := m.store.Write(ctx, *m.job); err != nil {
		m.log.Warn("job.checkpoint_write_failed", "job_id", m.job.ID, "error", err)
	}
}

func (m *Manager) clearStoreLocked() {
	if m.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := m.store.Clear(ctx); err != nil {
		m.log.Warn("job.checkpoint_clear_failed", "error", err)
	}
}
