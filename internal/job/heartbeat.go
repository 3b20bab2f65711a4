package job

import (
	"context"

	"github.com/lthibault/jitterbug/v2"
)

// The heartbeat re-persists the active job's snapshot on a jittered interval
// so the checkpoint's age keeps measuring "time since the process was last
// alive". Without it a long LLM call would age the snapshot past the resume
// threshold even though nothing crashed.

func (m *Manager) startHeartbeatLocked() {
	hbCtx, cancel := context.WithCancel(context.Background())
	m.hbStop = cancel
	m.hbWG.Add(1)
	go m.heartbeatLoop(hbCtx)
}

func (m *Manager) stopHeartbeatLocked() {
	if m.hbStop != nil {
		m.hbStop()
		m.hbStop = nil
	}
}

func (m *Manager) heartbeatLoop(ctx context.Context) {
	defer m.hbWG.Done()

	ticker := jitterbug.New(m.cfg.HeartbeatInterval, &jitterbug.Norm{Stdev: m.cfg.HeartbeatInterval / 20})
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.beat()
		}
	}
}

func (m *Manager) beat() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.job == nil || m.job.Stage.Terminal() {
		return
	}
	m.job.LastUpdate = m.now()
	m.persistLocked()
	m.log.Debug("job.heartbeat", "job_id", m.job.ID, "stage", m.job.Stage)
}
