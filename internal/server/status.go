package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/render"

	"github.com/webclip-dev/webclip/internal/common"
	"github.com/webclip-dev/webclip/internal/entity"
)

const (
	healthPingTimeout   = 2 * time.Second
	defaultHistoryLimit = 50
	maxHistoryLimit     = 1000
)

// HistoryReply lists finished jobs, newest first.
type HistoryReply struct {
	Records []entity.HistoryRecord `json:"records"`
}

func (HistoryReply) Render(http.ResponseWriter, *http.Request) error { return nil }

// HealthReply is the liveness snapshot of the daemon.
type HealthReply struct {
	Status        string `json:"status"`
	JobActive     bool   `json:"job_active"`
	SelectorSites int    `json:"selector_sites"`
}

func (HealthReply) Render(http.ResponseWriter, *http.Request) error { return nil }

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			_ = render.Render(w, r, ErrorReply{
				Code:    common.CodeInvalidRequest,
				Message: "limit must be a positive integer",
				status:  http.StatusBadRequest,
			})
			return
		}
		limit = n
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	records, err := s.deps.History.List(r.Context(), limit)
	if err != nil {
		s.log.Error("api.history_failed", "error", err)
		_ = render.Render(w, r, ErrorReply{
			Code:    common.CodeStorageError,
			Message: "could not read job history",
			status:  http.StatusInternalServerError,
		})
		return
	}
	if records == nil {
		records = []entity.HistoryRecord{}
	}
	_ = render.Render(w, r, HistoryReply{Records: records})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.deps.DB != nil {
		if err := s.deps.DB.HealthCheck(r.Context(), healthPingTimeout); err != nil {
			s.log.Error("api.health_db_failed", "error", err)
			_ = render.Render(w, r, ErrorReply{
				Code:    common.CodeStorageError,
				Message: "database is unreachable",
				status:  http.StatusServiceUnavailable,
			})
			return
		}
	}

	reply := HealthReply{Status: "ok"}
	if snap, ok := s.deps.Jobs.Current(); ok {
		reply.JobActive = snap.Stage.Active()
	}
	if s.deps.Cache != nil {
		reply.SelectorSites = s.deps.Cache.Size(r.Context())
	}
	_ = render.Render(w, r, reply)
}
