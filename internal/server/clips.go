package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/render"

	"github.com/webclip-dev/webclip/internal/common"
	"github.com/webclip-dev/webclip/internal/entity"
)

// JobReply wraps the job snapshot returned by the clip endpoints.
type JobReply struct {
	Job entity.Job `json:"job"`
}

func (JobReply) Render(http.ResponseWriter, *http.Request) error { return nil }

// CancelReply reports whether a cancellation request landed on a live job.
type CancelReply struct {
	Cancelled bool `json:"cancelled"`
}

func (CancelReply) Render(http.ResponseWriter, *http.Request) error { return nil }

// ErrorReply is the JSON error body, mirroring the job error taxonomy.
type ErrorReply struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	status  int
}

func (e ErrorReply) Render(_ http.ResponseWriter, r *http.Request) error {
	render.Status(r, e.status)
	return nil
}

// errorReply maps a pipeline error to its HTTP representation.
func errorReply(err error) ErrorReply {
	code, message := common.Normalize(err)
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, common.ErrAlreadyRunning):
		status = http.StatusConflict
	case code == common.CodeInvalidRequest:
		status = http.StatusBadRequest
	case errors.Is(err, common.ErrNoActiveJob):
		status = http.StatusNotFound
		code, message = "no_active_job", "no clip job is active"
	}
	return ErrorReply{Code: code, Message: message, status: status}
}

// handleStartClip admits a new clip job. The pipeline runs in the background;
// 202 carries the accepted snapshot callers poll via /clips/current.
func (s *Server) handleStartClip(w http.ResponseWriter, r *http.Request) {
	var req entity.ClipRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = render.Render(w, r, ErrorReply{
			Code:    common.CodeInvalidRequest,
			Message: "request body is not valid JSON",
			status:  http.StatusBadRequest,
		})
		return
	}

	snap, err := s.deps.Pipeline.Start(req)
	if err != nil {
		s.log.Warn("api.clip_rejected", "url", req.URL, "error", err)
		_ = render.Render(w, r, errorReply(err))
		return
	}

	s.log.Info("api.clip_accepted", "job_id", snap.ID, "url", req.URL, "format", req.Format)
	render.Status(r, http.StatusAccepted)
	_ = render.Render(w, r, JobReply{Job: snap})
}

// handleCurrentClip returns the latest job, terminal ones included. 404 means
// the process has not run a job yet.
func (s *Server) handleCurrentClip(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.deps.Jobs.Current()
	if !ok {
		_ = render.Render(w, r, ErrorReply{
			Code:    "no_active_job",
			Message: "no clip job has run yet",
			status:  http.StatusNotFound,
		})
		return
	}
	_ = render.Render(w, r, JobReply{Job: snap})
}

// handleCancelClip flags the active job. Cancellation is cooperative: the
// pipeline observes the flag at its next boundary, so the reply only promises
// the request was recorded.
func (s *Server) handleCancelClip(w http.ResponseWriter, r *http.Request) {
	snap, err := s.deps.Jobs.Cancel()
	if err != nil {
		if errors.Is(err, common.ErrNoActiveJob) {
			_ = render.Render(w, r, CancelReply{Cancelled: false})
			return
		}
		_ = render.Render(w, r, errorReply(err))
		return
	}
	s.log.Info("api.cancel_requested", "job_id", snap.ID, "stage", snap.Stage)
	_ = render.Render(w, r, CancelReply{Cancelled: true})
}
