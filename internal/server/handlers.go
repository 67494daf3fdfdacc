package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jonathan/job-applier/internal/request"
	"github.com/jonathan/job-applier/internal/runner"
)

// maxBodyBytes caps an application payload
const maxBodyBytes = 10 << 20

// FieldMapRequest is the body of POST /field-maps
type FieldMapRequest struct {
	JobURL string   `json:"jobUrl"`
	Fields []string `json:"fields,omitempty"`
}

// FieldMapResponse is returned by POST /field-maps
type FieldMapResponse struct {
	JobURL      string              `json:"jobUrl"`
	SelectorMap map[string][]string `json:"selectorMap"`
}

// RunListResponse is returned by GET /applications
type RunListResponse struct {
	Runs  any `json:"runs"`
	Count int `json:"count"`
}

// parseApplication reads and validates the request body. On a validation fault
// it writes the rejection result and returns nil.
func (s *Server) parseApplication(w http.ResponseWriter, r *http.Request) (*runner.Job, bool) {
	smart := false
	if raw := r.URL.Query().Get("smartSelectors"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			s.errorResponse(w, http.StatusBadRequest, "invalid smartSelectors value")
			return nil, false
		}
		smart = parsed
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		s.errorResponse(w, http.StatusRequestEntityTooLarge, "request body too large")
		return nil, false
	}

	req, err := request.Parse(body, s.reqOpts)
	if err != nil {
		message := err.Error()
		var validationErr *request.ValidationError
		if errors.As(err, &validationErr) {
			message = validationErr.Message
		}
		s.jsonResponse(w, HTTPStatus(err), s.runner.Reject(message))
		return nil, false
	}

	return &runner.Job{Request: req, SmartSelectors: smart}, true
}

// handleApply runs an application and returns its result document.
// A run that aborts still answers 200; the document carries success=false.
func (s *Server) handleApply(w http.ResponseWriter, r *http.Request) {
	job, ok := s.parseApplication(w, r)
	if !ok {
		return
	}

	id, result, err := s.runner.Run(r.Context(), *job)
	if err != nil {
		s.logger.Info("run not started", zap.Error(err))
		s.errorResponse(w, http.StatusServiceUnavailable, "run not started: "+err.Error())
		return
	}

	w.Header().Set("X-Run-ID", id.String())
	s.jsonResponse(w, http.StatusOK, result)
}

// handleApplyStream runs an application, streaming progress as SSE before the result
func (s *Server) handleApplyStream(w http.ResponseWriter, r *http.Request) {
	job, ok := s.parseApplication(w, r)
	if !ok {
		return
	}

	stream, err := openEventStream(w)
	if err != nil {
		s.logger.Warn("event stream unavailable", zap.Error(err))
		return
	}

	job.Progress = stream
	_, result, err := s.runner.Run(r.Context(), *job)
	if err != nil {
		stream.fail("run not started: " + err.Error())
		return
	}
	stream.result(result)
}

// handleListRuns lists recent runs from the audit trail
func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		s.errorResponse(w, HTTPStatus(ErrHistoryDisabled), ErrHistoryDisabled.Error())
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			s.errorResponse(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = parsed
	}

	runs, err := s.history.ListRuns(r.Context(), limit)
	if err != nil {
		s.logger.Error("list runs failed", zap.Error(err))
		s.errorResponse(w, http.StatusInternalServerError, "failed to list runs")
		return
	}
	s.jsonResponse(w, http.StatusOK, RunListResponse{Runs: runs, Count: len(runs)})
}

// handleGetRun returns one run from the audit trail
func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		s.errorResponse(w, HTTPStatus(ErrHistoryDisabled), ErrHistoryDisabled.Error())
		return
	}

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, "invalid run id")
		return
	}

	run, err := s.history.GetRun(r.Context(), id)
	if err != nil {
		s.logger.Error("get run failed", zap.Error(err))
		s.errorResponse(w, http.StatusInternalServerError, "failed to get run")
		return
	}
	if run == nil {
		s.errorResponse(w, HTTPStatus(ErrNotFound), fmt.Sprintf("run %s not found", id))
		return
	}
	s.jsonResponse(w, http.StatusOK, run)
}

// handleFieldMap infers selectors for a job page
func (s *Server) handleFieldMap(w http.ResponseWriter, r *http.Request) {
	if s.mapper == nil {
		s.errorResponse(w, http.StatusServiceUnavailable, "field mapping requires an LLM API key")
		return
	}

	var req FieldMapRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	jobURL, err := request.SanitizeJobURL(req.JobURL, s.reqOpts.AllowPrivateHosts)
	if err != nil {
		s.errorResponse(w, HTTPStatus(&ErrBadRequest{}), "Invalid jobUrl: "+err.Error())
		return
	}

	selectorMap := s.mapper.Analyze(r.Context(), jobURL, req.Fields)
	s.jsonResponse(w, http.StatusOK, FieldMapResponse{JobURL: jobURL, SelectorMap: selectorMap})
}

// handleHealth returns server health status
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]string{"status": "ok"}
	if s.history != nil {
		resp["database"] = "ok"
		if err := s.history.Ping(r.Context()); err != nil {
			resp["database"] = "unavailable"
		}
	}
	s.jsonResponse(w, http.StatusOK, resp)
}
