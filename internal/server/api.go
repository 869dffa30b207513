// ABOUTME: REST handlers for the tasks table with row policy enforcement
// ABOUTME: Maps store errors onto status codes and PostgREST-style error bodies

package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/2389/tasksync/internal/auth"
	"github.com/2389/tasksync/internal/metrics"
	"github.com/2389/tasksync/internal/model"
	"github.com/2389/tasksync/internal/store"
)

const maxBodyBytes = 64 << 10

// ErrorResponse is the JSON error body.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := s.tasks.ListTasks(r.Context())
	if err != nil {
		s.sendStoreError(w, r, err)
		return
	}
	if tasks == nil {
		tasks = []model.Task{}
	}
	writeJSON(w, http.StatusOK, tasks)
}

func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var t model.Task
	if !decodeBody(w, r, &t) {
		return
	}
	created, err := s.tasks.InsertTask(r.Context(), actor(r), t)
	if err != nil {
		s.sendStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	t, err := s.tasks.GetTask(r.Context(), id)
	if err != nil {
		s.sendStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleUpdateTask(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var patch model.TaskPatch
	if !decodeBody(w, r, &patch) {
		return
	}
	updated, err := s.tasks.UpdateTask(r.Context(), actor(r), id, patch)
	if err != nil {
		s.sendStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	old, err := s.tasks.DeleteTask(r.Context(), actor(r), id)
	if err != nil {
		s.sendStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, old)
}

func actor(r *http.Request) string {
	return auth.ActorFromContext(r.Context())
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		sendJSONError(w, http.StatusBadRequest, "400", "invalid task id")
		return 0, false
	}
	return id, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		sendJSONError(w, http.StatusBadRequest, "400", "invalid JSON body")
		return false
	}
	return true
}

// sendStoreError maps a store error onto a response.
func (s *Server) sendStoreError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, model.ErrPolicyViolation):
		sendJSONError(w, http.StatusForbidden, model.PolicyViolationCode, "new row violates row-level security policy for table \"tasks\"")
	case errors.Is(err, store.ErrInvalidTask):
		sendJSONError(w, http.StatusBadRequest, "400", err.Error())
	case errors.Is(err, store.ErrNotFound):
		sendJSONError(w, http.StatusNotFound, "404", "task not found")
	default:
		s.logger.Error("store operation failed", "method", r.Method, "path", r.URL.Path, "error", err)
		sendJSONError(w, http.StatusInternalServerError, "500", "internal server error")
	}
}

// sendJSONError writes a JSON error response.
func sendJSONError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Code: code, Message: message})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// instrument records request latency for route.
func instrument(route string, next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next(rec, r)
		metrics.RequestDuration.WithLabelValues(route, strconv.Itoa(rec.status)).Observe(time.Since(start).Seconds())
	})
}
