package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/1kastner/sherpa/pkg/model"
)

type registerWorkerRequest struct {
	Name     string            `json:"name"`
	Hostname string            `json:"hostname,omitempty"`
	Trainer  model.TrainerType `json:"trainer,omitempty"`
	Labels   map[string]string `json:"labels,omitempty"`
}

// handleRegisterWorker registers a new worker.
// POST /api/v1/workers
func (s *Server) handleRegisterWorker(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	var req registerWorkerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, reqID, http.StatusBadRequest,
			model.NewValidationError("invalid JSON body"))
		return
	}
	if req.Name == "" {
		respondError(w, reqID, http.StatusBadRequest,
			model.NewValidationError("missing required field", model.FieldError{
				Field: "name", Message: "name is required",
			}))
		return
	}
	trainer := req.Trainer
	if trainer == "" {
		trainer = model.TrainerSim
	}

	now := time.Now().UTC()
	worker := &model.Worker{
		ID:           "wrk_" + uuid.New().String()[:8],
		Name:         req.Name,
		Hostname:     req.Hostname,
		State:        model.WorkerStateOnline,
		Trainer:      trainer,
		Labels:       req.Labels,
		LastSeen:     now,
		RegisteredAt: now,
	}
	if err := s.store.CreateWorker(r.Context(), worker); err != nil {
		respondError(w, reqID, http.StatusInternalServerError, model.NewInternalError(err.Error()))
		return
	}

	s.logger.Info("worker registered", "worker", worker.ID, "name", worker.Name, "trainer", trainer)
	respondCreated(w, reqID, worker)
}

// handleWorkerHeartbeat updates a worker's last-seen timestamp.
// PUT /api/v1/workers/{id}/heartbeat
func (s *Server) handleWorkerHeartbeat(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	id := chi.URLParam(r, "id")

	worker, err := s.store.GetWorker(r.Context(), id)
	if err != nil {
		respondError(w, reqID, http.StatusInternalServerError, model.NewInternalError(err.Error()))
		return
	}
	if worker == nil {
		respondError(w, reqID, http.StatusNotFound, model.NewNotFoundError("worker", id))
		return
	}

	worker.State = model.WorkerStateOnline
	worker.LastSeen = time.Now().UTC()
	if err := s.store.UpdateWorker(r.Context(), worker); err != nil {
		respondError(w, reqID, http.StatusInternalServerError, model.NewInternalError(err.Error()))
		return
	}
	respondOK(w, reqID, worker)
}

// handleDeregisterWorker removes a worker. Any trial it held is abandoned.
// DELETE /api/v1/workers/{id}
func (s *Server) handleDeregisterWorker(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	id := chi.URLParam(r, "id")

	worker, err := s.store.GetWorker(r.Context(), id)
	if err != nil {
		respondError(w, reqID, http.StatusInternalServerError, model.NewInternalError(err.Error()))
		return
	}
	if worker == nil {
		respondError(w, reqID, http.StatusNotFound, model.NewNotFoundError("worker", id))
		return
	}

	if worker.CurrentTrial != 0 && worker.CurrentStudy != "" {
		if err := s.abandonWorkerTrial(r.Context(), worker); err != nil {
			s.logger.Warn("abandon trial on deregister",
				"worker", id, "trial", worker.CurrentTrial, "error", err)
		}
	}
	if err := s.store.DeleteWorker(r.Context(), id); err != nil {
		respondError(w, reqID, http.StatusInternalServerError, model.NewInternalError(err.Error()))
		return
	}

	s.logger.Info("worker deregistered", "worker", id)
	respondOK(w, reqID, map[string]string{"id": id, "status": "deregistered"})
}

// handleListWorkers lists all registered workers.
// GET /api/v1/workers
func (s *Server) handleListWorkers(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	workers, err := s.store.ListWorkers(r.Context())
	if err != nil {
		respondError(w, reqID, http.StatusInternalServerError, model.NewInternalError(err.Error()))
		return
	}
	respondOK(w, reqID, workers)
}

// handleWorkerCheckout hands a trial descriptor to a worker. Promotions win
// over fresh samples inside the scheduler; here we only persist what it chose.
// GET /api/v1/workers/{id}/work?study={sid}
func (s *Server) handleWorkerCheckout(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	workerID := chi.URLParam(r, "id")
	sid := r.URL.Query().Get("study")

	if sid == "" {
		respondError(w, reqID, http.StatusBadRequest,
			model.NewValidationError("study query parameter is required"))
		return
	}
	auth := WorkerAuthFromContext(r.Context())
	if !auth.CanAccessStudy(sid) {
		respondError(w, reqID, http.StatusForbidden, &model.APIError{
			Code:    model.ErrUnauthorized,
			Message: "worker key does not grant access to study " + sid,
		})
		return
	}

	worker, err := s.store.GetWorker(r.Context(), workerID)
	if err != nil {
		respondError(w, reqID, http.StatusInternalServerError, model.NewInternalError(err.Error()))
		return
	}
	if worker == nil {
		respondError(w, reqID, http.StatusNotFound, model.NewNotFoundError("worker", workerID))
		return
	}
	h := s.handle(sid)
	if h == nil {
		respondError(w, reqID, http.StatusNotFound, model.NewNotFoundError("study", sid))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	desc, err := h.sched.NextTrial(workerID)
	if err != nil {
		respondSchedulerError(w, reqID, err)
		return
	}
	trial, err := h.sched.Trial(desc.ID)
	if err != nil {
		respondError(w, reqID, http.StatusInternalServerError, model.NewInternalError(err.Error()))
		return
	}
	if err := s.store.CreateTrial(r.Context(), sid, &trial); err != nil {
		// Roll the checkout back: the store has no row for this trial, so
		// leaving it RUNNING in memory would diverge from what a restart
		// restores.
		if abandonErr := h.sched.Abandon(desc.ID); abandonErr != nil {
			s.logger.Error("abandon after store failure",
				"study", sid, "trial", desc.ID, "error", abandonErr)
		}
		respondError(w, reqID, http.StatusInternalServerError, model.NewInternalError(err.Error()))
		return
	}

	worker.State = model.WorkerStateOnline
	worker.LastSeen = time.Now().UTC()
	worker.CurrentTrial = trial.ID
	worker.CurrentStudy = sid
	if err := s.store.UpdateWorker(r.Context(), worker); err != nil {
		respondError(w, reqID, http.StatusInternalServerError, model.NewInternalError(err.Error()))
		return
	}

	desc.StudyID = sid
	respondOK(w, reqID, desc)
}

type reportRequest struct {
	StudyID   string        `json:"study_id"`
	Objective float64       `json:"objective"`
	Context   model.Context `json:"context,omitempty"`
}

type reportResponse struct {
	Trial         model.Trial `json:"trial"`
	StudyFinished bool        `json:"study_finished"`
}

// handleWorkerReport records a trial result. Reports stay valid after the
// study finishes; only checkout refuses then.
// PUT /api/v1/workers/{id}/trials/{tid}/report
func (s *Server) handleWorkerReport(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	workerID := chi.URLParam(r, "id")

	tid, err := strconv.Atoi(chi.URLParam(r, "tid"))
	if err != nil {
		respondError(w, reqID, http.StatusBadRequest,
			model.NewValidationError("trial id must be an integer"))
		return
	}
	var req reportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, reqID, http.StatusBadRequest,
			model.NewValidationError("invalid JSON body"))
		return
	}
	if req.StudyID == "" {
		respondError(w, reqID, http.StatusBadRequest,
			model.NewValidationError("study_id is required"))
		return
	}
	auth := WorkerAuthFromContext(r.Context())
	if !auth.CanAccessStudy(req.StudyID) {
		respondError(w, reqID, http.StatusForbidden, &model.APIError{
			Code:    model.ErrUnauthorized,
			Message: "worker key does not grant access to study " + req.StudyID,
		})
		return
	}
	h := s.handle(req.StudyID)
	if h == nil {
		respondError(w, reqID, http.StatusNotFound, model.NewNotFoundError("study", req.StudyID))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.sched.Report(tid, req.Objective, req.Context); err != nil {
		respondSchedulerError(w, reqID, err)
		return
	}
	trial, err := h.sched.Trial(tid)
	if err != nil {
		respondError(w, reqID, http.StatusInternalServerError, model.NewInternalError(err.Error()))
		return
	}
	if err := s.store.UpdateTrial(r.Context(), req.StudyID, &trial); err != nil {
		respondError(w, reqID, http.StatusInternalServerError, model.NewInternalError(err.Error()))
		return
	}
	if err := s.store.AppendObservation(r.Context(), req.StudyID, &model.Observation{
		TrialID:    tid,
		Rung:       trial.Rung,
		Objective:  req.Objective,
		Context:    req.Context,
		RecordedAt: time.Now().UTC(),
	}); err != nil {
		respondError(w, reqID, http.StatusInternalServerError, model.NewInternalError(err.Error()))
		return
	}
	if err := s.finishStudy(r.Context(), h); err != nil {
		respondError(w, reqID, http.StatusInternalServerError, model.NewInternalError(err.Error()))
		return
	}

	// Release the worker's current assignment.
	if worker, err := s.store.GetWorker(r.Context(), workerID); err == nil && worker != nil {
		worker.LastSeen = time.Now().UTC()
		worker.CurrentTrial = 0
		worker.CurrentStudy = ""
		if err := s.store.UpdateWorker(r.Context(), worker); err != nil {
			s.logger.Warn("update worker after report", "worker", workerID, "error", err)
		}
	}

	respondOK(w, reqID, reportResponse{
		Trial:         trial,
		StudyFinished: h.sched.Finished(),
	})
}

// abandonWorkerTrial stops the trial a worker was holding and persists the
// updated row. Used by deregistration and the reaper.
func (s *Server) abandonWorkerTrial(ctx context.Context, worker *model.Worker) error {
	h := s.handle(worker.CurrentStudy)
	if h == nil {
		return nil
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.sched.Abandon(worker.CurrentTrial); err != nil {
		return err
	}
	trial, err := h.sched.Trial(worker.CurrentTrial)
	if err != nil {
		return err
	}
	return s.store.UpdateTrial(ctx, worker.CurrentStudy, &trial)
}
