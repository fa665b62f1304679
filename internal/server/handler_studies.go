package server

import (
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/1kastner/sherpa/internal/studyfile"
	"github.com/1kastner/sherpa/pkg/model"
)

// handleCreateStudy creates a study from a definition document.
// POST /api/v1/studies
// The body is a study definition in YAML or JSON.
func (s *Server) handleCreateStudy(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		respondError(w, reqID, http.StatusBadRequest,
			model.NewValidationError("failed to read request body"))
		return
	}
	spec, err := studyfile.Parse(body)
	if err != nil {
		respondError(w, reqID, http.StatusBadRequest,
			model.NewValidationError(err.Error()))
		return
	}
	if errs := spec.Validate(); len(errs) > 0 {
		respondError(w, reqID, http.StatusBadRequest,
			model.NewValidationError("invalid study definition", errs...))
		return
	}

	study, err := s.createStudy(r.Context(), spec, r.Header.Get("X-Submitted-By"))
	if err != nil {
		respondError(w, reqID, http.StatusInternalServerError, model.NewInternalError(err.Error()))
		return
	}
	respondCreated(w, reqID, study)
}

// handleListStudies lists studies with pagination.
// GET /api/v1/studies?limit=20&offset=0&state=ACTIVE
func (s *Server) handleListStudies(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	opts := model.DefaultListOptions()
	if v := r.URL.Query().Get("limit"); v != "" {
		opts.Limit, _ = strconv.Atoi(v)
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		opts.Offset, _ = strconv.Atoi(v)
	}
	opts.State = r.URL.Query().Get("state")
	opts.Clamp()

	studies, total, err := s.store.ListStudies(r.Context(), opts)
	if err != nil {
		respondError(w, reqID, http.StatusInternalServerError, model.NewInternalError(err.Error()))
		return
	}

	// Attach live trial summaries where a scheduler is loaded.
	for _, st := range studies {
		if h := s.handle(st.ID); h != nil {
			st.TrialSummary = h.sched.TrialSummary()
		}
	}

	respondList(w, reqID, studies, &model.Pagination{
		Total:   total,
		Limit:   opts.Limit,
		Offset:  opts.Offset,
		HasMore: opts.Offset+len(studies) < total,
	})
}

// handleGetStudy returns one study with its trial summary.
// GET /api/v1/studies/{id}
func (s *Server) handleGetStudy(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	id := chi.URLParam(r, "id")

	h := s.handle(id)
	if h == nil {
		respondError(w, reqID, http.StatusNotFound, model.NewNotFoundError("study", id))
		return
	}
	h.mu.Lock()
	view := h.studyView()
	h.mu.Unlock()
	respondOK(w, reqID, view)
}

// handleListTrials returns every trial of a study in creation order.
// GET /api/v1/studies/{id}/trials
func (s *Server) handleListTrials(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	id := chi.URLParam(r, "id")

	h := s.handle(id)
	if h == nil {
		respondError(w, reqID, http.StatusNotFound, model.NewNotFoundError("study", id))
		return
	}
	respondOK(w, reqID, h.sched.Trials())
}

// handleGetTrial returns one trial.
// GET /api/v1/studies/{id}/trials/{tid}
func (s *Server) handleGetTrial(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	id := chi.URLParam(r, "id")

	h := s.handle(id)
	if h == nil {
		respondError(w, reqID, http.StatusNotFound, model.NewNotFoundError("study", id))
		return
	}
	tid, err := strconv.Atoi(chi.URLParam(r, "tid"))
	if err != nil {
		respondError(w, reqID, http.StatusBadRequest,
			model.NewValidationError("trial id must be an integer"))
		return
	}
	trial, err := h.sched.Trial(tid)
	if err != nil {
		respondError(w, reqID, http.StatusNotFound,
			model.NewNotFoundError("trial", strconv.Itoa(tid)))
		return
	}
	respondOK(w, reqID, trial)
}

// handleAbandonTrial stops a pending or running trial that will never report.
// POST /api/v1/studies/{id}/trials/{tid}/abandon
func (s *Server) handleAbandonTrial(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	id := chi.URLParam(r, "id")

	h := s.handle(id)
	if h == nil {
		respondError(w, reqID, http.StatusNotFound, model.NewNotFoundError("study", id))
		return
	}
	tid, err := strconv.Atoi(chi.URLParam(r, "tid"))
	if err != nil {
		respondError(w, reqID, http.StatusBadRequest,
			model.NewValidationError("trial id must be an integer"))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.sched.Abandon(tid); err != nil {
		respondSchedulerError(w, reqID, err)
		return
	}
	trial, err := h.sched.Trial(tid)
	if err != nil {
		respondError(w, reqID, http.StatusInternalServerError, model.NewInternalError(err.Error()))
		return
	}
	if err := s.store.UpdateTrial(r.Context(), id, &trial); err != nil {
		respondError(w, reqID, http.StatusInternalServerError, model.NewInternalError(err.Error()))
		return
	}
	respondOK(w, reqID, trial)
}

// handleListObservations returns the append-ordered observation log.
// GET /api/v1/studies/{id}/observations
func (s *Server) handleListObservations(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	id := chi.URLParam(r, "id")

	h := s.handle(id)
	if h == nil {
		respondError(w, reqID, http.StatusNotFound, model.NewNotFoundError("study", id))
		return
	}
	respondOK(w, reqID, h.sched.Observations())
}

type bestResponse struct {
	Observation model.Observation  `json:"observation"`
	Parameters  model.ParameterSet `json:"parameters"`
}

// handleBestResult returns the best observation so far with its parameters.
// GET /api/v1/studies/{id}/best
func (s *Server) handleBestResult(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	id := chi.URLParam(r, "id")

	h := s.handle(id)
	if h == nil {
		respondError(w, reqID, http.StatusNotFound, model.NewNotFoundError("study", id))
		return
	}
	best, ok := h.sched.BestResult()
	if !ok {
		respondError(w, reqID, http.StatusNotFound, &model.APIError{
			Code:    model.ErrNotFound,
			Message: "no observations reported yet",
		})
		return
	}
	trial, err := h.sched.Trial(best.TrialID)
	if err != nil {
		respondError(w, reqID, http.StatusInternalServerError, model.NewInternalError(err.Error()))
		return
	}
	respondOK(w, reqID, bestResponse{Observation: best, Parameters: trial.Parameters})
}

// handleRungs returns per-rung bookkeeping snapshots.
// GET /api/v1/studies/{id}/rungs
func (s *Server) handleRungs(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	id := chi.URLParam(r, "id")

	h := s.handle(id)
	if h == nil {
		respondError(w, reqID, http.StatusNotFound, model.NewNotFoundError("study", id))
		return
	}
	respondOK(w, reqID, h.sched.RungSummaries())
}
