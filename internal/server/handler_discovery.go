package server

import "net/http"

type endpointInfo struct {
	Path        string   `json:"path"`
	Methods     []string `json:"methods"`
	Description string   `json:"description"`
}

type discoveryResponse struct {
	Name        string         `json:"name"`
	Version     string         `json:"version"`
	Description string         `json:"description"`
	Endpoints   []endpointInfo `json:"endpoints"`
}

func (s *Server) handleDiscovery(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	respondOK(w, reqID, discoveryResponse{
		Name:        "sherpa API",
		Version:     "v1",
		Description: "sherpa — asynchronous successive halving for hyperparameter search",
		Endpoints: []endpointInfo{
			{"/api/v1/studies", []string{"GET", "POST"}, "Study management. POST accepts a YAML or JSON study definition"},
			{"/api/v1/studies/{id}", []string{"GET"}, "Single study with trial summary"},
			{"/api/v1/studies/{id}/trials", []string{"GET"}, "List trials in creation order"},
			{"/api/v1/studies/{id}/trials/{tid}", []string{"GET"}, "Single trial detail"},
			{"/api/v1/studies/{id}/trials/{tid}/abandon", []string{"POST"}, "Stop a pending or running trial"},
			{"/api/v1/studies/{id}/observations", []string{"GET"}, "Append-ordered observation log"},
			{"/api/v1/studies/{id}/best", []string{"GET"}, "Best observation so far with its parameters"},
			{"/api/v1/studies/{id}/rungs", []string{"GET"}, "Per-rung promotion bookkeeping"},
			{"/api/v1/workers", []string{"GET", "POST"}, "Worker registration and listing"},
			{"/api/v1/workers/{id}/heartbeat", []string{"PUT"}, "Worker liveness signal"},
			{"/api/v1/workers/{id}/work", []string{"GET"}, "Check out the next trial for a study"},
			{"/api/v1/workers/{id}/trials/{tid}/report", []string{"PUT"}, "Report a trial objective"},
			{"/api/v1/sse/studies/{id}", []string{"GET"}, "Server-sent study progress events"},
			{"/api/v1/health", []string{"GET"}, "Server health and version"},
		},
	})
}
