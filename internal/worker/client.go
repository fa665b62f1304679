package worker

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/1kastner/sherpa/pkg/model"
)

// Client communicates with the sherpa server API on behalf of a worker.
type Client struct {
	baseURL    string
	httpClient *http.Client
	workerID   string
	workerKey  string // Optional: shared secret for worker authentication
}

// NewClient creates a new worker API client with connection pooling.
// If tlsCfg is nil, the default system TLS configuration is used.
func NewClient(baseURL string, tlsCfg *tls.Config) *Client {
	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		TLSClientConfig:     tlsCfg,
	}

	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout:   30 * time.Second,
			Transport: transport,
		},
	}
}

// SetWorkerKey sets the shared secret for worker authentication.
func (c *Client) SetWorkerKey(key string) {
	c.workerKey = key
}

// WorkerID returns the registered worker ID.
func (c *Client) WorkerID() string {
	return c.workerID
}

// Register registers the worker with the server and stores the worker ID.
func (c *Client) Register(ctx context.Context, name, hostname string, trainer model.TrainerType) (*model.Worker, error) {
	body, err := json.Marshal(map[string]string{
		"name":     name,
		"hostname": hostname,
		"trainer":  string(trainer),
	})
	if err != nil {
		return nil, err
	}

	resp, err := c.doRequest(ctx, http.MethodPost, "/api/v1/workers", body)
	if err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}

	var worker model.Worker
	if err := decodeResponseData(resp, &worker); err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}

	c.workerID = worker.ID
	return &worker, nil
}

// Heartbeat sends a heartbeat to update last_seen.
func (c *Client) Heartbeat(ctx context.Context) error {
	resp, err := c.doRequest(ctx, http.MethodPut,
		fmt.Sprintf("/api/v1/workers/%s/heartbeat", c.workerID), nil)
	if err != nil {
		return fmt.Errorf("heartbeat: %w", err)
	}
	resp.Body.Close()
	return nil
}

// Checkout requests the next trial for a study. Returns
// model.ErrStudyFinished once the study has met its stopping criterion.
func (c *Client) Checkout(ctx context.Context, studyID string) (*model.TrialDescriptor, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+fmt.Sprintf("/api/v1/workers/%s/work?study=%s", c.workerID, studyID), nil)
	if err != nil {
		return nil, err
	}
	if c.workerKey != "" {
		req.Header.Set("X-Worker-Key", c.workerKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("checkout: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusConflict {
		// Confirm it really is the study-finished signal.
		var envelope struct {
			Error *model.APIError `json:"error"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&envelope); err == nil &&
			envelope.Error != nil && envelope.Error.Code == model.ErrFinished {
			return nil, model.ErrStudyFinished
		}
		return nil, fmt.Errorf("checkout: HTTP %d", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("checkout: HTTP %d: %s", resp.StatusCode, body)
	}

	var desc model.TrialDescriptor
	if err := decodeBody(resp.Body, &desc); err != nil {
		return nil, fmt.Errorf("checkout: %w", err)
	}
	return &desc, nil
}

// ReportResult is what a worker sends back after training a trial.
type ReportResult struct {
	StudyID   string        `json:"study_id"`
	Objective float64       `json:"objective"`
	Context   model.Context `json:"context,omitempty"`
}

// Report sends a trial's objective. The returned bool is true once the study
// has finished, so the caller can stop asking for work.
func (c *Client) Report(ctx context.Context, trialID int, result ReportResult) (bool, error) {
	body, err := json.Marshal(result)
	if err != nil {
		return false, err
	}

	resp, err := c.doRequest(ctx, http.MethodPut,
		fmt.Sprintf("/api/v1/workers/%s/trials/%d/report", c.workerID, trialID), body)
	if err != nil {
		return false, fmt.Errorf("report: %w", err)
	}

	var out struct {
		StudyFinished bool `json:"study_finished"`
	}
	if err := decodeResponseData(resp, &out); err != nil {
		return false, fmt.Errorf("report: %w", err)
	}
	return out.StudyFinished, nil
}

// AbandonTrial tells the server a trial will never report.
func (c *Client) AbandonTrial(ctx context.Context, studyID string, trialID int) error {
	resp, err := c.doRequest(ctx, http.MethodPost,
		fmt.Sprintf("/api/v1/studies/%s/trials/%d/abandon", studyID, trialID), nil)
	if err != nil {
		return fmt.Errorf("abandon: %w", err)
	}
	resp.Body.Close()
	return nil
}

// Deregister removes the worker from the server.
func (c *Client) Deregister(ctx context.Context) error {
	resp, err := c.doRequest(ctx, http.MethodDelete,
		fmt.Sprintf("/api/v1/workers/%s", c.workerID), nil)
	if err != nil {
		return fmt.Errorf("deregister: %w", err)
	}
	resp.Body.Close()
	return nil
}

// doRequest executes an HTTP request and returns the response.
func (c *Client) doRequest(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.workerKey != "" {
		req.Header.Set("X-Worker-Key", c.workerKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		respBody, _ := io.ReadAll(resp.Body)
		var envelope struct {
			Error *model.APIError `json:"error"`
		}
		if err := json.Unmarshal(respBody, &envelope); err == nil && envelope.Error != nil {
			return nil, envelope.Error
		}
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, respBody)
	}

	return resp, nil
}

// decodeResponseData extracts the data field from the API response envelope.
func decodeResponseData(resp *http.Response, dest any) error {
	defer resp.Body.Close()
	return decodeBody(resp.Body, dest)
}

func decodeBody(body io.Reader, dest any) error {
	var envelope struct {
		Status string          `json:"status"`
		Data   json.RawMessage `json:"data"`
		Error  *model.APIError `json:"error"`
	}
	if err := json.NewDecoder(body).Decode(&envelope); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if envelope.Error != nil {
		return envelope.Error
	}
	if dest == nil {
		return nil
	}
	if len(envelope.Data) == 0 {
		return errors.New("empty response data")
	}
	return json.Unmarshal(envelope.Data, dest)
}
