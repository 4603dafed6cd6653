// Package server exposes the optimization engine as an HTTP and JSON-RPC
// job service: studies are submitted as YAML payloads, run asynchronously,
// and polled for progress and results.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/h2econ/h2opt/internal/config"
	"github.com/h2econ/h2opt/internal/logging"
	"github.com/h2econ/h2opt/internal/optimize"
	"github.com/h2econ/h2opt/internal/study"
)

// Logger defines the logging interface used by the server.
type Logger interface {
	Debug(msg string, fields ...map[string]interface{})
	Info(msg string, fields ...map[string]interface{})
	Warn(msg string, fields ...map[string]interface{})
	Error(msg string, fields ...map[string]interface{})
	Fatal(msg string, fields ...map[string]interface{})
	WithFields(fields map[string]interface{}) *logging.Logger
}

// JobState tracks one optimization job. It is safe for concurrent access
// through the server's lock.
type JobState struct {
	ID          string
	Status      string // "pending", "running", "completed", "failed", "cancelled"
	StartTime   time.Time
	EndTime     *time.Time
	LastUpdated time.Time

	// Evaluations counts completed objective evaluations.
	Evaluations int
	// Best tracks the lowest objective value seen so far.
	Best *optimize.Solution

	Result     *optimize.Result
	FailReason string
	CancelFunc context.CancelFunc
}

// Server manages optimization jobs and their HTTP surface.
type Server struct {
	cfg       *config.Config
	logger    Logger
	evaluator optimize.Evaluator

	jobs   map[string]*JobState
	jobsMu sync.RWMutex
}

// NewServer creates a server that prices submitted studies with the given
// evaluator.
func NewServer(cfg *config.Config, logger Logger, evaluator optimize.Evaluator) *Server {
	return &Server{
		cfg:       cfg,
		logger:    logger,
		evaluator: evaluator,
		jobs:      make(map[string]*JobState),
	}
}

func (s *Server) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/optimize", s.handleOptimize)
		r.Get("/status/{id}", s.handleStatus)
		r.Delete("/optimization/{id}", s.handleCancel)
	})

	// JSON-RPC 2.0 endpoint.
	r.Post("/rpc", s.handleJSONRPC)
}

// handleJSONRPC handles JSON-RPC 2.0 requests.
func (s *Server) handleJSONRPC(w http.ResponseWriter, r *http.Request) {
	var request struct {
		JSONRPC string        `json:"jsonrpc"`
		ID      interface{}   `json:"id"`
		Method  string        `json:"method"`
		Params  []interface{} `json:"params,omitempty"`
	}

	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		s.respondWithError(w, -32700, "Parse error", nil)
		return
	}
	if request.JSONRPC != "2.0" {
		s.respondWithError(w, -32600, "Invalid Request", nil)
		return
	}

	var result interface{}
	var err error
	switch request.Method {
	case "optimization.start":
		result, err = s.startFromParams(request.Params)
	case "optimization.status":
		result, err = s.statusFromParams(request.Params)
	case "optimization.cancel":
		err = s.cancelFromParams(request.Params)
	default:
		s.respondWithError(w, -32601, "Method not found", request.ID)
		return
	}

	if err != nil {
		s.respondWithError(w, -32000, err.Error(), request.ID)
		return
	}

	response := map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      request.ID,
		"result":  result,
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// startFromParams handles the optimization.start JSON-RPC method.
// Expected parameters: {"study": "<yaml study definition>"}
// Returns: {"job_id": "opt_123", "status": "pending"}
func (s *Server) startFromParams(params []interface{}) (interface{}, error) {
	if len(params) == 0 {
		return nil, fmt.Errorf("missing required parameters")
	}
	paramMap, ok := params[0].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("invalid parameter format, expected object")
	}
	studyYAML, ok := paramMap["study"].(string)
	if !ok || studyYAML == "" {
		return nil, fmt.Errorf("study definition is required")
	}
	return s.startJob([]byte(studyYAML))
}

// startJob parses the study, registers a job and launches the
// optimization in the background.
func (s *Server) startJob(studyYAML []byte) (interface{}, error) {
	def, err := study.Parse(studyYAML)
	if err != nil {
		return nil, err
	}
	specs, err := def.Specs()
	if err != nil {
		return nil, err
	}
	settings := def.Settings()
	if settings.Workers == 0 {
		settings.Workers = s.cfg.Optimization.WorkerCount
	}
	if settings.Penalty == 0 {
		settings.Penalty = s.cfg.Optimization.Penalty
	}

	id := fmt.Sprintf("opt_%d", time.Now().UnixNano())
	ctx, cancel := context.WithCancel(context.Background())

	state := &JobState{
		ID:          id,
		Status:      "pending",
		StartTime:   time.Now(),
		LastUpdated: time.Now(),
		CancelFunc:  cancel,
	}
	s.jobsMu.Lock()
	s.jobs[id] = state
	s.jobsMu.Unlock()

	jobsStarted.Inc()
	go s.runJob(ctx, state, settings, specs, def)

	return map[string]interface{}{
		"job_id": id,
		"status": "pending",
	}, nil
}

// runJob executes the optimization and records the outcome.
func (s *Server) runJob(ctx context.Context, state *JobState, settings optimize.Settings, specs []optimize.ParameterSpec, def *study.Study) {
	s.jobsMu.Lock()
	state.Status = "running"
	state.LastUpdated = time.Now()
	s.jobsMu.Unlock()

	jobLogger := s.logger.WithFields(map[string]interface{}{"job_id": state.ID})

	progress := func(seq int, x []float64, value float64) {
		evaluationsTotal.Inc()
		s.jobsMu.Lock()
		state.Evaluations++
		if state.Best == nil || value < state.Best.Value {
			state.Best = &optimize.Solution{
				Params: append([]float64(nil), x...),
				Value:  value,
			}
		}
		state.LastUpdated = time.Now()
		s.jobsMu.Unlock()
	}

	result, err := optimize.Run(ctx, settings, specs, def.CostModel(), s.evaluator,
		optimize.WithProgress(progress),
		optimize.WithLogger(jobLogger),
	)

	s.finishJob(state, result, err, jobLogger)
}

// finishJob records the terminal state of a job. A job cancelled while its
// run was finishing stays cancelled; the racing run's outcome is discarded.
func (s *Server) finishJob(state *JobState, result *optimize.Result, err error, jobLogger *logging.Logger) {
	s.jobsMu.Lock()
	defer s.jobsMu.Unlock()

	now := time.Now()
	state.EndTime = &now
	state.LastUpdated = now

	switch {
	case state.Status == "cancelled":
	case err != nil:
		jobLogger.Error("optimization failed", map[string]interface{}{"error": err.Error()})
		state.Status = "failed"
		state.FailReason = err.Error()
	default:
		state.Status = "completed"
		state.Result = result
	}
	jobsFinished.WithLabelValues(state.Status).Inc()
}

// statusFromParams handles the optimization.status JSON-RPC method.
// Expected parameters: {"job_id": "opt_123"}
func (s *Server) statusFromParams(params []interface{}) (interface{}, error) {
	id, err := jobIDFromParams(params)
	if err != nil {
		return nil, err
	}
	return s.jobStatus(id)
}

func (s *Server) jobStatus(id string) (interface{}, error) {
	s.jobsMu.RLock()
	defer s.jobsMu.RUnlock()

	state, exists := s.jobs[id]
	if !exists {
		return nil, fmt.Errorf("job not found")
	}

	response := map[string]interface{}{
		"status":      state.Status,
		"evaluations": state.Evaluations,
		"start_time":  state.StartTime.Format(time.RFC3339),
		"last_update": state.LastUpdated.Format(time.RFC3339),
	}
	if state.EndTime != nil {
		response["end_time"] = state.EndTime.Format(time.RFC3339)
	}
	if state.FailReason != "" {
		response["reason"] = state.FailReason
	}
	if state.Best != nil {
		response["current_best"] = map[string]interface{}{
			"parameters": state.Best.Params,
			"value":      state.Best.Value,
		}
	}
	if state.Result != nil {
		response["result"] = resultPayload(state.Result, s.cfg.Optimization.JobHistoryLimit)
	}
	return response, nil
}

// resultPayload renders a completed result, truncating the evaluation
// history to limit records when a cap is configured.
func resultPayload(result *optimize.Result, limit int) map[string]interface{} {
	params := make([]map[string]interface{}, len(result.Parameters))
	for i, p := range result.Parameters {
		params[i] = map[string]interface{}{
			"name":     p.Name,
			"path":     p.Path.String(),
			"baseline": p.Baseline,
			"optimal":  p.Optimal,
		}
	}

	history := result.History
	if limit > 0 && len(history) > limit {
		history = history[len(history)-limit:]
	}
	records := make([]map[string]interface{}, len(history))
	for i, rec := range history {
		records[i] = map[string]interface{}{
			"seq":    rec.Seq,
			"params": rec.Params,
			"value":  rec.Value,
			"failed": rec.Failed,
		}
	}

	return map[string]interface{}{
		"baseline_cost":     result.Baseline.Value,
		"optimal_cost":      result.Optimal.Value,
		"optimal_params":    result.Optimal.Params,
		"reduction":         result.Reduction,
		"reduction_percent": result.ReductionPercent,
		"generations":       result.Generations,
		"converged":         result.Converged,
		"parameters":        params,
		"history":           records,
	}
}

// cancelFromParams handles the optimization.cancel JSON-RPC method.
// Expected parameters: {"job_id": "opt_123"}
func (s *Server) cancelFromParams(params []interface{}) error {
	id, err := jobIDFromParams(params)
	if err != nil {
		return err
	}
	return s.cancelJob(id)
}

func (s *Server) cancelJob(id string) error {
	s.jobsMu.Lock()
	defer s.jobsMu.Unlock()

	state, exists := s.jobs[id]
	if !exists {
		return fmt.Errorf("job not found")
	}
	switch state.Status {
	case "completed", "failed", "cancelled":
		return fmt.Errorf("cannot cancel job with status: %s", state.Status)
	}

	if state.CancelFunc != nil {
		state.CancelFunc()
	}
	state.Status = "cancelled"
	now := time.Now()
	state.EndTime = &now
	state.LastUpdated = now

	s.logger.Info("job cancelled", map[string]interface{}{"job_id": id})
	return nil
}

func jobIDFromParams(params []interface{}) (string, error) {
	if len(params) == 0 {
		return "", fmt.Errorf("missing required parameters")
	}
	paramMap, ok := params[0].(map[string]interface{})
	if !ok {
		return "", fmt.Errorf("invalid parameter format, expected object")
	}
	id, ok := paramMap["job_id"].(string)
	if !ok || id == "" {
		return "", fmt.Errorf("job_id is required")
	}
	return id, nil
}

// respondWithError sends a JSON-RPC 2.0 error response.
func (s *Server) respondWithError(w http.ResponseWriter, code int, message string, id interface{}) {
	s.logger.Error("request error", map[string]interface{}{
		"code":    code,
		"message": message,
	})

	response := map[string]interface{}{
		"jsonrpc": "2.0",
		"error": map[string]interface{}{
			"code":    code,
			"message": message,
		},
		"id": id,
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(response)
}

// Close cancels all running jobs.
func (s *Server) Close() error {
	s.jobsMu.Lock()
	defer s.jobsMu.Unlock()
	for _, job := range s.jobs {
		if job.CancelFunc != nil {
			job.CancelFunc()
		}
	}
	return nil
}

// handleOptimize handles POST /api/v1/optimize. The request body is a
// YAML study definition.
func (s *Server) handleOptimize(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil || len(body) == 0 {
		http.Error(w, "request body must be a YAML study definition", http.StatusBadRequest)
		return
	}

	result, err := s.startJob(body)
	w.Header().Set("Content-Type", "application/json")
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]interface{}{"error": err.Error()})
		return
	}
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(result)
}

// handleStatus handles GET /api/v1/status/{id}.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		http.Error(w, "missing job ID", http.StatusBadRequest)
		return
	}

	result, err := s.jobStatus(id)
	w.Header().Set("Content-Type", "application/json")
	if err != nil {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]interface{}{"error": err.Error()})
		return
	}
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(result)
}

// handleCancel handles DELETE /api/v1/optimization/{id}.
func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		http.Error(w, "missing job ID", http.StatusBadRequest)
		return
	}

	err := s.cancelJob(id)
	w.Header().Set("Content-Type", "application/json")
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]interface{}{"error": err.Error()})
		return
	}
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "cancellation requested"})
}
