package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/h2econ/h2opt/internal/config"
	"github.com/h2econ/h2opt/internal/logging"
	"github.com/h2econ/h2opt/internal/model"
	"github.com/h2econ/h2opt/internal/optimize"
)

const testStudy = `
model:
  Plant Design:
    Electrolyzer Size:
      value: 4.0
      unit: MW
parameters:
  - path: Plant Design > Electrolyzer Size > Value
    name: Electrolyzer Size
    lower: 0.0
    upper: 10.0
optimization:
  method: differential_evolution
  max_iterations: 40
  population_size: 8
  tolerance: 0.01
  seed: 42
  workers: 2
`

// quadraticEvaluator has its minimum at size 2.
func quadraticEvaluator() optimize.Evaluator {
	sizePath := model.Path{Section: "Plant Design", Entry: "Electrolyzer Size", Leaf: model.ValueLeaf}
	return optimize.EvaluatorFunc(func(m *model.Model) (float64, error) {
		size, err := m.Get(sizePath)
		if err != nil {
			return 0, err
		}
		return (size - 2.0) * (size - 2.0), nil
	})
}

// slowEvaluator never finishes a search within a test run, so jobs stay
// cancellable.
func slowEvaluator() optimize.Evaluator {
	return optimize.EvaluatorFunc(func(m *model.Model) (float64, error) {
		time.Sleep(10 * time.Millisecond)
		return 1.0, nil
	})
}

func testServer(t *testing.T, eval optimize.Evaluator) (*Server, *httptest.Server) {
	t.Helper()

	cfg := &config.Config{}
	cfg.Optimization.WorkerCount = 2
	logger := logging.New(logging.ErrorLevel, io.Discard)

	srv := NewServer(cfg, logger, eval)
	t.Cleanup(func() { srv.Close() })

	router := chi.NewRouter()
	srv.RegisterRoutes(router)
	ts := httptest.NewServer(router)
	t.Cleanup(ts.Close)
	return srv, ts
}

func postYAML(t *testing.T, ts *httptest.Server, path, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(ts.URL+path, "application/x-yaml", bytes.NewBufferString(body))
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	defer resp.Body.Close()
	var out map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

// waitForStatus polls the job until it reaches a terminal state.
func waitForStatus(t *testing.T, ts *httptest.Server, jobID string, want string) map[string]interface{} {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		resp, err := http.Get(ts.URL + "/api/v1/status/" + jobID)
		require.NoError(t, err)
		body := decodeBody(t, resp)
		if body["status"] == want {
			return body
		}
		switch body["status"] {
		case "failed", "cancelled":
			t.Fatalf("job reached %v while waiting for %s: %v", body["status"], want, body)
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("job %s did not reach status %s", jobID, want)
	return nil
}

func TestOptimizeEndToEnd(t *testing.T) {
	_, ts := testServer(t, quadraticEvaluator())

	resp := postYAML(t, ts, "/api/v1/optimize", testStudy)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	body := decodeBody(t, resp)
	jobID, ok := body["job_id"].(string)
	require.True(t, ok)
	require.NotEmpty(t, jobID)
	assert.Equal(t, "pending", body["status"])

	status := waitForStatus(t, ts, jobID, "completed")
	result, ok := status["result"].(map[string]interface{})
	require.True(t, ok, "completed job must carry a result")

	// Baseline size 4 costs 4; the optimum at size 2 costs 0.
	assert.InDelta(t, 4.0, result["baseline_cost"].(float64), 1e-9)
	assert.Less(t, result["optimal_cost"].(float64), 0.1)
	assert.Greater(t, result["reduction_percent"].(float64), 90.0)

	evals, ok := status["evaluations"].(float64)
	require.True(t, ok)
	assert.Greater(t, evals, float64(0))
}

func TestOptimizeRejectsInvalidStudy(t *testing.T) {
	_, ts := testServer(t, quadraticEvaluator())

	resp := postYAML(t, ts, "/api/v1/optimize", "model: [not, a, mapping]")
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.NotEmpty(t, body["error"])

	resp = postYAML(t, ts, "/api/v1/optimize", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestStatusUnknownJob(t *testing.T) {
	_, ts := testServer(t, quadraticEvaluator())

	resp, err := http.Get(ts.URL + "/api/v1/status/opt_missing")
	require.NoError(t, err)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Contains(t, body["error"], "not found")
}

func TestCancelRunningJob(t *testing.T) {
	_, ts := testServer(t, slowEvaluator())

	resp := postYAML(t, ts, "/api/v1/optimize", testStudy)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	body := decodeBody(t, resp)
	jobID := body["job_id"].(string)

	req, err := http.NewRequest(http.MethodDelete, ts.URL+"/api/v1/optimization/"+jobID, nil)
	require.NoError(t, err)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp, err = http.Get(ts.URL + "/api/v1/status/" + jobID)
	require.NoError(t, err)
	status := decodeBody(t, resp)
	assert.Equal(t, "cancelled", status["status"])

	// A second cancel on a terminal job is rejected.
	req, err = http.NewRequest(http.MethodDelete, ts.URL+"/api/v1/optimization/"+jobID, nil)
	require.NoError(t, err)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestCancelUnknownJob(t *testing.T) {
	_, ts := testServer(t, quadraticEvaluator())

	req, err := http.NewRequest(http.MethodDelete, ts.URL+"/api/v1/optimization/opt_missing", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func rpcCall(t *testing.T, ts *httptest.Server, payload string) map[string]interface{} {
	t.Helper()
	resp, err := http.Post(ts.URL+"/rpc", "application/json", bytes.NewBufferString(payload))
	require.NoError(t, err)
	return decodeBody(t, resp)
}

func TestJSONRPCLifecycle(t *testing.T) {
	_, ts := testServer(t, quadraticEvaluator())

	start := map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "optimization.start",
		"params":  []interface{}{map[string]interface{}{"study": testStudy}},
	}
	payload, err := json.Marshal(start)
	require.NoError(t, err)

	body := rpcCall(t, ts, string(payload))
	require.Nil(t, body["error"], "start must succeed: %v", body)
	result := body["result"].(map[string]interface{})
	jobID := result["job_id"].(string)
	require.NotEmpty(t, jobID)

	waitForStatus(t, ts, jobID, "completed")

	statusReq := map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      2,
		"method":  "optimization.status",
		"params":  []interface{}{map[string]interface{}{"job_id": jobID}},
	}
	payload, err = json.Marshal(statusReq)
	require.NoError(t, err)

	body = rpcCall(t, ts, string(payload))
	require.Nil(t, body["error"])
	status := body["result"].(map[string]interface{})
	assert.Equal(t, "completed", status["status"])
}

func TestJSONRPCErrors(t *testing.T) {
	_, ts := testServer(t, quadraticEvaluator())

	tests := []struct {
		name     string
		payload  string
		wantCode float64
	}{
		{
			name:     "parse error",
			payload:  "{not json",
			wantCode: -32700,
		},
		{
			name:     "wrong version",
			payload:  `{"jsonrpc":"1.0","id":1,"method":"optimization.status"}`,
			wantCode: -32600,
		},
		{
			name:     "unknown method",
			payload:  `{"jsonrpc":"2.0","id":1,"method":"optimization.pause"}`,
			wantCode: -32601,
		},
		{
			name:     "missing params",
			payload:  `{"jsonrpc":"2.0","id":1,"method":"optimization.status"}`,
			wantCode: -32000,
		},
		{
			name:     "missing study",
			payload:  `{"jsonrpc":"2.0","id":1,"method":"optimization.start","params":[{}]}`,
			wantCode: -32000,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := rpcCall(t, ts, tt.payload)
			rpcErr, ok := body["error"].(map[string]interface{})
			require.True(t, ok, "expected an error response: %v", body)
			assert.Equal(t, tt.wantCode, rpcErr["code"])
		})
	}
}

func TestFinishJobKeepsCancelledStatus(t *testing.T) {
	srv, _ := testServer(t, quadraticEvaluator())
	jobLogger := logging.New(logging.ErrorLevel, io.Discard)

	// A run can return after cancellation has already recorded the
	// terminal state; its outcome must not resurrect the job.
	state := &JobState{ID: "opt_cancelled", Status: "cancelled"}
	srv.finishJob(state, &optimize.Result{}, nil, jobLogger)
	assert.Equal(t, "cancelled", state.Status)
	assert.Nil(t, state.Result)

	state = &JobState{ID: "opt_cancelled_err", Status: "cancelled"}
	srv.finishJob(state, nil, context.Canceled, jobLogger)
	assert.Equal(t, "cancelled", state.Status)
	assert.Empty(t, state.FailReason)
}

func TestHistoryLimitTruncation(t *testing.T) {
	history := make([]optimize.Evaluation, 10)
	for i := range history {
		history[i] = optimize.Evaluation{Seq: i, Value: float64(i)}
	}
	result := &optimize.Result{
		Baseline: optimize.Solution{Value: 9},
		Optimal:  optimize.Solution{Value: 0},
		History:  history,
	}

	payload := resultPayload(result, 3)
	records := payload["history"].([]map[string]interface{})
	require.Len(t, records, 3)
	assert.Equal(t, 7, records[0]["seq"])

	payload = resultPayload(result, 0)
	assert.Len(t, payload["history"].([]map[string]interface{}), 10)
}
