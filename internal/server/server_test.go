// File: internal/server/server_test.go
package server

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/xkilldash9x/voyant/api/schemas"
	"github.com/xkilldash9x/voyant/internal/browser/pool"
	"github.com/xkilldash9x/voyant/internal/browser/session"
	"github.com/xkilldash9x/voyant/internal/config"
	"github.com/xkilldash9x/voyant/internal/health"
	"github.com/xkilldash9x/voyant/internal/instruction"
	"github.com/xkilldash9x/voyant/internal/intelligence"
	"github.com/xkilldash9x/voyant/internal/mocks"
	"github.com/xkilldash9x/voyant/internal/perception"
	"github.com/xkilldash9x/voyant/internal/semantic"
	"github.com/xkilldash9x/voyant/internal/workflow"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// envelope mirrors the wire shape for assertions without re-deserializing
// Data into concrete types.
type envelope struct {
	Success bool           `json:"success"`
	Data    map[string]any `json:"data"`
	Error   *struct {
		Kind    string `json:"kind"`
		Message string `json:"message"`
	} `json:"error"`
	Metadata struct {
		ProcessingTimeMs int64  `json:"processing_time_ms"`
		TotalTimeMs      int64  `json:"total_time_ms"`
		RequestID        string `json:"request_id"`
	} `json:"metadata"`
}

func newTestServer(t *testing.T) (*Server, http.Handler) {
	t.Helper()
	logger := zap.NewNop()
	factory := func(ctx context.Context) (schemas.Driver, error) {
		return mocks.NewMockDriver(), nil
	}

	p := pool.New(context.Background(), config.PoolConfig{
		MinSize:        1,
		MaxSize:        2,
		AcquireTimeout: 2 * time.Second,
	}, factory, logger)
	t.Cleanup(func() { p.Shutdown(context.Background()) })

	sessions := session.NewManager(factory, time.Minute, time.Minute, logger)
	t.Cleanup(func() { sessions.Shutdown(context.Background()) })

	analyzer := semantic.NewAnalyzer(logger)
	perceptionEngine := perception.NewEngine(config.PerceptionConfig{
		LightningTimeout: time.Second,
		QuickTimeout:     time.Second,
		StandardTimeout:  2 * time.Second,
		DeepTimeout:      2 * time.Second,
	}, logger)
	instructions := instruction.NewPipeline(config.InstructionConfig{
		ConfidenceThreshold: 0.4,
		RetryDelay:          time.Millisecond,
		StepDelay:           time.Millisecond,
		AnalysisTimeout:     time.Second,
	}, analyzer, logger)
	workflows := workflow.NewEngine(config.WorkflowConfig{
		DefaultTimeout: 10 * time.Second,
		MaxSteps:       100,
	}, logger)
	svc := intelligence.NewService(config.IntelligenceConfig{Mode: "legacy"},
		intelligence.NewPatternClassifier(0.4), nil, logger)

	metrics := health.NewMetrics()
	monitor := health.NewMonitor(config.HealthConfig{AlertHistory: 5}, metrics, logger)
	t.Cleanup(monitor.Stop)

	srv := New(Deps{
		Config:       config.ServerConfig{Host: "127.0.0.1", Port: 0},
		Logger:       logger,
		Pool:         p,
		Sessions:     sessions,
		Perception:   perceptionEngine,
		Analyzer:     analyzer,
		Instructions: instructions,
		Workflows:    workflows,
		Intelligence: svc,
		Monitor:      monitor,
		Metrics:      metrics,
	})
	return srv, srv.Router()
}

func doJSON(t *testing.T, h http.Handler, method, path, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	buf.WriteString(body)
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env),
		"body: %s", rec.Body.String())
	return rec, env
}

func TestPerceptionAnalyzeReturnsPageModel(t *testing.T) {
	_, h := newTestServer(t)

	rec, env := doJSON(t, h, http.MethodPost, "/api/v1/perception/analyze",
		`{"url": "https://example.com"}`)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, env.Success)
	assert.Equal(t, "https://example.com", env.Data["url"])
	assert.NotEmpty(t, env.Metadata.RequestID)
	assert.GreaterOrEqual(t, env.Metadata.TotalTimeMs, env.Metadata.ProcessingTimeMs)
}

func TestPerceptionModeRejectsUnknownMode(t *testing.T) {
	_, h := newTestServer(t)

	rec, env := doJSON(t, h, http.MethodPost, "/api/v1/perception/mode",
		`{"mode": "warp"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, env.Success)
	require.NotNil(t, env.Error)
	assert.Equal(t, string(schemas.KindValidation), env.Error.Kind)
}

func TestPerceptionModeRuns(t *testing.T) {
	_, h := newTestServer(t)

	rec, env := doJSON(t, h, http.MethodPost, "/api/v1/perception/mode",
		`{"mode": "lightning", "url": "example.com"}`)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, env.Success)
	assert.Equal(t, "lightning", env.Data["mode"])
}

func TestFindElementRequiresDescription(t *testing.T) {
	_, h := newTestServer(t)

	rec, env := doJSON(t, h, http.MethodPost, "/api/v1/perception/find_element",
		`{"description": "   "}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	require.NotNil(t, env.Error)
	assert.Contains(t, env.Error.Message, "description")
}

func TestMalformedBodyIsValidationError(t *testing.T) {
	_, h := newTestServer(t)

	rec, env := doJSON(t, h, http.MethodPost, "/api/v1/perception/analyze",
		`{"url": `)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, string(schemas.KindValidation), env.Error.Kind)
	assert.Contains(t, env.Error.Message, "malformed")
}

func TestInstructionExecute(t *testing.T) {
	_, h := newTestServer(t)

	rec, env := doJSON(t, h, http.MethodPost, "/api/v1/instruction/execute",
		`{"text": "go to example.com"}`)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, env.Success)
	assert.Equal(t, true, env.Data["success"])
	assert.EqualValues(t, 1, env.Data["steps_executed"])
}

func TestInstructionExecuteRejectsEmptyText(t *testing.T) {
	_, h := newTestServer(t)

	rec, env := doJSON(t, h, http.MethodPost, "/api/v1/instruction/execute",
		`{"text": ""}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	require.NotNil(t, env.Error)
	assert.Contains(t, env.Error.Message, "required")
}

func TestInstructionExecuteRejectsOversizedText(t *testing.T) {
	_, h := newTestServer(t)

	long := bytes.Repeat([]byte("a"), schemas.MaxUserIntentLen+1)
	rec, env := doJSON(t, h, http.MethodPost, "/api/v1/instruction/execute",
		fmt.Sprintf(`{"text": %q}`, long))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	require.NotNil(t, env.Error)
	assert.Contains(t, env.Error.Message, "maximum length")
}

func TestInstructionExecuteUnknownSessionIs404(t *testing.T) {
	_, h := newTestServer(t)

	rec, env := doJSON(t, h, http.MethodPost, "/api/v1/instruction/execute",
		`{"text": "go to example.com", "session_id": "ghost"}`)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, string(schemas.KindNotFound), env.Error.Kind)
}

func TestWorkflowRunYAML(t *testing.T) {
	_, h := newTestServer(t)

	body := `{"workflow": "name: smoke\nsteps:\n  - name: open\n    action:\n      type: navigate\n      url: https://example.com\n"}`
	rec, env := doJSON(t, h, http.MethodPost, "/api/v1/workflow/run", body)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, env.Success)
	assert.Equal(t, true, env.Data["success"])
	assert.EqualValues(t, 1, env.Data["steps_executed"])
}

func TestWorkflowRunJSONDetectedByBrace(t *testing.T) {
	_, h := newTestServer(t)

	wf := `{\"name\": \"smoke\", \"steps\": [{\"name\": \"open\", \"action\": {\"type\": \"navigate\", \"url\": \"https://example.com\"}}]}`
	rec, env := doJSON(t, h, http.MethodPost, "/api/v1/workflow/run",
		`{"workflow": "`+wf+`"}`)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, env.Success)
}

func TestWorkflowRunRejectsUnparsable(t *testing.T) {
	_, h := newTestServer(t)

	rec, env := doJSON(t, h, http.MethodPost, "/api/v1/workflow/run",
		`{"workflow": "{not json at all"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, string(schemas.KindValidation), env.Error.Kind)
}

func TestWorkflowRunRequiresWorkflow(t *testing.T) {
	_, h := newTestServer(t)

	rec, env := doJSON(t, h, http.MethodPost, "/api/v1/workflow/run", `{}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	require.NotNil(t, env.Error)
	assert.Contains(t, env.Error.Message, "workflow is required")
}

func TestIntelligenceAnalyze(t *testing.T) {
	_, h := newTestServer(t)

	rec, env := doJSON(t, h, http.MethodPost, "/api/v1/intelligence/analyze",
		`{"user_intent": "click the login button", "url": "https://example.com/login", "page_title": "Sign In"}`)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, env.Success)
	intent, ok := env.Data["intent"].(map[string]any)
	require.True(t, ok, "intent should be an object")
	assert.Equal(t, "click", intent["kind"])
	assert.Equal(t, "Sign In", env.Data["page_title"])
}

func TestIntelligenceAnalyzeRejectsBadThreshold(t *testing.T) {
	_, h := newTestServer(t)

	rec, env := doJSON(t, h, http.MethodPost, "/api/v1/intelligence/analyze",
		`{"user_intent": "click login", "config": {"confidence_threshold": 1.5}}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	require.NotNil(t, env.Error)
	assert.Contains(t, env.Error.Message, "confidence_threshold")
}

func TestIntelligenceFeedbackRecorded(t *testing.T) {
	_, h := newTestServer(t)

	rec, env := doJSON(t, h, http.MethodPost, "/api/v1/intelligence/feedback",
		`{"action_recommendation": {"action": {"kind": "click", "target": "#go"}, "confidence": 0.8}, "actual_result": "clicked", "success": true, "execution_time_ms": 120}`)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, true, env.Data["recorded"])
}

func TestIntelligenceFeedbackRejectsOutOfRangeTime(t *testing.T) {
	_, h := newTestServer(t)

	rec, env := doJSON(t, h, http.MethodPost, "/api/v1/intelligence/feedback",
		fmt.Sprintf(`{"actual_result": "x", "success": true, "execution_time_ms": %d}`,
			schemas.MaxExecutionTimeMs+1))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	require.NotNil(t, env.Error)
	assert.Contains(t, env.Error.Message, "execution_time_ms")
}

func TestSessionLifecycle(t *testing.T) {
	_, h := newTestServer(t)

	rec, env := doJSON(t, h, http.MethodPost, "/api/v1/session",
		`{"session_id": "checkout-1", "metadata": {"suite": "smoke"}, "ttl_seconds": 60}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "checkout-1", env.Data["session_id"])

	rec, env = doJSON(t, h, http.MethodGet, "/api/v1/session/checkout-1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "checkout-1", env.Data["session_id"])

	rec, env = doJSON(t, h, http.MethodGet, "/api/v1/session/", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, env.Data["count"])

	// A session-bound request uses the session's driver.
	rec, _ = doJSON(t, h, http.MethodPost, "/api/v1/instruction/execute",
		`{"text": "go to example.com", "session_id": "checkout-1"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec, _ = doJSON(t, h, http.MethodDelete, "/api/v1/session/checkout-1", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec, env = doJSON(t, h, http.MethodGet, "/api/v1/session/checkout-1", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, string(schemas.KindNotFound), env.Error.Kind)

	rec, _ = doJSON(t, h, http.MethodDelete, "/api/v1/session/checkout-1", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSessionCreateRejectsBadID(t *testing.T) {
	_, h := newTestServer(t)

	rec, env := doJSON(t, h, http.MethodPost, "/api/v1/session",
		`{"session_id": "bad id with spaces"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, string(schemas.KindValidation), env.Error.Kind)
}

func TestHealthEndpointServesRawReport(t *testing.T) {
	srv, h := newTestServer(t)
	srv.monitor.RegisterCheck("probe", func(ctx context.Context) (schemas.HealthStatus, string) {
		return schemas.StatusHealthy, ""
	})
	srv.monitor.RunChecks(context.Background())

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var report schemas.HealthReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, schemas.StatusHealthy, report.Status)
	require.Len(t, report.Components, 1)
}

func TestHealthEndpoint503WhenDown(t *testing.T) {
	srv, h := newTestServer(t)
	srv.monitor.RegisterCheck("driver", func(ctx context.Context) (schemas.HealthStatus, string) {
		return schemas.StatusDown, "browser unreachable"
	})
	srv.monitor.RunChecks(context.Background())

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMetricsEndpointCountsRequests(t *testing.T) {
	_, h := newTestServer(t)

	doJSON(t, h, http.MethodPost, "/api/v1/perception/analyze", `{"url": "example.com"}`)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "voyant_http_requests_total")
	assert.Contains(t, body, `route="/api/v1/perception/analyze"`)
}
