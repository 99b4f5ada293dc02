package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LilVoxy/maintenance_analytics/ETL/config"
	"github.com/LilVoxy/maintenance_analytics/ETL/models"
	"github.com/LilVoxy/maintenance_analytics/ETL/transform"
	"github.com/LilVoxy/maintenance_analytics/ETL/utils"
)

const header = "event_id,factory_id,line_id,technician_id,maintenance_type,reason,start_time,end_time,cost_eur,downtime_min,parts_used\n"

type stubRunner struct {
	report *models.RunReport
	err    error
	calls  int
}

func (s *stubRunner) ExecuteETL() (*models.RunReport, error) {
	s.calls++
	return s.report, s.err
}

func newTestHandler(t *testing.T, runner Runner) (*Handler, *models.MemoryETLLogRepository) {
	t.Helper()
	logger := utils.NewNopLogger()
	pipeline, err := transform.NewPipeline(config.GetConfig().Pipeline, logger)
	require.NoError(t, err)

	repo := models.NewMemoryETLLogRepository()
	return NewHandler(repo, runner, pipeline, NewNotifier(logger), logger), repo
}

func TestGetRunsHandler(t *testing.T) {
	h, repo := newTestHandler(t, &stubRunner{})
	id, err := repo.CreateLogEntry("run-1", time.Now())
	require.NoError(t, err)
	require.NoError(t, repo.UpdateLogEntrySuccess(id, time.Now(), models.RunReport{RowsIn: 3, RowsOut: 3}))

	rec := httptest.NewRecorder()
	NewRouter(h).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/etl/runs?days=3", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var runs []models.ETLRunLog
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &runs))
	require.Len(t, runs, 1)
	assert.Equal(t, "run-1", runs[0].RunID)
	assert.Equal(t, models.RunStatusSuccess, runs[0].Status)
}

func TestGetRunsHandlerRejectsBadDays(t *testing.T) {
	h, _ := newTestHandler(t, &stubRunner{})

	for _, q := range []string{"days=abc", "days=0"} {
		rec := httptest.NewRecorder()
		NewRouter(h).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/etl/runs?"+q, nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code, q)
	}
}

func TestGetRunsHandlerEmptyList(t *testing.T) {
	h, _ := newTestHandler(t, &stubRunner{})

	rec := httptest.NewRecorder()
	NewRouter(h).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/etl/runs", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())
}

func TestGetStateHandler(t *testing.T) {
	h, repo := newTestHandler(t, &stubRunner{})
	id, _ := repo.CreateLogEntry("run-1", time.Now())
	require.NoError(t, repo.UpdateLogEntryFailure(id, time.Now(), "boom"))

	rec := httptest.NewRecorder()
	NewRouter(h).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/etl/state", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var state models.ETLStateMonitor
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &state))
	assert.Equal(t, 1, state.TotalFailedRuns)
	require.NotNil(t, state.LastFailedRun)
	assert.Equal(t, "boom", state.LastFailedRun.ErrorMessage)
}

func TestValidateHandler(t *testing.T) {
	h, _ := newTestHandler(t, &stubRunner{})

	tests := []struct {
		name   string
		body   string
		status int
		passed bool
	}{
		{
			name:   "корректный пакет",
			body:   header + "E1,F-01,L-01,TECH-001,Preventive,Planned Maintenance,2024-03-10 10:00:00,2024-03-10 11:00:00,100,10,filter\n",
			status: http.StatusOK,
			passed: true,
		},
		{
			name: "дубликат event_id",
			body: header +
				"E1,F-01,L-01,TECH-001,Preventive,Planned Maintenance,2024-03-10 10:00:00,2024-03-10 11:00:00,100,10,filter\n" +
				"E1,F-01,L-01,TECH-001,Preventive,Planned Maintenance,2024-03-10 12:00:00,2024-03-10 13:00:00,100,10,filter\n",
			status: http.StatusUnprocessableEntity,
			passed: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/api/etl/validate", strings.NewReader(tt.body))
			NewRouter(h).ServeHTTP(rec, req)

			require.Equal(t, tt.status, rec.Code)
			var resp validateResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			require.NotNil(t, resp.Report)
			assert.Equal(t, tt.passed, resp.Report.Passed)
		})
	}
}

func TestValidateHandlerBadCSV(t *testing.T) {
	h, _ := newTestHandler(t, &stubRunner{})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/etl/validate", strings.NewReader(header+"E1,F,L,T,Preventive,Planned Maintenance,a,b,not-a-number,1,x\n"))
	NewRouter(h).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRunHandler(t *testing.T) {
	tests := []struct {
		name   string
		runner *stubRunner
		status int
	}{
		{"успех", &stubRunner{report: &models.RunReport{RowsIn: 2, RowsOut: 2}}, http.StatusOK},
		{"уже выполняется", &stubRunner{err: models.ErrRunInProgress}, http.StatusConflict},
		{"нарушение схемы", &stubRunner{err: &models.SchemaViolation{Violations: []models.ValidationIssue{{Rule: models.RuleEventIDUnique}}}}, http.StatusUnprocessableEntity},
		{"ошибка извлечения", &stubRunner{err: assert.AnError}, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, _ := newTestHandler(t, tt.runner)

			rec := httptest.NewRecorder()
			NewRouter(h).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/etl/run", nil))

			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, 1, tt.runner.calls)
		})
	}
}

func TestCORSPreflight(t *testing.T) {
	h, _ := newTestHandler(t, &stubRunner{})

	rec := httptest.NewRecorder()
	NewRouter(h).ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/api/etl/run", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestNotifierBroadcastsRunEvents(t *testing.T) {
	h, _ := newTestHandler(t, &stubRunner{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.notifier.Run(ctx)

	server := httptest.NewServer(NewRouter(h))
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/etl"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return h.notifier.Subscribers() == 1 }, 2*time.Second, 10*time.Millisecond)

	h.notifier.Publish(RunEvent{
		RunID:  "run-42",
		Status: models.RunStatusSuccess,
		Report: &models.RunReport{RowsIn: 5, RowsOut: 4, ExcludedCount: 1},
	})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, message, err := conn.ReadMessage()
	require.NoError(t, err)

	var event RunEvent
	require.NoError(t, json.Unmarshal(message, &event))
	assert.Equal(t, "run-42", event.RunID)
	assert.Equal(t, models.RunStatusSuccess, event.Status)
	require.NotNil(t, event.Report)
	assert.Equal(t, 4, event.Report.RowsOut)
}
