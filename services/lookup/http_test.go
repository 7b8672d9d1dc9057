package lookup

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"platecheck/lib/scrapers/csgt"
	"platecheck/lib/telemetry"
)

func newTestRouter(t *testing.T, runner *scriptedRunner) (*gin.Engine, *Service) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	service := newTestService(t, runner)
	router := gin.New()
	NewHandler(service).Register(router)
	return router, service
}

func doRequest(router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHTTPSubmitAndPoll(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:services/lookup")
	defer cleanup()

	runner := &scriptedRunner{result: csgt.Result{
		Record: &csgt.ViolationRecord{Found: true, Fields: map[csgt.Field]string{csgt.FieldPlate: "30A-123.45"}},
		Status: csgt.StatusSuccess,
	}}
	router, service := newTestRouter(t, runner)

	rec := doRequest(router, http.MethodPost, "/api/v1/lookups",
		`{"plate": "30a12345", "category": "car", "max_retries": 2}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	var created struct {
		Data Job `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.Equal(t, StatusPending, created.Data.Status)
	require.Equal(t, "30A12345", created.Data.Plate)
	require.Equal(t, 2, created.Data.MaxAttempts)

	waitForTerminal(t, service, created.Data.ID)

	rec = doRequest(router, http.MethodGet, "/api/v1/lookups/"+created.Data.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var polled struct {
		Data Job `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &polled))
	require.Equal(t, StatusCompleted, polled.Data.Status)
	require.NotNil(t, polled.Data.Result)
	require.True(t, polled.Data.Result.Record.Found)
}

func TestHTTPSubmitValidation(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:services/lookup")
	defer cleanup()
	router, _ := newTestRouter(t, &scriptedRunner{})

	testCases := []struct {
		name string
		body string
	}{
		{name: "missing plate", body: `{"category": "car"}`},
		{name: "unknown category", body: `{"plate": "30A12345", "category": "boat"}`},
		{name: "retries out of range", body: `{"plate": "30A12345", "max_retries": 99}`},
		{name: "not json", body: `plate=30A12345`},
	}
	for _, test := range testCases {
		t.Run(test.name, func(t *testing.T) {
			rec := doRequest(router, http.MethodPost, "/api/v1/lookups", test.body)
			require.Equal(t, http.StatusBadRequest, rec.Code)
			require.Contains(t, rec.Body.String(), "error")
		})
	}
}

func TestHTTPListAndFilter(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:services/lookup")
	defer cleanup()

	runner := &scriptedRunner{result: csgt.Result{
		Record: &csgt.ViolationRecord{Found: false},
		Status: csgt.StatusSuccess,
	}}
	router, service := newTestRouter(t, runner)

	job, err := service.Submit(context.Background(), "30A12345", csgt.CategoryCar, 3)
	require.NoError(t, err)
	waitForTerminal(t, service, job.ID)

	rec := doRequest(router, http.MethodGet, "/api/v1/lookups", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var listed struct {
		Data []Job `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listed))
	require.Len(t, listed.Data, 1)

	rec = doRequest(router, http.MethodGet, "/api/v1/lookups?status=failed", "")
	require.Equal(t, http.StatusOK, rec.Code)
	listed.Data = nil
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listed))
	require.Empty(t, listed.Data)

	rec = doRequest(router, http.MethodGet, "/api/v1/lookups?status=bogus", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHTTPDelete(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:services/lookup")
	defer cleanup()

	runner := &scriptedRunner{result: csgt.Result{
		Record: &csgt.ViolationRecord{Found: false},
		Status: csgt.StatusSuccess,
	}}
	router, service := newTestRouter(t, runner)

	job, err := service.Submit(context.Background(), "30A12345", csgt.CategoryCar, 3)
	require.NoError(t, err)
	waitForTerminal(t, service, job.ID)

	rec := doRequest(router, http.MethodDelete, "/api/v1/lookups/"+job.ID, "")
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = doRequest(router, http.MethodDelete, "/api/v1/lookups/"+job.ID, "")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHTTPStatsAndHealth(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:services/lookup")
	defer cleanup()

	runner := &scriptedRunner{result: csgt.Result{
		Record: &csgt.ViolationRecord{Found: false},
		Status: csgt.StatusSuccess,
	}}
	router, service := newTestRouter(t, runner)

	job, err := service.Submit(context.Background(), "30A12345", csgt.CategoryCar, 3)
	require.NoError(t, err)
	waitForTerminal(t, service, job.ID)

	rec := doRequest(router, http.MethodGet, "/api/v1/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var stats struct {
		Data StatsSummary `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	require.Equal(t, 1, stats.Data.Total)
	require.InDelta(t, 1.0, stats.Data.SuccessRate, 1e-9)

	rec = doRequest(router, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "ok")
}
