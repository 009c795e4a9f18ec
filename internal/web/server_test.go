package web

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/sheetsync/internal/config"
	"github.com/JonMunkholm/sheetsync/internal/connector"
	"github.com/JonMunkholm/sheetsync/internal/core"
	"github.com/JonMunkholm/sheetsync/internal/store/memory"
)

const (
	testSecret = "cron-secret"
	roleHeader = "X-User-Role"
)

type testEnv struct {
	srv   *Server
	store *memory.Store
	src   *connector.Static
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Security.CronSecret = testSecret
	cfg.Security.RoleHeader = roleHeader
	cfg.Metrics.Enabled = true
	cfg.Metrics.Path = "/metrics"
	return cfg
}

func newTestEnv(t *testing.T, cfg *config.Config) *testEnv {
	t.Helper()

	core.Clear()
	cols := map[string][]string{
		core.FieldExternalID: {"SIRA NO"},
		core.FieldDate:       {"TARİH"},
		core.FieldStatus:     {"DURUM"},
	}
	core.Register(core.SheetDefinition{Key: "services", Title: "SERVİSLER", Primary: true, Columns: cols})
	core.Register(core.SheetDefinition{Key: "archive", Title: "ARŞİV", Columns: cols})
	t.Cleanup(core.Clear)

	env := &testEnv{store: memory.New(), src: connector.NewStatic()}
	env.src.Set("services",
		core.RawRow{"SIRA NO": "2720", "TARİH": "03.02.2026", "DURUM": "PLANLANDI-RANDEVU"},
		core.RawRow{"SIRA NO": nil, "TARİH": "garbage"},
	)
	env.src.Set("archive", core.RawRow{"SIRA NO": "1", "DURUM": "TAMAMLANDI"})

	svc := core.NewService(env.store, env.src.Factory(), nil, core.Options{})
	env.srv = NewServer(svc, cfg)
	t.Cleanup(func() { _ = env.srv.Shutdown(t.Context()) })
	return env
}

func (e *testEnv) do(t *testing.T, method, target, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	e.srv.Router().ServeHTTP(rec, req)
	return rec
}

var (
	cronHeaders  = map[string]string{"X-Cron-Secret": testSecret}
	adminHeaders = map[string]string{roleHeader: "ADMIN"}
)

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v), rec.Body.String())
	return v
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t, testConfig())
	rec := env.do(t, http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
}

func TestCronSync(t *testing.T) {
	env := newTestEnv(t, testConfig())

	rec := env.do(t, http.MethodPost, "/api/sync/cron", "", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/sync/cron", "", cronHeaders)
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decode[syncResponse](t, rec)
	require.False(t, resp.Success)
	require.NotEmpty(t, resp.RunID)
	require.Len(t, resp.Results, 2)
	require.Equal(t, 1, resp.Results["services"].Created)
	require.Equal(t, core.RunPartial, resp.Results["services"].Status)
	require.Equal(t, core.RunSuccess, resp.Results["archive"].Status)
	require.Len(t, resp.Errors, 1)
	require.Equal(t, 3, resp.Errors[0].Row)
	require.Equal(t, resp.RunID, resp.Results["archive"].RunID)

	logs, err := env.store.RecentRunLogs(t.Context(), "", 0)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	require.Equal(t, core.TriggerCron, logs[0].Trigger)
}

func TestCronSyncSingleSheetAndMode(t *testing.T) {
	env := newTestEnv(t, testConfig())

	rec := env.do(t, http.MethodPost, "/api/sync/cron?sheet=archive&mode=incremental", "", cronHeaders)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[syncResponse](t, rec)
	require.True(t, resp.Success)
	require.Len(t, resp.Results, 1)

	rec = env.do(t, http.MethodPost, "/api/sync/cron?mode=sideways", "", cronHeaders)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "SYNC005", decode[ErrorResponse](t, rec).Code)
}

func TestCronSecretNotConfigured(t *testing.T) {
	cfg := testConfig()
	cfg.Security.CronSecret = ""
	env := newTestEnv(t, cfg)

	rec := env.do(t, http.MethodPost, "/api/sync/cron", "", map[string]string{"X-Cron-Secret": ""})
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestAdminSync(t *testing.T) {
	env := newTestEnv(t, testConfig())

	rec := env.do(t, http.MethodPost, "/api/sync", `{"sheet":"services"}`, map[string]string{roleHeader: "TECHNICIAN"})
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Equal(t, "AUTH002", decode[ErrorResponse](t, rec).Code)

	rec = env.do(t, http.MethodPost, "/api/sync", `{"sheet":"services"}`, adminHeaders)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[syncResponse](t, rec)
	require.Len(t, resp.Results, 1)
	require.Equal(t, 1, resp.Results["services"].Created)

	rec = env.do(t, http.MethodPost, "/api/sync?sheet=nope", "", adminHeaders)
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "SYNC002", decode[ErrorResponse](t, rec).Code)

	rec = env.do(t, http.MethodPost, "/api/sync", `{"sheet":`, adminHeaders)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "REQ001", decode[ErrorResponse](t, rec).Code)
}

func TestFullResetRequiresConfirmation(t *testing.T) {
	env := newTestEnv(t, testConfig())

	rec := env.do(t, http.MethodPost, "/api/sync", `{"mode":"full_reset"}`, adminHeaders)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "SYNC004", decode[ErrorResponse](t, rec).Code)

	rec = env.do(t, http.MethodPost, "/api/sync/full-reset", `{"sheet":"services"}`, adminHeaders)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/sync/full-reset", `{"sheet":"services","confirm":true}`, adminHeaders)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[syncResponse](t, rec)
	require.Equal(t, core.ModeFullReset, resp.Results["services"].Mode)

	logs, err := env.store.RecentRunLogs(t.Context(), "services", 1)
	require.NoError(t, err)
	require.Equal(t, "FULL", logs[0].SyncType)
	require.Equal(t, core.TriggerFullReset, logs[0].Trigger)
}

func TestSyncUnavailable(t *testing.T) {
	core.Clear()
	core.Register(core.SheetDefinition{Key: "services", Title: "S", Columns: map[string][]string{core.FieldExternalID: {"ID"}}})
	t.Cleanup(core.Clear)

	svc := core.NewService(memory.New(), nil, nil, core.Options{})
	srv := NewServer(svc, testConfig())
	defer srv.Shutdown(t.Context())

	req := httptest.NewRequest(http.MethodPost, "/api/sync/cron", nil)
	req.Header.Set("X-Cron-Secret", testSecret)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.Equal(t, "SYNC001", decode[ErrorResponse](t, rec).Code)
}

func TestAllSheetsFetchFailed(t *testing.T) {
	env := newTestEnv(t, testConfig())
	env.src.Fail("services", errors.New("403"))
	env.src.Fail("archive", errors.New("403"))

	rec := env.do(t, http.MethodPost, "/api/sync/cron", "", cronHeaders)
	require.Equal(t, http.StatusBadGateway, rec.Code)
	resp := decode[syncResponse](t, rec)
	require.False(t, resp.Success)
	require.Len(t, resp.Errors, 2)
}

func TestBrokenCredentialsReportFailedRun(t *testing.T) {
	env := newTestEnv(t, testConfig())
	broken := func(context.Context) (core.Connector, error) {
		return nil, errors.New("parse google credentials: bad key")
	}
	srv := NewServer(core.NewService(env.store, broken, nil, core.Options{}), testConfig())
	defer srv.Shutdown(t.Context())

	req := httptest.NewRequest(http.MethodPost, "/api/sync/cron", nil)
	req.Header.Set("X-Cron-Secret", testSecret)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadGateway, rec.Code)
	resp := decode[syncResponse](t, rec)
	require.False(t, resp.Success)
	require.Equal(t, core.RunFailed, resp.Results["services"].Status)

	logs, err := env.store.RecentRunLogs(t.Context(), "", 10)
	require.NoError(t, err)
	require.Len(t, logs, 2)
}

func TestRequestTimeoutSkipsRunTriggers(t *testing.T) {
	middlewareCounts := func(timeout time.Duration) map[string]int {
		cfg := testConfig()
		cfg.Server.RequestTimeout = timeout
		env := newTestEnv(t, cfg)

		counts := map[string]int{}
		err := chi.Walk(env.srv.Router(), func(method, route string, _ http.Handler, mws ...func(http.Handler) http.Handler) error {
			counts[method+" "+route] = len(mws)
			return nil
		})
		require.NoError(t, err)
		return counts
	}
	without, with := middlewareCounts(0), middlewareCounts(time.Minute)

	for _, route := range []string{"POST /api/sync/cron", "POST /api/sync/full-reset"} {
		require.Contains(t, with, route)
		require.Equal(t, without[route], with[route], route)
	}
	for _, route := range []string{"GET /healthz", "GET /api/sheets", "GET /api/sync/status", "GET /api/sync/validate", "GET /api/sync/logs/export"} {
		require.Contains(t, with, route)
		require.Equal(t, without[route]+1, with[route], route)
	}
}

func TestStatusAndValidate(t *testing.T) {
	env := newTestEnv(t, testConfig())

	rec := env.do(t, http.MethodGet, "/api/sync/status", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	status := decode[core.StatusReport](t, rec)
	require.True(t, status.Stale)
	require.True(t, status.SyncAvailable)

	env.do(t, http.MethodPost, "/api/sync/cron", "", cronHeaders)

	rec = env.do(t, http.MethodGet, "/api/sync/status?limit=1", "", nil)
	status = decode[core.StatusReport](t, rec)
	require.False(t, status.Stale)
	require.Len(t, status.RecentRuns, 1)
	require.NotNil(t, status.LastRunAt)

	rec = env.do(t, http.MethodGet, "/api/sync/validate", "", nil)
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/sync/validate?all=true", "", adminHeaders)
	require.Equal(t, http.StatusOK, rec.Code)
	report := decode[core.ValidationReport](t, rec)
	require.True(t, report.OK)
	require.Equal(t, "services", report.Sheet)
	require.Equal(t, 1, report.Checked)
	require.Equal(t, 1, report.RowErrors)

	env.src.Fail("services", errors.New("quota exceeded"))
	rec = env.do(t, http.MethodGet, "/api/sync/validate", "", adminHeaders)
	require.Equal(t, http.StatusBadGateway, rec.Code)
	require.Equal(t, "SYNC010", decode[ErrorResponse](t, rec).Code)
}

func TestExportLogs(t *testing.T) {
	env := newTestEnv(t, testConfig())
	env.do(t, http.MethodPost, "/api/sync/cron", "", cronHeaders)

	rec := env.do(t, http.MethodGet, "/api/sync/logs/export?sheet=services", "", adminHeaders)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Header().Get("Content-Disposition"), "sync_logs_")

	rows, err := csv.NewReader(rec.Body).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, "Run ID", rows[0][1])
	require.Equal(t, "services", rows[1][2])
	require.Equal(t, "PARTIAL", rows[1][4])
	require.Equal(t, "1", rows[1][9])
}

func TestListSheets(t *testing.T) {
	env := newTestEnv(t, testConfig())

	rec := env.do(t, http.MethodGet, "/api/sheets", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode[struct {
		Sheets  []core.SheetDefinition `json:"sheets"`
		Primary string                 `json:"primary"`
	}](t, rec)
	require.Equal(t, "services", body.Primary)
	require.Len(t, body.Sheets, 2)
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t, testConfig())
	env.do(t, http.MethodPost, "/api/sync/cron", "", cronHeaders)

	rec := env.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "sheetsync_runs_total")
}

func TestTriggerRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.Rate.Enabled = true
	cfg.Rate.RequestsPerMinute = 100
	cfg.Rate.TriggerLimit = 1
	env := newTestEnv(t, cfg)

	rec := env.do(t, http.MethodPost, "/api/sync/cron", "", cronHeaders)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/sync/cron", "", cronHeaders)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.Equal(t, "60", rec.Header().Get("Retry-After"))
	require.Equal(t, "RATE001", decode[ErrorResponse](t, rec).Code)

	rec = env.do(t, http.MethodGet, "/api/sync/status", "", nil)
	require.Equal(t, http.StatusOK, rec.Code, "status is outside the trigger budget")
}
