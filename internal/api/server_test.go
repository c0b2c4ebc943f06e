package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"datahub/domain/sheet"
	"datahub/domain/syncrun"
	"datahub/internal/errors"
	"datahub/internal/health"
	"datahub/internal/worksheet"
	"datahub/ports"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSyncer struct {
	jobs   []string
	opts   worksheet.Options
	fail   string
	ctxErr error
}

func (f *fakeSyncer) SyncAll(ctx context.Context, jobs []worksheet.Job, opts worksheet.Options) *syncrun.Summary {
	f.opts = opts
	f.ctxErr = ctx.Err()
	summary := syncrun.NewSummary(time.Now())
	for _, j := range jobs {
		name := j.Descriptor().Name
		f.jobs = append(f.jobs, name)
		out := syncrun.Outcome{Worksheet: name, Success: name != f.fail, Counts: syncrun.Counts{Processed: 2, Inserted: 2}}
		if !out.Success {
			out.Error = "boom"
		}
		summary.Add(out)
	}
	summary.Finish(time.Now())
	return summary
}

type fakeHealth struct{ err error }

func (f fakeHealth) Run(ctx context.Context) (*health.Report, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &health.Report{
		GeneratedAt: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		Healthy:     true,
		Checks:      []health.Check{{Worksheet: "HLD_Pole", Status: health.StatusOK, Rows: 4100, Expected: 4000}},
	}, nil
}

type pingStore struct {
	ports.RecordStore
	err error
}

func (p pingStore) Ping(ctx context.Context) error { return p.err }

type recentLogs struct {
	ports.SyncLogRepository
	worksheet string
	limit     int
}

func (l *recentLogs) Recent(ctx context.Context, ws string, limit int) ([]*syncrun.Run, error) {
	l.worksheet, l.limit = ws, limit
	return []*syncrun.Run{syncrun.Begin("run-1", ws, "", time.Now())}, nil
}

type fakeTables struct {
	table         string
	limit, offset int
	err           error
}

func (f *fakeTables) Page(ctx context.Context, table string, limit, offset int) ([]ports.StoredRow, error) {
	f.table, f.limit, f.offset = table, limit, offset
	if f.err != nil {
		return nil, f.err
	}
	return []ports.StoredRow{{ID: 7, SyncedAt: time.Now(), Data: sheet.Record{"label_1": "LAW.P.A001"}}}, nil
}

func (f *fakeTables) Summary(ctx context.Context, table string) (ports.TableSummary, error) {
	f.table = table
	return ports.TableSummary{Total: 4212}, f.err
}

func (f *fakeTables) PayloadKeys(ctx context.Context, table string) ([]string, error) {
	f.table = table
	return []string{"label_1", "pon_no"}, f.err
}

type fixture struct {
	server *Server
	syncer *fakeSyncer
	logs   *recentLogs
	tables *fakeTables
}

func newFixture(apiKey string) *fixture {
	gin.SetMode(gin.TestMode)
	f := &fixture{syncer: &fakeSyncer{}, logs: &recentLogs{}, tables: &fakeTables{}}
	f.server = NewServer(Deps{
		Syncer:  f.syncer,
		Health:  fakeHealth{},
		Catalog: worksheet.NewCatalog(),
		Store:   pingStore{},
		Tables:  f.tables,
		Logs:    f.logs,
		Options: worksheet.Options{ProjectID: "default-project", ProgressEvery: 500},
		APIKey:  apiKey,
	}, zerolog.Nop())
	return f
}

func (f *fixture) do(method, target, body string, headers ...string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestHealthEndpoint(t *testing.T) {
	f := newFixture("secret")
	w := f.do(http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code, "health is not behind the API key")
	assert.Equal(t, "connected", decode(t, w)["database"])

	f.server.deps.Store = pingStore{err: assert.AnError}
	w = f.do(http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestAPIKeyMiddleware(t *testing.T) {
	f := newFixture("secret")

	w := f.do(http.MethodGet, "/api/worksheets", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, errors.CodeUnauthorized, decode(t, w)["code"])

	w = f.do(http.MethodGet, "/api/worksheets", "", "X-API-Key", "wrong")
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = f.do(http.MethodGet, "/api/worksheets", "", "X-API-Key", "secret")
	assert.Equal(t, http.StatusOK, w.Code)

	w = f.do(http.MethodGet, "/api/worksheets?api_key=secret", "")
	assert.Equal(t, http.StatusOK, w.Code)

	open := newFixture("")
	w = open.do(http.MethodGet, "/api/worksheets", "")
	assert.Equal(t, http.StatusOK, w.Code, "no configured key disables the check")
}

func TestWorksheetsListsCatalog(t *testing.T) {
	f := newFixture("")
	w := f.do(http.MethodGet, "/api/worksheets", "")
	require.Equal(t, http.StatusOK, w.Code)

	body := decode(t, w)
	assert.EqualValues(t, 11, body["count"])
	first := body["worksheets"].([]any)[0].(map[string]any)
	assert.Equal(t, worksheet.HLDPoleSheet, first["name"])
	assert.Equal(t, true, first["default_sync"])
}

func TestSyncDefaultSet(t *testing.T) {
	f := newFixture("")
	w := f.do(http.MethodPost, "/api/sync", "")

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Len(t, f.syncer.jobs, len(worksheet.NewCatalog().DefaultSync()))
	assert.Equal(t, "default-project", f.syncer.opts.ProjectID)

	body := decode(t, w)
	assert.Equal(t, true, body["success"])
	assert.Len(t, body["results"], len(f.syncer.jobs))
}

func TestSyncNamedWorksheetsWithFailure(t *testing.T) {
	f := newFixture("")
	f.syncer.fail = worksheet.NokiaExportSheet

	w := f.do(http.MethodPost, "/api/sync", `{"worksheets":["hld pole","nokia_exp"],"project_id":"p-7"}`)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, []string{worksheet.HLDPoleSheet, worksheet.NokiaExportSheet}, f.syncer.jobs)
	assert.Equal(t, "p-7", f.syncer.opts.ProjectID)

	body := decode(t, w)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, []any{"Nokia_Exp: boom"}, body["errors"])
}

func TestSyncRejectsUnknownWorksheets(t *testing.T) {
	f := newFixture("")

	w := f.do(http.MethodPost, "/api/sync", `{"worksheets":["Budget"]}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, errors.CodeInvalidInput, decode(t, w)["code"])

	w = f.do(http.MethodPost, "/api/sync", `{"worksheets":`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(http.MethodPost, "/api/sync/Budget", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, errors.CodeNotFound, decode(t, w)["code"])
	assert.Empty(t, f.syncer.jobs)
}

func TestSyncSingleWorksheet(t *testing.T) {
	f := newFixture("")
	w := f.do(http.MethodPost, "/api/sync/Lawley%20Historical", "")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{worksheet.LawleyHistoricalSheet}, f.syncer.jobs)
}

func TestSyncOutlivesClientDisconnect(t *testing.T) {
	f := newFixture("")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	req := httptest.NewRequest(http.MethodPost, "/api/sync/HLD_Pole", nil).WithContext(ctx)
	w := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(w, req)

	require.Equal(t, []string{worksheet.HLDPoleSheet}, f.syncer.jobs)
	assert.NoError(t, f.syncer.ctxErr)
}

func TestSyncLogs(t *testing.T) {
	f := newFixture("")

	w := f.do(http.MethodGet, "/api/sync/logs?worksheet=tracker_pole&limit=5000", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, worksheet.TrackerPoleSheet, f.logs.worksheet, "names resolve to the catalog spelling")
	assert.Equal(t, maxLogLimit, f.logs.limit)
	assert.EqualValues(t, 1, decode(t, w)["count"])

	w = f.do(http.MethodGet, "/api/sync/logs", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "", f.logs.worksheet)
	assert.Equal(t, defaultLogLimit, f.logs.limit)

	w = f.do(http.MethodGet, "/api/sync/logs?limit=abc", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSyncHealthAndReport(t *testing.T) {
	f := newFixture("")

	w := f.do(http.MethodGet, "/api/sync/health", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decode(t, w)["healthy"])

	w = f.do(http.MethodGet, "/api/sync/report", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, w.Body.String(), "<table>")

	w = f.do(http.MethodGet, "/api/sync/report?format=markdown", "")
	assert.Contains(t, w.Body.String(), "| HLD_Pole | OK | 4100 | 4000 |")

	f.server.deps.Health = fakeHealth{err: assert.AnError}
	w = f.do(http.MethodGet, "/api/sync/health", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, errors.CodeDatabaseError, decode(t, w)["code"])
}

func TestDataPage(t *testing.T) {
	f := newFixture("")

	w := f.do(http.MethodGet, "/api/data/tracker_pole?limit=10&offset=20", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "sharepoint_tracker_pole", f.tables.table)
	assert.Equal(t, 10, f.tables.limit)
	assert.Equal(t, 20, f.tables.offset)

	body := decode(t, w)
	meta := body["metadata"].(map[string]any)
	assert.EqualValues(t, 4212, meta["total"])
	assert.EqualValues(t, 1, meta["returned"])
	assert.Equal(t, worksheet.TrackerPoleSheet, meta["worksheet"])
	row := body["data"].([]any)[0].(map[string]any)
	assert.Equal(t, "LAW.P.A001", row["data"].(map[string]any)["label_1"])

	w = f.do(http.MethodGet, "/api/data/HLD_Pole?limit=999999", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, maxDataLimit, f.tables.limit)
	assert.Equal(t, 0, f.tables.offset)

	w = f.do(http.MethodGet, "/api/data/HLD_Pole?offset=-1", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, errors.CodeInvalidInput, decode(t, w)["code"])

	w = f.do(http.MethodGet, "/api/data/Budget", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	f.tables.err = assert.AnError
	w = f.do(http.MethodGet, "/api/data/HLD_Pole", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, errors.CodeDatabaseError, decode(t, w)["code"])
}

func TestDataSummaryAndColumns(t *testing.T) {
	f := newFixture("")

	w := f.do(http.MethodGet, "/api/data/Nokia_Exp/summary", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	assert.EqualValues(t, 4212, body["statistics"].(map[string]any)["total_records"])
	assert.Len(t, body["recent_syncs"], 1)
	assert.Equal(t, worksheet.NokiaExportSheet, f.logs.worksheet)
	assert.Equal(t, summarySyncs, f.logs.limit)

	w = f.do(http.MethodGet, "/api/data/hld_pole/columns", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []any{"label_1", "pon_no"}, decode(t, w)["columns"])
}

func TestPanicsAnswerWithInternalError(t *testing.T) {
	f := newFixture("")
	f.server.router.GET("/boom", func(c *gin.Context) { panic("nil map") })

	w := f.do(http.MethodGet, "/boom", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, errors.CodeInternalError, decode(t, w)["code"])
}

func TestUnknownRoute(t *testing.T) {
	w := newFixture("").do(http.MethodGet, "/nope", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "/nope", decode(t, w)["path"])
}
