package ui

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"labstats/adapters/excel"
	"labstats/internal/analysis"
	apperrors "labstats/internal/errors"
	"labstats/ports"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

type mockAppendLog struct {
	mock.Mock
}

func (m *mockAppendLog) Append(ctx context.Context, table string, row map[string]interface{}) (string, error) {
	args := m.Called(ctx, table, row)
	return args.String(0), args.Error(1)
}

func (m *mockAppendLog) List(ctx context.Context) ([]ports.TableInfo, error) {
	args := m.Called(ctx)
	items, _ := args.Get(0).([]ports.TableInfo)
	return items, args.Error(1)
}

func (m *mockAppendLog) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	args := m.Called(ctx, name)
	rc, _ := args.Get(0).(io.ReadCloser)
	return rc, args.Error(1)
}

func newTestServer(t *testing.T, log ports.AppendLog, opts Options) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	loader := analysis.NewLoader(excel.NewDataReader(excel.DefaultReaderConfig()), nil)
	pipeline := analysis.NewPipeline(loader, nil, nil)
	if log == nil {
		log = &mockAppendLog{}
	}
	if opts.CORSOrigins == nil {
		opts.CORSOrigins = []string{"*"}
	}
	return NewServer(pipeline, log, opts, nil)
}

func multipartBody(t *testing.T, fields map[string]string, filename string, file []byte) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	if file != nil {
		part, err := w.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = part.Write(file)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return body, w.FormDataContentType()
}

func postStats(t *testing.T, s *Server, fields map[string]string, filename string, file []byte) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	body, contentType := multipartBody(t, fields, filename, file)
	req := httptest.NewRequest(http.MethodPost, "/run_stats", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return rec, out
}

const ttestCSV = "group,value\nA,1\nA,2\nB,3\nB,4\n"

func TestRunStats_TTest(t *testing.T) {
	s := newTestServer(t, nil, Options{})
	rec, out := postStats(t, s, map[string]string{"group": "group", "value": "value", "test": "ttest"}, "d.csv", []byte(ttestCSV))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, out["ok"])
	assert.Equal(t, "Welch t-test", out["test"])
	assert.Equal(t, []interface{}{"A", "B"}, out["groups"])
	assert.Equal(t, map[string]interface{}{"A": 2.0, "B": 2.0}, out["n_by_group"])
	assert.InDelta(t, -2.8284, out["t"], 1e-4)
	assert.InDelta(t, 0.1056, out["p"], 1e-4)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	desc := out["descriptives"].([]interface{})
	require.Len(t, desc, 2)
	first := desc[0].(map[string]interface{})
	assert.Equal(t, "A", first["Group"])
	for _, key := range []string{"mean", "std", "n", "sem", "ci95_lo", "ci95_hi"} {
		assert.Contains(t, first, key)
	}
}

func TestRunStats_AnovaJSONShape(t *testing.T) {
	s := newTestServer(t, nil, Options{})
	csv := "g,v\nA,1\nA,2\nB,3\nB,4\nC,5\nC,6\n"
	rec, out := postStats(t, s, map[string]string{"group": "g", "value": "v", "test": "anova"}, "d.csv", []byte(csv))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	anova := out["anova"].(map[string]interface{})
	for _, col := range []string{"sum_sq", "df", "F", "PR(>F)"} {
		assert.Contains(t, anova, col)
	}
	f := anova["F"].(map[string]interface{})
	assert.InDelta(t, 16.0, f["C(Q('g'))"], 1e-9)
	assert.Nil(t, f["Residual"])
	assert.Contains(t, out["tukey"], "reject")
}

func TestRunStats_KruskalFromXLSX(t *testing.T) {
	f := excelize.NewFile()
	rows := [][]interface{}{{"g", "v"}, {"A", 1}, {"A", 2}, {"A", 3}, {"B", 4}, {"B", 5}, {"B", 6}, {"C", 7}, {"C", 8}, {"C", 9}}
	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &r))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	s := newTestServer(t, nil, Options{})
	rec, out := postStats(t, s, map[string]string{"group": "g", "value": "v", "test": "kruskal"}, "d.xlsx", buf.Bytes())

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Kruskal–Wallis", out["test"])
	assert.InDelta(t, 7.2, out["H"], 1e-9)
	dunn := out["dunn"].(map[string]interface{})
	assert.InDelta(t, 1.0, dunn["A"].(map[string]interface{})["A"], 1e-12)
}

func TestRunStats_Failures(t *testing.T) {
	s := newTestServer(t, nil, Options{})

	tests := []struct {
		name   string
		fields map[string]string
		file   []byte
		status int
		error  string
		detail string
	}{
		{"no file", map[string]string{"group": "group", "value": "value", "test": "ttest"}, nil, 400, "No CSV uploaded.", ""},
		{"missing params", map[string]string{"group": "group"}, []byte(ttestCSV), 400, "Missing group/value/test parameters.", "params"},
		{"missing column", map[string]string{"group": "grp", "value": "value", "test": "ttest"}, []byte(ttestCSV), 400, "Column not found in CSV.", "columns"},
		{"wrong cardinality", map[string]string{"group": "group", "value": "value", "test": "anova"}, []byte(ttestCSV), 400, "One-way ANOVA requires ≥3 groups.", "groups"},
		{"unknown test", map[string]string{"group": "group", "value": "value", "test": "wilcoxon"}, []byte(ttestCSV), 400, "Unknown test. Use: ttest | anova | kruskal.", ""},
		{"parse error", map[string]string{"group": "a", "value": "b", "test": "ttest"}, []byte("a,b\n1,2,3\n"), 400, "Could not read CSV.", "detail"},
		{"analysis exception", map[string]string{"group": "g", "value": "v", "test": "kruskal"}, []byte("g,v\nA,1\nB,1\nC,1\n"), 500, "Exception during analysis.", "detail"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, out := postStats(t, s, tt.fields, "d.csv", tt.file)
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, false, out["ok"])
			assert.Equal(t, tt.error, out["error"])
			if tt.detail != "" {
				assert.Contains(t, out, tt.detail)
			}
		})
	}
}

func TestRunStats_MissingParamsListsFormKeys(t *testing.T) {
	s := newTestServer(t, nil, Options{})
	_, out := postStats(t, s, map[string]string{"value": "v", "test": "ttest"}, "d.csv", []byte(ttestCSV))
	assert.Equal(t, []interface{}{"test", "value"}, out["params"])
}

func TestRunStats_UploadTooLarge(t *testing.T) {
	s := newTestServer(t, nil, Options{MaxUploadBytes: 64})
	big := []byte("g,v\n" + strings.Repeat("A,1\n", 100))
	rec, out := postStats(t, s, map[string]string{"group": "g", "value": "v", "test": "ttest"}, "d.csv", big)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "No CSV uploaded.", out["error"])
}

func TestAppendCSV_JSON(t *testing.T) {
	log := &mockAppendLog{}
	log.On("Append", mock.Anything, "animal_log", mock.MatchedBy(func(row map[string]interface{}) bool {
		return row["mouse_id"] == "M1" && row["weight_g"] == json.Number("21.5")
	})).Return("data/animal_log.csv", nil)

	s := newTestServer(t, log, Options{})
	body := `{"csv_name":" animal_log ","row":{"mouse_id":"M1","weight_g":21.5}}`
	req := httptest.NewRequest(http.MethodPost, "/append_csv", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"ok":true,"path":"data/animal_log.csv"}`, rec.Body.String())
	log.AssertExpectations(t)
}

func TestAppendCSV_Multipart(t *testing.T) {
	log := &mockAppendLog{}
	log.On("Append", mock.Anything, "lab_notebook", mock.Anything).Return("data/lab_notebook.csv", nil)

	s := newTestServer(t, log, Options{})
	body, contentType := multipartBody(t, map[string]string{"csv_name": "lab_notebook", "row": `{"title":"t"}`}, "", nil)
	req := httptest.NewRequest(http.MethodPost, "/append_csv", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	log.AssertExpectations(t)
}

func TestAppendCSV_Rejections(t *testing.T) {
	log := &mockAppendLog{}
	log.On("Append", mock.Anything, "bogus", mock.Anything).Return("", apperrors.InvalidInput("Unknown csv_name: bogus"))
	s := newTestServer(t, log, Options{})

	tests := []struct {
		body   string
		status int
	}{
		{`{"row":{"a":1}}`, http.StatusBadRequest},
		{`{"csv_name":"animal_log","row":[1,2]}`, http.StatusBadRequest},
		{`{"csv_name":"bogus","row":{}}`, http.StatusBadRequest},
		{`{not json`, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodPost, "/append_csv", strings.NewReader(tt.body))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, req)
		assert.Equal(t, tt.status, rec.Code, tt.body)
		assert.Contains(t, rec.Body.String(), `"ok":false`)
	}
}

func TestListData(t *testing.T) {
	n := 3
	log := &mockAppendLog{}
	log.On("List", mock.Anything).Return([]ports.TableInfo{{Name: "animal_log.csv", Rows: &n}, {Name: "broken.csv"}}, nil)
	s := newTestServer(t, log, Options{})

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/list_data", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[{"name":"animal_log.csv","rows":3},{"name":"broken.csv","rows":null}]`, rec.Body.String())
}

func TestDownloadCSV(t *testing.T) {
	log := &mockAppendLog{}
	log.On("Open", mock.Anything, "animal_log.csv").Return(io.NopCloser(strings.NewReader("date,_ts\n")), nil)
	log.On("Open", mock.Anything, "missing.csv").Return(nil, apperrors.New(apperrors.KindNotFound, "File not found"))
	s := newTestServer(t, log, Options{})

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/download_csv?name=animal_log.csv", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), `filename="animal_log.csv"`)
	assert.Equal(t, "date,_ts\n", rec.Body.String())

	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/download_csv?name=missing.csv", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	for _, bad := range []string{"", "notes.txt", "..%2Fsecret.csv"} {
		rec = httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/download_csv?name="+bad, nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code, bad)
	}
}

func TestRenderNotebook(t *testing.T) {
	csv := "date,title,body_md,_ts\n2024-01-02,Run 1,\"# Result\n\n**ok**\",2024-01-02T10:00:00\n"
	log := &mockAppendLog{}
	log.On("Open", mock.Anything, "lab_notebook.csv").Return(io.NopCloser(strings.NewReader(csv)), nil)
	s := newTestServer(t, log, Options{})

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/render_notebook?name=lab_notebook.csv", nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var out struct {
		Rows []map[string]string `json:"rows"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Len(t, out.Rows, 1)
	assert.Equal(t, "Run 1", out.Rows[0]["title"])
	assert.Contains(t, out.Rows[0]["body_md_html"], "<h1")
	assert.Contains(t, out.Rows[0]["body_md_html"], "<strong>ok</strong>")
	assert.NotContains(t, out.Rows[0], "title_html")
}

func TestStaticRoutes(t *testing.T) {
	tools := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(tools, "assets"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(tools, "index.html"), []byte("<html>lab</html>"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(tools, "assets", "app.js"), []byte("// js"), 0o644))
	s := newTestServer(t, nil, Options{ToolsDir: tools})

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/lab/index.html", rec.Header().Get("Location"))

	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/lab/index.html", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "lab")

	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/lab/assets/app.js", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/lab/nope.html", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestResolveWithin(t *testing.T) {
	dir := filepath.Join(string(filepath.Separator), "srv", "tools")
	full, ok := resolveWithin(dir, "/assets/a.css")
	assert.True(t, ok)
	assert.Equal(t, filepath.Join(dir, "assets", "a.css"), full)

	_, ok = resolveWithin(dir, "/../../etc/passwd")
	assert.True(t, ok, "cleaned paths stay rooted in dir")

	_, ok = resolveWithin(dir, "/")
	assert.False(t, ok)
	_, ok = resolveWithin("", "/index.html")
	assert.False(t, ok)
}

func TestCORSPreflight(t *testing.T) {
	s := newTestServer(t, nil, Options{})
	req := httptest.NewRequest(http.MethodOptions, "/run_stats", nil)
	req.Header.Set("Origin", "http://lab.local")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
