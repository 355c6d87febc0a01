package main

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/pivolan/entropy_analyzer/analysis"
	"github.com/pivolan/entropy_analyzer/config"
	"github.com/pivolan/entropy_analyzer/domain/models"
	"github.com/pivolan/entropy_analyzer/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const performanceTable = `pitch,pitch-class,duration,fingering,string,fret
C4,C,1,1,2,1
E4,E,0.5,2,2,3
G4,G,0.5,4,3,0
C4,C,1,1,2,1
`

type testServer struct {
	router *gin.Engine
	store  *store.CSVStore
}

func newTestServer(t *testing.T) *testServer {
	s, err := store.NewCSVStore(filepath.Join(t.TempDir(), "analysis_results.csv"))
	require.NoError(t, err)
	cfg := &appConfig{
		Config:   config.FromEnv(func(string) string { return "" }),
		Format:   formatTable,
		Store:    s,
		Analyzer: analysis.New(s, nil),
	}
	return &testServer{router: newRouter(cfg), store: s}
}

func (ts *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

func (ts *testServer) upload(t *testing.T, files map[string]string) *httptest.ResponseRecorder {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for name, content := range files {
		fw, err := mw.CreateFormFile("files", name)
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return ts.do(req)
}

func (ts *testServer) records(t *testing.T) []models.Record {
	records, err := ts.store.ListAll(context.Background())
	require.NoError(t, err)
	return records
}

func TestIndexEmpty(t *testing.T) {
	ts := newTestServer(t)
	w := ts.do(httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "No results yet.")
}

func TestUpload(t *testing.T) {
	ts := newTestServer(t)
	w := ts.upload(t, map[string]string{"etude.csv": performanceTable})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "etude.csv")
	assert.Contains(t, w.Body.String(), "OverallScore")

	records := ts.records(t)
	require.Len(t, records, 1)
	assert.Equal(t, "etude.csv", records[0].FileName)
	assert.NotNil(t, records[0].Overall)
}

func TestUploadMultipleWithWarnings(t *testing.T) {
	ts := newTestServer(t)
	w := ts.upload(t, map[string]string{
		"full.csv":   performanceTable,
		"melody.csv": "pitch,duration\nC4,1\nD4,2\n",
		"empty.csv":  "",
	})
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "not found, skipped")
	assert.Contains(t, body, "file is empty")

	assert.Len(t, ts.records(t), 2)
}

func TestUploadWithoutFiles(t *testing.T) {
	ts := newTestServer(t)
	w := ts.upload(t, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "no files selected")
}

func TestDeleteAndReset(t *testing.T) {
	ts := newTestServer(t)
	ts.upload(t, map[string]string{"one.csv": performanceTable})
	ts.upload(t, map[string]string{"two.csv": performanceTable})
	records := ts.records(t)
	require.Len(t, records, 2)

	w := ts.do(httptest.NewRequest(http.MethodPost, "/records/"+records[0].ID+"/delete", nil))
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/", w.Header().Get("Location"))

	left := ts.records(t)
	require.Len(t, left, 1)
	assert.Equal(t, records[1].ID, left[0].ID)

	w = ts.do(httptest.NewRequest(http.MethodPost, "/reset", nil))
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Empty(t, ts.records(t))
}

func TestAPI(t *testing.T) {
	ts := newTestServer(t)
	ts.upload(t, map[string]string{"one.csv": performanceTable})

	w := ts.do(httptest.NewRequest(http.MethodGet, "/api/records", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var listed []models.Record
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &listed))
	require.Len(t, listed, 1)
	assert.Equal(t, "one.csv", listed[0].FileName)

	w = ts.do(httptest.NewRequest(http.MethodDelete, "/api/records/"+listed[0].ID, nil))
	assert.Equal(t, http.StatusAccepted, w.Code)

	w = ts.do(httptest.NewRequest(http.MethodDelete, "/api/records/"+listed[0].ID, nil))
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestDownload(t *testing.T) {
	ts := newTestServer(t)
	ts.upload(t, map[string]string{"one.csv": performanceTable})

	w := ts.do(httptest.NewRequest(http.MethodGet, "/download", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), downloadFileName)
	assert.True(t, strings.HasPrefix(w.Body.String(), "file_name,unique_id,pitch_entropy"))
	assert.Contains(t, w.Body.String(), "one.csv")
}

func TestCharts(t *testing.T) {
	ts := newTestServer(t)
	ts.upload(t, map[string]string{"one.csv": performanceTable})
	id := ts.records(t)[0].ID

	w := ts.do(httptest.NewRequest(http.MethodGet, "/records/"+id+"/chart.png", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("\x89PNG")))

	w = ts.do(httptest.NewRequest(http.MethodGet, "/records/unknown/chart.png", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = ts.do(httptest.NewRequest(http.MethodGet, "/charts/scores", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "echarts")
}

func TestIndexMigratesLegacyRows(t *testing.T) {
	ts := newTestServer(t)
	legacy := "file_name,pitch_entropy,MDS,TDS,OverallScore\nold.csv,1.5,,,\n"
	require.NoError(t, os.WriteFile(ts.store.Path(), []byte(legacy), 0o644))

	w := ts.do(httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, w.Code)

	records := ts.records(t)
	require.Len(t, records, 1)
	require.NotEmpty(t, records[0].ID)
	assert.Contains(t, w.Body.String(), "/records/"+records[0].ID+"/delete")
	assert.NotContains(t, w.Body.String(), "/records//")
}

func TestCorruptedStore(t *testing.T) {
	ts := newTestServer(t)
	require.NoError(t, os.WriteFile(ts.store.Path(), []byte("not,a\nvalid\"table"), 0o644))

	w := ts.do(httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "cannot be read")

	w = ts.do(httptest.NewRequest(http.MethodGet, "/api/records", nil))
	assert.Equal(t, http.StatusConflict, w.Code)

	w = ts.do(httptest.NewRequest(http.MethodPost, "/reset", nil))
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Empty(t, ts.records(t))
}
