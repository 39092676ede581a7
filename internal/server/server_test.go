package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matzehuels/blockorder/pkg/cache"
	"github.com/matzehuels/blockorder/pkg/observability"
	"github.com/matzehuels/blockorder/pkg/pipeline"
	"github.com/matzehuels/blockorder/pkg/store"
)

const profile = `{
  "functions": [
    {"names": ["foo"], "nodes": [
      {"ordinal": 1, "bb_index": 0, "size": 10},
      {"ordinal": 2, "bb_index": 1, "size": 10},
      {"ordinal": 3, "bb_index": 2, "size": 10}
    ]},
    {"names": ["cold"], "nodes": [
      {"ordinal": 4, "bb_index": 0, "size": 10}
    ]}
  ],
  "edges": [
    {"src": 1, "sink": 3, "weight": 100},
    {"src": 1, "sink": 2, "weight": 20}
  ]
}`

func newTestServer(t *testing.T) (*httptest.Server, *store.FileStore) {
	t.Helper()
	st, err := store.NewFileStore(t.TempDir())
	require.NoError(t, err)
	fc, err := cache.NewFileCache(t.TempDir())
	require.NoError(t, err)

	logger := log.New(io.Discard)
	srv := New(Options{
		Runner: pipeline.NewRunner(fc, nil, logger),
		Store:  st,
		Logger: logger,
	})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, st
}

func createRun(t *testing.T, ts *httptest.Server, body string) (*http.Response, map[string]any) {
	t.Helper()
	resp, err := http.Post(ts.URL+"/v1/layouts", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp, out
}

func TestHealth(t *testing.T) {
	ts, _ := newTestServer(t)
	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
}

func TestCreateAndFetch(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, out := createRun(t, ts, `{"profile": `+profile+`, "formats": ["clusters", "symorder"]}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode, out)
	id, _ := out["id"].(string)
	require.NotEmpty(t, id)
	assert.Equal(t, "/v1/layouts/"+id, resp.Header.Get("Location"))
	assert.Equal(t, float64(2), out["functions"])

	artifacts, _ := out["artifacts"].(map[string]any)
	assert.Equal(t, "!foo\n!!0 2 1\n", artifacts["clusters"])
	assert.Equal(t, "foo\ncold\n", artifacts["symorder"])

	get, err := http.Get(ts.URL + "/v1/layouts/" + id)
	require.NoError(t, err)
	defer get.Body.Close()
	require.Equal(t, http.StatusOK, get.StatusCode)
	var run map[string]any
	require.NoError(t, json.NewDecoder(get.Body).Decode(&run))
	assert.Equal(t, id, run["id"])
	assert.Contains(t, run, "layout")
	assert.NotContains(t, run, "artifacts")

	txt, err := http.Get(ts.URL + "/v1/layouts/" + id + "/clusters")
	require.NoError(t, err)
	defer txt.Body.Close()
	assert.Equal(t, http.StatusOK, txt.StatusCode)
	assert.Contains(t, txt.Header.Get("Content-Type"), "text/plain")
	data, _ := io.ReadAll(txt.Body)
	assert.Equal(t, "!foo\n!!0 2 1\n", string(data))

	missing, err := http.Get(ts.URL + "/v1/layouts/" + id + "/svg")
	require.NoError(t, err)
	missing.Body.Close()
	assert.Equal(t, http.StatusNotFound, missing.StatusCode)

	list, err := http.Get(ts.URL + "/v1/layouts?limit=10")
	require.NoError(t, err)
	defer list.Body.Close()
	var runs struct {
		Runs []map[string]any `json:"runs"`
	}
	require.NoError(t, json.NewDecoder(list.Body).Decode(&runs))
	require.Len(t, runs.Runs, 1)
	assert.Equal(t, id, runs.Runs[0]["id"])
}

func TestCreateUsesDefaultsForPartialParams(t *testing.T) {
	ts, _ := newTestServer(t)
	resp, out := createRun(t, ts, `{"profile": `+profile+`, "params": {"chain_split": false}}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode, out)

	params, _ := out["params"].(map[string]any)
	assert.Equal(t, false, params["chain_split"])
	assert.Equal(t, float64(10), params["fallthrough_weight"])
}

func TestCreateErrors(t *testing.T) {
	ts, _ := newTestServer(t)
	tests := []struct {
		name   string
		body   string
		status int
		code   string
	}{
		{"malformed body", `{`, http.StatusBadRequest, "INVALID_INPUT"},
		{"missing profile", `{}`, http.StatusBadRequest, "INVALID_INPUT"},
		{"unknown field", `{"profile": {}, "extra": 1}`, http.StatusBadRequest, "INVALID_INPUT"},
		{"bad profile", `{"profile": {"functions": [{"names": ["f"], "nodes": []}]}}`, http.StatusBadRequest, "INVALID_PROFILE"},
		{"bad params", `{"profile": ` + profile + `, "params": {"fallthrough_weight": 0}}`, http.StatusBadRequest, "INVALID_PARAMS"},
		{"bad format", `{"profile": ` + profile + `, "formats": ["pdf"]}`, http.StatusBadRequest, "INVALID_FORMAT"},
		{"unknown function", `{"profile": ` + profile + `, "formats": ["dot"], "function": "nope"}`, http.StatusNotFound, "NOT_FOUND"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, out := createRun(t, ts, tt.body)
			assert.Equal(t, tt.status, resp.StatusCode)
			body, _ := out["error"].(map[string]any)
			assert.Equal(t, tt.code, body["code"])
		})
	}
}

func TestBodyLimit(t *testing.T) {
	st, err := store.NewFileStore(t.TempDir())
	require.NoError(t, err)
	srv := New(Options{
		Runner:       pipeline.NewRunner(nil, nil, log.New(io.Discard)),
		Store:        st,
		Logger:       log.New(io.Discard),
		MaxBodyBytes: 64,
	})
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, out := createRun(t, ts, `{"profile": `+profile+`}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	body, _ := out["error"].(map[string]any)
	assert.Contains(t, body["message"], "exceeds")
}

func TestGetAndDeleteErrors(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/v1/layouts/not-a-uuid")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	unknown := "/v1/layouts/9b2b7c4e-8f0b-4a8e-9a4e-2f1d8c6b5a31"
	resp, err = http.Get(ts.URL + unknown)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	req, _ := http.NewRequest(http.MethodDelete, ts.URL+unknown, nil)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, err = http.Get(ts.URL + "/v1/layouts?limit=-1")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestDelete(t *testing.T) {
	ts, st := newTestServer(t)
	_, out := createRun(t, ts, `{"profile": `+profile+`}`)
	id := out["id"].(string)

	req, _ := http.NewRequest(http.MethodDelete, ts.URL+"/v1/layouts/"+id, nil)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	_, err = st.Get(t.Context(), id)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestRequestIDPassthrough(t *testing.T) {
	ts, _ := newTestServer(t)
	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/healthz", nil)
	req.Header.Set("X-Request-ID", "abc")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "abc", resp.Header.Get("X-Request-ID"))
}

func TestHTTPHooks(t *testing.T) {
	hooks := observability.NewLogHooks(log.New(io.Discard))
	observability.SetHTTPHooks(hooks)
	t.Cleanup(observability.Reset)

	ts, _ := newTestServer(t)
	for range 3 {
		resp, err := http.Post(ts.URL+"/v1/layouts", "application/json", bytes.NewReader([]byte(`{}`)))
		require.NoError(t, err)
		resp.Body.Close()
	}
	assert.Equal(t, int64(3), hooks.Counters().Requests)
}
