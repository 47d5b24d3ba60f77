package api

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"credit-analytics/services"
	"credit-analytics/storage"
	"credit-analytics/utils"
)

const wideSample = "Country Name;2019;2020;2021\nBrazil;10;20;30\nArgentina;;5;5\nKorea, Rep.;1;2;3\n"

type testEnv struct {
	store  *storage.DatasetStore
	server *Server
	http   *httptest.Server
}

func newTestEnv(t *testing.T, opts Options) *testEnv {
	t.Helper()

	if opts.MaxUploadBytes == 0 {
		opts.MaxUploadBytes = 1 << 20
	}
	if opts.RateLimitRPS == 0 {
		opts.RateLimitRPS = 1000
		opts.RateLimitBurst = 1000
	}

	logger := utils.NopLogger()
	store := storage.NewDatasetStore(logger)
	srv := NewServer(store, services.NewIngestor(logger), logger, opts)
	ts := httptest.NewServer(srv.Routes())
	t.Cleanup(func() {
		srv.Close()
		ts.Close()
	})
	return &testEnv{store: store, server: srv, http: ts}
}

func (e *testEnv) upload(t *testing.T, filename, body string, fields map[string]string) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = io.WriteString(fw, body)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	resp, err := http.Post(e.http.URL+"/api/datasets", mw.FormDataContentType(), &buf)
	require.NoError(t, err)
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()

	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestUploadWideTable(t *testing.T) {
	env := newTestEnv(t, Options{})

	resp := env.upload(t, "credit.txt", wideSample, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	info := decode[DatasetInfo](t, resp)
	assert.Equal(t, uint64(1), info.Generation)
	assert.Equal(t, "wide-table", string(info.Shape))
	assert.Equal(t, 8, info.Records)
	assert.Equal(t, 1, info.Skipped)
	assert.Equal(t, []string{"Argentina", "Brazil", "Korea, Rep."}, info.Countries)
}

func TestUploadShapeOverride(t *testing.T) {
	env := newTestEnv(t, Options{})

	resp := env.upload(t, "export.csv", "Country,2020\nPeru,4\n", map[string]string{"shape": "wide-table"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, 1, decode[DatasetInfo](t, resp).Records)

	resp = env.upload(t, "export.csv", "Country,2020\nPeru,4\n", map[string]string{"shape": "parquet"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestFailedUploadKeepsCurrentDataset(t *testing.T) {
	env := newTestEnv(t, Options{})

	resp := env.upload(t, "credit.txt", wideSample, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	first := decode[DatasetInfo](t, resp)

	resp = env.upload(t, "empty.csv", "country,year,amount\n", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	p := decode[Problem](t, resp)
	assert.Equal(t, "/errors/unreadable-input", p.Type)

	cur, err := http.Get(env.http.URL + "/api/datasets/current")
	require.NoError(t, err)
	info := decode[DatasetInfo](t, cur)
	assert.Equal(t, first.ID, info.ID)
	assert.Equal(t, first.Generation, info.Generation)
}

func TestUploadRequiresFile(t *testing.T) {
	env := newTestEnv(t, Options{})

	resp, err := http.Post(env.http.URL+"/api/datasets", "application/json", strings.NewReader("{}"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestQueriesBeforeLoad(t *testing.T) {
	env := newTestEnv(t, Options{})

	for _, path := range []string{"/api/datasets/current", "/api/stats"} {
		resp, err := http.Get(env.http.URL + path)
		require.NoError(t, err)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode, path)
		resp.Body.Close()
	}
}

func TestStats(t *testing.T) {
	env := newTestEnv(t, Options{})
	env.upload(t, "credit.txt", wideSample, nil).Body.Close()

	resp, err := http.Get(env.http.URL + "/api/stats?country=" + "%20braz%20")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	stats := decode[StatsResponse](t, resp)
	assert.Equal(t, 3, stats.Count)
	require.NotNil(t, stats.Summary)
	assert.Equal(t, 60.0, stats.Summary.Sum)
	assert.Equal(t, 20.0, stats.Summary.Mean)
	assert.False(t, stats.NoData)
	require.Len(t, stats.Charts, 2)
	assert.Equal(t, []string{"2019", "2020", "2021"}, stats.Charts[0].Series[0].X)
	assert.Len(t, stats.Points, 3)
}

func TestStatsAllAndNoMatch(t *testing.T) {
	env := newTestEnv(t, Options{})
	env.upload(t, "credit.txt", wideSample, nil).Body.Close()

	resp, err := http.Get(env.http.URL + "/api/stats")
	require.NoError(t, err)
	all := decode[StatsResponse](t, resp)
	assert.Equal(t, 8, all.Count)

	resp, err = http.Get(env.http.URL + "/api/stats?country=atlantis")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	none := decode[StatsResponse](t, resp)
	assert.True(t, none.NoData)
	assert.Nil(t, none.Summary)
	assert.Zero(t, none.Count)
}

func postCompare(t *testing.T, env *testEnv, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(env.http.URL+"/api/compare", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	return resp
}

func TestComparePartialFailure(t *testing.T) {
	env := newTestEnv(t, Options{})
	env.upload(t, "credit.txt", wideSample, nil).Body.Close()

	resp := postCompare(t, env, `{"key":"country","a":" Brazil ","b":"Chile"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	cmp := decode[CompareResponse](t, resp)
	assert.Equal(t, uint64(1), cmp.Generation)
	assert.Equal(t, "country", cmp.Key)

	brazil := cmp.Sides[0]
	assert.Equal(t, "Brazil", brazil.Label)
	require.NotNil(t, brazil.Summary)
	assert.Equal(t, 60.0, brazil.Summary.Sum)
	assert.Empty(t, brazil.Error)

	chile := cmp.Sides[1]
	assert.Equal(t, "Chile", chile.Label)
	assert.Nil(t, chile.Summary)
	assert.Equal(t, "no data", chile.Error)
	assert.Zero(t, chile.Count)
	require.Len(t, cmp.Charts, 2)
}

func TestCompareByYear(t *testing.T) {
	env := newTestEnv(t, Options{})
	env.upload(t, "credit.txt", wideSample, nil).Body.Close()

	resp := postCompare(t, env, `{"key":"YEAR","a":"2019","b":"2021"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	cmp := decode[CompareResponse](t, resp)
	require.NotNil(t, cmp.Sides[0].Summary)
	require.NotNil(t, cmp.Sides[1].Summary)
	assert.Equal(t, 11.0, cmp.Sides[0].Summary.Sum)
	assert.Equal(t, 38.0, cmp.Sides[1].Summary.Sum)
}

func TestCompareValidation(t *testing.T) {
	env := newTestEnv(t, Options{})
	env.upload(t, "credit.txt", wideSample, nil).Body.Close()

	tests := []struct {
		name  string
		body  string
		field string
	}{
		{"missing b", `{"key":"country","a":"Brazil","b":"   "}`, "b"},
		{"bad key", `{"key":"region","a":"x","b":"y"}`, "key"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := postCompare(t, env, tt.body)
			require.Equal(t, http.StatusBadRequest, resp.StatusCode)
			p := decode[Problem](t, resp)
			assert.Equal(t, "/errors/validation-failed", p.Type)
			assert.Contains(t, p.Errors, tt.field)
		})
	}

	resp := postCompare(t, env, `not json`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestReloadReplacesDataset(t *testing.T) {
	env := newTestEnv(t, Options{})
	env.upload(t, "credit.txt", wideSample, nil).Body.Close()

	resp := env.upload(t, "credit.csv", "country,year,amount\nChile,2020,5\n", nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	info := decode[DatasetInfo](t, resp)
	assert.Equal(t, uint64(2), info.Generation)

	resp = postCompare(t, env, `{"key":"country","a":"Brazil","b":"Chile"}`)
	cmp := decode[CompareResponse](t, resp)
	assert.Equal(t, uint64(2), cmp.Generation)
	assert.Nil(t, cmp.Sides[0].Summary)
	require.NotNil(t, cmp.Sides[1].Summary)
	assert.Equal(t, 5.0, cmp.Sides[1].Summary.Sum)
}

func TestUploadRateLimited(t *testing.T) {
	env := newTestEnv(t, Options{RateLimitRPS: 0.001, RateLimitBurst: 1})

	first := env.upload(t, "credit.txt", wideSample, nil)
	assert.Equal(t, http.StatusCreated, first.StatusCode)
	first.Body.Close()

	second := env.upload(t, "credit.txt", wideSample, nil)
	assert.Equal(t, http.StatusTooManyRequests, second.StatusCode)
	second.Body.Close()
}

func TestWebsocketReceivesDatasetLoaded(t *testing.T) {
	env := newTestEnv(t, Options{})

	url := "ws" + strings.TrimPrefix(env.http.URL, "http") + "/api/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return env.server.hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	env.upload(t, "credit.txt", wideSample, nil).Body.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var ev Event
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, EventDatasetLoaded, ev.Type)
	require.NotNil(t, ev.Dataset)
	assert.Equal(t, uint64(1), ev.Dataset.Generation)
	assert.Equal(t, 8, ev.Dataset.Records)
}

func TestWebsocketGreetsLateClient(t *testing.T) {
	env := newTestEnv(t, Options{})
	env.upload(t, "credit.txt", wideSample, nil).Body.Close()

	url := "ws" + strings.TrimPrefix(env.http.URL, "http") + "/api/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var ev Event
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, EventDatasetLoaded, ev.Type)
	assert.Equal(t, uint64(1), ev.Dataset.Generation)
}

func TestMetricsAndHealth(t *testing.T) {
	env := newTestEnv(t, Options{})
	env.upload(t, "credit.txt", wideSample, nil).Body.Close()

	resp, err := http.Get(env.http.URL + "/metrics")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)

	text := string(body)
	assert.Contains(t, text, `credit_ingests_total{result="ok",shape="wide-table"} 1`)
	assert.Contains(t, text, "credit_dataset_records 8")
	assert.Contains(t, text, "credit_dataset_generation 1")

	resp, err = http.Get(env.http.URL + "/healthz")
	require.NoError(t, err)
	health := decode[map[string]any](t, resp)
	assert.Equal(t, "ok", health["status"])
	assert.Equal(t, 1.0, health["generation"])
}
