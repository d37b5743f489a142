package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thellimist/repoctx/internal/assist"
)

type stubAssistant struct {
	got assist.Request
}

func (s *stubAssistant) Handle(_ context.Context, req assist.Request) assist.Response {
	s.got = req
	return assist.Response{
		Command:  assist.CommandAssist,
		Messages: []assist.Message{{Role: assist.RoleUser, Content: req.Prompt}},
	}
}

type stubStructure string

func (s stubStructure) FileStructure(context.Context) string { return string(s) }

func newTestServer(t *testing.T, a Assistant) *httptest.Server {
	t.Helper()
	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewCounter(prometheus.CounterOpts{Name: "test_total", Help: "test"}))

	srv := httptest.NewServer(New(a, stubStructure("Repository Structure:\n- a.go: No description"), reg, nil).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func TestContextEndpoint(t *testing.T) {
	a := &stubAssistant{}
	srv := newTestServer(t, a)

	body := `{"prompt":"parse JSON","language":"go","currentFile":"package x","currentFileName":"x.go"}`
	resp, err := http.Post(srv.URL+"/v1/context", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, assist.Request{Prompt: "parse JSON", Language: "go", CurrentFile: "package x", CurrentFileName: "x.go"}, a.got)

	var out assist.Response
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, assist.CommandAssist, out.Command)
	require.Len(t, out.Messages, 1)
	assert.Equal(t, "parse JSON", out.Messages[0].Content)
}

func TestContextEndpoint_BadRequest(t *testing.T) {
	srv := newTestServer(t, &stubAssistant{})

	for _, body := range []string{`{not json`, `{"prompt":""}`} {
		resp, err := http.Post(srv.URL+"/v1/context", "application/json", strings.NewReader(body))
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, body)
	}
}

func TestContextEndpoint_MethodNotAllowed(t *testing.T) {
	srv := newTestServer(t, &stubAssistant{})

	resp, err := http.Get(srv.URL + "/v1/context")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestStructureEndpoint(t *testing.T) {
	srv := newTestServer(t, &stubAssistant{})

	resp, err := http.Get(srv.URL + "/v1/structure")
	require.NoError(t, err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "Repository Structure:\n- a.go: No description", string(data))
}

func TestMetricsAndHealth(t *testing.T) {
	srv := newTestServer(t, &stubAssistant{})

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	data, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Contains(t, string(data), "test_total 0")

	resp, err = http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	data, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, "ok", string(data))
}
