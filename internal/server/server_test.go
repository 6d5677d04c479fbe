package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leapunits/internal/state"
	"github.com/leapstack-labs/leapunits/internal/testutil"
	"github.com/leapstack-labs/leapunits/pkg/registry"
)

type testServer struct {
	srv   *Server
	http  *httptest.Server
	store *state.SQLiteStore
}

func setupTestServer(t *testing.T) *testServer {
	t.Helper()
	logger := testutil.NewTestLogger(t)

	store, err := state.OpenStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	build := func() (*registry.Registry, error) {
		reg, err := registry.New(registry.WithLogger(logger))
		if err != nil {
			return nil, err
		}
		defs, err := store.ListDefinitions(context.Background())
		if err != nil {
			return nil, err
		}
		for _, d := range defs {
			if err := reg.DefineString(d.Line); err != nil {
				return nil, err
			}
		}
		return reg, nil
	}
	holder, err := NewHolder(build)
	require.NoError(t, err)

	srv := NewServer(Config{Holder: holder, Store: store, Logger: logger})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	return &testServer{srv: srv, http: ts, store: store}
}

func (ts *testServer) do(t *testing.T, method, path string, body any) (int, []byte) {
	t.Helper()
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(context.Background(), method, ts.http.URL+path, rd)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, data
}

func TestServer_Healthz(t *testing.T) {
	ts := setupTestServer(t)
	status, body := ts.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", string(body))
}

func TestServer_ConvertQuery(t *testing.T) {
	ts := setupTestServer(t)

	status, body := ts.do(t, http.MethodGet, "/api/convert?value=12&from=inch&to=cm", nil)
	require.Equal(t, http.StatusOK, status, string(body))

	var resp ConvertResponse
	require.NoError(t, json.Unmarshal(body, &resp))
	assert.InDelta(t, 30.48, resp.Result, 1e-9)
	assert.Equal(t, "inch", resp.From)

	// value defaults to one
	status, body = ts.do(t, http.MethodGet, "/api/convert?from=km&to=m", nil)
	require.Equal(t, http.StatusOK, status, string(body))
	require.NoError(t, json.Unmarshal(body, &resp))
	assert.InDelta(t, 1000, resp.Result, 1e-9)
}

func TestServer_ConvertJSONWithContext(t *testing.T) {
	ts := setupTestServer(t)

	status, body := ts.do(t, http.MethodPost, "/api/convert", ConvertRequest{
		Value:    500,
		From:     "nm",
		To:       "THz",
		Contexts: []string{"sp"},
		Params:   map[string]float64{"n": 2},
	})
	require.Equal(t, http.StatusOK, status, string(body))

	var resp ConvertResponse
	require.NoError(t, json.Unmarshal(body, &resp))
	assert.InDelta(t, 299.792458, resp.Result, 1e-6)

	// the context is only active for the request
	status, _ = ts.do(t, http.MethodGet, "/api/convert?value=500&from=nm&to=THz", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, status)
}

func TestServer_ConvertErrors(t *testing.T) {
	ts := setupTestServer(t)

	tests := []struct {
		name       string
		path       string
		wantStatus int
		wantKind   string
	}{
		{"missing target", "/api/convert?from=m", http.StatusBadRequest, ""},
		{"bad value", "/api/convert?value=abc&from=m&to=km", http.StatusBadRequest, ""},
		{"undefined unit", "/api/convert?from=parsec_of_cheese&to=m", http.StatusUnprocessableEntity, "UndefinedUnitError"},
		{"incompatible", "/api/convert?from=m&to=s", http.StatusUnprocessableEntity, "DimensionalityError"},
		{"unknown context", "/api/convert?from=nm&to=THz&context=nope", http.StatusNotFound, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := ts.do(t, http.MethodGet, tt.path, nil)
			assert.Equal(t, tt.wantStatus, status, string(body))

			var resp struct {
				Error  string `json:"error"`
				Detail struct {
					Kind string `json:"kind"`
				} `json:"detail"`
			}
			require.NoError(t, json.Unmarshal(body, &resp))
			assert.NotEmpty(t, resp.Error)
			assert.Equal(t, tt.wantKind, resp.Detail.Kind)
		})
	}
}

func TestServer_Dimensionality(t *testing.T) {
	ts := setupTestServer(t)

	status, body := ts.do(t, http.MethodGet, "/api/dimensionality?expr=newton", nil)
	require.Equal(t, http.StatusOK, status, string(body))

	var resp struct {
		Dimensions map[string]float64 `json:"dimensions"`
	}
	require.NoError(t, json.Unmarshal(body, &resp))
	assert.Equal(t, map[string]float64{"[mass]": 1, "[length]": 1, "[time]": -2}, resp.Dimensions)
}

func TestServer_Base(t *testing.T) {
	ts := setupTestServer(t)

	status, body := ts.do(t, http.MethodGet, "/api/base?expr=km", nil)
	require.Equal(t, http.StatusOK, status, string(body))

	var resp struct {
		Factor float64            `json:"factor"`
		Units  string             `json:"units"`
		Parts  map[string]float64 `json:"parts"`
	}
	require.NoError(t, json.Unmarshal(body, &resp))
	assert.InDelta(t, 1000, resp.Factor, 1e-9)
	assert.Equal(t, "meter", resp.Units)
}

func TestServer_Compatible(t *testing.T) {
	ts := setupTestServer(t)

	status, body := ts.do(t, http.MethodGet, "/api/compatible?expr=inch", nil)
	require.Equal(t, http.StatusOK, status, string(body))

	var resp struct {
		Units []string `json:"units"`
	}
	require.NoError(t, json.Unmarshal(body, &resp))
	assert.Contains(t, resp.Units, "meter")
	assert.NotContains(t, resp.Units, "second")
}

func TestServer_Units(t *testing.T) {
	ts := setupTestServer(t)

	tests := []struct {
		kind   string
		status int
		want   string
	}{
		{"", http.StatusOK, "meter"},
		{"prefixes", http.StatusOK, "kilo"},
		{"dimensions", http.StatusOK, "[force]"},
		{"bogus", http.StatusBadRequest, ""},
	}
	for _, tt := range tests {
		t.Run(tt.kind, func(t *testing.T) {
			status, body := ts.do(t, http.MethodGet, "/api/units?kind="+tt.kind, nil)
			require.Equal(t, tt.status, status, string(body))
			if tt.want == "" {
				return
			}
			var infos []UnitInfo
			require.NoError(t, json.Unmarshal(body, &infos))
			var names []string
			for _, info := range infos {
				names = append(names, info.Name)
			}
			assert.Contains(t, names, tt.want)
		})
	}
}

func TestServer_Contexts(t *testing.T) {
	ts := setupTestServer(t)

	status, body := ts.do(t, http.MethodGet, "/api/contexts", nil)
	require.Equal(t, http.StatusOK, status, string(body))

	var infos []ContextInfo
	require.NoError(t, json.Unmarshal(body, &infos))

	var sp *ContextInfo
	for i := range infos {
		if infos[i].Name == "spectroscopy" {
			sp = &infos[i]
		}
	}
	require.NotNil(t, sp)
	assert.Contains(t, sp.Aliases, "sp")
	assert.InDelta(t, 1, sp.Defaults["n"], 0)
	assert.False(t, sp.Active)
}

func TestServer_Definitions(t *testing.T) {
	ts := setupTestServer(t)

	status, body := ts.do(t, http.MethodPost, "/api/definitions", map[string]string{"line": "smoot = 1.7018 * meter"})
	require.Equal(t, http.StatusCreated, status, string(body))

	status, body = ts.do(t, http.MethodGet, "/api/convert?value=2&from=smoot&to=cm", nil)
	require.Equal(t, http.StatusOK, status, string(body))
	var resp ConvertResponse
	require.NoError(t, json.Unmarshal(body, &resp))
	assert.InDelta(t, 340.36, resp.Result, 1e-9)

	status, body = ts.do(t, http.MethodGet, "/api/definitions", nil)
	require.Equal(t, http.StatusOK, status)
	var defs []definitionResponse
	require.NoError(t, json.Unmarshal(body, &defs))
	require.Len(t, defs, 1)
	assert.Equal(t, definitionResponse{Name: "smoot", Kind: "unit", Line: "smoot = 1.7018 * meter"}, defs[0])

	// a reload replays stored definitions
	require.NoError(t, ts.srv.Reload())
	status, _ = ts.do(t, http.MethodGet, "/api/convert?from=smoot&to=m", nil)
	assert.Equal(t, http.StatusOK, status)

	status, _ = ts.do(t, http.MethodDelete, "/api/definitions/smoot", nil)
	assert.Equal(t, http.StatusNoContent, status)

	status, _ = ts.do(t, http.MethodGet, "/api/convert?from=smoot&to=m", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, status)

	status, _ = ts.do(t, http.MethodDelete, "/api/definitions/smoot", nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestServer_DefinitionAliases(t *testing.T) {
	ts := setupTestServer(t)

	for _, line := range []string{"smoot = 1.7018 * meter", "@alias smoot = smoot_alias", "@alias smoot = sm2"} {
		status, body := ts.do(t, http.MethodPost, "/api/definitions", map[string]string{"line": line})
		require.Equal(t, http.StatusCreated, status, string(body))
	}

	status, body := ts.do(t, http.MethodGet, "/api/definitions", nil)
	require.Equal(t, http.StatusOK, status)
	var defs []definitionResponse
	require.NoError(t, json.Unmarshal(body, &defs))
	require.Len(t, defs, 3)

	// every saved line survives a rebuild
	require.NoError(t, ts.srv.Reload())
	for _, unit := range []string{"smoot", "smoot_alias", "sm2"} {
		status, body = ts.do(t, http.MethodGet, "/api/convert?value=2&from="+unit+"&to=m", nil)
		require.Equal(t, http.StatusOK, status, string(body))
	}

	status, _ = ts.do(t, http.MethodDelete, "/api/definitions/smoot", nil)
	assert.Equal(t, http.StatusNoContent, status)
	stored, err := ts.store.ListDefinitions(context.Background())
	require.NoError(t, err)
	assert.Empty(t, stored)
}

func TestServer_Routes(t *testing.T) {
	ts := setupTestServer(t)

	var routes []string
	err := chi.Walk(ts.srv.Handler().(chi.Routes), func(method, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		routes = append(routes, method+" "+strings.TrimSuffix(route, "/"))
		return nil
	})
	require.NoError(t, err)

	for _, want := range []string{
		"GET /healthz",
		"GET /metrics",
		"GET /api/convert",
		"POST /api/convert",
		"GET /api/dimensionality",
		"GET /api/base",
		"GET /api/compatible",
		"GET /api/units",
		"GET /api/contexts",
		"POST /api/reload",
		"GET /api/definitions",
		"POST /api/definitions",
		"DELETE /api/definitions/{name}",
		"GET /api/history",
	} {
		assert.Contains(t, routes, want)
	}
}

func TestServer_DefineErrors(t *testing.T) {
	ts := setupTestServer(t)

	tests := []struct {
		name   string
		line   string
		status int
	}{
		{"empty", "", http.StatusBadRequest},
		{"syntax", "= meter", http.StatusUnprocessableEntity},
		{"redefinition", "meter = 2 * inch", http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := ts.do(t, http.MethodPost, "/api/definitions", map[string]string{"line": tt.line})
			assert.Equal(t, tt.status, status, string(body))
		})
	}

	defs, err := ts.store.ListDefinitions(context.Background())
	require.NoError(t, err)
	assert.Empty(t, defs)
}

func TestServer_History(t *testing.T) {
	ts := setupTestServer(t)

	ts.do(t, http.MethodGet, "/api/convert?value=1&from=km&to=m", nil)
	ts.do(t, http.MethodGet, "/api/convert?value=1&from=km&to=s", nil)

	status, body := ts.do(t, http.MethodGet, "/api/history?limit=10", nil)
	require.Equal(t, http.StatusOK, status, string(body))

	var entries []state.Conversion
	require.NoError(t, json.Unmarshal(body, &entries))
	require.Len(t, entries, 2)

	// newest first
	assert.Equal(t, "s", entries[0].Dst)
	assert.NotEmpty(t, entries[0].Error)
	assert.Nil(t, entries[0].Result)
	require.NotNil(t, entries[1].Result)
	assert.InDelta(t, 1000, *entries[1].Result, 1e-9)

	status, _ = ts.do(t, http.MethodGet, "/api/history?limit=x", nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestServer_WithoutStore(t *testing.T) {
	holder, err := NewHolder(func() (*registry.Registry, error) { return registry.New() })
	require.NoError(t, err)
	srv := NewServer(Config{Holder: holder})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/history", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/convert?from=km&to=m", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestServer_Metrics(t *testing.T) {
	ts := setupTestServer(t)

	ts.do(t, http.MethodGet, "/api/convert?from=km&to=m", nil)
	ts.do(t, http.MethodGet, "/api/convert?from=km&to=s", nil)
	ts.do(t, http.MethodPost, "/api/reload", nil)

	status, body := ts.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, status)

	text := string(body)
	assert.Contains(t, text, `leapunits_conversions_total{status="ok"} 1`)
	assert.Contains(t, text, `leapunits_conversions_total{status="error"} 1`)
	assert.Contains(t, text, `leapunits_registry_reloads_total{status="ok"} 1`)
	assert.Contains(t, text, "leapunits_registry_units")
}

func TestServer_ServeListener(t *testing.T) {
	holder, err := NewHolder(func() (*registry.Registry, error) { return registry.New() })
	require.NoError(t, err)
	srv := NewServer(Config{Holder: holder, Logger: testutil.NewTestLogger(t)})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.ServeListener(ctx, ln) }()

	url := "http://" + ln.Addr().String() + "/healthz"
	require.Eventually(t, func() bool {
		resp, err := http.Get(url) //nolint:noctx // test helper
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestHolder_ReloadKeepsRegistryOnError(t *testing.T) {
	fail := false
	holder, err := NewHolder(func() (*registry.Registry, error) {
		if fail {
			return nil, errors.New("broken definitions")
		}
		return registry.New(registry.WithoutDefaults(), registry.WithDefinitionsReader("test",
			strings.NewReader("meter = [length] = m\n")))
	})
	require.NoError(t, err)
	assert.Equal(t, 1, holder.Generation())

	require.NoError(t, holder.Reload())
	assert.Equal(t, 2, holder.Generation())

	fail = true
	require.Error(t, holder.Reload())
	assert.Equal(t, 2, holder.Generation())
	require.NoError(t, holder.Do(func(reg *registry.Registry) error {
		_, err := reg.GetName("m")
		return err
	}))
}
