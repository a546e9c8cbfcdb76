package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"schemeaccess/pkg/accessibility"
)

type fakeServer struct {
	mu    sync.Mutex
	state accessibility.RootState
	posts []string
	pages []string
}

func (f *fakeServer) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/version", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"version":"test"}`))
	})
	mux.HandleFunc("GET /api/accessibility/document", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		_ = json.NewEncoder(w).Encode(f.state)
	})
	mux.HandleFunc("POST /api/speech/read-page", func(w http.ResponseWriter, r *http.Request) {
		var req map[string]string
		_ = json.NewDecoder(r.Body).Decode(&req)
		f.mu.Lock()
		f.pages = append(f.pages, req["html"])
		f.mu.Unlock()
	})
	mux.HandleFunc("POST /", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.posts = append(f.posts, r.URL.Path)
		f.mu.Unlock()
	})
	return mux
}

func (f *fakeServer) set(st accessibility.RootState) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state = st
}

func newTestManager(t *testing.T) (*Manager, *fakeServer, *[]string) {
	t.Helper()
	fs := &fakeServer{}
	srv := httptest.NewServer(fs.handler())
	t.Cleanup(srv.Close)

	var scripts []string
	m := NewManager(strings.TrimPrefix(srv.URL, "http://"), "", 0, func(s string) {
		scripts = append(scripts, s)
	}, nil)
	return m, fs, &scripts
}

func TestSyncDocument(t *testing.T) {
	m, fs, scripts := newTestManager(t)
	ctx := context.Background()

	fs.set(accessibility.RootState{Classes: []string{accessibility.HighContrastClass}, FontSize: "120%", Version: 2})
	require.NoError(t, m.syncDocument(ctx))
	require.Len(t, *scripts, 1)
	assert.Contains(t, (*scripts)[0], `"fontSize":"120%"`)

	require.NoError(t, m.syncDocument(ctx))
	assert.Len(t, *scripts, 1, "unchanged version is not re-applied")

	fs.set(accessibility.RootState{Classes: []string{}, FontSize: "100%", Version: 3})
	require.NoError(t, m.syncDocument(ctx))
	assert.Len(t, *scripts, 2)

	m.PageLoaded()
	require.NoError(t, m.syncDocument(ctx))
	assert.Len(t, *scripts, 3, "a new page gets the state again")
}

func TestCommandAndReadPage(t *testing.T) {
	m, fs, _ := newTestManager(t)

	require.NoError(t, m.Command("contrast"))
	require.NoError(t, m.Command("font-increase"))
	assert.Error(t, m.Command("self-destruct"))
	require.NoError(t, m.ReadPage("<main>Apply online</main>"))

	fs.mu.Lock()
	defer fs.mu.Unlock()
	assert.Equal(t, []string{"/api/accessibility/contrast/toggle", "/api/accessibility/font/increase"}, fs.posts)
	assert.Equal(t, []string{"<main>Apply online</main>"}, fs.pages)
}

func TestIsServerReady(t *testing.T) {
	m, _, _ := newTestManager(t)
	assert.True(t, m.isServerReady())

	down := NewManager("127.0.0.1:1", "", 0, nil, nil)
	assert.False(t, down.isServerReady())
}

func TestResolveAddr(t *testing.T) {
	tests := []struct {
		addr string
		want string
	}{
		{":1930", "127.0.0.1:1930"},
		{"localhost:1930", "127.0.0.1:1930"},
		{"10.0.0.5:1930", "10.0.0.5:1930"},
	}
	for _, tt := range tests {
		m := NewManager(tt.addr, "", 0, nil, nil)
		if got := m.resolveAddr(); got != tt.want {
			t.Errorf("resolveAddr(%q) = %q, want %q", tt.addr, got, tt.want)
		}
	}
}
