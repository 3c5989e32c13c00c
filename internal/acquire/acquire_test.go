package acquire

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sprocket-run/sprocket/pkg/plugin"
)

type nopLogger struct{}

func (nopLogger) Status(string, ...any) {}
func (nopLogger) Progress() io.Writer   { return io.Discard }

func TestAcquireLocalSource(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "thing.plugin.zsh"), []byte("echo hi"), 0o644))

	a := New(t.TempDir(), nil, nopLogger{}, 0)
	results, err := a.AcquireAll(context.Background(), []plugin.Plugin{
		{
			Name: "local-one",
			External: &plugin.ExternalPlugin{
				Source: plugin.Source{Kind: plugin.SourceLocal, Path: dir},
			},
		},
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, dir, results[0].FS.Path())
}

func TestAcquireLocalSourceMissingDirErrors(t *testing.T) {
	a := New(t.TempDir(), nil, nopLogger{}, 0)
	_, err := a.AcquireAll(context.Background(), []plugin.Plugin{
		{
			Name: "missing",
			External: &plugin.ExternalPlugin{
				Source: plugin.Source{Kind: plugin.SourceLocal, Path: filepath.Join(t.TempDir(), "nope")},
			},
		},
	})
	require.Error(t, err)
}

func TestAcquireAllIsolatesFailures(t *testing.T) {
	goodDir := t.TempDir()
	a := New(t.TempDir(), nil, nopLogger{}, 0)
	results, err := a.AcquireAll(context.Background(), []plugin.Plugin{
		{
			Name: "bad",
			External: &plugin.ExternalPlugin{
				Source: plugin.Source{Kind: plugin.SourceLocal, Path: filepath.Join(t.TempDir(), "missing")},
			},
		},
		{
			Name: "good",
			External: &plugin.ExternalPlugin{
				Source: plugin.Source{Kind: plugin.SourceLocal, Path: goodDir},
			},
		},
	})
	require.Error(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, goodDir, results[1].FS.Path())
}

// TestAcquireRemoteSourceAlwaysRequestsConditionally exercises spec.md §4.2's remote algorithm: a
// lock always issues a GET (never just trusting an on-disk file), but a server that honors
// If-None-Match can answer 304 and have the cached copy retained untouched.
func TestAcquireRemoteSourceAlwaysRequestsConditionally(t *testing.T) {
	var hits int
	const etag = `"v1"`
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		if r.Header.Get("If-None-Match") == etag {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", etag)
		w.Write([]byte("#!/bin/sh\necho hi\n"))
	}))
	defer server.Close()

	cache := t.TempDir()
	a := New(cache, server.Client(), nopLogger{}, 0)
	url := server.URL + "/thing.sh"

	for i := 0; i < 2; i++ {
		results, err := a.AcquireAll(context.Background(), []plugin.Plugin{
			{
				Name: "remote-one",
				External: &plugin.ExternalPlugin{
					Source: plugin.Source{Kind: plugin.SourceRemote, URL: url},
				},
			},
		})
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, "thing.sh", results[0].DownloadedAs)
	}
	assert.Equal(t, 2, hits, "every lock should re-issue a conditional GET, not just trust the cache")
}

// TestAcquireRemoteSourceRetainsCacheOn304 confirms the downloaded file's bytes survive untouched
// across a 304 response.
func TestAcquireRemoteSourceRetainsCacheOn304(t *testing.T) {
	const etag = `"v1"`
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("If-None-Match") == etag {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", etag)
		w.Write([]byte("original content"))
	}))
	defer server.Close()

	cache := t.TempDir()
	a := New(cache, server.Client(), nopLogger{}, 0)
	url := server.URL + "/thing.sh"
	p := plugin.Plugin{
		Name:     "remote-one",
		External: &plugin.ExternalPlugin{Source: plugin.Source{Kind: plugin.SourceRemote, URL: url}},
	}

	_, err := a.AcquireAll(context.Background(), []plugin.Plugin{p})
	require.NoError(t, err)
	results, err := a.AcquireAll(context.Background(), []plugin.Plugin{p})
	require.NoError(t, err)

	content, err := os.ReadFile(filepath.Join(results[0].FS.Path(), "thing.sh"))
	require.NoError(t, err)
	assert.Equal(t, "original content", string(content))
}

// TestAcquireAllCoalescesSharedSource confirms spec.md §4.2's coalescing rule: plugins naming the
// same canonical source are acquired once between them.
func TestAcquireAllCoalescesSharedSource(t *testing.T) {
	var hits int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.Write([]byte("#!/bin/sh\necho hi\n"))
	}))
	defer server.Close()

	a := New(t.TempDir(), server.Client(), nopLogger{}, 0)
	url := server.URL + "/thing.sh"
	results, err := a.AcquireAll(context.Background(), []plugin.Plugin{
		{Name: "one", External: &plugin.ExternalPlugin{Source: plugin.Source{Kind: plugin.SourceRemote, URL: url}}},
		{Name: "two", External: &plugin.ExternalPlugin{Source: plugin.Source{Kind: plugin.SourceRemote, URL: url}}},
	})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, 1, hits, "plugins sharing a source should be acquired once, not once each")
	assert.Equal(t, "one", results[0].Plugin)
	assert.Equal(t, "two", results[1].Plugin)
}

func TestAcquireAllSkipsInlinePlugins(t *testing.T) {
	a := New(t.TempDir(), nil, nopLogger{}, 0)
	results, err := a.AcquireAll(context.Background(), []plugin.Plugin{
		{Name: "inline-one", Inline: &plugin.InlinePlugin{Snippet: "echo hi"}},
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Nil(t, results[0].FS)
}
