package storage

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streamgate/streamgate/internal/usenet/fileserver"
)

// fakeFileServer backs a fileserver.Client with an httptest.Server that
// serves a fixed listing and records deletes, for Manager.Run tests.
type fakeFileServer struct {
	entries []fileserver.FileEntry

	mu      sync.Mutex
	deleted []string
}

func newFakeFileServer(entries []fileserver.FileEntry) *fakeFileServer {
	return &fakeFileServer{entries: entries}
}

func (f *fakeFileServer) client(t *testing.T) *fileserver.Client {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/list", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(f.entries)
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodDelete {
			f.mu.Lock()
			f.deleted = append(f.deleted, r.URL.Path)
			f.mu.Unlock()
			_ = json.NewEncoder(w).Encode(map[string]bool{"ok": true})
			return
		}
		http.NotFound(w, r)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return fileserver.New(srv.URL, "")
}

func TestPriorityWatchedBeatsEverythingElse(t *testing.T) {
	now := time.Now()
	watched := fileserver.FileEntry{WatchedPct: 95, ModifiedAt: now}
	completed := fileserver.FileEntry{Completed: true, ModifiedAt: now.AddDate(0, 0, -30)}

	assert.Greater(t, priority(watched, now), priority(completed, now))
}

func TestPriorityOlderCompletedRanksHigher(t *testing.T) {
	now := time.Now()
	older := fileserver.FileEntry{Completed: true, ModifiedAt: now.AddDate(0, 0, -30)}
	newer := fileserver.FileEntry{Completed: true, ModifiedAt: now.AddDate(0, 0, -8)}

	assert.Greater(t, priority(older, now), priority(newer, now))
}

func TestEligibleNormalModeExcludesIncomplete(t *testing.T) {
	now := time.Now()
	incomplete := fileserver.FileEntry{Completed: false, ModifiedAt: now.AddDate(0, 0, -10)}

	assert.False(t, eligible(incomplete, ModeNormal, now))
	assert.True(t, eligible(incomplete, ModeCritical, now))
}

func TestEligibleWatchedAlwaysEligible(t *testing.T) {
	now := time.Now()
	watched := fileserver.FileEntry{WatchedPct: 91, ModifiedAt: now}
	assert.True(t, eligible(watched, ModeNormal, now))
}

func TestEligibleFreshFilesExcluded(t *testing.T) {
	now := time.Now()
	fresh := fileserver.FileEntry{Completed: true, ModifiedAt: now}
	assert.False(t, eligible(fresh, ModeCritical, now))
}

func TestRunSkipsActiveStreamPaths(t *testing.T) {
	now := time.Now()
	files := newFakeFileServer([]fileserver.FileEntry{
		{Path: "/a/playing.mkv", WatchedPct: 95, ModifiedAt: now, SizeBytes: 1 << 20},
		{Path: "/a/idle.mkv", WatchedPct: 95, ModifiedAt: now, SizeBytes: 1 << 20},
	})

	m := New(files.client(t), Options{DeleteYieldInterval: time.Millisecond}, nil)
	m.SetActivePathsFunc(func() map[string]struct{} {
		return map[string]struct{}{"/a/playing.mkv": {}}
	})

	freed, err := m.Run(context.Background(), ModeNormal)
	require.NoError(t, err)
	assert.Greater(t, freed, int64(0))
	assert.Contains(t, files.deleted, "/a/idle.mkv")
	assert.NotContains(t, files.deleted, "/a/playing.mkv")
}
