package video

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestResolve(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "abc123", r.URL.Query().Get("id"))
		_, _ = w.Write([]byte(`{"id":"abc123","title":"Visual Mix","duration_ms":3600000}`))
	}))
	defer srv.Close()

	r := NewResolver(srv.URL, nil, nil)
	v, err := r.Resolve(context.Background(), "abc123")
	assert.NoError(t, err)
	assert.Equal(t, "Visual Mix", v.Title)
	assert.Equal(t, 3600000.0, v.DurationMs)
}

func TestResolveClampsNegativeDuration(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"title":"Broken","duration_ms":-5}`))
	}))
	defer srv.Close()

	r := NewResolver(srv.URL, nil, nil)
	v, err := r.Resolve(context.Background(), "abc123")
	assert.NoError(t, err)
	assert.Equal(t, 0.0, v.DurationMs)
	assert.Equal(t, "abc123", v.ID, "missing id falls back to the requested one")
}

func TestResolveErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	r := NewResolver(srv.URL, nil, nil)
	_, err := r.Resolve(context.Background(), "missing")
	assert.Error(t, err)
}

func TestPlayerClockAdvancesWhilePlaying(t *testing.T) {
	now := time.Unix(1000, 0)
	p := NewPlayer(func() time.Time { return now })

	p.Load(Video{ID: "v1", Title: "Mix", DurationMs: 60000})

	now = now.Add(2 * time.Second)
	snap, ok, ended := p.Snapshot()
	assert.True(t, ok)
	assert.False(t, ended)
	assert.Equal(t, 2000.0, snap.ProgressMs)
	assert.True(t, snap.Playing)
}

func TestPlayerPauseFreezesClock(t *testing.T) {
	now := time.Unix(1000, 0)
	p := NewPlayer(func() time.Time { return now })
	p.Load(Video{ID: "v1", DurationMs: 60000})

	now = now.Add(time.Second)
	assert.NoError(t, p.Pause(context.Background()))

	now = now.Add(5 * time.Second)
	snap, _, _ := p.Snapshot()
	assert.Equal(t, 1000.0, snap.ProgressMs)
	assert.False(t, snap.Playing)
}

func TestPlayerReportsEndOnce(t *testing.T) {
	now := time.Unix(1000, 0)
	p := NewPlayer(func() time.Time { return now })
	p.Load(Video{ID: "v1", DurationMs: 3000})

	now = now.Add(5 * time.Second)
	snap, ok, ended := p.Snapshot()
	assert.True(t, ok)
	assert.True(t, ended)
	assert.Equal(t, 3000.0, snap.ProgressMs)
	assert.False(t, snap.Playing)

	_, _, endedAgain := p.Snapshot()
	assert.False(t, endedAgain, "end fires a single time")
}

func TestPlayerSeekClamped(t *testing.T) {
	p := NewPlayer(nil)
	p.Load(Video{ID: "v1", DurationMs: 10000})

	assert.NoError(t, p.Seek(context.Background(), 50000))
	snap, _, _ := p.Snapshot()
	assert.LessOrEqual(t, snap.ProgressMs, 10000.0)

	assert.NoError(t, p.Seek(context.Background(), -100))
	snap, _, _ = p.Snapshot()
	assert.GreaterOrEqual(t, snap.ProgressMs, 0.0)
}

func TestPlayerSnapshotWithoutLoad(t *testing.T) {
	p := NewPlayer(nil)
	_, ok, _ := p.Snapshot()
	assert.False(t, ok)
}
