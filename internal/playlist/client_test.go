package playlist

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"

	"github.com/veliks/moodpulse/internal/mood"
)

func chatBody(content string) string {
	b, _ := json.Marshal(map[string]any{
		"message": map[string]string{"role": "assistant", "content": content},
	})
	return string(b)
}

func TestSuggest(t *testing.T) {
	var gotUser string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Messages []struct{ Role, Content string } `json:"messages"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		gotUser = req.Messages[1].Content
		_, _ = w.Write([]byte(chatBody(`{"suggestions":[
			{"title":"Weightless","artist":"Marconi Union","rationale":"calm"},
			{"title":"Intro","artist":"The xx","rationale":"spacious"}
		]}`)))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "test-model", nil)
	got, err := c.Suggest(context.Background(), mood.New(0.2, 0.6, 0.3, 0.8), "late night focus", 5)
	assert.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Equal(t, "Weightless", got[0].Title)
	assert.Contains(t, gotUser, "energy=0.20")
	assert.Contains(t, gotUser, "late night focus")
}

func TestSuggestTruncatesToLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var sb strings.Builder
		sb.WriteString(`{"suggestions":[`)
		for i := 0; i < 8; i++ {
			if i > 0 {
				sb.WriteString(",")
			}
			sb.WriteString(`{"title":"t","artist":"a","rationale":"r"}`)
		}
		sb.WriteString(`]}`)
		_, _ = w.Write([]byte(chatBody(sb.String())))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", nil)
	got, err := c.Suggest(context.Background(), mood.State{}, "", 3)
	assert.NoError(t, err)
	assert.Len(t, got, 3)
}

func TestSuggestEmptyResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(chatBody(`{"suggestions":[]}`)))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", nil)
	_, err := c.Suggest(context.Background(), mood.State{}, "", 5)
	assert.True(t, eris.Is(err, ErrNoSuggestions))
}

func TestSuggestUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"error":"model not found"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", nil)
	_, err := c.Suggest(context.Background(), mood.State{}, "", 5)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "model not found")
}

func TestSuggestMalformedContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(chatBody("not json at all")))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", nil)
	_, err := c.Suggest(context.Background(), mood.State{}, "", 5)
	assert.Error(t, err)
}
