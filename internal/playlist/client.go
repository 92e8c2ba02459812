// Package playlist turns a mood vector (plus optional free-text context)
// into a short ordered list of song suggestions via a local LLM chat
// endpoint. Purely request/response; nothing is retained between calls.
package playlist

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/veliks/moodpulse/internal/mood"
)

const defaultBaseURL = "http://localhost:11434"

const systemPrompt = "You are a music curator. You receive a normalized mood vector " +
	"(energy, valence, euphoria, cognition, each 0.0-1.0) and optional listener context. " +
	"Reply with ONLY a JSON object of the form " +
	`{"suggestions":[{"title":"...","artist":"...","rationale":"..."}]}. ` +
	"Order suggestions best-fit first and keep each rationale to one sentence."

// ErrNoSuggestions is returned when the model produced an empty list. A
// recoverable condition: callers show a status message and keep running.
var ErrNoSuggestions = eris.New("no suggestions returned")

// Suggestion is one recommended song with its reasoning.
type Suggestion struct {
	Title     string `json:"title"`
	Artist    string `json:"artist"`
	Rationale string `json:"rationale"`
}

// Client talks to an Ollama-compatible chat endpoint.
type Client struct {
	baseURL    string
	model      string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient constructs a Client. Empty baseURL falls back to the local
// default; empty model picks a small general model.
func NewClient(baseURL, model string, logger *slog.Logger) *Client {
	baseURL = strings.TrimRight(baseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if model == "" {
		model = "llama3.2:3b"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:    baseURL,
		model:      model,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		logger:     logger,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
	Format   string        `json:"format,omitempty"`
}

type chatResponse struct {
	Message chatMessage `json:"message"`
	Error   string      `json:"error,omitempty"`
}

type suggestionsWire struct {
	Suggestions []Suggestion `json:"suggestions"`
}

// Suggest requests up to limit song suggestions for a mood.
func (c *Client) Suggest(ctx context.Context, s mood.State, contextText string, limit int) ([]Suggestion, error) {
	if limit <= 0 {
		limit = 5
	}

	user := fmt.Sprintf(
		"mood: energy=%.2f valence=%.2f euphoria=%.2f cognition=%.2f; suggest %d songs",
		s.Energy, s.Valence, s.Euphoria, s.Cognition, limit,
	)
	if strings.TrimSpace(contextText) != "" {
		user += "; context: " + strings.TrimSpace(contextText)
	}

	payload := chatRequest{
		Model:  c.model,
		Stream: false,
		Format: "json",
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: user},
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, eris.Wrap(err, "marshal chat request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "build chat request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "chat request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, eris.Errorf("chat returned status %d", resp.StatusCode)
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, eris.Wrap(err, "decode chat response")
	}
	if parsed.Error != "" {
		return nil, eris.Errorf("chat error: %s", parsed.Error)
	}

	var wire suggestionsWire
	if err := json.Unmarshal([]byte(parsed.Message.Content), &wire); err != nil {
		return nil, eris.Wrap(err, "decode suggestions")
	}
	if len(wire.Suggestions) == 0 {
		return nil, ErrNoSuggestions
	}
	if len(wire.Suggestions) > limit {
		wire.Suggestions = wire.Suggestions[:limit]
	}

	c.logger.Debug("playlist suggestions generated",
		slog.Int("count", len(wire.Suggestions)))
	return wire.Suggestions, nil
}
