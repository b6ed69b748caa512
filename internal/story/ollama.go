package story

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Ollama defaults.
const (
	DefaultOllamaAPI   = "http://127.0.0.1:11434"
	DefaultOllamaModel = "llama3.1:8b"

	ollamaTimeout = 180 * time.Second
	probeTimeout  = 2 * time.Second
)

// storytellerPrompt frames every generation request.
const storytellerPrompt = "You are a children's storyteller. Write a short story split into SCENES. " +
	"Return strict JSON with keys: title (string), scenes (array of objects with 'text' and 'prompt'). " +
	"Age-appropriate (3-8), friendly tone, simple words, each scene 1-3 sentences, and a gentle arc."

// fallbackScenePrompt is used when the model omits an art prompt.
const fallbackScenePrompt = "friendly illustration of the scene"

// Ollama generates storyboards through a local Ollama server.
type Ollama struct {
	api    string
	model  string
	client *http.Client
}

// NewOllama returns a client for the given server and model, falling back to
// the standard local defaults when either is empty.
func NewOllama(api, model string) *Ollama {
	if api == "" {
		api = DefaultOllamaAPI
	}
	if model == "" {
		model = DefaultOllamaModel
	}
	return &Ollama{
		api:    strings.TrimRight(api, "/"),
		model:  model,
		client: &http.Client{Timeout: ollamaTimeout},
	}
}

// Model returns the configured model name.
func (o *Ollama) Model() string { return o.model }

// API returns the configured server address.
func (o *Ollama) API() string { return o.api }

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type generateResponse struct {
	Response string `json:"response"`
}

type llmStory struct {
	Title  string `json:"title"`
	Scenes []struct {
		Text   string `json:"text"`
		Prompt string `json:"prompt"`
	} `json:"scenes"`
}

// Generate asks the model for a storyboard. The model is instructed to
// return strict JSON; anything unparseable is an error so callers can decide
// whether to degrade.
func (o *Ollama) Generate(ctx context.Context, p Params) (*Board, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	prompt := fmt.Sprintf("%s\nTitle: %s\nAge: %d\nTheme: %s\nMoral: %s\nScenes: %d\nDuration minutes: %d\nReturn only JSON.",
		storytellerPrompt, p.Title, p.Age, p.Theme, p.Moral, p.Scenes, p.Minutes)

	body, err := json.Marshal(generateRequest{Model: o.model, Prompt: prompt, Stream: false})
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.api+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ollama request failed: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("ollama returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var gen generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&gen); err != nil {
		return nil, fmt.Errorf("decoding ollama response: %w", err)
	}

	parsed, err := parseStoryJSON(gen.Response)
	if err != nil {
		return nil, err
	}

	dur := sceneSeconds(p.Minutes, p.Scenes)
	scenes := make([]Scene, 0, len(parsed.Scenes))
	for i, s := range parsed.Scenes {
		if i >= p.Scenes {
			break
		}
		prompt := s.Prompt
		if prompt == "" {
			prompt = fallbackScenePrompt
		}
		scenes = append(scenes, Scene{
			Beat:     fmt.Sprintf("Scene %d", i+1),
			Text:     s.Text,
			Prompt:   prompt,
			Duration: dur,
		})
	}
	if len(scenes) == 0 {
		return nil, errors.New("ollama produced no scenes")
	}

	title := parsed.Title
	if title == "" {
		title = p.Title
	}
	return &Board{
		Title:     title,
		Params:    p,
		Engine:    EngineOllama,
		Scenes:    scenes,
		CreatedAt: time.Now(),
	}, nil
}

// parseStoryJSON extracts the storyboard from model output. Models often
// wrap the JSON in prose or code fences, so a brace-bounded retry follows
// the strict parse.
func parseStoryJSON(text string) (*llmStory, error) {
	var s llmStory
	if err := json.Unmarshal([]byte(text), &s); err == nil {
		return &s, nil
	}

	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON object in model output (%d bytes)", len(text))
	}
	if err := json.Unmarshal([]byte(text[start:end+1]), &s); err != nil {
		return nil, fmt.Errorf("model output is not valid story JSON: %w", err)
	}
	return &s, nil
}

// Available probes the server's tag listing with a short timeout.
func (o *Ollama) Available(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.api+"/api/tags", nil)
	if err != nil {
		return false
	}
	resp, err := o.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close() //nolint:errcheck
	return resp.StatusCode == http.StatusOK
}
