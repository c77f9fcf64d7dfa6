// Package llm contains the language-model clients: a local Ollama client
// serving the relay path and an OpenAI-backed reasoner for history analysis.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/averbier/go-topic-bot/internal/config"
)

// Ollama talks to a local Ollama server over its HTTP API.
type Ollama struct {
	baseURL string
	model   string
	client  *http.Client
}

// NewOllama builds a client from configuration.
func NewOllama(cfg config.OllamaConfig) *Ollama {
	return &Ollama{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		model:   cfg.Model,
		client:  &http.Client{Timeout: cfg.Timeout},
	}
}

// Model returns the configured model name.
func (o *Ollama) Model() string { return o.model }

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type generateResponse struct {
	Response string `json:"response"`
}

// Generate sends prompt to the model and returns the full completion.
// Streaming is disabled so the server answers with a single JSON object.
func (o *Ollama) Generate(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(generateRequest{
		Model:  o.model,
		Prompt: prompt,
		Stream: false,
	})
	if err != nil {
		return "", fmt.Errorf("encode generate request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build generate request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("ollama generate: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("ollama generate: status %d: %s", resp.StatusCode, bytes.TrimSpace(snippet))
	}

	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode generate response: %w", err)
	}
	return out.Response, nil
}

type tagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// EnsureModel checks the server's model list and, when the configured model
// is missing, kicks off a pull in the background. The pull is fire and
// forget: startup proceeds and the first generations may fail until the
// download completes.
func (o *Ollama) EnsureModel(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.baseURL+"/api/tags", nil)
	if err != nil {
		return fmt.Errorf("build tags request: %w", err)
	}

	resp, err := o.client.Do(req)
	if err != nil {
		return fmt.Errorf("ollama tags: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ollama tags: status %d", resp.StatusCode)
	}

	var tags tagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return fmt.Errorf("decode tags response: %w", err)
	}

	for _, m := range tags.Models {
		if m.Name == o.model || strings.TrimSuffix(m.Name, ":latest") == o.model {
			log.Debug().Str("model", o.model).Msg("ollama model present")
			return nil
		}
	}

	log.Info().Str("model", o.model).Msg("ollama model missing, pulling in background")
	go o.pull(o.model)
	return nil
}

func (o *Ollama) pull(model string) {
	body, err := json.Marshal(map[string]any{"name": model, "stream": false})
	if err != nil {
		log.Error().Err(err).Str("model", model).Msg("encode pull request")
		return
	}

	// Pulls can take far longer than the request timeout used for
	// generation, so use a dedicated client with generous bounds.
	client := &http.Client{Timeout: 30 * time.Minute}
	resp, err := client.Post(o.baseURL+"/api/pull", "application/json", bytes.NewReader(body))
	if err != nil {
		log.Error().Err(err).Str("model", model).Msg("ollama pull failed")
		return
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		log.Error().Int("status", resp.StatusCode).Str("model", model).Msg("ollama pull failed")
		return
	}
	log.Info().Str("model", model).Msg("ollama pull complete")
}
