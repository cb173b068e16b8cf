package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

// endpoint is a JSON-over-HTTP embedding API.
type endpoint struct {
	name   string
	url    string
	apiKey string
	client *http.Client
}

func newEndpoint(name, url, apiKey string) endpoint {
	return endpoint{name: name, url: url, apiKey: apiKey, client: &http.Client{Timeout: 30 * time.Second}}
}

// post sends in as JSON and decodes the response into out.
func (e endpoint) post(ctx context.Context, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if e.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.apiKey)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s request failed: %w", e.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%s error %d: %s", e.name, resp.StatusCode, bytes.TrimSpace(b))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s response: %w", e.name, err)
	}
	return nil
}

// ollamaDims lists the output size of common Ollama embedding models.
var ollamaDims = map[string]int{
	"nomic-embed-text":  768,
	"all-minilm":        384,
	"mxbai-embed-large": 1024,
}

// OllamaEmbedder calls a local Ollama server.
type OllamaEmbedder struct {
	endpoint
	model string
	dims  int
}

// NewOllamaEmbedder targets baseURL, then $OLLAMA_HOST, then localhost:11434.
// dims of 0 is looked up from the model name, falling back to 768.
func NewOllamaEmbedder(baseURL, model string, dims int) *OllamaEmbedder {
	if baseURL == "" {
		baseURL = os.Getenv("OLLAMA_HOST")
	}
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if model == "" {
		model = "nomic-embed-text"
	}
	if dims <= 0 {
		dims = ollamaDims[model]
	}
	if dims <= 0 {
		dims = 768
	}
	return &OllamaEmbedder{endpoint: newEndpoint("ollama", baseURL+"/api/embeddings", ""), model: model, dims: dims}
}

func (e *OllamaEmbedder) Embed(ctx context.Context, text string) (Vector, error) {
	var out struct {
		Embedding Vector `json:"embedding"`
	}
	err := e.post(ctx, map[string]string{"model": e.model, "prompt": text}, &out)
	if err != nil {
		return nil, err
	}
	if len(out.Embedding) == 0 {
		return nil, fmt.Errorf("ollama returned no embedding for model %s", e.model)
	}
	return out.Embedding, nil
}

func (e *OllamaEmbedder) Dims() int { return e.dims }

// OpenAIEmbedder calls any OpenAI-compatible /embeddings API.
type OpenAIEmbedder struct {
	endpoint
	model string
	dims  int
}

// NewOpenAIEmbedder defaults to api.openai.com and text-embedding-ada-002 (1536 dims).
func NewOpenAIEmbedder(baseURL, apiKey, model string, dims int) *OpenAIEmbedder {
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	if model == "" {
		model = "text-embedding-ada-002"
	}
	if dims <= 0 {
		dims = 1536
	}
	return &OpenAIEmbedder{endpoint: newEndpoint("openai", baseURL+"/embeddings", apiKey), model: model, dims: dims}
}

func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) (Vector, error) {
	var out struct {
		Data []struct {
			Embedding Vector `json:"embedding"`
		} `json:"data"`
	}
	if err := e.post(ctx, map[string]string{"input": text, "model": e.model}, &out); err != nil {
		return nil, err
	}
	if len(out.Data) == 0 {
		return nil, fmt.Errorf("openai returned no embedding for model %s", e.model)
	}
	return out.Data[0].Embedding, nil
}

func (e *OpenAIEmbedder) Dims() int { return e.dims }
