package llm_client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/ollama/ollama/api"
)

type ollamaProvider struct {
	client   *api.Client
	model    string
	endpoint string
}

const (
	ollamaDefault     = "llama3:latest"
	ollamaDefaultHost = "http://127.0.0.1:11434"
)

const emptyLocalResponse = "Local model returned no response."

func (p *ollamaProvider) Init(cfg Config) error {
	host := strings.TrimSpace(cfg.OllamaHost)
	if host == "" {
		// OLLAMA_HOST, falling back to the local default
		c, err := api.ClientFromEnvironment()
		if err != nil {
			return fmt.Errorf("ollama client init: %w", err)
		}
		p.client = c
		p.endpoint = os.Getenv("OLLAMA_HOST")
		if p.endpoint == "" {
			p.endpoint = ollamaDefaultHost
		}
	} else {
		u, err := url.Parse(host)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("ollama: bad host %q", host)
		}
		p.client = api.NewClient(u, nil)
		p.endpoint = host
	}
	if strings.TrimSpace(cfg.Model) != "" {
		p.model = cfg.Model
	} else {
		p.model = ollamaDefault
	}
	return nil
}

func (p *ollamaProvider) Name() string { return "Ollama" }

func (p *ollamaProvider) DefaultModel() string { return ollamaDefault }

func (p *ollamaProvider) AllowedModelOrDefault(model string) string {
	m := strings.TrimSpace(model)
	if m == "" {
		return p.model
	}
	return m
}

func (p *ollamaProvider) generate(ctx context.Context, req *api.GenerateRequest) (string, error) {
	stream := false
	req.Stream = &stream
	req.Options = map[string]any{"temperature": 0.2}

	var out strings.Builder
	if err := p.client.Generate(ctx, req, func(gr api.GenerateResponse) error {
		out.WriteString(gr.Response)
		return nil
	}); err != nil {
		return "", classifyOllama(err, p.endpoint)
	}
	return out.String(), nil
}

func (p *ollamaProvider) Generate(ctx context.Context, prompt, model string) (string, error) {
	if p.client == nil {
		return "", ErrNotInitialized
	}
	raw, err := p.generate(ctx, &api.GenerateRequest{
		Model:  p.AllowedModelOrDefault(model),
		Prompt: prompt,
	})
	if err != nil {
		return "", err
	}
	return UnwrapLocalResponse(raw), nil
}

func (p *ollamaProvider) GenerateJSON(ctx context.Context, prompt, model string, schema any) (string, error) {
	if p.client == nil {
		return "", ErrNotInitialized
	}
	// Force JSON output. If schema supplied, pass it; else "json".
	var fmtRaw json.RawMessage
	if schema != nil {
		b, err := json.Marshal(schema)
		if err != nil {
			return "", fmt.Errorf("ollama marshal schema: %w", err)
		}
		fmtRaw = b
	} else {
		fmtRaw = json.RawMessage(`"json"`)
	}

	return p.generate(ctx, &api.GenerateRequest{
		Model:  p.AllowedModelOrDefault(model),
		Prompt: prompt + "\n\nReturn ONLY strict JSON. No extra text.",
		Format: fmtRaw,
	})
}

func (p *ollamaProvider) AnalyzeImage(ctx context.Context, prompt string, image []byte, _ string, model string) (string, error) {
	if p.client == nil {
		return "", ErrNotInitialized
	}
	raw, err := p.generate(ctx, &api.GenerateRequest{
		Model:  p.AllowedModelOrDefault(model),
		Prompt: prompt,
		Images: []api.ImageData{image},
	})
	if err != nil {
		return "", err
	}
	return UnwrapLocalResponse(raw), nil
}

// UnwrapLocalResponse cleans up local model output. A JSON object with a
// single key is replaced by that key's value; other JSON objects are
// re-indented; anything else is returned as-is.
func UnwrapLocalResponse(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return emptyLocalResponse
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal([]byte(trimmed), &obj); err != nil || obj == nil {
		return raw
	}
	if len(obj) == 1 {
		for _, v := range obj {
			var s string
			if err := json.Unmarshal(v, &s); err == nil {
				return s
			}
			return indent(v)
		}
	}
	return indent(json.RawMessage(trimmed))
}

func indent(raw json.RawMessage) string {
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return string(raw)
	}
	return buf.String()
}
