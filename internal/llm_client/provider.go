package llm_client

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

const (
	BackendGemini = "gemini"
	BackendOllama = "ollama"
)

type Config struct {
	Backend    string
	Model      string
	OllamaHost string
}

type Provider interface {
	Init(cfg Config) error
	Name() string
	DefaultModel() string
	AllowedModelOrDefault(model string) string
	Generate(ctx context.Context, prompt, model string) (string, error)
	GenerateJSON(ctx context.Context, prompt, model string, schema any) (string, error)
}

// ImageAnalyzer is implemented by providers that accept inline image input.
type ImageAnalyzer interface {
	AnalyzeImage(ctx context.Context, prompt string, image []byte, mimeType, model string) (string, error)
}

// ImageGenerator is implemented by providers that can produce images.
// The result is a data URI.
type ImageGenerator interface {
	GenerateImage(ctx context.Context, prompt, model string) (string, error)
}

// New builds and initializes the provider for cfg.Backend.
func New(cfg Config) (Provider, error) {
	backend := strings.ToLower(strings.TrimSpace(cfg.Backend))
	if backend == "" {
		backend = BackendGemini
	}
	var p Provider
	switch backend {
	case BackendOllama:
		p = &ollamaProvider{}
	case BackendGemini:
		p = &geminiProvider{}
	default:
		return nil, fmt.Errorf("unsupported LLM backend: %s", backend)
	}
	if err := p.Init(cfg); err != nil {
		return nil, err
	}
	return p, nil
}

// Pool caches one initialized provider per backend and host, so switching
// providers back and forth does not rebuild clients.
type Pool struct {
	mu        sync.Mutex
	providers map[string]Provider
	build     func(Config) (Provider, error)
}

func NewPool() *Pool {
	return &Pool{providers: make(map[string]Provider), build: New}
}

// NewPoolWith uses build instead of New. Used to inject fakes.
func NewPoolWith(build func(Config) (Provider, error)) *Pool {
	return &Pool{providers: make(map[string]Provider), build: build}
}

func (p *Pool) Get(cfg Config) (Provider, error) {
	key := strings.ToLower(cfg.Backend) + "|" + cfg.OllamaHost
	p.mu.Lock()
	defer p.mu.Unlock()
	if prov, ok := p.providers[key]; ok {
		return prov, nil
	}
	prov, err := p.build(cfg)
	if err != nil {
		return nil, err
	}
	p.providers[key] = prov
	return prov, nil
}
