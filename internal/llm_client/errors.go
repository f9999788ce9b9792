package llm_client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/ollama/ollama/api"
	"google.golang.org/genai"
)

var (
	ErrNotInitialized      = errors.New("llm client not initialized")
	ErrQuotaExceeded       = errors.New("API quota exceeded. Please check your plan and billing details, or try again later")
	ErrProviderUnavailable = errors.New("provider unavailable")
)

// ProviderError is a provider rejection carrying the HTTP status.
type ProviderError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *ProviderError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s API error: status %d", e.Provider, e.StatusCode)
	}
	return fmt.Sprintf("%s API error (status %d): %s", e.Provider, e.StatusCode, e.Message)
}

// classifyGemini maps a genai error to the package error kinds.
func classifyGemini(err error, during string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.Code == 429 || strings.Contains(apiErr.Status, "RESOURCE_EXHAUSTED") {
			return fmt.Errorf("gemini %s: %w", during, ErrQuotaExceeded)
		}
		return fmt.Errorf("gemini %s: %w", during, &ProviderError{Provider: "Gemini", StatusCode: apiErr.Code, Message: apiErr.Message})
	}

	msg := err.Error()
	if strings.Contains(msg, "429") || strings.Contains(msg, "RESOURCE_EXHAUSTED") {
		return fmt.Errorf("gemini %s: %w", during, ErrQuotaExceeded)
	}
	if isTransport(err) {
		return fmt.Errorf("gemini %s: %w: %v", during, ErrProviderUnavailable, err)
	}
	return fmt.Errorf("gemini %s: %w", during, err)
}

// classifyOllama maps an ollama client error to the package error kinds.
func classifyOllama(err error, endpoint string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var statusErr api.StatusError
	if errors.As(err, &statusErr) {
		if statusErr.StatusCode == 429 {
			return fmt.Errorf("ollama generate: %w", ErrQuotaExceeded)
		}
		return fmt.Errorf("ollama generate: %w", &ProviderError{Provider: "Ollama", StatusCode: statusErr.StatusCode, Message: statusErr.ErrorMessage})
	}
	if isTransport(err) {
		return fmt.Errorf("could not connect to the local LLM server at %s: %w", endpoint, ErrProviderUnavailable)
	}
	return fmt.Errorf("ollama generate: %w", err)
}

func isTransport(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}
