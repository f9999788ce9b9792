// Package provider holds the operator-selected text and image backends.
// The configuration is read once per planning call and once per step.
package provider

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"agentric/internal/roster"
)

type Kind string

const (
	KindNone   Kind = ""
	KindRemote Kind = "remote"
	KindLocal  Kind = "local"
)

type Status string

const (
	StatusUnconfigured Status = "unconfigured"
	StatusConfiguring  Status = "configuring"
	StatusConfigured   Status = "configured"
	StatusError        Status = "error"
)

// Text selects the backend for model agents and model planning.
// Endpoint and Model apply to the local variant only.
type Text struct {
	Kind        Kind   `json:"kind"`
	RemoteModel string `json:"remoteModel,omitempty"`
	Endpoint    string `json:"endpoint,omitempty"`
	Model       string `json:"model,omitempty"`
	Status      Status `json:"status"`
	Error       string `json:"error,omitempty"`
}

func (t Text) IsLocal() bool { return t.Kind == KindLocal }

// Image selects the backend for image-generation agents.
type Image struct {
	Kind        Kind   `json:"kind"`
	RemoteModel string `json:"remoteModel,omitempty"`
	ModelPath   string `json:"modelPath,omitempty"`
	Script      string `json:"script,omitempty"`
	Status      Status `json:"status"`
	Error       string `json:"error,omitempty"`
}

// Configured reports whether image generation can run at all.
func (i Image) Configured() bool {
	switch i.Kind {
	case KindRemote:
		return true
	case KindLocal:
		return i.ModelPath != "" && i.Status == StatusConfigured
	}
	return false
}

type Config struct {
	Text  Text  `json:"text"`
	Image Image `json:"image"`
}

var ErrInvalidConfig = errors.New("invalid provider configuration")

func RemoteText(model string) Text {
	return Text{Kind: KindRemote, RemoteModel: model, Status: StatusConfigured}
}

func LocalText(endpoint, model string) Text {
	return Text{Kind: KindLocal, Endpoint: endpoint, Model: model, Status: StatusConfigured}
}

func RemoteImage(model string) Image {
	return Image{Kind: KindRemote, RemoteModel: model, Status: StatusConfigured}
}

func LocalImage(modelPath, script string) Image {
	return Image{Kind: KindLocal, ModelPath: modelPath, Script: script, Status: StatusConfigured}
}

func validateText(t Text) error {
	switch t.Kind {
	case KindRemote:
		return nil
	case KindLocal:
		if strings.TrimSpace(t.Endpoint) == "" {
			return fmt.Errorf("%w: local text provider needs an endpoint", ErrInvalidConfig)
		}
		return nil
	}
	return fmt.Errorf("%w: unknown text provider %q", ErrInvalidConfig, t.Kind)
}

func validateImage(i Image) error {
	switch i.Kind {
	case KindNone, KindRemote:
		return nil
	case KindLocal:
		if strings.TrimSpace(i.ModelPath) == "" {
			return fmt.Errorf("%w: local image provider needs a model path", ErrInvalidConfig)
		}
		return nil
	}
	return fmt.Errorf("%w: unknown image provider %q", ErrInvalidConfig, i.Kind)
}

// Switch is the live provider configuration.
type Switch struct {
	mu  sync.RWMutex
	cfg Config
}

func NewSwitch(initial Config) *Switch {
	if initial.Text.Kind == KindNone {
		initial.Text = RemoteText("")
	}
	if initial.Image.Kind == KindNone {
		initial.Image.Status = StatusUnconfigured
	}
	return &Switch{cfg: initial}
}

// Snapshot returns the configuration as of now.
func (s *Switch) Snapshot() Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// SetText replaces the text provider. An invalid value leaves the previous
// provider in place and records the error on it.
func (s *Switch) SetText(t Text) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := validateText(t); err != nil {
		s.cfg.Text.Status = StatusError
		s.cfg.Text.Error = err.Error()
		return err
	}
	t.Status = StatusConfigured
	t.Error = ""
	s.cfg.Text = t
	return nil
}

func (s *Switch) SetImage(i Image) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := validateImage(i); err != nil {
		s.cfg.Image.Status = StatusError
		s.cfg.Image.Error = err.Error()
		return err
	}
	i.Error = ""
	if i.Kind == KindNone {
		i.Status = StatusUnconfigured
	} else {
		i.Status = StatusConfigured
	}
	s.cfg.Image = i
	return nil
}

// MarkImage records a load outcome for the local image model.
func (s *Switch) MarkImage(status Status, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg.Image.Status = status
	s.cfg.Image.Error = ""
	if err != nil {
		s.cfg.Image.Error = err.Error()
	}
}

// Selectable reports whether an agent can be put on the team under the
// current configuration.
func (s *Switch) Selectable(a roster.Agent) bool {
	cfg := s.Snapshot()
	return selectable(cfg, a)
}

func selectable(cfg Config, a roster.Agent) bool {
	if a.Tool == roster.ToolImageGeneration {
		return cfg.Image.Configured()
	}
	if a.Tool == roster.ToolNone && a.Logic == roster.LogicRemote && cfg.Text.IsLocal() {
		return false
	}
	return true
}

// Selectable is the same check against a fixed snapshot.
func (c Config) Selectable(a roster.Agent) bool {
	return selectable(c, a)
}
