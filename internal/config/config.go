// Package config loads agentric settings from agentric.yaml, AGENTRIC_*
// environment variables and an optional .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"agentric/internal/mission"
	"agentric/internal/planner"
	"agentric/internal/provider"
	"agentric/internal/tools"
)

const (
	FileName  = "agentric.yaml"
	EnvPrefix = "AGENTRIC"

	SandboxLocal  = "local"
	SandboxDagger = "dagger"

	AuditSQLite = "sqlite"
	AuditMemory = "memory"
)

type Config struct {
	Roster   string        `mapstructure:"roster"`
	LogFile  string        `mapstructure:"log_file"`
	Cooldown time.Duration `mapstructure:"cooldown"`
	Audit    AuditConfig   `mapstructure:"audit"`
	Text     TextConfig    `mapstructure:"text"`
	Image    ImageConfig   `mapstructure:"image"`
	Tools    ToolsConfig   `mapstructure:"tools"`
	Server   ServerConfig  `mapstructure:"server"`
	Planner  planner.Rules `mapstructure:"planner"`
}

type AuditConfig struct {
	Backend string `mapstructure:"backend"`
	Path    string `mapstructure:"path"`
}

type TextConfig struct {
	Provider    string `mapstructure:"provider"`
	RemoteModel string `mapstructure:"remote_model"`
	Endpoint    string `mapstructure:"endpoint"`
	Model       string `mapstructure:"model"`
}

type ImageConfig struct {
	Provider    string `mapstructure:"provider"`
	RemoteModel string `mapstructure:"remote_model"`
	ModelPath   string `mapstructure:"model_path"`
	Script      string `mapstructure:"script"`
}

type ToolsConfig struct {
	Sandbox      string        `mapstructure:"sandbox"`
	SandboxImage string        `mapstructure:"sandbox_image"`
	Timeout      time.Duration `mapstructure:"timeout"`
	Python       string        `mapstructure:"python"`
	Root         string        `mapstructure:"root"`
	SystemAllow  []string      `mapstructure:"system_allow"`
	GitAllow     []string      `mapstructure:"git_allow"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

// Default returns the built-in configuration.
func Default() Config {
	opts := tools.DefaultOptions()
	return Config{
		LogFile:  "agentric.log",
		Cooldown: mission.DefaultCooldown,
		Audit:    AuditConfig{Backend: AuditSQLite, Path: "agentric_audit.db"},
		Text:     TextConfig{Provider: string(provider.KindRemote), Endpoint: "http://127.0.0.1:11434", Model: "llama3:latest"},
		Image:    ImageConfig{},
		Tools: ToolsConfig{
			Sandbox:      SandboxLocal,
			SandboxImage: "python:3.12-slim",
			Timeout:      opts.Timeout,
			Python:       opts.Python,
			Root:         opts.Root,
			SystemAllow:  opts.SystemAllow,
			GitAllow:     opts.GitAllow,
		},
		Server:  ServerConfig{Addr: "127.0.0.1:8787"},
		Planner: planner.DefaultRules(),
	}
}

func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("roster", d.Roster)
	v.SetDefault("log_file", d.LogFile)
	v.SetDefault("cooldown", d.Cooldown)
	v.SetDefault("audit.backend", d.Audit.Backend)
	v.SetDefault("audit.path", d.Audit.Path)
	v.SetDefault("text.provider", d.Text.Provider)
	v.SetDefault("text.remote_model", d.Text.RemoteModel)
	v.SetDefault("text.endpoint", d.Text.Endpoint)
	v.SetDefault("text.model", d.Text.Model)
	v.SetDefault("image.provider", d.Image.Provider)
	v.SetDefault("image.remote_model", d.Image.RemoteModel)
	v.SetDefault("image.model_path", d.Image.ModelPath)
	v.SetDefault("image.script", d.Image.Script)
	v.SetDefault("tools.sandbox", d.Tools.Sandbox)
	v.SetDefault("tools.sandbox_image", d.Tools.SandboxImage)
	v.SetDefault("tools.timeout", d.Tools.Timeout)
	v.SetDefault("tools.python", d.Tools.Python)
	v.SetDefault("tools.root", d.Tools.Root)
	v.SetDefault("tools.system_allow", d.Tools.SystemAllow)
	v.SetDefault("tools.git_allow", d.Tools.GitAllow)
	v.SetDefault("server.addr", d.Server.Addr)
}

// Load reads the config file at path. With an empty path it looks for
// agentric.yaml in the working directory and in ~/.agentric, and falls back
// to defaults when neither exists.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v, Default())
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
	} else {
		v.SetConfigName(strings.TrimSuffix(FileName, filepath.Ext(FileName)))
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".agentric"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("could not read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("could not decode config: %w", err)
	}
	if len(cfg.Planner.ComplexityKeywords) == 0 && len(cfg.Planner.Mappings) == 0 {
		cfg.Planner = planner.DefaultRules()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the enumerated settings.
func (c Config) Validate() error {
	switch c.Audit.Backend {
	case AuditSQLite, AuditMemory:
	default:
		return fmt.Errorf("audit.backend must be %q or %q, got %q", AuditSQLite, AuditMemory, c.Audit.Backend)
	}
	switch c.Tools.Sandbox {
	case SandboxLocal, SandboxDagger:
	default:
		return fmt.Errorf("tools.sandbox must be %q or %q, got %q", SandboxLocal, SandboxDagger, c.Tools.Sandbox)
	}
	switch provider.Kind(c.Text.Provider) {
	case provider.KindRemote, provider.KindLocal:
	default:
		return fmt.Errorf("text.provider must be %q or %q, got %q", provider.KindRemote, provider.KindLocal, c.Text.Provider)
	}
	switch provider.Kind(c.Image.Provider) {
	case provider.KindNone, provider.KindRemote, provider.KindLocal:
	default:
		return fmt.Errorf("image.provider must be empty, %q or %q, got %q", provider.KindRemote, provider.KindLocal, c.Image.Provider)
	}
	if c.Cooldown <= 0 || c.Tools.Timeout <= 0 {
		return errors.New("cooldown and tools.timeout must be positive")
	}
	return nil
}

// Providers builds the initial provider configuration.
func (c Config) Providers() provider.Config {
	var pc provider.Config
	if provider.Kind(c.Text.Provider) == provider.KindLocal {
		pc.Text = provider.LocalText(c.Text.Endpoint, c.Text.Model)
	} else {
		pc.Text = provider.RemoteText(c.Text.RemoteModel)
	}
	switch provider.Kind(c.Image.Provider) {
	case provider.KindRemote:
		pc.Image = provider.RemoteImage(c.Image.RemoteModel)
	case provider.KindLocal:
		pc.Image = provider.LocalImage(c.Image.ModelPath, c.Image.Script)
	}
	return pc
}

func (c Config) ToolOptions() tools.Options {
	return tools.Options{
		Python:      c.Tools.Python,
		Timeout:     c.Tools.Timeout,
		SystemAllow: c.Tools.SystemAllow,
		GitAllow:    c.Tools.GitAllow,
		Root:        c.Tools.Root,
	}
}

// LoadDotEnv loads KEY=VALUE pairs from path into the environment. A missing
// file is not an error.
func LoadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("could not load %s: %w", path, err)
	}
	return nil
}

// WriteDefault writes the default configuration to path. It refuses to
// overwrite an existing file.
func WriteDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists", path)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	data, err := yaml.Marshal(document(Default()))
	if err != nil {
		return fmt.Errorf("could not encode default config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// document lays c out with the same keys Load reads. Durations are written
// in their string form.
func document(c Config) map[string]any {
	return map[string]any{
		"roster":   c.Roster,
		"log_file": c.LogFile,
		"cooldown": c.Cooldown.String(),
		"audit": map[string]any{
			"backend": c.Audit.Backend,
			"path":    c.Audit.Path,
		},
		"text": map[string]any{
			"provider":     c.Text.Provider,
			"remote_model": c.Text.RemoteModel,
			"endpoint":     c.Text.Endpoint,
			"model":        c.Text.Model,
		},
		"image": map[string]any{
			"provider":     c.Image.Provider,
			"remote_model": c.Image.RemoteModel,
			"model_path":   c.Image.ModelPath,
			"script":       c.Image.Script,
		},
		"tools": map[string]any{
			"sandbox":       c.Tools.Sandbox,
			"sandbox_image": c.Tools.SandboxImage,
			"timeout":       c.Tools.Timeout.String(),
			"python":        c.Tools.Python,
			"root":          c.Tools.Root,
			"system_allow":  c.Tools.SystemAllow,
			"git_allow":     c.Tools.GitAllow,
		},
		"server": map[string]any{
			"addr": c.Server.Addr,
		},
		"planner": c.Planner,
	}
}
