package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"time"
)

// ProjectFile is the per-project override file name.
const ProjectFile = ".memexrc"

// Config holds all configurable memex settings.
type Config struct {
	AgentCommand        string   `json:"agent_command,omitempty"`
	AgentArgs           []string `json:"agent_args,omitempty"`
	Provider            string   `json:"provider,omitempty"` // "anthropic" | "openai"
	Model               string   `json:"model,omitempty"`
	BaseURL             string   `json:"base_url,omitempty"`
	TimeoutSeconds      int      `json:"timeout_seconds,omitempty"`
	ContextTier         int      `json:"context_tier,omitempty"`
	ContextTokenLimit   int      `json:"context_token_limit,omitempty"`
	AutoInject          *bool    `json:"auto_inject,omitempty"`
	InjectDelayMS       int      `json:"inject_delay_ms,omitempty"`
	MinTranscriptChars  int      `json:"min_transcript_chars,omitempty"`
	TranscriptTailChars int      `json:"transcript_tail_chars,omitempty"`
	WebhookURL          string   `json:"webhook_url,omitempty"`
	ArchiveLogs         *bool    `json:"archive_logs,omitempty"`
	LogLevel            string   `json:"log_level,omitempty"`
}

// Defaults returns sensible default configuration values.
func Defaults() Config {
	return Config{
		AgentCommand:        "claude",
		AgentArgs:           []string{},
		Provider:            "anthropic",
		TimeoutSeconds:      60,
		ContextTier:         2,
		AutoInject:          boolPtr(true),
		InjectDelayMS:       1500,
		MinTranscriptChars:  50,
		TranscriptTailChars: 24000,
		ArchiveLogs:         boolPtr(true),
		LogLevel:            "info",
	}
}

// GlobalPath returns ~/.config/memex/config.json, honoring XDG_CONFIG_HOME.
func GlobalPath() (string, error) {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "memex", "config.json"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "memex", "config.json"), nil
}

// LoadGlobal reads the global config file.
// Returns defaults if the file is absent.
func LoadGlobal() (*Config, error) {
	path, err := GlobalPath()
	if err != nil {
		return nil, err
	}
	return loadFile(path, true)
}

// LoadProject reads .memexrc in dir.
// Returns nil (no error) if the file is absent.
func LoadProject(dir string) (*Config, error) {
	return loadFile(filepath.Join(dir, ProjectFile), false)
}

// Load reads both files and merges them for dir.
func Load(dir string) (Config, error) {
	global, err := LoadGlobal()
	if err != nil {
		return Defaults(), err
	}
	project, err := LoadProject(dir)
	if err != nil {
		return Defaults(), err
	}
	return Merge(global, project), nil
}

// loadFile reads and parses a JSON config file at path.
// If returnDefaults is true, returns defaults when the file is absent.
// If returnDefaults is false, returns nil when the file is absent.
func loadFile(path string, returnDefaults bool) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			if returnDefaults {
				d := Defaults()
				return &d, nil
			}
			return nil, nil
		}
		return nil, err
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}
	return &cfg, nil
}

// Merge combines global and project configs, with project taking precedence.
// Missing keys fall back to global, then defaults.
func Merge(global, project *Config) Config {
	result := Defaults()
	overlay(&result, global)
	overlay(&result, project)
	return result
}

// overlay copies every set field of src onto dst.
func overlay(dst, src *Config) {
	if src == nil {
		return
	}
	setString(&dst.AgentCommand, src.AgentCommand)
	if len(src.AgentArgs) > 0 {
		dst.AgentArgs = src.AgentArgs
	}
	setString(&dst.Provider, src.Provider)
	setString(&dst.Model, src.Model)
	setString(&dst.BaseURL, src.BaseURL)
	setInt(&dst.TimeoutSeconds, src.TimeoutSeconds)
	setInt(&dst.ContextTier, src.ContextTier)
	setInt(&dst.ContextTokenLimit, src.ContextTokenLimit)
	if src.AutoInject != nil {
		dst.AutoInject = boolPtr(*src.AutoInject)
	}
	setInt(&dst.InjectDelayMS, src.InjectDelayMS)
	setInt(&dst.MinTranscriptChars, src.MinTranscriptChars)
	setInt(&dst.TranscriptTailChars, src.TranscriptTailChars)
	setString(&dst.WebhookURL, src.WebhookURL)
	if src.ArchiveLogs != nil {
		dst.ArchiveLogs = boolPtr(*src.ArchiveLogs)
	}
	setString(&dst.LogLevel, src.LogLevel)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v > 0 {
		*dst = v
	}
}

func boolPtr(b bool) *bool { return &b }

// InjectEnabled reports whether resume context is typed into new sessions.
func (c Config) InjectEnabled() bool { return c.AutoInject == nil || *c.AutoInject }

// ArchiveEnabled reports whether raw logs are compressed after finalize.
func (c Config) ArchiveEnabled() bool { return c.ArchiveLogs == nil || *c.ArchiveLogs }

// InjectDelay returns InjectDelayMS as a duration.
func (c Config) InjectDelay() time.Duration {
	return time.Duration(c.InjectDelayMS) * time.Millisecond
}

// Timeout returns the summarizer timeout.
func (c Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// APIKey returns the summarizer credential from the environment. Keys are
// never read from config files.
func (c Config) APIKey() string {
	if k := os.Getenv("MEMEX_API_KEY"); k != "" {
		return k
	}
	if c.Provider == "openai" {
		return os.Getenv("OPENAI_API_KEY")
	}
	return os.Getenv("ANTHROPIC_API_KEY")
}

// ParseError is returned when a config file exists but cannot be parsed.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return "failed to parse config file " + e.Path + ": " + e.Err.Error()
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
