package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const (
	BackendRAG    = "rag"
	BackendOpenAI = "openai"

	DefaultBaseURL        = "http://localhost:8000/api"
	DefaultModel          = "gpt-4o-mini"
	DefaultPollInterval   = 2 * time.Second
	DefaultRequestTimeout = 10 * time.Second
	DefaultLogLevel       = "info"

	formatJSON = "json"
	formatTOML = "toml"
)

var (
	ErrUnknownBackend  = errors.New("unknown backend")
	ErrMissingBaseURL  = errors.New("base url is required for the rag backend")
	ErrBadPollInterval = errors.New("poll interval must be positive")
	ErrNoProfiles      = errors.New("no profiles defined")
)

type Profile struct {
	Backend          string `json:"backend,omitempty" toml:"backend,omitempty"`
	BaseURL          string `json:"base_url,omitempty" toml:"base_url,omitempty"`
	APIKey           string `json:"api_key,omitempty" toml:"api_key,omitempty"`
	Model            string `json:"model,omitempty" toml:"model,omitempty"`
	PollIntervalMs   int    `json:"poll_interval_ms,omitempty" toml:"poll_interval_ms,omitempty"`
	RequestTimeoutMs int    `json:"request_timeout_ms,omitempty" toml:"request_timeout_ms,omitempty"`
}

// DefaultProfile points at a RAG backend on localhost.
func DefaultProfile() Profile {
	return Profile{
		Backend:          BackendRAG,
		BaseURL:          DefaultBaseURL,
		Model:            DefaultModel,
		PollIntervalMs:   int(DefaultPollInterval / time.Millisecond),
		RequestTimeoutMs: int(DefaultRequestTimeout / time.Millisecond),
	}
}

func (p Profile) withDefaults() Profile {
	if p.Backend == "" {
		p.Backend = BackendRAG
	}
	if p.BaseURL == "" && p.Backend == BackendRAG {
		p.BaseURL = DefaultBaseURL
	}
	if p.Model == "" {
		p.Model = DefaultModel
	}
	if p.PollIntervalMs == 0 {
		p.PollIntervalMs = int(DefaultPollInterval / time.Millisecond)
	}
	if p.RequestTimeoutMs == 0 {
		p.RequestTimeoutMs = int(DefaultRequestTimeout / time.Millisecond)
	}
	return p
}

// Validate reports configuration errors. An incomplete profile (no API key
// for openai) is not an error; see Config.IsValid.
func (p Profile) Validate() error {
	switch p.Backend {
	case BackendRAG:
		if p.BaseURL == "" {
			return ErrMissingBaseURL
		}
	case BackendOpenAI:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownBackend, p.Backend)
	}
	if p.PollIntervalMs <= 0 {
		return ErrBadPollInterval
	}
	if p.RequestTimeoutMs <= 0 {
		return fmt.Errorf("request timeout must be positive, got %dms", p.RequestTimeoutMs)
	}
	return nil
}

// Overrides are read from the environment (and .env) and win over the file.
type Overrides struct {
	Home         string        `env:"RAGCHAT_HOME"`
	Profile      string        `env:"RAGCHAT_PROFILE"`
	BaseURL      string        `env:"RAGCHAT_BASE_URL"`
	APIKey       string        `env:"RAGCHAT_API_KEY"`
	Model        string        `env:"RAGCHAT_MODEL"`
	PollInterval time.Duration `env:"RAGCHAT_POLL_INTERVAL"`
	LogLevel     string        `env:"RAGCHAT_LOG_LEVEL"`
	LogFile      string        `env:"RAGCHAT_LOG_FILE"`
}

type Config struct {
	Profiles      map[string]Profile `json:"profiles" toml:"profiles"`
	ActiveProfile string             `json:"active_profile" toml:"active_profile"`
	LogLevel      string             `json:"log_level,omitempty" toml:"log_level,omitempty"`

	overrides   Overrides
	path        string
	format      string
	currentName string
	current     *Profile
}

func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	var overrides Overrides
	if err := env.Parse(&overrides); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	dir, err := configDir(overrides.Home)
	if err != nil {
		return nil, fmt.Errorf("failed to get config path: %w", err)
	}

	// Ensure config directory exists
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	path, format := configFile(dir)
	config, err := loadConfigFile(path, format)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	config.overrides = overrides
	config.path = path
	config.format = format

	if err := config.setCurrentProfile(); err != nil {
		return nil, fmt.Errorf("failed to set current profile: %w", err)
	}
	if err := config.current.Validate(); err != nil {
		return nil, fmt.Errorf("profile %q: %w", config.currentName, err)
	}

	return config, nil
}

// IsValid reports whether the current profile can reach a backend.
func (c *Config) IsValid() bool {
	if c.current == nil || c.current.Validate() != nil {
		return false
	}
	if c.current.Backend == BackendOpenAI {
		return c.current.APIKey != ""
	}
	return true
}

// Current returns the active profile with defaults and env overrides applied.
func (c *Config) Current() Profile {
	if c.current == nil {
		return DefaultProfile()
	}
	return *c.current
}

// CurrentName is the active profile name, which RAGCHAT_PROFILE may override
// without touching the saved active_profile.
func (c *Config) CurrentName() string {
	return c.currentName
}

func (c *Config) GetBackend() string {
	return c.Current().Backend
}

func (c *Config) GetAPIKey() string {
	return c.Current().APIKey
}

func (c *Config) GetModel() string {
	return c.Current().Model
}

func (c *Config) GetBaseURL() string {
	return c.Current().BaseURL
}

func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Current().PollIntervalMs) * time.Millisecond
}

func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.Current().RequestTimeoutMs) * time.Millisecond
}

func (c *Config) GetLogLevel() string {
	if c.overrides.LogLevel != "" {
		return c.overrides.LogLevel
	}
	if c.LogLevel != "" {
		return c.LogLevel
	}
	return DefaultLogLevel
}

func (c *Config) LogFile() string {
	if c.overrides.LogFile != "" {
		return c.overrides.LogFile
	}
	return filepath.Join(filepath.Dir(c.path), "ragchat.log")
}

// Path is the file the config was loaded from and will be saved to.
func (c *Config) Path() string {
	return c.path
}

// Save writes the file back in the format it was loaded from. Environment
// overrides are never persisted.
func (c *Config) Save() error {
	if c.path == "" {
		dir, err := configDir(c.overrides.Home)
		if err != nil {
			return fmt.Errorf("failed to get config path: %w", err)
		}
		c.path, c.format = configFile(dir)
	}
	return saveConfig(c, c.path, c.format)
}

func configDir(home string) (string, error) {
	if home == "" {
		var err error
		home, err = os.UserHomeDir()
		if err != nil {
			return "", err
		}
	}
	return filepath.Join(home, ".ragchat"), nil
}

// configFile prefers config.toml when present.
func configFile(dir string) (string, string) {
	tomlPath := filepath.Join(dir, "config.toml")
	if _, err := os.Stat(tomlPath); err == nil {
		return tomlPath, formatTOML
	}
	return filepath.Join(dir, "config.json"), formatJSON
}

func loadConfigFile(path, format string) (*Config, error) {
	// If config file doesn't exist, create default
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefaultConfig(path, format)
	}

	var config Config
	switch format {
	case formatTOML:
		if _, err := toml.DecodeFile(path, &config); err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
	default:
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
	}

	return &config, nil
}

func createDefaultConfig(path, format string) (*Config, error) {
	config := &Config{
		Profiles: map[string]Profile{
			"default": DefaultProfile(),
		},
		ActiveProfile: "default",
	}

	if err := saveConfig(config, path, format); err != nil {
		return nil, err
	}

	return config, nil
}

func saveConfig(config *Config, path, format string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	if format == formatTOML {
		file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
		if err != nil {
			return err
		}
		defer file.Close()
		return toml.NewEncoder(file).Encode(config)
	}

	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}

func (c *Config) setCurrentProfile() error {
	if len(c.Profiles) == 0 {
		return ErrNoProfiles
	}

	name := c.ActiveProfile
	if c.overrides.Profile != "" {
		name = c.overrides.Profile
		if _, ok := c.Profiles[name]; !ok {
			return fmt.Errorf("RAGCHAT_PROFILE names unknown profile %q", name)
		}
	}

	profile, exists := c.Profiles[name]
	if !exists {
		// If active profile doesn't exist, try to use the first available profile
		for n, p := range c.Profiles {
			name = n
			profile = p
			c.ActiveProfile = n
			break
		}
	}

	profile = profile.withDefaults()
	if c.overrides.BaseURL != "" {
		profile.BaseURL = c.overrides.BaseURL
	}
	if c.overrides.APIKey != "" {
		profile.APIKey = c.overrides.APIKey
	}
	if c.overrides.Model != "" {
		profile.Model = c.overrides.Model
	}
	if c.overrides.PollInterval != 0 {
		profile.PollIntervalMs = int(c.overrides.PollInterval / time.Millisecond)
	}

	c.currentName = name
	c.current = &profile
	return nil
}
