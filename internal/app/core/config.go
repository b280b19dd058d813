package core

import (
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DefaultAPIURL    = "https://www.googleapis.com/customsearch/v1"
	DefaultCX        = "759aed2f7b4be4b83"
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/125.0.0.0 Safari/537.36"
	BraveAPIURL      = "https://api.search.brave.com/res/v1/web/search"
	GoogleHTMLURL    = "https://www.google.com/search"

	DefaultOutputDir = "akamaru_output"
	DefaultDelay     = 0.25
	DefaultMaxLinks  = 6

	EnvGoogleKeys = "AKAMARU_GOOGLE_API_KEYS"
	EnvBraveKeys  = "AKAMARU_BRAVE_API_KEYS"
)

// Config is the runtime configuration shared by every package of a single run.
type Config struct {
	// Query selection
	Sector      string
	Groups      []string
	TTPs        bool
	Activity    bool
	ListSectors bool

	// Output
	OutputCSV bool
	OutputDir string
	Verbose   bool
	NoColors  bool

	// Transport
	Delay     float64
	Timeout   time.Duration
	Proxy     string
	Insecure  bool
	Render    bool
	UserAgent string
	Client    *http.Client

	// Web search
	Engine        string
	MaxLinks      int
	GoogleCX      string
	GoogleAPIKeys []string
	BraveAPIKeys  []string

	// Correlation
	Substitutions map[string]string
	ExtraSectors  map[string][]string
}

// FileConfig mirrors config.yaml.
type FileConfig struct {
	Delay       float64             `yaml:"delay"`
	Timeout     int                 `yaml:"timeout"`
	Verbose     bool                `yaml:"verbose"`
	Insecure    bool                `yaml:"insecure"`
	Proxy       string              `yaml:"proxy"`
	Render      bool                `yaml:"render"`
	OutputDir   string              `yaml:"output-dir"`
	UserAgent   string              `yaml:"user-agent"`
	Search      SearchFileConfig    `yaml:"search"`
	Correlation CorrelationConfig   `yaml:"correlation"`
	Sectors     map[string][]string `yaml:"sectors,omitempty"`
}

type SearchFileConfig struct {
	Engine   string `yaml:"engine"`
	MaxLinks int    `yaml:"max-links"`
	GoogleCX string `yaml:"google-cx"`
}

type CorrelationConfig struct {
	// Substitutions maps a character sequence to its replacement before names are compared.
	Substitutions map[string]string `yaml:"substitutions"`
}

// DefaultFileConfig returns built-in defaults.
func DefaultFileConfig() *FileConfig {
	return &FileConfig{
		Delay:     DefaultDelay,
		Timeout:   30,
		OutputDir: DefaultOutputDir,
		UserAgent: DefaultUserAgent,
		Search: SearchFileConfig{
			Engine:   "auto",
			MaxLinks: DefaultMaxLinks,
			GoogleCX: DefaultCX,
		},
		Correlation: CorrelationConfig{
			Substitutions: map[string]string{"0": "o"},
		},
	}
}

// ConfigDir is where akamaru keeps its configuration.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "akamaru"), nil
}

// LoadConfigFile reads ~/.config/akamaru/config.yaml, writing the defaults
// there first when the file does not exist yet. Any failure falls back to
// the in-memory defaults.
func LoadConfigFile() (*FileConfig, error) {
	dir, err := ConfigDir()
	if err != nil {
		return DefaultFileConfig(), nil
	}
	path := filepath.Join(dir, "config.yaml")
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		if err := WriteDefaultConfig(path); err != nil {
			return DefaultFileConfig(), nil
		}
	}
	return ReadConfigFile(path)
}

// ReadConfigFile parses a YAML config; absent keys keep their default values.
func ReadConfigFile(path string) (*FileConfig, error) {
	cfg := DefaultFileConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return DefaultFileConfig(), fmt.Errorf("parse config %s: %w", path, err)
	}
	if cfg.Search.MaxLinks <= 0 {
		cfg.Search.MaxLinks = DefaultMaxLinks
	}
	if cfg.Delay < 0 {
		cfg.Delay = 0
	}
	if cfg.OutputDir == "" {
		cfg.OutputDir = DefaultOutputDir
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	return cfg, nil
}

// WriteDefaultConfig writes the default YAML config to path.
func WriteDefaultConfig(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(DefaultFileConfig())
	if err != nil {
		return err
	}
	header := "# akamaru configuration\n# API keys are read from the environment (" + EnvGoogleKeys + ", " + EnvBraveKeys + ") or a .env file.\n"
	return os.WriteFile(path, append([]byte(header), data...), 0o644)
}

// ToConfig converts file values into a runtime Config. Flags are applied on top by the runner.
func (f *FileConfig) ToConfig() *Config {
	return &Config{
		OutputDir:     f.OutputDir,
		Verbose:       f.Verbose,
		Delay:         f.Delay,
		Timeout:       time.Duration(f.Timeout) * time.Second,
		Proxy:         f.Proxy,
		Insecure:      f.Insecure,
		Render:        f.Render,
		UserAgent:     f.UserAgent,
		Engine:        f.Search.Engine,
		MaxLinks:      f.Search.MaxLinks,
		GoogleCX:      f.Search.GoogleCX,
		Substitutions: f.Correlation.Substitutions,
		ExtraSectors:  f.Sectors,
	}
}

// LoadAPIKeys fills search API keys from the environment, loading a .env
// file from the working directory or the config dir when present.
func (c *Config) LoadAPIKeys() {
	_ = godotenv.Load()
	if dir, err := ConfigDir(); err == nil {
		_ = godotenv.Load(filepath.Join(dir, ".env"))
	}
	c.GoogleAPIKeys = splitKeys(os.Getenv(EnvGoogleKeys))
	c.BraveAPIKeys = splitKeys(os.Getenv(EnvBraveKeys))
}

func splitKeys(raw string) []string {
	var out []string
	for _, k := range strings.Split(raw, ",") {
		if k = strings.TrimSpace(k); k != "" {
			out = append(out, k)
		}
	}
	return out
}
