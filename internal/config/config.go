package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/hpungsan/backseat/internal/profile"
)

// EnvPrefix is the prefix for environment overrides (BACKSEAT_LOG_LEVEL, ...).
const EnvPrefix = "BACKSEAT"

// Config holds application configuration.
type Config struct {
	// LogLevel is one of debug, info, warn, error
	LogLevel string `json:"log_level,omitempty"`

	// LogDevelopment switches the logger to console encoding with stack traces.
	LogDevelopment bool `json:"log_development,omitempty"`

	// HTTPTimeoutSec bounds every call to the OCR and inference endpoints.
	HTTPTimeoutSec int `json:"http_timeout_sec,omitempty"`

	// RequestTimeoutSec bounds a whole dispatched message (capture + OCR, or prompt + inference).
	RequestTimeoutSec int `json:"request_timeout_sec,omitempty"`

	// RegexTimeoutMS bounds a single regex filter evaluation.
	RegexTimeoutMS int `json:"regex_timeout_ms,omitempty"`

	// DefaultProfile overrides the built-in values used when the Default profile
	// is materialized on first run.
	DefaultProfile DefaultProfileConfig `json:"default_profile,omitempty"`

	// ServerBind and ServerPort are the defaults for `backseat serve`.
	ServerBind string `json:"server_bind,omitempty"`
	ServerPort int    `json:"server_port,omitempty"`

	// AllowedPaths is an allowlist of directories for profile import/export files.
	// Paths outside ~/.backseat/exports require either being in this list or AllowUnsafePaths=true.
	// Paths should be absolute (relative paths are ignored).
	AllowedPaths []string `json:"allowed_paths,omitempty"`

	// AllowUnsafePaths disables directory restrictions for import/export.
	// Symlink and extension checks still apply.
	AllowUnsafePaths bool `json:"allow_unsafe_paths,omitempty"`

	// DBMaxOpenConns limits the maximum number of open database connections.
	// 0 means use sql.DB default (unlimited).
	DBMaxOpenConns int `json:"db_max_open_conns,omitempty"`

	// DBMaxIdleConns limits the maximum number of idle database connections.
	DBMaxIdleConns int `json:"db_max_idle_conns,omitempty"`

	// DisabledTools is a list of MCP tool names to exclude from registration.
	DisabledTools []string `json:"disabled_tools,omitempty"`

	// DisabledTypes is a list of tool type names ("profile", "screen", "page") to disable entirely.
	DisabledTypes []string `json:"disabled_types,omitempty"`
}

// DefaultProfileConfig mirrors the profile record field names.
type DefaultProfileConfig struct {
	OllamaURL    string   `json:"ollamaUrl,omitempty"`
	Model        string   `json:"model,omitempty"`
	OCRURL       string   `json:"ocrUrl,omitempty"`
	OCRLanguages []string `json:"ocrLanguages,omitempty"`
	Prompt       string   `json:"prompt,omitempty"`
}

// envOverrides is filled by envconfig. Zero values mean "not set".
type envOverrides struct {
	LogLevel          string   `envconfig:"LOG_LEVEL"`
	LogDevelopment    bool     `envconfig:"LOG_DEVELOPMENT"`
	HTTPTimeoutSec    int      `envconfig:"HTTP_TIMEOUT_SEC"`
	RequestTimeoutSec int      `envconfig:"REQUEST_TIMEOUT_SEC"`
	RegexTimeoutMS    int      `envconfig:"REGEX_TIMEOUT_MS"`
	DefaultOllamaURL  string   `envconfig:"DEFAULT_OLLAMA_URL"`
	DefaultModel      string   `envconfig:"DEFAULT_MODEL"`
	DefaultOCRURL     string   `envconfig:"DEFAULT_OCR_URL"`
	DefaultLanguages  []string `envconfig:"DEFAULT_OCR_LANGUAGES"`
	DefaultPrompt     string   `envconfig:"DEFAULT_PROMPT"`
	ServerBind        string   `envconfig:"SERVER_BIND"`
	ServerPort        int      `envconfig:"SERVER_PORT"`
	AllowedPaths      []string `envconfig:"ALLOWED_PATHS"`
	AllowUnsafePaths  bool     `envconfig:"ALLOW_UNSAFE_PATHS"`
	DisabledTools     []string `envconfig:"DISABLED_TOOLS"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		LogLevel:          "info",
		HTTPTimeoutSec:    60,
		RequestTimeoutSec: 120,
		RegexTimeoutMS:    500,
		ServerBind:        "127.0.0.1",
		ServerPort:        8765,
	}
}

// Load loads configuration from baseDir/config.json.
// Returns default config if the file doesn't exist.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.backseat.
func Load(baseDir string) (*Config, error) {
	return loadFile(filepath.Join(baseDir, "config.json"))
}

// LoadWithEnv loads baseDir/config.json, then a .env file (baseDir/.env, if present),
// then BACKSEAT_* environment variables. Later sources win.
func LoadWithEnv(baseDir string) (*Config, error) {
	cfg, err := Load(baseDir)
	if err != nil {
		return nil, err
	}
	return applyEnv(cfg, baseDir)
}

// LoadAll is LoadWithRepo followed by the .env file and BACKSEAT_* variables.
// This is what the binary uses.
func LoadAll(globalDir, startDir string) (*Config, error) {
	cfg, err := LoadWithRepo(globalDir, startDir)
	if err != nil {
		return nil, err
	}
	return applyEnv(cfg, globalDir)
}

func applyEnv(cfg *Config, baseDir string) (*Config, error) {
	envPath := filepath.Join(baseDir, ".env")
	if _, err := os.Stat(envPath); err == nil {
		// godotenv.Load never overrides variables already set in the process.
		if err := godotenv.Load(envPath); err != nil {
			return nil, err
		}
	}

	overlay, err := fromEnv()
	if err != nil {
		return nil, err
	}
	return Merge(cfg, overlay), nil
}

// LoadWithRepo loads configuration from both global (~/.backseat) and repo (.backseat) directories.
// Repo config is found by walking upward from startDir to find the nearest .backseat/config.json.
// Repo config takes precedence for scalar values; arrays are merged (deduplicated).
func LoadWithRepo(globalDir, startDir string) (*Config, error) {
	global, err := loadFileRaw(filepath.Join(globalDir, "config.json"))
	if err != nil {
		return nil, err
	}

	repo, err := loadFileRaw(FindRepoConfig(startDir))
	if err != nil {
		return nil, err
	}

	return Merge(Merge(DefaultConfig(), global), repo), nil
}

// FindRepoConfig walks upward from startDir to find the nearest .backseat/config.json.
// Returns the path if found, or empty string if not found.
func FindRepoConfig(startDir string) string {
	dir := startDir
	for {
		configPath := filepath.Join(dir, ".backseat", "config.json")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// fromEnv reads BACKSEAT_* variables into a zero-based overlay config.
func fromEnv() (*Config, error) {
	var env envOverrides
	if err := envconfig.Process(EnvPrefix, &env); err != nil {
		return nil, err
	}
	return &Config{
		LogLevel:          env.LogLevel,
		LogDevelopment:    env.LogDevelopment,
		HTTPTimeoutSec:    env.HTTPTimeoutSec,
		RequestTimeoutSec: env.RequestTimeoutSec,
		RegexTimeoutMS:    env.RegexTimeoutMS,
		DefaultProfile: DefaultProfileConfig{
			OllamaURL:    env.DefaultOllamaURL,
			Model:        env.DefaultModel,
			OCRURL:       env.DefaultOCRURL,
			OCRLanguages: env.DefaultLanguages,
			Prompt:       env.DefaultPrompt,
		},
		ServerBind:       env.ServerBind,
		ServerPort:       env.ServerPort,
		AllowedPaths:     env.AllowedPaths,
		AllowUnsafePaths: env.AllowUnsafePaths,
		DisabledTools:    env.DisabledTools,
	}, nil
}

// loadFileRaw loads configuration from a specific file path.
// Returns zero-valued config if the file doesn't exist (not defaults).
func loadFileRaw(configPath string) (*Config, error) {
	if configPath == "" {
		return &Config{}, nil
	}
	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, err
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadFile loads configuration from a specific file path.
// Returns default config if the file doesn't exist.
func loadFile(configPath string) (*Config, error) {
	cfg, err := loadFileRaw(configPath)
	if err != nil {
		return nil, err
	}
	return Merge(DefaultConfig(), cfg), nil
}

// Merge combines base and overlay configs.
// Overlay values take precedence for scalars; arrays are merged and deduplicated.
func Merge(base, overlay *Config) *Config {
	result := &Config{}

	// Scalars: overlay wins if non-zero, else base
	result.LogLevel = firstString(overlay.LogLevel, base.LogLevel)
	result.HTTPTimeoutSec = firstInt(overlay.HTTPTimeoutSec, base.HTTPTimeoutSec)
	result.RequestTimeoutSec = firstInt(overlay.RequestTimeoutSec, base.RequestTimeoutSec)
	result.RegexTimeoutMS = firstInt(overlay.RegexTimeoutMS, base.RegexTimeoutMS)
	result.ServerBind = firstString(overlay.ServerBind, base.ServerBind)
	result.ServerPort = firstInt(overlay.ServerPort, base.ServerPort)
	result.DBMaxOpenConns = firstInt(overlay.DBMaxOpenConns, base.DBMaxOpenConns)
	result.DBMaxIdleConns = firstInt(overlay.DBMaxIdleConns, base.DBMaxIdleConns)

	result.DefaultProfile = DefaultProfileConfig{
		OllamaURL: firstString(overlay.DefaultProfile.OllamaURL, base.DefaultProfile.OllamaURL),
		Model:     firstString(overlay.DefaultProfile.Model, base.DefaultProfile.Model),
		OCRURL:    firstString(overlay.DefaultProfile.OCRURL, base.DefaultProfile.OCRURL),
		Prompt:    firstString(overlay.DefaultProfile.Prompt, base.DefaultProfile.Prompt),
	}
	// Languages are an ordered set: overlay replaces rather than merges.
	result.DefaultProfile.OCRLanguages = mergeStringSlice(overlay.DefaultProfile.OCRLanguages, nil)
	if result.DefaultProfile.OCRLanguages == nil {
		result.DefaultProfile.OCRLanguages = mergeStringSlice(base.DefaultProfile.OCRLanguages, nil)
	}

	// Booleans: overlay wins if true, else base
	result.LogDevelopment = base.LogDevelopment || overlay.LogDevelopment
	result.AllowUnsafePaths = base.AllowUnsafePaths || overlay.AllowUnsafePaths

	// Arrays: merge and deduplicate
	result.AllowedPaths = mergeStringSlice(base.AllowedPaths, overlay.AllowedPaths)
	result.DisabledTools = mergeStringSlice(base.DisabledTools, overlay.DisabledTools)
	result.DisabledTypes = mergeStringSlice(base.DisabledTypes, overlay.DisabledTypes)

	return result
}

// HTTPTimeout returns the per-call adapter timeout.
func (c *Config) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTPTimeoutSec) * time.Second
}

// RequestTimeout returns the per-message timeout applied by the dispatcher.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSec) * time.Second
}

// RegexTimeout returns the regex evaluation budget.
func (c *Config) RegexTimeout() time.Duration {
	return time.Duration(c.RegexTimeoutMS) * time.Millisecond
}

// DefaultOverrides converts the default_profile section to profile overrides.
func (c *Config) DefaultOverrides() profile.Overrides {
	return profile.Overrides{
		InferenceURL:   c.DefaultProfile.OllamaURL,
		InferenceModel: c.DefaultProfile.Model,
		OCRURL:         c.DefaultProfile.OCRURL,
		OCRLanguages:   c.DefaultProfile.OCRLanguages,
		SystemPrompt:   c.DefaultProfile.Prompt,
	}
}

func firstString(a, b string) string {
	if strings.TrimSpace(a) != "" {
		return strings.TrimSpace(a)
	}
	return b
}

func firstInt(a, b int) int {
	if a != 0 {
		return a
	}
	return b
}

// mergeStringSlice combines two slices, trims whitespace, and removes duplicates.
func mergeStringSlice(a, b []string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, len(a)+len(b))

	for _, s := range a {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}
	for _, s := range b {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}

	if len(result) == 0 {
		return nil
	}
	return result
}
