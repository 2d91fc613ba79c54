package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"

	cberrors "github.com/hpungsan/chatbox/internal/errors"
)

// APIKeyEnv is the environment variable holding the Gemini API key.
const APIKeyEnv = "API_KEY"

// Default model identifiers.
const (
	DefaultTextModel  = "gemini-2.5-flash"
	DefaultImageModel = "imagen-3.0-generate-002"
)

// DefaultPrompt seeds the prompt field of a new session.
const DefaultPrompt = "Create a simple project to blink an LED every second using the built-in LED on an Arduino Uno."

// Config holds application configuration.
type Config struct {
	// TextModel is the model used for the structured project request.
	TextModel string `json:"text_model,omitempty"`

	// ImageModel is the model used for the schematic image request.
	ImageModel string `json:"image_model,omitempty"`

	// DefaultPrompt pre-fills the prompt field at startup.
	DefaultPrompt string `json:"default_prompt,omitempty"`

	// AllowedPaths is an allowlist of directories for artifact exports.
	// Paths outside <base>/exports require either being in this list or AllowUnsafePaths=true.
	// Paths should be absolute (relative paths are ignored).
	AllowedPaths []string `json:"allowed_paths,omitempty"`

	// AllowUnsafePaths disables directory restrictions for exports.
	// Symlink and extension checks still apply.
	AllowUnsafePaths bool `json:"allow_unsafe_paths,omitempty"`

	// DisabledTools is a list of MCP tool names to exclude from registration.
	DisabledTools []string `json:"disabled_tools,omitempty"`

	// CORSOrigins lists origins allowed to call the web JSON API.
	// Empty means same-origin only.
	CORSOrigins []string `json:"cors_origins,omitempty"`

	// BaseDir is the directory the config was loaded from (~/.chatbox by default).
	BaseDir string `json:"-"`

	// APIKey is populated by LoadAPIKey, never from config.json.
	APIKey string `json:"-"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		TextModel:     DefaultTextModel,
		ImageModel:    DefaultImageModel,
		DefaultPrompt: DefaultPrompt,
	}
}

// ExportsDir returns the default artifact export directory.
func (c *Config) ExportsDir() string {
	return filepath.Join(c.BaseDir, "exports")
}

// Load loads configuration from baseDir/config.json.
// Returns default config if the file doesn't exist.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.chatbox.
func Load(baseDir string) (*Config, error) {
	cfg, err := loadFile(filepath.Join(baseDir, "config.json"))
	if err != nil {
		return nil, err
	}
	cfg.BaseDir = baseDir
	return cfg, nil
}

// LoadWithRepo loads configuration from both global (~/.chatbox) and repo (.chatbox) directories.
// Repo config is found by walking upward from startDir to find the nearest .chatbox/config.json.
// Repo config takes precedence for scalar values; arrays are merged (deduplicated).
// Either or both configs may be missing.
func LoadWithRepo(globalDir, startDir string) (*Config, error) {
	global, err := loadFileRaw(filepath.Join(globalDir, "config.json"))
	if err != nil {
		return nil, err
	}

	repo, err := loadFileRaw(FindRepoConfig(startDir))
	if err != nil {
		return nil, err
	}

	cfg := Merge(Merge(DefaultConfig(), global), repo)
	cfg.BaseDir = globalDir
	return cfg, nil
}

// FindRepoConfig walks upward from startDir to find the nearest .chatbox/config.json.
// Returns the path if found, or empty string if not found.
func FindRepoConfig(startDir string) string {
	dir := startDir
	for {
		configPath := filepath.Join(dir, ".chatbox", "config.json")
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

// LoadAPIKey reads the API key from the environment into cfg.APIKey.
// A .env file in the working directory, then one in cfg.BaseDir, is loaded
// first; variables already set in the process environment win.
// A missing key is a configuration error.
func LoadAPIKey(cfg *Config) error {
	for _, path := range []string{".env", filepath.Join(cfg.BaseDir, ".env")} {
		if err := godotenv.Load(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return cberrors.NewConfiguration("failed to read " + path + ": " + err.Error())
		}
	}

	key := strings.TrimSpace(os.Getenv(APIKeyEnv))
	if key == "" {
		return cberrors.NewConfiguration(APIKeyEnv + " environment variable not set")
	}
	cfg.APIKey = key
	return nil
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
	result := &Config{
		TextModel:     firstNonEmpty(overlay.TextModel, base.TextModel),
		ImageModel:    firstNonEmpty(overlay.ImageModel, base.ImageModel),
		DefaultPrompt: firstNonEmpty(overlay.DefaultPrompt, base.DefaultPrompt),
		BaseDir:       firstNonEmpty(overlay.BaseDir, base.BaseDir),
		APIKey:        firstNonEmpty(overlay.APIKey, base.APIKey),
	}

	// Booleans: overlay wins if true, else base
	result.AllowUnsafePaths = base.AllowUnsafePaths || overlay.AllowUnsafePaths

	result.AllowedPaths = mergeStringSlice(base.AllowedPaths, overlay.AllowedPaths)
	result.DisabledTools = mergeStringSlice(base.DisabledTools, overlay.DisabledTools)
	result.CORSOrigins = mergeStringSlice(base.CORSOrigins, overlay.CORSOrigins)

	return result
}

func firstNonEmpty(a, b string) string {
	if strings.TrimSpace(a) != "" {
		return a
	}
	return b
}

// mergeStringSlice combines two slices, trims whitespace, and removes duplicates.
func mergeStringSlice(a, b []string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, len(a)+len(b))

	for _, s := range append(append([]string{}, a...), b...) {
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
