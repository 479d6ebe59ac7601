// Package config provides configuration management for bookpress.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"bookpress/internal/logger"
	"bookpress/internal/types"
)

const (
	// DefaultConfigFileName is the default configuration file name
	DefaultConfigFileName = "bookpress-config.json"

	EnvOpenAIAPIKey    = "OPENAI_API_KEY"
	EnvOpenAIBaseURL   = "OPENAI_BASE_URL"
	EnvGeminiAPIKey    = "GEMINI_API_KEY"
	EnvAnthropicAPIKey = "ANTHROPIC_API_KEY"

	DefaultStylesDir = "styles"
	DefaultFontsDir  = "fonts"
	DefaultOutputDir = "results/pdfs"
	DefaultStyle     = "classic"
	DefaultFormat    = "A4"
	// DefaultMaxPagesPerPart is the part budget used when splitting is
	// requested without an explicit page count.
	DefaultMaxPagesPerPart = 600
	DefaultConcurrency     = 1
	DefaultLogLevel        = "info"

	DefaultProvider          = "openai"
	DefaultBaseURL           = "https://api.openai.com/v1"
	DefaultOpenAIModel       = "gpt-4o-mini"
	DefaultGeminiModel       = "gemini-2.0-flash"
	DefaultAnthropicModel    = "claude-3-5-sonnet-latest"
	DefaultRequestsPerMinute = 30
)

// ConfigManager manages application configuration
type ConfigManager struct {
	configPath string
	config     *types.Config
}

// NewConfigManager creates a new ConfigManager with the specified config path.
// If configPath is empty, it uses the default path in user's home directory.
func NewConfigManager(configPath string) (*ConfigManager, error) {
	if configPath == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			logger.Error("failed to get user home directory", err)
			return nil, types.NewAppError(types.ErrConfig, "failed to get user home directory", err)
		}
		configPath = filepath.Join(homeDir, ".config", "bookpress", DefaultConfigFileName)
	}

	logger.Debug("ConfigManager initialized", logger.String("configPath", configPath))
	return &ConfigManager{
		configPath: configPath,
		config:     defaultConfig(),
	}, nil
}

func defaultConfig() *types.Config {
	return &types.Config{
		StylesDir:         DefaultStylesDir,
		FontsDir:          DefaultFontsDir,
		OutputDir:         DefaultOutputDir,
		DefaultStyle:      DefaultStyle,
		DefaultFormats:    []string{DefaultFormat},
		MaxPagesPerPart:   DefaultMaxPagesPerPart,
		Concurrency:       DefaultConcurrency,
		LogLevel:          DefaultLogLevel,
		LLMProvider:       DefaultProvider,
		OpenAIBaseURL:     DefaultBaseURL,
		OpenAIModel:       DefaultOpenAIModel,
		GeminiModel:       DefaultGeminiModel,
		AnthropicModel:    DefaultAnthropicModel,
		RequestsPerMinute: DefaultRequestsPerMinute,
	}
}

// Load loads configuration from the config file.
// If the file doesn't exist, it uses default values.
// Environment variables take precedence for API keys if the config file value is empty.
func (m *ConfigManager) Load() error {
	logger.Debug("loading configuration", logger.String("path", m.configPath))

	data, err := os.ReadFile(m.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Debug("config file not found, using defaults", logger.String("path", m.configPath))
			m.config = defaultConfig()
		} else {
			logger.Error("failed to read config file", err, logger.String("path", m.configPath))
			return types.NewAppError(types.ErrConfig, "failed to read config file", err)
		}
	} else {
		config := &types.Config{}
		if err := json.Unmarshal(data, config); err != nil {
			logger.Warn("invalid config file format, using defaults", logger.String("path", m.configPath), logger.Err(err))
			m.config = defaultConfig()
		} else {
			logger.Info("configuration loaded successfully",
				logger.String("path", m.configPath),
				logger.String("stylesDir", config.StylesDir),
				logger.String("provider", config.LLMProvider))
			m.config = config
		}
	}

	m.applyDefaults()
	return nil
}

// applyDefaults fills empty fields with their default values.
func (m *ConfigManager) applyDefaults() {
	c := m.config
	d := defaultConfig()
	if c.StylesDir == "" {
		c.StylesDir = d.StylesDir
	}
	if c.FontsDir == "" {
		c.FontsDir = d.FontsDir
	}
	if c.OutputDir == "" {
		c.OutputDir = d.OutputDir
	}
	if c.DefaultStyle == "" {
		c.DefaultStyle = d.DefaultStyle
	}
	if len(c.DefaultFormats) == 0 {
		c.DefaultFormats = d.DefaultFormats
	}
	if c.MaxPagesPerPart <= 0 {
		c.MaxPagesPerPart = d.MaxPagesPerPart
	}
	if c.Concurrency <= 0 {
		c.Concurrency = d.Concurrency
	}
	if c.LogLevel == "" {
		c.LogLevel = d.LogLevel
	}
	if c.LLMProvider == "" {
		c.LLMProvider = d.LLMProvider
	}
	if c.OpenAIBaseURL == "" {
		c.OpenAIBaseURL = d.OpenAIBaseURL
	}
	if c.OpenAIModel == "" {
		c.OpenAIModel = d.OpenAIModel
	}
	if c.GeminiModel == "" {
		c.GeminiModel = d.GeminiModel
	}
	if c.AnthropicModel == "" {
		c.AnthropicModel = d.AnthropicModel
	}
	if c.RequestsPerMinute <= 0 {
		c.RequestsPerMinute = d.RequestsPerMinute
	}
}

// Save saves the current configuration to the config file.
func (m *ConfigManager) Save() error {
	logger.Debug("saving configuration", logger.String("path", m.configPath))

	dir := filepath.Dir(m.configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		logger.Error("failed to create config directory", err, logger.String("dir", dir))
		return types.NewAppError(types.ErrConfig, "failed to create config directory", err)
	}

	data, err := json.MarshalIndent(m.config, "", "  ")
	if err != nil {
		logger.Error("failed to marshal config", err)
		return types.NewAppError(types.ErrConfig, "failed to marshal config", err)
	}

	// API keys live in this file
	if err := os.WriteFile(m.configPath, data, 0600); err != nil {
		logger.Error("failed to write config file", err, logger.String("path", m.configPath))
		return types.NewAppError(types.ErrConfig, "failed to write config file", err)
	}

	logger.Info("configuration saved successfully", logger.String("path", m.configPath))
	return nil
}

// GetAPIKey returns the API key for provider ("openai", "gemini" or "anthropic").
// It first checks the config file value, then falls back to the environment variable.
func (m *ConfigManager) GetAPIKey(provider string) string {
	c := m.GetConfig()
	switch strings.ToLower(provider) {
	case "gemini":
		if c.GeminiAPIKey != "" {
			return c.GeminiAPIKey
		}
		return os.Getenv(EnvGeminiAPIKey)
	case "anthropic":
		if c.AnthropicAPIKey != "" {
			return c.AnthropicAPIKey
		}
		return os.Getenv(EnvAnthropicAPIKey)
	default:
		if c.OpenAIAPIKey != "" {
			return c.OpenAIAPIKey
		}
		return os.Getenv(EnvOpenAIAPIKey)
	}
}

// GetModel returns the configured model for provider.
func (m *ConfigManager) GetModel(provider string) string {
	c := m.GetConfig()
	switch strings.ToLower(provider) {
	case "gemini":
		return c.GeminiModel
	case "anthropic":
		return c.AnthropicModel
	default:
		return c.OpenAIModel
	}
}

// GetBaseURL returns the OpenAI API base URL.
// It first checks the config file value, then falls back to the environment variable.
func (m *ConfigManager) GetBaseURL() string {
	if m.config != nil && m.config.OpenAIBaseURL != "" && m.config.OpenAIBaseURL != DefaultBaseURL {
		return m.config.OpenAIBaseURL
	}
	if envURL := os.Getenv(EnvOpenAIBaseURL); envURL != "" {
		return envURL
	}
	return DefaultBaseURL
}

// GetConfig returns the current configuration.
func (m *ConfigManager) GetConfig() *types.Config {
	if m.config == nil {
		return defaultConfig()
	}
	return m.config
}

// SetConfig sets the entire configuration.
func (m *ConfigManager) SetConfig(config *types.Config) {
	m.config = config
}

// GetConfigPath returns the path to the config file.
func (m *ConfigManager) GetConfigPath() string {
	return m.configPath
}
