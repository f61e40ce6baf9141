// Package config holds the proxy's on-disk settings, reusing the
// original CLI's repository-backed JSON settings pattern: a typed struct,
// defaults, validation, and a search order for the settings file, now
// generalized from agent/LLM-backend configuration to the proxy's own
// domain (Upstream endpoint, account pool, client surface).
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fpt/klein-cli/internal/infra"
	"github.com/fpt/klein-cli/internal/repository"
	pkgLogger "github.com/fpt/klein-cli/pkg/logger"
)

// Settings is the top-level proxy configuration document.
type Settings struct {
	Upstream UpstreamSettings `json:"upstream"`
	Accounts AccountsSettings `json:"accounts"`
	Proxy    ProxySettings    `json:"proxy"`
	Agent    AgentSettings    `json:"agent"`

	// Repository for persistence (nil for in-memory only)
	settingsRepository repository.SettingsRepository `json:"-"`
}

// UpstreamSettings holds the Upstream endpoint settings (SPEC_FULL.md §6).
// upstream.NewClient does not read them: the client uses its built-in
// BaseURLProd/BaseURLDaily endpoints and a fixed User-Agent.
type UpstreamSettings struct {
	BaseURL      string `json:"base_url"`
	DailyBaseURL string `json:"daily_base_url"`
	UserAgent    string `json:"user_agent"`
}

// AccountsSettings configures the token pool (SPEC_FULL.md §4.4).
type AccountsSettings struct {
	Dir            string `json:"dir"`
	SchedulingMode string `json:"scheduling_mode"` // "balance" | "performance_first" | "cache_first"
}

// ProxySettings configures the client-facing HTTP surface (SPEC_FULL.md §6).
type ProxySettings struct {
	ListenAddr        string `json:"listen_addr"`
	SafetyThreshold   string `json:"safety_threshold"` // overridden by GEMINI_SAFETY_THRESHOLD
	MaxRetryAttempts  int    `json:"max_retry_attempts"`
	DiscordWebhookURL string `json:"discord_webhook_url,omitempty"`
}

// AgentSettings carries ambient operational config not specific to any one
// subsystem above.
type AgentSettings struct {
	LogLevel string `json:"log_level"`
}

// NewSettings creates new settings with an in-memory repository.
func NewSettings() *Settings {
	return NewSettingsWithRepository(infra.NewInMemorySettingsRepository())
}

// NewSettingsWithRepository creates new settings with an injected
// repository.
func NewSettingsWithRepository(settingsRepository repository.SettingsRepository) *Settings {
	settings := GetDefaultSettings()
	settings.settingsRepository = settingsRepository
	return settings
}

// NewSettingsWithPath creates new settings with a file-based repository.
func NewSettingsWithPath(configPath string) *Settings {
	repo := infra.NewFileSettingsRepository(configPath)
	return NewSettingsWithRepository(repo)
}

// Load loads settings from the repository.
func (s *Settings) Load() error {
	if s.settingsRepository == nil {
		return fmt.Errorf("no settings repository configured")
	}

	data, err := s.settingsRepository.Load()
	if err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}

	if err := json.Unmarshal(data, s); err != nil {
		return fmt.Errorf("failed to parse settings: %w", err)
	}

	applyDefaults(s)
	applyEnvOverrides(s)
	return nil
}

// Save saves settings to the repository.
func (s *Settings) Save() error {
	if s.settingsRepository == nil {
		return fmt.Errorf("no settings repository configured")
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}

	return s.settingsRepository.Save(data)
}

// LoadSettings loads proxy settings from a JSON file, creating a default
// one if none exists.
func LoadSettings(configPath string) (*Settings, error) {
	settings := NewSettingsWithPath(configPath)

	if configPath == "" {
		foundPath, _ := settings.settingsRepository.FindSettingsFile()
		if foundPath == "" {
			return createDefaultSettingsFile()
		}
	}

	err := settings.Load()
	if err != nil {
		if configPath != "" {
			createdSettings, _ := createSettingsFileAtPath(configPath)
			return createdSettings, nil
		}
		return GetDefaultSettings(), nil
	}

	return settings, nil
}

// SaveSettings saves proxy settings to a JSON file.
func SaveSettings(configPath string, settings *Settings) error {
	if settings.settingsRepository != nil {
		return settings.Save()
	}

	if configPath == "" {
		configPath = findSettingsFile()
		if configPath == "" {
			configPath = filepath.Join(".agents", "proxy-settings.json")
		}
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write settings file: %w", err)
	}

	return nil
}

// GetDefaultSettings returns the built-in proxy defaults.
func GetDefaultSettings() *Settings {
	return &Settings{
		Upstream: UpstreamSettings{
			BaseURL:      "https://cloudcode-pa.googleapis.com/v1internal",
			DailyBaseURL: "https://daily-cloudcode-pa.sandbox.googleapis.com/v1internal",
			UserAgent:    "antigravity",
		},
		Accounts: AccountsSettings{
			Dir:            filepath.Join(defaultHome(), ".klein", "accounts"),
			SchedulingMode: "balance",
		},
		Proxy: ProxySettings{
			ListenAddr:       ":8787",
			SafetyThreshold:  "OFF",
			MaxRetryAttempts: 3,
		},
		Agent: AgentSettings{
			LogLevel: "info",
		},
	}
}

func defaultHome() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}

// applyDefaults fills in missing fields with default values.
func applyDefaults(settings *Settings) {
	defaults := GetDefaultSettings()

	if settings.Upstream.BaseURL == "" {
		settings.Upstream.BaseURL = defaults.Upstream.BaseURL
	}
	if settings.Upstream.DailyBaseURL == "" {
		settings.Upstream.DailyBaseURL = defaults.Upstream.DailyBaseURL
	}
	if settings.Upstream.UserAgent == "" {
		settings.Upstream.UserAgent = defaults.Upstream.UserAgent
	}
	if settings.Accounts.Dir == "" {
		settings.Accounts.Dir = defaults.Accounts.Dir
	}
	if settings.Accounts.SchedulingMode == "" {
		settings.Accounts.SchedulingMode = defaults.Accounts.SchedulingMode
	}
	if settings.Proxy.ListenAddr == "" {
		settings.Proxy.ListenAddr = defaults.Proxy.ListenAddr
	}
	if settings.Proxy.SafetyThreshold == "" {
		settings.Proxy.SafetyThreshold = defaults.Proxy.SafetyThreshold
	}
	if settings.Proxy.MaxRetryAttempts == 0 {
		settings.Proxy.MaxRetryAttempts = defaults.Proxy.MaxRetryAttempts
	}
	if settings.Agent.LogLevel == "" {
		settings.Agent.LogLevel = defaults.Agent.LogLevel
	}
}

// applyEnvOverrides applies the environment-variable overrides named in
// SPEC_FULL.md §6.
func applyEnvOverrides(settings *Settings) {
	if v := os.Getenv("GEMINI_SAFETY_THRESHOLD"); v != "" {
		settings.Proxy.SafetyThreshold = v
	}
	if v := os.Getenv("PROXY_LISTEN_ADDR"); v != "" {
		settings.Proxy.ListenAddr = v
	}
	if v := os.Getenv("PROXY_ACCOUNTS_DIR"); v != "" {
		settings.Accounts.Dir = v
	}
}

// ValidateSettings validates the settings configuration.
func ValidateSettings(settings *Settings) error {
	if settings.Upstream.BaseURL == "" {
		return fmt.Errorf("upstream.base_url must not be empty")
	}
	if settings.Accounts.Dir == "" {
		return fmt.Errorf("accounts.dir must not be empty")
	}
	switch settings.Accounts.SchedulingMode {
	case "balance", "performance_first", "cache_first":
	default:
		return fmt.Errorf("unknown accounts.scheduling_mode: %s", settings.Accounts.SchedulingMode)
	}
	if settings.Proxy.MaxRetryAttempts <= 0 {
		return fmt.Errorf("proxy.max_retry_attempts must be positive")
	}
	return nil
}

// findSettingsFile searches for proxy-settings.json in order of preference:
// 1. .agents/proxy-settings.json in current directory
// 2. $HOME/.klein/proxy-settings.json
// Returns empty string if none found.
func findSettingsFile() string {
	currentDirPath := filepath.Join(".agents", "proxy-settings.json")
	if _, err := os.Stat(currentDirPath); err == nil {
		return currentDirPath
	}

	homeDir, err := os.UserHomeDir()
	if err == nil {
		homeDirPath := filepath.Join(homeDir, ".klein", "proxy-settings.json")
		if _, err := os.Stat(homeDirPath); err == nil {
			return homeDirPath
		}
	}

	return ""
}

// createDefaultSettingsFile creates a default proxy-settings.json file in
// ~/.klein/.
func createDefaultSettingsFile() (*Settings, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return GetDefaultSettings(), nil
	}

	settingsPath := filepath.Join(homeDir, ".klein", "proxy-settings.json")
	return createSettingsFileAtPath(settingsPath)
}

// createSettingsFileAtPath creates a default settings file at the
// specified path.
func createSettingsFileAtPath(settingsPath string) (*Settings, error) {
	settings := NewSettingsWithPath(settingsPath)

	if err := settings.Save(); err != nil {
		return GetDefaultSettings(), nil
	}

	pkgLogger.NewComponentLogger("settings").InfoWithIntention(pkgLogger.IntentionConfig, "Created default settings file", "path", settingsPath)
	pkgLogger.NewComponentLogger("settings").InfoWithIntention(pkgLogger.IntentionStatus, "You can edit this file to customize your configuration")

	return settings, nil
}
