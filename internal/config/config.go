package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

type Config struct {
	Whoop         WhoopConfig   `toml:"whoop"`
	Sheet         SheetConfig   `toml:"sheet"`
	Sync          SyncConfig    `toml:"sync"`
	GitHub        GitHubConfig  `toml:"github"`
	Notifications NotifyConfig  `toml:"notifications"`
	Metrics       MetricsConfig `toml:"metrics"`
	History       HistoryConfig `toml:"history"`
}

type WhoopConfig struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
	BaseURL      string `toml:"base_url"`
	TokenFile    string `toml:"token_file"`
	AuthPort     int    `toml:"auth_port"`
}

type SheetConfig struct {
	Name           string `toml:"name"`
	SpreadsheetID  string `toml:"spreadsheet_id"`
	Worksheet      string `toml:"worksheet"`
	CredsPath      string `toml:"creds_path"`
	DurationFormat string `toml:"duration_format"` // "minutes" or "hm"
}

type SyncConfig struct {
	DaysAgo  int   `toml:"days_ago"`
	SportIDs []int `toml:"sport_ids"`
}

type GitHubConfig struct {
	Token      string `toml:"token"`
	Repo       string `toml:"repo"`
	SecretName string `toml:"secret_name"`
}

type NotifyConfig struct {
	Enabled bool `toml:"enabled"`
}

type MetricsConfig struct {
	PushgatewayURL string `toml:"pushgateway_url"`
	Job            string `toml:"job"`
}

type HistoryConfig struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

func DefaultConfig() Config {
	return Config{
		Whoop: WhoopConfig{
			TokenFile: "whoop-tokens.json",
			AuthPort:  5000,
		},
		Sheet: SheetConfig{
			Worksheet:      "Running",
			CredsPath:      "google-creds.json",
			DurationFormat: "minutes",
		},
		Sync: SyncConfig{
			DaysAgo:  14,
			SportIDs: []int{0},
		},
		GitHub: GitHubConfig{
			SecretName: "WHOOP_TOKENS",
		},
		Metrics: MetricsConfig{
			Job: "whoopsheet",
		},
		History: HistoryConfig{
			Enabled: true,
		},
	}
}

func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("finding home directory: %w", err)
	}
	return filepath.Join(home, ".config", "whoopsheet"), nil
}

func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// Load reads the config file (if any), then .env, then environment overrides.
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadFile(path)
}

// LoadFile is Load with an explicit config path. A missing file yields defaults.
func LoadFile(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if len(data) > 0 {
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	// .env is optional; real environment variables win over it.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("WHOOP_CLIENT_ID"); v != "" {
		cfg.Whoop.ClientID = v
	}
	if v := os.Getenv("WHOOP_CLIENT_SECRET"); v != "" {
		cfg.Whoop.ClientSecret = v
	}
	if v := os.Getenv("WHOOP_BASE_URL"); v != "" {
		cfg.Whoop.BaseURL = v
	}
	if v := os.Getenv("WHOOP_TOKEN_FILE"); v != "" {
		cfg.Whoop.TokenFile = v
	}
	if v := os.Getenv("GOOGLE_SHEET_NAME"); v != "" {
		cfg.Sheet.Name = v
	}
	if v := os.Getenv("GOOGLE_SHEET_ID"); v != "" {
		cfg.Sheet.SpreadsheetID = v
	}
	if v := os.Getenv("GOOGLE_CREDS_PATH"); v != "" {
		cfg.Sheet.CredsPath = v
	}
	if v := os.Getenv("GITHUB_TOKEN"); v != "" {
		cfg.GitHub.Token = v
	}
	if v := os.Getenv("GITHUB_REPOSITORY"); v != "" {
		cfg.GitHub.Repo = v
	}
	if v := os.Getenv("PUSHGATEWAY_URL"); v != "" {
		cfg.Metrics.PushgatewayURL = v
	}
}

// Validate reports settings a sync run cannot do without. WHOOP client
// credentials are not checked here; they are only needed to refresh.
func (c *Config) Validate() error {
	var missing []string
	if c.Sheet.Name == "" && c.Sheet.SpreadsheetID == "" {
		missing = append(missing, "sheet.name or sheet.spreadsheet_id")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing configuration: %s", strings.Join(missing, ", "))
	}
	switch c.Sheet.DurationFormat {
	case "minutes", "hm":
	default:
		return fmt.Errorf("unknown sheet.duration_format %q (want \"minutes\" or \"hm\")", c.Sheet.DurationFormat)
	}
	return nil
}

func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0755)
}

// WriteDefault writes the default config to path unless a file already exists.
func WriteDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("checking config file: %w", err)
	}

	out, err := toml.Marshal(DefaultConfig())
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	return os.WriteFile(path, out, 0600)
}
