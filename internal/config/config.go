// Package config handles the vault configuration and the .salesvault
// directory structure. Every vault that salesvault manages gets a
// .salesvault/ folder created at its root holding config and logs.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/peb7268/salesvault/internal/pipeline"
)

const (
	// VaultDir is the name of the directory created inside each vault root.
	VaultDir = ".salesvault"

	configFileName = "config.yaml"
)

const defaultConfigYAML = `# salesvault configuration
version: 1

# Directory layout, relative to the vault root. The dashboard entry is a
# single file; everything else is a folder.
paths:
  prospects: Prospects
  campaigns: Campaigns
  activities: Activities
  templates: Templates
  dashboard: Dashboard/Kanban.md
  dailyNotes: DailyNotes

# Qualification banding cut points. Policy, not contract: tune freely.
scoring:
  bands:
    high: 80
    medium: 60
    low: 30
  # Totals at or above this render with the hot marker on board cards.
  highScoreMarker: 80

# Webhook bridge for the call-automation collaborator.
bridge:
  enabled: false
  host: 127.0.0.1
  port: 8787
`

// PathsConfig maps entity kinds to their subtrees under the vault root.
type PathsConfig struct {
	Prospects  string `yaml:"prospects"`
	Campaigns  string `yaml:"campaigns"`
	Activities string `yaml:"activities"`
	Templates  string `yaml:"templates"`
	Dashboard  string `yaml:"dashboard"`
	DailyNotes string `yaml:"dailyNotes"`
}

// ScoringConfig carries the banding policy.
type ScoringConfig struct {
	Bands           pipeline.Bands `yaml:"bands"`
	HighScoreMarker float64        `yaml:"highScoreMarker"`
}

// BoardConfig allows overriding the stage lane labels.
type BoardConfig struct {
	Lanes map[string]string `yaml:"lanes,omitempty"`
}

// BridgeConfig configures the webhook bridge server.
type BridgeConfig struct {
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host,omitempty"`
	Port    int    `yaml:"port,omitempty"`
}

// VaultConfig models .salesvault/config.yaml.
type VaultConfig struct {
	Version int           `yaml:"version"`
	Paths   PathsConfig   `yaml:"paths"`
	Scoring ScoringConfig `yaml:"scoring"`
	Board   BoardConfig   `yaml:"board,omitempty"`
	Bridge  BridgeConfig  `yaml:"bridge"`
}

// Config holds the runtime configuration for a vault.
type Config struct {
	// Root is the vault directory the user pointed salesvault at.
	Root string

	// VaultConfigDir is Root/.salesvault.
	VaultConfigDir string

	Vault VaultConfig
}

func defaultVaultConfig() VaultConfig {
	var cfg VaultConfig
	// The default literal is the source of truth for defaults; parsing it
	// here keeps the shipped file and the in-memory fallback identical.
	if err := yaml.Unmarshal([]byte(defaultConfigYAML), &cfg); err != nil {
		panic(fmt.Sprintf("config: default config does not parse: %v", err))
	}
	return cfg
}

// InitVaultDir creates the .salesvault directory structure and writes the
// default config file when missing. Safe to call repeatedly.
func InitVaultDir(root string) error {
	dir := filepath.Join(root, VaultDir)
	if err := os.MkdirAll(filepath.Join(dir, "logs"), 0o755); err != nil {
		return fmt.Errorf("config: ensure %s: %w", VaultDir, err)
	}
	path := filepath.Join(dir, configFileName)
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("config: stat %s: %w", path, err)
	}
	if err := os.WriteFile(path, []byte(defaultConfigYAML), 0o644); err != nil {
		return fmt.Errorf("config: write default config: %w", err)
	}
	return nil
}

// Load reads the vault config for the given root, falling back to defaults
// when the file is absent. A present-but-unreadable file is an error.
func Load(root string) (*Config, error) {
	c := &Config{
		Root:           root,
		VaultConfigDir: filepath.Join(root, VaultDir),
		Vault:          defaultVaultConfig(),
	}
	if err := c.loadVaultConfig(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) loadVaultConfig() error {
	path := filepath.Join(c.VaultConfigDir, configFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	parsed := defaultVaultConfig()
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	c.Vault = parsed
	c.normalize()
	return nil
}

func (c *Config) normalize() {
	defaults := defaultVaultConfig()
	p := &c.Vault.Paths
	if strings.TrimSpace(p.Prospects) == "" {
		p.Prospects = defaults.Paths.Prospects
	}
	if strings.TrimSpace(p.Campaigns) == "" {
		p.Campaigns = defaults.Paths.Campaigns
	}
	if strings.TrimSpace(p.Activities) == "" {
		p.Activities = defaults.Paths.Activities
	}
	if strings.TrimSpace(p.Templates) == "" {
		p.Templates = defaults.Paths.Templates
	}
	if strings.TrimSpace(p.Dashboard) == "" {
		p.Dashboard = defaults.Paths.Dashboard
	}
	if strings.TrimSpace(p.DailyNotes) == "" {
		p.DailyNotes = defaults.Paths.DailyNotes
	}
	if c.Vault.Scoring.HighScoreMarker <= 0 {
		c.Vault.Scoring.HighScoreMarker = defaults.Scoring.HighScoreMarker
	}
}

// ProspectsDir returns the absolute prospects directory.
func (c *Config) ProspectsDir() string { return filepath.Join(c.Root, c.Vault.Paths.Prospects) }

// CampaignsDir returns the absolute campaigns directory.
func (c *Config) CampaignsDir() string { return filepath.Join(c.Root, c.Vault.Paths.Campaigns) }

// ActivitiesDir returns the absolute activities directory.
func (c *Config) ActivitiesDir() string { return filepath.Join(c.Root, c.Vault.Paths.Activities) }

// TemplatesDir returns the absolute templates directory.
func (c *Config) TemplatesDir() string { return filepath.Join(c.Root, c.Vault.Paths.Templates) }

// DashboardFile returns the absolute Kanban board file path.
func (c *Config) DashboardFile() string { return filepath.Join(c.Root, c.Vault.Paths.Dashboard) }

// DailyNotesDir returns the absolute daily notes directory.
func (c *Config) DailyNotesDir() string { return filepath.Join(c.Root, c.Vault.Paths.DailyNotes) }

// Bands returns the configured qualification banding cut points.
func (c *Config) Bands() pipeline.Bands {
	bands := c.Vault.Scoring.Bands
	if bands == (pipeline.Bands{}) {
		return pipeline.DefaultBands()
	}
	return bands
}

// defaultLaneLabels is the static stage to lane-label bijection used when
// the config does not override a label.
var defaultLaneLabels = map[pipeline.Stage]string{
	pipeline.StageCold:       "🧊 Cold",
	pipeline.StageContacted:  "📞 Contacted",
	pipeline.StageInterested: "💬 Interested",
	pipeline.StageQualified:  "✅ Qualified",
	pipeline.StageClosedWon:  "🏆 Closed Won",
	pipeline.StageClosedLost: "❌ Closed Lost",
	pipeline.StageFrozen:     "❄️ Frozen",
}

// LaneLabel resolves the board label for a stage.
func (c *Config) LaneLabel(stage pipeline.Stage) string {
	if c != nil {
		if label, ok := c.Vault.Board.Lanes[string(stage)]; ok && strings.TrimSpace(label) != "" {
			return label
		}
	}
	return defaultLaneLabels[stage]
}
