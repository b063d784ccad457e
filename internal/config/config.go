package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"checkline/internal/validate"
)

// Config models checkline.yml.
type Config struct {
	Service struct {
		Name string `yaml:"name"`
	} `yaml:"service"`
	Defaults struct {
		Priority string `yaml:"priority"`
		Category string `yaml:"category"`
	} `yaml:"defaults"`
	Categories map[string]struct {
		Description string `yaml:"description"`
	} `yaml:"categories"`
	Auth struct {
		AllowLegacyEmailHeader bool `yaml:"allow_legacy_email_header"`
	} `yaml:"auth"`
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Service.Name == "" {
		return fmt.Errorf("config.service.name is required")
	}
	if c.Defaults.Priority == "" {
		return fmt.Errorf("config.defaults.priority is required")
	}
	if !validate.Priority(c.Defaults.Priority) {
		return fmt.Errorf("config.defaults.priority must be low, medium or high")
	}
	if c.Defaults.Category == "" {
		return fmt.Errorf("config.defaults.category is required")
	}
	for name := range c.Categories {
		if name == "" {
			return fmt.Errorf("config.categories contains an empty category id")
		}
	}
	if len(c.Categories) > 0 {
		if _, ok := c.Categories[c.Defaults.Category]; !ok {
			return fmt.Errorf("default category %s not in catalog", c.Defaults.Category)
		}
	}
	return nil
}

// KnownCategory reports whether a category is allowed. An empty catalog
// accepts anything.
func (c *Config) KnownCategory(name string) bool {
	if len(c.Categories) == 0 {
		return true
	}
	_, ok := c.Categories[name]
	return ok
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "checkline.yml")
}

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; create it with cl config init", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// LoadOptional returns nil,nil if the config file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// FromYAML parses and validates config from raw YAML bytes.
func FromYAML(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

// Default returns the default Config struct.
func Default() *Config {
	var cfg Config
	_ = yaml.Unmarshal([]byte(defaultTemplate), &cfg)
	return &cfg
}

// GenerateDefault returns default config YAML.
func GenerateDefault() string {
	return defaultTemplate
}

const defaultTemplate = `service:
  name: checkline

defaults:
  priority: medium
  category: general

categories:
  general:
    description: "Uncategorized checklists"
  safety:
    description: "Site and equipment safety inspections"
  maintenance:
    description: "Preventive and corrective maintenance rounds"
  quality:
    description: "Quality assurance walkthroughs"
  onboarding:
    description: "New collaborator onboarding steps"

auth:
  allow_legacy_email_header: false
`
