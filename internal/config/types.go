package config

import (
	"github.com/mattjoyce/dagwright/internal/template"
)

// Config represents the complete dagwright configuration.
type Config struct {
	Generator GeneratorConfig `yaml:"generator"`
	Log       LogConfig       `yaml:"log"`
	Variables []template.Set  `yaml:"variables,omitempty"`

	// SourcePath is the file the config was loaded from; empty for defaults.
	SourcePath string `yaml:"-"`
}

// GeneratorConfig defines where templates are read and DAG files written.
type GeneratorConfig struct {
	TemplatePath   string   `yaml:"template"`
	OutputPath     string   `yaml:"output"`
	DagsDir        string   `yaml:"dags_dir"`
	Suffixes       []string `yaml:"suffixes,omitempty"`
	LockPath       string   `yaml:"lock_path,omitempty"`
	WriteChecksums *bool    `yaml:"write_checksums,omitempty"`
}

// LogConfig defines logging settings.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// ChecksumsEnabled reports whether a .checksums manifest is written after
// generation.
func (g GeneratorConfig) ChecksumsEnabled() bool {
	return g.WriteChecksums == nil || *g.WriteChecksums
}

// Defaults returns the configuration used when no config file is given:
// the template and output locations of the project layout and the
// built-in variable sets.
func Defaults() *Config {
	return &Config{
		Generator: GeneratorConfig{
			TemplatePath: "include/scripts/template.yml",
			OutputPath:   "dags/dynamic_etl.yml",
			DagsDir:      "dags",
			Suffixes:     []string{".yml"},
			LockPath:     "dags/.dagwright.lock",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Variables: template.DefaultSets(),
	}
}
