package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/mattjoyce/dagwright/internal/template"
	"gopkg.in/yaml.v3"
)

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// DefaultConfigFile is looked up in the working directory by Discover.
const DefaultConfigFile = "dagwright.yaml"

// Load reads and parses configuration from a file. An empty path returns
// the defaults. Relative paths in the file resolve against its directory.
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		cfg := Defaults()
		if err := validate(cfg); err != nil {
			return nil, fmt.Errorf("invalid configuration: %w", err)
		}
		return cfg, nil
	}

	absPath, err := filepath.Abs(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config path %q: %w", configPath, err)
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s\n"+
				"Hint: Check the path or run with --config flag", absPath)
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal([]byte(interpolateEnv(string(data))), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML in %s: %w", absPath, err)
	}
	cfg.SourcePath = absPath

	applyConfigDefaults(&cfg)
	resolvePaths(&cfg, filepath.Dir(absPath))

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Discover returns the config file to use: $DAGWRIGHT_CONFIG when set,
// otherwise ./dagwright.yaml when it exists, otherwise "" (defaults).
func Discover() string {
	if path := os.Getenv("DAGWRIGHT_CONFIG"); path != "" {
		return path
	}
	if info, err := os.Stat(DefaultConfigFile); err == nil && !info.IsDir() {
		return DefaultConfigFile
	}
	return ""
}

// applyConfigDefaults merges default values into config where not explicitly set.
func applyConfigDefaults(cfg *Config) {
	defaults := Defaults()

	if cfg.Generator.TemplatePath == "" {
		cfg.Generator.TemplatePath = defaults.Generator.TemplatePath
	}
	if cfg.Generator.OutputPath == "" {
		cfg.Generator.OutputPath = defaults.Generator.OutputPath
	}
	if cfg.Generator.DagsDir == "" {
		cfg.Generator.DagsDir = filepath.Dir(cfg.Generator.OutputPath)
	}
	if len(cfg.Generator.Suffixes) == 0 {
		cfg.Generator.Suffixes = defaults.Generator.Suffixes
	}
	if cfg.Generator.LockPath == "" {
		cfg.Generator.LockPath = filepath.Join(cfg.Generator.DagsDir, ".dagwright.lock")
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = defaults.Log.Level
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = defaults.Log.Format
	}

	if cfg.Variables == nil {
		cfg.Variables = defaults.Variables
	}
}

func resolvePaths(cfg *Config, baseDir string) {
	resolve := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(baseDir, p)
	}
	cfg.Generator.TemplatePath = resolve(cfg.Generator.TemplatePath)
	cfg.Generator.OutputPath = resolve(cfg.Generator.OutputPath)
	cfg.Generator.DagsDir = resolve(cfg.Generator.DagsDir)
	cfg.Generator.LockPath = resolve(cfg.Generator.LockPath)
}

// interpolateEnv replaces ${VAR} with environment variable values.
// Undefined variables are left as-is (not expanded).
func interpolateEnv(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		if value, exists := os.LookupEnv(varName); exists {
			return value
		}
		// If not found, leave the placeholder (will fail validation if required)
		return match
	})
}

// validate performs basic validation on the configuration.
func validate(cfg *Config) error {
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[strings.ToLower(cfg.Log.Level)] {
		return fmt.Errorf("log.level must be one of: debug, info, warn, error (got %q)", cfg.Log.Level)
	}
	if f := strings.ToLower(cfg.Log.Format); f != "json" && f != "text" {
		return fmt.Errorf("log.format must be json or text (got %q)", cfg.Log.Format)
	}

	for field, value := range map[string]string{
		"generator.template": cfg.Generator.TemplatePath,
		"generator.output":   cfg.Generator.OutputPath,
		"generator.dags_dir": cfg.Generator.DagsDir,
	} {
		if strings.TrimSpace(value) == "" {
			return fmt.Errorf("%s is required", field)
		}
		if err := checkUnresolvedEnvVar(field, value); err != nil {
			return err
		}
	}
	for i, suffix := range cfg.Generator.Suffixes {
		if strings.TrimSpace(suffix) == "" {
			return fmt.Errorf("generator.suffixes[%d] is empty", i)
		}
	}

	if len(cfg.Variables) == 0 {
		return fmt.Errorf("variables must contain at least one set")
	}
	for i, set := range cfg.Variables {
		if len(set) == 0 {
			return fmt.Errorf("variables[%d] is empty", i)
		}
		for _, sub := range set {
			if !template.IsToken(sub.Token) {
				return fmt.Errorf("variables[%d]: %q is not a placeholder token (want the form %q)",
					i, sub.Token, template.Token("name"))
			}
			if err := checkUnresolvedEnvVar(fmt.Sprintf("variables[%d].%s", i, sub.Token), sub.Replacement()); err != nil {
				return err
			}
		}
	}

	return nil
}

func checkUnresolvedEnvVar(field, value string) error {
	if matches := envVarPattern.FindStringSubmatch(value); len(matches) > 1 {
		return fmt.Errorf("%s: environment variable ${%s} is not set", field, matches[1])
	}
	return nil
}
