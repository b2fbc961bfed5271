package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/mattjoyce/dagwright/internal/template"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		env     map[string]string
		wantErr bool
		checkFn func(t *testing.T, cfg *Config, dir string)
	}{
		{
			name: "minimal config uses built-in variables",
			yaml: `
generator:
  template: templates/etl.yml
`,
			checkFn: func(t *testing.T, cfg *Config, dir string) {
				if cfg.Generator.TemplatePath != filepath.Join(dir, "templates/etl.yml") {
					t.Errorf("template not resolved against config dir: %s", cfg.Generator.TemplatePath)
				}
				if cfg.Generator.OutputPath != filepath.Join(dir, "dags/dynamic_etl.yml") {
					t.Errorf("default output not applied: %s", cfg.Generator.OutputPath)
				}
				if cfg.Generator.DagsDir != filepath.Join(dir, "dags") {
					t.Errorf("dags_dir not derived from output: %s", cfg.Generator.DagsDir)
				}
				if cfg.Generator.LockPath != filepath.Join(dir, "dags/.dagwright.lock") {
					t.Errorf("lock_path not derived from dags_dir: %s", cfg.Generator.LockPath)
				}
				if len(cfg.Variables) != 3 {
					t.Errorf("expected 3 built-in variable sets, got %d", len(cfg.Variables))
				}
				if cfg.Log.Level != "info" || cfg.Log.Format != "json" {
					t.Errorf("log defaults not applied: %+v", cfg.Log)
				}
				if !cfg.Generator.ChecksumsEnabled() {
					t.Error("checksums should default to enabled")
				}
			},
		},
		{
			name: "ordered variable sets",
			yaml: `
generator:
  template: /abs/template.yml
  output: /abs/out.yml
  write_checksums: false
log:
  level: debug
  format: text
variables:
  - "<< dag_id >>": orders
    "<< table_name >>": order_lines
  - "<< dag_id >>": customers
    "<< table_name >>": accounts
`,
			checkFn: func(t *testing.T, cfg *Config, dir string) {
				if cfg.Generator.TemplatePath != "/abs/template.yml" {
					t.Errorf("absolute path rewritten: %s", cfg.Generator.TemplatePath)
				}
				if cfg.Generator.ChecksumsEnabled() {
					t.Error("write_checksums: false not honoured")
				}
				if len(cfg.Variables) != 2 {
					t.Fatalf("expected 2 sets, got %d", len(cfg.Variables))
				}
				first := cfg.Variables[0]
				if first[0].Token != "<< dag_id >>" || first[0].Value != "orders" {
					t.Errorf("unexpected first substitution: %+v", first[0])
				}
				if first[1].Token != "<< table_name >>" {
					t.Errorf("order not preserved: %+v", first)
				}
			},
		},
		{
			name: "env var interpolation",
			yaml: `
generator:
  output: ${OUT_DIR}/dynamic.yml
variables:
  - "<< dag_id >>": ${DAG_NAME}
`,
			env: map[string]string{"OUT_DIR": "/tmp/dags", "DAG_NAME": "from_env"},
			checkFn: func(t *testing.T, cfg *Config, dir string) {
				if cfg.Generator.OutputPath != "/tmp/dags/dynamic.yml" {
					t.Errorf("env var not interpolated in output: %s", cfg.Generator.OutputPath)
				}
				if v, _ := cfg.Variables[0].Lookup("<< dag_id >>"); v != "from_env" {
					t.Errorf("env var not interpolated in variables: %v", v)
				}
			},
		},
		{
			name: "missing env var fails validation",
			yaml: `
variables:
  - "<< dag_id >>": ${DAGWRIGHT_TEST_MISSING_VAR}
`,
			wantErr: true,
		},
		{
			name:    "invalid log level",
			yaml:    "log:\n  level: loud\n",
			wantErr: true,
		},
		{
			name:    "invalid log format",
			yaml:    "log:\n  format: xml\n",
			wantErr: true,
		},
		{
			name:    "token without delimiters",
			yaml:    "variables:\n  - dag_id: orders\n",
			wantErr: true,
		},
		{
			name:    "empty variable list",
			yaml:    "variables: []\n",
			wantErr: true,
		},
		{
			name:    "empty variable set",
			yaml:    "variables:\n  - {}\n",
			wantErr: true,
		},
		{
			name:    "variable set is not a mapping",
			yaml:    "variables:\n  - [a, b]\n",
			wantErr: true,
		},
		{
			name:    "invalid YAML",
			yaml:    "generator: [\n",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			dir := t.TempDir()
			path := filepath.Join(dir, "dagwright.yaml")
			if err := os.WriteFile(path, []byte(tt.yaml), 0o644); err != nil {
				t.Fatal(err)
			}

			cfg, err := Load(path)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			if cfg.SourcePath != path {
				t.Errorf("SourcePath = %q, want %q", cfg.SourcePath, path)
			}
			tt.checkFn(t, cfg, dir)
		})
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load(\"\") error = %v", err)
	}
	if cfg.Generator.TemplatePath != "include/scripts/template.yml" {
		t.Errorf("TemplatePath = %q", cfg.Generator.TemplatePath)
	}
	if cfg.Generator.OutputPath != "dags/dynamic_etl.yml" {
		t.Errorf("OutputPath = %q", cfg.Generator.OutputPath)
	}
	if len(cfg.Variables) != len(template.DefaultSets()) {
		t.Errorf("Variables = %d sets", len(cfg.Variables))
	}
	if cfg.SourcePath != "" {
		t.Errorf("SourcePath = %q, want empty", cfg.SourcePath)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestDiscover(t *testing.T) {
	dir := t.TempDir()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })

	t.Setenv("DAGWRIGHT_CONFIG", "")
	if got := Discover(); got != "" {
		t.Errorf("Discover() = %q, want empty", got)
	}

	if err := os.WriteFile(filepath.Join(dir, DefaultConfigFile), []byte("{}\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if got := Discover(); got != DefaultConfigFile {
		t.Errorf("Discover() = %q, want %q", got, DefaultConfigFile)
	}

	t.Setenv("DAGWRIGHT_CONFIG", "/etc/dagwright/custom.yaml")
	if got := Discover(); got != "/etc/dagwright/custom.yaml" {
		t.Errorf("Discover() = %q, want env path", got)
	}
}
