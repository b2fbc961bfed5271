// Package doctor checks a dagwright project for problems generate would
// either reject or silently tolerate.
package doctor

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/mattjoyce/dagwright/internal/config"
	"github.com/mattjoyce/dagwright/internal/dagfactory"
	"github.com/mattjoyce/dagwright/internal/integrity"
	"github.com/mattjoyce/dagwright/internal/lock"
	"github.com/mattjoyce/dagwright/internal/template"
)

// Result holds the outcome of a validation run.
type Result struct {
	Valid    bool    `json:"valid"`
	Errors   []Issue `json:"errors,omitempty"`
	Warnings []Issue `json:"warnings,omitempty"`
}

// Issue describes a single validation error or warning.
type Issue struct {
	Category string `json:"category"`
	Message  string `json:"message"`
	Field    string `json:"field,omitempty"`
}

// Doctor validates a loaded config against the files it points at.
type Doctor struct {
	cfg       *config.Config
	callables dagfactory.CallableSet
}

// New creates a Doctor from a loaded config and the callables DAG files may
// reference.
func New(cfg *config.Config, callables dagfactory.CallableSet) *Doctor {
	return &Doctor{cfg: cfg, callables: callables}
}

// Validate runs all checks and returns a result.
func (d *Doctor) Validate() *Result {
	r := &Result{Valid: true}

	if t := d.validateTemplate(r); t != nil {
		d.validateVariables(r, t)
	}
	d.validateOutput(r)
	d.validateDAGs(r)
	d.warnHeldLock(r)

	r.Valid = len(r.Errors) == 0
	return r
}

func (d *Doctor) addError(r *Result, category, field, msg string) {
	r.Errors = append(r.Errors, Issue{Category: category, Field: field, Message: msg})
}

func (d *Doctor) addWarning(r *Result, category, field, msg string) {
	r.Warnings = append(r.Warnings, Issue{Category: category, Field: field, Message: msg})
}

// validateTemplate loads the template; it returns nil when that fails.
func (d *Doctor) validateTemplate(r *Result) *template.Template {
	t, err := template.Load(d.cfg.Generator.TemplatePath)
	if err != nil {
		d.addError(r, "template", "generator.template", err.Error())
		return nil
	}
	if len(t.Tokens()) == 0 {
		d.addWarning(r, "template", "generator.template",
			"template has no placeholder tokens; every variable set produces the same DAG")
	}
	return t
}

// validateVariables compares each set against the template's tokens and
// dry-runs the expansion.
func (d *Doctor) validateVariables(r *Result, t *template.Template) {
	tokens := t.Tokens()

	for i, set := range d.cfg.Variables {
		field := fmt.Sprintf("variables[%d]", i)

		var missing []string
		for _, tok := range tokens {
			if _, ok := set.Lookup(tok); !ok {
				missing = append(missing, tok)
			}
		}
		if len(missing) > 0 {
			d.addWarning(r, "unresolved", field,
				fmt.Sprintf("no value for %s; the marker stays in the output", strings.Join(missing, ", ")))
		}

		for _, sub := range set {
			if !slices.Contains(tokens, sub.Token) {
				d.addWarning(r, "unused", field,
					fmt.Sprintf("%s does not appear in the template", sub.Token))
			}
		}
	}

	report, err := template.ExpandAllReport(t, d.cfg.Variables)
	if err != nil {
		d.addError(r, "variables", "variables", err.Error())
		return
	}
	for _, key := range report.Overwritten {
		d.addWarning(r, "collision", "variables",
			fmt.Sprintf("more than one variable set produces dag %q; only the last is kept", key))
	}
}

// validateOutput checks the output directory exists and that the previous
// output has not been edited by hand.
func (d *Doctor) validateOutput(r *Result) {
	dir := filepath.Dir(d.cfg.Generator.OutputPath)
	info, err := os.Stat(dir)
	if err != nil {
		d.addError(r, "output", "generator.output", fmt.Sprintf("output directory: %v", err))
		return
	}
	if !info.IsDir() {
		d.addError(r, "output", "generator.output", fmt.Sprintf("%s is not a directory", dir))
		return
	}

	results, err := integrity.Verify(dir)
	if errors.Is(err, integrity.ErrNoManifest) {
		return
	}
	if err != nil && results == nil {
		d.addWarning(r, "integrity", "", err.Error())
		return
	}
	for _, res := range results {
		if res.Status != integrity.StatusOK {
			d.addWarning(r, "integrity", res.Filename,
				fmt.Sprintf("%s since the last generate; the next run overwrites it", res.Status))
		}
	}
}

// validateDAGs compiles every DAG file in the DAGs folder.
func (d *Doctor) validateDAGs(r *Result) {
	dir := d.cfg.Generator.DagsDir
	if _, err := os.Stat(dir); err != nil {
		d.addError(r, "dags", "generator.dags_dir", fmt.Sprintf("dags directory: %v", err))
		return
	}
	if _, err := dagfactory.LoadDir(dir, d.cfg.Generator.Suffixes, d.callables); err != nil {
		d.addError(r, "dags", "generator.dags_dir", err.Error())
	}
}

// warnHeldLock warns when another generate run holds the lock or the lock
// cannot exclude runs on other hosts.
func (d *Doctor) warnHeldLock(r *Result) {
	path := d.cfg.Generator.LockPath
	if err := lock.CheckLocalFilesystem(path); err != nil {
		d.addWarning(r, "lock", "generator.lock_path", err.Error())
	}
	if _, err := os.Stat(filepath.Dir(path)); err != nil {
		return
	}
	l, err := lock.Acquire(path)
	if errors.Is(err, lock.ErrHeld) {
		d.addWarning(r, "lock", "generator.lock_path",
			fmt.Sprintf("held by pid %s; generate will fail until it finishes", lock.Holder(path)))
		return
	}
	if err == nil {
		_ = l.Release()
	}
}

// FormatHuman returns a human-readable validation report.
func FormatHuman(r *Result) string {
	var b strings.Builder

	if r.Valid && len(r.Warnings) == 0 {
		b.WriteString("Project valid.\n")
		return b.String()
	}

	if r.Valid {
		fmt.Fprintf(&b, "Project valid (%d warning(s))\n", len(r.Warnings))
	} else {
		fmt.Fprintf(&b, "Project invalid (%d error(s), %d warning(s))\n", len(r.Errors), len(r.Warnings))
	}

	for _, e := range r.Errors {
		writeIssue(&b, "ERROR", e)
	}
	for _, w := range r.Warnings {
		writeIssue(&b, "WARN ", w)
	}
	return b.String()
}

func writeIssue(b *strings.Builder, label string, i Issue) {
	if i.Field != "" {
		fmt.Fprintf(b, "  %s [%s] %s: %s\n", label, i.Category, i.Field, i.Message)
	} else {
		fmt.Fprintf(b, "  %s [%s] %s\n", label, i.Category, i.Message)
	}
}

// FormatJSON returns the result as indented JSON.
func FormatJSON(r *Result) (string, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}
