package template

import (
	"fmt"
	"strings"
)

// TemplateLoadError reports a template file that is missing, unreadable, or
// not a mapping-rooted YAML document.
type TemplateLoadError struct {
	Path string
	Err  error
}

func (e *TemplateLoadError) Error() string {
	return fmt.Sprintf("load template %s: %v", e.Path, e.Err)
}

func (e *TemplateLoadError) Unwrap() error { return e.Err }

// UnexpectedTemplateShapeError reports a populated template that does not
// have exactly one top-level key.
type UnexpectedTemplateShapeError struct {
	Keys []string
	// Err is set when the rewritten text could not be parsed at all.
	Err error
}

func (e *UnexpectedTemplateShapeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("unexpected format from populated template: %v", e.Err)
	}
	return fmt.Sprintf("unexpected format from populated template: got %d top-level keys [%s], want 1",
		len(e.Keys), strings.Join(e.Keys, ", "))
}

func (e *UnexpectedTemplateShapeError) Unwrap() error { return e.Err }

// PersistError reports a failure writing the generated collection.
type PersistError struct {
	Path string
	Err  error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("persist %s: %v", e.Path, e.Err)
}

func (e *PersistError) Unwrap() error { return e.Err }
