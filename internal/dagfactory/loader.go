package dagfactory

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
)

// DefaultSuffixes are the file suffixes LoadDir picks up when none are given.
var DefaultSuffixes = []string{".yml"}

// LoadDir compiles every DAG file under dir whose name ends in one of
// suffixes. A DAG id defined in more than one file is an error.
func LoadDir(dir string, suffixes []string, callables CallableSet) (*Set, error) {
	files, err := DiscoverFiles(dir, suffixes)
	if err != nil {
		return nil, err
	}

	out := &Set{DAGs: make(map[string]*DAG)}
	for _, path := range files {
		set, err := LoadAndCompile(path, callables)
		if err != nil {
			return nil, err
		}
		for id, dag := range set.DAGs {
			if prev, exists := out.DAGs[id]; exists {
				return nil, fmt.Errorf("duplicate dag id %q in %s (already defined in %s)", id, path, prev.Source)
			}
			out.DAGs[id] = dag
		}
	}
	return out, nil
}

// LoadAndCompile loads one DAG file and compiles it.
func LoadAndCompile(path string, callables CallableSet) (*Set, error) {
	spec, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	set, err := Compile(spec, callables)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return set, nil
}

// DiscoverFiles returns the sorted paths of files under dir matching
// suffixes. Hidden files and directories are skipped.
func DiscoverFiles(dir string, suffixes []string) ([]string, error) {
	if len(suffixes) == 0 {
		suffixes = DefaultSuffixes
	}

	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		name := d.Name()
		if path != dir && strings.HasPrefix(name, ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		for _, suffix := range suffixes {
			if strings.HasSuffix(name, suffix) {
				files = append(files, path)
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk dags dir %s: %w", dir, err)
	}
	sort.Strings(files)
	return files, nil
}
