// Package loader reads template files on behalf of an engine's partial
// registry. The loader yields owned source strings; the registry keeps
// them alive for the compiled partials' lifetime.
package loader

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	bracket "github.com/bracket-lang/bracket"
)

// DefaultExts are the file extensions tried, in order, when a template
// name has none.
var DefaultExts = []string{".hbs", ".bracket", ".tmpl"}

// A Loader resolves template names against a directory.
type Loader struct {
	Dir  string
	Exts []string
}

// New creates a loader rooted at dir with the default extensions.
func New(dir string) *Loader {
	return &Loader{Dir: dir, Exts: DefaultExts}
}

// Load reads the template called name. It returns the owned source text
// and the resolved path for diagnostics.
func (l *Loader) Load(name string) (string, string, error) {
	candidates := []string{filepath.Join(l.Dir, name)}
	if filepath.Ext(name) == "" {
		for _, ext := range l.Exts {
			candidates = append(candidates, filepath.Join(l.Dir, name+ext))
		}
	}
	for _, path := range candidates {
		data, err := os.ReadFile(path)
		if err == nil {
			return string(data), path, nil
		}
		if !os.IsNotExist(err) {
			return "", "", err
		}
	}
	return "", "", fmt.Errorf("template %q not found under %s", name, l.Dir)
}

// LoadDir registers every template file under the loader's directory as
// a partial on e. Partial names are slash-separated paths relative to
// the directory, without the extension: pages/header.hbs registers as
// pages/header.
func (l *Loader) LoadDir(e *bracket.Engine) error {
	return filepath.WalkDir(l.Dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		name, ok := l.nameFor(path)
		if !ok {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		return e.RegisterPartial(name, string(data))
	})
}

// nameFor maps a file path back to its partial name; non-template
// extensions are skipped.
func (l *Loader) nameFor(path string) (string, bool) {
	ext := filepath.Ext(path)
	known := false
	for _, e := range l.Exts {
		if ext == e {
			known = true
			break
		}
	}
	if !known {
		return "", false
	}
	rel, err := filepath.Rel(l.Dir, path)
	if err != nil {
		return "", false
	}
	rel = strings.TrimSuffix(rel, ext)
	return filepath.ToSlash(rel), true
}
