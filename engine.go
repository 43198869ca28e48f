// Package bracket is a template engine compatible with the Handlebars
// surface syntax: interpolation, block helpers, partials, comments, and
// raw blocks, rendered against JSON-shaped data.
package bracket

import (
	"log/slog"

	"github.com/bracket-lang/bracket/helpers"
	"github.com/bracket-lang/bracket/parser"
	"github.com/bracket-lang/bracket/render"
	"github.com/bracket-lang/bracket/source"
)

// An Engine owns a registry of templates, partials, and helpers.
// Register everything first; a configured engine is read-only during
// rendering and safe to share across goroutines.
type Engine struct {
	cfg       *render.Config
	templates map[string]*Template
}

// NewEngine creates an engine with the standard helpers and the default
// HTML escape registered.
func NewEngine() *Engine {
	cfg := render.NewConfig()
	helpers.AddStandardHelpers(cfg)
	helpers.AddStandardBlockHelpers(cfg)
	return &Engine{cfg: cfg, templates: map[string]*Template{}}
}

// RegisterHelper registers an expression helper.
func (e *Engine) RegisterHelper(name string, h render.Helper) {
	e.cfg.AddHelper(name, h)
}

// RegisterBlockHelper registers a block helper.
func (e *Engine) RegisterBlockHelper(name string, h render.BlockHelper) {
	e.cfg.AddBlockHelper(name, h)
}

// SetEscape replaces the escape function applied to {{x}} output.
func (e *Engine) SetEscape(fn render.EscapeFunc) {
	e.cfg.SetEscape(fn)
}

// SetLogger replaces the sink the log helper writes to.
func (e *Engine) SetLogger(l *slog.Logger) {
	e.cfg.SetLogger(l)
}

// RegisterTemplate compiles src and stores it under name for Render.
func (e *Engine) RegisterTemplate(name, src string) (*Template, error) {
	tmpl, err := e.parse(name, src)
	if err != nil {
		return nil, err
	}
	e.templates[name] = tmpl
	return tmpl, nil
}

// RegisterPartial compiles src and makes it available to {{> name}}.
// The engine keeps the source string alive for the partial's lifetime.
func (e *Engine) RegisterPartial(name, src string) error {
	tmpl, err := e.parse(name, src)
	if err != nil {
		return err
	}
	e.cfg.AddPartial(name, tmpl.tree)
	return nil
}

// ParseTemplate compiles an anonymous template bound to this engine's
// registry.
func (e *Engine) ParseTemplate(src string) (*Template, error) {
	return e.parse("", src)
}

func (e *Engine) parse(name, src string) (*Template, error) {
	tree, err := parser.Parse(source.New(name, src))
	if err != nil {
		return nil, err
	}
	return &Template{tree: tree, cfg: e.cfg}, nil
}

// Template returns the template registered under name, or nil.
func (e *Engine) Template(name string) *Template {
	return e.templates[name]
}

// Render renders the registered template name against data.
func (e *Engine) Render(name string, data interface{}) (string, error) {
	tmpl, ok := e.templates[name]
	if !ok {
		return "", source.Errorf(source.UnknownPartial, nil, source.Span{}, "no template registered as %q", name)
	}
	return tmpl.RenderString(data)
}

// ParseAndRenderString parses src and renders it against data in one
// step.
func (e *Engine) ParseAndRenderString(src string, data interface{}) (string, error) {
	tmpl, err := e.ParseTemplate(src)
	if err != nil {
		return "", err
	}
	return tmpl.RenderString(data)
}
