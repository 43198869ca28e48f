// Package render walks a parsed template against a data context and a
// registry of helpers and partials, producing text output.
package render

import (
	"log/slog"
	"strings"

	"github.com/bracket-lang/bracket/parser"
)

// A Helper produces a value for a statement or argument position. It may
// also write directly to the output through its Context.
type Helper func(ctx *Context) (interface{}, error)

// A BlockHelper wraps an inner template fragment. It receives render
// handles for the body and the else branch and may invoke them zero or
// more times, under scopes of its choosing.
type BlockHelper func(ctx *Context) error

// An EscapeFunc rewrites statement output before it is emitted. Escape
// errors abort the render.
type EscapeFunc func(string) (string, error)

var htmlReplacer = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&#x27;",
)

// EscapeHTML is the default escape function, covering &<>"'.
func EscapeHTML(s string) (string, error) {
	return htmlReplacer.Replace(s), nil
}

// A Config is the registry a render runs against: helper tables, the
// partial table, the escape function, and the log sink. Registration is
// single-threaded and must finish before the first render; after that a
// Config is read-only and may be shared across goroutines.
type Config struct {
	helpers      map[string]Helper
	blockHelpers map[string]BlockHelper
	partials     map[string]*parser.Template
	escape       EscapeFunc
	logger       *slog.Logger
}

// NewConfig creates a Config with the default HTML escape and the
// default slog sink. No helpers are registered.
func NewConfig() *Config {
	return &Config{
		helpers:      map[string]Helper{},
		blockHelpers: map[string]BlockHelper{},
		partials:     map[string]*parser.Template{},
		escape:       EscapeHTML,
		logger:       slog.Default(),
	}
}

// AddHelper registers an expression helper.
func (c *Config) AddHelper(name string, h Helper) {
	c.helpers[name] = h
}

// AddBlockHelper registers a block helper.
func (c *Config) AddBlockHelper(name string, h BlockHelper) {
	c.blockHelpers[name] = h
}

// AddPartial registers a compiled partial. The template's source is
// owned by the caller and must outlive the Config.
func (c *Config) AddPartial(name string, tmpl *parser.Template) {
	c.partials[name] = tmpl
}

// SetEscape replaces the escape function used for {{x}} statements.
func (c *Config) SetEscape(fn EscapeFunc) {
	c.escape = fn
}

// SetLogger replaces the sink the log helper writes to.
func (c *Config) SetLogger(l *slog.Logger) {
	c.logger = l
}

// Helper returns the named expression helper, or nil.
func (c *Config) Helper(name string) Helper { return c.helpers[name] }

// BlockHelper returns the named block helper, or nil.
func (c *Config) BlockHelper(name string) BlockHelper { return c.blockHelpers[name] }

// Partial returns the named partial, or nil.
func (c *Config) Partial(name string) *parser.Template { return c.partials[name] }

// Logger returns the configured log sink.
func (c *Config) Logger() *slog.Logger { return c.logger }
