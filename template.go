package bracket

import (
	"bytes"
	"context"
	"io"

	"github.com/bracket-lang/bracket/parser"
	"github.com/bracket-lang/bracket/render"
)

// A Template is a compiled template bound to an engine's registry. It
// knows how to evaluate itself against a data context to produce text.
//
// Use Engine.ParseTemplate or Engine.RegisterTemplate to create one.
type Template struct {
	tree *parser.Template
	cfg  *render.Config
}

// Render executes the template with the given data, which may be any
// JSON-shaped Go value (maps, slices, scalars, structs).
func (t *Template) Render(data interface{}) ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := render.Render(buf, t.tree, t.cfg, data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// RenderString is a convenience wrapper for Render with string output.
func (t *Template) RenderString(data interface{}) (string, error) {
	b, err := t.Render(data)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// RenderWriter renders the template and writes the output to w once the
// render succeeds. ctx cancels the render cooperatively between node
// visits.
func (t *Template) RenderWriter(ctx context.Context, w io.Writer, data interface{}) error {
	return render.RenderContext(ctx, w, t.tree, t.cfg, data)
}

// Tree exposes the parsed node tree, e.g. for AST dumps.
func (t *Template) Tree() *parser.Template {
	return t.tree
}
