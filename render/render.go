package render

import (
	"bytes"
	"context"
	"io"

	"github.com/bracket-lang/bracket/parser"
	"github.com/bracket-lang/bracket/source"
	"github.com/bracket-lang/bracket/values"
)

// maxPartialDepth bounds partial recursion so a self-including partial
// fails instead of exhausting the stack.
const maxPartialDepth = 128

// Render executes tmpl against data and writes the output to w.
func Render(w io.Writer, tmpl *parser.Template, cfg *Config, data interface{}) error {
	return RenderContext(context.Background(), w, tmpl, cfg, data)
}

// RenderContext is Render with cooperative cancellation: ctx is checked
// before each node visit.
func RenderContext(ctx context.Context, w io.Writer, tmpl *parser.Template, cfg *Config, data interface{}) error {
	root := values.ToValue(data)
	r := &renderer{
		ctx:    ctx,
		cfg:    cfg,
		buf:    &bytes.Buffer{},
		root:   root,
		scopes: []scope{{base: root}},
	}
	if err := r.renderNodes(tmpl.Src, tmpl.Nodes); err != nil {
		return err
	}
	if _, err := r.buf.WriteTo(w); err != nil {
		return source.Wrap(err, source.IoError, tmpl.Src, source.Span{}, "writing output")
	}
	return nil
}

// A scope is one frame of the render stack: a base value the relative
// paths resolve against, plus @-local variables.
type scope struct {
	base   interface{}
	locals map[string]interface{}
}

// partialBlock is the value bound to @partial-block: the inner template
// fragment of a partial-block invocation. Referencing it renders the
// fragment under the referencing scope.
type partialBlock struct {
	src   *source.Source
	nodes []parser.Node
}

type renderer struct {
	ctx          context.Context
	cfg          *Config
	buf          *bytes.Buffer
	root         interface{}
	scopes       []scope
	trimPending  bool // a right-trim marker is waiting for the next text
	textFloor    int  // output below this offset is not trimmable
	partialDepth int
}

func (r *renderer) current() *scope { return &r.scopes[len(r.scopes)-1] }

func (r *renderer) push(base interface{}, locals map[string]interface{}) {
	r.scopes = append(r.scopes, scope{base: base, locals: locals})
}

func (r *renderer) pop() {
	r.scopes = r.scopes[:len(r.scopes)-1]
}

// writeText emits literal template text, honoring a pending right-trim:
// leading spaces and tabs are dropped through the first newline.
func (r *renderer) writeText(s string) {
	if r.trimPending {
		i := 0
		for i < len(s) && (s[i] == ' ' || s[i] == '\t' || s[i] == '\r') {
			i++
		}
		if i < len(s) {
			if s[i] == '\n' {
				i++
			}
			r.trimPending = false
		}
		s = s[i:]
	}
	r.buf.WriteString(s)
}

// writeOutput emits produced (non-text) output. It cancels any pending
// right-trim and raises the trim floor so a later left-trim cannot eat
// what a helper or statement wrote.
func (r *renderer) writeOutput(s string) {
	r.trimPending = false
	r.buf.WriteString(s)
	r.textFloor = r.buf.Len()
}

// trimLeft removes the output's trailing spaces and tabs plus the most
// recent newline, stopping at the trim floor.
func (r *renderer) trimLeft() {
	b := r.buf.Bytes()
	i := len(b)
	for i > r.textFloor && (b[i-1] == ' ' || b[i-1] == '\t' || b[i-1] == '\r') {
		i--
	}
	if i > r.textFloor && b[i-1] == '\n' {
		i--
		if i > r.textFloor && b[i-1] == '\r' {
			i--
		}
	}
	r.buf.Truncate(i)
}

func (r *renderer) cancelled(src *source.Source, span source.Span) error {
	select {
	case <-r.ctx.Done():
		return source.Errorf(source.Cancelled, src, span, "render cancelled: %s", r.ctx.Err())
	default:
		return nil
	}
}

func (r *renderer) renderNodes(src *source.Source, nodes []parser.Node) error {
	for _, n := range nodes {
		if err := r.cancelled(src, n.Span()); err != nil {
			return err
		}
		switch n := n.(type) {
		case *parser.Text:
			r.writeText(n.Span().Text(src))
		case *parser.EscapedOpen:
			r.writeOutput("{{")
		case *parser.Comment:
			// Skipped; a pending trim passes through to the next text.
		case *parser.RawBlock:
			r.writeOutput(n.Body.Text(src))
		case *parser.Statement:
			if err := r.renderStatement(src, n); err != nil {
				return err
			}
		case *parser.Block:
			if err := r.renderBlock(src, n); err != nil {
				return err
			}
		case *parser.Partial:
			if err := r.renderPartial(src, n); err != nil {
				return err
			}
		}
	}
	return nil
}

func (r *renderer) renderStatement(src *source.Source, n *parser.Statement) error {
	if n.Trim[0] {
		r.trimLeft()
	}
	v, err := r.evalCall(src, &n.Call)
	if err != nil {
		return err
	}
	switch v := v.(type) {
	case *partialBlock:
		if err := r.renderNodes(v.src, v.nodes); err != nil {
			return err
		}
	default:
		out := values.ToString(v)
		if n.Escaped {
			out, err = r.cfg.escape(out)
			if err != nil {
				return source.Wrap(err, source.EscapeError, src, n.Span(), "escaping output")
			}
		}
		r.writeOutput(out)
	}
	if n.Trim[1] {
		r.trimPending = true
	}
	return nil
}

// evalCall evaluates a call in value position: helper dispatch when the
// callee names a helper, plain path resolution otherwise.
func (r *renderer) evalCall(src *source.Source, call *parser.Call) (interface{}, error) {
	switch callee := call.Callee.(type) {
	case *parser.PathExpr:
		if callee.IsHelperName() {
			name := callee.Segments[0].Text
			if h := r.cfg.Helper(name); h != nil {
				return r.invokeHelper(src, call, name, h)
			}
			if len(call.Positional) > 0 || len(call.Hash) > 0 {
				return nil, source.Errorf(source.UnknownHelper, src, callee.Span(), "unknown helper %q", name)
			}
		}
		if len(call.Positional) > 0 || len(call.Hash) > 0 {
			return nil, source.Errorf(source.UnknownHelper, src, callee.Span(),
				"%q takes no arguments: only helpers do", callee.Name(src))
		}
		return r.resolvePath(src, callee)
	case *parser.SubExpr:
		v, err := r.evalCall(src, &callee.Call)
		if err != nil {
			return nil, err
		}
		if len(call.Positional) > 0 || len(call.Hash) > 0 {
			return nil, source.Errorf(source.UnknownHelper, src, callee.Span(),
				"a sub-expression callee takes no arguments")
		}
		return v, nil
	}
	return nil, source.Errorf(source.UnexpectedToken, src, call.Span(), "unsupported call target")
}

func (r *renderer) invokeHelper(src *source.Source, call *parser.Call, name string, h Helper) (interface{}, error) {
	ctx := newContext(r, src, call, name, nil)
	v, err := h(ctx)
	if err != nil {
		return nil, source.Wrap(err, source.HelperError, src, call.Span(), "in helper "+name)
	}
	return values.ToValue(v), nil
}

func (r *renderer) evalExpr(src *source.Source, e parser.Expr) (interface{}, error) {
	switch e := e.(type) {
	case *parser.Literal:
		return e.Value, nil
	case *parser.PathExpr:
		return r.resolvePath(src, e)
	case *parser.SubExpr:
		return r.evalCall(src, &e.Call)
	}
	return nil, source.Errorf(source.UnexpectedToken, src, e.Span(), "unsupported expression")
}

// resolvePath resolves a path against the scope stack. Missing values
// resolve to nil; only an over-deep parent walk is an error.
func (r *renderer) resolvePath(src *source.Source, p *parser.PathExpr) (interface{}, error) {
	switch p.Kind {
	case parser.PathRoot:
		return walkSegments(r.root, p.Segments), nil
	case parser.PathParent:
		if p.Parent > len(r.scopes)-1 {
			return nil, source.Errorf(source.InvalidPath, src, p.Span(),
				"parent path exceeds scope depth %d", len(r.scopes))
		}
		base := r.scopes[len(r.scopes)-1-p.Parent].base
		return walkSegments(base, p.Segments), nil
	case parser.PathLocal:
		name := p.Segments[0].Text
		for i := len(r.scopes) - 1; i >= 0; i-- {
			if v, ok := r.scopes[i].locals[name]; ok {
				return walkSegments(v, p.Segments[1:]), nil
			}
		}
		return nil, nil
	case parser.PathCurrent:
		return r.current().base, nil
	default: // PathExplicit, PathRelative
		return walkSegments(r.current().base, p.Segments), nil
	}
}

// walkSegments applies path segments one by one. An object segment on a
// non-object and an index segment on a non-array both yield nil.
func walkSegments(v interface{}, segs []parser.Segment) interface{} {
	for _, seg := range segs {
		switch cur := v.(type) {
		case *values.Object:
			v, _ = cur.Get(seg.Text)
		case []interface{}:
			switch {
			case seg.IsNum:
				if seg.Num < 0 || seg.Num >= int64(len(cur)) {
					return nil
				}
				v = cur[seg.Num]
			case seg.Text == "length":
				v = int64(len(cur))
			default:
				return nil
			}
		case *partialBlock:
			return nil
		default:
			return nil
		}
	}
	return v
}

func (r *renderer) renderBlock(src *source.Source, b *parser.Block) error {
	if b.OpenTrim[0] {
		r.trimLeft()
	}
	ctx := newContext(r, src, &b.Call, "", b)

	var err error
	if path, ok := b.Call.Callee.(*parser.PathExpr); ok && path.IsHelperName() {
		name := path.Segments[0].Text
		if bh := r.cfg.BlockHelper(name); bh != nil {
			ctx.name = name
			if herr := bh(ctx); herr != nil {
				err = source.Wrap(herr, source.HelperError, src, b.Call.Span(), "in block helper "+name)
			}
		} else if r.cfg.Helper(name) != nil {
			err = source.Errorf(source.UnknownHelper, src, path.Span(), "%q is not a block helper", name)
		} else if len(b.Call.Positional) > 0 || len(b.Call.Hash) > 0 {
			err = source.Errorf(source.UnknownHelper, src, path.Span(), "unknown helper %q", name)
		} else {
			err = r.defaultBlock(src, ctx, path)
		}
	} else {
		err = r.defaultBlockValue(ctx, &b.Call)
	}
	if err != nil {
		return err
	}

	if b.CloseTrim[0] {
		r.trimLeft()
	}
	if b.CloseTrim[1] {
		r.trimPending = true
	}
	return nil
}

// defaultBlock implements the reference semantics for a block whose
// callee is a plain path: truthy renders the body scoped to the value,
// falsy renders the else branch.
func (r *renderer) defaultBlock(src *source.Source, ctx *Context, path *parser.PathExpr) error {
	v, err := r.resolvePath(src, path)
	if err != nil {
		return err
	}
	if values.Truthy(v) {
		return ctx.RenderBodyWith(v, nil)
	}
	return ctx.RenderElse()
}

func (r *renderer) defaultBlockValue(ctx *Context, call *parser.Call) error {
	v, err := r.evalCall(ctx.src, call)
	if err != nil {
		return err
	}
	if values.Truthy(v) {
		return ctx.RenderBodyWith(v, nil)
	}
	return ctx.RenderElse()
}

func (r *renderer) renderPartial(src *source.Source, n *parser.Partial) error {
	if n.OpenTrim[0] {
		r.trimLeft()
	}

	name := n.Target.Name
	if n.Target.Dynamic != nil {
		v, err := r.evalCall(src, &n.Target.Dynamic.Call)
		if err != nil {
			return err
		}
		s, ok := v.(string)
		if !ok {
			return source.Errorf(source.UnknownPartial, src, n.Target.Span,
				"dynamic partial target must evaluate to a string")
		}
		name = s
	}
	tmpl := r.cfg.Partial(name)
	if tmpl == nil {
		return source.Errorf(source.UnknownPartial, src, n.Target.Span, "unknown partial %q", name)
	}
	if r.partialDepth >= maxPartialDepth {
		return source.Errorf(source.HelperError, src, n.Span(),
			"partial %q nested more than %d levels deep", name, maxPartialDepth)
	}

	// Hash arguments layer a derived object over the current base.
	base := r.current().base
	if len(n.Hash) > 0 {
		overlay := values.NewObject()
		if obj, ok := base.(*values.Object); ok {
			overlay = obj.Clone()
		}
		for _, pair := range n.Hash {
			v, err := r.evalExpr(src, pair.Value)
			if err != nil {
				return err
			}
			overlay.Set(pair.Key, v)
		}
		base = overlay
	}

	// A plain partial masks any inherited @partial-block: the local is
	// defined only in the immediate dynamic extent of a partial-block.
	locals := map[string]interface{}{"partial-block": nil}
	if n.Block {
		locals["partial-block"] = &partialBlock{src: src, nodes: n.Body}
	}

	r.push(base, locals)
	r.partialDepth++
	err := r.renderNodes(tmpl.Src, tmpl.Nodes)
	r.partialDepth--
	r.pop()
	if err != nil {
		return source.Wrap(err, source.HelperError, src, n.Span(), "included from partial \""+name+"\"")
	}

	if n.Block && n.CloseTrim[0] {
		r.trimLeft()
	}
	switch {
	case n.Block && n.CloseTrim[1]:
		r.trimPending = true
	case !n.Block && n.OpenTrim[1]:
		r.trimPending = true
	}
	return nil
}
