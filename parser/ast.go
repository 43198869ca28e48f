// Package parser builds the abstract syntax tree for a template. Nodes
// borrow from the source they were parsed from and carry byte spans for
// diagnostics; a tree must not outlive its source.
package parser

import (
	"strings"

	"github.com/bracket-lang/bracket/source"
)

// A Node is one element of the parsed template tree.
type Node interface {
	Span() source.Span
}

type node struct {
	span source.Span
}

func (n node) Span() source.Span { return n.span }

// A Template is the parse result: the source and its root node sequence.
type Template struct {
	Src   *source.Source
	Nodes []Node
}

// Text is a literal run of template text, emitted verbatim subject to
// whitespace trimming by its neighbors.
type Text struct {
	node
}

// An EscapedOpen is the \{{ escape; it renders as the literal braces.
type EscapedOpen struct {
	node
}

// A Comment is discarded during rendering; the span is kept for source
// maps.
type Comment struct {
	node
}

// A RawBlock is {{{{name}}}} … {{{{/name}}}}. The body is a single
// uninterpreted text span.
type RawBlock struct {
	node
	Name     string
	NameSpan source.Span
	Body     source.Span
}

// Trim records the whitespace-control markers of one tag: Trim[0] is the
// ~ after the opening punctuation, Trim[1] the ~ before the closing
// braces.
type Trim [2]bool

// A Statement is a single interpolation, {{x}} or {{{x}}}.
type Statement struct {
	node
	Call    Call
	Escaped bool
	Trim    Trim
}

// A Block is {{#name …}} body {{/name}}. A chained {{else if …}} is
// modeled as an Else branch holding a single nested Block.
type Block struct {
	node
	Call      Call
	Body      []Node
	Else      []Node
	HasElse   bool
	OpenTrim  Trim
	ElseTrim  Trim
	CloseTrim Trim
}

// A PartialTarget names the partial to include: a static path, or a
// sub-expression evaluated to a name at render time.
type PartialTarget struct {
	Name    string
	Dynamic *SubExpr
	Span    source.Span
}

// A Partial is {{> target}}; a PartialBlock ({{#> target}} … {{/target}})
// additionally carries a body exposed to the partial as @partial-block.
type Partial struct {
	node
	Target    PartialTarget
	Hash      []HashPair
	Block     bool
	Body      []Node
	OpenTrim  Trim
	CloseTrim Trim
}

// A Call is a callee plus positional and hash arguments.
type Call struct {
	Callee     Expr // *PathExpr or *SubExpr
	Positional []Expr
	Hash       []HashPair
	span       source.Span
}

func (c Call) Span() source.Span { return c.span }

// A HashPair is one key=value argument. Pairs preserve first-occurrence
// order.
type HashPair struct {
	Key     string
	KeySpan source.Span
	Value   Expr
}

// An Expr is a path, a literal, or a sub-expression.
type Expr interface {
	Span() source.Span
}

// A Literal holds a constant in the value model's shape.
type Literal struct {
	node
	Value interface{}
}

// A SubExpr is a parenthesized call usable wherever an expression is.
type SubExpr struct {
	node
	Call Call
}

// PathKind classifies how path resolution starts.
type PathKind int

const (
	// PathRelative walks from the current scope's base value.
	PathRelative PathKind = iota
	// PathRoot resolves against the root data (leading / or @root).
	PathRoot
	// PathCurrent is this or a bare dot.
	PathCurrent
	// PathParent starts Parent scopes up the stack (../ prefixes).
	PathParent
	// PathLocal starts at an @-local variable.
	PathLocal
	// PathExplicit is anchored to the current base (leading ./, or this.x).
	PathExplicit
)

// A Segment is one step of a path: a plain identifier, or a bracketed
// index holding either an integer or an arbitrary string key.
type Segment struct {
	Text  string
	Num   int64
	IsNum bool
	Span  source.Span
}

// A PathExpr is a reference into the data context.
type PathExpr struct {
	node
	Kind     PathKind
	Parent   int // number of ../ prefixes when Kind is PathParent
	Segments []Segment
}

// Name returns the path's source text, used for helper lookup and block
// close matching.
func (p *PathExpr) Name(src *source.Source) string {
	return p.span.Text(src)
}

// IsHelperName reports whether the path is a bare single identifier, the
// only shape that can name a helper.
func (p *PathExpr) IsHelperName() bool {
	return p.Kind == PathRelative && len(p.Segments) == 1 && !p.Segments[0].IsNum
}

func (p *PathExpr) String() string {
	var b strings.Builder
	switch p.Kind {
	case PathRoot:
		b.WriteString("@root/")
	case PathCurrent:
		b.WriteString("this")
	case PathParent:
		for i := 0; i < p.Parent; i++ {
			b.WriteString("../")
		}
	case PathLocal:
		b.WriteString("@")
	case PathExplicit:
		b.WriteString("./")
	}
	for i, seg := range p.Segments {
		if i > 0 {
			b.WriteByte('.')
		}
		b.WriteString(seg.Text)
	}
	return b.String()
}
