package parser

import (
	"strconv"
	"strings"

	"github.com/bracket-lang/bracket/lexer"
	"github.com/bracket-lang/bracket/source"
	"github.com/bracket-lang/bracket/values"
)

// Parse compiles src into a template tree.
func Parse(src *source.Source) (*Template, error) {
	p := &parser{src: src, lex: lexer.New(src)}
	nodes, term, err := p.parseNodes()
	if err != nil {
		return nil, err
	}
	switch term.kind {
	case termEOF:
		return &Template{Src: src, Nodes: nodes}, nil
	case termElse:
		return nil, p.errorf(source.UnexpectedToken, term.span, "{{else}} outside of a block")
	default:
		return nil, p.errorf(source.UnexpectedToken, term.span, "closing tag {{/%s}} has no open block", term.name)
	}
}

// ParseString is a convenience wrapper naming the source for diagnostics.
func ParseString(name, content string) (*Template, error) {
	return Parse(source.New(name, content))
}

type parser struct {
	src *source.Source
	lex *lexer.Lexer
	buf []lexer.Token
}

func (p *parser) next() (lexer.Token, error) {
	if n := len(p.buf); n > 0 {
		tok := p.buf[n-1]
		p.buf = p.buf[:n-1]
		return tok, nil
	}
	return p.lex.Next()
}

func (p *parser) unread(tok lexer.Token) {
	p.buf = append(p.buf, tok)
}

func (p *parser) nextNonWS() (lexer.Token, error) {
	for {
		tok, err := p.next()
		if err != nil || tok.Kind != lexer.Whitespace {
			return tok, err
		}
	}
}

func (p *parser) expect(kind lexer.Kind) (lexer.Token, error) {
	tok, err := p.nextNonWS()
	if err != nil {
		return tok, err
	}
	if tok.Kind != kind {
		return tok, p.errorf(source.UnexpectedToken, tok.Span, "expected %s, found %s", kind, tok.Kind)
	}
	return tok, nil
}

func (p *parser) errorf(kind source.ErrorKind, span source.Span, format string, args ...interface{}) error {
	return source.Errorf(kind, p.src, span, format, args...)
}

type termKind int

const (
	termEOF termKind = iota
	termClose
	termElse
)

// terminator describes what ended a node sequence: end of input, a
// {{/name}} close tag, or an {{else}} / {{else if …}} marker.
type terminator struct {
	kind     termKind
	span     source.Span
	name     string
	nameSpan source.Span
	trim     Trim
	elseIf   *Call
}

// parseNodes consumes nodes until a terminator. The caller decides
// whether the terminator is legal where it appeared.
func (p *parser) parseNodes() ([]Node, terminator, error) {
	var nodes []Node
	for {
		tok, err := p.next()
		if err != nil {
			return nil, terminator{}, err
		}
		switch tok.Kind {
		case lexer.EOF:
			return nodes, terminator{kind: termEOF, span: tok.Span}, nil
		case lexer.RawText, lexer.Newline:
			span := tok.Span
			for {
				t2, err := p.next()
				if err != nil {
					return nil, terminator{}, err
				}
				if t2.Kind != lexer.RawText && t2.Kind != lexer.Newline {
					p.unread(t2)
					break
				}
				span = span.Extend(t2.Span)
			}
			nodes = append(nodes, &Text{node{span}})
		case lexer.Escape:
			nodes = append(nodes, &EscapedOpen{node{tok.Span}})
		case lexer.Comment:
			nodes = append(nodes, &Comment{node{tok.Span}})
		case lexer.StartStatement, lexer.StartStatementRaw:
			first, err := p.nextNonWS()
			if err != nil {
				return nil, terminator{}, err
			}
			if first.Kind == lexer.Identifier && first.Text(p.src) == "else" {
				term, err := p.parseElseTag(tok)
				if err != nil {
					return nil, terminator{}, err
				}
				return nodes, term, nil
			}
			p.unread(first)
			stmt, err := p.parseStatement(tok)
			if err != nil {
				return nil, terminator{}, err
			}
			nodes = append(nodes, stmt)
		case lexer.StartBlockClose:
			name, err := p.expect(lexer.Identifier)
			if err != nil {
				return nil, terminator{}, err
			}
			end, err := p.expect(lexer.EndStatement)
			if err != nil {
				return nil, terminator{}, err
			}
			return nodes, terminator{
				kind:     termClose,
				span:     tok.Span.Extend(end.Span),
				name:     name.Text(p.src),
				nameSpan: name.Span,
				trim:     Trim{tok.Trim, end.Trim},
			}, nil
		case lexer.StartBlock:
			block, err := p.parseBlock(tok)
			if err != nil {
				return nil, terminator{}, err
			}
			nodes = append(nodes, block)
		case lexer.StartRawBlock:
			raw, err := p.parseRawBlock(tok)
			if err != nil {
				return nil, terminator{}, err
			}
			nodes = append(nodes, raw)
		case lexer.StartPartial, lexer.StartPartialBlock:
			partial, err := p.parsePartial(tok)
			if err != nil {
				return nil, terminator{}, err
			}
			nodes = append(nodes, partial)
		default:
			return nil, terminator{}, p.errorf(source.UnexpectedToken, tok.Span, "unexpected %s", tok.Kind)
		}
	}
}

// parseElseTag is entered after "{{" "else" has been consumed.
func (p *parser) parseElseTag(open lexer.Token) (terminator, error) {
	tok, err := p.nextNonWS()
	if err != nil {
		return terminator{}, err
	}
	if tok.Kind == lexer.EndStatement {
		return terminator{
			kind: termElse,
			span: open.Span.Extend(tok.Span),
			trim: Trim{open.Trim, tok.Trim},
		}, nil
	}
	if tok.Kind == lexer.Identifier && tok.Text(p.src) == "if" {
		call, err := p.parseCall()
		if err != nil {
			return terminator{}, err
		}
		end, err := p.expect(lexer.EndStatement)
		if err != nil {
			return terminator{}, err
		}
		// The chained conditional reuses the if block helper.
		ifPath := &PathExpr{node: node{tok.Span}, Segments: []Segment{{Text: "if", Span: tok.Span}}}
		call.Positional = append([]Expr{call.Callee}, call.Positional...)
		call.Callee = ifPath
		call.span = tok.Span.Extend(end.Span)
		return terminator{
			kind:   termElse,
			span:   open.Span.Extend(end.Span),
			trim:   Trim{open.Trim, end.Trim},
			elseIf: &call,
		}, nil
	}
	return terminator{}, p.errorf(source.UnexpectedToken, tok.Span, "expected }} or if after else, found %s", tok.Kind)
}

func (p *parser) parseStatement(open lexer.Token) (*Statement, error) {
	call, err := p.parseCall()
	if err != nil {
		return nil, err
	}
	wantEnd := lexer.EndStatement
	if open.Kind == lexer.StartStatementRaw {
		wantEnd = lexer.EndStatementRaw
	}
	end, err := p.expect(wantEnd)
	if err != nil {
		return nil, err
	}
	return &Statement{
		node:    node{open.Span.Extend(end.Span)},
		Call:    call,
		Escaped: open.Kind == lexer.StartStatement,
		Trim:    Trim{open.Trim, end.Trim},
	}, nil
}

// parseCall parses "callee arg* (key=value)*" and stops ahead of the
// closing token, which the caller consumes.
func (p *parser) parseCall() (Call, error) {
	tok, err := p.nextNonWS()
	if err != nil {
		return Call{}, err
	}
	var call Call
	switch tok.Kind {
	case lexer.ParenOpen:
		sub, err := p.parseSubExpr(tok)
		if err != nil {
			return Call{}, err
		}
		call.Callee = sub
	case lexer.Identifier, lexer.LocalIdentifier, lexer.PathDelimiter, lexer.Parent, lexer.PathIndex:
		path, err := p.parsePath(tok)
		if err != nil {
			return Call{}, err
		}
		call.Callee = path
	default:
		return Call{}, p.errorf(source.UnexpectedToken, tok.Span, "expected a path or sub-expression, found %s", tok.Kind)
	}
	call.span = call.Callee.Span()

	seen := map[string]source.Span{}
	for {
		tok, err := p.nextNonWS()
		if err != nil {
			return Call{}, err
		}
		switch tok.Kind {
		case lexer.EndStatement, lexer.EndStatementRaw, lexer.ParenClose:
			p.unread(tok)
			return call, nil
		case lexer.Identifier:
			// A hash key is an identifier directly followed by '='.
			eq, err := p.next()
			if err != nil {
				return Call{}, err
			}
			if eq.Kind == lexer.Equals {
				key := tok.Text(p.src)
				if prev, dup := seen[key]; dup {
					return Call{}, source.Errorf(source.UnexpectedToken, p.src, tok.Span, "duplicate hash key %q", key).
						WithNote("first occurrence", p.src, prev)
				}
				seen[key] = tok.Span
				value, err := p.parseExpr()
				if err != nil {
					return Call{}, err
				}
				call.Hash = append(call.Hash, HashPair{Key: key, KeySpan: tok.Span, Value: value})
				call.span = call.span.Extend(value.Span())
				continue
			}
			p.unread(eq)
			fallthrough
		default:
			if len(call.Hash) > 0 {
				return Call{}, p.errorf(source.UnexpectedToken, tok.Span, "positional argument after hash arguments")
			}
			p.unread(tok)
			arg, err := p.parseExpr()
			if err != nil {
				return Call{}, err
			}
			call.Positional = append(call.Positional, arg)
			call.span = call.span.Extend(arg.Span())
		}
	}
}

func (p *parser) parseExpr() (Expr, error) {
	tok, err := p.nextNonWS()
	if err != nil {
		return nil, err
	}
	switch tok.Kind {
	case lexer.StringLiteral:
		return &Literal{node{tok.Span}, unquoteString(tok.Text(p.src))}, nil
	case lexer.NumberLiteral:
		v, err := parseNumber(tok.Text(p.src))
		if err != nil {
			return nil, p.errorf(source.LexError, tok.Span, "malformed number %q", tok.Text(p.src))
		}
		return &Literal{node{tok.Span}, v}, nil
	case lexer.BoolLiteral:
		return &Literal{node{tok.Span}, tok.Text(p.src) == "true"}, nil
	case lexer.NullLiteral:
		return &Literal{node{tok.Span}, nil}, nil
	case lexer.JSONLiteral:
		v, err := values.FromJSON(tok.Text(p.src))
		if err != nil {
			return nil, p.errorf(source.UnexpectedToken, tok.Span, "malformed object literal: %s", err)
		}
		return &Literal{node{tok.Span}, v}, nil
	case lexer.ParenOpen:
		return p.parseSubExpr(tok)
	case lexer.Identifier, lexer.LocalIdentifier, lexer.PathDelimiter, lexer.Parent, lexer.PathIndex:
		return p.parsePath(tok)
	}
	return nil, p.errorf(source.UnexpectedToken, tok.Span, "expected an expression, found %s", tok.Kind)
}

func (p *parser) parseSubExpr(open lexer.Token) (*SubExpr, error) {
	call, err := p.parseCall()
	if err != nil {
		return nil, err
	}
	end, err := p.expect(lexer.ParenClose)
	if err != nil {
		return nil, err
	}
	return &SubExpr{node{open.Span.Extend(end.Span)}, call}, nil
}

// parsePath consumes a contiguous run of path tokens starting at first.
// Whitespace ends the path.
func (p *parser) parsePath(first lexer.Token) (*PathExpr, error) {
	toks := []lexer.Token{first}
	for {
		tok, err := p.next()
		if err != nil {
			return nil, err
		}
		switch tok.Kind {
		case lexer.Identifier, lexer.PathDelimiter, lexer.Parent, lexer.PathIndex, lexer.LocalIdentifier:
			toks = append(toks, tok)
		default:
			p.unread(tok)
			return p.buildPath(toks)
		}
	}
}

func (p *parser) buildPath(toks []lexer.Token) (*PathExpr, error) { // nolint: gocyclo
	span := toks[0].Span.Extend(toks[len(toks)-1].Span)
	path := &PathExpr{node: node{span}}
	i := 0

	for i < len(toks) && toks[i].Kind == lexer.Parent {
		path.Parent++
		i++
	}
	if path.Parent > 0 {
		path.Kind = PathParent
	}

	// After the prefix, expectSegment records whether the next path token
	// must be a segment (true) or a delimiter (false).
	expectSegment := true
	if i < len(toks) {
		tok := toks[i]
		text := tok.Text(p.src)
		switch {
		case tok.Kind == lexer.LocalIdentifier:
			if path.Parent > 0 {
				return nil, p.errorf(source.InvalidPath, span, "%s may not follow a parent path", text)
			}
			if text == "@root" {
				path.Kind = PathRoot
			} else {
				path.Kind = PathLocal
				path.Segments = append(path.Segments, Segment{Text: text[1:], Span: tok.Span})
			}
			expectSegment = false
			i++
		case tok.Kind == lexer.Identifier && text == "this":
			if path.Parent > 0 {
				return nil, p.errorf(source.InvalidPath, span, "this may not follow a parent path")
			}
			path.Kind = PathCurrent
			expectSegment = false
			i++
		case tok.Kind == lexer.PathDelimiter && text == "/":
			if path.Parent > 0 {
				return nil, p.errorf(source.InvalidPath, span, "absolute path may not follow a parent path")
			}
			path.Kind = PathRoot
			i++
		case tok.Kind == lexer.PathDelimiter && text == ".":
			if i+1 < len(toks) && toks[i+1].Kind == lexer.PathDelimiter && toks[i+1].Text(p.src) == "/" {
				path.Kind = PathExplicit
				i += 2
			} else if len(toks) == 1 && path.Parent == 0 {
				path.Kind = PathCurrent
				expectSegment = false
				i++
			} else {
				return nil, p.errorf(source.InvalidPath, span, "unexpected '.' in path")
			}
		}
	}

	// this.foo and this/foo drill from the current base.
	if path.Kind == PathCurrent && i < len(toks) {
		path.Kind = PathExplicit
	}
	if i == len(toks) {
		expectSegment = false
	}

	for i < len(toks) {
		tok := toks[i]
		switch tok.Kind {
		case lexer.Parent:
			return nil, p.errorf(source.InvalidPath, tok.Span, "'../' may only appear at the beginning of a path")
		case lexer.LocalIdentifier:
			return nil, p.errorf(source.InvalidPath, tok.Span, "%s may only appear at the beginning of a path", tok.Text(p.src))
		case lexer.PathDelimiter:
			if expectSegment {
				return nil, p.errorf(source.InvalidPath, tok.Span, "expected a path segment, found %q", tok.Text(p.src))
			}
			expectSegment = true
			i++
		case lexer.Identifier:
			if !expectSegment && len(path.Segments) > 0 {
				return nil, p.errorf(source.InvalidPath, tok.Span, "expected '.' or '/' before segment")
			}
			path.Segments = append(path.Segments, Segment{Text: tok.Text(p.src), Span: tok.Span})
			expectSegment = false
			i++
		case lexer.PathIndex:
			// Indexes attach directly: a.[0] and a[0] are both accepted.
			seg := Segment{Span: tok.Span}
			inner := tok.Text(p.src)
			inner = inner[1 : len(inner)-1]
			if n, err := strconv.ParseInt(inner, 10, 64); err == nil {
				seg.Num, seg.IsNum = n, true
				seg.Text = inner
			} else {
				seg.Text = inner
			}
			path.Segments = append(path.Segments, seg)
			expectSegment = false
			i++
		}
	}
	if expectSegment {
		return nil, p.errorf(source.InvalidPath, span, "path ends with a delimiter")
	}
	return path, nil
}

func (p *parser) parseBlock(open lexer.Token) (*Block, error) {
	call, err := p.parseCall()
	if err != nil {
		return nil, err
	}
	end, err := p.expect(lexer.EndStatement)
	if err != nil {
		return nil, err
	}
	block := &Block{
		node:     node{open.Span.Extend(end.Span)},
		Call:     call,
		OpenTrim: Trim{open.Trim, end.Trim},
	}
	openName := ""
	if path, ok := call.Callee.(*PathExpr); ok {
		openName = path.Name(p.src)
	}
	closeTerm, err := p.parseBlockRest(block, openName, call.Callee.Span())
	if err != nil {
		return nil, err
	}
	block.CloseTrim = closeTerm.trim
	block.node.span = block.node.span.Extend(closeTerm.span)
	return block, nil
}

// parseBlockRest fills in the body and else chain of block, consuming
// tokens through the matching close tag, which it returns. Chained
// {{else if}} branches become nested blocks whose close trims stay zero;
// the physical close tag's trim belongs to the outermost block alone.
func (p *parser) parseBlockRest(block *Block, openName string, openSpan source.Span) (terminator, error) {
	body, term, err := p.parseNodes()
	if err != nil {
		return terminator{}, err
	}
	block.Body = body

	if term.kind == termElse {
		block.HasElse = true
		block.ElseTrim = term.trim
		if term.elseIf != nil {
			// The else tag's left trim is applied by the enclosing block;
			// the nested block only keeps the body-entry trim.
			nested := &Block{
				node:     node{term.span},
				Call:     *term.elseIf,
				OpenTrim: Trim{false, term.trim[1]},
			}
			closeTerm, err := p.parseBlockRest(nested, openName, openSpan)
			if err != nil {
				return terminator{}, err
			}
			nested.node.span = nested.node.span.Extend(closeTerm.span)
			block.Else = []Node{nested}
			return closeTerm, nil
		}
		elseBody, term2, err := p.parseNodes()
		if err != nil {
			return terminator{}, err
		}
		block.Else = elseBody
		if term2.kind == termElse {
			return terminator{}, source.Errorf(source.UnexpectedToken, p.src, term2.span, "a block may not have a second {{else}}").
				WithNote("block opened here", p.src, openSpan)
		}
		term = term2
	}

	switch term.kind {
	case termEOF:
		return terminator{}, source.Errorf(source.UnclosedBlock, p.src, openSpan, "block %q is never closed", openName)
	case termClose:
		if openName != "" && term.name != openName {
			return terminator{}, source.Errorf(source.MismatchedBlock, p.src, term.nameSpan,
				"closing tag {{/%s}} does not match {{#%s}}", term.name, openName).
				WithNote("block opened here", p.src, openSpan)
		}
		return term, nil
	}
	return terminator{}, source.Errorf(source.UnexpectedToken, p.src, term.span, "unexpected block terminator")
}

func (p *parser) parseRawBlock(open lexer.Token) (*RawBlock, error) {
	name, err := p.expect(lexer.Identifier)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.EndRawBlock); err != nil {
		return nil, err
	}
	tok, err := p.next()
	if err != nil {
		return nil, err
	}
	body := source.Span{Start: tok.Span.Start, End: tok.Span.Start}
	if tok.Kind == lexer.RawText {
		body = tok.Span
		if tok, err = p.next(); err != nil {
			return nil, err
		}
	}
	if tok.Kind != lexer.RawEnd {
		return nil, p.errorf(source.UnexpectedToken, tok.Span, "expected raw block close, found %s", tok.Kind)
	}
	return &RawBlock{
		node:     node{open.Span.Extend(tok.Span)},
		Name:     name.Text(p.src),
		NameSpan: name.Span,
		Body:     body,
	}, nil
}

func (p *parser) parsePartial(open lexer.Token) (*Partial, error) {
	partial := &Partial{
		node:  node{open.Span},
		Block: open.Kind == lexer.StartPartialBlock,
	}
	tok, err := p.nextNonWS()
	if err != nil {
		return nil, err
	}
	switch tok.Kind {
	case lexer.ParenOpen:
		sub, err := p.parseSubExpr(tok)
		if err != nil {
			return nil, err
		}
		partial.Target = PartialTarget{Dynamic: sub, Span: sub.Span()}
	case lexer.Identifier, lexer.PathDelimiter, lexer.PathIndex:
		path, err := p.parsePath(tok)
		if err != nil {
			return nil, err
		}
		partial.Target = PartialTarget{Name: path.Span().Text(p.src), Span: path.Span()}
	default:
		return nil, p.errorf(source.UnexpectedToken, tok.Span, "expected a partial name or sub-expression, found %s", tok.Kind)
	}

	seen := map[string]source.Span{}
	for {
		tok, err := p.nextNonWS()
		if err != nil {
			return nil, err
		}
		if tok.Kind == lexer.EndStatement {
			partial.OpenTrim = Trim{open.Trim, tok.Trim}
			partial.node.span = partial.node.span.Extend(tok.Span)
			break
		}
		if tok.Kind != lexer.Identifier {
			return nil, p.errorf(source.UnexpectedToken, tok.Span, "expected a hash argument or }}, found %s", tok.Kind)
		}
		if _, err := p.expect(lexer.Equals); err != nil {
			return nil, err
		}
		key := tok.Text(p.src)
		if prev, dup := seen[key]; dup {
			return nil, source.Errorf(source.UnexpectedToken, p.src, tok.Span, "duplicate hash key %q", key).
				WithNote("first occurrence", p.src, prev)
		}
		seen[key] = tok.Span
		value, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		partial.Hash = append(partial.Hash, HashPair{Key: key, KeySpan: tok.Span, Value: value})
	}

	if !partial.Block {
		return partial, nil
	}
	body, term, err := p.parseNodes()
	if err != nil {
		return nil, err
	}
	partial.Body = body
	switch term.kind {
	case termEOF:
		return nil, source.Errorf(source.UnclosedBlock, p.src, partial.Target.Span,
			"partial block %q is never closed", partial.Target.Name)
	case termElse:
		return nil, p.errorf(source.UnexpectedToken, term.span, "{{else}} is not allowed in a partial block")
	}
	if partial.Target.Name != "" && term.name != partial.Target.Name {
		return nil, source.Errorf(source.MismatchedBlock, p.src, term.nameSpan,
			"closing tag {{/%s}} does not match {{#> %s}}", term.name, partial.Target.Name).
			WithNote("partial block opened here", p.src, partial.Target.Span)
	}
	partial.CloseTrim = term.trim
	partial.node.span = partial.node.span.Extend(term.span)
	return partial, nil
}

func unquoteString(text string) string {
	body := text[1 : len(text)-1]
	if !strings.ContainsRune(body, '\\') {
		return body
	}
	var b strings.Builder
	for i := 0; i < len(body); i++ {
		c := body[i]
		if c != '\\' || i+1 >= len(body) {
			b.WriteByte(c)
			continue
		}
		i++
		switch body[i] {
		case 'n':
			b.WriteByte('\n')
		case 't':
			b.WriteByte('\t')
		case 'r':
			b.WriteByte('\r')
		default:
			b.WriteByte(body[i])
		}
	}
	return b.String()
}

func parseNumber(text string) (interface{}, error) {
	if !strings.ContainsAny(text, ".eE") {
		if n, err := strconv.ParseInt(text, 10, 64); err == nil {
			return n, nil
		}
	}
	return strconv.ParseFloat(text, 64)
}
