package lexer

import (
	"strings"

	"github.com/bracket-lang/bracket/source"
)

type mode int

const (
	modeOuter mode = iota
	modeInner
	modeRaw
)

// A Lexer scans one source. Tokens are spans into the source text; the
// lexer never copies source bytes.
type Lexer struct {
	src        *source.Source
	in         string
	pos        int
	mode       mode
	closeArity int    // brace count that closes the current tag: 2, 3 or 4
	lastIdent  string // most recent identifier, names the open raw block
	rawName    string
	rawEnd     *source.Span // pending RawEnd token
}

// New creates a lexer over src.
func New(src *source.Source) *Lexer {
	return &Lexer{src: src, in: src.Content}
}

// Scan tokenizes the whole source. The EOF token is not included.
func Scan(src *source.Source) ([]Token, error) {
	lex := New(src)
	var tokens []Token
	for {
		tok, err := lex.Next()
		if err != nil {
			return tokens, err
		}
		if tok.Kind == EOF {
			return tokens, nil
		}
		tokens = append(tokens, tok)
	}
}

// Next returns the next token. After an error the lexer is in an
// undefined state and must not be advanced further.
func (l *Lexer) Next() (Token, error) {
	switch l.mode {
	case modeOuter:
		return l.nextOuter()
	case modeInner:
		return l.nextInner()
	default:
		return l.nextRaw()
	}
}

func (l *Lexer) errorf(span source.Span, format string, args ...interface{}) error {
	return source.Errorf(source.LexError, l.src, span, format, args...)
}

func (l *Lexer) token(kind Kind, start, end int) Token {
	l.pos = end
	return Token{Kind: kind, Span: source.Span{Start: start, End: end}}
}

func (l *Lexer) nextOuter() (Token, error) {
	if l.pos >= len(l.in) {
		return Token{Kind: EOF, Span: source.Span{Start: l.pos, End: l.pos}}, nil
	}
	rest := l.in[l.pos:]
	switch {
	case strings.HasPrefix(rest, `\{{`):
		return l.token(Escape, l.pos, l.pos+3), nil
	case rest[0] == '\n':
		return l.token(Newline, l.pos, l.pos+1), nil
	case strings.HasPrefix(rest, "{{{{"):
		tok := l.token(StartRawBlock, l.pos, l.pos+4)
		l.mode, l.closeArity = modeInner, 4
		return tok, nil
	case strings.HasPrefix(rest, "{{"):
		return l.openAny()
	}
	// Literal text, up to the next newline or tag opening. Lone braces and
	// backslashes are plain text.
	end := l.pos + 1
	for end < len(l.in) {
		c := l.in[end]
		if c == '\n' {
			break
		}
		if c == '{' && strings.HasPrefix(l.in[end:], "{{") {
			break
		}
		if c == '\\' && strings.HasPrefix(l.in[end:], `\{{`) {
			break
		}
		end++
	}
	return l.token(RawText, l.pos, end), nil
}

// openAny classifies a {{-family opening. A trim marker is accepted
// either directly after the braces ({{~#if) or after the full
// punctuation ({{#~if); both record a left trim.
func (l *Lexer) openAny() (Token, error) {
	start := l.pos
	i := start + 2
	trim := false
	if i < len(l.in) && l.in[i] == '~' {
		trim = true
		i++
	}
	rest := l.in[i:]
	kind, arity := StartStatement, 2
	switch {
	case strings.HasPrefix(rest, "!--"):
		return l.comment(start, i+3, "--}}")
	case strings.HasPrefix(rest, "!"):
		return l.comment(start, i+1, "}}")
	case strings.HasPrefix(rest, "#>"):
		kind, i = StartPartialBlock, i+2
	case strings.HasPrefix(rest, "#"):
		kind, i = StartBlock, i+1
	case strings.HasPrefix(rest, "/"):
		kind, i = StartBlockClose, i+1
	case strings.HasPrefix(rest, ">"):
		kind, i = StartPartial, i+1
	case strings.HasPrefix(rest, "{"):
		kind, arity, i = StartStatementRaw, 3, i+1
	}
	if !trim && i < len(l.in) && l.in[i] == '~' {
		trim = true
		i++
	}
	tok := l.token(kind, start, i)
	tok.Trim = trim
	l.mode, l.closeArity = modeInner, arity
	return tok, nil
}

// comment scans from bodyStart to the terminator; the token covers the
// whole comment including its delimiters.
func (l *Lexer) comment(start, bodyStart int, close string) (Token, error) {
	idx := strings.Index(l.in[bodyStart:], close)
	if idx < 0 {
		return Token{}, l.errorf(source.Span{Start: start, End: bodyStart}, "unterminated comment")
	}
	end := bodyStart + idx + len(close)
	return l.token(Comment, start, end), nil
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentChar(c byte) bool {
	return isIdentStart(c) || c == '-' || (c >= '0' && c <= '9')
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\r' || c == '\n'
}

func (l *Lexer) nextInner() (Token, error) { // nolint: gocyclo
	if l.pos >= len(l.in) {
		return Token{}, l.errorf(source.Span{Start: l.pos, End: l.pos}, "unexpected end of input inside expression")
	}
	start := l.pos
	c := l.in[start]
	switch {
	case isSpace(c):
		end := start
		for end < len(l.in) && isSpace(l.in[end]) {
			end++
		}
		return l.token(Whitespace, start, end), nil
	case c == '~':
		if start+1 >= len(l.in) || l.in[start+1] != '}' {
			return Token{}, l.errorf(source.Span{Start: start, End: start + 1}, "unexpected character %q in expression", '~')
		}
		l.pos++
		tok, err := l.closeTag(start)
		tok.Trim = err == nil
		return tok, err
	case c == '}':
		return l.closeTag(start)
	case isIdentStart(c):
		end := start
		for end < len(l.in) && isIdentChar(l.in[end]) {
			end++
		}
		tok := l.token(Identifier, start, end)
		switch l.in[start:end] {
		case "true", "false":
			tok.Kind = BoolLiteral
		case "null":
			tok.Kind = NullLiteral
		default:
			l.lastIdent = l.in[start:end]
		}
		return tok, nil
	case c == '@':
		end := start + 1
		if end >= len(l.in) || !isIdentStart(l.in[end]) {
			return Token{}, l.errorf(source.Span{Start: start, End: end}, "expected identifier after '@'")
		}
		for end < len(l.in) && isIdentChar(l.in[end]) {
			end++
		}
		return l.token(LocalIdentifier, start, end), nil
	case c >= '0' && c <= '9', c == '-' && start+1 < len(l.in) && (l.in[start+1] >= '0' && l.in[start+1] <= '9'):
		return l.number(start)
	case c == '.':
		if strings.HasPrefix(l.in[start:], "../") {
			return l.token(Parent, start, start+3), nil
		}
		if strings.HasPrefix(l.in[start:], "..") {
			return Token{}, l.errorf(source.Span{Start: start, End: start + 2}, "'..' must be followed by '/'")
		}
		return l.token(PathDelimiter, start, start+1), nil
	case c == '/':
		return l.token(PathDelimiter, start, start+1), nil
	case c == '[':
		depth := 0
		for end := start; end < len(l.in); end++ {
			switch l.in[end] {
			case '[':
				depth++
			case ']':
				depth--
				if depth == 0 {
					return l.token(PathIndex, start, end+1), nil
				}
			}
		}
		return Token{}, l.errorf(source.Span{Start: start, End: start + 1}, "unterminated index segment")
	case c == '"':
		for end := start + 1; end < len(l.in); end++ {
			switch l.in[end] {
			case '\\':
				end++
			case '"':
				return l.token(StringLiteral, start, end+1), nil
			}
		}
		return Token{}, l.errorf(source.Span{Start: start, End: start + 1}, "unterminated string literal")
	case c == '{':
		return l.jsonLiteral(start)
	case c == '(':
		return l.token(ParenOpen, start, start+1), nil
	case c == ')':
		return l.token(ParenClose, start, start+1), nil
	case c == '=':
		return l.token(Equals, start, start+1), nil
	}
	return Token{}, l.errorf(source.Span{Start: start, End: start + 1}, "unexpected character %q in expression", rune(c))
}

// closeTag consumes the closing braces for the current tag. The brace
// count must match the opening arity.
func (l *Lexer) closeTag(start int) (Token, error) {
	braces := 0
	for l.pos+braces < len(l.in) && l.in[l.pos+braces] == '}' {
		braces++
	}
	if braces < l.closeArity {
		return Token{}, l.errorf(source.Span{Start: l.pos, End: l.pos + braces},
			"expected %q to close this tag", strings.Repeat("}", l.closeArity))
	}
	end := l.pos + l.closeArity
	var tok Token
	switch l.closeArity {
	case 4:
		tok = l.token(EndRawBlock, start, end)
		l.mode, l.rawName = modeRaw, l.lastIdent
	case 3:
		tok = l.token(EndStatementRaw, start, end)
		l.mode = modeOuter
	default:
		tok = l.token(EndStatement, start, end)
		l.mode = modeOuter
	}
	return tok, nil
}

func (l *Lexer) number(start int) (Token, error) {
	end := start
	if l.in[end] == '-' {
		end++
	}
	digits := func() int {
		n := 0
		for end < len(l.in) && l.in[end] >= '0' && l.in[end] <= '9' {
			end++
			n++
		}
		return n
	}
	digits()
	if end < len(l.in) && l.in[end] == '.' {
		end++
		if digits() == 0 {
			return Token{}, l.errorf(source.Span{Start: start, End: end}, "malformed number")
		}
	}
	if end < len(l.in) && (l.in[end] == 'e' || l.in[end] == 'E') {
		end++
		if end < len(l.in) && (l.in[end] == '+' || l.in[end] == '-') {
			end++
		}
		if digits() == 0 {
			return Token{}, l.errorf(source.Span{Start: start, End: end}, "malformed number")
		}
	}
	if end < len(l.in) && isIdentStart(l.in[end]) {
		return Token{}, l.errorf(source.Span{Start: start, End: end + 1}, "malformed number")
	}
	return l.token(NumberLiteral, start, end), nil
}

// jsonLiteral scans a balanced {...} run, honoring string quoting, so an
// inline object can be handed to the parser as a single literal token.
func (l *Lexer) jsonLiteral(start int) (Token, error) {
	depth, inString, escaped := 0, false, false
	for end := start; end < len(l.in); end++ {
		c := l.in[end]
		switch {
		case escaped:
			escaped = false
		case inString:
			if c == '\\' {
				escaped = true
			} else if c == '"' {
				inString = false
			}
		case c == '"':
			inString = true
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return l.token(JSONLiteral, start, end+1), nil
			}
		}
	}
	return Token{}, l.errorf(source.Span{Start: start, End: start + 1}, "unterminated object literal")
}

func (l *Lexer) nextRaw() (Token, error) {
	if l.rawEnd != nil {
		tok := Token{Kind: RawEnd, Span: *l.rawEnd}
		l.pos = l.rawEnd.End
		l.rawEnd = nil
		l.mode = modeOuter
		return tok, nil
	}
	from := l.pos
	for {
		idx := strings.Index(l.in[from:], "{{{{/")
		if idx < 0 {
			return Token{}, l.errorf(source.Span{Start: l.pos, End: l.pos}, "unterminated raw block %q", l.rawName)
		}
		closeStart := from + idx
		if closeEnd, ok := l.matchRawClose(closeStart); ok {
			span := source.Span{Start: closeStart, End: closeEnd}
			if closeStart == l.pos {
				l.pos = closeEnd
				l.mode = modeOuter
				return Token{Kind: RawEnd, Span: span}, nil
			}
			l.rawEnd = &span
			body := l.token(RawText, l.pos, closeStart)
			return body, nil
		}
		from = closeStart + 5
	}
}

// matchRawClose reports whether the text at start is {{{{/name}}}} for the
// open raw block, allowing whitespace around the name.
func (l *Lexer) matchRawClose(start int) (int, bool) {
	p := start + 5
	for p < len(l.in) && isSpace(l.in[p]) {
		p++
	}
	if !strings.HasPrefix(l.in[p:], l.rawName) {
		return 0, false
	}
	p += len(l.rawName)
	if p < len(l.in) && isIdentChar(l.in[p]) {
		return 0, false
	}
	for p < len(l.in) && isSpace(l.in[p]) {
		p++
	}
	if !strings.HasPrefix(l.in[p:], "}}}}") {
		return 0, false
	}
	return p + 4, true
}
