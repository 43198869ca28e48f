// Package lexer turns template source into a stream of spanned tokens.
// Scanning is mode-driven: coarse tokens in the outer text, fine-grained
// tokens inside {{ }} expressions, and verbatim scanning inside raw blocks
// and comments.
package lexer

import (
	"fmt"

	"github.com/bracket-lang/bracket/source"
)

// Kind identifies a token.
type Kind int

const (
	EOF Kind = iota

	// Outer mode.
	RawText
	Newline
	Escape            // \{{
	StartStatement    // {{
	StartStatementRaw // {{{
	StartBlock        // {{#
	StartBlockClose   // {{/
	StartRawBlock     // {{{{
	StartPartial      // {{>
	StartPartialBlock // {{#>
	Comment           // {{! .. }} or {{!-- .. --}}
	RawEnd            // {{{{/name}}}}

	// Inner mode.
	Identifier
	LocalIdentifier // @name
	PathDelimiter   // . or /
	Parent          // ../
	PathIndex       // [0] or [name]
	StringLiteral
	NumberLiteral
	BoolLiteral
	NullLiteral
	JSONLiteral
	ParenOpen
	ParenClose
	Equals
	Whitespace
	EndStatement    // }}
	EndStatementRaw // }}}
	EndRawBlock     // }}}}
)

var kindNames = map[Kind]string{
	EOF:               "end of input",
	RawText:           "text",
	Newline:           "newline",
	Escape:            `\{{`,
	StartStatement:    "{{",
	StartStatementRaw: "{{{",
	StartBlock:        "{{#",
	StartBlockClose:   "{{/",
	StartRawBlock:     "{{{{",
	StartPartial:      "{{>",
	StartPartialBlock: "{{#>",
	Comment:           "comment",
	RawEnd:            "raw block close",
	Identifier:        "identifier",
	LocalIdentifier:   "local identifier",
	PathDelimiter:     "path delimiter",
	Parent:            "../",
	PathIndex:         "path index",
	StringLiteral:     "string",
	NumberLiteral:     "number",
	BoolLiteral:       "boolean",
	NullLiteral:       "null",
	JSONLiteral:       "object literal",
	ParenOpen:         "(",
	ParenClose:        ")",
	Equals:            "=",
	Whitespace:        "whitespace",
	EndStatement:      "}}",
	EndStatementRaw:   "}}}",
	EndRawBlock:       "}}}}",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// A Token is a kind plus the span it covers. Trim records a ~ marker
// attached to an opening or closing token.
type Token struct {
	Kind Kind
	Span source.Span
	Trim bool
}

// Text returns the token's source text.
func (t Token) Text(src *source.Source) string {
	return t.Span.Text(src)
}

func (t Token) String() string {
	return fmt.Sprintf("%s@%d..%d", t.Kind, t.Span.Start, t.Span.End)
}
