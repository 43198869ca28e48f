// Package source defines source buffers, byte spans, and the structured
// diagnostics the rest of the engine reports against them.
package source

import (
	"fmt"
	"strings"
)

// A Source is a named template text. Templates and tokens borrow from its
// Content; a Source must outlive everything parsed from it.
type Source struct {
	Name    string
	Content string
}

// New creates a Source. An empty name is rendered as "<template>" in
// diagnostics.
func New(name, content string) *Source {
	if name == "" {
		name = "<template>"
	}
	return &Source{Name: name, Content: content}
}

// A Span is a half-open byte range [Start, End) into one Source.
type Span struct {
	Start int
	End   int
}

// Text returns the bytes the span covers.
func (s Span) Text(src *Source) string {
	return src.Content[s.Start:s.End]
}

// Extend returns the smallest span covering both s and o.
func (s Span) Extend(o Span) Span {
	if o.Start < s.Start {
		s.Start = o.Start
	}
	if o.End > s.End {
		s.End = o.End
	}
	return s
}

func (s Span) Len() int { return s.End - s.Start }

// A Position is a 1-based line and column. Column counts bytes from the
// start of the line; display alignment is handled separately when
// diagnostics are rendered.
type Position struct {
	Line   int
	Column int
}

func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// Position maps a byte offset to a line/column pair.
func (s *Source) Position(offset int) Position {
	if offset > len(s.Content) {
		offset = len(s.Content)
	}
	line := 1 + strings.Count(s.Content[:offset], "\n")
	col := offset - (strings.LastIndexByte(s.Content[:offset], '\n') + 1)
	return Position{Line: line, Column: col + 1}
}

// LineSpan returns the span of the 1-based line n, excluding its
// terminating newline.
func (s *Source) LineSpan(n int) Span {
	start := 0
	for i := 1; i < n; i++ {
		nl := strings.IndexByte(s.Content[start:], '\n')
		if nl < 0 {
			return Span{Start: len(s.Content), End: len(s.Content)}
		}
		start += nl + 1
	}
	end := strings.IndexByte(s.Content[start:], '\n')
	if end < 0 {
		end = len(s.Content)
	} else {
		end += start
	}
	return Span{Start: start, End: end}
}
