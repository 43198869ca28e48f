package source

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-runewidth"
	"golang.org/x/xerrors"
)

// ErrorKind classifies a diagnostic.
type ErrorKind int

const (
	LexError ErrorKind = iota
	UnexpectedToken
	UnclosedBlock
	MismatchedBlock
	InvalidPath
	UnknownHelper
	UnknownPartial
	HelperError
	EscapeError
	IoError
	Cancelled
)

var kindNames = map[ErrorKind]string{
	LexError:        "lex error",
	UnexpectedToken: "unexpected token",
	UnclosedBlock:   "unclosed block",
	MismatchedBlock: "mismatched block",
	InvalidPath:     "invalid path",
	UnknownHelper:   "unknown helper",
	UnknownPartial:  "unknown partial",
	HelperError:     "helper error",
	EscapeError:     "escape error",
	IoError:         "io error",
	Cancelled:       "cancelled",
}

func (k ErrorKind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "error"
}

// A Note attaches a secondary span to a diagnostic, e.g. the opening tag
// of an unclosed block, or the inclusion site of a failing partial.
type Note struct {
	Msg  string
	Src  *Source
	Span Span
}

// An Error is a structured diagnostic: a kind, a message, a primary span,
// and any number of secondary notes (innermost first).
type Error struct {
	Kind  ErrorKind
	Msg   string
	Src   *Source
	Span  Span
	Notes []Note
	cause error
}

// Errorf creates a diagnostic with a formatted message.
func Errorf(kind ErrorKind, src *Source, span Span, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Src: src, Span: span}
}

// Wrap attaches a span to an underlying error, preserving it for Unwrap.
// If err is already an *Error, the span is appended as an inclusion note
// instead, so nested failures keep their original primary span.
func Wrap(err error, kind ErrorKind, src *Source, span Span, msg string) *Error {
	var se *Error
	if xerrors.As(err, &se) {
		se.Notes = append(se.Notes, Note{Msg: msg, Src: src, Span: span})
		return se
	}
	text := err.Error()
	if msg != "" {
		text = msg + ": " + text
	}
	return &Error{Kind: kind, Msg: text, Src: src, Span: span, cause: err}
}

func (e *Error) Error() string {
	if e.Src == nil {
		return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
	}
	pos := e.Src.Position(e.Span.Start)
	return fmt.Sprintf("%s:%s: %s: %s", e.Src.Name, pos, e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.cause }

// WithNote appends a secondary span.
func (e *Error) WithNote(msg string, src *Source, span Span) *Error {
	e.Notes = append(e.Notes, Note{Msg: msg, Src: src, Span: span})
	return e
}

// FormatError renders err for human consumption. If err carries spans, the
// offending source lines are quoted with caret underlines; otherwise the
// plain Error() text is returned. colored enables ANSI colors, inclSource
// enables the quoted snippets.
func FormatError(err error, colored, inclSource bool) string {
	var se *Error
	if !xerrors.As(err, &se) {
		return err.Error()
	}
	var buf bytes.Buffer
	se.prettyPrint(&buf, colored, inclSource)
	return buf.String()
}

func (e *Error) prettyPrint(buf *bytes.Buffer, colored, inclSource bool) {
	headline := color.New(color.FgRed, color.Bold)
	note := color.New(color.FgCyan)
	if !colored {
		headline.DisableColor()
		note.DisableColor()
	}
	headline.Fprint(buf, e.Error())
	buf.WriteByte('\n')
	if inclSource && e.Src != nil {
		writeSnippet(buf, e.Src, e.Span, colored)
	}
	for _, n := range e.Notes {
		msg := n.Msg
		if n.Src != nil {
			msg = fmt.Sprintf("%s:%s: %s", n.Src.Name, n.Src.Position(n.Span.Start), n.Msg)
		}
		note.Fprintf(buf, "note: %s", msg)
		buf.WriteByte('\n')
		if inclSource && n.Src != nil {
			writeSnippet(buf, n.Src, n.Span, colored)
		}
	}
}

// writeSnippet quotes the first line the span touches and underlines the
// spanned portion. The underline is sized by Unicode display width so
// carets stay aligned under wide characters.
func writeSnippet(buf *bytes.Buffer, src *Source, span Span, colored bool) {
	pos := src.Position(span.Start)
	lineSpan := src.LineSpan(pos.Line)
	line := lineSpan.Text(src)

	gutter := fmt.Sprintf("%5d | ", pos.Line)
	buf.WriteString(gutter)
	buf.WriteString(line)
	buf.WriteByte('\n')

	before := src.Content[lineSpan.Start:span.Start]
	end := span.End
	if end > lineSpan.End {
		end = lineSpan.End
	}
	marked := src.Content[span.Start:end]
	pad := runewidth.StringWidth(before)
	width := runewidth.StringWidth(marked)
	if width < 1 {
		width = 1
	}
	caret := color.New(color.FgRed, color.Bold)
	if !colored {
		caret.DisableColor()
	}
	buf.WriteString(strings.Repeat(" ", len(gutter)+pad))
	caret.Fprint(buf, strings.Repeat("^", width))
	buf.WriteByte('\n')
}
