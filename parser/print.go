package parser

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/bracket-lang/bracket/source"
)

// Dump writes an indented description of the template tree, one node
// per line, for debugging and the CLI's parse command.
func Dump(w io.Writer, t *Template) error {
	return dumpNodes(w, t.Src, t.Nodes, 0)
}

func dumpf(w io.Writer, indent int, format string, args ...interface{}) error {
	_, err := fmt.Fprintf(w, "%s- %s\n", strings.Repeat("    ", indent), fmt.Sprintf(format, args...))
	return err
}

func dumpNodes(w io.Writer, src *source.Source, nodes []Node, indent int) error {
	for _, n := range nodes {
		if err := dumpNode(w, src, n, indent); err != nil {
			return err
		}
	}
	return nil
}

func dumpNode(w io.Writer, src *source.Source, n Node, indent int) error { // nolint: gocyclo
	switch n := n.(type) {
	case *Text:
		return dumpf(w, indent, "Text %s", strconv.Quote(n.Span().Text(src)))
	case *EscapedOpen:
		return dumpf(w, indent, "Escape")
	case *Comment:
		return dumpf(w, indent, "Comment %s", strconv.Quote(n.Span().Text(src)))
	case *RawBlock:
		return dumpf(w, indent, "RawBlock %s %s", n.Name, strconv.Quote(n.Body.Text(src)))
	case *Statement:
		form := "escaped"
		if !n.Escaped {
			form = "raw"
		}
		return dumpf(w, indent, "Statement (%s) %s", form, callString(src, &n.Call))
	case *Block:
		if err := dumpf(w, indent, "Block %s", callString(src, &n.Call)); err != nil {
			return err
		}
		if err := dumpNodes(w, src, n.Body, indent+1); err != nil {
			return err
		}
		if n.HasElse {
			if err := dumpf(w, indent, "Else"); err != nil {
				return err
			}
			return dumpNodes(w, src, n.Else, indent+1)
		}
		return nil
	case *Partial:
		form := "Partial"
		if n.Block {
			form = "PartialBlock"
		}
		target := n.Target.Name
		if n.Target.Dynamic != nil {
			target = n.Target.Span.Text(src)
		}
		if err := dumpf(w, indent, "%s %s%s", form, target, hashString(src, n.Hash)); err != nil {
			return err
		}
		return dumpNodes(w, src, n.Body, indent+1)
	}
	return dumpf(w, indent, "Node %s", strconv.Quote(n.Span().Text(src)))
}

func callString(src *source.Source, c *Call) string {
	var b strings.Builder
	b.WriteString(exprString(src, c.Callee))
	for _, arg := range c.Positional {
		b.WriteByte(' ')
		b.WriteString(exprString(src, arg))
	}
	b.WriteString(hashString(src, c.Hash))
	return b.String()
}

func hashString(src *source.Source, hash []HashPair) string {
	var b strings.Builder
	for _, pair := range hash {
		fmt.Fprintf(&b, " %s=%s", pair.Key, exprString(src, pair.Value))
	}
	return b.String()
}

func exprString(src *source.Source, e Expr) string {
	switch e := e.(type) {
	case *Literal:
		return strconv.Quote(fmt.Sprint(e.Value))
	case *PathExpr:
		return e.String()
	case *SubExpr:
		return "(" + callString(src, &e.Call) + ")"
	}
	return "?"
}
