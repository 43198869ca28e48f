package render

import (
	"fmt"
	"log/slog"

	"github.com/bracket-lang/bracket/parser"
	"github.com/bracket-lang/bracket/source"
	"github.com/bracket-lang/bracket/values"
)

// A Context is the handle a helper receives: lazy access to its
// arguments, the current scope, the output, and (for block helpers) the
// body and else fragments.
type Context struct {
	r     *renderer
	src   *source.Source
	call  *parser.Call
	name  string
	block *parser.Block

	args     []interface{}
	evaled   []bool
	hashVals map[string]interface{}
}

func newContext(r *renderer, src *source.Source, call *parser.Call, name string, block *parser.Block) *Context {
	return &Context{
		r:      r,
		src:    src,
		call:   call,
		name:   name,
		block:  block,
		args:   make([]interface{}, len(call.Positional)),
		evaled: make([]bool, len(call.Positional)),
	}
}

// Name returns the helper name the call was dispatched under.
func (c *Context) Name() string { return c.name }

// NumArgs returns the number of positional arguments.
func (c *Context) NumArgs() int { return len(c.call.Positional) }

// Arg evaluates and returns positional argument i. Evaluation is lazy
// and memoized, so short-circuiting helpers only pay for the arguments
// they inspect. Out-of-range arguments are nil.
func (c *Context) Arg(i int) (interface{}, error) {
	if i < 0 || i >= len(c.call.Positional) {
		return nil, nil
	}
	if !c.evaled[i] {
		v, err := c.r.evalExpr(c.src, c.call.Positional[i])
		if err != nil {
			return nil, err
		}
		c.args[i] = v
		c.evaled[i] = true
	}
	return c.args[i], nil
}

// HashValue evaluates the named hash argument, or returns nil when it
// was not supplied.
func (c *Context) HashValue(key string) (interface{}, error) {
	if v, ok := c.hashVals[key]; ok {
		return v, nil
	}
	for _, pair := range c.call.Hash {
		if pair.Key != key {
			continue
		}
		v, err := c.r.evalExpr(c.src, pair.Value)
		if err != nil {
			return nil, err
		}
		if c.hashVals == nil {
			c.hashVals = map[string]interface{}{}
		}
		c.hashVals[key] = v
		return v, nil
	}
	return nil, nil
}

// Hash evaluates all hash arguments, in insertion order.
func (c *Context) Hash() (*values.Object, error) {
	obj := values.NewObject()
	for _, pair := range c.call.Hash {
		v, err := c.HashValue(pair.Key)
		if err != nil {
			return nil, err
		}
		obj.Set(pair.Key, v)
	}
	return obj, nil
}

// Base returns the current scope's base value.
func (c *Context) Base() interface{} { return c.r.current().base }

// Root returns the render's root data.
func (c *Context) Root() interface{} { return c.r.root }

// Logger returns the configured log sink.
func (c *Context) Logger() *slog.Logger { return c.r.cfg.logger }

// Write emits s directly to the output, bypassing escaping.
func (c *Context) Write(s string) {
	c.r.writeOutput(s)
}

// HasElse reports whether the block carries an else branch.
func (c *Context) HasElse() bool {
	return c.block != nil && c.block.HasElse
}

// RenderBody renders the block body in the current scope.
func (c *Context) RenderBody() error {
	return c.renderBody(c.r.current().base, nil, false)
}

// RenderBodyWith renders the block body in a new scope whose base is
// base, exposing locals as @-variables.
func (c *Context) RenderBodyWith(base interface{}, locals map[string]interface{}) error {
	return c.renderBody(base, locals, true)
}

func (c *Context) renderBody(base interface{}, locals map[string]interface{}, pushScope bool) error {
	if c.block == nil {
		return fmt.Errorf("%s is not a block helper", c.name)
	}
	if pushScope {
		c.r.push(base, locals)
		defer c.r.pop()
	}
	c.r.trimPending = c.r.trimPending || c.block.OpenTrim[1]
	if err := c.r.renderNodes(c.src, c.block.Body); err != nil {
		return err
	}
	if c.block.HasElse && c.block.ElseTrim[0] {
		c.r.trimLeft()
	}
	return nil
}

// RenderElse renders the else branch, if any, in the current scope.
func (c *Context) RenderElse() error {
	if c.block == nil {
		return fmt.Errorf("%s is not a block helper", c.name)
	}
	if !c.block.HasElse {
		return nil
	}
	c.r.trimPending = c.r.trimPending || c.block.ElseTrim[1]
	return c.r.renderNodes(c.src, c.block.Else)
}
