package helpers

import (
	"github.com/bracket-lang/bracket/render"
	"github.com/bracket-lang/bracket/values"
)

// AddStandardBlockHelpers registers the standard block helpers.
func AddStandardBlockHelpers(c *render.Config) {
	c.AddBlockHelper("if", ifHelper(true))
	c.AddBlockHelper("unless", ifHelper(false))
	c.AddBlockHelper("with", withHelper)
	c.AddBlockHelper("each", eachHelper)
}

// ifHelper keys on truthiness; unless is the same helper with the
// polarity flipped. The body renders in the enclosing scope.
func ifHelper(polarity bool) render.BlockHelper {
	return func(ctx *render.Context) error {
		v, err := ctx.Arg(0)
		if err != nil {
			return err
		}
		if values.Truthy(v) == polarity {
			return ctx.RenderBody()
		}
		return ctx.RenderElse()
	}
}

// with rebases the body scope on its argument; the else branch renders
// when the argument is falsy.
func withHelper(ctx *render.Context) error {
	v, err := ctx.Arg(0)
	if err != nil {
		return err
	}
	if !values.Truthy(v) {
		return ctx.RenderElse()
	}
	return ctx.RenderBodyWith(v, nil)
}

// each iterates arrays and objects, exposing @index, @first and @last,
// plus @key for objects. Objects iterate in insertion order. The else
// branch renders for empty or non-iterable collections.
func eachHelper(ctx *render.Context) error {
	v, err := ctx.Arg(0)
	if err != nil {
		return err
	}
	switch v := v.(type) {
	case []interface{}:
		if len(v) == 0 {
			return ctx.RenderElse()
		}
		for i, item := range v {
			locals := map[string]interface{}{
				"index": int64(i),
				"first": i == 0,
				"last":  i == len(v)-1,
			}
			if err := ctx.RenderBodyWith(item, locals); err != nil {
				return err
			}
		}
		return nil
	case *values.Object:
		keys := v.Keys()
		if len(keys) == 0 {
			return ctx.RenderElse()
		}
		for i, key := range keys {
			item, _ := v.Get(key)
			locals := map[string]interface{}{
				"index": int64(i),
				"first": i == 0,
				"last":  i == len(keys)-1,
				"key":   key,
			}
			if err := ctx.RenderBodyWith(item, locals); err != nil {
				return err
			}
		}
		return nil
	}
	return ctx.RenderElse()
}
