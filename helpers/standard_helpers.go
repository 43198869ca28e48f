// Package helpers defines the standard helper set. Helpers are
// registered against a render.Config before rendering starts.
package helpers

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/osteele/tuesday"

	"github.com/bracket-lang/bracket/render"
	"github.com/bracket-lang/bracket/values"
)

// AddStandardHelpers registers the standard expression helpers.
func AddStandardHelpers(c *render.Config) {
	c.AddHelper("log", logHelper)
	c.AddHelper("json", jsonHelper)
	c.AddHelper("lookup", lookupHelper)
	c.AddHelper("date", dateHelper)

	c.AddHelper("and", func(ctx *render.Context) (interface{}, error) {
		for i := 0; i < ctx.NumArgs(); i++ {
			v, err := ctx.Arg(i)
			if err != nil {
				return nil, err
			}
			if !values.Truthy(v) {
				return false, nil
			}
		}
		return true, nil
	})
	c.AddHelper("or", func(ctx *render.Context) (interface{}, error) {
		for i := 0; i < ctx.NumArgs(); i++ {
			v, err := ctx.Arg(i)
			if err != nil {
				return nil, err
			}
			if values.Truthy(v) {
				return true, nil
			}
		}
		return false, nil
	})
	c.AddHelper("not", func(ctx *render.Context) (interface{}, error) {
		v, err := ctx.Arg(0)
		if err != nil {
			return nil, err
		}
		return !values.Truthy(v), nil
	})

	c.AddHelper("eq", comparison(func(a, b interface{}) bool {
		return values.Equal(a, b)
	}))
	c.AddHelper("ne", comparison(func(a, b interface{}) bool {
		return comparable2(a, b) && !values.Equal(a, b)
	}))
	c.AddHelper("gt", ordered(func(n int) bool { return n > 0 }))
	c.AddHelper("lt", ordered(func(n int) bool { return n < 0 }))
	c.AddHelper("gte", ordered(func(n int) bool { return n >= 0 }))
	c.AddHelper("lte", ordered(func(n int) bool { return n <= 0 }))
}

// log writes its arguments to the host log sink and produces no output.
// The level hash argument selects the slog level; unknown levels fall
// back to info.
func logHelper(ctx *render.Context) (interface{}, error) {
	parts := make([]string, 0, ctx.NumArgs())
	for i := 0; i < ctx.NumArgs(); i++ {
		v, err := ctx.Arg(i)
		if err != nil {
			return nil, err
		}
		parts = append(parts, values.ToString(v))
	}
	msg := strings.Join(parts, " ")
	level, err := ctx.HashValue("level")
	if err != nil {
		return nil, err
	}
	logger := ctx.Logger()
	switch values.ToString(level) {
	case "trace", "debug":
		logger.Debug(msg)
	case "warn":
		logger.Warn(msg)
	case "error":
		logger.Error(msg)
	default:
		logger.Info(msg)
	}
	return nil, nil
}

// json serializes its argument. The output is written directly so the
// escape function cannot mangle it.
func jsonHelper(ctx *render.Context) (interface{}, error) {
	v, err := ctx.Arg(0)
	if err != nil {
		return nil, err
	}
	pretty, err := ctx.HashValue("pretty")
	if err != nil {
		return nil, err
	}
	var data []byte
	if values.Truthy(pretty) {
		data, err = json.MarshalIndent(v, "", "  ")
	} else {
		data, err = json.Marshal(v)
	}
	if err != nil {
		return nil, err
	}
	ctx.Write(string(data))
	return nil, nil
}

// lookup resolves an object property or array element dynamically.
func lookupHelper(ctx *render.Context) (interface{}, error) {
	container, err := ctx.Arg(0)
	if err != nil {
		return nil, err
	}
	key, err := ctx.Arg(1)
	if err != nil {
		return nil, err
	}
	switch container := container.(type) {
	case *values.Object:
		v, _ := container.Get(values.ToString(key))
		return v, nil
	case []interface{}:
		if i, ok := key.(int64); ok && i >= 0 && i < int64(len(container)) {
			return container[i], nil
		}
		return nil, nil
	}
	return nil, nil
}

// date formats a time with a strftime pattern: {{date value "%Y-%m-%d"}}.
// Values may be RFC 3339 strings, date strings, or Unix seconds.
func dateHelper(ctx *render.Context) (interface{}, error) {
	v, err := ctx.Arg(0)
	if err != nil {
		return nil, err
	}
	t, err := parseTime(v)
	if err != nil {
		return nil, err
	}
	format := "%a, %b %d, %y"
	if ctx.NumArgs() > 1 {
		f, err := ctx.Arg(1)
		if err != nil {
			return nil, err
		}
		format = values.ToString(f)
	}
	return tuesday.Strftime(format, t)
}

func parseTime(v interface{}) (time.Time, error) {
	switch v := v.(type) {
	case string:
		for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
			if t, err := time.Parse(layout, v); err == nil {
				return t, nil
			}
		}
		return time.Time{}, fmt.Errorf("cannot parse %q as a date", v)
	case int64:
		return time.Unix(v, 0).UTC(), nil
	case float64:
		return time.Unix(int64(v), 0).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("cannot interpret %T as a date", v)
}

// comparison builds a chained pairwise comparison helper: every
// adjacent argument pair must satisfy rel.
func comparison(rel func(a, b interface{}) bool) render.Helper {
	return func(ctx *render.Context) (interface{}, error) {
		prev, err := ctx.Arg(0)
		if err != nil {
			return nil, err
		}
		for i := 1; i < ctx.NumArgs(); i++ {
			cur, err := ctx.Arg(i)
			if err != nil {
				return nil, err
			}
			if !rel(prev, cur) {
				return false, nil
			}
			prev = cur
		}
		return true, nil
	}
}

// ordered builds a comparison helper over values.Compare; incompatible
// types compare false.
func ordered(accept func(n int) bool) render.Helper {
	return comparison(func(a, b interface{}) bool {
		n, ok := values.Compare(a, b)
		return ok && accept(n)
	})
}

// comparable2 reports whether two values belong to a comparable pair of
// kinds: number/number, string/string, or bool/bool.
func comparable2(a, b interface{}) bool {
	switch a.(type) {
	case int64, float64:
		switch b.(type) {
		case int64, float64:
			return true
		}
	case string:
		_, ok := b.(string)
		return ok
	case bool:
		_, ok := b.(bool)
		return ok
	}
	return false
}
