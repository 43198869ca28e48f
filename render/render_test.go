package render

import (
	"bytes"
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/xerrors"

	"github.com/bracket-lang/bracket/parser"
	"github.com/bracket-lang/bracket/source"
	"github.com/bracket-lang/bracket/values"
)

func renderString(t *testing.T, cfg *Config, tmpl string, data interface{}) (string, error) {
	t.Helper()
	tree, err := parser.ParseString("", tmpl)
	require.NoError(t, err)
	buf := new(bytes.Buffer)
	if err := Render(buf, tree, cfg, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func testConfig() *Config {
	cfg := NewConfig()
	cfg.AddBlockHelper("when", func(ctx *Context) error {
		v, err := ctx.Arg(0)
		if err != nil {
			return err
		}
		if values.Truthy(v) {
			return ctx.RenderBody()
		}
		return ctx.RenderElse()
	})
	cfg.AddBlockHelper("if", func(ctx *Context) error {
		v, err := ctx.Arg(0)
		if err != nil {
			return err
		}
		if values.Truthy(v) {
			return ctx.RenderBody()
		}
		return ctx.RenderElse()
	})
	cfg.AddHelper("upper-first", func(ctx *Context) (interface{}, error) {
		v, err := ctx.Arg(0)
		if err != nil {
			return nil, err
		}
		s := values.ToString(v)
		if s == "" {
			return s, nil
		}
		return string(s[0]-'a'+'A') + s[1:], nil
	})
	return cfg
}

var renderTests = []struct {
	in       string
	data     string
	expected string
}{
	// Text-only templates render verbatim.
	{"plain text { not a tag", `{}`, "plain text { not a tag"},
	{"line1\nline2\n", `{}`, "line1\nline2\n"},

	// Path resolution.
	{`{{a.b.c}}`, `{"a":{"b":{"c":"deep"}}}`, `deep`},
	{`{{a/b}}`, `{"a":{"b":"slash"}}`, `slash`},
	{`{{a.[weird key]}}`, `{"a":{"weird key":"v"}}`, `v`},
	{`{{xs.[0]}}{{xs.[5]}}`, `{"xs":["a"]}`, `a`},
	{`{{./a}}`, `{"a":"explicit"}`, `explicit`},
	{`{{this.a}}`, `{"a":"drill"}`, `drill`},
	{`{{missing.deeply.nested}}`, `{}`, ``},
	{`{{n}}|{{f}}|{{t}}`, `{"n":7,"f":2.5,"t":true}`, `7|2.5|true`},

	// Default block semantics.
	{`{{#user}}{{name}}{{/user}}`, `{"user":{"name":"Ada"}}`, `Ada`},
	{`{{#flag}}on{{else}}off{{/flag}}`, `{"flag":0}`, `off`},
	{`{{#xs}}{{this.length}}{{/xs}}`, `{"xs":[1,2,3]}`, `3`},

	// Custom helpers.
	{`{{upper-first name}}`, `{"name":"ada"}`, `Ada`},
	{`{{#when ok}}y{{else}}n{{/when}}`, `{"ok":true}`, `y`},
	{`{{upper-first (upper-first name)}}`, `{"name":"ada"}`, `Ada`},

	// Whitespace control.
	{"a  \n  {{~v}}", `{"v":"X"}`, "a  X"},
	{"a   {{~v}}", `{"v":"X"}`, "aX"},
	{"{{v~}}   \n   b", `{"v":"X"}`, "X   b"},
	{"{{v~}}{{! note}}\nb", `{"v":"X"}`, "Xb"},
	{"x\n{{~#when ok~}}\n  body\n{{~/when~}}\ny", `{"ok":true}`, "x  bodyy"},
	{"{{#when ok}}a{{~else~}}b{{/when}}", `{"ok":false}`, "b"},

	// Literals as arguments.
	{`{{upper-first "ada"}}`, `{}`, `Ada`},
}

func TestRender(t *testing.T) {
	cfg := testConfig()
	for i, test := range renderTests {
		testV := test
		t.Run(fmt.Sprint(i+1), func(t *testing.T) {
			data, err := values.FromJSON(testV.data)
			require.NoErrorf(t, err, testV.data)
			out, err := renderString(t, cfg, testV.in, data)
			require.NoErrorf(t, err, testV.in)
			require.Equalf(t, testV.expected, out, testV.in)
		})
	}
}

func TestRender_HelperContext(t *testing.T) {
	cfg := NewConfig()
	cfg.AddHelper("meta", func(ctx *Context) (interface{}, error) {
		hash, err := ctx.Hash()
		if err != nil {
			return nil, err
		}
		return values.ToString(hash), nil
	})
	out, err := renderString(t, cfg, `{{{meta b=2 a=1}}}`, nil)
	require.NoError(t, err)
	// Hash arguments keep first-occurrence order.
	require.Equal(t, `{"b":2,"a":1}`, out)
}

func TestRender_LazyArgs(t *testing.T) {
	cfg := NewConfig()
	evaluated := 0
	cfg.AddHelper("probe", func(ctx *Context) (interface{}, error) {
		evaluated++
		return "x", nil
	})
	cfg.AddHelper("first", func(ctx *Context) (interface{}, error) {
		return ctx.Arg(0)
	})
	_, err := renderString(t, cfg, `{{first "a" (probe)}}`, nil)
	require.NoError(t, err)
	require.Equal(t, 0, evaluated, "unused arguments must not be evaluated")
}

func TestRender_Partials(t *testing.T) {
	cfg := testConfig()
	item, err := parser.ParseString("item", `<li>{{label}}</li>`)
	require.NoError(t, err)
	cfg.AddPartial("item", item)

	out, err := renderString(t, cfg, `{{> item label="x"}}`, nil)
	require.NoError(t, err)
	require.Equal(t, `<li>x</li>`, out)

	// A partial failure reports the inclusion chain.
	boom, err := parser.ParseString("boom", `{{> nowhere}}`)
	require.NoError(t, err)
	cfg.AddPartial("boom", boom)
	_, err = renderString(t, cfg, `{{> boom}}`, nil)
	require.Error(t, err)
	var se *source.Error
	require.True(t, xerrors.As(err, &se))
	require.Equal(t, source.UnknownPartial, se.Kind)
	require.NotEmpty(t, se.Notes)
}

func TestRender_PartialBlockMasking(t *testing.T) {
	cfg := testConfig()
	outer, err := parser.ParseString("outer", `[{{@partial-block}}|{{> inner}}]`)
	require.NoError(t, err)
	cfg.AddPartial("outer", outer)
	inner, err := parser.ParseString("inner", `inner:{{@partial-block}}`)
	require.NoError(t, err)
	cfg.AddPartial("inner", inner)

	// @partial-block exists only in the immediate dynamic extent of the
	// partial-block invocation; the nested plain partial sees nothing.
	out, err := renderString(t, cfg, `{{#> outer}}B{{/outer}}`, nil)
	require.NoError(t, err)
	require.Equal(t, `[B|inner:]`, out)
}

func TestRender_PartialRecursionBounded(t *testing.T) {
	cfg := testConfig()
	loop, err := parser.ParseString("loop", `{{> loop}}`)
	require.NoError(t, err)
	cfg.AddPartial("loop", loop)
	_, err = renderString(t, cfg, `{{> loop}}`, nil)
	require.Error(t, err)
}

func TestRender_ParentDepth(t *testing.T) {
	cfg := testConfig()
	_, err := renderString(t, cfg, `{{../x}}`, map[string]interface{}{"x": 1})
	require.Error(t, err)
	var se *source.Error
	require.True(t, xerrors.As(err, &se))
	require.Equal(t, source.InvalidPath, se.Kind)
}

func TestRender_EscapeError(t *testing.T) {
	cfg := NewConfig()
	cfg.SetEscape(func(s string) (string, error) {
		return "", fmt.Errorf("escape exploded")
	})
	_, err := renderString(t, cfg, `{{v}}`, map[string]interface{}{"v": "x"})
	require.Error(t, err)
	var se *source.Error
	require.True(t, xerrors.As(err, &se))
	require.Equal(t, source.EscapeError, se.Kind)
}

func TestRender_Cancellation(t *testing.T) {
	tree, err := parser.ParseString("", `text {{v}}`)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = RenderContext(ctx, new(bytes.Buffer), tree, NewConfig(), nil)
	require.Error(t, err)
	var se *source.Error
	require.True(t, xerrors.As(err, &se))
	require.Equal(t, source.Cancelled, se.Kind)
}

func TestRender_ConcurrentRenders(t *testing.T) {
	cfg := testConfig()
	tree, err := parser.ParseString("", `{{#when ok}}{{n}}{{/when}}`)
	require.NoError(t, err)
	done := make(chan error, 8)
	for i := 0; i < 8; i++ {
		n := i
		go func() {
			buf := new(bytes.Buffer)
			err := Render(buf, tree, cfg, map[string]interface{}{"ok": true, "n": n})
			if err == nil && buf.String() != fmt.Sprint(n) {
				err = fmt.Errorf("got %q", buf.String())
			}
			done <- err
		}()
	}
	for i := 0; i < 8; i++ {
		require.NoError(t, <-done)
	}
}
