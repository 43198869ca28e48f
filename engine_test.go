package bracket

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/xerrors"

	"github.com/bracket-lang/bracket/render"
	"github.com/bracket-lang/bracket/source"
	"github.com/bracket-lang/bracket/values"
)

// There are more tests in the render and helpers sub-packages. This
// collects an end-to-end set over the engine facade.
var bracketTests = []struct {
	in       string
	data     string // JSON
	expected string
}{
	{`Hello {{name}}!`, `{"name":"Ada"}`, `Hello Ada!`},
	{`{{{raw}}}`, `{"raw":"<b>&amp;</b>"}`, `<b>&amp;</b>`},
	{`{{esc}}`, `{"esc":"<b>&</b>"}`, `&lt;b&gt;&amp;&lt;/b&gt;`},
	{`{{#if ok}}Y{{else}}N{{/if}}`, `{"ok":false}`, `N`},
	{"A\n{{~name~}}\nB", `{"name":"X"}`, `AXB`},
	{`{{#each xs}}[{{@index}}:{{this}}]{{/each}}`, `{"xs":["a","b"]}`, `[0:a][1:b]`},
	{`{{lookup m "k"}}`, `{"m":{"k":42}}`, `42`},
	{`\{{name}}`, `{"name":"Ada"}`, `{{name}}`},
	{`{{{{raw}}}}hi {{x}}{{{{/raw}}}}`, `{}`, `hi {{x}}`},

	{`{{#if a}}A{{else if b}}B{{else}}C{{/if}}`, `{"b":1}`, `B`},
	{`{{#if a}}A{{else if b}}B{{else}}C{{/if}}`, `{}`, `C`},
	{`{{#unless done}}pending{{/unless}}`, `{"done":false}`, `pending`},
	{`{{#with user}}{{name}} ({{../site}}){{/with}}`, `{"user":{"name":"Ada"},"site":"b"}`, `Ada (b)`},
	{`{{#each m}}{{@key}}={{this}};{{/each}}`, `{"m":{"b":1,"a":2}}`, `b=1;a=2;`},
	{`{{#each xs}}{{#if @first}}[{{/if}}{{this}}{{#if @last}}]{{/if}}{{/each}}`, `{"xs":[1,2,3]}`, `[123]`},
	{`{{#each xs}}{{else}}none{{/each}}`, `{"xs":[]}`, `none`},
	{`{{#items}}{{name}},{{/items}}`, `{"items":{"name":"only"}}`, `only,`},
	{`{{#missing}}x{{else}}default{{/missing}}`, `{}`, `default`},
	{`{{xs.length}}`, `{"xs":[1,2,3]}`, `3`},
	{`{{xs.[1]}}`, `{"xs":["a","b"]}`, `b`},
	{`{{@root.title}}-{{#with inner}}{{@root.title}}{{/with}}`, `{"title":"T","inner":{"x":1}}`, `T-T`},
	{`{{eq 1 1}} {{ne 1 "1"}} {{gt 2 1}} {{lte "a" "b"}}`, `{}`, `true false true true`},
	{`{{and a (not b)}}`, `{"a":1,"b":false}`, `true`},
	{`{{this}}`, `"top"`, `top`},
	{`{{missing}}`, `{}`, ``},
	{`{{! a comment }}ok`, `{}`, `ok`},
	{`{{!-- has }} inside --}}ok`, `{}`, `ok`},
}

func TestEngine_ParseAndRenderString(t *testing.T) {
	for i, test := range bracketTests {
		testV := test
		t.Run(fmt.Sprint(i+1), func(t *testing.T) {
			engine := NewEngine()
			data, err := values.FromJSON(testV.data)
			require.NoErrorf(t, err, testV.data)
			out, err := engine.ParseAndRenderString(testV.in, data)
			require.NoErrorf(t, err, testV.in)
			require.Equalf(t, testV.expected, out, testV.in)
		})
	}
}

func TestEngine_EscapedAndRawAgree(t *testing.T) {
	engine := NewEngine()
	data := map[string]interface{}{"v": "plain text, no markup"}
	escaped, err := engine.ParseAndRenderString(`{{v}}`, data)
	require.NoError(t, err)
	raw, err := engine.ParseAndRenderString(`{{{v}}}`, data)
	require.NoError(t, err)
	require.Equal(t, raw, escaped)
}

func TestEngine_JSONRoundTrip(t *testing.T) {
	engine := NewEngine()
	in := `{"b":[1,2.5,null],"a":{"nested":"<&>"},"s":"hi"}`
	data, err := values.FromJSON(`{"x":` + in + `}`)
	require.NoError(t, err)
	out, err := engine.ParseAndRenderString(`{{json x}}`, data)
	require.NoError(t, err)

	var got, want interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.NoError(t, json.Unmarshal([]byte(in), &want))
	require.Equal(t, want, got)
	// Object key order survives serialization; encoding/json writes <, &
	// and > as \u escapes.
	var escaped bytes.Buffer
	json.HTMLEscape(&escaped, []byte(in))
	require.Equal(t, escaped.String(), out)
}

func TestEngine_Partials(t *testing.T) {
	engine := NewEngine()
	require.NoError(t, engine.RegisterPartial("greeting", `Hello {{name}}`))
	out, err := engine.ParseAndRenderString(`{{> greeting}}!`, map[string]interface{}{"name": "Ada"})
	require.NoError(t, err)
	require.Equal(t, "Hello Ada!", out)

	// Hash arguments overlay the current base.
	out, err = engine.ParseAndRenderString(`{{> greeting name="Bob"}}`, map[string]interface{}{"name": "Ada"})
	require.NoError(t, err)
	require.Equal(t, "Hello Bob", out)

	// Dynamic targets evaluate a sub-expression to a name.
	out, err = engine.ParseAndRenderString(`{{> (lookup this "which")}}`, map[string]interface{}{
		"which": "greeting", "name": "Ada",
	})
	require.NoError(t, err)
	require.Equal(t, "Hello Ada", out)
}

func TestEngine_PartialBlock(t *testing.T) {
	engine := NewEngine()
	require.NoError(t, engine.RegisterPartial("layout", `<div>{{@partial-block}}</div>`))
	out, err := engine.ParseAndRenderString(`{{#> layout}}body of {{name}}{{/layout}}`,
		map[string]interface{}{"name": "Ada"})
	require.NoError(t, err)
	require.Equal(t, "<div>body of Ada</div>", out)
}

func TestEngine_RegisterHelper(t *testing.T) {
	engine := NewEngine()
	engine.RegisterHelper("shout", func(ctx *render.Context) (interface{}, error) {
		v, err := ctx.Arg(0)
		if err != nil {
			return nil, err
		}
		return values.ToString(v) + "!", nil
	})
	out, err := engine.ParseAndRenderString(`{{shout name}}`, map[string]interface{}{"name": "ada"})
	require.NoError(t, err)
	require.Equal(t, "ada!", out)
}

func TestEngine_SetEscape(t *testing.T) {
	engine := NewEngine()
	engine.SetEscape(func(s string) (string, error) { return "[" + s + "]", nil })
	out, err := engine.ParseAndRenderString(`{{v}}{{{v}}}`, map[string]interface{}{"v": "x"})
	require.NoError(t, err)
	require.Equal(t, "[x]x", out)
}

func TestEngine_LogHelper(t *testing.T) {
	var buf bytes.Buffer
	engine := NewEngine()
	engine.SetLogger(slog.New(slog.NewTextHandler(&buf, nil)))
	out, err := engine.ParseAndRenderString(`a{{log "message" level="warn"}}b`, nil)
	require.NoError(t, err)
	require.Equal(t, "ab", out)
	require.Contains(t, buf.String(), "message")
	require.Contains(t, buf.String(), "WARN")
}

func TestEngine_Errors(t *testing.T) {
	engine := NewEngine()

	_, err := engine.ParseAndRenderString(`{{unknown arg}}`, nil)
	require.Error(t, err)
	var se *source.Error
	require.True(t, xerrors.As(err, &se))
	require.Equal(t, source.UnknownHelper, se.Kind)

	_, err = engine.ParseAndRenderString(`{{> nowhere}}`, nil)
	require.True(t, xerrors.As(err, &se))
	require.Equal(t, source.UnknownPartial, se.Kind)

	_, err = engine.ParseAndRenderString(`{{#if x}}`, nil)
	require.True(t, xerrors.As(err, &se))
	require.Equal(t, source.UnclosedBlock, se.Kind)

	_, err = engine.ParseAndRenderString(`{{#if x}}a{{/each}}`, nil)
	require.True(t, xerrors.As(err, &se))
	require.Equal(t, source.MismatchedBlock, se.Kind)

	_, err = engine.Render("never-registered", nil)
	require.Error(t, err)
}

func TestEngine_RegisterTemplate(t *testing.T) {
	engine := NewEngine()
	_, err := engine.RegisterTemplate("page", `title={{title}}`)
	require.NoError(t, err)
	out, err := engine.Render("page", map[string]interface{}{"title": "T"})
	require.NoError(t, err)
	require.Equal(t, "title=T", out)
}
