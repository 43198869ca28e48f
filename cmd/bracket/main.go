// Command bracket renders templates from the command line and dumps
// parse trees for debugging.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	colorable "github.com/mattn/go-colorable"
	"github.com/urfave/cli/v2"

	bracket "github.com/bracket-lang/bracket"
	"github.com/bracket-lang/bracket/loader"
	"github.com/bracket-lang/bracket/parser"
	"github.com/bracket-lang/bracket/source"
	"github.com/bracket-lang/bracket/values"
)

func main() {
	app := &cli.App{
		Name:  "bracket",
		Usage: "render handlebars-compatible templates",
		Commands: []*cli.Command{
			{
				Name:      "render",
				Usage:     "render a template file against a data file",
				ArgsUsage: "TEMPLATE",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "data", Aliases: []string{"d"}, Usage: "JSON or YAML data `FILE`"},
					&cli.StringFlag{Name: "partials", Aliases: []string{"p"}, Usage: "`DIR` of partial templates"},
					&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "output `FILE` (default stdout)"},
				},
				Action: renderAction,
			},
			{
				Name:      "parse",
				Usage:     "print the parse tree of a template file",
				ArgsUsage: "TEMPLATE",
				Action:    parseAction,
			},
		},
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprint(colorable.NewColorableStderr(), source.FormatError(err, true, true))
		os.Exit(1)
	}
}

func renderAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("usage: bracket render [--data FILE] [--partials DIR] [--out FILE] TEMPLATE", 2)
	}
	path := c.Args().First()
	text, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	engine := bracket.NewEngine()
	if dir := c.String("partials"); dir != "" {
		if err := loader.New(dir).LoadDir(engine); err != nil {
			return err
		}
	}

	var data interface{}
	if dataPath := c.String("data"); dataPath != "" {
		raw, err := os.ReadFile(dataPath)
		if err != nil {
			return err
		}
		switch strings.ToLower(filepath.Ext(dataPath)) {
		case ".json":
			data, err = values.FromJSON(string(raw))
		default:
			data, err = values.FromYAML(raw)
		}
		if err != nil {
			return err
		}
	}

	tmpl, err := engine.RegisterTemplate(path, string(text))
	if err != nil {
		return err
	}
	out, err := tmpl.RenderString(data)
	if err != nil {
		return err
	}

	if outPath := c.String("out"); outPath != "" {
		return os.WriteFile(outPath, []byte(out), 0o644)
	}
	_, err = fmt.Print(out)
	return err
}

func parseAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("usage: bracket parse TEMPLATE", 2)
	}
	path := c.Args().First()
	text, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	tmpl, err := parser.Parse(source.New(path, string(text)))
	if err != nil {
		return err
	}
	return parser.Dump(colorable.NewColorableStdout(), tmpl)
}
