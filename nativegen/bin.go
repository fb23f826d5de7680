package main

import (
	"bytes"
	"fmt"
	"log"
	"os"
	"text/tabwriter"

	"github.com/ZenLiuCN/fn"
	. "github.com/ZenLiuCN/native"
	"github.com/ZenLiuCN/native/describe"
	"github.com/ZenLiuCN/native/gen"
	"github.com/davecgh/go-spew/spew"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
)

func main() {
	if err := app().Run(os.Args); err != nil {
		log.Fatalf("failure %s", err)
	}
}

func app() *cli.App {
	app := cli.NewApp()
	app.Usage = "native binding generator"
	app.Name = "nativegen"
	app.Description = "generate Go bindings of native libraries from yaml or hcl descriptions, and check them against the running platform"
	app.Flags = []cli.Flag{
		&cli.BoolFlag{
			Name:    "debug",
			Aliases: []string{"d"},
			Usage:   "log library loading",
		},
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "configuration file, environment NATIVE_* applies as well",
		},
	}
	app.Commands = []*cli.Command{
		{
			Name:   "generate",
			Action: generate,
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "output file or stdout when empty"},
				&cli.StringFlag{Name: "pkg", Aliases: []string{"p"}, Usage: "package name, overrides the one of the description"},
			},
			Args:      true,
			ArgsUsage: "description",
			Usage:     "generate go source of the interfaces in a description file",
		},
		{
			Name:   "names",
			Action: names,
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "platform", Aliases: []string{"p"}, Usage: "windows, linux or osx, default the running one"},
			},
			Args:      true,
			ArgsUsage: "name [version]",
			Usage:     "display the physical file name of a library",
		},
		{
			Name:      "probe",
			Action:    probe,
			Args:      true,
			ArgsUsage: "name [version]",
			Usage:     "display the paths probed for a library",
		},
		{
			Name:      "check",
			Action:    check,
			Args:      true,
			ArgsUsage: "description...",
			Usage:     "bind every interface of description files and display resolved addresses",
		},
		{
			Name:      "inspect",
			Action:    inspect,
			Args:      true,
			ArgsUsage: "description...",
			Usage:     "dump interface descriptions of description files",
		},
	}
	return app
}

func config(ctx *cli.Context) (c *Config, err error) {
	if c, err = ReadConfig(ctx.String("config")); err != nil {
		return
	}
	if ctx.Bool("debug") {
		c.Debug = true
	}
	return
}

func generate(ctx *cli.Context) (err error) {
	if ctx.NArg() != 1 {
		return fmt.Errorf("required one description file")
	}
	var f *describe.File
	if f, err = describe.Load(ctx.Args().First()); err != nil {
		return
	}
	if p := ctx.String("pkg"); p != "" {
		f.Package = p
	}
	b := new(bytes.Buffer)
	if err = gen.Generate(f, b); err != nil {
		return
	}
	out := ctx.String("out")
	if out == "" {
		_, err = ctx.App.Writer.Write(b.Bytes())
		return
	}
	return errors.Wrap(os.WriteFile(out, b.Bytes(), 0o644), "write output")
}

func names(ctx *cli.Context) (err error) {
	if ctx.NArg() < 1 || ctx.NArg() > 2 {
		return fmt.Errorf("required name and optional version")
	}
	p := CurrentPlatform()
	if s := ctx.String("platform"); s != "" {
		if p, err = ParsePlatform(s); err != nil {
			return
		}
	}
	_, err = fmt.Fprintln(ctx.App.Writer, NormalizeName(p, ctx.Args().Get(0), ctx.Args().Get(1)))
	return
}

func probe(ctx *cli.Context) (err error) {
	if ctx.NArg() < 1 || ctx.NArg() > 2 {
		return fmt.Errorf("required name and optional version")
	}
	var c *Config
	if c, err = config(ctx); err != nil {
		return
	}
	r := c.Resolver()
	name := ctx.Args().Get(0)
	if r.FixupLibraryName() {
		name = NormalizeName(CurrentPlatform(), name, ctx.Args().Get(1))
	}
	for p := range r.ProbePaths(name) {
		fmt.Fprintln(ctx.App.Writer, p)
	}
	fmt.Fprintln(ctx.App.Writer, name)
	return
}

func check(ctx *cli.Context) (err error) {
	if ctx.NArg() == 0 {
		return fmt.Errorf("missing description files")
	}
	var c *Config
	if c, err = config(ctx); err != nil {
		return
	}
	var b *Binder
	if b, err = c.NewBinder(nil); err != nil {
		return
	}
	defer b.Registry().FreeAll()
	w := tabwriter.NewWriter(ctx.App.Writer, 0, 4, 2, ' ', 0)
	defer fn.IgnoreClose(flusher{w})
	for _, s := range ctx.Args().Slice() {
		var f *describe.File
		if f, err = describe.Load(s); err != nil {
			return
		}
		var is []Interface
		if is, err = f.Describe(); err != nil {
			return errors.WithMessage(err, s)
		}
		for _, i := range is {
			var x *Binding
			if x, err = b.Bind(i); err != nil {
				return
			}
			for _, n := range x.Methods() {
				m, _ := x.Method(n)
				fmt.Fprintf(w, "%s.%s\t%s\t%s\t0x%x\n", i.Name, n, m.Descriptor.Entry(), m.Library, m.Address)
			}
			x.Release()
		}
	}
	return
}

func inspect(ctx *cli.Context) (err error) {
	if ctx.NArg() == 0 {
		return fmt.Errorf("missing description files")
	}
	sp := spew.NewDefaultConfig()
	sp.DisablePointerAddresses = true
	sp.MaxDepth = 6
	for _, s := range ctx.Args().Slice() {
		var f *describe.File
		if f, err = describe.Load(s); err != nil {
			return
		}
		var is []Interface
		if is, err = f.Describe(); err != nil {
			return errors.WithMessage(err, s)
		}
		sp.Fdump(ctx.App.Writer, s, is)
	}
	return
}

type flusher struct{ *tabwriter.Writer }

func (f flusher) Close() error { return f.Flush() }
