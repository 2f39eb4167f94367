// Package gen generates Go types from an entity model. Every entity
// becomes a struct whose fields mirror its attributes and to-one
// relationships, plus the key constants and the lookup method the
// qualifier evaluator needs.
package gen

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/dave/jennifer/jen"
	"golang.org/x/sync/errgroup"

	"github.com/syssam/celer"
	"github.com/syssam/celer/model"
)

// Generator writes one Go file per entity, in parallel. Jennifer tracks
// the imports, so the rendered files need no post-processing.
type Generator struct {
	model   *model.Model
	outDir  string
	pkg     string
	workers int
}

// New returns a Generator writing to outDir. The package name defaults
// to the directory base name.
func New(m *model.Model, outDir string) *Generator {
	return &Generator{
		model:   m,
		outDir:  outDir,
		pkg:     filepath.Base(outDir),
		workers: runtime.GOMAXPROCS(0),
	}
}

// WithPackage sets the output package name.
func (g *Generator) WithPackage(pkg string) *Generator {
	if pkg != "" {
		g.pkg = pkg
	}
	return g
}

// WithWorkers sets the number of parallel workers.
func (g *Generator) WithWorkers(n int) *Generator {
	if n > 0 {
		g.workers = n
	}
	return g
}

// Generate writes all entity files.
func (g *Generator) Generate(ctx context.Context) error {
	if err := os.MkdirAll(g.outDir, 0o755); err != nil {
		return err
	}
	errg, _ := errgroup.WithContext(ctx)
	errg.SetLimit(g.workers)
	for _, e := range g.model.Entities {
		errg.Go(func() error {
			return g.writeFile(g.genEntity(e), strings.ToLower(e.Name)+".go")
		})
	}
	return errg.Wait()
}

func (g *Generator) writeFile(f *jen.File, filename string) error {
	out, err := os.Create(filepath.Join(g.outDir, filename))
	if err != nil {
		return err
	}
	defer out.Close()
	return f.Render(out)
}

func (g *Generator) newFile() *jen.File {
	f := jen.NewFile(g.pkg)
	f.HeaderComment("Code generated by celer. DO NOT EDIT.")
	return f
}

// genEntity renders the struct, the table and key constants, and the
// ValueForKey method for one entity.
func (g *Generator) genEntity(e *model.Entity) *jen.File {
	f := g.newFile()
	name := pascal(e.Name)

	f.Commentf("%sTable is the table the %s entity is stored in.", name, name)
	f.Const().Id(name + "Table").Op("=").Lit(e.Table)

	f.Commentf("Qualifier keys of the %s entity.", name)
	f.Const().DefsFunc(func(d *jen.Group) {
		for _, a := range e.Attributes {
			d.Id(name + "Key" + pascal(a.Name)).Op("=").Lit(a.Name)
		}
	})

	f.Commentf("%s is the model entity for the %q table.", name, e.Table)
	f.Type().Id(name).StructFunc(func(s *jen.Group) {
		for _, a := range e.Attributes {
			s.Id(pascal(a.Name)).Add(goType(a))
		}
		for _, r := range e.Relationships {
			dest := pascal(r.Destination)
			if r.ToMany {
				s.Id(pascal(r.Name)).Index().Op("*").Id(dest)
			} else {
				s.Id(pascal(r.Name)).Op("*").Id(dest)
			}
		}
	})

	f.Commentf("ValueForKey makes %s a qualifier.Valuer: the evaluator reads", name)
	f.Comment("attribute and relationship values through it.")
	f.Func().Params(jen.Id("m").Op("*").Id(name)).Id("ValueForKey").
		Params(jen.Id("key").String()).
		Params(jen.Any(), jen.Bool()).
		Block(
			jen.Switch(jen.Id("key")).BlockFunc(func(s *jen.Group) {
				for _, a := range e.Attributes {
					field := jen.Id("m").Dot(pascal(a.Name))
					if isPointer(a) {
						s.Case(jen.Lit(a.Name)).Block(
							jen.If(field.Clone().Op("==").Nil()).Block(
								jen.Return(jen.Nil(), jen.True()),
							),
							jen.Return(jen.Op("*").Add(field.Clone()), jen.True()),
						)
					} else {
						s.Case(jen.Lit(a.Name)).Block(
							jen.Return(field.Clone(), jen.True()),
						)
					}
				}
				for _, r := range e.Relationships {
					s.Case(jen.Lit(r.Name)).Block(
						jen.Return(jen.Id("m").Dot(pascal(r.Name)), jen.True()),
					)
				}
			}),
			jen.Return(jen.Nil(), jen.False()),
		)
	return f
}

// goType maps an attribute to its Go type. Nullable scalar attributes
// become pointers; bytes are already nilable.
func goType(a *model.Attribute) jen.Code {
	var t *jen.Statement
	switch a.Type {
	case celer.KindBool:
		t = jen.Bool()
	case celer.KindInt:
		t = jen.Int64()
	case celer.KindFloat:
		t = jen.Float64()
	case celer.KindText:
		t = jen.String()
	case celer.KindBytes:
		return jen.Index().Byte()
	case celer.KindTime:
		t = jen.Qual("time", "Time")
	case celer.KindUUID:
		t = jen.Qual("github.com/google/uuid", "UUID")
	default:
		return jen.Any()
	}
	if a.Nullable {
		return jen.Op("*").Add(t)
	}
	return t
}

func isPointer(a *model.Attribute) bool {
	switch a.Type {
	case celer.KindBytes, celer.KindList, celer.KindInvalid, celer.KindNull:
		return false
	}
	return a.Nullable
}

var initialisms = map[string]string{
	"id":   "ID",
	"uuid": "UUID",
	"url":  "URL",
	"api":  "API",
}

// pascal converts snake_case and camelCase names to PascalCase, keeping
// common initialisms upper-cased.
func pascal(name string) string {
	var b strings.Builder
	for _, part := range splitName(name) {
		if u, ok := initialisms[strings.ToLower(part)]; ok {
			b.WriteString(u)
			continue
		}
		b.WriteString(strings.ToUpper(part[:1]))
		b.WriteString(part[1:])
	}
	return b.String()
}

// splitName breaks a name on underscores and lower-to-upper boundaries.
func splitName(name string) []string {
	var parts []string
	start := 0
	for i := 1; i <= len(name); i++ {
		if i == len(name) || name[i] == '_' || (isUpper(name[i]) && !isUpper(name[i-1])) {
			if start < i {
				parts = append(parts, name[start:i])
			}
			start = i
			if i < len(name) && name[i] == '_' {
				start = i + 1
			}
		}
	}
	return parts
}

func isUpper(c byte) bool { return c >= 'A' && c <= 'Z' }
