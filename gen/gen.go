// Package gen writes Go source binding the interfaces of a description file.
//
// Each interface becomes a struct of func fields tagged for native.Describe, with a constructor binding it:
//
//	type LibC struct {
//		Abs func(x int32) int32 `native:"abs,lib=c,version=6" override:"windows=msvcrt"`
//	}
//
//	func NewLibC(b *native.Binder) (*LibC, *native.Binding, error)
package gen

import (
	"bytes"
	"fmt"
	"go/format"
	"go/token"
	"io"
	"strings"
	"text/template"

	"github.com/ZenLiuCN/native"
	"github.com/ZenLiuCN/native/describe"
	"github.com/pkg/errors"
)

var source = template.Must(template.New("native").Parse(`// Code generated by nativegen. DO NOT EDIT.

package {{.Package}}

import (
{{- if .Unsafe}}
	"unsafe"
{{end}}
	"github.com/ZenLiuCN/native"
)
{{range .Types}}
// {{.Name}} calls exported functions of native libraries, see New{{.Name}}.
type {{.Name}} struct {
{{- range .Fields}}
	{{.Name}} func({{.Params}}){{.Result}} ` + "`{{.Tags}}`" + `
{{- end}}
}

// New{{.Name}} binds a {{.Name}} through b, release the binding once its funcs are no longer called.
func New{{.Name}}(b *native.Binder) (*{{.Name}}, *native.Binding, error) {
	x := new({{.Name}})
	binding, err := b.BindStruct(x)
	if err != nil {
		return nil, nil, err
	}
	return x, binding, nil
}
{{end}}`))

type (
	unit struct {
		Package string
		Unsafe  bool
		Types   []typ
	}
	typ struct {
		Name   string
		Fields []field
	}
	field struct {
		Name   string
		Params string
		Result string
		Tags   string
	}
)

// Generate writes the formatted Go source of file to w.
func Generate(file *describe.File, w io.Writer) error {
	if !token.IsIdentifier(file.Package) {
		return errors.Errorf("invalid package name %q", file.Package)
	}
	is, err := file.Describe()
	if err != nil {
		return err
	}
	u := unit{Package: file.Package}
	seen := make(map[string]bool)
	for _, i := range is {
		if !token.IsIdentifier(i.Name) || !token.IsExported(i.Name) {
			return errors.Errorf("interface %q is not an exported identifier", i.Name)
		}
		if seen[i.Name] {
			return errors.Errorf("duplicate interface %s", i.Name)
		}
		seen[i.Name] = true
		t := typ{Name: i.Name}
		methods := make(map[string]bool)
		for _, m := range i.Methods {
			if !token.IsIdentifier(m.Name) || !token.IsExported(m.Name) {
				return errors.Errorf("method %s.%q is not an exported identifier", i.Name, m.Name)
			}
			if methods[m.Name] {
				return errors.Errorf("duplicate method %s.%s", i.Name, m.Name)
			}
			methods[m.Name] = true
			f, unsafe, err := fieldOf(m)
			if err != nil {
				return errors.WithMessagef(err, "%s.%s", i.Name, m.Name)
			}
			u.Unsafe = u.Unsafe || unsafe
			t.Fields = append(t.Fields, f)
		}
		u.Types = append(u.Types, t)
	}
	b := new(bytes.Buffer)
	if err = source.Execute(b, u); err != nil {
		return errors.Wrap(err, "execute template")
	}
	src, err := format.Source(b.Bytes())
	if err != nil {
		return errors.Wrapf(err, "format generated source\n%s", b.String())
	}
	_, err = w.Write(src)
	return errors.Wrap(err, "write generated source")
}

func fieldOf(m native.MethodDescriptor) (f field, unsafe bool, err error) {
	f.Name = m.Name
	f.Tags = native.FormatTags(m)
	if strings.ContainsRune(f.Tags, '`') {
		return f, false, errors.Errorf("tag %s holds a back quote", f.Tags)
	}
	params := make([]string, 0, len(m.Params))
	names := make(map[string]bool)
	for i, p := range m.Params {
		if p.Type == native.TypeString && (p.Marshal == native.MarshalUTF16 ||
			p.Marshal == native.MarshalDefault && m.CharSet == native.CharSetUnicode) {
			return f, false, errors.Wrapf(native.ErrUnsupportedMarshal, "utf16 string parameter %d, describe it as a pointer", i)
		}
		n := p.Name
		if !token.IsIdentifier(n) || n == "_" || names[n] {
			n = fmt.Sprintf("arg%d", i)
		}
		names[n] = true
		unsafe = unsafe || p.Type == native.TypePointer
		params = append(params, n+" "+p.Type.GoType())
	}
	f.Params = strings.Join(params, ", ")
	if r := m.Result.GoType(); r != "" {
		unsafe = unsafe || m.Result == native.TypePointer
		f.Result = " " + r
	}
	return
}
