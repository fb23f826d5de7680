package gen

import (
	"bytes"
	"go/ast"
	"go/parser"
	"go/token"
	"reflect"
	"strconv"
	"strings"
	"testing"
	"unsafe"

	"github.com/ZenLiuCN/fn"
	"github.com/ZenLiuCN/native"
	"github.com/ZenLiuCN/native/describe"
	"github.com/davecgh/go-spew/spew"
)

var goTypes = map[string]reflect.Type{
	"bool":           reflect.TypeOf(false),
	"int8":           reflect.TypeOf(int8(0)),
	"int16":          reflect.TypeOf(int16(0)),
	"int32":          reflect.TypeOf(int32(0)),
	"int64":          reflect.TypeOf(int64(0)),
	"int":            reflect.TypeOf(0),
	"uint8":          reflect.TypeOf(uint8(0)),
	"uint16":         reflect.TypeOf(uint16(0)),
	"uint32":         reflect.TypeOf(uint32(0)),
	"uint64":         reflect.TypeOf(uint64(0)),
	"uint":           reflect.TypeOf(uint(0)),
	"uintptr":        reflect.TypeOf(uintptr(0)),
	"float32":        reflect.TypeOf(float32(0)),
	"float64":        reflect.TypeOf(float64(0)),
	"string":         reflect.TypeOf(""),
	"unsafe.Pointer": reflect.TypeOf(unsafe.Pointer(nil)),
}

func typeOf(t *testing.T, e ast.Expr) reflect.Type {
	var n string
	switch x := e.(type) {
	case *ast.Ident:
		n = x.Name
	case *ast.SelectorExpr:
		n = x.X.(*ast.Ident).Name + "." + x.Sel.Name
	}
	rt, ok := goTypes[n]
	if !ok {
		t.Fatalf("unexpected type %T %s", e, n)
	}
	return rt
}

// structs rebuilds the generated structs with reflect so Describe can read them back.
func structs(t *testing.T, src []byte) map[string]any {
	f, err := parser.ParseFile(token.NewFileSet(), "gen.go", src, parser.ParseComments)
	if err != nil {
		t.Fatalf("generated source does not parse: %v\n%s", err, src)
	}
	out := make(map[string]any)
	ast.Inspect(f, func(n ast.Node) bool {
		ts, ok := n.(*ast.TypeSpec)
		if !ok {
			return true
		}
		st, ok := ts.Type.(*ast.StructType)
		if !ok {
			return false
		}
		var fields []reflect.StructField
		for _, x := range st.Fields.List {
			ft := x.Type.(*ast.FuncType)
			var in, res []reflect.Type
			for _, p := range ft.Params.List {
				for range p.Names {
					in = append(in, typeOf(t, p.Type))
				}
			}
			if ft.Results != nil {
				for _, r := range ft.Results.List {
					res = append(res, typeOf(t, r.Type))
				}
			}
			tag := fn.Panic1(strconv.Unquote(x.Tag.Value))
			fields = append(fields, reflect.StructField{
				Name: x.Names[0].Name,
				Type: reflect.FuncOf(in, res, false),
				Tag:  reflect.StructTag(tag),
			})
		}
		out[ts.Name.Name] = reflect.New(reflect.StructOf(fields)).Interface()
		return false
	})
	return out
}

func TestGenerate(t *testing.T) {
	f := fn.Panic1(describe.Load("../testdata/math.yaml"))
	b := new(bytes.Buffer)
	fn.Panic(Generate(f, b))
	src := b.Bytes()
	if !bytes.HasPrefix(src, []byte("// Code generated by nativegen. DO NOT EDIT.")) {
		t.Fatalf("missing generated header:\n%s", src)
	}
	for _, s := range []string{"package mathx", "func NewLibC(b *native.Binder) (*LibC, *native.Binding, error)", "Strlen func(s string) uintptr"} {
		if !bytes.Contains(src, []byte(s)) {
			t.Fatalf("missing %q in\n%s", s, src)
		}
	}
	if bytes.Contains(src, []byte(`"unsafe"`)) {
		t.Fatalf("unsafe imported without pointer types\n%s", src)
	}
	is := fn.Panic1(f.Describe())
	got := structs(t, src)
	for _, want := range is {
		target, ok := got[want.Name]
		if !ok {
			t.Fatalf("missing struct %s in\n%s", want.Name, src)
		}
		read := fn.Panic1(native.Describe(target))
		if len(read.Methods) != len(want.Methods) {
			t.Fatalf("%s: %d methods read back, want %d", want.Name, len(read.Methods), len(want.Methods))
		}
		for i, w := range want.Methods {
			r := read.Methods[i]
			if r.Name != w.Name || r.Entry() != w.Entry() || r.Convention != w.Convention || r.Result != w.Result ||
				!reflect.DeepEqual(r.Library, w.Library) {
				t.Fatalf("method read back differs:\n%s\n%s", spew.Sdump(r), spew.Sdump(w))
			}
			for j, p := range w.Params {
				if r.Params[j].Type != p.Type || r.Params[j].Marshal != p.Marshal {
					t.Fatalf("%s parameter %d read back as %v, want %v", w.Name, j, r.Params[j], p)
				}
			}
		}
	}
}

func TestGeneratePointer(t *testing.T) {
	f := &describe.File{Package: "sqlite", Interfaces: []describe.InterfaceSpec{{
		Name:    "Sqlite",
		Library: "sqlite3",
		Methods: []describe.MethodSpec{{
			Name:    "Open",
			Entry:   "sqlite3_open",
			Returns: "int32",
			Params: []describe.ParamSpec{
				{Name: "filename", Type: "string", Marshal: "utf8"},
				{Name: "type", Type: "pointer"},
			},
		}},
	}}}
	b := new(bytes.Buffer)
	fn.Panic(Generate(f, b))
	src := b.String()
	if !strings.Contains(src, `"unsafe"`) || !strings.Contains(src, "Open func(filename string, arg1 unsafe.Pointer) int32") {
		t.Fatalf("unexpected source\n%s", src)
	}
	structs(t, b.Bytes())
}

func TestGenerateInvalid(t *testing.T) {
	method := describe.MethodSpec{Name: "Put", Params: []describe.ParamSpec{{Name: "s", Type: "string"}}}
	for _, c := range []struct {
		name string
		file describe.File
	}{
		{"package", describe.File{Package: "1x", Interfaces: []describe.InterfaceSpec{{Name: "A", Library: "a", Methods: []describe.MethodSpec{method}}}}},
		{"unexported", describe.File{Package: "x", Interfaces: []describe.InterfaceSpec{{Name: "a", Library: "a", Methods: []describe.MethodSpec{method}}}}},
		{"duplicate", describe.File{Package: "x", Interfaces: []describe.InterfaceSpec{{Name: "A", Library: "a", Methods: []describe.MethodSpec{method, method}}}}},
		{"utf16", describe.File{Package: "x", Interfaces: []describe.InterfaceSpec{{Name: "A", Library: "a", CharSet: "unicode", Methods: []describe.MethodSpec{method}}}}},
	} {
		t.Run(c.name, func(t *testing.T) {
			if err := Generate(&c.file, new(bytes.Buffer)); err == nil {
				t.Fatal("expect error")
			}
		})
	}
}
