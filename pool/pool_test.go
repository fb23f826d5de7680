package pool

import (
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/ZenLiuCN/fn"
	. "github.com/ZenLiuCN/native"
	"github.com/davecgh/go-spew/spew"
)

// memory serves linux libraries by bare name, the OS search of the registry.
type memory struct {
	sync.Mutex
	libs    map[string][]string
	handles map[Handle]string
	closed  []string
}

func (m *memory) Platform() Platform { return PlatformLinux }

func (m *memory) NormalizeName(name, version string) string {
	return NormalizeName(PlatformLinux, name, version)
}

func (m *memory) Open(path string) (Handle, error) {
	m.Lock()
	defer m.Unlock()
	if _, ok := m.libs[path]; !ok {
		return 0, nil
	}
	h := Handle(len(m.handles) + len(m.closed) + 1)
	m.handles[h] = path
	return h, nil
}

func (m *memory) Resolve(h Handle, name string) (uintptr, error) {
	m.Lock()
	defer m.Unlock()
	for i, s := range m.libs[m.handles[h]] {
		if s == name {
			return uintptr(h)<<8 | uintptr(i+1), nil
		}
	}
	return 0, &SymbolError{Handle: h, Name: name}
}

func (m *memory) Close(h Handle) bool {
	m.Lock()
	defer m.Unlock()
	m.closed = append(m.closed, m.handles[h])
	delete(m.handles, h)
	return true
}

func newPool() (*Pool, *memory) {
	m := &memory{
		libs: map[string][]string{
			"libmathlib.so": {"add", "sub"},
			"libmathv2.so":  {"add", "sub"},
			"libc.so.6":     {"abs"},
		},
		handles: make(map[Handle]string),
	}
	dir := filepath.Join(string(filepath.Separator), "nonexistent")
	r := &ProbeResolver{Fixup: true, WorkingDir: dir}
	return NewPool(NewBinder(NewRegistry(m, r, nil))), m
}

func math(overrides ...Override) Interface {
	lib := Library{Name: "mathlib", Overrides: overrides}
	return Interface{Name: "Math", Methods: []MethodDescriptor{
		{Name: "add", Library: lib, Params: []Param{{Type: TypeInt32}, {Type: TypeInt32}}, Result: TypeInt32},
		{Name: "sub", Library: lib, Params: []Param{{Type: TypeInt32}, {Type: TypeInt32}}, Result: TypeInt32},
	}}
}

func TestPool(t *testing.T) {
	p, m := newPool()
	fn.Panic(p.Bind(math()))
	fn.Panic(p.Bind(Interface{Name: "LibC", Methods: []MethodDescriptor{
		{Name: "abs", Library: Library{Name: "c", Version: "6"}, Params: []Param{{Type: TypeInt32}}, Result: TypeInt32},
	}}))
	if err := p.Bind(math()); !errors.Is(err, ErrAlreadyBound) {
		t.Fatalf("expect ErrAlreadyBound got %v", err)
	}
	add := p.Require("Math", "add")
	if add.Library != "libmathlib.so" || add.Address == 0 {
		t.Fatalf("unexpected method %s", spew.Sdump(add))
	}
	if _, err := p.Lookup("Math", "mul"); !errors.Is(err, ErrUnknownMethod) {
		t.Fatalf("expect ErrUnknownMethod got %v", err)
	}
	if _, err := p.Lookup("Trig", "cos"); !errors.Is(err, ErrMissingInterface) {
		t.Fatalf("expect ErrMissingInterface got %v", err)
	}
	func() {
		defer func() {
			if r := recover(); r == nil {
				t.Fatal("Require must panic")
			}
		}()
		p.Require("Trig", "cos")
	}()
	p.Close()
	if len(p.Bindings) != 0 || len(p.Loaded) != 0 || len(p.Registry().Loaded()) != 0 {
		t.Fatalf("close must release everything: %v", p.Registry().Loaded())
	}
	if len(m.closed) != 2 {
		t.Fatalf("expect two libraries closed got %v", m.closed)
	}
}

func TestRebind(t *testing.T) {
	p, m := newPool()
	defer p.Close()
	fn.Panic(p.Bind(math()))
	old := p.Bindings["Math"]
	fn.Panic(p.Rebind(math(Override{Platform: PlatformLinux, Name: "mathv2"})))
	if !old.Released() {
		t.Fatal("old binding must be released")
	}
	if len(m.closed) != 1 || m.closed[0] != "libmathlib.so" {
		t.Fatalf("unused library must be freed: %v", m.closed)
	}
	if add := p.Require("Math", "add"); add.Library != "libmathv2.so" {
		t.Fatalf("rebind must follow the new description: %s", add.Library)
	}
	if err := p.Rebind(Interface{Name: "Trig"}); !errors.Is(err, ErrNotBound) {
		t.Fatalf("expect ErrNotBound got %v", err)
	}
}

func TestRelease(t *testing.T) {
	p, _ := newPool()
	defer p.Close()
	fn.Panic(p.Bind(math()))
	b := p.Bindings["Math"]
	fn.Panic(p.Release("Math"))
	if !b.Released() || len(p.Loaded) != 0 {
		t.Fatal("binding must be released")
	}
	if !p.Registry().IsLoaded("mathlib", "") {
		t.Fatal("release keeps libraries loaded")
	}
	if err := p.Release("Math"); !errors.Is(err, ErrNotBound) {
		t.Fatalf("expect ErrNotBound got %v", err)
	}
}

type mathStruct struct {
	_   struct{}               `native:",lib=mathlib"`
	Add func(a, b int32) int32 `native:"add"`
}

func TestBindStruct(t *testing.T) {
	p, _ := newPool()
	defer p.Close()
	fn.Panic(p.BindStruct("Math", new(mathStruct)))
	if add := p.Require("Math", "Add"); add.Descriptor.Entry() != "add" || add.Descriptor.Func == nil {
		t.Fatalf("unexpected method %s", spew.Sdump(add.Descriptor))
	}
	if err := p.BindStruct("Math", new(mathStruct)); !errors.Is(err, ErrAlreadyBound) {
		t.Fatalf("expect ErrAlreadyBound got %v", err)
	}
	type missing struct {
		Mul func(a, b int32) int32 `native:"mul,lib=mathlib"`
	}
	var be *BindError
	if err := p.BindStruct("Missing", new(missing)); !errors.As(err, &be) || !errors.Is(err, ErrSymbolNotFound) {
		t.Fatalf("expect BindError got %v", err)
	}
	if _, ok := p.Bindings["Missing"]; ok {
		t.Fatal("failed bind must not be pooled")
	}
	if err := p.BindStruct("Other", mathStruct{}); !errors.Is(err, ErrInvalidInterfaceShape) {
		t.Fatalf("expect shape error got %v", err)
	}
}
