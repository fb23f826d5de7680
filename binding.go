package native

import (
	"fmt"
	"reflect"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/ebitengine/purego"
)

type (
	// Method is one bound entry point.
	Method struct {
		Descriptor MethodDescriptor
		Library    string  // physical name of the backing library
		Address    uintptr // resolved entry point
		platform   Platform
	}
	// Binding is the bound implementation of an interface description.
	//
	// Its addresses stay valid while it holds its borrows: the registry refuses to free a borrowed library,
	// call Release once the binding, and every func filled from it, are no longer used.
	Binding struct {
		name      string
		registry  *Registry
		order     []string
		methods   map[string]*Method
		libraries []string
		fresh     []string // libraries the bind loaded first
		released  atomic.Bool
		once      sync.Once
	}
)

func (b *Binding) Name() string { return b.name }

// Methods lists method names in description order.
func (b *Binding) Methods() []string { return slices.Clone(b.order) }

// Method returns a bound method.
func (b *Binding) Method(name string) (m *Method, ok bool) {
	m, ok = b.methods[name]
	return
}

// Libraries lists the distinct physical libraries the binding borrows.
func (b *Binding) Libraries() []string {
	l := slices.Clone(b.libraries)
	slices.Sort(l)
	return slices.Compact(l)
}

func (b *Binding) lookup(name string) (*Method, error) {
	if b.released.Load() {
		return nil, fmt.Errorf("%w: %s", ErrReleased, b.name)
	}
	m, ok := b.methods[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s", ErrUnknownMethod, b.name, name)
	}
	return m, nil
}

// Call invokes a method with integer, bool, pointer or string arguments, see Method.Call.
func (b *Binding) Call(name string, args ...any) (uintptr, error) {
	m, err := b.lookup(name)
	if err != nil {
		return 0, err
	}
	return m.Call(args...)
}

// Register makes fptr, a pointer to a func variable, call the native entry point of a method.
func (b *Binding) Register(name string, fptr any) (err error) {
	m, err := b.lookup(name)
	if err != nil {
		return
	}
	if err = funcPointer(fptr); err != nil {
		return
	}
	if t := reflect.TypeOf(fptr).Elem(); m.Descriptor.Func != nil && t != m.Descriptor.Func {
		return fmt.Errorf("%w: %s is %s, not %s", ErrInvalidInterfaceShape, name, m.Descriptor.Func, t)
	}
	return register(name, fptr, m.Address)
}

var registerFunc = purego.RegisterFunc

func funcPointer(fptr any) error {
	t := reflect.TypeOf(fptr)
	if t == nil || t.Kind() != reflect.Pointer || t.Elem().Kind() != reflect.Func {
		return fmt.Errorf("%w: %T is not a pointer to func", ErrInvalidInterfaceShape, fptr)
	}
	return nil
}

// register fills fptr with a trampoline to addr, purego panics come back as ErrUnsupportedMarshal.
func register(name string, fptr any, addr uintptr) (err error) {
	defer func() {
		switch x := recover().(type) {
		case nil:
		case error:
			err = fmt.Errorf("%w: %s: %w", ErrUnsupportedMarshal, name, x)
		default:
			err = fmt.Errorf("%w: %s: %v", ErrUnsupportedMarshal, name, x)
		}
	}()
	registerFunc(fptr, addr)
	return
}

// Release returns the borrows of the binding to the registry, only the first call counts.
func (b *Binding) Release() {
	b.once.Do(func() {
		b.released.Store(true)
		b.registry.release(b.libraries...)
	})
}

// Released reports whether Release was called.
func (b *Binding) Released() bool { return b.released.Load() }

// As creates a func of type T calling the native entry point of a method.
func As[T any](b *Binding, name string) (x T, err error) {
	err = b.Register(name, &x)
	return
}

// MustAs is As that panics on error.
func MustAs[T any](b *Binding, name string) T {
	x, err := As[T](b, name)
	if err != nil {
		panic(err)
	}
	return x
}

// Use creates a function to fetch and use a method on the fly.
func Use[T any](b *Binding, name string) func(func(t T, err error)) {
	return func(f func(t T, err error)) {
		f(As[T](b, name))
	}
}
