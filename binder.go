package native

import (
	"fmt"
	"reflect"
	"slices"

	"github.com/ZenLiuCN/fn"
	"go.uber.org/zap"
)

type (
	// Binder turns interface descriptions into bindings over the libraries of a Registry.
	Binder struct {
		registry  *Registry
		resolver  PathResolver
		overrides map[string][]Override
		log       *zap.Logger
	}
	// BinderOption configures a Binder.
	BinderOption func(*Binder)
	bound        struct {
		name   string
		handle Handle
	}
)

// WithResolver sets the resolver used to load libraries, nil keeps the registry's one.
func WithResolver(r PathResolver) BinderOption {
	return func(b *Binder) { b.resolver = r }
}

// WithOverrides adds configured overrides by logical library name, they apply after the ones a description carries.
func WithOverrides(o map[string][]Override) BinderOption {
	return func(b *Binder) { b.overrides = o }
}

// WithLogger sets the logger of bind events.
func WithLogger(l *zap.Logger) BinderOption {
	return func(b *Binder) { b.log = l }
}

// NewBinder creates a Binder over a registry.
func NewBinder(r *Registry, opts ...BinderOption) *Binder {
	b := &Binder{registry: r}
	for _, o := range opts {
		o(b)
	}
	if b.log == nil {
		b.log = r.log
	}
	return b
}

func (b *Binder) Registry() *Registry { return b.registry }

// Bind loads the libraries of iface, resolves every entry point and returns the binding.
//
// Libraries are loaded once each, in name order. On failure nothing is bound, the borrows taken are returned
// and the BindError lists the libraries this call loaded first, which stay cached for the caller to free.
func (b *Binder) Bind(iface Interface) (*Binding, error) {
	platform := b.registry.Platform()
	if platform == PlatformUnknown {
		return nil, &BindError{Interface: iface.Name, Err: ErrPlatformUnsupported}
	}
	if len(iface.Methods) == 0 {
		return nil, &BindError{Interface: iface.Name, Err: fmt.Errorf("%w: no methods", ErrInvalidInterfaceShape)}
	}
	seen := make(map[string]bool, len(iface.Methods))
	effective := make([]Library, len(iface.Methods))
	libs := make(map[string]Library)
	for i := range iface.Methods {
		m := &iface.Methods[i]
		if err := m.validate(); err != nil {
			return nil, &BindError{Interface: iface.Name, Method: m.Name, Err: err}
		}
		if seen[m.Name] {
			return nil, &BindError{Interface: iface.Name, Method: m.Name, Err: fmt.Errorf("%w: duplicate method", ErrInvalidInterfaceShape)}
		}
		seen[m.Name] = true
		lib := m.Library
		if extra, ok := b.overrides[lib.Name]; ok {
			lib.Overrides = append(slices.Clone(lib.Overrides), extra...)
		}
		effective[i] = lib.Effective(platform)
		libs[effective[i].String()] = effective[i]
	}

	keys := fn.MapKeys(libs)
	slices.Sort(keys)
	var borrowed, fresh []string
	fail := func(method, library string, err error) (*Binding, error) {
		b.registry.release(borrowed...)
		b.log.Debug("bind failure", zap.String("interface", iface.Name), zap.String("method", method), zap.Error(err))
		return nil, &BindError{Interface: iface.Name, Method: method, Library: library, Loaded: fresh, Err: err}
	}
	handles := make(map[string]bound, len(keys))
	for _, k := range keys {
		name, h, isFresh, err := b.registry.acquire(libs[k], b.resolver)
		if err != nil {
			return fail("", libs[k].Name, err)
		}
		borrowed = append(borrowed, name)
		if isFresh {
			fresh = append(fresh, name)
		}
		handles[k] = bound{name: name, handle: h}
	}

	bd := &Binding{
		name:      iface.Name,
		registry:  b.registry,
		methods:   make(map[string]*Method, len(iface.Methods)),
		libraries: borrowed,
		fresh:     fresh,
	}
	for i, m := range iface.Methods {
		l := handles[effective[i].String()]
		addr, err := b.registry.Resolve(l.handle, m.Entry())
		if err != nil {
			return fail(m.Name, l.name, err)
		}
		bd.methods[m.Name] = &Method{Descriptor: m, Library: l.name, Address: addr, platform: platform}
		bd.order = append(bd.order, m.Name)
	}
	b.log.Debug("bound", zap.String("interface", iface.Name), zap.Strings("libraries", bd.Libraries()))
	return bd, nil
}

// BindStruct describes target with Describe, binds it and fills every func field with a trampoline
// to its native entry point. Floats are only reachable this way, Binding.Call passes integers.
//
// Fields are filled only once every trampoline is built, a failed call leaves target untouched.
func (b *Binder) BindStruct(target any) (*Binding, error) {
	iface, err := Describe(target)
	if err != nil {
		return nil, &BindError{Interface: iface.Name, Err: err}
	}
	for i := range iface.Methods {
		if err = iface.Methods[i].typed(b.registry.Platform()); err != nil {
			return nil, &BindError{Interface: iface.Name, Method: iface.Methods[i].Name, Err: err}
		}
	}
	bd, err := b.Bind(iface)
	if err != nil {
		return nil, err
	}
	v := reflect.ValueOf(target).Elem()
	funcs := make([]reflect.Value, len(iface.Methods))
	for i, m := range iface.Methods {
		funcs[i] = reflect.New(v.FieldByName(m.Name).Type())
		if err = bd.Register(m.Name, funcs[i].Interface()); err != nil {
			bd.Release()
			b.log.Debug("bind failure", zap.String("interface", iface.Name), zap.String("method", m.Name), zap.Error(err))
			return nil, &BindError{Interface: iface.Name, Method: m.Name, Loaded: bd.fresh, Err: err}
		}
	}
	for i, m := range iface.Methods {
		v.FieldByName(m.Name).Set(funcs[i].Elem())
	}
	return bd, nil
}
