package pool

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	. "github.com/ZenLiuCN/native"
)

// Pool holds one live binding per interface name over a shared Binder.
type Pool struct {
	*Binder
	Bindings map[string]*Binding
	Loaded   []string // interface names in bind order
	sync.RWMutex
}

var (
	ErrAlreadyBound     = errors.New("interface already bound")
	ErrNotBound         = errors.New("interface not bound")
	ErrMissingInterface = errors.New("interface not loaded")
)

// NewPool create new pool
func NewPool(b *Binder) *Pool {
	return &Pool{
		Binder:   b,
		Bindings: make(map[string]*Binding),
	}
}

// Bind an interface description under its name
func (p *Pool) Bind(iface Interface) (err error) {
	p.Lock()
	defer p.Unlock()
	if _, ok := p.Bindings[iface.Name]; ok {
		return fmt.Errorf("%w: %s", ErrAlreadyBound, iface.Name)
	}
	var b *Binding
	if b, err = p.Binder.Bind(iface); err != nil {
		return
	}
	p.add(iface.Name, b)
	return
}

// BindStruct binds a struct of func fields under name, see Binder.BindStruct
func (p *Pool) BindStruct(name string, target any) (err error) {
	p.Lock()
	defer p.Unlock()
	if _, ok := p.Bindings[name]; ok {
		return fmt.Errorf("%w: %s", ErrAlreadyBound, name)
	}
	var b *Binding
	if b, err = p.Binder.BindStruct(target); err != nil {
		return
	}
	p.add(name, b)
	return
}

func (p *Pool) add(name string, b *Binding) {
	p.Bindings[name] = b
	p.Loaded = append(p.Loaded, name)
}

func (p *Pool) remove(name string) (b *Binding) {
	b = p.Bindings[name]
	delete(p.Bindings, name)
	if i := slices.Index(p.Loaded, name); i >= 0 {
		p.Loaded = slices.Delete(p.Loaded, i, i+1)
	}
	b.Release()
	return
}

// unload frees the libraries of b that no binding borrows anymore
func (p *Pool) unload(b *Binding) {
	r := p.Registry()
	for _, name := range b.Libraries() {
		r.Free(Library{Name: name})
	}
}

// Rebind releases the binding of the interface, frees the libraries it alone used and binds the description again
func (p *Pool) Rebind(iface Interface) (err error) {
	p.Lock()
	defer p.Unlock()
	if _, ok := p.Bindings[iface.Name]; !ok {
		return fmt.Errorf("%w: %s", ErrNotBound, iface.Name)
	}
	p.unload(p.remove(iface.Name))
	var b *Binding
	if b, err = p.Binder.Bind(iface); err != nil {
		return
	}
	p.add(iface.Name, b)
	return
}

// Lookup fetch a bound method of an interface
func (p *Pool) Lookup(iface, method string) (*Method, error) {
	p.RLock()
	defer p.RUnlock()
	b, ok := p.Bindings[iface]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingInterface, iface)
	}
	m, ok := b.Method(method)
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s", ErrUnknownMethod, iface, method)
	}
	return m, nil
}

// Require fetch a bound method of an interface, panics when missing
func (p *Pool) Require(iface, method string) *Method {
	m, err := p.Lookup(iface, method)
	if err != nil {
		panic(err)
	}
	return m
}

// Release the binding of an interface, its libraries stay loaded
func (p *Pool) Release(name string) error {
	p.Lock()
	defer p.Unlock()
	if _, ok := p.Bindings[name]; !ok {
		return fmt.Errorf("%w: %s", ErrNotBound, name)
	}
	p.remove(name)
	return nil
}

// Close releases every binding in reverse bind order then frees all libraries of the registry
func (p *Pool) Close() {
	p.Lock()
	defer p.Unlock()
	for i := len(p.Loaded) - 1; i >= 0; i-- {
		b := p.Bindings[p.Loaded[i]]
		delete(p.Bindings, p.Loaded[i])
		b.Release()
	}
	p.Loaded = p.Loaded[:0]
	p.Registry().FreeAll()
}
