package native

import (
	"path/filepath"
	"sync"
	"sync/atomic"
)

// fakeBackend serves libraries from memory, keyed by the path or bare name the registry opens.
type fakeBackend struct {
	platform  Platform
	libs      map[string]map[string]uintptr
	failClose bool

	mu       sync.Mutex
	next     Handle
	handles  map[Handle]string
	attempts []string
	opens    atomic.Int32
	resolves atomic.Int32
	closes   atomic.Int32
}

func newFake(p Platform) *fakeBackend {
	return &fakeBackend{
		platform: p,
		libs:     make(map[string]map[string]uintptr),
		handles:  make(map[Handle]string),
	}
}

// with serves symbols at path.
func (f *fakeBackend) with(path string, symbols ...string) *fakeBackend {
	s := make(map[string]uintptr, len(symbols))
	for i, n := range symbols {
		s[n] = uintptr(0x1000*(len(f.libs)+1) + i + 1)
	}
	f.libs[path] = s
	return f
}

func (f *fakeBackend) Platform() Platform { return f.platform }

func (f *fakeBackend) NormalizeName(name, version string) string {
	return NormalizeName(f.platform, name, version)
}

func (f *fakeBackend) Open(path string) (Handle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attempts = append(f.attempts, path)
	if _, ok := f.libs[path]; !ok {
		return 0, nil
	}
	f.opens.Add(1)
	f.next++
	f.handles[f.next] = path
	return f.next, nil
}

func (f *fakeBackend) Resolve(h Handle, name string) (uintptr, error) {
	f.resolves.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.libs[f.handles[h]][name]; ok {
		return p, nil
	}
	return 0, &SymbolError{Handle: h, Name: name}
}

func (f *fakeBackend) Close(h Handle) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failClose {
		return false
	}
	if _, ok := f.handles[h]; !ok {
		return false
	}
	f.closes.Add(1)
	delete(f.handles, h)
	return true
}

func (f *fakeBackend) opened() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.attempts...)
}

var (
	exeDir  = filepath.Join(string(filepath.Separator), "app")
	baseDir = filepath.Join(string(filepath.Separator), "opt", "app")
	workDir = filepath.Join(string(filepath.Separator), "work")
)

func testResolver() *ProbeResolver {
	return &ProbeResolver{Fixup: true, ExecutableDir: exeDir, BaseDir: baseDir, WorkingDir: workDir}
}

func testRegistry(f *fakeBackend) *Registry {
	return NewRegistry(f, testResolver(), nil)
}

func mathIface(overrides ...Override) Interface {
	lib := Library{Name: "mathlib", Overrides: overrides}
	return Interface{
		Name: "Math",
		Methods: []MethodDescriptor{
			{Name: "add", Library: lib, Params: []Param{{Name: "a", Type: TypeInt}, {Name: "b", Type: TypeInt}}, Result: TypeInt},
			{Name: "sub", Library: lib, Params: []Param{{Name: "a", Type: TypeInt}, {Name: "b", Type: TypeInt}}, Result: TypeInt},
		},
	}
}
