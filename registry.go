package native

import (
	"errors"
	"slices"
	"sync"

	"github.com/ZenLiuCN/fn"
	"go.uber.org/zap"
)

type (
	// Registry caches loaded libraries by physical name and owns their handles.
	//
	// Loads and frees are serialized, so one physical library is never opened twice. Symbol resolution
	// does not lock. A library borrowed by a live Binding is never freed.
	Registry struct {
		backend  Backend
		resolver PathResolver
		log      *zap.Logger
		mu       sync.RWMutex
		loaded   map[string]*entry
	}
	entry struct {
		name    string // physical name, the cache key
		path    string // what the OS accepted
		handle  Handle
		borrows int
	}
)

// NewRegistry creates a registry over a backend, a nil resolver means DefaultResolver and a nil log discards events.
func NewRegistry(b Backend, resolver PathResolver, log *zap.Logger) *Registry {
	if resolver == nil {
		resolver = DefaultResolver()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Registry{
		backend:  b,
		resolver: resolver,
		log:      log,
		loaded:   make(map[string]*entry),
	}
}

func (r *Registry) Platform() Platform { return r.backend.Platform() }

func (r *Registry) Backend() Backend { return r.backend }

func (r *Registry) Resolver() PathResolver { return r.resolver }

func (r *Registry) physical(name, version string) string {
	return r.backend.NormalizeName(name, version)
}

// LoadLibrary loads a library without overrides through the default resolver.
func (r *Registry) LoadLibrary(name, version string) (Handle, error) {
	return r.Load(Library{Name: name, Version: version}, nil)
}

// Load returns the handle of lib after applying its override for the running platform.
// A cached library is returned as is, otherwise every probe path is tried before the OS search.
func (r *Registry) Load(lib Library, resolver PathResolver) (Handle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, _, err := r.load(lib, resolver)
	if err != nil {
		return 0, err
	}
	return e.handle, nil
}

func (r *Registry) load(lib Library, resolver PathResolver) (e *entry, fresh bool, err error) {
	if resolver == nil {
		resolver = r.resolver
	}
	lib = lib.Effective(r.backend.Platform())
	name := lib.Name
	if resolver.FixupLibraryName() {
		name = r.physical(lib.Name, lib.Version)
	}
	if x, ok := r.loaded[name]; ok {
		r.log.Debug("library already loaded", zap.String("library", name))
		return x, false, nil
	}
	var (
		h      Handle
		at     string
		probed []string
	)
	for p := range resolver.ProbePaths(name) {
		probed = append(probed, p)
		if h = r.open(p); h != 0 {
			at = p
			break
		}
	}
	if h == 0 {
		if h = r.open(name); h != 0 {
			at = name
		}
	}
	if h == 0 {
		return nil, false, &LibraryError{Name: lib.Name, Version: lib.Version, Physical: name, Probed: probed}
	}
	e = &entry{name: name, path: at, handle: h}
	r.loaded[name] = e
	return e, true, nil
}

func (r *Registry) open(path string) Handle {
	r.log.Debug("load attempt", zap.String("path", path))
	h, err := r.backend.Open(path)
	switch {
	case err != nil:
		r.log.Debug("load failure", zap.String("path", path), zap.Error(err))
	case h == 0:
		r.log.Debug("load failure", zap.String("path", path))
	default:
		r.log.Debug("load success", zap.String("path", path), zap.Uintptr("handle", uintptr(h)))
	}
	return h
}

// Resolve returns the address of an exported symbol.
func (r *Registry) Resolve(h Handle, name string) (uintptr, error) {
	p, err := r.backend.Resolve(h, name)
	if err != nil {
		r.log.Debug("symbol missing", zap.String("symbol", name), zap.Uintptr("handle", uintptr(h)), zap.Error(err))
		var se *SymbolError
		if !errors.As(err, &se) {
			err = &SymbolError{Handle: h, Name: name, Message: err.Error()}
		}
		return 0, err
	}
	r.log.Debug("symbol resolved", zap.String("symbol", name), zap.Uintptr("address", p))
	return p, nil
}

// FreeLibrary frees a library without overrides.
func (r *Registry) FreeLibrary(name, version string) bool {
	return r.Free(Library{Name: name, Version: version})
}

// Free closes a loaded library. It reports false when the library is not loaded, is borrowed by a binding
// or the OS refused to close it, in the latter case the library stays cached.
//
// Only the overrides of lib apply, not the ones a Binder was configured WithOverrides. Free a library loaded
// through those by its physical name, as listed in Binding.Libraries or BindError.Loaded.
func (r *Registry) Free(lib Library) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e := r.lookup(lib)
	if e == nil {
		r.log.Debug("free skipped", zap.Stringer("library", lib), zap.String("reason", "not loaded"))
		return false
	}
	return r.free(e)
}

// FreeAll frees every library no binding borrows, the ones failing to close stay cached.
func (r *Registry) FreeAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := fn.MapKeys(r.loaded)
	slices.Sort(names)
	for _, name := range names {
		r.free(r.loaded[name])
	}
}

func (r *Registry) free(e *entry) bool {
	if e.borrows > 0 {
		r.log.Debug("free skipped", zap.String("library", e.name), zap.Int("borrows", e.borrows))
		return false
	}
	if !r.backend.Close(e.handle) {
		r.log.Debug("free failure", zap.String("library", e.name))
		return false
	}
	delete(r.loaded, e.name)
	r.log.Debug("free success", zap.String("library", e.name), zap.String("path", e.path))
	return true
}

// lookup finds lib by its physical name, then by its name as given for libraries loaded without fixup.
func (r *Registry) lookup(lib Library) *entry {
	lib = lib.Effective(r.backend.Platform())
	if e, ok := r.loaded[r.physical(lib.Name, lib.Version)]; ok {
		return e
	}
	return r.loaded[lib.Name]
}

// IsLoaded reports whether the library is cached.
func (r *Registry) IsLoaded(name, version string) bool {
	_, ok := r.Handle(name, version)
	return ok
}

// Handle returns the cached handle of a library, like Free it ignores configured overrides.
func (r *Registry) Handle(name, version string) (Handle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e := r.lookup(Library{Name: name, Version: version}); e != nil {
		return e.handle, true
	}
	return 0, false
}

// Loaded lists the physical names of cached libraries.
func (r *Registry) Loaded() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := fn.MapKeys(r.loaded)
	slices.Sort(names)
	return names
}

// acquire loads lib and borrows it for a binding in one step.
func (r *Registry) acquire(lib Library, resolver PathResolver) (name string, h Handle, fresh bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var e *entry
	if e, fresh, err = r.load(lib, resolver); err != nil {
		return
	}
	e.borrows++
	return e.name, e.handle, fresh, nil
}

func (r *Registry) release(names ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, name := range names {
		if e, ok := r.loaded[name]; ok && e.borrows > 0 {
			e.borrows--
		}
	}
}

// Func resolves an exported symbol of a loaded library and returns a func of type T calling it.
func Func[T any](r *Registry, h Handle, name string) (x T, err error) {
	if err = funcPointer(&x); err != nil {
		return
	}
	var p uintptr
	if p, err = r.Resolve(h, name); err != nil {
		return
	}
	if p == 0 {
		return x, &SymbolError{Handle: h, Name: name, Message: "null address"}
	}
	err = register(name, &x, p)
	return
}

// MustFunc is Func that panics on error.
func MustFunc[T any](r *Registry, h Handle, name string) T {
	return fn.Panic1(Func[T](r, h, name))
}
