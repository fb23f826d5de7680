//go:build darwin || linux

package native

import "github.com/ebitengine/purego"

func openLibrary(path string, _ WindowsOptions) (h Handle, missing bool, err error) {
	p, err := purego.Dlopen(path, purego.RTLD_NOW|purego.RTLD_GLOBAL)
	if err != nil {
		return 0, false, err
	}
	return Handle(p), false, nil
}

// purego.Dlsym consults dlerror only when the address is null, a symbol legitimately at address zero
// reads as missing and a non null address is never checked against a pending error.
func resolveSymbol(h Handle, name string) (uintptr, error) {
	return purego.Dlsym(uintptr(h), name)
}

func closeLibrary(h Handle) error {
	return purego.Dlclose(uintptr(h))
}
