//go:build windows

package native

import (
	"errors"
	"path/filepath"

	"golang.org/x/sys/windows"
)

var procSetDllDirectory = windows.NewLazySystemDLL("kernel32.dll").NewProc("SetDllDirectoryW")

func openLibrary(path string, opts WindowsOptions) (h Handle, missing bool, err error) {
	if opts.AddLibraryDirectory && isPath(path) {
		if err = windows.SetDllDirectory(filepath.Dir(path)); err == nil {
			// a NULL argument restores the default search order
			defer procSetDllDirectory.Call(0)
		}
	}
	lib, err := windows.LoadLibrary(path)
	if err != nil {
		if errors.Is(err, windows.ERROR_MOD_NOT_FOUND) {
			return 0, true, nil
		}
		return 0, false, err
	}
	return Handle(lib), false, nil
}

func resolveSymbol(h Handle, name string) (uintptr, error) {
	return windows.GetProcAddress(windows.Handle(h), name)
}

func closeLibrary(h Handle) error {
	return windows.FreeLibrary(windows.Handle(h))
}
