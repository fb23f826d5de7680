package native

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

type (
	// Handle is an opaque library token returned by the OS loader, zero means not loaded.
	Handle uintptr
	// Backend opens, resolves and closes native libraries of one platform.
	//
	// Open returns a zero handle with a nil error when the library file is absent,
	// an error is kept for other OS failures such as permission or format faults.
	Backend interface {
		Platform() Platform
		NormalizeName(name, version string) string      //physical file name of a logical library
		Open(path string) (Handle, error)               //open an exact path or, for a bare name, use the OS search
		Resolve(h Handle, name string) (uintptr, error) //address of an exported symbol
		Close(h Handle) bool                            //whether the OS released the library
	}
	// WindowsOptions tunes library loading on windows.
	WindowsOptions struct {
		// AddLibraryDirectory pushes the directory of the library onto the DLL search path before loading,
		// so dependent DLLs next to it resolve.
		AddLibraryDirectory bool `mapstructure:"add_library_directory"`
	}
	backend struct {
		platform Platform
		windows  WindowsOptions
		log      *zap.Logger
	}
)

// NewBackend creates the backend of the running platform.
func NewBackend(opts WindowsOptions, log *zap.Logger) (Backend, error) {
	return newBackend(CurrentPlatform(), opts, log)
}

func newBackend(p Platform, opts WindowsOptions, log *zap.Logger) (*backend, error) {
	if p == PlatformUnknown {
		return nil, ErrPlatformUnsupported
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &backend{platform: p, windows: opts, log: log}, nil
}

func (b *backend) Platform() Platform { return b.platform }

func (b *backend) NormalizeName(name, version string) string {
	return NormalizeName(b.platform, name, version)
}

// NormalizeName converts a logical library name to the file name convention of a platform.
//
//	windows: <name>.dll, unchanged when already suffixed
//	linux:   lib<name>.so[.<version>]
//	osx:     lib<name>[.<version>].dylib
func NormalizeName(p Platform, name, version string) string {
	switch p {
	case PlatformWindows:
		if strings.HasSuffix(strings.ToLower(name), ".dll") {
			return name
		}
		return name + ".dll"
	case PlatformLinux:
		if version != "" {
			return "lib" + name + ".so." + version
		}
		return "lib" + name + ".so"
	case PlatformMacOS:
		if version != "" {
			return "lib" + name + "." + version + ".dylib"
		}
		return "lib" + name + ".dylib"
	default:
		return name
	}
}

func (b *backend) Open(path string) (Handle, error) {
	if isPath(path) {
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
	}
	h, missing, err := openLibrary(path, b.windows)
	if missing {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return h, nil
}

func (b *backend) Resolve(h Handle, name string) (uintptr, error) {
	if h == 0 {
		return 0, &SymbolError{Handle: h, Name: name, Message: "library not loaded"}
	}
	p, err := resolveSymbol(h, name)
	if err != nil {
		return 0, &SymbolError{Handle: h, Name: name, Message: err.Error()}
	}
	if p == 0 {
		return 0, &SymbolError{Handle: h, Name: name}
	}
	return p, nil
}

func (b *backend) Close(h Handle) bool {
	if h == 0 {
		return false
	}
	if err := closeLibrary(h); err != nil {
		b.log.Debug("close library", zap.Uintptr("handle", uintptr(h)), zap.Error(err))
		return false
	}
	return true
}

// isPath reports whether name carries a directory part, bare names are left to the OS search.
func isPath(name string) bool {
	return strings.ContainsRune(name, '/') || strings.ContainsRune(name, filepath.Separator)
}
