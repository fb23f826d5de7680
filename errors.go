package native

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrLibraryNotFound occurs when no probe path nor the OS search yields a library handle.
	ErrLibraryNotFound = errors.New("library not found")
	// ErrSymbolNotFound occurs when an entry point is absent from a loaded library.
	ErrSymbolNotFound = errors.New("symbol not found")
	// ErrPlatformUnsupported occurs when the running platform is none of windows, linux or osx.
	ErrPlatformUnsupported = errors.New("platform unsupported")
	// ErrMissingBindingMetadata occurs when a method lacks its library or calling metadata.
	ErrMissingBindingMetadata = errors.New("missing binding metadata")
	// ErrInvalidInterfaceShape occurs when a description is not a pure set of method signatures.
	ErrInvalidInterfaceShape = errors.New("invalid interface shape")
	// ErrUnsupportedConvention occurs when a calling convention can not be called through the platform C ABI.
	ErrUnsupportedConvention = errors.New("unsupported calling convention")
	// ErrUnsupportedMarshal occurs when an argument can not be marshaled as described.
	ErrUnsupportedMarshal = errors.New("unsupported marshaling")
	// ErrUnknownMethod occurs when a binding has no method of the requested name.
	ErrUnknownMethod = errors.New("unknown method")
	// ErrReleased occurs when a released binding is used.
	ErrReleased = errors.New("binding released")
)

// LibraryError reports a library that could not be loaded.
type LibraryError struct {
	Name     string   // logical name
	Version  string   // logical version
	Physical string   // name handed to the OS search
	Probed   []string // candidate paths tried before the OS search
}

func (e *LibraryError) Error() string {
	if e.Version != "" {
		return fmt.Sprintf("library '%s' (version %s, %s) not found", e.Name, e.Version, e.Physical)
	}
	return fmt.Sprintf("library '%s' (%s) not found", e.Name, e.Physical)
}

func (e *LibraryError) Unwrap() error { return ErrLibraryNotFound }

// SymbolError reports an entry point that could not be resolved.
type SymbolError struct {
	Handle  Handle
	Name    string
	Message string // OS last error, when any
}

func (e *SymbolError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("symbol '%s' not found in handle %#x: %s", e.Name, uintptr(e.Handle), e.Message)
	}
	return fmt.Sprintf("symbol '%s' not found in handle %#x", e.Name, uintptr(e.Handle))
}

func (e *SymbolError) Unwrap() error { return ErrSymbolNotFound }

// BindError reports a failed binding. No partial binding is ever returned with it.
type BindError struct {
	Interface string
	Method    string
	Library   string
	// Loaded are libraries first loaded by the failed call, the caller may free them.
	Loaded []string
	Err    error
}

func (e *BindError) Error() string {
	b := new(strings.Builder)
	b.WriteString("bind")
	if e.Interface != "" {
		b.WriteString(" '" + e.Interface + "'")
	}
	if e.Method != "" {
		b.WriteString(" method '" + e.Method + "'")
	}
	if e.Library != "" {
		b.WriteString(" library '" + e.Library + "'")
	}
	b.WriteString(": ")
	b.WriteString(e.Err.Error())
	return b.String()
}

func (e *BindError) Unwrap() error { return e.Err }
