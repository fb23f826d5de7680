//go:build !darwin && !linux && !windows

package native

func openLibrary(string, WindowsOptions) (Handle, bool, error) {
	return 0, false, ErrPlatformUnsupported
}

func resolveSymbol(Handle, string) (uintptr, error) {
	return 0, ErrPlatformUnsupported
}

func closeLibrary(Handle) error {
	return ErrPlatformUnsupported
}
