package native

import (
	"fmt"
	"runtime"
	"strconv"
	"strings"
	"sync"
)

// Platform is the operating system family a library is loaded on.
type Platform int

const (
	PlatformUnknown Platform = iota
	PlatformWindows
	PlatformLinux
	PlatformMacOS
)

var (
	current     Platform
	currentOnce sync.Once
)

// CurrentPlatform detects the running platform once per process.
func CurrentPlatform() Platform {
	currentOnce.Do(func() {
		current = platformOf(runtime.GOOS)
	})
	return current
}

func platformOf(goos string) Platform {
	switch goos {
	case "windows":
		return PlatformWindows
	case "linux":
		return PlatformLinux
	case "darwin":
		return PlatformMacOS
	default:
		return PlatformUnknown
	}
}

// ParsePlatform reads a platform name as written in tags, description files and configuration.
func ParsePlatform(s string) (Platform, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "windows", "win":
		return PlatformWindows, nil
	case "linux":
		return PlatformLinux, nil
	case "osx", "macos", "darwin":
		return PlatformMacOS, nil
	}
	return PlatformUnknown, fmt.Errorf("%w: %q", ErrPlatformUnsupported, s)
}

func (p Platform) String() string {
	switch p {
	case PlatformWindows:
		return "windows"
	case PlatformLinux:
		return "linux"
	case PlatformMacOS:
		return "osx"
	default:
		return "unknown"
	}
}

// ArchFolder is the architecture sub folder probed for libraries: x64 for 64-bit processes, x86 otherwise.
func ArchFolder() string {
	if strconv.IntSize == 64 {
		return "x64"
	}
	return "x86"
}
