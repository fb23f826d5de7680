package native

import (
	"iter"
	"os"
	"path/filepath"
	"sync"
)

type (
	// PathResolver proposes the candidate paths of a physical library name.
	PathResolver interface {
		// FixupLibraryName reports whether logical names are normalized before probing,
		// when false the name is taken as already physical.
		FixupLibraryName() bool
		// ProbePaths yields candidate paths in priority order, the sequence is finite and restartable.
		ProbePaths(name string) iter.Seq[string]
	}
	// ProbeResolver probes, for the root and the architecture sub folder in turn:
	// the executable directory, the base directory, <base>/bin and the working directory.
	//
	// Keeping only candidates missing from disk would never open a library shipped next to the executable,
	// so existing candidates are kept unless SkipExisting asks for that filter.
	ProbeResolver struct {
		Fixup         bool
		ExecutableDir string // skipped when empty
		BaseDir       string // skipped when empty
		WorkingDir    string // read from the process on each probe when empty
		// SkipExisting drops candidates that already exist on disk.
		SkipExisting bool
	}
)

var (
	defaultResolver     *ProbeResolver
	defaultResolverOnce sync.Once
)

// DefaultResolver is the process wide resolver used when none is given.
func DefaultResolver() *ProbeResolver {
	defaultResolverOnce.Do(func() {
		defaultResolver = NewProbeResolver()
	})
	return defaultResolver
}

// NewProbeResolver creates a resolver rooted at the running executable, the base directory is
// the executable directory after symlink resolution.
func NewProbeResolver() *ProbeResolver {
	r := &ProbeResolver{Fixup: true}
	exe, err := os.Executable()
	if err != nil {
		return r
	}
	r.ExecutableDir = filepath.Dir(exe)
	r.BaseDir = r.ExecutableDir
	if real, err := filepath.EvalSymlinks(exe); err == nil {
		r.BaseDir = filepath.Dir(real)
	}
	return r
}

func (r *ProbeResolver) FixupLibraryName() bool { return r.Fixup }

// Directories lists the probed directories in priority order.
func (r *ProbeResolver) Directories() (dirs []string) {
	wd := r.WorkingDir
	if wd == "" {
		wd, _ = os.Getwd()
	}
	for _, sub := range []string{"", ArchFolder()} {
		if r.ExecutableDir != "" {
			dirs = append(dirs, filepath.Join(r.ExecutableDir, sub))
		}
		if r.BaseDir != "" {
			dirs = append(dirs, filepath.Join(r.BaseDir, sub), filepath.Join(r.BaseDir, "bin", sub))
		}
		if wd != "" {
			dirs = append(dirs, filepath.Join(wd, sub))
		}
	}
	return
}

func (r *ProbeResolver) ProbePaths(name string) iter.Seq[string] {
	return func(yield func(string) bool) {
		for _, dir := range r.Directories() {
			p := filepath.Join(dir, name)
			if r.SkipExisting && exists(p) {
				continue
			}
			if !yield(p) {
				return
			}
		}
	}
}

func exists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
