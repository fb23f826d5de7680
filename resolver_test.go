package native

import (
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
)

func TestProbePaths(t *testing.T) {
	r := testResolver()
	got := slices.Collect(r.ProbePaths("foo.so"))
	arch := ArchFolder()
	want := []string{
		filepath.Join(exeDir, "foo.so"),
		filepath.Join(baseDir, "foo.so"),
		filepath.Join(baseDir, "bin", "foo.so"),
		filepath.Join(workDir, "foo.so"),
		filepath.Join(exeDir, arch, "foo.so"),
		filepath.Join(baseDir, arch, "foo.so"),
		filepath.Join(baseDir, "bin", arch, "foo.so"),
		filepath.Join(workDir, arch, "foo.so"),
	}
	if !slices.Equal(got, want) {
		t.Fatalf("expect\n%s\ngot\n%s", strings.Join(want, "\n"), strings.Join(got, "\n"))
	}
	for _, p := range got {
		if !strings.HasSuffix(p, "foo.so") {
			t.Fatalf("%s does not end with the name", p)
		}
	}
	if again := slices.Collect(r.ProbePaths("foo.so")); !slices.Equal(again, got) {
		t.Fatal("probe sequence is not restartable")
	}
}

func TestProbePathsDuplicates(t *testing.T) {
	r := &ProbeResolver{Fixup: true, ExecutableDir: exeDir, BaseDir: exeDir, WorkingDir: exeDir}
	got := slices.Collect(r.ProbePaths("foo.so"))
	n := 0
	for _, p := range got {
		if p == filepath.Join(exeDir, "foo.so") {
			n++
		}
	}
	if n != 3 || len(got) != 8 {
		t.Fatalf("candidates must not be de-duplicated: %v", got)
	}
}

func TestProbePathsSkipExisting(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "foo.so"), nil, 0o644); err != nil {
		t.Fatal(err)
	}
	r := &ProbeResolver{Fixup: true, ExecutableDir: dir, WorkingDir: workDir}
	with := slices.Collect(r.ProbePaths("foo.so"))
	r.SkipExisting = true
	without := slices.Collect(r.ProbePaths("foo.so"))
	if len(with) != len(without)+1 || slices.Contains(without, filepath.Join(dir, "foo.so")) {
		t.Fatalf("existing candidate must be skipped: %v %v", with, without)
	}
}

func TestProbePathsStop(t *testing.T) {
	n := 0
	for range testResolver().ProbePaths("foo.so") {
		n++
		if n == 2 {
			break
		}
	}
	if n != 2 {
		t.Fatal("early stop")
	}
}
