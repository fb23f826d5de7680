package main

import (
	"bytes"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/ZenLiuCN/fn"
)

func run(args ...string) (string, error) {
	a := app()
	b := new(bytes.Buffer)
	a.Writer = b
	err := a.Run(append([]string{"nativegen"}, args...))
	return b.String(), err
}

func TestNames(t *testing.T) {
	for _, c := range []struct {
		args []string
		want string
	}{
		{[]string{"names", "-p", "linux", "c", "6"}, "libc.so.6"},
		{[]string{"names", "-p", "windows", "kernel32"}, "kernel32.dll"},
		{[]string{"names", "-p", "osx", "System", "B"}, "libSystem.B.dylib"},
	} {
		t.Run(c.want, func(t *testing.T) {
			out := fn.Panic1(run(c.args...))
			if strings.TrimSpace(out) != c.want {
				t.Fatalf("expect %s got %s", c.want, out)
			}
		})
	}
	if _, err := run("names", "-p", "plan9", "c"); err == nil {
		t.Fatal("unknown platform accepted")
	}
}

func TestGenerate(t *testing.T) {
	out := filepath.Join(t.TempDir(), "libc_native.go")
	fn.Panic1(run("generate", "-o", out, "-p", "libc", "../testdata/math.hcl"))
	src := string(fn.Panic1(os.ReadFile(out)))
	if !strings.Contains(src, "package libc") || !strings.Contains(src, "func NewLibM(") {
		t.Fatalf("unexpected source\n%s", src)
	}
	stdout := fn.Panic1(run("generate", "../testdata/math.yaml"))
	if !strings.Contains(stdout, "package mathx") {
		t.Fatalf("unexpected stdout\n%s", stdout)
	}
}

func TestProbe(t *testing.T) {
	dir := t.TempDir()
	cfg := filepath.Join(dir, "config.yaml")
	fn.Panic(os.WriteFile(cfg, []byte("base_dir: "+filepath.ToSlash(dir)+"\nexecutable_dir: "+filepath.ToSlash(dir)+"\n"), 0o644))
	out := fn.Panic1(run("-c", cfg, "probe", "demo"))
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) < 2 || !strings.HasPrefix(lines[0], dir) {
		t.Fatalf("unexpected probe paths\n%s", out)
	}
}

func TestInspect(t *testing.T) {
	out := fn.Panic1(run("inspect", "../testdata/math.yaml"))
	if !strings.Contains(out, "LibC") || !strings.Contains(out, "strlen") {
		t.Fatalf("unexpected dump\n%s", out)
	}
}

func TestCheck(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("libc description targets linux names")
	}
	out, err := run("check", "../testdata/math.yaml")
	if err != nil {
		t.Skipf("libc not loadable: %v", err)
	}
	if !strings.Contains(out, "LibC.Abs") || !strings.Contains(out, "libc.so.6") {
		t.Fatalf("unexpected check output\n%s", out)
	}
}
