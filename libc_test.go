package native

import (
	"runtime"
	"testing"

	"github.com/ZenLiuCN/fn"
	"go.uber.org/zap/zaptest"
)

type libc struct {
	_      struct{}               `native:",lib=c,version=6"`
	Abs    func(int32) int32      `native:"abs"`
	Strlen func(s string) uintptr `native:"strlen"`
	Labs   func(int64) int64      `native:"labs"`
}

func linuxBinder(t *testing.T) *Binder {
	if runtime.GOOS != "linux" {
		t.Skip("libc.so.6 is a linux library")
	}
	log := zaptest.NewLogger(t)
	be := fn.Panic1(NewBackend(WindowsOptions{}, log))
	return NewBinder(NewRegistry(be, nil, log))
}

func TestLibC(t *testing.T) {
	b := linuxBinder(t)
	c := new(libc)
	bd, err := b.BindStruct(c)
	if err != nil {
		t.Skipf("libc not loadable: %v", err)
	}
	defer b.Registry().FreeAll()
	defer bd.Release()
	if c.Abs(-3) != 3 || c.Labs(-1<<40) != 1<<40 {
		t.Fatal("abs")
	}
	if n := c.Strlen("native"); n != 6 {
		t.Fatalf("strlen %d", n)
	}
	if r := fn.Panic1(bd.Call("Abs", int32(-5))); int32(r) != 5 {
		t.Fatalf("dynamic abs %d", r)
	}
	if r := fn.Panic1(bd.Call("Strlen", "héllo")); r != 6 {
		t.Fatalf("dynamic strlen %d", r)
	}
	strlen := MustAs[func(string) uintptr](bd, "Strlen")
	if strlen("") != 0 {
		t.Fatal("empty string")
	}
	if b.Registry().FreeLibrary("c", "6") {
		t.Fatal("freed a borrowed libc")
	}
}

func TestLibCFunc(t *testing.T) {
	r := linuxBinder(t).Registry()
	h, err := r.LoadLibrary("c", "6")
	if err != nil {
		t.Skipf("libc not loadable: %v", err)
	}
	defer r.FreeAll()
	abs := MustFunc[func(int32) int32](r, h, "abs")
	if abs(-7) != 7 {
		t.Fatal("abs")
	}
}
