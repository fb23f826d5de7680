/*
Package native binds described interfaces to the exported functions of native shared libraries, based on [purego].

# License

Source codes are under Apache License Version 2.0.

# Underwater

 1. A Registry loads each physical library once, probing the executable directory, the base directory,
    <base>/bin and the working directory (then their x64/x86 sub folders) before the OS search.
 2. Logical names follow the platform file name: <name>.dll, lib<name>.so[.<version>], lib<name>[.<version>].dylib.
    An override per platform can swap the library behind a name, never the entry point.
 3. A Binder resolves every described method to an address and fills Go func fields through [purego.RegisterFunc],
    no cgo required.

# Notes

 1. Only the C calling convention of the platform is reachable, thiscall and fastcall are refused.
 2. A Binding borrows its libraries, the Registry will not free them until Binding.Release.
    Funcs filled from a released binding must not be called after the library is freed.
 3. Binding.Call passes integers, pointers and strings only, use a typed func for floats.

# Describe

	type LibC struct {
		_      struct{}                `native:",lib=c,version=6"`
		Abs    func(int32) int32       `native:"abs"`
		Strlen func(s string) uintptr `native:"strlen"`
	}

	binder := fn.Panic1(fn.Panic1(native.ReadConfig("")).NewBinder(nil))
	libc := new(LibC)
	binding := fn.Panic1(binder.BindStruct(libc))
	defer binding.Release()
	println(libc.Abs(-3))

# Generate

The nativegen tool turns YAML or HCL description files into such structs:

	go install github.com/ZenLiuCN/native/nativegen@latest
	nativegen generate -o math_native.go math.yaml

For more details see the cli help:

	nativegen -h

[purego]: https://github.com/ebitengine/purego
*/
package native
