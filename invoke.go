package native

import (
	"fmt"
	"reflect"
	"runtime"
	"strings"
	"syscall"
	"unsafe"

	"github.com/ebitengine/purego"
	"golang.org/x/text/encoding/unicode"
)

// maxArgs is the argument limit of purego.SyscallN.
const maxArgs = 15

// Call invokes the entry point with arguments marshaled by the descriptor and returns the raw result register.
//
// Integers and bool pass by value, or by a pointer to a copy with the byref hint. Pointers, unsafe.Pointer and
// slices pass their address. Strings pass as NUL terminated ansi/utf8 or utf16 by hint, then by charset.
// Floats need a typed func from As or Binder.BindStruct. With SetLastError a non zero OS error is returned
// as a syscall.Errno next to the result.
func (m *Method) Call(args ...any) (uintptr, error) {
	d := &m.Descriptor
	if len(args) != len(d.Params) {
		return 0, fmt.Errorf("%w: %s takes %d arguments, got %d", ErrUnsupportedMarshal, d.Name, len(d.Params), len(args))
	}
	if len(args) > maxArgs {
		return 0, fmt.Errorf("%w: %s takes more than %d arguments", ErrUnsupportedMarshal, d.Name, maxArgs)
	}
	a := make([]uintptr, len(args))
	keep := make([]any, 0, len(args))
	for i, arg := range args {
		v, pin, err := m.marshal(i, arg)
		if err != nil {
			return 0, fmt.Errorf("%s argument %d: %w", d.Name, i, err)
		}
		a[i] = v
		if pin != nil {
			keep = append(keep, pin)
		}
	}
	r1, _, errno := purego.SyscallN(m.Address, a...)
	runtime.KeepAlive(keep)
	if d.SetLastError && errno != 0 {
		return r1, syscall.Errno(errno)
	}
	return r1, nil
}

func (m *Method) marshal(i int, arg any) (v uintptr, pin any, err error) {
	if err = m.fits(i, arg); err != nil {
		return
	}
	switch x := arg.(type) {
	case nil:
		return 0, nil, nil
	case string:
		var b []byte
		if m.Descriptor.encoding(i, m.platform) == MarshalUTF16 {
			b, err = encodeUTF16(x)
		} else {
			b, err = m.encodeAnsi(i, x)
		}
		if err != nil {
			return
		}
		return uintptr(unsafe.Pointer(&b[0])), b, nil
	case unsafe.Pointer:
		return uintptr(x), x, nil
	case uintptr:
		if m.Descriptor.Params[i].Marshal == MarshalByRef {
			return box(reflect.ValueOf(x))
		}
		return x, nil, nil
	}
	rv := reflect.ValueOf(arg)
	switch rv.Kind() {
	case reflect.Pointer:
		return uintptr(rv.UnsafePointer()), arg, nil
	case reflect.Slice:
		if rv.Len() == 0 {
			return 0, nil, nil
		}
		return uintptr(rv.UnsafePointer()), arg, nil
	case reflect.Bool, reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		if m.Descriptor.Params[i].Marshal == MarshalByRef {
			return box(rv)
		}
		return word(rv), nil, nil
	default:
		return 0, nil, fmt.Errorf("%w: %T", ErrUnsupportedMarshal, arg)
	}
}

var integers = map[ValueType]bool{
	TypeInt8: true, TypeInt16: true, TypeInt32: true, TypeInt64: true, TypeInt: true,
	TypeUint8: true, TypeUint16: true, TypeUint32: true, TypeUint64: true, TypeUint: true, TypeUintptr: true,
}

// fits rejects an argument whose kind does not match the declared type of parameter i.
// Addresses fit pointers, uintptr and pre-encoded strings. Untyped parameters take anything.
func (m *Method) fits(i int, arg any) error {
	t := m.Descriptor.Params[i].Type
	if t == "" {
		return nil
	}
	address := t == TypePointer || t == TypeUintptr || t == TypeString
	ok := true
	switch x := arg.(type) {
	case nil, unsafe.Pointer:
		ok = address
	case string:
		ok = t == TypeString
	case uintptr:
		ok = integers[t] || t == TypePointer
	default:
		switch reflect.ValueOf(x).Kind() {
		case reflect.Pointer, reflect.Slice:
			ok = address
		case reflect.Bool:
			ok = t == TypeBool
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
			reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			ok = integers[t]
		}
	}
	if !ok {
		return fmt.Errorf("%w: %T for a %s parameter", ErrUnsupportedMarshal, arg, t)
	}
	return nil
}

func word(rv reflect.Value) uintptr {
	switch rv.Kind() {
	case reflect.Bool:
		if rv.Bool() {
			return 1
		}
		return 0
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return uintptr(rv.Int())
	default:
		return uintptr(rv.Uint())
	}
}

// box passes a copy of rv by reference.
func box(rv reflect.Value) (uintptr, any, error) {
	p := reflect.New(rv.Type())
	p.Elem().Set(rv)
	return uintptr(p.UnsafePointer()), p.Interface(), nil
}

// encodeAnsi terminates s with NUL. Non ascii runes are rejected with ThrowOnUnmappableChar and replaced by '?'
// with BestFitMapping when the string goes out with the ansi charset.
func (m *Method) encodeAnsi(i int, s string) ([]byte, error) {
	if strings.IndexByte(s, 0) >= 0 {
		return nil, fmt.Errorf("%w: string holds NUL", ErrUnsupportedMarshal)
	}
	d := &m.Descriptor
	if d.encoding(i, m.platform) == MarshalAnsi {
		ascii := strings.IndexFunc(s, func(r rune) bool { return r > 0x7f }) < 0
		switch {
		case ascii:
		case d.ThrowOnUnmappableChar:
			return nil, fmt.Errorf("%w: %q is not ansi", ErrUnsupportedMarshal, s)
		case d.BestFitMapping:
			s = strings.Map(func(r rune) rune {
				if r > 0x7f {
					return '?'
				}
				return r
			}, s)
		}
	}
	b := make([]byte, len(s)+1)
	copy(b, s)
	return b, nil
}

// encodeUTF16 encodes s as NUL terminated little endian utf16.
func encodeUTF16(s string) ([]byte, error) {
	b, err := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewEncoder().Bytes([]byte(s))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnsupportedMarshal, err)
	}
	return append(b, 0, 0), nil
}
