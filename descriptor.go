package native

import (
	"fmt"
	"reflect"
	"runtime"
	"strings"
)

type (
	// ValueType is the native shape of a parameter or result.
	ValueType string
	// CallingConvention of a native entry point.
	CallingConvention int
	// CharSet decides how strings are encoded when a parameter carries no explicit hint.
	CharSet int
	// Marshal is a per parameter marshaling hint.
	Marshal int

	// Override substitutes the library backing an identity on one platform.
	Override struct {
		Platform Platform
		Name     string
		Version  string
	}
	// Library is a logical library identity with its platform overrides.
	Library struct {
		Name      string
		Version   string
		Overrides []Override
	}
	// Param describes one parameter of a method.
	Param struct {
		Name    string
		Type    ValueType
		Marshal Marshal
	}
	// MethodDescriptor describes one method of an interface and the native entry point behind it.
	MethodDescriptor struct {
		Name                  string
		EntryPoint            string // defaults to Name
		Library               Library
		Convention            CallingConvention
		CharSet               CharSet
		SetLastError          bool
		BestFitMapping        bool
		ThrowOnUnmappableChar bool
		Params                []Param
		Result                ValueType
		Func                  reflect.Type // Go func type when described from a struct
	}
	// Interface is a named set of method descriptors.
	Interface struct {
		Name    string
		Methods []MethodDescriptor
	}
)

const (
	TypeVoid    ValueType = "void"
	TypeBool    ValueType = "bool"
	TypeInt8    ValueType = "int8"
	TypeInt16   ValueType = "int16"
	TypeInt32   ValueType = "int32"
	TypeInt64   ValueType = "int64"
	TypeInt     ValueType = "int"
	TypeUint8   ValueType = "uint8"
	TypeUint16  ValueType = "uint16"
	TypeUint32  ValueType = "uint32"
	TypeUint64  ValueType = "uint64"
	TypeUint    ValueType = "uint"
	TypeUintptr ValueType = "uintptr"
	TypeFloat32 ValueType = "float32"
	TypeFloat64 ValueType = "float64"
	TypeString  ValueType = "string"
	TypePointer ValueType = "pointer"
)

const (
	ConventionWinapi CallingConvention = iota // platform default
	ConventionCdecl
	ConventionStdCall
	ConventionThisCall
	ConventionFastCall
)

const (
	CharSetAnsi CharSet = iota
	CharSetUnicode
	CharSetAuto // unicode on windows, ansi elsewhere
)

const (
	MarshalDefault Marshal = iota
	MarshalByValue
	MarshalByRef
	MarshalAnsi
	MarshalUTF8
	MarshalUTF16
)

var valueTypes = map[ValueType]string{
	TypeVoid:    "",
	TypeBool:    "bool",
	TypeInt8:    "int8",
	TypeInt16:   "int16",
	TypeInt32:   "int32",
	TypeInt64:   "int64",
	TypeInt:     "int",
	TypeUint8:   "uint8",
	TypeUint16:  "uint16",
	TypeUint32:  "uint32",
	TypeUint64:  "uint64",
	TypeUint:    "uint",
	TypeUintptr: "uintptr",
	TypeFloat32: "float32",
	TypeFloat64: "float64",
	TypeString:  "string",
	TypePointer: "unsafe.Pointer",
}

// ParseValueType reads a type name, "" and "void" are the empty result.
func ParseValueType(s string) (ValueType, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "":
		return TypeVoid, nil
	case "byte":
		return TypeUint8, nil
	case "ptr", "unsafe.pointer":
		return TypePointer, nil
	}
	if _, ok := valueTypes[ValueType(s)]; ok {
		return ValueType(s), nil
	}
	return "", fmt.Errorf("%w: type %q", ErrUnsupportedMarshal, s)
}

// GoType is the Go spelling of the type, empty for void.
func (v ValueType) GoType() string { return valueTypes[v] }

func valueTypeOf(t reflect.Type) (ValueType, bool) {
	switch t.Kind() {
	case reflect.Bool:
		return TypeBool, true
	case reflect.Int8:
		return TypeInt8, true
	case reflect.Int16:
		return TypeInt16, true
	case reflect.Int32:
		return TypeInt32, true
	case reflect.Int64:
		return TypeInt64, true
	case reflect.Int:
		return TypeInt, true
	case reflect.Uint8:
		return TypeUint8, true
	case reflect.Uint16:
		return TypeUint16, true
	case reflect.Uint32:
		return TypeUint32, true
	case reflect.Uint64:
		return TypeUint64, true
	case reflect.Uint:
		return TypeUint, true
	case reflect.Uintptr:
		return TypeUintptr, true
	case reflect.Float32:
		return TypeFloat32, true
	case reflect.Float64:
		return TypeFloat64, true
	case reflect.String:
		return TypeString, true
	case reflect.Pointer, reflect.UnsafePointer:
		return TypePointer, true
	default:
		return "", false
	}
}

var conventions = []string{"winapi", "cdecl", "stdcall", "thiscall", "fastcall"}

// ParseConvention reads a calling convention name, empty is winapi.
func ParseConvention(s string) (CallingConvention, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return ConventionWinapi, nil
	}
	for i, n := range conventions {
		if n == s {
			return CallingConvention(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnsupportedConvention, s)
}

func (c CallingConvention) String() string {
	if c < 0 || int(c) >= len(conventions) {
		return fmt.Sprintf("convention(%d)", int(c))
	}
	return conventions[c]
}

// supported reports whether the convention is the C ABI purego calls through.
func (c CallingConvention) supported() bool {
	switch c {
	case ConventionWinapi, ConventionCdecl, ConventionStdCall:
		return true
	default:
		return false
	}
}

var charSets = []string{"ansi", "unicode", "auto"}

// ParseCharSet reads a character set name, empty is ansi.
func ParseCharSet(s string) (CharSet, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" || s == "none" {
		return CharSetAnsi, nil
	}
	for i, n := range charSets {
		if n == s {
			return CharSet(i), nil
		}
	}
	return 0, fmt.Errorf("%w: charset %q", ErrUnsupportedMarshal, s)
}

func (c CharSet) String() string {
	if c < 0 || int(c) >= len(charSets) {
		return fmt.Sprintf("charset(%d)", int(c))
	}
	return charSets[c]
}

var marshals = []string{"", "byvalue", "byref", "ansi", "utf8", "utf16"}

// ParseMarshal reads a marshaling hint, empty and "-" are the default.
func ParseMarshal(s string) (Marshal, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "-" {
		return MarshalDefault, nil
	}
	for i, n := range marshals {
		if n == s {
			return Marshal(i), nil
		}
	}
	return 0, fmt.Errorf("%w: hint %q", ErrUnsupportedMarshal, s)
}

func (m Marshal) String() string {
	if m == MarshalDefault {
		return "-"
	}
	if m < 0 || int(m) >= len(marshals) {
		return fmt.Sprintf("marshal(%d)", int(m))
	}
	return marshals[m]
}

// Effective applies the override of platform p, the first match wins.
func (l Library) Effective(p Platform) Library {
	for _, o := range l.Overrides {
		if o.Platform != p {
			continue
		}
		if o.Name == "" {
			return Library{Name: l.Name, Version: o.Version}
		}
		return Library{Name: o.Name, Version: o.Version}
	}
	return Library{Name: l.Name, Version: l.Version}
}

func (l Library) String() string {
	if l.Version == "" {
		return l.Name
	}
	return l.Name + "@" + l.Version
}

// Entry is the exported symbol the method resolves to.
func (m *MethodDescriptor) Entry() string {
	if m.EntryPoint != "" {
		return m.EntryPoint
	}
	return m.Name
}

func (m *MethodDescriptor) validate() error {
	if m.Name == "" {
		return fmt.Errorf("%w: method without name", ErrInvalidInterfaceShape)
	}
	if m.Library.Name == "" {
		return fmt.Errorf("%w: no library for method %s", ErrMissingBindingMetadata, m.Name)
	}
	for _, o := range m.Library.Overrides {
		if o.Platform == PlatformUnknown {
			return fmt.Errorf("%w: override without platform on %s", ErrMissingBindingMetadata, m.Name)
		}
	}
	if !m.Convention.supported() {
		return fmt.Errorf("%w: %s", ErrUnsupportedConvention, m.Convention)
	}
	return nil
}

// encoding is the string encoding of parameter i on platform p.
func (m *MethodDescriptor) encoding(i int, p Platform) Marshal {
	if i < len(m.Params) {
		switch h := m.Params[i].Marshal; h {
		case MarshalAnsi, MarshalUTF8, MarshalUTF16:
			return h
		}
	}
	switch m.CharSet {
	case CharSetUnicode:
		return MarshalUTF16
	case CharSetAuto:
		if p == PlatformWindows {
			return MarshalUTF16
		}
	}
	return MarshalAnsi
}

// typed checks the method can be called through a Go func trampoline on platform p.
func (m *MethodDescriptor) typed(p Platform) error {
	var ints, floats int
	for i, a := range m.Params {
		if a.Type == TypeFloat32 || a.Type == TypeFloat64 {
			floats++
		} else {
			ints++
		}
		switch {
		case a.Type == TypeString && m.encoding(i, p) == MarshalUTF16:
			return fmt.Errorf("%w: utf16 string parameter %d of %s needs a *uint16", ErrUnsupportedMarshal, i, m.Name)
		case a.Marshal == MarshalByRef && a.Type != TypePointer:
			return fmt.Errorf("%w: by reference parameter %d of %s must be a pointer", ErrUnsupportedMarshal, i, m.Name)
		}
	}
	ir, fr := registers()
	if stack := max(0, ints-ir) + max(0, floats-fr); stack > maxArgs-ir {
		return fmt.Errorf("%w: %s spills %d arguments to the stack, at most %d fit", ErrUnsupportedMarshal, m.Name, stack, maxArgs-ir)
	}
	return nil
}

// registers are the integer and float argument registers purego fills before the stack.
func registers() (ints, floats int) {
	switch runtime.GOARCH {
	case "amd64":
		return 6, 8
	case "arm64":
		return 8, 8
	default:
		return maxArgs, 8
	}
}
