package native

import (
	"fmt"
	"reflect"
	"slices"
	"strings"
)

// struct tags read by Describe
const (
	TagNative   = "native"
	TagOverride = "override"
	TagMarshal  = "marshal"
)

// Describe reads the interface described by a pointer to a struct of func fields.
//
// Each exported field is one method:
//
//	type Math struct {
//		_   struct{}                 `native:",lib=mathlib" override:"windows=mathlib64"`
//		Add func(a, b int32) int32 `native:"add,conv=cdecl"`
//		Put func(s string)         `native:"puts,lib=c,version=6" marshal:"utf8"`
//	}
//
// The `_` field holds defaults shared by every method. Options of the native tag, after the entry point:
// lib, version, conv, charset, lasterror, bestfit, throwunmappable.
// The override tag lists `platform=name[:version]` separated by ';', method overrides win over the defaults,
// which only apply to methods left on the default library.
// The marshal tag lists one hint per parameter by position, '-' keeps the default.
func Describe(target any) (Interface, error) {
	v := reflect.ValueOf(target)
	if v.Kind() != reflect.Pointer || v.IsNil() || v.Elem().Kind() != reflect.Struct {
		return Interface{}, fmt.Errorf("%w: %T is not a pointer to struct", ErrInvalidInterfaceShape, target)
	}
	return describeType(v.Elem().Type())
}

func describeType(t reflect.Type) (iface Interface, err error) {
	iface.Name = t.Name()
	var defaults MethodDescriptor
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if f.Name != "_" {
			continue
		}
		if err = parseNative(f.Tag.Get(TagNative), &defaults); err != nil {
			return
		}
		var o []Override
		if o, err = ParseOverrides(f.Tag.Get(TagOverride)); err != nil {
			return
		}
		defaults.Library.Overrides = append(defaults.Library.Overrides, o...)
	}
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if f.Name == "_" {
			continue
		}
		if !f.IsExported() {
			return iface, fmt.Errorf("%w: %s.%s holds state", ErrInvalidInterfaceShape, iface.Name, f.Name)
		}
		if f.Type.Kind() != reflect.Func {
			return iface, fmt.Errorf("%w: %s.%s is a %s, not a method", ErrInvalidInterfaceShape, iface.Name, f.Name, f.Type)
		}
		var m MethodDescriptor
		if m, err = describeField(f, defaults); err != nil {
			return
		}
		iface.Methods = append(iface.Methods, m)
	}
	if len(iface.Methods) == 0 {
		return iface, fmt.Errorf("%w: %s declares no methods", ErrInvalidInterfaceShape, iface.Name)
	}
	return
}

func describeField(f reflect.StructField, defaults MethodDescriptor) (m MethodDescriptor, err error) {
	ft := f.Type
	if ft.IsVariadic() {
		return m, fmt.Errorf("%w: %s is variadic", ErrInvalidInterfaceShape, f.Name)
	}
	if ft.NumOut() > 1 {
		return m, fmt.Errorf("%w: %s returns %d values", ErrInvalidInterfaceShape, f.Name, ft.NumOut())
	}
	tag, ok := f.Tag.Lookup(TagNative)
	if !ok && defaults.Library.Name == "" {
		return m, fmt.Errorf("%w: %s has no native tag", ErrMissingBindingMetadata, f.Name)
	}
	m = defaults
	m.Name = f.Name
	m.EntryPoint = ""
	m.Func = ft
	m.Library.Overrides = nil
	if err = parseNative(tag, &m); err != nil {
		return
	}
	var o []Override
	if o, err = ParseOverrides(f.Tag.Get(TagOverride)); err != nil {
		return
	}
	if m.Library.Name == defaults.Library.Name {
		o = append(o, defaults.Library.Overrides...)
	}
	m.Library.Overrides = o

	for i := 0; i < ft.NumIn(); i++ {
		vt, ok := valueTypeOf(ft.In(i))
		if !ok {
			return m, fmt.Errorf("%w: parameter %d of %s is %s", ErrUnsupportedMarshal, i, f.Name, ft.In(i))
		}
		m.Params = append(m.Params, Param{Name: fmt.Sprintf("arg%d", i), Type: vt})
	}
	if hints := f.Tag.Get(TagMarshal); hints != "" {
		parts := strings.Split(hints, ",")
		if len(parts) > len(m.Params) {
			return m, fmt.Errorf("%w: %d marshal hints for %d parameters of %s", ErrInvalidInterfaceShape, len(parts), len(m.Params), f.Name)
		}
		for i, h := range parts {
			if m.Params[i].Marshal, err = ParseMarshal(h); err != nil {
				return
			}
		}
	}
	m.Result = TypeVoid
	if ft.NumOut() == 1 {
		if m.Result, ok = valueTypeOf(ft.Out(0)); !ok {
			return m, fmt.Errorf("%w: result of %s is %s", ErrUnsupportedMarshal, f.Name, ft.Out(0))
		}
	}
	return
}

func parseNative(tag string, m *MethodDescriptor) (err error) {
	if tag == "" {
		return nil
	}
	parts := strings.Split(tag, ",")
	if parts[0] != "" {
		m.EntryPoint = strings.TrimSpace(parts[0])
	}
	for _, p := range parts[1:] {
		k, v, _ := strings.Cut(strings.TrimSpace(p), "=")
		switch k {
		case "":
		case "lib":
			m.Library.Name = v
		case "version":
			m.Library.Version = v
		case "conv":
			m.Convention, err = ParseConvention(v)
		case "charset":
			m.CharSet, err = ParseCharSet(v)
		case "lasterror":
			m.SetLastError = true
		case "bestfit":
			m.BestFitMapping = true
		case "throwunmappable":
			m.ThrowOnUnmappableChar = true
		default:
			err = fmt.Errorf("%w: unknown native option %q", ErrInvalidInterfaceShape, k)
		}
		if err != nil {
			return
		}
	}
	return
}

// ParseOverrides reads `platform=name[:version]` entries separated by ';'.
func ParseOverrides(tag string) (o []Override, err error) {
	for _, s := range strings.Split(tag, ";") {
		if s = strings.TrimSpace(s); s == "" {
			continue
		}
		p, lib, ok := strings.Cut(s, "=")
		if !ok {
			return nil, fmt.Errorf("%w: override %q", ErrMissingBindingMetadata, s)
		}
		var x Override
		if x.Platform, err = ParsePlatform(p); err != nil {
			return nil, err
		}
		x.Name, x.Version, _ = strings.Cut(lib, ":")
		o = append(o, x)
	}
	return
}

// FormatTags renders the struct tag Describe reads back into m.
func FormatTags(m MethodDescriptor) string {
	b := new(strings.Builder)
	b.WriteString(m.EntryPoint)
	if m.Library.Name != "" {
		b.WriteString(",lib=" + m.Library.Name)
	}
	if m.Library.Version != "" {
		b.WriteString(",version=" + m.Library.Version)
	}
	if m.Convention != ConventionWinapi {
		b.WriteString(",conv=" + m.Convention.String())
	}
	if m.CharSet != CharSetAnsi {
		b.WriteString(",charset=" + m.CharSet.String())
	}
	if m.SetLastError {
		b.WriteString(",lasterror")
	}
	if m.BestFitMapping {
		b.WriteString(",bestfit")
	}
	if m.ThrowOnUnmappableChar {
		b.WriteString(",throwunmappable")
	}
	tags := []string{fmt.Sprintf("%s:%q", TagNative, b.String())}
	if len(m.Library.Overrides) > 0 {
		o := make([]string, 0, len(m.Library.Overrides))
		for _, x := range m.Library.Overrides {
			s := x.Platform.String() + "=" + x.Name
			if x.Version != "" {
				s += ":" + x.Version
			}
			o = append(o, s)
		}
		tags = append(tags, fmt.Sprintf("%s:%q", TagOverride, strings.Join(o, ";")))
	}
	if i := slices.IndexFunc(m.Params, func(p Param) bool { return p.Marshal != MarshalDefault }); i >= 0 {
		h := make([]string, 0, len(m.Params))
		for _, p := range m.Params {
			h = append(h, p.Marshal.String())
		}
		for len(h) > 0 && h[len(h)-1] == "-" {
			h = h[:len(h)-1]
		}
		tags = append(tags, fmt.Sprintf("%s:%q", TagMarshal, strings.Join(h, ",")))
	}
	return strings.Join(tags, " ")
}
