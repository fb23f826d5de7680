// Package describe reads interface description files for native bindings.
//
// A description file holds a Go package name and a list of interfaces, each a set of methods backed by
// exported functions of native libraries. Libraries, overrides, calling convention and charset given on an
// interface are inherited by its methods. Files are YAML (.yaml, .yml) or HCL (.hcl):
//
//	package: mathx
//	interfaces:
//	  - name: Math
//	    library: m
//	    version: "6"
//	    overrides:
//	      - platform: windows
//	        name: msvcrt
//	    methods:
//	      - name: Abs
//	        entry: abs
//	        returns: int32
//	        params:
//	          - name: x
//	            type: int32
//
// The same file in HCL:
//
//	package = "mathx"
//	interface "Math" {
//	  library = "m"
//	  version = 6
//	  override "windows" {
//	    name = "msvcrt"
//	  }
//	  method "Abs" {
//	    entry   = "abs"
//	    returns = "int32"
//	    param "x" {
//	      type = "int32"
//	    }
//	  }
//	}
package describe

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"

	"github.com/ZenLiuCN/native"
	"github.com/pkg/errors"
)

type (
	// File is a decoded description file.
	File struct {
		Package    string          `yaml:"package"`
		Interfaces []InterfaceSpec `yaml:"interfaces"`
	}
	InterfaceSpec struct {
		Name       string         `yaml:"name"`
		Library    string         `yaml:"library"`
		Version    string         `yaml:"version"`
		Overrides  []OverrideSpec `yaml:"overrides"`
		Convention string         `yaml:"convention"`
		CharSet    string         `yaml:"charset"`
		Methods    []MethodSpec   `yaml:"methods"`
	}
	OverrideSpec struct {
		Platform string `yaml:"platform"`
		Name     string `yaml:"name"`
		Version  string `yaml:"version"`
	}
	MethodSpec struct {
		Name                  string         `yaml:"name"`
		Entry                 string         `yaml:"entry"`
		Library               string         `yaml:"library"` // replaces the interface library with its version and overrides
		Version               string         `yaml:"version"`
		Overrides             []OverrideSpec `yaml:"overrides"`
		Convention            string         `yaml:"convention"`
		CharSet               string         `yaml:"charset"`
		SetLastError          bool           `yaml:"set_last_error"`
		BestFitMapping        bool           `yaml:"best_fit_mapping"`
		ThrowOnUnmappableChar bool           `yaml:"throw_on_unmappable_char"`
		Returns               string         `yaml:"returns"`
		Params                []ParamSpec    `yaml:"params"`
	}
	ParamSpec struct {
		Name    string `yaml:"name"`
		Type    string `yaml:"type"`
		Marshal string `yaml:"marshal"`
	}
)

// Load reads a description file, the format follows the extension.
func Load(path string) (*File, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read description")
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return DecodeYAML(bytes.NewReader(src))
	case ".hcl":
		return DecodeHCL(src, path)
	default:
		return nil, errors.Errorf("unknown description format of %s", path)
	}
}

// Describe converts the file to interface descriptions, applying interface defaults to every method.
func (f *File) Describe() ([]native.Interface, error) {
	out := make([]native.Interface, 0, len(f.Interfaces))
	for _, s := range f.Interfaces {
		i, err := s.Interface()
		if err != nil {
			return nil, err
		}
		out = append(out, i)
	}
	return out, nil
}

// Interface converts one interface description.
func (s InterfaceSpec) Interface() (i native.Interface, err error) {
	if s.Name == "" {
		return i, errors.Wrap(native.ErrInvalidInterfaceShape, "interface without name")
	}
	i.Name = s.Name
	lib := native.Library{Name: s.Library, Version: s.Version}
	if lib.Overrides, err = overrides(s.Overrides); err != nil {
		return i, errors.WithMessage(err, s.Name)
	}
	conv, err := native.ParseConvention(s.Convention)
	if err != nil {
		return i, errors.WithMessage(err, s.Name)
	}
	cs, err := native.ParseCharSet(s.CharSet)
	if err != nil {
		return i, errors.WithMessage(err, s.Name)
	}
	for _, m := range s.Methods {
		d, err := m.descriptor(lib, conv, cs)
		if err != nil {
			return i, errors.WithMessagef(err, "%s.%s", s.Name, m.Name)
		}
		i.Methods = append(i.Methods, d)
	}
	if len(i.Methods) == 0 {
		return i, errors.Wrapf(native.ErrInvalidInterfaceShape, "%s declares no methods", s.Name)
	}
	return i, nil
}

func (m MethodSpec) descriptor(lib native.Library, conv native.CallingConvention, cs native.CharSet) (d native.MethodDescriptor, err error) {
	if m.Name == "" {
		return d, errors.Wrap(native.ErrInvalidInterfaceShape, "method without name")
	}
	d.Name = m.Name
	d.EntryPoint = m.Entry
	d.SetLastError = m.SetLastError
	d.BestFitMapping = m.BestFitMapping
	d.ThrowOnUnmappableChar = m.ThrowOnUnmappableChar
	var own []native.Override
	if own, err = overrides(m.Overrides); err != nil {
		return
	}
	if m.Library != "" && m.Library != lib.Name {
		d.Library = native.Library{Name: m.Library, Version: m.Version, Overrides: own}
	} else {
		d.Library = native.Library{Name: lib.Name, Version: lib.Version}
		if m.Version != "" {
			d.Library.Version = m.Version
		}
		d.Library.Overrides = append(own, lib.Overrides...)
	}
	d.Convention = conv
	if m.Convention != "" {
		if d.Convention, err = native.ParseConvention(m.Convention); err != nil {
			return
		}
	}
	d.CharSet = cs
	if m.CharSet != "" {
		if d.CharSet, err = native.ParseCharSet(m.CharSet); err != nil {
			return
		}
	}
	if d.Result, err = native.ParseValueType(m.Returns); err != nil {
		return
	}
	for n, p := range m.Params {
		x := native.Param{Name: p.Name}
		if x.Type, err = native.ParseValueType(p.Type); err != nil {
			return
		}
		if x.Type == native.TypeVoid {
			return d, errors.Wrapf(native.ErrUnsupportedMarshal, "parameter %d is void", n)
		}
		if x.Marshal, err = native.ParseMarshal(p.Marshal); err != nil {
			return
		}
		d.Params = append(d.Params, x)
	}
	return
}

func overrides(s []OverrideSpec) (o []native.Override, err error) {
	for _, x := range s {
		var p native.Platform
		if p, err = native.ParsePlatform(x.Platform); err != nil {
			return nil, errors.WithMessage(err, "override")
		}
		o = append(o, native.Override{Platform: p, Name: x.Name, Version: x.Version})
	}
	return
}
