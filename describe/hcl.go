package describe

import (
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/pkg/errors"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
)

type (
	hclFile struct {
		Package    string          `hcl:"package,optional"`
		Interfaces []*hclInterface `hcl:"interface,block"`
	}
	hclInterface struct {
		Name       string         `hcl:"name,label"`
		Library    string         `hcl:"library,optional"`
		Version    cty.Value      `hcl:"version,optional"`
		Overrides  []*hclOverride `hcl:"override,block"`
		Convention string         `hcl:"convention,optional"`
		CharSet    string         `hcl:"charset,optional"`
		Methods    []*hclMethod   `hcl:"method,block"`
	}
	hclOverride struct {
		Platform string    `hcl:"platform,label"`
		Name     string    `hcl:"name,optional"`
		Version  cty.Value `hcl:"version,optional"`
	}
	hclMethod struct {
		Name                  string         `hcl:"name,label"`
		Entry                 string         `hcl:"entry,optional"`
		Library               string         `hcl:"library,optional"`
		Version               cty.Value      `hcl:"version,optional"`
		Overrides             []*hclOverride `hcl:"override,block"`
		Convention            string         `hcl:"convention,optional"`
		CharSet               string         `hcl:"charset,optional"`
		SetLastError          bool           `hcl:"set_last_error,optional"`
		BestFitMapping        bool           `hcl:"best_fit_mapping,optional"`
		ThrowOnUnmappableChar bool           `hcl:"throw_on_unmappable_char,optional"`
		Returns               string         `hcl:"returns,optional"`
		Params                []*hclParam    `hcl:"param,block"`
	}
	hclParam struct {
		Name    string `hcl:"name,label"`
		Type    string `hcl:"type"`
		Marshal string `hcl:"marshal,optional"`
	}
)

// DecodeHCL decodes an HCL description, filename only names the source in diagnostics.
func DecodeHCL(src []byte, filename string) (*File, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, errors.Wrapf(diags, "parse hcl description %s", filename)
	}
	var raw hclFile
	if diags = gohcl.DecodeBody(file.Body, nil, &raw); diags.HasErrors() {
		return nil, errors.Wrapf(diags, "decode hcl description %s", filename)
	}
	f := &File{Package: raw.Package}
	for _, i := range raw.Interfaces {
		s := InterfaceSpec{
			Name:       i.Name,
			Library:    i.Library,
			Convention: i.Convention,
			CharSet:    i.CharSet,
		}
		var err error
		if s.Version, err = version(i.Version); err != nil {
			return nil, errors.WithMessagef(err, "interface %s", i.Name)
		}
		if s.Overrides, err = hclOverrides(i.Overrides); err != nil {
			return nil, errors.WithMessagef(err, "interface %s", i.Name)
		}
		for _, m := range i.Methods {
			ms := MethodSpec{
				Name:                  m.Name,
				Entry:                 m.Entry,
				Library:               m.Library,
				Convention:            m.Convention,
				CharSet:               m.CharSet,
				SetLastError:          m.SetLastError,
				BestFitMapping:        m.BestFitMapping,
				ThrowOnUnmappableChar: m.ThrowOnUnmappableChar,
				Returns:               m.Returns,
			}
			if ms.Version, err = version(m.Version); err != nil {
				return nil, errors.WithMessagef(err, "method %s.%s", i.Name, m.Name)
			}
			if ms.Overrides, err = hclOverrides(m.Overrides); err != nil {
				return nil, errors.WithMessagef(err, "method %s.%s", i.Name, m.Name)
			}
			for _, p := range m.Params {
				ms.Params = append(ms.Params, ParamSpec{Name: p.Name, Type: p.Type, Marshal: p.Marshal})
			}
			s.Methods = append(s.Methods, ms)
		}
		f.Interfaces = append(f.Interfaces, s)
	}
	return f, nil
}

func hclOverrides(in []*hclOverride) (o []OverrideSpec, err error) {
	for _, x := range in {
		s := OverrideSpec{Platform: x.Platform, Name: x.Name}
		if s.Version, err = version(x.Version); err != nil {
			return nil, errors.WithMessagef(err, "override %s", x.Platform)
		}
		o = append(o, s)
	}
	return
}

// version accepts `version = 6` as well as `version = "6.1"`.
func version(v cty.Value) (string, error) {
	if v.IsNull() {
		return "", nil
	}
	if !v.IsKnown() {
		return "", errors.New("version is unknown")
	}
	s, err := convert.Convert(v, cty.String)
	if err != nil {
		return "", errors.Wrap(err, "version")
	}
	return s.AsString(), nil
}
