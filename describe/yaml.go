package describe

import (
	"io"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// DecodeYAML decodes a YAML description, unknown keys are errors.
func DecodeYAML(r io.Reader) (*File, error) {
	d := yaml.NewDecoder(r)
	d.KnownFields(true)
	f := new(File)
	if err := d.Decode(f); err != nil {
		if errors.Is(err, io.EOF) {
			return f, nil
		}
		return nil, errors.Wrap(err, "decode yaml description")
	}
	return f, nil
}
