package schema

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// overrideFile is the YAML document accepted by LoadOverrides.
//
//	registers:
//	  - type: casp
//	    separator: ","
//	    dateLayout: "02/01/2006"
//	    fields:
//	      - {name: ae_lei, field: lei, type: lei, required: true}
type overrideFile struct {
	Registers []Descriptor `yaml:"registers"`
}

// LoadOverrides decodes register descriptors from YAML.
func LoadOverrides(r io.Reader) ([]Descriptor, error) {
	var f overrideFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("decode schema overrides: %w", err)
	}

	for i := range f.Registers {
		if err := f.Registers[i].validate(); err != nil {
			return nil, fmt.Errorf("schema override %d: %w", i, err)
		}
	}
	return f.Registers, nil
}

// ApplyOverridesFile replaces registry entries with the descriptors in path.
// It returns the number of registers replaced.
func ApplyOverridesFile(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open schema overrides: %w", err)
	}
	defer f.Close()

	descs, err := LoadOverrides(f)
	if err != nil {
		return 0, err
	}
	for _, d := range descs {
		if err := Replace(d); err != nil {
			return 0, err
		}
	}
	return len(descs), nil
}
