package rawmem

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultMaxAlloc bounds a single allocation when Options.MaxAlloc is unset.
const DefaultMaxAlloc = 1 * GB

type Options struct {
	// Portable writes scalars little-endian at their in-memory offsets so a
	// blob reads back the same on any host byte order. Padding is zeroed.
	Portable bool `yaml:"portable"`

	// Signature prefixes every blob with a crc32 of the packed type list;
	// Unpack refuses blobs whose signature differs.
	Signature bool `yaml:"signature"`

	// MaxAlloc caps the size of one blob in bytes. Zero means DefaultMaxAlloc.
	MaxAlloc int `yaml:"max_alloc"`
}

func (o Options) maxAlloc() int {
	if o.MaxAlloc <= 0 {
		return DefaultMaxAlloc
	}
	return o.MaxAlloc
}

// ParseOptions decodes codec options from YAML.
func ParseOptions(data []byte) (Options, error) {
	var opts Options
	if err := yaml.Unmarshal(data, &opts); err != nil {
		return Options{}, fmt.Errorf("parse options: %w", err)
	}
	if opts.MaxAlloc < 0 {
		return Options{}, fmt.Errorf("parse options: negative max_alloc %d", opts.MaxAlloc)
	}
	return opts, nil
}

// LoadOptions reads and decodes a YAML options file.
func LoadOptions(path string) (Options, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Options{}, fmt.Errorf("load options: %w", err)
	}
	return ParseOptions(data)
}
