package definition

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Format is the encoding of a definition file.
type Format string

// Supported formats.
const (
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

// FormatOf returns the format implied by a file extension.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".toml":
		return FormatTOML, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnknownFormat, path)
}

// Definition describes a facade device and its attributes.
type Definition struct {
	// Device is the device name. When empty the configured name is used.
	Device      string `yaml:"device" toml:"device"`
	Description string `yaml:"description" toml:"description"`

	// Clock declares the Time attribute ticked by the service.
	Clock bool `yaml:"clock" toml:"clock"`

	// IgnoredReasons replaces the configured ignored event error reasons
	// when not empty.
	IgnoredReasons []string `yaml:"ignored_reasons" toml:"ignored_reasons"`

	// Catalog lists remote attributes known to exist, for wildcard sources.
	Catalog []string `yaml:"catalog" toml:"catalog"`

	Attributes []Attribute `yaml:"attributes" toml:"attributes"`
}

// Attribute describes one facade attribute.
//
// Which fields apply depends on Kind:
//
//	local     initial, writable
//	logical   rule, bind
//	proxy     source, writable, rule (transform of the remote value)
//	combined  sources, exclude, rule
//	state     rule and bind, or nothing for a local state
type Attribute struct {
	Name        string `yaml:"name" toml:"name"`
	Kind        string `yaml:"kind" toml:"kind"`
	Description string `yaml:"description" toml:"description"`

	Source  string   `yaml:"source" toml:"source"`
	Sources []string `yaml:"sources" toml:"sources"`
	Exclude []string `yaml:"exclude" toml:"exclude"`

	Rule string   `yaml:"rule" toml:"rule"`
	Args Args     `yaml:"args" toml:"args"`
	Bind []string `yaml:"bind" toml:"bind"`

	Writable bool `yaml:"writable" toml:"writable"`
	Hidden   bool `yaml:"hidden" toml:"hidden"`
	Zero     any  `yaml:"zero" toml:"zero"`
	Initial  any  `yaml:"initial" toml:"initial"`
}

// Load reads a definition file. The format follows the file extension.
func Load(path string) (*Definition, error) {
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading definition: %w", err)
	}
	def, err := Parse(data, format)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", filepath.Base(path), err)
	}
	return def, nil
}

// Parse decodes a definition. Unknown fields are rejected.
func Parse(data []byte, format Format) (*Definition, error) {
	var def Definition
	switch format {
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&def); err != nil && !errors.Is(err, io.EOF) {
			return nil, err
		}
	case FormatTOML:
		dec := toml.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&def); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
	return &def, nil
}
