package pqm

import (
	"bytes"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/goccy/go-yaml"
	"github.com/pkg/errors"
)

// Config controls the formatter's layout decisions. It is a plain value;
// the zero value is not useful, start from one of the presets.
type Config struct {
	// IndentSize is the number of spaces per indentation level.
	IndentSize int `toml:"indent_size" yaml:"indent_size"`
	// UseTabs indents with one tab per level instead of spaces.
	UseTabs bool `toml:"use_tabs" yaml:"use_tabs"`
	// MaxLineLength is the line width the layout heuristics aim for.
	MaxLineLength int `toml:"max_line_length" yaml:"max_line_length"`
	// TrailingComma adds a comma after the last element of multi-line
	// calls, records and lists.
	TrailingComma bool `toml:"trailing_comma" yaml:"trailing_comma"`

	SpaceInBrackets bool `toml:"space_in_brackets" yaml:"space_in_brackets"`
	SpaceInBraces   bool `toml:"space_in_braces" yaml:"space_in_braces"`
	SpaceInParens   bool `toml:"space_in_parens" yaml:"space_in_parens"`

	// AlignEquals pads names in multi-line let and record bodies so their
	// = signs line up.
	AlignEquals bool `toml:"align_equals" yaml:"align_equals"`

	// MultilineThreshold is the element count above which collections
	// expand.
	MultilineThreshold int `toml:"multiline_threshold" yaml:"multiline_threshold"`

	AlwaysExpandLet     bool `toml:"always_expand_let" yaml:"always_expand_let"`
	AlwaysExpandRecords bool `toml:"always_expand_records" yaml:"always_expand_records"`
	AlwaysExpandLists   bool `toml:"always_expand_lists" yaml:"always_expand_lists"`

	// PreserveBlankLines keeps blank lines between bindings and fields of
	// multi-line let and record bodies, up to MaxBlankLines in a row.
	PreserveBlankLines bool `toml:"preserve_blank_lines" yaml:"preserve_blank_lines"`
	MaxBlankLines      int  `toml:"max_blank_lines" yaml:"max_blank_lines"`
}

// DefaultConfig is the standard style.
func DefaultConfig() Config {
	return Config{
		IndentSize:         4,
		MaxLineLength:      120,
		MultilineThreshold: 1,
		AlwaysExpandLet:    true,
		PreserveBlankLines: true,
		MaxBlankLines:      2,
	}
}

// CompactConfig keeps as much on one line as 200 columns allow.
func CompactConfig() Config {
	cfg := DefaultConfig()
	cfg.MaxLineLength = 200
	cfg.MultilineThreshold = 100
	cfg.AlwaysExpandLet = false
	cfg.AlwaysExpandRecords = false
	cfg.AlwaysExpandLists = false
	return cfg
}

// ExpandedConfig puts every let, record and list on multiple lines.
func ExpandedConfig() Config {
	cfg := DefaultConfig()
	cfg.MultilineThreshold = 1
	cfg.AlwaysExpandLet = true
	cfg.AlwaysExpandRecords = true
	cfg.AlwaysExpandLists = true
	return cfg
}

var presets = map[string]func() Config{
	"default":  DefaultConfig,
	"compact":  CompactConfig,
	"expanded": ExpandedConfig,
}

// PresetConfig returns the named preset.
func PresetConfig(name string) (Config, error) {
	if name == "" {
		return DefaultConfig(), nil
	}
	preset, ok := presets[name]
	if !ok {
		names := make([]string, 0, len(presets))
		for n := range presets {
			names = append(names, n)
		}
		sort.Strings(names)
		return Config{}, errors.Errorf("unknown preset %q (want one of %s)", name, strings.Join(names, ", "))
	}
	return preset(), nil
}

// IndentString is the text of one indentation level.
func (c Config) IndentString() string {
	if c.UseTabs {
		return "\t"
	}
	return strings.Repeat(" ", c.IndentSize)
}

// IndentAt is the text of level indentation levels.
func (c Config) IndentAt(level int) string {
	if level <= 0 {
		return ""
	}
	return strings.Repeat(c.IndentString(), level)
}

// Validate rejects settings the formatter cannot honor.
func (c Config) Validate() error {
	switch {
	case !c.UseTabs && c.IndentSize < 1:
		return errors.Errorf("indent_size must be at least 1, got %d", c.IndentSize)
	case c.MaxLineLength < 1:
		return errors.Errorf("max_line_length must be at least 1, got %d", c.MaxLineLength)
	case c.MultilineThreshold < 0:
		return errors.Errorf("multiline_threshold must not be negative, got %d", c.MultilineThreshold)
	case c.MaxBlankLines < 0:
		return errors.Errorf("max_blank_lines must not be negative, got %d", c.MaxBlankLines)
	}
	return nil
}

// ConfigFileNames are the project config files FindConfig looks for, in
// order of preference.
var ConfigFileNames = []string{".pqm.toml", ".pqm.yaml", ".pqm.yml"}

// configFile is the on-disk shape: an optional preset plus overrides.
type configFile struct {
	Preset string `toml:"preset" yaml:"preset"`
	Config `yaml:",inline"`
}

// ConfigOption adjusts how config files are loaded.
type ConfigOption func(*configOptions)

type configOptions struct {
	preset string
}

// WithPreset loads files over the named preset instead of the one the file
// names, so a command-line preset still keeps the file's other settings.
func WithPreset(name string) ConfigOption {
	return func(o *configOptions) {
		o.preset = name
	}
}

// LoadConfig reads a TOML or YAML config file. Options not set in the file
// come from its preset, or the default preset when none is named.
func LoadConfig(path string, opts ...ConfigOption) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrapf(err, "reading %s", path)
	}
	cfg, err := ParseConfig(data, configFormat(path), opts...)
	if err != nil {
		return Config{}, errors.Wrapf(err, "parsing %s", path)
	}
	return cfg, nil
}

// ConfigFormat names a config file syntax.
type ConfigFormat string

const (
	FormatTOML ConfigFormat = "toml"
	FormatYAML ConfigFormat = "yaml"
)

func configFormat(path string) ConfigFormat {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	}
	return FormatTOML
}

// ParseConfig decodes config file contents in the given syntax.
func ParseConfig(data []byte, format ConfigFormat, opts ...ConfigOption) (Config, error) {
	var o configOptions
	for _, opt := range opts {
		opt(&o)
	}

	// The preset is read first so the rest of the file overrides it.
	var head configFile
	if err := decodeConfig(data, format, &head); err != nil {
		return Config{}, err
	}
	preset := head.Preset
	if o.preset != "" {
		preset = o.preset
	}
	base, err := PresetConfig(preset)
	if err != nil {
		return Config{}, err
	}

	file := configFile{Config: base}
	if err := decodeConfig(data, format, &file); err != nil {
		return Config{}, err
	}
	if err := file.Config.Validate(); err != nil {
		return Config{}, err
	}
	return file.Config, nil
}

func decodeConfig(data []byte, format ConfigFormat, dest *configFile) error {
	switch format {
	case FormatYAML:
		return yaml.UnmarshalWithOptions(data, dest, yaml.Strict())
	case FormatTOML:
		md, err := toml.NewDecoder(bytes.NewReader(data)).Decode(dest)
		if err != nil {
			return err
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return errors.Errorf("unknown option %q", undecoded[0].String())
		}
		return nil
	}
	return errors.Errorf("unsupported config format %q", format)
}

// FindConfig searches for a project config file starting from dir and
// walking up to parent directories. Returns ("", nil, nil) if none is found.
func FindConfig(dir string, opts ...ConfigOption) (string, *Config, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", nil, err
	}
	for {
		for _, name := range ConfigFileNames {
			path := filepath.Join(dir, name)
			if _, err := os.Stat(path); err != nil {
				continue
			}
			cfg, err := LoadConfig(path, opts...)
			if err != nil {
				return "", nil, err
			}
			return path, &cfg, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", nil, nil
		}
		dir = parent
	}
}

// EncodeTOML renders cfg in config file syntax.
func (c Config) EncodeTOML() (string, error) {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(c); err != nil {
		return "", err
	}
	return buf.String(), nil
}
