// SPDX-License-Identifier: MIT

package settings

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Format is the syntax of a configuration file.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

// FormatFor picks the syntax from a file extension.
func FormatFor(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".toml":
		return FormatTOML, nil
	default:
		return "", fmt.Errorf("%w: %q (use .yaml, .yml or .toml)", ErrUnsupportedFormat, filepath.Base(path))
	}
}

// Section names with special meaning.
const (
	SectionDefault = "default"
	SectionGlobal  = "global"

	prefixDevice   = "device:"
	prefixCategory = "category:"
	prefixSeries   = "series:"
)

type sectionKind int

const (
	kindDefault sectionKind = iota
	kindGlobal
	kindDevice
	kindCategory
	kindSeries
)

func (k sectionKind) String() string {
	switch k {
	case kindDefault:
		return "default"
	case kindGlobal:
		return "global"
	case kindDevice:
		return "device"
	case kindCategory:
		return "category"
	default:
		return "series"
	}
}

// classifySection maps a lower-cased section name to its kind and id.
// Names without a recognized prefix are bare device sections.
func classifySection(name string) (sectionKind, string, error) {
	switch name {
	case SectionDefault:
		return kindDefault, "", nil
	case SectionGlobal:
		return kindGlobal, "", nil
	}
	for prefix, kind := range map[string]sectionKind{prefixDevice: kindDevice, prefixCategory: kindCategory, prefixSeries: kindSeries} {
		if strings.HasPrefix(name, prefix) {
			id := strings.TrimSpace(strings.TrimPrefix(name, prefix))
			if id == "" {
				return 0, "", &ConfigError{Section: name, Reason: "section id is empty"}
			}
			return kind, id, nil
		}
	}
	if i := strings.Index(name, ":"); i >= 0 {
		return 0, "", &ConfigError{Section: name, Reason: fmt.Sprintf("unknown section type %q", name[:i]), Err: ErrUnknownConfigField}
	}
	return kindDevice, name, nil
}

// File is a decoded configuration file: section name to raw field values,
// both lower-cased.
type File struct {
	Path    string
	ModTime time.Time

	sections map[string]map[string]any
}

// Empty returns a File with no sections, used when no file is configured.
func Empty() *File {
	return &File{sections: map[string]map[string]any{}}
}

// Load reads and decodes the file at path.
func Load(path string) (*File, error) {
	format, err := FormatFor(path)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat config file: %w", err)
	}
	data, err := os.ReadFile(path) // #nosec G304 -- operator supplied path
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	f, err := Parse(format, data)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	f.Path = path
	f.ModTime = info.ModTime()
	return f, nil
}

// Parse decodes a configuration document.
func Parse(format Format, data []byte) (*File, error) {
	raw := map[string]map[string]any{}
	switch format {
	case FormatYAML:
		if len(bytes.TrimSpace(data)) > 0 {
			if err := yaml.Unmarshal(data, &raw); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
			}
		}
	case FormatTOML:
		if _, err := toml.Decode(string(data), &raw); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}

	f := Empty()
	for name, fields := range raw {
		section := strings.ToLower(strings.TrimSpace(name))
		if _, dup := f.sections[section]; dup {
			return nil, &ConfigError{Section: section, Reason: "section appears more than once"}
		}
		out := make(map[string]any, len(fields))
		for key, value := range fields {
			field := strings.ToLower(strings.TrimSpace(key))
			if _, dup := out[field]; dup {
				return nil, &ConfigError{Section: section, Field: field, Reason: "field appears more than once"}
			}
			switch value.(type) {
			case nil, string, bool, int, int64, uint64, float64:
			default:
				return nil, &ConfigError{Section: section, Field: field, Reason: "value must be a scalar"}
			}
			out[field] = value
		}
		f.sections[section] = out
	}
	return f, nil
}

// SectionNames returns the section names in sorted order.
func (f *File) SectionNames() []string {
	names := make([]string, 0, len(f.sections))
	for name := range f.sections {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (f *File) has(section string) bool {
	_, ok := f.sections[section]
	return ok
}
