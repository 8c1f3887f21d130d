// Package manifest holds the declarative schema describing request
// arguments and response shapes, and validates live values against it.
package manifest

import (
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Manifest is the parsed, canonicalized schema document. Two authoring
// shapes are accepted on parse: a flat "requests" map keyed directly by
// request name, and a legacy "channels -> requests" layering. Both
// canonicalize into Requests; when a document supplies both, the flat
// Requests entries win over any channel-nested entry of the same name,
// and the channel layering is kept only for entries it uniquely defines.
type Manifest struct {
	Version  string                   `json:"version" yaml:"version"`
	Models   map[string]*ModelDef     `json:"models,omitempty" yaml:"models,omitempty"`
	Requests map[string]*RequestSpec  `json:"requests,omitempty" yaml:"requests,omitempty"`
	Channels map[string]*ChannelSpec  `json:"channels,omitempty" yaml:"channels,omitempty"`
}

// ChannelSpec is the legacy "channels -> requests" layer.
type ChannelSpec struct {
	Description string                  `json:"description,omitempty" yaml:"description,omitempty"`
	Requests    map[string]*RequestSpec `json:"requests,omitempty" yaml:"requests,omitempty"`
}

// RequestSpec describes one request's argument schema and response shape.
type RequestSpec struct {
	Description string              `json:"description,omitempty" yaml:"description,omitempty"`
	Args        map[string]*ArgSpec `json:"args,omitempty" yaml:"args,omitempty"`
	Response    *ArgSpec            `json:"response,omitempty" yaml:"response,omitempty"`
}

// ArgSpec is a single argument or response-field schema node.
type ArgSpec struct {
	Type        string              `json:"type" yaml:"type"`
	Description string              `json:"description,omitempty" yaml:"description,omitempty"`
	Required    bool                `json:"required,omitempty" yaml:"required,omitempty"`
	ModelRef    string              `json:"model_ref,omitempty" yaml:"model_ref,omitempty"`
	Items       *ArgSpec            `json:"items,omitempty" yaml:"items,omitempty"`
	Properties  map[string]*ArgSpec `json:"properties,omitempty" yaml:"properties,omitempty"`
	Validation  *Validation         `json:"validation,omitempty" yaml:"validation,omitempty"`

	// requiredProps carries a resolved model's Required list when an
	// ArgSpec is synthesized from a ModelDef reference; zero value for
	// ArgSpecs parsed directly from a manifest document.
	requiredProps []string `json:"-" yaml:"-"`
}

// Validation carries the optional constraints layered on top of a type.
type Validation struct {
	MinLength *int          `json:"min_length,omitempty" yaml:"min_length,omitempty"`
	MaxLength *int          `json:"max_length,omitempty" yaml:"max_length,omitempty"`
	Pattern   string        `json:"pattern,omitempty" yaml:"pattern,omitempty"`
	Minimum   *float64      `json:"minimum,omitempty" yaml:"minimum,omitempty"`
	Maximum   *float64      `json:"maximum,omitempty" yaml:"maximum,omitempty"`
	Enum      []interface{} `json:"enum,omitempty" yaml:"enum,omitempty"`
}

// ModelDef is a reusable object schema referenced from ArgSpec.ModelRef.
type ModelDef struct {
	Type       string              `json:"type" yaml:"type"`
	Properties map[string]*ArgSpec `json:"properties,omitempty" yaml:"properties,omitempty"`
	Required   []string            `json:"required,omitempty" yaml:"required,omitempty"`
}

// validTypes are the scalar/structural types an ArgSpec.Type may name.
var validTypes = map[string]bool{
	"string": true, "number": true, "integer": true,
	"boolean": true, "array": true, "object": true,
}

// canonicalize folds the legacy channel layering into the flat Requests
// map and validates structural well-formedness.
func (m *Manifest) canonicalize() error {
	if m.Version == "" {
		return fmt.Errorf("manifest version is required")
	}
	if m.Requests == nil {
		m.Requests = make(map[string]*RequestSpec)
	}
	for _, ch := range m.Channels {
		for name, rs := range ch.Requests {
			if _, exists := m.Requests[name]; !exists {
				m.Requests[name] = rs
			}
		}
	}
	for name, rs := range m.Requests {
		for argName, a := range rs.Args {
			if err := a.validateSelf(fmt.Sprintf("%s.%s", name, argName)); err != nil {
				return err
			}
		}
		if rs.Response != nil {
			if err := rs.Response.validateSelf(fmt.Sprintf("%s.response", name)); err != nil {
				return err
			}
		}
	}
	for modelName, model := range m.Models {
		for propName, p := range model.Properties {
			if err := p.validateSelf(fmt.Sprintf("model.%s.%s", modelName, propName)); err != nil {
				return err
			}
		}
	}
	return nil
}

func (a *ArgSpec) validateSelf(context string) error {
	if a.Type == "" {
		return fmt.Errorf("argument type is required for '%s'", context)
	}
	if !validTypes[a.Type] {
		return fmt.Errorf("invalid argument type '%s' for '%s'", a.Type, context)
	}
	if a.Validation != nil {
		v := a.Validation
		if v.Pattern != "" {
			if err := checkPattern(v.Pattern); err != nil {
				return fmt.Errorf("invalid regex pattern for '%s': %w", context, err)
			}
		}
		if v.Minimum != nil && v.Maximum != nil && *v.Minimum > *v.Maximum {
			return fmt.Errorf("minimum exceeds maximum for '%s'", context)
		}
		if v.MinLength != nil && v.MaxLength != nil && *v.MinLength > *v.MaxLength {
			return fmt.Errorf("min_length exceeds max_length for '%s'", context)
		}
	}
	return nil
}

// HasRequest reports whether name is defined in the manifest.
func (m *Manifest) HasRequest(name string) bool {
	_, ok := m.Requests[name]
	return ok
}

// GetRequest returns the spec for name, or nil if undefined.
func (m *Manifest) GetRequest(name string) *RequestSpec {
	return m.Requests[name]
}

// ParseJSON parses and canonicalizes a manifest document from JSON bytes.
func ParseJSON(data []byte) (*Manifest, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("manifest JSON cannot be empty")
	}
	var m Manifest
	dec := json.NewDecoder(strings.NewReader(string(data)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest JSON: %w", err)
	}
	if err := m.canonicalize(); err != nil {
		return nil, fmt.Errorf("manifest validation failed: %w", err)
	}
	return &m, nil
}

// ParseYAML parses and canonicalizes a manifest document from YAML bytes.
func ParseYAML(data []byte) (*Manifest, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("manifest YAML cannot be empty")
	}
	var m Manifest
	dec := yaml.NewDecoder(strings.NewReader(string(data)))
	dec.KnownFields(true)
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest YAML: %w", err)
	}
	if err := m.canonicalize(); err != nil {
		return nil, fmt.Errorf("manifest validation failed: %w", err)
	}
	return &m, nil
}

// ParseAuto tries JSON first (content-sniffed), then YAML.
func ParseAuto(data []byte) (*Manifest, error) {
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "{") {
		if m, err := ParseJSON(data); err == nil {
			return m, nil
		}
	}
	if m, err := ParseYAML(data); err == nil {
		return m, nil
	}
	return ParseJSON(data)
}
