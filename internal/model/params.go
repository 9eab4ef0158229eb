package model

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Parameter names understood by the polymarker service.
const (
	ParamContigFilename = "Contig filename"
	ParamGene           = "Gene"
	ParamChromosome     = "Chromosome"
	ParamSequence       = "Sequence"
	ParamJobIDs         = "Previous results"

	// SequenceGroupName is the name of the primary group of sequence
	// parameters. Repeated groups are named "Sequence parameters [N]".
	SequenceGroupName = "Sequence parameters"
)

// Value is a single typed parameter value. It holds whatever a request
// decoded: string, bool, number or a structured JSON document.
type Value struct {
	v any
}

func NewValue(v any) Value {
	return Value{v: v}
}

func (v Value) Any() any {
	return v.v
}

func (v Value) IsZero() bool {
	return v.v == nil
}

func (v *Value) UnmarshalJSON(b []byte) error {
	var x any
	if err := json.Unmarshal(b, &x); err != nil {
		return err
	}
	v.v = x
	return nil
}

func (v *Value) UnmarshalYAML(node *yaml.Node) error {
	var x any
	if err := node.Decode(&x); err != nil {
		return err
	}
	v.v = x
	return nil
}

func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.v)
}

// String returns a string value, structured values are not converted.
func (v Value) String() (string, bool) {
	s, ok := v.v.(string)
	return s, ok
}

// JSON returns the structured form of a value. Strings holding a JSON
// object are returned verbatim.
func (v Value) JSON() (json.RawMessage, bool) {
	switch x := v.v.(type) {
	case json.RawMessage:
		return x, true
	case map[string]any, []any:
		b, err := json.Marshal(x)
		if err != nil {
			return nil, false
		}
		return b, true
	case string:
		t := strings.TrimSpace(x)
		if strings.HasPrefix(t, "{") && json.Valid([]byte(t)) {
			return json.RawMessage(t), true
		}
	}
	return nil, false
}

func (v Value) Uint() (uint, bool) {
	switch x := v.v.(type) {
	case int:
		if x >= 0 {
			return uint(x), true
		}
	case int64:
		if x >= 0 {
			return uint(x), true
		}
	case uint:
		return x, true
	case uint64:
		return uint(x), true
	case float64:
		if x >= 0 && x == math.Trunc(x) {
			return uint(x), true
		}
	case json.Number:
		n, err := strconv.ParseUint(x.String(), 10, 64)
		if err == nil {
			return uint(n), true
		}
	case string:
		n, err := strconv.ParseUint(strings.TrimSpace(x), 10, 64)
		if err == nil {
			return uint(n), true
		}
	}
	return 0, false
}

func (v Value) Bool() (bool, bool) {
	switch x := v.v.(type) {
	case bool:
		return x, true
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(x))
		if err == nil {
			return b, true
		}
	}
	return false, false
}

// Group is a named set of parameters.
type Group struct {
	Name   string           `json:"name" yaml:"name"`
	Params map[string]Value `json:"params" yaml:"params"`
}

func (g *Group) Get(name string) (Value, bool) {
	if g == nil {
		return Value{}, false
	}
	v, ok := g.Params[name]
	if !ok || v.IsZero() {
		return Value{}, false
	}
	return v, true
}

// GetString returns a non-empty string parameter.
func (g *Group) GetString(name string) (string, bool) {
	v, ok := g.Get(name)
	if !ok {
		return "", false
	}
	s, ok := v.String()
	if !ok || s == "" {
		return "", false
	}
	return s, true
}

// ParamSet is a key to typed value store with grouping.
type ParamSet struct {
	Params map[string]Value `json:"params,omitempty" yaml:"params,omitempty"`
	Groups []*Group         `json:"groups,omitempty" yaml:"groups,omitempty"`
}

func NewParamSet() *ParamSet {
	return &ParamSet{Params: make(map[string]Value)}
}

// Set stores an ungrouped parameter.
func (p *ParamSet) Set(name string, v any) *ParamSet {
	if p.Params == nil {
		p.Params = make(map[string]Value)
	}
	p.Params[name] = NewValue(v)
	return p
}

// AddGroup appends a group, keeping declaration order.
func (p *ParamSet) AddGroup(name string, params map[string]any) *ParamSet {
	g := &Group{Name: name, Params: make(map[string]Value, len(params))}
	for k, v := range params {
		g.Params[k] = NewValue(v)
	}
	p.Groups = append(p.Groups, g)
	return p
}

// Group returns the first group with a given name.
func (p *ParamSet) Group(name string) (*Group, bool) {
	for _, g := range p.Groups {
		if g.Name == name {
			return g, true
		}
	}
	return nil, false
}

// Get looks a parameter up amongst ungrouped parameters first and then in groups.
func (p *ParamSet) Get(name string) (Value, bool) {
	if v, ok := p.Params[name]; ok && !v.IsZero() {
		return v, true
	}
	for _, g := range p.Groups {
		if v, ok := g.Get(name); ok {
			return v, true
		}
	}
	return Value{}, false
}

func (p *ParamSet) GetString(name string) (string, bool) {
	v, ok := p.Get(name)
	if !ok {
		return "", false
	}
	s, ok := v.String()
	if !ok || s == "" {
		return "", false
	}
	return s, true
}

// RequireString is GetString returning ErrMissingParameter.
func (p *ParamSet) RequireString(name string) (string, error) {
	s, ok := p.GetString(name)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrMissingParameter, name)
	}
	return s, nil
}
