package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"sort"
	"strconv"
	"strings"
)

// Well-known metadata paths
const (
	MetaSignalType       = "Signal.signal_type"
	MetaTitle            = "General.title"
	MetaOriginalFilename = "General.original_filename"
	MetaBeamEnergy       = "Acquisition_instrument.TEM.beam_energy" // keV
	MetaCameraLength     = "Acquisition_instrument.TEM.camera_length"
	MetaExposureTime     = "Acquisition_instrument.TEM.Detector.Diffraction.exposure_time"
	MetaDetector         = "Acquisition_instrument.Detector"
	MetaWavelength       = "Acquisition_instrument.TEM.wavelength" // pm, derived
)

// Metadata is a tree of named values addressed by dotted paths such as
// "Acquisition_instrument.TEM.beam_energy". Inner nodes are
// map[string]any; everything else is a leaf.
type Metadata struct {
	root map[string]any
}

// NewMetadata returns an empty tree.
func NewMetadata() *Metadata {
	return &Metadata{root: make(map[string]any)}
}

// MetadataFromDict builds a tree from a nested dictionary. The input is
// deep-copied.
func MetadataFromDict(d map[string]any) *Metadata {
	m := NewMetadata()
	for k, v := range d {
		m.root[k] = copyValue(v)
	}
	return m
}

func splitPath(path string) []string {
	return strings.Split(strings.Trim(path, "."), ".")
}

// Get returns the value stored at path. Inner nodes are returned as
// deep copies.
func (m *Metadata) Get(path string) (any, bool) {
	if m == nil || path == "" {
		return nil, false
	}
	node := m.root
	parts := splitPath(path)
	for i, part := range parts {
		v, ok := node[part]
		if !ok {
			return nil, false
		}
		if i == len(parts)-1 {
			return copyValue(v), true
		}
		child, ok := v.(map[string]any)
		if !ok {
			return nil, false
		}
		node = child
	}
	return nil, false
}

// GetString returns the string at path.
func (m *Metadata) GetString(path string) (string, bool) {
	v, ok := m.Get(path)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// GetFloat returns the number at path converted to float64.
func (m *Metadata) GetFloat(path string) (float64, bool) {
	v, ok := m.Get(path)
	if !ok {
		return 0, false
	}
	return toFloat(v)
}

// Has reports whether path exists.
func (m *Metadata) Has(path string) bool {
	_, ok := m.Get(path)
	return ok
}

// Set stores value at path, creating inner nodes as needed. A leaf in the
// way of the path is replaced by an inner node.
func (m *Metadata) Set(path string, value any) {
	if path == "" {
		return
	}
	if m.root == nil {
		m.root = make(map[string]any)
	}
	node := m.root
	parts := splitPath(path)
	for _, part := range parts[:len(parts)-1] {
		child, ok := node[part].(map[string]any)
		if !ok {
			child = make(map[string]any)
			node[part] = child
		}
		node = child
	}
	node[parts[len(parts)-1]] = copyValue(value)
}

// Delete removes path and reports whether it existed.
func (m *Metadata) Delete(path string) bool {
	if m == nil || path == "" {
		return false
	}
	node := m.root
	parts := splitPath(path)
	for _, part := range parts[:len(parts)-1] {
		child, ok := node[part].(map[string]any)
		if !ok {
			return false
		}
		node = child
	}
	last := parts[len(parts)-1]
	if _, ok := node[last]; !ok {
		return false
	}
	delete(node, last)
	return true
}

// Merge copies other into m. Inner nodes are merged recursively; on
// conflicting leaves other wins.
func (m *Metadata) Merge(other *Metadata) {
	if other == nil {
		return
	}
	if m.root == nil {
		m.root = make(map[string]any)
	}
	mergeInto(m.root, other.root)
}

func mergeInto(dst, src map[string]any) {
	for k, v := range src {
		srcChild, srcIsMap := v.(map[string]any)
		dstChild, dstIsMap := dst[k].(map[string]any)
		if srcIsMap && dstIsMap {
			mergeInto(dstChild, srcChild)
			continue
		}
		dst[k] = copyValue(v)
	}
}

// AsDictionary returns a deep copy of the tree.
func (m *Metadata) AsDictionary() map[string]any {
	out := make(map[string]any)
	if m == nil {
		return out
	}
	for k, v := range m.root {
		out[k] = copyValue(v)
	}
	return out
}

// Clone returns a deep copy.
func (m *Metadata) Clone() *Metadata {
	if m == nil {
		return NewMetadata()
	}
	return MetadataFromDict(m.root)
}

// Len returns the number of leaves.
func (m *Metadata) Len() int {
	n := 0
	_ = m.Walk(func(string, any) error {
		n++
		return nil
	})
	return n
}

// Walk calls fn for every leaf in lexical path order. Walking stops at the
// first error fn returns.
func (m *Metadata) Walk(fn func(path string, value any) error) error {
	if m == nil {
		return nil
	}
	return walkNode("", m.root, fn)
}

func walkNode(prefix string, node map[string]any, fn func(string, any) error) error {
	keys := make([]string, 0, len(node))
	for k := range node {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		path := k
		if prefix != "" {
			path = prefix + "." + k
		}
		if child, ok := node[k].(map[string]any); ok {
			if err := walkNode(path, child, fn); err != nil {
				return err
			}
			continue
		}
		if err := fn(path, node[k]); err != nil {
			return err
		}
	}
	return nil
}

// MarshalJSON implements json.Marshaler. NaN and infinite leaves have no
// JSON number form and are written as the strings "NaN", "+Inf" and "-Inf".
func (m *Metadata) MarshalJSON() ([]byte, error) {
	return json.Marshal(finite(m.AsDictionary()))
}

// finite replaces non-finite floats in an owned tree.
func finite(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, child := range t {
			t[k] = finite(child)
		}
		return t
	case []any:
		for i, child := range t {
			t[i] = finite(child)
		}
		return t
	case float64:
		if notFinite(t) {
			return strconv.FormatFloat(t, 'g', -1, 64)
		}
	case float32:
		if notFinite(float64(t)) {
			return strconv.FormatFloat(float64(t), 'g', -1, 32)
		}
	case []float64:
		if !slices.ContainsFunc(t, notFinite) {
			return t
		}
		out := make([]any, len(t))
		for i, x := range t {
			out[i] = finite(x)
		}
		return out
	}
	return v
}

func notFinite(f float64) bool {
	return math.IsNaN(f) || math.IsInf(f, 0)
}

// UnmarshalJSON implements json.Unmarshaler
func (m *Metadata) UnmarshalJSON(data []byte) error {
	var d map[string]any
	if err := json.Unmarshal(data, &d); err != nil {
		return fmt.Errorf("decode metadata: %w", err)
	}
	*m = *MetadataFromDict(d)
	return nil
}

// MarshalYAML implements yaml.Marshaler
func (m *Metadata) MarshalYAML() (interface{}, error) {
	return m.AsDictionary(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler
func (m *Metadata) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var d map[string]any
	if err := unmarshal(&d); err != nil {
		return err
	}
	*m = *MetadataFromDict(d)
	return nil
}

func copyValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, child := range t {
			out[k] = copyValue(child)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, child := range t {
			out[fmt.Sprint(k)] = copyValue(child)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, child := range t {
			out[i] = copyValue(child)
		}
		return out
	case []float64:
		return append([]float64(nil), t...)
	case []int64:
		return append([]int64(nil), t...)
	case []string:
		return append([]string(nil), t...)
	default:
		return v
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
