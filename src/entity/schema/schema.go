// Package schema implements the type-schema registry consumed by the
// validator (spec §6, §9: "Schema registry as data, not code"). Type
// schemas are declarative Go values; adding a type means adding a
// registry entry, never touching the traverser in Validate.
package schema

import (
	"fmt"
	"sort"
)

// FieldKind enumerates the scalar/composite shapes a field can require.
type FieldKind int

const (
	KindString FieldKind = iota
	KindNumber
	KindHex32  // 32-byte hex-prefixed string (e.g. an assetId)
	KindGeoJSON
)

// Field describes one named field of an entry schema.
type Field struct {
	Name     string
	Required bool
	Kind     FieldKind
}

// Schema is the declarative description of one registered entry type.
type Schema struct {
	Fields []Field
}

// Registry maps a "type" value to its Schema. Types not present here are
// still permitted at the outer shape level (spec §3) but skip
// type-specific validation.
type Registry struct {
	schemas map[string]Schema
}

// Default returns the registry populated with the predefined types named
// in spec §6.
func Default() *Registry {
	r := &Registry{schemas: map[string]Schema{}}

	r.Register("ambrosus.asset.identifiers", Schema{
		Fields: []Field{
			{Name: "identifiers", Required: false, Kind: KindString},
		},
	})

	r.Register("ambrosus.event.identifiers", Schema{
		Fields: []Field{
			{Name: "identifiers", Required: false, Kind: KindString},
		},
	})

	r.Register("ambrosus.asset.location", Schema{
		Fields: []Field{
			{Name: "geoJson", Required: false, Kind: KindGeoJSON},
			{Name: "name", Required: false, Kind: KindString},
			{Name: "country", Required: false, Kind: KindString},
			{Name: "city", Required: false, Kind: KindString},
		},
	})

	r.Register("ambrosus.event.location", Schema{
		Fields: []Field{
			{Name: "geoJson", Required: false, Kind: KindGeoJSON},
			{Name: "assetId", Required: false, Kind: KindHex32},
			{Name: "name", Required: false, Kind: KindString},
			{Name: "country", Required: false, Kind: KindString},
			{Name: "city", Required: false, Kind: KindString},
		},
	})

	r.Register("ambrosus.asset.info", Schema{
		Fields: []Field{
			{Name: "name", Required: false, Kind: KindString},
		},
	})

	return r
}

// Register adds or replaces a type's schema.
func (r *Registry) Register(entryType string, s Schema) {
	r.schemas = cloneAndSet(r.schemas, entryType, s)
}

func cloneAndSet(m map[string]Schema, k string, v Schema) map[string]Schema {
	if m == nil {
		m = map[string]Schema{}
	}
	m[k] = v
	return m
}

// Lookup returns the schema registered for entryType, if any.
func (r *Registry) Lookup(entryType string) (Schema, bool) {
	s, ok := r.schemas[entryType]
	return s, ok
}

// Error is one {dataPath, message} schema failure.
type Error struct {
	DataPath string
	Message  string
}

// Validate walks raw against the schema registered for entryType. If the
// type isn't registered, it returns no errors: unrecognized types are
// permitted at the outer level (spec §3). For a registered type, any field
// other than "type" and the schema's declared fields is rejected.
func (r *Registry) Validate(entryType string, raw map[string]any) []Error {
	s, ok := r.Lookup(entryType)
	if !ok {
		return nil
	}

	var errs []Error
	declared := map[string]bool{"type": true}
	for _, f := range s.Fields {
		declared[f.Name] = true
	}
	var unknown []string
	for k := range raw {
		if !declared[k] {
			unknown = append(unknown, k)
		}
	}
	sort.Strings(unknown)
	for _, k := range unknown {
		errs = append(errs, Error{DataPath: "." + k, Message: "is not allowed"})
	}

	for _, f := range s.Fields {
		v, present := raw[f.Name]
		if !present {
			if f.Required {
				errs = append(errs, Error{DataPath: "." + f.Name, Message: "is required"})
			}
			continue
		}
		if err := validateField(f, v); err != nil {
			errs = append(errs, Error{DataPath: "." + f.Name, Message: err.Error()})
		}
	}
	return errs
}

func validateField(f Field, v any) error {
	switch f.Kind {
	case KindString:
		if _, ok := v.(string); !ok {
			return fmt.Errorf("must be a string")
		}
	case KindNumber:
		switch v.(type) {
		case float64, int, int64:
		default:
			return fmt.Errorf("must be a number")
		}
	case KindHex32:
		s, ok := v.(string)
		if !ok {
			return fmt.Errorf("must be a string")
		}
		if len(s) != 66 || s[0:2] != "0x" {
			return fmt.Errorf("must be a 32-byte hex-prefixed string")
		}
	case KindGeoJSON:
		return validateGeoJSON(v)
	}
	return nil
}

func validateGeoJSON(v any) error {
	obj, ok := v.(map[string]any)
	if !ok {
		return fmt.Errorf("must be an object")
	}

	rawCoords, ok := obj["coordinates"]
	if !ok {
		return fmt.Errorf("geoJson.coordinates is required")
	}
	coords, ok := rawCoords.([]any)
	if !ok || len(coords) != 2 {
		return fmt.Errorf("geoJson.coordinates must be [lon, lat]")
	}

	lon, ok1 := toFloat(coords[0])
	lat, ok2 := toFloat(coords[1])
	if !ok1 || !ok2 {
		return fmt.Errorf("geoJson.coordinates must be numeric")
	}
	if lon < -180 || lon > 180 {
		return fmt.Errorf("longitude out of range [-180,180]")
	}
	if lat < -90 || lat > 90 {
		return fmt.Errorf("latitude out of range [-90,90]")
	}
	return nil
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}
