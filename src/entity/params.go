package entity

import (
	"fmt"
	"strconv"
)

// FindAssetsParams is the validated, cast form of a findAssets query
// (spec §4.1).
type FindAssetsParams struct {
	CreatedBy     string
	Page          int
	PerPage       int
	FromTimestamp *int64
	ToTimestamp   *int64
}

// FindEventsParams is the validated, cast form of a findEvents query
// (spec §4.1/§4.2).
type FindEventsParams struct {
	AssetId       string
	CreatedBy     string
	Page          int
	PerPage       int
	FromTimestamp *int64
	ToTimestamp   *int64
	Data          map[string]any // scalar values only, "geoJson" reserved
	GeoJSON       *GeoQuery
}

// GeoQuery is the reserved params.data.geoJson predicate (spec §4.1).
type GeoQuery struct {
	LocationLongitude  float64
	LocationLatitude   float64
	LocationMaxDistance float64
}

var hexAddressLen = 42 // "0x" + 40 hex chars (20 bytes)

func validateCreatedBy(v string) error {
	if len(v) != hexAddressLen || v[0:2] != "0x" {
		return fmt.Errorf("createdBy must be a 20-byte hex address")
	}
	return nil
}

func castPage(raw map[string]any) (int, error) {
	v, ok := raw["page"]
	if !ok {
		return 0, nil
	}
	n, err := castInt(v)
	if err != nil {
		return 0, fmt.Errorf("page: %w", err)
	}
	if n < 0 {
		return 0, fmt.Errorf("page must be >= 0")
	}
	return n, nil
}

func castPerPage(raw map[string]any) (int, error) {
	v, ok := raw["perPage"]
	if !ok {
		return 100, nil
	}
	n, err := castInt(v)
	if err != nil {
		return 0, fmt.Errorf("perPage: %w", err)
	}
	if n < 1 || n > 1000 {
		return 0, fmt.Errorf("perPage must be between 1 and 1000")
	}
	return n, nil
}

func castTimestamp(raw map[string]any, key string) (*int64, error) {
	v, ok := raw[key]
	if !ok {
		return nil, nil
	}
	n, err := castInt(v)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", key, err)
	}
	if n < 0 {
		return nil, fmt.Errorf("%s must be non-negative", key)
	}
	n64 := int64(n)
	return &n64, nil
}

// castInt accepts either a Go int/float64 (already-typed input bypasses
// casting) or a numeric string (which is cast); non-numeric strings are
// rejected explicitly, tightening the dual-mode behaviour spec §9 open
// question (b) calls out.
func castInt(v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		return int(n), nil
	case string:
		parsed, err := strconv.Atoi(n)
		if err != nil {
			return 0, fmt.Errorf("not a numeric string: %q", n)
		}
		return parsed, nil
	default:
		return 0, fmt.Errorf("unsupported type %T", v)
	}
}

// ValidateAndCastFindAssetsParams implements spec §4.1.
func ValidateAndCastFindAssetsParams(raw map[string]any) (*FindAssetsParams, error) {
	allowed := map[string]bool{"createdBy": true, "page": true, "perPage": true, "fromTimestamp": true, "toTimestamp": true}
	for k := range raw {
		if !allowed[k] {
			return nil, NewValidationError("unknown query field %q", k)
		}
	}

	params := &FindAssetsParams{}

	if v, ok := raw["createdBy"]; ok {
		s, ok := v.(string)
		if !ok {
			return nil, NewValidationError("createdBy must be a string")
		}
		if err := validateCreatedBy(s); err != nil {
			return nil, NewValidationError("%s", err)
		}
		params.CreatedBy = s
	}

	page, err := castPage(raw)
	if err != nil {
		return nil, NewValidationError("%s", err)
	}
	params.Page = page

	perPage, err := castPerPage(raw)
	if err != nil {
		return nil, NewValidationError("%s", err)
	}
	params.PerPage = perPage

	from, err := castTimestamp(raw, "fromTimestamp")
	if err != nil {
		return nil, NewValidationError("%s", err)
	}
	params.FromTimestamp = from

	to, err := castTimestamp(raw, "toTimestamp")
	if err != nil {
		return nil, NewValidationError("%s", err)
	}
	params.ToTimestamp = to

	return params, nil
}

// ValidateAndCastFindEventsParams implements spec §4.1.
func ValidateAndCastFindEventsParams(raw map[string]any) (*FindEventsParams, error) {
	allowed := map[string]bool{
		"assetId": true, "createdBy": true, "page": true, "perPage": true,
		"fromTimestamp": true, "toTimestamp": true, "data": true,
	}
	for k := range raw {
		if !allowed[k] {
			return nil, NewValidationError("unknown query field %q", k)
		}
	}

	params := &FindEventsParams{}

	if v, ok := raw["assetId"]; ok {
		s, ok := v.(string)
		if !ok {
			return nil, NewValidationError("assetId must be a string")
		}
		params.AssetId = s
	}

	if v, ok := raw["createdBy"]; ok {
		s, ok := v.(string)
		if !ok {
			return nil, NewValidationError("createdBy must be a string")
		}
		if err := validateCreatedBy(s); err != nil {
			return nil, NewValidationError("%s", err)
		}
		params.CreatedBy = s
	}

	page, err := castPage(raw)
	if err != nil {
		return nil, NewValidationError("%s", err)
	}
	params.Page = page

	perPage, err := castPerPage(raw)
	if err != nil {
		return nil, NewValidationError("%s", err)
	}
	params.PerPage = perPage

	from, err := castTimestamp(raw, "fromTimestamp")
	if err != nil {
		return nil, NewValidationError("%s", err)
	}
	params.FromTimestamp = from

	to, err := castTimestamp(raw, "toTimestamp")
	if err != nil {
		return nil, NewValidationError("%s", err)
	}
	params.ToTimestamp = to

	if v, ok := raw["data"]; ok {
		dataMap, ok := v.(map[string]any)
		if !ok {
			return nil, NewValidationError("data must be an object")
		}

		scalars := map[string]any{}
		for k, val := range dataMap {
			if k == "geoJson" {
				geo, err := parseGeoJSON(val)
				if err != nil {
					return nil, NewValidationError("%s", err)
				}
				params.GeoJSON = geo
				continue
			}
			switch val.(type) {
			case string, float64, int, int64, bool:
				scalars[k] = val
			default:
				return nil, NewValidationError("data.%s must be a scalar value", k)
			}
		}
		if len(scalars) > 0 {
			params.Data = scalars
		}
	}

	return params, nil
}

func parseGeoJSON(v any) (*GeoQuery, error) {
	m, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("geoJson must be an object")
	}
	allowed := map[string]bool{"locationLongitude": true, "locationLatitude": true, "locationMaxDistance": true}
	for k := range m {
		if !allowed[k] {
			return nil, fmt.Errorf("unknown geoJson field %q", k)
		}
	}

	lon, err := requireFloat(m, "locationLongitude")
	if err != nil {
		return nil, err
	}
	lat, err := requireFloat(m, "locationLatitude")
	if err != nil {
		return nil, err
	}
	dist, err := requireFloat(m, "locationMaxDistance")
	if err != nil {
		return nil, err
	}

	return &GeoQuery{LocationLongitude: lon, LocationLatitude: lat, LocationMaxDistance: dist}, nil
}

func requireFloat(m map[string]any, key string) (float64, error) {
	v, ok := m[key]
	if !ok {
		return 0, fmt.Errorf("geoJson.%s is required", key)
	}
	switch n := v.(type) {
	case float64:
		return n, nil
	case int:
		return float64(n), nil
	default:
		return 0, fmt.Errorf("geoJson.%s must be numeric", key)
	}
}
