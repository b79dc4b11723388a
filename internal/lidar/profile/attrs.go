package profile

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Attributes is a decoded metadata document: nested string-keyed maps,
// slices, strings, booleans and numbers (float64 or json.Number).
type Attributes = map[string]any

// Sections searched, in order, for lidar data format keys. Firmware before
// 2.x put them under "data_format" and some tools flatten them.
var formatSections = []string{"lidar_data_format", "data_format", ""}

func section(attrs Attributes, name string) (Attributes, bool) {
	if name == "" {
		return attrs, true
	}
	s, ok := attrs[name].(map[string]any)
	return s, ok
}

// lookup finds key in the first section that defines it.
func lookup(attrs Attributes, sections []string, key string) (any, bool) {
	for _, name := range sections {
		s, ok := section(attrs, name)
		if !ok {
			continue
		}
		if v, ok := s[key]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case uint16:
		return int(n), true
	case uint32:
		return int(n), true
	case float64:
		if n != math.Trunc(n) || math.IsInf(n, 0) {
			return 0, false
		}
		return int(n), true
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, false
		}
		return int(i), true
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(n), 0, 64)
		if err != nil {
			return 0, false
		}
		return int(i), true
	}
	return 0, false
}

func toIntSlice(v any) ([]int, bool) {
	switch s := v.(type) {
	case []int:
		out := make([]int, len(s))
		copy(out, s)
		return out, true
	case []any:
		out := make([]int, len(s))
		for i, e := range s {
			n, ok := toInt(e)
			if !ok {
				return nil, false
			}
			out[i] = n
		}
		return out, true
	}
	return nil, false
}

func requireInt(attrs Attributes, sections []string, key string) (int, error) {
	v, ok := lookup(attrs, sections, key)
	if !ok {
		return 0, configErrorf(key, "required key is missing")
	}
	n, ok := toInt(v)
	if !ok {
		return 0, configErrorf(key, "expected an integer, got %T", v)
	}
	return n, nil
}

func optionalInt(attrs Attributes, sections []string, key string, def int) (int, error) {
	v, ok := lookup(attrs, sections, key)
	if !ok {
		return def, nil
	}
	n, ok := toInt(v)
	if !ok {
		return 0, configErrorf(key, "expected an integer, got %T", v)
	}
	return n, nil
}

func requireIntSlice(attrs Attributes, sections []string, key string) ([]int, error) {
	v, ok := lookup(attrs, sections, key)
	if !ok {
		return nil, configErrorf(key, "required key is missing")
	}
	s, ok := toIntSlice(v)
	if !ok {
		return nil, configErrorf(key, "expected an array of integers")
	}
	return s, nil
}
