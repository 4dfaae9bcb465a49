package server

import (
	"github.com/iancoleman/orderedmap"

	"github.com/Zeppelin-and-Pails/Victualiser/errors"
)

// ParseRecord decodes one enriched record line preserving key order
func ParseRecord(line []byte) (*orderedmap.OrderedMap, error) {
	parsed := orderedmap.New()
	if err := parsed.UnmarshalJSON(line); err != nil {
		return nil, errors.WrapInvalid(err, "Server", "ParseRecord", "record parse")
	}
	return parsed, nil
}

// Flatten collapses a nested record into a single-level mapping keyed by
// innermost field name. Arrays stay values; only objects are descended.
// When two nested paths share an innermost name the later value wins
// while the key keeps its first-seen position (last-write-wins).
func Flatten(nested *orderedmap.OrderedMap) *orderedmap.OrderedMap {
	flat := orderedmap.New()
	flattenInto(flat, nested)
	return flat
}

func flattenInto(flat, nested *orderedmap.OrderedMap) {
	for _, key := range nested.Keys() {
		value, _ := nested.Get(key)
		if sub, ok := value.(orderedmap.OrderedMap); ok {
			flattenInto(flat, &sub)
			continue
		}
		flat.Set(key, value)
	}
}
