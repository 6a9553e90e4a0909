package types

import (
	"fmt"
	"strings"
)

// OrderField is one sort key: a dotted field path and a direction.
type OrderField struct {
	Path       string // dotted "Entity.field" token
	Descending bool
}

// ParseOrdering parses ordering tokens. A leading '-' marks descending order;
// token order is sort priority (first listed = primary key).
func ParseOrdering(tokens []string) ([]OrderField, error) {
	if len(tokens) == 0 {
		return nil, nil
	}

	fields := make([]OrderField, 0, len(tokens))
	for _, tok := range tokens {
		desc := false
		path := tok
		if strings.HasPrefix(path, "-") {
			desc = true
			path = path[1:]
		}
		if path == "" {
			return nil, fmt.Errorf("%w: empty ordering token", ErrMalformedOrdering)
		}
		fields = append(fields, OrderField{Path: path, Descending: desc})
	}
	return fields, nil
}
