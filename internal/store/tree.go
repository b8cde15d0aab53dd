package store

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// docPath is a parsed store path.
type docPath struct {
	collection string
	id         string
	field      []string
}

func parsePath(path string) (docPath, error) {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) < 2 {
		return docPath{}, fmt.Errorf("%w: %q", ErrInvalidPath, path)
	}
	for _, p := range parts {
		if p == "" {
			return docPath{}, fmt.Errorf("%w: %q", ErrInvalidPath, path)
		}
	}
	return docPath{collection: parts[0], id: parts[1], field: parts[2:]}, nil
}

// docWrite is one parsed entry of an Update call.
type docWrite struct {
	path  docPath
	value any
}

// docKey identifies a document across collections.
type docKey struct{ collection, id string }

// planUpdate parses and normalises every write and groups them by document.
// Writes inside a document are ordered by path so that an ancestor is applied
// before its descendants.
func planUpdate(updates map[string]any) (map[docKey][]docWrite, []docKey, error) {
	paths := make([]string, 0, len(updates))
	for p := range updates {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	grouped := make(map[docKey][]docWrite)
	var keys []docKey
	for _, p := range paths {
		dp, err := parsePath(p)
		if err != nil {
			return nil, nil, err
		}
		v, err := normalize(updates[p])
		if err != nil {
			return nil, nil, fmt.Errorf("encode %q: %w", p, err)
		}
		k := docKey{dp.collection, dp.id}
		if _, seen := grouped[k]; !seen {
			keys = append(keys, k)
		}
		grouped[k] = append(grouped[k], docWrite{path: dp, value: v})
	}
	return grouped, keys, nil
}

// normalize converts an arbitrary Go value into its generic JSON form
// (map[string]any, []any, float64, string, bool or nil).
func normalize(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return decode(raw)
}

func decode(raw []byte) (any, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// getIn walks field inside doc.
func getIn(doc any, field []string) (any, bool) {
	cur := doc
	for _, f := range field {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		if cur, ok = m[f]; !ok {
			return nil, false
		}
	}
	if cur == nil {
		return nil, false
	}
	return cur, true
}

// setIn writes value at field inside doc and returns the new document.
// Intermediate nodes that are not objects are replaced by objects; a nil
// value deletes the addressed key.
func setIn(doc any, field []string, value any) any {
	if len(field) == 0 {
		return value
	}
	m, ok := doc.(map[string]any)
	if !ok {
		m = make(map[string]any)
	}
	if len(field) == 1 && value == nil {
		delete(m, field[0])
	} else {
		m[field[0]] = setIn(m[field[0]], field[1:], value)
	}
	if len(m) == 0 {
		return nil
	}
	return m
}

// matches reports whether doc's field holds the string equals.
func matches(doc any, field []string, equals string) bool {
	v, ok := getIn(doc, field)
	if !ok {
		return false
	}
	s, ok := v.(string)
	return ok && s == equals
}

func splitField(field string) []string {
	return strings.Split(strings.Trim(field, "/"), "/")
}
