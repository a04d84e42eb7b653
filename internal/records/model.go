package records

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Record is one opaque JSON object. Only the "id" field is interpreted.
type Record map[string]any

const idField = "id"

// ID returns the record's string id, or "" when it is missing or not a string.
func (r Record) ID() string {
	id, _ := r[idField].(string)
	return id
}

func (r Record) clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// decodeCollection parses a stored collection. JSON null counts as empty.
func decodeCollection(data []byte) ([]Record, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return []Record{}, nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var out []Record
	if err := dec.Decode(&out); err != nil {
		return nil, fmt.Errorf("decode collection: %w", err)
	}
	if out == nil {
		out = []Record{}
	}
	return out, nil
}

func encodeCollection(records []Record) ([]byte, error) {
	if records == nil {
		records = []Record{}
	}
	return json.Marshal(records)
}

// singular turns a collection name into the noun used in not-found messages:
// "projects" -> "Project", "categories" -> "Category".
func singular(collection string) string {
	name := strings.TrimSpace(collection)
	switch {
	case strings.HasSuffix(name, "ies") && len(name) > 3:
		name = strings.TrimSuffix(name, "ies") + "y"
	case strings.HasSuffix(name, "s") && !strings.HasSuffix(name, "ss") && len(name) > 1:
		name = strings.TrimSuffix(name, "s")
	}
	r, size := utf8.DecodeRuneInString(name)
	if r == utf8.RuneError {
		return name
	}
	return string(unicode.ToUpper(r)) + name[size:]
}
