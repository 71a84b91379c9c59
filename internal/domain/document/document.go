// Package document models agent output documents as a generic value
// tree. The exact shape of an output is declared per agent, not fixed
// at the type level, so documents are validated at runtime against a
// Shape descriptor.
package document

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
)

// ErrShapeMismatch indicates a document does not conform to its declared shape.
var ErrShapeMismatch = errors.New("document does not match declared shape")

// Kind is the type tag of a document field.
type Kind string

const (
	KindString Kind = "string"
	KindNumber Kind = "number"
	KindBool   Kind = "bool"
	KindArray  Kind = "array"
	KindObject Kind = "object"
)

// ParseKind maps a textual kind to a Kind, defaulting to string for
// anything unrecognized so loosely-written agent documents still load.
func ParseKind(s string) Kind {
	switch Kind(s) {
	case KindString, KindNumber, KindBool, KindArray, KindObject:
		return Kind(s)
	case "int", "integer", "float":
		return KindNumber
	case "boolean":
		return KindBool
	case "list":
		return KindArray
	case "map":
		return KindObject
	default:
		return KindString
	}
}

// Document is a decoded value tree. Values are the JSON scalar and
// container types: string, float64, bool, []any, map[string]any, nil.
type Document map[string]any

// Field declares one entry of a document shape.
type Field struct {
	Name     string `json:"name" yaml:"name"`
	Kind     Kind   `json:"kind" yaml:"kind"`
	Required bool   `json:"required" yaml:"required"`
}

// Shape is the declared structure of an agent output document.
type Shape struct {
	Fields []Field `json:"fields" yaml:"fields"`
}

// IsEmpty reports whether the shape declares no fields.
func (s Shape) IsEmpty() bool { return len(s.Fields) == 0 }

// Validate checks doc against the shape: every required field must be
// present and every present declared field must have the declared kind.
// Undeclared fields are permitted.
func (s Shape) Validate(doc Document) error {
	for _, f := range s.Fields {
		v, ok := doc[f.Name]
		if !ok {
			if f.Required {
				return fmt.Errorf("field %q missing: %w", f.Name, ErrShapeMismatch)
			}
			continue
		}
		if !kindMatches(f.Kind, v) {
			return fmt.Errorf("field %q is not a %s: %w", f.Name, f.Kind, ErrShapeMismatch)
		}
	}
	return nil
}

// Synthesize produces a type-correct placeholder document for the
// shape. Used by schema-simulated executions, which never contact the
// collaborator.
func (s Shape) Synthesize() Document {
	doc := make(Document, len(s.Fields))
	for _, f := range s.Fields {
		doc[f.Name] = placeholder(f.Kind)
	}
	return doc
}

func placeholder(k Kind) any {
	switch k {
	case KindNumber:
		return float64(0)
	case KindBool:
		return false
	case KindArray:
		return []any{}
	case KindObject:
		return map[string]any{}
	default:
		return "placeholder"
	}
}

func kindMatches(k Kind, v any) bool {
	switch k {
	case KindString:
		_, ok := v.(string)
		return ok
	case KindNumber:
		switch v.(type) {
		case float64, float32, int, int64:
			return true
		}
		return false
	case KindBool:
		_, ok := v.(bool)
		return ok
	case KindArray:
		_, ok := v.([]any)
		return ok
	case KindObject:
		switch v.(type) {
		case map[string]any, Document:
			return true
		}
		return false
	}
	return false
}

// Decode parses JSON bytes into a Document. The top level must be an
// object.
func Decode(data []byte) (Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	return doc, nil
}

// Encode serializes the document as JSON.
func (d Document) Encode() ([]byte, error) {
	data, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	return data, nil
}

// Summary renders a short single-line description of the document for
// audit entries: its field names, not its contents.
func (d Document) Summary() string {
	if len(d) == 0 {
		return "empty"
	}
	keys := make([]string, 0, len(d))
	for k := range d {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return fmt.Sprintf("%d fields: %v", len(d), keys)
}
