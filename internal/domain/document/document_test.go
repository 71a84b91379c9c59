package document

import (
	"errors"
	"testing"
)

func reportShape() Shape {
	return Shape{Fields: []Field{
		{Name: "summary", Kind: KindString, Required: true},
		{Name: "score", Kind: KindNumber, Required: true},
		{Name: "blocking", Kind: KindBool},
		{Name: "findings", Kind: KindArray},
		{Name: "meta", Kind: KindObject},
	}}
}

func TestShapeValidate(t *testing.T) {
	tests := []struct {
		name    string
		doc     Document
		wantErr bool
	}{
		{
			name: "conforming document",
			doc: Document{
				"summary":  "two stale entries found",
				"score":    0.8,
				"blocking": false,
				"findings": []any{"a", "b"},
				"meta":     map[string]any{"source": "scan"},
			},
		},
		{
			name: "optional fields absent",
			doc:  Document{"summary": "ok", "score": float64(1)},
		},
		{
			name:    "missing required field",
			doc:     Document{"summary": "ok"},
			wantErr: true,
		},
		{
			name:    "wrong kind",
			doc:     Document{"summary": "ok", "score": "high"},
			wantErr: true,
		},
		{
			name: "undeclared fields tolerated",
			doc:  Document{"summary": "ok", "score": float64(2), "extra": "x"},
		},
	}

	shape := reportShape()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := shape.Validate(tt.doc)
			if tt.wantErr {
				if !errors.Is(err, ErrShapeMismatch) {
					t.Fatalf("expected ErrShapeMismatch, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestSynthesizeConformsToShape(t *testing.T) {
	shape := reportShape()
	doc := shape.Synthesize()
	if err := shape.Validate(doc); err != nil {
		t.Fatalf("synthesized document must validate against its own shape: %v", err)
	}
	if doc["summary"] != "placeholder" {
		t.Errorf("string placeholder = %v", doc["summary"])
	}
}

func TestDecodeRejectsNonObject(t *testing.T) {
	if _, err := Decode([]byte(`[1,2,3]`)); err == nil {
		t.Fatal("expected error decoding a non-object document")
	}
	doc, err := Decode([]byte(`{"a":1}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc["a"] != float64(1) {
		t.Errorf("a = %v", doc["a"])
	}
}

func TestParseKind(t *testing.T) {
	tests := []struct {
		in   string
		want Kind
	}{
		{"string", KindString},
		{"number", KindNumber},
		{"int", KindNumber},
		{"boolean", KindBool},
		{"list", KindArray},
		{"map", KindObject},
		{"gibberish", KindString},
	}
	for _, tt := range tests {
		if got := ParseKind(tt.in); got != tt.want {
			t.Errorf("ParseKind(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestSummaryIsStable(t *testing.T) {
	doc := Document{"b": 1, "a": 2}
	if got := doc.Summary(); got != "2 fields: [a b]" {
		t.Errorf("Summary() = %q", got)
	}
	if got := (Document{}).Summary(); got != "empty" {
		t.Errorf("empty Summary() = %q", got)
	}
}
