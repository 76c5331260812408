package vectors

import (
	"strings"
	"testing"
)

func TestVectorLiteral(t *testing.T) {
	tests := []struct {
		name string
		vec  []float32
		want string
	}{
		{"empty", nil, "[]"},
		{"single", []float32{0.5}, "[0.5]"},
		{"several", []float32{0.1, -0.25, 1}, "[0.1,-0.25,1]"},
		{"integers stay short", []float32{1, 0, -2}, "[1,0,-2]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := vectorLiteral(tt.vec); got != tt.want {
				t.Errorf("vectorLiteral() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestVectorLiteral_RoundTripsFloat32(t *testing.T) {
	// FormatFloat with 32-bit precision must not pad mantissa noise onto
	// values that came over the wire as float32.
	got := vectorLiteral([]float32{0.1})
	if got != "[0.1]" {
		t.Errorf("vectorLiteral() = %q, want [0.1]", got)
	}
}

func TestSchemaStatements(t *testing.T) {
	stmts := schemaStatements(1024)
	if len(stmts) != 4 {
		t.Fatalf("schemaStatements() returned %d statements, want 4", len(stmts))
	}

	joined := strings.Join(stmts, "\n")
	if !strings.Contains(joined, "vector(1024)") {
		t.Error("schema should declare vector(1024)")
	}
	if !strings.Contains(joined, "CREATE EXTENSION IF NOT EXISTS vector") {
		t.Error("schema should ensure the pgvector extension")
	}
	if !strings.Contains(joined, "vector_cosine_ops") {
		t.Error("schema should create a cosine index")
	}

	custom := strings.Join(schemaStatements(512), "\n")
	if !strings.Contains(custom, "vector(512)") {
		t.Error("schema should honor custom dimensions")
	}
}
