package normalization

import (
	"reflect"
	"testing"
)

type color string

const (
	red  color = "red"
	blue color = "blue"
)

func newColors() *Normalizer[color] {
	return NewNormalizer(map[string]color{"Red": red, "blue": blue}, red)
}

func TestNormalize(t *testing.T) {
	n := newColors()
	tests := []struct {
		in   string
		want color
	}{
		{"red", red},
		{"  BLUE ", blue},
		{"green", red},
		{"", red},
	}
	for _, tt := range tests {
		if got := n.Normalize(tt.in); got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestParse(t *testing.T) {
	n := newColors()

	got, err := n.Parse("Blue")
	if err != nil || got != blue {
		t.Fatalf("Parse(Blue) = %q, %v", got, err)
	}

	got, err = n.Parse("")
	if err != nil || got != red {
		t.Fatalf("Parse(empty) = %q, %v; want default", got, err)
	}

	if _, err := n.Parse("green"); err == nil {
		t.Fatal("expected error for unknown value")
	}
}

func TestValidKeys(t *testing.T) {
	n := newColors()
	if got := n.ValidKeys(); !reflect.DeepEqual(got, []string{"blue", "red"}) {
		t.Errorf("ValidKeys() = %v", got)
	}
	if !n.Valid("RED") || n.Valid("green") {
		t.Error("Valid() mismatch")
	}
}
