package domain

import (
	"testing"
)

func TestNormalizeValue_ColorVariants(t *testing.T) {
	tests := []struct {
		attr AttributeType
		raw  string
		want string
	}{
		{AttrEyeColor, "Green", "green"},
		{AttrEyeColor, "Grey", "gray"},
		{AttrEyeColor, "emerald", "green"},
		{AttrEyeColor, "  Sapphire  ", "blue"},
		{AttrHairColor, "Blonde", "blond"},
		{AttrHairColor, "raven", "black"},
		{AttrHairColor, "jet black", "black"},
	}
	for _, tt := range tests {
		if got := NormalizeValue(tt.attr, tt.raw); got != tt.want {
			t.Errorf("NormalizeValue(%s, %q) = %q, want %q", tt.attr, tt.raw, got, tt.want)
		}
	}
}

func TestNormalizeValue_EquivalentSurfacesNeverConflict(t *testing.T) {
	a := NormalizeValue(AttrEyeColor, "grey")
	b := NormalizeValue(AttrEyeColor, "Gray")
	if !SameValue(AttrEyeColor, a, b) {
		t.Fatalf("grey and Gray must normalize to the same value, got %q vs %q", a, b)
	}
}

func TestParseNumber(t *testing.T) {
	tests := []struct {
		raw  string
		want int
		ok   bool
	}{
		{"2", 2, true},
		{"two", 2, true},
		{"Twelve", 12, true},
		{"twenty-three", 23, true},
		{"twenty three", 23, true},
		{"no", 0, true},
		{"a", 1, true},
		{"ninety", 90, true},
		{"several", 0, false},
		{"", 0, false},
	}
	for _, tt := range tests {
		got, ok := ParseNumber(tt.raw)
		if ok != tt.ok || got != tt.want {
			t.Errorf("ParseNumber(%q) = (%d, %v), want (%d, %v)", tt.raw, got, ok, tt.want, tt.ok)
		}
	}
}

func TestNumericComparator(t *testing.T) {
	if got := NormalizeValue(AttrChildCount, "two"); got != "2" {
		t.Fatalf("expected number word to normalize to digits, got %q", got)
	}
	if SameValue(AttrChildCount, NormalizeValue(AttrChildCount, "one"), NormalizeValue(AttrChildCount, "2")) {
		t.Fatal("one child and 2 children must differ")
	}
	if !SameValue(AttrChildCount, NormalizeValue(AttrChildCount, "two"), NormalizeValue(AttrChildCount, "2")) {
		t.Fatal("two and 2 must compare equal")
	}
	if got := NormalizeValue(AttrAge, "twenty-three"); got != "23" {
		t.Fatalf("expected age 23, got %q", got)
	}
}

func TestStreamKey_Laterality(t *testing.T) {
	key := StreamKey(AttrBodyState, "injured", map[string]any{"body_part": "Left Leg"})
	if key != "left leg" {
		t.Fatalf("expected sub-key from body_part, got %q", key)
	}

	// fallback: laterality token in the raw value
	key = StreamKey(AttrBodyState, "left leg was injured", nil)
	if key != "left leg" {
		t.Fatalf("expected sub-key from raw value, got %q", key)
	}

	// distinct limbs must land in distinct streams
	left := StreamKey(AttrBodyState, "x", map[string]any{"body_part": "left leg"})
	right := StreamKey(AttrBodyState, "x", map[string]any{"body_part": "right arm"})
	if left == right {
		t.Fatal("left leg and right arm must have different stream keys")
	}

	// unpartitioned types have no sub-key
	if key := StreamKey(AttrEyeColor, "green", nil); key != "" {
		t.Fatalf("expected empty key for eye_color, got %q", key)
	}
}

func TestLocationAliases(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"NYC", "new york"},
		{"The Big Apple", "new york"},
		{"New York City", "new york"},
		{"Paris", "paris"},
		{"the City of Lights", "paris"},
		{"LA", "los angeles"},
	}
	for _, tt := range tests {
		if got := NormalizeValue(AttrLocation, tt.raw); got != tt.want {
			t.Errorf("NormalizeValue(location, %q) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}

type suffixComparator struct{}

func (suffixComparator) Normalize(raw string) string { return fold(raw) + "!" }
func (suffixComparator) Same(a, b string) bool       { return a == b }

func TestRegisterAttribute_OpenSet(t *testing.T) {
	custom := AttributeType("test_title")
	RegisterAttribute(AttributeDef{Type: custom, Comparator: suffixComparator{}})

	if got := NormalizeValue(custom, "Captain"); got != "captain!" {
		t.Fatalf("custom comparator not consulted, got %q", got)
	}

	// unregistered types degrade to folding instead of failing
	if got := NormalizeValue(AttributeType("unknown"), "  Some Value "); got != "some value" {
		t.Fatalf("expected fold fallback, got %q", got)
	}
}
