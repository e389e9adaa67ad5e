package extractor

import "testing"

func TestAnalyzeModality(t *testing.T) {
	tests := []struct {
		name     string
		sentence string
		want     Modality
	}{
		{"plain", "Maria had green eyes.", Modality{}},
		{"negated", "She never had children.", Modality{Negated: true}},
		{"negated contraction", "Maria didn't have blue eyes.", Modality{Negated: true}},
		{"temporal", "Maria used to live in Paris.", Modality{TemporalChange: true}},
		{"no longer is change not denial", "Her hair was no longer black.", Modality{TemporalChange: true}},
		{"hypothetical what if", "What if her eyes were blue?", Modality{Hypothetical: true}},
		{"hypothetical subjunctive", "If she were older, things would differ.", Modality{Hypothetical: true}},
		{"hypothetical as if", "She acted as if nothing had happened.", Modality{Hypothetical: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := AnalyzeModality(tt.sentence)
			if got != tt.want {
				t.Fatalf("AnalyzeModality(%q) = %+v, want %+v", tt.sentence, got, tt.want)
			}
		})
	}
}

func TestHasThirdPersonPossessive(t *testing.T) {
	if !HasThirdPersonPossessive("Her hair shone.") {
		t.Fatal("expected possessive in sentence")
	}
	if HasThirdPersonPossessive("Maria had green eyes.") {
		t.Fatal("unexpected possessive")
	}
	if !HasThirdPersonPossessive("They washed their hands.") {
		t.Fatal("expected their to register")
	}
}
