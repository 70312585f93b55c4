package language

import "testing"

func TestParseVariants(t *testing.T) {
	tests := []struct {
		input string
		want  Language
	}{
		{"en", Language{Alpha3: "eng"}},
		{"eng", Language{Alpha3: "eng"}},
		{"pt-BR", Language{Alpha3: "por", Country: "BR"}},
		{"zh-Hant", Language{Alpha3: "zho", Script: "Hant"}},
		{"fr:forced", Language{Alpha3: "fra", Forced: true}},
		{"pt-BR:forced", Language{Alpha3: "por", Country: "BR", Forced: true}},
	}
	for _, tc := range tests {
		got, err := Parse(tc.input)
		if err != nil {
			t.Fatalf("Parse(%q) returned error: %v", tc.input, err)
		}
		if got != tc.want {
			t.Fatalf("Parse(%q) = %+v, want %+v", tc.input, got, tc.want)
		}
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	for _, input := range []string{"", "   ", "!!", "this is not a language"} {
		if _, err := Parse(input); err == nil {
			t.Fatalf("Parse(%q) succeeded, want error", input)
		}
	}
}

func TestForcedPropagatesThroughDerivation(t *testing.T) {
	base := MustParse("pt:forced")
	derived := base.WithCountry("BR")
	if !derived.Forced {
		t.Fatal("WithCountry dropped the forced flag")
	}
	stripped := derived.StripCountry()
	if !stripped.Forced {
		t.Fatal("StripCountry dropped the forced flag")
	}
	if stripped.Country != "" {
		t.Fatalf("StripCountry kept country %q", stripped.Country)
	}
	if got := derived.WithForced(false); got.Forced {
		t.Fatal("WithForced(false) did not clear the flag")
	}
}

func TestForcedVariantIsDistinct(t *testing.T) {
	plain := MustParse("en")
	forced := plain.WithForced(true)
	if plain.Equal(forced) {
		t.Fatal("forced and non-forced variants compare equal")
	}
	if !Contains([]Language{forced}, forced) {
		t.Fatal("Contains missed exact forced match")
	}
	if Contains([]Language{forced}, plain) {
		t.Fatal("Contains treated forced as covering non-forced")
	}
}

func TestStringRoundTrip(t *testing.T) {
	for _, code := range []string{"eng", "por-BR", "zho-Hant", "fra:forced"} {
		lang := MustParse(code)
		if got := lang.String(); got != code {
			t.Fatalf("String() = %q, want %q", got, code)
		}
	}
}

func TestDedupeAndIntersect(t *testing.T) {
	en := MustParse("en")
	fr := MustParse("fr")
	frForced := fr.WithForced(true)
	deduped := Dedupe([]Language{en, fr, en, frForced, fr})
	if len(deduped) != 3 {
		t.Fatalf("Dedupe returned %d entries, want 3", len(deduped))
	}
	both := Intersect([]Language{en, fr, frForced}, []Language{fr, en})
	if len(both) != 2 || both[0] != en || both[1] != fr {
		t.Fatalf("Intersect = %v", both)
	}
}
