package provider

import "testing"

func TestFamilyFor(t *testing.T) {
	cases := []struct {
		model string
		want  Family
	}{
		{"gpt-5-nano", FamilyOpenAI},
		{"gpt-4o-mini", FamilyOpenAI},
		{"claude-sonnet-4-20250514", FamilyAnthropic},
		{"claude-3-5-haiku-20241022", FamilyAnthropic},
		{"claude-99-future", FamilyAnthropic}, // prefix heuristic for unknown ids
		{"mystery-model", FamilyOpenAI},       // openai-compatible default
		{"", FamilyOpenAI},
	}
	for _, tc := range cases {
		if got := FamilyFor(tc.model); got != tc.want {
			t.Errorf("FamilyFor(%q) = %v, want %v", tc.model, got, tc.want)
		}
	}
}

func TestCatalog_CopyAndLookup(t *testing.T) {
	models := Catalog()
	if len(models) == 0 {
		t.Fatal("empty catalog")
	}

	// Mutating the returned slice must not touch the registry.
	orig := models[0].ID
	models[0].ID = "tampered"
	if again := Catalog(); again[0].ID != orig {
		t.Fatalf("Catalog() aliased the registry")
	}

	info, ok := Lookup(orig)
	if !ok || info.ID != orig {
		t.Fatalf("Lookup(%q) = %+v, %v", orig, info, ok)
	}
	if _, ok := Lookup("nope"); ok {
		t.Fatalf("Lookup of unknown id succeeded")
	}

	// Every catalog entry resolves to its own family.
	for _, m := range Catalog() {
		if got := FamilyFor(m.ID); string(got) != m.Provider {
			t.Errorf("FamilyFor(%q) = %v, provider says %q", m.ID, got, m.Provider)
		}
	}
}
