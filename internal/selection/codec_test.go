package selection

import (
	"strings"
	"testing"

	"pgregory.net/rapid"
)

func TestEncode_MatchesURIComponent(t *testing.T) {
	cases := []struct {
		category Category
		label    string
		want     string
	}{
		{Motivation, "成長する", "motivation:%E6%88%90%E9%95%B7%E3%81%99%E3%82%8B"},
		{Preference, "a b", "preference:a%20b"},
		{Preference, "a+b", "preference:a%2Bb"},
		{Motivation, "x:y", "motivation:x%3Ay"},
		{Motivation, "100%", "motivation:100%25"},
		{Motivation, "it's (fine)!*~", "motivation:it's%20(fine)!*~"},
	}
	for _, tc := range cases {
		if got := Encode(tc.category, tc.label); got != tc.want {
			t.Errorf("Encode(%q, %q) = %q, want %q", tc.category, tc.label, got, tc.want)
		}
	}
}

func TestDecode(t *testing.T) {
	t.Run("prefixed", func(t *testing.T) {
		item, ok := Decode("preference:%E9%9D%99%E3%81%8B", Motivation)
		if !ok {
			t.Fatal("expected decode to succeed")
		}
		if item.Category != Preference || item.Label != "静か" {
			t.Fatalf("unexpected item %+v", item)
		}
	})

	t.Run("legacy_plain_label_uses_fallback", func(t *testing.T) {
		item, ok := Decode("静か", Preference)
		if !ok {
			t.Fatal("expected decode to succeed")
		}
		if item.Category != Preference || item.ID != Encode(Preference, "静か") {
			t.Fatalf("unexpected item %+v", item)
		}
	})

	t.Run("unknown_prefix_is_part_of_label", func(t *testing.T) {
		item, ok := Decode("skill:go", Motivation)
		if !ok {
			t.Fatal("expected decode to succeed")
		}
		if item.Label != "skill:go" || item.Category != Motivation {
			t.Fatalf("unexpected item %+v", item)
		}
	})

	t.Run("blank_labels", func(t *testing.T) {
		for _, id := range []string{"", "   ", "motivation:", "motivation:%20%20"} {
			if _, ok := Decode(id, Motivation); ok {
				t.Errorf("Decode(%q) should fail", id)
			}
		}
	})

	t.Run("malformed_escape", func(t *testing.T) {
		for _, id := range []string{"motivation:%E6%8", "preference:%zz"} {
			if _, ok := Decode(id, Motivation); ok {
				t.Errorf("Decode(%q) should fail", id)
			}
		}
	})

	t.Run("raw_labels_are_not_unescaped", func(t *testing.T) {
		for _, label := range []string{"100%", "達成率50%", "a%20b", "skill:%zz"} {
			item, ok := Decode(label, Preference)
			if !ok {
				t.Errorf("Decode(%q) should keep the raw label", label)
				continue
			}
			if item.Label != label || item.Category != Preference || item.ID != Encode(Preference, label) {
				t.Errorf("Decode(%q) = %+v", label, item)
			}
		}
	})

	t.Run("trims_label", func(t *testing.T) {
		item, ok := Decode("motivation:%20%E5%AD%A6%E3%81%B6%20", Preference)
		if !ok || item.Label != "学ぶ" {
			t.Fatalf("unexpected item %+v ok=%v", item, ok)
		}
	})
}

func TestDecode_LegacyAndEncodedDeduplicate(t *testing.T) {
	encoded, ok := Decode("motivation:%E6%88%90%E9%95%B7%E3%81%99%E3%82%8B", Preference)
	if !ok {
		t.Fatal("encoded form did not decode")
	}
	plain, ok := Decode("成長する", Motivation)
	if !ok {
		t.Fatal("plain form did not decode")
	}
	if encoded.ID != plain.ID {
		t.Fatalf("ids differ: %q vs %q", encoded.ID, plain.ID)
	}
	merged := Merge([]Item{encoded}, []Item{plain})
	if len(merged) != 1 {
		t.Fatalf("expected 1 merged item, got %d", len(merged))
	}
}

func TestDecodeAll_DropsInvalid(t *testing.T) {
	items := DecodeAll([]string{"motivation:%E5%AD%A6", "", "motivation:%zz", "挑戦"}, Motivation)
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d: %+v", len(items), items)
	}
}

func labelGen() *rapid.Generator[string] {
	return rapid.String().Filter(func(s string) bool {
		return strings.TrimSpace(s) != ""
	})
}

func TestRoundTrip_Property(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		category := rapid.SampledFrom([]Category{Motivation, Preference}).Draw(t, "category")
		fallback := rapid.SampledFrom([]Category{Motivation, Preference}).Draw(t, "fallback")
		label := labelGen().Draw(t, "label")

		item, ok := Decode(Encode(category, label), fallback)
		if !ok {
			t.Fatalf("round trip failed for %q", label)
		}
		if item.Category != category {
			t.Fatalf("category = %q, want %q", item.Category, category)
		}
		if item.Label != strings.TrimSpace(label) {
			t.Fatalf("label = %q, want %q", item.Label, strings.TrimSpace(label))
		}
	})
}

func TestRoundTrip_DelimiterLabels_Property(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		label := rapid.StringMatching(`[a-z]{0,4}(:|motivation:|preference:|%)[a-z:%]{0,8}`).Draw(t, "label")
		category := rapid.SampledFrom([]Category{Motivation, Preference}).Draw(t, "category")

		item, ok := Decode(Encode(category, label), Motivation)
		if !ok {
			t.Fatalf("round trip failed for %q", label)
		}
		if item.Category != category || item.Label != label {
			t.Fatalf("got %+v, want %s/%q", item, category, label)
		}
	})
}

func TestEncode_DistinctAcrossCategories_Property(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		label := labelGen().Draw(t, "label")
		if Encode(Motivation, label) == Encode(Preference, label) {
			t.Fatalf("ids collide for %q", label)
		}
	})
}
