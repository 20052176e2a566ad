package lang

import "testing"

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		text string
		want Tag
	}{
		{"plain english", "How are you doing today?", English},
		{"english greeting", "Hey Ira!", English},
		{"romanized hindi", "Kaise ho?", Hindi},
		{"romanized hindi long", "kya kar rahi ho tum batao", Hindi},
		{"devanagari", "तुम कैसी हो", Hindi},
		{"hinglish mix", "yaar what are you doing", Mixed},
		{"empty", "", Mixed},
		{"symbols only", "!!! 123 :)", Mixed},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Classify(tc.text); got != tc.want {
				t.Fatalf("Classify(%q) = %q, want %q", tc.text, got, tc.want)
			}
		})
	}
}

func TestClassifyDeterministic(t *testing.T) {
	const text = "acha theek hai yaar"
	first := Classify(text)
	for i := 0; i < 10; i++ {
		if got := Classify(text); got != first {
			t.Fatalf("Classify not deterministic: %q then %q", first, got)
		}
	}
}

func TestParseTag(t *testing.T) {
	cases := map[string]Tag{
		"en":      English,
		"hi":      Hindi,
		"mixed":   Mixed,
		"":        Mixed,
		"fr":      Mixed,
		"garbage": Mixed,
	}
	for in, want := range cases {
		if got := ParseTag(in); got != want {
			t.Fatalf("ParseTag(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestTextSet(t *testing.T) {
	set := NewSet(
		"Sorry, something went wrong",
		NewTrans(Hindi, "Sorry, thoda issue ho gaya"),
	)

	if got := set.Text(Hindi); got != "Sorry, thoda issue ho gaya" {
		t.Fatalf("unexpected hindi text: %q", got)
	}
	if got := set.Text(English); got != set.Default {
		t.Fatalf("expected default text for english, got %q", got)
	}
	if got := set.Text(Mixed); got != set.Default {
		t.Fatalf("expected default text for mixed, got %q", got)
	}
}
