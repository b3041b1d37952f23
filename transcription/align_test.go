package transcription

import "testing"

func TestAssign(t *testing.T) {
	spans := []Span{{0, 5}, {5, 10}, {10, 12}, {20, 25}}
	segments := []Segment{
		{Start: 0.2, End: 2, Text: " Hello there. "},
		{Start: 2, End: 5.5, Text: "How are you?"},
		{Start: 5.5, End: 9, Text: "Fine, thanks."},
		{Start: 13, End: 14, Text: "late words"},
		{Start: 14, End: 14.5, Text: "   "},
	}

	got := Assign(spans, segments)
	want := []string{"Hello there. How are you?", "Fine, thanks.", "late words", ""}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("span %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestAssign_NoSegments(t *testing.T) {
	got := Assign([]Span{{0, 1}, {1, 2}}, nil)
	if len(got) != 2 || got[0] != "" || got[1] != "" {
		t.Errorf("Assign() = %q, want two empty strings", got)
	}
	if len(Assign(nil, []Segment{{Start: 0, End: 1, Text: "x"}})) != 0 {
		t.Error("expected empty result for no spans")
	}
}
