package pipeline

import (
	"testing"

	"github.com/kbukum/speakerhub/internal/store"
)

func seg(speaker string, start float64, text string) store.Segment {
	return store.Segment{SpeakerID: speaker, Start: start, End: start + 1, Transcript: text}
}

func TestFullTranscript(t *testing.T) {
	tests := []struct {
		name  string
		lines []Line
		want  string
	}{
		{"empty", nil, ""},
		{
			"ordered by start",
			[]Line{{Start: 3, Speaker: "Bob", Text: "Fine."}, {Start: 1, Speaker: "Alice", Text: "How are you?"}},
			"Alice: How are you?\nBob: Fine.",
		},
		{
			"skips empty text",
			[]Line{{Start: 0, Speaker: "Alice", Text: "Hello"}, {Start: 1, Speaker: "Bob", Text: "  "}, {Start: 2, Speaker: "Alice", Text: "Anyone?"}},
			"Alice: Hello\nAlice: Anyone?",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FullTranscript(tt.lines); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSpeakerTranscripts(t *testing.T) {
	got := SpeakerTranscripts([]store.Segment{
		seg("b", 2, "second"),
		seg("a", 0, "hello"),
		seg("a", 4, "again"),
		seg("c", 6, ""),
	})
	if got["a"] != "hello again" {
		t.Errorf("a = %q", got["a"])
	}
	if got["b"] != "second" {
		t.Errorf("b = %q", got["b"])
	}
	if _, ok := got["c"]; ok {
		t.Error("speaker without text should be absent")
	}
}

func TestLinesFallsBackToID(t *testing.T) {
	lines := Lines([]store.Segment{seg("a", 0, "hi"), seg("b", 1, "yo")}, map[string]string{"a": "Alice"})
	if lines[0].Speaker != "Alice" || lines[1].Speaker != "b" {
		t.Errorf("lines = %+v", lines)
	}
}

func TestSyntheticVectorIsDeterministic(t *testing.T) {
	a1 := SyntheticVector("SPEAKER_00", 16)
	a2 := SyntheticVector("SPEAKER_00", 16)
	b := SyntheticVector("SPEAKER_01", 16)
	if len(a1) != 16 {
		t.Fatalf("len = %d", len(a1))
	}
	same := true
	for i := range a1 {
		if a1[i] != a2[i] {
			t.Fatal("same label produced different vectors")
		}
		if a1[i] != b[i] {
			same = false
		}
	}
	if same {
		t.Error("different labels produced the same vector")
	}
}
