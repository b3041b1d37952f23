package analysis

import (
	"strings"
	"testing"

	"github.com/kbukum/speakerhub/errors"
	"github.com/kbukum/speakerhub/llm"
)

const validResponse = `{
  "segments": [
    {"start": 5.0, "end": 9.0, "speaker_id": "SPEAKER_2", "transcription": "Hi John.", "confidence": 0.7},
    {"start": 0.0, "end": 4.5, "speaker_id": "SPEAKER_1", "transcription": "I'm John, welcome."}
  ],
  "speakers": {
    "SPEAKER_1": {"name": "John", "detected_name": "John", "voice_characteristics": "deep", "total_speaking_time": 4.5},
    "SPEAKER_2": {"name": "Female Speaker 1", "detected_name": null, "voice_characteristics": "bright", "total_speaking_time": 4.0}
  },
  "full_transcript": "John: I'm John, welcome.\nFemale Speaker 1: Hi John.",
  "conversation_insights": {
    "summary": "A greeting.",
    "sentiment_overall": "positive",
    "sentiment_score": 0.6,
    "key_topics": ["introductions"],
    "action_items": [{"item": "send notes", "assigned_to": null, "mentioned_by": "SPEAKER_1", "priority": "low"}],
    "meetings_reminders": []
  },
  "speaker_insights": {
    "SPEAKER_1": {"speaking_style": "warm", "sentiment": "positive", "sentiment_score": 0.7, "word_count": 3,
      "filler_words_count": 0, "speaking_pace": 120, "strengths": ["clear"], "improvements": [],
      "notable_patterns": [], "communication_effectiveness": 8}
  }
}`

func TestParse_Valid(t *testing.T) {
	for name, content := range map[string]string{
		"plain":         validResponse,
		"json fence":    "```json\n" + validResponse + "\n```",
		"bare fence":    "```\n" + validResponse + "\n```",
		"leading prose": "Here is the analysis:\n" + validResponse,
	} {
		t.Run(name, func(t *testing.T) {
			res, err := Parse(content, llm.FinishStop)
			if err != nil {
				t.Fatalf("Parse() error: %v", err)
			}
			if len(res.Segments) != 2 {
				t.Fatalf("segments = %d", len(res.Segments))
			}
			if res.Segments[0].Label != "SPEAKER_1" {
				t.Errorf("segments not ordered by start: %+v", res.Segments[0])
			}
			if *res.Segments[0].Confidence != DefaultConfidence {
				t.Errorf("default confidence = %v", *res.Segments[0].Confidence)
			}
			if *res.Segments[1].Confidence != 0.7 {
				t.Errorf("explicit confidence = %v", *res.Segments[1].Confidence)
			}
			if name, ok := res.DetectedName("SPEAKER_1"); !ok || name != "John" {
				t.Errorf("DetectedName(SPEAKER_1) = %q, %v", name, ok)
			}
			if _, ok := res.DetectedName("SPEAKER_2"); ok {
				t.Error("DetectedName(SPEAKER_2) should be absent")
			}
		})
	}
}

func TestParse_FinishReasons(t *testing.T) {
	tests := []struct {
		reason string
		want   string
	}{
		{llm.FinishSafety, "safety"},
		{llm.FinishMaxTokens, "token limit"},
		{llm.FinishOther, "incomplete"},
	}
	for _, tt := range tests {
		t.Run(tt.reason, func(t *testing.T) {
			_, err := Parse(validResponse, tt.reason)
			if !errors.IsCode(err, errors.ErrCodeCollaboratorFailure) {
				t.Fatalf("error = %v, want COLLABORATOR_FAILURE", err)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err.Error(), tt.want)
			}
		})
	}
}

func TestParse_Truncated(t *testing.T) {
	content := validResponse[:len(validResponse)/2]
	_, err := Parse(content, "")
	if !errors.IsCode(err, errors.ErrCodeCollaboratorFailure) {
		t.Fatalf("error = %v, want COLLABORATOR_FAILURE", err)
	}
	if !strings.Contains(err.Error(), "truncated") {
		t.Errorf("error = %v, want truncation message", err)
	}
}

func TestParse_NotJSON(t *testing.T) {
	_, err := Parse("I could not process this audio, sorry }", "")
	if !errors.IsCode(err, errors.ErrCodeCollaboratorFailure) {
		t.Fatalf("error = %v, want COLLABORATOR_FAILURE", err)
	}
	if !strings.Contains(err.Error(), "not valid JSON") {
		t.Errorf("error = %v", err)
	}
}

func TestParse_MissingFields(t *testing.T) {
	_, err := Parse(`{"segments": [], "speakers": {}, "full_transcript": ""}`, llm.FinishStop)
	if !errors.IsCode(err, errors.ErrCodeInvalidInput) {
		t.Fatalf("error = %v, want INVALID_INPUT", err)
	}
	appErr, _ := errors.AsAppError(err)
	missing, _ := appErr.Details["missing"].([]string)
	if len(missing) != 2 || missing[0] != "conversation_insights" || missing[1] != "speaker_insights" {
		t.Errorf("missing = %v", missing)
	}
}

func withSegments(segments string) string {
	return `{"segments": ` + segments + `, "speakers": {}, "full_transcript": "",
  "conversation_insights": {"summary": ""}, "speaker_insights": {}}`
}

func TestParse_InvalidSegments(t *testing.T) {
	tests := []struct {
		name     string
		segments string
		want     string
	}{
		{"empty list", `[]`, "no segments"},
		{"not a list", `{"start": 0}`, "list of objects"},
		{"missing speaker and text", `[{"start": 5, "end": 1}]`, "speaker_id, transcription"},
		{"null end", `[{"start": 0, "end": null, "speaker_id": "SPEAKER_1", "transcription": "hi"}]`, "end"},
		{"second segment incomplete", `[{"start": 0, "end": 1, "speaker_id": "SPEAKER_1", "transcription": "hi"},
			{"start": 1, "speaker_id": "SPEAKER_1", "transcription": "yo"}]`, "segment 1"},
		{"blank speaker", `[{"start": 0, "end": 1, "speaker_id": " ", "transcription": "hi"}]`, "empty speaker_id"},
		{"end before start", `[{"start": 5, "end": 1, "speaker_id": "SPEAKER_1", "transcription": "hi"}]`, "invalid segment timestamps"},
		{"negative start", `[{"start": -1, "end": 1, "speaker_id": "SPEAKER_1", "transcription": "hi"}]`, "invalid segment timestamps"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Parse(withSegments(tt.segments), llm.FinishStop)
			if !errors.IsCode(err, errors.ErrCodeInvalidInput) {
				t.Fatalf("Parse() = %+v, %v; want INVALID_INPUT", res, err)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err.Error(), tt.want)
			}
		})
	}
}

func TestParse_ZeroLengthSegmentAllowed(t *testing.T) {
	res, err := Parse(withSegments(`[{"start": 2, "end": 2, "speaker_id": "SPEAKER_1", "transcription": ""}]`), "")
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if len(res.Segments) != 1 || res.Segments[0].Label != "SPEAKER_1" {
		t.Errorf("segments = %+v", res.Segments)
	}
}

func TestMimeType(t *testing.T) {
	tests := map[string]string{
		"a.MP3":  "audio/mpeg",
		"b.m4a":  "audio/mp4",
		"c.wav":  "audio/wav",
		"d.xyz":  "audio/mpeg",
		"e.opus": "audio/opus",
		"f.flac": "audio/flac",
	}
	for path, want := range tests {
		if got := MimeType(path); got != want {
			t.Errorf("MimeType(%q) = %q, want %q", path, got, want)
		}
	}
}
