package pipeline

import (
	"sort"
	"strings"

	"github.com/kbukum/speakerhub/internal/store"
)

// Line is one speaker turn of a transcript.
type Line struct {
	Start   float64
	Speaker string
	Text    string
}

// FullTranscript renders "Name: text" lines ordered by start time, skipping
// turns without text.
func FullTranscript(lines []Line) string {
	sorted := make([]Line, len(lines))
	copy(sorted, lines)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })

	var b strings.Builder
	for _, l := range sorted {
		text := strings.TrimSpace(l.Text)
		if text == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(l.Speaker)
		b.WriteString(": ")
		b.WriteString(text)
	}
	return b.String()
}

// SpeakerTranscripts joins each speaker's segment texts with spaces, in start
// order. Speakers with no text are absent.
func SpeakerTranscripts(segments []store.Segment) map[string]string {
	sorted := make([]store.Segment, len(segments))
	copy(sorted, segments)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })

	parts := make(map[string][]string)
	for _, seg := range sorted {
		if text := strings.TrimSpace(seg.Transcript); text != "" {
			parts[seg.SpeakerID] = append(parts[seg.SpeakerID], text)
		}
	}
	out := make(map[string]string, len(parts))
	for id, p := range parts {
		out[id] = strings.Join(p, " ")
	}
	return out
}

// Lines pairs segments with speaker display names.
func Lines(segments []store.Segment, names map[string]string) []Line {
	lines := make([]Line, len(segments))
	for i, seg := range segments {
		name := names[seg.SpeakerID]
		if name == "" {
			name = seg.SpeakerID
		}
		lines[i] = Line{Start: seg.Start, Speaker: name, Text: seg.Transcript}
	}
	return lines
}
