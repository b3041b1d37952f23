package diarization

// Request is the input to Diarize.
type Request struct {
	// AudioPath is a local file path. Callers materialize remote objects first.
	AudioPath string
	// NumSpeakers fixes the number of speakers when known. Zero lets the
	// backend decide, optionally bounded by MinSpeakers and MaxSpeakers.
	NumSpeakers int
	MinSpeakers int
	MaxSpeakers int
}

// Segment is one speaker turn with a recording-local label.
type Segment struct {
	Label      string  `json:"speaker_label"`
	Start      float64 `json:"start"`
	End        float64 `json:"end"`
	Confidence float64 `json:"confidence"`
}

// Duration returns End - Start.
func (s Segment) Duration() float64 { return s.End - s.Start }

// Response is the output of Diarize. Segments are ordered by start time.
type Response struct {
	Segments    []Segment
	NumSpeakers int
}

// EmbedRequest selects the span of audio to embed.
type EmbedRequest struct {
	AudioPath string
	Start     float64
	End       float64
}

// LabelStats aggregates the segments sharing one label.
type LabelStats struct {
	TotalDuration float64
	SegmentCount  int
}
