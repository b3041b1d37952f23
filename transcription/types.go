package transcription

// Request holds parameters for a transcription call.
type Request struct {
	// AudioPath is a local file path.
	AudioPath string `json:"audio_path"`
	// Language is the expected language (e.g. "en"). Empty asks for detection.
	Language string `json:"language,omitempty"`
	// Model overrides the backend's configured model.
	Model string `json:"model,omitempty"`
}

// Response holds the result of a transcription call.
type Response struct {
	Text string `json:"text"`
	// Segments are time-aligned pieces of the transcript, ordered by start.
	Segments []Segment `json:"segments,omitempty"`
	// Duration is the audio duration in seconds.
	Duration float64 `json:"duration,omitempty"`
	Language string  `json:"language,omitempty"`
}

// Segment is a time-aligned portion of a transcript.
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Span is a speaker turn that text gets attached to.
type Span struct {
	Start float64
	End   float64
}
