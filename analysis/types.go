package analysis

// Request is the input to Analyze.
type Request struct {
	// AudioPath is a local file path.
	AudioPath string
	// Language hints the spoken language. Empty lets the model decide.
	Language string
}

// Result is a validated single-call response.
type Result struct {
	Segments             []Segment                  `json:"segments"`
	Speakers             map[string]Speaker         `json:"speakers"`
	FullTranscript       string                     `json:"full_transcript"`
	ConversationInsights ConversationInsights       `json:"conversation_insights"`
	SpeakerInsights      map[string]SpeakerInsights `json:"speaker_insights"`
}

// Segment is one speaker turn with its text. Labels are local to the recording.
type Segment struct {
	Start         float64  `json:"start"`
	End           float64  `json:"end"`
	Label         string   `json:"speaker_id"`
	Transcription string   `json:"transcription"`
	Confidence    *float64 `json:"confidence"`
}

// Speaker is the model's description of one label.
type Speaker struct {
	Name                 string  `json:"name"`
	DetectedName         *string `json:"detected_name"`
	VoiceCharacteristics string  `json:"voice_characteristics"`
	TotalSpeakingTime    float64 `json:"total_speaking_time"`
}

// ConversationInsights summarize the whole recording.
type ConversationInsights struct {
	Summary           string            `json:"summary"`
	SentimentOverall  string            `json:"sentiment_overall"`
	SentimentScore    float64           `json:"sentiment_score"`
	KeyTopics         []string          `json:"key_topics"`
	ActionItems       []ActionItem      `json:"action_items"`
	MeetingsReminders []MeetingReminder `json:"meetings_reminders"`
}

// ActionItem is a task mentioned in the conversation.
type ActionItem struct {
	Item        string  `json:"item"`
	AssignedTo  *string `json:"assigned_to"`
	MentionedBy string  `json:"mentioned_by"`
	Priority    string  `json:"priority"`
}

// MeetingReminder is a meeting or reminder mentioned in the conversation.
type MeetingReminder struct {
	Type         string   `json:"type"`
	Description  string   `json:"description"`
	DateTime     *string  `json:"date_time"`
	Participants []string `json:"participants"`
}

// SpeakerInsights describe one label's communication.
type SpeakerInsights struct {
	SpeakingStyle              string   `json:"speaking_style"`
	Sentiment                  string   `json:"sentiment"`
	SentimentScore             float64  `json:"sentiment_score"`
	WordCount                  int      `json:"word_count"`
	FillerWordsCount           int      `json:"filler_words_count"`
	SpeakingPace               float64  `json:"speaking_pace"`
	Strengths                  []string `json:"strengths"`
	Improvements               []string `json:"improvements"`
	NotablePatterns            []string `json:"notable_patterns"`
	CommunicationEffectiveness int      `json:"communication_effectiveness"`
}

// DetectedName returns the real name the model heard for label, if any.
func (r *Result) DetectedName(label string) (string, bool) {
	sp, ok := r.Speakers[label]
	if !ok || sp.DetectedName == nil || *sp.DetectedName == "" {
		return "", false
	}
	return *sp.DetectedName, true
}
