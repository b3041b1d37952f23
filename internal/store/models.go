package store

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/kbukum/speakerhub/database"
)

// Status is the processing state shared by recordings and jobs.
type Status string

const (
	StatusQueued     Status = "QUEUED"
	StatusProcessing Status = "PROCESSING"
	StatusCompleted  Status = "COMPLETED"
	StatusFailed     Status = "FAILED"
)

// Terminal reports whether no further transitions are allowed.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Speaker is a durable identity that persists across recordings.
type Speaker struct {
	database.BaseModel
	Name             string         `gorm:"size:255;not null" json:"name"`
	TotalDuration    float64        `gorm:"not null;default:0" json:"total_duration"`
	RecordingCount   int            `gorm:"not null;default:0" json:"recording_count"`
	AverageSentiment *float64       `json:"average_sentiment"`
	Metadata         datatypes.JSON `gorm:"not null" json:"metadata"`
}

// BeforeCreate keeps Metadata a JSON object so it never scans back as NULL.
func (s *Speaker) BeforeCreate(tx *gorm.DB) error {
	if len(s.Metadata) == 0 {
		s.Metadata = datatypes.JSON("{}")
	}
	return s.BaseModel.BeforeCreate(tx)
}

// Recording is one uploaded audio file.
type Recording struct {
	database.BaseModel
	Filename     string     `gorm:"size:512;not null" json:"filename"`
	StoragePath  string     `gorm:"size:1024;not null" json:"-"`
	Format       string     `gorm:"size:16" json:"format"`
	SizeBytes    int64      `json:"size_bytes"`
	Duration     *float64   `json:"duration"`
	Status       Status     `gorm:"size:16;not null;index" json:"status"`
	ErrorMessage string     `gorm:"type:text" json:"error_message,omitempty"`
	ProcessedAt  *time.Time `json:"processed_at"`
}

// Segment is one speaker turn within a recording, attributed to a durable
// speaker.
type Segment struct {
	database.BaseModel
	RecordingID string  `gorm:"size:36;not null;index" json:"recording_id"`
	SpeakerID   string  `gorm:"size:36;not null;index" json:"speaker_id"`
	Start       float64 `gorm:"column:start_time;not null" json:"start"`
	End         float64 `gorm:"column:end_time;not null" json:"end"`
	Duration    float64 `gorm:"not null" json:"duration"`
	Confidence  float64 `json:"confidence"`
	Transcript  string  `gorm:"type:text" json:"transcript"`
	// EmbeddingRef is the id of the segment whose embedding identified the
	// speaker. Representative segments point at themselves.
	EmbeddingRef string `gorm:"size:64" json:"embedding_ref,omitempty"`
}

// SpeakerRecording links a speaker to a recording they appear in.
type SpeakerRecording struct {
	database.BaseModel
	SpeakerID     string  `gorm:"size:36;not null;uniqueIndex:idx_speaker_recording" json:"speaker_id"`
	RecordingID   string  `gorm:"size:36;not null;uniqueIndex:idx_speaker_recording;index" json:"recording_id"`
	TotalDuration float64 `gorm:"not null;default:0" json:"total_duration"`
	SegmentCount  int     `gorm:"not null;default:0" json:"segment_count"`
}

// ProcessingJob tracks one attempt at processing a recording.
type ProcessingJob struct {
	database.BaseModel
	RecordingID  string         `gorm:"size:36;not null;index" json:"recording_id"`
	Status       Status         `gorm:"size:16;not null;index" json:"status"`
	Progress     int            `gorm:"not null;default:0" json:"progress"`
	CurrentStep  string         `gorm:"size:32" json:"current_step"`
	StartedAt    *time.Time     `json:"started_at"`
	CompletedAt  *time.Time     `json:"completed_at"`
	ErrorMessage string         `gorm:"type:text" json:"error_message,omitempty"`
	Result       datatypes.JSON `gorm:"not null" json:"result"`
}

// BeforeCreate keeps Result a JSON object so it never scans back as NULL.
func (j *ProcessingJob) BeforeCreate(tx *gorm.DB) error {
	if len(j.Result) == 0 {
		j.Result = datatypes.JSON("{}")
	}
	return j.BaseModel.BeforeCreate(tx)
}

// ActionItem is a task mentioned in a conversation.
type ActionItem struct {
	Item        string  `json:"item"`
	AssignedTo  *string `json:"assigned_to"`
	MentionedBy string  `json:"mentioned_by"`
	Priority    string  `json:"priority"`
}

// MeetingReminder is a meeting or reminder mentioned in a conversation.
type MeetingReminder struct {
	Type         string   `json:"type"`
	Description  string   `json:"description"`
	DateTime     *string  `json:"date_time"`
	Participants []string `json:"participants"`
}

// ConversationInsight holds recording-level analysis.
type ConversationInsight struct {
	database.BaseModel
	RecordingID       string                               `gorm:"size:36;not null;uniqueIndex" json:"recording_id"`
	Summary           string                               `gorm:"type:text" json:"summary"`
	Sentiment         string                               `gorm:"size:16" json:"sentiment"`
	SentimentScore    float64                              `json:"sentiment_score"`
	KeyTopics         datatypes.JSONSlice[string]          `json:"key_topics"`
	ActionItems       datatypes.JSONSlice[ActionItem]      `json:"action_items"`
	MeetingsReminders datatypes.JSONSlice[MeetingReminder] `json:"meetings_reminders"`
}

// SpeakerInsight holds analysis of one speaker within one recording.
type SpeakerInsight struct {
	database.BaseModel
	SpeakerRecordingID string                      `gorm:"size:36;not null;index" json:"-"`
	SpeakerID          string                      `gorm:"size:36;not null;index" json:"speaker_id"`
	RecordingID        string                      `gorm:"size:36;not null;index" json:"recording_id"`
	SpeakingStyle      string                      `gorm:"type:text" json:"speaking_style"`
	Sentiment          string                      `gorm:"size:16" json:"sentiment"`
	SentimentScore     float64                     `json:"sentiment_score"`
	WordCount          int                         `json:"word_count"`
	FillerWordCount    int                         `json:"filler_words_count"`
	WordsPerMinute     float64                     `json:"speaking_pace"`
	Strengths          datatypes.JSONSlice[string] `json:"strengths"`
	Improvements       datatypes.JSONSlice[string] `json:"improvements"`
	NotablePatterns    datatypes.JSONSlice[string] `json:"notable_patterns"`
	Effectiveness      int                         `json:"communication_effectiveness"`
}

// Models lists every model for auto-migration.
func Models() []interface{} {
	return []interface{}{
		&Speaker{},
		&Recording{},
		&Segment{},
		&SpeakerRecording{},
		&ProcessingJob{},
		&ConversationInsight{},
		&SpeakerInsight{},
	}
}
