package insights

import (
	"context"
	"fmt"
	"strings"

	"github.com/kbukum/speakerhub/internal/store"
	"github.com/kbukum/speakerhub/llm"
	"github.com/kbukum/speakerhub/logger"
)

// ServiceName labels collaborator failures from insight generation.
const ServiceName = "insights"

// Conversation is the recording-level analysis.
type Conversation struct {
	Summary           string                  `json:"summary"`
	Sentiment         string                  `json:"sentiment"`
	SentimentScore    float64                 `json:"sentiment_score"`
	KeyTopics         []string                `json:"key_topics"`
	ActionItems       []store.ActionItem      `json:"action_items"`
	MeetingsReminders []store.MeetingReminder `json:"meetings_reminders"`
}

// Speaker is the analysis of one speaker's part in a recording.
type Speaker struct {
	SpeakingStyle   string   `json:"speaking_style"`
	Sentiment       string   `json:"sentiment"`
	SentimentScore  float64  `json:"sentiment_score"`
	Strengths       []string `json:"strengths"`
	Improvements    []string `json:"improvements"`
	NotablePatterns []string `json:"notable_patterns"`
	Effectiveness   int      `json:"communication_effectiveness"`
}

// Generator produces insights from transcripts.
type Generator interface {
	Conversation(ctx context.Context, transcript string) (*Conversation, error)
	Speaker(ctx context.Context, name, transcript, full string) (*Speaker, error)
}

// DefaultTemperature keeps analysis output stable across runs.
const DefaultTemperature = 0.3

// maxTranscriptChars bounds the prompt size for very long recordings.
const maxTranscriptChars = 60000

// LLMGenerator asks a chat model for insights as JSON.
type LLMGenerator struct {
	provider    llm.Provider
	temperature float64
	log         *logger.Logger
}

// NewLLMGenerator creates a Generator over p.
func NewLLMGenerator(p llm.Provider, log *logger.Logger) *LLMGenerator {
	return &LLMGenerator{provider: p, temperature: DefaultTemperature, log: log.WithComponent("insights")}
}

const conversationSystem = `You analyze transcribed conversations.
Return a JSON object with these fields:
  "summary": two to four sentences,
  "sentiment": one of "positive", "neutral", "negative", "mixed",
  "sentiment_score": number from -1 (very negative) to 1 (very positive),
  "key_topics": list of short topic strings,
  "action_items": list of {"item", "assigned_to" (name or null), "mentioned_by", "priority" ("high", "medium" or "low")},
  "meetings_reminders": list of {"type" ("meeting" or "reminder"), "description", "date_time" (as said, or null), "participants"}.
Use empty lists when nothing applies.`

const speakerSystem = `You assess how one participant communicates in a conversation.
Return a JSON object with these fields:
  "speaking_style": one sentence,
  "sentiment": one of "positive", "neutral", "negative", "mixed",
  "sentiment_score": number from -1 to 1,
  "strengths": list of short strings,
  "improvements": list of short strings,
  "notable_patterns": list of short strings,
  "communication_effectiveness": integer from 1 to 10.`

// Conversation analyzes the full transcript.
func (g *LLMGenerator) Conversation(ctx context.Context, transcript string) (*Conversation, error) {
	var out Conversation
	user := "Transcript:\n" + clip(transcript)
	g.log.Debug("generating conversation insights", map[string]interface{}{"chars": len(transcript)})
	if err := llm.CompleteStructured(ctx, g.provider, ServiceName, conversationSystem, user, g.temperature, &out); err != nil {
		return nil, err
	}
	out.Sentiment, out.SentimentScore = normalizeSentiment(out.Sentiment, out.SentimentScore)
	return &out, nil
}

// Speaker analyzes what name said. full is the whole conversation, which
// helps the model judge tone.
func (g *LLMGenerator) Speaker(ctx context.Context, name, transcript, full string) (*Speaker, error) {
	var out Speaker
	user := fmt.Sprintf("Participant: %s\n\nWhat %s said:\n%s\n\nFull conversation:\n%s",
		name, name, clip(transcript), clip(full))
	if err := llm.CompleteStructured(ctx, g.provider, ServiceName, speakerSystem, user, g.temperature, &out); err != nil {
		return nil, err
	}
	out.Sentiment, out.SentimentScore = normalizeSentiment(out.Sentiment, out.SentimentScore)
	out.Effectiveness = clampInt(out.Effectiveness, 1, 10)
	return &out, nil
}

var sentiments = map[string]bool{"positive": true, "neutral": true, "negative": true, "mixed": true}

func normalizeSentiment(label string, score float64) (string, float64) {
	label = strings.ToLower(strings.TrimSpace(label))
	if !sentiments[label] {
		label = "neutral"
	}
	if score > 1 {
		score = 1
	} else if score < -1 {
		score = -1
	}
	return label, score
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clip(s string) string {
	if len(s) <= maxTranscriptChars {
		return s
	}
	return s[:maxTranscriptChars] + "\n[transcript truncated]"
}
