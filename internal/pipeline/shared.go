package pipeline

import (
	"context"
	"errors"
	"sort"

	"gorm.io/gorm"

	"github.com/kbukum/speakerhub/database"
	apperrors "github.com/kbukum/speakerhub/errors"
	"github.com/kbukum/speakerhub/internal/insights"
	"github.com/kbukum/speakerhub/internal/speaker"
	"github.com/kbukum/speakerhub/internal/store"
	"github.com/kbukum/speakerhub/logger"
	"github.com/kbukum/speakerhub/observability"
	"github.com/kbukum/speakerhub/storage"
)

// Result is stored on a completed job.
type Result struct {
	Pipeline         string  `json:"pipeline"`
	SpeakersDetected int     `json:"speakers_detected"`
	NewSpeakers      int     `json:"new_speakers"`
	SegmentsCount    int     `json:"segments_count"`
	TotalDuration    float64 `json:"total_duration"`
}

// Variant runs the stages of one pipeline flavour for a job that is already
// PROCESSING. It reports milestones through the shared Reporter and leaves
// the terminal transition to the Orchestrator.
type Variant interface {
	Name() string
	Run(ctx context.Context, job *store.ProcessingJob, rec *store.Recording) (*Result, error)
}

// shared holds what both variants need.
type shared struct {
	cfg      Config
	store    *store.Store
	resolver *speaker.Resolver
	storage  storage.Storage
	progress *Reporter
	metrics  *observability.Metrics
	log      *logger.Logger
}

// materialize makes the recording's audio available as a local file.
func (s *shared) materialize(ctx context.Context, rec *store.Recording) (string, func(), error) {
	path, cleanup, err := storage.Materialize(ctx, s.storage, rec.StoragePath)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return "", nil, apperrors.NotFound("audio", rec.StoragePath).WithCause(err)
		}
		return "", nil, apperrors.PersistenceFailure("audio read", err)
	}
	return path, cleanup, nil
}

// resolved is the identity a recording-local label resolved to.
type resolved struct {
	id    string
	isNew bool
}

// persistSegments inserts the segments and records every speaker's
// appearance in the recording.
func (s *shared) persistSegments(ctx context.Context, recordingID string, rows []store.Segment) error {
	if len(rows) == 0 {
		return nil
	}
	if err := s.store.DB().WithContext(ctx).CreateInBatches(rows, 200).Error; err != nil {
		return database.FromDatabase(err, "segment")
	}

	type agg struct {
		duration float64
		count    int
	}
	totals := make(map[string]*agg)
	var order []string
	for _, seg := range rows {
		a, ok := totals[seg.SpeakerID]
		if !ok {
			a = &agg{}
			totals[seg.SpeakerID] = a
			order = append(order, seg.SpeakerID)
		}
		a.duration += seg.Duration
		a.count++
	}
	for _, id := range order {
		if err := s.resolver.RecordAppearance(ctx, id, recordingID, totals[id].duration, totals[id].count); err != nil {
			return err
		}
	}
	return nil
}

// attachTranscripts stores text on each segment. Empty texts are skipped.
func (s *shared) attachTranscripts(ctx context.Context, rows []store.Segment, texts []string) error {
	err := s.store.DB().WithTransaction(ctx, func(tx *gorm.DB) error {
		for i := range rows {
			if texts[i] == "" {
				continue
			}
			if err := tx.Model(&store.Segment{}).Where("id = ?", rows[i].ID).
				Update("transcript", texts[i]).Error; err != nil {
				return err
			}
			rows[i].Transcript = texts[i]
		}
		return nil
	})
	if err != nil {
		return database.FromDatabase(err, "segment")
	}
	return nil
}

func (s *shared) saveConversation(ctx context.Context, recordingID string, c *insights.Conversation) error {
	row := store.ConversationInsight{
		RecordingID:       recordingID,
		Summary:           c.Summary,
		Sentiment:         c.Sentiment,
		SentimentScore:    c.SentimentScore,
		KeyTopics:         c.KeyTopics,
		ActionItems:       c.ActionItems,
		MeetingsReminders: c.MeetingsReminders,
	}
	if err := s.store.DB().WithContext(ctx).Create(&row).Error; err != nil {
		return database.FromDatabase(err, "conversation_insight")
	}
	return nil
}

func (s *shared) saveSpeakerInsight(ctx context.Context, recordingID, speakerID string, ins *insights.Speaker, m insights.Metrics) error {
	db := s.store.DB().WithContext(ctx)
	var link store.SpeakerRecording
	if err := db.Where("speaker_id = ? AND recording_id = ?", speakerID, recordingID).First(&link).Error; err != nil {
		return database.FromDatabase(err, "speaker_recording")
	}
	row := store.SpeakerInsight{
		SpeakerRecordingID: link.ID,
		SpeakerID:          speakerID,
		RecordingID:        recordingID,
		SpeakingStyle:      ins.SpeakingStyle,
		Sentiment:          ins.Sentiment,
		SentimentScore:     ins.SentimentScore,
		WordCount:          m.WordCount,
		FillerWordCount:    m.FillerWordCount,
		WordsPerMinute:     m.WordsPerMinute,
		Strengths:          ins.Strengths,
		Improvements:       ins.Improvements,
		NotablePatterns:    ins.NotablePatterns,
		Effectiveness:      ins.Effectiveness,
	}
	if err := db.Create(&row).Error; err != nil {
		return database.FromDatabase(err, "speaker_insight")
	}
	return s.resolver.RefreshSentiment(ctx, speakerID)
}

// speakerNames loads display names for ids.
func (s *shared) speakerNames(ctx context.Context, ids []string) (map[string]string, error) {
	names := make(map[string]string, len(ids))
	for _, id := range ids {
		sp, err := s.resolver.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		names[id] = sp.Name
	}
	return names, nil
}

// speakingTime sums segment durations per speaker.
func speakingTime(rows []store.Segment) map[string]float64 {
	out := make(map[string]float64)
	for _, seg := range rows {
		out[seg.SpeakerID] += seg.Duration
	}
	return out
}

// orderedIdentities returns the distinct speaker ids of rows by first
// appearance.
func orderedIdentities(rows []store.Segment) []string {
	sorted := make([]store.Segment, len(rows))
	copy(sorted, rows)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })
	seen := make(map[string]bool)
	var ids []string
	for _, seg := range sorted {
		if !seen[seg.SpeakerID] {
			seen[seg.SpeakerID] = true
			ids = append(ids, seg.SpeakerID)
		}
	}
	return ids
}

// collaborator makes sure a backend error carries the collaborator code.
func collaborator(service string, err error) error {
	if _, ok := apperrors.AsAppError(err); ok {
		return err
	}
	return apperrors.CollaboratorFailure(service, err)
}

func countNew(ids map[string]resolved) int {
	n := 0
	for _, r := range ids {
		if r.isNew {
			n++
		}
	}
	return n
}
