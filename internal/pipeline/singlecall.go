package pipeline

import (
	"context"
	"sort"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/kbukum/speakerhub/analysis"
	"github.com/kbukum/speakerhub/internal/insights"
	"github.com/kbukum/speakerhub/internal/store"
	"github.com/kbukum/speakerhub/logger"
	"github.com/kbukum/speakerhub/observability"
)

// SingleCall gets segments, text and insights from one analysis backend and
// resolves labels through synthetic per-label vectors.
type SingleCall struct {
	*shared
	analyzer analysis.Provider
}

func (s *SingleCall) Name() string { return VariantSingleCall }

// Run executes the analysis call and persists its results in the same
// milestones the staged pipeline uses.
func (s *SingleCall) Run(ctx context.Context, job *store.ProcessingJob, rec *store.Recording) (*Result, error) {
	audio, cleanup, err := s.materialize(ctx, rec)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	res, err := s.analyze(ctx, job, audio)
	if err != nil {
		return nil, err
	}

	identities, err := s.resolveLabels(ctx, job, rec, res)
	if err != nil {
		return nil, err
	}

	rows := make([]store.Segment, 0, len(res.Segments))
	var duration float64
	for _, seg := range res.Segments {
		row := store.Segment{
			RecordingID: rec.ID,
			SpeakerID:   identities[seg.Label].id,
			Start:       seg.Start,
			End:         seg.End,
			Duration:    seg.End - seg.Start,
			Transcript:  seg.Transcription,
		}
		row.ID = uuid.NewString()
		if seg.Confidence != nil {
			row.Confidence = *seg.Confidence
		}
		rows = append(rows, row)
		if seg.End > duration {
			duration = seg.End
		}
	}
	if err := s.persistSegments(ctx, rec.ID, rows); err != nil {
		return nil, err
	}
	if err := s.progress.Advance(ctx, job, StepDiarization, 33); err != nil {
		return nil, err
	}

	// text arrived with the segments
	for _, pct := range []int{35, 60, 66} {
		if err := s.progress.Advance(ctx, job, StepTranscription, pct); err != nil {
			return nil, err
		}
	}

	if err := s.storeInsights(ctx, job, rec, res, identities, rows); err != nil {
		return nil, err
	}

	return &Result{
		Pipeline:         s.Name(),
		SpeakersDetected: len(identities),
		NewSpeakers:      countNew(identities),
		SegmentsCount:    len(rows),
		TotalDuration:    duration,
	}, nil
}

func (s *SingleCall) analyze(ctx context.Context, job *store.ProcessingJob, audio string) (res *analysis.Result, err error) {
	if err := s.progress.Advance(ctx, job, StepDiarization, 5); err != nil {
		return nil, err
	}
	stageCtx, end := observability.StartStage(ctx, s.metrics, "analysis",
		attribute.String(observability.AttrJobID, job.ID))
	defer func() { end(err) }()

	res, err = s.analyzer.Analyze(stageCtx, analysis.Request{AudioPath: audio, Language: s.cfg.Language})
	if err != nil {
		return nil, collaborator("analysis", err)
	}
	if err := s.progress.Advance(ctx, job, StepDiarization, 15); err != nil {
		return nil, err
	}
	return res, nil
}

// resolveLabels maps each label to a durable identity and applies any real
// name the backend detected.
func (s *SingleCall) resolveLabels(ctx context.Context, job *store.ProcessingJob, rec *store.Recording, res *analysis.Result) (map[string]resolved, error) {
	dim := s.resolver.Index().Dimension()
	identities := make(map[string]resolved)
	for _, label := range labelsOf(res) {
		id, isNew, err := s.resolver.IdentifyOrCreate(ctx, SyntheticVector(label, dim), rec.ID, "")
		if err != nil {
			return nil, err
		}
		identities[label] = resolved{id: id, isNew: isNew}

		if name, ok := res.DetectedName(label); ok {
			if err := s.resolver.Rename(ctx, id, name); err != nil {
				return nil, err
			}
		}
		s.log.Info("label resolved", map[string]interface{}{
			logger.FieldJobID:     job.ID,
			logger.FieldSpeakerID: id,
			"label":               label,
			"new":                 isNew,
		})
	}
	if err := s.progress.Advance(ctx, job, StepDiarization, 25); err != nil {
		return nil, err
	}
	return identities, nil
}

// labelsOf returns segment labels by first appearance.
func labelsOf(res *analysis.Result) []string {
	segs := make([]analysis.Segment, len(res.Segments))
	copy(segs, res.Segments)
	sort.SliceStable(segs, func(i, j int) bool { return segs[i].Start < segs[j].Start })
	seen := make(map[string]bool)
	var labels []string
	for _, seg := range segs {
		if !seen[seg.Label] {
			seen[seg.Label] = true
			labels = append(labels, seg.Label)
		}
	}
	return labels
}

func (s *SingleCall) storeInsights(ctx context.Context, job *store.ProcessingJob, rec *store.Recording, res *analysis.Result, identities map[string]resolved, rows []store.Segment) error {
	if err := s.progress.Advance(ctx, job, StepInsights, 70); err != nil {
		return err
	}
	ci := res.ConversationInsights
	conv := &insights.Conversation{
		Summary:        ci.Summary,
		Sentiment:      ci.SentimentOverall,
		SentimentScore: ci.SentimentScore,
		KeyTopics:      ci.KeyTopics,
	}
	for _, a := range ci.ActionItems {
		conv.ActionItems = append(conv.ActionItems, store.ActionItem(a))
	}
	for _, m := range ci.MeetingsReminders {
		conv.MeetingsReminders = append(conv.MeetingsReminders, store.MeetingReminder(m))
	}
	if err := s.saveConversation(ctx, rec.ID, conv); err != nil {
		return err
	}
	if err := s.progress.Advance(ctx, job, StepInsights, 80); err != nil {
		return err
	}
	if err := s.progress.Advance(ctx, job, StepInsights, 85); err != nil {
		return err
	}

	texts := SpeakerTranscripts(rows)
	seconds := speakingTime(rows)
	for _, label := range labelsOf(res) {
		id := identities[label].id
		text, ok := texts[id]
		if !ok {
			continue
		}
		si, ok := res.SpeakerInsights[label]
		if !ok {
			continue
		}
		m := insights.ComputeMetrics(text, seconds[id])
		if si.WordCount > 0 {
			m.WordCount = si.WordCount
		}
		if si.FillerWordsCount > 0 {
			m.FillerWordCount = si.FillerWordsCount
		}
		if si.SpeakingPace > 0 {
			m.WordsPerMinute = si.SpeakingPace
		}
		ins := &insights.Speaker{
			SpeakingStyle:   si.SpeakingStyle,
			Sentiment:       si.Sentiment,
			SentimentScore:  si.SentimentScore,
			Strengths:       si.Strengths,
			Improvements:    si.Improvements,
			NotablePatterns: si.NotablePatterns,
			Effectiveness:   si.CommunicationEffectiveness,
		}
		if err := s.saveSpeakerInsight(ctx, rec.ID, id, ins, m); err != nil {
			return err
		}
	}
	return s.progress.Advance(ctx, job, StepInsights, 95)
}
