package pipeline

import (
	"context"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/kbukum/speakerhub/diarization"
	"github.com/kbukum/speakerhub/internal/insights"
	"github.com/kbukum/speakerhub/internal/store"
	"github.com/kbukum/speakerhub/logger"
	"github.com/kbukum/speakerhub/observability"
	"github.com/kbukum/speakerhub/transcription"
)

// Staged runs diarization, embedding, transcription and insights as
// separate backend calls.
type Staged struct {
	*shared
	diarizer    diarization.Provider
	embedder    diarization.Embedder
	transcriber transcription.Provider
	insights    insights.Generator
}

func (s *Staged) Name() string { return VariantStaged }

// Run executes every stage for job.
func (s *Staged) Run(ctx context.Context, job *store.ProcessingJob, rec *store.Recording) (*Result, error) {
	audio, cleanup, err := s.materialize(ctx, rec)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	rows, identities, err := s.diarize(ctx, job, rec, audio)
	if err != nil {
		return nil, err
	}
	duration, err := s.transcribe(ctx, job, audio, rows)
	if err != nil {
		return nil, err
	}
	if err := s.generateInsights(ctx, job, rec, rows); err != nil {
		return nil, err
	}

	if duration == 0 {
		for _, seg := range rows {
			if seg.End > duration {
				duration = seg.End
			}
		}
	}
	return &Result{
		Pipeline:         s.Name(),
		SpeakersDetected: len(identities),
		NewSpeakers:      countNew(identities),
		SegmentsCount:    len(rows),
		TotalDuration:    duration,
	}, nil
}

// diarize finds speaker turns, resolves one identity per label and persists
// the segments without text.
func (s *Staged) diarize(ctx context.Context, job *store.ProcessingJob, rec *store.Recording, audio string) (rows []store.Segment, identities map[string]resolved, err error) {
	if err := s.progress.Advance(ctx, job, StepDiarization, 5); err != nil {
		return nil, nil, err
	}
	stageCtx, end := observability.StartStage(ctx, s.metrics, StepDiarization,
		attribute.String(observability.AttrJobID, job.ID))
	defer func() { end(err) }()

	resp, err := s.diarizer.Diarize(stageCtx, diarization.Request{
		AudioPath:   audio,
		NumSpeakers: s.cfg.NumSpeakers,
		MinSpeakers: s.cfg.MinSpeakers,
		MaxSpeakers: s.cfg.MaxSpeakers,
	})
	if err != nil {
		return nil, nil, collaborator("diarization", err)
	}
	segs := diarization.MergeShortSegments(resp.Segments, s.cfg.MinSegmentDuration, diarization.DefaultMaxGap)
	if err := s.progress.Advance(ctx, job, StepDiarization, 15); err != nil {
		return nil, nil, err
	}

	rows = make([]store.Segment, len(segs))
	for i, seg := range segs {
		rows[i] = store.Segment{
			RecordingID: rec.ID,
			Start:       seg.Start,
			End:         seg.End,
			Duration:    seg.Duration(),
			Confidence:  seg.Confidence,
		}
		rows[i].ID = uuid.NewString()
	}

	// representative segment index per label
	repIdx := make(map[string]int)
	for i, seg := range segs {
		j, ok := repIdx[seg.Label]
		if !ok || seg.Duration() > segs[j].Duration() {
			repIdx[seg.Label] = i
		}
	}

	identities = make(map[string]resolved)
	for _, label := range diarization.Labels(segs) {
		rep := repIdx[label]
		vec := s.embed(stageCtx, audio, segs[rep])
		id, isNew, err := s.resolver.IdentifyOrCreate(stageCtx, vec, rec.ID, rows[rep].ID)
		if err != nil {
			return nil, nil, err
		}
		identities[label] = resolved{id: id, isNew: isNew}
		s.log.Info("label resolved", map[string]interface{}{
			logger.FieldJobID:     job.ID,
			logger.FieldSpeakerID: id,
			"label":               label,
			"new":                 isNew,
		})
	}
	for i, seg := range segs {
		rows[i].SpeakerID = identities[seg.Label].id
		rows[i].EmbeddingRef = rows[repIdx[seg.Label]].ID
	}
	if err := s.progress.Advance(ctx, job, StepDiarization, 25); err != nil {
		return nil, nil, err
	}

	if err := s.persistSegments(ctx, rec.ID, rows); err != nil {
		return nil, nil, err
	}
	if err := s.progress.Advance(ctx, job, StepDiarization, 33); err != nil {
		return nil, nil, err
	}
	return rows, identities, nil
}

// embed extracts the embedding for seg, falling back to a zero vector when
// no extractor is configured or extraction fails. A zero vector never
// matches, so the label gets a new identity.
func (s *Staged) embed(ctx context.Context, audio string, seg diarization.Segment) []float32 {
	dim := s.resolver.Index().Dimension()
	if s.embedder == nil {
		return make([]float32, dim)
	}
	vec, err := s.embedder.Embed(ctx, diarization.EmbedRequest{AudioPath: audio, Start: seg.Start, End: seg.End})
	if err != nil || len(vec) != dim {
		fields := map[string]interface{}{"label": seg.Label, "got_dimension": len(vec)}
		if err != nil {
			fields["error"] = err.Error()
		}
		s.log.Warn("embedding extraction failed, using zero vector", fields)
		return make([]float32, dim)
	}
	return vec
}

// transcribe attaches text to the persisted segments and returns the audio
// duration the backend reported.
func (s *Staged) transcribe(ctx context.Context, job *store.ProcessingJob, audio string, rows []store.Segment) (duration float64, err error) {
	if err := s.progress.Advance(ctx, job, StepTranscription, 35); err != nil {
		return 0, err
	}
	stageCtx, end := observability.StartStage(ctx, s.metrics, StepTranscription,
		attribute.String(observability.AttrJobID, job.ID))
	defer func() { end(err) }()

	resp, err := s.transcriber.Transcribe(stageCtx, transcription.Request{AudioPath: audio, Language: s.cfg.Language})
	if err != nil {
		return 0, collaborator("transcription", err)
	}
	if err := s.progress.Advance(ctx, job, StepTranscription, 60); err != nil {
		return 0, err
	}

	spans := make([]transcription.Span, len(rows))
	for i, seg := range rows {
		spans[i] = transcription.Span{Start: seg.Start, End: seg.End}
	}
	if err := s.attachTranscripts(ctx, rows, transcription.Assign(spans, resp.Segments)); err != nil {
		return 0, err
	}
	if err := s.progress.Advance(ctx, job, StepTranscription, 66); err != nil {
		return 0, err
	}
	return resp.Duration, nil
}

// generateInsights stores the conversation insight and one insight per
// speaker who said something.
func (s *Staged) generateInsights(ctx context.Context, job *store.ProcessingJob, rec *store.Recording, rows []store.Segment) (err error) {
	if err := s.progress.Advance(ctx, job, StepInsights, 70); err != nil {
		return err
	}
	if s.insights == nil || len(rows) == 0 {
		return s.progress.Advance(ctx, job, StepInsights, 95)
	}
	stageCtx, end := observability.StartStage(ctx, s.metrics, StepInsights,
		attribute.String(observability.AttrJobID, job.ID))
	defer func() { end(err) }()

	ids := orderedIdentities(rows)
	names, err := s.speakerNames(ctx, ids)
	if err != nil {
		return err
	}
	full := FullTranscript(Lines(rows, names))
	if full == "" {
		return s.progress.Advance(ctx, job, StepInsights, 95)
	}

	conv, err := s.insights.Conversation(stageCtx, full)
	if err != nil {
		return collaborator(insights.ServiceName, err)
	}
	if err := s.saveConversation(ctx, rec.ID, conv); err != nil {
		return err
	}
	if err := s.progress.Advance(ctx, job, StepInsights, 80); err != nil {
		return err
	}

	texts := SpeakerTranscripts(rows)
	seconds := speakingTime(rows)
	if err := s.progress.Advance(ctx, job, StepInsights, 85); err != nil {
		return err
	}
	for _, id := range ids {
		text, ok := texts[id]
		if !ok {
			continue
		}
		ins, err := s.insights.Speaker(stageCtx, names[id], text, full)
		if err != nil {
			return collaborator(insights.ServiceName, err)
		}
		if err := s.saveSpeakerInsight(ctx, rec.ID, id, ins, insights.ComputeMetrics(text, seconds[id])); err != nil {
			return err
		}
	}
	return s.progress.Advance(ctx, job, StepInsights, 95)
}
