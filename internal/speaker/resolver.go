package speaker

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/kbukum/speakerhub/database"
	apperrors "github.com/kbukum/speakerhub/errors"
	"github.com/kbukum/speakerhub/internal/store"
	"github.com/kbukum/speakerhub/internal/vectorindex"
	"github.com/kbukum/speakerhub/logger"
	"github.com/kbukum/speakerhub/observability"
)

// Metadata keys set on speakers created inside the ambiguous band.
const (
	MetaReviewCandidate  = "review_candidate_id"
	MetaReviewSimilarity = "review_similarity"
)

// Resolver matches embeddings to speakers and maintains speaker aggregates.
type Resolver struct {
	cfg     Config
	db      *database.DB
	index   *vectorindex.Index
	locker  Locker
	metrics *observability.Metrics
	log     *logger.Logger
}

// NewResolver creates a Resolver. A nil locker falls back to LocalLocker.
func NewResolver(cfg Config, db *database.DB, index *vectorindex.Index, locker Locker, metrics *observability.Metrics, log *logger.Logger) *Resolver {
	cfg.ApplyDefaults()
	if locker == nil {
		locker = &LocalLocker{}
	}
	return &Resolver{
		cfg:     cfg,
		db:      db,
		index:   index,
		locker:  locker,
		metrics: metrics,
		log:     log.WithComponent("speaker"),
	}
}

// Index returns the embedding index the resolver writes to.
func (r *Resolver) Index() *vectorindex.Index { return r.index }

// IdentifyOrCreate attributes embedding to the best matching speaker, or
// creates a new speaker for it. Either way exactly one embedding is added to
// the index.
func (r *Resolver) IdentifyOrCreate(ctx context.Context, embedding []float32, recordingID, segmentID string) (string, bool, error) {
	unlock, err := r.locker.Lock(ctx)
	if err != nil {
		return "", false, fmt.Errorf("acquire resolution lock: %w", err)
	}
	defer unlock()

	prov := vectorindex.Provenance{RecordingID: recordingID, SegmentID: segmentID}
	if m, ok := r.index.FindMatch(embedding, r.cfg.MatchThreshold); ok {
		if _, err := r.index.Add(ctx, embedding, m.IdentityID, prov); err != nil {
			return "", false, err
		}
		r.log.Debug("speaker matched", map[string]interface{}{
			logger.FieldSpeakerID:   m.IdentityID,
			logger.FieldRecordingID: recordingID,
			"similarity":            m.Similarity,
		})
		return m.IdentityID, false, nil
	}

	candidate, hasCandidate := r.index.BestCandidate(embedding)
	ambiguous := hasCandidate && candidate.Similarity >= r.cfg.NewSpeakerThreshold

	meta := map[string]interface{}{}
	if ambiguous {
		meta[MetaReviewCandidate] = candidate.IdentityID
		meta[MetaReviewSimilarity] = candidate.Similarity
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return "", false, err
	}

	var (
		sp    store.Speaker
		added bool
	)
	err = r.db.WithTransaction(ctx, func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&store.Speaker{}).Count(&n).Error; err != nil {
			return err
		}
		sp = store.Speaker{Name: fmt.Sprintf("Speaker_%03d", n+1), Metadata: datatypes.JSON(metaJSON)}
		if err := tx.Create(&sp).Error; err != nil {
			return err
		}
		if _, err := r.index.Add(ctx, embedding, sp.ID, prov); err != nil {
			return err
		}
		added = true
		return nil
	})
	if err != nil {
		if added {
			// the commit failed after the vector went in
			if rmErr := r.index.RemoveSpeaker(context.WithoutCancel(ctx), sp.ID); rmErr != nil {
				r.log.Error("failed to drop embedding of uncommitted speaker", logger.ErrorFields("index_remove", rmErr))
			}
		}
		return "", false, database.FromDatabase(err, "speaker")
	}

	r.metrics.SpeakerCreated(ctx, ambiguous)
	fields := map[string]interface{}{
		logger.FieldSpeakerID:   sp.ID,
		logger.FieldRecordingID: recordingID,
		"name":                  sp.Name,
	}
	if ambiguous {
		fields["review_candidate"] = candidate.IdentityID
		fields["similarity"] = candidate.Similarity
		r.log.Warn("ambiguous match, created new speaker for review", fields)
	} else {
		r.log.Info("new speaker created", fields)
	}
	return sp.ID, true, nil
}

// UpdateStats adds duration to a speaker's total and counts the recording if
// the speaker was not yet linked to it.
func (r *Resolver) UpdateStats(ctx context.Context, speakerID, recordingID string, duration float64) error {
	if err := updateStats(r.db.WithContext(ctx), speakerID, recordingID, duration); err != nil {
		return database.FromDatabase(err, "speaker")
	}
	return nil
}

// CreateLink records that a speaker appears in a recording. Calling it again
// for the same pair overwrites the totals.
func (r *Resolver) CreateLink(ctx context.Context, speakerID, recordingID string, duration float64, segmentCount int) error {
	if err := upsertLink(r.db.WithContext(ctx), speakerID, recordingID, duration, segmentCount); err != nil {
		return database.FromDatabase(err, "speaker_recording")
	}
	return nil
}

// RecordAppearance applies UpdateStats and CreateLink atomically.
func (r *Resolver) RecordAppearance(ctx context.Context, speakerID, recordingID string, duration float64, segmentCount int) error {
	err := r.db.WithTransaction(ctx, func(tx *gorm.DB) error {
		if err := updateStats(tx, speakerID, recordingID, duration); err != nil {
			return err
		}
		return upsertLink(tx, speakerID, recordingID, duration, segmentCount)
	})
	if err != nil {
		return database.FromDatabase(err, "speaker_recording")
	}
	return nil
}

func updateStats(tx *gorm.DB, speakerID, recordingID string, duration float64) error {
	var linked int64
	if err := tx.Model(&store.SpeakerRecording{}).
		Where("speaker_id = ? AND recording_id = ?", speakerID, recordingID).
		Count(&linked).Error; err != nil {
		return err
	}
	updates := map[string]interface{}{"total_duration": gorm.Expr("total_duration + ?", duration)}
	if linked == 0 {
		updates["recording_count"] = gorm.Expr("recording_count + 1")
	}
	res := tx.Model(&store.Speaker{}).Where("id = ?", speakerID).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperrors.NotFound("speaker", speakerID)
	}
	return nil
}

func upsertLink(tx *gorm.DB, speakerID, recordingID string, duration float64, segmentCount int) error {
	link := store.SpeakerRecording{
		SpeakerID:     speakerID,
		RecordingID:   recordingID,
		TotalDuration: duration,
		SegmentCount:  segmentCount,
	}
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "speaker_id"}, {Name: "recording_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"total_duration", "segment_count", "updated_at"}),
	}).Create(&link).Error
}

// Get loads a speaker.
func (r *Resolver) Get(ctx context.Context, id string) (*store.Speaker, error) {
	return getSpeaker(r.db.WithContext(ctx), id)
}

func getSpeaker(tx *gorm.DB, id string) (*store.Speaker, error) {
	var sp store.Speaker
	if err := tx.First(&sp, "id = ?", id).Error; err != nil {
		if database.IsNotFoundError(err) {
			return nil, apperrors.NotFound("speaker", id)
		}
		return nil, database.FromDatabase(err, "speaker")
	}
	return &sp, nil
}

// List returns a page of speakers in creation order and the total count.
func (r *Resolver) List(ctx context.Context, limit, offset int) ([]store.Speaker, int64, error) {
	var (
		speakers []store.Speaker
		total    int64
	)
	if err := r.db.WithContext(ctx).Model(&store.Speaker{}).Count(&total).Error; err != nil {
		return nil, 0, database.FromDatabase(err, "speaker")
	}
	if err := r.db.WithContext(ctx).Order("created_at ASC").Order("name ASC").
		Limit(limit).Offset(offset).Find(&speakers).Error; err != nil {
		return nil, 0, database.FromDatabase(err, "speaker")
	}
	return speakers, total, nil
}

// Update changes a speaker's display name and, when metadata is non-nil,
// replaces its metadata.
func (r *Resolver) Update(ctx context.Context, id string, name *string, metadata map[string]interface{}) (*store.Speaker, error) {
	updates := map[string]interface{}{}
	if name != nil {
		if *name == "" {
			return nil, apperrors.InvalidInput("name", "must not be empty")
		}
		updates["name"] = *name
	}
	if metadata != nil {
		b, err := json.Marshal(metadata)
		if err != nil {
			return nil, apperrors.InvalidInput("metadata", err.Error())
		}
		updates["metadata"] = datatypes.JSON(b)
	}
	if len(updates) > 0 {
		res := r.db.WithContext(ctx).Model(&store.Speaker{}).Where("id = ?", id).Updates(updates)
		if res.Error != nil {
			return nil, database.FromDatabase(res.Error, "speaker")
		}
		if res.RowsAffected == 0 {
			return nil, apperrors.NotFound("speaker", id)
		}
	}
	return r.Get(ctx, id)
}

// Rename sets a speaker's display name.
func (r *Resolver) Rename(ctx context.Context, id, name string) error {
	_, err := r.Update(ctx, id, &name, nil)
	return err
}

// Appearance is a speaker's link to a recording with the recording's name.
type Appearance struct {
	store.SpeakerRecording
	Filename string `json:"filename"`
}

// Recordings lists the recordings a speaker appears in, newest first.
func (r *Resolver) Recordings(ctx context.Context, id string) ([]Appearance, error) {
	db := r.db.WithContext(ctx)
	var links []store.SpeakerRecording
	if err := db.Where("speaker_id = ?", id).Order("created_at DESC").Find(&links).Error; err != nil {
		return nil, database.FromDatabase(err, "speaker_recording")
	}
	if len(links) == 0 {
		return []Appearance{}, nil
	}
	ids := make([]string, len(links))
	for i, l := range links {
		ids[i] = l.RecordingID
	}
	var recs []store.Recording
	if err := db.Select("id", "filename").Where("id IN ?", ids).Find(&recs).Error; err != nil {
		return nil, database.FromDatabase(err, "recording")
	}
	names := make(map[string]string, len(recs))
	for _, rec := range recs {
		names[rec.ID] = rec.Filename
	}
	out := make([]Appearance, len(links))
	for i, l := range links {
		out[i] = Appearance{SpeakerRecording: l, Filename: names[l.RecordingID]}
	}
	return out, nil
}

// RefreshSentiment sets a speaker's average sentiment from its speaker
// insights. A speaker without insights gets a null average.
func (r *Resolver) RefreshSentiment(ctx context.Context, id string) error {
	db := r.db.WithContext(ctx)
	var avg sql.NullFloat64
	if err := db.Model(&store.SpeakerInsight{}).Where("speaker_id = ?", id).
		Select("AVG(sentiment_score)").Row().Scan(&avg); err != nil {
		return database.FromDatabase(err, "speaker_insight")
	}
	var value interface{}
	if avg.Valid {
		value = avg.Float64
	}
	if err := db.Model(&store.Speaker{}).Where("id = ?", id).Update("average_sentiment", value).Error; err != nil {
		return database.FromDatabase(err, "speaker")
	}
	return nil
}

// Rebuild compacts the embedding index.
func (r *Resolver) Rebuild(ctx context.Context) (vectorindex.Stats, error) {
	unlock, err := r.locker.Lock(ctx)
	if err != nil {
		return vectorindex.Stats{}, fmt.Errorf("acquire resolution lock: %w", err)
	}
	defer unlock()
	return r.index.Rebuild(ctx)
}
