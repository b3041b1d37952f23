package store

import (
	"context"
	"fmt"
	"time"

	"github.com/kbukum/speakerhub/database"
	apperrors "github.com/kbukum/speakerhub/errors"
)

// Store holds the recording, job and insight queries shared by the API and
// the pipeline. Speaker mutations live in the speaker package.
type Store struct {
	db *database.DB
}

// New creates a Store over db.
func New(db *database.DB) *Store {
	return &Store{db: db}
}

// DB returns the underlying database.
func (s *Store) DB() *database.DB { return s.db }

// CreateRecording inserts a recording in QUEUED state.
func (s *Store) CreateRecording(ctx context.Context, rec *Recording) error {
	if rec.Status == "" {
		rec.Status = StatusQueued
	}
	if err := s.db.WithContext(ctx).Create(rec).Error; err != nil {
		return database.FromDatabase(err, "recording")
	}
	return nil
}

// GetRecording loads a recording by id.
func (s *Store) GetRecording(ctx context.Context, id string) (*Recording, error) {
	var rec Recording
	if err := s.db.WithContext(ctx).First(&rec, "id = ?", id).Error; err != nil {
		return nil, notFoundWithID(database.FromDatabase(err, "recording"), id)
	}
	return &rec, nil
}

// ListRecordings returns a page of recordings, newest first, and the total.
func (s *Store) ListRecordings(ctx context.Context, limit, offset int) ([]Recording, int64, error) {
	var (
		recs  []Recording
		total int64
	)
	q := s.db.WithContext(ctx).Model(&Recording{})
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, database.FromDatabase(err, "recording")
	}
	if err := s.db.WithContext(ctx).Order("created_at DESC").
		Limit(limit).Offset(offset).Find(&recs).Error; err != nil {
		return nil, 0, database.FromDatabase(err, "recording")
	}
	return recs, total, nil
}

// UpdateRecording applies column updates to a recording.
func (s *Store) UpdateRecording(ctx context.Context, id string, updates map[string]interface{}) error {
	if err := s.db.WithContext(ctx).Model(&Recording{}).Where("id = ?", id).Updates(updates).Error; err != nil {
		return database.FromDatabase(err, "recording")
	}
	return nil
}

// CreateJob inserts a QUEUED job for a recording.
func (s *Store) CreateJob(ctx context.Context, recordingID string) (*ProcessingJob, error) {
	job := &ProcessingJob{
		RecordingID: recordingID,
		Status:      StatusQueued,
		CurrentStep: "queued",
	}
	if err := s.db.WithContext(ctx).Create(job).Error; err != nil {
		return nil, database.FromDatabase(err, "processing_job")
	}
	return job, nil
}

// GetJob loads a job by id.
func (s *Store) GetJob(ctx context.Context, id string) (*ProcessingJob, error) {
	var job ProcessingJob
	if err := s.db.WithContext(ctx).First(&job, "id = ?", id).Error; err != nil {
		return nil, notFoundWithID(database.FromDatabase(err, "processing_job"), id)
	}
	return &job, nil
}

// LatestJobForRecording returns the most recently created job of a recording.
func (s *Store) LatestJobForRecording(ctx context.Context, recordingID string) (*ProcessingJob, error) {
	var job ProcessingJob
	err := s.db.WithContext(ctx).Where("recording_id = ?", recordingID).
		Order("created_at DESC").First(&job).Error
	if err != nil {
		return nil, notFoundWithID(database.FromDatabase(err, "processing_job"), recordingID)
	}
	return &job, nil
}

// UpdateJob applies column updates to a job.
func (s *Store) UpdateJob(ctx context.Context, id string, updates map[string]interface{}) error {
	if err := s.db.WithContext(ctx).Model(&ProcessingJob{}).Where("id = ?", id).Updates(updates).Error; err != nil {
		return database.FromDatabase(err, "processing_job")
	}
	return nil
}

// ClaimJob moves a QUEUED job to PROCESSING together with updates. It
// reports false, and changes nothing, when the job is no longer QUEUED.
func (s *Store) ClaimJob(ctx context.Context, id string, updates map[string]interface{}) (bool, error) {
	cols := map[string]interface{}{"status": StatusProcessing}
	for k, v := range updates {
		cols[k] = v
	}
	res := s.db.WithContext(ctx).Model(&ProcessingJob{}).
		Where("id = ? AND status = ?", id, StatusQueued).
		Updates(cols)
	if res.Error != nil {
		return false, database.FromDatabase(res.Error, "processing_job")
	}
	return res.RowsAffected == 1, nil
}

// SegmentView is a segment joined with its speaker's display name.
type SegmentView struct {
	Segment
	SpeakerName string `json:"speaker_name"`
}

// SegmentsForRecording returns a recording's segments ordered by start time.
func (s *Store) SegmentsForRecording(ctx context.Context, recordingID string) ([]SegmentView, error) {
	var segs []Segment
	if err := s.db.WithContext(ctx).Where("recording_id = ?", recordingID).
		Order("start_time ASC").Find(&segs).Error; err != nil {
		return nil, database.FromDatabase(err, "segment")
	}
	names, err := s.speakerNames(ctx, segs)
	if err != nil {
		return nil, err
	}
	out := make([]SegmentView, len(segs))
	for i, seg := range segs {
		out[i] = SegmentView{Segment: seg, SpeakerName: names[seg.SpeakerID]}
	}
	return out, nil
}

func (s *Store) speakerNames(ctx context.Context, segs []Segment) (map[string]string, error) {
	ids := make([]string, 0, len(segs))
	seen := make(map[string]bool)
	for _, seg := range segs {
		if !seen[seg.SpeakerID] {
			seen[seg.SpeakerID] = true
			ids = append(ids, seg.SpeakerID)
		}
	}
	names := make(map[string]string, len(ids))
	if len(ids) == 0 {
		return names, nil
	}
	var speakers []Speaker
	if err := s.db.WithContext(ctx).Select("id", "name").Where("id IN ?", ids).Find(&speakers).Error; err != nil {
		return nil, database.FromDatabase(err, "speaker")
	}
	for _, sp := range speakers {
		names[sp.ID] = sp.Name
	}
	return names, nil
}

// ConversationInsight returns the recording's conversation insight, or nil
// when none was generated.
func (s *Store) ConversationInsight(ctx context.Context, recordingID string) (*ConversationInsight, error) {
	var ins []ConversationInsight
	if err := s.db.WithContext(ctx).Where("recording_id = ?", recordingID).Limit(1).Find(&ins).Error; err != nil {
		return nil, database.FromDatabase(err, "conversation_insight")
	}
	if len(ins) == 0 {
		return nil, nil
	}
	return &ins[0], nil
}

// SpeakerInsights returns the per-speaker insights of a recording.
func (s *Store) SpeakerInsights(ctx context.Context, recordingID string) ([]SpeakerInsight, error) {
	var ins []SpeakerInsight
	if err := s.db.WithContext(ctx).Where("recording_id = ?", recordingID).
		Order("created_at ASC").Find(&ins).Error; err != nil {
		return nil, database.FromDatabase(err, "speaker_insight")
	}
	return ins, nil
}

// Now returns the current UTC time truncated to microseconds, which every
// supported driver stores without loss.
func Now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

func notFoundWithID(err *apperrors.AppError, id string) error {
	if err.Code == apperrors.ErrCodeNotFound && id != "" {
		err.WithDetail("id", id)
		err.Message = fmt.Sprintf("%v %s not found", err.Details["resource"], id)
	}
	return err
}
