package speaker

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/kbukum/speakerhub/database"
	apperrors "github.com/kbukum/speakerhub/errors"
	"github.com/kbukum/speakerhub/internal/store"
	"github.com/kbukum/speakerhub/logger"
)

// Merge folds source into target: segments, links and speaker insights move
// to target, durations add up and source is deleted. The source's embeddings
// are tombstoned, or reassigned to target in reassign mode.
func (r *Resolver) Merge(ctx context.Context, sourceID, targetID string) (*store.Speaker, error) {
	if sourceID == targetID {
		return nil, apperrors.Validation("cannot merge a speaker into itself").
			WithDetail("speaker_id", sourceID)
	}

	unlock, err := r.locker.Lock(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire resolution lock: %w", err)
	}
	defer unlock()

	var merged *store.Speaker
	err = r.db.WithTransaction(ctx, func(tx *gorm.DB) error {
		source, err := getSpeaker(tx, sourceID)
		if err != nil {
			return err
		}
		target, err := getSpeaker(tx, targetID)
		if err != nil {
			return err
		}

		if err := tx.Model(&store.Segment{}).Where("speaker_id = ?", sourceID).
			Update("speaker_id", targetID).Error; err != nil {
			return err
		}
		if err := foldLinks(tx, sourceID, targetID); err != nil {
			return err
		}

		var recordings int64
		if err := tx.Model(&store.SpeakerRecording{}).Where("speaker_id = ?", targetID).
			Count(&recordings).Error; err != nil {
			return err
		}
		if err := tx.Model(&store.Speaker{}).Where("id = ?", targetID).Updates(map[string]interface{}{
			"total_duration":  target.TotalDuration + source.TotalDuration,
			"recording_count": recordings,
		}).Error; err != nil {
			return err
		}
		if err := tx.Delete(&store.Speaker{}, "id = ?", sourceID).Error; err != nil {
			return err
		}
		merged, err = getSpeaker(tx, targetID)
		return err
	})
	if err != nil {
		return nil, database.FromDatabase(err, "speaker")
	}

	// The merge is committed. A failed snapshot write leaves the in-memory
	// index correct and the next mutation or rebuild persists it.
	if r.cfg.MergeMode == MergeReassign {
		err = r.index.Reassign(ctx, sourceID, targetID)
	} else {
		err = r.index.RemoveSpeaker(ctx, sourceID)
	}
	if err != nil {
		r.log.Error("index snapshot not written after merge", logger.ErrorFields("index_merge", err))
	}

	r.log.Info("speakers merged", map[string]interface{}{
		"source":         sourceID,
		"target":         targetID,
		"mode":           r.cfg.MergeMode,
		"total_duration": merged.TotalDuration,
	})
	return merged, nil
}

// foldLinks moves every link of source to target. Where target already has
// a link for the same recording the totals are summed into it.
func foldLinks(tx *gorm.DB, sourceID, targetID string) error {
	var links []store.SpeakerRecording
	if err := tx.Where("speaker_id = ?", sourceID).Find(&links).Error; err != nil {
		return err
	}
	for _, link := range links {
		var existing []store.SpeakerRecording
		if err := tx.Where("speaker_id = ? AND recording_id = ?", targetID, link.RecordingID).
			Limit(1).Find(&existing).Error; err != nil {
			return err
		}

		if len(existing) == 0 {
			if err := tx.Model(&store.SpeakerRecording{}).Where("id = ?", link.ID).
				Update("speaker_id", targetID).Error; err != nil {
				return err
			}
			if err := tx.Model(&store.SpeakerInsight{}).Where("speaker_recording_id = ?", link.ID).
				Update("speaker_id", targetID).Error; err != nil {
				return err
			}
			continue
		}

		into := existing[0]
		if err := tx.Model(&store.SpeakerRecording{}).Where("id = ?", into.ID).Updates(map[string]interface{}{
			"total_duration": into.TotalDuration + link.TotalDuration,
			"segment_count":  into.SegmentCount + link.SegmentCount,
		}).Error; err != nil {
			return err
		}

		var targetInsights int64
		if err := tx.Model(&store.SpeakerInsight{}).Where("speaker_recording_id = ?", into.ID).
			Count(&targetInsights).Error; err != nil {
			return err
		}
		insights := tx.Model(&store.SpeakerInsight{}).Where("speaker_recording_id = ?", link.ID)
		if targetInsights > 0 {
			err := tx.Where("speaker_recording_id = ?", link.ID).Delete(&store.SpeakerInsight{}).Error
			if err != nil {
				return err
			}
		} else if err := insights.Updates(map[string]interface{}{
			"speaker_recording_id": into.ID,
			"speaker_id":           targetID,
		}).Error; err != nil {
			return err
		}

		if err := tx.Delete(&store.SpeakerRecording{}, "id = ?", link.ID).Error; err != nil {
			return err
		}
	}
	return nil
}

// Delete removes a speaker with its insights, links and segments, then
// tombstones its embeddings.
func (r *Resolver) Delete(ctx context.Context, id string) error {
	unlock, err := r.locker.Lock(ctx)
	if err != nil {
		return fmt.Errorf("acquire resolution lock: %w", err)
	}
	defer unlock()

	err = r.db.WithTransaction(ctx, func(tx *gorm.DB) error {
		if _, err := getSpeaker(tx, id); err != nil {
			return err
		}
		for _, model := range []interface{}{&store.SpeakerInsight{}, &store.SpeakerRecording{}, &store.Segment{}} {
			if err := tx.Where("speaker_id = ?", id).Delete(model).Error; err != nil {
				return err
			}
		}
		return tx.Delete(&store.Speaker{}, "id = ?", id).Error
	})
	if err != nil {
		return database.FromDatabase(err, "speaker")
	}
	if err := r.index.RemoveSpeaker(ctx, id); err != nil {
		r.log.Error("index snapshot not written after delete", logger.ErrorFields("index_remove", err))
	}
	r.log.Info("speaker deleted", map[string]interface{}{logger.FieldSpeakerID: id})
	return nil
}

// ForgetRecording removes a recording's segments, links and insights and
// reverses the speaker totals those links contributed. Embeddings stay in
// the index so reprocessing finds the same speakers again.
func (r *Resolver) ForgetRecording(ctx context.Context, recordingID string) error {
	unlock, err := r.locker.Lock(ctx)
	if err != nil {
		return fmt.Errorf("acquire resolution lock: %w", err)
	}
	defer unlock()

	var purged int
	err = r.db.WithTransaction(ctx, func(tx *gorm.DB) error {
		var links []store.SpeakerRecording
		if err := tx.Where("recording_id = ?", recordingID).Find(&links).Error; err != nil {
			return err
		}
		for _, link := range links {
			if err := tx.Model(&store.Speaker{}).Where("id = ?", link.SpeakerID).Updates(map[string]interface{}{
				"total_duration":  gorm.Expr("total_duration - ?", link.TotalDuration),
				"recording_count": gorm.Expr("recording_count - 1"),
			}).Error; err != nil {
				return err
			}
		}
		purged = len(links)
		for _, model := range []interface{}{
			&store.SpeakerInsight{}, &store.ConversationInsight{}, &store.Segment{}, &store.SpeakerRecording{},
		} {
			if err := tx.Where("recording_id = ?", recordingID).Delete(model).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return database.FromDatabase(err, "recording")
	}
	if purged > 0 {
		r.log.Info("previous results purged", map[string]interface{}{
			logger.FieldRecordingID: recordingID,
			"links":                 purged,
		})
	}
	return nil
}
