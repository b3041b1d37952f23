package store

import (
	"context"
	"testing"

	apperrors "github.com/kbukum/speakerhub/errors"
	"github.com/kbukum/speakerhub/testutil"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return New(testutil.T(t).Database(Models()...))
}

func TestRecordingAndJobLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rec := &Recording{Filename: "call.wav", StoragePath: "recordings/x.wav", Format: "wav"}
	if err := s.CreateRecording(ctx, rec); err != nil {
		t.Fatal(err)
	}
	if rec.Status != StatusQueued || rec.ID == "" {
		t.Fatalf("recording = %+v", rec)
	}

	job, err := s.CreateJob(ctx, rec.ID)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.UpdateJob(ctx, job.ID, map[string]interface{}{
		"status": StatusProcessing, "progress": 15, "current_step": "diarization",
	}); err != nil {
		t.Fatal(err)
	}
	got, err := s.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != StatusProcessing || got.Progress != 15 || string(got.Result) != "{}" {
		t.Errorf("job = %+v", got)
	}

	latest, err := s.LatestJobForRecording(ctx, rec.ID)
	if err != nil || latest.ID != job.ID {
		t.Errorf("latest = %+v err=%v", latest, err)
	}
}

func TestNotFound(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.GetRecording(ctx, "missing")
	if !apperrors.IsCode(err, apperrors.ErrCodeNotFound) {
		t.Errorf("recording err = %v", err)
	}
	_, err = s.GetJob(ctx, "missing")
	if !apperrors.IsCode(err, apperrors.ErrCodeNotFound) {
		t.Errorf("job err = %v", err)
	}
	ins, err := s.ConversationInsight(ctx, "missing")
	if err != nil || ins != nil {
		t.Errorf("insight = %v err=%v", ins, err)
	}
}

func TestListRecordingsPaginates(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	for _, name := range []string{"a.wav", "b.wav", "c.wav"} {
		if err := s.CreateRecording(ctx, &Recording{Filename: name, StoragePath: name}); err != nil {
			t.Fatal(err)
		}
	}
	page, total, err := s.ListRecordings(ctx, 2, 0)
	if err != nil {
		t.Fatal(err)
	}
	if total != 3 || len(page) != 2 {
		t.Errorf("total=%d page=%d", total, len(page))
	}
	rest, _, _ := s.ListRecordings(ctx, 2, 2)
	if len(rest) != 1 {
		t.Errorf("second page = %d", len(rest))
	}
}

func TestSegmentsCarrySpeakerNames(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	db := s.DB().WithContext(ctx)

	alice := &Speaker{Name: "Alice"}
	bob := &Speaker{Name: "Bob"}
	if err := db.Create(alice).Error; err != nil {
		t.Fatal(err)
	}
	if err := db.Create(bob).Error; err != nil {
		t.Fatal(err)
	}
	if string(alice.Metadata) != "{}" {
		t.Errorf("metadata default = %s", alice.Metadata)
	}
	segs := []Segment{
		{RecordingID: "r1", SpeakerID: bob.ID, Start: 4, End: 6, Duration: 2},
		{RecordingID: "r1", SpeakerID: alice.ID, Start: 0, End: 4, Duration: 4},
		{RecordingID: "r2", SpeakerID: alice.ID, Start: 0, End: 1, Duration: 1},
	}
	if err := db.Create(&segs).Error; err != nil {
		t.Fatal(err)
	}

	got, err := s.SegmentsForRecording(ctx, "r1")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("segments = %d", len(got))
	}
	if got[0].SpeakerName != "Alice" || got[1].SpeakerName != "Bob" {
		t.Errorf("order/names = %s, %s", got[0].SpeakerName, got[1].SpeakerName)
	}
}

func TestInsightsRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	db := s.DB().WithContext(ctx)

	who := "Alice"
	ci := &ConversationInsight{
		RecordingID: "r1",
		Summary:     "Planning call",
		KeyTopics:   []string{"budget", "hiring"},
		ActionItems: []ActionItem{{Item: "send deck", AssignedTo: &who, Priority: "high"}},
	}
	if err := db.Create(ci).Error; err != nil {
		t.Fatal(err)
	}
	if err := db.Create(&SpeakerInsight{SpeakerRecordingID: "l1", SpeakerID: "s1", RecordingID: "r1", SentimentScore: 0.4}).Error; err != nil {
		t.Fatal(err)
	}

	got, err := s.ConversationInsight(ctx, "r1")
	if err != nil || got == nil {
		t.Fatalf("got %v err=%v", got, err)
	}
	if len(got.KeyTopics) != 2 || len(got.ActionItems) != 1 || *got.ActionItems[0].AssignedTo != "Alice" {
		t.Errorf("insight = %+v", got)
	}
	sis, err := s.SpeakerInsights(ctx, "r1")
	if err != nil || len(sis) != 1 || sis[0].SentimentScore != 0.4 {
		t.Errorf("speaker insights = %+v err=%v", sis, err)
	}
}
