package speaker

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"math"
	"math/rand"
	"testing"

	apperrors "github.com/kbukum/speakerhub/errors"
	"github.com/kbukum/speakerhub/internal/store"
	"github.com/kbukum/speakerhub/internal/vectorindex"
	"github.com/kbukum/speakerhub/logger"
	"github.com/kbukum/speakerhub/storage"
	"github.com/kbukum/speakerhub/testutil"
)

const testDim = 64

func newTestResolver(t *testing.T, cfg Config) *Resolver {
	t.Helper()
	db := testutil.T(t).Database(store.Models()...)
	ix := vectorindex.New(vectorindex.Config{Dimension: testDim}, nil, logger.Nop())
	return NewResolver(cfg, db, ix, nil, nil, logger.Nop())
}

func randomVector(r *rand.Rand) []float32 {
	v := make([]float32, testDim)
	for i := range v {
		v[i] = float32(r.NormFloat64())
	}
	return v
}

func withNoise(r *rand.Rand, v []float32, sigma float64) []float32 {
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = x + float32(r.NormFloat64()*sigma)
	}
	return out
}

func mustIdentify(t *testing.T, r *Resolver, v []float32, rec string) (string, bool) {
	t.Helper()
	id, isNew, err := r.IdentifyOrCreate(context.Background(), v, rec, "")
	if err != nil {
		t.Fatal(err)
	}
	return id, isNew
}

func TestIdentifyNoiseMatchesRandomCreates(t *testing.T) {
	res := newTestResolver(t, Config{})
	rng := rand.New(rand.NewSource(42))

	base := randomVector(rng)
	first, isNew := mustIdentify(t, res, base, "rec-1")
	if !isNew {
		t.Fatal("first embedding should create a speaker")
	}

	again, isNew := mustIdentify(t, res, withNoise(rng, base, 0.01), "rec-2")
	if isNew || again != first {
		t.Errorf("noisy copy resolved to %s (new=%v), want %s", again, isNew, first)
	}

	other, isNew := mustIdentify(t, res, randomVector(rng), "rec-2")
	if !isNew || other == first {
		t.Errorf("random vector resolved to %s (new=%v)", other, isNew)
	}

	if got := res.Index().Total(); got != 3 {
		t.Errorf("index total = %d, want one entry per call", got)
	}
	if got := res.Index().Count(first); got != 2 {
		t.Errorf("first speaker entries = %d", got)
	}
}

func TestIdentifyNamesSequentially(t *testing.T) {
	res := newTestResolver(t, Config{})
	rng := rand.New(rand.NewSource(7))
	ctx := context.Background()

	for i, want := range []string{"Speaker_001", "Speaker_002", "Speaker_003"} {
		id, isNew := mustIdentify(t, res, randomVector(rng), "rec")
		if !isNew {
			t.Fatalf("label %d matched an existing speaker", i)
		}
		sp, err := res.Get(ctx, id)
		if err != nil {
			t.Fatal(err)
		}
		if sp.Name != want {
			t.Errorf("name = %s, want %s", sp.Name, want)
		}
	}
}

func TestIdentifyAmbiguousBandFlagsReview(t *testing.T) {
	res := newTestResolver(t, Config{})
	ctx := context.Background()

	base := make([]float32, testDim)
	base[0] = 1
	first, _ := mustIdentify(t, res, base, "rec")

	near := make([]float32, testDim)
	near[0] = 0.78
	near[1] = float32(math.Sqrt(1 - 0.78*0.78))
	second, isNew := mustIdentify(t, res, near, "rec")
	if !isNew {
		t.Fatal("similarity below match threshold must create a speaker")
	}

	sp, err := res.Get(ctx, second)
	if err != nil {
		t.Fatal(err)
	}
	var meta map[string]interface{}
	if err := json.Unmarshal(sp.Metadata, &meta); err != nil {
		t.Fatal(err)
	}
	if meta[MetaReviewCandidate] != first {
		t.Errorf("metadata = %v", meta)
	}
	if s, _ := meta[MetaReviewSimilarity].(float64); math.Abs(s-0.78) > 1e-3 {
		t.Errorf("review similarity = %v", meta[MetaReviewSimilarity])
	}
}

func TestStatsAndLinks(t *testing.T) {
	res := newTestResolver(t, Config{})
	ctx := context.Background()
	id, _ := mustIdentify(t, res, randomVector(rand.New(rand.NewSource(1))), "rec")

	if err := res.UpdateStats(ctx, id, "rec", 10); err != nil {
		t.Fatal(err)
	}
	if err := res.CreateLink(ctx, id, "rec", 10, 2); err != nil {
		t.Fatal(err)
	}
	// linked now, so the count must not move again
	if err := res.UpdateStats(ctx, id, "rec", 5); err != nil {
		t.Fatal(err)
	}
	if err := res.CreateLink(ctx, id, "rec", 15, 3); err != nil {
		t.Fatal(err)
	}
	sp, _ := res.Get(ctx, id)
	if sp.TotalDuration != 15 || sp.RecordingCount != 1 {
		t.Errorf("speaker = %+v", sp)
	}
	apps, err := res.Recordings(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if len(apps) != 1 || apps[0].TotalDuration != 15 || apps[0].SegmentCount != 3 {
		t.Errorf("links = %+v", apps)
	}

	if err := res.UpdateStats(ctx, "missing", "rec", 1); !apperrors.IsCode(err, apperrors.ErrCodeNotFound) {
		t.Errorf("missing speaker err = %v", err)
	}
}

func seedAppearance(t *testing.T, res *Resolver, id, rec string, duration float64, segments int) {
	t.Helper()
	ctx := context.Background()
	if err := res.RecordAppearance(ctx, id, rec, duration, segments); err != nil {
		t.Fatal(err)
	}
	db := res.db.WithContext(ctx)
	for i := 0; i < segments; i++ {
		seg := store.Segment{RecordingID: rec, SpeakerID: id, Start: float64(i), End: float64(i) + 1, Duration: 1}
		if err := db.Create(&seg).Error; err != nil {
			t.Fatal(err)
		}
	}
}

func TestMergeConservesMass(t *testing.T) {
	for _, mode := range []string{MergeTombstone, MergeReassign} {
		t.Run(mode, func(t *testing.T) {
			res := newTestResolver(t, Config{MergeMode: mode})
			ctx := context.Background()
			rng := rand.New(rand.NewSource(9))

			src, _ := mustIdentify(t, res, randomVector(rng), "rec-1")
			dst, _ := mustIdentify(t, res, randomVector(rng), "rec-2")
			seedAppearance(t, res, src, "rec-1", 50, 3)
			seedAppearance(t, res, dst, "rec-2", 30, 2)

			merged, err := res.Merge(ctx, src, dst)
			if err != nil {
				t.Fatal(err)
			}
			if merged.TotalDuration != 80 || merged.RecordingCount != 2 {
				t.Errorf("merged = %+v", merged)
			}
			if _, err := res.Get(ctx, src); !apperrors.IsCode(err, apperrors.ErrCodeNotFound) {
				t.Errorf("source still present: %v", err)
			}

			var segs int64
			res.db.WithContext(ctx).Model(&store.Segment{}).Where("speaker_id = ?", dst).Count(&segs)
			if segs != 5 {
				t.Errorf("target segments = %d", segs)
			}

			ix := res.Index()
			if ix.Count(src) != 0 {
				t.Error("source still has live embeddings")
			}
			want := 1
			if mode == MergeReassign {
				want = 2
			}
			if ix.Count(dst) != want || ix.Live() != want {
				t.Errorf("target entries = %d live = %d, want %d", ix.Count(dst), ix.Live(), want)
			}
		})
	}
}

func TestMergeFoldsSharedRecording(t *testing.T) {
	res := newTestResolver(t, Config{})
	ctx := context.Background()
	rng := rand.New(rand.NewSource(11))

	src, _ := mustIdentify(t, res, randomVector(rng), "rec")
	dst, _ := mustIdentify(t, res, randomVector(rng), "rec")
	seedAppearance(t, res, src, "rec", 20, 2)
	seedAppearance(t, res, dst, "rec", 10, 1)

	db := res.db.WithContext(ctx)
	for _, id := range []string{src, dst} {
		var link store.SpeakerRecording
		db.Where("speaker_id = ?", id).First(&link)
		db.Create(&store.SpeakerInsight{SpeakerRecordingID: link.ID, SpeakerID: id, RecordingID: "rec", SentimentScore: 0.5})
	}

	merged, err := res.Merge(ctx, src, dst)
	if err != nil {
		t.Fatal(err)
	}
	if merged.TotalDuration != 30 || merged.RecordingCount != 1 {
		t.Errorf("merged = %+v", merged)
	}
	apps, _ := res.Recordings(ctx, dst)
	if len(apps) != 1 || apps[0].TotalDuration != 30 || apps[0].SegmentCount != 3 {
		t.Errorf("links = %+v", apps)
	}
	var insights int64
	db.Model(&store.SpeakerInsight{}).Count(&insights)
	if insights != 1 {
		t.Errorf("speaker insights = %d, want the target's only", insights)
	}
}

func TestMergeErrors(t *testing.T) {
	res := newTestResolver(t, Config{})
	ctx := context.Background()
	id, _ := mustIdentify(t, res, randomVector(rand.New(rand.NewSource(3))), "rec")

	tests := []struct {
		name           string
		source, target string
		code           apperrors.ErrorCode
	}{
		{"self", id, id, apperrors.ErrCodeInvalidInput},
		{"missing source", "nope", id, apperrors.ErrCodeNotFound},
		{"missing target", id, "nope", apperrors.ErrCodeNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := res.Merge(ctx, tt.source, tt.target); !apperrors.IsCode(err, tt.code) {
				t.Errorf("err = %v, want %s", err, tt.code)
			}
		})
	}
	if _, err := res.Get(ctx, id); err != nil {
		t.Errorf("failed merge must not delete: %v", err)
	}
}

func TestDeleteIsTotal(t *testing.T) {
	res := newTestResolver(t, Config{})
	ctx := context.Background()
	rng := rand.New(rand.NewSource(5))

	id, _ := mustIdentify(t, res, randomVector(rng), "rec")
	keep, _ := mustIdentify(t, res, randomVector(rng), "rec")
	seedAppearance(t, res, id, "rec", 12, 2)
	seedAppearance(t, res, keep, "rec", 4, 1)

	if err := res.Delete(ctx, id); err != nil {
		t.Fatal(err)
	}
	db := res.db.WithContext(ctx)
	for _, model := range []interface{}{&store.Segment{}, &store.SpeakerRecording{}, &store.SpeakerInsight{}} {
		var n int64
		db.Model(model).Where("speaker_id = ?", id).Count(&n)
		if n != 0 {
			t.Errorf("%T rows left = %d", model, n)
		}
	}
	if res.Index().Count(id) != 0 || res.Index().Count(keep) != 1 {
		t.Error("index not updated")
	}
	if err := res.Delete(ctx, id); !apperrors.IsCode(err, apperrors.ErrCodeNotFound) {
		t.Errorf("second delete = %v", err)
	}
}

func TestRefreshSentiment(t *testing.T) {
	res := newTestResolver(t, Config{})
	ctx := context.Background()
	id, _ := mustIdentify(t, res, randomVector(rand.New(rand.NewSource(6))), "rec")

	if err := res.RefreshSentiment(ctx, id); err != nil {
		t.Fatal(err)
	}
	if sp, _ := res.Get(ctx, id); sp.AverageSentiment != nil {
		t.Errorf("average without insights = %v", *sp.AverageSentiment)
	}

	db := res.db.WithContext(ctx)
	db.Create(&store.SpeakerInsight{SpeakerRecordingID: "l1", SpeakerID: id, RecordingID: "a", SentimentScore: 0.2})
	db.Create(&store.SpeakerInsight{SpeakerRecordingID: "l2", SpeakerID: id, RecordingID: "b", SentimentScore: 0.6})
	if err := res.RefreshSentiment(ctx, id); err != nil {
		t.Fatal(err)
	}
	sp, _ := res.Get(ctx, id)
	if sp.AverageSentiment == nil || math.Abs(*sp.AverageSentiment-0.4) > 1e-9 {
		t.Errorf("average = %v", sp.AverageSentiment)
	}
}

func TestForgetRecordingReversesStats(t *testing.T) {
	res := newTestResolver(t, Config{})
	ctx := context.Background()
	id, _ := mustIdentify(t, res, randomVector(rand.New(rand.NewSource(8))), "rec-1")
	seedAppearance(t, res, id, "rec-1", 40, 2)
	seedAppearance(t, res, id, "rec-2", 15, 1)

	if err := res.ForgetRecording(ctx, "rec-1"); err != nil {
		t.Fatal(err)
	}
	sp, _ := res.Get(ctx, id)
	if sp.TotalDuration != 15 || sp.RecordingCount != 1 {
		t.Errorf("speaker = %+v", sp)
	}
	var segs int64
	res.db.WithContext(ctx).Model(&store.Segment{}).Where("recording_id = ?", "rec-1").Count(&segs)
	if segs != 0 {
		t.Errorf("segments left = %d", segs)
	}
	if res.Index().Count(id) != 1 {
		t.Error("embeddings must survive a purge")
	}
}

func TestUpdateAndList(t *testing.T) {
	res := newTestResolver(t, Config{})
	ctx := context.Background()
	rng := rand.New(rand.NewSource(12))
	id, _ := mustIdentify(t, res, randomVector(rng), "rec")
	mustIdentify(t, res, randomVector(rng), "rec")

	name := "Alice"
	sp, err := res.Update(ctx, id, &name, map[string]interface{}{"team": "sales"})
	if err != nil {
		t.Fatal(err)
	}
	if sp.Name != "Alice" || string(sp.Metadata) != `{"team":"sales"}` {
		t.Errorf("updated = %+v", sp)
	}
	empty := ""
	if _, err := res.Update(ctx, id, &empty, nil); !apperrors.IsCode(err, apperrors.ErrCodeInvalidInput) {
		t.Errorf("empty name err = %v", err)
	}
	if _, err := res.Update(ctx, "missing", &name, nil); !apperrors.IsCode(err, apperrors.ErrCodeNotFound) {
		t.Errorf("missing err = %v", err)
	}

	page, total, err := res.List(ctx, 1, 0)
	if err != nil || total != 2 || len(page) != 1 {
		t.Errorf("page=%d total=%d err=%v", len(page), total, err)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name string
		mod  func(*Config)
		ok   bool
	}{
		{"defaults", func(*Config) {}, true},
		{"threshold above one", func(c *Config) { c.MatchThreshold = 1.2 }, false},
		{"band above match", func(c *Config) { c.NewSpeakerThreshold = 0.9 }, false},
		{"unknown lock", func(c *Config) { c.Lock = "etcd" }, false},
		{"unknown merge mode", func(c *Config) { c.MergeMode = "copy" }, false},
		{"bad ttl", func(c *Config) { c.LockTTL = "soon" }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Config{}
			cfg.ApplyDefaults()
			tt.mod(&cfg)
			if err := cfg.Validate(); (err == nil) != tt.ok {
				t.Errorf("Validate() = %v, ok=%v", err, tt.ok)
			}
		})
	}
}

type failingStorage struct {
	storage.Storage
	fail bool
}

func (s *failingStorage) Upload(ctx context.Context, path string, r io.Reader) error {
	if s.fail {
		return errors.New("bucket unavailable")
	}
	return s.Storage.Upload(ctx, path, r)
}

func newPersistentResolver(t *testing.T, cfg Config) (*Resolver, *failingStorage) {
	t.Helper()
	h := testutil.T(t)
	files := &failingStorage{Storage: h.Storage()}
	ix := vectorindex.New(vectorindex.Config{Dimension: testDim}, files, logger.Nop())
	return NewResolver(cfg, h.Database(store.Models()...), ix, nil, nil, logger.Nop()), files
}

func TestIdentifyLeavesNoGhostWhenIndexWriteFails(t *testing.T) {
	res, files := newPersistentResolver(t, Config{})
	ctx := context.Background()
	rng := rand.New(rand.NewSource(11))

	files.fail = true
	if _, _, err := res.IdentifyOrCreate(ctx, randomVector(rng), "rec", ""); err == nil {
		t.Fatal("expected index write error")
	}
	if _, total, _ := res.List(ctx, 10, 0); total != 0 {
		t.Errorf("speakers = %d, want the row rolled back", total)
	}
	if res.Index().Total() != 0 {
		t.Errorf("index total = %d, want 0", res.Index().Total())
	}

	files.fail = false
	v := randomVector(rng)
	id, _ := mustIdentify(t, res, v, "rec")
	files.fail = true
	if _, _, err := res.IdentifyOrCreate(ctx, withNoise(rng, v, 0.01), "rec-2", ""); err == nil {
		t.Fatal("expected index write error on match")
	}
	if got := res.Index().Count(id); got != 1 {
		t.Errorf("entries for %s = %d, want 1", id, got)
	}
}

func TestMergeAndDeleteSucceedWhenSnapshotFails(t *testing.T) {
	for _, mode := range []string{MergeTombstone, MergeReassign} {
		t.Run(mode, func(t *testing.T) {
			res, files := newPersistentResolver(t, Config{MergeMode: mode})
			ctx := context.Background()
			rng := rand.New(rand.NewSource(12))

			src, _ := mustIdentify(t, res, randomVector(rng), "rec")
			dst, _ := mustIdentify(t, res, randomVector(rng), "rec")
			gone, _ := mustIdentify(t, res, randomVector(rng), "rec")

			files.fail = true
			merged, err := res.Merge(ctx, src, dst)
			if err != nil || merged == nil || merged.ID != dst {
				t.Fatalf("Merge = %+v, %v; want committed merge reported as success", merged, err)
			}
			if res.Index().Count(src) != 0 {
				t.Errorf("source still has %d live entries", res.Index().Count(src))
			}
			if err := res.Delete(ctx, gone); err != nil {
				t.Fatalf("Delete = %v", err)
			}
			if res.Index().Count(gone) != 0 {
				t.Errorf("deleted speaker still has %d live entries", res.Index().Count(gone))
			}
			if _, err := res.Get(ctx, gone); !apperrors.IsCode(err, apperrors.ErrCodeNotFound) {
				t.Errorf("Get deleted = %v", err)
			}
		})
	}
}
