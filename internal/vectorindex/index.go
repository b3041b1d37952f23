package vectorindex

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	apperrors "github.com/kbukum/speakerhub/errors"
	"github.com/kbukum/speakerhub/logger"
	"github.com/kbukum/speakerhub/storage"
)

// Provenance records where an embedding came from.
type Provenance struct {
	RecordingID string `json:"recording"`
	SegmentID   string `json:"segment"`
}

// Hit is one search result.
type Hit struct {
	IdentityID string
	Similarity float64
	Provenance Provenance
	Position   int
}

// Match is the best identity for a query, scored by the mean similarity of
// its hits within the search depth.
type Match struct {
	IdentityID string
	Similarity float64
	Hits       int
}

// Stats summarizes the arena.
type Stats struct {
	Dimension  int    `json:"dimension"`
	Total      int    `json:"total"`
	Live       int    `json:"live"`
	Tombstoned int    `json:"tombstoned"`
	Identities int    `json:"identities"`
	Generation uint64 `json:"generation"`
}

type entry struct {
	vector     []float32
	identity   string
	provenance Provenance
	tombstone  bool
}

// Index is an in-process embedding index. It is safe for concurrent use;
// mutations are serialized and each one is followed by a snapshot write.
type Index struct {
	mu         sync.RWMutex
	dim        int
	entries    []entry
	positions  map[string][]int
	generation uint64

	store  storage.Storage
	prefix string
	log    *logger.Logger
}

// New creates an empty index. A nil store disables persistence.
func New(cfg Config, store storage.Storage, log *logger.Logger) *Index {
	cfg.ApplyDefaults()
	return &Index{
		dim:       cfg.Dimension,
		positions: make(map[string][]int),
		store:     store,
		prefix:    cfg.Prefix,
		log:       log.WithComponent("vectorindex"),
	}
}

// Dimension returns the vector length the index accepts.
func (ix *Index) Dimension() int { return ix.dim }

// Add stores a normalized copy of vector under identityID and returns its
// arena position. If the snapshot cannot be written the entry is dropped
// again, so a failed Add leaves the index as it was.
func (ix *Index) Add(ctx context.Context, vector []float32, identityID string, prov Provenance) (int, error) {
	if identityID == "" {
		return 0, apperrors.InvalidInput("identity_id", "must not be empty")
	}
	if len(vector) != ix.dim {
		return 0, apperrors.InvalidInput("embedding", fmt.Sprintf("dimension %d, want %d", len(vector), ix.dim))
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	pos := len(ix.entries)
	ix.entries = append(ix.entries, entry{vector: normalize(vector), identity: identityID, provenance: prov})
	ix.positions[identityID] = append(ix.positions[identityID], pos)
	if err := ix.persistLocked(ctx); err != nil {
		ix.entries = ix.entries[:pos]
		if held := ix.positions[identityID][:len(ix.positions[identityID])-1]; len(held) > 0 {
			ix.positions[identityID] = held
		} else {
			delete(ix.positions, identityID)
		}
		return 0, err
	}
	return pos, nil
}

// Search returns up to k live entries most similar to query, best first.
func (ix *Index) Search(query []float32, k int) []Hit {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.searchLocked(query, k)
}

func (ix *Index) searchLocked(query []float32, k int) []Hit {
	if k <= 0 || len(query) != ix.dim {
		return []Hit{}
	}
	q := normalize(query)
	hits := make([]Hit, 0, len(ix.entries))
	for pos, e := range ix.entries {
		if e.tombstone {
			continue
		}
		hits = append(hits, Hit{
			IdentityID: e.identity,
			Similarity: dot(q, e.vector),
			Provenance: e.provenance,
			Position:   pos,
		})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Similarity > hits[j].Similarity })
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits
}

// BestCandidate returns the identity with the highest mean similarity among
// the nearest SearchDepth entries, regardless of any threshold.
func (ix *Index) BestCandidate(query []float32) (Match, bool) {
	ix.mu.RLock()
	hits := ix.searchLocked(query, SearchDepth)
	ix.mu.RUnlock()
	if len(hits) == 0 {
		return Match{}, false
	}

	type acc struct {
		sum   float64
		n     int
		first int
	}
	groups := make(map[string]*acc)
	for i, h := range hits {
		a, ok := groups[h.IdentityID]
		if !ok {
			a = &acc{first: i}
			groups[h.IdentityID] = a
		}
		a.sum += h.Similarity
		a.n++
	}

	var (
		best      Match
		bestFirst int
		found     bool
	)
	for id, a := range groups {
		mean := a.sum / float64(a.n)
		// ties go to the identity whose nearest hit ranked first
		if !found || mean > best.Similarity || (mean == best.Similarity && a.first < bestFirst) {
			best = Match{IdentityID: id, Similarity: mean, Hits: a.n}
			bestFirst = a.first
			found = true
		}
	}
	return best, true
}

// FindMatch returns the best candidate if its mean similarity reaches
// threshold.
func (ix *Index) FindMatch(query []float32, threshold float64) (Match, bool) {
	m, ok := ix.BestCandidate(query)
	if !ok || m.Similarity < threshold {
		return Match{}, false
	}
	return m, true
}

// RemoveSpeaker tombstones every entry of identityID. The arena does not
// shrink until Rebuild.
func (ix *Index) RemoveSpeaker(ctx context.Context, identityID string) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	positions, ok := ix.positions[identityID]
	if !ok {
		return nil
	}
	for _, pos := range positions {
		ix.entries[pos].tombstone = true
	}
	delete(ix.positions, identityID)
	ix.log.Info("speaker embeddings tombstoned", map[string]interface{}{
		logger.FieldSpeakerID: identityID,
		"count":               len(positions),
	})
	return ix.persistLocked(ctx)
}

// Reassign moves every entry of from to the identity to.
func (ix *Index) Reassign(ctx context.Context, from, to string) error {
	if from == to {
		return nil
	}
	ix.mu.Lock()
	defer ix.mu.Unlock()

	positions, ok := ix.positions[from]
	if !ok {
		return nil
	}
	for _, pos := range positions {
		ix.entries[pos].identity = to
	}
	merged := append(ix.positions[to], positions...)
	sort.Ints(merged)
	ix.positions[to] = merged
	delete(ix.positions, from)
	return ix.persistLocked(ctx)
}

// Rebuild drops tombstoned entries and renumbers the remaining positions.
func (ix *Index) Rebuild(ctx context.Context) (Stats, error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	before := len(ix.entries)
	live := make([]entry, 0, before)
	positions := make(map[string][]int)
	for _, e := range ix.entries {
		if e.tombstone {
			continue
		}
		positions[e.identity] = append(positions[e.identity], len(live))
		live = append(live, e)
	}
	ix.entries = live
	ix.positions = positions

	ix.log.Info("index rebuilt", map[string]interface{}{
		"before": before,
		"after":  len(live),
	})
	err := ix.persistLocked(ctx)
	return ix.statsLocked(), err
}

// Total returns the arena size including tombstoned entries.
func (ix *Index) Total() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.entries)
}

// Live returns the number of searchable entries.
func (ix *Index) Live() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.liveLocked()
}

func (ix *Index) liveLocked() int {
	n := 0
	for _, positions := range ix.positions {
		n += len(positions)
	}
	return n
}

// Count returns how many live entries belong to identityID.
func (ix *Index) Count(identityID string) int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.positions[identityID])
}

// Stats reports arena counters.
func (ix *Index) Stats() Stats {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.statsLocked()
}

func (ix *Index) statsLocked() Stats {
	live := ix.liveLocked()
	return Stats{
		Dimension:  ix.dim,
		Total:      len(ix.entries),
		Live:       live,
		Tombstoned: len(ix.entries) - live,
		Identities: len(ix.positions),
		Generation: ix.generation,
	}
}

func normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	out := make([]float32, len(v))
	if sum == 0 {
		return out
	}
	norm := math.Sqrt(sum)
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}

func dot(a, b []float32) float64 {
	var s float64
	for i := range a {
		s += float64(a[i]) * float64(b[i])
	}
	return s
}
