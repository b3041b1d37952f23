package vectorindex

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"path"

	apperrors "github.com/kbukum/speakerhub/errors"
	"github.com/kbukum/speakerhub/storage"
)

// Snapshot object names.
const (
	IndexFile    = "speaker_embeddings.index"
	MetadataFile = "speaker_metadata.json"
)

const (
	snapshotMagic   = "SPKX"
	snapshotVersion = uint32(1)
	headerSize      = 4 + 4 + 4 + 4 + 8
)

type header struct {
	Magic      [4]byte
	Version    uint32
	Dimension  uint32
	Count      uint32
	Generation uint64
}

type positionMeta struct {
	Identity  string `json:"identity"`
	Segment   string `json:"segment"`
	Recording string `json:"recording"`
	Tombstone bool   `json:"tombstone"`
}

type metadata struct {
	Generation uint64               `json:"generation"`
	Count      int                  `json:"count"`
	Dimension  int                  `json:"dimension"`
	Positions  map[int]positionMeta `json:"positions"`
	Identities map[string][]int     `json:"identities"`
}

func (ix *Index) indexKey() string    { return path.Join(ix.prefix, IndexFile) }
func (ix *Index) metadataKey() string { return path.Join(ix.prefix, MetadataFile) }

// persistLocked bumps the generation and writes the snapshot pair. Callers
// hold the write lock.
func (ix *Index) persistLocked(ctx context.Context) error {
	ix.generation++
	if ix.store == nil {
		return nil
	}

	var buf bytes.Buffer
	buf.Grow(headerSize + len(ix.entries)*ix.dim*4)
	h := header{
		Version:    snapshotVersion,
		Dimension:  uint32(ix.dim),
		Count:      uint32(len(ix.entries)),
		Generation: ix.generation,
	}
	copy(h.Magic[:], snapshotMagic)
	if err := binary.Write(&buf, binary.LittleEndian, h); err != nil {
		return apperrors.PersistenceFailure("index snapshot", err)
	}
	row := make([]byte, ix.dim*4)
	for _, e := range ix.entries {
		for i, x := range e.vector {
			binary.LittleEndian.PutUint32(row[i*4:], math.Float32bits(x))
		}
		buf.Write(row)
	}

	meta := metadata{
		Generation: ix.generation,
		Count:      len(ix.entries),
		Dimension:  ix.dim,
		Positions:  make(map[int]positionMeta, len(ix.entries)),
		Identities: ix.positions,
	}
	for pos, e := range ix.entries {
		meta.Positions[pos] = positionMeta{
			Identity:  e.identity,
			Segment:   e.provenance.SegmentID,
			Recording: e.provenance.RecordingID,
			Tombstone: e.tombstone,
		}
	}
	metaBytes, err := json.Marshal(meta)
	if err != nil {
		return apperrors.PersistenceFailure("index metadata", err)
	}

	if err := ix.store.Upload(ctx, ix.indexKey(), &buf); err != nil {
		return apperrors.PersistenceFailure("index snapshot", err)
	}
	if err := ix.store.Upload(ctx, ix.metadataKey(), bytes.NewReader(metaBytes)); err != nil {
		return apperrors.PersistenceFailure("index metadata", err)
	}
	return nil
}

// Load replaces the in-memory state with the stored snapshot. A missing,
// unreadable or inconsistent snapshot leaves the index empty and logs a
// warning; it never fails startup. It reports whether a snapshot was loaded.
func (ix *Index) Load(ctx context.Context) bool {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	ix.entries = nil
	ix.positions = make(map[string][]int)
	ix.generation = 0
	if ix.store == nil {
		return false
	}

	entries, generation, err := ix.readSnapshot(ctx)
	if err != nil {
		ix.log.Warn("starting with empty speaker index", map[string]interface{}{
			"reason": err.Error(),
			"prefix": ix.prefix,
		})
		return false
	}
	for pos, e := range entries {
		if !e.tombstone {
			ix.positions[e.identity] = append(ix.positions[e.identity], pos)
		}
	}
	ix.entries = entries
	ix.generation = generation
	ix.log.Info("speaker index loaded", map[string]interface{}{
		"total":      len(entries),
		"identities": len(ix.positions),
		"generation": generation,
	})
	return true
}

func (ix *Index) readSnapshot(ctx context.Context) ([]entry, uint64, error) {
	raw, err := storage.ReadAll(ctx, ix.store, ix.indexKey())
	if err != nil {
		return nil, 0, fmt.Errorf("read %s: %w", IndexFile, err)
	}
	metaRaw, err := storage.ReadAll(ctx, ix.store, ix.metadataKey())
	if err != nil {
		return nil, 0, fmt.Errorf("read %s: %w", MetadataFile, err)
	}

	r := bytes.NewReader(raw)
	var h header
	if err := binary.Read(r, binary.LittleEndian, &h); err != nil {
		return nil, 0, fmt.Errorf("decode %s header: %w", IndexFile, err)
	}
	if string(h.Magic[:]) != snapshotMagic || h.Version != snapshotVersion {
		return nil, 0, fmt.Errorf("%s: unknown format %q v%d", IndexFile, h.Magic[:], h.Version)
	}
	if int(h.Dimension) != ix.dim {
		return nil, 0, fmt.Errorf("%s: dimension %d, want %d", IndexFile, h.Dimension, ix.dim)
	}

	var meta metadata
	if err := json.Unmarshal(metaRaw, &meta); err != nil {
		return nil, 0, fmt.Errorf("decode %s: %w", MetadataFile, err)
	}
	if meta.Generation != h.Generation || meta.Count != int(h.Count) || len(meta.Positions) != meta.Count {
		return nil, 0, fmt.Errorf("snapshot pair disagrees: index gen=%d count=%d, metadata gen=%d count=%d",
			h.Generation, h.Count, meta.Generation, meta.Count)
	}

	entries := make([]entry, h.Count)
	row := make([]byte, ix.dim*4)
	for pos := range entries {
		if _, err := io.ReadFull(r, row); err != nil {
			return nil, 0, fmt.Errorf("%s: row %d: %w", IndexFile, pos, err)
		}
		vec := make([]float32, ix.dim)
		for i := range vec {
			vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(row[i*4:]))
		}
		pm, ok := meta.Positions[pos]
		if !ok || pm.Identity == "" {
			return nil, 0, fmt.Errorf("%s: no metadata for position %d", MetadataFile, pos)
		}
		entries[pos] = entry{
			vector:     vec,
			identity:   pm.Identity,
			provenance: Provenance{RecordingID: pm.Recording, SegmentID: pm.Segment},
			tombstone:  pm.Tombstone,
		}
	}
	return entries, h.Generation, nil
}
