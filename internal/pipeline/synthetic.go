package pipeline

import (
	"hash/fnv"
	"math/rand"
)

// SyntheticVector returns a deterministic pseudo-embedding for a speaker
// label. The same label always yields the same vector, so backends that
// return stable labels map them to stable identities.
func SyntheticVector(label string, dim int) []float32 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(label))
	r := rand.New(rand.NewSource(int64(h.Sum64())))
	v := make([]float32, dim)
	for i := range v {
		v[i] = float32(r.NormFloat64())
	}
	return v
}
