package transcription

import "strings"

// Assign distributes transcript segments over speaker spans and returns one
// text per span, in span order. Each transcript segment goes to the span it
// overlaps most; a segment overlapping no span goes to the span nearest its
// midpoint. Spans that receive nothing get an empty string.
func Assign(spans []Span, segments []Segment) []string {
	out := make([]string, len(spans))
	if len(spans) == 0 {
		return out
	}

	parts := make([][]string, len(spans))
	for _, seg := range segments {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		idx := bestSpan(spans, seg)
		parts[idx] = append(parts[idx], text)
	}
	for i, p := range parts {
		out[i] = strings.Join(p, " ")
	}
	return out
}

func bestSpan(spans []Span, seg Segment) int {
	best, bestOverlap := -1, 0.0
	for i, sp := range spans {
		if ov := overlap(sp, seg); ov > bestOverlap {
			best, bestOverlap = i, ov
		}
	}
	if best >= 0 {
		return best
	}

	mid := (seg.Start + seg.End) / 2
	best, bestDist := 0, distance(spans[0], mid)
	for i, sp := range spans[1:] {
		if d := distance(sp, mid); d < bestDist {
			best, bestDist = i+1, d
		}
	}
	return best
}

func overlap(sp Span, seg Segment) float64 {
	lo := max(sp.Start, seg.Start)
	hi := min(sp.End, seg.End)
	if hi <= lo {
		return 0
	}
	return hi - lo
}

func distance(sp Span, t float64) float64 {
	switch {
	case t < sp.Start:
		return sp.Start - t
	case t > sp.End:
		return t - sp.End
	default:
		return 0
	}
}
