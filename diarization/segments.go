package diarization

import "sort"

// DefaultMaxGap is the largest silence, in seconds, bridged when merging
// consecutive turns of the same label.
const DefaultMaxGap = 0.5

// MergeShortSegments joins consecutive same-label segments separated by less
// than maxGap seconds, then drops merged runs shorter than minDuration.
// A minDuration of zero keeps every run. The input is not modified.
func MergeShortSegments(segments []Segment, minDuration, maxGap float64) []Segment {
	if len(segments) == 0 {
		return nil
	}
	if maxGap <= 0 {
		maxGap = DefaultMaxGap
	}

	merged := make([]Segment, 0, len(segments))
	current := segments[0]
	for _, seg := range segments[1:] {
		if seg.Label == current.Label && seg.Start-current.End < maxGap {
			if seg.End > current.End {
				current.End = seg.End
			}
			if seg.Confidence < current.Confidence {
				current.Confidence = seg.Confidence
			}
			continue
		}
		if current.Duration() >= minDuration {
			merged = append(merged, current)
		}
		current = seg
	}
	if current.Duration() >= minDuration {
		merged = append(merged, current)
	}
	return merged
}

// Stats returns per-label totals.
func Stats(segments []Segment) map[string]LabelStats {
	stats := make(map[string]LabelStats)
	for _, seg := range segments {
		s := stats[seg.Label]
		s.TotalDuration += seg.Duration()
		s.SegmentCount++
		stats[seg.Label] = s
	}
	return stats
}

// Labels returns the distinct labels in order of first appearance.
func Labels(segments []Segment) []string {
	seen := make(map[string]bool)
	var labels []string
	for _, seg := range segments {
		if !seen[seg.Label] {
			seen[seg.Label] = true
			labels = append(labels, seg.Label)
		}
	}
	return labels
}

// Representatives returns the longest segment of each label. Ties go to the
// earlier segment.
func Representatives(segments []Segment) map[string]Segment {
	reps := make(map[string]Segment)
	for _, seg := range segments {
		best, ok := reps[seg.Label]
		if !ok || seg.Duration() > best.Duration() {
			reps[seg.Label] = seg
		}
	}
	return reps
}

// SortByStart orders segments by start time in place, keeping the relative
// order of equal starts.
func SortByStart(segments []Segment) {
	sort.SliceStable(segments, func(i, j int) bool { return segments[i].Start < segments[j].Start })
}
