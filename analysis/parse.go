package analysis

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/kbukum/speakerhub/errors"
	"github.com/kbukum/speakerhub/llm"
)

const service = "analysis"

// DefaultConfidence is used for segments the model returned without one.
const DefaultConfidence = 0.8

var requiredFields = []string{
	"segments", "speakers", "full_transcript", "conversation_insights", "speaker_insights",
}

var requiredSegmentFields = []string{"start", "end", "speaker_id", "transcription"}

// Parse validates raw model output. finishReason uses the llm.Finish*
// constants; an empty value is treated as a normal stop.
func Parse(content, finishReason string) (*Result, error) {
	if err := checkFinish(finishReason); err != nil {
		return nil, err
	}

	body := llm.StripFences(content)
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(body), &fields); err != nil {
		if looksTruncated(body, err) {
			return nil, errors.CollaboratorFailure(service,
				fmt.Errorf("response appears truncated (likely hit the output token limit): %w", err))
		}
		inner := llm.ExtractJSON(body)
		if inner == body || json.Unmarshal([]byte(inner), &fields) != nil {
			return nil, errors.CollaboratorFailure(service,
				fmt.Errorf("response is not valid JSON: %w (preview: %s)", err, preview(body)))
		}
		body = inner
	}

	var missing []string
	for _, f := range requiredFields {
		if _, ok := fields[f]; !ok {
			missing = append(missing, f)
		}
	}
	if len(missing) > 0 {
		available := make([]string, 0, len(fields))
		for k := range fields {
			available = append(available, k)
		}
		sort.Strings(available)
		return nil, errors.Validation("missing required fields in analysis response: "+strings.Join(missing, ", ")).
			WithDetail("missing", missing).
			WithDetail("available", available)
	}

	if err := checkSegments(fields["segments"]); err != nil {
		return nil, err
	}

	var result Result
	if err := json.Unmarshal([]byte(body), &result); err != nil {
		return nil, errors.CollaboratorFailure(service, fmt.Errorf("response has unexpected shape: %w", err))
	}
	for i := range result.Segments {
		seg := result.Segments[i]
		if strings.TrimSpace(seg.Label) == "" {
			return nil, errors.Validation(fmt.Sprintf("segment %d has an empty speaker_id", i)).
				WithDetail("segment", i)
		}
		if math.IsNaN(seg.Start) || math.IsNaN(seg.End) || seg.Start < 0 || seg.End < seg.Start {
			return nil, errors.Validation(fmt.Sprintf("invalid segment timestamps: start=%v, end=%v", seg.Start, seg.End)).
				WithDetail("segment", i)
		}
		if seg.Confidence == nil {
			c := DefaultConfidence
			result.Segments[i].Confidence = &c
		}
	}
	sort.SliceStable(result.Segments, func(i, j int) bool {
		return result.Segments[i].Start < result.Segments[j].Start
	})
	return &result, nil
}

// checkSegments rejects an empty segment list and segments without the
// fields downstream code reads. Absent and null fields both count as missing.
func checkSegments(raw json.RawMessage) error {
	var segs []map[string]json.RawMessage
	if err := json.Unmarshal(raw, &segs); err != nil {
		return errors.Validation("segments must be a list of objects").WithCause(err)
	}
	if len(segs) == 0 {
		return errors.Validation("analysis response contains no segments; the audio may be too short or unclear")
	}
	for i, seg := range segs {
		var missing []string
		for _, f := range requiredSegmentFields {
			if v, ok := seg[f]; !ok || string(v) == "null" {
				missing = append(missing, f)
			}
		}
		if len(missing) > 0 {
			return errors.Validation(fmt.Sprintf("segment %d missing required fields: %s", i, strings.Join(missing, ", "))).
				WithDetail("segment", i).
				WithDetail("missing", missing)
		}
	}
	return nil
}

func checkFinish(reason string) error {
	switch reason {
	case "", llm.FinishStop:
		return nil
	case llm.FinishSafety:
		return errors.CollaboratorFailure(service, fmt.Errorf(
			"response blocked by safety filters (finish_reason: %s); the audio may contain policy-violating material, consider the staged pipeline", reason))
	case llm.FinishMaxTokens:
		return errors.CollaboratorFailure(service, fmt.Errorf(
			"response truncated by the output token limit (finish_reason: %s); the recording may be too long for a single call", reason))
	default:
		return errors.CollaboratorFailure(service, fmt.Errorf(
			"response incomplete (finish_reason: %s)", reason))
	}
}

func looksTruncated(body string, err error) bool {
	if strings.Contains(err.Error(), "unexpected end of JSON input") {
		return true
	}
	return !strings.HasSuffix(strings.TrimSpace(body), "}")
}

func preview(s string) string {
	if len(s) > 200 {
		return s[:200] + "..."
	}
	return s
}
